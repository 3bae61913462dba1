package worker

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/n3hifriends/oolshik-backend-sub000/internal/config"
)

var metricsAddr string

// NewWorkerCmd returns the parent "worker" command.
func NewWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run background workers",
	}
	cmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve /metrics on this address (disabled when empty)")

	// attach subcommands
	cmd.AddCommand(publisherCmd)
	cmd.AddCommand(notifierCmd)

	return cmd
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
	return config.Load(cfgPath)
}

// serveMetrics exposes the default registry until the process exits.
func serveMetrics(log *zap.Logger) {
	if metricsAddr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		log.Info("metrics listening", zap.String("addr", metricsAddr))
		if err := http.ListenAndServe(metricsAddr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server exited", zap.Error(err))
		}
	}()
}
