package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/n3hifriends/oolshik-backend-sub000/internal/config"
	"github.com/n3hifriends/oolshik-backend-sub000/internal/db"
	httpSrv "github.com/n3hifriends/oolshik-backend-sub000/internal/http"
	"github.com/n3hifriends/oolshik-backend-sub000/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the admin HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cfg.API.Validate(); err != nil {
			return err
		}
		log := logger.Init(cfg.Log.Level)
		defer func() { _ = log.Sync() }()
		if cfg.API.InsecureDev && strings.TrimSpace(cfg.API.Key) == "" {
			log.Warn("api.insecure_dev is set; /v1 accepts unauthenticated requests")
		}

		ctx := cmd.Context()

		mysqlDB, err := db.OpenMySQL(ctx, cfg.MySQL)
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer mysqlDB.Close()

		redisClient, err := db.OpenRedis(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis connect: %w", err)
		}
		if redisClient != nil {
			defer func() { _ = redisClient.Close() }()
		}

		// reports are optional
		var chDB *sqlx.DB
		if strings.TrimSpace(cfg.ClickHouse.DSN) != "" {
			chDB, err = db.OpenClickHouse(ctx, cfg.ClickHouse)
			if err != nil {
				return fmt.Errorf("clickhouse connect: %w", err)
			}
			defer func() { _ = chDB.Close() }()
		}

		server := httpSrv.NewServer(cfg, mysqlDB, chDB, redisClient, log)

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start(cfg.HTTP.Addr)
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-sigCh:
			log.Info("signal received, shutting down", zap.String("signal", sig.String()))
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("http server exited", zap.Error(err))
			}
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)

		return nil
	},
}
