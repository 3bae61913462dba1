package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/n3hifriends/oolshik-backend-sub000/cmd/worker"
)

var (
	cfgPath string
	rootCmd = &cobra.Command{
		Use:   "oolshik-notify",
		Short: "Task notification pipeline CLI",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// optional; real environment variables win
			_ = godotenv.Load()
		},
	}
)

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "path to YAML config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(worker.NewWorkerCmd())
}
