package cmd

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/n3hifriends/oolshik-backend-sub000/internal/config"
	"github.com/n3hifriends/oolshik-backend-sub000/internal/db"
	"github.com/n3hifriends/oolshik-backend-sub000/internal/logger"
	"github.com/n3hifriends/oolshik-backend-sub000/migrations"
)

var (
	migrateDown  bool
	migrateSteps int
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply MySQL schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		log := logger.Init(cfg.Log.Level)

		sqlDB, err := db.OpenMySQL(cmd.Context(), cfg.MySQL)
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer sqlDB.Close()

		src, err := iofs.New(migrations.FS, ".")
		if err != nil {
			return fmt.Errorf("migration source: %w", err)
		}
		driver, err := migratemysql.WithInstance(sqlDB.DB, &migratemysql.Config{})
		if err != nil {
			return fmt.Errorf("migration driver: %w", err)
		}
		m, err := migrate.NewWithInstance("iofs", src, "mysql", driver)
		if err != nil {
			return fmt.Errorf("migrate init: %w", err)
		}

		switch {
		case migrateSteps != 0:
			err = m.Steps(migrateSteps)
		case migrateDown:
			err = m.Down()
		default:
			err = m.Up()
		}
		if err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migrate: %w", err)
		}

		version, dirty, _ := m.Version()
		log.Info("migration complete", zap.Uint("version", version), zap.Bool("dirty", dirty))
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateDown, "down", false, "roll back every migration")
	migrateCmd.Flags().IntVar(&migrateSteps, "steps", 0, "apply n migrations (negative rolls back)")
}
