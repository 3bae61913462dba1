// Package db opens the MySQL, ClickHouse and Redis connections from config.
package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/n3hifriends/oolshik-backend-sub000/internal/config"
)

var ErrEmptyDSN = errors.New("empty DSN")

// OpenMySQL opens the store of record. parseTime and clientFoundRows are
// forced on; the migrate command also needs multiStatements=true.
func OpenMySQL(ctx context.Context, c config.DatabaseConfig) (*sqlx.DB, error) {
	if strings.TrimSpace(c.DSN) == "" {
		return nil, fmt.Errorf("mysql: %w", ErrEmptyDSN)
	}
	dsn, err := mysqlDSN(c.DSN)
	if err != nil {
		return nil, err
	}
	c.DSN = dsn
	return open(ctx, "mysql", c, 5*time.Second)
}

// mysqlDSN makes UPDATE row counts mean matched rows, which the
// RowsAffected == 0 not-found checks rely on.
func mysqlDSN(dsn string) (string, error) {
	mc, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("mysql dsn: %w", err)
	}
	mc.ParseTime = true
	mc.ClientFoundRows = true
	return mc.FormatDSN(), nil
}

// OpenClickHouse opens the analytics store, e.g.
// clickhouse://default:@localhost:9000/notify?dial_timeout=5s&compress=true
func OpenClickHouse(ctx context.Context, c config.DatabaseConfig) (*sqlx.DB, error) {
	return open(ctx, "clickhouse", c, 3*time.Second)
}

func open(ctx context.Context, driver string, c config.DatabaseConfig, defaultPing time.Duration) (*sqlx.DB, error) {
	if strings.TrimSpace(c.DSN) == "" {
		return nil, fmt.Errorf("%s: %w", driver, ErrEmptyDSN)
	}
	dbx, err := sqlx.Open(driver, c.DSN)
	if err != nil {
		return nil, fmt.Errorf("%s open: %w", driver, err)
	}

	if c.MaxOpenConns > 0 {
		dbx.SetMaxOpenConns(c.MaxOpenConns)
	}
	if c.MaxIdleConns > 0 {
		dbx.SetMaxIdleConns(c.MaxIdleConns)
	}
	if c.ConnMaxLifetime > 0 {
		dbx.SetConnMaxLifetime(c.ConnMaxLifetime)
	}
	if c.ConnMaxIdleTime > 0 {
		dbx.SetConnMaxIdleTime(c.ConnMaxIdleTime)
	}

	timeout := c.PingTimeout
	if timeout <= 0 {
		timeout = defaultPing
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := dbx.PingContext(pingCtx); err != nil {
		_ = dbx.Close()
		return nil, fmt.Errorf("%s ping: %w", driver, err)
	}
	return dbx, nil
}
