package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/n3hifriends/oolshik-backend-sub000/internal/config"
)

func TestOpenRejectsEmptyDSN(t *testing.T) {
	_, err := OpenMySQL(context.Background(), config.DatabaseConfig{DSN: "  "})
	require.ErrorIs(t, err, ErrEmptyDSN)

	_, err = OpenClickHouse(context.Background(), config.DatabaseConfig{})
	require.ErrorIs(t, err, ErrEmptyDSN)
}

func TestOpenRedisDisabledWithoutAddr(t *testing.T) {
	rdb, err := OpenRedis(context.Background(), config.RedisConfig{})
	require.NoError(t, err)
	assert.Nil(t, rdb)
}

func TestMySQLDSNCountsMatchedRows(t *testing.T) {
	dsn, err := mysqlDSN("notify:notify@tcp(127.0.0.1:3306)/notify?multiStatements=true")
	require.NoError(t, err)
	assert.Contains(t, dsn, "clientFoundRows=true")
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "multiStatements=true")

	_, err = mysqlDSN("notify@tcp(127.0.0.1:3306")
	assert.Error(t, err)
}
