package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/n3hifriends/oolshik-backend-sub000/internal/model"
)

type recordingExec struct {
	ids    []int64
	failID int64
}

func (e *recordingExec) ExecContext(_ context.Context, _ string, args ...any) (sql.Result, error) {
	id := args[len(args)-1].(int64)
	if id == e.failID {
		return nil, errors.New("lock wait timeout exceeded")
	}
	e.ids = append(e.ids, id)
	return driver.RowsAffected(1), nil
}

func TestApplyOutboxUpdatesContinuesPastFailedRow(t *testing.T) {
	at := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	rows := []model.OutboxEntry{{ID: 1}, {ID: 2}, {ID: 3}}
	updates := []model.OutboxUpdate{
		{Status: model.OutboxPublished, AttemptCount: 1, NextAttemptAt: at},
		{Status: model.OutboxPublished, AttemptCount: 1, NextAttemptAt: at},
		{Status: model.OutboxPublished, AttemptCount: 1, NextAttemptAt: at},
	}
	ex := &recordingExec{failID: 2}

	n, err := applyOutboxUpdates(context.Background(), ex, rows, updates)

	assert.Equal(t, 2, n)
	assert.Equal(t, []int64{1, 3}, ex.ids, "rows after the failed one are still written")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "update outbox row 2")
}

func TestApplyOutboxUpdatesIgnoresMissingUpdates(t *testing.T) {
	rows := []model.OutboxEntry{{ID: 1}, {ID: 2}}
	ex := &recordingExec{}

	n, err := applyOutboxUpdates(context.Background(), ex, rows, []model.OutboxUpdate{{Status: model.OutboxPublished}})

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []int64{1}, ex.ids)
}
