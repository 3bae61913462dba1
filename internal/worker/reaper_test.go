package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeDemoter struct {
	before time.Time
	reason string
	n      int64
	err    error
}

func (f *fakeDemoter) DemoteStale(_ context.Context, before time.Time, reason string) (int64, error) {
	f.before, f.reason = before, reason
	return f.n, f.err
}

func TestReaperSweepUsesTTL(t *testing.T) {
	store := &fakeDemoter{n: 3}
	r := NewReaper(store, 5*time.Minute, zap.NewNop())
	r.now = func() time.Time { return t0 }

	n, err := r.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, t0.Add(-5*time.Minute), store.before)
	assert.Equal(t, "stale processing", store.reason)
}

func TestReaperSweepError(t *testing.T) {
	r := NewReaper(&fakeDemoter{err: errors.New("db gone")}, 0, nil)
	_, err := r.Sweep(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db gone")
}

func TestReaperRejectsBadSchedule(t *testing.T) {
	r := NewReaper(&fakeDemoter{}, time.Minute, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.Error(t, r.Start(ctx, "not a schedule"))
	require.NoError(t, r.Start(ctx, "@every 1h"))
}
