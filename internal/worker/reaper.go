package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const staleReason = "stale processing"

type StaleDemoter interface {
	DemoteStale(ctx context.Context, before time.Time, reason string) (int64, error)
}

// Reaper fails delivery rows left in PROCESSING by a crashed dispatch so a
// later emission of the same event can claim them again.
type Reaper struct {
	store StaleDemoter
	ttl   time.Duration
	now   func() time.Time
	log   *zap.Logger
}

func NewReaper(store StaleDemoter, ttl time.Duration, log *zap.Logger) *Reaper {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Reaper{store: store, ttl: ttl, now: time.Now, log: log}
}

func (r *Reaper) Sweep(ctx context.Context) (int64, error) {
	n, err := r.store.DemoteStale(ctx, r.now().Add(-r.ttl), staleReason)
	if err != nil {
		return 0, fmt.Errorf("demote stale deliveries: %w", err)
	}
	if n > 0 {
		r.log.Info("stale deliveries demoted", zap.Int64("rows", n), zap.Duration("ttl", r.ttl))
	}
	return n, nil
}

// Start schedules Sweep with a cron spec (e.g. "@every 1m") and stops the
// scheduler when ctx is cancelled.
func (r *Reaper) Start(ctx context.Context, spec string) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(spec, func() {
		if _, err := r.Sweep(ctx); err != nil && ctx.Err() == nil {
			r.log.Error("reaper sweep failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("reaper schedule %q: %w", spec, err)
	}
	c.Start()

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
	}()
	return nil
}
