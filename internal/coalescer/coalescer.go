// Package coalescer collapses bursts of events for the same task into the
// single highest-priority event seen within a time window.
//
// State is process-local. Several consumer instances without partition
// affinity by aggregate id each hold their own window and under-coalesce;
// the dispatcher's idempotency keys still prevent duplicate sends.
package coalescer

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/n3hifriends/oolshik-backend-sub000/internal/metrics"
	"github.com/n3hifriends/oolshik-backend-sub000/internal/model"
)

// Dispatcher receives coalesced events.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev model.EventPayload)
}

type entry struct {
	payload     model.EventPayload
	firstSeenAt time.Time
}

type Coalescer struct {
	mu      sync.Mutex
	pending map[string]*entry

	dispatch      Dispatcher
	window        time.Duration
	flushInterval time.Duration
	now           func() time.Time
	log           *zap.Logger
}

func New(d Dispatcher, window, flushInterval time.Duration, log *zap.Logger) *Coalescer {
	if window <= 0 {
		window = 10 * time.Second
	}
	if flushInterval <= 0 {
		flushInterval = time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Coalescer{
		pending:       make(map[string]*entry),
		dispatch:      d,
		window:        window,
		flushInterval: flushInterval,
		now:           time.Now,
		log:           log,
	}
}

// Enqueue buffers ev under its aggregate id. Events without one are
// dispatched immediately on the caller's goroutine.
func (c *Coalescer) Enqueue(ctx context.Context, ev model.EventPayload) {
	if ev.AggregateID == "" {
		metrics.EventsTotal.WithLabelValues("dispatched").Inc()
		c.dispatch.Dispatch(ctx, ev)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	held, ok := c.pending[ev.AggregateID]
	if !ok {
		c.pending[ev.AggregateID] = &entry{payload: ev, firstSeenAt: c.now()}
		metrics.CoalescerPending.Set(float64(len(c.pending)))
		return
	}

	metrics.EventsTotal.WithLabelValues("coalesced").Inc()
	if ev.EventType.Priority() < held.payload.EventType.Priority() {
		c.log.Debug("coalescer kept higher priority event",
			zap.String("aggregate_id", ev.AggregateID),
			zap.String("held", held.payload.EventType.String()),
			zap.String("incoming", ev.EventType.String()))
		return
	}
	// New pointer so a flush holding the old one cannot remove this update.
	c.pending[ev.AggregateID] = &entry{payload: ev, firstSeenAt: held.firstSeenAt}
}

// Flush dispatches every entry whose window has elapsed and returns how many
// were dispatched.
func (c *Coalescer) Flush(ctx context.Context) int {
	return c.flush(ctx, false)
}

// Drain dispatches everything regardless of age (used at shutdown).
func (c *Coalescer) Drain(ctx context.Context) int {
	return c.flush(ctx, true)
}

// Pending returns the number of held aggregates.
func (c *Coalescer) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

type due struct {
	key string
	e   *entry
}

func (c *Coalescer) flush(ctx context.Context, all bool) int {
	now := c.now()

	c.mu.Lock()
	var ready []due
	for k, e := range c.pending {
		if all || now.Sub(e.firstSeenAt) >= c.window {
			ready = append(ready, due{key: k, e: e})
		}
	}
	c.mu.Unlock()

	n := 0
	for _, d := range ready {
		if !c.removeIf(d.key, d.e) {
			// superseded since the snapshot; the replacement keeps the
			// original firstSeenAt and goes out on the next flush
			continue
		}
		metrics.EventsTotal.WithLabelValues("dispatched").Inc()
		c.dispatch.Dispatch(ctx, d.e.payload)
		n++
	}
	return n
}

// removeIf deletes key only if it still maps to exactly e.
func (c *Coalescer) removeIf(key string, e *entry) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	cur, ok := c.pending[key]
	if !ok || cur != e {
		return false
	}
	delete(c.pending, key)
	metrics.CoalescerPending.Set(float64(len(c.pending)))
	return true
}

// Run flushes on a fixed interval until ctx is cancelled, then drains.
func (c *Coalescer) Run(ctx context.Context) {
	tick := time.NewTicker(c.flushInterval)
	defer tick.Stop()

	c.log.Info("coalescer started",
		zap.Duration("window", c.window),
		zap.Duration("flush_interval", c.flushInterval))

	for {
		select {
		case <-ctx.Done():
			// dispatch with a fresh context; ctx is already cancelled
			if n := c.Drain(context.WithoutCancel(ctx)); n > 0 {
				c.log.Info("coalescer drained on shutdown", zap.Int("events", n))
			}
			return
		case <-tick.C:
			c.Flush(ctx)
		}
	}
}
