package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/n3hifriends/oolshik-backend-sub000/internal/kafka"
	"github.com/n3hifriends/oolshik-backend-sub000/internal/metrics"
	"github.com/n3hifriends/oolshik-backend-sub000/internal/model"
	"github.com/n3hifriends/oolshik-backend-sub000/internal/util"
)

const (
	minBackoff   = time.Second
	maxBackoff   = 60 * time.Second
	maxErrorSize = 512
)

var errNoPublishResult = errors.New("publisher returned no result for message")

// OutboxStore locks due rows and persists the updates fn returns, one per
// row and in the same order.
type OutboxStore interface {
	ProcessDue(ctx context.Context, now time.Time, limit int, fn func([]model.OutboxEntry) []model.OutboxUpdate) (int, error)
}

// Publisher writes a batch and returns one error slot per message.
type Publisher interface {
	PublishBatch(ctx context.Context, msgs []kafka.Message) []error
}

type OutboxPublisherConfig struct {
	Interval     time.Duration // default 2s
	BatchSize    int           // default 50
	MaxAttempts  int           // default 8
	DefaultTopic string        // used for rows without a topic
}

// OutboxPublisher drains the outbox to the bus. Safe to run on several
// instances: rows locked by one publisher are skipped by the others.
type OutboxPublisher struct {
	store OutboxStore
	pub   Publisher
	cfg   OutboxPublisherConfig
	now   func() time.Time
	log   *zap.Logger
}

func NewOutboxPublisher(store OutboxStore, pub Publisher, cfg OutboxPublisherConfig, log *zap.Logger) *OutboxPublisher {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 8
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &OutboxPublisher{store: store, pub: pub, cfg: cfg, now: time.Now, log: log}
}

// Backoff is 2^attempt seconds clamped to [1s, 60s].
func Backoff(attempt int) time.Duration {
	if attempt <= 0 {
		return minBackoff
	}
	if attempt >= 6 { // 2^6s already exceeds the cap
		return maxBackoff
	}
	d := time.Duration(1<<attempt) * time.Second
	return min(max(d, minBackoff), maxBackoff)
}

// PublishPending processes one batch and returns the number of rows touched.
func (p *OutboxPublisher) PublishPending(ctx context.Context) (int, error) {
	now := p.now()
	return p.store.ProcessDue(ctx, now, p.cfg.BatchSize, func(rows []model.OutboxEntry) []model.OutboxUpdate {
		return p.publishBatch(ctx, now, rows)
	})
}

func (p *OutboxPublisher) publishBatch(ctx context.Context, now time.Time, rows []model.OutboxEntry) []model.OutboxUpdate {
	if len(rows) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, len(rows))
	for i, e := range rows {
		topic := e.Topic
		if topic == "" {
			topic = p.cfg.DefaultTopic
		}
		msgs[i] = kafka.Message{Topic: topic, Key: []byte(e.AggregateID), Value: e.Payload}
	}

	errs := p.pub.PublishBatch(ctx, msgs)
	updates := make([]model.OutboxUpdate, len(rows))
	for i, e := range rows {
		err := errNoPublishResult
		if i < len(errs) {
			err = errs[i]
		}
		updates[i] = p.outcome(now, e, err)
	}
	return updates
}

func (p *OutboxPublisher) outcome(now time.Time, e model.OutboxEntry, err error) model.OutboxUpdate {
	attempt := e.AttemptCount + 1
	if err == nil {
		metrics.OutboxTotal.WithLabelValues("published").Inc()
		return model.OutboxUpdate{
			Status:        model.OutboxPublished,
			AttemptCount:  attempt,
			NextAttemptAt: e.NextAttemptAt,
		}
	}

	msg := util.Truncate(err.Error(), maxErrorSize)
	fields := []zap.Field{
		zap.Int64("outbox_id", e.ID),
		zap.String("event_type", e.EventType),
		zap.String("aggregate_id", e.AggregateID),
		zap.Int("attempt", attempt),
		zap.Error(err),
	}

	if attempt >= p.cfg.MaxAttempts {
		metrics.OutboxTotal.WithLabelValues("dead").Inc()
		p.log.Error("outbox row is dead", fields...)
		return model.OutboxUpdate{
			Status:        model.OutboxDead,
			AttemptCount:  attempt,
			NextAttemptAt: e.NextAttemptAt,
			LastError:     &msg,
		}
	}

	next := now.Add(Backoff(attempt))
	metrics.OutboxTotal.WithLabelValues("failed").Inc()
	p.log.Warn("outbox publish failed", append(fields, zap.Time("next_attempt_at", next))...)
	return model.OutboxUpdate{
		Status:        model.OutboxFailed,
		AttemptCount:  attempt,
		NextAttemptAt: next,
		LastError:     &msg,
	}
}

// Run polls on a fixed delay until ctx is cancelled.
func (p *OutboxPublisher) Run(ctx context.Context) error {
	p.log.Info("outbox publisher started",
		zap.Duration("interval", p.cfg.Interval),
		zap.Int("batch_size", p.cfg.BatchSize),
		zap.Int("max_attempts", p.cfg.MaxAttempts))

	t := time.NewTimer(p.cfg.Interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			n, err := p.PublishPending(ctx)
			if err != nil && ctx.Err() == nil {
				p.log.Error("outbox batch failed", zap.Error(err))
			} else if n > 0 {
				p.log.Debug("outbox batch processed", zap.Int("rows", n))
			}
			t.Reset(p.cfg.Interval)
		}
	}
}
