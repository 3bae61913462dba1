package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/n3hifriends/oolshik-backend-sub000/internal/kafka"
	"github.com/n3hifriends/oolshik-backend-sub000/internal/metrics"
	"github.com/n3hifriends/oolshik-backend-sub000/internal/model"
	"github.com/n3hifriends/oolshik-backend-sub000/internal/normalizer"
)

type Fetcher interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, m kafka.Message) error
}

type Enqueuer interface {
	Enqueue(ctx context.Context, ev model.EventPayload)
}

// Notifier consumes notification events, normalizes them and hands them to
// the coalescer. The offset is committed once the event is buffered, so a
// crash inside the coalescing window loses that event.
type Notifier struct {
	consumer  Fetcher
	coalescer Enqueuer
	log       *zap.Logger
}

func NewNotifier(consumer Fetcher, coalescer Enqueuer, log *zap.Logger) *Notifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Notifier{consumer: consumer, coalescer: coalescer, log: log}
}

// Run blocks until ctx is cancelled.
func (n *Notifier) Run(ctx context.Context) error {
	n.log.Info("notifier started")
	for {
		m, err := n.consumer.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			n.log.Warn("kafka fetch failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(200 * time.Millisecond):
			}
			continue
		}

		n.Handle(ctx, m)

		if err := n.consumer.Commit(ctx, m); err != nil && ctx.Err() == nil {
			n.log.Warn("kafka commit failed",
				zap.String("topic", m.Topic),
				zap.Int("partition", m.Partition),
				zap.Int64("offset", m.Offset),
				zap.Error(err))
		}
	}
}

// Handle decodes and normalizes one message. Malformed or unknown events are
// logged and dropped.
func (n *Notifier) Handle(ctx context.Context, m kafka.Message) {
	metrics.EventsTotal.WithLabelValues("received").Inc()

	raw, err := normalizer.Decode(m.Value)
	if err != nil {
		n.drop(m, "", err)
		return
	}
	ev, err := normalizer.Normalize(raw)
	if err != nil {
		n.drop(m, raw.Type, err)
		return
	}
	if ev.AggregateID == "" && len(m.Key) > 0 {
		ev.AggregateID = string(m.Key)
	}

	n.coalescer.Enqueue(ctx, ev)
}

func (n *Notifier) drop(m kafka.Message, typ string, err error) {
	metrics.EventsTotal.WithLabelValues("dropped").Inc()
	n.log.Warn("event dropped",
		zap.String("event_type", typ),
		zap.ByteString("key", m.Key),
		zap.Int64("offset", m.Offset),
		zap.Error(err))
}
