package kafka

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type ProducerConfig struct {
	Brokers      []string
	WriteTimeout time.Duration // default 10s
	BatchTimeout time.Duration // default 5ms
	BatchSize    int           // default 100
	Log          *zap.Logger   // receives writer errors; optional
}

// Producer writes keyed messages; the topic is chosen per message so one
// writer can serve every outbox topic.
type Producer struct {
	w *kafka.Writer
}

func NewProducer(c ProducerConfig) *Producer {
	w := &kafka.Writer{
		Addr:     kafka.TCP(c.Brokers...),
		Balancer: &kafka.Hash{},
		// WriteMessages is synchronous, so a partial batch is held for the
		// full BatchTimeout before it is flushed.
		BatchTimeout:           orDuration(c.BatchTimeout, 5*time.Millisecond),
		BatchSize:              orInt(c.BatchSize, 100),
		RequiredAcks:           kafka.RequireAll,
		WriteTimeout:           orDuration(c.WriteTimeout, 10*time.Second),
		AllowAutoTopicCreation: true,
	}
	if c.Log != nil {
		l := c.Log.Sugar()
		w.ErrorLogger = kafka.LoggerFunc(func(msg string, args ...any) { l.Warnf(msg, args...) })
	}
	return &Producer{w: w}
}

// Publish blocks until the broker acknowledges the message. Messages with
// the same key land on the same partition.
func (p *Producer) Publish(ctx context.Context, topic string, key, value []byte) error {
	return p.w.WriteMessages(ctx, Message{
		Topic: topic,
		Key:   key,
		Value: value,
	})
}

// PublishBatch writes msgs in one call and returns one error slot per
// message, nil for those the broker acknowledged.
func (p *Producer) PublishBatch(ctx context.Context, msgs []Message) []error {
	errs := make([]error, len(msgs))
	err := p.w.WriteMessages(ctx, msgs...)
	if err == nil {
		return errs
	}

	var werrs kafka.WriteErrors
	switch {
	case errors.As(err, &werrs) && len(werrs) == len(msgs):
		copy(errs, werrs)
	case ctx.Err() != nil || len(msgs) == 1:
		for i := range errs {
			errs[i] = err
		}
	default:
		// batch-level rejection, e.g. one oversized message; write one by
		// one so only the offending messages fail
		for i := range msgs {
			errs[i] = p.w.WriteMessages(ctx, msgs[i])
		}
	}
	return errs
}

func (p *Producer) Close() error { return p.w.Close() }
