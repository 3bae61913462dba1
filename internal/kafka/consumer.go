package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type ConsumerConfig struct {
	Brokers        []string
	Topic          string
	GroupID        string
	MinBytes       int           // default 1KB
	MaxBytes       int           // default 10MB
	CommitInterval time.Duration // 0 commits synchronously on each Commit
	MaxWait        time.Duration // default 250ms
	Log            *zap.Logger   // receives reader errors; optional
}

// Consumer reads the notification topic as one member of a consumer group.
// Offsets are committed explicitly by the caller after each message.
type Consumer struct {
	r *kafka.Reader
}

type Message = kafka.Message

func NewConsumer(c ConsumerConfig) *Consumer {
	rc := kafka.ReaderConfig{
		Brokers:        c.Brokers,
		GroupID:        c.GroupID,
		Topic:          c.Topic,
		MinBytes:       orInt(c.MinBytes, 1<<10),
		MaxBytes:       orInt(c.MaxBytes, 10<<20),
		CommitInterval: c.CommitInterval,
		MaxWait:        orDuration(c.MaxWait, 250*time.Millisecond),
		// a new group starts from the oldest retained event
		StartOffset: kafka.FirstOffset,
	}
	if c.Log != nil {
		l := c.Log.Sugar()
		rc.ErrorLogger = kafka.LoggerFunc(func(msg string, args ...any) { l.Warnf(msg, args...) })
	}
	return &Consumer{r: kafka.NewReader(rc)}
}

// Fetch blocks for the next message without committing it.
func (c *Consumer) Fetch(ctx context.Context) (Message, error) {
	return c.r.FetchMessage(ctx)
}

func (c *Consumer) Commit(ctx context.Context, m Message) error {
	return c.r.CommitMessages(ctx, m)
}

func (c *Consumer) Close() error { return c.r.Close() }

func orInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func orDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}
