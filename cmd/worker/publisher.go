package worker

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/n3hifriends/oolshik-backend-sub000/internal/db"
	"github.com/n3hifriends/oolshik-backend-sub000/internal/kafka"
	"github.com/n3hifriends/oolshik-backend-sub000/internal/logger"
	"github.com/n3hifriends/oolshik-backend-sub000/internal/metrics"
	"github.com/n3hifriends/oolshik-backend-sub000/internal/repository"
	"github.com/n3hifriends/oolshik-backend-sub000/internal/worker"
)

var publisherCmd = &cobra.Command{
	Use:   "publisher",
	Short: "Publish pending outbox rows to Kafka",
	RunE:  runPublisher,
}

func runPublisher(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.Init(cfg.Log.Level).Named("publisher")
	defer func() { _ = log.Sync() }()

	metrics.MustRegister(prometheus.DefaultRegisterer)
	serveMetrics(log)

	dbx, err := db.OpenMySQL(cmd.Context(), cfg.MySQL)
	if err != nil {
		return fmt.Errorf("mysql connect: %w", err)
	}
	defer dbx.Close()

	producer := kafka.NewProducer(kafka.ProducerConfig{Brokers: cfg.Kafka.Brokers, Log: log})
	defer func() { _ = producer.Close() }()

	p := worker.NewOutboxPublisher(
		repository.NewOutboxRepository(dbx),
		producer,
		worker.OutboxPublisherConfig{
			Interval:     cfg.Outbox.Interval(),
			BatchSize:    cfg.Outbox.BatchSize,
			MaxAttempts:  cfg.Outbox.MaxAttempts,
			DefaultTopic: cfg.Kafka.Topic,
		},
		log,
	)

	// graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return p.Run(ctx)
}
