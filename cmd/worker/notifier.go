package worker

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/n3hifriends/oolshik-backend-sub000/internal/coalescer"
	"github.com/n3hifriends/oolshik-backend-sub000/internal/db"
	"github.com/n3hifriends/oolshik-backend-sub000/internal/dispatcher"
	"github.com/n3hifriends/oolshik-backend-sub000/internal/kafka"
	"github.com/n3hifriends/oolshik-backend-sub000/internal/logger"
	"github.com/n3hifriends/oolshik-backend-sub000/internal/metrics"
	"github.com/n3hifriends/oolshik-backend-sub000/internal/recipients"
	"github.com/n3hifriends/oolshik-backend-sub000/internal/repository"
	"github.com/n3hifriends/oolshik-backend-sub000/internal/templates"
	"github.com/n3hifriends/oolshik-backend-sub000/internal/worker"
)

var notifierCmd = &cobra.Command{
	Use:   "notifier",
	Short: "Consume task events, coalesce them and send push notifications",
	RunE:  runNotifier,
}

func runNotifier(cmd *cobra.Command, args []string) error {
	// 1) config + logging
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.Init(cfg.Log.Level).Named("notifier")
	defer func() { _ = log.Sync() }()

	metrics.MustRegister(prometheus.DefaultRegisterer)
	serveMetrics(log)

	// 2) MySQL
	dbx, err := db.OpenMySQL(cmd.Context(), cfg.MySQL)
	if err != nil {
		return fmt.Errorf("mysql connect: %w", err)
	}
	defer dbx.Close()

	// 3) repositories
	deliveriesRepo := repository.NewDeliveryLogRepository(dbx)
	devicesRepo := repository.NewDevicesRepository(dbx)
	candidatesRepo := repository.NewCandidatesRepository(dbx)
	audienceRepo := repository.NewAudienceRepository(dbx)

	// ClickHouse reports are optional
	var reports dispatcher.ReportSink
	if strings.TrimSpace(cfg.ClickHouse.DSN) != "" {
		chDB, err := db.OpenClickHouse(cmd.Context(), cfg.ClickHouse)
		if err != nil {
			return fmt.Errorf("clickhouse connect: %w", err)
		}
		defer func() { _ = chDB.Close() }()
		reports = repository.NewCHDeliveriesRepository(chDB)
	}

	// 4) provider -> dispatcher -> coalescer
	provider := dispatcher.NewHTTPProvider(dispatcher.ProviderConfig{
		Name:          cfg.Push.Name,
		URL:           strings.TrimRight(cfg.Push.BaseURL, "/"),
		AccessToken:   cfg.Push.AccessToken,
		TimeoutMs:     cfg.Push.TimeoutMs,
		RatePerSec:    cfg.Push.RatePerSec,
		Burst:         cfg.Push.Burst,
		FailThreshold: cfg.Push.Breaker.FailThreshold,
		OpenForMs:     cfg.Push.Breaker.OpenForMs,
	}, log)

	catalog, err := templates.New()
	if err != nil {
		return err
	}

	disp := dispatcher.NewDispatcher(dispatcher.Deps{
		Resolver:   recipients.NewResolver(audienceRepo, candidatesRepo),
		Deliveries: deliveriesRepo,
		Devices:    devicesRepo,
		Candidates: candidatesRepo,
		Catalog:    catalog,
		Provider:   provider,
		Reports:    reports,
	}, dispatcher.Config{
		BatchSize:       cfg.Dispatcher.BatchSize,
		MaxSendAttempts: cfg.Dispatcher.MaxSendAttempts,
	}, log)

	co := coalescer.New(disp, cfg.Coalescer.Window(), cfg.Coalescer.FlushInterval, log)

	// 5) kafka consumer
	consumer := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:        cfg.Kafka.Brokers,
		Topic:          cfg.Kafka.Topic,
		GroupID:        cfg.Kafka.GroupID,
		MinBytes:       cfg.Kafka.MinBytes,
		MaxBytes:       cfg.Kafka.MaxBytes,
		CommitInterval: time.Duration(cfg.Kafka.CommitInterval) * time.Millisecond,
		Log:            log,
	})
	defer consumer.Close()

	// 6) graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := worker.NewReaper(deliveriesRepo, cfg.Delivery.ProcessingTTL, log).
		Start(ctx, cfg.Delivery.ReaperSchedule); err != nil {
		return err
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		co.Run(ctx)
	}()

	log.Info("notifier running",
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("topic", cfg.Kafka.Topic),
		zap.String("group", cfg.Kafka.GroupID),
		zap.Duration("window", cfg.Coalescer.Window()))

	err = worker.NewNotifier(consumer, co, log).Run(ctx)

	// the coalescer drains what it still holds before we close the DB
	wg.Wait()
	return err
}
