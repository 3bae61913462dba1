package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/n3hifriends/oolshik-backend-sub000/internal/config"
	"github.com/n3hifriends/oolshik-backend-sub000/internal/db"
	"github.com/n3hifriends/oolshik-backend-sub000/internal/logger"
	"github.com/n3hifriends/oolshik-backend-sub000/internal/model"
	"github.com/n3hifriends/oolshik-backend-sub000/internal/repository"
	"github.com/n3hifriends/oolshik-backend-sub000/internal/service/events"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed demo devices and emit a demo CREATED event",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		log := logger.Init(cfg.Log.Level)

		sqlDB, err := db.OpenMySQL(cmd.Context(), cfg.MySQL)
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer sqlDB.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		devicesRepo := repository.NewDevicesRepository(sqlDB)
		if err := seedDevices(ctx, devicesRepo); err != nil {
			return err
		}
		log.Info("demo devices seeded", zap.Int("count", len(demoDevices)))

		svc := events.New(sqlDB,
			repository.NewOutboxRepository(sqlDB),
			repository.NewAudienceRepository(sqlDB),
			repository.NewCandidatesRepository(sqlDB),
			nil,
			cfg.Kafka.Topic,
		)
		res, err := svc.Emit(ctx, demoEvent(), []string{"helper-1", "helper-2", "helper-3"})
		if err != nil {
			return fmt.Errorf("emit demo event: %w", err)
		}

		log.Info("demo event emitted",
			zap.String("event_id", res.EventID),
			zap.Int64("outbox_id", res.OutboxID),
			zap.Int("audience", res.Audience))
		return nil
	},
}

// demo tokens are not real Expo tokens; pushes to them come back as errors
var demoDevices = []model.Device{
	{UserID: "requester-1", Token: "ExponentPushToken[demo-requester-1]", Provider: "expo", Platform: "android", Locale: "en-IN"},
	{UserID: "helper-1", Token: "ExponentPushToken[demo-helper-1]", Provider: "expo", Platform: "android", Locale: "mr-IN"},
	{UserID: "helper-2", Token: "ExponentPushToken[demo-helper-2]", Provider: "expo", Platform: "ios", Locale: "en"},
	{UserID: "helper-2", Token: "ExponentPushToken[demo-helper-2-tablet]", Provider: "expo", Platform: "ios", Locale: "en"},
	{UserID: "helper-3", Token: "ExponentPushToken[demo-helper-3]", Provider: "expo", Platform: "web", Locale: ""},
}

// seedDevices upserts by token hash, so reruns are harmless.
func seedDevices(ctx context.Context, repo *repository.DevicesRepositoryImpl) error {
	for _, d := range demoDevices {
		d.TokenHash = model.HashToken(d.Token)
		if err := repo.Upsert(ctx, d); err != nil {
			return fmt.Errorf("upsert device for %s: %w", d.UserID, err)
		}
	}
	return nil
}

func demoEvent() model.EventPayload {
	radius := 1500
	return model.EventPayload{
		EventType:       model.EventCreated,
		AggregateID:     "demo-task-1",
		OccurredAt:      time.Now().UTC(),
		ActorUserID:     "requester-1",
		RequesterUserID: "requester-1",
		NewRadiusMeters: &radius,
		OfferAmount:     decimal.NewNullDecimal(decimal.RequireFromString("150.00")),
		OfferCurrency:   "INR",
	}
}
