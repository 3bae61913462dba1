package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/n3hifriends/oolshik-backend-sub000/internal/config"
	"github.com/n3hifriends/oolshik-backend-sub000/internal/http/middleware"
	"github.com/n3hifriends/oolshik-backend-sub000/internal/metrics"
	"github.com/n3hifriends/oolshik-backend-sub000/internal/model"
	"github.com/n3hifriends/oolshik-backend-sub000/internal/repository"
	"github.com/n3hifriends/oolshik-backend-sub000/internal/service/events"
)

type Emitter interface {
	Emit(ctx context.Context, ev model.EventPayload, audience []string) (events.Result, error)
}

type DeviceRegistry interface {
	Upsert(ctx context.Context, d model.Device) error
	DeactivateByTokenHash(ctx context.Context, tokenHash string) error
}

type OutboxAdmin interface {
	Get(ctx context.Context, id int64) (*model.OutboxEntry, error)
	Replay(ctx context.Context, id int64) error
}

type DeliveryLookup interface {
	ListByEvent(ctx context.Context, eventID string) ([]model.DeliveryLogEntry, error)
}

type DeliveryReports interface {
	List(ctx context.Context, f repository.DeliveryFilter) ([]model.DeliveryReport, error)
}

// Deps are the services behind the admin API. Reports may be nil when
// ClickHouse is not configured.
type Deps struct {
	Events     Emitter
	Devices    DeviceRegistry
	Outbox     OutboxAdmin
	Deliveries DeliveryLookup
	Reports    DeliveryReports
	Redis      *redis.Client
}

type Server struct {
	e   *echo.Echo
	log *zap.Logger
}

type requestValidator struct{ v *validator.Validate }

func (rv *requestValidator) Validate(i any) error { return rv.v.Struct(i) }

// NewServer wires repositories over the given connections. clickhouseDB and
// rds may be nil.
func NewServer(cfg config.Config, mysqlDB, clickhouseDB *sqlx.DB, rds *redis.Client, logger *zap.Logger) *Server {
	// repos (MySQL)
	outboxRepo := repository.NewOutboxRepository(mysqlDB)
	audienceRepo := repository.NewAudienceRepository(mysqlDB)
	candidatesRepo := repository.NewCandidatesRepository(mysqlDB)
	devicesRepo := repository.NewDevicesRepository(mysqlDB)
	deliveriesRepo := repository.NewDeliveryLogRepository(mysqlDB)

	deps := Deps{
		Events:     events.New(mysqlDB, outboxRepo, audienceRepo, candidatesRepo, nil, cfg.Kafka.Topic),
		Devices:    devicesRepo,
		Outbox:     outboxRepo,
		Deliveries: deliveriesRepo,
		Redis:      rds,
	}
	// repos (ClickHouse)
	if clickhouseDB != nil {
		deps.Reports = repository.NewCHDeliveriesRepository(clickhouseDB)
	}

	return New(cfg, deps, logger)
}

func New(cfg config.Config, deps Deps, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	// echo
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Logger.SetLevel(log.ERROR)
	e.Validator = &requestValidator{v: validator.New()}
	e.Use(
		echoMid.Recover(),
		echoMid.RequestIDWithConfig(echoMid.RequestIDConfig{Generator: uuid.NewString}),
		accessLog(logger),
	)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// health
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	// middlewares
	authMW := middleware.APIKeyMiddleware(cfg.API.Key, cfg.API.InsecureDev)
	rlMW := middleware.RateLimitMiddleware(middleware.RateLimitConfig{
		Redis:          deps.Redis,
		RPS:            cfg.RateLimit.RPS,
		KeyPrefix:      "rl:notify:",
		Window:         time.Second,
		RetryAfterHint: true,
	})

	// routes
	v1 := e.Group("/v1", authMW, rlMW)
	v1.POST("/events", emitEventHandler(deps.Events, logger))
	v1.GET("/events/:eventId/deliveries", eventDeliveriesHandler(deps.Deliveries, logger))
	v1.POST("/devices", registerDeviceHandler(deps.Devices, logger))
	v1.DELETE("/devices/:tokenHash", deactivateDeviceHandler(deps.Devices, logger))
	v1.GET("/outbox/:id", getOutboxHandler(deps.Outbox, logger))
	v1.POST("/outbox/:id/replay", replayOutboxHandler(deps.Outbox, logger))
	v1.GET("/reports/deliveries", listDeliveriesHandler(deps.Reports, logger))

	return &Server{e: e, log: logger}
}

// accessLog writes one structured line per request.
func accessLog(logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			logger.Info("http request",
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
				zap.String("method", c.Request().Method),
				zap.String("path", c.Path()),
				zap.Int("status", c.Response().Status),
				zap.Duration("latency", time.Since(start)))
			return nil
		}
	}
}

func (s *Server) Handler() http.Handler { return s.e }

func (s *Server) Start(addr string) error {
	s.log.Info("http: listening", zap.String("addr", addr))
	return s.e.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }
