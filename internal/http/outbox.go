package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/n3hifriends/oolshik-backend-sub000/internal/model"
	"github.com/n3hifriends/oolshik-backend-sub000/internal/repository"
)

type outboxView struct {
	ID            int64           `json:"id"`
	EventType     string          `json:"event_type"`
	AggregateID   string          `json:"aggregate_id"`
	Topic         string          `json:"topic"`
	Status        string          `json:"status"`
	AttemptCount  int             `json:"attempt_count"`
	NextAttemptAt time.Time       `json:"next_attempt_at"`
	LastError     *string         `json:"last_error,omitempty"`
	Payload       json.RawMessage `json:"payload"`
	CreatedAt     time.Time       `json:"created_at"`
}

func newOutboxView(e *model.OutboxEntry) outboxView {
	v := outboxView{
		ID:            e.ID,
		EventType:     e.EventType,
		AggregateID:   e.AggregateID,
		Topic:         e.Topic,
		Status:        e.Status.String(),
		AttemptCount:  e.AttemptCount,
		NextAttemptAt: e.NextAttemptAt,
		LastError:     e.LastError,
		CreatedAt:     e.CreatedAt,
	}
	if json.Valid(e.Payload) {
		v.Payload = e.Payload
	}
	return v
}

func parseOutboxID(c echo.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	return id, err == nil && id > 0
}

func getOutboxHandler(outbox OutboxAdmin, logger *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, ok := parseOutboxID(c)
		if !ok {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid id"})
		}

		e, err := outbox.Get(c.Request().Context(), id)
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "not found"})
		}
		if err != nil {
			logger.Error("outbox get failed", zap.Int64("outbox_id", id), zap.Error(err))

			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}

		return c.JSON(http.StatusOK, newOutboxView(e))
	}
}

// replayOutboxHandler puts a DEAD outbox row back in the publish queue.
func replayOutboxHandler(outbox OutboxAdmin, logger *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, ok := parseOutboxID(c)
		if !ok {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid id"})
		}

		err := outbox.Replay(c.Request().Context(), id)
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "no dead outbox row with this id"})
		}
		if err != nil {
			logger.Error("outbox replay failed", zap.Int64("outbox_id", id), zap.Error(err))

			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}

		logger.Info("outbox row replayed", zap.Int64("outbox_id", id))
		return c.JSON(http.StatusAccepted, map[string]any{"replayed": true, "id": id})
	}
}
