package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/n3hifriends/oolshik-backend-sub000/internal/normalizer"
	"github.com/n3hifriends/oolshik-backend-sub000/internal/service/events"
)

const maxEventBody = 64 << 10

// emitMeta holds the request fields validated before the event is built.
type emitMeta struct {
	AggregateID string   `json:"aggregateId" validate:"required,max=64"`
	Audience    []string `json:"audience" validate:"max=5000,dive,required,max=64"`
}

// emitEventHandler accepts canonical or legacy event shapes plus an optional
// audience, and stores them through the outbox.
func emitEventHandler(svc Emitter, logger *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxEventBody))
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}

		raw, err := normalizer.Decode(body)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid json"})
		}
		var meta emitMeta
		if err := json.Unmarshal(body, &meta); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid json"})
		}
		meta.AggregateID = raw.AggregateID // taskId alias already applied
		if err := c.Validate(&meta); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}

		ev, err := normalizer.Normalize(raw)
		if err != nil {
			return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		}

		res, err := svc.Emit(c.Request().Context(), ev, meta.Audience)
		if err != nil {
			if errors.Is(err, events.ErrInvalidEventType) ||
				errors.Is(err, events.ErrMissingAggregate) ||
				errors.Is(err, events.ErrMissingRadius) {
				return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
			}

			logger.Error("emit failed",
				zap.String("event_type", ev.EventType.String()),
				zap.String("aggregate_id", ev.AggregateID),
				zap.Error(err))

			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}

		return c.JSON(http.StatusAccepted, map[string]any{
			"enqueued":   true,
			"event_id":   res.EventID,
			"event_type": ev.EventType.String(),
			"outbox_id":  res.OutboxID,
			"audience":   res.Audience,
		})
	}
}

// eventDeliveriesHandler lists the delivery log rows written for one event.
func eventDeliveriesHandler(deliveries DeliveryLookup, logger *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		eventID := strings.TrimSpace(c.Param("eventId"))
		if eventID == "" || len(eventID) > 64 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid event id"})
		}

		rows, err := deliveries.ListByEvent(c.Request().Context(), eventID)
		if err != nil {
			logger.Error("delivery lookup failed", zap.String("event_id", eventID), zap.Error(err))

			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"event_id": eventID,
			"count":    len(rows),
			"results":  rows,
		})
	}
}
