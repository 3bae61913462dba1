package http

import (
	"net/http"
	"strconv"
	"strings"

	echo "github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/n3hifriends/oolshik-backend-sub000/internal/model"
	"github.com/n3hifriends/oolshik-backend-sub000/internal/repository"
)

func listDeliveriesHandler(reports DeliveryReports, logger *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		if reports == nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "reports not configured"})
		}

		f := repository.DeliveryFilter{
			TaskID:          strings.TrimSpace(c.QueryParam("task_id")),
			RecipientUserID: strings.TrimSpace(c.QueryParam("recipient")),
			Limit:           50,
		}
		if v := c.QueryParam("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
				f.Limit = n
			}
		}
		if v := c.QueryParam("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				f.Offset = n
			}
		}
		if raw := strings.TrimSpace(c.QueryParam("status")); raw != "" {
			if st := model.DeliveryStatus(strings.ToUpper(raw)); st.Valid() {
				f.Status = st
			}
		}
		if raw := c.QueryParam("event_type"); raw != "" {
			if t, ok := model.ParseEventType(raw); ok {
				f.EventType = t
			}
		}

		rows, err := reports.List(c.Request().Context(), f)
		if err != nil {
			logger.Error("clickhouse list failed", zap.Error(err))

			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "query failed"})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"limit":   f.Limit,
			"offset":  f.Offset,
			"count":   len(rows),
			"results": rows,
		})
	}
}
