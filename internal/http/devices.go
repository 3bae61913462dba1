package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/n3hifriends/oolshik-backend-sub000/internal/model"
	"github.com/n3hifriends/oolshik-backend-sub000/internal/repository"
)

type registerDeviceReq struct {
	UserID   string `json:"user_id"  validate:"required,max=64"`
	Token    string `json:"token"    validate:"required,max=255"`
	Provider string `json:"provider" validate:"omitempty,oneof=expo"`
	Platform string `json:"platform" validate:"required,oneof=ios android web"`
	Locale   string `json:"locale"   validate:"omitempty,max=16"`
}

func registerDeviceHandler(devices DeviceRegistry, logger *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req registerDeviceReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}

		req.UserID = strings.TrimSpace(req.UserID)
		req.Token = strings.TrimSpace(req.Token)
		req.Platform = strings.ToLower(strings.TrimSpace(req.Platform))
		if req.Provider == "" {
			req.Provider = "expo"
		}

		if err := c.Validate(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}

		d := model.Device{
			UserID:    req.UserID,
			Token:     req.Token,
			TokenHash: model.HashToken(req.Token),
			Provider:  req.Provider,
			Platform:  req.Platform,
			Locale:    strings.TrimSpace(req.Locale),
			Active:    true,
		}
		if err := devices.Upsert(c.Request().Context(), d); err != nil {
			logger.Error("device upsert failed", zap.String("user_id", d.UserID), zap.Error(err))

			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"user_id":    d.UserID,
			"token_hash": d.TokenHash,
			"active":     true,
		})
	}
}

type tokenHashParam struct {
	TokenHash string `param:"tokenHash" validate:"required,len=64,hexadecimal"`
}

func deactivateDeviceHandler(devices DeviceRegistry, logger *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		p := tokenHashParam{TokenHash: strings.ToLower(c.Param("tokenHash"))}
		if err := c.Validate(&p); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid token hash"})
		}

		err := devices.DeactivateByTokenHash(c.Request().Context(), p.TokenHash)
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "not found"})
		}
		if err != nil {
			logger.Error("device deactivate failed", zap.String("token_hash", p.TokenHash), zap.Error(err))

			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}

		return c.NoContent(http.StatusNoContent)
	}
}
