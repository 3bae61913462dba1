package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	echo "github.com/labstack/echo/v4"
)

const ctxClientID = "client_id"

// ClientIDFromCtx returns the caller identity set by APIKeyMiddleware.
func ClientIDFromCtx(c echo.Context) (string, bool) {
	id, ok := c.Get(ctxClientID).(string)
	return id, ok && id != ""
}

// APIKeyMiddleware authenticates requests using the X-API-Key header against
// a single configured key. With no key configured every request is rejected
// unless allowAnonymous is set (local dev).
// The caller identity stored in the context is a short fingerprint of the
// key, never the key itself.
func APIKeyMiddleware(apiKey string, allowAnonymous bool) echo.MiddlewareFunc {
	want := []byte(strings.TrimSpace(apiKey))
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if len(want) == 0 {
				if !allowAnonymous {
					return c.JSON(http.StatusUnauthorized, map[string]string{"error": "api key not configured"})
				}
				c.Set(ctxClientID, "anonymous:"+c.RealIP())
				return next(c)
			}
			key := strings.TrimSpace(c.Request().Header.Get("X-API-Key"))
			if key == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing api key"})
			}
			if subtle.ConstantTimeCompare([]byte(key), want) != 1 {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid api key"})
			}
			c.Set(ctxClientID, fingerprint(key))
			return next(c)
		}
	}
}

func fingerprint(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:8])
}
