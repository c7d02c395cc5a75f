package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// EchoAPIKeyMiddleware provides API key authentication for Echo.
// Health endpoints are always reachable.
func EchoAPIKeyMiddleware(expectedAPIKey string, appLogger *zap.Logger) echo.MiddlewareFunc {
	expected := []byte(expectedAPIKey)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path
			if publicPaths[path] {
				return next(c)
			}

			apiKey := c.Request().Header.Get("X-API-Key")
			if apiKey == "" {
				apiKey = c.QueryParam("api_key")
			}

			if subtle.ConstantTimeCompare([]byte(apiKey), expected) != 1 {
				appLogger.Warn("Unauthorized API access attempt",
					zap.String("ip", c.RealIP()),
					zap.String("path", path),
					zap.String("user_agent", c.Request().UserAgent()),
					zap.String("method", c.Request().Method))
				return reject(c, http.StatusUnauthorized, "INVALID_API_KEY", "A valid API key is required")
			}

			return next(c)
		}
	}
}
