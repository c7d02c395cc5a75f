package middleware

import (
	"net/http"
	"time"

	"storaged/pkg/config"
	"storaged/pkg/models"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// SetupEchoRateLimiter configures the built-in Echo rate limiter middleware.
// Clients are identified by their real IP; health probes are never limited.
func SetupEchoRateLimiter(cfg *config.Config) echo.MiddlewareFunc {
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Skipper: func(c echo.Context) bool {
			return publicPaths[c.Request().URL.Path]
		},
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(cfg.EchoRateLimit),
				Burst:     cfg.EchoBurstLimit,
				ExpiresIn: cfg.EchoRateLimitExpiresIn,
			},
		),
		IdentifierExtractor: func(ctx echo.Context) (string, error) {
			return ctx.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return reject(c, http.StatusTooManyRequests, "RATE_LIMIT_ERROR", "Unable to identify client for rate limiting")
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return reject(c, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests, retry later")
		},
	})
}

// reject writes the error body shared by every refusing middleware
func reject(c echo.Context, status int, code, message string) error {
	return c.JSON(status, models.ErrorResponse{
		Error:     http.StatusText(status),
		Message:   message,
		Code:      code,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
