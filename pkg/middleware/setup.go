package middleware

import (
	"storaged/pkg/config"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// publicPaths bypass the IP allowlist and API key checks so probes keep working
var publicPaths = map[string]bool{
	"/health":          true,
	"/health/detailed": true,
}

// SetupMiddleware configures the HTTP middleware stack.
//
// Order matters: cheap rejections (rate limit, IP allowlist) run before
// recovery, headers, compression and CORS; authentication runs last and
// only when the selected variant asks for it.
//
// Configuration dependencies:
//   - ECHO_RATE_LIMIT: enables the per-IP token bucket
//   - ALLOWED_IPS: enables IP allowlisting (empty = disabled)
//   - ENABLE_COMPRESSION: enables gzip
//   - ENABLE_REQUEST_LOGGING: structured access log
//   - ALLOWED_ORIGINS: CORS policy
func SetupMiddleware(e *echo.Echo, cfg *config.Config, appLogger *zap.Logger, withAuth bool) {
	e.Use(middleware.RequestID())

	if cfg.EnableRequestLogging {
		e.Use(RequestLogger(appLogger.Named("access")))
	}

	if cfg.EchoRateLimit > 0 {
		e.Use(SetupEchoRateLimiter(cfg))
	}

	if len(cfg.AllowedIPs) > 0 {
		ipAllowlist := NewIPAllowlistMiddleware(cfg.AllowedIPs, appLogger)
		e.Use(ipAllowlist.Middleware())
	}

	e.Use(middleware.Recover())
	e.Use(middleware.Secure())

	if cfg.EnableCompression {
		e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
			Level: cfg.CompressionLevel,
		}))
	}

	e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Timeout: cfg.RequestTimeout,
	}))

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{echo.GET, echo.POST, echo.OPTIONS},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if withAuth {
		e.Use(EchoAPIKeyMiddleware(cfg.APIKey, appLogger))
	}
}

// RequestLogger writes one structured line per request
func RequestLogger(appLogger *zap.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("remote_ip", v.RemoteIP),
				zap.String("request_id", v.RequestID),
			}
			if v.Error != nil {
				appLogger.Warn("Request failed", append(fields, zap.Error(v.Error))...)
				return nil
			}
			appLogger.Info("Request", fields...)
			return nil
		},
	})
}
