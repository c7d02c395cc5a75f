package handlers

import (
	"net/http"
	"sync/atomic"
	"time"

	"storaged/pkg/models"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ShutdownHandler refuses new requests once shutdown has begun
type ShutdownHandler struct {
	isShuttingDown atomic.Bool
	logger         *zap.Logger
}

// NewShutdownHandler creates a new shutdown handler
func NewShutdownHandler(logger *zap.Logger) *ShutdownHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ShutdownHandler{logger: logger}
}

// InitiateShutdown sets the shutdown flag; only the first call logs
func (sh *ShutdownHandler) InitiateShutdown() {
	if sh.isShuttingDown.CompareAndSwap(false, true) {
		sh.logger.Info("Shutdown state activated",
			zap.String("status", "All new incoming requests will be refused with HTTP 503"),
		)
	}
}

// IsShuttingDown returns true if shutdown has been initiated
func (sh *ShutdownHandler) IsShuttingDown() bool {
	return sh.isShuttingDown.Load()
}

// Middleware returns Echo middleware that immediately refuses requests during shutdown
func (sh *ShutdownHandler) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if sh.IsShuttingDown() {
				return c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{
					Error:     "Server is shutting down",
					Message:   "The server is currently shutting down and cannot accept new requests",
					Code:      "SERVER_SHUTTING_DOWN",
					Timestamp: time.Now().UTC().Format(time.RFC3339),
				})
			}
			return next(c)
		}
	}
}
