package handlers

import (
	"net/http"
	"time"

	"storaged/pkg/models"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// GCRunner runs one value-log garbage collection pass
type GCRunner interface {
	RunGC() error
}

// AdminHandler serves operator endpoints under /admin
type AdminHandler struct {
	gc              GCRunner
	requestShutdown func()
	logger          *zap.Logger
}

// NewAdminHandler creates an admin handler. gc and requestShutdown may be
// nil, in which case the matching endpoint answers 501.
func NewAdminHandler(gc GCRunner, requestShutdown func(), appLogger *zap.Logger) *AdminHandler {
	if appLogger == nil {
		appLogger = zap.NewNop()
	}
	return &AdminHandler{gc: gc, requestShutdown: requestShutdown, logger: appLogger}
}

// TriggerGC handles POST /admin/gc
func (h *AdminHandler) TriggerGC(c echo.Context) error {
	if h.gc == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "Manual garbage collection is not available")
	}

	requestID := c.Response().Header().Get(echo.HeaderXRequestID)
	h.logger.Info("Manual GC operation triggered",
		zap.String("client_ip", c.RealIP()),
		zap.String("request_id", requestID))

	startTime := time.Now()
	if err := h.gc.RunGC(); err != nil {
		h.logger.Error("Failed to run GC", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, models.ActionResponse{
			Success: false,
			Message: "Failed to run garbage collection",
			Data:    map[string]string{"error": err.Error()},
		})
	}

	duration := time.Since(startTime)
	h.logger.Info("Manual GC operation completed",
		zap.String("request_id", requestID),
		zap.Duration("duration", duration))

	return c.JSON(http.StatusOK, models.ActionResponse{
		Success: true,
		Message: "Garbage collection completed",
		Data:    map[string]string{"duration": duration.String()},
	})
}

// RequestShutdown handles POST /admin/shutdown. The response is written
// before teardown begins.
func (h *AdminHandler) RequestShutdown(c echo.Context) error {
	if h.requestShutdown == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "Shutdown by request is not available")
	}

	h.logger.Info("Shutdown requested over HTTP",
		zap.String("client_ip", c.RealIP()),
		zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)))

	// Teardown waits for in-flight requests, this one included
	go h.requestShutdown()

	return c.JSON(http.StatusAccepted, models.ActionResponse{
		Success: true,
		Message: "Shutdown initiated",
	})
}
