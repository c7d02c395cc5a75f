package handlers

import (
	"net/http"
	"time"

	"storaged/pkg/models"
	"storaged/pkg/storage"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// HealthSource reports the state of the storage engine
type HealthSource interface {
	Health() storage.HealthReport
}

// HealthHandler serves the liveness and detailed health endpoints
type HealthHandler struct {
	source     HealthSource
	instanceID string
	state      func() string
	extras     map[string]interface{}
	startTime  time.Time
	logger     *zap.Logger
}

// NewHealthHandler creates a health handler. state may be nil.
func NewHealthHandler(source HealthSource, instanceID string, state func() string, appLogger *zap.Logger) *HealthHandler {
	if state == nil {
		state = func() string { return "" }
	}
	if appLogger == nil {
		appLogger = zap.NewNop()
	}
	return &HealthHandler{
		source:     source,
		instanceID: instanceID,
		state:      state,
		extras:     make(map[string]interface{}),
		startTime:  time.Now(),
		logger:     appLogger,
	}
}

// WithDetail adds a static entry to the detailed health metrics
func (h *HealthHandler) WithDetail(key string, value interface{}) *HealthHandler {
	h.extras[key] = value
	return h
}

// HealthCheck handles GET /health
func (h *HealthHandler) HealthCheck(c echo.Context) error {
	report := h.source.Health()
	response := models.HealthResponse{
		Status:    report.Status,
		Timestamp: time.Now(),
		Uptime:    time.Since(h.startTime),
	}
	return c.JSON(statusCode(report.Status), response)
}

// DetailedHealthCheck handles GET /health/detailed
func (h *HealthHandler) DetailedHealthCheck(c echo.Context) error {
	report := h.source.Health()
	response := models.HealthResponse{
		Status:     report.Status,
		Timestamp:  time.Now(),
		Uptime:     time.Since(h.startTime),
		InstanceID: h.instanceID,
		State:      h.state(),
		Metrics: map[string]interface{}{
			"storage": report,
		},
	}
	for k, v := range h.extras {
		response.Metrics[k] = v
	}

	if report.Status != storage.HealthStatusHealthy.String() {
		h.logger.Warn("Storage reported non-healthy status",
			zap.String("status", report.Status),
			zap.String("location", report.Location))
	}
	return c.JSON(statusCode(report.Status), response)
}

func statusCode(status string) int {
	switch status {
	case storage.HealthStatusUnhealthy.String():
		return http.StatusServiceUnavailable
	case storage.HealthStatusDegraded.String():
		return http.StatusPartialContent
	default:
		return http.StatusOK
	}
}
