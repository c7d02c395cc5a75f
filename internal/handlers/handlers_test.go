package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storaged/pkg/models"
	"storaged/pkg/storage"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeSource struct {
	report storage.HealthReport
}

func (f *fakeSource) Health() storage.HealthReport { return f.report }

type fakeGC struct {
	err   error
	calls int
}

func (f *fakeGC) RunGC() error {
	f.calls++
	return f.err
}

func do(e *echo.Echo, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestShutdownMiddleware(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	sh := NewShutdownHandler(zap.New(core))

	e := echo.New()
	e.Use(sh.Middleware())
	e.GET("/health", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/health").Code)

	sh.InitiateShutdown()
	sh.InitiateShutdown()
	assert.True(t, sh.IsShuttingDown())
	assert.Equal(t, 1, logs.FilterMessage("Shutdown state activated").Len())

	rec := do(e, http.MethodGet, "/health")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body models.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "SERVER_SHUTTING_DOWN", body.Code)
}

func TestHealthEndpoints(t *testing.T) {
	source := &fakeSource{report: storage.HealthReport{Status: "healthy", Location: "/data"}}
	h := NewHealthHandler(source, "instance-1", func() string { return "RUNNING" }, nil).
		WithDetail("variant", "community")

	e := echo.New()
	e.GET("/health", h.HealthCheck)
	e.GET("/health/detailed", h.DetailedHealthCheck)

	rec := do(e, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(e, http.MethodGet, "/health/detailed")
	require.Equal(t, http.StatusOK, rec.Code)
	var body models.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "instance-1", body.InstanceID)
	assert.Equal(t, "RUNNING", body.State)
	assert.Equal(t, "community", body.Metrics["variant"])
	assert.Contains(t, body.Metrics, "storage")

	source.report.Status = "degraded"
	assert.Equal(t, http.StatusPartialContent, do(e, http.MethodGet, "/health").Code)

	source.report.Status = "unhealthy"
	assert.Equal(t, http.StatusServiceUnavailable, do(e, http.MethodGet, "/health/detailed").Code)
}

func TestAdminTriggerGC(t *testing.T) {
	gc := &fakeGC{}
	h := NewAdminHandler(gc, nil, nil)

	e := echo.New()
	e.POST("/admin/gc", h.TriggerGC)
	e.POST("/admin/shutdown", h.RequestShutdown)

	assert.Equal(t, http.StatusOK, do(e, http.MethodPost, "/admin/gc").Code)

	gc.err = errors.New("disk on fire")
	assert.Equal(t, http.StatusInternalServerError, do(e, http.MethodPost, "/admin/gc").Code)
	assert.Equal(t, 2, gc.calls)

	assert.Equal(t, http.StatusNotImplemented, do(e, http.MethodPost, "/admin/shutdown").Code)
}

func TestAdminEndpointsDisabled(t *testing.T) {
	h := NewAdminHandler(nil, nil, nil)

	e := echo.New()
	e.POST("/admin/gc", h.TriggerGC)
	e.POST("/admin/shutdown", h.RequestShutdown)

	assert.Equal(t, http.StatusNotImplemented, do(e, http.MethodPost, "/admin/gc").Code)
	assert.Equal(t, http.StatusNotImplemented, do(e, http.MethodPost, "/admin/shutdown").Code)
}

func TestAdminRequestShutdown(t *testing.T) {
	requested := make(chan struct{})
	h := NewAdminHandler(&fakeGC{}, func() { close(requested) }, nil)

	e := echo.New()
	e.POST("/admin/shutdown", h.RequestShutdown)

	assert.Equal(t, http.StatusAccepted, do(e, http.MethodPost, "/admin/shutdown").Code)
	select {
	case <-requested:
	case <-time.After(time.Second):
		t.Fatal("shutdown was not requested")
	}
}
