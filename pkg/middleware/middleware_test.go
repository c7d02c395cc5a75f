package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storaged/pkg/config"
	"storaged/pkg/models"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func serve(e *echo.Echo, path, remoteAddr string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = remoteAddr
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestIPAllowlist(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	allowlist := NewIPAllowlistMiddleware([]string{"10.0.0.0/8", " 192.168.1.5 ", "not-an-ip", "300.1.1.1/33"}, zap.New(core))

	assert.Equal(t, 2, logs.Len(), "invalid entries are reported")

	t.Run("decisions", func(t *testing.T) {
		assert.True(t, allowlist.IsIPAllowed("10.20.30.40"))
		assert.True(t, allowlist.IsIPAllowed("192.168.1.5"))
		assert.False(t, allowlist.IsIPAllowed("192.168.1.6"))
		assert.False(t, allowlist.IsIPAllowed("garbage"))
		assert.Equal(t, 4, allowlist.CachedDecisions())
	})

	t.Run("middleware", func(t *testing.T) {
		e := echo.New()
		e.Use(allowlist.Middleware())
		e.GET("/metrics", okHandler)
		e.GET("/health", okHandler)

		assert.Equal(t, http.StatusOK, serve(e, "/metrics", "10.1.1.1:5000", nil).Code)
		assert.Equal(t, http.StatusForbidden, serve(e, "/metrics", "8.8.8.8:5000", nil).Code)
		assert.Equal(t, http.StatusForbidden, serve(e, "/metrics", "8.8.8.8:5000", nil).Code)
		assert.Equal(t, http.StatusOK, serve(e, "/health", "8.8.8.8:5000", nil).Code)

		assert.Equal(t, 1, logs.FilterMessage("IP access denied - not in allowlist").Len(),
			"repeated denials for the same client are logged once")
	})
}

func TestEmptyAllowlistAdmitsEveryone(t *testing.T) {
	allowlist := NewIPAllowlistMiddleware(nil, nil)
	assert.True(t, allowlist.IsIPAllowed("8.8.8.8"))
}

func TestAPIKeyMiddleware(t *testing.T) {
	e := echo.New()
	e.Use(EchoAPIKeyMiddleware("secret", zap.NewNop()))
	e.GET("/metrics", okHandler)
	e.GET("/health", okHandler)

	assert.Equal(t, http.StatusUnauthorized, serve(e, "/metrics", "1.2.3.4:1", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(e, "/metrics", "1.2.3.4:1", map[string]string{"X-API-Key": "wrong"}).Code)
	assert.Equal(t, http.StatusOK, serve(e, "/metrics", "1.2.3.4:1", map[string]string{"X-API-Key": "secret"}).Code)
	assert.Equal(t, http.StatusOK, serve(e, "/metrics?api_key=secret", "1.2.3.4:1", nil).Code)
	assert.Equal(t, http.StatusOK, serve(e, "/health", "1.2.3.4:1", nil).Code)
}

func TestEchoRateLimiter(t *testing.T) {
	cfg := &config.Config{EchoRateLimit: 1, EchoBurstLimit: 1, EchoRateLimitExpiresIn: time.Minute}
	e := echo.New()
	e.Use(SetupEchoRateLimiter(cfg))
	e.GET("/metrics", okHandler)
	e.GET("/health", okHandler)

	assert.Equal(t, http.StatusOK, serve(e, "/metrics", "1.2.3.4:1", nil).Code)

	rec := serve(e, "/metrics", "1.2.3.4:1", nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	var body models.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "RATE_LIMITED", body.Code)

	assert.Equal(t, http.StatusOK, serve(e, "/metrics", "5.6.7.8:1", nil).Code)
	assert.Equal(t, http.StatusOK, serve(e, "/health", "1.2.3.4:1", nil).Code)
}

func TestSetupMiddlewareWithAuth(t *testing.T) {
	cfg := &config.Config{
		RequestTimeout:       time.Second,
		AllowedOrigins:       []string{"*"},
		APIKey:               "secret",
		EnableRequestLogging: true,
	}
	core, logs := observer.New(zapcore.InfoLevel)

	e := echo.New()
	SetupMiddleware(e, cfg, zap.New(core), true)
	e.GET("/metrics", okHandler)

	rec := serve(e, "/metrics", "1.2.3.4:1", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))

	rec = serve(e, "/metrics", "1.2.3.4:1", map[string]string{"X-API-Key": "secret"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.Equal(t, 2, logs.FilterLoggerName("access").Len(), "one access line per request")
	assert.Equal(t, 1, logs.FilterMessage("Unauthorized API access attempt").Len())
}
