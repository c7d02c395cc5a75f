package tls

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"storaged/pkg/config"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestValidateAutoTLSConfig(t *testing.T) {
	assert.Error(t, ValidateAutoTLSConfig(&config.Config{TLSCacheDir: "certs"}))
	assert.Error(t, ValidateAutoTLSConfig(&config.Config{TLSPort: "8443"}))
	assert.Error(t, ValidateAutoTLSConfig(&config.Config{TLSPort: "8443", TLSCacheDir: "certs", TLSHosts: []string{"a.example", ""}}))
	assert.NoError(t, ValidateAutoTLSConfig(&config.Config{TLSPort: "8443", TLSCacheDir: "certs"}))
}

func TestSetupAutoTLS(t *testing.T) {
	cfg := &config.Config{
		TLSPort:         "8443",
		TLSCacheDir:     filepath.Join(t.TempDir(), "certs"),
		TLSHosts:        []string{"storage.example.com"},
		EnableHTTPSOnly: true,
	}
	e := echo.New()
	e.GET("/health", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	require.NoError(t, SetupAutoTLS(e, cfg, zap.NewNop()))
	assert.DirExists(t, cfg.TLSCacheDir)

	require.NotNil(t, e.AutoTLSManager.HostPolicy)
	assert.NoError(t, e.AutoTLSManager.HostPolicy(context.Background(), "storage.example.com"))
	assert.Error(t, e.AutoTLSManager.HostPolicy(context.Background(), "evil.example.com"))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Host = "storage.example.com"
	ChallengeHandler(e).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMovedPermanently, rec.Code)
	assert.Equal(t, "https://storage.example.com/health", rec.Header().Get("Location"))

	assert.Equal(t, "whitelist", Status(cfg)["host_policy"])
}
