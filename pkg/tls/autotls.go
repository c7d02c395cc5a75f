// Package tls wires Let's Encrypt certificates into the Echo router through
// the autocert manager.
package tls

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"

	"storaged/pkg/config"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/crypto/acme/autocert"
)

// ValidateAutoTLSConfig checks the TLS settings needed before any listener is bound
func ValidateAutoTLSConfig(cfg *config.Config) error {
	if cfg.TLSPort == "" {
		return errors.New("TLS_PORT cannot be empty when TLS is enabled")
	}
	if cfg.TLSCacheDir == "" {
		return errors.New("TLS_CACHE_DIR cannot be empty when TLS is enabled")
	}
	for _, host := range cfg.TLSHosts {
		if host == "" {
			return errors.New("empty hostname in TLS_HOSTS list")
		}
	}
	return nil
}

// SetupAutoTLS configures e.AutoTLSManager and the optional HTTPS redirect.
// The certificate cache directory is created here.
func SetupAutoTLS(e *echo.Echo, cfg *config.Config, appLogger *zap.Logger) error {
	if err := ValidateAutoTLSConfig(cfg); err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.TLSCacheDir, 0700); err != nil {
		return fmt.Errorf("failed to create TLS cache directory: %w", err)
	}

	e.AutoTLSManager.Prompt = autocert.AcceptTOS
	e.AutoTLSManager.Cache = autocert.DirCache(cfg.TLSCacheDir)

	if len(cfg.TLSHosts) > 0 {
		e.AutoTLSManager.HostPolicy = autocert.HostWhitelist(cfg.TLSHosts...)
		appLogger.Info("AutoTLS configured with host whitelist",
			zap.Strings("hosts", cfg.TLSHosts),
			zap.String("cache_dir", cfg.TLSCacheDir))
	} else {
		appLogger.Warn("AutoTLS configured without host restrictions - suitable for development only",
			zap.String("cache_dir", cfg.TLSCacheDir))
	}

	if cfg.EnableHTTPSOnly {
		e.Pre(middleware.HTTPSRedirect())
		appLogger.Info("HTTPS redirect enabled - all HTTP traffic will be redirected to HTTPS")
	}
	return nil
}

// Listener wraps ln so it terminates TLS with certificates from the manager
func Listener(e *echo.Echo, ln net.Listener) net.Listener {
	tlsConfig := e.AutoTLSManager.TLSConfig()
	tlsConfig.MinVersion = tls.VersionTLS12
	return tls.NewListener(ln, tlsConfig)
}

// ChallengeHandler serves ACME HTTP-01 challenges and hands everything else to e
func ChallengeHandler(e *echo.Echo) http.Handler {
	return e.AutoTLSManager.HTTPHandler(e)
}

// Status summarizes the AutoTLS setup for diagnostics
func Status(cfg *config.Config) map[string]interface{} {
	status := map[string]interface{}{
		"enabled":    cfg.EnableTLS,
		"port":       cfg.TLSPort,
		"https_only": cfg.EnableHTTPSOnly,
		"host_count": len(cfg.TLSHosts),
	}
	if len(cfg.TLSHosts) == 0 {
		status["host_policy"] = "unrestricted"
	} else {
		status["host_policy"] = "whitelist"
	}
	return status
}
