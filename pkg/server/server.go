// Package server is the network-facing storage server: an Echo router in
// front of an embedded BadgerDB store.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"storaged/internal/handlers"
	"storaged/pkg/config"
	"storaged/pkg/logger"
	"storaged/pkg/metrics"
	custommiddleware "storaged/pkg/middleware"
	"storaged/pkg/storage"
	autotls "storaged/pkg/tls"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

var (
	// ErrAlreadyStarted is returned by a second call to Start
	ErrAlreadyStarted = errors.New("server already started")

	// ErrNotStarted is returned by Stop before a successful Start
	ErrNotStarted = errors.New("server not started")
)

// Deps are the collaborators a server is built from
type Deps struct {
	Config          *config.Config
	Logging         *logger.Logging
	Metrics         *metrics.Registry // Optional
	InstanceID      string
	Variant         string
	State           func() string // Orchestrator state for /health/detailed
	RequestShutdown func()        // Invoked by /admin/shutdown and on serve failures
}

// Option customizes an HTTPServer
type Option func(*HTTPServer)

// WithAutoTLS serves HTTPS with Let's Encrypt certificates on TLS_PORT
// and keeps PORT for ACME challenges and redirects.
func WithAutoTLS() Option {
	return func(s *HTTPServer) { s.autoTLS = true }
}

// WithAuth requires an API key on everything except the health endpoints
// and enables the /admin endpoints.
func WithAuth() Option {
	return func(s *HTTPServer) { s.auth = true }
}

// HTTPServer owns the store, the router and the listeners
type HTTPServer struct {
	deps    Deps
	cfg     *config.Config
	logger  *zap.Logger
	autoTLS bool
	auth    bool

	mu       sync.Mutex
	started  bool
	store    *storage.BadgerStorage
	shutdown *handlers.ShutdownHandler
	servers  []*http.Server
	addr     net.Addr
	tlsAddr  net.Addr
	wg       sync.WaitGroup
}

// New creates a server; nothing is opened or bound until Start
func New(deps Deps, opts ...Option) *HTTPServer {
	appLogger := zap.NewNop()
	if deps.Logging != nil {
		appLogger = deps.Logging.Messages("server")
	}
	if deps.State == nil {
		deps.State = func() string { return "" }
	}

	s := &HTTPServer{
		deps:   deps,
		cfg:    deps.Config,
		logger: appLogger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens storage, builds the router and starts serving.
// Storage failures are returned as *storage.StartupError; anything else
// is a server failure. On error nothing is left open.
func (s *HTTPServer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrAlreadyStarted
	}

	store, err := s.openStorage()
	if err != nil {
		return err
	}

	doc, err := LoadOpenAPI()
	if err != nil {
		store.Close()
		return err
	}

	s.shutdown = handlers.NewShutdownHandler(s.logger)
	e, err := s.setupRouter(store, doc)
	if err != nil {
		store.Close()
		return err
	}

	if err := s.listen(e); err != nil {
		store.Close()
		return err
	}

	s.store = store
	s.started = true
	return nil
}

func (s *HTTPServer) openStorage() (*storage.BadgerStorage, error) {
	storageLogger := zap.NewNop()
	if s.deps.Logging != nil {
		storageLogger = s.deps.Logging.Messages("storage")
	}

	return storage.Open(storage.BadgerOptions{
		DataDir:         filepath.Join(s.cfg.DataDir, "badger"),
		PerformanceMode: s.cfg.PerformanceMode,
		CacheSize:       s.cfg.CacheSize,
		GCInterval:      s.cfg.GCInterval,
		GCThreshold:     s.cfg.GCThreshold,
		Logger:          storageLogger,
	})
}

// setupRouter wires middleware and routes
func (s *HTTPServer) setupRouter(store *storage.BadgerStorage, doc *openapi3.T) (*echo.Echo, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Refuse new requests as soon as shutdown begins
	e.Use(s.shutdown.Middleware())

	custommiddleware.SetupMiddleware(e, s.cfg, s.logger, s.auth)

	if s.autoTLS {
		if err := autotls.SetupAutoTLS(e, s.cfg, s.logger.Named("tls")); err != nil {
			return nil, fmt.Errorf("failed to configure AutoTLS: %w", err)
		}
	}

	healthHandler := handlers.NewHealthHandler(store, s.deps.InstanceID, s.deps.State, s.logger).
		WithDetail("variant", s.deps.Variant)
	if s.autoTLS {
		healthHandler.WithDetail("tls", autotls.Status(s.cfg))
	}
	e.GET("/health", healthHandler.HealthCheck)
	e.GET("/health/detailed", healthHandler.DetailedHealthCheck)

	e.GET("/openapi.json", func(c echo.Context) error {
		return c.JSON(http.StatusOK, doc)
	})

	if s.cfg.EnableMetrics && s.deps.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(s.deps.Metrics.Handler()))
	}

	// Operator endpoints need an API key; without auth they answer 501
	var gc handlers.GCRunner
	var requestShutdown func()
	if s.auth {
		gc = store
		requestShutdown = s.deps.RequestShutdown
	}
	adminHandler := handlers.NewAdminHandler(gc, requestShutdown, s.logger.Named("admin"))
	admin := e.Group("/admin")
	admin.POST("/gc", adminHandler.TriggerGC)
	admin.POST("/shutdown", adminHandler.RequestShutdown)

	return e, nil
}

// listen binds every listener before serving any, so a bind failure
// leaves nothing running
func (s *HTTPServer) listen(e *echo.Echo) error {
	plain, err := net.Listen("tcp", s.cfg.Address())
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", s.cfg.Address(), err)
	}

	plainServer := s.newHTTPServer(e)
	serving := map[*http.Server]net.Listener{plainServer: plain}
	s.addr = plain.Addr()

	if s.autoTLS {
		tlsAddress := net.JoinHostPort(s.cfg.Host, s.cfg.TLSPort)
		secure, err := net.Listen("tcp", tlsAddress)
		if err != nil {
			plain.Close()
			return fmt.Errorf("failed to bind %s: %w", tlsAddress, err)
		}
		plainServer.Handler = autotls.ChallengeHandler(e)
		tlsServer := s.newHTTPServer(e)
		serving[tlsServer] = autotls.Listener(e, secure)
		s.tlsAddr = secure.Addr()
	}

	for srv, ln := range serving {
		s.servers = append(s.servers, srv)
		s.wg.Add(1)
		go s.serve(srv, ln)
	}

	s.logger.Info("Server listening",
		zap.String("address", s.addr.String()),
		zap.Bool("auto_tls", s.autoTLS),
		zap.Bool("auth", s.auth),
	)
	return nil
}

func (s *HTTPServer) newHTTPServer(handler http.Handler) *http.Server {
	return &http.Server{
		Handler:      handler,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}
}

func (s *HTTPServer) serve(srv *http.Server, ln net.Listener) {
	err := srv.Serve(ln)
	// Stop waits on wg, so release it before asking for shutdown
	s.wg.Done()
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return
	}
	s.logger.Error("HTTP server failed", zap.String("address", ln.Addr().String()), zap.Error(err))
	if s.deps.RequestShutdown != nil {
		s.deps.RequestShutdown()
	}
}

// Stop refuses new requests, drains in-flight ones within SHUTDOWN_TIMEOUT
// and closes storage. Storage is closed even when draining fails.
func (s *HTTPServer) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return ErrNotStarted
	}
	s.started = false

	startTime := time.Now()
	s.shutdown.InitiateShutdown()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	var errs []error
	for _, srv := range s.servers {
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("HTTP server shutdown failed: %w", err))
			srv.Close()
		}
	}
	s.wg.Wait()
	s.servers = nil

	if err := s.store.Close(); err != nil {
		errs = append(errs, err)
	}

	err := errors.Join(errs...)
	if err != nil {
		s.logger.Error("Server shutdown failed", zap.Error(err), zap.Duration("duration", time.Since(startTime)))
	} else {
		s.logger.Info("Server shutdown completed", zap.Duration("duration", time.Since(startTime)))
	}
	return err
}

// Location returns the database directory
func (s *HTTPServer) Location() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store != nil {
		return s.store.Location()
	}
	return filepath.Join(s.cfg.DataDir, "badger")
}

// Addr returns the bound HTTP address, or nil before Start
func (s *HTTPServer) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// TLSAddr returns the bound HTTPS address when AutoTLS is enabled
func (s *HTTPServer) TLSAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tlsAddr
}
