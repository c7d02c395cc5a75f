// Package bootstrap brings the server process up and takes it down exactly
// once. It selects the server variant, sequences startup and funnels both
// signals and explicit stops into a single teardown path.
package bootstrap

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"storaged/pkg/compat"
	"storaged/pkg/config"
	"storaged/pkg/lifecycle"
	"storaged/pkg/logger"
	"storaged/pkg/metrics"
	"storaged/pkg/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const unknownLocation = "unknown location"

// Options injects the orchestrator's collaborators. Zero values fall back
// to the production implementations.
type Options struct {
	// LoadConfig reads configuration, reporting diagnostics to log
	LoadConfig func(log logger.ConsoleLogger) (*config.Config, error)

	// NewLogging builds the logging sink from configuration
	NewLogging func(cfg *config.Config) (*logger.Logging, error)

	// Runtime feeds the compatibility check
	Runtime compat.RuntimeMetadata

	// Signals fire the shutdown hook; empty means DefaultSignals
	Signals []os.Signal

	Metrics *metrics.Registry

	// Fallback receives startup diagnostics when the sink could not be built
	Fallback logger.ConsoleLogger
}

func (o *Options) setDefaults() {
	if o.LoadConfig == nil {
		o.LoadConfig = func(log logger.ConsoleLogger) (*config.Config, error) {
			return config.Load(log)
		}
	}
	if o.NewLogging == nil {
		o.NewLogging = func(cfg *config.Config) (*logger.Logging, error) {
			loggingConfig, err := cfg.Logging()
			if err != nil {
				return nil, err
			}
			return logger.NewLogging(loggingConfig)
		}
	}
	if o.Runtime == nil {
		o.Runtime = compat.GoRuntime{}
	}
	if o.Metrics == nil {
		o.Metrics = metrics.NewRegistry()
	}
	if o.Fallback == nil {
		o.Fallback = logger.NewFallbackConsole()
	}
}

// Orchestrator runs one variant's server through its lifecycle
type Orchestrator struct {
	variant     Variant
	opts        Options
	instanceID  string
	life        *lifecycle.Container
	coordinator *Coordinator

	state    atomic.Int32
	exitCode atomic.Int32
	stopCode atomic.Int32

	// Written by the goroutine driving Start, or by the token holder
	cfg      *config.Config
	buffer   *logger.BufferedLog
	console  logger.ConsoleLogger
	messages *zap.Logger

	mu            sync.Mutex
	server        Server
	serverStarted bool

	done     chan struct{}
	doneOnce sync.Once
}

// New creates an orchestrator for variant
func New(variant Variant, opts Options) *Orchestrator {
	opts.setDefaults()

	life := lifecycle.NewContainer()
	life.SetObserver(opts.Metrics)

	o := &Orchestrator{
		variant:     variant,
		opts:        opts,
		instanceID:  uuid.NewString(),
		life:        life,
		coordinator: NewCoordinator(opts.Signals...),
		messages:    zap.NewNop(),
		done:        make(chan struct{}),
	}
	o.setState(StateCreated)
	return o
}

// Start runs the startup sequence and returns the exit code. Nothing
// escapes Start: failures are logged, partially started resources are torn
// down and the failure class is returned. Calling Start again returns the
// recorded code.
func (o *Orchestrator) Start(args ...string) ExitCode {
	// args are reserved and currently unused
	_ = args

	if !o.state.CompareAndSwap(int32(StateCreated), int32(StateStarting)) {
		return o.ExitCode()
	}
	o.opts.Metrics.SetState(StateStarting.String())

	began := time.Now()
	code := o.start()
	o.exitCode.Store(int32(code))
	o.opts.Metrics.ObserveStartup(code.String(), time.Since(began))

	if code != OK {
		o.setState(StateFailed)
		o.closeDone()
	}
	return code
}

func (o *Orchestrator) start() (code ExitCode) {
	o.buffer = logger.NewBufferedLog()
	o.console = o.buffer

	defer func() {
		if r := recover(); r != nil {
			code = o.fail(fmt.Errorf("panic during startup: %v", r))
		}
	}()

	// Configuration diagnostics are buffered until the sink exists
	cfg, err := o.opts.LoadConfig(o.buffer)
	if err != nil {
		return o.fail(fmt.Errorf("failed to load configuration: %w", err))
	}
	o.cfg = cfg
	cfg.Describe(o.buffer)

	logging, err := o.opts.NewLogging(cfg)
	if err != nil {
		return o.fail(fmt.Errorf("failed to create logging: %w", err))
	}

	console := logging.Console("bootstrap")
	o.buffer.ReplayInto(console)
	o.console = console
	o.messages = logging.Messages("bootstrap").With(
		zap.String("instance_id", o.instanceID),
		zap.String("variant", o.variant.Name),
	)

	o.life.SetLogger(logging.Messages("lifecycle"))
	if err := o.life.Add("logging", logging); err != nil {
		return o.fail(err)
	}

	compat.NewChecker(logging.Messages("compat"), o.opts.Runtime).CheckAndWarn()

	server, err := o.variant.NewServer(Env{
		Config:          cfg,
		Logging:         logging,
		Metrics:         o.opts.Metrics,
		InstanceID:      o.instanceID,
		Variant:         o.variant.Name,
		State:           func() string { return o.State().String() },
		RequestShutdown: func() { o.coordinator.Trigger() },
	})
	if err != nil {
		return o.fail(fmt.Errorf("failed to create server: %w", err))
	}
	o.setServer(server, false)

	if err := server.Start(); err != nil {
		return o.fail(err)
	}
	o.setServer(server, true)

	o.console.Log("Server started on port [%s], database [%s]", config.PortOf(cfg), server.Location())
	o.messages.Info("Server started", zap.String("location", server.Location()))

	// A shutdown requested while the server was starting fires as soon as
	// the hook is registered
	if err := o.coordinator.RegisterHook(o.onHook); err != nil {
		return o.fail(fmt.Errorf("failed to register shutdown hook: %w", err))
	}

	// The hook may already have torn everything down
	if o.state.CompareAndSwap(int32(StateStarting), int32(StateRunning)) {
		o.opts.Metrics.SetState(StateRunning.String())
	}
	return OK
}

// fail reports a startup failure and releases whatever was started
func (o *Orchestrator) fail(err error) ExitCode {
	code := Classify(err)

	console := o.console
	if !o.buffer.Replayed() {
		// No sink was built; do not lose what was buffered
		o.buffer.ReplayInto(o.opts.Fallback)
		console = o.opts.Fallback
	}

	port := config.PortOf(o.cfg)
	var startupErr *storage.StartupError
	if errors.As(err, &startupErr) {
		console.Error(fmt.Sprintf("Failed to start server on port [%s], because %v. Another process may be using database location %s",
			port, err, startupErr.Location), err)
	} else {
		console.Error(fmt.Sprintf("Failed to start server on port [%s]", port), err)
	}

	o.mu.Lock()
	server, started := o.server, o.serverStarted
	o.server, o.serverStarted = nil, false
	o.mu.Unlock()

	if started {
		if stopErr := safeStop(server); stopErr != nil {
			console.Warn("Failed to stop partially started server", stopErr)
		}
	}
	if shutdownErr := o.life.Shutdown(); shutdownErr != nil {
		console.Warn("Failed to release startup resources", shutdownErr)
	}
	return code
}

// Stop tears the server down. Only the first caller, across Stop and the
// shutdown hook, does any work; later callers get 0 immediately.
// Returns 0 on a clean shutdown and 1 otherwise.
func (o *Orchestrator) Stop() int {
	if o.State() != StateRunning {
		return 0
	}
	if !o.coordinator.Acquire() {
		return 0
	}
	return o.teardown(false)
}

// onHook runs on the coordinator's goroutine when a signal or Trigger fires
func (o *Orchestrator) onHook() {
	o.console.Log("Server shutdown initiated by request")
	if !o.coordinator.Acquire() {
		return
	}
	o.teardown(true)
}

func (o *Orchestrator) teardown(viaHook bool) int {
	o.setState(StateStopping)
	defer o.closeDone()

	port := config.PortOf(o.cfg)
	location := unknownLocation
	code := 0

	server := o.Server()
	var stopErr error
	if server != nil {
		location = server.Location()
		stopErr = safeStop(server)
	}

	if stopErr != nil {
		o.console.Error(fmt.Sprintf("Failed to cleanly shutdown server on port [%s], database [%s]. Reason [%v]",
			port, location, stopErr), stopErr)
		code = 1
	} else {
		o.console.Log("Successfully shutdown server on port [%s], database [%s]", port, location)
	}

	// The hook cannot remove itself
	if !viaHook {
		if err := o.coordinator.RemoveHook(); err != nil {
			o.console.Warn("Unable to remove shutdown hook", err)
		}
	}

	if err := o.life.Shutdown(); err != nil {
		o.console.Error("Failed to release resources during shutdown", err)
		code = 1
	}

	o.mu.Lock()
	o.serverStarted = false
	o.mu.Unlock()

	o.stopCode.Store(int32(code))
	if code == 0 {
		o.setState(StateStopped)
	} else {
		o.setState(StateFailed)
	}
	return code
}

func safeStop(server Server) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while stopping server: %v", r)
		}
	}()
	return server.Stop()
}

func (o *Orchestrator) setState(s State) {
	o.state.Store(int32(s))
	o.opts.Metrics.SetState(s.String())
}

func (o *Orchestrator) setServer(server Server, started bool) {
	o.mu.Lock()
	o.server, o.serverStarted = server, started
	o.mu.Unlock()
}

func (o *Orchestrator) closeDone() {
	o.doneOnce.Do(func() { close(o.done) })
}

// State returns the current state. Reads from other goroutines are advisory.
func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

// ExitCode returns the code recorded by Start
func (o *Orchestrator) ExitCode() ExitCode {
	return ExitCode(o.exitCode.Load())
}

// StopCode returns the result of the teardown, 0 until one has run
func (o *Orchestrator) StopCode() int {
	return int(o.stopCode.Load())
}

// Server returns the managed server, nil if startup failed before creating one
func (o *Orchestrator) Server() Server {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.server
}

// InstanceID identifies this process in logs and health output
func (o *Orchestrator) InstanceID() string {
	return o.instanceID
}

// Variant returns the variant being run
func (o *Orchestrator) Variant() Variant {
	return o.variant
}

// HookRegistered reports whether the shutdown hook is installed
func (o *Orchestrator) HookRegistered() bool {
	return o.coordinator.Registered()
}

// Done is closed once the orchestrator has nothing left running, either
// because startup failed or because teardown finished
func (o *Orchestrator) Done() <-chan struct{} {
	return o.done
}
