package bootstrap

import (
	"errors"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
)

var (
	// ErrHookFired is returned by RemoveHook once the hook has run
	ErrHookFired = errors.New("shutdown hook already fired")

	// ErrHookNotRegistered is returned by RemoveHook when no hook is installed
	ErrHookNotRegistered = errors.New("shutdown hook not registered")

	// ErrHookRegistered is returned by RegisterHook when a hook is already installed
	ErrHookRegistered = errors.New("shutdown hook already registered")
)

// DefaultSignals are the signals that fire the shutdown hook
var DefaultSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

// Coordinator binds the teardown path to OS signals and explicit stops.
// The token makes sure only one caller ever runs teardown.
type Coordinator struct {
	token   atomic.Bool
	signals []os.Signal

	mu         sync.Mutex
	registered bool
	fired      bool
	pending    bool // Trigger arrived before RegisterHook
	sigCh      chan os.Signal
	trigger    chan struct{}
	quit       chan struct{}
}

// NewCoordinator creates a coordinator for signals; none means DefaultSignals
func NewCoordinator(signals ...os.Signal) *Coordinator {
	if len(signals) == 0 {
		signals = DefaultSignals
	}
	return &Coordinator{signals: signals}
}

// Acquire claims the shutdown token. Only the first caller gets true.
func (c *Coordinator) Acquire() bool {
	return c.token.CompareAndSwap(false, true)
}

// Acquired reports whether teardown has been claimed
func (c *Coordinator) Acquired() bool {
	return c.token.Load()
}

// RegisterHook installs fn to run once, on the first configured signal or
// on Trigger, whichever comes first.
func (c *Coordinator) RegisterHook(fn func()) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.registered {
		return ErrHookRegistered
	}

	c.sigCh = make(chan os.Signal, 1)
	c.trigger = make(chan struct{}, 1)
	c.quit = make(chan struct{})
	c.registered = true
	c.fired = false

	if c.pending {
		c.pending = false
		c.trigger <- struct{}{}
	}

	signal.Notify(c.sigCh, c.signals...)
	go c.wait(fn, c.sigCh, c.trigger, c.quit)
	return nil
}

func (c *Coordinator) wait(fn func(), sigCh chan os.Signal, trigger <-chan struct{}, quit <-chan struct{}) {
	select {
	case <-sigCh:
	case <-trigger:
	case <-quit:
		return
	}

	c.mu.Lock()
	select {
	case <-quit:
		// RemoveHook won the race
		c.mu.Unlock()
		return
	default:
	}
	c.fired = true
	c.registered = false
	// A second signal gets the default behavior and terminates the process
	signal.Stop(sigCh)
	c.mu.Unlock()

	fn()
}

// RemoveHook uninstalls the hook. It fails with ErrHookFired when the hook
// has already run and ErrHookNotRegistered when nothing was installed.
func (c *Coordinator) RemoveHook() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.fired {
		return ErrHookFired
	}
	if !c.registered {
		return ErrHookNotRegistered
	}

	signal.Stop(c.sigCh)
	close(c.quit)
	c.registered = false
	return nil
}

// Trigger fires the hook as if a signal had arrived. A trigger that comes
// before RegisterHook is held and fires the hook as soon as it is
// registered. It returns false once the hook has fired.
func (c *Coordinator) Trigger() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.fired {
		return false
	}
	if !c.registered {
		c.pending = true
		return true
	}
	select {
	case c.trigger <- struct{}{}:
	default:
	}
	return true
}

// Registered reports whether a hook is installed and has not fired
func (c *Coordinator) Registered() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registered
}
