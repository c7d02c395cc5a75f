// Package lifecycle keeps an ordered registry of start/stop resources.
// Resources are started as they are added and stopped in reverse order.
package lifecycle

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ErrDuplicateResource is returned when a name is registered twice
var ErrDuplicateResource = errors.New("resource already registered")

// Resource is anything the container can start and stop
type Resource interface {
	Start() error
	Stop() error
}

// Observer is notified about resource transitions
type Observer interface {
	ResourceStarted(name string)
	ResourceStopped(name string, err error)
}

// funcResource adapts a start/stop pair to Resource
type funcResource struct {
	start func() error
	stop  func() error
}

func (f funcResource) Start() error {
	if f.start == nil {
		return nil
	}
	return f.start()
}

func (f funcResource) Stop() error {
	if f.stop == nil {
		return nil
	}
	return f.stop()
}

type entry struct {
	name     string
	resource Resource
}

// Container owns started resources until Shutdown
type Container struct {
	mu       sync.Mutex
	entries  []entry
	names    map[string]struct{}
	logger   *zap.Logger
	observer Observer
}

// NewContainer creates an empty container that logs nowhere until
// SetLogger is called
func NewContainer() *Container {
	return &Container{
		names:  make(map[string]struct{}),
		logger: zap.NewNop(),
	}
}

// SetLogger attaches the logger used for start/stop outcomes
func (c *Container) SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c.mu.Lock()
	c.logger = logger
	c.mu.Unlock()
}

// SetObserver attaches an observer for resource transitions
func (c *Container) SetObserver(observer Observer) {
	c.mu.Lock()
	c.observer = observer
	c.mu.Unlock()
}

// Add starts resource and registers it under name. A resource whose Start
// fails is not registered; tearing down earlier resources is the caller's job.
func (c *Container) Add(name string, resource Resource) error {
	c.mu.Lock()
	if _, exists := c.names[name]; exists {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateResource, name)
	}
	// Reserve the name so a concurrent Add cannot start it a second time.
	c.names[name] = struct{}{}
	logger, observer := c.logger, c.observer
	c.mu.Unlock()

	if err := safeCall(resource.Start); err != nil {
		c.mu.Lock()
		delete(c.names, name)
		c.mu.Unlock()
		logger.Error("Failed to start resource", zap.String("resource", name), zap.Error(err))
		return fmt.Errorf("failed to start %s: %w", name, err)
	}

	c.mu.Lock()
	c.entries = append(c.entries, entry{name: name, resource: resource})
	c.mu.Unlock()

	logger.Debug("Resource started", zap.String("resource", name))
	if observer != nil {
		observer.ResourceStarted(name)
	}
	return nil
}

// AddFunc registers a start/stop pair. Nil functions are no-ops.
func (c *Container) AddFunc(name string, start, stop func() error) error {
	return c.Add(name, funcResource{start: start, stop: stop})
}

// Shutdown stops every registered resource, newest first. A failing stop is
// logged and does not prevent the remaining stops. The container is empty
// afterwards, so calling Shutdown again does nothing.
func (c *Container) Shutdown() error {
	c.mu.Lock()
	entries := c.entries
	c.entries = nil
	c.names = make(map[string]struct{})
	logger, observer := c.logger, c.observer
	c.mu.Unlock()

	var errs []error
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		err := safeCall(e.resource.Stop)
		if err != nil {
			logger.Error("Failed to stop resource", zap.String("resource", e.name), zap.Error(err))
			errs = append(errs, fmt.Errorf("failed to stop %s: %w", e.name, err))
		} else {
			logger.Debug("Resource stopped", zap.String("resource", e.name))
		}
		if observer != nil {
			observer.ResourceStopped(e.name, err)
		}
	}
	return errors.Join(errs...)
}

// Names returns registered resource names in registration order
func (c *Container) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, len(c.entries))
	for i, e := range c.entries {
		names[i] = e.name
	}
	return names
}

// Len returns the number of registered resources
func (c *Container) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// safeCall turns a panic in fn into an error
func safeCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
