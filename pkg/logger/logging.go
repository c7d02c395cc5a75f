package logger

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logging is the process logging sink: structured per-category loggers plus
// a separate human console. It is started and stopped as a lifecycle
// resource so buffered entries are flushed on shutdown.
type Logging struct {
	messages *zap.Logger
	console  *zap.Logger

	stopOnce sync.Once
	close    func()
}

// NewLogging builds the sink described by config
func NewLogging(config Config) (*Logging, error) {
	if config.Dir != "" {
		if err := os.MkdirAll(config.Dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory %s: %w", config.Dir, err)
		}
	}

	messages, closeOutputs, err := NewLogger(config)
	if err != nil {
		return nil, err
	}

	console := zap.NewNop()
	if config.Console {
		level := config.Level
		if level > zapcore.InfoLevel {
			// Startup and shutdown lines are info level and must stay visible
			level = zapcore.InfoLevel
		}
		console = zap.New(newConsoleCore(zapcore.Lock(os.Stdout), level))
	}

	logging := NewLoggingFrom(messages, console)
	logging.close = closeOutputs
	return logging, nil
}

// NewLoggingFrom assembles a sink from existing loggers
func NewLoggingFrom(messages, console *zap.Logger) *Logging {
	if messages == nil {
		messages = zap.NewNop()
	}
	if console == nil {
		console = zap.NewNop()
	}
	return &Logging{messages: messages, console: console}
}

// Messages returns the structured logger for a category
func (l *Logging) Messages(category string) *zap.Logger {
	return l.messages.Named(category)
}

// Console returns the human-oriented logger for a category
func (l *Logging) Console(category string) ConsoleLogger {
	return NewZapConsole(l.console.Named(category))
}

// Start implements the lifecycle resource contract
func (l *Logging) Start() error {
	l.messages.Debug("Logging sink started")
	return nil
}

// Stop flushes both loggers and closes the file outputs. Entries logged
// after Stop are dropped. Only the first call does any work.
func (l *Logging) Stop() (err error) {
	l.stopOnce.Do(func() {
		err = errors.Join(syncLogger(l.messages), syncLogger(l.console))
		if l.close != nil {
			l.close()
		}
	})
	return err
}

// syncLogger flushes log, ignoring the errors returned when the output is
// a terminal or pipe that cannot be fsynced
func syncLogger(log *zap.Logger) error {
	err := log.Sync()
	if err == nil || errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY) || errors.Is(err, syscall.EBADF) {
		return nil
	}
	return err
}
