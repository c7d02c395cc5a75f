package logger

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ConsoleLogger is the human-facing startup/shutdown log. It is what the
// orchestrator and the configuration loader write to, both before and after
// the real logging sink exists.
type ConsoleLogger interface {
	Log(format string, args ...any)
	Warn(msg string, cause error)
	Error(msg string, cause error)
}

// zapConsole adapts a zap logger to ConsoleLogger
type zapConsole struct {
	log *zap.Logger
}

// NewZapConsole wraps log as a ConsoleLogger
func NewZapConsole(log *zap.Logger) ConsoleLogger {
	return &zapConsole{log: log}
}

func (c *zapConsole) Log(format string, args ...any) {
	c.log.Info(fmt.Sprintf(format, args...))
}

func (c *zapConsole) Warn(msg string, cause error) {
	if cause != nil {
		c.log.Warn(msg, zap.Error(cause))
		return
	}
	c.log.Warn(msg)
}

func (c *zapConsole) Error(msg string, cause error) {
	if cause != nil {
		c.log.Error(msg, zap.Error(cause))
		return
	}
	c.log.Error(msg)
}

// newConsoleCore builds the console encoder used for human output
func newConsoleCore(sink zapcore.WriteSyncer, level zapcore.Level) zapcore.Core {
	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.CallerKey = ""
	encoderConfig.StacktraceKey = ""
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), sink, level)
}

// NewFallbackConsole returns a console logger on stderr. It is used when a
// startup failure happens before the configured sink could be built.
func NewFallbackConsole() ConsoleLogger {
	core := newConsoleCore(zapcore.Lock(os.Stderr), zapcore.InfoLevel)
	return NewZapConsole(zap.New(core).Named("bootstrap"))
}
