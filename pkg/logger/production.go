package logger

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Profile names accepted by ProfileConfig
const (
	ProfilePerformance = "performance"
	ProfileBalanced    = "balanced"
	ProfileDebug       = "debug"
)

// Config is the logging subset of the server configuration
type Config struct {
	// Performance settings
	DisableCaller     bool // Disable caller information for performance
	DisableStacktrace bool // Disable stacktraces for performance
	SamplingEnabled   bool // Enable sampling to reduce log volume

	// Sampling configuration
	SamplingInitial    int // Initial sampling rate
	SamplingThereafter int // Subsequent sampling rate

	// Output settings
	Dir              string   // Directory holding file outputs (created on demand)
	OutputPaths      []string // Output file paths
	ErrorOutputPaths []string // Error output file paths
	Console          bool     // Write the human-oriented console log to stdout

	// Level settings
	Level zapcore.Level // Minimum log level
}

// NewLogger creates the structured logger described by config. The returned
// close func releases the output files and must be called after the final
// Sync.
func NewLogger(config Config) (*zap.Logger, func(), error) {
	if config.SamplingInitial == 0 {
		config.SamplingInitial = 100
	}
	if config.SamplingThereafter == 0 {
		config.SamplingThereafter = 100
	}
	if len(config.OutputPaths) == 0 {
		config.OutputPaths = []string{"stdout"}
	}
	if len(config.ErrorOutputPaths) == 0 {
		config.ErrorOutputPaths = []string{"stderr"}
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "ts"
	encoderConfig.LevelKey = "level"
	encoderConfig.MessageKey = "msg"
	encoderConfig.EncodeTime = zapcore.EpochTimeEncoder // Faster than RFC3339
	encoderConfig.EncodeDuration = zapcore.NanosDurationEncoder
	if config.DisableCaller {
		encoderConfig.CallerKey = ""
	}
	if config.DisableStacktrace {
		encoderConfig.StacktraceKey = ""
	}

	sink, closeOutput, err := zap.Open(config.OutputPaths...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log output: %w", err)
	}
	errorSink, closeErrorOutput, err := zap.Open(config.ErrorOutputPaths...)
	if err != nil {
		closeOutput()
		return nil, nil, fmt.Errorf("failed to open log error output: %w", err)
	}

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), sink, zap.NewAtomicLevelAt(config.Level))
	if config.SamplingEnabled {
		core = zapcore.NewSamplerWithOptions(core, time.Second, config.SamplingInitial, config.SamplingThereafter)
	}

	opts := []zap.Option{
		zap.ErrorOutput(errorSink),
		zap.AddStacktrace(zapcore.DPanicLevel), // Only stacktrace for critical errors
	}
	if !config.DisableCaller {
		opts = append(opts, zap.AddCaller())
	}

	closeAll := func() {
		closeOutput()
		closeErrorOutput()
	}
	return zap.New(core, opts...), closeAll, nil
}

// GetHighPerformanceConfig returns a configuration optimized for maximum performance
func GetHighPerformanceConfig(dir string) Config {
	return Config{
		DisableCaller:      true,
		DisableStacktrace:  true,
		SamplingEnabled:    true,
		SamplingInitial:    1000, // Sample 1 in 1000 initially
		SamplingThereafter: 1000,
		Level:              zapcore.WarnLevel, // Only warnings and errors
		Dir:                dir,
		OutputPaths:        []string{filepath.Join(dir, "info.log")},
		ErrorOutputPaths:   []string{filepath.Join(dir, "error.log")},
		Console:            true,
	}
}

// GetBalancedConfig returns a configuration balancing performance and observability
func GetBalancedConfig(dir string) Config {
	return Config{
		DisableCaller:      false,
		DisableStacktrace:  true,
		SamplingEnabled:    true,
		SamplingInitial:    100,
		SamplingThereafter: 100,
		Level:              zapcore.InfoLevel,
		Dir:                dir,
		OutputPaths:        []string{filepath.Join(dir, "info.log")},
		ErrorOutputPaths:   []string{filepath.Join(dir, "error.log")},
		Console:            true,
	}
}

// GetDebugConfig returns a configuration for development/debugging
func GetDebugConfig(dir string) Config {
	return Config{
		DisableCaller:     false,
		DisableStacktrace: false,
		SamplingEnabled:   false, // No sampling in debug mode
		Level:             zapcore.DebugLevel,
		Dir:               dir,
		OutputPaths:       []string{filepath.Join(dir, "info.log")},
		ErrorOutputPaths:  []string{filepath.Join(dir, "error.log")},
		Console:           true,
	}
}

// ProfileConfig resolves a named preset. An empty dir keeps every output on
// the standard streams.
func ProfileConfig(profile, dir string) (Config, error) {
	var config Config
	switch strings.ToLower(strings.TrimSpace(profile)) {
	case ProfilePerformance:
		config = GetHighPerformanceConfig(dir)
	case ProfileBalanced, "":
		config = GetBalancedConfig(dir)
	case ProfileDebug:
		config = GetDebugConfig(dir)
	default:
		return Config{}, fmt.Errorf("unknown log profile %q", profile)
	}

	if dir == "" {
		config.OutputPaths = []string{"stdout"}
		config.ErrorOutputPaths = []string{"stderr"}
	}
	return config, nil
}
