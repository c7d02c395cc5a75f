package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"storaged/pkg/logger"

	"github.com/joho/godotenv"
)

// ServerPortKey is the environment key holding the HTTP bind port
const ServerPortKey = "PORT"

// Config holds all configuration for the storage server daemon
type Config struct {
	// =============================================================================
	// GROUP 1: HTTP SERVER SETTINGS
	// =============================================================================
	Port            string        `validate:"required,port"` // HTTP server port
	Host            string        // HTTP server host/bind address
	ReadTimeout     time.Duration `validate:"gt=0"` // HTTP read timeout
	WriteTimeout    time.Duration `validate:"gt=0"` // HTTP write timeout
	RequestTimeout  time.Duration `validate:"gt=0"` // Timeout for individual requests
	ShutdownTimeout time.Duration `validate:"gt=0"` // Graceful shutdown timeout

	// =============================================================================
	// GROUP 1.1: TLS/HTTPS SETTINGS
	// =============================================================================
	EnableTLS       bool     // Enable HTTPS with automatic Let's Encrypt certificates
	TLSPort         string   `validate:"omitempty,port"`             // HTTPS server port
	TLSCacheDir     string   `validate:"required_if=EnableTLS true"` // Directory to cache TLS certificates
	TLSHosts        []string // Allowed hostnames for TLS certificates
	EnableHTTPSOnly bool     // Redirect all HTTP traffic to HTTPS

	// =============================================================================
	// GROUP 2: STORAGE SETTINGS
	// =============================================================================
	DataDir         string        `validate:"required"` // Directory for BadgerDB data files
	PerformanceMode bool          // Enable BadgerDB performance optimizations
	CacheSize       int64         `validate:"gte=0"` // In-memory block cache size in bytes
	GCInterval      time.Duration `validate:"gt=0"`  // Value log garbage collection interval
	GCThreshold     float64       `validate:"gt=0,lt=1"`

	// =============================================================================
	// GROUP 3: AUTHENTICATION & NETWORK SECURITY
	// =============================================================================
	APIKey         string   `validate:"required_if=EnableAuth true"` // API key for authentication
	EnableAuth     bool     // Enable API key authentication
	AllowedOrigins []string // CORS allowed origins
	AllowedIPs     []string // IP allowlist for network-level security

	// =============================================================================
	// GROUP 4: RATE LIMITING & COMPRESSION
	// =============================================================================
	EchoRateLimit          float64       `validate:"gte=0"`
	EchoBurstLimit         int           `validate:"gte=0"`
	EchoRateLimitExpiresIn time.Duration `validate:"gte=0"`
	EnableCompression      bool
	CompressionLevel       int `validate:"gte=-1,lte=9"`

	// =============================================================================
	// GROUP 5: LOGGING & OBSERVABILITY
	// =============================================================================
	LogProfile           string `validate:"omitempty,oneof=performance balanced debug"`
	LogDir               string // Directory for log files; empty keeps logs on stdout/stderr
	EnableConsoleLog     bool   // Human-oriented console log on stdout
	EnableRequestLogging bool   // Structured access log
	EnableMetrics        bool   // Expose /metrics
}

// Load reads configuration from the environment and optional .env files.
// Problems that fall back to defaults are reported to log; a configuration
// that fails validation is returned as an error.
func Load(log logger.ConsoleLogger, files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read env file: %w", err)
		}
		log.Log("No .env file found, using process environment only")
	}

	env := &envReader{log: log}
	config := &Config{
		// Server settings
		Port:            env.str(ServerPortKey, "8081"),
		Host:            env.str("HOST", "0.0.0.0"),
		ReadTimeout:     env.duration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:    env.duration("WRITE_TIMEOUT", 30*time.Second),
		RequestTimeout:  env.duration("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout: env.duration("SHUTDOWN_TIMEOUT", 30*time.Second),

		// TLS/HTTPS settings
		EnableTLS:       env.boolean("ENABLE_TLS", false),
		TLSPort:         env.str("TLS_PORT", "443"),
		TLSCacheDir:     env.str("TLS_CACHE_DIR", "./certs"),
		TLSHosts:        env.stringSlice("TLS_HOSTS", []string{}), // Empty means allow any host (development only)
		EnableHTTPSOnly: env.boolean("ENABLE_HTTPS_ONLY", false),

		// Storage settings
		DataDir:         env.str("DATA_DIR", "./data"),
		PerformanceMode: env.boolean("PERFORMANCE_MODE", true),
		CacheSize:       env.int64("CACHE_SIZE", 128<<20), // Default 128MB cache
		GCInterval:      env.duration("GC_INTERVAL", 5*time.Minute),
		GCThreshold:     env.float64("GC_THRESHOLD", 0.5),

		// Security settings
		APIKey:         env.str("API_KEY", ""),
		EnableAuth:     env.boolean("ENABLE_AUTH", false),
		AllowedOrigins: env.stringSlice("ALLOWED_ORIGINS", []string{"*"}),
		AllowedIPs:     env.stringSlice("ALLOWED_IPS", []string{}), // Empty means no IP restrictions

		// Rate limiting and compression
		EchoRateLimit:          env.float64("ECHO_RATE_LIMIT", 100),
		EchoBurstLimit:         env.integer("ECHO_BURST_LIMIT", 200),
		EchoRateLimitExpiresIn: env.duration("ECHO_RATE_LIMIT_EXPIRES_IN", 3*time.Minute),
		EnableCompression:      env.boolean("ENABLE_COMPRESSION", true),
		CompressionLevel:       env.integer("COMPRESSION_LEVEL", 5),

		// Logging and observability
		LogProfile:           env.str("LOG_PROFILE", "balanced"),
		LogDir:               env.str("LOG_DIR", "./logs"),
		EnableConsoleLog:     env.boolean("ENABLE_CONSOLE_LOG", true),
		EnableRequestLogging: env.boolean("ENABLE_REQUEST_LOGGING", false),
		EnableMetrics:        env.boolean("ENABLE_METRICS", true),
	}

	if err := Validate(config); err != nil {
		return nil, err
	}
	return config, nil
}

// Logging returns the subset of configuration needed to build the logging sink
func (cfg *Config) Logging() (logger.Config, error) {
	config, err := logger.ProfileConfig(cfg.LogProfile, cfg.LogDir)
	if err != nil {
		return logger.Config{}, err
	}
	config.Console = cfg.EnableConsoleLog
	return config, nil
}

// Address returns the host:port the HTTP server binds to
func (cfg *Config) Address() string {
	return fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)
}

// Describe writes the effective configuration to log
func (cfg *Config) Describe(log logger.ConsoleLogger) {
	log.Log("Configuration: bind %s, data directory %s", cfg.Address(), cfg.DataDir)
	if cfg.EnableTLS {
		hosts := "any (development mode)"
		if len(cfg.TLSHosts) > 0 {
			hosts = strings.Join(cfg.TLSHosts, ",")
		}
		log.Log("TLS: port %s, cache %s, hosts %s, https only %t", cfg.TLSPort, cfg.TLSCacheDir, hosts, cfg.EnableHTTPSOnly)
	}
	log.Log("Storage: performance mode %t, cache %.1f MB, GC every %v (threshold %.2f)",
		cfg.PerformanceMode, float64(cfg.CacheSize)/(1024*1024), cfg.GCInterval, cfg.GCThreshold)
	log.Log("Security: auth %t, allowed origins %v, IP allowlist %v", cfg.EnableAuth, cfg.AllowedOrigins, cfg.AllowedIPs)
	log.Log("Logging: profile %s, directory %q, request logging %t, metrics %t",
		cfg.LogProfile, cfg.LogDir, cfg.EnableRequestLogging, cfg.EnableMetrics)
}

// PortOf returns the configured port for diagnostics, tolerating a nil config
func PortOf(cfg *Config) string {
	if cfg == nil || cfg.Port == "" {
		if value, ok := os.LookupEnv(ServerPortKey); ok {
			return value
		}
		return "unknown"
	}
	return cfg.Port
}
