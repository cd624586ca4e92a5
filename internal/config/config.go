// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Import     ImportConfig
	Classifier ClassifierConfig
	Rate       RateLimitConfig
	Security   SecurityConfig
	Logging    LoggingConfig
	Archive    ArchiveConfig
	Events     EventsConfig
	Inbox      InboxConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 30s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`

	// WriteTimeout is the maximum duration for writing a response (default: 2m)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"2m"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 90s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"90s"`
}

// Store drivers accepted by DatabaseConfig.Driver.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DatabaseConfig selects and configures the ticket store.
type DatabaseConfig struct {
	// Driver is one of memory, postgres, sqlite (default: sqlite)
	Driver string `env:"DB_DRIVER" default:"sqlite"`

	// URL is the PostgreSQL connection string, required for the postgres driver.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// SQLitePath is the database file for the sqlite driver (default: tickets.db)
	SQLitePath string `env:"SQLITE_PATH" default:"tickets.db"`

	// MaxConns is the maximum number of connections in the pool (default: 20)
	MaxConns int `env:"DB_MAX_CONNS" default:"20"`

	// MinConns is the minimum number of connections to keep open (default: 2)
	MinConns int `env:"DB_MIN_CONNS" default:"2"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// ImportConfig holds batch import settings.
type ImportConfig struct {
	// MaxFileSize is the maximum accepted file size in bytes (default: 10MB)
	MaxFileSize int64 `env:"IMPORT_MAX_FILE_SIZE" default:"10485760"`

	// MaxConcurrent is the maximum number of batches processed at once (default: 4)
	MaxConcurrent int `env:"IMPORT_MAX_CONCURRENT" default:"4"`

	// MaxWaitTime is how long a batch waits for a free slot (default: 30s)
	MaxWaitTime time.Duration `env:"IMPORT_MAX_WAIT_TIME" default:"30s"`

	// StoreTimeout bounds a single ticket save (default: 5s)
	StoreTimeout time.Duration `env:"IMPORT_STORE_TIMEOUT" default:"5s"`

	// EnumPolicy is strict or lenient (default: strict)
	EnumPolicy string `env:"IMPORT_ENUM_POLICY" default:"strict"`

	// AutoClassify is the default when a request does not say (default: false)
	AutoClassify bool `env:"IMPORT_AUTO_CLASSIFY" default:"false"`
}

// ClassifierConfig holds keyword classifier settings.
type ClassifierConfig struct {
	// KeywordsFile is a YAML or JSONC keyword table; empty uses the built-in table
	KeywordsFile string `env:"CLASSIFIER_KEYWORDS_FILE"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// ImportLimit is requests per minute for the import endpoint (default: 10)
	ImportLimit int `env:"RATE_LIMIT_IMPORT" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// RequireAPIKey enables X-API-Key authentication on /api routes (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted API keys
	APIKeys []string `env:"API_KEYS"`

	// CORSOrigins is a comma-separated list of allowed browser origins
	CORSOrigins []string `env:"CORS_ALLOWED_ORIGINS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// ArchiveConfig holds raw-file archive settings. Archiving is off while
// Bucket is empty.
type ArchiveConfig struct {
	Bucket    string `env:"ARCHIVE_S3_BUCKET"`
	Region    string `env:"ARCHIVE_S3_REGION" envAlt:"AWS_REGION" default:"us-east-1"`
	Endpoint  string `env:"ARCHIVE_S3_ENDPOINT"`
	AccessKey string `env:"ARCHIVE_S3_ACCESS_KEY"`
	SecretKey string `env:"ARCHIVE_S3_SECRET_KEY"`
	Prefix    string `env:"ARCHIVE_S3_PREFIX" default:"imports"`
}

// Enabled reports whether a bucket is configured.
func (c ArchiveConfig) Enabled() bool {
	return c.Bucket != ""
}

// EventsConfig holds import event settings. Publishing is off while
// RedisAddr is empty.
type EventsConfig struct {
	RedisAddr string `env:"EVENTS_REDIS_ADDR"`
	Stream    string `env:"EVENTS_STREAM" default:"ticket-imports"`
}

func (c EventsConfig) Enabled() bool {
	return c.RedisAddr != ""
}

// InboxConfig holds drop-directory import settings. The sweeper is off
// while Dir is empty.
type InboxConfig struct {
	Dir string `env:"INBOX_DIR"`

	// Schedule is a cron expression or descriptor (default: every minute)
	Schedule string `env:"INBOX_SCHEDULE" default:"* * * * *"`
}

func (c InboxConfig) Enabled() bool {
	return c.Dir != ""
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
