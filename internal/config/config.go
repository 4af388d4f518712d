// Package config loads service configuration from environment variables and
// validates it on startup.
package config

import (
	"net"
	"strconv"
	"time"
)

// Store backends.
const (
	BackendGoogle   = "google"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Google   GoogleConfig
	Database DatabaseConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	CORS     CORSConfig
	Logging  LoggingConfig
	Metrics  MetricsConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`
	Port int    `env:"SERVER_PORT" envAlt:"PORT" default:"8080"`

	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"30s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"15s"`

	// RequestTimeout bounds every store round trip of a request.
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"20s"`

	// PathPrefix is where the row API is mounted.
	PathPrefix string `env:"API_PATH_PREFIX" default:"/.netlify/functions/api"`

	// MaxBodyBytes caps POST and PATCH bodies.
	MaxBodyBytes int64 `env:"SERVER_MAX_BODY_BYTES" default:"1048576"`
}

// StoreConfig selects the sheet store.
type StoreConfig struct {
	// Backend is one of google, postgres or memory.
	Backend string `env:"STORE_BACKEND" default:"google"`

	// MemorySeedFile is a JSON array of sheets loaded into the memory backend.
	MemorySeedFile string `env:"MEMORY_SEED_FILE"`

	// MaxConcurrentInserts bounds inserts in flight. One slot serializes
	// inserts so two never read the same largest id. InsertWaitTimeout of 0
	// leaves the wait to the request timeout.
	MaxConcurrentInserts int           `env:"STORE_MAX_CONCURRENT_INSERTS" default:"1"`
	InsertWaitTimeout    time.Duration `env:"STORE_INSERT_WAIT_TIMEOUT" default:"0s"`
}

// GoogleConfig holds service account credentials for the Sheets backend.
type GoogleConfig struct {
	ServiceAccountEmail string `env:"GOOGLE_SERVICE_ACCOUNT_EMAIL"`
	PrivateKey          string `env:"GOOGLE_PRIVATE_KEY"`
	SpreadsheetID       string `env:"GOOGLE_SPREADSHEET_ID_FROM_URL" envAlt:"GOOGLE_SPREADSHEET_ID"`

	// Endpoint overrides the Sheets API base URL.
	Endpoint string `env:"GOOGLE_SHEETS_ENDPOINT"`
}

// DatabaseConfig holds settings for the postgres backend.
type DatabaseConfig struct {
	URL             string        `env:"DATABASE_URL" envAlt:"DB_URL"`
	MaxConns        int           `env:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"1"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// DocumentID is reported as the document identifier.
	DocumentID string `env:"DB_DOCUMENT_ID" default:"postgres"`

	// AutoMigrate creates the tables on startup.
	AutoMigrate bool `env:"DB_AUTO_MIGRATE" default:"true"`
}

// RateLimitConfig holds per-client token bucket settings.
type RateLimitConfig struct {
	Enabled           bool    `env:"RATE_LIMIT_ENABLED" default:"true"`
	RequestsPerSecond float64 `env:"RATE_LIMIT_RPS" default:"5"`
	Burst             int     `env:"RATE_LIMIT_BURST" default:"20"`

	// IdleTTL is how long an unused client bucket is kept.
	IdleTTL time.Duration `env:"RATE_LIMIT_IDLE_TTL" default:"10m"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies lists CIDRs whose X-Forwarded-For is honored.
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	RequireAPIKey bool     `env:"REQUIRE_API_KEY" default:"false"`
	APIKeys       []string `env:"API_KEYS"`
}

// CORSConfig holds cross-origin response headers.
type CORSConfig struct {
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" default:"*"`
	AllowedHeaders []string `env:"CORS_ALLOWED_HEADERS" default:"Authorization,X-API-KEY,Origin,X-Requested-With,Content-Type,Accept,Access-Control-Allow-Request-Method"`
	AllowedMethods []string `env:"CORS_ALLOWED_METHODS" default:"GET,POST,PATCH,OPTIONS,PUT,DELETE"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is text or json.
	Format string `env:"LOG_FORMAT" default:"text"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled   bool   `env:"METRICS_ENABLED" default:"true"`
	Path      string `env:"METRICS_PATH" default:"/metrics"`
	Namespace string `env:"METRICS_NAMESPACE" default:"sheetrest"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
