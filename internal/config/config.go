// Package config provides structures and utilities for managing the
// townfeed application configuration.
package config

// EmbeddedConfig holds the content of the configuration file, typically
// passed from main.go via go:embed.
type EmbeddedConfig []byte

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the logging level (e.g., "INFO", "DEBUG").
	Level string `yaml:"level"`
}

// SystemConfig holds system-wide settings.
type SystemConfig struct {
	// Timezone is the named time zone used to resolve "today" for the
	// scheduled scrape (e.g., "America/New_York").
	Timezone string `yaml:"timezone"`
	// Logging is the logging configuration.
	Logging LoggingConfig `yaml:"logging"`
}

// ScrapeConfig holds settings for the upstream price-page fetch.
type ScrapeConfig struct {
	// SourceURL is the upstream produce price list page.
	SourceURL string `yaml:"source_url"`
	// MaxAttempts bounds fetch retries; first success wins.
	MaxAttempts int `yaml:"max_attempts"`
	// TimeoutSeconds is the per-attempt HTTP timeout.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// StorageConfig names the storage connections and selects which one holds
// produce snapshots and partitions.
type StorageConfig struct {
	// SnapshotRef is the name of the storage connection used by the
	// produce snapshot store.
	SnapshotRef string `yaml:"snapshot_ref"`
	// Connections maps connection names to their per-type settings.
	// Decoded lazily by the storage resolver (see internal/storage).
	Connections map[string]interface{} `yaml:"connections"`
}

// DatabaseConfig holds the run-log database connection settings.
type DatabaseConfig struct {
	// Dialect selects the driver: "sqlite", "postgres" or "mysql".
	Dialect  string `yaml:"dialect"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Port is the listen port for the API and task endpoints.
	Port int `yaml:"port"`
	// TaskSecret is the shared secret required by the scrape and
	// backfill trigger endpoints.
	TaskSecret string `yaml:"task_secret"`
}

// TelemetryConfig holds tracing settings.
type TelemetryConfig struct {
	Enabled bool `yaml:"enabled"`
	// OTLPEndpoint is the OTLP/HTTP collector endpoint (host:port).
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	ServiceName  string `yaml:"service_name"`
}

// FeedConfig holds feed assembly settings.
type FeedConfig struct {
	// CacheTTLSeconds is the TTL of the feed cache.
	CacheTTLSeconds int `yaml:"cache_ttl_seconds"`
	// WindowDays prunes feed events older (or further in the future)
	// than this many days.
	WindowDays int `yaml:"window_days"`
}

// TownfeedConfig holds all configuration under the "townfeed" top-level key.
type TownfeedConfig struct {
	System    SystemConfig    `yaml:"system"`
	Scrape    ScrapeConfig    `yaml:"scrape"`
	Storage   StorageConfig   `yaml:"storage"`
	Database  DatabaseConfig  `yaml:"database"`
	Server    ServerConfig    `yaml:"server"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Feed      FeedConfig      `yaml:"feed"`
}

// Config is the root structure for the entire application configuration.
type Config struct {
	Townfeed TownfeedConfig `yaml:"townfeed"`
}

// NewConfig returns a new Config populated with default values.
func NewConfig() *Config {
	return &Config{
		Townfeed: TownfeedConfig{
			System: SystemConfig{
				Timezone: "America/New_York",
				Logging:  LoggingConfig{Level: "INFO"},
			},
			Scrape: ScrapeConfig{
				MaxAttempts:    3,
				TimeoutSeconds: 30,
			},
			Storage: StorageConfig{
				SnapshotRef: "blob",
				Connections: map[string]interface{}{},
			},
			Database: DatabaseConfig{
				Dialect:  "sqlite",
				Database: "townfeed.db",
			},
			Server: ServerConfig{
				Port: 8080,
			},
			Telemetry: TelemetryConfig{
				ServiceName: "townfeed",
			},
			Feed: FeedConfig{
				CacheTTLSeconds: 300,
				WindowDays:      45,
			},
		},
	}
}
