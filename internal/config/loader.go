package config

import (
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"go.uber.org/fx"

	"github.com/harborlight/townfeed/internal/support/exception"
	"github.com/harborlight/townfeed/internal/support/logger"
)

const moduleName = "config"

// ConfigParams defines the dependencies for NewConfigProvider.
type ConfigParams struct {
	fx.In
	EmbeddedConfig EmbeddedConfig
	EnvFilePath    string `name:"envFilePath" optional:"true"`
}

// loadConfig loads configuration from the embedded YAML and environment
// variables. It is intended to be called once during startup.
func loadConfig(envFilePath string, embeddedConfig EmbeddedConfig) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			logger.Warnf(".env file (%s) not found or could not be loaded: %v", envFilePath, err)
		}
	} else {
		if err := godotenv.Load(); err != nil {
			logger.Debugf(".env file not found or could not be loaded: %v", err)
		}
	}

	cfg := NewConfig()

	// Expand ${VAR} placeholders in the embedded YAML before parsing so
	// secrets can live outside the binary.
	expanded := os.ExpandEnv(string(embeddedConfig))

	var yamlConfig Config
	if err := yaml.Unmarshal([]byte(expanded), &yamlConfig); err != nil {
		return nil, exception.New(moduleName, "failed to unmarshal embedded config", err, false, false)
	}

	mergeConfig(cfg, &yamlConfig)

	if err := loadStructFromEnv(reflect.ValueOf(cfg).Elem(), ""); err != nil {
		return nil, exception.New(moduleName, "failed to load config from environment variables", err, false, false)
	}
	return cfg, nil
}

// NewConfigProvider is an Fx provider that loads and provides *Config.
// It layers defaults, the embedded YAML, and environment-variable
// overrides, then applies the configured log level.
func NewConfigProvider(params ConfigParams) (*Config, error) {
	cfg, err := loadConfig(params.EnvFilePath, params.EmbeddedConfig)
	if err != nil {
		return nil, err
	}

	logger.SetLogLevel(cfg.Townfeed.System.Logging.Level)
	logger.Infof("Log level set to: %s", cfg.Townfeed.System.Logging.Level)

	return cfg, nil
}

// LoadConfig loads configuration from the embedded YAML and environment
// variables, outside of an Fx container.
func LoadConfig(envFilePath string, embeddedConfig EmbeddedConfig) (*Config, error) {
	return loadConfig(envFilePath, embeddedConfig)
}

// Module is the Fx module providing the application configuration.
var Module = fx.Options(
	fx.Provide(NewConfigProvider),
)

// mergeConfig performs a deep merge from sourceConfig into destConfig.
// Non-zero values in sourceConfig overwrite the corresponding defaults.
func mergeConfig(destConfig, sourceConfig *Config) {
	dest, source := &destConfig.Townfeed, &sourceConfig.Townfeed

	if source.System.Timezone != "" {
		dest.System.Timezone = source.System.Timezone
	}
	if source.System.Logging.Level != "" {
		dest.System.Logging.Level = source.System.Logging.Level
	}

	if source.Scrape.SourceURL != "" {
		dest.Scrape.SourceURL = source.Scrape.SourceURL
	}
	if source.Scrape.MaxAttempts != 0 {
		dest.Scrape.MaxAttempts = source.Scrape.MaxAttempts
	}
	if source.Scrape.TimeoutSeconds != 0 {
		dest.Scrape.TimeoutSeconds = source.Scrape.TimeoutSeconds
	}

	if source.Storage.SnapshotRef != "" {
		dest.Storage.SnapshotRef = source.Storage.SnapshotRef
	}
	if source.Storage.Connections != nil {
		if dest.Storage.Connections == nil {
			dest.Storage.Connections = make(map[string]interface{})
		}
		for key, value := range source.Storage.Connections {
			dest.Storage.Connections[key] = value
		}
	}

	mergeDatabaseConfig(&dest.Database, &source.Database)

	if source.Server.Port != 0 {
		dest.Server.Port = source.Server.Port
	}
	if source.Server.TaskSecret != "" {
		dest.Server.TaskSecret = source.Server.TaskSecret
	}

	if source.Telemetry.Enabled {
		dest.Telemetry.Enabled = true
	}
	if source.Telemetry.OTLPEndpoint != "" {
		dest.Telemetry.OTLPEndpoint = source.Telemetry.OTLPEndpoint
	}
	if source.Telemetry.ServiceName != "" {
		dest.Telemetry.ServiceName = source.Telemetry.ServiceName
	}

	if source.Feed.CacheTTLSeconds != 0 {
		dest.Feed.CacheTTLSeconds = source.Feed.CacheTTLSeconds
	}
	if source.Feed.WindowDays != 0 {
		dest.Feed.WindowDays = source.Feed.WindowDays
	}
}

// mergeDatabaseConfig merges source into dest.
func mergeDatabaseConfig(dest, source *DatabaseConfig) {
	if source.Dialect != "" {
		dest.Dialect = source.Dialect
	}
	if source.Host != "" {
		dest.Host = source.Host
	}
	if source.Port != 0 {
		dest.Port = source.Port
	}
	if source.Database != "" {
		dest.Database = source.Database
	}
	if source.User != "" {
		dest.User = source.User
	}
	if source.Password != "" {
		dest.Password = source.Password
	}
	if source.SSLMode != "" {
		dest.SSLMode = source.SSLMode
	}
}

// loadStructFromEnv recursively loads configuration values into a struct
// from environment variables, deriving names from "yaml" tags
// (e.g. TOWNFEED_SERVER_PORT).
func loadStructFromEnv(val reflect.Value, prefix string) error {
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)
		yamlTag := fieldType.Tag.Get("yaml")
		if yamlTag == "" || yamlTag == "-" {
			continue
		}
		envVarName := strings.ToUpper(prefix + yamlTag)

		if field.Kind() == reflect.Struct {
			if err := loadStructFromEnv(field, envVarName+"_"); err != nil {
				return err
			}
			continue
		}

		// Map-typed sections (storage connections) are configured via
		// YAML only.
		if field.Kind() == reflect.Map {
			continue
		}

		envValue, exists := os.LookupEnv(envVarName)
		if !exists {
			continue
		}

		if err := setField(field, envValue); err != nil {
			return exception.Newf(moduleName, "failed to set field '%s' from env var '%s': %v", fieldType.Name, envVarName, err)
		}
	}
	return nil
}

// setField sets a reflect.Value field from its string form.
func setField(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(intValue)
	case reflect.Float64, reflect.Float32:
		floatValue, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(floatValue)
	case reflect.Bool:
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(boolValue)
	}
	return nil
}
