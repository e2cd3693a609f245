package backend

import (
	"fmt"
	"net/url"

	"fintrack/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type %q, want one of %v", appConfig.DataBackend, GetBackendTypes())
	}

	return Config{
		Type: backendType,

		APIBase:       appConfig.APIBase,
		RemoteTimeout: appConfig.RemoteTimeout,

		SQLiteDBPath: appConfig.SQLiteDBPath,
		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,

		SeedFile: appConfig.SeedFile,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case RemoteBackend:
		u, err := url.Parse(c.APIBase)
		if err != nil || c.APIBase == "" {
			return fmt.Errorf("API base URL is required for remote backend")
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("API base URL must be http or https for remote backend")
		}

	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
		// AMQP is optional

	case MemoryBackend:
		// SeedFile is optional
	}

	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{MemoryBackend, SQLiteBackend, RemoteBackend}
}
