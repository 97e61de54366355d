package backend

import (
	"fmt"

	"spendings/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type:          backendType,
		QuotaBytes:    appConfig.StorageQuotaBytes,
		SQLiteDBPath:  appConfig.SQLiteDBPath,
		MongoURI:      appConfig.MongoURI,
		MongoDatabase: appConfig.MongoDatabase,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
	if c.QuotaBytes < 0 {
		return fmt.Errorf("quota must not be negative: %d", c.QuotaBytes)
	}

	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
	case MongoBackend:
		if c.MongoURI == "" {
			return fmt.Errorf("MongoDB URI is required for mongo backend")
		}
		if c.MongoDatabase == "" {
			return fmt.Errorf("MongoDB database is required for mongo backend")
		}
	case MemoryBackend:
	}
	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{MemoryBackend, SQLiteBackend, MongoBackend}
}

// GetBackendTypeStrings returns all valid backend type strings
func GetBackendTypeStrings() []string {
	types := GetBackendTypes()
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = t.String()
	}
	return out
}
