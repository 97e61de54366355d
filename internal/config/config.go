// Package config loads runtime settings from the environment, an optional
// .env file and an optional config file named by SPENDINGS_CONFIG.
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"spendings/internal/log"
)

// ConfigFileEnv names the optional config file (toml, yaml or json).
const ConfigFileEnv = "SPENDINGS_CONFIG"

type Config struct {
	// HTTP Server
	Port               string
	LogLevel           string
	RateLimitPerMinute int
	AllowLocalSources  bool
	TrustedProxies     []string

	// Import
	InputSource  string
	FetchTimeout time.Duration
	// ImportInterval schedules worker imports of InputSource; 0 disables.
	ImportInterval time.Duration

	// Backend selection
	DataBackend       string
	StorageQuotaBytes int64

	// SQLite
	SQLiteDBPath string

	// MongoDB
	MongoURI      string
	MongoDatabase string

	// AMQP; disabled when AMQPURL is empty
	AMQPURL         string
	AMQPExchange    string
	AMQPImportQueue string
	AMQPEventsQueue string

	// Report cache
	ReportCacheSize int
	ReportCacheTTL  time.Duration
}

var defaults = map[string]any{
	"port":                  "8081",
	"log_level":             "info",
	"rate_limit_per_minute": 60,
	"allow_local_sources":   false,
	"trusted_proxies":       "",
	"input_source":          "data/Spendings Export.csv",
	"fetch_timeout":         "30s",
	"data_backend":          "memory",
	"storage_quota_bytes":   5 * 1024 * 1024,
	"sqlite_db_path":        "./data/spendings.db",
	"mongo_uri":             "mongodb://localhost:27017",
	"mongo_database":        "spendings",
	"amqp_url":              "",
	"amqp_exchange":         "spendings",
	"amqp_import_queue":     "import_requests",
	"amqp_events_queue":     "import_events",
	"report_cache_size":     16,
	"report_cache_ttl":      "10m",
}

// Load reads configuration. Environment variables win over the config file,
// which wins over defaults.
func Load() (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if path := os.Getenv(ConfigFileEnv); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	return &Config{
		Port:               v.GetString("port"),
		LogLevel:           v.GetString("log_level"),
		RateLimitPerMinute: v.GetInt("rate_limit_per_minute"),
		AllowLocalSources:  v.GetBool("allow_local_sources"),
		TrustedProxies:     splitList(v.GetString("trusted_proxies")),
		InputSource:        v.GetString("input_source"),
		FetchTimeout:       v.GetDuration("fetch_timeout"),
		DataBackend:        v.GetString("data_backend"),
		StorageQuotaBytes:  v.GetInt64("storage_quota_bytes"),
		SQLiteDBPath:       v.GetString("sqlite_db_path"),
		MongoURI:           v.GetString("mongo_uri"),
		MongoDatabase:      v.GetString("mongo_database"),
		AMQPURL:            v.GetString("amqp_url"),
		AMQPExchange:       v.GetString("amqp_exchange"),
		AMQPImportQueue:    v.GetString("amqp_import_queue"),
		AMQPEventsQueue:    v.GetString("amqp_events_queue"),
		ReportCacheSize:    v.GetInt("report_cache_size"),
		ReportCacheTTL:     v.GetDuration("report_cache_ttl"),
	}, nil
}

// splitList splits a comma separated value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// AMQPEnabled reports whether a broker is configured.
func (c *Config) AMQPEnabled() bool {
	return c.AMQPURL != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of [debug info warn error]", c.LogLevel))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}
	for _, cidr := range c.TrustedProxies {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			errors = append(errors, fmt.Sprintf("invalid trusted proxy '%s': must be a CIDR", cidr))
		}
	}

	if strings.TrimSpace(c.InputSource) == "" {
		errors = append(errors, "input source cannot be empty")
	}
	if c.FetchTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("invalid fetch timeout %v: must be positive", c.FetchTimeout))
	}

	if c.ImportInterval < 0 {
		errors = append(errors, fmt.Sprintf("invalid import interval %v: must not be negative", c.ImportInterval))
	}

	validBackends := []string{"memory", "sqlite", "mongo"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.StorageQuotaBytes < 0 {
		errors = append(errors, fmt.Sprintf("invalid storage quota %d: must not be negative", c.StorageQuotaBytes))
	}

	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	if c.DataBackend == "mongo" {
		if parsedURL, err := url.Parse(c.MongoURI); err != nil || c.MongoURI == "" {
			errors = append(errors, fmt.Sprintf("invalid MongoDB URI '%s'", c.MongoURI))
		} else if parsedURL.Scheme != "mongodb" && parsedURL.Scheme != "mongodb+srv" {
			errors = append(errors, fmt.Sprintf("invalid MongoDB URI scheme '%s': must be 'mongodb' or 'mongodb+srv'", parsedURL.Scheme))
		}
		if c.MongoDatabase == "" {
			errors = append(errors, "MongoDB database name cannot be empty when using mongo backend")
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPImportQueue == "" {
			errors = append(errors, "AMQP import queue name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPEventsQueue == "" {
			errors = append(errors, "AMQP events queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.ReportCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid report cache size %d: must be at least 1", c.ReportCacheSize))
	} else if c.ReportCacheSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid report cache size %d: must be at most 1000", c.ReportCacheSize))
	}
	if c.ReportCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid report cache ttl %v: must not be negative", c.ReportCacheTTL))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}
