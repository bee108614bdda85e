// Package config provides file and environment configuration for the client
// and the stub backend.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds all configuration for the application.
type Config struct {
	Backend   BackendConfig   `toml:"backend"`
	Session   SessionConfig   `toml:"session"`
	Telemetry TelemetryConfig `toml:"telemetry"`
	NATS      NATSConfig      `toml:"nats"`
	Server    ServerConfig    `toml:"server"`

	// Logging
	LogLevel string `toml:"log_level"`
}

// BackendConfig locates the assistant backend.
type BackendConfig struct {
	URL string `toml:"url"`
	// Timeout of zero leaves requests unbounded.
	Timeout time.Duration `toml:"timeout"`
}

// SessionConfig controls a chat session.
type SessionConfig struct {
	Persona           string `toml:"persona"`
	RecipientEmail    string `toml:"recipient_email"`
	UploadConcurrency int    `toml:"upload_concurrency"`
	ExportDir         string `toml:"export_dir"`
}

// TelemetryConfig holds metrics and tracing settings.
type TelemetryConfig struct {
	MetricsAddr     string `toml:"metrics_addr"`
	TracingEnabled  bool   `toml:"tracing_enabled"`
	TracingEndpoint string `toml:"tracing_endpoint"`
}

// NATSConfig enables session event fan-out when URL is set.
type NATSConfig struct {
	URL           string `toml:"url"`
	Token         string `toml:"token"`
	SubjectPrefix string `toml:"subject_prefix"`
}

// ServerConfig holds the stub backend server settings.
type ServerConfig struct {
	Port              string        `toml:"port"`
	ReadTimeout       time.Duration `toml:"read_timeout"`
	WriteTimeout      time.Duration `toml:"write_timeout"`
	RateLimitRequests int           `toml:"rate_limit_requests"`
	RateLimitWindow   time.Duration `toml:"rate_limit_window"`
	MaxUploadBytes    int64         `toml:"max_upload_bytes"`
}

// Load reads defaults, then the optional TOML file named by CONFIG_FILE,
// then environment variables.
func Load() (*Config, error) {
	cfg := Default()

	configPath := getEnv("CONFIG_FILE", "configs/qa.toml")
	if _, err := os.Stat(configPath); err == nil {
		if _, err := toml.DecodeFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config file %s: %w", configPath, err)
		}
	}

	overrideByEnv(cfg)
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			URL: "http://localhost:8000",
		},
		Session: SessionConfig{
			Persona:           "Novice Guide",
			UploadConcurrency: 4,
			ExportDir:         ".",
		},
		Telemetry: TelemetryConfig{
			TracingEndpoint: "localhost:4318",
		},
		NATS: NATSConfig{
			SubjectPrefix: "qa",
		},
		Server: ServerConfig{
			Port:              "8000",
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      120 * time.Second,
			RateLimitRequests: 60,
			RateLimitWindow:   time.Minute,
			MaxUploadBytes:    32 << 20,
		},
		LogLevel: "info",
	}
}

func overrideByEnv(cfg *Config) {
	// Backend
	cfg.Backend.URL = getEnv("BACKEND_URL", cfg.Backend.URL)
	cfg.Backend.Timeout = getDurationEnv("BACKEND_TIMEOUT", cfg.Backend.Timeout)

	// Session
	cfg.Session.Persona = getEnv("PERSONA", cfg.Session.Persona)
	cfg.Session.RecipientEmail = getEnv("RECIPIENT_EMAIL", cfg.Session.RecipientEmail)
	cfg.Session.UploadConcurrency = getIntEnv("UPLOAD_CONCURRENCY", cfg.Session.UploadConcurrency)
	cfg.Session.ExportDir = getEnv("EXPORT_DIR", cfg.Session.ExportDir)

	// Telemetry
	cfg.Telemetry.MetricsAddr = getEnv("METRICS_ADDR", cfg.Telemetry.MetricsAddr)
	cfg.Telemetry.TracingEnabled = getBoolEnv("TRACING_ENABLED", cfg.Telemetry.TracingEnabled)
	cfg.Telemetry.TracingEndpoint = getEnv("TRACING_ENDPOINT", cfg.Telemetry.TracingEndpoint)

	// NATS
	cfg.NATS.URL = getEnv("NATS_URL", cfg.NATS.URL)
	cfg.NATS.Token = getEnv("NATS_TOKEN", cfg.NATS.Token)
	cfg.NATS.SubjectPrefix = getEnv("NATS_SUBJECT_PREFIX", cfg.NATS.SubjectPrefix)

	// Stub server
	cfg.Server.Port = getEnv("PORT", cfg.Server.Port)
	cfg.Server.ReadTimeout = getDurationEnv("SERVER_READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = getDurationEnv("SERVER_WRITE_TIMEOUT", cfg.Server.WriteTimeout)
	cfg.Server.RateLimitRequests = getIntEnv("RATE_LIMIT_REQUESTS", cfg.Server.RateLimitRequests)
	cfg.Server.RateLimitWindow = getDurationEnv("RATE_LIMIT_WINDOW", cfg.Server.RateLimitWindow)
	cfg.Server.MaxUploadBytes = int64(getIntEnv("MAX_UPLOAD_BYTES", int(cfg.Server.MaxUploadBytes)))

	// Logging
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
