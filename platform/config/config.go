// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
	GetAPIToken() string
}

// InventoryConfig provides settings for the lead inventory endpoint.
type InventoryConfig interface {
	GetInventoryURL() string
	GetInventoryAPIKey() string
	GetInventoryTimeout() time.Duration
}

// DeliveryConfig provides settings for the lead delivery endpoint.
type DeliveryConfig interface {
	GetDeliveryURL() string
	GetDeliveryAPIKey() string
	GetDeliveryTimeout() time.Duration
}

// EngineConfig provides settings for the delivery scheduling engine.
type EngineConfig interface {
	GetRecorderBufferSize() int
	GetRecorderWorkers() int
	GetRegistryGCInterval() time.Duration
}

// AlertConfig provides settings for operator failure alerts.
type AlertConfig interface {
	GetAlertSMTPHost() string
	GetAlertSMTPPort() int
	GetAlertSMTPUsername() string
	GetAlertSMTPPassword() string
	GetAlertFromAddress() string
	GetAlertToAddress() string
	GetAlertCooldown() time.Duration
	IsAlertingEnabled() bool
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                string
	HTTPAddr           string
	DatabaseURL        string
	APIToken           string
	CORSAllowAll       bool
	CORSOrigins        []string
	CORSAllowCreds     bool
	InventoryURL       string
	InventoryAPIKey    string
	InventoryTimeout   time.Duration
	DeliveryURL        string
	DeliveryAPIKey     string
	DeliveryTimeout    time.Duration
	RecorderBufferSize int
	RecorderWorkers    int
	RegistryGCInterval time.Duration
	AlertSMTPHost      string
	AlertSMTPPort      int
	AlertSMTPUsername  string
	AlertSMTPPassword  string
	AlertFromAddress   string
	AlertToAddress     string
	AlertCooldown      time.Duration
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }
func (c *Config) GetAPIToken() string      { return c.APIToken }

// InventoryConfig implementation
func (c *Config) GetInventoryURL() string            { return c.InventoryURL }
func (c *Config) GetInventoryAPIKey() string         { return c.InventoryAPIKey }
func (c *Config) GetInventoryTimeout() time.Duration { return c.InventoryTimeout }

// DeliveryConfig implementation
func (c *Config) GetDeliveryURL() string            { return c.DeliveryURL }
func (c *Config) GetDeliveryAPIKey() string         { return c.DeliveryAPIKey }
func (c *Config) GetDeliveryTimeout() time.Duration { return c.DeliveryTimeout }

// EngineConfig implementation
func (c *Config) GetRecorderBufferSize() int           { return c.RecorderBufferSize }
func (c *Config) GetRecorderWorkers() int              { return c.RecorderWorkers }
func (c *Config) GetRegistryGCInterval() time.Duration { return c.RegistryGCInterval }

// AlertConfig implementation
func (c *Config) GetAlertSMTPHost() string         { return c.AlertSMTPHost }
func (c *Config) GetAlertSMTPPort() int            { return c.AlertSMTPPort }
func (c *Config) GetAlertSMTPUsername() string     { return c.AlertSMTPUsername }
func (c *Config) GetAlertSMTPPassword() string     { return c.AlertSMTPPassword }
func (c *Config) GetAlertFromAddress() string      { return c.AlertFromAddress }
func (c *Config) GetAlertToAddress() string        { return c.AlertToAddress }
func (c *Config) GetAlertCooldown() time.Duration  { return c.AlertCooldown }
func (c *Config) IsAlertingEnabled() bool {
	return c.AlertSMTPHost != "" && c.AlertToAddress != ""
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:                getEnv("APP_ENV", "development"),
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		APIToken:           getEnv("API_TOKEN", ""),
		CORSAllowAll:       corsAllowAll,
		CORSOrigins:        corsOrigins,
		CORSAllowCreds:     strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		InventoryURL:       getEnv("INVENTORY_URL", ""),
		InventoryAPIKey:    getEnv("INVENTORY_API_KEY", ""),
		InventoryTimeout:   mustDuration(getEnv("INVENTORY_TIMEOUT", "30s")),
		DeliveryURL:        getEnv("DELIVERY_URL", ""),
		DeliveryAPIKey:     getEnv("DELIVERY_API_KEY", ""),
		DeliveryTimeout:    mustDuration(getEnv("DELIVERY_TIMEOUT", "30s")),
		RecorderBufferSize: mustInt(getEnv("RECORDER_BUFFER_SIZE", "256")),
		RecorderWorkers:    mustInt(getEnv("RECORDER_WORKERS", "4")),
		RegistryGCInterval: mustDuration(getEnv("REGISTRY_GC_INTERVAL", "1h")),
		AlertSMTPHost:      getEnv("ALERT_SMTP_HOST", ""),
		AlertSMTPPort:      mustInt(getEnv("ALERT_SMTP_PORT", "587")),
		AlertSMTPUsername:  getEnv("ALERT_SMTP_USERNAME", ""),
		AlertSMTPPassword:  getEnv("ALERT_SMTP_PASSWORD", ""),
		AlertFromAddress:   getEnv("ALERT_FROM_ADDRESS", ""),
		AlertToAddress:     getEnv("ALERT_TO_ADDRESS", ""),
		AlertCooldown:      mustDuration(getEnv("ALERT_COOLDOWN", "15m")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.InventoryURL == "" {
		return nil, fmt.Errorf("INVENTORY_URL is required")
	}
	if cfg.DeliveryURL == "" {
		return nil, fmt.Errorf("DELIVERY_URL is required")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
