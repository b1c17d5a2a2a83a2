// internal/config/config.go
// Centralized configuration management
// Loads from environment variables with sensible defaults

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Server
	Port        string
	Environment string
	BaseURL     string

	// Storage
	StorageBackend string // "memory" or "postgres"
	DatabaseURL    string
	RedisURL       string

	// Provider selection
	DefaultProvider  string // "", "smsactivate", "fivesim", "twilio" or "mock"
	EnableMockVendor bool

	// SMS-Activate
	SMSActivateAPIKey  string
	SMSActivateBaseURL string

	// 5sim
	FiveSimAPIKey  string
	FiveSimBaseURL string

	// Twilio
	TwilioAccountSID string
	TwilioAuthToken  string

	// Number lifecycle
	NumberLifetime     time.Duration
	PollInterval       time.Duration
	VendorTimeout      time.Duration
	AllocateProbeDelay time.Duration

	// Cleanup
	SweepInterval     time.Duration
	TerminalRetention time.Duration

	// Catalog
	CatalogCacheTTL time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	cfg := &Config{
		// Server
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		BaseURL:     getEnv("BASE_URL", ""),

		// Storage
		StorageBackend: getEnv("STORAGE_BACKEND", "memory"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		RedisURL:       getEnv("REDIS_URL", ""),

		// Provider selection
		DefaultProvider:  getEnv("DEFAULT_PROVIDER", ""),
		EnableMockVendor: getEnvBool("ENABLE_MOCK_VENDOR", false),

		// SMS-Activate
		SMSActivateAPIKey:  getEnv("SMSACTIVATE_API_KEY", ""),
		SMSActivateBaseURL: getEnv("SMSACTIVATE_BASE_URL", "https://api.sms-activate.org/stubs/handler_api.php"),

		// 5sim
		FiveSimAPIKey:  getEnv("FIVESIM_API_KEY", ""),
		FiveSimBaseURL: getEnv("FIVESIM_BASE_URL", "https://5sim.net/v1"),

		// Twilio
		TwilioAccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),

		// Number lifecycle
		NumberLifetime:     getEnvDuration("NUMBER_LIFETIME", "10m"),
		PollInterval:       getEnvDuration("POLL_INTERVAL", "5s"),
		VendorTimeout:      getEnvDuration("VENDOR_TIMEOUT", "10s"),
		AllocateProbeDelay: getEnvDuration("ALLOCATE_PROBE_DELAY", "500ms"),

		// Cleanup
		SweepInterval:     getEnvDuration("SWEEP_INTERVAL", "1h"),
		TerminalRetention: getEnvDuration("TERMINAL_RETENTION", "24h"),

		// Catalog
		CatalogCacheTTL: getEnvDuration("CATALOG_CACHE_TTL", "5m"),
	}

	// Set BaseURL if not provided
	if cfg.BaseURL == "" {
		cfg.BaseURL = fmt.Sprintf("http://localhost:%s", cfg.Port)
	}

	return cfg
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case "memory":
		// Nothing required
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORAGE_BACKEND is postgres")
		}
	default:
		return fmt.Errorf("invalid storage backend: %s", c.StorageBackend)
	}

	switch c.DefaultProvider {
	case "", "smsactivate", "fivesim", "twilio":
		// OK
	case "mock":
		if c.Environment == "production" {
			return fmt.Errorf("mock vendor cannot be the default provider in production")
		}
		if !c.EnableMockVendor {
			return fmt.Errorf("DEFAULT_PROVIDER is mock but ENABLE_MOCK_VENDOR is false")
		}
	default:
		return fmt.Errorf("invalid default provider: %s", c.DefaultProvider)
	}

	if c.NumberLifetime <= 0 {
		return fmt.Errorf("number lifetime must be positive")
	}

	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}

	if c.PollInterval >= c.NumberLifetime {
		return fmt.Errorf("poll interval must be shorter than the number lifetime")
	}

	if c.VendorTimeout <= 0 {
		return fmt.Errorf("vendor timeout must be positive")
	}

	if c.TerminalRetention < 0 {
		return fmt.Errorf("terminal retention cannot be negative")
	}

	return nil
}

// IsProduction returns true if running in production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// IsDevelopment returns true if running in development
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// Helper functions

// getEnv gets a string value from environment with a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvDuration gets a duration value from environment with a default
func getEnvDuration(key string, defaultValue string) time.Duration {
	value := getEnv(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		// If parsing fails, try to parse the default
		duration, _ = time.ParseDuration(defaultValue)
	}
	return duration
}

// getEnvBool gets a boolean value from environment with a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
