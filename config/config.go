package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Server configuration
	Port        string
	Environment string

	// Redis configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// PubNub configuration
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string

	// QR payload signing
	PayloadSecretKey string

	// Scanner device authentication (bcrypt hash of the device key)
	ScannerKeyHash string

	// Late-pass policy defaults, applied to orgs without their own config
	MaxGenerationDelayMinutes  int
	MaxAcceptanceDelayMinutes  int
	AllowMultipleActiveTickets bool
	AutoExpireTickets          bool

	// Background sweep configuration
	SweepInterval time.Duration

	// Redemption rate limiting
	ScanRateLimit  int
	ScanRateWindow time.Duration

	// Monitoring
	EnableMetrics bool
	MetricsPort   string
}

func LoadConfig() *Config {
	return &Config{
		// Server
		Port:        getEnv("PORT", "8090"),
		Environment: getEnv("ENVIRONMENT", "development"),

		// Redis
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),

		// Signing
		PayloadSecretKey: getEnv("PAYLOAD_SECRET_KEY", "dev-only-latepass-secret"),
		ScannerKeyHash:   getEnv("SCANNER_KEY_HASH", ""),

		// Late-pass policy
		MaxGenerationDelayMinutes:  getEnvAsInt("MAX_GENERATION_DELAY_MINUTES", 10),
		MaxAcceptanceDelayMinutes:  getEnvAsInt("MAX_ACCEPTANCE_DELAY_MINUTES", 15),
		AllowMultipleActiveTickets: getEnvAsBool("ALLOW_MULTIPLE_ACTIVE_TICKETS", false),
		AutoExpireTickets:          getEnvAsBool("AUTO_EXPIRE_TICKETS", true),

		// Sweep
		SweepInterval: getEnvAsDuration("SWEEP_INTERVAL", "30s"),

		// Rate limiting
		ScanRateLimit:  getEnvAsInt("SCAN_RATE_LIMIT", 10),
		ScanRateWindow: getEnvAsDuration("SCAN_RATE_WINDOW", "1m"),

		// Monitoring
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
		MetricsPort:   getEnv("METRICS_PORT", "9090"),
	}
}

// Validate rejects configurations whose acceptance window ends before the
// generation window: such a config would let an admin issue tickets that are
// already expired.
func (c *Config) Validate() error {
	if c.MaxGenerationDelayMinutes < 0 || c.MaxAcceptanceDelayMinutes < 0 {
		return fmt.Errorf("config: window minutes must not be negative")
	}
	if c.MaxAcceptanceDelayMinutes < c.MaxGenerationDelayMinutes {
		return fmt.Errorf("config: max acceptance delay (%dm) must be >= max generation delay (%dm)",
			c.MaxAcceptanceDelayMinutes, c.MaxGenerationDelayMinutes)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	// If parsing fails, try to parse default value
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
