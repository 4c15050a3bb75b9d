package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// DynamoDB tables
	ConnectionsTable string
	SendHistoryTable string

	// OAuth client credentials used for refresh-token exchanges
	GoogleClientID        string
	GoogleClientSecret    string
	MicrosoftClientID     string
	MicrosoftClientSecret string

	// Prescription pad template candidates, tried in order. Entries may be
	// https:// or s3://bucket/key URLs.
	TemplateURLs []string

	// Outbound HTTP budget for provider and template calls
	HTTPTimeout time.Duration

	// Redis (rate limiting)
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	RateLimitPerMinute int

	CORSAllowedOrigins []string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		AWSRegion:           getEnv("AWS_REGION", "af-south-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		ConnectionsTable: getEnv("CONNECTIONS_TABLE", "email_connections"),
		SendHistoryTable: getEnv("SEND_HISTORY_TABLE", "send_history"),

		GoogleClientID:        getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:    getEnv("GOOGLE_CLIENT_SECRET", ""),
		MicrosoftClientID:     getEnv("MICROSOFT_CLIENT_ID", ""),
		MicrosoftClientSecret: getEnv("MICROSOFT_CLIENT_SECRET", ""),

		TemplateURLs: getEnvAsList("PRESCRIPTION_TEMPLATE_URLS"),
		HTTPTimeout:  getEnvAsDuration("HTTP_TIMEOUT", 30*time.Second),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		RateLimitPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 30),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
	}
}

// Validate checks that everything the send pipeline needs is present. It runs
// once at startup so missing credentials fail the boot, not a patient's send.
func (c *Config) Validate() error {
	var missing []string
	if c.ConnectionsTable == "" {
		missing = append(missing, "CONNECTIONS_TABLE")
	}
	if c.GoogleClientID == "" || c.GoogleClientSecret == "" {
		missing = append(missing, "GOOGLE_CLIENT_ID/GOOGLE_CLIENT_SECRET")
	}
	if c.MicrosoftClientID == "" || c.MicrosoftClientSecret == "" {
		missing = append(missing, "MICROSOFT_CLIENT_ID/MICROSOFT_CLIENT_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated environment variable, dropping empty entries.
func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
