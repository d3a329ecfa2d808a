package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port           string
	Env            string
	LogLevel       string
	DatabaseURL    string
	AdminJWTSecret string

	// Clinic identity used in reminder templates
	ClinicName     string
	ClinicPhone    string
	ClinicTimezone string

	// Sweep scheduling
	SweepInterval     time.Duration
	SweepLeaseTTL     time.Duration
	SendRatePerSecond float64
	SendBurst         int

	// Per-IP limit on /api/v1; zero disables it
	APIRateLimitPerSecond float64
	APIRateLimitBurst     int

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Email transport: sendgrid, ses or stub
	EmailProvider     string
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SESFromEmail      string
	SESConfigSet      string

	// SMS transport: twilio or stub
	SMSProvider      string
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string
	TwilioStatusURL  string

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Outcome sinks for the staff workflow
	OutcomeQueueURL   string
	OutcomeTable      string
	KafkaBrokers      []string
	KafkaOutcomeTopic string

	SweepArchiveBucket string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8080"),
		Env:            getEnv("ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),

		ClinicName:     getEnv("CLINIC_NAME", "Medical Clinic"),
		ClinicPhone:    getEnv("CLINIC_PHONE", "(555) 123-4567"),
		ClinicTimezone: getEnv("CLINIC_TZ", "Local"),

		SweepInterval:     getEnvAsDuration("SWEEP_INTERVAL", time.Minute),
		SweepLeaseTTL:     getEnvAsDuration("SWEEP_LEASE_TTL", 5*time.Minute),
		SendRatePerSecond: getEnvAsFloat("SEND_RATE_PER_SECOND", 10),
		SendBurst:         getEnvAsInt("SEND_BURST", 5),

		APIRateLimitPerSecond: getEnvAsFloat("API_RATE_LIMIT_PER_SECOND", 0),
		APIRateLimitBurst:     getEnvAsInt("API_RATE_LIMIT_BURST", 20),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		EmailProvider:     strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "stub"))),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", ""),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),
		SESConfigSet:      getEnv("SES_CONFIGURATION_SET", ""),

		SMSProvider:      strings.ToLower(strings.TrimSpace(getEnv("SMS_PROVIDER", "stub"))),
		TwilioAccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber: getEnv("TWILIO_FROM_NUMBER", ""),
		TwilioStatusURL:  getEnv("TWILIO_STATUS_CALLBACK_URL", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		OutcomeQueueURL:   getEnv("OUTCOME_QUEUE_URL", ""),
		OutcomeTable:      getEnv("OUTCOME_TABLE", ""),
		KafkaBrokers:      getEnvAsList("KAFKA_BROKERS"),
		KafkaOutcomeTopic: getEnv("KAFKA_OUTCOME_TOPIC", "reminder-outcomes"),

		SweepArchiveBucket: getEnv("SWEEP_ARCHIVE_BUCKET", ""),
	}
}

// Location resolves ClinicTimezone, falling back to time.Local.
func (c *Config) Location() *time.Location {
	tz := strings.TrimSpace(c.ClinicTimezone)
	if tz == "" || strings.EqualFold(tz, "local") {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.Local
	}
	return loc
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
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

// getEnvAsList splits a comma-separated variable, dropping blanks.
func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
