// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// ListenAddr is the address the HTTP server listens on (e.g. :8080).
	ListenAddr string `mapstructure:"LISTEN_ADDR"`
	// DatabaseURL is the Postgres DSN for audit logs and recovery codes.
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	// ProviderBaseURL is the identity provider API base URL. When empty and
	// LocalProvider is true, the in-process TOTP provider is used instead.
	ProviderBaseURL string `mapstructure:"PROVIDER_BASE_URL"`
	// ProviderAPIKey is the bearer token for the identity provider API.
	ProviderAPIKey string `mapstructure:"PROVIDER_API_KEY"`
	// LocalProvider enables the in-process TOTP provider for development.
	// Must not be true when Env is production.
	LocalProvider bool `mapstructure:"LOCAL_PROVIDER"`

	// ResolveTimeout bounds a single factor-state resolution round trip (e.g. "3s").
	ResolveTimeout string `mapstructure:"RESOLVE_TIMEOUT"`
	// TOTPIssuer is the issuer label stamped on enrolled authenticators (e.g. the org name).
	TOTPIssuer string `mapstructure:"TOTP_ISSUER"`

	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA) or path to file; signs step-up tokens.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or path to file; validates access and step-up tokens.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	// JWTIssuer is the iss claim checked and stamped on tokens.
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the aud claim checked and stamped on tokens.
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// StepUpTokenTTL is the step-up token lifetime (e.g. "10m").
	StepUpTokenTTL string `mapstructure:"STEPUP_TOKEN_TTL"`
	// BcryptCost is the bcrypt cost factor (4-31) for recovery code hashes; default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	// PolicyPath is an optional path to a rego file overriding the built-in
	// step-up requirement policy.
	PolicyPath string `mapstructure:"POLICY_PATH"`

	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`

	// OTLPEndpoint is the OTLP gRPC collector endpoint (e.g. http://localhost:4317). Empty disables export.
	OTLPEndpoint string `mapstructure:"OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext OTLP even for https endpoints.
	OTLPInsecure bool `mapstructure:"OTLP_INSECURE"`

	// Telemetry (optional). When Kafka brokers are set, the server emits step-up events to Kafka.
	// TelemetryKafkaBrokers is a comma-separated list of Kafka broker addresses (e.g. "localhost:9092").
	TelemetryKafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// TelemetryKafkaTopic is the Kafka topic for step-up events (default stepup-events).
	TelemetryKafkaTopic string `mapstructure:"TELEMETRY_KAFKA_TOPIC"`

	// Worker-only: Loki URL for the telemetry worker to push logs (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`
	// KafkaGroupID is the consumer group ID for the telemetry worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("LISTEN_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("PROVIDER_BASE_URL", "")
	v.SetDefault("PROVIDER_API_KEY", "")
	v.SetDefault("LOCAL_PROVIDER", false)
	v.SetDefault("RESOLVE_TIMEOUT", "3s")
	v.SetDefault("TOTP_ISSUER", "stepup-gateway")
	v.SetDefault("JWT_ISSUER", "stepup-gateway")
	v.SetDefault("JWT_AUDIENCE", "admin-api")
	v.SetDefault("STEPUP_TOKEN_TTL", "10m")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("POLICY_PATH", "")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("OTLP_ENDPOINT", "")
	v.SetDefault("OTLP_INSECURE", false)
	v.SetDefault("TELEMETRY_KAFKA_TOPIC", "stepup-events")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("KAFKA_GROUP_ID", "stepup-telemetry-worker")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.ListenAddr == "" {
		return nil, errors.New("config: LISTEN_ADDR must be set")
	}

	if cfg.LocalProvider && cfg.Env == "production" {
		return nil, errors.New("config: LOCAL_PROVIDER must not be true when APP_ENV=production")
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}

	return &cfg, nil
}

// ResolveTimeoutDuration parses ResolveTimeout. Returns 3s if unset or invalid.
func (c *Config) ResolveTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.ResolveTimeout)
	if err != nil || d <= 0 {
		return 3 * time.Second
	}
	return d
}

// StepUpTTL parses StepUpTokenTTL as a time.Duration. Returns 10m if unset or invalid.
func (c *Config) StepUpTTL() time.Duration {
	d, err := time.ParseDuration(c.StepUpTokenTTL)
	if err != nil || d <= 0 {
		return 10 * time.Minute
	}
	return d
}

// TelemetryKafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if telemetry is enabled (non-empty list) and to create the producer.
func (c *Config) TelemetryKafkaBrokersList() []string {
	if c == nil || c.TelemetryKafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.TelemetryKafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
