package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	LogLevel string

	// Trade data provider configuration
	ProviderBaseURL      string
	ProviderAPIKey       string
	ProviderChain        string
	ProviderRateLimitRPS float64
	ProviderBurst        int
	ProviderMaxRetries   int
	ProviderRetryBackoff time.Duration
	ProviderTimeout      time.Duration

	// Solana RPC configuration (wallet history lookups)
	SolanaRPCURL string

	// Database configuration
	DatabaseURL string

	// NATS configuration
	NATSURL string

	// Temporal configuration
	TemporalHost      string
	TemporalNamespace string
	TemporalTaskQueue string

	// Metrics configuration
	MetricsAddr string

	// Analysis defaults
	MaxBuyers           int
	PageSize            int
	NewWalletThreshold  time.Duration
	AnalysisConcurrency int
	TransferLimit       int
}

// Load reads configuration from environment variables and validates all
// required fields. Returns an error if any required configuration is missing
// or invalid.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	// Provider configuration
	cfg.ProviderBaseURL = getEnvOrDefault("PROVIDER_BASE_URL", "https://public-api.birdeye.so")
	cfg.ProviderAPIKey = os.Getenv("PROVIDER_API_KEY")
	if cfg.ProviderAPIKey == "" {
		errs = append(errs, fmt.Errorf("PROVIDER_API_KEY is required"))
	}
	cfg.ProviderChain = getEnvOrDefault("PROVIDER_CHAIN", "solana")

	rps, err := parseFloat("PROVIDER_RATE_LIMIT_RPS", 1)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.ProviderRateLimitRPS = rps
	}

	burst, err := parseInt("PROVIDER_BURST", 1)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.ProviderBurst = burst
	}

	retries, err := parseInt("PROVIDER_MAX_RETRIES", 5)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.ProviderMaxRetries = retries
	}

	backoff, err := parseDuration("PROVIDER_RETRY_BACKOFF", "500ms")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.ProviderRetryBackoff = backoff
	}

	timeout, err := parseDuration("PROVIDER_TIMEOUT", "10s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.ProviderTimeout = timeout
	}

	// Solana configuration
	cfg.SolanaRPCURL = os.Getenv("SOLANA_RPC_URL")
	if cfg.SolanaRPCURL == "" {
		errs = append(errs, fmt.Errorf("SOLANA_RPC_URL is required"))
	}

	// Database configuration
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		errs = append(errs, fmt.Errorf("DATABASE_URL is required"))
	}

	// NATS configuration
	cfg.NATSURL = getEnvOrDefault("NATS_URL", "nats://localhost:4222")

	// Temporal configuration
	cfg.TemporalHost = getEnvOrDefault("TEMPORAL_HOST", "localhost:7233")
	cfg.TemporalNamespace = getEnvOrDefault("TEMPORAL_NAMESPACE", "default")
	cfg.TemporalTaskQueue = getEnvOrDefault("TEMPORAL_TASK_QUEUE", "earlyscope-analysis")

	// Metrics configuration
	cfg.MetricsAddr = getEnvOrDefault("METRICS_ADDR", ":9090")

	// Analysis defaults
	maxBuyers, err := parseInt("MAX_BUYERS", 100)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.MaxBuyers = maxBuyers
	}

	pageSize, err := parseInt("PAGE_SIZE", 50)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.PageSize = pageSize
	}

	threshold, err := parseDuration("NEW_WALLET_THRESHOLD", "168h")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.NewWalletThreshold = threshold
	}

	concurrency, err := parseInt("ANALYSIS_CONCURRENCY", 4)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.AnalysisConcurrency = concurrency
	}

	transferLimit, err := parseInt("TRANSFER_LIMIT", 100)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.TransferLimit = transferLimit
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for process initialization where misconfiguration should halt startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid. This is useful for testing
// configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if c.ProviderAPIKey == "" {
		errs = append(errs, fmt.Errorf("ProviderAPIKey is required"))
	}

	if c.ProviderBaseURL == "" {
		errs = append(errs, fmt.Errorf("ProviderBaseURL is required"))
	}

	if c.ProviderRateLimitRPS <= 0 {
		errs = append(errs, fmt.Errorf("ProviderRateLimitRPS must be positive"))
	}

	if c.ProviderMaxRetries <= 0 {
		errs = append(errs, fmt.Errorf("ProviderMaxRetries must be positive"))
	}

	if c.SolanaRPCURL == "" {
		errs = append(errs, fmt.Errorf("SolanaRPCURL is required"))
	}

	if c.DatabaseURL == "" {
		errs = append(errs, fmt.Errorf("DatabaseURL is required"))
	}

	if c.TemporalHost == "" {
		errs = append(errs, fmt.Errorf("TemporalHost is required"))
	}

	if c.TemporalNamespace == "" {
		errs = append(errs, fmt.Errorf("TemporalNamespace is required"))
	}

	if c.TemporalTaskQueue == "" {
		errs = append(errs, fmt.Errorf("TemporalTaskQueue is required"))
	}

	if c.MaxBuyers <= 0 {
		errs = append(errs, fmt.Errorf("MaxBuyers must be positive"))
	}

	if c.NewWalletThreshold < time.Hour {
		errs = append(errs, fmt.Errorf("NewWalletThreshold must be at least 1 hour"))
	}

	if c.AnalysisConcurrency <= 0 {
		errs = append(errs, fmt.Errorf("AnalysisConcurrency must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

// parseInt parses an integer from an environment variable or uses a default.
func parseInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return result, nil
}

// parseFloat parses a float from an environment variable or uses a default.
func parseFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number %q: %w", key, value, err)
	}
	return result, nil
}
