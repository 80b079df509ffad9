package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
)

// Cache backends understood by CACHE_BACKEND.
const (
	CacheBackendJSON   = "json"
	CacheBackendPebble = "pebble"
)

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	LogLevel    string
	MetricsAddr string

	// Provider credentials
	HeliusAPIKey        string
	CryptoCompareAPIKey string
	MoralisAPIKey       string
	CoinGeckoAPIKey     string

	// Provider endpoints
	HeliusBaseURL        string
	JupiterBaseURL       string
	CoinGeckoBaseURL     string
	CryptoCompareBaseURL string
	MoralisBaseURL       string

	// Rate limiting and retries
	APIDelay       time.Duration
	JupiterDelay   time.Duration
	RequestTimeout time.Duration
	MaxRetries     int
	BackoffUnit    time.Duration
	BackoffCeiling time.Duration

	// Fetch limits
	PageSize                  int
	MaxTransactionsPerAddress int
	JupiterRecencyWindow      time.Duration

	// Heuristic thresholds
	ProgrammaticInstructionThreshold   int
	ProgrammaticTokenTransferThreshold int
	BurstSlotThreshold                 int
	RoundNumberMaxDecimals             int

	// Run behavior
	SaveEvery    int
	CacheBackend string
	CachePath    string

	// Optional sinks
	DatabaseURL string
	NATSURL     string

	// Temporal configuration
	TemporalHost      string
	TemporalNamespace string
	TemporalTaskQueue string
}

// LoadEnvFile loads variables from a dotenv file without overriding values
// already present in the environment. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// Load reads configuration from environment variables and validates all required fields.
// Returns an error if any required configuration is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs *multierror.Error

	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	cfg.MetricsAddr = getEnvOrDefault("METRICS_ADDR", ":9091")

	cfg.HeliusAPIKey = os.Getenv("HELIUS_API_KEY")
	cfg.CryptoCompareAPIKey = os.Getenv("CRYPTOCOMPARE_API_KEY")
	cfg.MoralisAPIKey = os.Getenv("MORALIS_API_KEY")
	cfg.CoinGeckoAPIKey = os.Getenv("COINGECKO_API_KEY")

	cfg.HeliusBaseURL = getEnvOrDefault("HELIUS_BASE_URL", "https://api.helius.xyz")
	cfg.JupiterBaseURL = getEnvOrDefault("JUPITER_BASE_URL", "https://lite-api.jup.ag")
	cfg.CoinGeckoBaseURL = getEnvOrDefault("COINGECKO_BASE_URL", "https://api.coingecko.com")
	cfg.CryptoCompareBaseURL = getEnvOrDefault("CRYPTOCOMPARE_BASE_URL", "https://min-api.cryptocompare.com")
	cfg.MoralisBaseURL = getEnvOrDefault("MORALIS_BASE_URL", "https://solana-gateway.moralis.io")

	durations := []struct {
		key  string
		def  string
		dest *time.Duration
	}{
		{"API_DELAY", "500ms", &cfg.APIDelay},
		{"JUPITER_DELAY", "1s", &cfg.JupiterDelay},
		{"REQUEST_TIMEOUT", "15s", &cfg.RequestTimeout},
		{"BACKOFF_UNIT", "1s", &cfg.BackoffUnit},
		{"BACKOFF_CEILING", "30s", &cfg.BackoffCeiling},
		{"JUPITER_RECENCY_WINDOW", "168h", &cfg.JupiterRecencyWindow},
	}
	for _, d := range durations {
		v, err := parseDuration(d.key, d.def)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		*d.dest = v
	}

	ints := []struct {
		key  string
		def  int
		dest *int
	}{
		{"MAX_RETRIES", 3, &cfg.MaxRetries},
		{"PAGE_SIZE", 100, &cfg.PageSize},
		{"MAX_TRANSACTIONS_PER_ADDRESS", 50000, &cfg.MaxTransactionsPerAddress},
		{"PROGRAMMATIC_INSTRUCTION_THRESHOLD", 10, &cfg.ProgrammaticInstructionThreshold},
		{"PROGRAMMATIC_TOKEN_TRANSFER_THRESHOLD", 5, &cfg.ProgrammaticTokenTransferThreshold},
		{"BURST_SLOT_THRESHOLD", 10, &cfg.BurstSlotThreshold},
		{"ROUND_NUMBER_MAX_DECIMALS", 2, &cfg.RoundNumberMaxDecimals},
		{"SAVE_EVERY", 3, &cfg.SaveEvery},
	}
	for _, i := range ints {
		v, err := parseInt(i.key, i.def)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		*i.dest = v
	}

	cfg.CacheBackend = getEnvOrDefault("CACHE_BACKEND", CacheBackendJSON)
	cfg.CachePath = getEnvOrDefault("CACHE_PATH", "solana_price_cache.json")

	cfg.DatabaseURL = os.Getenv("FEATURES_DATABASE_URL")
	cfg.NATSURL = os.Getenv("NATS_URL")

	cfg.TemporalHost = getEnvOrDefault("TEMPORAL_HOST", "localhost:7233")
	cfg.TemporalNamespace = getEnvOrDefault("TEMPORAL_NAMESPACE", "default")
	cfg.TemporalTaskQueue = getEnvOrDefault("TEMPORAL_TASK_QUEUE", "solfeat-extraction")

	if err := errs.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs *multierror.Error

	if c.HeliusAPIKey == "" {
		errs = multierror.Append(errs, fmt.Errorf("HELIUS_API_KEY is required"))
	}

	if c.MaxRetries < 1 {
		errs = multierror.Append(errs, fmt.Errorf("MAX_RETRIES must be at least 1"))
	}

	if c.PageSize < 1 {
		errs = multierror.Append(errs, fmt.Errorf("PAGE_SIZE must be at least 1"))
	}

	if c.MaxTransactionsPerAddress < 1 {
		errs = multierror.Append(errs, fmt.Errorf("MAX_TRANSACTIONS_PER_ADDRESS must be at least 1"))
	}

	if c.SaveEvery < 1 {
		errs = multierror.Append(errs, fmt.Errorf("SAVE_EVERY must be at least 1"))
	}

	if c.BackoffCeiling < c.BackoffUnit {
		errs = multierror.Append(errs, fmt.Errorf("BACKOFF_CEILING (%v) cannot be less than BACKOFF_UNIT (%v)",
			c.BackoffCeiling, c.BackoffUnit))
	}

	if c.RoundNumberMaxDecimals < 0 || c.RoundNumberMaxDecimals > 8 {
		errs = multierror.Append(errs, fmt.Errorf("ROUND_NUMBER_MAX_DECIMALS must be between 0 and 8"))
	}

	switch c.CacheBackend {
	case CacheBackendJSON, CacheBackendPebble:
	default:
		errs = multierror.Append(errs, fmt.Errorf("CACHE_BACKEND must be %q or %q, got %q",
			CacheBackendJSON, CacheBackendPebble, c.CacheBackend))
	}

	if c.CachePath == "" {
		errs = multierror.Append(errs, fmt.Errorf("CACHE_PATH is required"))
	}

	if err := errs.ErrorOrNil(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
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
