package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"mxiledger/database"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabaseURL  string
	DatabaseName string
	LockTimeout  time.Duration // Applied per transaction as lock_timeout

	// HTTP configuration
	HTTPAddr     string
	GatewayToken string   // Shared secret the upstream gateway presents
	AdminUserIDs []string // Principals allowed to call admin operations

	// NATS configuration
	NATSServers string // NATS server addresses (comma-separated), empty disables NATS

	// Redis read cache configuration
	RedisURL string
	CacheTTL time.Duration

	// Vesting configuration
	DefaultMonthlyVestingRate decimal.Decimal
	VestingSweepInterval      time.Duration // 0 disables the server side sweep

	// Wager rules
	MiniBattleMinFee            decimal.Decimal
	MiniBattleMaxFee            decimal.Decimal
	ChallengeMinFee             decimal.Decimal
	ChallengeMaxFee             decimal.Decimal
	TournamentEntryFee          decimal.Decimal
	TournamentPrizePool         decimal.Decimal
	DefaultMaxActiveTournaments int

	// Maintenance configuration
	StaleWagerTimeout   time.Duration // Waiting wagers idle this long are cancelled
	SettlementTimeout   time.Duration // In progress wagers older than this are settled
	MaintenanceInterval time.Duration

	// OpenTelemetry configuration
	OTelEnabled              bool
	OTelServiceName          string
	OTelExporterType         string // "console", "otlp" or "none"
	OTelOTLPEndpoint         string
	OTelExportIntervalMillis int

	// Logging
	LogLevel  string
	LogFormat string // "text" or "json"

	// Environment
	Environment string // "development", "production" or "test"
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex // Protects instance for test setup
)

// Get returns the global configuration instance
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	// If instance is already set (e.g., by tests), return it
	if instance != nil {
		return instance
	}

	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			// In test environment, use a default test config instead of panicking
			if os.Getenv("GO_TEST") == "1" || os.Getenv("ENVIRONMENT") == "test" {
				instance = NewTestConfig()
			} else {
				panic(fmt.Sprintf("failed to load config: %v", err))
			}
		}
	})
	return instance
}

// GetDatabaseURL constructs the full database URL by combining base URL and database name
func (c *Config) GetDatabaseURL() string {
	return database.ConstructDatabaseURL(c.DatabaseURL, c.DatabaseName)
}

// IsAdmin reports whether a principal may call admin operations
func (c *Config) IsAdmin(principalID string) bool {
	for _, id := range c.AdminUserIDs {
		if id == principalID {
			return true
		}
	}
	return false
}

// load loads configuration from environment variables
func load() (*Config, error) {
	// A missing .env file is fine; the environment wins over it either way
	_ = godotenv.Load()

	config := &Config{
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		DatabaseName: os.Getenv("DATABASE_NAME"),
		LockTimeout:  envDurationDefault("LOCK_TIMEOUT", 5*time.Second),

		HTTPAddr:     getEnvWithDefault("HTTP_ADDR", ":8080"),
		GatewayToken: os.Getenv("GATEWAY_TOKEN"),
		AdminUserIDs: splitList(os.Getenv("ADMIN_USER_IDS")),

		NATSServers: os.Getenv("NATS_SERVERS"),

		RedisURL: os.Getenv("REDIS_URL"),
		CacheTTL: envDurationDefault("CACHE_TTL", 30*time.Second),

		VestingSweepInterval: envDurationDefault("VESTING_SWEEP_INTERVAL", 0),

		DefaultMaxActiveTournaments: envIntDefault("DEFAULT_MAX_ACTIVE_TOURNAMENTS", 10),

		StaleWagerTimeout:   envDurationDefault("STALE_WAGER_TIMEOUT", time.Hour),
		SettlementTimeout:   envDurationDefault("SETTLEMENT_TIMEOUT", time.Hour),
		MaintenanceInterval: envDurationDefault("MAINTENANCE_INTERVAL", time.Minute),

		OTelEnabled:              envBoolDefault("OTEL_ENABLED", false),
		OTelServiceName:          getEnvWithDefault("OTEL_SERVICE_NAME", "mxiledger"),
		OTelExporterType:         getEnvWithDefault("OTEL_EXPORTER_TYPE", "console"),
		OTelOTLPEndpoint:         getEnvWithDefault("OTEL_OTLP_ENDPOINT", "otel-collector:4317"),
		OTelExportIntervalMillis: envIntDefault("OTEL_EXPORT_INTERVAL_MILLIS", 15000),

		LogLevel:  getEnvWithDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvWithDefault("LOG_FORMAT", "text"),

		Environment: os.Getenv("ENVIRONMENT"),
	}

	var err error
	decimals := []struct {
		key      string
		fallback string
		target   *decimal.Decimal
	}{
		{"DEFAULT_MONTHLY_VESTING_RATE", "0.03", &config.DefaultMonthlyVestingRate},
		{"MINI_BATTLE_MIN_FEE", "5", &config.MiniBattleMinFee},
		{"MINI_BATTLE_MAX_FEE", "1000", &config.MiniBattleMaxFee},
		{"CHALLENGE_MIN_FEE", "5", &config.ChallengeMinFee},
		{"CHALLENGE_MAX_FEE", "1000", &config.ChallengeMaxFee},
		{"TOURNAMENT_ENTRY_FEE", "3", &config.TournamentEntryFee},
		{"TOURNAMENT_PRIZE_POOL", "135", &config.TournamentPrizePool},
	}
	for _, d := range decimals {
		if *d.target, err = envDecimalDefault(d.key, d.fallback); err != nil {
			return nil, err
		}
	}

	// Set default environment if not specified
	if config.Environment == "" {
		config.Environment = "development"
	}

	// Development without DATABASE_URL runs on the in-memory store
	if config.Environment == "production" {
		if config.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
		// If DatabaseName is provided, ensure it's not empty
		if config.DatabaseName != "" && strings.TrimSpace(config.DatabaseName) == "" {
			return nil, fmt.Errorf("DATABASE_NAME cannot be empty when provided")
		}
		if config.GatewayToken == "" {
			return nil, fmt.Errorf("GATEWAY_TOKEN is required in production")
		}
	}
	if config.MiniBattleMinFee.GreaterThan(config.MiniBattleMaxFee) {
		return nil, fmt.Errorf("MINI_BATTLE_MIN_FEE must not exceed MINI_BATTLE_MAX_FEE")
	}
	if config.ChallengeMinFee.GreaterThan(config.ChallengeMaxFee) {
		return nil, fmt.Errorf("CHALLENGE_MIN_FEE must not exceed CHALLENGE_MAX_FEE")
	}

	return config, nil
}

// getEnvWithDefault returns the environment variable value or a default if not set
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func envDurationDefault(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envIntDefault(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBoolDefault(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// envDecimalDefault fails on malformed values instead of using the fallback
func envDecimalDefault(key, fallback string) (decimal.Decimal, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		v = fallback
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Test helpers - only use in tests

// SetTestConfig overrides the global config instance for testing
// This should only be called from test files
func SetTestConfig(testConfig *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig resets the global config instance and sync.Once for testing
// This should only be called from test files
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig creates a minimal config suitable for unit tests
func NewTestConfig() *Config {
	return &Config{
		Environment:                 "test",
		HTTPAddr:                    ":0",
		AdminUserIDs:                []string{"admin-1"}, // Default test admin
		LockTimeout:                 5 * time.Second,
		CacheTTL:                    30 * time.Second,
		DefaultMonthlyVestingRate:   decimal.RequireFromString("0.03"),
		MiniBattleMinFee:            decimal.NewFromInt(5),
		MiniBattleMaxFee:            decimal.NewFromInt(1000),
		ChallengeMinFee:             decimal.NewFromInt(5),
		ChallengeMaxFee:             decimal.NewFromInt(1000),
		TournamentEntryFee:          decimal.NewFromInt(3),
		TournamentPrizePool:         decimal.NewFromInt(135),
		DefaultMaxActiveTournaments: 10,
		StaleWagerTimeout:           time.Hour,
		SettlementTimeout:           time.Hour,
		MaintenanceInterval:         time.Minute,
		OTelServiceName:             "mxiledger-test",
		OTelExporterType:            "none",
		LogLevel:                    "info",
		LogFormat:                   "text",
	}
}
