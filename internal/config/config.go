package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/wnt/solforge/internal/models"
)

// Persistence backend selection.
const (
	PersistFile     = "file"
	PersistPostgres = "postgres"
)

// Config holds all configuration for Solforge.
type Config struct {
	// Persistence configuration
	PersistMode   string
	DataDir       string
	FlushDebounce time.Duration

	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	DBSSLMode  string

	// Chain configuration
	RPCURL          string
	RedisURL        string
	BalanceCacheTTL time.Duration

	// HTTP configuration
	ListenAddr  string
	MetricsPort string

	// Logging configuration
	LogLevel string

	// Ledger economics
	FeePct             float64 // fee taken off every trade and live issuance
	TradeSplitDev      float64 // trade fee split, must sum to 100
	TradeSplitCreator  float64
	TradeSplitReferral float64
	TradeSplitReserve  float64
	IssueSplitDev      float64 // issuance fee split, must sum to 100
	IssueSplitReferral float64
	IssueSplitReserve  float64

	LiveThresholdSol float64
	CreatorGrantPct  float64
	OwnerMaxPct      float64

	TotalSupply  int64
	StartingMC   float64
	MCFloor      float64
	MCBumpPerSol float64

	ChartCap int
	LogCap   int
}

// Load reads configuration from environment variables and validates it.
func Load() (Config, error) {
	cfg := Config{
		PersistMode: getEnv("PERSIST_MODE", PersistFile),
		DataDir:     getEnv("DATA_DIR", "./data"),
		DBHost:      getEnv("DB_HOST", ""),
		DBUser:      getEnv("DB_USER", ""),
		DBPassword:  getEnv("DB_PASSWORD", ""),
		DBName:      getEnv("DB_NAME", ""),
		DBPort:      getEnv("DB_PORT", "5432"),
		DBSSLMode:   getEnv("DB_SSL_MODE", "disable"),
		RPCURL:      getEnv("RPC_URL", ""),
		RedisURL:    getEnv("REDIS_URL", ""),
		ListenAddr:  getEnv("LISTEN_ADDR", ":8080"),
		MetricsPort: getEnv("METRICS_PORT", "9100"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
	}

	var err error
	if cfg.FlushDebounce, err = parseDurationEnv("FLUSH_DEBOUNCE", 2*time.Second); err != nil {
		return cfg, fmt.Errorf("invalid FLUSH_DEBOUNCE: %w", err)
	}
	if cfg.BalanceCacheTTL, err = parseDurationEnv("BALANCE_CACHE_TTL", 30*time.Second); err != nil {
		return cfg, fmt.Errorf("invalid BALANCE_CACHE_TTL: %w", err)
	}

	floats := []struct {
		key string
		dst *float64
		def float64
	}{
		{"FEE_PCT", &cfg.FeePct, 1.0},
		{"TRADE_SPLIT_DEV", &cfg.TradeSplitDev, 40},
		{"TRADE_SPLIT_CREATOR", &cfg.TradeSplitCreator, 40},
		{"TRADE_SPLIT_REFERRAL", &cfg.TradeSplitReferral, 10},
		{"TRADE_SPLIT_RESERVE", &cfg.TradeSplitReserve, 10},
		{"ISSUE_SPLIT_DEV", &cfg.IssueSplitDev, 50},
		{"ISSUE_SPLIT_REFERRAL", &cfg.IssueSplitReferral, 10},
		{"ISSUE_SPLIT_RESERVE", &cfg.IssueSplitReserve, 40},
		{"LIVE_THRESHOLD_SOL", &cfg.LiveThresholdSol, 0.01},
		{"CREATOR_GRANT_PCT", &cfg.CreatorGrantPct, 2},
		{"OWNER_MAX_PCT", &cfg.OwnerMaxPct, 5},
		{"STARTING_MC", &cfg.StartingMC, 6500},
		{"MC_FLOOR", &cfg.MCFloor, 1000},
		{"MC_BUMP_PER_SOL", &cfg.MCBumpPerSol, 100},
	}
	for _, f := range floats {
		if *f.dst, err = parseFloatEnv(f.key, f.def); err != nil {
			return cfg, fmt.Errorf("invalid %s: %w", f.key, err)
		}
	}

	if cfg.TotalSupply, err = parseInt64Env("TOTAL_SUPPLY", 1_000_000_000); err != nil {
		return cfg, fmt.Errorf("invalid TOTAL_SUPPLY: %w", err)
	}
	if cfg.ChartCap, err = parseIntEnv("CHART_CAP", 120); err != nil {
		return cfg, fmt.Errorf("invalid CHART_CAP: %w", err)
	}
	if cfg.LogCap, err = parseIntEnv("LOG_CAP", 300); err != nil {
		return cfg, fmt.Errorf("invalid LOG_CAP: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks that the configuration is valid.
func (c Config) validate() error {
	switch c.PersistMode {
	case PersistFile:
		if c.DataDir == "" {
			return fmt.Errorf("DATA_DIR is required for file persistence")
		}
	case PersistPostgres:
		if c.DBHost == "" || c.DBName == "" || c.DBUser == "" {
			return fmt.Errorf("DB_HOST, DB_NAME and DB_USER are required for postgres persistence")
		}
	default:
		return fmt.Errorf("invalid PERSIST_MODE: %s (must be file or postgres)", c.PersistMode)
	}

	if c.FeePct < 0 || c.FeePct >= 100 {
		return fmt.Errorf("FEE_PCT must be in [0, 100)")
	}
	if !sumsTo100(c.TradeSplitDev, c.TradeSplitCreator, c.TradeSplitReferral, c.TradeSplitReserve) {
		return fmt.Errorf("trade fee split percentages must sum to 100")
	}
	if !sumsTo100(c.IssueSplitDev, c.IssueSplitReferral, c.IssueSplitReserve) {
		return fmt.Errorf("issuance fee split percentages must sum to 100")
	}
	if c.LiveThresholdSol < 0 {
		return fmt.Errorf("LIVE_THRESHOLD_SOL must be non-negative")
	}
	if c.CreatorGrantPct < 0 || c.CreatorGrantPct > 100 {
		return fmt.Errorf("CREATOR_GRANT_PCT must be in [0, 100]")
	}
	if c.OwnerMaxPct <= 0 || c.OwnerMaxPct > 100 {
		return fmt.Errorf("OWNER_MAX_PCT must be in (0, 100]")
	}
	if c.OwnerMaxPct < c.CreatorGrantPct {
		return fmt.Errorf("OWNER_MAX_PCT must not be below CREATOR_GRANT_PCT")
	}
	if c.TotalSupply <= 0 {
		return fmt.Errorf("TOTAL_SUPPLY must be positive")
	}
	if c.MCFloor <= 0 {
		return fmt.Errorf("MC_FLOOR must be positive")
	}
	if c.StartingMC < c.MCFloor {
		return fmt.Errorf("STARTING_MC must not be below MC_FLOOR")
	}
	if c.MCBumpPerSol <= 0 {
		return fmt.Errorf("MC_BUMP_PER_SOL must be positive")
	}
	if c.ChartCap < 5 {
		return fmt.Errorf("CHART_CAP must be at least 5")
	}
	if c.LogCap < 1 {
		return fmt.Errorf("LOG_CAP must be at least 1")
	}

	validLogLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"fatal": true,
		"panic": true,
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("invalid LOG_LEVEL: %s (must be one of: trace, debug, info, warn, error, fatal, panic)", c.LogLevel)
	}

	return nil
}

// Defaults derives the normalization constants from the economic
// configuration.
func (c Config) Defaults() models.Defaults {
	return models.Defaults{
		TotalSupply:  c.TotalSupply,
		StartingMC:   c.StartingMC,
		MCFloor:      c.MCFloor,
		ChartSeedLen: 5,
		ChartCap:     c.ChartCap,
		LogCap:       c.LogCap,
	}
}

func sumsTo100(parts ...float64) bool {
	var sum float64
	for _, p := range parts {
		if p < 0 {
			return false
		}
		sum += p
	}
	return math.Abs(sum-100) < 1e-9
}

// getEnv retrieves an environment variable with a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseIntEnv parses an integer environment variable with a default value.
func parseIntEnv(key string, defaultValue int) (int, error) {
	str := os.Getenv(key)
	if str == "" {
		return defaultValue, nil
	}
	return strconv.Atoi(str)
}

func parseInt64Env(key string, defaultValue int64) (int64, error) {
	str := os.Getenv(key)
	if str == "" {
		return defaultValue, nil
	}
	return strconv.ParseInt(str, 10, 64)
}

func parseFloatEnv(key string, defaultValue float64) (float64, error) {
	str := os.Getenv(key)
	if str == "" {
		return defaultValue, nil
	}
	return strconv.ParseFloat(str, 64)
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	str := os.Getenv(key)
	if str == "" {
		return defaultValue, nil
	}
	return time.ParseDuration(str)
}
