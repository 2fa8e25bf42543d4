// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

// Config holds application configuration
type Config struct {
	LogLevel           string
	Port               int
	DevMode            bool
	BacktestServiceURL string        // Empty disables the backtest endpoint
	BacktestTimeout    time.Duration // HTTP timeout for a single backtest call
	HistoryDBPath      string        // Read-only price/metadata store; empty disables hydration
	AnalyticsFile      string        // Optional TOML file overriding Analytics
	Analytics          Analytics
}

// Analytics holds the tuning parameters of the analytics engine.
// The defaults are empirical; every value can be overridden from the TOML file.
type Analytics struct {
	MinCommonDates          int            `toml:"min_common_dates"`
	AnnualizationDays       int            `toml:"annualization_days"`
	RiskFreeRatePct         float64        `toml:"risk_free_rate_pct"`
	DiversificationDiscount float64        `toml:"diversification_discount"`
	DiscountMinHoldings     int            `toml:"discount_min_holdings"`
	BreakdownMinPct         float64        `toml:"breakdown_min_pct"`
	BreakdownMaxPct         float64        `toml:"breakdown_max_pct"`
	SimilarityTolerancePP   float64        `toml:"similarity_tolerance_pp"`
	CorrelationThreshold    float64        `toml:"correlation_threshold"`
	TopHoldingsLimit        int            `toml:"top_holdings_limit"`
	BacktestCacheTTL        Duration       `toml:"backtest_cache_ttl"`
	SessionIdleTTL          Duration       `toml:"session_idle_ttl"`
	BondIndexID             string         `toml:"bond_index_id"`
	EquityIndexID           string         `toml:"equity_index_id"`
	Defaults                MetricDefaults `toml:"defaults"`
}

// MetricDefaults are the per-holding values used when neither normalized
// nor vendor metrics are available. All values are percentage points except Beta.
type MetricDefaults struct {
	VolatilityPct float64 `toml:"volatility_pct"`
	ReturnPct     float64 `toml:"return_pct"`
	CostPct       float64 `toml:"cost_pct"`
	YieldPct      float64 `toml:"yield_pct"`
	Beta          float64 `toml:"beta"`
}

// Duration decodes TOML strings such as "5m" into a time.Duration.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// DefaultAnalytics returns the tuning values the engine ships with.
func DefaultAnalytics() Analytics {
	return Analytics{
		MinCommonDates:          10,
		AnnualizationDays:       252,
		RiskFreeRatePct:         2.0,
		DiversificationDiscount: 0.85,
		DiscountMinHoldings:     3,
		BreakdownMinPct:         95,
		BreakdownMaxPct:         105,
		SimilarityTolerancePP:   1.0,
		CorrelationThreshold:    0.80,
		TopHoldingsLimit:        10,
		BacktestCacheTTL:        Duration{5 * time.Minute},
		SessionIdleTTL:          Duration{30 * time.Minute},
		Defaults: MetricDefaults{
			VolatilityPct: 12,
			ReturnPct:     6,
			CostPct:       1.2,
			YieldPct:      1.5,
			Beta:          1.0,
		},
	}
}

// Load reads configuration from environment variables and the optional analytics file
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		Port:               getEnvAsInt("GO_PORT", 8001),
		DevMode:            getEnvAsBool("DEV_MODE", false),
		BacktestServiceURL: getEnv("BACKTEST_SERVICE_URL", ""),
		BacktestTimeout:    time.Duration(getEnvAsInt("BACKTEST_TIMEOUT_SECONDS", 60)) * time.Second,
		HistoryDBPath:      getEnv("HISTORY_DB_PATH", ""),
		AnalyticsFile:      getEnv("ANALYTICS_CONFIG", ""),
		Analytics:          DefaultAnalytics(),
	}

	if cfg.AnalyticsFile != "" {
		if err := cfg.loadAnalyticsFile(cfg.AnalyticsFile); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadAnalyticsFile overlays the TOML file on top of the defaults.
// Keys missing from the file keep their default value.
func (c *Config) loadAnalyticsFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read analytics config %s: %w", path, err)
	}
	return c.ParseAnalytics(data)
}

// ParseAnalytics decodes a TOML analytics block into the config.
func (c *Config) ParseAnalytics(data []byte) error {
	if err := toml.Unmarshal(data, &c.Analytics); err != nil {
		return fmt.Errorf("failed to parse analytics config: %w", err)
	}
	return nil
}

// Validate checks the configuration for values the engine cannot work with
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	a := c.Analytics
	if a.MinCommonDates < 2 {
		return fmt.Errorf("min_common_dates must be at least 2, got %d", a.MinCommonDates)
	}
	if a.AnnualizationDays <= 0 {
		return fmt.Errorf("annualization_days must be positive, got %d", a.AnnualizationDays)
	}
	if a.DiversificationDiscount <= 0 || a.DiversificationDiscount > 1 {
		return fmt.Errorf("diversification_discount must be in (0, 1], got %v", a.DiversificationDiscount)
	}
	if a.BreakdownMinPct <= 0 || a.BreakdownMinPct > a.BreakdownMaxPct {
		return fmt.Errorf("invalid breakdown tolerance [%v, %v]", a.BreakdownMinPct, a.BreakdownMaxPct)
	}
	if a.SimilarityTolerancePP < 0 {
		return fmt.Errorf("similarity_tolerance_pp must not be negative, got %v", a.SimilarityTolerancePP)
	}
	if a.TopHoldingsLimit <= 0 {
		return fmt.Errorf("top_holdings_limit must be positive, got %d", a.TopHoldingsLimit)
	}
	if a.BacktestCacheTTL.Duration <= 0 {
		return fmt.Errorf("backtest_cache_ttl must be positive")
	}
	if a.SessionIdleTTL.Duration <= 0 {
		return fmt.Errorf("session_idle_ttl must be positive")
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
