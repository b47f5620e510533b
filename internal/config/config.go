// Package config provides configuration management for the backtest engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// DateLayout is the date format used throughout configuration and the CLI.
const DateLayout = "2006-01-02"

// Config holds all application configuration.
type Config struct {
	Backtest BacktestConfig `mapstructure:"backtest"`
	Screen   ScreenConfig   `mapstructure:"screen"`
	Data     DataConfig     `mapstructure:"data"`

	// Parsed by Validate.
	Start time.Time `mapstructure:"-"`
	End   time.Time `mapstructure:"-"`
}

// BacktestConfig holds the simulation parameters.
type BacktestConfig struct {
	StartDate           string  `mapstructure:"start_date"`
	EndDate             string  `mapstructure:"end_date"`
	InitialCapital      float64 `mapstructure:"initial_capital"`
	PositionSizePercent float64 `mapstructure:"position_size"`
	StopLossPercent     float64 `mapstructure:"stop_loss"`
	TrailStopMA         int     `mapstructure:"trail_stop_ma"`
	MaxHoldingDays      int     `mapstructure:"max_holding_days"`
	SlippagePercent     float64 `mapstructure:"slippage"`
	RiskLimitPercent    float64 `mapstructure:"risk_limit"`
	PartialProfit       bool    `mapstructure:"partial_profit"`
	MarginRatio         float64 `mapstructure:"margin_ratio"`
}

// ScreenConfig holds the candidate selection parameters.
type ScreenConfig struct {
	MinSurprisePercent       float64  `mapstructure:"min_surprise"`
	RequirePositiveEPS       bool     `mapstructure:"require_positive_eps"`
	PreEarningsChangePercent float64  `mapstructure:"pre_earnings_change"`
	MaxGapPercent            float64  `mapstructure:"max_gap"` // 0 disables the upper bound
	MinPrice                 float64  `mapstructure:"min_price"`
	MinAvgVolume             float64  `mapstructure:"min_avg_volume"`
	TopPerDay                int      `mapstructure:"top_per_day"`
	TargetSymbols            []string `mapstructure:"target_symbols"` // empty = all symbols
	MaxPSRatio               float64  `mapstructure:"max_ps_ratio"`      // 0 disables
	MaxPERatio               float64  `mapstructure:"max_pe_ratio"`      // 0 disables
	MinProfitMargin          float64  `mapstructure:"min_profit_margin"` // 0 disables
}

// DataConfig holds data source configuration.
type DataConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/earnings-backtest"
	}
	return filepath.Join(home, ".config", "earnings-backtest")
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Backtest: BacktestConfig{
			InitialCapital:      10000,
			PositionSizePercent: 6,
			StopLossPercent:     6,
			TrailStopMA:         21,
			MaxHoldingDays:      90,
			SlippagePercent:     0.3,
			RiskLimitPercent:    6,
			PartialProfit:       true,
			MarginRatio:         1.5,
		},
		Screen: ScreenConfig{
			MinSurprisePercent:       5,
			RequirePositiveEPS:       true,
			PreEarningsChangePercent: -10,
			MaxGapPercent:            0,
			MinPrice:                 10,
			MinAvgVolume:             200000,
			TopPerDay:                5,
		},
		Data: DataConfig{
			DBPath: filepath.Join(DefaultConfigDir(), "market.db"),
		},
	}
}

// Load loads configuration from the specified directory, falling back to
// defaults when no config file exists. If configDir is empty, the default
// config directory is used.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := Default()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("loading config.toml: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("backtest.initial_capital", cfg.Backtest.InitialCapital)
	v.SetDefault("backtest.position_size", cfg.Backtest.PositionSizePercent)
	v.SetDefault("backtest.stop_loss", cfg.Backtest.StopLossPercent)
	v.SetDefault("backtest.trail_stop_ma", cfg.Backtest.TrailStopMA)
	v.SetDefault("backtest.max_holding_days", cfg.Backtest.MaxHoldingDays)
	v.SetDefault("backtest.slippage", cfg.Backtest.SlippagePercent)
	v.SetDefault("backtest.risk_limit", cfg.Backtest.RiskLimitPercent)
	v.SetDefault("backtest.partial_profit", cfg.Backtest.PartialProfit)
	v.SetDefault("backtest.margin_ratio", cfg.Backtest.MarginRatio)
	v.SetDefault("screen.min_surprise", cfg.Screen.MinSurprisePercent)
	v.SetDefault("screen.require_positive_eps", cfg.Screen.RequirePositiveEPS)
	v.SetDefault("screen.pre_earnings_change", cfg.Screen.PreEarningsChangePercent)
	v.SetDefault("screen.min_price", cfg.Screen.MinPrice)
	v.SetDefault("screen.min_avg_volume", cfg.Screen.MinAvgVolume)
	v.SetDefault("screen.top_per_day", cfg.Screen.TopPerDay)
	v.SetDefault("data.db_path", cfg.Data.DBPath)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("EARNINGS_BACKTEST_DB"); v != "" {
		cfg.Data.DBPath = v
	}
	if v := os.Getenv("EARNINGS_BACKTEST_START"); v != "" {
		cfg.Backtest.StartDate = v
	}
	if v := os.Getenv("EARNINGS_BACKTEST_END"); v != "" {
		cfg.Backtest.EndDate = v
	}
}

// Validate checks the configuration and parses the backtest period.
// An invalid configuration is the only fatal condition in the engine.
func (c *Config) Validate() error {
	start, err := time.Parse(DateLayout, c.Backtest.StartDate)
	if err != nil {
		return fmt.Errorf("invalid start date %q: %w", c.Backtest.StartDate, err)
	}
	end, err := time.Parse(DateLayout, c.Backtest.EndDate)
	if err != nil {
		return fmt.Errorf("invalid end date %q: %w", c.Backtest.EndDate, err)
	}
	if end.Before(start) {
		return fmt.Errorf("end date %s is before start date %s", c.Backtest.EndDate, c.Backtest.StartDate)
	}
	c.Start = start
	c.End = end

	if c.Backtest.InitialCapital <= 0 {
		return fmt.Errorf("initial_capital must be positive")
	}
	if c.Backtest.PositionSizePercent <= 0 || c.Backtest.PositionSizePercent > 100 {
		return fmt.Errorf("position_size must be between 0 and 100")
	}
	if c.Backtest.StopLossPercent <= 0 || c.Backtest.StopLossPercent >= 100 {
		return fmt.Errorf("stop_loss must be between 0 and 100")
	}
	if c.Backtest.TrailStopMA < 1 {
		return fmt.Errorf("trail_stop_ma must be at least 1")
	}
	if c.Backtest.MaxHoldingDays < 1 {
		return fmt.Errorf("max_holding_days must be at least 1")
	}
	if c.Backtest.SlippagePercent < 0 {
		return fmt.Errorf("slippage must be non-negative")
	}
	if c.Backtest.RiskLimitPercent < 0 {
		return fmt.Errorf("risk_limit must be non-negative")
	}
	if c.Backtest.MarginRatio < 1 {
		return fmt.Errorf("margin_ratio must be at least 1")
	}
	if c.Screen.TopPerDay < 1 {
		return fmt.Errorf("top_per_day must be at least 1")
	}
	if c.Screen.MinPrice < 0 || c.Screen.MinAvgVolume < 0 {
		return fmt.Errorf("min_price and min_avg_volume must be non-negative")
	}
	return nil
}

// TargetSymbolSet returns the configured symbol universe as a set, or nil
// when every symbol is allowed.
func (c *Config) TargetSymbolSet() map[string]struct{} {
	if len(c.Screen.TargetSymbols) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(c.Screen.TargetSymbols))
	for _, s := range c.Screen.TargetSymbols {
		set[s] = struct{}{}
	}
	return set
}
