// Package config handles application configuration management using Viper
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/raykavin/patternrun/pkg/backtest"
	"github.com/raykavin/patternrun/pkg/discovery"
	"github.com/raykavin/patternrun/pkg/feed"
	"github.com/raykavin/patternrun/pkg/indicator"
	"github.com/raykavin/patternrun/pkg/walkforward"
	"github.com/spf13/viper"
)

const (
	DefaultConfigPath  = "./patternrun.yaml"
	DefaultStoragePath = "./patternrun.db"
	EnvPrefix          = "PATTERNRUN"
)

// Storage drivers
const (
	DriverBunt   = "buntdb"
	DriverSQLite = "sqlite"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the full application configuration
type Config struct {
	Log         LogConfig          `mapstructure:"log"`
	Data        DataConfig         `mapstructure:"data"`
	Backtest    BacktestConfig     `mapstructure:"backtest"`
	Discovery   DiscoveryConfig    `mapstructure:"discovery"`
	Indicators  indicator.Config   `mapstructure:"indicators"`
	WalkForward walkforward.Config `mapstructure:"walkforward"`
	Storage     StorageConfig      `mapstructure:"storage"`
}

// LogConfig selects the log level and output format
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Colors bool   `mapstructure:"colors"`
}

// DataConfig locates the price history
type DataConfig struct {
	File   string `mapstructure:"file"`
	Ticker string `mapstructure:"ticker"`
	// Lookback keeps only the most recent period, e.g. "2y" or "180d"
	Lookback string `mapstructure:"lookback"`
}

// BacktestConfig holds the simulation settings
type BacktestConfig struct {
	Strategy       string  `mapstructure:"strategy"`
	InitialCapital float64 `mapstructure:"initial_capital"`
	Commission     float64 `mapstructure:"commission"`
	Fraction       float64 `mapstructure:"fraction"`
	Start          string  `mapstructure:"start"`
	End            string  `mapstructure:"end"`
}

// DiscoveryConfig wraps the discovery settings with their textual tie policy
type DiscoveryConfig struct {
	discovery.Config `mapstructure:",squash"`
	Ties             string `mapstructure:"tie_policy"`
}

// StorageConfig selects where discovered patterns are persisted
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
}

// setDefaults registers every key so that environment variables can override it
func setDefaults(v *viper.Viper) {
	ind := indicator.DefaultConfig()
	disc := discovery.DefaultConfig()
	wf := walkforward.DefaultConfig()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.colors", true)

	v.SetDefault("data.file", "")
	v.SetDefault("data.ticker", "")
	v.SetDefault("data.lookback", "")

	v.SetDefault("backtest.strategy", "rsi")
	v.SetDefault("backtest.initial_capital", 10_000.0)
	v.SetDefault("backtest.commission", 0.0)
	v.SetDefault("backtest.fraction", 1.0)
	v.SetDefault("backtest.start", "")
	v.SetDefault("backtest.end", "")

	v.SetDefault("discovery.window", disc.Window)
	v.SetDefault("discovery.tie_policy", disc.TiePolicy.String())
	v.SetDefault("discovery.fpop", disc.Profit.FPOP)
	v.SetDefault("discovery.min_gain_percent", disc.Profit.MinGainPercent)
	v.SetDefault("discovery.min_loss_percent", disc.Profit.MinLossPercent)
	v.SetDefault("discovery.max_risk", disc.Profit.MaxRisk)
	v.SetDefault("discovery.directions", []string{})
	v.SetDefault("discovery.min_frequency", disc.MinFrequency)
	v.SetDefault("discovery.workers", disc.Workers)
	v.SetDefault("discovery.top_n", disc.TopN)
	v.SetDefault("discovery.classifiers", []string{})
	v.SetDefault("discovery.sector", "")
	v.SetDefault("discovery.enrich_context", false)

	v.SetDefault("indicators.rsi_period", ind.RSIPeriod)
	v.SetDefault("indicators.rsi_oversold", ind.RSIOversold)
	v.SetDefault("indicators.rsi_overbought", ind.RSIOverbought)
	v.SetDefault("indicators.macd_fast", ind.MACDFast)
	v.SetDefault("indicators.macd_slow", ind.MACDSlow)
	v.SetDefault("indicators.macd_signal", ind.MACDSignal)
	v.SetDefault("indicators.stoch_k", ind.StochK)
	v.SetDefault("indicators.stoch_slow_k", ind.StochSlowK)
	v.SetDefault("indicators.stoch_d", ind.StochD)
	v.SetDefault("indicators.stoch_oversold", ind.StochOversold)
	v.SetDefault("indicators.stoch_overbought", ind.StochOverbought)
	v.SetDefault("indicators.sma_fast", ind.SMAFast)
	v.SetDefault("indicators.sma_slow", ind.SMASlow)
	v.SetDefault("indicators.bb_period", ind.BBPeriod)
	v.SetDefault("indicators.bb_deviation", ind.BBDeviation)
	v.SetDefault("indicators.ema_period", ind.EMAPeriod)
	v.SetDefault("indicators.atr_period", ind.ATRPeriod)
	v.SetDefault("indicators.volume_period", ind.VolumePeriod)
	v.SetDefault("indicators.volume_high", ind.VolumeHigh)
	v.SetDefault("indicators.volume_low", ind.VolumeLow)
	v.SetDefault("indicators.supertrend_factor", ind.SuperTrendFactor)

	v.SetDefault("walkforward.train_size", wf.TrainSize)
	v.SetDefault("walkforward.test_size", wf.TestSize)
	v.SetDefault("walkforward.step_size", wf.StepSize)
	v.SetDefault("walkforward.min_return", wf.MinReturn)
	v.SetDefault("walkforward.min_sharpe", wf.MinSharpe)
	v.SetDefault("walkforward.parallelism", wf.Parallelism)
	v.SetDefault("walkforward.initial_capital", wf.InitialCapital)
	v.SetDefault("walkforward.commission", wf.Commission)
	v.SetDefault("walkforward.progress", false)

	v.SetDefault("storage.driver", DriverBunt)
	v.SetDefault("storage.path", DefaultStoragePath)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Default returns the configuration built from defaults and environment only
func Default() (*Config, error) {
	return decode(newViper())
}

// Load reads configPath, writing a default file first when it does not exist.
// PATTERNRUN_* environment variables override file values, e.g.
// PATTERNRUN_BACKTEST_COMMISSION for backtest.commission.
func Load(configPath string) (*Config, error) {
	v := newViper()
	if configPath == "" {
		return decode(v)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := saveDefault(v, configPath); err != nil {
			return nil, err
		}
	}

	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", configPath, err)
	}

	return decode(v)
}

// saveDefault writes every default setting to configPath
func saveDefault(v *viper.Viper, configPath string) error {
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("could not create configuration directory: %w", err)
	}

	if err := v.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("could not save default configuration: %w", err)
	}
	return nil
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg.Discovery.TiePolicy = discovery.ParseTiePolicy(cfg.Discovery.Ties)
	cfg.Discovery.Indicators = cfg.Indicators
	cfg.WalkForward.Discovery = cfg.Discovery.Config

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail deep inside a run
func (c *Config) Validate() error {
	if c.Data.Lookback != "" {
		if _, _, _, err := feed.ParsePeriod(c.Data.Lookback); err != nil {
			return fmt.Errorf("%w: data.lookback: %v", ErrInvalidConfig, err)
		}
	}
	if _, _, err := c.Backtest.Range(); err != nil {
		return err
	}
	if c.Backtest.InitialCapital <= 0 {
		return fmt.Errorf("%w: backtest.initial_capital must be positive", ErrInvalidConfig)
	}
	if c.Backtest.Commission < 0 {
		return fmt.Errorf("%w: backtest.commission must not be negative", ErrInvalidConfig)
	}
	if c.Discovery.Window < 1 || c.Discovery.Profit.FPOP < 1 {
		return fmt.Errorf("%w: discovery.window and discovery.fpop must be at least 1", ErrInvalidConfig)
	}
	if c.WalkForward.TrainSize <= 0 || c.WalkForward.TestSize <= 0 || c.WalkForward.StepSize <= 0 {
		return fmt.Errorf("%w: walkforward sizes must be positive", ErrInvalidConfig)
	}
	switch c.Storage.Driver {
	case DriverBunt, DriverSQLite:
	default:
		return fmt.Errorf("%w: storage.driver %q", ErrInvalidConfig, c.Storage.Driver)
	}
	return nil
}

// Range parses the optional start and end dates
func (b BacktestConfig) Range() (start, end time.Time, err error) {
	if b.Start != "" {
		if start, err = time.Parse(time.DateOnly, b.Start); err != nil {
			return start, end, fmt.Errorf("%w: backtest.start %q", ErrInvalidConfig, b.Start)
		}
	}
	if b.End != "" {
		if end, err = time.Parse(time.DateOnly, b.End); err != nil {
			return start, end, fmt.Errorf("%w: backtest.end %q", ErrInvalidConfig, b.End)
		}
	}
	return start, end, nil
}

// Options converts the backtest section into engine options
func (b BacktestConfig) Options() ([]backtest.Option, error) {
	start, end, err := b.Range()
	if err != nil {
		return nil, err
	}
	return []backtest.Option{
		backtest.WithInitialCapital(b.InitialCapital),
		backtest.WithCommission(b.Commission),
		backtest.WithPositionSizing(backtest.FixedFraction(b.Fraction)),
		backtest.WithDateRange(start, end),
	}, nil
}
