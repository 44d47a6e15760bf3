package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/raykavin/patternrun/pkg/discovery"
	"github.com/stretchr/testify/require"
)

func TestLoad_WritesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "patternrun.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.FileExists(t, path)

	require.Equal(t, "info", cfg.Log.Level)
	require.Equal(t, 10_000.0, cfg.Backtest.InitialCapital)
	require.Equal(t, 5, cfg.Discovery.Window)
	require.Equal(t, 10, cfg.Discovery.Profit.FPOP)
	require.Equal(t, 5.0, cfg.Discovery.Profit.MinGainPercent)
	require.Equal(t, discovery.TieFirstEdge, cfg.Discovery.TiePolicy)
	require.Equal(t, 14, cfg.Indicators.RSIPeriod)
	require.Equal(t, 250, cfg.WalkForward.TrainSize)
	require.Equal(t, cfg.Indicators, cfg.WalkForward.Discovery.Indicators)
	require.Equal(t, DriverBunt, cfg.Storage.Driver)

	// the written file loads back to the same configuration
	again, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, again)
}

func TestLoad_FileAndEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patternrun.yaml")
	content := `
data:
  file: prices.csv
  lookback: 2y
backtest:
  commission: 1
  start: "2021-01-04"
discovery:
  window: 7
  tie_policy: all
  min_gain_percent: 3.5
  classifiers: [rsi, macd]
indicators:
  rsi_oversold: 25
walkforward:
  step_size: 20
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("PATTERNRUN_BACKTEST_COMMISSION", "2.5")
	t.Setenv("PATTERNRUN_STORAGE_DRIVER", "sqlite")

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "prices.csv", cfg.Data.File)
	require.Equal(t, 2.5, cfg.Backtest.Commission)
	require.Equal(t, DriverSQLite, cfg.Storage.Driver)
	require.Equal(t, 7, cfg.Discovery.Window)
	require.Equal(t, discovery.TieAllMembers, cfg.Discovery.TiePolicy)
	require.Equal(t, 3.5, cfg.Discovery.Profit.MinGainPercent)
	require.Equal(t, []string{"rsi", "macd"}, cfg.Discovery.Classifiers)
	require.Equal(t, 25.0, cfg.Discovery.Indicators.RSIOversold)
	require.Equal(t, 20, cfg.WalkForward.StepSize)
	require.Equal(t, 60, cfg.WalkForward.TestSize)

	start, end, err := cfg.Backtest.Range()
	require.NoError(t, err)
	require.Equal(t, time.Date(2021, 1, 4, 0, 0, 0, 0, time.UTC), start)
	require.True(t, end.IsZero())

	opts, err := cfg.Backtest.Options()
	require.NoError(t, err)
	require.Len(t, opts, 4)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"lookback":    "data:\n  lookback: forever\n",
		"start":       "backtest:\n  start: yesterday\n",
		"capital":     "backtest:\n  initial_capital: 0\n",
		"window":      "discovery:\n  window: 0\n",
		"walkforward": "walkforward:\n  train_size: -1\n",
		"driver":      "storage:\n  driver: redis\n",
	}

	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "patternrun.yaml")
			require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

			_, err := Load(path)
			require.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestDefault(t *testing.T) {
	cfg, err := Default()
	require.NoError(t, err)
	require.Equal(t, "rsi", cfg.Backtest.Strategy)
	require.Equal(t, 1.0, cfg.Backtest.Fraction)
}
