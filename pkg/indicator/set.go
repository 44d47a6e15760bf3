// Package indicator computes technical indicators over a price series and maps their
// values to discrete states (oversold, golden cross, ...).
package indicator

import (
	"math"

	"github.com/raykavin/patternrun/pkg/core"
)

// Snapshot keys
const (
	KeyClose          = "close"
	KeyVolume         = "volume"
	KeyRSI            = "rsi"
	KeyMACD           = "macd"
	KeyMACDSignal     = "macd_signal"
	KeyMACDPrev       = "macd_prev"
	KeyMACDSignalPrev = "macd_signal_prev"
	KeyStochK         = "stoch_k"
	KeyStochD         = "stoch_d"
	KeySMAFast        = "sma_fast"
	KeySMASlow        = "sma_slow"
	KeyBBUpper        = "bb_upper"
	KeyBBMiddle       = "bb_middle"
	KeyBBLower        = "bb_lower"
	KeyEMA            = "ema"
	KeyATR            = "atr"
	KeyVolumeAvg      = "volume_avg"
	KeySuperTrend     = "supertrend"
)

// Config holds indicator periods and the thresholds used to discretize them
type Config struct {
	RSIPeriod     int     `mapstructure:"rsi_period"`
	RSIOversold   float64 `mapstructure:"rsi_oversold"`
	RSIOverbought float64 `mapstructure:"rsi_overbought"`

	MACDFast   int `mapstructure:"macd_fast"`
	MACDSlow   int `mapstructure:"macd_slow"`
	MACDSignal int `mapstructure:"macd_signal"`

	StochK          int     `mapstructure:"stoch_k"`
	StochSlowK      int     `mapstructure:"stoch_slow_k"`
	StochD          int     `mapstructure:"stoch_d"`
	StochOversold   float64 `mapstructure:"stoch_oversold"`
	StochOverbought float64 `mapstructure:"stoch_overbought"`

	SMAFast int `mapstructure:"sma_fast"`
	SMASlow int `mapstructure:"sma_slow"`

	BBPeriod    int     `mapstructure:"bb_period"`
	BBDeviation float64 `mapstructure:"bb_deviation"`

	EMAPeriod int `mapstructure:"ema_period"`
	ATRPeriod int `mapstructure:"atr_period"`

	VolumePeriod int     `mapstructure:"volume_period"`
	VolumeHigh   float64 `mapstructure:"volume_high"`
	VolumeLow    float64 `mapstructure:"volume_low"`

	SuperTrendFactor float64 `mapstructure:"supertrend_factor"`
}

// DefaultConfig returns the conventional indicator settings
func DefaultConfig() Config {
	return Config{
		RSIPeriod:        14,
		RSIOversold:      30,
		RSIOverbought:    70,
		MACDFast:         12,
		MACDSlow:         26,
		MACDSignal:       9,
		StochK:           14,
		StochSlowK:       3,
		StochD:           3,
		StochOversold:    20,
		StochOverbought:  80,
		SMAFast:          50,
		SMASlow:          200,
		BBPeriod:         20,
		BBDeviation:      2,
		EMAPeriod:        20,
		ATRPeriod:        14,
		VolumePeriod:     20,
		VolumeHigh:       1.5,
		VolumeLow:        0.5,
		SuperTrendFactor: 3,
	}
}

// Snapshot is the bag of indicator values available at one bar
type Snapshot map[string]float64

type column struct {
	values []float64
	first  int // first index holding a valid value
}

// Set holds every indicator precomputed once over a full series.
// Each value at index i depends only on bars [0..i], so a Set built over the full
// history can serve any step of a simulation without look-ahead.
// A Set is read-only after construction and safe for concurrent use.
type Set struct {
	config  Config
	series  *core.PriceSeries
	columns map[string]column
}

// NewSet computes all indicators for the series
func NewSet(series *core.PriceSeries, cfg Config) *Set {
	s := &Set{
		config:  cfg,
		series:  series,
		columns: make(map[string]column),
	}

	closes := series.Close.Values()
	highs := series.High.Values()
	lows := series.Low.Values()

	s.put(KeyRSI, RSI(closes, cfg.RSIPeriod), cfg.RSIPeriod)

	macd, signal, _ := MACD(closes, cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal)
	macdFirst := macdLookback(cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal)
	s.put(KeyMACD, macd, macdFirst)
	s.put(KeyMACDSignal, signal, macdFirst)

	k, d := Stoch(highs, lows, closes, cfg.StochK, cfg.StochSlowK, cfg.StochD)
	stochFirst := stochLookback(cfg.StochK, cfg.StochSlowK, cfg.StochD)
	s.put(KeyStochK, k, stochFirst)
	s.put(KeyStochD, d, stochFirst)

	s.put(KeySMAFast, SMA(closes, cfg.SMAFast), cfg.SMAFast-1)
	s.put(KeySMASlow, SMA(closes, cfg.SMASlow), cfg.SMASlow-1)

	upper, middle, lower := BB(closes, cfg.BBPeriod, cfg.BBDeviation, TypeSMA)
	s.put(KeyBBUpper, upper, cfg.BBPeriod-1)
	s.put(KeyBBMiddle, middle, cfg.BBPeriod-1)
	s.put(KeyBBLower, lower, cfg.BBPeriod-1)

	s.put(KeyEMA, EMA(closes, cfg.EMAPeriod), cfg.EMAPeriod-1)
	s.put(KeyATR, ATR(highs, lows, closes, cfg.ATRPeriod), cfg.ATRPeriod)
	s.put(KeyVolumeAvg, SMA(series.Volume.Values(), cfg.VolumePeriod), cfg.VolumePeriod-1)
	s.put(KeySuperTrend, SuperTrend(highs, lows, closes, cfg.ATRPeriod, cfg.SuperTrendFactor), cfg.ATRPeriod+1)

	return s
}

func (s *Set) put(key string, values []float64, first int) {
	if values == nil {
		return
	}
	s.columns[key] = column{values: values, first: max(first, 0)}
}

// Config returns the settings the set was computed with
func (s *Set) Config() Config { return s.config }

// Len returns the number of bars covered
func (s *Set) Len() int { return s.series.Len() }

// Value returns a named indicator at bar i, false during warm-up or when unknown
func (s *Set) Value(key string, i int) (float64, bool) {
	col, ok := s.columns[key]
	if !ok || i < col.first || i < 0 || i >= len(col.values) {
		return 0, false
	}

	v := col.values[i]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Snapshot collects every available value at bar i
func (s *Set) Snapshot(i int) Snapshot {
	snap := Snapshot{
		KeyClose:  s.series.Close[i],
		KeyVolume: s.series.Volume[i],
	}

	for key := range s.columns {
		if v, ok := s.Value(key, i); ok {
			snap[key] = v
		}
	}

	if v, ok := s.Value(KeyMACD, i-1); ok {
		snap[KeyMACDPrev] = v
	}
	if v, ok := s.Value(KeyMACDSignal, i-1); ok {
		snap[KeyMACDSignalPrev] = v
	}

	return snap
}
