package indicator

import "github.com/markcheno/go-talib"

// MaType represents moving average type
type MaType = talib.MaType

// Moving average type constants
const (
	TypeSMA = talib.SMA // Simple Moving Average
	TypeEMA = talib.EMA // Exponential Moving Average
	TypeWMA = talib.WMA // Weighted Moving Average
)

// The wrappers below return nil instead of calling into talib when the input is
// shorter than the indicator's lookback: talib indexes past the end of short inputs.

// SMA calculates Simple Moving Average
func SMA(input []float64, period int) []float64 {
	if period < 1 || len(input) < period {
		return nil
	}
	return talib.Sma(input, period)
}

// EMA calculates Exponential Moving Average
func EMA(input []float64, period int) []float64 {
	if period < 1 || len(input) < period {
		return nil
	}
	return talib.Ema(input, period)
}

// RSI calculates Relative Strength Index
func RSI(input []float64, period int) []float64 {
	if period < 2 || len(input) <= period {
		return nil
	}
	return talib.Rsi(input, period)
}

// MACD calculates Moving Average Convergence/Divergence
// Returns MACD, signal, and histogram
func MACD(input []float64, fastPeriod, slowPeriod, signalPeriod int) ([]float64, []float64, []float64) {
	if fastPeriod < 2 || slowPeriod < 2 || signalPeriod < 1 || len(input) <= macdLookback(fastPeriod, slowPeriod, signalPeriod) {
		return nil, nil, nil
	}
	return talib.Macd(input, fastPeriod, slowPeriod, signalPeriod)
}

// BB calculates Bollinger Bands
// Returns upper, middle, and lower bands
func BB(input []float64, period int, deviation float64, maType MaType) ([]float64, []float64, []float64) {
	if period < 2 || len(input) < period {
		return nil, nil, nil
	}
	return talib.BBands(input, period, deviation, deviation, maType)
}

// Stoch calculates the slow stochastic oscillator
// Returns %K and %D
func Stoch(high, low, close []float64, fastKPeriod, slowKPeriod, slowDPeriod int) ([]float64, []float64) {
	if fastKPeriod < 1 || slowKPeriod < 1 || slowDPeriod < 1 ||
		len(close) <= stochLookback(fastKPeriod, slowKPeriod, slowDPeriod) {
		return nil, nil
	}
	return talib.Stoch(high, low, close, fastKPeriod, slowKPeriod, TypeSMA, slowDPeriod, TypeSMA)
}

// ATR calculates Average True Range
func ATR(high, low, close []float64, period int) []float64 {
	if period < 1 || len(close) <= period {
		return nil
	}
	return talib.Atr(high, low, close, period)
}

func macdLookback(fast, slow, signal int) int {
	return max(fast, slow) - 1 + signal - 1
}

func stochLookback(fastK, slowK, slowD int) int {
	return fastK - 1 + slowK - 1 + slowD - 1
}
