// Package metric holds the return-series statistics used by the backtest reports.
package metric

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// TradingDaysPerYear annualizes daily statistics
const TradingDaysPerYear = 252

// flatEpsilon treats a standard deviation below it as a flat series
const flatEpsilon = 1e-12

// Mean calculates the arithmetic mean of the values.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

// StdDev calculates the sample standard deviation, 0 for fewer than two values.
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	return stat.StdDev(values, nil)
}

// Returns converts a value curve into consecutive fractional changes.
// Steps starting from a zero value are skipped.
func Returns(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}

	out := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] == 0 {
			continue
		}
		out = append(out, (values[i]-values[i-1])/values[i-1])
	}
	return out
}

// Sharpe returns the annualized Sharpe ratio of daily returns with a zero risk-free rate.
// A flat return series yields 0.
func Sharpe(dailyReturns []float64) float64 {
	sd := StdDev(dailyReturns)
	if sd < flatEpsilon || math.IsNaN(sd) {
		return 0
	}
	return Mean(dailyReturns) / sd * math.Sqrt(TradingDaysPerYear)
}

// MaxDrawdown returns the largest peak-to-trough decline of a value curve as a
// non-positive fraction in [-1, 0].
func MaxDrawdown(values []float64) float64 {
	var (
		peak  float64
		worst float64
	)

	for i, v := range values {
		if i == 0 || v > peak {
			peak = v
			continue
		}
		if peak <= 0 {
			continue
		}
		if dd := (v - peak) / peak; dd < worst {
			worst = dd
		}
	}

	return math.Max(worst, -1)
}

// AnnualizedReturn compounds a total return over elapsed calendar days.
// Returns 0 when no time elapsed or the total return wiped out the capital.
func AnnualizedReturn(totalReturn float64, days float64) float64 {
	if days <= 0 || totalReturn <= -1 {
		return 0
	}
	return math.Pow(1+totalReturn, 365/days) - 1
}

// Payoff calculates the ratio of average wins to average losses.
// Returns 0 when there are no losing or no winning values.
func Payoff(values []float64) float64 {
	wins, losses := partitionTradeResults(values)
	if len(wins) == 0 || len(losses) == 0 {
		return 0
	}

	avgLoss := stat.Mean(losses, nil)
	if avgLoss == 0 {
		return 0
	}

	return stat.Mean(wins, nil) / avgLoss
}

// ProfitFactor calculates sum(wins)/|sum(losses)|, 0 when there are no losses.
func ProfitFactor(values []float64) float64 {
	var (
		totalWins   float64
		totalLosses float64
	)

	for _, value := range values {
		if value > 0 {
			totalWins += value
		} else {
			totalLosses += value
		}
	}

	if totalLosses == 0 {
		return 0
	}

	return math.Abs(totalWins / totalLosses)
}

// partitionTradeResults separates results into wins (> 0) and absolute losses (< 0).
// Break-even values belong to neither side.
func partitionTradeResults(values []float64) (wins []float64, losses []float64) {
	for _, value := range values {
		switch {
		case value > 0:
			wins = append(wins, value)
		case value < 0:
			losses = append(losses, math.Abs(value))
		}
	}
	return wins, losses
}

// SQN is the system quality number: sqrt(n) * mean / population standard deviation
// of the per-trade results. 0 without trades or dispersion.
func SQN(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	_, variance := stat.PopMeanVariance(values, nil)
	sd := math.Sqrt(variance)
	if sd < flatEpsilon {
		return 0
	}
	return math.Sqrt(float64(len(values))) * Mean(values) / sd
}
