package discovery

import (
	"errors"
	"fmt"
	"time"

	"github.com/StudioSol/set"
	"github.com/raykavin/patternrun/pkg/core"
	"github.com/raykavin/patternrun/pkg/indicator"
)

// Side of the move that made a point profitable
type Side string

const (
	Long  Side = "long"
	Short Side = "short"
)

// ProfitConfig holds the profitability criteria of FilterProfitable
type ProfitConfig struct {
	// FPOP is the look-ahead horizon in bars
	FPOP int `mapstructure:"fpop"`
	// MinGainPercent is the rise that makes a long entry, e.g. 5 for +5%
	MinGainPercent float64 `mapstructure:"min_gain_percent"`
	// MinLossPercent is the (negative) decline that makes a short entry.
	// Zero means -MinGainPercent.
	MinLossPercent float64 `mapstructure:"min_loss_percent"`
	// MaxRisk rejects points whose forward range exceeds it. Zero disables the cap.
	MaxRisk float64 `mapstructure:"max_risk"`
	// Directions keeps only points whose forward direction is listed. Empty keeps all.
	Directions []Direction `mapstructure:"directions"`
}

// DefaultProfitConfig returns a 10-bar horizon and a symmetric 5% threshold
func DefaultProfitConfig() ProfitConfig {
	return ProfitConfig{FPOP: 10, MinGainPercent: 5}
}

func (c ProfitConfig) minLoss() float64 {
	if c.MinLossPercent == 0 {
		return -c.MinGainPercent
	}
	return c.MinLossPercent
}

// ProfitablePoint is an inflection point followed by a qualifying move
type ProfitablePoint struct {
	EntryIndex int
	EntryTime  time.Time
	EntryPrice float64
	ExitIndex  int
	ExitPrice  float64
	// GainPercent is the price change from entry to exit: positive for long
	// points, negative for short ones
	GainPercent float64
	HoldingDays int
	Side        Side
	Kind        InflectionKind

	IndicatorStates map[string]string

	FPLRisk      float64
	FPLDirection Direction
	FPLMagnitude float64
}

// FilterProfitable keeps the inflection points followed within cfg.FPOP bars by a
// rise of at least MinGainPercent (long, exiting at the future maximum) or else a
// decline of at least MinLossPercent (short, exiting at the future minimum).
// Points without a full horizon of future bars are skipped.
func FilterProfitable(points []InflectionPoint, prices []float64, cfg ProfitConfig) ([]ProfitablePoint, error) {
	if cfg.FPOP <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidHorizon, cfg.FPOP)
	}

	var allowed *set.LinkedHashSetString
	if len(cfg.Directions) > 0 {
		allowed = set.NewLinkedHashSetString()
		for _, d := range cfg.Directions {
			allowed.Add(string(d))
		}
	}

	minLoss := cfg.minLoss()
	out := make([]ProfitablePoint, 0)

	for _, point := range points {
		fpl, err := AnalyzeFPL(prices, point.Index, cfg.FPOP)
		if errors.Is(err, ErrInsufficientData) {
			continue
		}
		if err != nil {
			return nil, err
		}

		if cfg.MaxRisk > 0 && fpl.Risk > cfg.MaxRisk {
			continue
		}
		if allowed != nil && !allowed.InArray(string(fpl.Direction)) {
			continue
		}

		pp := ProfitablePoint{
			EntryIndex:   point.Index,
			EntryPrice:   prices[point.Index],
			Kind:         point.Kind,
			FPLRisk:      fpl.Risk,
			FPLDirection: fpl.Direction,
			FPLMagnitude: fpl.Magnitude,
		}

		switch {
		case fpl.MaxDelta >= cfg.MinGainPercent:
			pp.Side = Long
			pp.ExitIndex = fpl.MaxIndex
			pp.GainPercent = fpl.MaxDelta
		case fpl.MinDelta <= minLoss:
			pp.Side = Short
			pp.ExitIndex = fpl.MinIndex
			pp.GainPercent = fpl.MinDelta
		default:
			continue
		}

		pp.ExitPrice = prices[pp.ExitIndex]
		pp.HoldingDays = pp.ExitIndex - pp.EntryIndex
		out = append(out, pp)
	}

	return out, nil
}

// ExtractStates fills the indicator states of every point from a precomputed set.
// The set must cover the series the points index into.
func ExtractStates(points []ProfitablePoint, set *indicator.Set, classifiers []indicator.Classifier, series *core.PriceSeries) {
	for i := range points {
		idx := points[i].EntryIndex
		points[i].IndicatorStates = indicator.Extract(set.Snapshot(idx), classifiers)
		if series != nil {
			points[i].EntryTime = series.Time[idx]
		}
	}
}
