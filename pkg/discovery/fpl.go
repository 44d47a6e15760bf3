package discovery

import (
	"errors"
	"fmt"
	"math"

	"github.com/raykavin/patternrun/pkg/core"
)

var (
	ErrInvalidHorizon   = errors.New("look-ahead horizon must be positive")
	ErrInsufficientData = errors.New("not enough bars after the point")
	ErrInvalidPrice     = errors.New("entry price must be positive")
)

// Direction classifies the bracket of future price changes
type Direction string

const (
	Up        Direction = "up"
	Down      Direction = "down"
	Flat      Direction = "flat"
	Uncertain Direction = "uncertain"
)

// FPL describes the future price levels seen within the look-ahead horizon of a point.
// Deltas are percent changes from the entry price.
type FPL struct {
	MinDelta  float64
	MaxDelta  float64
	Risk      float64
	Magnitude float64
	Direction Direction
	MinIndex  int
	MaxIndex  int
}

// AnalyzeFPL inspects prices[idx+1 .. idx+fpop]. The first occurrence wins when
// the extreme price repeats.
func AnalyzeFPL(prices []float64, idx, fpop int) (FPL, error) {
	if fpop <= 0 {
		return FPL{}, fmt.Errorf("%w: %d", ErrInvalidHorizon, fpop)
	}
	if idx < 0 || idx+fpop >= len(prices) {
		return FPL{}, fmt.Errorf("%w: index %d + %d of %d", ErrInsufficientData, idx, fpop, len(prices))
	}

	entry := prices[idx]
	if entry <= 0 || math.IsNaN(entry) || math.IsInf(entry, 0) {
		return FPL{}, fmt.Errorf("%w: %f at %d", ErrInvalidPrice, entry, idx)
	}

	future := core.Series[float64](prices).Window(idx+1, idx+fpop+1)
	high, hi := future.Max()
	low, lo := future.Min()

	fpl := FPL{
		MaxDelta: (high - entry) / entry * 100,
		MinDelta: (low - entry) / entry * 100,
		MaxIndex: idx + 1 + hi,
		MinIndex: idx + 1 + lo,
	}
	fpl.Risk = fpl.MaxDelta - fpl.MinDelta
	fpl.Magnitude = (fpl.MaxDelta + fpl.MinDelta) / 2
	fpl.Direction = direction(fpl.MinDelta, fpl.MaxDelta)
	return fpl, nil
}

func direction(minDelta, maxDelta float64) Direction {
	switch {
	case minDelta > 0 && maxDelta > 0:
		return Up
	case minDelta < 0 && maxDelta < 0:
		return Down
	case minDelta == 0 && maxDelta == 0:
		return Flat
	}
	return Uncertain
}
