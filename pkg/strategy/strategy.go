// Package strategy defines the signal source contract shared by every trading
// strategy and provides fixed-formula, rule-based and ensemble implementations.
package strategy

import (
	"errors"
	"fmt"

	"github.com/raykavin/patternrun/pkg/core"
)

var (
	ErrStrategyPanic   = errors.New("strategy panicked")
	ErrUnknownStrategy = errors.New("unknown strategy")
)

// SignalSource decides what to do at one step of a simulation.
// Implementations must only read the vector.
type SignalSource interface {
	Decide(vector core.MarketVector) (core.Signal, error)
}

// SignalFunc adapts a plain function to SignalSource
type SignalFunc func(vector core.MarketVector) (core.Signal, error)

// Decide implements SignalSource
func (f SignalFunc) Decide(vector core.MarketVector) (core.Signal, error) {
	return f(vector)
}

// Confident is implemented by sources that can also rate their decision in [0, 1]
type Confident interface {
	SignalSource
	Confidence(vector core.MarketVector) (core.Signal, float64, error)
}

type safeSource struct {
	src SignalSource
}

// Safe wraps a source so that a panic becomes a Hold with ErrStrategyPanic
func Safe(src SignalSource) SignalSource {
	if s, ok := src.(safeSource); ok {
		return s
	}
	return safeSource{src: src}
}

func (s safeSource) Decide(vector core.MarketVector) (signal core.Signal, err error) {
	defer func() {
		if r := recover(); r != nil {
			signal = core.Hold
			err = fmt.Errorf("%w: %v", ErrStrategyPanic, r)
		}
	}()

	signal, err = s.src.Decide(vector)
	if err != nil {
		return core.Hold, err
	}
	return signal, nil
}

// Hold never trades
func Hold() SignalSource {
	return SignalFunc(func(core.MarketVector) (core.Signal, error) {
		return core.Hold, nil
	})
}

// BuyAndHold buys on the first step and never sells
func BuyAndHold() SignalSource {
	return SignalFunc(func(core.MarketVector) (core.Signal, error) {
		return core.Buy, nil
	})
}
