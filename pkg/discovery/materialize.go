package discovery

import (
	"errors"
	"fmt"

	"github.com/raykavin/patternrun/pkg/core"
	"github.com/raykavin/patternrun/pkg/indicator"
	"github.com/raykavin/patternrun/pkg/strategy"
)

var ErrUnknownCondition = errors.New("pattern condition has no classifier")

// PatternStrategy buys when every condition of a pattern holds at the current bar.
// It never sells: positions are closed by the engine at the end of the run.
type PatternStrategy struct {
	pattern     Pattern
	classifiers []indicator.Classifier
	sector      string
}

// MaterializeOption configures a PatternStrategy
type MaterializeOption func(*PatternStrategy)

// WithSector sets the sector the strategy is traded in, matched against the
// pattern's context
func WithSector(sector string) MaterializeOption {
	return func(s *PatternStrategy) {
		s.sector = sector
	}
}

// Materialize turns a pattern into a signal source that classifies each vector
// with the same rules used during mining
func Materialize(p Pattern, classifiers []indicator.Classifier, opts ...MaterializeOption) (*PatternStrategy, error) {
	byName := make(map[string]indicator.Classifier, len(classifiers))
	for _, c := range classifiers {
		byName[c.Name] = c
	}

	needed := make([]indicator.Classifier, 0, len(p.Conditions))
	for name := range p.Conditions {
		c, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownCondition, name)
		}
		needed = append(needed, c)
	}

	s := &PatternStrategy{pattern: p, classifiers: needed}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Pattern returns the materialized pattern
func (s *PatternStrategy) Pattern() Pattern { return s.pattern }

// Decide implements strategy.SignalSource
func (s *PatternStrategy) Decide(v core.MarketVector) (core.Signal, error) {
	snap := indicator.Snapshot(v.Indicators)
	if _, ok := snap[indicator.KeyClose]; !ok && len(v.Close) > 0 {
		snap = make(indicator.Snapshot, len(v.Indicators)+1)
		for k, val := range v.Indicators {
			snap[k] = val
		}
		snap[indicator.KeyClose] = v.Price()
	}

	states := indicator.Extract(snap, s.classifiers)
	for name, want := range s.pattern.Conditions {
		if states[name] != want {
			return core.Hold, nil
		}
	}

	scenario := Scenario{Date: v.Time, Regime: regimeOf(snap), Sector: s.sector}
	if !s.pattern.Context.Matches(scenario) {
		return core.Hold, nil
	}
	return core.Buy, nil
}

var _ strategy.SignalSource = (*PatternStrategy)(nil)
