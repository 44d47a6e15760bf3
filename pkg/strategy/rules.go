package strategy

import (
	"github.com/raykavin/patternrun/pkg/core"
	"github.com/raykavin/patternrun/pkg/indicator"
)

// Facts is what rules are evaluated against: raw indicator values plus their
// discrete states. It is derived once per step.
type Facts struct {
	Values indicator.Snapshot
	States map[string]string
}

// Ref resolves an operand of a comparison
type Ref func(Facts) (float64, bool)

// Key refers to an indicator value
func Key(name string) Ref {
	return func(f Facts) (float64, bool) {
		v, ok := f.Values[name]
		return v, ok
	}
}

// Num is a constant operand
func Num(value float64) Ref {
	return func(Facts) (float64, bool) { return value, true }
}

// Condition is a single test of a rule. Missing facts make a condition false.
type Condition func(Facts) bool

// StateIs holds when the named classifier is in the given state
func StateIs(classifier, state string) Condition {
	return func(f Facts) bool {
		s, ok := f.States[classifier]
		return ok && s == state
	}
}

// Above holds when the value under key is strictly greater than ref
func Above(key string, ref Ref) Condition {
	return compare(key, ref, func(a, b float64) bool { return a > b })
}

// Below holds when the value under key is strictly lower than ref
func Below(key string, ref Ref) Condition {
	return compare(key, ref, func(a, b float64) bool { return a < b })
}

func compare(key string, ref Ref, cmp func(a, b float64) bool) Condition {
	return func(f Facts) bool {
		a, ok := f.Values[key]
		if !ok {
			return false
		}
		b, ok := ref(f)
		return ok && cmp(a, b)
	}
}

// Rule fires Then when every condition in When holds
type Rule struct {
	Name   string
	When   []Condition
	Then   core.Signal
	Weight float64
}

func (r Rule) matches(f Facts) bool {
	if len(r.When) == 0 {
		return false
	}
	for _, cond := range r.When {
		if !cond(f) {
			return false
		}
	}
	return true
}

// RuleMode selects how matching rules are combined
type RuleMode int

const (
	// FirstMatch returns the action of the first matching rule in declaration order
	FirstMatch RuleMode = iota
	// Consensus sums the weights of all matching rules per action; ties hold
	Consensus
)

// RuleSet evaluates an ordered list of rules against the facts of each step
type RuleSet struct {
	mode        RuleMode
	classifiers []indicator.Classifier
	rules       []Rule
}

// NewRuleSet creates a rule set. The classifiers produce the states StateIs tests.
func NewRuleSet(mode RuleMode, classifiers []indicator.Classifier, rules ...Rule) *RuleSet {
	return &RuleSet{mode: mode, classifiers: classifiers, rules: rules}
}

// Facts derives the fact snapshot of a vector
func (r *RuleSet) Facts(v core.MarketVector) Facts {
	values := indicator.Snapshot(v.Indicators)
	if values == nil {
		values = indicator.Snapshot{}
	}
	if _, ok := values[indicator.KeyClose]; !ok && len(v.Close) > 0 {
		values = copySnapshot(values)
		values[indicator.KeyClose] = v.Price()
	}
	return Facts{Values: values, States: indicator.Extract(values, r.classifiers)}
}

func copySnapshot(s indicator.Snapshot) indicator.Snapshot {
	out := make(indicator.Snapshot, len(s)+1)
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Decide implements SignalSource
func (r *RuleSet) Decide(v core.MarketVector) (core.Signal, error) {
	facts := r.Facts(v)

	if r.mode == FirstMatch {
		for _, rule := range r.rules {
			if rule.matches(facts) {
				return rule.Then, nil
			}
		}
		return core.Hold, nil
	}

	votes := make(map[core.Signal]float64, 3)
	for _, rule := range r.rules {
		if rule.matches(facts) {
			votes[rule.Then] += weightOf(rule.Weight)
		}
	}
	return pick(votes[core.Buy], votes[core.Sell], 0), nil
}

func weightOf(w float64) float64 {
	if w <= 0 {
		return 1
	}
	return w
}

// pick returns the side with the larger score when it exceeds floor, Hold otherwise
func pick(buy, sell, floor float64) core.Signal {
	switch {
	case buy > sell && buy > floor:
		return core.Buy
	case sell > buy && sell > floor:
		return core.Sell
	}
	return core.Hold
}

// KnowledgeBase returns the default consensus rule set combining momentum,
// trend and volatility evidence
func KnowledgeBase(cfg indicator.Config) (*RuleSet, error) {
	classifiers, err := indicator.Classifiers(cfg)
	if err != nil {
		return nil, err
	}

	return NewRuleSet(Consensus, classifiers,
		Rule{
			Name: "oversold at lower band",
			When: []Condition{StateIs(indicator.RSIState, indicator.Oversold), StateIs(indicator.BollingerState, indicator.BelowLower)},
			Then: core.Buy, Weight: 2,
		},
		Rule{
			Name: "bullish crossover in uptrend",
			When: []Condition{StateIs(indicator.MACDState, indicator.Bullish), StateIs(indicator.SMACrossState, indicator.Golden)},
			Then: core.Buy, Weight: 1.5,
		},
		Rule{
			Name: "oversold stochastic on volume",
			When: []Condition{StateIs(indicator.StochasticState, indicator.Oversold), StateIs(indicator.VolumeState, indicator.High)},
			Then: core.Buy, Weight: 1,
		},
		Rule{
			Name: "overbought at upper band",
			When: []Condition{StateIs(indicator.RSIState, indicator.Overbought), StateIs(indicator.BollingerState, indicator.AboveUpper)},
			Then: core.Sell, Weight: 2,
		},
		Rule{
			Name: "bearish crossover in downtrend",
			When: []Condition{StateIs(indicator.MACDState, indicator.Bearish), StateIs(indicator.SMACrossState, indicator.Death)},
			Then: core.Sell, Weight: 1.5,
		},
		Rule{
			Name: "price lost the average",
			When: []Condition{Below(indicator.KeyClose, Key(indicator.KeyEMA)), StateIs(indicator.MACDState, indicator.Bearish)},
			Then: core.Sell, Weight: 1,
		},
	), nil
}
