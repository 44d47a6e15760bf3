package discovery

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/samber/lo"
)

// MaxConditions is the largest number of simultaneous states in a pattern
const MaxConditions = 3

var ErrMalformedConditions = errors.New("malformed pattern conditions")

// Conditions maps an indicator classifier to the state it must be in
type Conditions map[string]string

// Key returns the canonical identity of the conditions: "name=state" pairs
// sorted by name and joined with ';'. Equal maps always yield equal keys.
func (c Conditions) Key() string {
	return c.join(";")
}

// String renders the conditions as "name=state; name=state"
func (c Conditions) String() string {
	return c.join("; ")
}

func (c Conditions) join(sep string) string {
	names := lo.Keys(map[string]string(c))
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + "=" + c[name]
	}
	return strings.Join(parts, sep)
}

// ParseConditions reads conditions written by Key or String
func ParseConditions(s string) (Conditions, error) {
	c := make(Conditions)
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, state, ok := strings.Cut(part, "=")
		name, state = strings.TrimSpace(name), strings.TrimSpace(state)
		if !ok || name == "" || state == "" {
			return nil, fmt.Errorf("%w: %q", ErrMalformedConditions, part)
		}
		if _, dup := c[name]; dup {
			return nil, fmt.Errorf("%w: %q repeated", ErrMalformedConditions, name)
		}
		c[name] = state
	}
	if len(c) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrMalformedConditions)
	}
	return c, nil
}

// Pattern is a set of indicator states that co-occurred at profitable points
type Pattern struct {
	Key            string
	Conditions     Conditions
	Frequency      int
	AvgGain        float64
	AvgHoldingDays float64
	// SuccessRate is Frequency over all profitable points of the run, in percent.
	// It measures how common the pattern is among winners, not a backtested win rate.
	SuccessRate float64
	Occurrences []ProfitablePoint
	Context     *PatternContext
}

// NewPattern creates an empty pattern for the given conditions
func NewPattern(c Conditions) Pattern {
	return Pattern{Key: c.Key(), Conditions: c}
}

// combinations returns every 1..MaxConditions subset of states
func combinations(states map[string]string) []Conditions {
	names := lo.Keys(states)
	sort.Strings(names)

	out := make([]Conditions, 0)
	var walk func(start int, picked []string)
	walk = func(start int, picked []string) {
		if len(picked) > 0 {
			out = append(out, Conditions(lo.PickByKeys(states, picked)))
		}
		if len(picked) == MaxConditions {
			return
		}
		for i := start; i < len(names); i++ {
			walk(i+1, append(picked[:len(picked):len(picked)], names[i]))
		}
	}
	walk(0, nil)
	return out
}

// Mine counts every 1-, 2- and 3-state combination across the points and keeps
// those seen at least minFrequency times. Points are expanded by up to workers
// goroutines; counts and occurrence order do not depend on scheduling.
// The result is ordered by key.
func Mine(points []ProfitablePoint, minFrequency, workers int) []Pattern {
	expanded := make([][]Conditions, len(points))

	if workers <= 1 || len(points) < 2 {
		for i, p := range points {
			expanded[i] = combinations(p.IndicatorStates)
		}
	} else {
		var (
			wg        sync.WaitGroup
			semaphore = make(chan struct{}, workers)
		)
		for i := range points {
			wg.Add(1)
			semaphore <- struct{}{}

			go func(index int) {
				defer wg.Done()
				defer func() { <-semaphore }()
				expanded[index] = combinations(points[index].IndicatorStates)
			}(i)
		}
		wg.Wait()
	}

	byKey := make(map[string]*Pattern)
	for i, combos := range expanded {
		for _, c := range combos {
			key := c.Key()
			p, ok := byKey[key]
			if !ok {
				np := NewPattern(c)
				p = &np
				byKey[key] = p
			}
			p.Frequency++
			p.Occurrences = append(p.Occurrences, points[i])
		}
	}

	patterns := make([]Pattern, 0, len(byKey))
	for _, p := range byKey {
		if p.Frequency >= max(minFrequency, 1) {
			patterns = append(patterns, *p)
		}
	}
	sort.Slice(patterns, func(i, j int) bool { return patterns[i].Key < patterns[j].Key })
	return patterns
}
