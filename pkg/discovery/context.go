package discovery

import (
	"slices"
	"sort"
	"time"

	"github.com/raykavin/patternrun/pkg/core"
	"github.com/raykavin/patternrun/pkg/indicator"
	"github.com/samber/lo"
)

// Market regimes
const (
	RegimeBull     = "bull"
	RegimeBear     = "bear"
	RegimeSideways = "sideways"
)

// PatternContext restricts where a pattern is considered valid.
// Every populated field must match; unset fields impose no constraint.
type PatternContext struct {
	Regime   string       `json:"regime,omitempty"`
	Months   []time.Month `json:"months,omitempty"`
	Quarters []int        `json:"quarters,omitempty"`
	Sector   string       `json:"sector,omitempty"`
	// Stability is the fraction of the mined period's quarters in which the
	// pattern occurred. It is informational and never filters.
	Stability float64 `json:"stability,omitempty"`
}

// Scenario is the situation a pattern is evaluated in
type Scenario struct {
	Date   time.Time
	Regime string
	Sector string
}

// Matches reports whether the scenario satisfies every populated field.
// A nil context matches everything.
func (c *PatternContext) Matches(s Scenario) bool {
	if c == nil {
		return true
	}
	if c.Regime != "" && c.Regime != s.Regime {
		return false
	}
	if c.Sector != "" && c.Sector != s.Sector {
		return false
	}
	if len(c.Months) > 0 && (s.Date.IsZero() || !slices.Contains(c.Months, s.Date.Month())) {
		return false
	}
	if len(c.Quarters) > 0 && (s.Date.IsZero() || !slices.Contains(c.Quarters, quarter(s.Date))) {
		return false
	}
	return true
}

func quarter(t time.Time) int {
	return (int(t.Month())-1)/3 + 1
}

// RegimeAt classifies bar i of the set's series
func RegimeAt(set *indicator.Set, i int) string {
	return regimeOf(set.Snapshot(i))
}

// regimeOf is bull when price and the fast average are above the slow average,
// bear when both are below it, sideways otherwise or during warm-up
func regimeOf(snap indicator.Snapshot) string {
	closePrice, ok1 := snap[indicator.KeyClose]
	fast, ok2 := snap[indicator.KeySMAFast]
	slow, ok3 := snap[indicator.KeySMASlow]
	if !ok1 || !ok2 || !ok3 {
		return RegimeSideways
	}

	switch {
	case closePrice > slow && fast > slow:
		return RegimeBull
	case closePrice < slow && fast < slow:
		return RegimeBear
	}
	return RegimeSideways
}

type quarterKey struct {
	year    int
	quarter int
}

// enrich derives a context from the pattern's occurrences within series[from:to)
func enrich(p *Pattern, set *indicator.Set, series *core.PriceSeries, from, to int, sector string) {
	ctx := &PatternContext{Sector: sector}

	regimes := lo.Uniq(lo.Map(p.Occurrences, func(o ProfitablePoint, _ int) string {
		return RegimeAt(set, o.EntryIndex)
	}))
	if len(regimes) == 1 {
		ctx.Regime = regimes[0]
	}

	ctx.Months = lo.Uniq(lo.Map(p.Occurrences, func(o ProfitablePoint, _ int) time.Month {
		return series.Time[o.EntryIndex].Month()
	}))
	sort.Slice(ctx.Months, func(i, j int) bool { return ctx.Months[i] < ctx.Months[j] })

	ctx.Quarters = lo.Uniq(lo.Map(p.Occurrences, func(o ProfitablePoint, _ int) int {
		return quarter(series.Time[o.EntryIndex])
	}))
	sort.Ints(ctx.Quarters)

	seen := lo.Uniq(lo.Map(p.Occurrences, func(o ProfitablePoint, _ int) quarterKey {
		t := series.Time[o.EntryIndex]
		return quarterKey{t.Year(), quarter(t)}
	}))
	all := lo.Uniq(lo.Map(series.Time[from:to], func(t time.Time, _ int) quarterKey {
		return quarterKey{t.Year(), quarter(t)}
	}))
	if len(all) > 0 {
		ctx.Stability = float64(len(seen)) / float64(len(all))
	}

	p.Context = ctx
}
