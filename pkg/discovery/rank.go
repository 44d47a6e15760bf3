package discovery

import (
	"sort"

	"github.com/raykavin/patternrun/pkg/metric"
	"github.com/samber/lo"
)

// Score computes the average gain, average holding period and success rate of
// every pattern. totalProfitable is the number of profitable points mined.
func Score(patterns []Pattern, totalProfitable int) {
	for i := range patterns {
		p := &patterns[i]
		p.AvgGain = metric.Mean(lo.Map(p.Occurrences, func(o ProfitablePoint, _ int) float64 { return o.GainPercent }))
		p.AvgHoldingDays = metric.Mean(lo.Map(p.Occurrences, func(o ProfitablePoint, _ int) float64 { return float64(o.HoldingDays) }))
		if totalProfitable > 0 {
			p.SuccessRate = float64(p.Frequency) / float64(totalProfitable) * 100
		}
	}
}

// Rank sorts patterns by success rate, average gain and frequency, all
// descending, then by key
func Rank(patterns []Pattern) {
	sort.SliceStable(patterns, func(i, j int) bool {
		a, b := patterns[i], patterns[j]
		if a.SuccessRate != b.SuccessRate {
			return a.SuccessRate > b.SuccessRate
		}
		if a.AvgGain != b.AvgGain {
			return a.AvgGain > b.AvgGain
		}
		if a.Frequency != b.Frequency {
			return a.Frequency > b.Frequency
		}
		return a.Key < b.Key
	})
}

// TopN returns at most n patterns. n <= 0 keeps all.
func TopN(patterns []Pattern, n int) []Pattern {
	if n <= 0 || n >= len(patterns) {
		return patterns
	}
	return patterns[:n]
}
