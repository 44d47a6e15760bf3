package discovery

import (
	"bytes"
	"context"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/raykavin/patternrun/pkg/core"
	"github.com/raykavin/patternrun/pkg/indicator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day0 = time.Date(2021, 1, 4, 0, 0, 0, 0, time.UTC)

func waveSeries(t *testing.T, n int) *core.PriceSeries {
	t.Helper()
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100 + 15*math.Sin(float64(i)/6) + float64(i)*0.1
	}
	series, err := core.FromCloses("WAVE", day0, closes)
	require.NoError(t, err)
	return series
}

func point(idx int, gain float64, hold int, states map[string]string) ProfitablePoint {
	return ProfitablePoint{EntryIndex: idx, GainPercent: gain, HoldingDays: hold, IndicatorStates: states}
}

func TestDetectInflections(t *testing.T) {
	points := DetectInflections([]float64{1, 2, 3, 2, 1, 2, 4, 2, 1}, 1, TieFirstEdge)
	require.Equal(t, []InflectionPoint{{2, Max}, {4, Min}, {6, Max}}, points)

	require.Nil(t, DetectInflections([]float64{1, 2}, 1, TieFirstEdge))
	require.Nil(t, DetectInflections([]float64{1, 2, 3}, 0, TieFirstEdge))
}

func TestDetectInflections_TiePolicy(t *testing.T) {
	plateau := []float64{5, 3, 1, 1, 1, 3, 5}

	require.Equal(t, []InflectionPoint{{2, Min}}, DetectInflections(plateau, 2, TieFirstEdge))
	require.Equal(t, []InflectionPoint{{2, Min}, {3, Min}, {4, Min}}, DetectInflections(plateau, 2, TieAllMembers))

	// a flat window is both a minimum and a maximum and is reported once
	require.Equal(t, []InflectionPoint{{1, Min}}, DetectInflections([]float64{2, 2, 2}, 1, TieAllMembers))
	require.Empty(t, DetectInflections([]float64{2, 2, 2}, 1, TieFirstEdge))

	// a shelf inside a rising run is neither a peak nor a trough
	require.Empty(t, DetectInflections([]float64{1, 2, 2, 3}, 1, TieFirstEdge))
	require.Empty(t, DetectInflections([]float64{1, 2, 2, 2, 3, 4}, 1, TieFirstEdge))

	// a flat top is one peak, judged by the bar after it ends
	require.Equal(t, []InflectionPoint{{1, Max}}, DetectInflections([]float64{1, 3, 3, 1}, 1, TieFirstEdge))
	require.Equal(t, []InflectionPoint{{1, Max}}, DetectInflections([]float64{1, 3, 3, 3, 1}, 1, TieFirstEdge))
	require.Equal(t, []InflectionPoint{{1, Max}, {2, Max}}, DetectInflections([]float64{1, 3, 3, 1}, 1, TieAllMembers))

	// the bars after a plateau must exist
	require.Empty(t, DetectInflections([]float64{5, 3, 1, 1, 1}, 1, TieFirstEdge))

	require.Equal(t, TieAllMembers, ParseTiePolicy("all"))
	require.Equal(t, TieFirstEdge, ParseTiePolicy("first"))
}

func TestAnalyzeFPL(t *testing.T) {
	prices := []float64{100, 102, 98, 105, 110, 115, 120, 118, 125, 130}

	fpl, err := AnalyzeFPL(prices, 0, 3)
	require.NoError(t, err)
	assert.InDelta(t, -2.0, fpl.MinDelta, 1e-9)
	assert.InDelta(t, 5.0, fpl.MaxDelta, 1e-9)
	assert.InDelta(t, 1.5, fpl.Magnitude, 1e-9)
	assert.InDelta(t, 7.0, fpl.Risk, 1e-9)
	require.Equal(t, Uncertain, fpl.Direction)
	require.Equal(t, 3, fpl.MaxIndex)
	require.Equal(t, 2, fpl.MinIndex)

	fpl, err = AnalyzeFPL(prices, 3, 3)
	require.NoError(t, err)
	require.Equal(t, Up, fpl.Direction)

	fpl, err = AnalyzeFPL([]float64{10, 9, 8}, 0, 2)
	require.NoError(t, err)
	require.Equal(t, Down, fpl.Direction)

	fpl, err = AnalyzeFPL([]float64{10, 10, 10}, 0, 2)
	require.NoError(t, err)
	require.Equal(t, Flat, fpl.Direction)

	_, err = AnalyzeFPL(prices, 0, 0)
	require.ErrorIs(t, err, ErrInvalidHorizon)
	_, err = AnalyzeFPL(prices, 7, 3)
	require.ErrorIs(t, err, ErrInsufficientData)
	_, err = AnalyzeFPL([]float64{0, 1, 2}, 0, 2)
	require.ErrorIs(t, err, ErrInvalidPrice)
}

func TestFilterProfitable(t *testing.T) {
	prices := []float64{100, 102, 98, 105, 110, 115, 120, 118, 125, 130}
	points := []InflectionPoint{{0, Min}, {8, Max}}

	out, err := FilterProfitable(points, prices, ProfitConfig{FPOP: 3, MinGainPercent: 5})
	require.NoError(t, err)
	require.Len(t, out, 1, "index 8 lacks a full horizon")
	require.Equal(t, Long, out[0].Side)
	require.Equal(t, 3, out[0].ExitIndex)
	require.Equal(t, 105.0, out[0].ExitPrice)
	require.Equal(t, 3, out[0].HoldingDays)
	assert.InDelta(t, 5.0, out[0].GainPercent, 1e-9)
	require.Equal(t, Uncertain, out[0].FPLDirection)

	out, err = FilterProfitable(points, prices, ProfitConfig{FPOP: 3, MinGainPercent: 6})
	require.NoError(t, err)
	require.Empty(t, out)

	out, err = FilterProfitable(points, prices, ProfitConfig{FPOP: 3, MinGainPercent: 5, MaxRisk: 5})
	require.NoError(t, err)
	require.Empty(t, out, "risk 7 exceeds the cap")

	out, err = FilterProfitable(points, prices, ProfitConfig{FPOP: 3, MinGainPercent: 5, Directions: []Direction{Up}})
	require.NoError(t, err)
	require.Empty(t, out)

	_, err = FilterProfitable(points, prices, ProfitConfig{})
	require.ErrorIs(t, err, ErrInvalidHorizon)
}

func TestFilterProfitable_Short(t *testing.T) {
	out, err := FilterProfitable([]InflectionPoint{{0, Max}}, []float64{100, 99, 90, 95}, ProfitConfig{FPOP: 3, MinGainPercent: 5})
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, Short, out[0].Side)
	require.Equal(t, 2, out[0].ExitIndex)
	assert.InDelta(t, -10.0, out[0].GainPercent, 1e-9)
	require.Equal(t, Down, out[0].FPLDirection)
}

func TestCombinations(t *testing.T) {
	states := map[string]string{"a": "1", "b": "2", "c": "3", "d": "4", "e": "5", "f": "6"}
	require.Len(t, combinations(states), 41)

	states["g"] = "7"
	combos := combinations(states)
	require.Len(t, combos, 63)
	for _, c := range combos {
		require.NotEmpty(t, c)
		require.LessOrEqual(t, len(c), MaxConditions)
	}
}

func TestConditions_Key(t *testing.T) {
	a := Conditions{"volume": "high", "rsi": "oversold"}
	b := Conditions{"rsi": "oversold", "volume": "high"}
	require.Equal(t, a.Key(), b.Key())
	require.Equal(t, "rsi=oversold;volume=high", a.Key())
	require.Equal(t, "rsi=oversold; volume=high", a.String())

	parsed, err := ParseConditions(a.String())
	require.NoError(t, err)
	require.Equal(t, a, parsed)

	_, err = ParseConditions("rsi")
	require.ErrorIs(t, err, ErrMalformedConditions)
	_, err = ParseConditions("rsi=low; rsi=high")
	require.ErrorIs(t, err, ErrMalformedConditions)
	_, err = ParseConditions(" ")
	require.ErrorIs(t, err, ErrMalformedConditions)
}

func TestMine(t *testing.T) {
	points := []ProfitablePoint{
		point(10, 6, 4, map[string]string{"rsi": "oversold", "volume": "high"}),
		point(20, 8, 2, map[string]string{"rsi": "oversold", "volume": "low"}),
		point(30, 10, 6, map[string]string{"rsi": "oversold", "volume": "high", "macd": "bullish"}),
	}

	patterns := Mine(points, 2, 1)
	keys := make([]string, len(patterns))
	for i, p := range patterns {
		keys[i] = p.Key
	}
	require.Equal(t, []string{"rsi=oversold", "rsi=oversold;volume=high", "volume=high"}, keys)

	require.Equal(t, 3, patterns[0].Frequency)
	require.Equal(t, []int{10, 20, 30}, []int{
		patterns[0].Occurrences[0].EntryIndex,
		patterns[0].Occurrences[1].EntryIndex,
		patterns[0].Occurrences[2].EntryIndex,
	})

	require.Equal(t, patterns, Mine(points, 2, 8), "parallel mining must match sequential mining")
	require.Empty(t, Mine(nil, 1, 4))
}

func TestScoreAndRank(t *testing.T) {
	points := []ProfitablePoint{
		point(1, 6, 4, map[string]string{"rsi": "oversold", "volume": "high"}),
		point(2, 8, 2, map[string]string{"rsi": "oversold", "volume": "high"}),
		point(3, 10, 6, map[string]string{"rsi": "neutral", "volume": "low"}),
		point(4, 2, 6, map[string]string{"rsi": "neutral", "volume": "low"}),
	}

	patterns := Mine(points, 1, 1)
	Score(patterns, len(points))
	Rank(patterns)

	// every pattern occurs twice: ordered by gain, then by key
	require.Len(t, patterns, 6)
	require.Equal(t, "rsi=oversold", patterns[0].Key)
	require.Equal(t, "rsi=oversold;volume=high", patterns[1].Key)
	require.Equal(t, "volume=high", patterns[2].Key)
	assert.InDelta(t, 50.0, patterns[0].SuccessRate, 1e-9)
	assert.InDelta(t, 7.0, patterns[0].AvgGain, 1e-9)
	assert.InDelta(t, 3.0, patterns[0].AvgHoldingDays, 1e-9)
	assert.InDelta(t, 6.0, patterns[3].AvgGain, 1e-9)

	require.Len(t, TopN(patterns, 2), 2)
	require.Len(t, TopN(patterns, 0), 6)
}

func TestMaterialize_RoundTrip(t *testing.T) {
	classifiers, err := indicator.Classifiers(indicator.DefaultConfig())
	require.NoError(t, err)

	p := NewPattern(Conditions{indicator.RSIState: indicator.Oversold, indicator.VolumeState: indicator.High})
	src, err := Materialize(p, classifiers)
	require.NoError(t, err)

	vector := func(rsi, volume float64) core.MarketVector {
		return core.MarketVector{
			Time:  day0,
			Close: core.Series[float64]{100},
			Indicators: map[string]float64{
				indicator.KeyRSI:       rsi,
				indicator.KeyVolume:    volume,
				indicator.KeyVolumeAvg: 1000,
			},
		}
	}

	signal, err := src.Decide(vector(25, 2000))
	require.NoError(t, err)
	require.Equal(t, core.Buy, signal)

	signal, _ = src.Decide(vector(50, 2000))
	require.Equal(t, core.Hold, signal, "rsi no longer oversold")
	signal, _ = src.Decide(vector(25, 1000))
	require.Equal(t, core.Hold, signal, "volume no longer high")
	signal, _ = src.Decide(vector(90, 100))
	require.Equal(t, core.Hold, signal, "pattern strategies never sell")

	_, err = Materialize(NewPattern(Conditions{"astrology": "mercury"}), classifiers)
	require.ErrorIs(t, err, ErrUnknownCondition)
}

func TestMaterialize_Context(t *testing.T) {
	classifiers, err := indicator.Classifiers(indicator.DefaultConfig(), indicator.RSIState)
	require.NoError(t, err)

	p := NewPattern(Conditions{indicator.RSIState: indicator.Oversold})
	p.Context = &PatternContext{Months: []time.Month{time.March}, Sector: "tech"}

	v := core.MarketVector{Time: day0, Close: core.Series[float64]{100}, Indicators: map[string]float64{indicator.KeyRSI: 20}}

	src, err := Materialize(p, classifiers, WithSector("tech"))
	require.NoError(t, err)
	signal, _ := src.Decide(v)
	require.Equal(t, core.Hold, signal, "january is outside the pattern's months")

	v.Time = time.Date(2021, 3, 10, 0, 0, 0, 0, time.UTC)
	signal, _ = src.Decide(v)
	require.Equal(t, core.Buy, signal)

	other, err := Materialize(p, classifiers, WithSector("energy"))
	require.NoError(t, err)
	signal, _ = other.Decide(v)
	require.Equal(t, core.Hold, signal)
}

func TestPatternContext_Matches(t *testing.T) {
	march := time.Date(2022, 3, 1, 0, 0, 0, 0, time.UTC)

	var none *PatternContext
	require.True(t, none.Matches(Scenario{}))
	require.True(t, (&PatternContext{}).Matches(Scenario{}))

	c := &PatternContext{Regime: RegimeBull, Quarters: []int{1}}
	require.True(t, c.Matches(Scenario{Date: march, Regime: RegimeBull}))
	require.False(t, c.Matches(Scenario{Date: march, Regime: RegimeBear}))
	require.False(t, c.Matches(Scenario{Date: march.AddDate(0, 3, 0), Regime: RegimeBull}))
	require.False(t, c.Matches(Scenario{Regime: RegimeBull}), "unknown date cannot satisfy a season")
}

func TestRegimeOf(t *testing.T) {
	require.Equal(t, RegimeBull, regimeOf(indicator.Snapshot{indicator.KeyClose: 110, indicator.KeySMAFast: 105, indicator.KeySMASlow: 100}))
	require.Equal(t, RegimeBear, regimeOf(indicator.Snapshot{indicator.KeyClose: 90, indicator.KeySMAFast: 95, indicator.KeySMASlow: 100}))
	require.Equal(t, RegimeSideways, regimeOf(indicator.Snapshot{indicator.KeyClose: 90, indicator.KeySMAFast: 105, indicator.KeySMASlow: 100}))
	require.Equal(t, RegimeSideways, regimeOf(indicator.Snapshot{indicator.KeyClose: 90}))
}

func TestGenerator_Idempotent(t *testing.T) {
	series := waveSeries(t, 400)
	cfg := DefaultConfig()

	first, err := NewGenerator(cfg).Discover(context.Background(), series)
	require.NoError(t, err)
	require.NotEmpty(t, first.Profitable)
	require.NotEmpty(t, first.Patterns)

	second, err := NewGenerator(cfg).Discover(context.Background(), series)
	require.NoError(t, err)
	require.Equal(t, first.Patterns, second.Patterns)

	cfg.Workers = 1
	sequential, err := NewGenerator(cfg).Discover(context.Background(), series)
	require.NoError(t, err)
	require.Equal(t, first.Patterns, sequential.Patterns)

	for i := 1; i < len(first.Patterns); i++ {
		require.GreaterOrEqual(t, first.Patterns[i-1].SuccessRate, first.Patterns[i].SuccessRate)
	}
}

func TestGenerator_RangeHasNoLookAhead(t *testing.T) {
	series := waveSeries(t, 400)
	cfg := DefaultConfig()
	set := indicator.NewSet(series, cfg.Indicators)

	result, err := NewGenerator(cfg).DiscoverRange(context.Background(), series, set, 100, 250)
	require.NoError(t, err)
	require.NotEmpty(t, result.Profitable)
	for _, p := range result.Profitable {
		require.GreaterOrEqual(t, p.EntryIndex, 100)
		require.Less(t, p.ExitIndex, 250)
		require.Equal(t, series.Time[p.EntryIndex], p.EntryTime)
	}
}

func TestGenerator_EmptyResult(t *testing.T) {
	closes := make([]float64, 300)
	for i := range closes {
		closes[i] = 100 + float64(i)*0.01
	}
	series, err := core.FromCloses("FLAT", day0, closes)
	require.NoError(t, err)

	result, err := NewGenerator(DefaultConfig()).Discover(context.Background(), series)
	require.NoError(t, err)
	require.NotNil(t, result.Patterns)
	require.Empty(t, result.Patterns)
	require.Equal(t, 0, result.Inflections)
}

func TestGenerator_ContextEnrichment(t *testing.T) {
	series := waveSeries(t, 400)
	cfg := DefaultConfig()
	cfg.EnrichContext = true
	cfg.Sector = "synthetic"

	result, err := NewGenerator(cfg).Discover(context.Background(), series)
	require.NoError(t, err)
	require.NotEmpty(t, result.Patterns)

	for _, p := range result.Patterns {
		require.NotNil(t, p.Context)
		require.Equal(t, "synthetic", p.Context.Sector)
		require.NotEmpty(t, p.Context.Months)
		require.Greater(t, p.Context.Stability, 0.0)
		require.LessOrEqual(t, p.Context.Stability, 1.0)
	}
}

func TestCSV_RoundTrip(t *testing.T) {
	patterns := []Pattern{
		{Key: "rsi=oversold;volume=high", Conditions: Conditions{"rsi": "oversold", "volume": "high"}, Frequency: 4, AvgGain: 7.126, AvgHoldingDays: 3.5, SuccessRate: 40},
		{Key: "macd=bullish", Conditions: Conditions{"macd": "bullish"}, Frequency: 3, AvgGain: -1.5, AvgHoldingDays: 2, SuccessRate: 30},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, patterns))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Equal(t, "Pattern#,Frequency,AvgGain%,AvgHoldingDays,SuccessRate%,Conditions", lines[0])
	require.Equal(t, "1,4,7.13,3.50,40.00,rsi=oversold; volume=high", lines[1])

	read, err := ReadCSV(&buf)
	require.NoError(t, err)
	require.Len(t, read, 2)
	require.Equal(t, patterns[0].Key, read[0].Key)
	require.Equal(t, patterns[0].Conditions, read[0].Conditions)
	require.Equal(t, 4, read[0].Frequency)
	assert.InDelta(t, -1.5, read[1].AvgGain, 1e-9)

	path := filepath.Join(t.TempDir(), "patterns.csv")
	require.NoError(t, SaveCSV(path, patterns))
	loaded, err := LoadCSV(path)
	require.NoError(t, err)
	require.Equal(t, read, loaded)
}

func TestReadCSV_Errors(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""))
	require.ErrorIs(t, err, ErrInvalidCSV)

	_, err = ReadCSV(strings.NewReader("Pattern#,Frequency\n1,2\n"))
	require.ErrorIs(t, err, ErrInvalidCSV)

	_, err = ReadCSV(strings.NewReader("Pattern#,Frequency,AvgGain%,AvgHoldingDays,SuccessRate%,Conditions\n1,x,1,1,1,rsi=low\n"))
	require.ErrorIs(t, err, ErrInvalidCSV)

	_, err = ReadCSV(strings.NewReader("Pattern#,Frequency,AvgGain%,AvgHoldingDays,SuccessRate%,Conditions\n1,1,1,1,1,rsi\n"))
	require.ErrorIs(t, err, ErrMalformedConditions)
}
