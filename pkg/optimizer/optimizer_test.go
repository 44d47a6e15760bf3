package optimizer

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/raykavin/patternrun/pkg/core"
	"github.com/raykavin/patternrun/pkg/indicator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockEvaluator scores a parameter set with a smooth function peaking at x = 3
type MockEvaluator struct {
	fail bool
}

func (m *MockEvaluator) Evaluate(_ context.Context, params ParameterSet) (*Result, error) {
	if m.fail {
		return nil, errors.New("boom")
	}
	x := params["x"]
	return &Result{
		Parameters: params,
		Metrics: map[string]float64{
			"profit":   -(x - 3) * (x - 3),
			"drawdown": x,
		},
		Duration: time.Millisecond,
	}, nil
}

func parameters() []Parameter {
	return []Parameter{
		{Name: "x", Type: TypeInt, Min: 0, Max: 6},
		{Name: "y", Type: TypeFloat, Min: 0.5, Max: 1.5},
	}
}

func TestRandomSearch_Optimize(t *testing.T) {
	config := NewConfig().
		WithParameters(parameters()...).
		WithMaxIterations(60).
		WithParallelism(4).
		WithTargetMetric("profit", true).
		WithTopN(5).
		WithSeed(42)

	search, err := NewRandomSearch(config)
	require.NoError(t, err)

	results, err := search.Optimize(context.Background(), &MockEvaluator{})
	require.NoError(t, err)
	require.Len(t, results, 5)

	// 60 draws over 7 integers always include the optimum
	require.Equal(t, 3.0, results[0].Parameters["x"])
	for i := 1; i < len(results); i++ {
		require.GreaterOrEqual(t, results[i-1].Metrics["profit"], results[i].Metrics["profit"])
	}

	for _, r := range results {
		x, y := r.Parameters["x"], r.Parameters["y"]
		require.Equal(t, math.Round(x), x)
		require.GreaterOrEqual(t, x, 0.0)
		require.LessOrEqual(t, x, 6.0)
		require.GreaterOrEqual(t, y, 0.5)
		require.LessOrEqual(t, y, 1.5)
	}
}

func TestRandomSearch_Reproducible(t *testing.T) {
	config := NewConfig().WithParameters(parameters()...).WithMaxIterations(20).WithParallelism(3).WithTopN(0).WithSeed(7)
	config.TargetMetric = "profit"

	first, err := NewRandomSearch(config)
	require.NoError(t, err)
	a, err := first.Optimize(context.Background(), &MockEvaluator{})
	require.NoError(t, err)

	second, err := NewRandomSearch(config)
	require.NoError(t, err)
	b, err := second.Optimize(context.Background(), &MockEvaluator{})
	require.NoError(t, err)

	require.Len(t, a, 20)
	for i := range a {
		require.Equal(t, a[i].Parameters, b[i].Parameters)
	}
}

func TestRandomSearch_Minimize(t *testing.T) {
	config := NewConfig().WithParameters(parameters()...).WithMaxIterations(80).WithTargetMetric("drawdown", false).WithSeed(3)
	search, err := NewRandomSearch(config)
	require.NoError(t, err)

	results, err := search.Optimize(context.Background(), &MockEvaluator{})
	require.NoError(t, err)
	require.Equal(t, 0.0, results[0].Metrics["drawdown"])
}

func TestRandomSearch_Errors(t *testing.T) {
	_, err := NewRandomSearch(nil)
	require.Error(t, err)

	_, err = NewRandomSearch(NewConfig())
	require.ErrorIs(t, err, ErrNoParameters)

	search, err := NewRandomSearch(NewConfig().WithParameters(parameters()...).WithMaxIterations(5))
	require.NoError(t, err)

	_, err = search.Optimize(context.Background(), nil)
	require.ErrorIs(t, err, ErrNilEvaluator)

	_, err = search.Optimize(context.Background(), &MockEvaluator{fail: true})
	require.ErrorContains(t, err, "boom")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = search.Optimize(ctx, &MockEvaluator{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestSortResults_MissingMetricLast(t *testing.T) {
	results := []*Result{
		{Metrics: map[string]float64{}},
		{Metrics: map[string]float64{"m": 1}},
		{Metrics: map[string]float64{"m": math.NaN()}},
		{Metrics: map[string]float64{"m": 2}},
	}
	sortResults(results, "m", true)
	require.Equal(t, 2.0, results[0].Metrics["m"])
	require.Equal(t, 1.0, results[1].Metrics["m"])
}

func TestApply(t *testing.T) {
	base := indicator.DefaultConfig()

	cfg, err := Apply(base, ParameterSet{"rsi_period": 10, "rsi_oversold": 22.5, "bb_deviation": 2.5})
	require.NoError(t, err)
	require.Equal(t, 10, cfg.RSIPeriod)
	require.Equal(t, 22.5, cfg.RSIOversold)
	require.Equal(t, 2.5, cfg.BBDeviation)
	require.Equal(t, 14, base.RSIPeriod)

	_, err = Apply(base, ParameterSet{"moon_phase": 1})
	require.ErrorIs(t, err, ErrUnknownParameter)

	for _, name := range []string{"rsi", "sma", "macd", "bollinger"} {
		params := DefaultParameters(name)
		require.NotEmpty(t, params, name)
		for _, p := range params {
			_, err := Apply(base, ParameterSet{p.Name: p.Min})
			require.NoError(t, err, p.Name)
		}
	}
	require.Nil(t, DefaultParameters("hold"))
}

func TestBacktestEvaluator(t *testing.T) {
	closes := make([]float64, 300)
	for i := range closes {
		closes[i] = 100 + 15*math.Sin(float64(i)/6)
	}
	series, err := core.FromCloses("WAVE", time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), closes)
	require.NoError(t, err)

	evaluator := NewBacktestEvaluator(series, "rsi", indicator.DefaultConfig())
	config := NewConfig().WithParameters(DefaultParameters("rsi")...).WithMaxIterations(8).WithParallelism(2).WithSeed(1)

	search, err := NewRandomSearch(config)
	require.NoError(t, err)
	results, err := search.Optimize(context.Background(), evaluator)
	require.NoError(t, err)
	require.Len(t, results, 5)
	for _, r := range results {
		assert.Contains(t, r.Metrics, string(MetricSharpeRatio))
		assert.Contains(t, r.Metrics, string(MetricTradeCount))
	}

	_, err = NewBacktestEvaluator(series, "astrology", indicator.DefaultConfig()).Evaluate(context.Background(), ParameterSet{})
	require.Error(t, err)
}

func TestResultOutput(t *testing.T) {
	results := []*Result{
		{Parameters: ParameterSet{"x": 3, "y": 1}, Metrics: map[string]float64{"profit": 0, "drawdown": 3}},
		{Parameters: ParameterSet{"x": 1, "y": 0.5}, Metrics: map[string]float64{"profit": -4, "drawdown": 1}},
	}

	path := filepath.Join(t.TempDir(), "results.csv")
	require.NoError(t, SaveResultsToCSV(results, path))
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	require.Len(t, lines, 3)
	require.Equal(t, "Rank,Duration,x,y,drawdown,profit", lines[0])
	require.True(t, strings.HasPrefix(lines[1], "1,0s,3.0000,1.0000,3.0000,0.0000"))

	var out strings.Builder
	PrintResults(&out, results, "profit")
	require.Contains(t, out.String(), "PROFIT")

	out.Reset()
	PrintResults(&out, nil, "profit")
	require.Contains(t, out.String(), "No results")

	require.Equal(t, "{x: 3, y: 0.5}", ParameterSet{"y": 0.5, "x": 3}.String())
}
