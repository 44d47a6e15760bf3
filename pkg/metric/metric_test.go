package metric

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaxDrawdown(t *testing.T) {
	require.Equal(t, 0.0, MaxDrawdown([]float64{100, 101, 105, 110}))
	require.Equal(t, 0.0, MaxDrawdown(nil))

	// 120 -> 90 is the worst decline: -25%
	assert.InDelta(t, -0.25, MaxDrawdown([]float64{100, 120, 100, 90, 130, 110}), 1e-12)

	dd := MaxDrawdown([]float64{100, 1, 0.5})
	assert.GreaterOrEqual(t, dd, -1.0)
	assert.LessOrEqual(t, dd, 0.0)
}

func TestSharpe(t *testing.T) {
	require.Equal(t, 0.0, Sharpe([]float64{0.01, 0.01, 0.01}))
	require.Equal(t, 0.0, Sharpe([]float64{0.01}))

	r := []float64{0.01, -0.005, 0.02, 0.0}
	expected := Mean(r) / StdDev(r) * math.Sqrt(252)
	assert.InDelta(t, expected, Sharpe(r), 1e-12)
	assert.Greater(t, Sharpe(r), 0.0)
}

func TestReturns(t *testing.T) {
	r := Returns([]float64{100, 110, 99})
	require.Len(t, r, 2)
	assert.InDelta(t, 0.10, r[0], 1e-12)
	assert.InDelta(t, -0.10, r[1], 1e-12)
	require.Nil(t, Returns([]float64{1}))
}

func TestAnnualizedReturn(t *testing.T) {
	require.Equal(t, 0.0, AnnualizedReturn(0.5, 0))
	assert.InDelta(t, 0.10, AnnualizedReturn(0.10, 365), 1e-12)
	assert.InDelta(t, 0.21, AnnualizedReturn(0.10, 182.5), 1e-12)
}

func TestProfitFactorAndPayoff(t *testing.T) {
	values := []float64{10, -5, 20, -5}
	assert.InDelta(t, 3.0, ProfitFactor(values), 1e-12)
	assert.InDelta(t, 3.0, Payoff(values), 1e-12)

	require.Equal(t, 0.0, ProfitFactor([]float64{1, 2}))
	require.Equal(t, 0.0, Payoff([]float64{1, 2}))
}

func TestBootstrap(t *testing.T) {
	require.Equal(t, BootstrapInterval{}, Bootstrap(nil, nil, Mean, 100, 0.95))

	interval := Bootstrap(nil, []float64{1, 1, 1, 1}, Mean, 200, 0.95)
	assert.InDelta(t, 1.0, interval.Mean, 1e-12)
	assert.InDelta(t, 1.0, interval.Lower, 1e-12)
	assert.InDelta(t, 1.0, interval.Upper, 1e-12)

	interval = Bootstrap(nil, []float64{-1, 0, 1, 2, 3}, Mean, 500, 0.95)
	assert.LessOrEqual(t, interval.Lower, interval.Mean)
	assert.GreaterOrEqual(t, interval.Upper, interval.Mean)
}

func TestBootstrap_Reproducible(t *testing.T) {
	values := []float64{-0.04, 0.02, 0.07, -0.01, 0.03, 0.05, -0.02}

	require.Equal(t,
		Bootstrap(nil, values, Mean, 300, 0.95),
		Bootstrap(nil, values, Mean, 300, 0.95))
	require.Equal(t,
		Bootstrap(rand.New(rand.NewSource(7)), values, Payoff, 300, 0.9),
		Bootstrap(rand.New(rand.NewSource(7)), values, Payoff, 300, 0.9))
}

func TestSQN(t *testing.T) {
	require.Equal(t, 0.0, SQN(nil))
	require.Equal(t, 0.0, SQN([]float64{2, 2, 2}))

	// mean 1, population sd 1
	assert.InDelta(t, 2.0, SQN([]float64{0, 2, 0, 2}), 1e-12)
}
