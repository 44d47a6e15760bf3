package backtest

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/raykavin/patternrun/pkg/core"
	"github.com/raykavin/patternrun/pkg/indicator"
	"github.com/raykavin/patternrun/pkg/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day0 = time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)

func makeSeries(t *testing.T, closes ...float64) *core.PriceSeries {
	t.Helper()
	series, err := core.FromCloses("TEST", day0, closes)
	require.NoError(t, err)
	return series
}

func wave(n int) []float64 {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100 + 15*math.Sin(float64(i)/6) + float64(i)*0.1
	}
	return closes
}

// scripted emits the given signal at the given bar indices and holds otherwise
func scripted(signals map[int]core.Signal) strategy.SignalSource {
	return strategy.SignalFunc(func(v core.MarketVector) (core.Signal, error) {
		return signals[v.Index], nil
	})
}

func TestRun_AlwaysHold(t *testing.T) {
	series := makeSeries(t, wave(120)...)

	report, err := NewEngine().Run(context.Background(), series, strategy.Hold())
	require.NoError(t, err)

	require.Equal(t, 0, report.Result.TotalTrades)
	require.Equal(t, 0.0, report.Result.TotalReturn)
	require.Equal(t, 0.0, report.Result.MaxDrawdown)
	require.Equal(t, 0.0, report.Result.SharpeRatio)
	require.Len(t, report.Equity, 120)
	require.Empty(t, report.Trades)
}

func TestRun_RoundTrip(t *testing.T) {
	series := makeSeries(t, 100, 100, 110, 120, 90, 95)

	report, err := NewEngine().Run(context.Background(), series,
		scripted(map[int]core.Signal{0: core.Buy, 1: core.Buy, 3: core.Sell, 4: core.Sell}),
		WithInitialCapital(1_000), WithCommission(1))
	require.NoError(t, err)

	res := report.Result
	require.Len(t, report.Trades, 2, "second buy while long and sell while flat are ignored")
	require.Equal(t, 1, res.TotalTrades)
	require.Equal(t, 1, res.WinningTrades)
	require.Equal(t, 1.0, res.WinRate)

	// 9 shares: 999/100 -> 9, cost 901, proceeds 1079
	trip := report.RoundTrips[0]
	require.Equal(t, 9, trip.Entry.Shares)
	assert.InDelta(t, 178.0, trip.Profit, 1e-9)
	assert.InDelta(t, 1178.0, res.FinalCapital, 1e-9)
	assert.InDelta(t, 0.178, res.TotalReturn, 1e-12)
	assert.InDelta(t, 2.0, res.TotalCommission, 1e-12)
	assert.InDelta(t, -0.05, res.BuyAndHoldReturn, 1e-12)
	require.Equal(t, 0.0, res.ProfitFactor, "no losing trades")
}

func TestRun_ForceClose(t *testing.T) {
	series := makeSeries(t, 100, 90, 80, 70)

	report, err := NewEngine().Run(context.Background(), series, strategy.BuyAndHold(),
		WithInitialCapital(1_000))
	require.NoError(t, err)

	require.Len(t, report.Trades, 2)
	require.Equal(t, "sell", string(report.Trades[1].Action))
	require.Equal(t, day0.AddDate(0, 0, 3), report.Trades[1].Date)

	res := report.Result
	require.Equal(t, 1, res.LosingTrades)
	assert.InDelta(t, -0.3, res.TotalReturn, 1e-12)
	assert.InDelta(t, -0.3, res.MaxDrawdown, 1e-12)
	assert.InDelta(t, res.FinalCapital, report.Equity[len(report.Equity)-1].PortfolioValue, 1e-9)
}

func TestRun_ExactFitEntersOnFirstBar(t *testing.T) {
	series := makeSeries(t, 18.91, 20, 25)

	report, err := NewEngine().Run(context.Background(), series, strategy.BuyAndHold(),
		WithInitialCapital(46788.81), WithCommission(5.47))
	require.NoError(t, err)

	require.Len(t, report.Trades, 2)
	entry := report.Trades[0]
	require.Equal(t, day0, entry.Date)
	require.Equal(t, 18.91, entry.Price)
	require.GreaterOrEqual(t, entry.Shares, 2473)
	assert.InDelta(t, 0.322, report.Result.TotalReturn, 1e-3)
}

func TestRun_InsufficientFundsSkipsSilently(t *testing.T) {
	series := makeSeries(t, 500, 510, 520)

	report, err := NewEngine().Run(context.Background(), series, strategy.BuyAndHold(),
		WithInitialCapital(100))
	require.NoError(t, err)
	require.Empty(t, report.Trades)
	require.Equal(t, 0.0, report.Result.TotalReturn)
}

func TestRun_FixedFraction(t *testing.T) {
	series := makeSeries(t, 10, 11, 12)

	report, err := NewEngine().Run(context.Background(), series, strategy.BuyAndHold(),
		WithInitialCapital(1_000), WithPositionSizing(FixedFraction(0.25)))
	require.NoError(t, err)
	require.Equal(t, 25, report.Trades[0].Shares)
}

func TestRun_DateRange(t *testing.T) {
	series := makeSeries(t, wave(30)...)

	report, err := NewEngine().Run(context.Background(), series, strategy.Hold(),
		WithDateRange(day0.AddDate(0, 0, 10), day0.AddDate(0, 0, 19)))
	require.NoError(t, err)
	require.Len(t, report.Equity, 10)
	require.Equal(t, day0.AddDate(0, 0, 10), report.Result.StartDate)

	// malformed bounds fall back to the full series
	report, err = NewEngine().Run(context.Background(), series, strategy.Hold(),
		WithDateRange(day0.AddDate(0, 0, 19), day0.AddDate(0, 0, 10)))
	require.NoError(t, err)
	require.Len(t, report.Equity, 30)
}

func TestRun_FailingSourceHolds(t *testing.T) {
	series := makeSeries(t, wave(20)...)
	calls := 0
	src := strategy.SignalFunc(func(v core.MarketVector) (core.Signal, error) {
		calls++
		if v.Index%2 == 0 {
			panic("indicator exploded")
		}
		return core.Hold, nil
	})

	report, err := NewEngine().Run(context.Background(), series, src)
	require.NoError(t, err)
	require.Equal(t, 20, calls)
	require.Equal(t, 0, report.Result.TotalTrades)
}

func TestRun_NoLookAhead(t *testing.T) {
	closes := wave(80)
	const cut = 50

	record := func(series *core.PriceSeries) []core.MarketVector {
		var seen []core.MarketVector
		src := strategy.SignalFunc(func(v core.MarketVector) (core.Signal, error) {
			require.Equal(t, v.Index+1, v.Close.Length(), "vector must end at the current bar")
			seen = append(seen, v)
			if rsi, ok := v.Indicator(indicator.KeyRSI); ok && rsi < 40 {
				return core.Buy, nil
			}
			return core.Sell, nil
		})
		_, err := NewEngine().Run(context.Background(), series, src)
		require.NoError(t, err)
		return seen
	}

	original := record(makeSeries(t, closes...))

	mutated := append([]float64(nil), closes...)
	for i := cut + 1; i < len(mutated); i++ {
		mutated[i] *= 2
	}
	altered := record(makeSeries(t, mutated...))

	for i := 0; i <= cut; i++ {
		require.Equal(t, original[i].Close, altered[i].Close)
		require.Equal(t, original[i].Indicators, altered[i].Indicators, "step %d", i)
	}
}

func TestRun_Errors(t *testing.T) {
	series := makeSeries(t, 1, 2, 3)
	ctx := context.Background()

	_, err := NewEngine().Run(ctx, nil, strategy.Hold())
	require.ErrorIs(t, err, core.ErrEmptySeries)

	_, err = NewEngine().Run(ctx, series, nil)
	require.ErrorIs(t, err, ErrNilSource)

	_, err = NewEngine().Run(ctx, series, strategy.Hold(), WithInitialCapital(0))
	require.ErrorIs(t, err, ErrInvalidCapital)

	_, err = NewEngine(WithCommission(-1)).Run(ctx, series, strategy.Hold())
	require.ErrorIs(t, err, ErrInvalidCommission)

	other := makeSeries(t, 1, 2)
	_, err = NewEngine().Run(ctx, series, strategy.Hold(),
		WithIndicators(indicator.NewSet(other, indicator.DefaultConfig())))
	require.ErrorIs(t, err, ErrIndicatorMismatch)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = NewEngine().Run(cancelled, series, strategy.Hold())
	require.ErrorIs(t, err, context.Canceled)
}

func TestReport_SummaryAndReturns(t *testing.T) {
	series := makeSeries(t, wave(200)...)

	report, err := NewEngine().Run(context.Background(), series,
		strategy.RSIReversion{Oversold: 40, Overbought: 60})
	require.NoError(t, err)
	require.Greater(t, report.Result.TotalTrades, 0)
	assert.GreaterOrEqual(t, report.Result.MaxDrawdown, -1.0)
	assert.LessOrEqual(t, report.Result.MaxDrawdown, 0.0)

	var buf bytes.Buffer
	require.NoError(t, report.Summary(&buf))
	require.Contains(t, buf.String(), "TEST")
	require.Contains(t, buf.String(), "CONFIDENCE INTERVAL")

	var again bytes.Buffer
	require.NoError(t, report.Summary(&again))
	require.Equal(t, buf.String(), again.String(), "summary is reproducible")

	path := filepath.Join(t.TempDir(), "returns.csv")
	require.NoError(t, report.SaveReturns(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, strings.Split(strings.TrimSpace(string(data)), "\n"), report.Result.TotalTrades)
}
