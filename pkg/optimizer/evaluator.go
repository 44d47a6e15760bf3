package optimizer

import (
	"context"
	"fmt"
	"time"

	"github.com/raykavin/patternrun/pkg/backtest"
	"github.com/raykavin/patternrun/pkg/core"
	"github.com/raykavin/patternrun/pkg/indicator"
	"github.com/raykavin/patternrun/pkg/strategy"
)

// setters maps parameter names onto the indicator settings they override
var setters = map[string]func(*indicator.Config, float64){
	"rsi_period":       func(c *indicator.Config, v float64) { c.RSIPeriod = int(v) },
	"rsi_oversold":     func(c *indicator.Config, v float64) { c.RSIOversold = v },
	"rsi_overbought":   func(c *indicator.Config, v float64) { c.RSIOverbought = v },
	"macd_fast":        func(c *indicator.Config, v float64) { c.MACDFast = int(v) },
	"macd_slow":        func(c *indicator.Config, v float64) { c.MACDSlow = int(v) },
	"macd_signal":      func(c *indicator.Config, v float64) { c.MACDSignal = int(v) },
	"sma_fast":         func(c *indicator.Config, v float64) { c.SMAFast = int(v) },
	"sma_slow":         func(c *indicator.Config, v float64) { c.SMASlow = int(v) },
	"bb_period":        func(c *indicator.Config, v float64) { c.BBPeriod = int(v) },
	"bb_deviation":     func(c *indicator.Config, v float64) { c.BBDeviation = v },
	"ema_period":       func(c *indicator.Config, v float64) { c.EMAPeriod = int(v) },
	"stoch_oversold":   func(c *indicator.Config, v float64) { c.StochOversold = v },
	"stoch_overbought": func(c *indicator.Config, v float64) { c.StochOverbought = v },
}

// Apply returns base with the parameter set written over it
func Apply(base indicator.Config, params ParameterSet) (indicator.Config, error) {
	cfg := base
	for name, value := range params {
		set, ok := setters[name]
		if !ok {
			return base, fmt.Errorf("%q: %w", name, ErrUnknownParameter)
		}
		set(&cfg, value)
	}
	return cfg, nil
}

// DefaultParameters returns the search space of a built-in strategy
func DefaultParameters(strategyName string) []Parameter {
	switch strategyName {
	case strategy.NameRSI:
		return []Parameter{
			{Name: "rsi_period", Description: "RSI period", Type: TypeInt, Min: 7, Max: 28},
			{Name: "rsi_oversold", Description: "RSI buy threshold", Type: TypeFloat, Min: 15, Max: 40},
			{Name: "rsi_overbought", Description: "RSI sell threshold", Type: TypeFloat, Min: 60, Max: 85},
		}
	case strategy.NameSMA:
		return []Parameter{
			{Name: "sma_fast", Description: "Fast SMA period", Type: TypeInt, Min: 5, Max: 50},
			{Name: "sma_slow", Description: "Slow SMA period", Type: TypeInt, Min: 60, Max: 200},
		}
	case strategy.NameMACD:
		return []Parameter{
			{Name: "macd_fast", Description: "MACD fast period", Type: TypeInt, Min: 6, Max: 18},
			{Name: "macd_slow", Description: "MACD slow period", Type: TypeInt, Min: 20, Max: 40},
			{Name: "macd_signal", Description: "MACD signal period", Type: TypeInt, Min: 5, Max: 14},
		}
	case strategy.NameBollinger:
		return []Parameter{
			{Name: "bb_period", Description: "Bollinger period", Type: TypeInt, Min: 10, Max: 40},
			{Name: "bb_deviation", Description: "Bollinger band width", Type: TypeFloat, Min: 1.5, Max: 3},
		}
	}
	return nil
}

// BacktestEvaluator scores a parameter set by backtesting a built-in strategy
type BacktestEvaluator struct {
	series       *core.PriceSeries
	strategyName string
	base         indicator.Config
	options      []backtest.Option
}

// NewBacktestEvaluator creates an evaluator for the named strategy. Options are
// passed to every backtest run.
func NewBacktestEvaluator(series *core.PriceSeries, strategyName string, base indicator.Config, opts ...backtest.Option) *BacktestEvaluator {
	return &BacktestEvaluator{
		series:       series,
		strategyName: strategyName,
		base:         base,
		options:      opts,
	}
}

// Evaluate runs one backtest with the parameters applied to the indicator settings
func (e *BacktestEvaluator) Evaluate(ctx context.Context, params ParameterSet) (*Result, error) {
	startTime := time.Now()

	cfg, err := Apply(e.base, params)
	if err != nil {
		return nil, err
	}

	source, err := strategy.ByName(e.strategyName, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create strategy: %w", err)
	}

	opts := append(append([]backtest.Option(nil), e.options...), backtest.WithIndicatorConfig(cfg))
	report, err := backtest.NewEngine().Run(ctx, e.series, source, opts...)
	if err != nil {
		return nil, fmt.Errorf("backtest failed: %w", err)
	}

	return &Result{
		Parameters: params,
		Metrics:    collectMetrics(report.Result),
		Duration:   time.Since(startTime),
	}, nil
}

func collectMetrics(res backtest.Result) map[string]float64 {
	return map[string]float64{
		string(MetricReturn):       res.TotalReturn,
		string(MetricSharpeRatio):  res.SharpeRatio,
		string(MetricDrawdown):     res.MaxDrawdown,
		string(MetricWinRate):      res.WinRate,
		string(MetricPayoff):       res.Payoff,
		string(MetricProfitFactor): res.ProfitFactor,
		string(MetricSQN):          res.SQN,
		string(MetricTradeCount):   float64(res.TotalTrades),
	}
}
