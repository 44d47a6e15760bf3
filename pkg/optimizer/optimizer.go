// Package optimizer tunes the indicator thresholds of the built-in strategies
// by searching parameter space and ranking the resulting backtests.
package optimizer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/raykavin/patternrun/pkg/logger"
)

var (
	ErrNoParameters     = errors.New("at least one parameter must be provided")
	ErrNilEvaluator     = errors.New("evaluator cannot be nil")
	ErrUnknownParameter = errors.New("unknown parameter")
)

// ParameterType defines how a sampled value is rounded
type ParameterType string

const (
	// TypeInt represents integer parameters such as periods
	TypeInt ParameterType = "int"
	// TypeFloat represents thresholds and multipliers
	TypeFloat ParameterType = "float"
)

// Parameter is a tunable value sampled from [Min, Max]
type Parameter struct {
	Name        string
	Description string
	Type        ParameterType
	Min         float64
	Max         float64
}

// ParameterSet holds one sampled value per parameter name
type ParameterSet map[string]float64

// String formats the set with sorted names, e.g. "{rsi_oversold: 25, rsi_period: 14}"
func (p ParameterSet) String() string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s: %g", name, p[name])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// MetricName names a backtest statistic that can be optimized
type MetricName string

const (
	MetricReturn       MetricName = "total_return"
	MetricSharpeRatio  MetricName = "sharpe_ratio"
	MetricDrawdown     MetricName = "max_drawdown"
	MetricWinRate      MetricName = "win_rate"
	MetricPayoff       MetricName = "payoff"
	MetricProfitFactor MetricName = "profit_factor"
	MetricSQN          MetricName = "sqn"
	MetricTradeCount   MetricName = "trade_count"
)

// Result is the outcome of evaluating one parameter set
type Result struct {
	Parameters ParameterSet
	Metrics    map[string]float64
	Duration   time.Duration
}

// Evaluator scores a parameter set
type Evaluator interface {
	Evaluate(ctx context.Context, params ParameterSet) (*Result, error)
}

// Config holds configuration for the optimization process
type Config struct {
	Parameters    []Parameter
	MaxIterations int
	Parallelism   int
	Logger        logger.Logger
	TargetMetric  MetricName
	Maximize      bool
	TopN          int
	// Seed makes the sampled parameter sets reproducible; 0 seeds from the clock
	Seed int64
}

// NewConfig creates a default configuration
func NewConfig() *Config {
	return &Config{
		MaxIterations: 100,
		Parallelism:   1,
		TargetMetric:  MetricSharpeRatio,
		Maximize:      true,
		TopN:          5,
	}
}

// WithParameters adds parameters to the configuration
func (c *Config) WithParameters(params ...Parameter) *Config {
	c.Parameters = append(c.Parameters, params...)
	return c
}

// WithMaxIterations sets the number of sampled parameter sets
func (c *Config) WithMaxIterations(iterations int) *Config {
	c.MaxIterations = iterations
	return c
}

// WithParallelism sets the number of parallel evaluations
func (c *Config) WithParallelism(n int) *Config {
	c.Parallelism = n
	return c
}

// WithLogger sets the logger
func (c *Config) WithLogger(log logger.Logger) *Config {
	c.Logger = log
	return c
}

// WithTargetMetric sets the metric to optimize
func (c *Config) WithTargetMetric(metric MetricName, maximize bool) *Config {
	c.TargetMetric = metric
	c.Maximize = maximize
	return c
}

// WithTopN sets the number of results kept
func (c *Config) WithTopN(n int) *Config {
	c.TopN = n
	return c
}

// WithSeed fixes the random sampling
func (c *Config) WithSeed(seed int64) *Config {
	c.Seed = seed
	return c
}

// sortResults orders results by metric, best first. Missing or NaN values sort last.
func sortResults(results []*Result, metric MetricName, maximize bool) {
	value := func(r *Result) (float64, bool) {
		v, ok := r.Metrics[string(metric)]
		return v, ok && !math.IsNaN(v)
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, okA := value(results[i])
		b, okB := value(results[j])
		switch {
		case !okA || !okB:
			return okA && !okB
		case maximize:
			return a > b
		default:
			return a < b
		}
	})
}
