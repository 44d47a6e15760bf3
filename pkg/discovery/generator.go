package discovery

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/raykavin/patternrun/pkg/core"
	"github.com/raykavin/patternrun/pkg/indicator"
	"github.com/raykavin/patternrun/pkg/logger"
)

// Config drives a discovery run
type Config struct {
	Window       int          `mapstructure:"window"`
	TiePolicy    TiePolicy    `mapstructure:"-"`
	Profit       ProfitConfig `mapstructure:",squash"`
	MinFrequency int          `mapstructure:"min_frequency"`
	Workers      int          `mapstructure:"workers"`
	TopN         int          `mapstructure:"top_n"`
	// Classifiers names the indicator classifiers to mine; empty uses the defaults
	Classifiers []string         `mapstructure:"classifiers"`
	Indicators  indicator.Config `mapstructure:"-"`
	Sector      string           `mapstructure:"sector"`
	// EnrichContext attaches a PatternContext to every pattern, which then
	// restricts its materialized strategy to matching regimes and seasons
	EnrichContext bool `mapstructure:"enrich_context"`
}

// DefaultConfig returns the default discovery settings
func DefaultConfig() Config {
	return Config{
		Window:       5,
		TiePolicy:    TieFirstEdge,
		Profit:       DefaultProfitConfig(),
		MinFrequency: 3,
		Workers:      runtime.NumCPU(),
		Indicators:   indicator.DefaultConfig(),
	}
}

// Result is the outcome of a discovery run. No patterns is a valid result.
type Result struct {
	Ticker      string
	From, To    time.Time
	Inflections int
	Profitable  []ProfitablePoint
	Patterns    []Pattern
	Classifiers []indicator.Classifier
}

// Generator runs the discovery pipeline: inflection detection, profitability
// filtering, state extraction, mining, scoring and ranking
type Generator struct {
	config Config
	log    logger.Logger
}

// GeneratorOption configures a Generator
type GeneratorOption func(*Generator)

// WithLogger sets the logger
func WithLogger(log logger.Logger) GeneratorOption {
	return func(g *Generator) {
		g.log = logger.OrNop(log)
	}
}

// NewGenerator creates a generator
func NewGenerator(cfg Config, opts ...GeneratorOption) *Generator {
	g := &Generator{config: cfg, log: logger.Nop()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Config returns the generator settings
func (g *Generator) Config() Config { return g.config }

// Classifiers builds the configured classifiers
func (g *Generator) Classifiers() ([]indicator.Classifier, error) {
	return indicator.Classifiers(g.config.Indicators, g.config.Classifiers...)
}

// Discover mines the whole series
func (g *Generator) Discover(ctx context.Context, series *core.PriceSeries) (*Result, error) {
	if series == nil || series.Len() == 0 {
		return nil, core.ErrEmptySeries
	}
	return g.DiscoverRange(ctx, series, indicator.NewSet(series, g.config.Indicators), 0, series.Len())
}

// DiscoverRange mines bars [from, to) of the series using a set precomputed over
// the whole series. Look-ahead never reaches past to.
func (g *Generator) DiscoverRange(ctx context.Context, series *core.PriceSeries, set *indicator.Set, from, to int) (*Result, error) {
	if series == nil || series.Len() == 0 {
		return nil, core.ErrEmptySeries
	}
	from, to = max(from, 0), min(to, series.Len())
	if from >= to {
		return nil, fmt.Errorf("%w: empty range [%d, %d)", core.ErrEmptySeries, from, to)
	}
	if set.Len() != series.Len() {
		return nil, fmt.Errorf("indicator set covers %d bars, series has %d", set.Len(), series.Len())
	}

	classifiers, err := g.Classifiers()
	if err != nil {
		return nil, err
	}

	result := &Result{
		Ticker:      series.Ticker,
		From:        series.Time[from],
		To:          series.Time[to-1],
		Profitable:  []ProfitablePoint{},
		Patterns:    []Pattern{},
		Classifiers: classifiers,
	}

	prices := series.Close.Values()[from:to]
	inflections := DetectInflections(prices, g.config.Window, g.config.TiePolicy)
	result.Inflections = len(inflections)

	points, err := FilterProfitable(inflections, prices, g.config.Profit)
	if err != nil {
		return nil, err
	}
	for i := range points {
		points[i].EntryIndex += from
		points[i].ExitIndex += from
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ExtractStates(points, set, classifiers, series)
	result.Profitable = points

	g.log.WithFields(map[string]any{
		"ticker":      series.Ticker,
		"inflections": len(inflections),
		"profitable":  len(points),
	}).Debugf("mining %s .. %s", result.From.Format("2006-01-02"), result.To.Format("2006-01-02"))

	if len(points) == 0 {
		g.log.Info("no profitable points found")
		return result, nil
	}

	patterns := Mine(points, g.config.MinFrequency, g.config.Workers)
	Score(patterns, len(points))
	Rank(patterns)
	patterns = TopN(patterns, g.config.TopN)

	if g.config.EnrichContext {
		for i := range patterns {
			enrich(&patterns[i], set, series, from, to, g.config.Sector)
		}
	}

	result.Patterns = patterns
	g.log.Infof("discovered %d patterns from %d profitable points", len(patterns), len(points))
	return result, nil
}
