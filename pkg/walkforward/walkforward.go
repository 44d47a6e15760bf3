// Package walkforward checks discovered patterns out of sample by rolling a
// train/test window across the price history.
package walkforward

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/StudioSol/set"
	"github.com/raykavin/patternrun/pkg/backtest"
	"github.com/raykavin/patternrun/pkg/core"
	"github.com/raykavin/patternrun/pkg/discovery"
	"github.com/raykavin/patternrun/pkg/indicator"
	"github.com/raykavin/patternrun/pkg/logger"
	"github.com/schollz/progressbar/v3"
)

var (
	ErrInvalidWindow  = errors.New("train, test and step sizes must be positive")
	ErrSeriesTooShort = errors.New("series is shorter than one train and test window")
)

// Config holds the walk-forward settings
type Config struct {
	TrainSize      int     `mapstructure:"train_size"`
	TestSize       int     `mapstructure:"test_size"`
	StepSize       int     `mapstructure:"step_size"`
	MinReturn      float64 `mapstructure:"min_return"`
	MinSharpe      float64 `mapstructure:"min_sharpe"`
	Parallelism    int     `mapstructure:"parallelism"`
	InitialCapital float64 `mapstructure:"initial_capital"`
	Commission     float64 `mapstructure:"commission"`
	Progress       bool    `mapstructure:"progress"`

	Discovery discovery.Config `mapstructure:"-"`
}

// DefaultConfig returns a one-year train window tested on the following quarter
func DefaultConfig() Config {
	return Config{
		TrainSize:      250,
		TestSize:       60,
		StepSize:       30,
		MinReturn:      0,
		MinSharpe:      0.5,
		Parallelism:    runtime.NumCPU(),
		InitialCapital: 10_000,
		Discovery:      discovery.DefaultConfig(),
	}
}

// Window is one train/test split of half-open index ranges
type Window struct {
	Number     int
	TrainStart int
	TrainEnd   int
	TestStart  int
	TestEnd    int
}

// Windows lays out the splits for a series of n bars. A window is produced for
// every start s = 0, step, 2*step, ... with s+train+test <= n.
func Windows(n, train, test, step int) []Window {
	if train <= 0 || test <= 0 || step <= 0 {
		return nil
	}

	windows := make([]Window, 0)
	for s := 0; s+train+test <= n; s += step {
		windows = append(windows, Window{
			Number:     len(windows) + 1,
			TrainStart: s,
			TrainEnd:   s + train,
			TestStart:  s + train,
			TestEnd:    s + train + test,
		})
	}
	return windows
}

// PatternResult is the out-of-sample backtest of one pattern in one window
type PatternResult struct {
	Window  int
	Pattern discovery.Pattern
	Result  backtest.Result
	Passed  bool
	Err     error
}

// ValidatedPattern is a pattern that passed in a window. The same pattern can
// appear once per window it passed in.
type ValidatedPattern struct {
	Window  int
	Pattern discovery.Pattern
	Result  backtest.Result
}

// WindowResult summarizes one window
type WindowResult struct {
	Window     Window
	TrainFrom  time.Time
	TrainTo    time.Time
	TestFrom   time.Time
	TestTo     time.Time
	Discovered int
	Validated  int
	Err        error
}

// Report collects every window in window order
type Report struct {
	Windows   []WindowResult
	Validated []ValidatedPattern
	All       []PatternResult
}

// ValidatedKeys returns the distinct keys of validated patterns in first-seen order
func (r *Report) ValidatedKeys() []string {
	keys := set.NewLinkedHashSetString()
	for _, v := range r.Validated {
		keys.Add(v.Pattern.Key)
	}

	out := make([]string, 0, len(r.Validated))
	for key := range keys.Iter() {
		out = append(out, key)
	}
	return out
}

// Validator runs walk-forward validation
type Validator struct {
	config   Config
	log      logger.Logger
	backtest []backtest.Option
}

// Option configures a Validator
type Option func(*Validator)

// WithLogger sets the logger
func WithLogger(log logger.Logger) Option {
	return func(v *Validator) {
		v.log = logger.OrNop(log)
	}
}

// WithBacktestOptions adds engine options applied to every out-of-sample run,
// after the capital, commission and test range taken from Config
func WithBacktestOptions(opts ...backtest.Option) Option {
	return func(v *Validator) {
		v.backtest = append(v.backtest, opts...)
	}
}

// NewValidator creates a validator
func NewValidator(cfg Config, opts ...Option) *Validator {
	v := &Validator{config: cfg, log: logger.Nop()}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

type windowOutcome struct {
	summary  WindowResult
	patterns []PatternResult
}

// Validate rediscovers patterns on every training window and backtests each of
// them on the following test window. Windows run concurrently; the report is
// ordered by window. Failures inside a window are logged and recorded, only
// cancellation aborts the run.
func (v *Validator) Validate(ctx context.Context, series *core.PriceSeries) (*Report, error) {
	cfg := v.config
	if cfg.TrainSize <= 0 || cfg.TestSize <= 0 || cfg.StepSize <= 0 {
		return nil, fmt.Errorf("%w: train %d, test %d, step %d", ErrInvalidWindow, cfg.TrainSize, cfg.TestSize, cfg.StepSize)
	}
	if cfg.InitialCapital <= 0 {
		return nil, fmt.Errorf("%w: %.2f", backtest.ErrInvalidCapital, cfg.InitialCapital)
	}
	if cfg.Commission < 0 {
		return nil, fmt.Errorf("%w: %.2f", backtest.ErrInvalidCommission, cfg.Commission)
	}
	if series == nil || series.Len() == 0 {
		return nil, core.ErrEmptySeries
	}

	windows := Windows(series.Len(), cfg.TrainSize, cfg.TestSize, cfg.StepSize)
	if len(windows) == 0 {
		return nil, fmt.Errorf("%w: %d bars, need %d", ErrSeriesTooShort, series.Len(), cfg.TrainSize+cfg.TestSize)
	}

	indicators := indicator.NewSet(series, cfg.Discovery.Indicators)
	generator := discovery.NewGenerator(cfg.Discovery, discovery.WithLogger(v.log))
	classifiers, err := generator.Classifiers()
	if err != nil {
		return nil, err
	}

	v.log.Infof("walk-forward over %d windows (train %d, test %d, step %d)",
		len(windows), cfg.TrainSize, cfg.TestSize, cfg.StepSize)

	var bar *progressbar.ProgressBar
	if cfg.Progress {
		bar = progressbar.Default(int64(len(windows)))
	}

	var (
		outcomes  = make([]windowOutcome, len(windows))
		mutex     sync.Mutex
		wg        sync.WaitGroup
		semaphore = make(chan struct{}, max(cfg.Parallelism, 1))
	)

	for i, w := range windows {
		if err := ctx.Err(); err != nil {
			wg.Wait()
			return nil, err
		}

		wg.Add(1)
		semaphore <- struct{}{}

		go func(index int, w Window) {
			defer wg.Done()
			defer func() { <-semaphore }()

			outcomes[index] = v.runWindow(ctx, series, indicators, generator, classifiers, w)

			if bar != nil {
				mutex.Lock()
				if err := bar.Add(1); err != nil {
					v.log.Warnf("update progressbar fail: %v", err)
				}
				mutex.Unlock()
			}
		}(i, w)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := &Report{
		Windows:   make([]WindowResult, 0, len(outcomes)),
		Validated: make([]ValidatedPattern, 0),
		All:       make([]PatternResult, 0),
	}
	for _, o := range outcomes {
		report.Windows = append(report.Windows, o.summary)
		for _, pr := range o.patterns {
			report.All = append(report.All, pr)
			if pr.Passed {
				report.Validated = append(report.Validated, ValidatedPattern{Window: pr.Window, Pattern: pr.Pattern, Result: pr.Result})
			}
		}
	}

	v.log.Infof("walk-forward done: %d of %d pattern tests passed", len(report.Validated), len(report.All))
	return report, nil
}

func (v *Validator) runWindow(
	ctx context.Context,
	series *core.PriceSeries,
	indicators *indicator.Set,
	generator *discovery.Generator,
	classifiers []indicator.Classifier,
	w Window,
) windowOutcome {
	cfg := v.config
	log := v.log.WithField("window", w.Number)

	out := windowOutcome{summary: WindowResult{
		Window:    w,
		TrainFrom: series.Time[w.TrainStart],
		TrainTo:   series.Time[w.TrainEnd-1],
		TestFrom:  series.Time[w.TestStart],
		TestTo:    series.Time[w.TestEnd-1],
	}}

	discovered, err := generator.DiscoverRange(ctx, series, indicators, w.TrainStart, w.TrainEnd)
	if err != nil {
		log.WithError(err).Warn("discovery failed")
		out.summary.Err = err
		return out
	}
	out.summary.Discovered = len(discovered.Patterns)

	engine := backtest.NewEngine(append([]backtest.Option{
		backtest.WithIndicators(indicators),
		backtest.WithInitialCapital(cfg.InitialCapital),
		backtest.WithCommission(cfg.Commission),
		backtest.WithDateRange(out.summary.TestFrom, out.summary.TestTo),
		backtest.WithLogger(v.log),
	}, v.backtest...)...)

	for _, p := range discovered.Patterns {
		pr := PatternResult{Window: w.Number, Pattern: p}

		source, err := discovery.Materialize(p, classifiers, discovery.WithSector(cfg.Discovery.Sector))
		if err != nil {
			log.WithError(err).Warnf("pattern %s skipped", p.Key)
			pr.Err = err
			out.patterns = append(out.patterns, pr)
			continue
		}

		report, err := engine.Run(ctx, series, source)
		if err != nil {
			log.WithError(err).Warnf("pattern %s backtest failed", p.Key)
			pr.Err = err
			out.patterns = append(out.patterns, pr)
			continue
		}

		pr.Result = report.Result
		pr.Passed = report.Result.TotalReturn > cfg.MinReturn && report.Result.SharpeRatio > cfg.MinSharpe
		if pr.Passed {
			out.summary.Validated++
		}
		out.patterns = append(out.patterns, pr)
	}

	log.Debugf("%d of %d patterns passed", out.summary.Validated, out.summary.Discovered)
	return out
}
