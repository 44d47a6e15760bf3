package main

import (
	"fmt"
	"time"

	"github.com/raykavin/patternrun/pkg/backtest"
	"github.com/raykavin/patternrun/pkg/discovery"
	"github.com/raykavin/patternrun/pkg/indicator"
	"github.com/raykavin/patternrun/pkg/strategy"
	"github.com/spf13/cobra"
)

const dateLayout = "2006-01-02"

type backtestFlags struct {
	data       dataFlags
	strategy   string
	patterns   string
	rank       int
	startDate  string
	endDate    string
	capital    float64
	commission float64
	fraction   float64
	returns    string
	progress   bool
}

func buildBacktestCmd(a *app) *cobra.Command {
	f := &backtestFlags{}
	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Simulate a strategy over the price history",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runBacktest(cmd, f)
		},
	}

	f.data.register(cmd)
	cmd.Flags().StringVarP(&f.strategy, "strategy", "s", "", "Strategy: rsi, sma, macd, bollinger, hold, buyhold, ensemble, rules")
	cmd.Flags().StringVar(&f.patterns, "patterns", "", "Pattern CSV to backtest instead of a built-in strategy")
	cmd.Flags().IntVar(&f.rank, "rank", 1, "Pattern number in the pattern CSV")
	cmd.Flags().StringVar(&f.startDate, "start", "", "Start date (e.g. 2021-01-04)")
	cmd.Flags().StringVar(&f.endDate, "end", "", "End date (e.g. 2023-12-29)")
	cmd.Flags().Float64Var(&f.capital, "capital", 0, "Initial capital")
	cmd.Flags().Float64Var(&f.commission, "commission", -1, "Flat commission per trade")
	cmd.Flags().Float64Var(&f.fraction, "fraction", 0, "Fraction of cash spent per entry (0 < f <= 1)")
	cmd.Flags().StringVar(&f.returns, "returns", "", "Write per-trade returns to this file")
	cmd.Flags().BoolVar(&f.progress, "progress", false, "Show a progress bar")

	return cmd
}

func (a *app) runBacktest(cmd *cobra.Command, f *backtestFlags) error {
	series, err := a.loadSeries(f.data)
	if err != nil {
		return err
	}

	source, name, err := a.signalSource(f)
	if err != nil {
		return err
	}

	options, err := a.backtestOptions(f)
	if err != nil {
		return err
	}

	a.log.Infof("backtesting %s on %s", name, series.Ticker)
	report, err := backtest.NewEngine(options...).Run(cmd.Context(), series, source)
	if err != nil {
		return err
	}

	if err := report.Summary(cmd.OutOrStdout()); err != nil {
		return err
	}

	if f.returns != "" {
		if err := report.SaveReturns(f.returns); err != nil {
			return err
		}
		a.log.Infof("trade returns written to %s", f.returns)
	}
	return nil
}

func (a *app) signalSource(f *backtestFlags) (strategy.SignalSource, string, error) {
	if f.patterns == "" {
		name := f.strategy
		if name == "" {
			name = a.config.Backtest.Strategy
		}
		source, err := strategy.ByName(name, a.config.Indicators)
		return source, name, err
	}

	patterns, err := discovery.LoadCSV(f.patterns)
	if err != nil {
		return nil, "", err
	}
	if f.rank < 1 || f.rank > len(patterns) {
		return nil, "", fmt.Errorf("pattern %d not in %s (%d patterns)", f.rank, f.patterns, len(patterns))
	}

	classifiers, err := indicator.Classifiers(a.config.Indicators, a.config.Discovery.Classifiers...)
	if err != nil {
		return nil, "", err
	}

	p := patterns[f.rank-1]
	source, err := discovery.Materialize(p, classifiers, discovery.WithSector(a.config.Discovery.Sector))
	if err != nil {
		return nil, "", err
	}
	return source, "pattern " + p.Conditions.String(), nil
}

func (a *app) backtestOptions(f *backtestFlags) ([]backtest.Option, error) {
	cfg := a.config.Backtest
	if f.capital > 0 {
		cfg.InitialCapital = f.capital
	}
	if f.commission >= 0 {
		cfg.Commission = f.commission
	}
	if f.fraction > 0 {
		cfg.Fraction = f.fraction
	}
	if f.startDate != "" {
		if _, err := time.Parse(dateLayout, f.startDate); err != nil {
			return nil, fmt.Errorf("invalid start date format: %w", err)
		}
		cfg.Start = f.startDate
	}
	if f.endDate != "" {
		if _, err := time.Parse(dateLayout, f.endDate); err != nil {
			return nil, fmt.Errorf("invalid end date format: %w", err)
		}
		cfg.End = f.endDate
	}

	options, err := cfg.Options()
	if err != nil {
		return nil, err
	}

	return append(options,
		backtest.WithIndicatorConfig(a.config.Indicators),
		backtest.WithLogger(a.log),
		backtest.WithProgress(f.progress),
	), nil
}
