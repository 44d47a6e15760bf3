package main

import (
	"fmt"

	"github.com/raykavin/patternrun/pkg/optimizer"
	"github.com/spf13/cobra"
)

type optimizeFlags struct {
	data        dataFlags
	strategy    string
	iterations  int
	parallelism int
	metric      string
	minimize    bool
	top         int
	seed        int64
	csv         string
}

func buildOptimizeCmd(a *app) *cobra.Command {
	f := &optimizeFlags{}
	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Search indicator thresholds of a built-in strategy",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runOptimize(cmd, f)
		},
	}

	f.data.register(cmd)
	cmd.Flags().StringVarP(&f.strategy, "strategy", "s", "rsi", "Strategy to tune: rsi, sma, macd, bollinger")
	cmd.Flags().IntVarP(&f.iterations, "iterations", "i", 100, "Number of sampled parameter sets")
	cmd.Flags().IntVarP(&f.parallelism, "parallelism", "p", 4, "Parallel backtests")
	cmd.Flags().StringVarP(&f.metric, "metric", "m", string(optimizer.MetricSharpeRatio), "Metric to optimize")
	cmd.Flags().BoolVar(&f.minimize, "minimize", false, "Minimize the metric instead of maximizing it")
	cmd.Flags().IntVarP(&f.top, "top", "n", 10, "Number of results to show")
	cmd.Flags().Int64Var(&f.seed, "seed", 0, "Random seed (0 uses the clock)")
	cmd.Flags().StringVarP(&f.csv, "csv", "o", "", "Write results to this CSV file")

	return cmd
}

func (a *app) runOptimize(cmd *cobra.Command, f *optimizeFlags) error {
	params := optimizer.DefaultParameters(f.strategy)
	if len(params) == 0 {
		return fmt.Errorf("strategy %q has no tunable parameters", f.strategy)
	}

	series, err := a.loadSeries(f.data)
	if err != nil {
		return err
	}

	options, err := a.config.Backtest.Options()
	if err != nil {
		return err
	}

	config := optimizer.NewConfig().
		WithParameters(params...).
		WithMaxIterations(f.iterations).
		WithParallelism(f.parallelism).
		WithTargetMetric(optimizer.MetricName(f.metric), !f.minimize).
		WithTopN(f.top).
		WithSeed(f.seed).
		WithLogger(a.log)

	search, err := optimizer.NewRandomSearch(config)
	if err != nil {
		return err
	}

	evaluator := optimizer.NewBacktestEvaluator(series, f.strategy, a.config.Indicators, options...)
	results, err := search.Optimize(cmd.Context(), evaluator)
	if err != nil {
		return err
	}

	optimizer.PrintResults(cmd.OutOrStdout(), results, config.TargetMetric)

	if f.csv != "" {
		if err := optimizer.SaveResultsToCSV(results, f.csv); err != nil {
			return err
		}
		a.log.Infof("results written to %s", f.csv)
	}
	return nil
}
