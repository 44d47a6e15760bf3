package main

import (
	"github.com/raykavin/patternrun/pkg/backtest"
	"github.com/raykavin/patternrun/pkg/walkforward"
	"github.com/spf13/cobra"
)

type walkForwardFlags struct {
	data      dataFlags
	train     int
	test      int
	step      int
	minSharpe float64
	progress  bool
}

func buildWalkForwardCmd(a *app) *cobra.Command {
	f := &walkForwardFlags{}
	cmd := &cobra.Command{
		Use:   "walkforward",
		Short: "Validate discovered patterns on rolling out-of-sample windows",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runWalkForward(cmd, f)
		},
	}

	f.data.register(cmd)
	cmd.Flags().IntVar(&f.train, "train", 0, "Training window in bars")
	cmd.Flags().IntVar(&f.test, "test", 0, "Test window in bars")
	cmd.Flags().IntVar(&f.step, "step", 0, "Step between windows in bars")
	cmd.Flags().Float64Var(&f.minSharpe, "min-sharpe", -1, "Minimum out-of-sample Sharpe ratio")
	cmd.Flags().BoolVar(&f.progress, "progress", false, "Show a progress bar")

	return cmd
}

func (a *app) runWalkForward(cmd *cobra.Command, f *walkForwardFlags) error {
	series, err := a.loadSeries(f.data)
	if err != nil {
		return err
	}

	cfg := a.config.WalkForward
	if f.train > 0 {
		cfg.TrainSize = f.train
	}
	if f.test > 0 {
		cfg.TestSize = f.test
	}
	if f.step > 0 {
		cfg.StepSize = f.step
	}
	if f.minSharpe >= 0 {
		cfg.MinSharpe = f.minSharpe
	}
	cfg.Progress = cfg.Progress || f.progress

	validator := walkforward.NewValidator(cfg,
		walkforward.WithLogger(a.log),
		walkforward.WithBacktestOptions(backtest.WithPositionSizing(backtest.FixedFraction(a.config.Backtest.Fraction))),
	)
	report, err := validator.Validate(cmd.Context(), series)
	if err != nil {
		return err
	}

	return report.Summary(cmd.OutOrStdout())
}
