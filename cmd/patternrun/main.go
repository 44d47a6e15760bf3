package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/raykavin/patternrun/internal/config"
	"github.com/raykavin/patternrun/pkg/logger"
	"github.com/raykavin/patternrun/pkg/logger/zerolog"
	"github.com/spf13/cobra"
)

// app carries what every command needs after the root pre-run
type app struct {
	configPath string
	logLevel   string

	config *config.Config
	log    logger.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCmd(&app{})
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "patternrun",
		Short:         "Backtest strategies and discover indicator patterns in daily price history",
		Version:       "1.0.0",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return a.init()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Configuration file (written with defaults when missing)")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		buildBacktestCmd(a),
		buildDiscoverCmd(a),
		buildWalkForwardCmd(a),
		buildExportCmd(a),
		buildOptimizeCmd(a),
	)
	return rootCmd
}

func (a *app) init() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.config = cfg

	level := cfg.Log.Level
	if a.logLevel != "" {
		level = a.logLevel
	}

	log, err := zerolog.New(zerolog.Options{
		Level:   level,
		Colored: cfg.Log.Colors,
		Output:  os.Stderr,
	})
	if err != nil {
		return err
	}
	a.log = log
	return nil
}
