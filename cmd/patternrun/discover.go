package main

import (
	"time"

	"github.com/raykavin/patternrun/pkg/discovery"
	"github.com/raykavin/patternrun/pkg/storage"
	"github.com/spf13/cobra"
)

type discoverFlags struct {
	data    dataFlags
	csv     string
	store   bool
	path    string
	top     int
	context bool
}

func buildDiscoverCmd(a *app) *cobra.Command {
	f := &discoverFlags{}
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Mine indicator patterns that preceded profitable moves",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runDiscover(cmd, f)
		},
	}

	f.data.register(cmd)
	cmd.Flags().StringVarP(&f.csv, "csv", "o", "", "Export ranked patterns to this CSV file")
	cmd.Flags().BoolVar(&f.store, "store", false, "Save the run to the pattern store")
	cmd.Flags().StringVar(&f.path, "store-path", "", "Pattern store path (defaults to storage.path)")
	cmd.Flags().IntVarP(&f.top, "top", "n", 0, "Keep only the best N patterns")
	cmd.Flags().BoolVar(&f.context, "context", false, "Attach regime and seasonal context to every pattern")

	return cmd
}

func (a *app) runDiscover(cmd *cobra.Command, f *discoverFlags) error {
	series, err := a.loadSeries(f.data)
	if err != nil {
		return err
	}

	cfg := a.config.Discovery.Config
	if f.top > 0 {
		cfg.TopN = f.top
	}
	if f.context {
		cfg.EnrichContext = true
	}

	result, err := discovery.NewGenerator(cfg, discovery.WithLogger(a.log)).Discover(cmd.Context(), series)
	if err != nil {
		return err
	}

	a.log.WithFields(map[string]any{
		"inflections": result.Inflections,
		"profitable":  len(result.Profitable),
		"patterns":    len(result.Patterns),
	}).Info("discovery finished")

	printPatterns(cmd.OutOrStdout(), result.Patterns)

	if f.csv != "" {
		if err := discovery.SaveCSV(f.csv, result.Patterns); err != nil {
			return err
		}
		a.log.Infof("patterns written to %s", f.csv)
	}

	if f.store {
		store, err := a.openStore(f.path)
		if err != nil {
			return err
		}
		defer store.Close()

		runID := storage.NewRunID(time.Now())
		if err := store.SavePatterns(runID, result.Patterns); err != nil {
			return err
		}
		a.log.WithField("run", runID).Info("patterns saved")
	}
	return nil
}
