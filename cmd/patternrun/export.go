package main

import (
	"fmt"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/raykavin/patternrun/pkg/discovery"
	"github.com/raykavin/patternrun/pkg/storage"
	"github.com/spf13/cobra"
)

type exportFlags struct {
	path         string
	run          string
	csv          string
	list         bool
	minFrequency int
}

func buildExportCmd(a *app) *cobra.Command {
	f := &exportFlags{}
	cmd := &cobra.Command{
		Use:   "export",
		Short: "List stored discovery runs or export one to CSV",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runExport(cmd, f)
		},
	}

	cmd.Flags().StringVar(&f.path, "store", "", "Pattern store path (defaults to storage.path)")
	cmd.Flags().StringVar(&f.run, "run", "", "Run id (defaults to the latest run)")
	cmd.Flags().StringVarP(&f.csv, "csv", "o", "", "CSV output file")
	cmd.Flags().BoolVarP(&f.list, "list", "l", false, "List stored runs")
	cmd.Flags().IntVar(&f.minFrequency, "min-frequency", 0, "Only export patterns seen at least this many times")

	return cmd
}

func (a *app) runExport(cmd *cobra.Command, f *exportFlags) error {
	path := f.path
	if path == "" {
		path = a.config.Storage.Path
	}
	if !fileExists(path) {
		return fmt.Errorf("pattern store %s not found", path)
	}

	store, err := a.openStore(path)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.Runs()
	if err != nil {
		return err
	}

	if f.list {
		table := tablewriter.NewWriter(cmd.OutOrStdout())
		table.SetHeader([]string{"Run", "Created", "Patterns"})
		for _, run := range runs {
			table.Append([]string{run.ID, run.CreatedAt.Format("2006-01-02 15:04:05"), strconv.Itoa(run.Patterns)})
		}
		table.Render()
		return nil
	}

	runID := f.run
	if runID == "" {
		if len(runs) == 0 {
			return fmt.Errorf("pattern store %s has no runs", path)
		}
		runID = runs[len(runs)-1].ID
	}

	patterns, err := storage.FrequentPatterns(store, runID, f.minFrequency)
	if err != nil {
		return err
	}

	if f.csv == "" {
		return discovery.WriteCSV(cmd.OutOrStdout(), patterns)
	}

	if err := discovery.SaveCSV(f.csv, patterns); err != nil {
		return err
	}
	a.log.WithField("run", runID).Infof("%d patterns written to %s", len(patterns), f.csv)
	return nil
}
