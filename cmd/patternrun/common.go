package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/raykavin/patternrun/internal/config"
	"github.com/raykavin/patternrun/pkg/core"
	"github.com/raykavin/patternrun/pkg/discovery"
	"github.com/raykavin/patternrun/pkg/feed"
	"github.com/raykavin/patternrun/pkg/storage"
	"github.com/spf13/cobra"
	"gorm.io/driver/sqlite"
)

// dataFlags selects and trims the price history
type dataFlags struct {
	file   string
	ticker string
	last   string
}

func (d *dataFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&d.file, "data", "d", "", "Price CSV file (date, open, high, low, close, volume)")
	cmd.Flags().StringVarP(&d.ticker, "ticker", "t", "", "Ticker symbol (defaults to the file name)")
	cmd.Flags().StringVar(&d.last, "last", "", "Keep only the most recent period (e.g. 2y, 6mo, 90d)")
}

func (a *app) loadSeries(d dataFlags) (*core.PriceSeries, error) {
	file, ticker, last := d.file, d.ticker, d.last
	if file == "" {
		file = a.config.Data.File
	}
	if ticker == "" {
		ticker = a.config.Data.Ticker
	}
	if last == "" {
		last = a.config.Data.Lookback
	}
	if file == "" {
		return nil, fmt.Errorf("no price data: pass --data or set data.file")
	}

	series, err := feed.LoadCSV(file, ticker)
	if err != nil {
		return nil, err
	}

	if last != "" {
		if series, err = feed.Last(series, last); err != nil {
			return nil, err
		}
	}

	a.log.WithFields(map[string]any{
		"ticker": series.Ticker,
		"bars":   series.Len(),
		"from":   series.First().Format("2006-01-02"),
		"to":     series.Last().Format("2006-01-02"),
	}).Info("price history loaded")
	return series, nil
}

func (a *app) openStore(path string) (storage.PatternStore, error) {
	if path == "" {
		path = a.config.Storage.Path
	}

	switch a.config.Storage.Driver {
	case config.DriverSQLite:
		return storage.FromSQL(sqlite.Open(path))
	default:
		return storage.NewBuntStore(path)
	}
}

func printPatterns(w io.Writer, patterns []discovery.Pattern) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "Conditions", "Freq", "Avg Gain", "Avg Hold", "Success", "Context"})
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_LEFT,
	})

	for i, p := range patterns {
		table.Append([]string{
			strconv.Itoa(i + 1),
			p.Conditions.String(),
			strconv.Itoa(p.Frequency),
			fmt.Sprintf("%.2f %%", p.AvgGain),
			fmt.Sprintf("%.1f", p.AvgHoldingDays),
			fmt.Sprintf("%.1f %%", p.SuccessRate),
			describeContext(p.Context),
		})
	}
	table.Render()
}

func describeContext(c *discovery.PatternContext) string {
	if c == nil {
		return "-"
	}

	parts := make([]string, 0, 3)
	if c.Regime != "" {
		parts = append(parts, c.Regime)
	}
	if len(c.Quarters) > 0 {
		quarters := make([]string, len(c.Quarters))
		for i, q := range c.Quarters {
			quarters[i] = "Q" + strconv.Itoa(q)
		}
		parts = append(parts, strings.Join(quarters, ","))
	}
	parts = append(parts, fmt.Sprintf("stability %.2f", c.Stability))
	return strings.Join(parts, " ")
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
