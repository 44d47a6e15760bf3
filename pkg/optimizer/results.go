package optimizer

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
)

func columns(results []*Result) (params, metrics []string) {
	for _, result := range results {
		params = append(params, lo.Keys(map[string]float64(result.Parameters))...)
		metrics = append(metrics, lo.Keys(result.Metrics)...)
	}
	params, metrics = lo.Uniq(params), lo.Uniq(metrics)
	sort.Strings(params)
	sort.Strings(metrics)
	return params, metrics
}

// SaveResultsToCSV writes results in their current order, one row per result
func SaveResultsToCSV(results []*Result, filePath string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	paramNames, metricNames := columns(results)
	header := append([]string{"Rank", "Duration"}, paramNames...)
	header = append(header, metricNames...)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, result := range results {
		row := []string{strconv.Itoa(i + 1), result.Duration.Round(time.Millisecond).String()}
		for _, name := range paramNames {
			row = append(row, strconv.FormatFloat(result.Parameters[name], 'f', 4, 64))
		}
		for _, name := range metricNames {
			row = append(row, strconv.FormatFloat(result.Metrics[name], 'f', 4, 64))
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// PrintResults renders the results as a table with the target metric first
func PrintResults(w io.Writer, results []*Result, targetMetric MetricName) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No results to display")
		return
	}

	paramNames, metricNames := columns(results)
	metricNames = append([]string{string(targetMetric)}, lo.Without(metricNames, string(targetMetric))...)

	table := tablewriter.NewWriter(w)
	table.SetHeader(append(append([]string{"#"}, paramNames...), metricNames...))
	for i, result := range results {
		row := []string{strconv.Itoa(i + 1)}
		for _, name := range paramNames {
			row = append(row, strconv.FormatFloat(result.Parameters[name], 'g', 5, 64))
		}
		for _, name := range metricNames {
			row = append(row, fmt.Sprintf("%.4f", result.Metrics[name]))
		}
		table.Append(row)
	}
	table.Render()
}
