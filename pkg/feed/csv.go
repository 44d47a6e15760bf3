// Package feed loads daily price history from CSV files.
package feed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/raykavin/patternrun/pkg/core"
	"github.com/samber/lo"
	"github.com/xhit/go-str2duration/v2"
)

var (
	ErrMissingColumn = errors.New("missing csv column")
	ErrInvalidRow    = errors.New("invalid csv row")
	ErrInvalidPeriod = errors.New("invalid period")
)

// column aliases, first match wins
var aliases = map[string][]string{
	"time":   {"time", "date", "timestamp"},
	"open":   {"open", "open_price"},
	"high":   {"high", "high_price"},
	"low":    {"low", "low_price"},
	"close":  {"adj_close", "adj_close_price", "close", "close_price"},
	"volume": {"volume"},
}

// headerless files follow the timestamp, open, close, low, high, volume layout
var defaultHeaderMap = map[string]int{
	"time": 0, "open": 1, "close": 2, "low": 3, "high": 4, "volume": 5,
}

// parseHeaders maps canonical column names to indexes. hasHeader is false when
// the first row already holds data.
func parseHeaders(row []string) (headerMap map[string]int, hasHeader bool, err error) {
	if _, err := strconv.ParseFloat(strings.TrimSpace(row[0]), 64); err == nil {
		return defaultHeaderMap, false, nil
	}
	if _, err := time.Parse(time.DateOnly, strings.TrimSpace(row[0])); err == nil {
		return defaultHeaderMap, false, nil
	}

	index := make(map[string]int, len(row))
	for i, name := range row {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}

	headerMap = make(map[string]int, len(aliases))
	for column, names := range aliases {
		for _, name := range names {
			if i, ok := index[name]; ok {
				headerMap[column] = i
				break
			}
		}
	}

	for _, required := range []string{"time", "close"} {
		if _, ok := headerMap[required]; !ok {
			return nil, true, fmt.Errorf("%w: %s", ErrMissingColumn, required)
		}
	}
	return headerMap, true, nil
}

// parseTime accepts unix seconds or a YYYY-MM-DD date
func parseTime(value string) (time.Time, error) {
	if ts, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Unix(ts, 0).UTC(), nil
	}
	if t, err := time.Parse(time.DateOnly, value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, value)
}

func parseBar(line []string, headerMap map[string]int) (core.Bar, error) {
	field := func(column string) (string, bool) {
		i, ok := headerMap[column]
		if !ok || i >= len(line) {
			return "", false
		}
		return strings.TrimSpace(line[i]), true
	}

	raw, _ := field("time")
	t, err := parseTime(raw)
	if err != nil {
		return core.Bar{}, fmt.Errorf("%w: time %q", ErrInvalidRow, raw)
	}

	bar := core.Bar{Time: t}
	raw, ok := field("close")
	if !ok {
		return core.Bar{}, fmt.Errorf("%w: missing close", ErrInvalidRow)
	}
	if bar.Close, err = strconv.ParseFloat(raw, 64); err != nil {
		return core.Bar{}, fmt.Errorf("%w: close %q", ErrInvalidRow, raw)
	}

	// optional columns default to the close, volume to zero
	for column, target := range map[string]*float64{"open": &bar.Open, "high": &bar.High, "low": &bar.Low} {
		*target = bar.Close
		if raw, ok := field(column); ok && raw != "" {
			if *target, err = strconv.ParseFloat(raw, 64); err != nil {
				return core.Bar{}, fmt.Errorf("%w: %s %q", ErrInvalidRow, column, raw)
			}
		}
	}
	if raw, ok := field("volume"); ok && raw != "" {
		if bar.Volume, err = strconv.ParseFloat(raw, 64); err != nil {
			return core.Bar{}, fmt.Errorf("%w: volume %q", ErrInvalidRow, raw)
		}
	}

	return bar, nil
}

// ReadCSV parses daily bars from r. Rows are sorted by time and duplicate days
// keep the last row seen.
func ReadCSV(r io.Reader, ticker string) (*core.PriceSeries, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	lines, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, core.ErrEmptySeries
	}

	headerMap, hasHeader, err := parseHeaders(lines[0])
	if err != nil {
		return nil, err
	}
	if hasHeader {
		lines = lines[1:]
	}

	bars := make([]core.Bar, 0, len(lines))
	for n, line := range lines {
		if len(line) == 1 && strings.TrimSpace(line[0]) == "" {
			continue
		}
		bar, err := parseBar(line, headerMap)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n+1, err)
		}
		bars = append(bars, bar)
	}

	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	bars = dedupe(bars)

	return core.NewPriceSeries(ticker, bars)
}

func dedupe(bars []core.Bar) []core.Bar {
	out := bars[:0]
	for _, bar := range bars {
		if len(out) > 0 && out[len(out)-1].Time.Equal(bar.Time) {
			out[len(out)-1] = bar
			continue
		}
		out = append(out, bar)
	}
	return out
}

// LoadCSV reads a price file. An empty ticker is taken from the file name.
func LoadCSV(path, ticker string) (*core.PriceSeries, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if ticker == "" {
		ticker = strings.ToUpper(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	}

	series, err := ReadCSV(f, ticker)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return series, nil
}

// ParsePeriod parses a lookback such as "2y", "6mo", "90d" or "12w".
// Years and months follow the calendar; other units go through str2duration.
func ParsePeriod(period string) (years, months int, d time.Duration, err error) {
	period = strings.TrimSpace(strings.ToLower(period))
	if period == "" {
		return 0, 0, 0, fmt.Errorf("%w: empty", ErrInvalidPeriod)
	}

	for _, unit := range []string{"mo", "y"} {
		if !strings.HasSuffix(period, unit) {
			continue
		}
		n, convErr := strconv.Atoi(strings.TrimSuffix(period, unit))
		if convErr != nil || n <= 0 {
			return 0, 0, 0, fmt.Errorf("%w: %q", ErrInvalidPeriod, period)
		}
		if unit == "y" {
			return n, 0, 0, nil
		}
		return 0, n, 0, nil
	}

	d, err = str2duration.ParseDuration(period)
	if err != nil || d <= 0 {
		return 0, 0, 0, fmt.Errorf("%w: %q", ErrInvalidPeriod, period)
	}
	return 0, 0, d, nil
}

// Last keeps the bars that fall within period of the last bar
func Last(series *core.PriceSeries, period string) (*core.PriceSeries, error) {
	years, months, d, err := ParsePeriod(period)
	if err != nil {
		return nil, err
	}

	end := series.Last()
	start := end.AddDate(-years, -months, 0).Add(-d)

	indexes := lo.Filter(lo.Range(series.Len()), func(i int, _ int) bool {
		return series.Time[i].After(start)
	})
	if len(indexes) == 0 {
		return nil, core.ErrEmptySeries
	}
	return series.Slice(indexes[0], series.Len()), nil
}
