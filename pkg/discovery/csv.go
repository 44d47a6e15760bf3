package discovery

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// CSVHeader lists the columns of the pattern export
var CSVHeader = []string{"Pattern#", "Frequency", "AvgGain%", "AvgHoldingDays", "SuccessRate%", "Conditions"}

var ErrInvalidCSV = errors.New("invalid pattern csv")

// WriteCSV writes one row per pattern in the given order
func WriteCSV(w io.Writer, patterns []Pattern) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(CSVHeader); err != nil {
		return err
	}

	for i, p := range patterns {
		row := []string{
			strconv.Itoa(i + 1),
			strconv.Itoa(p.Frequency),
			strconv.FormatFloat(p.AvgGain, 'f', 2, 64),
			strconv.FormatFloat(p.AvgHoldingDays, 'f', 2, 64),
			strconv.FormatFloat(p.SuccessRate, 'f', 2, 64),
			p.Conditions.String(),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// SaveCSV writes the patterns to filename
func SaveCSV(filename string, patterns []Pattern) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := WriteCSV(file, patterns); err != nil {
		return err
	}
	return file.Close()
}

// ReadCSV parses an export back into patterns. Occurrences are not part of the
// export and come back empty.
func ReadCSV(r io.Reader) ([]Pattern, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: missing header", ErrInvalidCSV)
	}

	index := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		index[strings.TrimSpace(name)] = i
	}
	for _, name := range CSVHeader {
		if _, ok := index[name]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrInvalidCSV, name)
		}
	}

	patterns := make([]Pattern, 0, len(records)-1)
	for line, record := range records[1:] {
		conditions, err := ParseConditions(record[index["Conditions"]])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line+2, err)
		}

		p := NewPattern(conditions)
		if p.Frequency, err = strconv.Atoi(record[index["Frequency"]]); err != nil {
			return nil, fmt.Errorf("%w: line %d frequency: %v", ErrInvalidCSV, line+2, err)
		}
		for column, target := range map[string]*float64{
			"AvgGain%":       &p.AvgGain,
			"AvgHoldingDays": &p.AvgHoldingDays,
			"SuccessRate%":   &p.SuccessRate,
		} {
			if *target, err = strconv.ParseFloat(record[index[column]], 64); err != nil {
				return nil, fmt.Errorf("%w: line %d %s: %v", ErrInvalidCSV, line+2, column, err)
			}
		}
		patterns = append(patterns, p)
	}
	return patterns, nil
}

// LoadCSV reads patterns from filename
func LoadCSV(filename string) ([]Pattern, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ReadCSV(file)
}
