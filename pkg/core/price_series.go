package core

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Field names accepted by PriceSeries.Field
const (
	FieldTimestamp = "timestamp"
	FieldOpen      = "open_price"
	FieldHigh      = "high_price"
	FieldLow       = "low_price"
	FieldAdjClose  = "adj_close_price"
	FieldVolume    = "volume"
)

// PriceSeries is a columnar, index-aligned daily price history for one instrument.
// It is treated as immutable once built: every component borrows it read-only.
type PriceSeries struct {
	Ticker string

	Time   []time.Time
	Open   Series[float64]
	High   Series[float64]
	Low    Series[float64]
	Close  Series[float64]
	Volume Series[float64]
}

// NewPriceSeries builds a validated series from bars in chronological order
func NewPriceSeries(ticker string, bars []Bar) (*PriceSeries, error) {
	ps := &PriceSeries{
		Ticker: ticker,
		Time:   make([]time.Time, len(bars)),
		Open:   make(Series[float64], len(bars)),
		High:   make(Series[float64], len(bars)),
		Low:    make(Series[float64], len(bars)),
		Close:  make(Series[float64], len(bars)),
		Volume: make(Series[float64], len(bars)),
	}

	for i, bar := range bars {
		ps.Time[i] = bar.Time
		ps.Open[i] = bar.Open
		ps.High[i] = bar.High
		ps.Low[i] = bar.Low
		ps.Close[i] = bar.Close
		ps.Volume[i] = bar.Volume
	}

	if err := ps.Validate(); err != nil {
		return nil, err
	}

	return ps, nil
}

// FromCloses builds a series from close prices only, one bar per day starting at start.
// Open, high and low equal the close; volume is zero.
func FromCloses(ticker string, start time.Time, closes []float64) (*PriceSeries, error) {
	bars := make([]Bar, len(closes))
	for i, c := range closes {
		bars[i] = Bar{
			Time:  start.AddDate(0, 0, i),
			Open:  c,
			High:  c,
			Low:   c,
			Close: c,
		}
	}
	return NewPriceSeries(ticker, bars)
}

// Validate checks the structural invariants of the series
func (p *PriceSeries) Validate() error {
	n := len(p.Close)
	if n == 0 {
		return ErrEmptySeries
	}

	if len(p.Time) != n || len(p.Open) != n || len(p.High) != n || len(p.Low) != n || len(p.Volume) != n {
		return fmt.Errorf("misaligned columns: %w", ErrEmptySeries)
	}

	for i := 0; i < n; i++ {
		if c := p.Close[i]; c <= 0 || math.IsNaN(c) || math.IsInf(c, 0) {
			return fmt.Errorf("close at index %d (%v): %w", i, c, ErrInvalidPrice)
		}
		if i > 0 && !p.Time[i].After(p.Time[i-1]) {
			return fmt.Errorf("index %d (%s): %w", i, p.Time[i].Format(time.DateOnly), ErrUnorderedSeries)
		}
	}

	return nil
}

// Len returns the number of bars
func (p *PriceSeries) Len() int {
	return len(p.Close)
}

// Bar returns the bar at index i
func (p *PriceSeries) Bar(i int) Bar {
	return Bar{
		Time:   p.Time[i],
		Open:   p.Open[i],
		High:   p.High[i],
		Low:    p.Low[i],
		Close:  p.Close[i],
		Volume: p.Volume[i],
	}
}

// First returns the first bar time
func (p *PriceSeries) First() time.Time { return p.Time[0] }

// Last returns the last bar time
func (p *PriceSeries) Last() time.Time { return p.Time[len(p.Time)-1] }

// Field returns a numeric column by its data-source field name
func (p *PriceSeries) Field(name string) (Series[float64], error) {
	switch name {
	case FieldOpen:
		return p.Open, nil
	case FieldHigh:
		return p.High, nil
	case FieldLow:
		return p.Low, nil
	case FieldAdjClose, "close":
		return p.Close, nil
	case FieldVolume:
		return p.Volume, nil
	case FieldTimestamp:
		out := make(Series[float64], len(p.Time))
		for i, t := range p.Time {
			out[i] = float64(t.Unix())
		}
		return out, nil
	}
	return nil, fmt.Errorf("%q: %w", name, ErrUnknownField)
}

// Slice returns the half-open sub-series [from, to). Columns share memory with p.
func (p *PriceSeries) Slice(from, to int) *PriceSeries {
	from = max(from, 0)
	to = min(to, p.Len())
	if from > to {
		from = to
	}

	return &PriceSeries{
		Ticker: p.Ticker,
		Time:   p.Time[from:to:to],
		Open:   p.Open.Window(from, to),
		High:   p.High.Window(from, to),
		Low:    p.Low.Window(from, to),
		Close:  p.Close.Window(from, to),
		Volume: p.Volume.Window(from, to),
	}
}

// IndexRange resolves optional date bounds to an inclusive index range.
// Zero times mean "unbounded". ok is false when the bounds are malformed
// (start after end) or select no bars, in which case the full range is returned.
func (p *PriceSeries) IndexRange(start, end time.Time) (from, to int, ok bool) {
	from, to = 0, p.Len()-1
	if start.IsZero() && end.IsZero() {
		return from, to, true
	}

	if !start.IsZero() && !end.IsZero() && start.After(end) {
		return 0, p.Len() - 1, false
	}

	if !start.IsZero() {
		from = sort.Search(p.Len(), func(i int) bool { return !p.Time[i].Before(start) })
	}

	if !end.IsZero() {
		to = sort.Search(p.Len(), func(i int) bool { return p.Time[i].After(end) }) - 1
	}

	if from >= p.Len() || to < 0 || from > to {
		return 0, p.Len() - 1, false
	}

	return from, to, true
}
