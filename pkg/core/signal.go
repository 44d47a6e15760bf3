package core

import "time"

// Signal is the decision a strategy emits for one step
type Signal int8

const (
	Hold Signal = iota
	Buy
	Sell
)

func (s Signal) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return "hold"
	}
}

// MarketVector is the read-only view a signal source receives at one simulation step.
// Every series ends at the current bar: no value after Index is reachable from it.
type MarketVector struct {
	Ticker string
	Index  int
	Time   time.Time

	Close  Series[float64]
	High   Series[float64]
	Low    Series[float64]
	Volume Series[float64]

	// Indicator values at the current bar keyed by name. Indicators still
	// in their warm-up period are absent.
	Indicators map[string]float64
}

// Price returns the current close
func (v MarketVector) Price() float64 {
	if len(v.Close) == 0 {
		return 0
	}
	return v.Close.Last(0)
}

// Indicator returns a named indicator value and whether it is available
func (v MarketVector) Indicator(name string) (float64, bool) {
	value, ok := v.Indicators[name]
	return value, ok
}

// VectorAt builds the market vector for step i from the series prefix [0..i].
// indicators may be nil.
func VectorAt(p *PriceSeries, i int, indicators map[string]float64) MarketVector {
	return MarketVector{
		Ticker:     p.Ticker,
		Index:      i,
		Time:       p.Time[i],
		Close:      p.Close.Until(i),
		High:       p.High.Until(i),
		Low:        p.Low.Until(i),
		Volume:     p.Volume.Until(i),
		Indicators: indicators,
	}
}
