package indicator

import (
	"errors"
	"fmt"
)

// Classifier names
const (
	RSIState        = "rsi"
	MACDState       = "macd"
	StochasticState = "stochastic"
	SMACrossState   = "sma_cross"
	BollingerState  = "bollinger"
	PriceEMAState   = "price_ema"
	VolumeState     = "volume"
	SuperTrendState = "supertrend"
)

// Discrete states
const (
	Oversold   = "oversold"
	Neutral    = "neutral"
	Overbought = "overbought"
	Bullish    = "bullish"
	Bearish    = "bearish"
	NoCross    = "none"
	Golden     = "golden"
	Death      = "death"
	BelowLower = "below_lower"
	Inside     = "inside"
	AboveUpper = "above_upper"
	Above      = "above"
	Below      = "below"
	High       = "high"
	Normal     = "normal"
	Low        = "low"
)

var ErrUnknownClassifier = errors.New("unknown indicator classifier")

// Classifier maps a snapshot to one discrete state of a single indicator.
// Classify reports false when the inputs it needs are not available yet.
type Classifier struct {
	Name     string
	States   []string
	Classify func(Snapshot) (string, bool)
}

// DefaultClassifierNames lists the classifiers used when none are configured
var DefaultClassifierNames = []string{
	RSIState, MACDState, StochasticState, SMACrossState, BollingerState, PriceEMAState, VolumeState,
}

// Classifiers builds the named classifiers with thresholds from cfg.
// An empty names list selects DefaultClassifierNames.
func Classifiers(cfg Config, names ...string) ([]Classifier, error) {
	if len(names) == 0 {
		names = DefaultClassifierNames
	}

	all := map[string]Classifier{
		RSIState:        rsiClassifier(cfg),
		MACDState:       macdClassifier(),
		StochasticState: stochClassifier(cfg),
		SMACrossState:   smaCrossClassifier(),
		BollingerState:  bollingerClassifier(),
		PriceEMAState:   priceEMAClassifier(),
		VolumeState:     volumeClassifier(cfg),
		SuperTrendState: superTrendClassifier(),
	}

	out := make([]Classifier, 0, len(names))
	for _, name := range names {
		c, ok := all[name]
		if !ok {
			return nil, fmt.Errorf("%q: %w", name, ErrUnknownClassifier)
		}
		out = append(out, c)
	}
	return out, nil
}

// Extract applies every classifier to the snapshot. Indicators without enough
// history are left out of the result.
func Extract(snap Snapshot, classifiers []Classifier) map[string]string {
	states := make(map[string]string, len(classifiers))
	for _, c := range classifiers {
		if state, ok := c.Classify(snap); ok {
			states[c.Name] = state
		}
	}
	return states
}

func lookup(snap Snapshot, keys ...string) ([]float64, bool) {
	values := make([]float64, len(keys))
	for i, key := range keys {
		v, ok := snap[key]
		if !ok {
			return nil, false
		}
		values[i] = v
	}
	return values, true
}

func band(value, low, high float64, below, inside, above string) string {
	switch {
	case value < low:
		return below
	case value > high:
		return above
	default:
		return inside
	}
}

func rsiClassifier(cfg Config) Classifier {
	return Classifier{
		Name:   RSIState,
		States: []string{Oversold, Neutral, Overbought},
		Classify: func(snap Snapshot) (string, bool) {
			v, ok := lookup(snap, KeyRSI)
			if !ok {
				return "", false
			}
			return band(v[0], cfg.RSIOversold, cfg.RSIOverbought, Oversold, Neutral, Overbought), true
		},
	}
}

// macdClassifier detects a sign change of macd-signal between the previous and current bar
func macdClassifier() Classifier {
	return Classifier{
		Name:   MACDState,
		States: []string{Bullish, Bearish, NoCross},
		Classify: func(snap Snapshot) (string, bool) {
			v, ok := lookup(snap, KeyMACD, KeyMACDSignal, KeyMACDPrev, KeyMACDSignalPrev)
			if !ok {
				return "", false
			}
			diff, prev := v[0]-v[1], v[2]-v[3]
			switch {
			case prev <= 0 && diff > 0:
				return Bullish, true
			case prev >= 0 && diff < 0:
				return Bearish, true
			default:
				return NoCross, true
			}
		},
	}
}

func stochClassifier(cfg Config) Classifier {
	return Classifier{
		Name:   StochasticState,
		States: []string{Oversold, Neutral, Overbought},
		Classify: func(snap Snapshot) (string, bool) {
			v, ok := lookup(snap, KeyStochK)
			if !ok {
				return "", false
			}
			return band(v[0], cfg.StochOversold, cfg.StochOverbought, Oversold, Neutral, Overbought), true
		},
	}
}

func smaCrossClassifier() Classifier {
	return Classifier{
		Name:   SMACrossState,
		States: []string{Golden, Death},
		Classify: func(snap Snapshot) (string, bool) {
			v, ok := lookup(snap, KeySMAFast, KeySMASlow)
			if !ok {
				return "", false
			}
			if v[0] > v[1] {
				return Golden, true
			}
			return Death, true
		},
	}
}

func bollingerClassifier() Classifier {
	return Classifier{
		Name:   BollingerState,
		States: []string{BelowLower, Inside, AboveUpper},
		Classify: func(snap Snapshot) (string, bool) {
			v, ok := lookup(snap, KeyClose, KeyBBLower, KeyBBUpper)
			if !ok {
				return "", false
			}
			return band(v[0], v[1], v[2], BelowLower, Inside, AboveUpper), true
		},
	}
}

func priceEMAClassifier() Classifier {
	return Classifier{
		Name:   PriceEMAState,
		States: []string{Above, Below},
		Classify: func(snap Snapshot) (string, bool) {
			v, ok := lookup(snap, KeyClose, KeyEMA)
			if !ok {
				return "", false
			}
			if v[0] >= v[1] {
				return Above, true
			}
			return Below, true
		},
	}
}

func volumeClassifier(cfg Config) Classifier {
	return Classifier{
		Name:   VolumeState,
		States: []string{High, Normal, Low},
		Classify: func(snap Snapshot) (string, bool) {
			v, ok := lookup(snap, KeyVolume, KeyVolumeAvg)
			if !ok || v[1] <= 0 {
				return "", false
			}
			ratio := v[0] / v[1]
			switch {
			case ratio >= cfg.VolumeHigh:
				return High, true
			case ratio <= cfg.VolumeLow:
				return Low, true
			default:
				return Normal, true
			}
		},
	}
}

func superTrendClassifier() Classifier {
	return Classifier{
		Name:   SuperTrendState,
		States: []string{Bullish, Bearish},
		Classify: func(snap Snapshot) (string, bool) {
			v, ok := lookup(snap, KeyClose, KeySuperTrend)
			if !ok || v[1] == 0 {
				return "", false
			}
			if v[0] > v[1] {
				return Bullish, true
			}
			return Bearish, true
		},
	}
}
