package strategy

import (
	"fmt"

	"github.com/raykavin/patternrun/pkg/core"
	"github.com/raykavin/patternrun/pkg/indicator"
)

// RSIReversion buys oversold and sells overbought readings
type RSIReversion struct {
	Oversold   float64
	Overbought float64
}

func (s RSIReversion) Decide(v core.MarketVector) (core.Signal, error) {
	signal, _, err := s.Confidence(v)
	return signal, err
}

// Confidence grows with the distance of the RSI beyond its threshold
func (s RSIReversion) Confidence(v core.MarketVector) (core.Signal, float64, error) {
	rsi, ok := v.Indicator(indicator.KeyRSI)
	if !ok {
		return core.Hold, 0, nil
	}

	switch {
	case rsi < s.Oversold:
		return core.Buy, clamp01((s.Oversold - rsi) / s.Oversold), nil
	case rsi > s.Overbought:
		return core.Sell, clamp01((rsi - s.Overbought) / (100 - s.Overbought)), nil
	}
	return core.Hold, 0, nil
}

// SMACross is long while the fast average is above the slow one
type SMACross struct{}

func (SMACross) Decide(v core.MarketVector) (core.Signal, error) {
	fast, ok1 := v.Indicator(indicator.KeySMAFast)
	slow, ok2 := v.Indicator(indicator.KeySMASlow)
	if !ok1 || !ok2 {
		return core.Hold, nil
	}
	if fast > slow {
		return core.Buy, nil
	}
	if fast < slow {
		return core.Sell, nil
	}
	return core.Hold, nil
}

// MACDCross trades crossings of the MACD line over its signal line
type MACDCross struct{}

func (MACDCross) Decide(v core.MarketVector) (core.Signal, error) {
	macd, ok1 := v.Indicator(indicator.KeyMACD)
	signal, ok2 := v.Indicator(indicator.KeyMACDSignal)
	prevMACD, ok3 := v.Indicator(indicator.KeyMACDPrev)
	prevSignal, ok4 := v.Indicator(indicator.KeyMACDSignalPrev)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return core.Hold, nil
	}

	diff, prev := macd-signal, prevMACD-prevSignal
	switch {
	case prev <= 0 && diff > 0:
		return core.Buy, nil
	case prev >= 0 && diff < 0:
		return core.Sell, nil
	}
	return core.Hold, nil
}

// BollingerReversion buys below the lower band and sells above the upper band
type BollingerReversion struct{}

func (BollingerReversion) Decide(v core.MarketVector) (core.Signal, error) {
	lower, ok1 := v.Indicator(indicator.KeyBBLower)
	upper, ok2 := v.Indicator(indicator.KeyBBUpper)
	if !ok1 || !ok2 {
		return core.Hold, nil
	}

	price := v.Price()
	switch {
	case price < lower:
		return core.Buy, nil
	case price > upper:
		return core.Sell, nil
	}
	return core.Hold, nil
}

func clamp01(v float64) float64 {
	return min(max(v, 0), 1)
}

// Names of the built-in strategies accepted by ByName
const (
	NameRSI       = "rsi"
	NameSMA       = "sma"
	NameMACD      = "macd"
	NameBollinger = "bollinger"
	NameHold      = "hold"
	NameBuyHold   = "buyhold"
	NameEnsemble  = "ensemble"
	NameRules     = "rules"
)

// ByName returns a built-in strategy configured with the indicator thresholds
func ByName(name string, cfg indicator.Config) (SignalSource, error) {
	rsi := RSIReversion{Oversold: cfg.RSIOversold, Overbought: cfg.RSIOverbought}

	switch name {
	case NameRSI:
		return rsi, nil
	case NameSMA:
		return SMACross{}, nil
	case NameMACD:
		return MACDCross{}, nil
	case NameBollinger:
		return BollingerReversion{}, nil
	case NameHold:
		return Hold(), nil
	case NameBuyHold:
		return BuyAndHold(), nil
	case NameEnsemble:
		return NewEnsemble(Majority,
			Member{Source: rsi, Weight: 1},
			Member{Source: MACDCross{}, Weight: 1},
			Member{Source: BollingerReversion{}, Weight: 1},
		), nil
	case NameRules:
		return KnowledgeBase(cfg)
	}
	return nil, fmt.Errorf("%q: %w", name, ErrUnknownStrategy)
}
