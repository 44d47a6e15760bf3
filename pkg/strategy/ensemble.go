package strategy

import (
	"github.com/raykavin/patternrun/pkg/core"
)

// Voting is the aggregation rule of an Ensemble
type Voting int

const (
	// Majority requires more than half of the members to agree
	Majority Voting = iota
	// Weighted requires more than half of the total weight to agree
	Weighted
	// Unanimous requires every member to agree
	Unanimous
	// ConfidenceWeighted scales each weight by the member's confidence and
	// requires more than half of the total weight
	ConfidenceWeighted
)

// Member is one voter of an ensemble. A non-positive weight counts as 1.
type Member struct {
	Source SignalSource
	Weight float64
}

// Ensemble aggregates the votes of several signal sources.
// Failing members vote Hold.
type Ensemble struct {
	voting  Voting
	members []Member
}

// NewEnsemble creates an ensemble
func NewEnsemble(voting Voting, members ...Member) *Ensemble {
	members = append([]Member(nil), members...)
	for i := range members {
		members[i].Source = Safe(members[i].Source)
	}
	return &Ensemble{voting: voting, members: members}
}

type vote struct {
	signal     core.Signal
	weight     float64
	confidence float64
}

func (e *Ensemble) collect(v core.MarketVector) []vote {
	votes := make([]vote, 0, len(e.members))
	for _, m := range e.members {
		signal, confidence, err := decideWithConfidence(m.Source, v)
		if err != nil {
			signal, confidence = core.Hold, 0
		}
		votes = append(votes, vote{signal: signal, weight: weightOf(m.Weight), confidence: confidence})
	}
	return votes
}

func decideWithConfidence(src SignalSource, v core.MarketVector) (core.Signal, float64, error) {
	if s, ok := src.(safeSource); ok {
		if c, ok := s.src.(Confident); ok {
			return safeConfidence(c, v)
		}
	}
	signal, err := src.Decide(v)
	if err != nil {
		return core.Hold, 0, err
	}
	if signal == core.Hold {
		return signal, 0, nil
	}
	return signal, 1, nil
}

func safeConfidence(c Confident, v core.MarketVector) (signal core.Signal, confidence float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			signal, confidence, err = core.Hold, 0, ErrStrategyPanic
		}
	}()
	signal, confidence, err = c.Confidence(v)
	return signal, clamp01(confidence), err
}

// Decide implements SignalSource
func (e *Ensemble) Decide(v core.MarketVector) (core.Signal, error) {
	if len(e.members) == 0 {
		return core.Hold, nil
	}

	votes := e.collect(v)

	var buy, sell, total float64
	for _, vt := range votes {
		score := 1.0
		switch e.voting {
		case Weighted:
			score = vt.weight
		case ConfidenceWeighted:
			score = vt.weight * vt.confidence
			total += vt.weight
		}
		if e.voting != ConfidenceWeighted {
			total += score
		}

		switch vt.signal {
		case core.Buy:
			buy += score
		case core.Sell:
			sell += score
		}
	}

	if e.voting == Unanimous {
		switch {
		case buy == total:
			return core.Buy, nil
		case sell == total:
			return core.Sell, nil
		}
		return core.Hold, nil
	}

	return pick(buy, sell, total/2), nil
}
