// Package storage persists discovery runs and their ranked patterns.
package storage

import (
	"errors"
	"time"

	"github.com/raykavin/patternrun/pkg/discovery"
	"github.com/samber/lo"
)

var ErrRunNotFound = errors.New("run not found")

// Run describes one saved discovery run
type Run struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Patterns  int       `json:"patterns"`
}

// PatternStore saves ranked patterns grouped by run
type PatternStore interface {
	// SavePatterns stores patterns in rank order under runID, replacing any
	// patterns previously saved for it
	SavePatterns(runID string, patterns []discovery.Pattern) error
	// Patterns returns the patterns of a run in rank order
	Patterns(runID string) ([]discovery.Pattern, error)
	// Runs lists saved runs, oldest first
	Runs() ([]Run, error)
	Close() error
}

// NewRunID derives a sortable run identifier from t
func NewRunID(t time.Time) string {
	return t.UTC().Format("20060102T150405.000000000Z")
}

// FrequentPatterns returns the patterns of a run seen at least minFrequency
// times, in rank order. Stores that can filter natively do so.
func FrequentPatterns(store PatternStore, runID string, minFrequency int) ([]discovery.Pattern, error) {
	if native, ok := store.(interface {
		FrequentPatterns(runID string, minFrequency int) ([]discovery.Pattern, error)
	}); ok {
		return native.FrequentPatterns(runID, minFrequency)
	}

	patterns, err := store.Patterns(runID)
	if err != nil {
		return nil, err
	}
	return lo.Filter(patterns, func(p discovery.Pattern, _ int) bool {
		return p.Frequency >= minFrequency
	}), nil
}

// record is the stored form of a ranked pattern
type record struct {
	RunID   string            `json:"run_id"`
	Rank    int               `json:"rank"`
	Pattern discovery.Pattern `json:"pattern"`
}

var (
	_ PatternStore = (*BuntStore)(nil)
	_ PatternStore = (*SQLStore)(nil)
)
