package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/raykavin/patternrun/pkg/discovery"
	"github.com/tidwall/buntdb"
)

const (
	runPrefix     = "run:"
	patternPrefix = "pattern:"
	rankIndex     = "rank_index"
)

// BuntStore implements PatternStore on BuntDB
type BuntStore struct {
	db  *buntdb.DB
	now func() time.Time
}

// FromMemory creates an in-memory store
func FromMemory() (*BuntStore, error) {
	return NewBuntStore(":memory:")
}

// NewBuntStore opens or creates a BuntDB file
func NewBuntStore(sourceFile string) (*BuntStore, error) {
	db, err := buntdb.Open(sourceFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open buntdb: %w", err)
	}

	err = db.CreateIndex(rankIndex, patternPrefix+"*", buntdb.IndexJSON("run_id"), buntdb.IndexJSON("rank"))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	return &BuntStore{db: db, now: time.Now}, nil
}

func patternKey(runID string, rank int) string {
	return fmt.Sprintf("%s%s:%06d", patternPrefix, runID, rank)
}

// SavePatterns stores every pattern as a JSON document keyed by run and rank
func (b *BuntStore) SavePatterns(runID string, patterns []discovery.Pattern) error {
	return b.db.Update(func(tx *buntdb.Tx) error {
		var stale []string
		err := tx.AscendKeys(patternPrefix+runID+":*", func(key, _ string) bool {
			stale = append(stale, key)
			return true
		})
		if err != nil {
			return fmt.Errorf("failed to list patterns: %w", err)
		}
		for _, key := range stale {
			if _, err := tx.Delete(key); err != nil {
				return fmt.Errorf("failed to delete pattern: %w", err)
			}
		}

		for rank, p := range patterns {
			content, err := json.Marshal(record{RunID: runID, Rank: rank + 1, Pattern: p})
			if err != nil {
				return fmt.Errorf("failed to marshal pattern: %w", err)
			}
			if _, _, err := tx.Set(patternKey(runID, rank+1), string(content), nil); err != nil {
				return fmt.Errorf("failed to store pattern: %w", err)
			}
		}

		run := Run{ID: runID, CreatedAt: b.now().UTC(), Patterns: len(patterns)}
		if previous, err := tx.Get(runPrefix + runID); err == nil {
			var existing Run
			if json.Unmarshal([]byte(previous), &existing) == nil {
				run.CreatedAt = existing.CreatedAt
			}
		}
		content, err := json.Marshal(run)
		if err != nil {
			return fmt.Errorf("failed to marshal run: %w", err)
		}
		if _, _, err := tx.Set(runPrefix+runID, string(content), nil); err != nil {
			return fmt.Errorf("failed to store run: %w", err)
		}
		return nil
	})
}

// Patterns loads the patterns of a run in rank order
func (b *BuntStore) Patterns(runID string) ([]discovery.Pattern, error) {
	patterns := make([]discovery.Pattern, 0)

	err := b.db.View(func(tx *buntdb.Tx) error {
		if _, err := tx.Get(runPrefix + runID); err != nil {
			return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}

		var decodeErr error
		pivot := fmt.Sprintf(`{"run_id":%q}`, runID)
		err := tx.AscendGreaterOrEqual(rankIndex, pivot, func(_, value string) bool {
			var r record
			if err := json.Unmarshal([]byte(value), &r); err != nil {
				decodeErr = fmt.Errorf("failed to unmarshal pattern: %w", err)
				return false
			}
			if r.RunID != runID {
				return false
			}
			patterns = append(patterns, r.Pattern)
			return true
		})
		if err != nil {
			return fmt.Errorf("failed to iterate over patterns: %w", err)
		}
		return decodeErr
	})
	if err != nil {
		return nil, err
	}

	return patterns, nil
}

// Runs lists the saved runs by id
func (b *BuntStore) Runs() ([]Run, error) {
	runs := make([]Run, 0)

	err := b.db.View(func(tx *buntdb.Tx) error {
		var decodeErr error
		err := tx.AscendKeys(runPrefix+"*", func(_, value string) bool {
			var run Run
			if err := json.Unmarshal([]byte(value), &run); err != nil {
				decodeErr = fmt.Errorf("failed to unmarshal run: %w", err)
				return false
			}
			runs = append(runs, run)
			return true
		})
		if err != nil {
			return fmt.Errorf("failed to iterate over runs: %w", err)
		}
		return decodeErr
	})
	if err != nil {
		return nil, err
	}

	return runs, nil
}

// Close closes the database
func (b *BuntStore) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}
