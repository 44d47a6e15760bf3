package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/raykavin/patternrun/pkg/discovery"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

type runModel struct {
	ID        string `gorm:"primaryKey"`
	CreatedAt time.Time
	Patterns  int
}

func (runModel) TableName() string { return "runs" }

type patternModel struct {
	ID             uint   `gorm:"primaryKey"`
	RunID          string `gorm:"index:idx_run_rank,priority:1"`
	Rank           int    `gorm:"index:idx_run_rank,priority:2"`
	Key            string `gorm:"index"`
	Conditions     string
	Frequency      int
	AvgGain        float64
	AvgHoldingDays float64
	SuccessRate    float64
	Document       string
}

func (patternModel) TableName() string { return "patterns" }

func toModel(runID string, rank int, p discovery.Pattern) (patternModel, error) {
	document, err := json.Marshal(p)
	if err != nil {
		return patternModel{}, fmt.Errorf("failed to marshal pattern: %w", err)
	}
	return patternModel{
		RunID:          runID,
		Rank:           rank,
		Key:            p.Key,
		Conditions:     p.Conditions.String(),
		Frequency:      p.Frequency,
		AvgGain:        p.AvgGain,
		AvgHoldingDays: p.AvgHoldingDays,
		SuccessRate:    p.SuccessRate,
		Document:       string(document),
	}, nil
}

func fromModel(m patternModel) (discovery.Pattern, error) {
	var p discovery.Pattern
	if err := json.Unmarshal([]byte(m.Document), &p); err != nil {
		return discovery.Pattern{}, fmt.Errorf("failed to unmarshal pattern %d: %w", m.ID, err)
	}
	return p, nil
}

// SQLStore implements PatternStore on a SQL database via GORM
type SQLStore struct {
	db *gorm.DB
}

// FromSQL opens a SQL store on the given dialector and migrates its tables
func FromSQL(dialect gorm.Dialector, opts ...gorm.Option) (*SQLStore, error) {
	db, err := gorm.Open(dialect, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&runModel{}, &patternModel{}); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLStore{db: db}, nil
}

// SavePatterns replaces the patterns of runID inside one transaction
func (s *SQLStore) SavePatterns(runID string, patterns []discovery.Pattern) error {
	models := make([]patternModel, 0, len(patterns))
	for rank, p := range patterns {
		m, err := toModel(runID, rank+1, p)
		if err != nil {
			return err
		}
		models = append(models, m)
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("run_id = ?", runID).Delete(&patternModel{}).Error; err != nil {
			return fmt.Errorf("failed to delete patterns: %w", err)
		}

		var run runModel
		err := tx.First(&run, "id = ?", runID).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			run = runModel{ID: runID, CreatedAt: time.Now().UTC()}
		case err != nil:
			return fmt.Errorf("failed to load run: %w", err)
		}
		run.Patterns = len(patterns)
		if err := tx.Save(&run).Error; err != nil {
			return fmt.Errorf("failed to store run: %w", err)
		}

		if len(models) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(models, 100).Error; err != nil {
			return fmt.Errorf("failed to store patterns: %w", err)
		}
		return nil
	})
}

func (s *SQLStore) run(runID string) (runModel, error) {
	var run runModel
	if err := s.db.First(&run, "id = ?", runID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return runModel{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return runModel{}, fmt.Errorf("failed to load run: %w", err)
	}
	return run, nil
}

// Patterns loads the patterns of a run in rank order
func (s *SQLStore) Patterns(runID string) ([]discovery.Pattern, error) {
	return s.FrequentPatterns(runID, 0)
}

// FrequentPatterns loads the patterns of a run seen at least minFrequency times, in rank order
func (s *SQLStore) FrequentPatterns(runID string, minFrequency int) ([]discovery.Pattern, error) {
	if _, err := s.run(runID); err != nil {
		return nil, err
	}

	return s.PatternsWithQuery(func(db *gorm.DB) *gorm.DB {
		return db.Where("run_id = ? AND frequency >= ?", runID, minFrequency).Order("rank")
	})
}

// Runs lists the saved runs by id
func (s *SQLStore) Runs() ([]Run, error) {
	var models []runModel
	if err := s.db.Order("id").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch runs: %w", err)
	}

	return lo.Map(models, func(m runModel, _ int) Run {
		return Run{ID: m.ID, CreatedAt: m.CreatedAt, Patterns: m.Patterns}
	}), nil
}

// PatternsWithQuery runs a custom GORM query against the patterns table
func (s *SQLStore) PatternsWithQuery(query func(*gorm.DB) *gorm.DB) ([]discovery.Pattern, error) {
	var models []patternModel
	if err := query(s.db.Model(&patternModel{})).Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}

	patterns := make([]discovery.Pattern, 0, len(models))
	for _, m := range models {
		p, err := fromModel(m)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, p)
	}
	return patterns, nil
}

// Close closes the database connection
func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.Close()
}
