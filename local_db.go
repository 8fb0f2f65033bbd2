package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"composition-corrector/report"
	"composition-corrector/wordindex"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// AnnotationRun is one annotated page in the run history.
type AnnotationRun struct {
	ID             uint          `gorm:"primaryKey" json:"id"`
	Source         string        `gorm:"size:1024;not null" json:"source"` // upload name, job id or watched file
	Title          string        `gorm:"size:255" json:"title"`
	CreatedAt      time.Time     `json:"created_at"`
	TotalWords     int           `json:"total_words"`
	Clean          int           `json:"clean"`
	KnownErrors    int           `json:"known_errors"`
	PossibleErrors int           `json:"possible_errors"`
	Skipped        int           `json:"skipped"`
	Overflow       int           `json:"overflow"`
	Unmatched      int           `json:"unmatched"`
	ConfidenceMean float64       `json:"confidence_mean"`
	ConfidenceStd  float64       `json:"confidence_std"`
	ConfidenceMin  float64       `json:"confidence_min"`
	ConfidenceMax  float64       `json:"confidence_max"`
	FlaggedWords   []FlaggedWord `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE" json:"flagged_words,omitempty"`
}

// FlaggedWord is one known or possible error of a run.
type FlaggedWord struct {
	ID         uint    `gorm:"primaryKey" json:"id"`
	RunID      uint    `gorm:"index;not null" json:"run_id"`
	Position   int     `gorm:"not null" json:"position"`
	Word       string  `gorm:"size:255;not null" json:"word"`
	Suggestion string  `gorm:"size:255" json:"suggestion"`
	Category   string  `gorm:"size:32;not null" json:"category"`
	Tier       string  `gorm:"size:16" json:"tier"`
	Confidence float64 `json:"confidence"`
	Left       int     `json:"left"`
	Top        int     `json:"top"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
}

// openDB opens the sqlite database at path and migrates the schema.
func openDB(path string) (*gorm.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	// sqlite allows a single writer; batch and job workers share this handle.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get database handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&AnnotationRun{}, &FlaggedWord{}); err != nil {
		return nil, fmt.Errorf("migrate database schema: %w", err)
	}
	return db, nil
}

// InitializeDB initializes the SQLite database and migrates the schema
func InitializeDB(path string) *gorm.DB {
	db, err := openDB(path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	return db
}

// runFromSummary converts a report summary into a storable run.
func runFromSummary(source string, s report.Summary) AnnotationRun {
	run := AnnotationRun{
		Source:         source,
		Title:          s.Title,
		TotalWords:     s.TotalWords,
		Clean:          s.Clean,
		KnownErrors:    s.KnownErrors,
		PossibleErrors: s.PossibleErrors,
		Skipped:        s.Skipped,
		Overflow:       s.Overflow,
		Unmatched:      s.Unmatched,
		ConfidenceMean: s.Confidence.Mean,
		ConfidenceStd:  s.Confidence.StdDev,
		ConfidenceMin:  s.Confidence.Min,
		ConfidenceMax:  s.Confidence.Max,
	}
	for i, r := range s.Rows {
		run.FlaggedWords = append(run.FlaggedWords, FlaggedWord{
			Position:   i,
			Word:       r.Word,
			Suggestion: r.Suggestion,
			Category:   r.Category,
			Tier:       r.Tier,
			Confidence: r.Confidence,
			Left:       r.Box.Left,
			Top:        r.Box.Top,
			Width:      r.Box.Width,
			Height:     r.Box.Height,
		})
	}
	return run
}

// Summary rebuilds the report summary of a stored run.
func (r AnnotationRun) Summary() report.Summary {
	s := report.Summary{
		Title:          r.Title,
		GeneratedAt:    r.CreatedAt,
		TotalWords:     r.TotalWords,
		Clean:          r.Clean,
		KnownErrors:    r.KnownErrors,
		PossibleErrors: r.PossibleErrors,
		Skipped:        r.Skipped,
		Overflow:       r.Overflow,
		Unmatched:      r.Unmatched,
		Confidence: report.ConfidenceStats{
			Mean:   r.ConfidenceMean,
			StdDev: r.ConfidenceStd,
			Min:    r.ConfidenceMin,
			Max:    r.ConfidenceMax,
		},
	}
	for _, w := range r.FlaggedWords {
		s.Rows = append(s.Rows, report.Row{
			Word:       w.Word,
			Suggestion: w.Suggestion,
			Category:   w.Category,
			Tier:       w.Tier,
			Confidence: w.Confidence,
			Box:        wordindex.BoundingBox{Left: w.Left, Top: w.Top, Width: w.Width, Height: w.Height},
		})
	}
	return s
}

// InsertRun stores a run together with its flagged words.
func InsertRun(db *gorm.DB, source string, s report.Summary) (*AnnotationRun, error) {
	run := runFromSummary(source, s)
	if err := db.Create(&run).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

// GetAllRuns lists runs, newest first, without their words.
func GetAllRuns(db *gorm.DB) ([]AnnotationRun, error) {
	var runs []AnnotationRun
	result := db.Order("id desc").Find(&runs)
	return runs, result.Error
}

// GetRun loads one run with its flagged words in position order.
func GetRun(db *gorm.DB, id uint) (*AnnotationRun, error) {
	var run AnnotationRun
	result := db.Preload("FlaggedWords", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("position asc")
	}).First(&run, id)
	if result.Error != nil {
		return nil, result.Error
	}
	return &run, nil
}
