// Package report turns annotate results into summaries for people: a
// Markdown or HTML digest of the flagged words and a spreadsheet export.
package report

import (
	"math"
	"time"

	"composition-corrector/classifier"
	"composition-corrector/overlay"
	"composition-corrector/wordindex"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ConfidenceStats describes the recognizer confidence over all words.
type ConfidenceStats struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stdDev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Row is one flagged word.
type Row struct {
	Word       string                `json:"word"`
	Suggestion string                `json:"suggestion"`
	Category   string                `json:"category"`
	Tier       string                `json:"tier"`
	Confidence float64               `json:"confidence"`
	Box        wordindex.BoundingBox `json:"box"`
}

// Summary is the reportable digest of one annotated page.
type Summary struct {
	Title          string          `json:"title"`
	GeneratedAt    time.Time       `json:"generatedAt"`
	TotalWords     int             `json:"totalWords"`
	Clean          int             `json:"clean"`
	KnownErrors    int             `json:"knownErrors"`
	PossibleErrors int             `json:"possibleErrors"`
	Skipped        int             `json:"skipped"`
	Overflow       int             `json:"overflow"`
	Unmatched      int             `json:"unmatched"`
	Confidence     ConfidenceStats `json:"confidence"`
	Rows           []Row           `json:"rows"`
}

// Flagged is the number of words marked as known or possible errors.
func (s Summary) Flagged() int { return s.KnownErrors + s.PossibleErrors }

// Summarize counts the outcome of an annotate pass and computes confidence
// statistics over every classified word.
func Summarize(title string, result *overlay.Result) Summary {
	s := Summary{
		Title:       title,
		GeneratedAt: time.Now().UTC(),
		TotalWords:  len(result.Words),
		Skipped:     len(result.Skipped),
		Overflow:    result.Overflow,
		Unmatched:   len(result.Unmatched),
	}

	confidences := make([]float64, 0, len(result.Words))
	for _, cw := range result.Words {
		confidences = append(confidences, cw.Word.Confidence)
		if !cw.Flagged() {
			s.Clean++
			continue
		}
		switch cw.Category {
		case classifier.KnownError:
			s.KnownErrors++
		case classifier.PossibleError:
			s.PossibleErrors++
		}
		s.Rows = append(s.Rows, Row{
			Word:       cw.Word.Text,
			Suggestion: cw.Suggestion,
			Category:   cw.Category.String(),
			Tier:       cw.Tier.String(),
			Confidence: cw.Word.Confidence,
			Box:        cw.Word.BoundingBox,
		})
	}
	s.Confidence = confidenceStats(confidences)
	return s
}

func confidenceStats(values []float64) ConfidenceStats {
	if len(values) == 0 {
		return ConfidenceStats{}
	}
	mean, std := stat.MeanStdDev(values, nil)
	if len(values) < 2 || math.IsNaN(std) {
		std = 0
	}
	return ConfidenceStats{
		Mean:   mean,
		StdDev: std,
		Min:    floats.Min(values),
		Max:    floats.Max(values),
	}
}
