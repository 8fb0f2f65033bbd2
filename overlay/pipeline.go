// Package overlay classifies recognized words and draws the resulting
// correction marks and margin comments onto a copy of the page.
package overlay

import (
	"errors"
	"fmt"
	"image"

	"composition-corrector/annotation"
	"composition-corrector/classifier"
	"composition-corrector/wordindex"

	"github.com/sirupsen/logrus"
)

var log = logrus.New()

// SetLogLevel sets the logging level for the overlay package.
func SetLogLevel(level logrus.Level) {
	log.SetLevel(level)
}

// Feedback is an explicit remark attached to a word by a reviewer, drawn in
// the given catalog category alongside the automatic flags.
type Feedback struct {
	Word     string `json:"word"`
	Category string `json:"category"`
	Comment  string `json:"comment,omitempty"`
}

// Result is everything one annotate pass produced.
type Result struct {
	Image    *image.NRGBA
	Words    []classifier.ClassifiedWord
	Comments []annotation.MarginComment
	// Skipped lists malformed words that were classified but not drawn.
	Skipped []*wordindex.InputError
	// Overflow counts margin comments stacked below the bottom of the page.
	Overflow  int
	Unmatched []Feedback
}

// Flagged returns the words classified as known or possible errors.
func (r *Result) Flagged() []classifier.ClassifiedWord {
	var out []classifier.ClassifiedWord
	for _, cw := range r.Words {
		if cw.Flagged() {
			out = append(out, cw)
		}
	}
	return out
}

// Pipeline runs classification and rendering. It keeps no per-call state and
// may be shared between goroutines.
type Pipeline struct {
	classifier  *classifier.Classifier
	catalog     *annotation.Catalog
	marginWidth int
	margin      *annotation.MarginEngine
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithCatalog replaces the default style catalog.
func WithCatalog(catalog *annotation.Catalog) Option {
	return func(p *Pipeline) { p.catalog = catalog }
}

// WithMarginWidth sets the width of the comment column.
func WithMarginWidth(width int) Option {
	return func(p *Pipeline) { p.marginWidth = width }
}

// NewPipeline builds a pipeline around an already configured classifier.
func NewPipeline(c *classifier.Classifier, opts ...Option) (*Pipeline, error) {
	if c == nil {
		return nil, &classifier.ConfigurationError{Source: "pipeline", Err: errors.New("classifier is required")}
	}
	p := &Pipeline{classifier: c}
	for _, opt := range opts {
		opt(p)
	}
	if p.catalog == nil {
		p.catalog = annotation.DefaultCatalog()
	}
	p.margin = annotation.NewMarginEngine(p.catalog)
	if p.marginWidth > 0 {
		p.margin.MarginWidth = p.marginWidth
	}
	return p, nil
}

// New is a convenience constructor from reference data and classifier
// options.
func New(ref *classifier.ReferenceData, classifierOpts []classifier.Option, opts ...Option) (*Pipeline, error) {
	c, err := classifier.New(ref, classifierOpts...)
	if err != nil {
		return nil, err
	}
	return NewPipeline(c, opts...)
}

// Classifier returns the pipeline's classifier.
func (p *Pipeline) Classifier() *classifier.Classifier { return p.classifier }

// Annotate classifies every word, marks each flagged one on a working copy
// of page and lays out all margin comments in a single pass so they can be
// stacked without overlapping. page itself is never modified.
func (p *Pipeline) Annotate(page image.Image, words []wordindex.RecognizedWord, feedback ...Feedback) (*Result, error) {
	if page == nil {
		return nil, fmt.Errorf("page image is required")
	}

	index := wordindex.Build(words)
	canvas := annotation.NewCanvas(page)
	bounds := canvas.Bounds()

	result := &Result{Words: p.classifier.ClassifyAll(index.Words())}

	var drawable []classifier.ClassifiedWord
	for i, cw := range result.Words {
		if err := cw.Word.Validate(i); err != nil {
			var inputErr *wordindex.InputError
			if errors.As(err, &inputErr) {
				result.Skipped = append(result.Skipped, inputErr)
			}
			log.WithError(err).WithField("index", i).Warn("Skipping malformed word")
			continue
		}
		if !cw.Flagged() {
			continue
		}
		canvas.Draw(cw.Word.BoundingBox, p.catalog.StyleForTier(cw.Tier))
		drawable = append(drawable, cw)
	}
	notes := p.margin.NotesFor(drawable)

	for _, fb := range feedback {
		matches := index.FindByText(fb.Word, false)
		if len(matches) == 0 {
			log.WithField("word", fb.Word).Debug("Feedback word not found")
			result.Unmatched = append(result.Unmatched, fb)
			continue
		}
		target := matches[0]
		if err := target.Validate(-1); err != nil {
			log.WithError(err).WithField("word", fb.Word).Warn("Feedback target has no usable box")
			result.Unmatched = append(result.Unmatched, fb)
			continue
		}
		style := p.catalog.StyleFor(fb.Category)
		canvas.Draw(target.BoundingBox, style)
		if fb.Comment != "" {
			notes = append(notes, annotation.Note{Label: fb.Comment, Box: target.BoundingBox, Color: style.Color})
		}
	}

	placement := p.margin.LayoutNotes(notes, bounds.Dx(), bounds.Dy())
	p.margin.Render(canvas, placement.Comments)
	if placement.Overflow > 0 {
		log.WithFields(logrus.Fields{
			"overflow": placement.Overflow,
			"comments": len(placement.Comments),
		}).Warn("Margin comments run past the bottom of the page")
	}

	result.Image = canvas.Image()
	result.Comments = placement.Comments
	result.Overflow = placement.Overflow
	return result, nil
}
