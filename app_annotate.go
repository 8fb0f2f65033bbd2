package main

import (
	"bytes"
	"context"
	"fmt"

	"composition-corrector/ocr"
	"composition-corrector/overlay"
	"composition-corrector/report"
	"composition-corrector/wordindex"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
)

// AnnotateInput is one page to annotate. When HasWords is false the page
// goes through the configured recognizer first.
type AnnotateInput struct {
	Source   string
	Title    string
	Image    []byte // encoded image or PDF
	Words    []wordindex.RecognizedWord
	HasWords bool
	// Invalid holds words already rejected while decoding the input.
	Invalid  []*wordindex.InputError
	Feedback []overlay.Feedback
}

// AnnotateOutput is the annotated page and what was recorded about it.
type AnnotateOutput struct {
	Result  *overlay.Result
	Summary report.Summary
	PNG     []byte
	Run     *AnnotationRun
}

// annotateLogger returns a logger with source context
func annotateLogger(source string) *logrus.Entry {
	return log.WithField("source", source)
}

// annotate recognizes (if needed), classifies and draws one page, then
// stores the run in the history.
func (app *App) annotate(ctx context.Context, in AnnotateInput) (*AnnotateOutput, error) {
	logger := annotateLogger(in.Source)

	page, pageBytes, err := ocr.LoadPage(in.Image)
	if err != nil {
		return nil, err
	}

	words := in.Words
	if !in.HasWords {
		words, err = app.ProcessPageOCR(ctx, pageBytes, 1, logger)
		if err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := app.Pipeline().Annotate(page, words, in.Feedback...)
	if err != nil {
		return nil, fmt.Errorf("annotate %s: %w", in.Source, err)
	}
	if len(in.Invalid) > 0 {
		result.Skipped = append(append([]*wordindex.InputError{}, in.Invalid...), result.Skipped...)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, result.Image, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode annotated page: %w", err)
	}

	title := in.Title
	if title == "" {
		title = in.Source
	}
	out := &AnnotateOutput{
		Result:  result,
		Summary: report.Summarize(title, result),
		PNG:     buf.Bytes(),
	}

	if app.Database != nil {
		run, err := InsertRun(app.Database, in.Source, out.Summary)
		if err != nil {
			logger.WithError(err).Error("Failed to store annotation run")
		} else {
			out.Run = run
		}
	}

	logger.WithFields(logrus.Fields{
		"words":    out.Summary.TotalWords,
		"flagged":  out.Summary.Flagged(),
		"skipped":  out.Summary.Skipped,
		"overflow": out.Summary.Overflow,
	}).Info("Annotated page")
	return out, nil
}
