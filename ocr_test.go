package main

import (
	"context"
	"errors"
	"testing"

	"composition-corrector/ocr"
	"composition-corrector/wordindex"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProvider answers every page with fixed words, or blocks until the
// context ends when block is set.
type stubProvider struct {
	words []wordindex.RecognizedWord
	err   error
	block bool
	calls int
}

func (p *stubProvider) Recognize(ctx context.Context, imageContent []byte, pageNumber int) (*ocr.OCRResult, error) {
	p.calls++
	if p.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if p.err != nil {
		return nil, p.err
	}
	return &ocr.OCRResult{Words: p.words, Metadata: map[string]string{"provider": "stub"}}, nil
}

func TestProcessPageOCR(t *testing.T) {
	app := newTestApp(t)
	logger := logrus.NewEntry(log)

	_, err := app.ProcessPageOCR(context.Background(), pagePNG(t), 1, logger)
	assert.Error(t, err, "no provider configured")

	app.OCRProvider = &stubProvider{words: sampleWords()}
	words, err := app.ProcessPageOCR(context.Background(), pagePNG(t), 1, logger)
	require.NoError(t, err)
	assert.Len(t, words, 10)

	app.OCRProvider = &stubProvider{err: errors.New("quota exceeded")}
	_, err = app.ProcessPageOCR(context.Background(), pagePNG(t), 1, logger)
	assert.ErrorContains(t, err, "quota exceeded")
}

func TestAnnotateUsesOCRWhenNoWords(t *testing.T) {
	app := newTestApp(t)
	provider := &stubProvider{words: sampleWords()}
	app.OCRProvider = provider

	out, err := app.annotate(context.Background(), AnnotateInput{Source: "scan.png", Image: pagePNG(t)})
	require.NoError(t, err)
	assert.Equal(t, 1, provider.calls)
	assert.Equal(t, 3, out.Summary.Flagged())
	assert.Equal(t, "scan.png", out.Summary.Title, "title falls back to the source")
	require.NotNil(t, out.Run)
}

func TestAnnotateMergesDecodeErrors(t *testing.T) {
	app := newTestApp(t)
	app.Database = nil

	out, err := app.annotate(context.Background(), AnnotateInput{
		Source:   "essay.png",
		Image:    pagePNG(t),
		Words:    sampleWords(),
		HasWords: true,
		Invalid:  []*wordindex.InputError{{Index: 10, Text: "x", Reason: "missing bounding box"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Summary.Skipped)
	assert.Nil(t, out.Run, "no database, no history")
	assert.NotEmpty(t, out.PNG)
}
