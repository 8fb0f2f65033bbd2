package overlay

import (
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"

	"composition-corrector/annotation"
	"composition-corrector/classifier"
	"composition-corrector/wordindex"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPipeline(t *testing.T, opts ...Option) *Pipeline {
	t.Helper()
	ref, err := classifier.DefaultReferenceData()
	require.NoError(t, err)
	p, err := New(ref, nil, opts...)
	require.NoError(t, err)
	return p
}

func sampleWords() []wordindex.RecognizedWord {
	texts := []string{"Last", "sumer", "My", "familly", "went", "to", "the", "beach", "gud", "vacation"}
	out := make([]wordindex.RecognizedWord, len(texts))
	for i, text := range texts {
		out[i] = wordindex.RecognizedWord{
			Text:        text,
			Confidence:  91,
			BoundingBox: wordindex.BoundingBox{Left: 20 + (i%4)*90, Top: 30 + (i/4)*40, Width: 70, Height: 20},
		}
	}
	return out
}

func page() *image.NRGBA {
	return imaging.New(600, 300, color.White)
}

func TestAnnotate(t *testing.T) {
	p := newTestPipeline(t)
	src := page()
	words := sampleWords()

	result, err := p.Annotate(src, words)
	require.NoError(t, err)

	require.Len(t, result.Words, len(words))
	flagged := result.Flagged()
	require.Len(t, flagged, 3)
	assert.Equal(t, "summer", flagged[0].Suggestion)
	assert.Equal(t, "family", flagged[1].Suggestion)
	assert.Equal(t, "good", flagged[2].Suggestion)
	assert.Equal(t, classifier.TierMedium, flagged[2].Tier)

	require.Len(t, result.Comments, 3)
	assert.Zero(t, result.Overflow)
	assert.Empty(t, result.Skipped)

	assert.Equal(t, src.Bounds(), result.Image.Bounds())
	assert.Equal(t, color.NRGBA{R: 255, G: 255, B: 255, A: 255}, src.NRGBAAt(600-10, result.Comments[0].Rect.Min.Y+2), "source page untouched")
	assert.NotEqual(t, src.Pix, result.Image.Pix)
}

func TestAnnotateSkipsMalformedWords(t *testing.T) {
	p := newTestPipeline(t)
	words := sampleWords()
	words[1].BoundingBox.Width = -4 // "sumer"

	result, err := p.Annotate(page(), words)
	require.NoError(t, err)

	require.Len(t, result.Skipped, 1)
	assert.Equal(t, 1, result.Skipped[0].Index)
	assert.Equal(t, classifier.KnownError, result.Words[1].Category, "still classified")
	assert.Len(t, result.Comments, 2)
}

func TestAnnotateFeedback(t *testing.T) {
	p := newTestPipeline(t)
	feedback := []Feedback{
		{Word: "beach", Category: annotation.Suggestion, Comment: "Good descriptive word!"},
		{Word: "MY", Category: annotation.Insertion},
		{Word: "castle", Category: annotation.Suggestion, Comment: "not on this page"},
	}

	result, err := p.Annotate(page(), sampleWords(), feedback...)
	require.NoError(t, err)

	require.Len(t, result.Unmatched, 1)
	assert.Equal(t, "castle", result.Unmatched[0].Word)

	// Three automatic flags plus one commented feedback item.
	require.Len(t, result.Comments, 4)
	labels := make([]string, 0, len(result.Comments))
	for _, c := range result.Comments {
		labels = append(labels, c.Label)
	}
	assert.Contains(t, labels, "Good descriptive word!")
	for i := range result.Comments {
		for j := i + 1; j < len(result.Comments); j++ {
			assert.False(t, result.Comments[i].Rect.Overlaps(result.Comments[j].Rect))
		}
	}
}

func TestAnnotateReportsOverflow(t *testing.T) {
	p := newTestPipeline(t)
	var words []wordindex.RecognizedWord
	for i := 0; i < 12; i++ {
		words = append(words, wordindex.RecognizedWord{
			Text:        "recieve",
			Confidence:  70,
			BoundingBox: wordindex.BoundingBox{Left: 10, Top: 40 + i, Width: 60, Height: 15},
		})
	}

	result, err := p.Annotate(imaging.New(400, 120, color.White), words)
	require.NoError(t, err)
	assert.Len(t, result.Comments, 12)
	assert.Positive(t, result.Overflow)
	assert.Equal(t, 120, result.Image.Bounds().Dy())
}

func TestAnnotateConcurrentUse(t *testing.T) {
	p := newTestPipeline(t, WithMarginWidth(180))
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := p.Annotate(page(), sampleWords())
			assert.NoError(t, err)
			assert.Len(t, result.Comments, 3)
			assert.Equal(t, 600-180, result.Comments[0].Rect.Min.X)
		}()
	}
	wg.Wait()
}

func TestNewPipelineRequiresReferenceData(t *testing.T) {
	_, err := New(nil, nil)
	var cfgErr *classifier.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))

	_, err = NewPipeline(nil)
	assert.True(t, errors.As(err, &cfgErr))

	p := newTestPipeline(t)
	_, err = p.Annotate(nil, sampleWords())
	assert.Error(t, err)
}
