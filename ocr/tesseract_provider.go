//go:build tesseract

package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"composition-corrector/wordindex"

	"github.com/otiai10/gosseract/v2"
	"github.com/sirupsen/logrus"
)

// TesseractProvider runs a local Tesseract engine through gosseract.
// Build with -tags tesseract; it needs libtesseract at link time.
type TesseractProvider struct {
	languages     []string
	minConfidence float64
}

func newTesseractProvider(config Config) (Provider, error) {
	languages := config.TesseractLanguages
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	return &TesseractProvider{
		languages:     languages,
		minConfidence: minConfidence(config),
	}, nil
}

// Recognize extracts word boxes at word granularity.
func (p *TesseractProvider) Recognize(ctx context.Context, imageContent []byte, pageNumber int) (*OCRResult, error) {
	logger := log.WithFields(logrus.Fields{
		"provider": "tesseract",
		"page":     pageNumber,
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(p.languages...); err != nil {
		return nil, fmt.Errorf("set languages: %w", err)
	}
	if err := client.SetImageFromBytes(imageContent); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		logger.WithError(err).Error("Tesseract recognition failed")
		return nil, fmt.Errorf("recognize text: %w", err)
	}
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("word boxes: %w", err)
	}

	result := &OCRResult{
		Text: strings.TrimSpace(text),
		Metadata: map[string]string{
			"provider":  "tesseract",
			"languages": strings.Join(p.languages, "+"),
		},
	}
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(imageContent)); err == nil {
		result.Width, result.Height = cfg.Width, cfg.Height
	}
	for _, b := range boxes {
		word := wordindex.RecognizedWord{
			Text:       strings.TrimSpace(b.Word),
			Confidence: b.Confidence,
			BoundingBox: wordindex.BoundingBox{
				Left:   b.Box.Min.X,
				Top:    b.Box.Min.Y,
				Width:  b.Box.Dx(),
				Height: b.Box.Dy(),
			},
		}
		if keepWord(word, p.minConfidence) {
			result.Words = append(result.Words, word)
		}
	}

	logger.WithField("num_words", len(result.Words)).Info("Successfully processed image with Tesseract")
	return result, nil
}
