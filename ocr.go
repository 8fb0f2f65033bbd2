package main

import (
	"context"
	"fmt"

	"composition-corrector/wordindex"

	"github.com/sirupsen/logrus"
)

// ProcessPageOCR runs the configured recognizer over one page image and
// returns its words.
func (app *App) ProcessPageOCR(ctx context.Context, content []byte, pageNumber int, logger *logrus.Entry) ([]wordindex.RecognizedWord, error) {
	if app.OCRProvider == nil {
		return nil, fmt.Errorf("no recognized words supplied and no OCR provider configured")
	}
	logger.Info("Starting OCR processing")

	result, err := app.OCRProvider.Recognize(ctx, content, pageNumber)
	if err != nil {
		return nil, fmt.Errorf("error performing OCR for page %d: %w", pageNumber, err)
	}

	logger.WithFields(logrus.Fields{
		"words":    len(result.Words),
		"provider": result.Metadata["provider"],
	}).Info("OCR processing completed successfully")
	return result.Words, nil
}
