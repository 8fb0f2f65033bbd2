// Package ocr wraps the text recognizers that turn a page image into words
// with bounding boxes, and the decoders for word data recognized elsewhere.
package ocr

import (
	"context"
	"fmt"

	"composition-corrector/wordindex"

	"github.com/gardar/ocrchestra/pkg/hocr"
	"github.com/sirupsen/logrus"
)

var log = logrus.New()

// DefaultMinConfidence drops recognizer output at or below this confidence.
const DefaultMinConfidence = 30

// OCRResult holds the output from OCR processing
type OCRResult struct {
	// Plain text output
	Text string

	// Words with boxes in image pixel coordinates, in reading order
	Words []wordindex.RecognizedWord

	// Dimensions of the recognized image, when the provider reports them
	Width  int
	Height int

	// hOCR Page data (optional, if provider supports it)
	HOCRPage *hocr.Page

	// Additional provider-specific metadata
	Metadata map[string]string
}

// Provider defines the interface for OCR processing
type Provider interface {
	Recognize(ctx context.Context, imageContent []byte, pageNumber int) (*OCRResult, error)
}

// Config holds the OCR provider configuration
type Config struct {
	// Provider type ("ios_ocr", "azure", "google_vision", "google_docai", "tesseract")
	Provider string

	// Words with confidence at or below this are dropped (0-100). Nil
	// selects DefaultMinConfidence; zero keeps every word.
	MinConfidence *float64

	// iOS-OCR-Server settings
	IOSOCRServerURL string

	// Google Document AI settings
	GoogleProjectID   string
	GoogleLocation    string
	GoogleProcessorID string

	// Google Cloud Vision settings
	GoogleVisionAPIKey   string
	GoogleVisionEndpoint string // Optional, defaults to the public endpoint

	// Azure Document Intelligence settings
	AzureEndpoint string
	AzureAPIKey   string
	AzureModelID  string // Optional, defaults to "prebuilt-read"
	AzureTimeout  int    // Optional, defaults to 120 seconds

	// Tesseract settings
	TesseractLanguages []string // Optional, defaults to "eng"

	// Throttle requests to the provider, 0 disables
	RequestsPerMinute int
}

// NewProvider creates a new OCR provider based on configuration
func NewProvider(config Config) (Provider, error) {
	log.Info("Initializing OCR provider: ", config.Provider)

	var (
		provider Provider
		err      error
	)
	switch config.Provider {
	case "ios_ocr":
		provider, err = newIOSOCRProvider(config)

	case "azure":
		if config.AzureEndpoint == "" || config.AzureAPIKey == "" {
			return nil, fmt.Errorf("missing required Azure Document Intelligence configuration")
		}
		provider, err = newAzureProvider(config)

	case "google_vision":
		if config.GoogleVisionAPIKey == "" {
			return nil, fmt.Errorf("missing required Google Vision API key")
		}
		provider, err = newGoogleVisionProvider(config)

	case "google_docai":
		if config.GoogleProjectID == "" || config.GoogleLocation == "" || config.GoogleProcessorID == "" {
			return nil, fmt.Errorf("missing required Google Document AI configuration")
		}
		log.WithFields(logrus.Fields{
			"location":     config.GoogleLocation,
			"processor_id": config.GoogleProcessorID,
		}).Info("Using Google Document AI provider")
		provider, err = newGoogleDocAIProvider(config)

	case "tesseract":
		log.WithField("languages", config.TesseractLanguages).Info("Using Tesseract provider")
		provider, err = newTesseractProvider(config)

	default:
		return nil, fmt.Errorf("unsupported OCR provider: %s", config.Provider)
	}
	if err != nil {
		return nil, err
	}

	if config.RequestsPerMinute > 0 {
		provider = NewRateLimitedProvider(provider, config.RequestsPerMinute)
	}
	return provider, nil
}

// SetLogLevel sets the logging level for the OCR package
func SetLogLevel(level logrus.Level) {
	log.SetLevel(level)
}

func minConfidence(config Config) float64 {
	if config.MinConfidence == nil {
		return DefaultMinConfidence
	}
	return *config.MinConfidence
}

// keepWord reports whether a recognized word is worth passing on: it has
// text, a box, and clears the confidence floor.
func keepWord(w wordindex.RecognizedWord, floor float64) bool {
	return w.Text != "" && w.BoundingBox.Width > 0 && w.BoundingBox.Height > 0 && w.Confidence > floor
}

// isImageMIMEType checks if the given MIME type is a supported image type
func isImageMIMEType(mimeType string) bool {
	supportedTypes := map[string]bool{
		"image/jpeg": true,
		"image/jpg":  true,
		"image/png":  true,
		"image/tiff": true,
		"image/bmp":  true,
		"image/gif":  true,
		"image/webp": true,
	}
	return supportedTypes[mimeType]
}
