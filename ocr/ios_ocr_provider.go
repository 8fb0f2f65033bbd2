package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"composition-corrector/wordindex"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
)

// iOS-OCR-Server does not report per-box confidence.
const iosBoxConfidence = 100

// IOSOCRProvider implements OCR using iOS-OCR-Server
type IOSOCRProvider struct {
	baseURL       string
	httpClient    *retryablehttp.Client
	minConfidence float64
}

// newIOSOCRProvider creates a new iOS-OCR-Server provider
func newIOSOCRProvider(config Config) (*IOSOCRProvider, error) {
	logger := log.WithFields(logrus.Fields{
		"url": config.IOSOCRServerURL,
	})
	logger.Info("Creating new iOS-OCR-Server provider")

	if config.IOSOCRServerURL == "" {
		logger.Error("Missing required iOS-OCR-Server URL")
		return nil, fmt.Errorf("missing required iOS-OCR-Server URL")
	}

	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.RetryWaitMin = 1 * time.Second
	client.RetryWaitMax = 10 * time.Second
	client.Logger = logger

	provider := &IOSOCRProvider{
		baseURL:       strings.TrimRight(config.IOSOCRServerURL, "/"),
		httpClient:    client,
		minConfidence: minConfidence(config),
	}

	logger.Info("Successfully initialized iOS-OCR-Server provider")
	return provider, nil
}

// Recognize sends the image content to the iOS-OCR-Server for OCR
func (p *IOSOCRProvider) Recognize(ctx context.Context, imageContent []byte, pageNumber int) (*OCRResult, error) {
	logger := log.WithFields(logrus.Fields{
		"provider":    "ios_ocr",
		"url":         p.baseURL,
		"page_number": pageNumber,
		"data_size":   len(imageContent),
	})
	logger.Debug("Starting iOS-OCR-Server processing")

	var requestBody bytes.Buffer
	writer := multipart.NewWriter(&requestBody)

	part, err := writer.CreateFormFile("file", "page.png")
	if err != nil {
		logger.WithError(err).Error("Failed to create form file")
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, bytes.NewReader(imageContent)); err != nil {
		logger.WithError(err).Error("Failed to copy image content to form")
		return nil, fmt.Errorf("failed to copy image content: %w", err)
	}
	if err := writer.Close(); err != nil {
		logger.WithError(err).Error("Failed to close multipart writer")
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, "POST", p.baseURL+"/ocr", &requestBody)
	if err != nil {
		logger.WithError(err).Error("Failed to create HTTP request")
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	logger.Debug("Sending request to iOS-OCR-Server")
	resp, err := p.httpClient.Do(req)
	if err != nil {
		logger.WithError(err).Error("Failed to send request to iOS-OCR-Server")
		return nil, fmt.Errorf("error sending request to iOS-OCR-Server: %w", err)
	}
	defer resp.Body.Close()

	respBodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		logger.WithError(err).Error("Failed to read iOS-OCR-Server response body")
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		logger.WithFields(logrus.Fields{
			"status_code": resp.StatusCode,
			"response":    string(respBodyBytes),
		}).Error("iOS-OCR-Server returned non-200 status")
		return nil, fmt.Errorf("iOS-OCR-Server returned status %d: %s", resp.StatusCode, string(respBodyBytes))
	}

	var ocrResponse IOSOCRResponse
	if err := json.Unmarshal(respBodyBytes, &ocrResponse); err != nil {
		logger.WithError(err).WithField("response", string(respBodyBytes)).Error("Failed to parse iOS-OCR-Server response")
		return nil, fmt.Errorf("failed to parse iOS-OCR-Server response: %w", err)
	}

	if !ocrResponse.Success {
		logger.Error("iOS-OCR-Server processing failed")
		return nil, fmt.Errorf("iOS-OCR-Server processing failed")
	}

	words := ocrResponse.words(p.minConfidence)
	logger.WithFields(logrus.Fields{
		"text_length":  len(ocrResponse.OCRResult),
		"num_boxes":    len(ocrResponse.OCRBoxes),
		"num_words":    len(words),
		"image_width":  ocrResponse.ImageWidth,
		"image_height": ocrResponse.ImageHeight,
	}).Info("Successfully processed image with iOS-OCR-Server")

	return &OCRResult{
		Text:   ocrResponse.OCRResult,
		Words:  words,
		Width:  ocrResponse.ImageWidth,
		Height: ocrResponse.ImageHeight,
		Metadata: map[string]string{
			"provider":     "ios_ocr",
			"image_width":  fmt.Sprintf("%d", ocrResponse.ImageWidth),
			"image_height": fmt.Sprintf("%d", ocrResponse.ImageHeight),
			"num_boxes":    fmt.Sprintf("%d", len(ocrResponse.OCRBoxes)),
		},
	}, nil
}

// IOSOCRResponse represents the response from iOS-OCR-Server
type IOSOCRResponse struct {
	Message     string      `json:"message"`
	ImageWidth  int         `json:"image_width"`
	OCRResult   string      `json:"ocr_result"`
	OCRBoxes    []IOSOCRBox `json:"ocr_boxes"`
	Success     bool        `json:"success"`
	ImageHeight int         `json:"image_height"`
}

// IOSOCRBox represents a text bounding box from iOS-OCR-Server. Boxes may
// cover several words; coordinates are fractions of the image size when all
// of them are at most 1, pixels otherwise.
type IOSOCRBox struct {
	Text string  `json:"text"`
	W    float64 `json:"w"`
	X    float64 `json:"x"`
	H    float64 `json:"h"`
	Y    float64 `json:"y"`
}

// words splits every box into words, dividing the box width in proportion
// to each word's length.
func (r IOSOCRResponse) words(floor float64) []wordindex.RecognizedWord {
	var out []wordindex.RecognizedWord
	for _, b := range r.OCRBoxes {
		x, y, w, h := b.X, b.Y, b.W, b.H
		if x <= 1 && y <= 1 && w <= 1 && h <= 1 {
			x, w = x*float64(r.ImageWidth), w*float64(r.ImageWidth)
			y, h = y*float64(r.ImageHeight), h*float64(r.ImageHeight)
		}

		fields := strings.Fields(b.Text)
		total := len([]rune(strings.Join(fields, " ")))
		if total == 0 {
			continue
		}
		perRune := w / float64(total)
		offset := 0
		for _, field := range fields {
			n := len([]rune(field))
			left := x + float64(offset)*perRune
			word := wordindex.RecognizedWord{
				Text:        field,
				Confidence:  iosBoxConfidence,
				BoundingBox: wordindex.BoxFromCorners(left, y, left+float64(n)*perRune, y+h),
			}
			if keepWord(word, floor) {
				out = append(out, word)
			}
			offset += n + 1
		}
	}
	return out
}
