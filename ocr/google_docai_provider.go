package ocr

import (
	"context"
	"fmt"
	"strings"

	"composition-corrector/wordindex"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gardar/ocrchestra/pkg/hocr"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

// GoogleDocAIProvider implements OCR using Google Document AI
type GoogleDocAIProvider struct {
	projectID     string
	location      string
	processorID   string
	client        *documentai.DocumentProcessorClient
	minConfidence float64
}

func newGoogleDocAIProvider(config Config) (*GoogleDocAIProvider, error) {
	logger := log.WithFields(logrus.Fields{
		"location":     config.GoogleLocation,
		"processor_id": config.GoogleProcessorID,
	})
	logger.Info("Creating new Google Document AI provider")

	ctx := context.Background()
	endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", config.GoogleLocation)

	client, err := documentai.NewDocumentProcessorClient(ctx, option.WithEndpoint(endpoint))
	if err != nil {
		logger.WithError(err).Error("Failed to create Document AI client")
		return nil, fmt.Errorf("error creating Document AI client: %w", err)
	}

	provider := &GoogleDocAIProvider{
		projectID:     config.GoogleProjectID,
		location:      config.GoogleLocation,
		processorID:   config.GoogleProcessorID,
		client:        client,
		minConfidence: minConfidence(config),
	}

	logger.Info("Successfully initialized Google Document AI provider")
	return provider, nil
}

// Recognize sends the image to the configured Document AI processor.
func (p *GoogleDocAIProvider) Recognize(ctx context.Context, imageContent []byte, pageNumber int) (*OCRResult, error) {
	logger := log.WithFields(logrus.Fields{
		"project_id":   p.projectID,
		"location":     p.location,
		"processor_id": p.processorID,
		"page":         pageNumber,
	})
	logger.Debug("Starting Document AI processing")

	mtype := mimetype.Detect(imageContent)
	logger.WithField("mime_type", mtype.String()).Debug("Detected file type")

	if !isImageMIMEType(mtype.String()) {
		logger.WithField("mime_type", mtype.String()).Error("Unsupported file type")
		return nil, fmt.Errorf("unsupported file type: %s", mtype.String())
	}

	name := fmt.Sprintf("projects/%s/locations/%s/processors/%s", p.projectID, p.location, p.processorID)

	req := &documentaipb.ProcessRequest{
		Name: name,
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  imageContent,
				MimeType: mtype.String(),
			},
		},
	}

	logger.Debug("Sending request to Document AI")
	resp, err := p.client.ProcessDocument(ctx, req)
	if err != nil {
		logger.WithError(err).Error("Failed to process document")
		return nil, fmt.Errorf("error processing document: %w", err)
	}

	if resp == nil || resp.Document == nil {
		logger.Error("Received nil response or document from Document AI")
		return nil, fmt.Errorf("received nil response or document from Document AI")
	}

	if resp.Document.Error != nil {
		logger.WithField("error", resp.Document.Error.Message).Error("Document processing error")
		return nil, fmt.Errorf("document processing error: %s", resp.Document.Error.Message)
	}

	result := docAIResult(resp.Document, p.minConfidence)
	result.Metadata["mime_type"] = mtype.String()
	result.Metadata["processor_id"] = p.processorID

	logger.WithFields(logrus.Fields{
		"content_length": len(result.Text),
		"num_words":      len(result.Words),
	}).Info("Successfully processed document")
	return result, nil
}

// docAIResult converts the first page of a Document AI response. Tokens
// become words; their normalized vertices are scaled by the page dimension.
func docAIResult(doc *documentaipb.Document, floor float64) *OCRResult {
	result := &OCRResult{
		Text: doc.GetText(),
		Metadata: map[string]string{
			"provider":   "google_docai",
			"page_count": fmt.Sprintf("%d", len(doc.GetPages())),
		},
	}

	pages := doc.GetPages()
	if len(pages) == 0 {
		return result
	}
	page := pages[0]
	if langs := page.GetDetectedLanguages(); len(langs) > 0 {
		result.Metadata["lang_code"] = langs[0].GetLanguageCode()
	}

	width := float64(page.GetDimension().GetWidth())
	height := float64(page.GetDimension().GetHeight())
	result.Width, result.Height = int(width), int(height)

	hocrLine := hocr.Line{ID: "line_1_1"}
	for i, token := range page.GetTokens() {
		layout := token.GetLayout()
		text := strings.TrimSpace(anchorText(doc.GetText(), layout.GetTextAnchor()))
		box, ok := layoutBox(layout.GetBoundingPoly(), width, height)
		if !ok {
			continue
		}
		word := wordindex.RecognizedWord{
			Text:        text,
			Confidence:  float64(layout.GetConfidence()) * 100,
			BoundingBox: box,
		}
		if !keepWord(word, floor) {
			continue
		}
		result.Words = append(result.Words, word)
		hocrLine.Words = append(hocrLine.Words, hocr.Word{
			ID:         fmt.Sprintf("word_1_%d", i+1),
			Text:       word.Text,
			BBox:       hocr.NewBoundingBox(float64(box.Left), float64(box.Top), float64(box.X2()), float64(box.Y2())),
			Confidence: word.Confidence,
		})
	}

	result.HOCRPage = &hocr.Page{
		ID:         "page_1",
		PageNumber: 1,
		BBox:       hocr.NewBoundingBox(0, 0, width, height),
		Lines:      []hocr.Line{hocrLine},
	}
	return result
}

func anchorText(text string, anchor *documentaipb.Document_TextAnchor) string {
	var b strings.Builder
	for _, seg := range anchor.GetTextSegments() {
		start, end := int(seg.GetStartIndex()), int(seg.GetEndIndex())
		if start < 0 || end > len(text) || start >= end {
			continue
		}
		b.WriteString(text[start:end])
	}
	return b.String()
}

func layoutBox(poly *documentaipb.BoundingPoly, width, height float64) (wordindex.BoundingBox, bool) {
	var coords []float64
	if nv := poly.GetNormalizedVertices(); len(nv) > 0 {
		for _, v := range nv {
			coords = append(coords, float64(v.GetX())*width, float64(v.GetY())*height)
		}
	} else {
		for _, v := range poly.GetVertices() {
			coords = append(coords, float64(v.GetX()), float64(v.GetY()))
		}
	}
	return wordindex.BoxFromPoints(coords)
}

// Close releases resources used by the provider
func (p *GoogleDocAIProvider) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}
