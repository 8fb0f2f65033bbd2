package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"composition-corrector/wordindex"

	"github.com/gabriel-vasile/mimetype"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
)

const defaultVisionEndpoint = "https://vision.googleapis.com/v1/images:annotate"

// GoogleVisionProvider implements OCR using the Cloud Vision
// DOCUMENT_TEXT_DETECTION feature over REST.
type GoogleVisionProvider struct {
	endpoint      string
	apiKey        string
	httpClient    *retryablehttp.Client
	minConfidence float64
}

func newGoogleVisionProvider(config Config) (*GoogleVisionProvider, error) {
	logger := log.WithField("provider", "google_vision")
	logger.Info("Creating new Google Vision provider")

	if config.GoogleVisionAPIKey == "" {
		return nil, fmt.Errorf("missing required Google Vision API key")
	}

	endpoint := defaultVisionEndpoint
	if config.GoogleVisionEndpoint != "" {
		endpoint = config.GoogleVisionEndpoint
	}

	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.RetryWaitMin = 1 * time.Second
	client.RetryWaitMax = 5 * time.Second
	client.Logger = logger

	return &GoogleVisionProvider{
		endpoint:      endpoint,
		apiKey:        config.GoogleVisionAPIKey,
		httpClient:    client,
		minConfidence: minConfidence(config),
	}, nil
}

type visionRequest struct {
	Requests []visionImageRequest `json:"requests"`
}

type visionImageRequest struct {
	Image struct {
		Content string `json:"content"`
	} `json:"image"`
	Features []visionFeature `json:"features"`
}

type visionFeature struct {
	Type string `json:"type"`
}

// VisionResponse is the subset of the images:annotate response we read.
type VisionResponse struct {
	Responses []struct {
		FullTextAnnotation *VisionTextAnnotation `json:"fullTextAnnotation"`
		Error              *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	} `json:"responses"`
}

// VisionTextAnnotation is the page hierarchy of a text detection.
type VisionTextAnnotation struct {
	Text  string `json:"text"`
	Pages []struct {
		Width  int `json:"width"`
		Height int `json:"height"`
		Blocks []struct {
			Paragraphs []struct {
				Words []VisionWord `json:"words"`
			} `json:"paragraphs"`
		} `json:"blocks"`
	} `json:"pages"`
}

// VisionWord is one detected word made of symbols.
type VisionWord struct {
	BoundingBox struct {
		Vertices []struct {
			X float64 `json:"x"`
			Y float64 `json:"y"`
		} `json:"vertices"`
	} `json:"boundingBox"`
	Confidence float64 `json:"confidence"`
	Symbols    []struct {
		Text string `json:"text"`
	} `json:"symbols"`
}

// Recognize runs document text detection on one image.
func (p *GoogleVisionProvider) Recognize(ctx context.Context, imageContent []byte, pageNumber int) (*OCRResult, error) {
	logger := log.WithFields(logrus.Fields{
		"provider": "google_vision",
		"page":     pageNumber,
	})
	logger.Debug("Starting Google Vision processing")

	mtype := mimetype.Detect(imageContent)
	if !isImageMIMEType(mtype.String()) {
		logger.WithField("mime_type", mtype.String()).Error("Unsupported file type")
		return nil, fmt.Errorf("unsupported file type: %s", mtype.String())
	}

	var body visionRequest
	body.Requests = make([]visionImageRequest, 1)
	body.Requests[0].Image.Content = base64.StdEncoding.EncodeToString(imageContent)
	body.Requests[0].Features = []visionFeature{{Type: "DOCUMENT_TEXT_DETECTION"}}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("error marshaling request body: %w", err)
	}

	requestURL := p.endpoint + "?key=" + url.QueryEscape(p.apiKey)
	req, err := retryablehttp.NewRequestWithContext(ctx, "POST", requestURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("error creating HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		logger.WithError(err).Error("Failed to send request to Google Vision")
		return nil, fmt.Errorf("error sending request to Google Vision: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google Vision returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed VisionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		logger.WithError(err).Error("Failed to parse Google Vision response")
		return nil, fmt.Errorf("failed to parse Google Vision response: %w", err)
	}
	if len(parsed.Responses) == 0 {
		return nil, fmt.Errorf("google Vision returned no responses")
	}
	if e := parsed.Responses[0].Error; e != nil {
		return nil, fmt.Errorf("google Vision error %d: %s", e.Code, e.Message)
	}

	result := &OCRResult{Metadata: map[string]string{"provider": "google_vision"}}
	if ann := parsed.Responses[0].FullTextAnnotation; ann != nil {
		result.Text = ann.Text
		result.Words = ann.words(p.minConfidence)
		if len(ann.Pages) > 0 {
			result.Width, result.Height = ann.Pages[0].Width, ann.Pages[0].Height
		}
	}

	logger.WithField("num_words", len(result.Words)).Info("Successfully processed image with Google Vision")
	return result, nil
}

func (a *VisionTextAnnotation) words(floor float64) []wordindex.RecognizedWord {
	var out []wordindex.RecognizedWord
	for _, page := range a.Pages {
		for _, block := range page.Blocks {
			for _, para := range block.Paragraphs {
				for _, w := range para.Words {
					var text strings.Builder
					for _, s := range w.Symbols {
						text.WriteString(s.Text)
					}
					coords := make([]float64, 0, 2*len(w.BoundingBox.Vertices))
					for _, v := range w.BoundingBox.Vertices {
						coords = append(coords, v.X, v.Y)
					}
					box, ok := wordindex.BoxFromPoints(coords)
					if !ok {
						continue
					}
					word := wordindex.RecognizedWord{
						Text:        text.String(),
						Confidence:  w.Confidence * 100,
						BoundingBox: box,
					}
					if keepWord(word, floor) {
						out = append(out, word)
					}
				}
			}
		}
	}
	return out
}
