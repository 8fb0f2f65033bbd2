package ocr

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"composition-corrector/wordindex"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const envelopeSchema = `{
  "type": "object",
  "required": ["words"],
  "properties": {
    "words": {"type": "array"}
  }
}`

const wordSchema = `{
  "type": "object",
  "required": ["text", "confidence"],
  "properties": {
    "text": {"type": "string"},
    "confidence": {"type": "number", "minimum": 0, "maximum": 100},
    "boundingBox": {
      "type": "object",
      "required": ["left", "top", "width", "height"],
      "properties": {
        "left": {"type": "number"},
        "top": {"type": "number"},
        "width": {"type": "number", "minimum": 0},
        "height": {"type": "number", "minimum": 0}
      }
    },
    "bbox": {
      "type": "object",
      "required": ["x", "y", "width", "height"],
      "properties": {
        "x": {"type": "number"},
        "y": {"type": "number"},
        "width": {"type": "number", "minimum": 0},
        "height": {"type": "number", "minimum": 0}
      }
    }
  },
  "oneOf": [
    {"required": ["boundingBox"]},
    {"required": ["bbox"]}
  ]
}`

var (
	envelopeValidator = jsonschema.MustCompileString("envelope.json", envelopeSchema)
	wordValidator     = jsonschema.MustCompileString("word.json", wordSchema)
)

type wireBox struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type wireWord struct {
	Text        string   `json:"text"`
	Confidence  float64  `json:"confidence"`
	BoundingBox *wireBox `json:"boundingBox"`
	BBox        *wireBox `json:"bbox"`
}

func (w wireWord) recognized() wordindex.RecognizedWord {
	var box wordindex.BoundingBox
	if b := w.BoundingBox; b != nil {
		box = roundBox(b.Left, b.Top, b.Width, b.Height)
	} else if b := w.BBox; b != nil {
		box = roundBox(b.X, b.Y, b.Width, b.Height)
	}
	return wordindex.RecognizedWord{Text: w.Text, Confidence: w.Confidence, BoundingBox: box}
}

func roundBox(left, top, width, height float64) wordindex.BoundingBox {
	return wordindex.BoundingBox{
		Left:   int(math.Round(left)),
		Top:    int(math.Round(top)),
		Width:  int(math.Round(width)),
		Height: int(math.Round(height)),
	}
}

// DecodeWords reads a recognized-word document of the form
// {"words": [{"text", "confidence", "boundingBox": {left, top, width, height}}]}.
// A "bbox" object with x and y in place of left and top is accepted too.
//
// A document that is not JSON or lacks the words array is an error. Each
// word is checked on its own: words that fail validation come back as
// InputErrors carrying their position in the array, and the rest are
// returned in order.
func DecodeWords(r io.Reader) ([]wordindex.RecognizedWord, []*wordindex.InputError, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("read words: %w", err)
	}

	var doc any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, nil, fmt.Errorf("parse words: %w", err)
	}
	if err := envelopeValidator.Validate(doc); err != nil {
		return nil, nil, fmt.Errorf("words document does not match schema: %s", schemaReason(err))
	}

	var envelope struct {
		Words []json.RawMessage `json:"words"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, nil, fmt.Errorf("parse words: %w", err)
	}

	words := make([]wordindex.RecognizedWord, 0, len(envelope.Words))
	var invalid []*wordindex.InputError
	items := doc.(map[string]any)["words"].([]any)
	for i, raw := range envelope.Words {
		if err := wordValidator.Validate(items[i]); err != nil {
			invalid = append(invalid, &wordindex.InputError{
				Index:  i,
				Text:   textOf(items[i]),
				Reason: schemaReason(err),
			})
			continue
		}
		var w wireWord
		if err := json.Unmarshal(raw, &w); err != nil {
			invalid = append(invalid, &wordindex.InputError{Index: i, Text: textOf(items[i]), Reason: err.Error()})
			continue
		}
		words = append(words, w.recognized())
	}

	log.WithField("words", len(words)).WithField("invalid", len(invalid)).Debug("Decoded recognized words")
	return words, invalid, nil
}

// EncodeWords writes words in the form DecodeWords reads.
func EncodeWords(w io.Writer, words []wordindex.RecognizedWord) error {
	if words == nil {
		words = []wordindex.RecognizedWord{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Words []wordindex.RecognizedWord `json:"words"`
	}{words})
}

func textOf(v any) string {
	if m, ok := v.(map[string]any); ok {
		if s, ok := m["text"].(string); ok {
			return s
		}
	}
	return ""
}

// schemaReason reduces a validation error to its most specific cause.
func schemaReason(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	loc := strings.TrimPrefix(ve.InstanceLocation, "/")
	if loc == "" {
		return ve.Message
	}
	return loc + ": " + ve.Message
}
