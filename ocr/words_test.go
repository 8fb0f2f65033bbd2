package ocr

import (
	"bytes"
	"strings"
	"testing"

	"composition-corrector/wordindex"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeWords(t *testing.T) {
	input := `{
	  "words": [
	    {"text": "My", "confidence": 98, "boundingBox": {"left": 10, "top": 20, "width": 30, "height": 18}},
	    {"text": "sumer", "confidence": 91.5, "bbox": {"x": 50.4, "y": 20, "width": 60.6, "height": 18}},
	    {"text": "broken", "confidence": 150, "boundingBox": {"left": 0, "top": 0, "width": 5, "height": 5}},
	    {"confidence": 90, "boundingBox": {"left": 0, "top": 0, "width": 5, "height": 5}},
	    {"text": "nobox", "confidence": 90},
	    {"text": "was", "confidence": 88, "boundingBox": {"left": 120, "top": 20, "width": 30, "height": 18}}
	  ]
	}`

	words, invalid, err := DecodeWords(strings.NewReader(input))
	require.NoError(t, err)

	require.Len(t, words, 3)
	assert.Equal(t, wordindex.RecognizedWord{
		Text:        "My",
		Confidence:  98,
		BoundingBox: wordindex.BoundingBox{Left: 10, Top: 20, Width: 30, Height: 18},
	}, words[0])
	assert.Equal(t, wordindex.BoundingBox{Left: 50, Top: 20, Width: 61, Height: 18}, words[1].BoundingBox)
	assert.Equal(t, 91.5, words[1].Confidence)
	assert.Equal(t, "was", words[2].Text)

	require.Len(t, invalid, 3)
	assert.Equal(t, 2, invalid[0].Index)
	assert.Equal(t, "broken", invalid[0].Text)
	assert.Contains(t, invalid[0].Reason, "confidence")
	assert.Equal(t, 3, invalid[1].Index)
	assert.Equal(t, "", invalid[1].Text)
	assert.Equal(t, 4, invalid[2].Index)
	assert.Equal(t, "nobox", invalid[2].Text)
}

func TestDecodeWords_Envelope(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not json", `words: []`},
		{"missing words", `{"items": []}`},
		{"words not an array", `{"words": {"text": "x"}}`},
		{"top level array", `[]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodeWords(strings.NewReader(tt.input))
			assert.Error(t, err)
		})
	}
}

func TestDecodeWords_Empty(t *testing.T) {
	words, invalid, err := DecodeWords(strings.NewReader(`{"words": []}`))
	require.NoError(t, err)
	assert.Empty(t, words)
	assert.Empty(t, invalid)
}

func TestEncodeWords(t *testing.T) {
	in := []wordindex.RecognizedWord{
		{Text: "gud", Confidence: 90, BoundingBox: wordindex.BoundingBox{Left: 1, Top: 2, Width: 3, Height: 4}},
	}
	var buf bytes.Buffer
	require.NoError(t, EncodeWords(&buf, in))

	out, invalid, err := DecodeWords(&buf)
	require.NoError(t, err)
	assert.Empty(t, invalid)
	assert.Equal(t, in, out)

	buf.Reset()
	require.NoError(t, EncodeWords(&buf, nil))
	assert.JSONEq(t, `{"words": []}`, buf.String())
}
