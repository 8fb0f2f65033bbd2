package ocr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("TESSERACT_LANGUAGES", "eng+deu")
	t.Setenv("MIN_OCR_CONFIDENCE", "45")
	t.Setenv("OCR_REQUESTS_PER_MINUTE", "30")
	t.Setenv("AZURE_DOCAI_TIMEOUT_SECONDS", "soon")
	t.Setenv("GOOGLE_VISION_API_KEY", "key")

	cfg := ConfigFromEnv("google_vision")
	assert.Equal(t, "google_vision", cfg.Provider)
	assert.Equal(t, []string{"eng", "deu"}, cfg.TesseractLanguages)
	require.NotNil(t, cfg.MinConfidence)
	assert.Equal(t, 45.0, *cfg.MinConfidence)
	assert.Equal(t, 30, cfg.RequestsPerMinute)
	assert.Zero(t, cfg.AzureTimeout, "unparseable values fall back")
	assert.Equal(t, "key", cfg.GoogleVisionAPIKey)
}

func TestConfigFromEnv_Defaults(t *testing.T) {
	t.Setenv("MIN_OCR_CONFIDENCE", "")
	t.Setenv("TESSERACT_LANGUAGES", "")

	cfg := ConfigFromEnv("ios_ocr")
	assert.Nil(t, cfg.MinConfidence)
	assert.Equal(t, float64(DefaultMinConfidence), minConfidence(cfg))
	assert.Nil(t, cfg.TesseractLanguages)
}

func TestConfigFromEnv_ZeroConfidenceKeepsEveryWord(t *testing.T) {
	t.Setenv("MIN_OCR_CONFIDENCE", "0")

	cfg := ConfigFromEnv("google_vision")
	require.NotNil(t, cfg.MinConfidence)
	assert.Zero(t, minConfidence(cfg))
}
