package ocr

import (
	"os"
	"strconv"
	"strings"
)

// ConfigFromEnv reads the recognizer credentials and limits from the
// environment. Unparseable numbers fall back to their defaults.
func ConfigFromEnv(provider string) Config {
	var languages []string
	if v := os.Getenv("TESSERACT_LANGUAGES"); v != "" {
		languages = strings.Split(v, "+")
	}
	return Config{
		Provider:             provider,
		MinConfidence:        envFloatPtr("MIN_OCR_CONFIDENCE"),
		IOSOCRServerURL:      os.Getenv("IOS_OCR_SERVER_URL"),
		GoogleProjectID:      os.Getenv("GOOGLE_PROJECT_ID"),
		GoogleLocation:       os.Getenv("GOOGLE_LOCATION"),
		GoogleProcessorID:    os.Getenv("GOOGLE_PROCESSOR_ID"),
		GoogleVisionAPIKey:   os.Getenv("GOOGLE_VISION_API_KEY"),
		GoogleVisionEndpoint: os.Getenv("GOOGLE_VISION_ENDPOINT"),
		AzureEndpoint:        os.Getenv("AZURE_DOCAI_ENDPOINT"),
		AzureAPIKey:          os.Getenv("AZURE_DOCAI_KEY"),
		AzureModelID:         os.Getenv("AZURE_DOCAI_MODEL_ID"),
		AzureTimeout:         envInt("AZURE_DOCAI_TIMEOUT_SECONDS", 0),
		TesseractLanguages:   languages,
		RequestsPerMinute:    envInt("OCR_REQUESTS_PER_MINUTE", 0),
	}
}

func envInt(key string, fallback int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return n
}

// envFloatPtr returns nil when key is unset or not a number.
func envFloatPtr(key string) *float64 {
	f, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return nil
	}
	return &f
}
