//go:build !tesseract

package ocr

import "errors"

// ErrTesseractNotEnabled is returned when the tesseract provider is selected
// in a binary built without the tesseract build tag.
var ErrTesseractNotEnabled = errors.New("tesseract support not enabled; rebuild with -tags tesseract")

func newTesseractProvider(Config) (Provider, error) {
	return nil, ErrTesseractNotEnabled
}
