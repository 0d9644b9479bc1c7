//go:build !tesseract

package ocr

import "errors"

// ErrTesseractNotEnabled is returned when the binary was built without the
// tesseract build tag.
var ErrTesseractNotEnabled = errors.New("ocr: tesseract engine not linked; build with -tags=tesseract")

func newTesseractEngine(Config) (Engine, error) {
	return nil, ErrTesseractNotEnabled
}
