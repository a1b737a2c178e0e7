//go:build !tesseract

package llm

import (
	"context"
)

// TesseractAvailable reports whether the offline recognizer was compiled in.
const TesseractAvailable = false

type TesseractRecognizer struct{}

func NewTesseractRecognizer(languages ...string) (*TesseractRecognizer, error) {
	return nil, ErrTesseractUnavailable
}

func (t *TesseractRecognizer) Recognize(context.Context, string, []byte) (string, error) {
	return "", ErrTesseractUnavailable
}

func (t *TesseractRecognizer) Close() error { return nil }
