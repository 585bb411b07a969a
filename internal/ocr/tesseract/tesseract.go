// Package tesseract implements ocr.Engine with the Tesseract library through
// gosseract.
package tesseract

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/composedlabyrinth/SwiftKYC/internal/ocr"
)

// Engine recognizes text lines with Tesseract. A fresh client is created per
// call because gosseract clients are not safe for concurrent use.
type Engine struct {
	languages     []string
	clientFactory func() *gosseract.Client
}

// New returns an Engine for the given Tesseract language codes, e.g. "eng",
// "hin". With no languages Tesseract's default is used.
func New(languages ...string) *Engine {
	return &Engine{languages: languages, clientFactory: gosseract.NewClient}
}

func (e *Engine) Name() string { return "tesseract" }

// Recognize returns one segment per text line in reading order. Tesseract
// cannot be interrupted: ctx is checked before and after the run, and the call
// blocks until Tesseract finishes. Callers enforcing a deadline run it on
// their own goroutine.
func (e *Engine) Recognize(ctx context.Context, image []byte) ([]ocr.Segment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	boxes, err := e.recognize(image)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	segments := make([]ocr.Segment, 0, len(boxes))
	for _, b := range boxes {
		text := strings.TrimSpace(b.Word)
		if text == "" {
			continue
		}
		segments = append(segments, ocr.Segment{Text: text, Confidence: b.Confidence / 100.0})
	}
	return segments, nil
}

func (e *Engine) recognize(image []byte) ([]gosseract.BoundingBox, error) {
	c := e.clientFactory()
	defer c.Close()

	if len(e.languages) > 0 {
		if err := c.SetLanguage(e.languages...); err != nil {
			return nil, fmt.Errorf("set languages: %w", err)
		}
	}
	if err := c.SetImageFromBytes(image); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("recognize lines: %w", err)
	}
	return boxes, nil
}
