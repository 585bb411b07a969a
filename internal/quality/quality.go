// Package quality decides whether a document photo is fit for OCR. It runs
// blur, brightness, glare and edge-density checks over the grayscale image and
// stops at the first failing check.
package quality

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	xdraw "golang.org/x/image/draw"
)

// Check names the test that rejected an image.
type Check string

const (
	CheckNone   Check = ""
	CheckBlur   Check = "BLUR"
	CheckDark   Check = "TOO_DARK"
	CheckBright Check = "TOO_BRIGHT"
	CheckGlare  Check = "GLARE"
	CheckEdges  Check = "EDGES"
)

// Thresholds tunes the gate. Intensities are on the 0..255 grayscale.
type Thresholds struct {
	MinBlurVariance float64
	MinBrightness   float64
	MaxBrightness   float64
	GlarePixel      uint8
	MaxGlareRatio   float64
	MinEdgeRatio    float64
	CannyLow        float64
	CannyHigh       float64
}

// DefaultThresholds are tuned for phone photos of ID cards.
var DefaultThresholds = Thresholds{
	MinBlurVariance: 100,
	MinBrightness:   60,
	MaxBrightness:   200,
	GlarePixel:      240,
	MaxGlareRatio:   0.12,
	MinEdgeRatio:    0.01,
	CannyLow:        100,
	CannyHigh:       200,
}

// Result is the verdict for one image. Score is the blur metric when the image
// is accepted and the failing check's metric otherwise.
type Result struct {
	Accepted bool
	Score    float64
	Check    Check
	Reason   string
}

// DefaultMaxPixels bounds the declared width×height of an image. Larger
// images are refused before their pixels are decoded.
const DefaultMaxPixels = 24_000_000

// ErrTooManyPixels is wrapped by DecodeError when an image declares more pixels
// than the gate accepts.
var ErrTooManyPixels = errors.New("image dimensions exceed limit")

// DecodeError wraps an image that could not be decoded at all. It is not a
// quality rejection.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("decode image: %v", e.Err) }
func (e *DecodeError) Unwrap() error { return e.Err }

// Gate evaluates document images.
type Gate struct {
	th        Thresholds
	maxPixels int64
}

// Option customizes a Gate.
type Option func(*Gate)

// WithThresholds overrides the default thresholds.
func WithThresholds(th Thresholds) Option {
	return func(g *Gate) { g.th = th }
}

// WithMaxPixels sets the largest width×height accepted for decoding.
func WithMaxPixels(n int64) Option {
	return func(g *Gate) {
		if n > 0 {
			g.maxPixels = n
		}
	}
}

// New builds a Gate.
func New(opts ...Option) *Gate {
	g := &Gate{th: DefaultThresholds, maxPixels: DefaultMaxPixels}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Evaluate decodes data and runs the checks. The image header is read first
// and images over the pixel limit fail with ErrTooManyPixels.
func (g *Gate) Evaluate(data []byte) (Result, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Result{}, &DecodeError{Err: err}
	}
	if px := int64(cfg.Width) * int64(cfg.Height); px > g.maxPixels {
		return Result{}, &DecodeError{Err: fmt.Errorf("%w: %dx%d is over %d pixels", ErrTooManyPixels, cfg.Width, cfg.Height, g.maxPixels)}
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Result{}, &DecodeError{Err: err}
	}
	return g.EvaluateImage(img), nil
}

// EvaluateImage runs the checks on an already decoded image.
func (g *Gate) EvaluateImage(img image.Image) Result {
	gray := Grayscale(img)
	p := newPlane(gray)

	blur := p.laplacianVariance()
	if blur < g.th.MinBlurVariance {
		return reject(CheckBlur, blur, "Image is blurry - please hold the camera steady and re-scan.")
	}

	mean := MeanIntensity(gray)
	if mean < g.th.MinBrightness {
		return reject(CheckDark, mean, "Image is too dark - please increase lighting and re-scan.")
	}
	if mean > g.th.MaxBrightness {
		return reject(CheckBright, mean, "Image is too bright - please avoid direct glare and re-scan.")
	}

	glare := GlareRatio(gray, g.th.GlarePixel)
	if glare > g.th.MaxGlareRatio {
		return reject(CheckGlare, glare, "Too much glare on the document - tilt the document or move away from direct light.")
	}

	edges := p.edgeRatio(g.th.CannyLow, g.th.CannyHigh)
	if edges < g.th.MinEdgeRatio {
		return reject(CheckEdges, edges, "Document edges not clearly visible - ensure the full document is inside the frame.")
	}

	return Result{Accepted: true, Score: blur}
}

func reject(check Check, score float64, reason string) Result {
	return Result{Accepted: false, Score: score, Check: check, Reason: reason}
}

// Grayscale converts any image into 8-bit luminance.
func Grayscale(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Bounds().Min == (image.Point{}) {
		return g
	}
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(gray, gray.Bounds(), img, b.Min, xdraw.Src)
	return gray
}

// MeanIntensity is the average gray level.
func MeanIntensity(g *image.Gray) float64 {
	w, h := g.Bounds().Dx(), g.Bounds().Dy()
	if w == 0 || h == 0 {
		return 0
	}
	var sum float64
	for y := 0; y < h; y++ {
		row := g.Pix[y*g.Stride : y*g.Stride+w]
		for _, p := range row {
			sum += float64(p)
		}
	}
	return sum / float64(w*h)
}

// GlareRatio is the fraction of pixels strictly brighter than limit.
func GlareRatio(g *image.Gray, limit uint8) float64 {
	w, h := g.Bounds().Dx(), g.Bounds().Dy()
	if w == 0 || h == 0 {
		return 0
	}
	var n int
	for y := 0; y < h; y++ {
		row := g.Pix[y*g.Stride : y*g.Stride+w]
		for _, p := range row {
			if p > limit {
				n++
			}
		}
	}
	return float64(n) / float64(w*h)
}
