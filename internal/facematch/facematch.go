// Package facematch validates a selfie and scores it against the accepted
// document photo.
package facematch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/composedlabyrinth/SwiftKYC/internal/storage"
)

const (
	DefaultMinSelfieBytes = 30 * 1024
	DefaultMaxSelfieBytes = 4 * 1024 * 1024
	DefaultThreshold      = 0.5

	// DefaultMaxSelfiePixels caps the declared width×height of a selfie.
	DefaultMaxSelfiePixels = 24_000_000
)

// ReasonImagesMissing is returned when either stored image is gone.
const ReasonImagesMissing = "Document or selfie image not found on server."

// Images reads stored images by reference.
type Images interface {
	Stat(ctx context.Context, ref string) (storage.ObjectInfo, error)
	Read(ctx context.Context, ref string) ([]byte, error)
}

// Comparator scores how likely two images show the same face, in [0,1].
type Comparator interface {
	Compare(ctx context.Context, document, selfie []byte) (float64, error)
}

// FixedScoreComparator returns Score for every pair. It stands in until a
// biometric comparator is plugged in.
type FixedScoreComparator struct {
	Score float64
}

func (c FixedScoreComparator) Compare(context.Context, []byte, []byte) (float64, error) {
	return c.Score, nil
}

// Result is the gate's verdict. Reason is set whenever IsMatch is false.
type Result struct {
	IsMatch bool
	Score   float64
	Reason  string
}

// Gate runs the selfie checks and the comparator.
type Gate struct {
	images     Images
	comparator Comparator
	threshold  float64
	minBytes   int64
	maxBytes   int64
	maxPixels  int64
}

// Option customizes a Gate.
type Option func(*Gate)

// WithComparator replaces the default FixedScoreComparator{Score: 0.9}.
func WithComparator(c Comparator) Option {
	return func(g *Gate) { g.comparator = c }
}

// WithThreshold sets the minimum score counted as a match.
func WithThreshold(t float64) Option {
	return func(g *Gate) { g.threshold = t }
}

// WithSizeBounds sets the accepted selfie file size band, inclusive.
func WithSizeBounds(minBytes, maxBytes int64) Option {
	return func(g *Gate) {
		g.minBytes = minBytes
		g.maxBytes = maxBytes
	}
}

// WithMaxPixels sets the largest selfie width×height that is decoded.
func WithMaxPixels(n int64) Option {
	return func(g *Gate) {
		if n > 0 {
			g.maxPixels = n
		}
	}
}

// New builds a Gate reading from images.
func New(images Images, opts ...Option) *Gate {
	g := &Gate{
		images:     images,
		comparator: FixedScoreComparator{Score: 0.9},
		threshold:  DefaultThreshold,
		minBytes:   DefaultMinSelfieBytes,
		maxBytes:   DefaultMaxSelfieBytes,
		maxPixels:  DefaultMaxSelfiePixels,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Assess checks the selfie and compares it with the document. Rejections are
// reported in Result; only storage and comparator failures return an error.
func (g *Gate) Assess(ctx context.Context, documentRef, selfieRef string) (Result, error) {
	if documentRef == "" || selfieRef == "" {
		return reject(ReasonImagesMissing), nil
	}
	if _, err := g.images.Stat(ctx, documentRef); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return reject(ReasonImagesMissing), nil
		}
		return Result{}, fmt.Errorf("stat document image: %w", err)
	}
	info, err := g.images.Stat(ctx, selfieRef)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return reject(ReasonImagesMissing), nil
		}
		return Result{}, fmt.Errorf("stat selfie image: %w", err)
	}

	if info.Size < g.minBytes {
		return reject(fmt.Sprintf("Selfie rejected: file too small (%s < %s).",
			HumanSize(info.Size), HumanSize(g.minBytes))), nil
	}
	if info.Size > g.maxBytes {
		return reject(fmt.Sprintf("Selfie rejected: file too large (%s > %s).",
			HumanSize(info.Size), HumanSize(g.maxBytes))), nil
	}

	selfie, err := g.images.Read(ctx, selfieRef)
	if err != nil {
		return Result{}, fmt.Errorf("read selfie image: %w", err)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(selfie))
	if err != nil {
		return reject(fmt.Sprintf("Selfie rejected: image file unreadable or invalid (%v).", err)), nil
	}
	if int64(cfg.Width)*int64(cfg.Height) > g.maxPixels {
		return reject(fmt.Sprintf("Selfie rejected: image dimensions too large (%dx%d).", cfg.Width, cfg.Height)), nil
	}
	if _, _, err := image.Decode(bytes.NewReader(selfie)); err != nil {
		return reject(fmt.Sprintf("Selfie rejected: image file unreadable or invalid (%v).", err)), nil
	}

	document, err := g.images.Read(ctx, documentRef)
	if err != nil {
		return Result{}, fmt.Errorf("read document image: %w", err)
	}
	score, err := g.comparator.Compare(ctx, document, selfie)
	if err != nil {
		return Result{}, fmt.Errorf("compare faces: %w", err)
	}
	if score < g.threshold {
		return Result{Score: score, Reason: fmt.Sprintf("Face match score %.2f below threshold %.2f.", score, g.threshold)}, nil
	}
	return Result{IsMatch: true, Score: score}, nil
}

func reject(reason string) Result {
	return Result{Reason: reason}
}

// HumanSize renders n bytes as whole KB, or MB with two decimals from 1 MB up.
func HumanSize(n int64) string {
	if n >= 1024*1024 {
		return fmt.Sprintf("%.2f MB", float64(n)/(1024*1024))
	}
	return fmt.Sprintf("%.0f KB", float64(n)/1024)
}
