// Package ocr turns recognized text segments from an ID card photo into a
// document number and a holder name.
package ocr

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/composedlabyrinth/SwiftKYC/internal/model"
)

// Segment is one recognized line of text, in reading order.
type Segment struct {
	Text       string
	Confidence float64
}

// Engine performs text recognition on an encoded image.
type Engine interface {
	Recognize(ctx context.Context, image []byte) ([]Segment, error)
}

// EngineFunc adapts a function to Engine.
type EngineFunc func(ctx context.Context, image []byte) ([]Segment, error)

func (f EngineFunc) Recognize(ctx context.Context, image []byte) ([]Segment, error) {
	return f(ctx, image)
}

// Result holds the extracted fields. Empty strings mean "not found".
type Result struct {
	DocumentNumber string
	Name           string
	RawText        string
	QualityScore   float64
	Segments       []Segment
}

var (
	nonAlnum     = regexp.MustCompile(`[^A-Za-z0-9]`)
	whitespace   = regexp.MustCompile(`\s+`)
	alphanum10   = regexp.MustCompile(`[A-Z]{5}[0-9]{4}[A-Z]`)
	alphanum10Fx = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)
	grouped12    = regexp.MustCompile(`\d{4}\s*\d{4}\s*\d{4}`)
	contiguous12 = regexp.MustCompile(`\d{12}`)
	nonDigit     = regexp.MustCompile(`\D`)
)

// Extractor runs an Engine and applies the field heuristics.
type Extractor struct {
	engine Engine
	h      *compiled
}

// Option customizes an Extractor.
type Option func(*Extractor)

// WithHeuristics replaces DefaultHeuristics.
func WithHeuristics(h Heuristics) Option {
	return func(e *Extractor) { e.h = h.compile() }
}

// NewExtractor builds an Extractor around engine.
func NewExtractor(engine Engine, opts ...Option) *Extractor {
	e := &Extractor{engine: engine, h: DefaultHeuristics.compile()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract recognizes image and pulls out the fields for docType. Document
// types without a number rule still get a name.
func (e *Extractor) Extract(ctx context.Context, image []byte, docType model.DocType) (Result, error) {
	segments, err := e.engine.Recognize(ctx, image)
	if err != nil {
		return Result{}, fmt.Errorf("recognize: %w", err)
	}
	return e.FromSegments(segments, docType), nil
}

// FromSegments applies the heuristics to already recognized segments.
func (e *Extractor) FromSegments(segments []Segment, docType model.DocType) Result {
	segments = trimSegments(segments)
	res := Result{
		RawText:      joinSegments(segments),
		QualityScore: meanConfidence(segments),
		Segments:     segments,
	}

	numberIdx := -1
	switch docType {
	case model.DocTypeAlphanum10:
		res.DocumentNumber = e.findAlphanum10(compact(res.RawText))
		for i, s := range segments {
			if e.findAlphanum10(compact(s.Text)) != "" {
				numberIdx = i
				break
			}
		}
	case model.DocTypeNumeric12:
		res.DocumentNumber = findNumeric12(res.RawText)
		for i, s := range segments {
			if findNumeric12(cleanText(s.Text)) != "" {
				numberIdx = i
				break
			}
		}
	}

	res.Name = e.findName(segments, numberIdx)
	return res
}

// findName walks the strategies in order: a candidate shortly after a name
// label, the first candidate after the number, the first candidate after any
// label, then the first candidate after the number or the issuer header or
// anywhere at all.
func (e *Extractor) findName(segments []Segment, numberIdx int) string {
	firstLabel := -1
	for i, s := range segments {
		if !e.h.isLabel(s.Text) {
			continue
		}
		if firstLabel < 0 {
			firstLabel = i
		}
		if name := e.candidateIn(segments, i+1, i+1+e.h.window); name != "" {
			return name
		}
	}

	if numberIdx >= 0 {
		if name := e.candidateIn(segments, numberIdx+1, len(segments)); name != "" {
			return name
		}
	}
	if firstLabel >= 0 {
		if name := e.candidateIn(segments, firstLabel+1, len(segments)); name != "" {
			return name
		}
	}

	lastHeader := -1
	for i, s := range segments {
		if e.h.isHeader(s.Text) {
			lastHeader = i
		}
	}
	if name := e.candidateIn(segments, lastHeader+1, len(segments)); name != "" {
		return name
	}
	return e.candidateIn(segments, 0, len(segments))
}

func (e *Extractor) candidateIn(segments []Segment, from, to int) string {
	if from < 0 {
		from = 0
	}
	if to > len(segments) {
		to = len(segments)
	}
	for i := from; i < to; i++ {
		if e.h.looksLikeName(segments[i].Text) {
			return cleanText(segments[i].Text)
		}
	}
	return ""
}

// findAlphanum10 looks for five letters, four digits and a letter. When no
// exact match exists it slides a ten character window over s and repairs
// letter-for-digit misreads in the digit positions only.
func (e *Extractor) findAlphanum10(s string) string {
	if m := alphanum10.FindString(s); m != "" {
		return m
	}
	for i := 0; i+10 <= len(s); i++ {
		window := []rune(s[i : i+10])
		for pos := 5; pos <= 8; pos++ {
			if d, ok := e.h.misreads[window[pos]]; ok {
				window[pos] = d
			}
		}
		if candidate := string(window); alphanum10Fx.MatchString(candidate) {
			return candidate
		}
	}
	return ""
}

// findNumeric12 prefers a 4-4-4 grouping and falls back to any 12 digit run.
func findNumeric12(s string) string {
	if m := grouped12.FindString(s); m != "" {
		return nonDigit.ReplaceAllString(m, "")
	}
	return contiguous12.FindString(s)
}

// compact keeps only ASCII letters and digits, uppercased.
func compact(s string) string {
	return strings.ToUpper(nonAlnum.ReplaceAllString(s, ""))
}

func cleanText(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

func trimSegments(segments []Segment) []Segment {
	out := make([]Segment, 0, len(segments))
	for _, s := range segments {
		s.Text = strings.TrimSpace(s.Text)
		if s.Text != "" {
			out = append(out, s)
		}
	}
	return out
}

func joinSegments(segments []Segment) string {
	texts := make([]string, len(segments))
	for i, s := range segments {
		texts[i] = s.Text
	}
	return cleanText(strings.Join(texts, "\n"))
}

// meanConfidence averages confidences, accepting both 0..1 and 0..100 scales.
func meanConfidence(segments []Segment) float64 {
	if len(segments) == 0 {
		return 0
	}
	var sum float64
	for _, s := range segments {
		c := s.Confidence
		if c > 1 {
			c /= 100
		}
		sum += c
	}
	return sum / float64(len(segments))
}
