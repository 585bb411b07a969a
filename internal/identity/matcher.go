// Package identity compares what a customer entered against what OCR read
// from their document.
package identity

import (
	"fmt"
	"strings"

	"github.com/composedlabyrinth/SwiftKYC/internal/docnumber"
	"github.com/composedlabyrinth/SwiftKYC/internal/model"
)

// Diagnostic code prefixes recorded in Result.Reasons.
const (
	ReasonNumberMismatchAlphanum10 = "OCR_NUMBER_MISMATCH_ALPHANUM10"
	ReasonNumberMismatchNumeric12  = "OCR_NUMBER_MISMATCH_NUMERIC12"
	ReasonNumberMismatch           = "OCR_NUMBER_MISMATCH"
	ReasonNumberMissing            = "OCR_NUMBER_MISSING"
	ReasonEnteredNameEmpty         = "OCR_NAME_MISSING_ENTERED_NAME_EMPTY"
	ReasonOCRNameEmpty             = "OCR_NAME_MISSING_OCR_NAME_EMPTY"
	ReasonNameMismatch             = "OCR_NAME_MISMATCH"
	ReasonRawLength                = "OCR_RAW_LEN"
	ReasonGenericMismatch          = "OCR_MISMATCH"
)

// Input is one comparison request.
type Input struct {
	DocType       model.DocType
	EnteredNumber string
	OCRNumber     string
	EnteredName   string
	OCRName       string
}

// Result is the outcome of Match.
type Result struct {
	NumberMatch bool
	NameMatch   bool
	Reasons     []string

	// LastFourOnly is set when a 12 digit number matched on its last four
	// digits alone.
	LastFourOnly bool

	FullSimilarity  float64
	TokenSimilarity float64
	Combined        float64
}

// Accepted reports whether both the number and the name matched.
func (r Result) Accepted() bool { return r.NumberMatch && r.NameMatch }

// FailureReason joins the diagnostics with ";" and appends the OCR text
// length when any text was read.
func (r Result) FailureReason(rawText string) string {
	reasons := append([]string(nil), r.Reasons...)
	if rawText != "" {
		reasons = append(reasons, fmt.Sprintf("%s=%d", ReasonRawLength, len(rawText)))
	}
	if len(reasons) == 0 {
		return ReasonGenericMismatch
	}
	return strings.Join(reasons, ";")
}

// Matcher holds the name thresholds.
type Matcher struct {
	combinedThreshold float64
	tokenThreshold    float64
	fullWeight        float64
	honorifics        []string
	lastFourFallback  bool
}

// Option customizes a Matcher.
type Option func(*Matcher)

// WithThresholds sets the combined-score and token-overlap acceptance bars.
func WithThresholds(combined, token float64) Option {
	return func(m *Matcher) {
		m.combinedThreshold = combined
		m.tokenThreshold = token
	}
}

// WithHonorifics replaces DefaultHonorifics.
func WithHonorifics(h []string) Option {
	return func(m *Matcher) { m.honorifics = h }
}

// WithLastFourFallback toggles accepting a 12 digit number when only the
// last four digits agree. It is on by default.
func WithLastFourFallback(enabled bool) Option {
	return func(m *Matcher) { m.lastFourFallback = enabled }
}

// NewMatcher returns a Matcher with a 0.50 combined threshold, a 0.90 token
// threshold and a 0.6 weight on whole-string similarity.
func NewMatcher(opts ...Option) *Matcher {
	m := &Matcher{
		combinedThreshold: 0.50,
		tokenThreshold:    0.90,
		fullWeight:        0.6,
		honorifics:        DefaultHonorifics,
		lastFourFallback:  true,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Match compares numbers and names and collects a diagnostic for every
// failure.
func (m *Matcher) Match(in Input) Result {
	var res Result
	res.NumberMatch, res.LastFourOnly, res.Reasons = m.matchNumber(in.DocType, in.EnteredNumber, in.OCRNumber, res.Reasons)

	entered := strings.TrimSpace(in.EnteredName)
	read := strings.TrimSpace(in.OCRName)
	if entered == "" || read == "" {
		if entered == "" {
			res.Reasons = append(res.Reasons, ReasonEnteredNameEmpty)
		}
		if read == "" {
			res.Reasons = append(res.Reasons, ReasonOCRNameEmpty)
		}
		return res
	}

	na := NormalizeName(entered, m.honorifics)
	nb := NormalizeName(read, m.honorifics)
	res.FullSimilarity, res.TokenSimilarity, res.Combined = m.similarity(na, nb)
	res.NameMatch = res.Combined >= m.combinedThreshold || res.TokenSimilarity >= m.tokenThreshold
	if !res.NameMatch {
		res.Reasons = append(res.Reasons, fmt.Sprintf(
			"%s entered='%s' ocr='%s' full_sim=%.2f token_sim=%.2f combined=%.2f",
			ReasonNameMismatch, na, nb, res.FullSimilarity, res.TokenSimilarity, res.Combined,
		))
	}
	return res
}

// NameScores returns whole-string, token and combined similarity of two raw
// names.
func (m *Matcher) NameScores(a, b string) (full, token, combined float64) {
	return m.similarity(NormalizeName(a, m.honorifics), NormalizeName(b, m.honorifics))
}

func (m *Matcher) similarity(na, nb string) (full, token, combined float64) {
	if na == "" || nb == "" {
		return 0, 0, 0
	}
	full = SequenceRatio(na, nb)
	token = TokenOverlap(strings.Fields(na), strings.Fields(nb))
	combined = m.fullWeight*full + (1-m.fullWeight)*token
	return full, token, combined
}

func (m *Matcher) matchNumber(docType model.DocType, entered, read string, reasons []string) (match, lastFour bool, out []string) {
	entered = strings.TrimSpace(entered)
	read = strings.TrimSpace(read)
	if entered == "" || read == "" {
		return false, false, append(reasons, fmt.Sprintf("%s entered_present=%s ocr_present=%s",
			ReasonNumberMissing, yesNo(entered != ""), yesNo(read != "")))
	}

	switch docType {
	case model.DocTypeAlphanum10:
		a, b := upperNoSpace(entered), upperNoSpace(read)
		if a == b {
			return true, false, reasons
		}
		return false, false, append(reasons, fmt.Sprintf("%s entered='%s' ocr='%s'", ReasonNumberMismatchAlphanum10, a, b))
	case model.DocTypeNumeric12:
		a, b := docnumber.DigitsOnly(entered), docnumber.DigitsOnly(read)
		if len(a) == 12 && a == b {
			return true, false, reasons
		}
		if m.lastFourFallback && len(a) >= 4 && len(b) >= 4 && a[len(a)-4:] == b[len(b)-4:] {
			return true, true, reasons
		}
		return false, false, append(reasons, fmt.Sprintf("%s entered='%s' ocr='%s'", ReasonNumberMismatchNumeric12, a, b))
	default:
		if entered == read {
			return true, false, reasons
		}
		return false, false, append(reasons, fmt.Sprintf("%s entered='%s' ocr='%s'", ReasonNumberMismatch, entered, read))
	}
}

func upperNoSpace(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), ""))
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
