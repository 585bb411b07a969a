// Package docnumber normalizes and validates user-entered document numbers.
// Normalize is idempotent for every document type.
package docnumber

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/composedlabyrinth/SwiftKYC/internal/model"
)

var (
	alphanum10Pattern = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)
	numeric12Pattern  = regexp.MustCompile(`^[0-9]{12}$`)
)

const (
	CodeInvalidAlphanum10 = "INVALID_ALPHANUM10_FORMAT"
	CodeInvalidNumeric12  = "INVALID_NUMERIC12_FORMAT"
	CodeUnsupportedType   = "UNSUPPORTED_DOC_TYPE"
	CodeEmpty             = "EMPTY_DOC_NUMBER"
)

// FormatError describes a rejected document number with a machine-readable
// code and an example of the accepted format.
type FormatError struct {
	Code    string
	Message string
	Example string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Normalize canonicalizes raw input for the given type without validating it.
func Normalize(docType model.DocType, raw string) string {
	switch docType {
	case model.DocTypeNumeric12:
		return DigitsOnly(raw)
	default:
		return strings.ToUpper(stripSpace(raw))
	}
}

// Validate checks an already-normalized number against the type's format.
func Validate(docType model.DocType, normalized string) error {
	switch docType {
	case model.DocTypeAlphanum10:
		if !alphanum10Pattern.MatchString(normalized) {
			return &FormatError{
				Code:    CodeInvalidAlphanum10,
				Message: "expected 10 characters: 5 letters, 4 digits, 1 letter",
				Example: "ABCDE1234F",
			}
		}
	case model.DocTypeNumeric12:
		if !numeric12Pattern.MatchString(normalized) {
			return &FormatError{
				Code:    CodeInvalidNumeric12,
				Message: "expected exactly 12 digits",
				Example: "1234 5678 9012",
			}
		}
	default:
		return &FormatError{
			Code:    CodeUnsupportedType,
			Message: fmt.Sprintf("manual number entry is not supported for %s", docType),
		}
	}
	return nil
}

// Parse normalizes and validates in one step.
func Parse(docType model.DocType, raw string) (string, error) {
	if !Supported(docType) {
		return "", Validate(docType, "")
	}
	normalized := Normalize(docType, raw)
	if normalized == "" {
		return "", &FormatError{Code: CodeEmpty, Message: "document number is required"}
	}
	if err := Validate(docType, normalized); err != nil {
		return "", err
	}
	return normalized, nil
}

// Supported reports whether numbers of this type can be entered manually.
func Supported(docType model.DocType) bool {
	return docType == model.DocTypeAlphanum10 || docType == model.DocTypeNumeric12
}

// DigitsOnly drops every non-digit rune.
func DigitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
