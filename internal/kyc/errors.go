package kyc

import (
	"errors"
	"fmt"

	"github.com/composedlabyrinth/SwiftKYC/internal/sessionlock"
)

var (
	// ErrNotFound wraps a missing session, document or customer.
	ErrNotFound = errors.New("not found")
	// ErrUnsupportedContentType rejects uploads other than JPEG and PNG.
	ErrUnsupportedContentType = errors.New("only JPEG and PNG images are allowed")
	// ErrSessionBusy is returned when another operation holds the session.
	ErrSessionBusy = sessionlock.ErrBusy
)

// ValidationError reports bad caller input outside document numbers.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ImageDecodeError means an uploaded image could not be decoded. It aborts
// the call without touching the session.
type ImageDecodeError struct {
	Err error
}

func (e *ImageDecodeError) Error() string { return fmt.Sprintf("decode uploaded image: %v", e.Err) }
func (e *ImageDecodeError) Unwrap() error { return e.Err }

// ExtractionError means the OCR backend failed or timed out. By the time it
// is returned the document is already marked invalid and the session
// records OCR_ERROR.
type ExtractionError struct {
	Err error
}

func (e *ExtractionError) Error() string { return fmt.Sprintf("ocr extraction failed: %v", e.Err) }
func (e *ExtractionError) Unwrap() error { return e.Err }

func notFound(entity, id string) error {
	return fmt.Errorf("%s %s: %w", entity, id, ErrNotFound)
}

// Precondition codes.
const (
	CodeNoDocument           = "NO_DOCUMENT"
	CodeDocumentNotValidated = "DOCUMENT_NOT_VALIDATED"
)

// PreconditionError reports a missing prerequisite that is not a step
// mismatch, such as a selfie submitted before the document was accepted.
type PreconditionError struct {
	Code    string
	Message string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}
