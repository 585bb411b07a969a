package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DocType identifies the kind of identity artifact uploaded in a session.
type DocType string

const (
	// DocTypeNumeric12 is the 12-digit national ID.
	DocTypeNumeric12 DocType = "ID_NUMERIC12"
	// DocTypeAlphanum10 is the 10-character tax ID: 5 letters, 4 digits, 1 letter.
	DocTypeAlphanum10 DocType = "ID_ALPHANUM10"
	DocTypePassport   DocType = "PASSPORT"
	DocTypeVoterID    DocType = "VOTER_ID"
)

// DocTypes lists every accepted document type in display order.
var DocTypes = []DocType{DocTypeNumeric12, DocTypeAlphanum10, DocTypePassport, DocTypeVoterID}

// ParseDocType converts user input (case-insensitive) into a DocType.
func ParseDocType(raw string) (DocType, error) {
	d := DocType(strings.ToUpper(strings.TrimSpace(raw)))
	for _, known := range DocTypes {
		if d == known {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown document type %q", raw)
}

// Validity is the tri-state evaluation result of a document. The zero value is
// ValidityUnset so a freshly created document never satisfies a "must be valid"
// precondition by accident.
type Validity int

const (
	ValidityUnset Validity = iota
	ValidityValid
	ValidityInvalid
)

func (v Validity) String() string {
	switch v {
	case ValidityValid:
		return "valid"
	case ValidityInvalid:
		return "invalid"
	default:
		return "unset"
	}
}

// ValidityFromBool maps a nullable boolean (the storage representation) into a Validity.
func ValidityFromBool(b *bool) Validity {
	switch {
	case b == nil:
		return ValidityUnset
	case *b:
		return ValidityValid
	default:
		return ValidityInvalid
	}
}

// Bool is the inverse of ValidityFromBool.
func (v Validity) Bool() *bool {
	switch v {
	case ValidityValid:
		t := true
		return &t
	case ValidityInvalid:
		f := false
		return &f
	default:
		return nil
	}
}

// MarshalJSON renders the validity as true, false or null.
func (v Validity) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Bool())
}

// Document is one uploaded identity artifact within a session.
type Document struct {
	ID           string    `json:"document_id"`
	SessionID    string    `json:"session_id"`
	DocType      DocType   `json:"doc_type"`
	StorageRef   *string   `json:"storage_url"`
	DocNumber    *string   `json:"doc_number"`
	Validity     Validity  `json:"is_valid"`
	QualityScore *float64  `json:"quality_score"`
	CreatedAt    time.Time `json:"created_at"`
}

// ResetEvaluation clears the verdict of a previous upload attempt so the new
// image gets a fresh evaluation.
func (d *Document) ResetEvaluation() {
	d.Validity = ValidityUnset
	d.QualityScore = nil
}

// Number returns the entered document number or "".
func (d *Document) Number() string {
	if d.DocNumber == nil {
		return ""
	}
	return *d.DocNumber
}
