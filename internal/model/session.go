// Package model contains the KYC entities shared across packages together with
// the step/status state machine that sequences them.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Status is the outcome classification of a session. It is orthogonal to Step:
// a session can sit at KYC_CHECK while being either IN_PROGRESS or REJECTED.
type Status string

const (
	StatusInProgress Status = "IN_PROGRESS"
	StatusApproved   Status = "APPROVED"
	StatusRejected   Status = "REJECTED"
	StatusAbandoned  Status = "ABANDONED"
)

// Terminal reports whether no further workflow event may change the session.
func (s Status) Terminal() bool {
	return s != StatusInProgress
}

// ParseStatus converts user input or a stored value into a Status, rejecting
// unknown values.
func ParseStatus(raw string) (Status, error) {
	switch s := Status(strings.ToUpper(strings.TrimSpace(raw))); s {
	case StatusInProgress, StatusApproved, StatusRejected, StatusAbandoned:
		return s, nil
	}
	return "", fmt.Errorf("unknown status %q", raw)
}

// Step is the current stage of the workflow.
type Step string

const (
	StepSelectDoc   Step = "SELECT_DOC"
	StepScanDoc     Step = "SCAN_DOC"
	// StepValidateDoc is accepted from storage but no event leads to it;
	// a session found there only moves through an admin override.
	StepValidateDoc Step = "VALIDATE_DOC"
	StepSelfie      Step = "SELFIE"
	StepKYCCheck    Step = "KYC_CHECK"
	StepComplete    Step = "COMPLETE"
)

// ParseStep converts a persisted value into a Step.
func ParseStep(raw string) (Step, error) {
	switch s := Step(strings.ToUpper(strings.TrimSpace(raw))); s {
	case StepSelectDoc, StepScanDoc, StepValidateDoc, StepSelfie, StepKYCCheck, StepComplete:
		return s, nil
	}
	return "", fmt.Errorf("unknown step %q", raw)
}

// MaxSelfieAttempts is the number of failed face matches after which a session
// is terminally rejected.
const MaxSelfieAttempts = 3

// Session is one customer's end-to-end verification attempt.
type Session struct {
	ID            string    `json:"session_id"`
	CustomerID    string    `json:"customer_id"`
	Status        Status    `json:"status"`
	CurrentStep   Step      `json:"current_step"`
	FailureReason *string   `json:"failure_reason"`
	RetriesSelect int       `json:"retries_select"`
	RetriesScan   int       `json:"retries_scan"`
	RetriesUpload int       `json:"retries_upload"`
	RetriesSelfie int       `json:"retries_selfie"`
	SelfieRef     *string   `json:"-"`
	FaceScore     *float64  `json:"face_match_score,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewSession returns a session in its initial IN_PROGRESS / SELECT_DOC state.
func NewSession(id, customerID string, now time.Time) *Session {
	return &Session{
		ID:          id,
		CustomerID:  customerID,
		Status:      StatusInProgress,
		CurrentStep: StepSelectDoc,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// SetFailure records a failure reason; an empty reason clears it.
func (s *Session) SetFailure(reason string) {
	if reason == "" {
		s.FailureReason = nil
		return
	}
	s.FailureReason = &reason
}

// Failure returns the failure reason or "" when none is recorded.
func (s *Session) Failure() string {
	if s.FailureReason == nil {
		return ""
	}
	return *s.FailureReason
}

// Touch bumps UpdatedAt; every mutation goes through it.
func (s *Session) Touch(now time.Time) {
	s.UpdatedAt = now
}

// Customer is the account holder whose stored name is compared with the
// name printed on the document.
type Customer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Mobile    string    `json:"mobile"`
	Email     *string   `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
