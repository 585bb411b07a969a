package model

import "fmt"

// Event is a workflow occurrence that may move a session between steps.
type Event string

const (
	EventDocumentSelected   Event = "document_selected"
	EventNumberEntered      Event = "number_entered"
	EventDocumentAccepted   Event = "document_accepted"
	EventDocumentRejected   Event = "document_rejected"
	EventSelfieSubmitted    Event = "selfie_submitted"
	EventFaceMatched        Event = "face_matched"
	EventFaceMismatched     Event = "face_mismatched"
	EventRetriesExhausted   Event = "retries_exhausted"
	EventPreconditionFailed Event = "precondition_failed"
)

type transitionKey struct {
	from  Step
	event Event
}

type transition struct {
	to     Step
	status Status
}

// transitions is the complete set of legal step changes. Anything missing here
// is rejected with a StepConflictError.
var transitions = map[transitionKey]transition{
	{StepSelectDoc, EventDocumentSelected}:  {to: StepScanDoc, status: StatusInProgress},
	{StepScanDoc, EventNumberEntered}:       {to: StepScanDoc, status: StatusInProgress},
	{StepScanDoc, EventDocumentAccepted}:    {to: StepSelfie, status: StatusInProgress},
	{StepScanDoc, EventDocumentRejected}:    {to: StepScanDoc, status: StatusInProgress},
	{StepSelfie, EventSelfieSubmitted}:      {to: StepKYCCheck, status: StatusInProgress},
	{StepKYCCheck, EventFaceMatched}:        {to: StepComplete, status: StatusApproved},
	{StepKYCCheck, EventFaceMismatched}:     {to: StepSelfie, status: StatusInProgress},
	{StepKYCCheck, EventRetriesExhausted}:   {to: StepKYCCheck, status: StatusRejected},
	{StepKYCCheck, EventPreconditionFailed}: {to: StepSelfie, status: StatusInProgress},
}

// StepConflictError reports an operation that is not valid for the session's
// current step or status.
type StepConflictError struct {
	Operation string
	Step      Step
	Status    Status
}

func (e *StepConflictError) Error() string {
	if e.Status != "" && e.Status.Terminal() {
		return fmt.Sprintf("cannot %s: session is %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("cannot %s at step %s", e.Operation, e.Step)
}

// CanApply reports whether ev is legal for the session without mutating it.
func (s *Session) CanApply(op string, ev Event) error {
	if s.Status.Terminal() {
		return &StepConflictError{Operation: op, Step: s.CurrentStep, Status: s.Status}
	}
	if _, ok := transitions[transitionKey{s.CurrentStep, ev}]; !ok {
		return &StepConflictError{Operation: op, Step: s.CurrentStep, Status: s.Status}
	}
	return nil
}

// Apply moves the session along the transition table.
func (s *Session) Apply(op string, ev Event) error {
	if err := s.CanApply(op, ev); err != nil {
		return err
	}
	t := transitions[transitionKey{s.CurrentStep, ev}]
	s.CurrentStep = t.to
	s.Status = t.status
	return nil
}

// ForceApprove is the administrative override. It bypasses the transition table.
func (s *Session) ForceApprove() {
	s.Status = StatusApproved
	s.CurrentStep = StepComplete
	s.FailureReason = nil
}

// DefaultRejectReason is recorded when an operator rejects without a reason
// and no earlier failure is on file.
const DefaultRejectReason = "Manually rejected by admin"

// ForceReject is the administrative override that terminally rejects the
// session and parks it at KYC_CHECK for review.
func (s *Session) ForceReject(reason string) {
	s.Status = StatusRejected
	s.CurrentStep = StepKYCCheck
	switch {
	case reason != "":
		s.SetFailure(reason)
	case s.FailureReason == nil:
		s.SetFailure(DefaultRejectReason)
	}
}
