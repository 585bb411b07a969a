package model

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionHappyPath(t *testing.T) {
	s := NewSession("s1", "c1", time.Now())
	require.Equal(t, StatusInProgress, s.Status)
	require.Equal(t, StepSelectDoc, s.CurrentStep)

	for _, ev := range []Event{
		EventDocumentSelected,
		EventNumberEntered,
		EventDocumentRejected,
		EventDocumentAccepted,
		EventSelfieSubmitted,
		EventFaceMismatched,
		EventSelfieSubmitted,
		EventFaceMatched,
	} {
		require.NoError(t, s.Apply("test", ev), "event %s", ev)
	}
	assert.Equal(t, StepComplete, s.CurrentStep)
	assert.Equal(t, StatusApproved, s.Status)
}

func TestSessionRejectsIllegalTransitions(t *testing.T) {
	cases := []struct {
		name string
		from Step
		ev   Event
	}{
		{"select twice", StepScanDoc, EventDocumentSelected},
		{"selfie before document", StepScanDoc, EventSelfieSubmitted},
		{"accept without scan", StepSelectDoc, EventDocumentAccepted},
		{"face match outside check", StepSelfie, EventFaceMatched},
		{"anything after complete", StepComplete, EventNumberEntered},
		{"legacy validate step", StepValidateDoc, EventDocumentAccepted},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewSession("s1", "c1", time.Now())
			s.CurrentStep = tc.from
			err := s.Apply("op", tc.ev)
			var conflict *StepConflictError
			require.True(t, errors.As(err, &conflict))
			assert.Equal(t, tc.from, conflict.Step)
			assert.Equal(t, tc.from, s.CurrentStep)
		})
	}
}

func TestTerminalStatusBlocksEvents(t *testing.T) {
	s := NewSession("s1", "c1", time.Now())
	s.CurrentStep = StepKYCCheck
	require.NoError(t, s.Apply("face match", EventRetriesExhausted))
	assert.Equal(t, StatusRejected, s.Status)
	assert.Equal(t, StepKYCCheck, s.CurrentStep)

	err := s.Apply("face match", EventFaceMatched)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REJECTED")
}

func TestAdminOverrides(t *testing.T) {
	s := NewSession("s1", "c1", time.Now())
	s.SetFailure("OCR_ERROR")
	s.ForceApprove()
	assert.Equal(t, StatusApproved, s.Status)
	assert.Equal(t, StepComplete, s.CurrentStep)
	assert.Nil(t, s.FailureReason)

	s.ForceReject("")
	assert.Equal(t, StatusRejected, s.Status)
	assert.Equal(t, StepKYCCheck, s.CurrentStep)
	assert.Equal(t, DefaultRejectReason, s.Failure())

	s.SetFailure("DOC_NOT_VALID")
	s.ForceReject("")
	assert.Equal(t, "DOC_NOT_VALID", s.Failure())
}

func TestValidityRoundTrip(t *testing.T) {
	for _, v := range []Validity{ValidityUnset, ValidityValid, ValidityInvalid} {
		assert.Equal(t, v, ValidityFromBool(v.Bool()))
	}
	var zero Document
	assert.Equal(t, ValidityUnset, zero.Validity)
}

func TestParseDocType(t *testing.T) {
	d, err := ParseDocType(" id_alphanum10 ")
	require.NoError(t, err)
	assert.Equal(t, DocTypeAlphanum10, d)

	_, err = ParseDocType("DRIVING_LICENCE")
	assert.Error(t, err)
}

func TestParseStepAndStatus(t *testing.T) {
	for _, raw := range []string{"SELECT_DOC", "SCAN_DOC", "VALIDATE_DOC", "SELFIE", "KYC_CHECK", "complete"} {
		step, err := ParseStep(raw)
		require.NoError(t, err, raw)
		assert.NotEmpty(t, step)
	}
	_, err := ParseStep("UPLOAD")
	assert.Error(t, err)

	status, err := ParseStatus("abandoned")
	require.NoError(t, err)
	assert.Equal(t, StatusAbandoned, status)
	_, err = ParseStatus("")
	assert.Error(t, err)
}
