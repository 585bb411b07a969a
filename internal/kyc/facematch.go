package kyc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/composedlabyrinth/SwiftKYC/internal/metrics"
	"github.com/composedlabyrinth/SwiftKYC/internal/model"
)

// Failure reasons recorded by the face-match job when a precondition no
// longer holds.
const (
	ReasonSelfieNotFound   = "SELFIE_NOT_FOUND"
	ReasonDocumentNotFound = "DOCUMENT_NOT_FOUND"
	ReasonDocNotValid      = "DOC_NOT_VALID"

	reasonMismatchFinal = "Selfie does not match."
	reasonMismatchRetry = "Selfie does not match. Please retake."
)

// FaceMatchOutcome tells the caller what a face-match run did. The values
// double as metric labels.
type FaceMatchOutcome string

const (
	OutcomeMatched            FaceMatchOutcome = metrics.FaceMatched
	OutcomeMismatched         FaceMatchOutcome = metrics.FaceMismatched
	OutcomeRetriesExhausted   FaceMatchOutcome = metrics.FaceRetriesExhausted
	OutcomePreconditionFailed FaceMatchOutcome = metrics.FacePreconditionFailed
	OutcomeSkipped            FaceMatchOutcome = metrics.FaceSkipped
)

// ProcessFaceMatch is the worker-side half of the selfie step. Every
// precondition is re-read at run time, so duplicate or late deliveries of the
// job leave a session that already left KYC_CHECK untouched. An error means
// the job should be retried.
func (s *Service) ProcessFaceMatch(ctx context.Context, sessionID string) (FaceMatchOutcome, error) {
	var outcome FaceMatchOutcome
	err := s.withSession(ctx, sessionID, func(session *model.Session) error {
		var err error
		outcome, err = s.processFaceMatch(ctx, session)
		return err
	})
	if errors.Is(err, ErrNotFound) {
		s.logger.WarnContext(ctx, "face match for unknown session", "session_id", sessionID)
		s.metrics.IncFaceMatch(string(OutcomeSkipped))
		return OutcomeSkipped, nil
	}
	if err != nil {
		return "", err
	}
	s.metrics.IncFaceMatch(string(outcome))
	return outcome, nil
}

func (s *Service) processFaceMatch(ctx context.Context, session *model.Session) (FaceMatchOutcome, error) {
	log := s.logger.With("session_id", session.ID)
	if session.Status.Terminal() || session.CurrentStep != model.StepKYCCheck {
		log.InfoContext(ctx, "face match skipped", "step", session.CurrentStep, "status", session.Status)
		return OutcomeSkipped, nil
	}

	if session.SelfieRef == nil || *session.SelfieRef == "" {
		return s.failPrecondition(ctx, session, ReasonSelfieNotFound)
	}
	docs, err := s.repo.ListDocuments(ctx, session.ID)
	if err != nil {
		return "", fmt.Errorf("list documents: %w", err)
	}
	if len(docs) == 0 {
		return s.failPrecondition(ctx, session, ReasonDocumentNotFound)
	}
	doc := docs[0]
	if doc.Validity != model.ValidityValid {
		return s.failPrecondition(ctx, session, ReasonDocNotValid)
	}

	docRef := ""
	if doc.StorageRef != nil {
		docRef = *doc.StorageRef
	}
	start := time.Now()
	res, err := s.faces.Assess(ctx, docRef, *session.SelfieRef)
	s.metrics.ObserveFaceMatch(start)
	if err != nil {
		return "", fmt.Errorf("face match: %w", err)
	}

	score := res.Score
	session.FaceScore = &score

	const op = "complete face match"
	var outcome FaceMatchOutcome
	switch {
	case res.IsMatch:
		outcome = OutcomeMatched
		session.SetFailure("")
		if err := session.Apply(op, model.EventFaceMatched); err != nil {
			return "", err
		}
	case session.RetriesSelfie+1 >= model.MaxSelfieAttempts:
		outcome = OutcomeRetriesExhausted
		session.RetriesSelfie++
		session.SetFailure(orDefault(res.Reason, reasonMismatchFinal))
		if err := session.Apply(op, model.EventRetriesExhausted); err != nil {
			return "", err
		}
	default:
		outcome = OutcomeMismatched
		session.RetriesSelfie++
		session.SetFailure(orDefault(res.Reason, reasonMismatchRetry))
		if err := session.Apply(op, model.EventFaceMismatched); err != nil {
			return "", err
		}
	}
	if err := s.saveSession(ctx, session); err != nil {
		return "", err
	}
	log.InfoContext(ctx, "face match completed",
		"outcome", outcome,
		"score", res.Score,
		"retries_selfie", session.RetriesSelfie,
		"status", session.Status,
	)
	return outcome, nil
}

func (s *Service) failPrecondition(ctx context.Context, session *model.Session, reason string) (FaceMatchOutcome, error) {
	session.SetFailure(reason)
	if err := session.Apply("complete face match", model.EventPreconditionFailed); err != nil {
		return "", err
	}
	if err := s.saveSession(ctx, session); err != nil {
		return "", err
	}
	s.logger.WarnContext(ctx, "face match precondition failed", "session_id", session.ID, "reason", reason)
	return OutcomePreconditionFailed, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
