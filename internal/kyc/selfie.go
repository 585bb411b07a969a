package kyc

import (
	"context"
	"fmt"

	"github.com/composedlabyrinth/SwiftKYC/internal/model"
)

// SubmitSelfie stores the selfie, moves the session to KYC_CHECK and
// schedules the face match. The authoritative document must be valid; an
// unevaluated document does not qualify.
func (s *Service) SubmitSelfie(ctx context.Context, sessionID string, up Upload) (*model.Session, error) {
	if err := checkContentType(up.ContentType); err != nil {
		return nil, err
	}
	var out *model.Session
	err := s.withSession(ctx, sessionID, func(session *model.Session) error {
		const op = "submit selfie"
		if err := session.CanApply(op, model.EventSelfieSubmitted); err != nil {
			return err
		}
		doc, err := s.latestDocument(ctx, session.ID)
		if err != nil {
			return err
		}
		if doc.Validity != model.ValidityValid {
			return &PreconditionError{
				Code:    CodeDocumentNotValidated,
				Message: "Document not validated. Please re-upload or fix your document before uploading selfie.",
			}
		}

		ref, err := s.images.SaveSelfie(ctx, session.ID, up.FileName, up.ContentType, up.Data)
		if err != nil {
			return fmt.Errorf("store selfie: %w", err)
		}
		session.SelfieRef = &ref
		session.FaceScore = nil
		session.SetFailure("")
		if err := session.Apply(op, model.EventSelfieSubmitted); err != nil {
			return err
		}
		if err := s.saveSession(ctx, session); err != nil {
			return err
		}
		// Enqueue while still holding the lock; the worker re-checks every
		// precondition when it runs.
		if err := s.queue.EnqueueFaceMatch(ctx, session.ID); err != nil {
			s.logger.ErrorContext(ctx, "enqueue face match failed", "session_id", session.ID, "error", err)
			return fmt.Errorf("enqueue face match: %w", err)
		}
		out = session
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "selfie submitted", "session_id", sessionID)
	return out, nil
}

// RequeueFaceMatch schedules the face match again for a session waiting at
// KYC_CHECK, e.g. after the queue was unavailable during SubmitSelfie.
func (s *Service) RequeueFaceMatch(ctx context.Context, sessionID string) error {
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.Status.Terminal() || session.CurrentStep != model.StepKYCCheck {
		return &model.StepConflictError{Operation: "requeue face match", Step: session.CurrentStep, Status: session.Status}
	}
	if err := s.queue.EnqueueFaceMatch(ctx, session.ID); err != nil {
		return fmt.Errorf("enqueue face match: %w", err)
	}
	s.logger.InfoContext(ctx, "face match requeued", "session_id", sessionID)
	return nil
}
