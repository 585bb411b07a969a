// Package worker consumes face-match tasks from asynq.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/composedlabyrinth/SwiftKYC/internal/kyc"
	"github.com/composedlabyrinth/SwiftKYC/internal/queue"
)

// FaceMatcher runs the face match for one session.
type FaceMatcher interface {
	ProcessFaceMatch(ctx context.Context, sessionID string) (kyc.FaceMatchOutcome, error)
}

// Processor is plugged into the asynq worker loop.
type Processor struct {
	matcher FaceMatcher
	logger  *slog.Logger
}

// NewProcessor constructs a worker processor.
func NewProcessor(matcher FaceMatcher, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{matcher: matcher, logger: logger}
}

// Handler registers the face-match handler.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.FaceMatchTask, p.handleFaceMatch)
	return mux
}

func (p *Processor) handleFaceMatch(ctx context.Context, task *asynq.Task) error {
	payload, err := queue.ParseFaceMatch(task)
	if err != nil {
		p.logger.ErrorContext(ctx, "discarding face match task", "error", err)
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	outcome, err := p.matcher.ProcessFaceMatch(ctx, payload.SessionID)
	if err != nil {
		if errors.Is(err, kyc.ErrSessionBusy) {
			p.logger.InfoContext(ctx, "session busy, face match will retry", "session_id", payload.SessionID)
		} else {
			p.logger.ErrorContext(ctx, "face match failed", "session_id", payload.SessionID, "error", err)
		}
		return err
	}
	p.logger.InfoContext(ctx, "face match task done", "session_id", payload.SessionID, "outcome", outcome)
	return nil
}
