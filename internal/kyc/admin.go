package kyc

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/composedlabyrinth/SwiftKYC/internal/model"
	"github.com/composedlabyrinth/SwiftKYC/internal/storage"
)

// SessionDetail is the operator view of one session.
type SessionDetail struct {
	Session   *model.Session    `json:"session"`
	Customer  *model.Customer   `json:"customer,omitempty"`
	SelfieRef *string           `json:"selfie_url"`
	Documents []*model.Document `json:"documents"`
}

// ListSessions returns sessions matching f, newest first.
func (s *Service) ListSessions(ctx context.Context, f model.SessionFilter) ([]model.SessionSummary, error) {
	out, err := s.repo.ListSessions(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return out, nil
}

// SessionDetail loads a session with its customer and every document,
// newest first.
func (s *Service) SessionDetail(ctx context.Context, id string) (*SessionDetail, error) {
	session, err := s.loadSession(ctx, id)
	if err != nil {
		return nil, err
	}
	detail := &SessionDetail{Session: session, SelfieRef: session.SelfieRef}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, err := s.repo.GetCustomer(gctx, session.CustomerID)
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("load customer: %w", err)
		}
		detail.Customer = c
		return nil
	})
	g.Go(func() error {
		docs, err := s.repo.ListDocuments(gctx, session.ID)
		if err != nil {
			return fmt.Errorf("list documents: %w", err)
		}
		detail.Documents = docs
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return detail, nil
}

// Approve force-approves a session regardless of its step.
func (s *Service) Approve(ctx context.Context, id string) (*model.Session, error) {
	var out *model.Session
	err := s.withSession(ctx, id, func(session *model.Session) error {
		session.ForceApprove()
		out = session
		return s.saveSession(ctx, session)
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncAdminOverride("approve")
	s.logger.InfoContext(ctx, "session approved by admin", "session_id", id)
	return out, nil
}

// Reject force-rejects a session. An empty reason keeps the failure already
// on file or falls back to model.DefaultRejectReason.
func (s *Service) Reject(ctx context.Context, id, reason string) (*model.Session, error) {
	var out *model.Session
	err := s.withSession(ctx, id, func(session *model.Session) error {
		session.ForceReject(reason)
		out = session
		return s.saveSession(ctx, session)
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncAdminOverride("reject")
	s.logger.InfoContext(ctx, "session rejected by admin", "session_id", id, "reason", out.Failure())
	return out, nil
}
