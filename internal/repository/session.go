package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/composedlabyrinth/SwiftKYC/internal/model"
)

const sessionColumns = `s.id, s.customer_id, s.status, s.current_step, s.failure_reason,
	s.retries_select, s.retries_scan, s.retries_upload, s.retries_selfie,
	s.selfie_ref, s.face_match_score, s.created_at, s.updated_at`

// scanSession reads one session row. Status and step values outside the
// known enums are reported as errors instead of reaching the state machine.
func scanSession(row pgx.Row, extra ...any) (*model.Session, error) {
	var (
		s            model.Session
		status, step string
	)
	dest := []any{
		&s.ID, &s.CustomerID, &status, &step, &s.FailureReason,
		&s.RetriesSelect, &s.RetriesScan, &s.RetriesUpload, &s.RetriesSelfie,
		&s.SelfieRef, &s.FaceScore, &s.CreatedAt, &s.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	var err error
	if s.Status, err = model.ParseStatus(status); err != nil {
		return nil, fmt.Errorf("session %s: %w", s.ID, err)
	}
	if s.CurrentStep, err = model.ParseStep(step); err != nil {
		return nil, fmt.Errorf("session %s: %w", s.ID, err)
	}
	return &s, nil
}

// CreateSession inserts a new session.
func (r *Repository) CreateSession(ctx context.Context, s *model.Session) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO kyc_sessions (id, customer_id, status, current_step, failure_reason,
			retries_select, retries_scan, retries_upload, retries_selfie,
			selfie_ref, face_match_score, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, s.ID, s.CustomerID, s.Status, s.CurrentStep, s.FailureReason,
		s.RetriesSelect, s.RetriesScan, s.RetriesUpload, s.RetriesSelfie,
		s.SelfieRef, s.FaceScore, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetSession returns a session by id.
func (r *Repository) GetSession(ctx context.Context, id string) (*model.Session, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM kyc_sessions s WHERE s.id=$1`, id)
	s, err := scanSession(row)
	if err != nil {
		return nil, notFoundOr(err, "select session")
	}
	return s, nil
}

// UpdateSession writes every mutable session column.
func (r *Repository) UpdateSession(ctx context.Context, s *model.Session) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE kyc_sessions
		SET status=$1, current_step=$2, failure_reason=$3,
			retries_select=$4, retries_scan=$5, retries_upload=$6, retries_selfie=$7,
			selfie_ref=$8, face_match_score=$9, updated_at=$10
		WHERE id=$11
	`, s.Status, s.CurrentStep, s.FailureReason,
		s.RetriesSelect, s.RetriesScan, s.RetriesUpload, s.RetriesSelfie,
		s.SelfieRef, s.FaceScore, s.UpdatedAt, s.ID)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return mustAffect(tag)
}

// ListSessions returns the sessions matching f, newest first, each with the
// type of its latest document.
func (r *Repository) ListSessions(ctx context.Context, f model.SessionFilter) ([]model.SessionSummary, error) {
	from, to := f.Window()
	rows, err := r.pool.Query(ctx, `
		SELECT `+sessionColumns+`,
			(SELECT d.doc_type FROM kyc_documents d WHERE d.session_id = s.id ORDER BY d.seq DESC LIMIT 1)
		FROM kyc_sessions s
		WHERE ($1::text = '' OR s.status = $1)
		  AND ($2::text = '' OR EXISTS (
				SELECT 1 FROM kyc_documents d WHERE d.session_id = s.id AND d.doc_type = $2))
		  AND ($3::timestamptz IS NULL OR s.created_at >= $3)
		  AND ($4::timestamptz IS NULL OR s.created_at <= $4)
		ORDER BY s.created_at DESC, s.id DESC
	`, string(f.Status), string(f.DocType), from, to)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []model.SessionSummary
	for rows.Next() {
		var latest *model.DocType
		s, err := scanSession(rows, &latest)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, model.SessionSummary{Session: *s, LatestDocType: latest})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return out, nil
}
