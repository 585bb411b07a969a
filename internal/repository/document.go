package repository

import (
	"context"
	"fmt"

	"github.com/composedlabyrinth/SwiftKYC/internal/model"
)

// CreateDocument inserts a document; it becomes the session's latest.
func (r *Repository) CreateDocument(ctx context.Context, d *model.Document) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO kyc_documents (id, session_id, doc_type, storage_ref, doc_number, is_valid, quality_score, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, d.ID, d.SessionID, d.DocType, d.StorageRef, d.DocNumber, d.Validity.Bool(), d.QualityScore, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// UpdateDocument writes the document's number, image reference and verdict.
func (r *Repository) UpdateDocument(ctx context.Context, d *model.Document) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE kyc_documents
		SET storage_ref=$1, doc_number=$2, is_valid=$3, quality_score=$4
		WHERE id=$5
	`, d.StorageRef, d.DocNumber, d.Validity.Bool(), d.QualityScore, d.ID)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	return mustAffect(tag)
}

// ListDocuments returns a session's documents newest first.
func (r *Repository) ListDocuments(ctx context.Context, sessionID string) ([]*model.Document, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, session_id, doc_type, storage_ref, doc_number, is_valid, quality_score, created_at
		FROM kyc_documents WHERE session_id=$1
		ORDER BY seq DESC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []*model.Document
	for rows.Next() {
		var (
			d     model.Document
			valid *bool
		)
		if err := rows.Scan(&d.ID, &d.SessionID, &d.DocType, &d.StorageRef, &d.DocNumber, &valid, &d.QualityScore, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		d.Validity = model.ValidityFromBool(valid)
		out = append(out, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return out, nil
}
