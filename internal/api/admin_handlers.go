package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/composedlabyrinth/SwiftKYC/internal/kyc"
	"github.com/composedlabyrinth/SwiftKYC/internal/model"
	"github.com/composedlabyrinth/SwiftKYC/internal/storage"
)

type sessionListResponse struct {
	Items []model.SessionSummary `json:"items"`
	Total int                    `json:"total"`
}

type detailDocument struct {
	DocumentID   string         `json:"document_id"`
	DocType      model.DocType  `json:"doc_type"`
	DocNumber    *string        `json:"doc_number"`
	IsValid      model.Validity `json:"is_valid"`
	QualityScore *float64       `json:"quality_score"`
	StorageURL   *string        `json:"storage_url"`
	CreatedAt    time.Time      `json:"created_at"`
}

type sessionDetailResponse struct {
	*model.Session
	SelfieURL *string          `json:"selfie_url"`
	Customer  *model.Customer  `json:"customer,omitempty"`
	Documents []detailDocument `json:"documents"`
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

type overrideResponse struct {
	SessionID     string       `json:"session_id"`
	Status        model.Status `json:"status"`
	CurrentStep   model.Step   `json:"current_step"`
	FailureReason *string      `json:"failure_reason"`
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "INVALID_FILTER", err.Error())
		return
	}
	items, err := s.svc.ListSessions(r.Context(), f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if items == nil {
		items = []model.SessionSummary{}
	}
	respondJSON(w, http.StatusOK, sessionListResponse{Items: items, Total: len(items)})
}

func parseFilter(r *http.Request) (model.SessionFilter, error) {
	q := r.URL.Query()
	var f model.SessionFilter
	if v := q.Get("status"); v != "" {
		st, err := model.ParseStatus(v)
		if err != nil {
			return f, errors.New("invalid status: use IN_PROGRESS, APPROVED, REJECTED or ABANDONED")
		}
		f.Status = st
	}
	if v := q.Get("doc_type"); v != "" {
		dt, err := model.ParseDocType(v)
		if err != nil {
			return f, fmt.Errorf("invalid doc_type %q", v)
		}
		f.DocType = dt
	}
	for key, dst := range map[string]**time.Time{"created_from": &f.CreatedFrom, "created_to": &f.CreatedTo} {
		v := q.Get(key)
		if v == "" {
			continue
		}
		t, err := parseTime(v)
		if err != nil {
			return f, fmt.Errorf("invalid %s: use RFC3339 or YYYY-MM-DD", key)
		}
		*dst = &t
	}
	return f, nil
}

func parseTime(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, v)
}

func (s *Server) handleSessionDetail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	detail, err := s.svc.SessionDetail(ctx, chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := sessionDetailResponse{
		Session:   detail.Session,
		SelfieURL: s.imageURL(r, detail.SelfieRef),
		Customer:  detail.Customer,
		Documents: make([]detailDocument, 0, len(detail.Documents)),
	}
	for _, d := range detail.Documents {
		resp.Documents = append(resp.Documents, detailDocument{
			DocumentID:   d.ID,
			DocType:      d.DocType,
			DocNumber:    d.DocNumber,
			IsValid:      d.Validity,
			QualityScore: d.QualityScore,
			StorageURL:   s.imageURL(r, d.StorageRef),
			CreatedAt:    d.CreatedAt,
		})
	}
	respondJSON(w, http.StatusOK, resp)
}

// imageURL returns a presigned object-store link when the store supports it
// and a signed link to handleImage otherwise.
func (s *Server) imageURL(r *http.Request, ref *string) *string {
	if ref == nil || *ref == "" {
		return nil
	}
	if p, ok := s.images.(Presigner); ok {
		u, err := p.PresignURL(r.Context(), *ref, s.signedTTL)
		if err == nil {
			return &u
		}
		s.logger.WarnContext(r.Context(), "presign failed, using signed link", "ref", *ref, "error", err)
	}
	u := s.signer.URL(imagesPath, *ref, s.signedTTL)
	return &u
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	ref, ok := s.signer.Verify(r.URL.Query())
	if !ok {
		writeProblem(w, http.StatusForbidden, "INVALID_SIGNATURE", "link is invalid or expired")
		return
	}
	data, err := s.images.Read(r.Context(), ref)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeProblem(w, http.StatusNotFound, "IMAGE_NOT_FOUND", "image not found")
			return
		}
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("Cache-Control", "private, no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	session, err := s.svc.Approve(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, override(session))
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	var req rejectRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeProblem(w, http.StatusBadRequest, "INVALID_BODY", "invalid JSON request body")
		return
	}
	session, err := s.svc.Reject(r.Context(), chi.URLParam(r, "sessionID"), req.Reason)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, override(session))
}

func (s *Server) handleRequeue(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if err := s.svc.RequeueFaceMatch(r.Context(), sessionID); err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"session_id": sessionID, "status": "queued"})
}

func override(s *model.Session) overrideResponse {
	return overrideResponse{
		SessionID:     s.ID,
		Status:        s.Status,
		CurrentStep:   s.CurrentStep,
		FailureReason: s.FailureReason,
	}
}

var _ Service = (*kyc.Service)(nil)
