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
)

type createSessionRequest struct {
	Name   string  `json:"name"`
	Mobile string  `json:"mobile"`
	Email  *string `json:"email,omitempty"`
}

type selectDocumentRequest struct {
	DocType string `json:"doc_type"`
}

type selectDocumentResponse struct {
	SessionID  string        `json:"session_id"`
	DocumentID string        `json:"document_id"`
	DocType    model.DocType `json:"doc_type"`
	NextStep   model.Step    `json:"next_step"`
}

type docNumberRequest struct {
	DocNumber string `json:"doc_number"`
}

type docNumberResponse struct {
	SessionID  string     `json:"session_id"`
	DocumentID string     `json:"document_id"`
	DocNumber  string     `json:"doc_number"`
	NextStep   model.Step `json:"next_step"`
}

type validateDocumentResponse struct {
	DocumentID    string         `json:"document_id"`
	SessionID     string         `json:"session_id"`
	StorageURL    *string        `json:"storage_url"`
	IsValid       model.Validity `json:"is_valid"`
	QualityScore  *float64       `json:"quality_score"`
	FailureReason *string        `json:"failure_reason"`
	NextStep      model.Step     `json:"next_step"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

type selfieResponse struct {
	SessionID string       `json:"session_id"`
	Status    model.Status `json:"status"`
	NextStep  model.Step   `json:"next_step"`
	Message   string       `json:"message"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	session, err := s.svc.CreateSession(r.Context(), kyc.CreateSessionInput{
		Name:   req.Name,
		Mobile: req.Mobile,
		Email:  req.Email,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, session)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.svc.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, session)
}

func (s *Server) handleSelectDocument(w http.ResponseWriter, r *http.Request) {
	var req selectDocumentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	docType, err := model.ParseDocType(req.DocType)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "INVALID_DOC_TYPE",
			fmt.Sprintf("Invalid document type. Allowed: %s, %s, %s, %s",
				model.DocTypeNumeric12, model.DocTypeAlphanum10, model.DocTypePassport, model.DocTypeVoterID))
		return
	}
	sessionID := chi.URLParam(r, "sessionID")
	doc, err := s.svc.SelectDocument(r.Context(), sessionID, docType)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, selectDocumentResponse{
		SessionID:  sessionID,
		DocumentID: doc.ID,
		DocType:    doc.DocType,
		NextStep:   model.StepScanDoc,
	})
}

func (s *Server) handleEnterDocNumber(w http.ResponseWriter, r *http.Request) {
	var req docNumberRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sessionID := chi.URLParam(r, "sessionID")
	doc, err := s.svc.EnterDocNumber(r.Context(), sessionID, req.DocNumber)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, docNumberResponse{
		SessionID:  sessionID,
		DocumentID: doc.ID,
		DocNumber:  doc.Number(),
		NextStep:   model.StepScanDoc,
	})
}

func (s *Server) handleValidateDocument(w http.ResponseWriter, r *http.Request) {
	up, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	out, err := s.svc.ValidateDocument(r.Context(), chi.URLParam(r, "sessionID"), up)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, validateDocumentResponse{
		DocumentID:    out.Document.ID,
		SessionID:     out.Session.ID,
		StorageURL:    out.Document.StorageRef,
		IsValid:       out.Document.Validity,
		QualityScore:  out.Document.QualityScore,
		FailureReason: out.Session.FailureReason,
		NextStep:      out.Session.CurrentStep,
		UpdatedAt:     out.Session.UpdatedAt,
	})
}

func (s *Server) handleSubmitSelfie(w http.ResponseWriter, r *http.Request) {
	up, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	session, err := s.svc.SubmitSelfie(r.Context(), chi.URLParam(r, "sessionID"), up)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusAccepted, selfieResponse{
		SessionID: session.ID,
		Status:    session.Status,
		NextStep:  session.CurrentStep,
		Message:   "Selfie received. Face match is in progress.",
	})
}

// readUpload reads the multipart "file" field. The content type is sniffed
// from the bytes rather than trusted from the client.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (kyc.Upload, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxImageSize+64<<10)
	mr, err := r.MultipartReader()
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "INVALID_UPLOAD", "expecting multipart form with a file field")
		return kyc.Upload{}, false
	}
	for {
		part, err := mr.NextPart()
		if err != nil {
			if errors.Is(err, io.EOF) {
				writeProblem(w, http.StatusBadRequest, "INVALID_UPLOAD", "missing file field")
			} else {
				writeProblem(w, http.StatusBadRequest, "INVALID_UPLOAD", "malformed multipart body")
			}
			return kyc.Upload{}, false
		}
		if part.FormName() != "file" {
			part.Close()
			continue
		}
		data, err := io.ReadAll(io.LimitReader(part, s.maxImageSize+1))
		part.Close()
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "INVALID_UPLOAD", "failed to read file")
			return kyc.Upload{}, false
		}
		if int64(len(data)) > s.maxImageSize {
			writeProblem(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE",
				fmt.Sprintf("file exceeds limit (%d bytes)", s.maxImageSize))
			return kyc.Upload{}, false
		}
		if len(data) == 0 {
			writeProblem(w, http.StatusBadRequest, "INVALID_UPLOAD", "empty file")
			return kyc.Upload{}, false
		}
		return kyc.Upload{
			FileName:    part.FileName(),
			ContentType: http.DetectContentType(data),
			Data:        data,
		}, true
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := dec.Decode(dst); err != nil {
		writeProblem(w, http.StatusBadRequest, "INVALID_BODY", "invalid JSON request body")
		return false
	}
	return true
}
