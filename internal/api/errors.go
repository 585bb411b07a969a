package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/composedlabyrinth/SwiftKYC/internal/docnumber"
	"github.com/composedlabyrinth/SwiftKYC/internal/kyc"
	"github.com/composedlabyrinth/SwiftKYC/internal/model"
	"github.com/composedlabyrinth/SwiftKYC/internal/quality"
)

type problem struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
	Example   string `json:"example,omitempty"`
	Field     string `json:"field,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeProblem(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, problem{ErrorCode: code, Message: message})
}

// writeError maps service errors onto HTTP responses.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		conflict   *model.StepConflictError
		format     *docnumber.FormatError
		validation *kyc.ValidationError
		pre        *kyc.PreconditionError
		decode     *kyc.ImageDecodeError
		extraction *kyc.ExtractionError
	)
	switch {
	case errors.Is(err, kyc.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "SESSION_NOT_FOUND", "KYC session not found.")
	case errors.As(err, &conflict):
		writeProblem(w, http.StatusBadRequest, "INVALID_STEP", conflict.Error())
	case errors.As(err, &format):
		status := http.StatusUnprocessableEntity
		if format.Code == docnumber.CodeUnsupportedType {
			status = http.StatusBadRequest
		}
		respondJSON(w, status, problem{ErrorCode: format.Code, Message: format.Message, Example: format.Example})
	case errors.As(err, &validation):
		respondJSON(w, http.StatusUnprocessableEntity, problem{ErrorCode: "VALIDATION_ERROR", Message: validation.Message, Field: validation.Field})
	case errors.As(err, &pre):
		writeProblem(w, http.StatusBadRequest, pre.Code, pre.Message)
	case errors.Is(err, kyc.ErrUnsupportedContentType):
		writeProblem(w, http.StatusBadRequest, "UNSUPPORTED_MEDIA_TYPE", "Only JPEG and PNG images are allowed")
	case errors.Is(err, quality.ErrTooManyPixels):
		writeProblem(w, http.StatusRequestEntityTooLarge, "IMAGE_TOO_LARGE", "Image dimensions are too large. Please upload a smaller photo.")
	case errors.As(err, &decode):
		s.logger.WarnContext(r.Context(), "undecodable upload", "path", r.URL.Path, "error", err)
		writeProblem(w, http.StatusInternalServerError, "INVALID_IMAGE", "Uploaded file could not be decoded as an image.")
	case errors.Is(err, kyc.ErrSessionBusy):
		w.Header().Set("Retry-After", "1")
		writeProblem(w, http.StatusConflict, "SESSION_BUSY", "Another request for this session is in progress.")
	case errors.As(err, &extraction):
		s.logger.ErrorContext(r.Context(), "ocr failed", "path", r.URL.Path, "error", err)
		writeProblem(w, http.StatusInternalServerError, kyc.ReasonOCRError, "OCR processing failed. Please try again later.")
	default:
		s.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		writeProblem(w, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}
