package kyc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/composedlabyrinth/SwiftKYC/internal/identity"
	"github.com/composedlabyrinth/SwiftKYC/internal/metrics"
	"github.com/composedlabyrinth/SwiftKYC/internal/model"
	"github.com/composedlabyrinth/SwiftKYC/internal/ocr"
	"github.com/composedlabyrinth/SwiftKYC/internal/quality"
	"github.com/composedlabyrinth/SwiftKYC/internal/storage"
)

// Failure reasons recorded on the session by document validation.
const (
	ReasonOCRError        = "OCR_ERROR"
	ReasonQualityRejected = "QUALITY_REJECTED"
)

// ValidationOutcome reports what happened to an uploaded document. OCR and
// Match are zero when the quality gate rejected the image.
type ValidationOutcome struct {
	Session  *model.Session
	Document *model.Document
	Quality  quality.Result
	OCR      ocr.Result
	Match    identity.Result
}

// Accepted reports whether the document moved the session to SELFIE.
func (o *ValidationOutcome) Accepted() bool {
	return o.Document.Validity == model.ValidityValid
}

// ValidateDocument stores the uploaded image on the authoritative document
// and runs the quality gate, OCR and identity match. Business rejections are
// recorded on the session and document and returned as a normal outcome;
// only decode, storage and OCR failures return an error.
func (s *Service) ValidateDocument(ctx context.Context, sessionID string, up Upload) (*ValidationOutcome, error) {
	if err := checkContentType(up.ContentType); err != nil {
		return nil, err
	}
	var out *ValidationOutcome
	err := s.withSession(ctx, sessionID, func(session *model.Session) error {
		var err error
		out, err = s.validateDocument(ctx, session, up)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) validateDocument(ctx context.Context, session *model.Session, up Upload) (*ValidationOutcome, error) {
	const op = "validate document"
	if err := session.CanApply(op, model.EventDocumentAccepted); err != nil {
		return nil, err
	}
	doc, err := s.latestDocument(ctx, session.ID)
	if err != nil {
		return nil, err
	}

	verdict, err := s.evaluateQuality(ctx, up.Data)
	if err != nil {
		var decodeErr *quality.DecodeError
		if errors.As(err, &decodeErr) {
			return nil, &ImageDecodeError{Err: decodeErr.Err}
		}
		return nil, fmt.Errorf("quality gate: %w", err)
	}

	ref, err := s.images.SaveDocument(ctx, session.ID, up.FileName, up.ContentType, up.Data)
	if err != nil {
		return nil, fmt.Errorf("store document image: %w", err)
	}
	doc.StorageRef = &ref
	doc.ResetEvaluation()
	out := &ValidationOutcome{Session: session, Document: doc, Quality: verdict}

	log := s.logger.With("session_id", session.ID, "document_id", doc.ID, "doc_type", doc.DocType)

	if !verdict.Accepted {
		score := verdict.Score
		doc.Validity = model.ValidityInvalid
		doc.QualityScore = &score
		session.SetFailure(fmt.Sprintf("%s check=%s score=%.4f: %s", ReasonQualityRejected, verdict.Check, verdict.Score, verdict.Reason))
		if err := s.persistEvaluation(ctx, session, doc, model.EventDocumentRejected); err != nil {
			return nil, err
		}
		s.metrics.IncQualityRejection(string(verdict.Check))
		s.metrics.IncDocumentValidation(metrics.DocumentQualityRejected)
		log.InfoContext(ctx, "document rejected by quality gate", "check", verdict.Check, "score", verdict.Score)
		return out, nil
	}

	extracted, err := s.runOCR(ctx, up.Data, doc.DocType)
	if err != nil {
		log.ErrorContext(ctx, "ocr failed", "error", err)
		doc.Validity = model.ValidityInvalid
		doc.QualityScore = nil
		session.SetFailure(ReasonOCRError)
		if perr := s.persistEvaluation(ctx, session, doc, model.EventDocumentRejected); perr != nil {
			return nil, perr
		}
		s.metrics.IncDocumentValidation(metrics.DocumentOCRError)
		return nil, &ExtractionError{Err: err}
	}
	out.OCR = extracted
	score := extracted.QualityScore
	doc.QualityScore = &score

	enteredName, err := s.customerName(ctx, session.CustomerID)
	if err != nil {
		return nil, err
	}
	match := s.matcher.Match(identity.Input{
		DocType:       doc.DocType,
		EnteredNumber: doc.Number(),
		OCRNumber:     extracted.DocumentNumber,
		EnteredName:   enteredName,
		OCRName:       extracted.Name,
	})
	out.Match = match

	event := model.EventDocumentAccepted
	if match.Accepted() {
		doc.Validity = model.ValidityValid
		session.SetFailure("")
		s.metrics.IncDocumentValidation(metrics.DocumentAccepted)
	} else {
		event = model.EventDocumentRejected
		doc.Validity = model.ValidityInvalid
		session.SetFailure(match.FailureReason(extracted.RawText))
		s.metrics.IncDocumentValidation(metrics.DocumentMismatch)
	}
	if err := s.persistEvaluation(ctx, session, doc, event); err != nil {
		return nil, err
	}
	if match.LastFourOnly {
		log.WarnContext(ctx, "document number matched on last four digits only")
	}
	log.InfoContext(ctx, "document evaluated",
		"accepted", match.Accepted(),
		"number_match", match.NumberMatch,
		"name_match", match.NameMatch,
		"ocr_quality", extracted.QualityScore,
	)
	return out, nil
}

// evaluateQuality runs the quality gate in one of the image slots shared with
// OCR, so decoding and filtering count against the same concurrency bound.
func (s *Service) evaluateQuality(ctx context.Context, data []byte) (quality.Result, error) {
	if err := s.imageSlots.Acquire(ctx, 1); err != nil {
		return quality.Result{}, fmt.Errorf("wait for image slot: %w", err)
	}
	defer s.imageSlots.Release(1)
	return s.gate.Evaluate(data)
}

type ocrOutcome struct {
	res ocr.Result
	err error
}

// runOCR bounds concurrent OCR calls and applies the OCR deadline. Waiting
// for a slot counts against the caller's context only. A call that overruns
// the deadline returns to the caller, but its slot stays taken until the
// extractor itself returns.
func (s *Service) runOCR(ctx context.Context, image []byte, docType model.DocType) (ocr.Result, error) {
	if err := s.imageSlots.Acquire(ctx, 1); err != nil {
		return ocr.Result{}, fmt.Errorf("wait for ocr slot: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, s.ocrTimeout)
	defer cancel()
	start := time.Now()
	defer s.metrics.ObserveOCR(start)

	done := make(chan ocrOutcome, 1)
	go func() {
		defer s.imageSlots.Release(1)
		res, err := s.extractor.Extract(ctx, image, docType)
		done <- ocrOutcome{res: res, err: err}
	}()
	select {
	case out := <-done:
		return out.res, out.err
	case <-ctx.Done():
		return ocr.Result{}, fmt.Errorf("ocr: %w", ctx.Err())
	}
}

func (s *Service) customerName(ctx context.Context, customerID string) (string, error) {
	c, err := s.repo.GetCustomer(ctx, customerID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("load customer: %w", err)
	}
	return c.Name, nil
}

func (s *Service) persistEvaluation(ctx context.Context, session *model.Session, doc *model.Document, ev model.Event) error {
	if err := s.repo.UpdateDocument(ctx, doc); err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if err := session.Apply("validate document", ev); err != nil {
		return err
	}
	return s.saveSession(ctx, session)
}
