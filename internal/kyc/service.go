// Package kyc sequences the verification pipeline: document selection,
// number entry, document validation (quality gate, OCR, identity match),
// selfie submission and the asynchronous face match.
package kyc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/composedlabyrinth/SwiftKYC/internal/docnumber"
	"github.com/composedlabyrinth/SwiftKYC/internal/facematch"
	"github.com/composedlabyrinth/SwiftKYC/internal/identity"
	"github.com/composedlabyrinth/SwiftKYC/internal/metrics"
	"github.com/composedlabyrinth/SwiftKYC/internal/model"
	"github.com/composedlabyrinth/SwiftKYC/internal/ocr"
	"github.com/composedlabyrinth/SwiftKYC/internal/quality"
	"github.com/composedlabyrinth/SwiftKYC/internal/sessionlock"
	"github.com/composedlabyrinth/SwiftKYC/internal/storage"
)

// Repository persists customers, sessions and documents. ListDocuments
// returns newest first; index 0 is the authoritative document.
type Repository interface {
	UpsertCustomer(ctx context.Context, c *model.Customer) (*model.Customer, error)
	GetCustomer(ctx context.Context, id string) (*model.Customer, error)
	CreateSession(ctx context.Context, s *model.Session) error
	GetSession(ctx context.Context, id string) (*model.Session, error)
	UpdateSession(ctx context.Context, s *model.Session) error
	CreateDocument(ctx context.Context, d *model.Document) error
	UpdateDocument(ctx context.Context, d *model.Document) error
	ListDocuments(ctx context.Context, sessionID string) ([]*model.Document, error)
	ListSessions(ctx context.Context, f model.SessionFilter) ([]model.SessionSummary, error)
}

// ImageStore keeps document and selfie images in separate namespaces.
type ImageStore interface {
	facematch.Images
	SaveDocument(ctx context.Context, sessionID, fileName, contentType string, data []byte) (string, error)
	SaveSelfie(ctx context.Context, sessionID, fileName, contentType string, data []byte) (string, error)
}

// Enqueuer schedules the face-match job for a session.
type Enqueuer interface {
	EnqueueFaceMatch(ctx context.Context, sessionID string) error
}

// Locker serializes operations on one session.
type Locker interface {
	Lock(ctx context.Context, sessionID string) (sessionlock.Unlock, error)
}

// Extractor reads the document number and name from an image.
type Extractor interface {
	Extract(ctx context.Context, image []byte, docType model.DocType) (ocr.Result, error)
}

// QualityGate screens document images before OCR.
type QualityGate interface {
	Evaluate(data []byte) (quality.Result, error)
}

// FaceGate validates a selfie and scores it against the document.
type FaceGate interface {
	Assess(ctx context.Context, documentRef, selfieRef string) (facematch.Result, error)
}

// Upload is an image received from a client.
type Upload struct {
	FileName    string
	ContentType string
	Data        []byte
}

// Service implements every KYC operation.
type Service struct {
	repo      Repository
	images    ImageStore
	queue     Enqueuer
	extractor Extractor
	gate      QualityGate
	matcher   *identity.Matcher
	faces     FaceGate
	locker    Locker

	imageSlots *semaphore.Weighted
	ocrTimeout time.Duration

	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithLocker(l Locker) Option {
	return func(s *Service) {
		s.locker = l
	}
}

func WithQualityGate(g QualityGate) Option {
	return func(s *Service) {
		s.gate = g
	}
}

func WithMatcher(m *identity.Matcher) Option {
	return func(s *Service) {
		s.matcher = m
	}
}

func WithFaceGate(g FaceGate) Option {
	return func(s *Service) {
		s.faces = g
	}
}

// WithOCRLimits bounds concurrent image work (quality gate and OCR) and the
// time each OCR call may take.
func WithOCRLimits(concurrency int, timeout time.Duration) Option {
	return func(s *Service) {
		if concurrency > 0 {
			s.imageSlots = semaphore.NewWeighted(int64(concurrency))
		}
		if timeout > 0 {
			s.ocrTimeout = timeout
		}
	}
}

// WithClock overrides time.Now; tests use it to pin timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New constructs a Service. Unset collaborators get production defaults: the
// default quality gate and matcher, a face gate over images and an
// in-process session lock.
func New(repo Repository, images ImageStore, queue Enqueuer, extractor Extractor, opts ...Option) *Service {
	s := &Service{
		repo:       repo,
		images:     images,
		queue:      queue,
		extractor:  extractor,
		imageSlots: semaphore.NewWeighted(int64(runtime.NumCPU())),
		ocrTimeout: 30 * time.Second,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.gate == nil {
		s.gate = quality.New()
	}
	if s.matcher == nil {
		s.matcher = identity.NewMatcher()
	}
	if s.faces == nil {
		s.faces = facematch.New(images)
	}
	if s.locker == nil {
		s.locker = sessionlock.NewLocal(5 * time.Second)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// CreateSessionInput identifies the customer starting a session.
type CreateSessionInput struct {
	Name   string
	Mobile string
	Email  *string
}

// CreateSession registers (or refreshes) the customer by mobile number and
// opens a new session at SELECT_DOC.
func (s *Service) CreateSession(ctx context.Context, in CreateSessionInput) (*model.Session, error) {
	name := strings.Join(strings.Fields(in.Name), " ")
	if n := utf8.RuneCountInString(name); n < 2 || n > 100 {
		return nil, &ValidationError{Field: "name", Message: "must be between 2 and 100 characters"}
	}
	mobile := strings.TrimSpace(in.Mobile)
	if len(mobile) != 10 || docnumber.DigitsOnly(mobile) != mobile {
		return nil, &ValidationError{Field: "mobile", Message: "must be exactly 10 digits"}
	}

	now := s.now()
	customer, err := s.repo.UpsertCustomer(ctx, &model.Customer{
		ID:        uuid.NewString(),
		Name:      name,
		Mobile:    mobile,
		Email:     in.Email,
		CreatedAt: now,
	})
	if err != nil {
		return nil, fmt.Errorf("upsert customer: %w", err)
	}

	session := model.NewSession(uuid.NewString(), customer.ID, now)
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	s.metrics.IncSessionCreated()
	s.logger.InfoContext(ctx, "kyc session created",
		"session_id", session.ID,
		"customer_id", customer.ID,
	)
	return session, nil
}

// GetSession loads a session.
func (s *Service) GetSession(ctx context.Context, id string) (*model.Session, error) {
	return s.loadSession(ctx, id)
}

// SelectDocument records the document type the customer will scan. Each
// selection creates a new document that supersedes earlier ones.
func (s *Service) SelectDocument(ctx context.Context, sessionID string, docType model.DocType) (*model.Document, error) {
	var doc *model.Document
	err := s.withSession(ctx, sessionID, func(session *model.Session) error {
		if err := session.CanApply("select document", model.EventDocumentSelected); err != nil {
			return err
		}
		now := s.now()
		doc = &model.Document{
			ID:        uuid.NewString(),
			SessionID: session.ID,
			DocType:   docType,
			CreatedAt: now,
		}
		if err := s.repo.CreateDocument(ctx, doc); err != nil {
			return fmt.Errorf("create document: %w", err)
		}
		if err := session.Apply("select document", model.EventDocumentSelected); err != nil {
			return err
		}
		return s.saveSession(ctx, session)
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "document type selected",
		"session_id", sessionID,
		"document_id", doc.ID,
		"doc_type", docType,
	)
	return doc, nil
}

// EnterDocNumber validates and stores the number typed by the customer on
// the authoritative document. A *docnumber.FormatError leaves everything
// unchanged.
func (s *Service) EnterDocNumber(ctx context.Context, sessionID, raw string) (*model.Document, error) {
	var doc *model.Document
	err := s.withSession(ctx, sessionID, func(session *model.Session) error {
		if err := session.CanApply("enter document number", model.EventNumberEntered); err != nil {
			return err
		}
		var err error
		doc, err = s.latestDocument(ctx, session.ID)
		if err != nil {
			return err
		}
		number, err := docnumber.Parse(doc.DocType, raw)
		if err != nil {
			return err
		}
		doc.DocNumber = &number
		if err := s.repo.UpdateDocument(ctx, doc); err != nil {
			return fmt.Errorf("update document: %w", err)
		}
		if err := session.Apply("enter document number", model.EventNumberEntered); err != nil {
			return err
		}
		return s.saveSession(ctx, session)
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// withSession loads a session under its lock, runs fn and releases the lock.
func (s *Service) withSession(ctx context.Context, sessionID string, fn func(*model.Session) error) error {
	unlock, err := s.locker.Lock(ctx, sessionID)
	if err != nil {
		return err
	}
	defer unlock()
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return err
	}
	return fn(session)
}

func (s *Service) loadSession(ctx context.Context, id string) (*model.Session, error) {
	session, err := s.repo.GetSession(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, notFound("session", id)
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	return session, nil
}

func (s *Service) saveSession(ctx context.Context, session *model.Session) error {
	session.Touch(s.now())
	if err := s.repo.UpdateSession(ctx, session); err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

// latestDocument returns the authoritative document or a PreconditionError
// when none was selected yet.
func (s *Service) latestDocument(ctx context.Context, sessionID string) (*model.Document, error) {
	docs, err := s.repo.ListDocuments(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	if len(docs) == 0 {
		return nil, &PreconditionError{Code: CodeNoDocument, Message: "No document record found. Select document type first."}
	}
	return docs[0], nil
}

func checkContentType(ct string) error {
	switch strings.ToLower(strings.TrimSpace(ct)) {
	case "image/jpeg", "image/png":
		return nil
	}
	return ErrUnsupportedContentType
}
