// Package api exposes the KYC workflow and the admin console over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/composedlabyrinth/SwiftKYC/internal/config"
	"github.com/composedlabyrinth/SwiftKYC/internal/kyc"
	"github.com/composedlabyrinth/SwiftKYC/internal/model"
	"github.com/composedlabyrinth/SwiftKYC/internal/signing"
)

// Service is the subset of *kyc.Service the handlers call.
type Service interface {
	CreateSession(ctx context.Context, in kyc.CreateSessionInput) (*model.Session, error)
	GetSession(ctx context.Context, id string) (*model.Session, error)
	SelectDocument(ctx context.Context, id string, docType model.DocType) (*model.Document, error)
	EnterDocNumber(ctx context.Context, id, raw string) (*model.Document, error)
	ValidateDocument(ctx context.Context, id string, up kyc.Upload) (*kyc.ValidationOutcome, error)
	SubmitSelfie(ctx context.Context, id string, up kyc.Upload) (*model.Session, error)
	RequeueFaceMatch(ctx context.Context, id string) error
	ListSessions(ctx context.Context, f model.SessionFilter) ([]model.SessionSummary, error)
	SessionDetail(ctx context.Context, id string) (*kyc.SessionDetail, error)
	Approve(ctx context.Context, id string) (*model.Session, error)
	Reject(ctx context.Context, id, reason string) (*model.Session, error)
}

// ImageReader serves stored images to operators.
type ImageReader interface {
	Read(ctx context.Context, ref string) ([]byte, error)
}

// Presigner is implemented by image stores that can hand out direct links.
type Presigner interface {
	PresignURL(ctx context.Context, ref string, ttl time.Duration) (string, error)
}

const imagesPath = "/api/v1/admin/kyc/images"

// Server hosts the HTTP handlers.
type Server struct {
	address      string
	maxImageSize int64
	adminToken   string
	signedTTL    time.Duration

	svc      Service
	images   ImageReader
	signer   *signing.Signer
	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

// New constructs a Server. A nil gatherer serves the default registry.
func New(cfg *config.Config, svc Service, images ImageReader, signer *signing.Signer, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		address:      cfg.Address,
		maxImageSize: cfg.MaxImageSize,
		adminToken:   cfg.AdminToken,
		signedTTL:    cfg.SignedURLTTL,
		svc:          svc,
		images:       images,
		signer:       signer,
		gatherer:     gatherer,
		logger:       logger,
	}
}

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Route("/kyc/session", func(r chi.Router) {
			r.Post("/", s.handleCreateSession)
			r.Route("/{sessionID}", func(r chi.Router) {
				r.Get("/", s.handleGetSession)
				r.Post("/select-document", s.handleSelectDocument)
				r.Post("/enter-doc-number", s.handleEnterDocNumber)
				r.Post("/validate-document", s.handleValidateDocument)
				r.Post("/selfie", s.handleSubmitSelfie)
			})
		})
		r.Get("/admin/kyc/images", s.handleImage)
		r.Route("/admin/kyc/sessions", func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Get("/", s.handleListSessions)
			r.Get("/{sessionID}", s.handleSessionDetail)
			r.Post("/{sessionID}/approve", s.handleApprove)
			r.Post("/{sessionID}/reject", s.handleReject)
			r.Post("/{sessionID}/requeue", s.handleRequeue)
		})
	})
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	s.logger.Info("api listening", "address", s.address)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "swiftkyc"})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.InfoContext(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", chimw.GetReqID(r.Context()),
		)
	})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.adminToken != "" && r.Header.Get("X-Admin-Token") != s.adminToken {
			writeProblem(w, http.StatusForbidden, "FORBIDDEN", "admin token required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
