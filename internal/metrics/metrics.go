// Package metrics exposes Prometheus instruments for the KYC pipeline. All
// methods are safe to call on a nil *Metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for document validations.
const (
	DocumentAccepted        = "accepted"
	DocumentQualityRejected = "quality_rejected"
	DocumentMismatch        = "mismatch"
	DocumentOCRError        = "ocr_error"
)

// Outcome labels for face-match jobs.
const (
	FaceMatched            = "matched"
	FaceMismatched         = "mismatched"
	FaceRetriesExhausted   = "retries_exhausted"
	FacePreconditionFailed = "precondition_failed"
	FaceSkipped            = "skipped"
)

// Metrics groups the pipeline's counters and histograms.
type Metrics struct {
	SessionsCreated     prometheus.Counter
	DocumentValidations *prometheus.CounterVec
	QualityRejections   *prometheus.CounterVec
	FaceMatches         *prometheus.CounterVec
	AdminOverrides      *prometheus.CounterVec
	OCRDuration         prometheus.Histogram
	FaceMatchDuration   prometheus.Histogram
}

// New registers the instruments with reg. Pass prometheus.DefaultRegisterer
// in binaries and a fresh prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SessionsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "swiftkyc_sessions_created_total",
			Help: "Total number of KYC sessions created",
		}),
		DocumentValidations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "swiftkyc_document_validations_total",
			Help: "Document uploads by validation outcome",
		}, []string{"outcome"}),
		QualityRejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "swiftkyc_quality_rejections_total",
			Help: "Document images rejected by the quality gate, by failing check",
		}, []string{"check"}),
		FaceMatches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "swiftkyc_face_match_jobs_total",
			Help: "Face-match job runs by outcome",
		}, []string{"outcome"}),
		AdminOverrides: f.NewCounterVec(prometheus.CounterOpts{
			Name: "swiftkyc_admin_overrides_total",
			Help: "Manual approve/reject actions",
		}, []string{"action"}),
		OCRDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "swiftkyc_ocr_duration_seconds",
			Help:    "Duration of OCR extraction",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}),
		FaceMatchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "swiftkyc_face_match_duration_seconds",
			Help:    "Duration of the face-match gate",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
	}
}

func (m *Metrics) IncSessionCreated() {
	if m == nil {
		return
	}
	m.SessionsCreated.Inc()
}

func (m *Metrics) IncDocumentValidation(outcome string) {
	if m == nil {
		return
	}
	m.DocumentValidations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncQualityRejection(check string) {
	if m == nil {
		return
	}
	m.QualityRejections.WithLabelValues(check).Inc()
}

func (m *Metrics) IncFaceMatch(outcome string) {
	if m == nil {
		return
	}
	m.FaceMatches.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncAdminOverride(action string) {
	if m == nil {
		return
	}
	m.AdminOverrides.WithLabelValues(action).Inc()
}

// ObserveOCR records the duration of an OCR call started at start.
func (m *Metrics) ObserveOCR(start time.Time) {
	if m == nil {
		return
	}
	m.OCRDuration.Observe(time.Since(start).Seconds())
}

// ObserveFaceMatch records the duration of a face-match gate run.
func (m *Metrics) ObserveFaceMatch(start time.Time) {
	if m == nil {
		return
	}
	m.FaceMatchDuration.Observe(time.Since(start).Seconds())
}
