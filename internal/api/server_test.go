package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/composedlabyrinth/SwiftKYC/internal/config"
	"github.com/composedlabyrinth/SwiftKYC/internal/kyc"
	"github.com/composedlabyrinth/SwiftKYC/internal/metrics"
	"github.com/composedlabyrinth/SwiftKYC/internal/model"
	"github.com/composedlabyrinth/SwiftKYC/internal/ocr"
	"github.com/composedlabyrinth/SwiftKYC/internal/signing"
	"github.com/composedlabyrinth/SwiftKYC/internal/storage"
	"github.com/composedlabyrinth/SwiftKYC/internal/testutil"
)

const adminToken = "secret-token"

type nopQueue struct{ ids []string }

func (q *nopQueue) EnqueueFaceMatch(_ context.Context, id string) error {
	q.ids = append(q.ids, id)
	return nil
}

type harness struct {
	t       *testing.T
	handler http.Handler
	svc     *kyc.Service
	queue   *nopQueue
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	images := storage.NewMemoryImages()
	queue := &nopQueue{}
	engine := ocr.EngineFunc(func(context.Context, []byte) ([]ocr.Segment, error) {
		return []ocr.Segment{
			{Text: "INCOME TAX DEPARTMENT", Confidence: 0.9},
			{Text: "ABCDE1234F", Confidence: 0.9},
			{Text: "Name", Confidence: 0.9},
			{Text: "RAVI KUMAR SHARMA", Confidence: 0.9},
		}, nil
	})
	svc := kyc.New(storage.NewMemoryStore(), images, queue, ocr.NewExtractor(engine),
		kyc.WithLogger(logger), kyc.WithMetrics(metrics.New(reg)))
	cfg := &config.Config{
		Address:      ":0",
		MaxImageSize: 1 << 20,
		AdminToken:   adminToken,
		SignedURLTTL: time.Minute,
	}
	srv := New(cfg, svc, images, signing.NewSigner([]byte("k")), reg, logger)
	return &harness{t: t, handler: srv.Routes(), svc: svc, queue: queue}
}

func (h *harness) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func (h *harness) postJSON(path string, body any) *httptest.ResponseRecorder {
	data, err := json.Marshal(body)
	require.NoError(h.t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Admin-Token", adminToken)
	return h.do(req)
}

func (h *harness) upload(path string, data []byte) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "upload.png")
	require.NoError(h.t, err)
	_, err = fw.Write(data)
	require.NoError(h.t, err)
	require.NoError(h.t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return h.do(req)
}

func (h *harness) get(path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("X-Admin-Token", adminToken)
	return h.do(req)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out), rec.Body.String())
	return out
}

func (h *harness) createSession() string {
	rec := h.postJSON("/api/v1/kyc/session", map[string]string{"name": "Ravi Kumar Sharma", "mobile": "9876543210"})
	require.Equal(h.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[map[string]any](h.t, rec)["session_id"].(string)
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	rec := h.get("/api/v1/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, rec)["status"])
}

func TestKYCFlowOverHTTP(t *testing.T) {
	h := newHarness(t)
	id := h.createSession()

	rec := h.postJSON("/api/v1/kyc/session/"+id+"/select-document", map[string]string{"doc_type": "id_alphanum10"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "SCAN_DOC", decode[map[string]any](t, rec)["next_step"])

	rec = h.postJSON("/api/v1/kyc/session/"+id+"/enter-doc-number", map[string]string{"doc_number": "abcde1234f"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "ABCDE1234F", decode[map[string]any](t, rec)["doc_number"])

	card := testutil.PNG(t, testutil.TextCard("INCOME TAX DEPARTMENT", "ABCDE1234F", "RAVI KUMAR SHARMA"))
	rec = h.upload("/api/v1/kyc/session/"+id+"/validate-document", card)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	doc := decode[map[string]any](t, rec)
	assert.Equal(t, true, doc["is_valid"])
	assert.Equal(t, "SELFIE", doc["next_step"])
	assert.Nil(t, doc["failure_reason"])

	rec = h.upload("/api/v1/kyc/session/"+id+"/selfie", testutil.PNG(t, testutil.Noise(128, 128, 3)))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Equal(t, "KYC_CHECK", decode[map[string]any](t, rec)["next_step"])
	assert.Equal(t, []string{id}, h.queue.ids)

	_, err := h.svc.ProcessFaceMatch(context.Background(), id)
	require.NoError(t, err)

	rec = h.get("/api/v1/kyc/session/" + id)
	require.Equal(t, http.StatusOK, rec.Code)
	session := decode[map[string]any](t, rec)
	assert.Equal(t, "APPROVED", session["status"])
	assert.Equal(t, "COMPLETE", session["current_step"])
	assert.NotContains(t, session, "selfie_ref")
}

func TestErrorMapping(t *testing.T) {
	h := newHarness(t)

	rec := h.get("/api/v1/kyc/session/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "SESSION_NOT_FOUND", decode[problem](t, rec).ErrorCode)

	rec = h.postJSON("/api/v1/kyc/session", map[string]string{"name": "Ravi", "mobile": "123"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	p := decode[problem](t, rec)
	assert.Equal(t, "VALIDATION_ERROR", p.ErrorCode)
	assert.Equal(t, "mobile", p.Field)

	id := h.createSession()
	rec = h.postJSON("/api/v1/kyc/session/"+id+"/enter-doc-number", map[string]string{"doc_number": "ABCDE1234F"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_STEP", decode[problem](t, rec).ErrorCode)

	rec = h.postJSON("/api/v1/kyc/session/"+id+"/select-document", map[string]string{"doc_type": "library_card"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_DOC_TYPE", decode[problem](t, rec).ErrorCode)

	rec = h.postJSON("/api/v1/kyc/session/"+id+"/select-document", map[string]string{"doc_type": "ID_ALPHANUM10"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = h.postJSON("/api/v1/kyc/session/"+id+"/enter-doc-number", map[string]string{"doc_number": "1234"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	p = decode[problem](t, rec)
	assert.Equal(t, "INVALID_ALPHANUM10_FORMAT", p.ErrorCode)
	assert.NotEmpty(t, p.Example)

	rec = h.upload("/api/v1/kyc/session/"+id+"/validate-document", []byte("%PDF-1.4 not an image"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "UNSUPPORTED_MEDIA_TYPE", decode[problem](t, rec).ErrorCode)

	truncated := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 64)...)
	rec = h.upload("/api/v1/kyc/session/"+id+"/validate-document", truncated)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INVALID_IMAGE", decode[problem](t, rec).ErrorCode)

	huge := testutil.PNGDeclaring(t, testutil.Uniform(8, 8, 128), 40_000, 40_000)
	rec = h.upload("/api/v1/kyc/session/"+id+"/validate-document", huge)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "IMAGE_TOO_LARGE", decode[problem](t, rec).ErrorCode)

	rec = h.upload("/api/v1/kyc/session/"+id+"/selfie", testutil.PNG(t, testutil.Noise(64, 64, 1)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_STEP", decode[problem](t, rec).ErrorCode)
}

func TestAdminRequiresToken(t *testing.T) {
	h := newHarness(t)
	rec := h.do(httptest.NewRequest(http.MethodGet, "/api/v1/admin/kyc/sessions", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminEndpoints(t *testing.T) {
	h := newHarness(t)
	id := h.createSession()
	rec := h.postJSON("/api/v1/kyc/session/"+id+"/select-document", map[string]string{"doc_type": "ID_ALPHANUM10"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = h.postJSON("/api/v1/kyc/session/"+id+"/enter-doc-number", map[string]string{"doc_number": "ABCDE1234F"})
	require.Equal(t, http.StatusOK, rec.Code)
	card := testutil.PNG(t, testutil.TextCard("INCOME TAX DEPARTMENT", "ABCDE1234F", "RAVI KUMAR SHARMA"))
	rec = h.upload("/api/v1/kyc/session/"+id+"/validate-document", card)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.get("/api/v1/admin/kyc/sessions?status=in_progress&doc_type=ID_ALPHANUM10")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	list := decode[sessionListResponse](t, rec)
	require.Equal(t, 1, list.Total)
	require.NotNil(t, list.Items[0].LatestDocType)
	assert.Equal(t, model.DocTypeAlphanum10, *list.Items[0].LatestDocType)

	rec = h.get("/api/v1/admin/kyc/sessions?status=bogus")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.get("/api/v1/admin/kyc/sessions/" + id)
	require.Equal(t, http.StatusOK, rec.Code)
	var detail struct {
		SessionID string `json:"session_id"`
		Documents []struct {
			StorageURL string `json:"storage_url"`
			IsValid    *bool  `json:"is_valid"`
		} `json:"documents"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&detail))
	assert.Equal(t, id, detail.SessionID)
	require.Len(t, detail.Documents, 1)
	require.NotNil(t, detail.Documents[0].IsValid)
	assert.True(t, *detail.Documents[0].IsValid)

	img := h.do(httptest.NewRequest(http.MethodGet, detail.Documents[0].StorageURL, nil))
	require.Equal(t, http.StatusOK, img.Code)
	assert.Equal(t, "image/png", img.Header().Get("Content-Type"))
	assert.Equal(t, card, img.Body.Bytes())

	forged := h.do(httptest.NewRequest(http.MethodGet, imagesPath+"?ref=x&expires=9999999999&sig=00", nil))
	assert.Equal(t, http.StatusForbidden, forged.Code)

	rec = h.postJSON("/api/v1/admin/kyc/sessions/"+id+"/reject", map[string]string{"reason": "blurry photo"})
	require.Equal(t, http.StatusOK, rec.Code)
	rejected := decode[overrideResponse](t, rec)
	assert.Equal(t, model.StatusRejected, rejected.Status)
	require.NotNil(t, rejected.FailureReason)
	assert.Equal(t, "blurry photo", *rejected.FailureReason)

	rec = h.postJSON("/api/v1/admin/kyc/sessions/"+id+"/requeue", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/kyc/sessions/"+id+"/approve", nil)
	req.Header.Set("X-Admin-Token", adminToken)
	rec = h.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	approved := decode[overrideResponse](t, rec)
	assert.Equal(t, model.StatusApproved, approved.Status)
	assert.Equal(t, model.StepComplete, approved.CurrentStep)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t)
	h.createSession()
	rec := h.get("/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "swiftkyc_sessions_created_total 1")
}
