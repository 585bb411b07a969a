package config

import (
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Address)
	assert.False(t, cfg.Durable())
	assert.Equal(t, []string{"eng", "hin"}, cfg.OCRLanguages)
	assert.Equal(t, runtime.NumCPU(), cfg.OCRConcurrency)
	assert.Equal(t, 30*time.Second, cfg.OCRTimeout)
	assert.True(t, cfg.LastFourFallback)
	assert.Len(t, cfg.SigningSecret, 32)
	assert.Equal(t, int64(24_000_000), cfg.MaxImagePixels)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SWIFTKYC_DATABASE_URL", "postgres://kyc@localhost/kyc")
	t.Setenv("SWIFTKYC_OCR_LANGUAGES", " eng , ,hin,")
	t.Setenv("SWIFTKYC_OCR_TIMEOUT", "5s")
	t.Setenv("SWIFTKYC_NUMERIC12_LAST4_FALLBACK", "false")
	t.Setenv("SWIFTKYC_NAME_THRESHOLD", "0.7")
	t.Setenv("SWIFTKYC_WORKERS", "-3")
	t.Setenv("SWIFTKYC_SIGNING_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.Durable())
	assert.Equal(t, []string{"eng", "hin"}, cfg.OCRLanguages)
	assert.Equal(t, 5*time.Second, cfg.OCRTimeout)
	assert.False(t, cfg.LastFourFallback)
	assert.InDelta(t, 0.7, cfg.NameThreshold, 1e-9)
	assert.Equal(t, defaultWorkerCount, cfg.WorkerConcurrency)
	assert.Equal(t, []byte("s3cret"), cfg.SigningSecret)
}

func TestLoadInvalidInputFallsBack(t *testing.T) {
	t.Setenv("SWIFTKYC_OCR_TIMEOUT", "soon")
	t.Setenv("SWIFTKYC_REDIS_DB", "two")
	t.Setenv("SWIFTKYC_MAX_IMAGE_PIXELS", "-1")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, int64(defaultMaxPixels), cfg.MaxImagePixels)
	assert.Equal(t, defaultOCRTimeout, cfg.OCRTimeout)
	assert.Zero(t, cfg.RedisDB)
}

func TestLoadRejectsBadThresholds(t *testing.T) {
	t.Setenv("SWIFTKYC_FACE_MATCH_THRESHOLD", "1.5")
	_, err := Load()
	assert.ErrorContains(t, err, "SWIFTKYC_FACE_MATCH_THRESHOLD")
}

func TestLoadRejectsSharedBucket(t *testing.T) {
	t.Setenv("SWIFTKYC_DOCUMENT_BUCKET", "kyc")
	t.Setenv("SWIFTKYC_SELFIE_BUCKET", "kyc")
	_, err := Load()
	assert.ErrorContains(t, err, "buckets must differ")
}
