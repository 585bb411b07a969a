package s3storage

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/composedlabyrinth/SwiftKYC/internal/config"
	"github.com/composedlabyrinth/SwiftKYC/internal/storage"
)

func testConfig(endpoint string) *config.Config {
	return &config.Config{
		S3Endpoint:     endpoint,
		S3AccessKey:    "minioadmin",
		S3SecretKey:    "minioadmin",
		S3Region:       "us-east-1",
		DocumentBucket: "kyc-documents-test",
		SelfieBucket:   "kyc-selfies-test",
	}
}

func TestSplitRejectsForeignBuckets(t *testing.T) {
	s, err := New(testConfig("localhost:9000"))
	require.NoError(t, err)

	bucket, key, err := s.split("kyc-selfies-test/s1/1-me.png")
	require.NoError(t, err)
	assert.Equal(t, "kyc-selfies-test", bucket)
	assert.Equal(t, "s1/1-me.png", key)

	_, _, err = s.split("other/s1/1-me.png")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, _, err = s.split("no-key")
	assert.Error(t, err)
}

func TestTranslateNotFound(t *testing.T) {
	err := translate(minio.ErrorResponse{Code: "NoSuchKey", StatusCode: 404}, "stat object")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	err = translate(minio.ErrorResponse{Code: "AccessDenied", StatusCode: 403}, "stat object")
	assert.NotErrorIs(t, err, storage.ErrNotFound)
}

func TestStorageAgainstMinIO(t *testing.T) {
	endpoint := os.Getenv("SWIFTKYC_TEST_S3_ENDPOINT")
	if endpoint == "" {
		t.Skip("SWIFTKYC_TEST_S3_ENDPOINT not set")
	}
	ctx := context.Background()
	s, err := New(testConfig(endpoint))
	require.NoError(t, err)
	require.NoError(t, s.EnsureBuckets(ctx))

	ref, err := s.SaveSelfie(ctx, "s1", "me.png", "image/png", []byte("selfie-bytes"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "kyc-selfies-test/s1/"))

	info, err := s.Stat(ctx, ref)
	require.NoError(t, err)
	assert.EqualValues(t, len("selfie-bytes"), info.Size)

	data, err := s.Read(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, []byte("selfie-bytes"), data)

	u, err := s.PresignURL(ctx, ref, time.Minute)
	require.NoError(t, err)
	assert.Contains(t, u, "X-Amz-Signature")

	_, err = s.Stat(ctx, "kyc-documents-test/missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
