// Package s3storage keeps document and selfie images in two MinIO/S3
// buckets. References have the form "<bucket>/<session>/<nanos>-<name>".
package s3storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/composedlabyrinth/SwiftKYC/internal/config"
	"github.com/composedlabyrinth/SwiftKYC/internal/storage"
)

// Storage wraps MinIO/S3 interactions for document and selfie images.
type Storage struct {
	client         *minio.Client
	documentBucket string
	selfieBucket   string
	region         string
	now            func() time.Time
}

// New creates a MinIO client from the Config.
func New(cfg *config.Config) (*Storage, error) {
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: cfg.S3UseSSL,
		Region: cfg.S3Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return &Storage{
		client:         client,
		documentBucket: cfg.DocumentBucket,
		selfieBucket:   cfg.SelfieBucket,
		region:         cfg.S3Region,
		now:            time.Now,
	}, nil
}

// EnsureBuckets makes sure both image buckets exist before use.
func (s *Storage) EnsureBuckets(ctx context.Context) error {
	for _, bucket := range []string{s.documentBucket, s.selfieBucket} {
		exists, err := s.client.BucketExists(ctx, bucket)
		if err != nil {
			return fmt.Errorf("check bucket %s: %w", bucket, err)
		}
		if !exists {
			if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
				return fmt.Errorf("make bucket %s: %w", bucket, err)
			}
		}
	}
	return nil
}

// SaveDocument uploads a document image and returns its reference.
func (s *Storage) SaveDocument(ctx context.Context, sessionID, fileName, contentType string, data []byte) (string, error) {
	return s.put(ctx, s.documentBucket, sessionID, fileName, contentType, data)
}

// SaveSelfie uploads a selfie and returns its reference.
func (s *Storage) SaveSelfie(ctx context.Context, sessionID, fileName, contentType string, data []byte) (string, error) {
	return s.put(ctx, s.selfieBucket, sessionID, fileName, contentType, data)
}

func (s *Storage) put(ctx context.Context, bucket, sessionID, fileName, contentType string, data []byte) (string, error) {
	key := storage.ObjectKey(sessionID, fileName, s.now().UTC())
	opts := minio.PutObjectOptions{ContentType: contentType}
	if _, err := s.client.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)), opts); err != nil {
		return "", fmt.Errorf("upload %s object: %w", bucket, err)
	}
	return storage.JoinRef(bucket, key), nil
}

// Stat reports size and content type of a stored image.
func (s *Storage) Stat(ctx context.Context, ref string) (storage.ObjectInfo, error) {
	bucket, key, err := s.split(ref)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	info, err := s.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return storage.ObjectInfo{}, translate(err, "stat object")
	}
	return storage.ObjectInfo{
		Ref:         ref,
		Size:        info.Size,
		ContentType: info.ContentType,
		ModTime:     info.LastModified,
	}, nil
}

// Read downloads a stored image.
func (s *Storage) Read(ctx context.Context, ref string) ([]byte, error) {
	bucket, key, err := s.split(ref)
	if err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, translate(err, "get object")
	}
	defer obj.Close()
	buf, err := io.ReadAll(obj)
	if err != nil {
		return nil, translate(err, "read object")
	}
	return buf, nil
}

// PresignURL returns a time-limited GET URL for a stored image.
func (s *Storage) PresignURL(ctx context.Context, ref string, ttl time.Duration) (string, error) {
	bucket, key, err := s.split(ref)
	if err != nil {
		return "", err
	}
	u, err := s.client.PresignedGetObject(ctx, bucket, key, ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign object: %w", err)
	}
	return u.String(), nil
}

func (s *Storage) split(ref string) (string, string, error) {
	bucket, key, err := storage.SplitRef(ref)
	if err != nil {
		return "", "", err
	}
	if bucket != s.documentBucket && bucket != s.selfieBucket {
		return "", "", fmt.Errorf("ref %q: unknown bucket: %w", ref, storage.ErrNotFound)
	}
	return bucket, key, nil
}

func translate(err error, what string) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return fmt.Errorf("%s: %w", what, storage.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", what, err)
}
