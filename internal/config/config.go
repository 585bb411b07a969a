// Package config reads SwiftKYC settings from SWIFTKYC_* environment
// variables and exposes them as typed values.
package config

import (
	"crypto/rand"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// Config is the runtime configuration shared by the server, the worker and
// the CLI.
type Config struct {
	Address      string
	MaxImageSize int64
	// MaxImagePixels caps the declared width×height of uploaded images.
	MaxImagePixels int64
	LogLevel       string
	LogFormat      string

	// Empty DatabaseURL selects the in-memory repository and image store.
	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	S3Endpoint     string
	S3AccessKey    string
	S3SecretKey    string
	S3Region       string
	S3UseSSL       bool
	DocumentBucket string
	SelfieBucket   string

	// Empty AdminToken leaves the admin routes unauthenticated.
	AdminToken    string
	SigningSecret []byte
	SignedURLTTL  time.Duration

	OCRLanguages   []string
	OCRConcurrency int
	OCRTimeout     time.Duration

	NameThreshold      float64
	TokenThreshold     float64
	LastFourFallback   bool
	FaceMatchThreshold float64

	LockTTL  time.Duration
	LockWait time.Duration

	WorkerConcurrency int
	JobMaxRetry       int
	// InlineWorker runs the face-match consumer inside the API process.
	InlineWorker bool
}

const (
	defaultAddress        = ":8080"
	defaultMaxImageSize   = 10 << 20 // 10 MiB
	defaultMaxPixels      = 24_000_000
	defaultRedisAddr      = "localhost:6379"
	defaultS3Endpoint     = "localhost:9000"
	defaultS3Region       = "us-east-1"
	defaultDocumentBucket = "kyc-documents"
	defaultSelfieBucket   = "kyc-selfies"
	defaultSignedTTL      = 5 * time.Minute
	defaultOCRLanguages   = "eng,hin"
	defaultOCRTimeout     = 30 * time.Second
	defaultNameThreshold  = 0.5
	defaultTokenThreshold = 0.9
	defaultFaceThreshold  = 0.5
	defaultLockTTL        = 2 * time.Minute
	defaultLockWait       = 5 * time.Second
	defaultWorkerCount    = 4
	defaultJobMaxRetry    = 5
)

// Load reads configuration from the environment, falling back to defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Address:      readEnv("SWIFTKYC_ADDRESS", defaultAddress),
		MaxImageSize:   parseInt64("SWIFTKYC_MAX_IMAGE_BYTES", defaultMaxImageSize),
		MaxImagePixels: parseInt64("SWIFTKYC_MAX_IMAGE_PIXELS", defaultMaxPixels),
		LogLevel:       readEnv("SWIFTKYC_LOG_LEVEL", "info"),
		LogFormat:      readEnv("SWIFTKYC_LOG_FORMAT", "json"),

		DatabaseURL: readEnv("SWIFTKYC_DATABASE_URL", ""),

		RedisAddr:     readEnv("SWIFTKYC_REDIS_ADDR", defaultRedisAddr),
		RedisPassword: readEnv("SWIFTKYC_REDIS_PASSWORD", ""),
		RedisDB:       parseInt("SWIFTKYC_REDIS_DB", 0),

		S3Endpoint:     readEnv("SWIFTKYC_S3_ENDPOINT", defaultS3Endpoint),
		S3AccessKey:    readEnv("SWIFTKYC_S3_ACCESS_KEY", "minioadmin"),
		S3SecretKey:    readEnv("SWIFTKYC_S3_SECRET_KEY", "minioadmin"),
		S3Region:       readEnv("SWIFTKYC_S3_REGION", defaultS3Region),
		S3UseSSL:       parseBool("SWIFTKYC_S3_USE_SSL", false),
		DocumentBucket: readEnv("SWIFTKYC_DOCUMENT_BUCKET", defaultDocumentBucket),
		SelfieBucket:   readEnv("SWIFTKYC_SELFIE_BUCKET", defaultSelfieBucket),

		AdminToken:    readEnv("SWIFTKYC_ADMIN_TOKEN", ""),
		SigningSecret: parseSecret("SWIFTKYC_SIGNING_SECRET"),
		SignedURLTTL:  parseDuration("SWIFTKYC_SIGNED_TTL", defaultSignedTTL),

		OCRLanguages:   parseList("SWIFTKYC_OCR_LANGUAGES", defaultOCRLanguages),
		OCRConcurrency: parseInt("SWIFTKYC_OCR_CONCURRENCY", runtime.NumCPU()),
		OCRTimeout:     parseDuration("SWIFTKYC_OCR_TIMEOUT", defaultOCRTimeout),

		NameThreshold:      parseFloat("SWIFTKYC_NAME_THRESHOLD", defaultNameThreshold),
		TokenThreshold:     parseFloat("SWIFTKYC_TOKEN_THRESHOLD", defaultTokenThreshold),
		LastFourFallback:   parseBool("SWIFTKYC_NUMERIC12_LAST4_FALLBACK", true),
		FaceMatchThreshold: parseFloat("SWIFTKYC_FACE_MATCH_THRESHOLD", defaultFaceThreshold),

		LockTTL:  parseDuration("SWIFTKYC_LOCK_TTL", defaultLockTTL),
		LockWait: parseDuration("SWIFTKYC_LOCK_WAIT", defaultLockWait),

		WorkerConcurrency: parseInt("SWIFTKYC_WORKERS", defaultWorkerCount),
		JobMaxRetry:       parseInt("SWIFTKYC_JOB_MAX_RETRY", defaultJobMaxRetry),
		InlineWorker:      parseBool("SWIFTKYC_INLINE_WORKER", false),
	}
	if cfg.SigningSecret == nil {
		secret, err := randomSecret()
		if err != nil {
			return nil, err
		}
		cfg.SigningSecret = secret
	}
	if cfg.WorkerConcurrency <= 0 {
		cfg.WorkerConcurrency = defaultWorkerCount
	}
	if cfg.OCRConcurrency <= 0 {
		cfg.OCRConcurrency = runtime.NumCPU()
	}
	if cfg.OCRTimeout <= 0 {
		cfg.OCRTimeout = defaultOCRTimeout
	}
	if cfg.MaxImageSize <= 0 {
		cfg.MaxImageSize = defaultMaxImageSize
	}
	if cfg.MaxImagePixels <= 0 {
		cfg.MaxImagePixels = defaultMaxPixels
	}
	if cfg.SignedURLTTL <= 0 {
		cfg.SignedURLTTL = defaultSignedTTL
	}
	if cfg.JobMaxRetry < 0 {
		cfg.JobMaxRetry = defaultJobMaxRetry
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	for name, v := range map[string]float64{
		"SWIFTKYC_NAME_THRESHOLD":       c.NameThreshold,
		"SWIFTKYC_TOKEN_THRESHOLD":      c.TokenThreshold,
		"SWIFTKYC_FACE_MATCH_THRESHOLD": c.FaceMatchThreshold,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be within [0,1], got %v", name, v)
		}
	}
	if c.DocumentBucket == c.SelfieBucket {
		return fmt.Errorf("document and selfie buckets must differ (%q)", c.DocumentBucket)
	}
	return nil
}

// Durable reports whether Postgres and object storage are configured.
func (c *Config) Durable() bool {
	return c.DatabaseURL != ""
}

func readEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func parseList(key, def string) []string {
	val := readEnv(key, def)
	var out []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseInt64(key string, def int64) int64 {
	// Invalid input falls back to the default.
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			return parsed
		}
	}
	return def
}

func parseInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseFloat(key string, def float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return def
}

func parseBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseSecret(key string) []byte {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return []byte(v)
	}
	return nil
}

func randomSecret() ([]byte, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("generate signing secret: %w", err)
	}
	return buf, nil
}
