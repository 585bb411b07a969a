// Package storage holds the in-memory persistence used by tests and the
// single-binary mode, plus the sentinel errors shared by every backend.
package storage

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned by every backend for a missing record or object
	// so callers can compare with errors.Is.
	ErrNotFound = errors.New("not found")
)

// ObjectInfo describes a stored image.
type ObjectInfo struct {
	Ref         string
	Size        int64
	ContentType string
	ModTime     time.Time
}

// Namespaces for stored images.
const (
	NamespaceDocuments = "documents"
	NamespaceSelfies   = "selfies"
)

// ObjectKey builds the key of an upload: <session>/<unix-nanos>-<name>. The
// timestamp keeps re-uploads with the same file name apart.
func ObjectKey(sessionID, fileName string, now time.Time) string {
	name := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "upload"
	}
	return fmt.Sprintf("%s/%d-%s", sessionID, now.UnixNano(), name)
}

// JoinRef and SplitRef convert between a (bucket, key) pair and the single
// reference string persisted on sessions and documents.
func JoinRef(bucket, key string) string {
	return bucket + "/" + key
}

func SplitRef(ref string) (bucket, key string, err error) {
	bucket, key, ok := strings.Cut(ref, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("malformed object ref %q", ref)
	}
	return bucket, key, nil
}
