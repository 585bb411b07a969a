package storage

import (
	"context"
	"sync"
	"time"
)

type memoryObject struct {
	data        []byte
	contentType string
	modTime     time.Time
}

// MemoryImages is an image store backed by a map, keyed by "namespace/key"
// references just like the object-store backend.
type MemoryImages struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
	now     func() time.Time
}

// NewMemoryImages constructs an empty MemoryImages.
func NewMemoryImages() *MemoryImages {
	return &MemoryImages{objects: make(map[string]memoryObject), now: time.Now}
}

// SaveDocument stores a document image and returns its reference.
func (m *MemoryImages) SaveDocument(ctx context.Context, sessionID, fileName, contentType string, data []byte) (string, error) {
	return m.put(NamespaceDocuments, sessionID, fileName, contentType, data)
}

// SaveSelfie stores a selfie image and returns its reference.
func (m *MemoryImages) SaveSelfie(ctx context.Context, sessionID, fileName, contentType string, data []byte) (string, error) {
	return m.put(NamespaceSelfies, sessionID, fileName, contentType, data)
}

func (m *MemoryImages) put(namespace, sessionID, fileName, contentType string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now().UTC()
	ref := JoinRef(namespace, ObjectKey(sessionID, fileName, now))
	m.objects[ref] = memoryObject{data: append([]byte(nil), data...), contentType: contentType, modTime: now}
	return ref, nil
}

// Stat reports the size of a stored image.
func (m *MemoryImages) Stat(_ context.Context, ref string) (ObjectInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[ref]
	if !ok {
		return ObjectInfo{}, ErrNotFound
	}
	return ObjectInfo{Ref: ref, Size: int64(len(obj.data)), ContentType: obj.contentType, ModTime: obj.modTime}, nil
}

// Read returns a copy of a stored image.
func (m *MemoryImages) Read(_ context.Context, ref string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[ref]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), obj.data...), nil
}
