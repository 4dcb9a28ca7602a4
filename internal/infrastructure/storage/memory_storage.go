package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	appcert "github.com/afp/backend/internal/application/certification"
)

type memoryObject struct {
	data        []byte
	contentType string
	modified    time.Time
}

// MemoryObjectStorage keeps objects in process memory. It is used when no
// bucket is configured and in tests.
type MemoryObjectStorage struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

// Ensure MemoryObjectStorage implements ObjectStorage
var _ appcert.ObjectStorage = (*MemoryObjectStorage)(nil)

// NewMemoryObjectStorage creates an empty MemoryObjectStorage
func NewMemoryObjectStorage() *MemoryObjectStorage {
	return &MemoryObjectStorage{objects: make(map[string]memoryObject)}
}

// Upload stores a copy of data under key
func (m *MemoryObjectStorage) Upload(_ context.Context, key string, data []byte, contentType string) error {
	if key == "" {
		return errors.New("storage key is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memoryObject{
		data:        append([]byte(nil), data...),
		contentType: contentType,
		modified:    time.Now(),
	}
	return nil
}

// Download returns a copy of the object
func (m *MemoryObjectStorage) Download(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, appcert.ErrObjectNotFound)
	}
	return append([]byte(nil), obj.data...), nil
}

// List returns the objects under prefix ordered by key
func (m *MemoryObjectStorage) List(_ context.Context, prefix string) ([]appcert.ObjectInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []appcert.ObjectInfo
	for key, obj := range m.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, appcert.ObjectInfo{Key: key, Size: int64(len(obj.data)), LastModified: obj.modified})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Move renames an object
func (m *MemoryObjectStorage) Move(_ context.Context, from, to string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[from]
	if !ok {
		return fmt.Errorf("%s: %w", from, appcert.ErrObjectNotFound)
	}
	obj.modified = time.Now()
	m.objects[to] = obj
	delete(m.objects, from)
	return nil
}

// Delete removes key
func (m *MemoryObjectStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}
