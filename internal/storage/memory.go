package storage

import (
	"context"
	"fmt"
	"io"
	"sync"
)

type MemoryObject struct {
	Data        []byte
	ContentType string
}

// MemoryStore keeps objects in process. It backs local runs without a bucket
// and lets tests inject failures.
type MemoryStore struct {
	baseURL string

	mu      sync.Mutex
	objects map[string]MemoryObject
	puts    int

	// PutErr and DeleteErr, when set, fail the next calls
	PutErr    error
	DeleteErr error
}

func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{
		baseURL: baseURL,
		objects: make(map[string]MemoryObject),
	}
}

func (m *MemoryStore) Put(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.puts++
	if m.PutErr != nil {
		return "", m.PutErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read object: %w", err)
	}
	m.objects[key] = MemoryObject{Data: data, ContentType: contentType}
	return joinURL(m.baseURL, key), nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	if _, ok := m.objects[key]; !ok {
		return ErrObjectNotFound
	}
	delete(m.objects, key)
	return nil
}

func (m *MemoryStore) URL(key string) string {
	return joinURL(m.baseURL, key)
}

// Object returns a stored object by key
func (m *MemoryStore) Object(key string) (MemoryObject, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	return obj, ok
}

// Len is the number of stored objects
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// PutCalls counts Put attempts, failed ones included
func (m *MemoryStore) PutCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts
}
