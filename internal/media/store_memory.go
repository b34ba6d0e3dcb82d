package media

import (
	"context"
	"errors"
	"strconv"
	"sync"
)

type memoryObject struct {
	data    []byte
	version int
}

// MemoryStore keeps objects in process memory with incrementing versions.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string]*memoryObject
	baseURL string
}

func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{objects: make(map[string]*memoryObject), baseURL: baseURL}
}

func (s *MemoryStore) Upload(_ context.Context, data []byte, publicID string, overwrite, _ bool) (*UploadResult, error) {
	if publicID == "" {
		return nil, errors.New("public id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	obj, exists := s.objects[publicID]
	switch {
	case !exists:
		obj = &memoryObject{}
		s.objects[publicID] = obj
		fallthrough
	case overwrite:
		obj.data = append([]byte(nil), data...)
		obj.version++
	}
	version := strconv.Itoa(obj.version)
	return &UploadResult{
		Reference: publicID,
		Version:   version,
		URL:       objectURL(s.baseURL, version, publicID),
	}, nil
}

// Object returns the stored bytes for publicID.
func (s *MemoryStore) Object(publicID string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[publicID]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), obj.data...), true
}
