// Package memory is an in-process Storage used in development and tests.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/bookineo/bookineo/services/api/internal/storage"
)

type object struct {
	contentType string
	data        []byte
}

// Storage implements storage.Storage with a map. Objects are served back
// through ServeObject so the memory driver works end to end.
type Storage struct {
	mu      sync.RWMutex
	objects map[string]*object
	baseURL string
}

// New returns a store whose public URLs are baseURL + "/media/" + key.
func New(baseURL string) *Storage {
	return &Storage{
		objects: make(map[string]*object),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (s *Storage) Upload(_ context.Context, input *storage.UploadInput) (*storage.UploadResult, error) {
	data, err := io.ReadAll(input.Data)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", input.Key, err)
	}

	s.mu.Lock()
	s.objects[input.Key] = &object{contentType: input.ContentType, data: data}
	s.mu.Unlock()

	return &storage.UploadResult{Key: input.Key, URL: s.PublicURL(input.Key)}, nil
}

func (s *Storage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.objects, key)
	s.mu.Unlock()
	return nil
}

func (s *Storage) PublicURL(key string) string {
	return fmt.Sprintf("%s/media/%s", s.baseURL, key)
}

// Open returns a reader over the object stored at key.
func (s *Storage) Open(key string) (io.ReadSeeker, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[key]
	if !ok {
		return nil, "", false
	}
	return bytes.NewReader(obj.data), obj.contentType, true
}

// Len reports the number of stored objects.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
