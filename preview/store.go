package preview

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/Skryldev/imageprep/core"
	apperrors "github.com/Skryldev/imageprep/errors"
)

// DefaultBaseURL prefixes object URLs when no base is configured.
const DefaultBaseURL = "blob:imageprep/"

// maxTombstones bounds how many revoked ids are remembered.
const maxTombstones = 1024

// ObjectStore maps object URLs to file contents.  An entry lives until it is
// revoked; recently revoked URLs resolve to errors.ErrRevoked rather than
// errors.ErrNotFound.  Safe for concurrent use.
type ObjectStore struct {
	baseURL string

	mu      sync.RWMutex
	objects map[string]*core.SourceFile // id -> file
	revoked map[string]struct{}
}

// NewObjectStore returns an empty store minting URLs under baseURL.
func NewObjectStore(baseURL string) *ObjectStore {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &ObjectStore{
		baseURL: baseURL,
		objects: make(map[string]*core.SourceFile),
		revoked: make(map[string]struct{}),
	}
}

// Put registers file and returns its new URL.
func (s *ObjectStore) Put(file *core.SourceFile) string {
	id := uuid.NewString()
	s.mu.Lock()
	s.objects[id] = file
	s.mu.Unlock()
	return s.baseURL + id
}

// Get resolves a URL to its file.
func (s *ObjectStore) Get(url string) (*core.SourceFile, error) {
	id, ok := s.id(url)
	if !ok {
		return nil, apperrors.New(apperrors.CategoryStorage, "preview.get", fmt.Errorf("%w: %s", apperrors.ErrNotFound, url))
	}
	return s.GetByID(id)
}

// GetByID resolves the id part of a URL.
func (s *ObjectStore) GetByID(id string) (*core.SourceFile, error) {
	s.mu.RLock()
	f, ok := s.objects[id]
	_, gone := s.revoked[id]
	s.mu.RUnlock()
	switch {
	case ok:
		return f, nil
	case gone:
		return nil, apperrors.New(apperrors.CategoryStorage, "preview.get", fmt.Errorf("%w: %s", apperrors.ErrRevoked, id))
	default:
		return nil, apperrors.New(apperrors.CategoryStorage, "preview.get", fmt.Errorf("%w: %s", apperrors.ErrNotFound, id))
	}
}

// Revoke drops url.  It reports whether the URL was live.
func (s *ObjectStore) Revoke(url string) bool {
	id, ok := s.id(url)
	if !ok {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, live := s.objects[id]; !live {
		return false
	}
	delete(s.objects, id)
	if len(s.revoked) >= maxTombstones {
		clear(s.revoked)
	}
	s.revoked[id] = struct{}{}
	return true
}

// Len returns the number of live objects.
func (s *ObjectStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

func (s *ObjectStore) id(url string) (string, bool) {
	return strings.CutPrefix(url, s.baseURL)
}
