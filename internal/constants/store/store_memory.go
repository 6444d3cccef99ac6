package store

import (
	"context"
	"sync"

	"carbonregistry/internal/constants/models"
	id "carbonregistry/pkg/domain"
	"carbonregistry/pkg/platform/sentinel"
)

// InMemoryStore keeps versions per domain in insertion order. Insert holds the
// write lock across the "is this the next number" check so two writers can
// never both land the same version.
type InMemoryStore struct {
	mu       sync.RWMutex
	versions map[id.SubDomain][]*models.Version
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{versions: make(map[id.SubDomain][]*models.Version)}
}

func (s *InMemoryStore) Latest(_ context.Context, domain id.SubDomain) (*models.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.versions[domain]
	if len(list) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return clone(list[len(list)-1]), nil
}

func (s *InMemoryStore) Get(_ context.Context, domain id.SubDomain, number int) (*models.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.versions[domain]
	if number < 1 || number > len(list) {
		return nil, sentinel.ErrNotFound
	}
	return clone(list[number-1]), nil
}

func (s *InMemoryStore) List(_ context.Context, domain id.SubDomain) ([]*models.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Version, 0, len(s.versions[domain]))
	for _, v := range s.versions[domain] {
		out = append(out, clone(v))
	}
	return out, nil
}

// Insert appends v. It fails with sentinel.ErrConflict unless v.Number is
// exactly one past the current latest.
func (s *InMemoryStore) Insert(_ context.Context, v *models.Version) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.versions[v.Domain]
	if v.Number != len(list)+1 {
		return sentinel.ErrConflict
	}
	s.versions[v.Domain] = append(list, clone(v))
	return nil
}

func clone(v *models.Version) *models.Version {
	c := *v
	c.Payload = append([]byte(nil), v.Payload...)
	return &c
}
