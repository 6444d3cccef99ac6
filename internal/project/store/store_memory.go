package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"carbonregistry/internal/project/models"
	"carbonregistry/pkg/platform/sentinel"
)

// InMemoryStore is the single-process ledger store. One mutex covers projects
// and audit entries so the row and its trail always move together.
type InMemoryStore struct {
	mu       sync.RWMutex
	projects map[string]*models.Project
	serials  map[string]string
	audit    map[string][]*models.AuditEntry
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		projects: make(map[string]*models.Project),
		serials:  make(map[string]string),
		audit:    make(map[string][]*models.AuditEntry),
	}
}

// Create stores p with entry as its first audit record. Duplicate project ids
// or serial numbers fail with sentinel.ErrConflict.
func (s *InMemoryStore) Create(ctx context.Context, p *models.Project, entry *models.AuditEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.projects[p.ProjectID]; exists {
		return sentinel.ErrConflict
	}
	if _, exists := s.serials[p.SerialNumber]; exists {
		return sentinel.ErrConflict
	}
	e := cloneEntry(entry)
	e.Sequence = 1
	entry.Sequence = 1
	s.projects[p.ProjectID] = cloneProject(p)
	s.serials[p.SerialNumber] = p.ProjectID
	s.audit[p.ProjectID] = []*models.AuditEntry{e}
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, projectID string) (*models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[projectID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneProject(p), nil
}

// UpdateStatus moves the project from expected to next if, and only if, its
// current status is expected. The winning write appends entry with the next
// sequence number and returns the updated project.
func (s *InMemoryStore) UpdateStatus(ctx context.Context, projectID string, expected, next models.Status, entry *models.AuditEntry, at time.Time) (*models.Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[projectID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if p.Status != expected {
		return nil, sentinel.ErrConflict
	}
	p.Status = next
	p.UpdatedAt = at

	entry.Sequence = len(s.audit[projectID]) + 1
	s.audit[projectID] = append(s.audit[projectID], cloneEntry(entry))
	return cloneProject(p), nil
}

// History returns the project's audit entries by ascending sequence. Unknown
// projects have an empty history.
func (s *InMemoryStore) History(_ context.Context, projectID string) ([]*models.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.audit[projectID]
	out := make([]*models.AuditEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, cloneEntry(e))
	}
	return out, nil
}

// List pages through projects ordered by id, filtered by q.Condition.Match.
func (s *InMemoryStore) List(_ context.Context, q models.Query) (*models.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*models.Project, 0, len(s.projects))
	for _, p := range s.projects {
		if q.Condition.Matches(p) {
			matched = append(matched, p)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return projectIDLess(matched[i].ProjectID, matched[j].ProjectID) })

	page := &models.Page{Items: []*models.Project{}, Total: len(matched)}
	start := max(q.Offset(), 0)
	if start >= len(matched) {
		return page, nil
	}
	end := min(start+q.Size, len(matched))
	for _, p := range matched[start:end] {
		page.Items = append(page.Items, cloneProject(p))
	}
	return page, nil
}

// projectIDLess orders numeric project ids once they outgrow their zero padding:
// shorter ids first, then lexically. Matches the Postgres ORDER BY.
func projectIDLess(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}
