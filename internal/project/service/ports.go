package service

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks Calculator,Allocator,ConstantsSource,EventPublisher

import (
	"context"
	"time"

	"carbonregistry/internal/calculator"
	cmodels "carbonregistry/internal/constants/models"
	"carbonregistry/internal/counter"
	"carbonregistry/internal/project/models"
	id "carbonregistry/pkg/domain"
)

// Calculator computes credit quantities; see internal/calculator.
type Calculator interface {
	Compute(ctx context.Context, req calculator.Request) (int64, error)
}

// Allocator hands out ranges from named monotonic counters.
type Allocator interface {
	Allocate(ctx context.Context, name counter.Name, count int64) (int64, error)
}

// ConstantsSource resolves the constants version used for a new project.
// Latest returns nil without error when the sub-domain has no versions.
type ConstantsSource interface {
	Latest(ctx context.Context, domain id.SubDomain) (*cmodels.Version, error)
}

// EventPublisher notifies downstream consumers of committed status writes.
type EventPublisher interface {
	Publish(ctx context.Context, event models.TransitionEvent) error
}

// Store persists projects and their audit trail.
type Store interface {
	Create(ctx context.Context, p *models.Project, entry *models.AuditEntry) error
	FindByID(ctx context.Context, projectID string) (*models.Project, error)
	UpdateStatus(ctx context.Context, projectID string, expected, next models.Status, entry *models.AuditEntry, at time.Time) (*models.Project, error)
	History(ctx context.Context, projectID string) ([]*models.AuditEntry, error)
	List(ctx context.Context, q models.Query) (*models.Page, error)
}
