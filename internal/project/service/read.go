package service

import (
	"context"

	"carbonregistry/internal/project/models"
	dErrors "carbonregistry/pkg/domain-errors"
)

// Get returns one project.
func (s *Service) Get(ctx context.Context, projectID string) (*models.Project, error) {
	if projectID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "projectId is required")
	}
	p, err := s.store.FindByID(ctx, projectID)
	if err != nil {
		return nil, translateStoreErr(err, "failed to read project")
	}
	return p, nil
}

// History returns the audit trail ordered by sequence, creation first. An
// unknown project has an empty history rather than an error.
func (s *Service) History(ctx context.Context, projectID string) ([]*models.AuditEntry, error) {
	entries, err := s.store.History(ctx, projectID)
	if err != nil {
		return nil, translateStoreErr(err, "failed to read project history")
	}
	if entries == nil {
		entries = []*models.AuditEntry{}
	}
	return entries, nil
}

// Query lists one page of projects matching q.Condition, ordered by id.
func (s *Service) Query(ctx context.Context, q models.Query) (*models.Page, error) {
	if err := q.Normalize(); err != nil {
		return nil, err
	}
	page, err := s.store.List(ctx, q)
	if err != nil {
		return nil, translateStoreErr(err, "failed to list projects")
	}
	return page, nil
}
