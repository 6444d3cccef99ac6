package service

import (
	"context"
	"errors"
	"fmt"

	"carbonregistry/internal/project/models"
	dErrors "carbonregistry/pkg/domain-errors"
	"carbonregistry/pkg/platform/sentinel"
	"carbonregistry/pkg/requestcontext"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// UpdateStatusRequest moves a project from ExpectedStatus to Status.
type UpdateStatusRequest struct {
	ProjectID      string
	Status         models.Status
	ExpectedStatus models.Status
	Comment        string
}

// UpdateStatus applies a guarded transition.
//
// Errors: CodeInvalidTransition when the pair is not on the allow-list (no
// write happens), CodeNotFound for unknown projects, CodeStaleStatus when the
// project is no longer in ExpectedStatus. Stale updates are never retried;
// callers re-read and decide.
func (s *Service) UpdateStatus(ctx context.Context, req UpdateStatusRequest) (*models.Project, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.UpdateStatus")
	defer span.End()
	span.SetAttributes(
		attribute.String("project.id", req.ProjectID),
		attribute.String("status.expected", string(req.ExpectedStatus)),
		attribute.String("status.new", string(req.Status)),
	)

	p, err := s.updateStatus(ctx, req)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	return p, nil
}

func (s *Service) updateStatus(ctx context.Context, req UpdateStatusRequest) (*models.Project, error) {
	if req.ProjectID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "projectId is required")
	}
	if !req.Status.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown project status "+string(req.Status))
	}
	if !req.ExpectedStatus.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown expected status "+string(req.ExpectedStatus))
	}
	if !s.policy.Allows(req.ExpectedStatus, req.Status) {
		return nil, dErrors.New(dErrors.CodeInvalidTransition,
			fmt.Sprintf("transition %s -> %s is not allowed", req.ExpectedStatus, req.Status))
	}

	now := s.now(ctx)
	entry := &models.AuditEntry{
		ProjectID:   req.ProjectID,
		EventID:     uuid.New(),
		PriorStatus: req.ExpectedStatus,
		NewStatus:   req.Status,
		Actor:       requestcontext.Actor(ctx),
		Comment:     req.Comment,
		CreatedAt:   now,
	}
	p, err := s.store.UpdateStatus(ctx, req.ProjectID, req.ExpectedStatus, req.Status, entry, now)
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			if s.metrics != nil {
				s.metrics.IncStaleStatus()
			}
			return nil, dErrors.Wrap(err, dErrors.CodeStaleStatus,
				fmt.Sprintf("project %s is no longer %s", req.ProjectID, req.ExpectedStatus))
		}
		return nil, translateStoreErr(err, "failed to update project status")
	}

	if s.metrics != nil {
		s.metrics.IncStatusTransition(string(req.ExpectedStatus), string(req.Status))
	}
	s.logger.InfoContext(ctx, "project status updated",
		"project_id", p.ProjectID,
		"from", req.ExpectedStatus,
		"to", req.Status,
		"sequence", entry.Sequence,
		"actor", entry.Actor,
	)
	s.publish(ctx, p, entry)
	return p, nil
}
