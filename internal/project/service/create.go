package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"carbonregistry/internal/calculator"
	"carbonregistry/internal/counter"
	"carbonregistry/internal/project/models"
	"carbonregistry/internal/serial"
	dErrors "carbonregistry/pkg/domain-errors"
	"carbonregistry/pkg/platform/sentinel"
	"carbonregistry/pkg/requestcontext"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// Create registers a new project.
//
// Steps, in order: validate, resolve the latest constants (or "default"),
// build the sub-domain calculator request, compute credits, allocate the
// project number, allocate the credit block in one call, encode the serial,
// persist the project with its creation audit entry, then publish the event.
// Nothing is retried. If a step after an allocation fails, the allocated
// numbers are left as gaps.
func (s *Service) Create(ctx context.Context, req *models.CreateRequest) (*models.Project, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.Create")
	defer span.End()

	p, err := s.create(ctx, req)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	span.SetAttributes(
		attribute.String("project.id", p.ProjectID),
		attribute.String("project.sub_domain", string(p.SubDomain)),
		attribute.Int64("project.credits", p.CreditQuantity),
	)
	return p, nil
}

func (s *Service) create(ctx context.Context, req *models.CreateRequest) (*models.Project, error) {
	if req == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "create request is required")
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	year := req.IssuanceYear()
	if err := serial.Check(req.CountryCode, req.SectoralScope, year); err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvalidInput) {
			return nil, dErrors.Wrap(err, dErrors.CodeValidation, dErrors.Message(err))
		}
		return nil, err
	}

	constantsTag := models.DefaultConstantsVersion
	var constants json.RawMessage
	latest, err := s.constants.Latest(ctx, req.SubDomain)
	if err != nil {
		if _, coded := dErrors.CodeOf(err); coded {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "failed to resolve constants")
	}
	if latest != nil {
		constantsTag = latest.Tag()
		constants = latest.Payload
	}

	calcReq, err := calculator.Build(req, constants)
	if err != nil {
		return nil, err
	}
	quantity, err := s.compute(ctx, calcReq)
	if err != nil {
		return nil, err
	}

	projectStart, err := s.allocate(ctx, counter.Project, 1)
	if err != nil {
		return nil, err
	}
	projectNumber := projectStart + 1

	blockStart, err := s.allocate(ctx, counter.ITMO, quantity)
	if err != nil {
		return nil, err
	}
	startBlock, endBlock := blockStart+1, blockStart+quantity

	serialNo, err := s.codec.Encode(serial.Fields{
		CountryCode:   req.CountryCode,
		SectoralScope: req.SectoralScope,
		ProjectNumber: projectNumber,
		Year:          year,
		StartBlock:    startBlock,
		EndBlock:      endBlock,
	})
	if err != nil {
		return nil, err
	}

	now := s.now(ctx)
	p := &models.Project{
		ProjectID:        s.codec.PadProjectID(projectNumber),
		Title:            req.Title,
		SubDomain:        req.SubDomain,
		CountryCode:      req.CountryCode,
		SectoralScope:    req.SectoralScope,
		StartTime:        req.StartTime,
		EndTime:          req.EndTime,
		Parameters:       req.Parameters,
		CreditQuantity:   quantity,
		StartBlock:       startBlock,
		EndBlock:         endBlock,
		SerialNumber:     serialNo,
		ConstantsVersion: constantsTag,
		Status:           models.StatusRegistered,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	entry := &models.AuditEntry{
		ProjectID: p.ProjectID,
		EventID:   uuid.New(),
		NewStatus: models.StatusRegistered,
		Actor:     requestcontext.Actor(ctx),
		CreatedAt: now,
	}
	if err := s.store.Create(ctx, p, entry); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			// Counters never repeat, so a clash means the counter store was reset
			// underneath existing projects.
			return nil, dErrors.Wrap(err, dErrors.CodeInvariantViolation,
				fmt.Sprintf("project %s or serial %s already exists", p.ProjectID, p.SerialNumber))
		}
		return nil, translateStoreErr(err, "failed to persist project")
	}

	if s.metrics != nil {
		s.metrics.IncProjectCreated(string(p.SubDomain), p.CreditQuantity)
	}
	s.logger.InfoContext(ctx, "project registered",
		"project_id", p.ProjectID,
		"serial_no", p.SerialNumber,
		"sub_domain", p.SubDomain,
		"credits", p.CreditQuantity,
		"constants_version", p.ConstantsVersion,
	)
	s.publish(ctx, p, entry)
	return p, nil
}

func (s *Service) compute(ctx context.Context, req calculator.Request) (int64, error) {
	start := time.Now()
	quantity, err := s.calculator.Compute(ctx, req)
	if s.metrics != nil {
		s.metrics.ObserveCalculation(time.Since(start), err)
	}
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeCalculationFailed, "credit calculation failed")
	}
	if quantity <= 0 {
		return 0, dErrors.New(dErrors.CodeCalculationFailed,
			fmt.Sprintf("calculator returned non-positive credit quantity %d", quantity))
	}
	return quantity, nil
}

func (s *Service) allocate(ctx context.Context, name counter.Name, count int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeTimeout, "request ended before allocating "+string(name))
	}
	start := time.Now()
	value, err := s.allocator.Allocate(ctx, name, count)
	if s.metrics != nil {
		s.metrics.ObserveAllocation(string(name), time.Since(start), err)
	}
	if err != nil {
		if _, coded := dErrors.CodeOf(err); coded {
			return 0, err
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return 0, dErrors.Wrap(err, dErrors.CodeTimeout, "allocating "+string(name)+" timed out")
		}
		return 0, dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "failed to allocate "+string(name))
	}
	return value, nil
}
