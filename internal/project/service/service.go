// Package service is the project ledger: the creation protocol that turns a
// request into a numbered, serialised, credit-bearing project, and the guarded
// status state machine with its audit trail.
//
// The ledger holds no locks of its own. Uniqueness of ids and credit blocks
// comes from the counter store's atomic increments, and status races are
// settled by the project store's compare-and-set.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"carbonregistry/internal/platform/metrics"
	"carbonregistry/internal/project/models"
	"carbonregistry/internal/serial"
	dErrors "carbonregistry/pkg/domain-errors"
	"carbonregistry/pkg/platform/sentinel"
	"carbonregistry/pkg/requestcontext"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName            = "carbonregistry/project"
	defaultPublishTimeout = 5 * time.Second
)

type Service struct {
	store      Store
	allocator  Allocator
	constants  ConstantsSource
	calculator Calculator
	publisher  EventPublisher

	codec          serial.Codec
	policy         models.TransitionPolicy
	clock          func() time.Time
	publishTimeout time.Duration

	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithPublisher enables transition events. Without one, events are skipped.
func WithPublisher(p EventPublisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

func WithPublishTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.publishTimeout = d
		}
	}
}

// WithTransitions replaces the default status allow-list.
func WithTransitions(policy models.TransitionPolicy) Option {
	return func(s *Service) {
		s.policy = policy
	}
}

// WithClock overrides the request time. By default the time comes from
// requestcontext.Now.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		s.clock = clock
	}
}

// WithProjectIDWidth sets the zero padding of project ids and serials.
func WithProjectIDWidth(width int) Option {
	return func(s *Service) {
		s.codec = serial.New(width)
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

func New(store Store, allocator Allocator, constants ConstantsSource, calc Calculator, opts ...Option) *Service {
	s := &Service{
		store:          store,
		allocator:      allocator,
		constants:      constants,
		calculator:     calc,
		codec:          serial.New(serial.DefaultProjectWidth),
		policy:         models.DefaultTransitionPolicy(),
		publishTimeout: defaultPublishTimeout,
		logger:         slog.Default(),
		tracer:         otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) now(ctx context.Context) time.Time {
	if s.clock != nil {
		return s.clock().UTC()
	}
	return requestcontext.Now(ctx).UTC()
}

// publish sends the event after the write committed. Failures are logged and
// counted; the audit table stays the record of truth.
func (s *Service) publish(ctx context.Context, p *models.Project, entry *models.AuditEntry) {
	if s.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()

	if err := s.publisher.Publish(pubCtx, models.NewTransitionEvent(p, entry)); err != nil {
		if s.metrics != nil {
			s.metrics.IncEventPublishFailure()
		}
		s.logger.WarnContext(ctx, "failed to publish transition event",
			"project_id", p.ProjectID,
			"sequence", entry.Sequence,
			"error", err,
		)
	}
}

// translateStoreErr maps store sentinels onto the error taxonomy.
func translateStoreErr(err error, msg string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "project not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, msg)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return dErrors.Wrap(err, dErrors.CodeTimeout, msg)
	default:
		return dErrors.Wrap(err, dErrors.CodeStorageUnavailable, msg)
	}
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, dErrors.Message(err))
}
