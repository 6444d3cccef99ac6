// Package service implements the versioned constants registry consulted by
// project creation.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math/big"

	"carbonregistry/internal/constants/models"
	"carbonregistry/internal/platform/metrics"
	id "carbonregistry/pkg/domain"
	dErrors "carbonregistry/pkg/domain-errors"
	"carbonregistry/pkg/platform/sentinel"
	"carbonregistry/pkg/requestcontext"
)

// Store persists constants versions.
type Store interface {
	// Latest returns sentinel.ErrNotFound when the domain has no versions.
	Latest(ctx context.Context, domain id.SubDomain) (*models.Version, error)
	Get(ctx context.Context, domain id.SubDomain, number int) (*models.Version, error)
	List(ctx context.Context, domain id.SubDomain) ([]*models.Version, error)
	// Insert returns sentinel.ErrConflict when v.Number is not exactly the
	// next version for its domain.
	Insert(ctx context.Context, v *models.Version) error
}

// Validator checks a canonical payload against the sub-domain's schema.
type Validator func(domain id.SubDomain, payload json.RawMessage) error

type Service struct {
	store    Store
	validate Validator
	logger   *slog.Logger
	metrics  *metrics.Metrics
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

// WithValidator installs the per sub-domain payload validator. Without one
// any JSON object is accepted.
func WithValidator(v Validator) Option {
	return func(s *Service) {
		s.validate = v
	}
}

func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Latest returns the newest version for domain, or nil with no error when the
// domain has never been configured.
func (s *Service) Latest(ctx context.Context, domain id.SubDomain) (*models.Version, error) {
	v, err := s.store.Latest(ctx, domain)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "failed to read constants")
	}
	return v, nil
}

// Update appends a new version when payload differs structurally from the
// latest one. Key order and whitespace do not count as a difference.
func (s *Service) Update(ctx context.Context, domain id.SubDomain, payload json.RawMessage) (*models.Version, error) {
	if !domain.IsValid() {
		return nil, dErrors.New(dErrors.CodeUnsupportedSubDomain, "unsupported sub-domain "+string(domain))
	}
	canonical, err := Canonicalize(payload)
	if err != nil {
		return nil, err
	}
	if s.validate != nil {
		if err := s.validate(domain, canonical); err != nil {
			if _, coded := dErrors.CodeOf(err); !coded {
				return nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid constants payload")
			}
			return nil, err
		}
	}

	latest, err := s.Latest(ctx, domain)
	if err != nil {
		return nil, err
	}
	next := 1
	if latest != nil {
		current, err := Canonicalize(latest.Payload)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "stored constants are not valid JSON")
		}
		if bytes.Equal(current, canonical) {
			return nil, dErrors.New(dErrors.CodeNoChange, "no difference from the latest constants version")
		}
		next = latest.Number + 1
	}

	v := &models.Version{
		Domain:    domain,
		Number:    next,
		Payload:   canonical,
		CreatedBy: requestcontext.Actor(ctx),
		CreatedAt: requestcontext.Now(ctx).UTC(),
	}
	if err := s.store.Insert(ctx, v); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "constants were updated concurrently, retry against the new latest version")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "failed to store constants")
	}

	if s.metrics != nil {
		s.metrics.IncConstantsVersion(string(domain))
	}
	s.logger.InfoContext(ctx, "constants version created",
		"domain", domain,
		"version", v.Number,
		"actor", v.CreatedBy,
	)
	return v, nil
}

// History lists every version of domain, oldest first.
func (s *Service) History(ctx context.Context, domain id.SubDomain) ([]*models.Version, error) {
	versions, err := s.store.List(ctx, domain)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "failed to list constants")
	}
	if versions == nil {
		versions = []*models.Version{}
	}
	return versions, nil
}

// Get returns one specific version.
func (s *Service) Get(ctx context.Context, domain id.SubDomain, number int) (*models.Version, error) {
	v, err := s.store.Get(ctx, domain, number)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "constants version not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "failed to read constants")
	}
	return v, nil
}

// Canonicalize re-encodes a JSON object with sorted keys and no insignificant
// whitespace, so structurally equal payloads compare byte-equal. Numbers keep
// their full precision; only their spelling is normalized (0.50 and 0.5 agree).
func Canonicalize(payload json.RawMessage) (json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil || doc == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "constants payload must be a JSON object")
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, dErrors.New(dErrors.CodeValidation, "constants payload has trailing data")
	}
	normalized, err := canonicalValue(doc)
	if err != nil {
		return nil, err
	}
	out, err := json.Marshal(normalized)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "constants payload cannot be encoded")
	}
	return out, nil
}

// numberPrecision is wide enough that any decimal a float64 or int64 can
// carry round-trips exactly.
const numberPrecision = 512

// plainIntegerLimit bounds integers rendered without an exponent.
var plainIntegerLimit = new(big.Float).SetPrec(numberPrecision).SetFloat64(1e21)

func canonicalValue(v any) (any, error) {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			c, err := canonicalValue(child)
			if err != nil {
				return nil, err
			}
			t[k] = c
		}
		return t, nil
	case []any:
		for i, child := range t {
			c, err := canonicalValue(child)
			if err != nil {
				return nil, err
			}
			t[i] = c
		}
		return t, nil
	case json.Number:
		return canonicalNumber(t)
	default:
		return v, nil
	}
}

func canonicalNumber(n json.Number) (json.Number, error) {
	f, _, err := big.ParseFloat(n.String(), 10, numberPrecision, big.ToNearestEven)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeValidation, "constants payload has an unrepresentable number")
	}
	if f.IsInt() && new(big.Float).Abs(f).Cmp(plainIntegerLimit) < 0 {
		return json.Number(f.Text('f', 0)), nil
	}
	return json.Number(f.Text('g', -1)), nil
}
