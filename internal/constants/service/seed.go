package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	id "carbonregistry/pkg/domain"
	dErrors "carbonregistry/pkg/domain-errors"

	"gopkg.in/yaml.v3"
)

// Seed maps a sub-domain to the constants payload it should start with.
type Seed map[id.SubDomain]json.RawMessage

// LoadSeed reads a YAML document of the form
//
//	AGRICULTURE:
//	  emissionReductionPerHectarePerYear: 2.5
//	SOLAR:
//	  emissionFactorPerKWh: 0.00071
func LoadSeed(path string) (Seed, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read constants seed: %w", err)
	}
	return ParseSeed(raw)
}

// ParseSeed decodes seed YAML. Each domain's mapping is converted to JSON.
func ParseSeed(raw []byte) (Seed, error) {
	var doc map[string]map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse constants seed: %w", err)
	}
	seed := make(Seed, len(doc))
	for name, payload := range doc {
		domain, err := id.ParseSubDomain(name)
		if err != nil {
			return nil, fmt.Errorf("constants seed: %w", err)
		}
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("constants seed %s: %w", domain, err)
		}
		seed[domain] = encoded
	}
	return seed, nil
}

// ApplySeed writes each seed payload as a new version unless it already
// matches the latest one. Safe to run on every start.
func (s *Service) ApplySeed(ctx context.Context, seed Seed) error {
	domains := make([]id.SubDomain, 0, len(seed))
	for d := range seed {
		domains = append(domains, d)
	}
	sort.Slice(domains, func(i, j int) bool { return domains[i] < domains[j] })

	for _, domain := range domains {
		_, err := s.Update(ctx, domain, seed[domain])
		if dErrors.HasCode(err, dErrors.CodeNoChange) {
			s.logger.DebugContext(ctx, "constants seed already applied", "domain", domain)
			continue
		}
		if err != nil {
			return fmt.Errorf("apply constants seed for %s: %w", domain, err)
		}
	}
	return nil
}
