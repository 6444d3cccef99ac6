package domain

import dErrors "carbonregistry/pkg/domain-errors"

// SubDomain is the project category that selects the credit calculator and the
// constants history used for a project.
// Invariant: the value must be one of the supported sub-domains.
//
// Usage: construct via ParseSubDomain at trust boundaries; direct casting
// bypasses validation.
type SubDomain string

// Supported sub-domains.
const (
	SubDomainAgriculture SubDomain = "AGRICULTURE"
	SubDomainSolar       SubDomain = "SOLAR"
)

// validSubDomains is the single source of truth for valid sub-domains.
var validSubDomains = map[SubDomain]bool{
	SubDomainAgriculture: true,
	SubDomainSolar:       true,
}

// ParseSubDomain constructs a SubDomain from external input.
//
// Errors: returns CodeInvalidInput when the value is empty and
// CodeUnsupportedSubDomain when it is not in the catalogue.
func ParseSubDomain(s string) (SubDomain, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "sub-domain cannot be empty")
	}
	d := SubDomain(s)
	if !d.IsValid() {
		return "", dErrors.New(dErrors.CodeUnsupportedSubDomain, "unsupported sub-domain "+s)
	}
	return d, nil
}

// IsValid checks if the sub-domain is one of the supported enum values.
func (d SubDomain) IsValid() bool {
	return validSubDomains[d]
}

// String returns the string representation of the sub-domain.
func (d SubDomain) String() string {
	return string(d)
}

// SupportedSubDomains returns the catalogue in a stable order.
func SupportedSubDomains() []SubDomain {
	return []SubDomain{SubDomainAgriculture, SubDomainSolar}
}
