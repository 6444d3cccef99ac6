package calculator

import (
	"bytes"
	"encoding/json"
	"fmt"

	id "carbonregistry/pkg/domain"
	dErrors "carbonregistry/pkg/domain-errors"
)

// AgricultureConstants are the tunable inputs of the agriculture calculator.
type AgricultureConstants struct {
	EmissionReductionPerHectarePerYear float64            `json:"emissionReductionPerHectarePerYear"`
	LandAreaUnitFactors                map[string]float64 `json:"landAreaUnitFactors,omitempty"`
}

// SolarConstants are the tunable inputs of the solar calculator.
type SolarConstants struct {
	EmissionFactorPerKWh float64            `json:"emissionFactorPerKWh"`
	BuildingTypeFactors  map[string]float64 `json:"buildingTypeFactors,omitempty"`
}

// ValidateConstants checks that payload is a well-formed constants document
// for the sub-domain. Unknown fields are rejected so typos cannot silently
// produce a "new" version that the calculator ignores.
func ValidateConstants(domain id.SubDomain, payload json.RawMessage) error {
	switch domain {
	case id.SubDomainAgriculture:
		c, err := decodeStrict[AgricultureConstants](payload)
		if err != nil {
			return err
		}
		if c.EmissionReductionPerHectarePerYear < 0 {
			return dErrors.New(dErrors.CodeValidation, "emissionReductionPerHectarePerYear must not be negative")
		}
		return nonNegativeFactors("landAreaUnitFactors", c.LandAreaUnitFactors)
	case id.SubDomainSolar:
		c, err := decodeStrict[SolarConstants](payload)
		if err != nil {
			return err
		}
		if c.EmissionFactorPerKWh < 0 {
			return dErrors.New(dErrors.CodeValidation, "emissionFactorPerKWh must not be negative")
		}
		return nonNegativeFactors("buildingTypeFactors", c.BuildingTypeFactors)
	default:
		return dErrors.New(dErrors.CodeUnsupportedSubDomain, "unsupported sub-domain "+string(domain))
	}
}

func decodeStrict[T any](payload json.RawMessage) (*T, error) {
	var out T
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid constants payload")
	}
	if dec.More() {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid constants payload: trailing data")
	}
	return &out, nil
}

func nonNegativeFactors(field string, factors map[string]float64) error {
	for k, v := range factors {
		if v < 0 {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s[%s] must not be negative", field, k))
		}
	}
	return nil
}
