package calculator

import (
	"encoding/json"

	"carbonregistry/internal/project/models"
	id "carbonregistry/pkg/domain"
	dErrors "carbonregistry/pkg/domain-errors"
)

const durationUnitSeconds = "s"

// Builder turns a creation request and the resolved constants payload (nil
// when no version exists) into a calculator request.
type Builder func(req *models.CreateRequest, constants json.RawMessage) (Request, error)

// builders maps every supported sub-domain to its request builder. Adding a
// sub-domain means adding one Request variant and one entry here.
var builders = map[id.SubDomain]Builder{
	id.SubDomainAgriculture: buildAgriculture,
	id.SubDomainSolar:       buildSolar,
}

// Build dispatches on the request's sub-domain.
//
// Errors: CodeUnsupportedSubDomain for unknown tags, CodeValidation when the
// matching parameters are missing or out of range.
func Build(req *models.CreateRequest, constants json.RawMessage) (Request, error) {
	b, ok := builders[req.SubDomain]
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnsupportedSubDomain, "unsupported sub-domain "+string(req.SubDomain))
	}
	return b(req, constants)
}

func buildAgriculture(req *models.CreateRequest, constants json.RawMessage) (Request, error) {
	props := req.Agriculture
	if props == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "agricultureProperties are required for AGRICULTURE projects")
	}
	if props.LandArea <= 0 || props.LandAreaUnit == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "landArea must be positive and landAreaUnit set")
	}
	out := AgricultureRequest{
		Duration:     req.DurationSeconds(),
		DurationUnit: durationUnitSeconds,
		LandArea:     props.LandArea,
		LandAreaUnit: props.LandAreaUnit,
	}
	if constants != nil {
		c, err := decodeStrict[AgricultureConstants](constants)
		if err != nil {
			return nil, err
		}
		out.Constants = c
	}
	return out, nil
}

func buildSolar(req *models.CreateRequest, constants json.RawMessage) (Request, error) {
	props := req.Solar
	if props == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "solarProperties are required for SOLAR projects")
	}
	if props.EnergyGeneration <= 0 || props.EnergyGenerationUnit == "" || props.ConsumerGroup == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "energyGeneration must be positive and unit and consumerGroup set")
	}
	out := SolarRequest{
		BuildingType:         props.ConsumerGroup,
		EnergyGeneration:     props.EnergyGeneration,
		EnergyGenerationUnit: props.EnergyGenerationUnit,
	}
	if constants != nil {
		c, err := decodeStrict[SolarConstants](constants)
		if err != nil {
			return nil, err
		}
		out.Constants = c
	}
	return out, nil
}
