// Package calculator is the port to the external credit calculator.
//
// The registry never computes credits itself. It builds a sub-domain specific
// Request from the creation parameters and the resolved constants version,
// hands it to a Calculator, and records which constants version was used.
package calculator

import (
	"context"

	id "carbonregistry/pkg/domain"
)

// Calculator computes the credit quantity for a request. Implementations are
// pure from the registry's point of view: same request, same answer.
type Calculator interface {
	Compute(ctx context.Context, req Request) (int64, error)
}

// Func adapts an ordinary function to the Calculator interface.
type Func func(ctx context.Context, req Request) (int64, error)

func (f Func) Compute(ctx context.Context, req Request) (int64, error) {
	return f(ctx, req)
}

// Request is the tagged union of calculator inputs. Each variant belongs to
// exactly one sub-domain.
type Request interface {
	SubDomain() id.SubDomain
}

// AgricultureRequest is the calculator input for agriculture projects.
type AgricultureRequest struct {
	Duration     int64                 `json:"duration"`
	DurationUnit string                `json:"durationUnit"`
	LandArea     float64               `json:"landArea"`
	LandAreaUnit string                `json:"landAreaUnit"`
	Constants    *AgricultureConstants `json:"agricultureConstants,omitempty"`
}

func (AgricultureRequest) SubDomain() id.SubDomain { return id.SubDomainAgriculture }

// SolarRequest is the calculator input for solar projects.
type SolarRequest struct {
	BuildingType         string          `json:"buildingType"`
	EnergyGeneration     float64         `json:"energyGeneration"`
	EnergyGenerationUnit string          `json:"energyGenerationUnit"`
	Constants            *SolarConstants `json:"solarConstants,omitempty"`
}

func (SolarRequest) SubDomain() id.SubDomain { return id.SubDomainSolar }
