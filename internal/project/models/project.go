package models

import (
	"fmt"
	"strings"
	"time"

	id "carbonregistry/pkg/domain"
	dErrors "carbonregistry/pkg/domain-errors"
)

// DefaultConstantsVersion tags projects computed without any stored constants.
const DefaultConstantsVersion = "default"

// AgricultureProperties are the creation parameters of an agriculture project.
type AgricultureProperties struct {
	LandArea     float64 `json:"landArea"`
	LandAreaUnit string  `json:"landAreaUnit"`
}

// SolarProperties are the creation parameters of a solar project.
type SolarProperties struct {
	EnergyGeneration     float64 `json:"energyGeneration"`
	EnergyGenerationUnit string  `json:"energyGenerationUnit"`
	ConsumerGroup        string  `json:"consumerGroup"`
}

// Parameters holds the sub-domain specific creation parameters. Exactly the
// field matching the project's sub-domain is set.
type Parameters struct {
	Agriculture *AgricultureProperties `json:"agricultureProperties,omitempty"`
	Solar       *SolarProperties       `json:"solarProperties,omitempty"`
}

// CreateRequest is the input of the creation protocol.
type CreateRequest struct {
	Title         string       `json:"title"`
	SubDomain     id.SubDomain `json:"subDomain"`
	CountryCode   string       `json:"countryCodeA2"`
	SectoralScope string       `json:"sectoralScope"`
	StartTime     int64        `json:"startTime"`
	EndTime       int64        `json:"endTime"`
	Parameters
}

// Normalize trims free text and upper-cases codes.
func (r *CreateRequest) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.CountryCode = strings.ToUpper(strings.TrimSpace(r.CountryCode))
	r.SectoralScope = strings.ToUpper(strings.TrimSpace(r.SectoralScope))
}

// Validate checks the sub-domain independent fields. Sub-domain specific
// parameters are checked by the calculator request builders.
func (r *CreateRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeValidation, "create request is required")
	}
	if r.SubDomain == "" {
		return dErrors.New(dErrors.CodeValidation, "subDomain is required")
	}
	if len(r.CountryCode) != 2 {
		return dErrors.New(dErrors.CodeValidation, "countryCodeA2 must be a two letter country code")
	}
	if r.SectoralScope == "" {
		return dErrors.New(dErrors.CodeValidation, "sectoralScope is required")
	}
	if r.StartTime <= 0 {
		return dErrors.New(dErrors.CodeValidation, "startTime must be a positive unix timestamp")
	}
	if r.EndTime <= r.StartTime {
		return dErrors.New(dErrors.CodeValidation, "endTime must be after startTime")
	}
	return nil
}

// DurationSeconds is the project span used by the calculators.
func (r *CreateRequest) DurationSeconds() int64 {
	return r.EndTime - r.StartTime
}

// IssuanceYear is the UTC calendar year of the start time.
func (r *CreateRequest) IssuanceYear() int {
	return time.Unix(r.StartTime, 0).UTC().Year()
}

// Project is a registered credit-bearing project. Everything except Status
// and UpdatedAt is fixed at creation.
type Project struct {
	ProjectID        string       `json:"projectId"`
	Title            string       `json:"title,omitempty"`
	SubDomain        id.SubDomain `json:"subDomain"`
	CountryCode      string       `json:"countryCodeA2"`
	SectoralScope    string       `json:"sectoralScope"`
	StartTime        int64        `json:"startTime"`
	EndTime          int64        `json:"endTime"`
	Parameters       Parameters   `json:"parameters"`
	CreditQuantity   int64        `json:"creditQuantity"`
	StartBlock       int64        `json:"startBlock"`
	EndBlock         int64        `json:"endBlock"`
	SerialNumber     string       `json:"serialNo"`
	ConstantsVersion string       `json:"constantVersion"`
	Status           Status       `json:"status"`
	CreatedAt        time.Time    `json:"createdAt"`
	UpdatedAt        time.Time    `json:"updatedAt"`
}

func (p *Project) String() string {
	return fmt.Sprintf("project %s (%s, %s)", p.ProjectID, p.SubDomain, p.Status)
}
