package models

import (
	"time"

	"github.com/google/uuid"

	id "carbonregistry/pkg/domain"
)

// AuditEntry records one successful status write. Entries are insert-only and
// keyed by (ProjectID, Sequence); sequence 1 is the creation entry whose
// PriorStatus is empty.
type AuditEntry struct {
	ProjectID   string    `json:"projectId"`
	Sequence    int       `json:"sequence"`
	EventID     uuid.UUID `json:"eventId"`
	PriorStatus Status    `json:"priorStatus,omitempty"`
	NewStatus   Status    `json:"newStatus"`
	Actor       string    `json:"actor,omitempty"`
	Comment     string    `json:"comment,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// TransitionEvent is published to downstream consumers after a status write
// commits.
type TransitionEvent struct {
	EventID      uuid.UUID    `json:"eventId"`
	ProjectID    string       `json:"projectId"`
	SerialNumber string       `json:"serialNo"`
	SubDomain    id.SubDomain `json:"subDomain"`
	Sequence     int          `json:"sequence"`
	PriorStatus  Status       `json:"priorStatus,omitempty"`
	NewStatus    Status       `json:"newStatus"`
	Actor        string       `json:"actor,omitempty"`
	Comment      string       `json:"comment,omitempty"`
	OccurredAt   time.Time    `json:"occurredAt"`
}

// NewTransitionEvent builds the event for an entry of project p.
func NewTransitionEvent(p *Project, e *AuditEntry) TransitionEvent {
	return TransitionEvent{
		EventID:      e.EventID,
		ProjectID:    e.ProjectID,
		SerialNumber: p.SerialNumber,
		SubDomain:    p.SubDomain,
		Sequence:     e.Sequence,
		PriorStatus:  e.PriorStatus,
		NewStatus:    e.NewStatus,
		Actor:        e.Actor,
		Comment:      e.Comment,
		OccurredAt:   e.CreatedAt,
	}
}
