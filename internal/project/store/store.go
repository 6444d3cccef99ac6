// Package store persists projects and their status audit trail.
//
// Both implementations give the same guarantees: a project row and its first
// audit entry become visible together, and a status write is a compare-and-set
// on the current status that appends exactly one audit entry when it wins.
package store

import "carbonregistry/internal/project/models"

func cloneProject(p *models.Project) *models.Project {
	c := *p
	if p.Parameters.Agriculture != nil {
		a := *p.Parameters.Agriculture
		c.Parameters.Agriculture = &a
	}
	if p.Parameters.Solar != nil {
		s := *p.Parameters.Solar
		c.Parameters.Solar = &s
	}
	return &c
}

func cloneEntry(e *models.AuditEntry) *models.AuditEntry {
	c := *e
	return &c
}
