package models

import (
	"math"

	dErrors "carbonregistry/pkg/domain-errors"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 200
)

// Condition is a pre-validated row filter produced by the caller's
// authorization layer. The registry applies it without interpreting it:
// SQL stores use Clause with Args bound as $1..$n, in-memory stores use Match.
// The zero value matches every project.
type Condition struct {
	Clause string
	Args   []any
	Match  func(*Project) bool
}

// Matches applies the in-memory form of the condition.
func (c Condition) Matches(p *Project) bool {
	if c.Match == nil {
		return true
	}
	return c.Match(p)
}

// Query selects one page of projects. Page is 1-based.
type Query struct {
	Page      int
	Size      int
	Condition Condition
}

// Normalize applies defaults and validates bounds.
func (q *Query) Normalize() error {
	if q.Page == 0 {
		q.Page = 1
	}
	if q.Size == 0 {
		q.Size = DefaultPageSize
	}
	if q.Page < 1 {
		return dErrors.New(dErrors.CodeValidation, "page must be at least 1")
	}
	if q.Size < 1 || q.Size > MaxPageSize {
		return dErrors.New(dErrors.CodeValidation, "size must be between 1 and 200")
	}
	// Offsets stay within int32 so every backend can page without overflow.
	if q.Page-1 > math.MaxInt32/q.Size {
		return dErrors.New(dErrors.CodeValidation, "page is out of range")
	}
	return nil
}

// Offset is the number of rows skipped before the page.
func (q Query) Offset() int {
	return (q.Page - 1) * q.Size
}

// Page is one page of a project listing with the total matching count.
type Page struct {
	Items []*Project `json:"data"`
	Total int        `json:"total"`
}
