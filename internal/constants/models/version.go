package models

import (
	"encoding/json"
	"strconv"
	"time"

	id "carbonregistry/pkg/domain"
)

// Version is one immutable snapshot of a sub-domain's calculator constants.
// Numbers start at 1 and increase by exactly one per accepted update.
type Version struct {
	Domain    id.SubDomain    `json:"domain"`
	Number    int             `json:"version"`
	Payload   json.RawMessage `json:"payload"`
	CreatedBy string          `json:"createdBy,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Tag is the value recorded on projects computed with this version.
func (v *Version) Tag() string {
	return strconv.Itoa(v.Number)
}
