package models

import dErrors "carbonregistry/pkg/domain-errors"

// Status is a project's lifecycle state.
type Status string

const (
	StatusRegistered  Status = "Registered"
	StatusAuthorised  Status = "Authorised"
	StatusRejected    Status = "Rejected"
	StatusTransferred Status = "Transferred"
)

var validStatuses = map[Status]bool{
	StatusRegistered:  true,
	StatusAuthorised:  true,
	StatusRejected:    true,
	StatusTransferred: true,
}

// ParseStatus validates a status received from a client.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown project status "+s)
	}
	return st, nil
}

func (s Status) IsValid() bool { return validStatuses[s] }

func (s Status) String() string { return string(s) }

// Transition is an ordered (from, to) status pair.
type Transition struct {
	From Status
	To   Status
}

// TransitionPolicy is the allow-list of status transitions. Anything not
// listed is refused before storage is touched. Storage itself treats no state
// as terminal; the policy is what makes Rejected and Transferred final.
type TransitionPolicy struct {
	allowed map[Transition]bool
}

// NewTransitionPolicy builds a policy from explicit pairs.
func NewTransitionPolicy(pairs ...Transition) TransitionPolicy {
	allowed := make(map[Transition]bool, len(pairs))
	for _, p := range pairs {
		allowed[p] = true
	}
	return TransitionPolicy{allowed: allowed}
}

// DefaultTransitionPolicy is the registry's standard approval workflow.
func DefaultTransitionPolicy() TransitionPolicy {
	return NewTransitionPolicy(
		Transition{StatusRegistered, StatusAuthorised},
		Transition{StatusRegistered, StatusRejected},
		Transition{StatusAuthorised, StatusTransferred},
		Transition{StatusAuthorised, StatusRejected},
	)
}

// Allows reports whether from -> to is permitted.
func (p TransitionPolicy) Allows(from, to Status) bool {
	return p.allowed[Transition{From: from, To: to}]
}
