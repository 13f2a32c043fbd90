package model

import "time"

// SessionState is the lifecycle of a validation session.
type SessionState string

const (
	SessionPresented         SessionState = "presented"
	SessionPartiallyReviewed SessionState = "partially_reviewed"
	SessionComplete          SessionState = "complete"
)

// FieldState is the per-field review sub-state within a session.
type FieldState string

const (
	FieldUnverified FieldState = "unverified"
	FieldApproved   FieldState = "approved"
	FieldEdited     FieldState = "edited"
)

// Session is the stateful human-review wrapper around one research record.
type Session struct {
	ID          string                `json:"id"`
	Request     *ResearchRequest      `json:"request"`
	Record      *ResearchRecord       `json:"record"`
	FieldStates map[string]FieldState `json:"field_states"`
	State       SessionState          `json:"state"`
	Finalized   bool                  `json:"finalized"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

// FieldState returns the review sub-state for a field, defaulting to
// unverified for fields the session has not touched.
func (s *Session) FieldStateOf(key string) FieldState {
	if st, ok := s.FieldStates[key]; ok {
		return st
	}
	return FieldUnverified
}

// RequiredVerified reports whether every required manifest field has been
// approved or edited.
func (s *Session) RequiredVerified() bool {
	for _, spec := range s.Request.Manifest.Required() {
		st := s.FieldStateOf(spec.Key)
		if st != FieldApproved && st != FieldEdited {
			return false
		}
	}
	return true
}

// AnyVerified reports whether at least one field has been reviewed.
func (s *Session) AnyVerified() bool {
	for _, st := range s.FieldStates {
		if st == FieldApproved || st == FieldEdited {
			return true
		}
	}
	return false
}
