package model

import "github.com/rotisserie/eris"

// ActionKind is the set of operations a reviewer can apply to a session.
type ActionKind string

const (
	ActionApprove    ActionKind = "approve"
	ActionEdit       ActionKind = "edit"
	ActionRegenerate ActionKind = "regenerate"
	ActionSkip       ActionKind = "skip"
)

// ValidationAction is one reviewer operation against a session. Exactly one
// of Field or Category is set for regenerate; Field is required otherwise
// (skip may target a field or nothing).
type ValidationAction struct {
	Kind     ActionKind `json:"kind"`
	Field    string     `json:"field,omitempty"`
	Category string     `json:"category,omitempty"`
	NewValue any        `json:"new_value,omitempty"`
}

// Validate checks structural correctness before the session applies it.
func (a ValidationAction) Validate() error {
	switch a.Kind {
	case ActionApprove:
		if a.Field == "" {
			return eris.New("model: approve requires a field")
		}
	case ActionEdit:
		if a.Field == "" {
			return eris.New("model: edit requires a field")
		}
		if a.NewValue == nil {
			return eris.New("model: edit requires a new value")
		}
	case ActionRegenerate:
		if a.Field == "" && a.Category == "" {
			return eris.New("model: regenerate requires a field or category")
		}
		if a.Field != "" && a.Category != "" {
			return eris.New("model: regenerate takes a field or a category, not both")
		}
	case ActionSkip:
		// Skip is always structurally valid.
	default:
		return eris.Errorf("model: unknown action kind %q", a.Kind)
	}
	return nil
}
