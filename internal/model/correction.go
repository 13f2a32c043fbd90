package model

import "time"

// CorrectionContext captures the circumstances of a correction so the
// learner can weight it per entity kind and locale.
type CorrectionContext struct {
	EntityKind EntityKind `json:"entity_kind"`
	Locality   string     `json:"locality,omitempty"`
	Region     string     `json:"region,omitempty"`
}

// CorrectionLogEntry records one human edit that superseded a source's
// value. Append-only; consumed asynchronously to adjust reliability
// weights, never deleted.
type CorrectionLogEntry struct {
	ID             int64             `json:"id,omitempty"`
	SessionID      string            `json:"session_id"`
	Field          string            `json:"field"`
	SourceID       string            `json:"source_id"` // source whose value was superseded
	PreviousValue  any               `json:"previous_value"`
	CorrectedValue any               `json:"corrected_value"`
	Context        CorrectionContext `json:"context"`
	Consumed       bool              `json:"consumed"`
	CreatedAt      time.Time         `json:"created_at"`
}
