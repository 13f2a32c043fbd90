package model

import "time"

// Reserved source IDs. Real adapters never use these.
const (
	SourceDefault = "default"
	SourceUser    = "user"
)

// FieldCandidate is one adapter's claim for one field. Immutable once
// produced; the aggregator owns candidates exclusively during merge.
type FieldCandidate struct {
	Field         string    `json:"field"`
	Value         any       `json:"value"`
	SourceID      string    `json:"source_id"`
	RawConfidence float64   `json:"raw_confidence"` // adapter-local, 0..1
	ObservedAt    time.Time `json:"observed_at"`
}

// Usable reports whether the candidate carries a non-empty value.
func (c FieldCandidate) Usable() bool {
	switch v := c.Value.(type) {
	case nil:
		return false
	case string:
		return v != ""
	case []any:
		return len(v) > 0
	case []string:
		return len(v) > 0
	default:
		return true
	}
}
