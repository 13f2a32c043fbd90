package model

import "time"

// FieldResult is the aggregator's resolution for a single field.
type FieldResult struct {
	Field           string           `json:"field"`
	ChosenValue     any              `json:"chosen_value"`
	ChosenSource    string           `json:"chosen_source,omitempty"`
	FinalConfidence float64          `json:"final_confidence"` // 0..100
	Alternatives    []FieldCandidate `json:"alternatives,omitempty"`
	ObservedAt      *time.Time       `json:"observed_at,omitempty"`
	Verified        bool             `json:"verified"`
	UserEdited      bool             `json:"user_edited"`
	// RegenFailed annotates a field whose narrowed re-research pass failed
	// and whose prior result was kept.
	RegenFailed bool `json:"regen_failed,omitempty"`
}

// Clone returns a deep enough copy for session snapshots: alternatives are
// copied, values are shared (candidates are immutable by contract).
func (r *FieldResult) Clone() *FieldResult {
	if r == nil {
		return nil
	}
	cp := *r
	if len(r.Alternatives) > 0 {
		cp.Alternatives = make([]FieldCandidate, len(r.Alternatives))
		copy(cp.Alternatives, r.Alternatives)
	}
	if r.ObservedAt != nil {
		t := *r.ObservedAt
		cp.ObservedAt = &t
	}
	return &cp
}

// DegradedSource records an adapter that contributed nothing to a pass.
type DegradedSource struct {
	SourceID string `json:"source_id"`
	Reason   string `json:"reason"`
}

// ResearchRecord maps every manifest field to its resolution. Required
// fields always have an entry, even when no source produced a value.
type ResearchRecord struct {
	PassID           string                  `json:"pass_id"`
	EntityKind       EntityKind              `json:"entity_kind"`
	Identity         Identity                `json:"identity"`
	Fields           map[string]*FieldResult `json:"fields"`
	RecordConfidence float64                 `json:"record_confidence"` // 0..100
	DegradedSources  []DegradedSource        `json:"degraded_sources,omitempty"`
	ResearchedAt     time.Time               `json:"researched_at"`
}

// Field returns the result for a field key, or nil.
func (r *ResearchRecord) Field(key string) *FieldResult {
	return r.Fields[key]
}

// ValueMap returns the values-only view handed to external collaborators
// once a session completes: field key to chosen value, provenance stripped.
func (r *ResearchRecord) ValueMap() map[string]any {
	out := make(map[string]any, len(r.Fields))
	for key, fr := range r.Fields {
		out[key] = fr.ChosenValue
	}
	return out
}
