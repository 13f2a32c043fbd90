package model

// LatencyClass is a coarse expectation of how fast an adapter answers.
type LatencyClass string

const (
	LatencyFast   LatencyClass = "fast"   // sub-second directory lookups
	LatencyMedium LatencyClass = "medium" // single page fetch + parse
	LatencySlow   LatencyClass = "slow"   // LLM research calls
)

// SourceProfile is the static-ish configuration of one source adapter.
// PriorityRank is the primary merge tie-break (higher wins);
// ReliabilityWeight (0..1) feeds confidence scoring and is tuned over time
// by the correction-log learner.
type SourceProfile struct {
	SourceID          string       `json:"source_id" yaml:"source_id"`
	PriorityRank      int          `json:"priority_rank" yaml:"priority_rank"`
	ReliabilityWeight float64      `json:"reliability_weight" yaml:"reliability_weight"`
	LatencyClass      LatencyClass `json:"latency_class" yaml:"latency_class"`
	Version           int          `json:"version" yaml:"version"`
}

// ProfileSnapshot is an immutable copy of all source profiles taken at the
// start of a research pass. Weight updates made mid-pass are invisible to
// the pass holding the snapshot.
type ProfileSnapshot struct {
	profiles map[string]SourceProfile
}

// NewProfileSnapshot copies the given profiles into a snapshot.
func NewProfileSnapshot(profiles []SourceProfile) ProfileSnapshot {
	m := make(map[string]SourceProfile, len(profiles))
	for _, p := range profiles {
		m[p.SourceID] = p
	}
	return ProfileSnapshot{profiles: m}
}

// Profile returns the profile for a source. Unknown sources get a neutral
// profile so a misregistered adapter degrades instead of panicking.
func (s ProfileSnapshot) Profile(sourceID string) SourceProfile {
	if p, ok := s.profiles[sourceID]; ok {
		return p
	}
	return SourceProfile{
		SourceID:          sourceID,
		PriorityRank:      0,
		ReliabilityWeight: 0.3,
		LatencyClass:      LatencyMedium,
	}
}

// Len returns the number of profiled sources.
func (s ProfileSnapshot) Len() int {
	return len(s.profiles)
}
