// Package profile maintains source profiles: the priority ranks and
// reliability weights that drive merging and scoring, tuned over time from
// the correction log.
package profile

import (
	"os"
	"sort"
	"sync"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/lodging-research/internal/model"
)

// Table holds the live source profiles. Research passes never read it
// directly; they take a Snapshot at pass start so learner updates landing
// mid-pass cannot produce mixed-weight results.
type Table struct {
	mu       sync.RWMutex
	profiles map[string]model.SourceProfile
}

// NewTable creates a table seeded with the given profiles.
func NewTable(seed []model.SourceProfile) *Table {
	t := &Table{profiles: make(map[string]model.SourceProfile, len(seed))}
	for _, p := range seed {
		t.profiles[p.SourceID] = p
	}
	return t
}

// Snapshot returns an immutable copy of all profiles.
func (t *Table) Snapshot() model.ProfileSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	all := make([]model.SourceProfile, 0, len(t.profiles))
	for _, p := range t.profiles {
		all = append(all, p)
	}
	return model.NewProfileSnapshot(all)
}

// Get returns the profile for a source and whether it exists.
func (t *Table) Get(sourceID string) (model.SourceProfile, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.profiles[sourceID]
	return p, ok
}

// Upsert stores a profile, replacing any existing entry.
func (t *Table) Upsert(p model.SourceProfile) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.profiles[p.SourceID] = p
}

// All returns every profile sorted by source ID.
func (t *Table) All() []model.SourceProfile {
	t.mu.RLock()
	defer t.mu.RUnlock()
	all := make([]model.SourceProfile, 0, len(t.profiles))
	for _, p := range t.profiles {
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].SourceID < all[j].SourceID })
	return all
}

// DefaultProfiles seeds the built-in adapters. Directory listings rank
// highest; model-knowledge research ranks lowest.
func DefaultProfiles() []model.SourceProfile {
	return []model.SourceProfile{
		{SourceID: "directory", PriorityRank: 40, ReliabilityWeight: 0.9, LatencyClass: model.LatencyFast, Version: 1},
		{SourceID: "webpage", PriorityRank: 30, ReliabilityWeight: 0.8, LatencyClass: model.LatencyMedium, Version: 1},
		{SourceID: "perplexity", PriorityRank: 20, ReliabilityWeight: 0.6, LatencyClass: model.LatencySlow, Version: 1},
		{SourceID: "claude", PriorityRank: 10, ReliabilityWeight: 0.5, LatencyClass: model.LatencySlow, Version: 1},
	}
}

// LoadProfiles reads a YAML profile seed file.
func LoadProfiles(path string) ([]model.SourceProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "profile: read %s", path)
	}

	var doc struct {
		Sources []model.SourceProfile `yaml:"sources"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrapf(err, "profile: parse %s", path)
	}
	if len(doc.Sources) == 0 {
		return nil, eris.Errorf("profile: %s defines no sources", path)
	}
	return doc.Sources, nil
}
