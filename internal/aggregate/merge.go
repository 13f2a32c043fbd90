// Package aggregate resolves competing field candidates from multiple
// sources into a single deterministic research record.
package aggregate

import (
	"sort"

	"github.com/sells-group/lodging-research/internal/model"
)

// Merge resolves candidates per manifest field. Every manifest field gets a
// FieldResult; fields no source answered keep a nil ChosenValue. The winner
// ordering is a strict total order, so merge output is independent of
// candidate arrival order:
//
//  1. higher source PriorityRank
//  2. newer ObservedAt
//  3. higher RawConfidence
//  4. lexicographically smaller SourceID
//
// Losing candidates are retained as Alternatives in the same order.
func Merge(candidates map[string][]model.FieldCandidate, manifest *model.FieldManifest, snapshot model.ProfileSnapshot) map[string]*model.FieldResult {
	fields := make(map[string]*model.FieldResult, len(manifest.Specs))

	for _, key := range manifest.Keys() {
		usable := make([]model.FieldCandidate, 0, len(candidates[key]))
		for _, c := range candidates[key] {
			if c.Usable() {
				usable = append(usable, c)
			}
		}

		if len(usable) == 0 {
			fields[key] = &model.FieldResult{Field: key}
			continue
		}

		sort.SliceStable(usable, func(i, j int) bool {
			return beats(usable[i], usable[j], snapshot)
		})

		winner := usable[0]
		observed := winner.ObservedAt
		fields[key] = &model.FieldResult{
			Field:        key,
			ChosenValue:  winner.Value,
			ChosenSource: winner.SourceID,
			Alternatives: usable[1:],
			ObservedAt:   &observed,
		}
	}

	return fields
}

// beats reports whether candidate a ranks strictly above b.
func beats(a, b model.FieldCandidate, snapshot model.ProfileSnapshot) bool {
	ra := snapshot.Profile(a.SourceID).PriorityRank
	rb := snapshot.Profile(b.SourceID).PriorityRank
	if ra != rb {
		return ra > rb
	}
	if !a.ObservedAt.Equal(b.ObservedAt) {
		return a.ObservedAt.After(b.ObservedAt)
	}
	if a.RawConfidence != b.RawConfidence {
		return a.RawConfidence > b.RawConfidence
	}
	return a.SourceID < b.SourceID
}
