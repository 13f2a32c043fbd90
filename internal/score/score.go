// Package score computes per-field and record-level confidence. Scores are
// advisory: they inform reviewer attention and never block validation.
package score

import (
	"math"
	"time"

	"github.com/sells-group/lodging-research/internal/aggregate"
	"github.com/sells-group/lodging-research/internal/defaults"
	"github.com/sells-group/lodging-research/internal/model"
)

const (
	// AgreementBonus is added when at least two distinct sources produced
	// equivalent values for a field.
	AgreementBonus = 15
	// defaultHalfLifeDays applies when a manifest field has no freshness
	// window of its own.
	defaultHalfLifeDays = 365
)

// Score fills FinalConfidence for every field and the record-level
// aggregate. Defaulted and user-edited fields keep their existing score.
//
// Per field: base = reliability weight * 100, decayed by age against the
// field's freshness window, plus the agreement bonus, clamped to
// [RealSourceFloor, 100] so no real observation scores below a default.
func Score(record *model.ResearchRecord, manifest *model.FieldManifest, snapshot model.ProfileSnapshot, now time.Time) {
	for _, spec := range manifest.Specs {
		res := record.Fields[spec.Key]
		if res == nil {
			continue
		}
		if res.ChosenSource == model.SourceDefault || res.ChosenSource == model.SourceUser {
			continue
		}
		res.FinalConfidence = scoreField(res, spec, snapshot, now)
	}

	record.RecordConfidence = recordConfidence(record, manifest, snapshot)
}

func scoreField(res *model.FieldResult, spec model.FieldSpec, snapshot model.ProfileSnapshot, now time.Time) float64 {
	if res.ChosenValue == nil {
		return 0
	}

	profile := snapshot.Profile(res.ChosenSource)
	base := profile.ReliabilityWeight * 100

	if res.ObservedAt != nil {
		base *= freshnessFactor(*res.ObservedAt, now, spec.FreshnessWindowDays)
	}

	if agreementCount(res, spec.Kind) >= 2 {
		base += AgreementBonus
	}

	// Decay can push an old observation arbitrarily low, but a genuine
	// observation still outranks any applied default.
	return math.Min(100, math.Max(defaults.RealSourceFloor, base))
}

// freshnessFactor halves per freshness window elapsed since observation.
func freshnessFactor(observedAt, now time.Time, halfLifeDays int) float64 {
	if observedAt.IsZero() {
		return 1
	}
	ageDays := now.Sub(observedAt).Hours() / 24
	if ageDays <= 0 {
		return 1
	}
	halfLife := float64(halfLifeDays)
	if halfLife <= 0 {
		halfLife = defaultHalfLifeDays
	}
	return math.Pow(2, -ageDays/halfLife)
}

// agreementCount counts distinct sources whose values are equivalent to
// the chosen one, the winner included.
func agreementCount(res *model.FieldResult, kind model.FieldKind) int {
	sources := map[string]bool{res.ChosenSource: true}
	for _, alt := range res.Alternatives {
		if alt.SourceID == res.ChosenSource || sources[alt.SourceID] {
			continue
		}
		if aggregate.Equivalent(kind, res.ChosenValue, alt.Value) {
			sources[alt.SourceID] = true
		}
	}
	return len(sources)
}

// recordConfidence is the reliability-weighted mean over required fields.
// Optional fields never drag the record score down.
func recordConfidence(record *model.ResearchRecord, manifest *model.FieldManifest, snapshot model.ProfileSnapshot) float64 {
	var weighted, weights float64
	for _, spec := range manifest.Required() {
		res := record.Fields[spec.Key]
		if res == nil {
			weights++
			continue
		}
		w := 1.0
		if res.ChosenSource != "" && res.ChosenSource != model.SourceDefault {
			w = math.Max(snapshot.Profile(res.ChosenSource).ReliabilityWeight, 0.05)
		}
		weighted += res.FinalConfidence * w
		weights += w
	}
	if weights == 0 {
		return 0
	}
	return weighted / weights
}
