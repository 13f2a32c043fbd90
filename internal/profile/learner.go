package profile

import (
	"go.uber.org/zap"

	"github.com/sells-group/lodging-research/internal/model"
)

// Weight bounds keep learning from ever zeroing out or fully trusting a
// source; even a consistently wrong source keeps a probe-sized weight.
const (
	MinReliabilityWeight = 0.05
	MaxReliabilityWeight = 0.99

	// defaultPenaltyStep is the per-correction weight decrement.
	defaultPenaltyStep = 0.02
)

// Learner adjusts reliability weights from reviewer corrections. Every
// correction is evidence that the named source's value was wrong for this
// context, so its weight drops by a small step per entry.
type Learner struct {
	table *Table
	step  float64
}

// NewLearner creates a learner over the given table. step <= 0 selects the
// default penalty step.
func NewLearner(table *Table, step float64) *Learner {
	if step <= 0 {
		step = defaultPenaltyStep
	}
	return &Learner{table: table, step: step}
}

// Apply folds correction entries into the table and returns how many
// produced a weight change. Corrections against reserved sources (defaults,
// prior user edits) carry no signal about adapter reliability.
func (l *Learner) Apply(entries []model.CorrectionLogEntry) int {
	applied := 0
	for _, entry := range entries {
		if entry.SourceID == "" || entry.SourceID == model.SourceDefault || entry.SourceID == model.SourceUser {
			continue
		}

		p, ok := l.table.Get(entry.SourceID)
		if !ok {
			// An unknown source got corrected; start from the neutral
			// weight so the penalty is still recorded.
			p = model.SourceProfile{
				SourceID:          entry.SourceID,
				ReliabilityWeight: 0.3,
				LatencyClass:      model.LatencyMedium,
			}
		}

		next := p.ReliabilityWeight - l.step
		if next < MinReliabilityWeight {
			next = MinReliabilityWeight
		}
		if next > MaxReliabilityWeight {
			next = MaxReliabilityWeight
		}
		if next == p.ReliabilityWeight {
			continue
		}

		p.ReliabilityWeight = next
		p.Version++
		l.table.Upsert(p)
		applied++

		zap.L().Debug("profile: weight adjusted",
			zap.String("source", entry.SourceID),
			zap.String("field", entry.Field),
			zap.Float64("weight", next),
			zap.Int("version", p.Version),
		)
	}
	return applied
}
