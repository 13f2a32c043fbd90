// Package orchestrator runs the research pipeline: fan-out, merge,
// defaults, and scoring under one profile snapshot per pass.
package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lodging-research/internal/aggregate"
	"github.com/sells-group/lodging-research/internal/defaults"
	"github.com/sells-group/lodging-research/internal/fanout"
	"github.com/sells-group/lodging-research/internal/model"
	"github.com/sells-group/lodging-research/internal/profile"
	"github.com/sells-group/lodging-research/internal/score"
)

// Pass budgets. A narrowed regeneration pass re-researches a handful of
// fields and gets a tighter deadline than a full pass.
const (
	DefaultFullPassBudget = 90 * time.Second
	DefaultNarrowedBudget = 30 * time.Second
)

// Orchestrator coordinates research passes.
type Orchestrator struct {
	coordinator  *fanout.Coordinator
	profiles     *profile.Table
	fullBudget   time.Duration
	narrowBudget time.Duration
	now          func() time.Time
}

// Option configures the orchestrator.
type Option func(*Orchestrator)

// WithBudgets overrides the full and narrowed pass budgets.
func WithBudgets(full, narrowed time.Duration) Option {
	return func(o *Orchestrator) {
		if full > 0 {
			o.fullBudget = full
		}
		if narrowed > 0 {
			o.narrowBudget = narrowed
		}
	}
}

// WithNow injects a clock for testing.
func WithNow(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// New creates an orchestrator over the given coordinator and profile table.
func New(coordinator *fanout.Coordinator, profiles *profile.Table, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		coordinator:  coordinator,
		profiles:     profiles,
		fullBudget:   DefaultFullPassBudget,
		narrowBudget: DefaultNarrowedBudget,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes a full research pass. The profile snapshot is taken once at
// pass start, so learner updates landing mid-pass cannot mix weights.
func (o *Orchestrator) Run(ctx context.Context, req *model.ResearchRequest) (*model.ResearchRecord, error) {
	return o.pass(ctx, req, o.fullBudget)
}

// Regenerate re-researches only the named fields under the narrowed budget
// and returns their fresh results. Fields the narrowed pass could not
// resolve come back with a nil ChosenValue; the caller decides whether to
// keep or revert.
func (o *Orchestrator) Regenerate(ctx context.Context, req *model.ResearchRequest, fields []string) (map[string]*model.FieldResult, error) {
	narrowed, err := req.Manifest.Narrow(fields)
	if err != nil {
		return nil, eris.Wrap(err, "orchestrator: narrow manifest")
	}

	narrowReq := *req
	narrowReq.Manifest = narrowed

	record, err := o.pass(ctx, &narrowReq, o.narrowBudget)
	if err != nil {
		return nil, err
	}
	return record.Fields, nil
}

func (o *Orchestrator) pass(ctx context.Context, req *model.ResearchRequest, budget time.Duration) (*model.ResearchRecord, error) {
	snapshot := o.profiles.Snapshot()
	started := o.now().UTC()

	partial, err := o.coordinator.Research(ctx, req, budget)
	if err != nil {
		return nil, eris.Wrap(err, "orchestrator: fan-out")
	}

	record := &model.ResearchRecord{
		PassID:          uuid.New().String(),
		EntityKind:      req.EntityKind,
		Identity:        req.Identity,
		Fields:          aggregate.Merge(partial.Candidates, req.Manifest, snapshot),
		DegradedSources: partial.Degraded,
		ResearchedAt:    started,
	}

	if err := defaults.Apply(record, req.Manifest); err != nil {
		return nil, eris.Wrap(err, "orchestrator: apply defaults")
	}

	score.Score(record, req.Manifest, snapshot, started)

	zap.L().Info("orchestrator: pass complete",
		zap.String("pass_id", record.PassID),
		zap.String("entity", req.Identity.Name),
		zap.Int("fields", len(record.Fields)),
		zap.Int("degraded", len(record.DegradedSources)),
		zap.Float64("record_confidence", record.RecordConfidence),
		zap.Duration("elapsed", o.now().UTC().Sub(started)),
	)

	return record, nil
}
