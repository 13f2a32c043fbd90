// Package fanout runs every applicable source adapter in parallel under a
// single deadline budget and collects whatever completed in time.
package fanout

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/lodging-research/internal/model"
	"github.com/sells-group/lodging-research/internal/resilience"
	"github.com/sells-group/lodging-research/internal/source"
)

// PartialResults is what a research pass produced before merging. Missing
// sources appear in Degraded rather than failing the pass.
type PartialResults struct {
	// Candidates holds all collected candidates grouped by field key.
	Candidates map[string][]model.FieldCandidate
	// Degraded lists sources that were skipped, failed, or timed out.
	Degraded []model.DegradedSource
}

// Coordinator fans research requests out across registered adapters.
type Coordinator struct {
	registry *source.Registry
	breakers *resilience.SourceBreakers
}

// NewCoordinator creates a fan-out coordinator. breakers may be nil to
// disable circuit breaking.
func NewCoordinator(registry *source.Registry, breakers *resilience.SourceBreakers) *Coordinator {
	return &Coordinator{registry: registry, breakers: breakers}
}

type adapterResult struct {
	sourceID   string
	candidates []model.FieldCandidate
	err        error
}

// Research queries every adapter serving the request's entity kind
// concurrently, bounded by budget. Individual adapter failures degrade the
// result instead of aborting it; a pass where every source failed returns
// an empty candidate map and a full degraded list with a nil error.
func (c *Coordinator) Research(ctx context.Context, req *model.ResearchRequest, budget time.Duration) (*PartialResults, error) {
	out := &PartialResults{Candidates: make(map[string][]model.FieldCandidate)}

	adapters := c.registry.Applicable(req.EntityKind)
	if len(adapters) == 0 {
		return out, nil
	}

	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	// Buffered so late goroutines can finish their send after the
	// collector has stopped reading. Their results are simply dropped.
	results := make(chan adapterResult, len(adapters))

	g, gctx := errgroup.WithContext(ctx)
	pending := make(map[string]bool, len(adapters))
	for _, a := range adapters {
		if c.breakers != nil && c.breakers.Get(a.ID()).Allow() != nil {
			out.Degraded = append(out.Degraded, model.DegradedSource{
				SourceID: a.ID(),
				Reason:   "circuit open",
			})
			continue
		}

		pending[a.ID()] = true
		g.Go(func() error {
			candidates, err := a.Fetch(gctx, req.Identity)
			if c.breakers != nil && !errors.Is(err, source.ErrNotApplicable) {
				c.breakers.Get(a.ID()).Record(err)
			}
			results <- adapterResult{sourceID: a.ID(), candidates: candidates, err: err}
			return nil
		})
	}

	launched := len(pending)
	collected := 0
	for collected < launched {
		select {
		case res := <-results:
			collected++
			delete(pending, res.sourceID)
			c.record(out, req, res)
		case <-ctx.Done():
			// Sources still in flight at the deadline are degraded.
			for id := range pending {
				out.Degraded = append(out.Degraded, model.DegradedSource{
					SourceID: id,
					Reason:   "deadline exceeded",
				})
			}
			collected = launched
		}
	}

	cancel()
	_ = g.Wait()

	sort.Slice(out.Degraded, func(i, j int) bool {
		return out.Degraded[i].SourceID < out.Degraded[j].SourceID
	})
	for field := range out.Candidates {
		cands := out.Candidates[field]
		sort.Slice(cands, func(i, j int) bool {
			return cands[i].SourceID < cands[j].SourceID
		})
	}

	zap.L().Debug("fanout: pass collected",
		zap.String("entity", req.Identity.Name),
		zap.Int("adapters", len(adapters)),
		zap.Int("fields", len(out.Candidates)),
		zap.Int("degraded", len(out.Degraded)),
	)

	return out, nil
}

// record files one adapter's outcome into the partial results. Candidates
// for fields outside the manifest are dropped, which is what narrows a
// regeneration pass to its requested fields.
func (c *Coordinator) record(out *PartialResults, req *model.ResearchRequest, res adapterResult) {
	switch {
	case errors.Is(res.err, source.ErrNotApplicable):
		// Adapter cannot serve this identity. Not a degradation.
	case errors.Is(res.err, context.DeadlineExceeded):
		out.Degraded = append(out.Degraded, model.DegradedSource{
			SourceID: res.sourceID,
			Reason:   "deadline exceeded",
		})
	case res.err != nil:
		zap.L().Warn("fanout: source failed",
			zap.String("source", res.sourceID),
			zap.Error(res.err),
		)
		out.Degraded = append(out.Degraded, model.DegradedSource{
			SourceID: res.sourceID,
			Reason:   res.err.Error(),
		})
	default:
		for _, cand := range res.candidates {
			if req.Manifest.ByKey(cand.Field) == nil {
				continue
			}
			out.Candidates[cand.Field] = append(out.Candidates[cand.Field], cand)
		}
	}
}
