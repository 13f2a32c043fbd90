package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lodging-research/internal/model"
)

var learnCmd = &cobra.Command{
	Use:   "learn",
	Short: "Fold unconsumed corrections into source reliability profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		applied, err := learnBatch(ctx, env)
		if err != nil {
			return err
		}
		zap.L().Info("learning batch complete", zap.Int("corrections", applied))
		return nil
	},
}

// learnBatch drains one batch of unconsumed corrections, decrements the
// reliability of the sources they credit, and persists the updated
// profiles before marking the corrections consumed.
func learnBatch(ctx context.Context, env *appEnv) (int, error) {
	entries, err := env.Store.UnconsumedCorrections(ctx, cfg.Learning.BatchSize)
	if err != nil {
		return 0, eris.Wrap(err, "load corrections")
	}
	if len(entries) == 0 {
		return 0, nil
	}

	env.Learner.Apply(entries)

	ids := make([]int64, 0, len(entries))
	sources := make(map[string]bool)
	for _, e := range entries {
		ids = append(ids, e.ID)
		if e.SourceID != "" && e.SourceID != model.SourceDefault && e.SourceID != model.SourceUser {
			sources[e.SourceID] = true
		}
	}

	for sourceID := range sources {
		p, ok := env.Profiles.Get(sourceID)
		if !ok {
			continue
		}
		if err := env.Store.SaveProfile(ctx, p); err != nil {
			return 0, eris.Wrapf(err, "save profile %s", sourceID)
		}
	}

	if err := env.Store.MarkCorrectionsConsumed(ctx, ids); err != nil {
		return 0, eris.Wrap(err, "mark corrections consumed")
	}
	return len(entries), nil
}

// learnLoop runs learning batches on the configured interval until the
// context is canceled.
func learnLoop(ctx context.Context, env *appEnv) {
	interval := time.Duration(cfg.Learning.IntervalSecs) * time.Second
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			applied, err := learnBatch(ctx, env)
			if err != nil {
				zap.L().Warn("learning batch failed", zap.Error(err))
				continue
			}
			if applied > 0 {
				zap.L().Info("learning batch complete", zap.Int("corrections", applied))
			}
		}
	}
}

func init() {
	rootCmd.AddCommand(learnCmd)
}
