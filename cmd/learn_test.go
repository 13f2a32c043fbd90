package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lodging-research/internal/config"
	"github.com/sells-group/lodging-research/internal/model"
	"github.com/sells-group/lodging-research/internal/profile"
	"github.com/sells-group/lodging-research/internal/store"
)

func TestLearnBatch(t *testing.T) {
	ctx := context.Background()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "learn.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(ctx))
	t.Cleanup(func() { st.Close() })

	prev := cfg
	cfg = &config.Config{Learning: config.LearningConfig{PenaltyStep: 0.02, BatchSize: 100}}
	t.Cleanup(func() { cfg = prev })

	table := profile.NewTable(profile.DefaultProfiles())
	env := &appEnv{
		Store:    st,
		Profiles: table,
		Learner:  profile.NewLearner(table, cfg.Learning.PenaltyStep),
	}

	require.NoError(t, st.AppendCorrection(ctx, &model.CorrectionLogEntry{
		SessionID: "sess-1", Field: "phone", SourceID: "perplexity",
		PreviousValue: "541-555-0100", CorrectedValue: "541-555-0199",
		CreatedAt: time.Now().UTC(),
	}))

	applied, err := learnBatch(ctx, env)
	require.NoError(t, err)
	assert.Equal(t, 1, applied)

	p, ok := table.Get("perplexity")
	require.True(t, ok)
	assert.InDelta(t, 0.58, p.ReliabilityWeight, 1e-9)

	// The decremented profile was persisted.
	saved, err := st.LoadProfiles(ctx)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, "perplexity", saved[0].SourceID)
	assert.InDelta(t, 0.58, saved[0].ReliabilityWeight, 1e-9)

	// The batch was consumed; a second run is a no-op.
	applied, err = learnBatch(ctx, env)
	require.NoError(t, err)
	assert.Equal(t, 0, applied)
}
