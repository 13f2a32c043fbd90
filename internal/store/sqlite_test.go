package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lodging-research/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func testSession(t *testing.T) *model.Session {
	t.Helper()
	manifest, err := model.NewFieldManifest([]model.FieldSpec{
		{Key: "name", Kind: model.KindText, Requirement: model.RequirementRequired},
		{Key: "phone", Kind: model.KindPhone, Requirement: model.RequirementOptional},
	})
	require.NoError(t, err)

	req, err := model.NewResearchRequest(model.EntityLodging, model.Identity{
		Name: "Pine Lodge", Locality: "Bend", Region: "OR",
	}, manifest)
	require.NoError(t, err)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &model.Session{
		ID:      "sess-1",
		Request: req,
		Record: &model.ResearchRecord{
			PassID:     "pass-1",
			EntityKind: model.EntityLodging,
			Identity:   req.Identity,
			Fields: map[string]*model.FieldResult{
				"name": {Field: "name", ChosenValue: "Pine Lodge", ChosenSource: "directory", FinalConfidence: 90},
			},
			RecordConfidence: 90,
			ResearchedAt:     now,
		},
		FieldStates: map[string]model.FieldState{"name": model.FieldUnverified},
		State:       model.SessionPresented,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestSQLiteSessionRoundTrip(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	sess := testSession(t)

	require.NoError(t, s.CreateSession(ctx, sess))

	got, err := s.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)
	assert.Equal(t, model.SessionPresented, got.State)
	assert.Equal(t, "Pine Lodge", got.Record.Fields["name"].ChosenValue)
	assert.Equal(t, sess.Request.Identity, got.Request.Identity)

	// The manifest survives the round trip via its spec list.
	require.NotNil(t, got.Request.Manifest)
	assert.Equal(t, []string{"name", "phone"}, got.Request.Manifest.Keys())
	require.Len(t, got.Request.Manifest.Required(), 1)
}

func TestSQLiteUpdateSession(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	sess := testSession(t)
	require.NoError(t, s.CreateSession(ctx, sess))

	sess.State = model.SessionComplete
	sess.Finalized = true
	sess.FieldStates["name"] = model.FieldApproved
	sess.UpdatedAt = sess.UpdatedAt.Add(time.Minute)
	require.NoError(t, s.UpdateSession(ctx, sess))

	got, err := s.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, model.SessionComplete, got.State)
	assert.True(t, got.Finalized)
	assert.Equal(t, model.FieldApproved, got.FieldStates["name"])
}

func TestSQLiteSessionNotFound(t *testing.T) {
	s := newTestSQLite(t)

	_, err := s.GetSession(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	err = s.UpdateSession(context.Background(), testSession(t))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteRecordRoundTrip(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	sess := testSession(t)

	require.NoError(t, s.SaveRecord(ctx, sess.ID, sess.Record))

	got, err := s.GetRecord(ctx, "pass-1")
	require.NoError(t, err)
	assert.Equal(t, "pass-1", got.PassID)
	assert.InDelta(t, 90, got.RecordConfidence, 1e-9)

	_, err = s.GetRecord(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteCorrectionLog(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	entry := &model.CorrectionLogEntry{
		SessionID:      "sess-1",
		Field:          "phone",
		SourceID:       "perplexity",
		PreviousValue:  "541-555-0199",
		CorrectedValue: "541-555-0100",
		Context: model.CorrectionContext{
			EntityKind: model.EntityLodging, Locality: "Bend", Region: "OR",
		},
		CreatedAt: now,
	}
	require.NoError(t, s.AppendCorrection(ctx, entry))
	assert.NotZero(t, entry.ID)

	listed, err := s.ListCorrections(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "perplexity", listed[0].SourceID)
	assert.Equal(t, "541-555-0100", listed[0].CorrectedValue)
	assert.Equal(t, "Bend", listed[0].Context.Locality)
	assert.False(t, listed[0].Consumed)

	unconsumed, err := s.UnconsumedCorrections(ctx, 10)
	require.NoError(t, err)
	require.Len(t, unconsumed, 1)

	require.NoError(t, s.MarkCorrectionsConsumed(ctx, []int64{entry.ID}))

	unconsumed, err = s.UnconsumedCorrections(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, unconsumed)

	// Consumed entries stay in the log.
	listed, err = s.ListCorrections(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.True(t, listed[0].Consumed)
}

func TestSQLiteProfiles(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	p := model.SourceProfile{
		SourceID: "directory", PriorityRank: 40,
		ReliabilityWeight: 0.9, LatencyClass: model.LatencyFast, Version: 1,
	}
	require.NoError(t, s.SaveProfile(ctx, p))

	p.ReliabilityWeight = 0.88
	p.Version = 2
	require.NoError(t, s.SaveProfile(ctx, p))

	profiles, err := s.LoadProfiles(ctx)
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.InDelta(t, 0.88, profiles[0].ReliabilityWeight, 1e-9)
	assert.Equal(t, 2, profiles[0].Version)
}
