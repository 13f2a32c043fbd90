package session

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lodging-research/internal/model"
	"github.com/sells-group/lodging-research/internal/store"
)

// memStore is an in-memory store.Store for session tests.
type memStore struct {
	sessions    map[string]*model.Session
	records     map[string]*model.ResearchRecord
	corrections []model.CorrectionLogEntry
	nextID      int64
}

func newMemStore() *memStore {
	return &memStore{
		sessions: map[string]*model.Session{},
		records:  map[string]*model.ResearchRecord{},
	}
}

func (m *memStore) CreateSession(_ context.Context, s *model.Session) error {
	m.sessions[s.ID] = s
	return nil
}

func (m *memStore) GetSession(_ context.Context, id string) (*model.Session, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, eris.Wrapf(store.ErrNotFound, "session %s", id)
	}
	return s, nil
}

func (m *memStore) UpdateSession(_ context.Context, s *model.Session) error {
	if _, ok := m.sessions[s.ID]; !ok {
		return eris.Wrapf(store.ErrNotFound, "session %s", s.ID)
	}
	m.sessions[s.ID] = s
	return nil
}

func (m *memStore) SaveRecord(_ context.Context, _ string, r *model.ResearchRecord) error {
	m.records[r.PassID] = r
	return nil
}

func (m *memStore) GetRecord(_ context.Context, passID string) (*model.ResearchRecord, error) {
	r, ok := m.records[passID]
	if !ok {
		return nil, eris.Wrapf(store.ErrNotFound, "record %s", passID)
	}
	return r, nil
}

func (m *memStore) AppendCorrection(_ context.Context, e *model.CorrectionLogEntry) error {
	m.nextID++
	e.ID = m.nextID
	m.corrections = append(m.corrections, *e)
	return nil
}

func (m *memStore) ListCorrections(_ context.Context, sessionID string) ([]model.CorrectionLogEntry, error) {
	var out []model.CorrectionLogEntry
	for _, e := range m.corrections {
		if e.SessionID == sessionID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStore) UnconsumedCorrections(_ context.Context, _ int) ([]model.CorrectionLogEntry, error) {
	var out []model.CorrectionLogEntry
	for _, e := range m.corrections {
		if !e.Consumed {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStore) MarkCorrectionsConsumed(_ context.Context, ids []int64) error {
	want := map[int64]bool{}
	for _, id := range ids {
		want[id] = true
	}
	for i := range m.corrections {
		if want[m.corrections[i].ID] {
			m.corrections[i].Consumed = true
		}
	}
	return nil
}

func (m *memStore) LoadProfiles(_ context.Context) ([]model.SourceProfile, error) { return nil, nil }
func (m *memStore) SaveProfile(_ context.Context, _ model.SourceProfile) error    { return nil }
func (m *memStore) Migrate(_ context.Context) error                               { return nil }
func (m *memStore) Close() error                                                  { return nil }

// fakeRegen scripts regeneration outcomes per field.
type fakeRegen struct {
	results map[string]*model.FieldResult
	err     error
	calls   [][]string
}

func (f *fakeRegen) Regenerate(_ context.Context, _ *model.ResearchRequest, fields []string) (map[string]*model.FieldResult, error) {
	f.calls = append(f.calls, fields)
	if f.err != nil {
		return nil, f.err
	}
	out := map[string]*model.FieldResult{}
	for _, key := range fields {
		if r, ok := f.results[key]; ok {
			out[key] = r
		} else {
			out[key] = &model.FieldResult{Field: key}
		}
	}
	return out, nil
}

func sessionManifest(t *testing.T) *model.FieldManifest {
	t.Helper()
	m, err := model.NewFieldManifest([]model.FieldSpec{
		{Key: "name", Kind: model.KindText, Requirement: model.RequirementRequired, Category: "identity"},
		{Key: "phone", Kind: model.KindPhone, Requirement: model.RequirementRequired, Category: "contact"},
		{Key: "email", Kind: model.KindEmail, Requirement: model.RequirementOptional, Category: "contact"},
	})
	require.NoError(t, err)
	return m
}

func startSession(t *testing.T, mgr *Manager) *model.Session {
	t.Helper()
	req, err := model.NewResearchRequest(model.EntityLodging, model.Identity{
		Name: "Pine Lodge", Locality: "Bend", Region: "OR",
	}, sessionManifest(t))
	require.NoError(t, err)

	observed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	record := &model.ResearchRecord{
		PassID:     "pass-1",
		EntityKind: model.EntityLodging,
		Identity:   req.Identity,
		Fields: map[string]*model.FieldResult{
			"name":  {Field: "name", ChosenValue: "Pine Lodge", ChosenSource: "directory", FinalConfidence: 90, ObservedAt: &observed},
			"phone": {Field: "phone", ChosenValue: "541-555-0199", ChosenSource: "perplexity", FinalConfidence: 60, ObservedAt: &observed},
			"email": {Field: "email"},
		},
		RecordConfidence: 75,
		ResearchedAt:     observed,
	}

	sess, err := mgr.Start(context.Background(), req, record)
	require.NoError(t, err)
	return sess
}

func TestStartPresentsAllFieldsUnverified(t *testing.T) {
	st := newMemStore()
	mgr := NewManager(st, &fakeRegen{})
	sess := startSession(t, mgr)

	assert.Equal(t, model.SessionPresented, sess.State)
	assert.False(t, sess.Finalized)
	for _, key := range []string{"name", "phone", "email"} {
		assert.Equal(t, model.FieldUnverified, sess.FieldStateOf(key))
	}
	assert.Contains(t, st.records, "pass-1")
}

func TestApproveIsIdempotent(t *testing.T) {
	mgr := NewManager(newMemStore(), &fakeRegen{})
	sess := startSession(t, mgr)
	ctx := context.Background()

	approve := model.ValidationAction{Kind: model.ActionApprove, Field: "name"}
	updated, err := mgr.Apply(ctx, sess.ID, approve)
	require.NoError(t, err)
	assert.Equal(t, model.FieldApproved, updated.FieldStateOf("name"))
	assert.Equal(t, model.SessionPartiallyReviewed, updated.State)

	again, err := mgr.Apply(ctx, sess.ID, approve)
	require.NoError(t, err)
	assert.Equal(t, model.FieldApproved, again.FieldStateOf("name"))
	assert.Equal(t, model.SessionPartiallyReviewed, again.State)
}

func TestEditRoundTrip(t *testing.T) {
	st := newMemStore()
	mgr := NewManager(st, &fakeRegen{})
	sess := startSession(t, mgr)
	ctx := context.Background()

	updated, err := mgr.Apply(ctx, sess.ID, model.ValidationAction{
		Kind: model.ActionEdit, Field: "phone", NewValue: "541-555-0100",
	})
	require.NoError(t, err)

	res := updated.Record.Fields["phone"]
	assert.Equal(t, "541-555-0100", res.ChosenValue)
	assert.Equal(t, model.SourceUser, res.ChosenSource)
	assert.True(t, res.UserEdited)
	assert.True(t, res.Verified)
	assert.InDelta(t, 100, res.FinalConfidence, 1e-9)
	assert.Equal(t, model.FieldEdited, updated.FieldStateOf("phone"))

	// Exactly one correction entry crediting the superseded source.
	entries, err := st.ListCorrections(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "perplexity", entries[0].SourceID)
	assert.Equal(t, "541-555-0199", entries[0].PreviousValue)
	assert.Equal(t, "541-555-0100", entries[0].CorrectedValue)
	assert.Equal(t, "Bend", entries[0].Context.Locality)
}

func TestCompletionGating(t *testing.T) {
	mgr := NewManager(newMemStore(), &fakeRegen{})
	sess := startSession(t, mgr)
	ctx := context.Background()

	updated, err := mgr.Apply(ctx, sess.ID, model.ValidationAction{Kind: model.ActionApprove, Field: "name"})
	require.NoError(t, err)
	assert.Equal(t, model.SessionPartiallyReviewed, updated.State)
	assert.False(t, updated.Finalized)

	// Second required field verified; the optional one does not gate.
	updated, err = mgr.Apply(ctx, sess.ID, model.ValidationAction{
		Kind: model.ActionEdit, Field: "phone", NewValue: "541-555-0100",
	})
	require.NoError(t, err)
	assert.Equal(t, model.SessionComplete, updated.State)
	assert.True(t, updated.Finalized)
}

func TestFinalizedSessionRejectsActions(t *testing.T) {
	mgr := NewManager(newMemStore(), &fakeRegen{})
	sess := startSession(t, mgr)
	ctx := context.Background()

	_, err := mgr.Apply(ctx, sess.ID, model.ValidationAction{Kind: model.ActionApprove, Field: "name"})
	require.NoError(t, err)
	_, err = mgr.Apply(ctx, sess.ID, model.ValidationAction{Kind: model.ActionApprove, Field: "phone"})
	require.NoError(t, err)

	_, err = mgr.Apply(ctx, sess.ID, model.ValidationAction{
		Kind: model.ActionEdit, Field: "email", NewValue: "stay@pinelodge.example",
	})
	assert.ErrorIs(t, err, ErrSessionFinalized)
}

func TestApplyUnknownFieldAndSession(t *testing.T) {
	mgr := NewManager(newMemStore(), &fakeRegen{})
	sess := startSession(t, mgr)
	ctx := context.Background()

	_, err := mgr.Apply(ctx, sess.ID, model.ValidationAction{Kind: model.ActionApprove, Field: "wine_list"})
	assert.ErrorIs(t, err, ErrUnknownField)

	_, err = mgr.Apply(ctx, "no-such-session", model.ValidationAction{Kind: model.ActionApprove, Field: "name"})
	assert.ErrorIs(t, err, ErrUnknownSession)
}

func TestRegenerateReplacesFieldAndResetsState(t *testing.T) {
	observed := time.Now().UTC()
	regen := &fakeRegen{results: map[string]*model.FieldResult{
		"phone": {
			Field: "phone", ChosenValue: "541-555-0100",
			ChosenSource: "directory", FinalConfidence: 88, ObservedAt: &observed,
		},
	}}
	mgr := NewManager(newMemStore(), regen)
	sess := startSession(t, mgr)
	ctx := context.Background()

	_, err := mgr.Apply(ctx, sess.ID, model.ValidationAction{Kind: model.ActionApprove, Field: "phone"})
	require.NoError(t, err)

	updated, err := mgr.Apply(ctx, sess.ID, model.ValidationAction{Kind: model.ActionRegenerate, Field: "phone"})
	require.NoError(t, err)

	res := updated.Record.Fields["phone"]
	assert.Equal(t, "541-555-0100", res.ChosenValue)
	assert.Equal(t, "directory", res.ChosenSource)
	assert.False(t, res.RegenFailed)
	// A regenerated value needs review again.
	assert.Equal(t, model.FieldUnverified, updated.FieldStateOf("phone"))

	// Untouched fields keep their results.
	assert.Equal(t, "Pine Lodge", updated.Record.Fields["name"].ChosenValue)
	require.Len(t, regen.calls, 1)
	assert.Equal(t, []string{"phone"}, regen.calls[0])
}

func TestRegenerateFailureKeepsPriorResult(t *testing.T) {
	regen := &fakeRegen{err: eris.New("all sources timed out")}
	mgr := NewManager(newMemStore(), regen)
	sess := startSession(t, mgr)

	updated, err := mgr.Apply(context.Background(), sess.ID, model.ValidationAction{
		Kind: model.ActionRegenerate, Field: "phone",
	})
	require.NoError(t, err)

	res := updated.Record.Fields["phone"]
	assert.Equal(t, "541-555-0199", res.ChosenValue)
	assert.Equal(t, "perplexity", res.ChosenSource)
	assert.True(t, res.RegenFailed)
}

func TestRegenerateUnresolvedFieldKeepsPriorResult(t *testing.T) {
	// The narrowed pass ran but produced nothing for the field.
	regen := &fakeRegen{}
	mgr := NewManager(newMemStore(), regen)
	sess := startSession(t, mgr)

	updated, err := mgr.Apply(context.Background(), sess.ID, model.ValidationAction{
		Kind: model.ActionRegenerate, Field: "phone",
	})
	require.NoError(t, err)

	res := updated.Record.Fields["phone"]
	assert.Equal(t, "541-555-0199", res.ChosenValue)
	assert.True(t, res.RegenFailed)
}

func TestRegenerateByCategory(t *testing.T) {
	regen := &fakeRegen{results: map[string]*model.FieldResult{
		"phone": {Field: "phone", ChosenValue: "541-555-0100", ChosenSource: "directory"},
		"email": {Field: "email", ChosenValue: "stay@pinelodge.example", ChosenSource: "webpage"},
	}}
	mgr := NewManager(newMemStore(), regen)
	sess := startSession(t, mgr)

	updated, err := mgr.Apply(context.Background(), sess.ID, model.ValidationAction{
		Kind: model.ActionRegenerate, Category: "contact",
	})
	require.NoError(t, err)

	assert.Equal(t, "541-555-0100", updated.Record.Fields["phone"].ChosenValue)
	assert.Equal(t, "stay@pinelodge.example", updated.Record.Fields["email"].ChosenValue)
	require.Len(t, regen.calls, 1)
	assert.ElementsMatch(t, []string{"phone", "email"}, regen.calls[0])

	_, err = mgr.Apply(context.Background(), sess.ID, model.ValidationAction{
		Kind: model.ActionRegenerate, Category: "amenities",
	})
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestTotalFailureSessionStillUsable(t *testing.T) {
	// A record where research produced nothing is still reviewable: the
	// reviewer can hand-fill required fields and complete the session.
	mgr := NewManager(newMemStore(), &fakeRegen{})
	req, err := model.NewResearchRequest(model.EntityLodging, model.Identity{
		Name: "Ghost Inn", Locality: "Nowhere",
	}, sessionManifest(t))
	require.NoError(t, err)

	record := &model.ResearchRecord{
		PassID:   "pass-empty",
		Identity: req.Identity,
		Fields: map[string]*model.FieldResult{
			"name":  {Field: "name"},
			"phone": {Field: "phone"},
			"email": {Field: "email"},
		},
		DegradedSources: []model.DegradedSource{
			{SourceID: "directory", Reason: "timeout"},
			{SourceID: "perplexity", Reason: "upstream 503"},
		},
	}

	sess, err := mgr.Start(context.Background(), req, record)
	require.NoError(t, err)

	_, err = mgr.Apply(context.Background(), sess.ID, model.ValidationAction{
		Kind: model.ActionEdit, Field: "name", NewValue: "Ghost Inn",
	})
	require.NoError(t, err)
	updated, err := mgr.Apply(context.Background(), sess.ID, model.ValidationAction{
		Kind: model.ActionEdit, Field: "phone", NewValue: "541-555-0123",
	})
	require.NoError(t, err)

	assert.Equal(t, model.SessionComplete, updated.State)
	assert.True(t, updated.Finalized)
}

func TestSkipLeavesFieldUnverified(t *testing.T) {
	mgr := NewManager(newMemStore(), &fakeRegen{})
	sess := startSession(t, mgr)

	updated, err := mgr.Apply(context.Background(), sess.ID, model.ValidationAction{
		Kind: model.ActionSkip, Field: "email",
	})
	require.NoError(t, err)
	assert.Equal(t, model.FieldUnverified, updated.FieldStateOf("email"))
	assert.Equal(t, model.SessionPresented, updated.State)
}

func TestSkipUnknownFieldRejected(t *testing.T) {
	mgr := NewManager(newMemStore(), &fakeRegen{})
	sess := startSession(t, mgr)

	_, err := mgr.Apply(context.Background(), sess.ID, model.ValidationAction{
		Kind: model.ActionSkip, Field: "wine_list",
	})
	assert.ErrorIs(t, err, ErrUnknownField)

	// An untargeted skip stays valid.
	_, err = mgr.Apply(context.Background(), sess.ID, model.ValidationAction{Kind: model.ActionSkip})
	assert.NoError(t, err)
}
