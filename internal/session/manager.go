// Package session manages the human validation workflow around research
// records: presenting results, applying reviewer actions, and finalizing.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lodging-research/internal/model"
	"github.com/sells-group/lodging-research/internal/store"
)

var (
	// ErrSessionFinalized rejects actions against a completed session.
	ErrSessionFinalized = eris.New("session: session is finalized")
	// ErrUnknownSession is returned for session IDs that do not exist.
	ErrUnknownSession = eris.New("session: unknown session")
	// ErrUnknownField rejects actions naming a field outside the manifest.
	ErrUnknownField = eris.New("session: unknown field")
)

// Regenerator re-researches a subset of fields. Satisfied by the
// orchestrator.
type Regenerator interface {
	Regenerate(ctx context.Context, req *model.ResearchRequest, fields []string) (map[string]*model.FieldResult, error)
}

// Manager drives validation sessions against the store.
type Manager struct {
	store store.Store
	regen Regenerator
	now   func() time.Time
}

// NewManager creates a session manager.
func NewManager(st store.Store, regen Regenerator) *Manager {
	return &Manager{store: st, regen: regen, now: time.Now}
}

// WithNow injects a clock for testing.
func (m *Manager) WithNow(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Start opens a validation session over a freshly researched record. Every
// manifest field begins unverified.
func (m *Manager) Start(ctx context.Context, req *model.ResearchRequest, record *model.ResearchRecord) (*model.Session, error) {
	now := m.now().UTC()

	states := make(map[string]model.FieldState, len(req.Manifest.Specs))
	for _, key := range req.Manifest.Keys() {
		states[key] = model.FieldUnverified
	}

	sess := &model.Session{
		ID:          uuid.New().String(),
		Request:     req,
		Record:      record,
		FieldStates: states,
		State:       model.SessionPresented,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := m.store.SaveRecord(ctx, sess.ID, record); err != nil {
		return nil, err
	}
	if err := m.store.CreateSession(ctx, sess); err != nil {
		return nil, err
	}

	zap.L().Info("session: started",
		zap.String("session_id", sess.ID),
		zap.String("entity", req.Identity.Name),
		zap.Float64("record_confidence", record.RecordConfidence),
	)
	return sess, nil
}

// Get loads a session by ID.
func (m *Manager) Get(ctx context.Context, id string) (*model.Session, error) {
	sess, err := m.store.GetSession(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, eris.Wrapf(ErrUnknownSession, "%s", id)
	}
	return sess, err
}

// Apply executes one reviewer action and persists the updated session.
func (m *Manager) Apply(ctx context.Context, sessionID string, action model.ValidationAction) (*model.Session, error) {
	if err := action.Validate(); err != nil {
		return nil, err
	}

	sess, err := m.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Finalized {
		return nil, eris.Wrapf(ErrSessionFinalized, "%s", sessionID)
	}

	switch action.Kind {
	case model.ActionApprove:
		err = m.approve(sess, action.Field)
	case model.ActionEdit:
		err = m.edit(ctx, sess, action.Field, action.NewValue)
	case model.ActionRegenerate:
		err = m.regenerate(ctx, sess, action)
	case model.ActionSkip:
		// Skip records review attention without verifying anything, but a
		// mistyped field name still surfaces to the reviewer.
		if action.Field != "" && sess.Request.Manifest.ByKey(action.Field) == nil {
			err = eris.Wrapf(ErrUnknownField, "%s", action.Field)
		}
	}
	if err != nil {
		return nil, err
	}

	m.advance(sess)
	sess.UpdatedAt = m.now().UTC()

	if err := m.store.UpdateSession(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// approve marks a field verified. Approving an already approved field is a
// no-op, not an error.
func (m *Manager) approve(sess *model.Session, field string) error {
	res, err := m.fieldResult(sess, field)
	if err != nil {
		return err
	}
	res.Verified = true
	if sess.FieldStateOf(field) != model.FieldEdited {
		sess.FieldStates[field] = model.FieldApproved
	}
	return nil
}

// edit replaces a field's value with the reviewer's and appends exactly
// one correction entry crediting the superseded source.
func (m *Manager) edit(ctx context.Context, sess *model.Session, field string, newValue any) error {
	res, err := m.fieldResult(sess, field)
	if err != nil {
		return err
	}

	entry := &model.CorrectionLogEntry{
		SessionID:      sess.ID,
		Field:          field,
		SourceID:       res.ChosenSource,
		PreviousValue:  res.ChosenValue,
		CorrectedValue: newValue,
		Context: model.CorrectionContext{
			EntityKind: sess.Request.EntityKind,
			Locality:   sess.Request.Identity.Locality,
			Region:     sess.Request.Identity.Region,
		},
		CreatedAt: m.now().UTC(),
	}
	if err := m.store.AppendCorrection(ctx, entry); err != nil {
		return err
	}

	res.ChosenValue = newValue
	res.ChosenSource = model.SourceUser
	res.FinalConfidence = 100
	res.Verified = true
	res.UserEdited = true
	res.RegenFailed = false
	sess.FieldStates[field] = model.FieldEdited
	return nil
}

// regenerate re-researches a field or category. Fields the narrowed pass
// resolved are replaced and reset to unverified; fields it could not
// resolve keep their prior result annotated with RegenFailed.
func (m *Manager) regenerate(ctx context.Context, sess *model.Session, action model.ValidationAction) error {
	targets, err := m.regenTargets(sess, action)
	if err != nil {
		return err
	}

	fresh, err := m.regen.Regenerate(ctx, sess.Request, targets)
	if err != nil && !errors.Is(err, model.ErrManifestViolation) {
		// Whole-pass failure: keep every prior result, annotated.
		zap.L().Warn("session: regeneration pass failed",
			zap.String("session_id", sess.ID),
			zap.Error(err),
		)
		for _, key := range targets {
			if res := sess.Record.Fields[key]; res != nil {
				res.RegenFailed = true
			}
		}
		return nil
	}
	if err != nil {
		return err
	}

	for _, key := range targets {
		next := fresh[key]
		prior := sess.Record.Fields[key]
		if next == nil || next.ChosenValue == nil {
			if prior != nil {
				prior.RegenFailed = true
			}
			continue
		}
		sess.Record.Fields[key] = next
		sess.FieldStates[key] = model.FieldUnverified
	}
	return nil
}

func (m *Manager) regenTargets(sess *model.Session, action model.ValidationAction) ([]string, error) {
	if action.Field != "" {
		if sess.Request.Manifest.ByKey(action.Field) == nil {
			return nil, eris.Wrapf(ErrUnknownField, "%s", action.Field)
		}
		return []string{action.Field}, nil
	}

	specs := sess.Request.Manifest.ByCategory(action.Category)
	if len(specs) == 0 {
		return nil, eris.Wrapf(ErrUnknownField, "category %s", action.Category)
	}
	keys := make([]string, len(specs))
	for i, s := range specs {
		keys[i] = s.Key
	}
	return keys, nil
}

func (m *Manager) fieldResult(sess *model.Session, field string) (*model.FieldResult, error) {
	if sess.Request.Manifest.ByKey(field) == nil {
		return nil, eris.Wrapf(ErrUnknownField, "%s", field)
	}
	res := sess.Record.Fields[field]
	if res == nil {
		res = &model.FieldResult{Field: field}
		sess.Record.Fields[field] = res
	}
	return res, nil
}

// advance recomputes the session lifecycle state. Completing finalizes the
// record; no further actions are accepted.
func (m *Manager) advance(sess *model.Session) {
	switch {
	case sess.RequiredVerified():
		sess.State = model.SessionComplete
		sess.Finalized = true
	case sess.AnyVerified():
		sess.State = model.SessionPartiallyReviewed
	default:
		sess.State = model.SessionPresented
	}
}
