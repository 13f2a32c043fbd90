// Package store persists sessions, research records, the correction log,
// and source profiles.
package store

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lodging-research/internal/model"
)

// ErrNotFound is returned when the requested entity does not exist.
var ErrNotFound = eris.New("store: not found")

// Store defines the persistence interface for the research orchestrator.
type Store interface {
	// Sessions
	CreateSession(ctx context.Context, s *model.Session) error
	GetSession(ctx context.Context, id string) (*model.Session, error)
	UpdateSession(ctx context.Context, s *model.Session) error

	// Research records (one per pass, regeneration passes included)
	SaveRecord(ctx context.Context, sessionID string, r *model.ResearchRecord) error
	GetRecord(ctx context.Context, passID string) (*model.ResearchRecord, error)

	// Correction log (append-only)
	AppendCorrection(ctx context.Context, e *model.CorrectionLogEntry) error
	ListCorrections(ctx context.Context, sessionID string) ([]model.CorrectionLogEntry, error)
	UnconsumedCorrections(ctx context.Context, limit int) ([]model.CorrectionLogEntry, error)
	MarkCorrectionsConsumed(ctx context.Context, ids []int64) error

	// Source profiles
	LoadProfiles(ctx context.Context) ([]model.SourceProfile, error)
	SaveProfile(ctx context.Context, p model.SourceProfile) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// sessionRow is the storable shape of a session. The field manifest is
// kept as its spec list because ResearchRequest deliberately excludes it
// from JSON marshaling.
type sessionRow struct {
	request  []byte
	manifest []byte
	record   []byte
	states   []byte
}

func encodeSession(s *model.Session) (sessionRow, error) {
	var row sessionRow
	var err error
	if row.request, err = json.Marshal(s.Request); err != nil {
		return row, eris.Wrap(err, "store: marshal request")
	}
	if row.manifest, err = json.Marshal(s.Request.Manifest.Specs); err != nil {
		return row, eris.Wrap(err, "store: marshal manifest")
	}
	if row.record, err = json.Marshal(s.Record); err != nil {
		return row, eris.Wrap(err, "store: marshal record")
	}
	if row.states, err = json.Marshal(s.FieldStates); err != nil {
		return row, eris.Wrap(err, "store: marshal field states")
	}
	return row, nil
}

func decodeSession(s *model.Session, row sessionRow) error {
	if err := json.Unmarshal(row.request, &s.Request); err != nil {
		return eris.Wrap(err, "store: unmarshal request")
	}

	var specs []model.FieldSpec
	if err := json.Unmarshal(row.manifest, &specs); err != nil {
		return eris.Wrap(err, "store: unmarshal manifest")
	}
	manifest, err := model.NewFieldManifest(specs)
	if err != nil {
		return eris.Wrap(err, "store: rebuild manifest")
	}
	s.Request.Manifest = manifest

	if err := json.Unmarshal(row.record, &s.Record); err != nil {
		return eris.Wrap(err, "store: unmarshal record")
	}
	if err := json.Unmarshal(row.states, &s.FieldStates); err != nil {
		return eris.Wrap(err, "store: unmarshal field states")
	}
	return nil
}

func marshalValue(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	return data, eris.Wrap(err, "store: marshal value")
}

func unmarshalValue(data []byte, out *any) error {
	if len(data) == 0 {
		return nil
	}
	return eris.Wrap(json.Unmarshal(data, out), "store: unmarshal value")
}
