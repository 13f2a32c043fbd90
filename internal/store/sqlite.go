package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/lodging-research/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS sessions (
	id           TEXT PRIMARY KEY,
	request      TEXT NOT NULL,
	manifest     TEXT NOT NULL,
	record       TEXT NOT NULL,
	field_states TEXT NOT NULL,
	state        TEXT NOT NULL DEFAULT 'presented',
	finalized    INTEGER NOT NULL DEFAULT 0,
	created_at   DATETIME NOT NULL,
	updated_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS records (
	pass_id    TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	record     TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS corrections (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id      TEXT NOT NULL,
	field           TEXT NOT NULL,
	source_id       TEXT NOT NULL,
	previous_value  TEXT,
	corrected_value TEXT,
	context         TEXT NOT NULL,
	consumed        INTEGER NOT NULL DEFAULT 0,
	created_at      DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS source_profiles (
	source_id          TEXT PRIMARY KEY,
	priority_rank      INTEGER NOT NULL,
	reliability_weight REAL NOT NULL,
	latency_class      TEXT NOT NULL,
	version            INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_state ON sessions(state);
CREATE INDEX IF NOT EXISTS idx_records_session_id ON records(session_id);
CREATE INDEX IF NOT EXISTS idx_corrections_session_id ON corrections(session_id);
CREATE INDEX IF NOT EXISTS idx_corrections_consumed ON corrections(consumed);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateSession(ctx context.Context, sess *model.Session) error {
	row, err := encodeSession(sess)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, request, manifest, record, field_states, state, finalized, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, string(row.request), string(row.manifest), string(row.record), string(row.states),
		string(sess.State), sess.Finalized, sess.CreatedAt, sess.UpdatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert session %s", sess.ID)
}

func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*model.Session, error) {
	dbRow := s.db.QueryRowContext(ctx,
		`SELECT id, request, manifest, record, field_states, state, finalized, created_at, updated_at
		 FROM sessions WHERE id = ?`, id)

	var sess model.Session
	var row sessionRow
	var request, manifest, record, states, state string
	err := dbRow.Scan(&sess.ID, &request, &manifest, &record, &states, &state, &sess.Finalized, &sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "session %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get session %s", id)
	}

	row.request, row.manifest, row.record, row.states = []byte(request), []byte(manifest), []byte(record), []byte(states)
	if err := decodeSession(&sess, row); err != nil {
		return nil, err
	}
	sess.State = model.SessionState(state)
	return &sess, nil
}

func (s *SQLiteStore) UpdateSession(ctx context.Context, sess *model.Session) error {
	row, err := encodeSession(sess)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET record = ?, field_states = ?, state = ?, finalized = ?, updated_at = ? WHERE id = ?`,
		string(row.record), string(row.states), string(sess.State), sess.Finalized, sess.UpdatedAt, sess.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update session %s", sess.ID)
	}
	return checkRowsAffected(res, "session", sess.ID)
}

func (s *SQLiteStore) SaveRecord(ctx context.Context, sessionID string, r *model.ResearchRecord) error {
	recordJSON, err := json.Marshal(r)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal record")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO records (pass_id, session_id, record, created_at) VALUES (?, ?, ?, ?)`,
		r.PassID, sessionID, string(recordJSON), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: insert record %s", r.PassID)
}

func (s *SQLiteStore) GetRecord(ctx context.Context, passID string) (*model.ResearchRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT record FROM records WHERE pass_id = ?`, passID)

	var recordJSON string
	err := row.Scan(&recordJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "record %s", passID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get record %s", passID)
	}

	var r model.ResearchRecord
	if err := json.Unmarshal([]byte(recordJSON), &r); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal record")
	}
	return &r, nil
}

func (s *SQLiteStore) AppendCorrection(ctx context.Context, e *model.CorrectionLogEntry) error {
	prevJSON, err := marshalValue(e.PreviousValue)
	if err != nil {
		return err
	}
	corrJSON, err := marshalValue(e.CorrectedValue)
	if err != nil {
		return err
	}
	ctxJSON, err := json.Marshal(e.Context)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal correction context")
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO corrections (session_id, field, source_id, previous_value, corrected_value, context, consumed, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, 0, ?)`,
		e.SessionID, e.Field, e.SourceID, string(prevJSON), string(corrJSON), string(ctxJSON), e.CreatedAt,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert correction")
	}
	if id, err := res.LastInsertId(); err == nil {
		e.ID = id
	}
	return nil
}

func (s *SQLiteStore) ListCorrections(ctx context.Context, sessionID string) ([]model.CorrectionLogEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, field, source_id, previous_value, corrected_value, context, consumed, created_at
		 FROM corrections WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list corrections")
	}
	defer rows.Close()
	return scanCorrections(rows)
}

func (s *SQLiteStore) UnconsumedCorrections(ctx context.Context, limit int) ([]model.CorrectionLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, field, source_id, previous_value, corrected_value, context, consumed, created_at
		 FROM corrections WHERE consumed = 0 ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: unconsumed corrections")
	}
	defer rows.Close()
	return scanCorrections(rows)
}

func (s *SQLiteStore) MarkCorrectionsConsumed(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE corrections SET consumed = 1 WHERE id IN (`+placeholders+`)`, args...)
	return eris.Wrap(err, "sqlite: mark corrections consumed")
}

func (s *SQLiteStore) LoadProfiles(ctx context.Context) ([]model.SourceProfile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source_id, priority_rank, reliability_weight, latency_class, version
		 FROM source_profiles ORDER BY source_id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load profiles")
	}
	defer rows.Close()

	var profiles []model.SourceProfile
	for rows.Next() {
		var p model.SourceProfile
		if err := rows.Scan(&p.SourceID, &p.PriorityRank, &p.ReliabilityWeight, &p.LatencyClass, &p.Version); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan profile")
		}
		profiles = append(profiles, p)
	}
	return profiles, eris.Wrap(rows.Err(), "sqlite: load profiles iterate")
}

func (s *SQLiteStore) SaveProfile(ctx context.Context, p model.SourceProfile) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO source_profiles (source_id, priority_rank, reliability_weight, latency_class, version)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(source_id) DO UPDATE SET
			priority_rank = excluded.priority_rank,
			reliability_weight = excluded.reliability_weight,
			latency_class = excluded.latency_class,
			version = excluded.version`,
		p.SourceID, p.PriorityRank, p.ReliabilityWeight, string(p.LatencyClass), p.Version,
	)
	return eris.Wrapf(err, "sqlite: save profile %s", p.SourceID)
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

func scanCorrections(rows *sql.Rows) ([]model.CorrectionLogEntry, error) {
	var entries []model.CorrectionLogEntry
	for rows.Next() {
		var e model.CorrectionLogEntry
		var prevJSON, corrJSON, ctxJSON string
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Field, &e.SourceID, &prevJSON, &corrJSON, &ctxJSON, &e.Consumed, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan correction")
		}
		if err := unmarshalValue([]byte(prevJSON), &e.PreviousValue); err != nil {
			return nil, err
		}
		if err := unmarshalValue([]byte(corrJSON), &e.CorrectedValue); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(ctxJSON), &e.Context); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal correction context")
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: corrections iterate")
}
