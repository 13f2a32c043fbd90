package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/lodging-research/internal/db"
	"github.com/sells-group/lodging-research/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// the hottest store operations.
var preparedStatements = map[string]string{
	"get_session":    `SELECT id, request, manifest, record, field_states, state, finalized, created_at, updated_at FROM sessions WHERE id = $1`,
	"update_session": `UPDATE sessions SET record = $1, field_states = $2, state = $3, finalized = $4, updated_at = $5 WHERE id = $6`,
	"insert_correction": `INSERT INTO corrections (session_id, field, source_id, previous_value, corrected_value, context, consumed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, false, $7) RETURNING id`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS sessions (
	id           TEXT PRIMARY KEY,
	request      JSONB NOT NULL,
	manifest     JSONB NOT NULL,
	record       JSONB NOT NULL,
	field_states JSONB NOT NULL,
	state        TEXT NOT NULL DEFAULT 'presented',
	finalized    BOOLEAN NOT NULL DEFAULT false,
	created_at   TIMESTAMPTZ NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS records (
	pass_id    TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	record     JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS corrections (
	id              BIGSERIAL PRIMARY KEY,
	session_id      TEXT NOT NULL,
	field           TEXT NOT NULL,
	source_id       TEXT NOT NULL,
	previous_value  JSONB,
	corrected_value JSONB,
	context         JSONB NOT NULL,
	consumed        BOOLEAN NOT NULL DEFAULT false,
	created_at      TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS source_profiles (
	source_id          TEXT PRIMARY KEY,
	priority_rank      INTEGER NOT NULL,
	reliability_weight DOUBLE PRECISION NOT NULL,
	latency_class      TEXT NOT NULL,
	version            INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_state ON sessions(state);
CREATE INDEX IF NOT EXISTS idx_records_session_id ON records(session_id);
CREATE INDEX IF NOT EXISTS idx_corrections_session_id ON corrections(session_id);
CREATE INDEX IF NOT EXISTS idx_corrections_consumed ON corrections(consumed) WHERE NOT consumed;
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateSession(ctx context.Context, sess *model.Session) error {
	row, err := encodeSession(sess)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO sessions (id, request, manifest, record, field_states, state, finalized, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		sess.ID, row.request, row.manifest, row.record, row.states,
		string(sess.State), sess.Finalized, sess.CreatedAt, sess.UpdatedAt,
	)
	return eris.Wrapf(err, "postgres: insert session %s", sess.ID)
}

func (s *PostgresStore) GetSession(ctx context.Context, id string) (*model.Session, error) {
	dbRow := s.pool.QueryRow(ctx,
		`SELECT id, request, manifest, record, field_states, state, finalized, created_at, updated_at
		 FROM sessions WHERE id = $1`, id)

	var sess model.Session
	var row sessionRow
	var state string
	err := dbRow.Scan(&sess.ID, &row.request, &row.manifest, &row.record, &row.states, &state, &sess.Finalized, &sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "session %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get session %s", id)
	}

	if err := decodeSession(&sess, row); err != nil {
		return nil, err
	}
	sess.State = model.SessionState(state)
	return &sess, nil
}

func (s *PostgresStore) UpdateSession(ctx context.Context, sess *model.Session) error {
	row, err := encodeSession(sess)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE sessions SET record = $1, field_states = $2, state = $3, finalized = $4, updated_at = $5 WHERE id = $6`,
		row.record, row.states, string(sess.State), sess.Finalized, sess.UpdatedAt, sess.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update session %s", sess.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "session %s", sess.ID)
	}
	return nil
}

func (s *PostgresStore) SaveRecord(ctx context.Context, sessionID string, r *model.ResearchRecord) error {
	recordJSON, err := json.Marshal(r)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal record")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO records (pass_id, session_id, record, created_at) VALUES ($1, $2, $3, $4)`,
		r.PassID, sessionID, recordJSON, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: insert record %s", r.PassID)
}

func (s *PostgresStore) GetRecord(ctx context.Context, passID string) (*model.ResearchRecord, error) {
	var recordJSON []byte
	err := s.pool.QueryRow(ctx, `SELECT record FROM records WHERE pass_id = $1`, passID).Scan(&recordJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "record %s", passID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get record %s", passID)
	}

	var r model.ResearchRecord
	if err := json.Unmarshal(recordJSON, &r); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal record")
	}
	return &r, nil
}

func (s *PostgresStore) AppendCorrection(ctx context.Context, e *model.CorrectionLogEntry) error {
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
		return eris.Wrap(err, "postgres: marshal correction context")
	}

	err = s.pool.QueryRow(ctx,
		`INSERT INTO corrections (session_id, field, source_id, previous_value, corrected_value, context, consumed, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, false, $7) RETURNING id`,
		e.SessionID, e.Field, e.SourceID, prevJSON, corrJSON, ctxJSON, e.CreatedAt,
	).Scan(&e.ID)
	return eris.Wrap(err, "postgres: insert correction")
}

func (s *PostgresStore) ListCorrections(ctx context.Context, sessionID string) ([]model.CorrectionLogEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, field, source_id, previous_value, corrected_value, context, consumed, created_at
		 FROM corrections WHERE session_id = $1 ORDER BY id`, sessionID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list corrections")
	}
	defer rows.Close()
	return scanPgCorrections(rows)
}

func (s *PostgresStore) UnconsumedCorrections(ctx context.Context, limit int) ([]model.CorrectionLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, field, source_id, previous_value, corrected_value, context, consumed, created_at
		 FROM corrections WHERE NOT consumed ORDER BY id LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: unconsumed corrections")
	}
	defer rows.Close()
	return scanPgCorrections(rows)
}

func (s *PostgresStore) MarkCorrectionsConsumed(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE corrections SET consumed = true WHERE id = ANY($1)`, ids)
	return eris.Wrap(err, "postgres: mark corrections consumed")
}

func (s *PostgresStore) LoadProfiles(ctx context.Context) ([]model.SourceProfile, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT source_id, priority_rank, reliability_weight, latency_class, version
		 FROM source_profiles ORDER BY source_id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load profiles")
	}
	defer rows.Close()

	var profiles []model.SourceProfile
	for rows.Next() {
		var p model.SourceProfile
		if err := rows.Scan(&p.SourceID, &p.PriorityRank, &p.ReliabilityWeight, &p.LatencyClass, &p.Version); err != nil {
			return nil, eris.Wrap(err, "postgres: scan profile")
		}
		profiles = append(profiles, p)
	}
	return profiles, eris.Wrap(rows.Err(), "postgres: load profiles iterate")
}

func (s *PostgresStore) SaveProfile(ctx context.Context, p model.SourceProfile) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO source_profiles (source_id, priority_rank, reliability_weight, latency_class, version)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (source_id) DO UPDATE SET
			priority_rank = EXCLUDED.priority_rank,
			reliability_weight = EXCLUDED.reliability_weight,
			latency_class = EXCLUDED.latency_class,
			version = EXCLUDED.version`,
		p.SourceID, p.PriorityRank, p.ReliabilityWeight, string(p.LatencyClass), p.Version,
	)
	return eris.Wrapf(err, "postgres: save profile %s", p.SourceID)
}

func scanPgCorrections(rows pgx.Rows) ([]model.CorrectionLogEntry, error) {
	var entries []model.CorrectionLogEntry
	for rows.Next() {
		var e model.CorrectionLogEntry
		var prevJSON, corrJSON, ctxJSON []byte
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Field, &e.SourceID, &prevJSON, &corrJSON, &ctxJSON, &e.Consumed, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan correction")
		}
		if err := unmarshalValue(prevJSON, &e.PreviousValue); err != nil {
			return nil, err
		}
		if err := unmarshalValue(corrJSON, &e.CorrectedValue); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(ctxJSON, &e.Context); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal correction context")
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: corrections iterate")
}
