package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/fairline-labs/fairline/internal/model"
)

// Pool is the subset of pgxpool.Pool the store needs. Satisfied by pgxmock
// in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
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

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS profiles (
	subject_id TEXT PRIMARY KEY,
	data       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS outcomes (
	id            BIGSERIAL PRIMARY KEY,
	subject_id    TEXT,
	entity_id     TEXT NOT NULL,
	rule_id       TEXT NOT NULL,
	strategy_type TEXT NOT NULL,
	outcome       TEXT NOT NULL,
	occurred_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS plans (
	id          TEXT PRIMARY KEY,
	subject_id  TEXT NOT NULL,
	fingerprint TEXT NOT NULL,
	data        JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_outcomes_entity ON outcomes(entity_id);
CREATE INDEX IF NOT EXISTS idx_outcomes_outcome ON outcomes(outcome);
CREATE INDEX IF NOT EXISTS idx_plans_subject ON plans(subject_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) SaveProfile(ctx context.Context, profile *model.UserCreditProfile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal profile")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO profiles (subject_id, data, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (subject_id) DO UPDATE SET data = $2, updated_at = $3`,
		profile.SubjectID, data, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: save profile %s", profile.SubjectID)
}

func (s *PostgresStore) LoadProfile(ctx context.Context, subjectID string) (*model.UserCreditProfile, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM profiles WHERE subject_id = $1`, subjectID,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: load profile %s", subjectID)
	}
	var p model.UserCreditProfile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal profile")
	}
	return &p, nil
}

func (s *PostgresStore) ListSubjects(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT subject_id FROM profiles ORDER BY subject_id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list subjects")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan subject")
		}
		out = append(out, id)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list subjects iterate")
}

func (s *PostgresStore) AppendOutcome(ctx context.Context, entry model.OutcomeEntry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO outcomes (subject_id, entity_id, rule_id, strategy_type, outcome, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.SubjectID, entry.EntityID, string(entry.RuleID), string(entry.Type),
		string(entry.Outcome), entry.Date.UTC(),
	)
	return eris.Wrapf(err, "postgres: append outcome for %s", entry.EntityID)
}

func (s *PostgresStore) ListOutcomes(ctx context.Context, entityID string) ([]model.OutcomeEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT subject_id, entity_id, rule_id, strategy_type, outcome, occurred_at
		 FROM outcomes WHERE entity_id = $1 ORDER BY occurred_at ASC, id ASC`,
		entityID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list outcomes for %s", entityID)
	}
	defer rows.Close()

	var out []model.OutcomeEntry
	for rows.Next() {
		var e model.OutcomeEntry
		var subject *string
		if err := rows.Scan(&subject, &e.EntityID, &e.RuleID, &e.Type, &e.Outcome, &e.Date); err != nil {
			return nil, eris.Wrap(err, "postgres: scan outcome")
		}
		if subject != nil {
			e.SubjectID = *subject
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list outcomes iterate")
}

func (s *PostgresStore) DecayOutcomes(ctx context.Context, entityID string) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM outcomes WHERE id IN (
			SELECT id FROM (
				SELECT id, row_number() OVER (ORDER BY occurred_at DESC, id DESC) AS rn,
				       count(*) OVER () AS total
				FROM outcomes WHERE entity_id = $1 AND outcome = $2
			) ranked WHERE rn > total / 2
		)`,
		entityID, string(model.OutcomeLegalRejection),
	)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: decay outcomes for %s", entityID)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) OutcomeTotals(ctx context.Context) (map[model.OutcomeType]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT outcome, COUNT(*) FROM outcomes GROUP BY outcome`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: outcome totals")
	}
	defer rows.Close()

	totals := make(map[model.OutcomeType]int)
	for rows.Next() {
		var outcome string
		var count int
		if err := rows.Scan(&outcome, &count); err != nil {
			return nil, eris.Wrap(err, "postgres: scan outcome total")
		}
		totals[model.OutcomeType(outcome)] = count
	}
	return totals, eris.Wrap(rows.Err(), "postgres: outcome totals iterate")
}

func (s *PostgresStore) SavePlan(ctx context.Context, plan *model.Plan) error {
	data, err := json.Marshal(plan)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal plan")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO plans (id, subject_id, fingerprint, data, created_at) VALUES ($1, $2, $3, $4, $5)`,
		plan.ID, plan.SubjectID, plan.Fingerprint, data, plan.CreatedAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: save plan %s", plan.ID)
}

func (s *PostgresStore) ListPlans(ctx context.Context, subjectID string) ([]model.Plan, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT data FROM plans WHERE subject_id = $1 ORDER BY created_at DESC`,
		subjectID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list plans for %s", subjectID)
	}
	defer rows.Close()

	var plans []model.Plan
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan plan")
		}
		var p model.Plan
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal plan")
		}
		plans = append(plans, p)
	}
	return plans, eris.Wrap(rows.Err(), "postgres: list plans iterate")
}
