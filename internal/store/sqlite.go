package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/fairline-labs/fairline/internal/model"
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
CREATE TABLE IF NOT EXISTS profiles (
	subject_id TEXT PRIMARY KEY,
	data       TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS outcomes (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	subject_id    TEXT,
	entity_id     TEXT NOT NULL,
	rule_id       TEXT NOT NULL,
	strategy_type TEXT NOT NULL,
	outcome       TEXT NOT NULL,
	occurred_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS plans (
	id          TEXT PRIMARY KEY,
	subject_id  TEXT NOT NULL,
	fingerprint TEXT NOT NULL,
	data        TEXT NOT NULL,
	created_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_outcomes_entity ON outcomes(entity_id);
CREATE INDEX IF NOT EXISTS idx_outcomes_outcome ON outcomes(outcome);
CREATE INDEX IF NOT EXISTS idx_plans_subject ON plans(subject_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveProfile(ctx context.Context, profile *model.UserCreditProfile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal profile")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO profiles (subject_id, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (subject_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		profile.SubjectID, string(data), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: save profile %s", profile.SubjectID)
}

func (s *SQLiteStore) LoadProfile(ctx context.Context, subjectID string) (*model.UserCreditProfile, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM profiles WHERE subject_id = ?`, subjectID,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: load profile %s", subjectID)
	}
	var p model.UserCreditProfile
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal profile")
	}
	return &p, nil
}

func (s *SQLiteStore) ListSubjects(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT subject_id FROM profiles ORDER BY subject_id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list subjects")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan subject")
		}
		out = append(out, id)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list subjects iterate")
}

func (s *SQLiteStore) AppendOutcome(ctx context.Context, entry model.OutcomeEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO outcomes (subject_id, entity_id, rule_id, strategy_type, outcome, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.SubjectID, entry.EntityID, string(entry.RuleID), string(entry.Type),
		string(entry.Outcome), entry.Date.UTC(),
	)
	return eris.Wrapf(err, "sqlite: append outcome for %s", entry.EntityID)
}

func (s *SQLiteStore) ListOutcomes(ctx context.Context, entityID string) ([]model.OutcomeEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT subject_id, entity_id, rule_id, strategy_type, outcome, occurred_at
		 FROM outcomes WHERE entity_id = ? ORDER BY occurred_at ASC, id ASC`,
		entityID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list outcomes for %s", entityID)
	}
	defer rows.Close()

	var out []model.OutcomeEntry
	for rows.Next() {
		var e model.OutcomeEntry
		var subject sql.NullString
		if err := rows.Scan(&subject, &e.EntityID, &e.RuleID, &e.Type, &e.Outcome, &e.Date); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan outcome")
		}
		e.SubjectID = subject.String
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list outcomes iterate")
}

func (s *SQLiteStore) DecayOutcomes(ctx context.Context, entityID string) (int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM outcomes
		 WHERE entity_id = ? AND outcome = ?
		 ORDER BY occurred_at DESC, id DESC`,
		entityID, string(model.OutcomeLegalRejection),
	)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: decay outcomes for %s", entityID)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, eris.Wrap(err, "sqlite: scan outcome id")
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, eris.Wrap(err, "sqlite: decay iterate")
	}

	keep := len(ids) / 2
	dropped := 0
	for _, id := range ids[keep:] {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM outcomes WHERE id = ?`, id); err != nil {
			return dropped, eris.Wrapf(err, "sqlite: delete outcome %d", id)
		}
		dropped++
	}
	return dropped, nil
}

func (s *SQLiteStore) OutcomeTotals(ctx context.Context) (map[model.OutcomeType]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT outcome, COUNT(*) FROM outcomes GROUP BY outcome`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: outcome totals")
	}
	defer rows.Close()

	totals := make(map[model.OutcomeType]int)
	for rows.Next() {
		var outcome string
		var count int
		if err := rows.Scan(&outcome, &count); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan outcome total")
		}
		totals[model.OutcomeType(outcome)] = count
	}
	return totals, eris.Wrap(rows.Err(), "sqlite: outcome totals iterate")
}

func (s *SQLiteStore) SavePlan(ctx context.Context, plan *model.Plan) error {
	data, err := json.Marshal(plan)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal plan")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO plans (id, subject_id, fingerprint, data, created_at) VALUES (?, ?, ?, ?, ?)`,
		plan.ID, plan.SubjectID, plan.Fingerprint, string(data), plan.CreatedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: save plan %s", plan.ID)
}

func (s *SQLiteStore) ListPlans(ctx context.Context, subjectID string) ([]model.Plan, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM plans WHERE subject_id = ? ORDER BY created_at DESC`,
		subjectID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list plans for %s", subjectID)
	}
	defer rows.Close()

	var plans []model.Plan
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan plan")
		}
		var p model.Plan
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal plan")
		}
		plans = append(plans, p)
	}
	return plans, eris.Wrap(rows.Err(), "sqlite: list plans iterate")
}
