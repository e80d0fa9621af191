package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/CrillyPienaah/sme-growth-copilot/internal/growth"
	"github.com/CrillyPienaah/sme-growth-copilot/internal/memory"
)

// InMemoryPath opens a private in-memory SQLite database.
const InMemoryPath = ":memory:"

// timeFormat is fixed-width so stored timestamps sort as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

const schema = `
CREATE TABLE IF NOT EXISTS businesses (
	business_id     TEXT PRIMARY KEY,
	name            TEXT NOT NULL DEFAULT '',
	industry        TEXT NOT NULL DEFAULT '',
	tone_of_voice   TEXT NOT NULL DEFAULT '',
	strategy_memory TEXT NOT NULL DEFAULT '[]',
	created_at      TEXT NOT NULL,
	updated_at      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS growth_plans (
	id           TEXT PRIMARY KEY,
	business_id  TEXT NOT NULL REFERENCES businesses(business_id),
	trace_id     TEXT NOT NULL,
	request_json TEXT NOT NULL,
	plan_json    TEXT NOT NULL,
	created_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_growth_plans_business ON growth_plans(business_id, created_at);

CREATE TABLE IF NOT EXISTS experiments (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	plan_id         TEXT NOT NULL REFERENCES growth_plans(id),
	business_id     TEXT NOT NULL,
	name            TEXT NOT NULL,
	channel         TEXT NOT NULL,
	priority_score  REAL NOT NULL,
	chosen          INTEGER NOT NULL DEFAULT 0,
	status          TEXT NOT NULL,
	observed_result REAL,
	updated_at      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_experiments_plan ON experiments(plan_id);
`

// SQLite is a Repository backed by a SQLite file.
//
// Strategy memory lives on the business row as a JSON array so that a
// business and its failed set are read and written together.
type SQLite struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// OpenSQLite opens or creates the database at path and applies the schema.
// Use InMemoryPath for a throwaway database.
func OpenSQLite(path string, logger *zap.Logger) (*SQLite, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if path != InMemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection keeps :memory: databases shared and serializes writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			logger.Debug("sqlite pragma not applied", zap.String("pragma", pragma), zap.Error(err))
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	logger.Info("sqlite store ready", zap.String("path", path))
	return &SQLite{db: db, logger: logger, now: time.Now}, nil
}

// Close implements Repository.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// FailedExperiments implements memory.Store.
func (s *SQLite) FailedExperiments(ctx context.Context, businessID string) ([]string, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT strategy_memory FROM businesses WHERE business_id = ?`, businessID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading strategy memory: %w", err)
	}
	return decodeNames(raw)
}

// RecordFailure implements memory.Store.
func (s *SQLite) RecordFailure(ctx context.Context, businessID, name string) (bool, error) {
	if err := memory.Validate(businessID, name); err != nil {
		return false, err
	}

	var added bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		added, err = s.recordFailureTx(ctx, tx, businessID, name)
		return err
	})
	if err != nil {
		return false, err
	}
	return added, nil
}

func (s *SQLite) recordFailureTx(ctx context.Context, tx *sql.Tx, businessID, name string) (bool, error) {
	now := s.timestamp()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO businesses (business_id, created_at, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(business_id) DO NOTHING`, businessID, now, now); err != nil {
		return false, fmt.Errorf("registering business: %w", err)
	}

	var raw string
	if err := tx.QueryRowContext(ctx,
		`SELECT strategy_memory FROM businesses WHERE business_id = ?`, businessID).Scan(&raw); err != nil {
		return false, fmt.Errorf("reading strategy memory: %w", err)
	}
	names, err := decodeNames(raw)
	if err != nil {
		return false, err
	}

	updated := memory.AddUnique(names, name)
	if len(updated) == len(names) {
		return false, nil
	}
	encoded, err := json.Marshal(updated)
	if err != nil {
		return false, fmt.Errorf("encoding strategy memory: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE businesses SET strategy_memory = ?, updated_at = ? WHERE business_id = ?`,
		string(encoded), now, businessID); err != nil {
		return false, fmt.Errorf("writing strategy memory: %w", err)
	}
	return true, nil
}

// SavePlan implements Repository.
func (s *SQLite) SavePlan(ctx context.Context, req growth.PlanRequest, plan growth.GrowthPlan) (*PlanRecord, error) {
	if err := validatePlan(plan); err != nil {
		return nil, err
	}

	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	planJSON, err := json.Marshal(plan)
	if err != nil {
		return nil, fmt.Errorf("encoding plan: %w", err)
	}

	now := s.now().UTC()
	stamp := now.Format(timeFormat)
	bp := plan.BusinessProfile
	rec := &PlanRecord{
		ID:         uuid.NewString(),
		BusinessID: bp.BusinessID,
		TraceID:    plan.TraceID,
		CreatedAt:  now,
		Request:    req,
		Plan:       plan,
	}
	rec.Experiments = experimentRecords(rec.ID, plan, now)

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO businesses (business_id, name, industry, tone_of_voice, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT(business_id) DO UPDATE SET
			   name = excluded.name,
			   industry = excluded.industry,
			   tone_of_voice = excluded.tone_of_voice,
			   updated_at = excluded.updated_at`,
			bp.BusinessID, bp.Name, bp.Industry, bp.ToneOfVoice, stamp, stamp); err != nil {
			return fmt.Errorf("upserting business: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO growth_plans (id, business_id, trace_id, request_json, plan_json, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			rec.ID, rec.BusinessID, rec.TraceID, string(reqJSON), string(planJSON), stamp); err != nil {
			return fmt.Errorf("inserting plan: %w", err)
		}

		for _, e := range rec.Experiments {
			res, err := tx.ExecContext(ctx,
				`INSERT INTO experiments (plan_id, business_id, name, channel, priority_score, chosen, status, updated_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				e.PlanID, e.BusinessID, e.Name, e.Channel, e.PriorityScore, e.Chosen, e.Status, stamp)
			if err != nil {
				return fmt.Errorf("inserting experiment %q: %w", e.Name, err)
			}
			if e.ID, err = res.LastInsertId(); err != nil {
				return fmt.Errorf("reading experiment id: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("plan saved",
		zap.String("plan_id", rec.ID),
		zap.String("business_id", rec.BusinessID),
		zap.Int("experiments", len(rec.Experiments)))
	return rec, nil
}

// ListPlans implements Repository.
func (s *SQLite) ListPlans(ctx context.Context, businessID string) ([]*PlanRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, business_id, trace_id, request_json, plan_json, created_at
		 FROM growth_plans WHERE business_id = ? ORDER BY created_at, rowid`, businessID)
	if err != nil {
		return nil, fmt.Errorf("listing plans: %w", err)
	}
	defer rows.Close()

	var (
		out   []*PlanRecord
		index = make(map[string]*PlanRecord)
	)
	for rows.Next() {
		var (
			rec               PlanRecord
			reqJSON, planJSON string
			created           string
		)
		if err := rows.Scan(&rec.ID, &rec.BusinessID, &rec.TraceID, &reqJSON, &planJSON, &created); err != nil {
			return nil, fmt.Errorf("scanning plan: %w", err)
		}
		if err := json.Unmarshal([]byte(reqJSON), &rec.Request); err != nil {
			return nil, fmt.Errorf("decoding request of plan %s: %w", rec.ID, err)
		}
		if err := json.Unmarshal([]byte(planJSON), &rec.Plan); err != nil {
			return nil, fmt.Errorf("decoding plan %s: %w", rec.ID, err)
		}
		if rec.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		rec.Experiments = []*ExperimentRecord{}
		out = append(out, &rec)
		index[rec.ID] = &rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing plans: %w", err)
	}
	if len(out) == 0 {
		return []*PlanRecord{}, nil
	}

	exps, err := s.queryExperiments(ctx, `WHERE business_id = ? ORDER BY id`, businessID)
	if err != nil {
		return nil, err
	}
	for _, e := range exps {
		if rec, ok := index[e.PlanID]; ok {
			rec.Experiments = append(rec.Experiments, e)
		}
	}
	return out, nil
}

// Experiment implements Repository.
func (s *SQLite) Experiment(ctx context.Context, id int64) (*ExperimentRecord, error) {
	exps, err := s.queryExperiments(ctx, `WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(exps) == 0 {
		return nil, ErrExperimentNotFound
	}
	return exps[0], nil
}

// RecordOutcome implements Repository.
func (s *SQLite) RecordOutcome(ctx context.Context, id int64, status string, observed *float64) (*ExperimentRecord, bool, error) {
	status = memory.NormalizeStatus(status)
	if status == "" {
		return nil, false, ErrInvalidStatus
	}

	var added bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var businessID, name string
		err := tx.QueryRowContext(ctx,
			`SELECT business_id, name FROM experiments WHERE id = ?`, id).Scan(&businessID, &name)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrExperimentNotFound
		}
		if err != nil {
			return fmt.Errorf("reading experiment %d: %w", id, err)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE experiments
			 SET status = ?, observed_result = COALESCE(?, observed_result), updated_at = ?
			 WHERE id = ?`,
			status, nullFloat(observed), s.timestamp(), id); err != nil {
			return fmt.Errorf("updating experiment %d: %w", id, err)
		}

		if memory.IsFailureStatus(status) {
			added, err = s.recordFailureTx(ctx, tx, businessID, name)
			if err != nil {
				return fmt.Errorf("recording failure: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	exp, err := s.Experiment(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return exp, added, nil
}

func (s *SQLite) queryExperiments(ctx context.Context, where string, args ...any) ([]*ExperimentRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, plan_id, business_id, name, channel, priority_score, chosen, status, observed_result, updated_at
		 FROM experiments `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("querying experiments: %w", err)
	}
	defer rows.Close()

	var out []*ExperimentRecord
	for rows.Next() {
		var (
			e        ExperimentRecord
			observed sql.NullFloat64
			updated  string
		)
		if err := rows.Scan(&e.ID, &e.PlanID, &e.BusinessID, &e.Name, &e.Channel,
			&e.PriorityScore, &e.Chosen, &e.Status, &observed, &updated); err != nil {
			return nil, fmt.Errorf("scanning experiment: %w", err)
		}
		if observed.Valid {
			v := observed.Float64
			e.ObservedResult = &v
		}
		if e.UpdatedAt, err = parseTime(updated); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("querying experiments: %w", err)
	}
	return out, nil
}

func (s *SQLite) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Warn("rollback failed", zap.Error(rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *SQLite) timestamp() string {
	return s.now().UTC().Format(timeFormat)
}

func parseTime(v string) (time.Time, error) {
	t, err := time.Parse(timeFormat, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", v, err)
	}
	return t, nil
}

func decodeNames(raw string) ([]string, error) {
	names := []string{}
	if raw == "" {
		return names, nil
	}
	if err := json.Unmarshal([]byte(raw), &names); err != nil {
		return nil, fmt.Errorf("decoding strategy memory: %w", err)
	}
	return names, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
