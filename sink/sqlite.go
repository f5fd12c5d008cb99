package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/PaoloBova/llm-networks-misinformation/core"
)

// SQLite stores runs in a SQLite database: one row per run, per round and
// per agent decision, so results can be queried without decoding JSON.
type SQLite struct {
	db *sql.DB
}

var _ core.RunSink = (*SQLite)(nil)

// OpenSQLite opens or creates the database at path and applies the schema.
// The special path ":memory:" opens a private in-memory database.
func OpenSQLite(path string) (*SQLite, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database dir: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening run database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes
	// writers on file databases.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging run database: %w", err)
	}

	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating run database: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) migrate() error {
	_, err := s.db.Exec(schema)
	return err
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id              TEXT PRIMARY KEY,
    batch_id        TEXT,
    status          TEXT NOT NULL,
    abort_reason    TEXT,
    seed            INTEGER NOT NULL,
    started_at      TEXT NOT NULL,
    finished_at     TEXT NOT NULL,
    revision        TEXT,
    go_version      TEXT,
    rounds_executed INTEGER NOT NULL,
    converged       INTEGER NOT NULL,
    final_choice    TEXT,
    total_faults    INTEGER NOT NULL,
    model_calls     INTEGER NOT NULL DEFAULT 0,
    total_tokens    INTEGER NOT NULL DEFAULT 0,
    cost            REAL NOT NULL DEFAULT 0,
    usage           TEXT,
    config          TEXT,
    summary         TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_batch ON runs(batch_id);

CREATE TABLE IF NOT EXISTS rounds (
    run_id         TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    round          INTEGER NOT NULL,
    faults         INTEGER NOT NULL,
    fault_fraction REAL NOT NULL,
    record         TEXT NOT NULL,
    PRIMARY KEY (run_id, round)
);

CREATE TABLE IF NOT EXISTS decisions (
    run_id        TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    round         INTEGER NOT NULL,
    agent         INTEGER NOT NULL,
    choice        TEXT NOT NULL,
    justification TEXT,
    status        TEXT NOT NULL,
    fault         TEXT,
    payoff        REAL,
    PRIMARY KEY (run_id, round, agent)
);
CREATE INDEX IF NOT EXISTS idx_decisions_choice ON decisions(run_id, round, choice);
`

// Save implements core.RunSink. Saving a run id twice replaces the earlier
// copy.
func (s *SQLite) Save(ctx context.Context, run *core.Run) error {
	config, err := json.Marshal(run.Config)
	if err != nil {
		return err
	}
	summary, err := json.Marshal(run.Summary)
	if err != nil {
		return err
	}
	var (
		usage         any
		calls, tokens int
		cost          float64
	)
	if u := run.Usage; u != nil {
		data, err := json.Marshal(u)
		if err != nil {
			return err
		}
		usage, calls, tokens, cost = string(data), u.Calls, u.TotalTokens, u.Cost
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM decisions WHERE run_id = ?`, run.ID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM rounds WHERE run_id = ?`, run.ID); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
INSERT OR REPLACE INTO runs (id, batch_id, status, abort_reason, seed, started_at, finished_at, revision,
    go_version, rounds_executed, converged, final_choice, total_faults, model_calls, total_tokens, cost,
    usage, config, summary)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, nullable(run.BatchID), string(run.Status), run.AbortReason, int64(run.Provenance.Seed),
		run.Provenance.StartedAt.Format(time.RFC3339Nano), run.Provenance.FinishedAt.Format(time.RFC3339Nano),
		run.Provenance.Revision, run.Provenance.GoVersion,
		run.Summary.RoundsExecuted, run.Summary.Converged, run.Summary.FinalChoice, run.Summary.TotalFaults,
		calls, tokens, cost, usage,
		string(config), string(summary),
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	roundStmt, err := tx.PrepareContext(ctx, `INSERT INTO rounds (run_id, round, faults, fault_fraction, record) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer roundStmt.Close()
	decisionStmt, err := tx.PrepareContext(ctx, `
INSERT INTO decisions (run_id, round, agent, choice, justification, status, fault, payoff)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer decisionStmt.Close()

	for _, rec := range run.Rounds {
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if _, err := roundStmt.ExecContext(ctx, run.ID, rec.Round, rec.Faults, rec.FaultFraction, string(data)); err != nil {
			return fmt.Errorf("inserting round %d: %w", rec.Round, err)
		}
		for _, e := range rec.Entries {
			d := e.Decision
			var payoff any
			if d.Payoff != nil {
				payoff = *d.Payoff
			}
			if _, err := decisionStmt.ExecContext(ctx, run.ID, rec.Round, int(e.Agent), d.Choice, d.Justification, string(d.Status), d.Fault, payoff); err != nil {
				return fmt.Errorf("inserting decision %d/%d: %w", rec.Round, e.Agent, err)
			}
		}
	}
	return tx.Commit()
}

// Get loads a run by id.
func (s *SQLite) Get(ctx context.Context, id string) (*core.Run, error) {
	var (
		run                 core.Run
		batchID, usage      sql.NullString
		status, abortReason sql.NullString
		revision, goVersion sql.NullString
		started, finished   string
		seed                int64
		config, summary     string
	)
	err := s.db.QueryRowContext(ctx, `
SELECT id, batch_id, status, abort_reason, seed, started_at, finished_at, revision, go_version, usage, config, summary
FROM runs WHERE id = ?`, id).Scan(&run.ID, &batchID, &status, &abortReason, &seed, &started, &finished, &revision, &goVersion, &usage, &config, &summary)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	run.BatchID = batchID.String
	run.Status = core.RunStatus(status.String)
	run.AbortReason = abortReason.String
	run.Provenance = core.Provenance{Seed: uint64(seed), Revision: revision.String, GoVersion: goVersion.String}
	if run.Provenance.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return nil, err
	}
	if run.Provenance.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
		return nil, err
	}
	if usage.Valid {
		run.Usage = new(core.Usage)
		if err := json.Unmarshal([]byte(usage.String), run.Usage); err != nil {
			return nil, err
		}
	}
	if config != "" && config != "null" {
		if err := json.Unmarshal([]byte(config), &run.Config); err != nil {
			return nil, err
		}
	}
	if err := json.Unmarshal([]byte(summary), &run.Summary); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT record FROM rounds WHERE run_id = ? ORDER BY round`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var rec core.RoundRecord
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, err
		}
		run.Rounds = append(run.Rounds, rec)
	}
	return &run, rows.Err()
}

// ChoiceCounts returns how many agents held each choice at round.
func (s *SQLite) ChoiceCounts(ctx context.Context, id string, round int) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT choice, COUNT(*) FROM decisions WHERE run_id = ? AND round = ? GROUP BY choice`, id, round)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[string]int)
	for rows.Next() {
		var (
			choice string
			n      int
		)
		if err := rows.Scan(&choice, &n); err != nil {
			return nil, err
		}
		counts[choice] = n
	}
	return counts, rows.Err()
}

// List returns saved run ids, oldest first.
func (s *SQLite) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM runs ORDER BY started_at, id`)
	if err != nil {
		return nil, err
	}
	return scanIDs(rows)
}

// ListBatch returns the ids of the runs saved under batchID, ordered by id.
func (s *SQLite) ListBatch(ctx context.Context, batchID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM runs WHERE batch_id = ? ORDER BY id`, batchID)
	if err != nil {
		return nil, err
	}
	return scanIDs(rows)
}

// BatchUsage totals the model calls, tokens and cost of a batch.
func (s *SQLite) BatchUsage(ctx context.Context, batchID string) (core.Usage, error) {
	var u core.Usage
	err := s.db.QueryRowContext(ctx, `
SELECT COALESCE(SUM(model_calls), 0), COALESCE(SUM(total_tokens), 0), COALESCE(SUM(cost), 0)
FROM runs WHERE batch_id = ?`, batchID).Scan(&u.Calls, &u.TotalTokens, &u.Cost)
	return u, err
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func scanIDs(rows *sql.Rows) ([]string, error) {
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
