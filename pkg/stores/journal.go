// Package stores persists the run journal: an append-only SQLite audit of
// runs and per-component outcomes. The pipeline only writes to it; run
// decisions always come from in-process state, so a missing or broken
// journal never changes behavior.
package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// RunRecord is one journaled run.
type RunRecord struct {
	// ID is the run ID.
	ID string

	// StartedAt is when the run began.
	StartedAt time.Time

	// FinishedAt is when the run ended; nil while in flight or when the
	// process died before writing the end row.
	FinishedAt *time.Time

	// FinalStage is the terminal stage, empty until the run ends.
	FinalStage string
}

// ComponentRecord is one journaled component outcome.
type ComponentRecord struct {
	// RunID is the owning run.
	RunID string

	// Name is the component name.
	Name string

	// State is the recorded outcome.
	State string

	// Detail is the human-readable reason.
	Detail string

	// RecordedAt is when the outcome was written.
	RecordedAt time.Time
}

// Journal is the SQLite-backed run history.
type Journal struct {
	db   *sql.DB
	path string
}

// NewJournal creates a journal backed by the database file at path.
func NewJournal(path string) (*Journal, error) {
	if path == "" {
		return nil, fmt.Errorf("journal path is required")
	}
	return &Journal{path: path}, nil
}

// Init opens the database and enables WAL mode.
func (j *Journal) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000", j.path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("open journal database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("ping journal database: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return fmt.Errorf("enable foreign keys: %w", err)
	}

	j.db = db
	return nil
}

// Migrate applies the embedded schema migrations.
func (j *Journal) Migrate(context.Context) error {
	if j.db == nil {
		return fmt.Errorf("journal not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}
	driver, err := sqlite3.WithInstance(j.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("create migration instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Close closes the database.
func (j *Journal) Close() error {
	if j.db != nil {
		return j.db.Close()
	}
	return nil
}

// RecordRunStart journals the beginning of a run.
func (j *Journal) RecordRunStart(ctx context.Context, runID string, startedAt time.Time) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at) VALUES (?, ?)`,
		runID, startedAt.UTC())
	if err != nil {
		return fmt.Errorf("journal run start: %w", err)
	}
	return nil
}

// RecordRunEnd journals the terminal stage of a run.
func (j *Journal) RecordRunEnd(ctx context.Context, runID, finalStage string, finishedAt time.Time) error {
	_, err := j.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, final_stage = ? WHERE id = ?`,
		finishedAt.UTC(), finalStage, runID)
	if err != nil {
		return fmt.Errorf("journal run end: %w", err)
	}
	return nil
}

// RecordComponent journals one component outcome.
func (j *Journal) RecordComponent(ctx context.Context, runID, component, state, detail string) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO run_components (run_id, name, state, detail, recorded_at)
		 VALUES (?, ?, ?, ?, ?)`,
		runID, component, state, detail, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("journal component: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (j *Journal) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, final_stage
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var r RunRecord
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.StartedAt, &finished, &r.FinalStage); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if finished.Valid {
			t := finished.Time
			r.FinishedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ListComponents returns the component outcomes of one run in the order
// they were recorded.
func (j *Journal) ListComponents(ctx context.Context, runID string) ([]ComponentRecord, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT run_id, name, state, detail, recorded_at
		 FROM run_components WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("list components: %w", err)
	}
	defer rows.Close()

	var comps []ComponentRecord
	for rows.Next() {
		var c ComponentRecord
		if err := rows.Scan(&c.RunID, &c.Name, &c.State, &c.Detail, &c.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan component: %w", err)
		}
		comps = append(comps, c)
	}
	return comps, rows.Err()
}
