package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store persists metric aggregates and the erase log in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending migrations.
// Pass ":memory:" as dataDir for an in-memory database (used by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "pulse.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	// Set busy timeout so concurrent access waits briefly instead of failing immediately.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *Store) migrate() error {
	// Ensure schema_version table exists (bootstrap).
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort by filename to guarantee ascending order.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		// Check if already applied.
		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- Metrics ---

// RecordMetricEvents folds a batch of events into the per-event totals in a
// single transaction. The latest event of each name becomes its sample.
func (s *Store) RecordMetricEvents(events []MetricEvent) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning metrics transaction: %w", err)
	}
	stmt, err := tx.Prepare(`
		INSERT INTO metric_totals (event, count, last_sample_at, sample_json)
		VALUES (?, 1, ?, ?)
		ON CONFLICT(event) DO UPDATE SET
			count = count + 1,
			last_sample_at = excluded.last_sample_at,
			sample_json = excluded.sample_json`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing metrics upsert: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		attrs := e.AttrsJSON
		if attrs == "" {
			attrs = "{}"
		}
		at := e.RecordedAt
		if at.IsZero() {
			at = time.Now()
		}
		if _, err := stmt.Exec(e.Name, at.UTC().Format(time.RFC3339Nano), attrs); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording metric %q: %w", e.Name, err)
		}
	}
	return tx.Commit()
}

// MetricTotals returns all aggregates ordered by event name.
func (s *Store) MetricTotals() ([]MetricTotal, error) {
	rows, err := s.db.Query(`SELECT event, count, last_sample_at, sample_json FROM metric_totals ORDER BY event ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var totals []MetricTotal
	for rows.Next() {
		var m MetricTotal
		var lastSample string
		if err := rows.Scan(&m.Event, &m.Count, &lastSample, &m.SampleJSON); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339Nano, lastSample)
		if err != nil {
			return nil, fmt.Errorf("parsing last_sample_at: %w", err)
		}
		m.LastSampleAt = t
		totals = append(totals, m)
	}
	return totals, rows.Err()
}

// ResetMetrics deletes every aggregate.
func (s *Store) ResetMetrics() error {
	_, err := s.db.Exec("DELETE FROM metric_totals")
	return err
}

// --- Erasures ---

func (s *Store) RecordErasure(e Erasure) error {
	_, err := s.db.Exec(`INSERT INTO erasures (id, erased_at, scope, client) VALUES (?, ?, ?, ?)`,
		e.ID, e.ErasedAt.UTC().Format(time.RFC3339Nano), e.Scope, e.Client,
	)
	return err
}

// ListErasures returns the most recent erasures first.
func (s *Store) ListErasures(limit int) ([]Erasure, error) {
	rows, err := s.db.Query(`SELECT id, erased_at, scope, client FROM erasures ORDER BY erased_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Erasure
	for rows.Next() {
		var e Erasure
		var at string
		if err := rows.Scan(&e.ID, &at, &e.Scope, &e.Client); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339Nano, at)
		if err != nil {
			return nil, fmt.Errorf("parsing erased_at: %w", err)
		}
		e.ErasedAt = t
		out = append(out, e)
	}
	return out, rows.Err()
}

// LastErasure returns the most recent erasure, or ErrNotFound.
func (s *Store) LastErasure() (Erasure, error) {
	list, err := s.ListErasures(1)
	if err != nil {
		return Erasure{}, err
	}
	if len(list) == 0 {
		return Erasure{}, ErrNotFound
	}
	return list[0], nil
}
