// Package migrations applies the versioned SQL schema shipped with the binary.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/refundly/webhooks/pkg/logger"
)

// Files holds the bundled migrations, named NNNNNN_description.{up,down}.sql.
//
//go:embed sql/*.sql
var Files embed.FS

// Runner executes database migrations.
type Runner struct {
	db     *sql.DB
	files  fs.FS
	logger *logger.Logger
}

// NewRunner creates a runner over the bundled migrations.
func NewRunner(db *sql.DB, log *logger.Logger) *Runner {
	sub, _ := fs.Sub(Files, "sql")
	return NewRunnerFS(db, sub, log)
}

// NewRunnerFS creates a runner over an arbitrary migrations filesystem.
func NewRunnerFS(db *sql.DB, files fs.FS, log *logger.Logger) *Runner {
	return &Runner{
		db:     db,
		files:  files,
		logger: log.With("component", "migrations"),
	}
}

// Record is a row of schema_migrations.
type Record struct {
	Version   string    `json:"version" yaml:"version"`
	AppliedAt time.Time `json:"applied_at" yaml:"applied_at"`
}

// EnsureTable creates the schema_migrations table if it doesn't exist.
func (r *Runner) EnsureTable(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(14) PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	return err
}

// Applied returns all applied migrations ordered by version.
func (r *Runner) Applied(ctx context.Context) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT version, applied_at FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.Version, &rec.AppliedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Pending returns the versions not yet recorded in schema_migrations.
func (r *Runner) Pending(ctx context.Context) ([]string, error) {
	available, err := Versions(r.files)
	if err != nil {
		return nil, fmt.Errorf("scan migrations: %w", err)
	}

	applied, err := r.Applied(ctx)
	if err != nil {
		return nil, fmt.Errorf("load applied migrations: %w", err)
	}

	done := make(map[string]bool, len(applied))
	for _, rec := range applied {
		done[rec.Version] = true
	}

	var pending []string
	for _, v := range available {
		if !done[v] {
			pending = append(pending, v)
		}
	}
	return pending, nil
}

// Up runs all pending migrations and returns the number applied.
func (r *Runner) Up(ctx context.Context) (int, error) {
	if err := r.EnsureTable(ctx); err != nil {
		return 0, fmt.Errorf("ensure migration table: %w", err)
	}

	pending, err := r.Pending(ctx)
	if err != nil {
		return 0, err
	}

	for i, version := range pending {
		if err := r.apply(ctx, version); err != nil {
			return i, fmt.Errorf("migration %s failed: %w", version, err)
		}
		r.logger.Info("migration applied", "version", version)
	}

	if len(pending) == 0 {
		r.logger.Debug("no pending migrations")
	}
	return len(pending), nil
}

func (r *Runner) apply(ctx context.Context, version string) error {
	content, err := Read(r.files, version, "up")
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, content); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, version); err != nil {
		return err
	}

	return tx.Commit()
}

// Versions lists the versions that have an .up.sql file, sorted ascending.
func Versions(files fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(files, ".")
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		version, _, ok := strings.Cut(name, "_")
		if !ok {
			return nil, fmt.Errorf("migration file %q has no version prefix", name)
		}
		seen[version] = true
	}

	versions := make([]string, 0, len(seen))
	for v := range seen {
		versions = append(versions, v)
	}
	sort.Strings(versions)
	return versions, nil
}

// Read returns the SQL for a version and direction ("up" or "down").
func Read(files fs.FS, version, direction string) (string, error) {
	matches, err := fs.Glob(files, fmt.Sprintf("%s_*.%s.sql", version, direction))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("migration file not found: %s (%s)", version, direction)
	}
	content, err := fs.ReadFile(files, path.Clean(matches[0]))
	if err != nil {
		return "", err
	}
	return string(content), nil
}
