package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"
	"time"
)

// MigrationsFS holds the *.up.sql files applied by Migrate. The migrations
// package sets it from an embed.FS at init. Nil means there is nothing to
// apply.
var MigrationsFS fs.FS

// MigrationsDir is the directory inside MigrationsFS holding the files.
var MigrationsDir = "migrations"

// upSuffix marks a forward migration file.
const upSuffix = ".up.sql"

// migration is one forward schema change.
//
// Files are named YYYYMMDD_HHMMSS_description.up.sql; the timestamp is the
// version and sorts chronologically.
type migration struct {
	version string
	name    string
	sql     string
}

// Migrate applies every migration not yet recorded in schema_migrations,
// oldest first.
//
// Each migration commits in its own transaction together with its
// schema_migrations row, so a failure leaves earlier migrations applied and
// a later Migrate resumes at the one that failed.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: The first migration that failed, wrapped with its version
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL
		)`); err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}

	all, err := readMigrations(MigrationsFS, MigrationsDir)
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}

	applied, err := db.appliedVersions(ctx)
	if err != nil {
		return err
	}

	for _, m := range all {
		if applied[m.version] {
			continue
		}
		if err := db.apply(ctx, m); err != nil {
			return fmt.Errorf("applying migration %s (%s): %w", m.version, m.name, err)
		}
	}
	return nil
}

// SchemaVersion returns the newest applied migration version, or "" if
// none has been applied. Only valid after Migrate.
func (db *DB) SchemaVersion(ctx context.Context) (string, error) {
	var version sql.NullString
	err := db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&version)
	if err != nil {
		return "", fmt.Errorf("querying schema version: %w", err)
	}
	return version.String, nil
}

func (db *DB) appliedVersions(ctx context.Context) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("querying migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scanning migration row: %w", err)
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

func (db *DB) apply(ctx context.Context, m migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	if _, err := tx.ExecContext(ctx, m.sql); err != nil {
		return fmt.Errorf("executing SQL: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
		m.version, time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("recording migration: %w", err)
	}
	return tx.Commit()
}

// readMigrations returns the forward migrations in dir sorted by version.
// Files that do not follow the naming scheme are ignored.
func readMigrations(fsys fs.FS, dir string) ([]migration, error) {
	if fsys == nil {
		return nil, nil
	}

	entries, err := fs.ReadDir(fsys, dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []migration
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		version, name, ok := parseMigrationName(e.Name())
		if !ok {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", e.Name(), err)
		}
		out = append(out, migration{version: version, name: name, sql: string(data)})
	}

	slices.SortFunc(out, func(a, b migration) int { return strings.Compare(a.version, b.version) })
	return out, nil
}

// parseMigrationName splits "20260301_090000_state_history.up.sql" into
// version "20260301_090000" and name "state_history".
func parseMigrationName(file string) (version, name string, ok bool) {
	base, found := strings.CutSuffix(file, upSuffix)
	if !found {
		return "", "", false
	}

	date, rest, found := strings.Cut(base, "_")
	if !found || date == "" {
		return "", "", false
	}
	clock, name, _ := strings.Cut(rest, "_")
	if clock == "" {
		return "", "", false
	}
	if name == "" {
		name = base
	}
	return date + "_" + clock, name, true
}
