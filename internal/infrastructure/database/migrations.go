package database

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"
	"sync"
	"time"
)

var (
	sourceMu sync.RWMutex
	source   migrationSource
)

// migrationSource is the registered location of the migration files.
type migrationSource struct {
	fsys fs.FS
	dir  string
}

// RegisterMigrations sets the filesystem Migrate reads migration files from.
// The migrations package calls it from init with its embedded files.
//
// Parameters:
//   - fsys: Filesystem holding the .up.sql/.down.sql pairs; nil clears the source
//   - dir: Directory within fsys, "." for the root
func RegisterMigrations(fsys fs.FS, dir string) {
	sourceMu.Lock()
	defer sourceMu.Unlock()
	source = migrationSource{fsys: fsys, dir: dir}
}

func registeredSource() migrationSource {
	sourceMu.RLock()
	defer sourceMu.RUnlock()
	return source
}

// Migration represents a single database migration.
type Migration struct {
	// Version is YYYYMMDD_HHMMSS taken from the filename.
	Version string

	// Name is the description part of the filename.
	Name string

	// UpSQL applies the migration.
	UpSQL string

	// DownSQL reverts it. Empty when no .down.sql file exists.
	DownSQL string
}

// MigrationRecord represents a row in the schema_migrations table.
type MigrationRecord struct {
	Version   string
	Name      string
	AppliedAt time.Time
}

// Migrate applies all pending migrations in version order.
//
// Each migration runs in its own transaction. When one fails it is rolled
// back, earlier ones stay committed and later ones are not attempted, so a
// second Migrate after the fix continues where the first stopped.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: If any migration fails
func (db *DB) Migrate(ctx context.Context) error {
	_, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		return err
	}
	for _, m := range pending {
		if err := db.applyMigration(ctx, m); err != nil {
			return fmt.Errorf("applying migration %s (%s): %w", m.Version, m.Name, err)
		}
	}
	return nil
}

// MigrateDown rolls back the most recently applied migration.
// It is a no-op when nothing has been applied.
func (db *DB) MigrateDown(ctx context.Context) error {
	applied, migrations, err := db.status(ctx)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		return nil
	}

	latest := applied[len(applied)-1]
	i := slices.IndexFunc(migrations, func(m Migration) bool { return m.Version == latest.Version })
	if i < 0 {
		return fmt.Errorf("applied migration %s is no longer registered", latest.Version)
	}
	migration := migrations[i]
	if migration.DownSQL == "" {
		return fmt.Errorf("migration %s cannot be reverted: no down file", latest.Version)
	}

	return db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, migration.DownSQL); err != nil {
			return fmt.Errorf("reverting %s: %w", migration.Version, err)
		}
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM schema_migrations WHERE version = ?", migration.Version,
		); err != nil {
			return fmt.Errorf("forgetting %s: %w", migration.Version, err)
		}
		return nil
	})
}

// GetMigrationStatus returns the applied records and the pending migrations.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - applied: Migrations recorded in schema_migrations, oldest first
//   - pending: Registered migrations not yet applied, oldest first
//   - error: If the status cannot be determined
func (db *DB) GetMigrationStatus(ctx context.Context) (applied []MigrationRecord, pending []Migration, err error) {
	applied, migrations, err := db.status(ctx)
	if err != nil {
		return nil, nil, err
	}

	done := make(map[string]bool, len(applied))
	for _, r := range applied {
		done[r.Version] = true
	}
	for _, m := range migrations {
		if !done[m.Version] {
			pending = append(pending, m)
		}
	}
	return applied, pending, nil
}

func (db *DB) status(ctx context.Context) ([]MigrationRecord, []Migration, error) {
	if err := db.createMigrationsTable(ctx); err != nil {
		return nil, nil, fmt.Errorf("creating migrations table: %w", err)
	}
	applied, err := db.getAppliedMigrations(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("getting applied migrations: %w", err)
	}
	migrations, err := loadMigrations(registeredSource())
	if err != nil {
		return nil, nil, fmt.Errorf("loading migrations: %w", err)
	}
	return applied, migrations, nil
}

func (db *DB) createMigrationsTable(ctx context.Context) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			name       TEXT NOT NULL DEFAULT '',
			applied_at TEXT NOT NULL
		)
	`)
	return err
}

func (db *DB) getAppliedMigrations(ctx context.Context) ([]MigrationRecord, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT version, name, applied_at FROM schema_migrations ORDER BY version",
	)
	if err != nil {
		return nil, fmt.Errorf("querying migrations: %w", err)
	}
	defer rows.Close()

	var records []MigrationRecord
	for rows.Next() {
		var (
			r         MigrationRecord
			appliedAt string
		)
		if err := rows.Scan(&r.Version, &r.Name, &appliedAt); err != nil {
			return nil, fmt.Errorf("scanning migration row: %w", err)
		}
		r.AppliedAt, _ = time.Parse(time.RFC3339, appliedAt) //nolint:errcheck // Format is controlled
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating migrations: %w", err)
	}
	return records, nil
}

func (db *DB) applyMigration(ctx context.Context, m Migration) error {
	return db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, m.UpSQL); err != nil {
			return fmt.Errorf("executing SQL: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)",
			m.Version, m.Name, time.Now().UTC().Format(time.RFC3339),
		); err != nil {
			return fmt.Errorf("recording migration: %w", err)
		}
		return nil
	})
}

// migrationFile is a parsed YYYYMMDD_HHMMSS_name.(up|down).sql filename.
type migrationFile struct {
	version string
	name    string
	up      bool
}

// parseMigrationFile splits a migration filename. ok is false for anything
// else in the directory, such as a README.
func parseMigrationFile(filename string) (f migrationFile, ok bool) {
	stem, found := strings.CutSuffix(filename, ".sql")
	if !found {
		return f, false
	}
	switch {
	case strings.HasSuffix(stem, ".up"):
		stem, f.up = strings.TrimSuffix(stem, ".up"), true
	case strings.HasSuffix(stem, ".down"):
		stem = strings.TrimSuffix(stem, ".down")
	default:
		return f, false
	}

	date, rest, found := strings.Cut(stem, "_")
	if !found || date == "" {
		return f, false
	}
	clock, name, _ := strings.Cut(rest, "_")
	if clock == "" {
		return f, false
	}
	f.version = date + "_" + clock
	f.name = name
	return f, true
}

// loadMigrations reads every migration pair from src, oldest first.
// A missing source or directory yields no migrations.
func loadMigrations(src migrationSource) ([]Migration, error) {
	if src.fsys == nil {
		return nil, nil
	}
	entries, err := fs.ReadDir(src.fsys, src.dir)
	if err != nil {
		return nil, nil //nolint:nilerr // No directory means no migrations
	}

	byVersion := make(map[string]*Migration)
	downs := make(map[string]string)
	for _, entry := range entries {
		f, ok := parseMigrationFile(entry.Name())
		if entry.IsDir() || !ok {
			continue
		}
		if !f.up {
			downs[f.version] = entry.Name()
			continue
		}
		body, err := readMigration(src, entry.Name())
		if err != nil {
			return nil, err
		}
		byVersion[f.version] = &Migration{Version: f.version, Name: f.name, UpSQL: body}
	}

	for version, filename := range downs {
		m, ok := byVersion[version]
		if !ok {
			return nil, fmt.Errorf("migration %s has a down file but no up file", version)
		}
		body, err := readMigration(src, filename)
		if err != nil {
			return nil, err
		}
		m.DownSQL = body
	}

	migrations := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		migrations = append(migrations, *m)
	}
	slices.SortFunc(migrations, func(a, b Migration) int {
		return strings.Compare(a.Version, b.Version)
	})
	return migrations, nil
}

func readMigration(src migrationSource, filename string) (string, error) {
	b, err := fs.ReadFile(src.fsys, path.Join(src.dir, filename))
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", filename, err)
	}
	return string(b), nil
}
