package postgres

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migrationLockKey is the pg_advisory_lock key shared by every ledger
// instance, so replicas starting together apply the schema once.
const migrationLockKey int64 = 0x6c6564676572 // "ledger"

var ErrMigrationChanged = errors.New("applied migration was modified")

type migration struct {
	version  string
	body     string
	checksum string
}

// RunMigrations applies every embedded migration not yet recorded in
// schema_migrations, each inside its own transaction, while holding the
// ledger's advisory lock. A recorded migration whose embedded body no longer
// matches its checksum stops the run with ErrMigrationChanged.
func RunMigrations(ctx context.Context, db *sql.DB, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}

	migrations, err := loadMigrations(migrationsFS)
	if err != nil {
		return err
	}

	// session advisory locks belong to a connection, not to the pool
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire migration connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, migrationLockKey); err != nil {
		return fmt.Errorf("lock migrations: %w", err)
	}
	defer func() {
		if _, err := conn.ExecContext(context.WithoutCancel(ctx), `SELECT pg_advisory_unlock($1)`, migrationLockKey); err != nil {
			log.Warn("unlock migrations", zap.Error(err))
		}
	}()

	if err := ensureSchemaMigrationsTable(ctx, conn); err != nil {
		return err
	}

	applied, err := appliedChecksums(ctx, conn)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if sum, ok := applied[m.version]; ok {
			// rows recorded before checksums were tracked carry an empty sum
			if sum != "" && sum != m.checksum {
				return fmt.Errorf("%w: %s", ErrMigrationChanged, m.version)
			}
			continue
		}

		if err := applyMigration(ctx, conn, m); err != nil {
			return err
		}
		log.Info("migration applied", zap.String("version", m.version), zap.String("checksum", m.checksum[:12]))
	}

	return nil
}

func applyMigration(ctx context.Context, conn *sql.Conn, m migration) (err error) {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %q: %w", m.version, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, m.body); err != nil {
		return fmt.Errorf("execute migration %q: %w", m.version, err)
	}
	if _, err = tx.ExecContext(ctx, `INSERT INTO schema_migrations(version, checksum) VALUES ($1, $2)`, m.version, m.checksum); err != nil {
		return fmt.Errorf("record migration %q: %w", m.version, err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %q: %w", m.version, err)
	}
	return nil
}

func ensureSchemaMigrationsTable(ctx context.Context, conn *sql.Conn) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version TEXT PRIMARY KEY,
	checksum TEXT NOT NULL DEFAULT '',
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
ALTER TABLE schema_migrations ADD COLUMN IF NOT EXISTS checksum TEXT NOT NULL DEFAULT ''`

	if _, err := conn.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure schema_migrations table: %w", err)
	}
	return nil
}

func appliedChecksums(ctx context.Context, conn *sql.Conn) (map[string]string, error) {
	rows, err := conn.QueryContext(ctx, `SELECT version, checksum FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]string)
	for rows.Next() {
		var version, checksum string
		if err := rows.Scan(&version, &checksum); err != nil {
			return nil, fmt.Errorf("scan applied migration: %w", err)
		}
		applied[version] = checksum
	}
	return applied, rows.Err()
}

// loadMigrations reads the .sql files directly under migrations/ in version
// order.
func loadMigrations(fsys fs.FS) ([]migration, error) {
	files, err := migrationFiles(fsys)
	if err != nil {
		return nil, err
	}

	out := make([]migration, 0, len(files))
	for _, file := range files {
		body, err := fs.ReadFile(fsys, "migrations/"+file)
		if err != nil {
			return nil, fmt.Errorf("read migration %q: %w", file, err)
		}
		sum := sha256.Sum256(body)
		out = append(out, migration{version: file, body: string(body), checksum: hex.EncodeToString(sum[:])})
	}
	return out, nil
}

func migrationFiles(fsys fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(fsys, "migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(strings.ToLower(entry.Name()), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}
