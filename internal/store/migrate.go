package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const postgresVersionTable = "ijdorm_schema_version"

// Migrate applies scripts in order. Script i brings the schema to version
// i+1; scripts at or below the current version are skipped, so Migrate is
// idempotent for a fixed list.
//
// SQLite tracks the version in PRAGMA user_version, Postgres in a
// one-row table. It returns the resulting version.
func (s *Store) Migrate(ctx context.Context, scripts []string) (int, error) {
	version, err := s.schemaVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("get schema version: %w", err)
	}

	for i := version; i < len(scripts); i++ {
		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return version, fmt.Errorf("begin migration %d: %w", i+1, err)
		}
		if _, err := tx.ExecContext(ctx, scripts[i]); err != nil {
			tx.Rollback()
			return version, fmt.Errorf("migration %d: %w", i+1, err)
		}
		if err := s.setSchemaVersion(ctx, tx, i+1); err != nil {
			tx.Rollback()
			return version, fmt.Errorf("record migration %d: %w", i+1, err)
		}
		if err := tx.Commit(); err != nil {
			return version, fmt.Errorf("commit migration %d: %w", i+1, err)
		}
		version = i + 1
		s.logger.Debug("applied migration", "version", version)
	}

	return version, nil
}

func (s *Store) schemaVersion(ctx context.Context) (int, error) {
	var version int
	if s.Driver() == DriverSQLite {
		err := s.db.GetContext(ctx, &version, "PRAGMA user_version")
		return version, err
	}

	create := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (version INTEGER NOT NULL)", postgresVersionTable)
	if _, err := s.db.ExecContext(ctx, create); err != nil {
		return 0, err
	}
	err := s.db.GetContext(ctx, &version,
		fmt.Sprintf("SELECT COALESCE(MAX(version), 0) FROM %s", postgresVersionTable))
	return version, err
}

func (s *Store) setSchemaVersion(ctx context.Context, tx *sqlx.Tx, version int) error {
	if s.Driver() == DriverSQLite {
		_, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", version))
		return err
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", postgresVersionTable)); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, s.db.Rebind(fmt.Sprintf("INSERT INTO %s (version) VALUES (?)", postgresVersionTable)), version)
	return err
}
