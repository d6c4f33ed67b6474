package store

import (
	"context"
	"fmt"
)

// addedColumn is a column introduced after the first released schema.
// Older local files get it through ALTER TABLE on startup.
type addedColumn struct {
	table      string
	column     string
	definition string
}

var addedColumns = []addedColumn{
	{"users", "is_admin", "INTEGER NOT NULL DEFAULT 0"},
	{"transactions", "created_at", "TEXT"},
	{"transactions", "updated_at", "TEXT"},
	{"changelog_local", "uid", "TEXT"},
	{"changelog_local", "owner_id", "BIGINT"},
}

// EnsureColumns adds columns missing from tables created by older versions.
// This only detects absent columns; it never rewrites or drops anything.
func (s *Store) EnsureColumns(ctx context.Context) error {
	for _, c := range addedColumns {
		exists, err := s.hasColumn(ctx, c.table, c.column)
		if err != nil {
			return fmt.Errorf("inspect %s.%s: %w", c.table, c.column, err)
		}
		if exists {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", quoteIdent(c.table), quoteIdent(c.column), c.definition)
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("add column %s.%s: %w", c.table, c.column, err)
		}
	}

	_, err := s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_changelog_local_owner ON changelog_local(owner_id)`)
	if err != nil {
		return fmt.Errorf("create changelog index: %w", err)
	}
	return nil
}

func (s *Store) hasColumn(ctx context.Context, table, column string) (bool, error) {
	var count int
	var err error
	if s.dialect == Postgres {
		err = s.queryRow(ctx, `
			SELECT COUNT(*) FROM information_schema.columns
			WHERE table_schema = current_schema() AND table_name = ? AND column_name = ?
		`, table, column).Scan(&count)
	} else {
		// Table names come from addedColumns, never from input.
		err = s.queryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM pragma_table_info('%s') WHERE name = ?`, table), column).Scan(&count)
	}
	return count > 0, err
}

// Bootstrap prepares a store for use: missing tables, then missing columns
func (s *Store) Bootstrap(ctx context.Context) error {
	if err := s.EnsureSchema(ctx); err != nil {
		return err
	}
	return s.EnsureColumns(ctx)
}
