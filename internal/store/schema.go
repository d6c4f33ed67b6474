package store

import (
	"context"
	"fmt"
	"time"

	"github.com/kilupskalvis/finsync/internal/models"
)

// ColumnKind is the logical type of a replicated column
type ColumnKind int

const (
	KindInt ColumnKind = iota
	KindText
	KindDecimal
	KindBool
	KindTime
)

// Column describes one replicated business-table column
type Column struct {
	Name     string
	Kind     ColumnKind
	Nullable bool
	Default  func() any // filled in on insert when the payload omits the column
}

// TableSpec is the typed column list of a replicated table
type TableSpec struct {
	Table   models.Table
	Columns []Column
}

// Column looks up a column by name
func (ts *TableSpec) Column(name string) (Column, bool) {
	for _, c := range ts.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

func zero() any  { return int64(0) }
func nowTS() any { return models.FormatTimestamp(time.Now()) }

var tableSpecs = map[models.Table]*TableSpec{
	models.TableUsers: {
		Table: models.TableUsers,
		Columns: []Column{
			{Name: "id", Kind: KindInt},
			{Name: "username", Kind: KindText},
			{Name: "password_hash", Kind: KindText},
			{Name: "is_admin", Kind: KindBool, Default: zero},
			{Name: "created_at", Kind: KindTime, Default: nowTS},
			{Name: "updated_at", Kind: KindTime, Default: nowTS},
		},
	},
	models.TableRecurringEntries: {
		Table: models.TableRecurringEntries,
		Columns: []Column{
			{Name: "id", Kind: KindInt},
			{Name: "user_id", Kind: KindInt},
			{Name: "description", Kind: KindText},
			{Name: "usage", Kind: KindText},
			{Name: "amount", Kind: KindDecimal},
			{Name: "duration", Kind: KindInt},
			{Name: "start_date", Kind: KindTime, Default: nowTS},
			{Name: "created_at", Kind: KindTime, Default: nowTS},
			{Name: "updated_at", Kind: KindTime, Default: nowTS},
		},
	},
	models.TableTransactions: {
		Table: models.TableTransactions,
		Columns: []Column{
			{Name: "id", Kind: KindInt},
			{Name: "user_id", Kind: KindInt},
			{Name: "date", Kind: KindTime},
			{Name: "description", Kind: KindText},
			{Name: "usage", Kind: KindText},
			{Name: "amount", Kind: KindDecimal},
			{Name: "paid", Kind: KindBool, Default: zero},
			{Name: "recurring_id", Kind: KindInt, Nullable: true},
			{Name: "created_at", Kind: KindTime, Nullable: true},
			{Name: "updated_at", Kind: KindTime, Nullable: true},
		},
	},
}

// Spec returns the column spec of a known table
func Spec(t models.Table) (*TableSpec, bool) {
	ts, ok := tableSpecs[t]
	return ts, ok
}

func schemaStatements(d Dialect) []string {
	id, serial, bigint := d.rowIDType(), d.serialType(), d.bigint()

	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS users (
			id            %s,
			username      TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			is_admin      INTEGER NOT NULL DEFAULT 0,
			created_at    TEXT NOT NULL,
			updated_at    TEXT NOT NULL
		)`, id),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS recurring_entries (
			id          %s,
			user_id     %s NOT NULL,
			description TEXT NOT NULL,
			"usage"     TEXT NOT NULL,
			amount      TEXT NOT NULL,
			duration    INTEGER NOT NULL,
			start_date  TEXT NOT NULL,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		)`, id, bigint),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS transactions (
			id           %s,
			user_id      %s NOT NULL,
			date         TEXT NOT NULL,
			description  TEXT NOT NULL,
			"usage"      TEXT NOT NULL,
			amount       TEXT NOT NULL,
			paid         INTEGER NOT NULL DEFAULT 0,
			recurring_id %s,
			created_at   TEXT,
			updated_at   TEXT
		)`, id, bigint, bigint),

		// Local mutations waiting to be pushed
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS changelog_local (
			id         %s,
			uid        TEXT,
			table_name TEXT NOT NULL,
			operation  TEXT NOT NULL,
			row_id     %s NOT NULL,
			owner_id   %s,
			data       TEXT,
			timestamp  TEXT NOT NULL
		)`, serial, bigint, bigint),

		// Changes accepted by the sync server; never deleted
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS changelog_remote (
			id          %s,
			uid         TEXT UNIQUE,
			table_name  TEXT NOT NULL,
			operation   TEXT NOT NULL,
			row_id      %s NOT NULL,
			data        TEXT,
			timestamp   TEXT NOT NULL,
			received_at TEXT NOT NULL
		)`, serial, bigint),

		`CREATE INDEX IF NOT EXISTS idx_transactions_user ON transactions(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_recurring_user ON recurring_entries(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_changelog_remote_ts ON changelog_remote(timestamp)`,
	}
}

// EnsureSchema creates the business tables and both changelog tables if they
// are missing. It is idempotent and does not alter existing tables.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements(s.dialect) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}
