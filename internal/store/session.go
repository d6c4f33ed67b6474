package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/kilupskalvis/finsync/internal/models"
)

// ErrNotFound is returned when a row does not exist
var ErrNotFound = errors.New("not found")

// Row is a business-table row keyed by column name
type Row map[string]any

// Tx is a unit of work over the business tables and changelogs.
// Nothing is visible to other connections until Commit.
type Tx struct {
	tx      *sql.Tx
	dialect Dialect
}

// Begin starts a transaction
func (s *Store) Begin(ctx context.Context) (*Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &Tx{tx: tx, dialect: s.dialect}, nil
}

// Commit makes the transaction's writes durable
func (t *Tx) Commit() error {
	return t.tx.Commit()
}

// Rollback discards the transaction. It is safe to call after Commit.
func (t *Tx) Rollback() error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

func (t *Tx) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, t.dialect.Rebind(query), args...)
}

func (t *Tx) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, t.dialect.Rebind(query), args...)
}

func (t *Tx) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, t.dialect.Rebind(query), args...)
}

func specFor(table models.Table) (*TableSpec, error) {
	ts, ok := Spec(table)
	if !ok {
		return nil, fmt.Errorf("table %s is not replicated", table)
	}
	return ts, nil
}

// sortedColumns returns the payload's column names in a stable order
func sortedColumns(data map[string]any) []string {
	cols := make([]string, 0, len(data))
	for c := range data {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

// Upsert inserts the row or, if the primary key exists, overwrites the
// columns present in data. The row id argument wins over any id in data.
func (t *Tx) Upsert(ctx context.Context, table models.Table, id int64, data map[string]any) error {
	ts, err := specFor(table)
	if err != nil {
		return err
	}

	row, _, err := ts.Normalize(data)
	if err != nil {
		return err
	}
	row["id"] = id
	present := make(map[string]bool, len(row))
	for c := range row {
		present[c] = true
	}
	if err := fillDefaults(ts, row); err != nil {
		return err
	}

	cols := sortedColumns(row)
	quoted := make([]string, len(cols))
	args := make([]any, len(cols))
	var sets []string
	for i, c := range cols {
		quoted[i] = quoteIdent(c)
		args[i] = row[c]
		// Defaulted columns only apply to fresh rows, never overwrite on conflict.
		if c != "id" && present[c] {
			sets = append(sets, fmt.Sprintf("%s = excluded.%s", quoted[i], quoted[i]))
		}
	}

	onConflict := "DO NOTHING"
	if len(sets) > 0 {
		onConflict = "DO UPDATE SET " + strings.Join(sets, ", ")
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (id) %s",
		quoteIdent(table.String()),
		strings.Join(quoted, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "),
		onConflict,
	)

	if _, err := t.exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert %s %d: %w", table, id, err)
	}
	return nil
}

// fillDefaults completes an insert payload. Every non-null column without a
// default must be present, otherwise the payload is malformed.
func fillDefaults(ts *TableSpec, row map[string]any) error {
	for _, c := range ts.Columns {
		if _, ok := row[c.Name]; ok {
			continue
		}
		switch {
		case c.Default != nil:
			row[c.Name] = c.Default()
		case c.Nullable:
			row[c.Name] = nil
		default:
			return fmt.Errorf("%w: %s.%s is required", ErrMalformedData, ts.Table, c.Name)
		}
	}
	return nil
}

// Get loads a row by primary key
func (t *Tx) Get(ctx context.Context, table models.Table, id int64) (Row, error) {
	ts, err := specFor(table)
	if err != nil {
		return nil, err
	}

	rows, err := t.query(ctx, selectColumns(ts)+" WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("get %s %d: %w", table, id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	return scanRow(ts, rows)
}

// Update sets the columns present in data on an existing row.
// It reports false, without error, when the row does not exist.
func (t *Tx) Update(ctx context.Context, table models.Table, id int64, data map[string]any) (bool, error) {
	ts, err := specFor(table)
	if err != nil {
		return false, err
	}

	row, _, err := ts.Normalize(data)
	if err != nil {
		return false, err
	}
	delete(row, "id")

	if len(row) == 0 {
		// Nothing to set; still report whether the row exists.
		var one int
		err := t.queryRow(ctx, fmt.Sprintf("SELECT 1 FROM %s WHERE id = ?", quoteIdent(table.String())), id).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return err == nil, err
	}

	cols := sortedColumns(row)
	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+1)
	for i, c := range cols {
		sets[i] = quoteIdent(c) + " = ?"
		args = append(args, row[c])
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", quoteIdent(table.String()), strings.Join(sets, ", "))
	res, err := t.exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("update %s %d: %w", table, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Delete removes a row. It reports false, without error, when the row does
// not exist.
func (t *Tx) Delete(ctx context.Context, table models.Table, id int64) (bool, error) {
	if _, err := specFor(table); err != nil {
		return false, err
	}

	res, err := t.exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", quoteIdent(table.String())), id)
	if err != nil {
		return false, fmt.Errorf("delete %s %d: %w", table, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Count returns the number of rows in a replicated table
func (t *Tx) Count(ctx context.Context, table models.Table) (int, error) {
	if _, err := specFor(table); err != nil {
		return 0, err
	}
	var n int
	err := t.queryRow(ctx, "SELECT COUNT(*) FROM "+quoteIdent(table.String())).Scan(&n)
	return n, err
}

func selectColumns(ts *TableSpec) string {
	cols := make([]string, len(ts.Columns))
	for i, c := range ts.Columns {
		cols[i] = quoteIdent(c.Name)
	}
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), quoteIdent(ts.Table.String()))
}

func scanRow(ts *TableSpec, rows *sql.Rows) (Row, error) {
	vals := make([]any, len(ts.Columns))
	ptrs := make([]any, len(ts.Columns))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("scan %s row: %w", ts.Table, err)
	}

	row := make(Row, len(ts.Columns))
	for i, c := range ts.Columns {
		row[c.Name] = fromDB(c, vals[i])
	}
	return row, nil
}
