package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kilupskalvis/finsync/internal/models"
	"github.com/shopspring/decimal"
)

// Local mutations go through the functions in this file. Each one writes the
// business row and its changelog entry in a single transaction.

func ownerOf(table models.Table, id int64, row Row) int64 {
	if table == models.TableUsers {
		return id
	}
	owner, _ := row["user_id"].(int64)
	return owner
}

func (t *Tx) nextID(ctx context.Context, table models.Table) (int64, error) {
	var id int64
	err := t.queryRow(ctx, fmt.Sprintf("SELECT COALESCE(MAX(id), 0) + 1 FROM %s", quoteIdent(table.String()))).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("allocate %s id: %w", table, err)
	}
	return id, nil
}

// insertRow stores a new row and records an insert carrying the full row
func (s *Store) insertRow(ctx context.Context, table models.Table, id int64, data map[string]any) (int64, error) {
	tx, err := s.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if id == 0 {
		if id, err = tx.nextID(ctx, table); err != nil {
			return 0, err
		}
	}
	if _, err := tx.Get(ctx, table, id); err == nil {
		return 0, fmt.Errorf("%s %d already exists", table, id)
	} else if !errors.Is(err, ErrNotFound) {
		return 0, err
	}

	if err := tx.Upsert(ctx, table, id, data); err != nil {
		return 0, err
	}
	row, err := tx.Get(ctx, table, id)
	if err != nil {
		return 0, err
	}

	rec := models.NewChangeRecord(table, models.OperationInsert, id, ownerOf(table, id, row), row)
	if err := tx.AppendChange(ctx, rec); err != nil {
		return 0, err
	}
	return id, tx.Commit()
}

// updateRow sets fields on an existing row and records the update
func (s *Store) updateRow(ctx context.Context, table models.Table, id int64, fields map[string]any) error {
	tx, err := s.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Get(ctx, table, id); err != nil {
		return err
	}
	if _, err := tx.Update(ctx, table, id, fields); err != nil {
		return err
	}

	// The owner is read back so an update that moves the row to another
	// user is pushed with that user's changes.
	row, err := tx.Get(ctx, table, id)
	if err != nil {
		return err
	}
	rec := models.NewChangeRecord(table, models.OperationUpdate, id, ownerOf(table, id, row), fields)
	if err := tx.AppendChange(ctx, rec); err != nil {
		return err
	}
	return tx.Commit()
}

// deleteRow removes a row and records the delete
func (s *Store) deleteRow(ctx context.Context, table models.Table, id int64) error {
	tx, err := s.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	row, err := tx.Get(ctx, table, id)
	if err != nil {
		return err
	}
	if _, err := tx.Delete(ctx, table, id); err != nil {
		return err
	}

	rec := models.NewChangeRecord(table, models.OperationDelete, id, ownerOf(table, id, row), nil)
	if err := tx.AppendChange(ctx, rec); err != nil {
		return err
	}
	return tx.Commit()
}

// CreateUser stores a user. The password hash is produced by the caller.
func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now

	id, err := s.insertRow(ctx, models.TableUsers, u.ID, u.Data())
	if err != nil {
		return err
	}
	u.ID = id
	return nil
}

// CreateTransaction books a transaction and assigns its id
func (s *Store) CreateTransaction(ctx context.Context, t *models.Transaction) error {
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	if t.Date.IsZero() {
		t.Date = now
	}

	id, err := s.insertRow(ctx, models.TableTransactions, t.ID, t.Data())
	if err != nil {
		return err
	}
	t.ID = id
	return nil
}

// UpdateTransaction sets the given columns on a transaction
func (s *Store) UpdateTransaction(ctx context.Context, id int64, fields map[string]any) error {
	withStamp := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		withStamp[k] = v
	}
	withStamp["updated_at"] = models.FormatTimestamp(time.Now())
	return s.updateRow(ctx, models.TableTransactions, id, withStamp)
}

// SetTransactionPaid toggles the paid flag
func (s *Store) SetTransactionPaid(ctx context.Context, id int64, paid bool) error {
	return s.UpdateTransaction(ctx, id, map[string]any{"paid": paid})
}

// DeleteTransaction removes a transaction
func (s *Store) DeleteTransaction(ctx context.Context, id int64) error {
	return s.deleteRow(ctx, models.TableTransactions, id)
}

// CreateRecurringEntry stores a fixed cost and assigns its id
func (s *Store) CreateRecurringEntry(ctx context.Context, r *models.RecurringEntry) error {
	now := time.Now().UTC()
	r.CreatedAt, r.UpdatedAt = now, now
	if r.StartDate.IsZero() {
		r.StartDate = now
	}

	id, err := s.insertRow(ctx, models.TableRecurringEntries, r.ID, r.Data())
	if err != nil {
		return err
	}
	r.ID = id
	return nil
}

// DeleteRecurringEntry removes a fixed cost
func (s *Store) DeleteRecurringEntry(ctx context.Context, id int64) error {
	return s.deleteRow(ctx, models.TableRecurringEntries, id)
}

// GetTransaction loads one transaction
func (s *Store) GetTransaction(ctx context.Context, id int64) (*models.Transaction, error) {
	tx, err := s.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	row, err := tx.Get(ctx, models.TableTransactions, id)
	if err != nil {
		return nil, err
	}
	return transactionFromRow(row)
}

// ListTransactions returns a user's transactions by date
func (s *Store) ListTransactions(ctx context.Context, userID int64) ([]*models.Transaction, error) {
	ts, _ := Spec(models.TableTransactions)
	rows, err := s.query(ctx, selectColumns(ts)+" WHERE user_id = ? ORDER BY date, id", userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var list []*models.Transaction
	for rows.Next() {
		row, err := scanRow(ts, rows)
		if err != nil {
			return nil, err
		}
		t, err := transactionFromRow(row)
		if err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

func transactionFromRow(row Row) (*models.Transaction, error) {
	t := &models.Transaction{
		ID:          asInt(row["id"]),
		UserID:      asInt(row["user_id"]),
		Description: asString(row["description"]),
		Usage:       asString(row["usage"]),
	}

	amount, err := decimal.NewFromString(asString(row["amount"]))
	if err != nil {
		return nil, fmt.Errorf("transaction %d amount: %w", t.ID, err)
	}
	t.Amount = amount
	t.Paid, _ = row["paid"].(bool)

	if v, ok := row["recurring_id"].(int64); ok {
		t.RecurringID = &v
	}
	t.Date = asTime(row["date"])
	t.CreatedAt = asTime(row["created_at"])
	t.UpdatedAt = asTime(row["updated_at"])
	return t, nil
}

func asInt(v any) int64 {
	n, _ := v.(int64)
	return n
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asTime(v any) time.Time {
	s, ok := v.(string)
	if !ok {
		return time.Time{}
	}
	t, _ := models.ParseTimestamp(s)
	return t
}
