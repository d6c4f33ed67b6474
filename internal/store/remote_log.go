package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kilupskalvis/finsync/internal/models"
)

// HasRemoteChange reports whether a change uid was already accepted
func (t *Tx) HasRemoteChange(ctx context.Context, uid string) (bool, error) {
	if uid == "" {
		return false, nil
	}
	var one int
	err := t.queryRow(ctx, "SELECT 1 FROM changelog_remote WHERE uid = ?", uid).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup change %s: %w", uid, err)
	}
	return true, nil
}

// AppendRemoteChange adds an accepted change to the durable remote log.
// The record timestamp must already be normalized.
func (t *Tx) AppendRemoteChange(ctx context.Context, rec *models.ChangeRecord) error {
	data, err := encodeData(rec.Data)
	if err != nil {
		return err
	}

	var uid any
	if rec.UID != "" {
		uid = rec.UID
	}

	_, err = t.exec(ctx, `
		INSERT INTO changelog_remote (uid, table_name, operation, row_id, data, timestamp, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, uid, rec.Table, string(rec.Operation), rec.RowID, data, rec.Timestamp, models.FormatTimestamp(time.Now()))
	if err != nil {
		return fmt.Errorf("append remote change: %w", err)
	}
	return nil
}

// RemoteChangesSince returns accepted changes with a timestamp strictly after
// since, oldest first. An empty since returns the whole log.
func (s *Store) RemoteChangesSince(ctx context.Context, since string) ([]*models.ChangeRecord, error) {
	query := `
		SELECT id, uid, table_name, operation, row_id, data, timestamp
		FROM changelog_remote`
	var args []any
	if since != "" {
		query += " WHERE timestamp > ?"
		args = append(args, since)
	}
	query += " ORDER BY timestamp, id"

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query remote changelog: %w", err)
	}
	defer rows.Close()

	changes := []*models.ChangeRecord{}
	for rows.Next() {
		var (
			rec  models.ChangeRecord
			uid  sql.NullString
			op   string
			data sql.NullString
		)
		if err := rows.Scan(&rec.Seq, &uid, &rec.Table, &op, &rec.RowID, &data, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("scan remote change: %w", err)
		}
		rec.UID = uid.String
		rec.Operation = models.OperationType(op)
		if rec.Data, err = decodeData(data); err != nil {
			return nil, fmt.Errorf("remote change %d: %w", rec.Seq, err)
		}
		changes = append(changes, &rec)
	}
	return changes, rows.Err()
}
