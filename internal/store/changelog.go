package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kilupskalvis/finsync/internal/models"
)

func encodeData(data map[string]any) (string, error) {
	if len(data) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("marshal change data: %w", err)
	}
	return string(b), nil
}

// decodeData keeps numbers as json.Number so ids and amounts survive intact
func decodeData(raw sql.NullString) (map[string]any, error) {
	data := map[string]any{}
	if !raw.Valid || raw.String == "" || raw.String == "null" {
		return data, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(raw.String)))
	dec.UseNumber()
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("unmarshal change data: %w", err)
	}
	return data, nil
}

// AppendChange records a local mutation for the next push
func (t *Tx) AppendChange(ctx context.Context, rec *models.ChangeRecord) error {
	data, err := encodeData(rec.Data)
	if err != nil {
		return err
	}

	var owner any
	if rec.OwnerID != 0 {
		owner = rec.OwnerID
	}

	err = t.queryRow(ctx, `
		INSERT INTO changelog_local (uid, table_name, operation, row_id, owner_id, data, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`, rec.UID, rec.Table, string(rec.Operation), rec.RowID, owner, data, rec.Timestamp).Scan(&rec.Seq)
	if err != nil {
		return fmt.Errorf("append change: %w", err)
	}
	return nil
}

// PendingChanges returns the local changelog ordered by timestamp, limited
// to one owner when the scope is set
func (s *Store) PendingChanges(ctx context.Context, scope models.Scope) ([]*models.ChangeRecord, error) {
	query := `
		SELECT id, uid, table_name, operation, row_id, owner_id, data, timestamp
		FROM changelog_local`
	var args []any
	if !scope.All() {
		query += " WHERE owner_id = ?"
		args = append(args, scope.UserID)
	}
	query += " ORDER BY timestamp, id"

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query changelog: %w", err)
	}
	defer rows.Close()

	var changes []*models.ChangeRecord
	for rows.Next() {
		var (
			rec   models.ChangeRecord
			uid   sql.NullString
			op    string
			owner sql.NullInt64
			data  sql.NullString
		)
		if err := rows.Scan(&rec.Seq, &uid, &rec.Table, &op, &rec.RowID, &owner, &data, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("scan change: %w", err)
		}
		rec.UID = uid.String
		rec.Operation = models.OperationType(op)
		rec.OwnerID = owner.Int64
		if rec.Data, err = decodeData(data); err != nil {
			return nil, fmt.Errorf("change %d: %w", rec.Seq, err)
		}
		// Rows written by older clients carry zone-less timestamps.
		if ts, err := models.NormalizeTimestamp(rec.Timestamp); err == nil {
			rec.Timestamp = ts
		}
		changes = append(changes, &rec)
	}
	return changes, rows.Err()
}

// DeleteChanges removes delivered changelog rows by sequence number
func (s *Store) DeleteChanges(ctx context.Context, seqs []int64) (int64, error) {
	if len(seqs) == 0 {
		return 0, nil
	}

	tx, err := s.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var deleted int64
	const chunk = 500
	for start := 0; start < len(seqs); start += chunk {
		end := min(start+chunk, len(seqs))
		part := seqs[start:end]

		args := make([]any, len(part))
		for i, seq := range part {
			args[i] = seq
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(part)), ", ")

		res, err := tx.exec(ctx, "DELETE FROM changelog_local WHERE id IN ("+placeholders+")", args...)
		if err != nil {
			return 0, fmt.Errorf("delete changes: %w", err)
		}
		n, _ := res.RowsAffected()
		deleted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit changelog delete: %w", err)
	}
	return deleted, nil
}

// CountPendingChanges returns the number of undelivered local changes
func (s *Store) CountPendingChanges(ctx context.Context) (int, error) {
	var n int
	err := s.queryRow(ctx, "SELECT COUNT(*) FROM changelog_local").Scan(&n)
	return n, err
}
