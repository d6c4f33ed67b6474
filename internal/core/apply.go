package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/kilupskalvis/finsync/internal/models"
	"github.com/kilupskalvis/finsync/internal/store"
)

// Outcome is what applying one change did to the business tables.
type Outcome int

const (
	OutcomeApplied Outcome = iota
	OutcomeNoRow           // update or delete of a row that does not exist
	OutcomeUnknownTable
	OutcomeMalformed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeNoRow:
		return "no_row"
	case OutcomeUnknownTable:
		return "unknown_table"
	case OutcomeMalformed:
		return "malformed"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// ApplyStats counts the outcomes of an applied batch.
type ApplyStats struct {
	Applied   int
	NoRow     int
	Unknown   int
	Malformed int
}

// Add counts one outcome.
func (s *ApplyStats) Add(o Outcome) {
	switch o {
	case OutcomeApplied:
		s.Applied++
	case OutcomeNoRow:
		s.NoRow++
	case OutcomeUnknownTable:
		s.Unknown++
	case OutcomeMalformed:
		s.Malformed++
	}
}

// Total returns the number of changes looked at.
func (s ApplyStats) Total() int {
	return s.Applied + s.NoRow + s.Unknown + s.Malformed
}

// Prepare validates a received batch and orders it for apply. Timestamps are
// rewritten to the canonical layout and the batch is stable-sorted by them,
// so equal timestamps keep their received order. Nil entries (elements that
// failed to decode) and records with an unparseable timestamp or operation
// are dropped with a warning.
func Prepare(changes []*models.ChangeRecord, logger *slog.Logger) ([]*models.ChangeRecord, int) {
	valid := make([]*models.ChangeRecord, 0, len(changes))
	dropped := 0

	for _, c := range changes {
		if c == nil {
			logger.Warn("skipping change that could not be decoded")
			dropped++
			continue
		}
		ts, err := models.NormalizeTimestamp(c.Timestamp)
		if err != nil {
			logger.Warn("skipping change with invalid timestamp", "table", c.Table, "id", c.RowID, "ts", c.Timestamp)
			dropped++
			continue
		}
		op, err := models.ParseOperation(string(c.Operation))
		if err != nil {
			logger.Warn("skipping change with invalid operation", "table", c.Table, "id", c.RowID, "op", c.Operation)
			dropped++
			continue
		}
		c.Timestamp = ts
		c.Operation = op
		valid = append(valid, c)
	}

	sort.SliceStable(valid, func(i, j int) bool {
		return valid[i].Timestamp < valid[j].Timestamp
	})
	return valid, dropped
}

// ApplyChange replays one prepared change inside tx. A returned error is a
// database failure and must abort the batch; bad records are reported
// through the outcome instead.
func ApplyChange(ctx context.Context, tx *store.Tx, c *models.ChangeRecord, logger *slog.Logger) (Outcome, error) {
	table := c.Kind()
	if !table.Known() {
		logger.Debug("skipping change for unknown table", "table", c.Table, "id", c.RowID)
		return OutcomeUnknownTable, nil
	}
	if c.RowID <= 0 {
		logger.Warn("skipping change with invalid row id", "table", c.Table, "id", c.RowID)
		return OutcomeMalformed, nil
	}

	var (
		found = true
		err   error
	)
	switch c.Operation {
	case models.OperationInsert:
		err = tx.Upsert(ctx, table, c.RowID, c.Data)
	case models.OperationUpdate:
		found, err = tx.Update(ctx, table, c.RowID, c.Data)
	case models.OperationDelete:
		found, err = tx.Delete(ctx, table, c.RowID)
	default:
		logger.Warn("skipping change with invalid operation", "table", c.Table, "id", c.RowID, "op", c.Operation)
		return OutcomeMalformed, nil
	}

	if errors.Is(err, store.ErrMalformedData) {
		logger.Warn("skipping change with malformed data", "table", c.Table, "id", c.RowID, "error", err)
		return OutcomeMalformed, nil
	}
	if err != nil {
		return OutcomeMalformed, fmt.Errorf("apply %s %s %d: %w", c.Operation, c.Table, c.RowID, err)
	}
	if !found {
		logger.Debug("change targets missing row", "table", c.Table, "id", c.RowID, "op", c.Operation)
		return OutcomeNoRow, nil
	}
	return OutcomeApplied, nil
}

// ApplyBatch replays prepared changes in order inside tx. It stops at the
// first database error; the caller rolls the transaction back.
func ApplyBatch(ctx context.Context, tx *store.Tx, changes []*models.ChangeRecord, logger *slog.Logger) (ApplyStats, error) {
	var stats ApplyStats
	for _, c := range changes {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		o, err := ApplyChange(ctx, tx, c, logger)
		if err != nil {
			return stats, err
		}
		stats.Add(o)
	}
	return stats, nil
}
