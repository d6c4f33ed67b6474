package core

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kilupskalvis/finsync/internal/models"
	"github.com/kilupskalvis/finsync/internal/store"
)

// Scope limits a push to one user's changes. The zero value pushes all.
type Scope = models.Scope

// Push delivers the pending local changelog and, once the server accepts it,
// removes exactly the delivered rows. Rows recorded while the request was in
// flight stay for the next push.
//
// A changelog whose JSON body would exceed MaxPushBytes is sent as several
// requests, oldest first. Each accepted request is cleared before the next
// is sent, so a failure part way through keeps only the undelivered tail.
func (s *Syncer) Push(ctx context.Context, scope Scope) *PushResult {
	res := &PushResult{}

	err := s.withStore(ctx, func(st *store.Store) error {
		changes, err := st.PendingChanges(ctx, scope)
		if err != nil {
			return fmt.Errorf("read changelog: %w", err)
		}
		if len(changes) == 0 {
			s.logger.Debug("nothing to push")
			res.Status = StatusNoop
			return nil
		}

		batches, err := splitBatches(changes, s.maxBytes)
		if err != nil {
			return err
		}
		if len(batches) > 1 {
			s.logger.Info("splitting large push", "changes", len(changes), "requests", len(batches))
		}
		for _, batch := range batches {
			if err := s.pushBatch(ctx, st, batch, res); err != nil {
				return err
			}
		}
		res.Status = StatusOK
		return nil
	})

	if err != nil {
		s.logger.Warn("push failed, changes kept for next sync", "error", err, "pushed", res.Pushed)
		res.Status = StatusFailed
		res.Err = err
		return res
	}
	if res.Status == StatusOK {
		s.logger.Info("pushed changes", "count", res.Pushed)
	}
	return res
}

func (s *Syncer) pushBatch(ctx context.Context, st *store.Store, batch []*models.ChangeRecord, res *PushResult) error {
	if err := s.client.Push(ctx, batch); err != nil {
		return fmt.Errorf("send %d changes: %w", len(batch), err)
	}
	res.Pushed += len(batch)

	seqs := make([]int64, len(batch))
	for i, c := range batch {
		seqs[i] = c.Seq
	}
	cleared, err := st.DeleteChanges(ctx, seqs)
	if err != nil {
		// Server has the batch; a resend is deduplicated by uid.
		return fmt.Errorf("clear delivered changes: %w", err)
	}
	res.Cleared += cleared
	return nil
}

// splitBatches cuts changes into runs whose encoded JSON array stays within
// maxBytes. A single record larger than maxBytes travels alone.
func splitBatches(changes []*models.ChangeRecord, maxBytes int64) ([][]*models.ChangeRecord, error) {
	var (
		batches [][]*models.ChangeRecord
		cur     []*models.ChangeRecord
		size    int64 = 2 // []
	)
	for _, c := range changes {
		b, err := json.Marshal(c)
		if err != nil {
			return nil, fmt.Errorf("encode change %s: %w", c.UID, err)
		}
		n := int64(len(b)) + 1 // separator
		if len(cur) > 0 && size+n > maxBytes {
			batches = append(batches, cur)
			cur, size = nil, 2
		}
		cur = append(cur, c)
		size += n
	}
	if len(cur) > 0 {
		batches = append(batches, cur)
	}
	return batches, nil
}
