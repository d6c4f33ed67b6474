package core

import (
	"context"
	"fmt"

	"github.com/kilupskalvis/finsync/internal/store"
)

// Pull fetches changes newer than the watermark and applies them in
// timestamp order inside one local transaction. Any database error rolls the
// whole batch back and leaves the watermark where it was. After commit the
// watermark moves to the newest received timestamp.
func (s *Syncer) Pull(ctx context.Context) *PullResult {
	res := &PullResult{}

	since, err := s.watermark.Load()
	if err != nil {
		return s.pullFailed(res, err)
	}
	res.Since, res.Watermark = since, since

	received, err := s.client.Pull(ctx, since)
	if err != nil {
		return s.pullFailed(res, fmt.Errorf("fetch changes: %w", err))
	}
	res.Received = len(received)
	if len(received) == 0 {
		s.logger.Debug("nothing to pull", "since", since)
		res.Status = StatusNoop
		return res
	}

	changes, dropped := Prepare(received, s.logger)
	res.Dropped = dropped
	if len(changes) == 0 {
		// Every record was unusable; advancing past them needs a valid timestamp.
		res.Status = StatusOK
		return res
	}

	err = s.withStore(ctx, func(st *store.Store) error {
		tx, err := st.Begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		stats, err := ApplyBatch(ctx, tx, changes, s.logger)
		if err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit pulled changes: %w", err)
		}
		res.Stats = stats
		return nil
	})
	if err != nil {
		return s.pullFailed(res, err)
	}

	last := changes[len(changes)-1].Timestamp
	if _, err := s.watermark.Advance(last); err != nil {
		// Applied rows stay; the next pull replays them harmlessly.
		return s.pullFailed(res, err)
	}
	if res.Watermark < last {
		res.Watermark = last
	}

	res.Status = StatusOK
	s.logger.Info("pulled changes",
		"received", res.Received,
		"applied", res.Stats.Applied,
		"missing_rows", res.Stats.NoRow,
		"unknown", res.Stats.Unknown,
		"malformed", res.Stats.Malformed+res.Dropped,
		"watermark", res.Watermark,
	)
	return res
}

func (s *Syncer) pullFailed(res *PullResult, err error) *PullResult {
	s.logger.Warn("pull failed, watermark unchanged", "error", err, "watermark", res.Since)
	res.Status = StatusFailed
	res.Err = err
	return res
}
