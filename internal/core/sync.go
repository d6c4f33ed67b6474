// Package core implements the offline/online sync of the local database:
// pushing the local changelog, pulling remote changes past a watermark and
// the loop that runs both on an interval.
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kilupskalvis/finsync/internal/remote"
	"github.com/kilupskalvis/finsync/internal/store"
)

// DefaultMaxPushBytes bounds the JSON body of one push request. It sits well
// under the server's default body limit, so a changelog that fits is still
// sent in one request and only a large offline backlog is split.
const DefaultMaxPushBytes = 8 << 20

// Options wires a Syncer to its collaborators.
type Options struct {
	Open      store.Opener
	Client    remote.Client
	Watermark *Watermark
	Logger    *slog.Logger

	// MaxPushBytes caps the body of one push request; 0 selects DefaultMaxPushBytes.
	MaxPushBytes int64
}

// Syncer runs the push and pull stages against one local database and one
// remote. It holds no database handle between calls.
type Syncer struct {
	open      store.Opener
	client    remote.Client
	watermark *Watermark
	logger    *slog.Logger
	maxBytes  int64
}

// New validates opts and returns a Syncer.
func New(opts Options) (*Syncer, error) {
	if opts.Open == nil {
		return nil, errors.New("store opener is required")
	}
	if opts.Client == nil {
		return nil, errors.New("remote client is required")
	}
	if opts.Watermark == nil {
		return nil, errors.New("watermark is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxBytes := opts.MaxPushBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxPushBytes
	}
	return &Syncer{
		open:      opts.Open,
		client:    opts.Client,
		watermark: opts.Watermark,
		logger:    logger,
		maxBytes:  maxBytes,
	}, nil
}

// withStore opens the local store for the duration of fn.
func (s *Syncer) withStore(ctx context.Context, fn func(st *store.Store) error) error {
	st, err := s.open(ctx)
	if err != nil {
		return fmt.Errorf("open local store: %w", err)
	}
	defer st.Close()
	return fn(st)
}

// EnsureSchema creates any missing local tables and columns.
func (s *Syncer) EnsureSchema(ctx context.Context) error {
	return s.withStore(ctx, func(st *store.Store) error {
		return st.Bootstrap(ctx)
	})
}

// Sync runs schema bootstrap, push and pull in that order. A failed push
// does not stop the pull; the result carries each stage's outcome.
func (s *Syncer) Sync(ctx context.Context, scope Scope) *Result {
	res := &Result{}

	if err := s.EnsureSchema(ctx); err != nil {
		s.logger.Error("local schema bootstrap failed", "error", err)
		res.SchemaErr = err
		return res
	}

	res.Push = s.Push(ctx, scope)
	res.Pull = s.Pull(ctx)

	s.logger.Info("sync finished",
		"push", res.Push.Status.String(),
		"pushed", res.Push.Pushed,
		"pull", res.Pull.Status.String(),
		"applied", res.Pull.Stats.Applied,
		"watermark", res.Pull.Watermark,
	)
	return res
}
