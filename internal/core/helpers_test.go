package core

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/kilupskalvis/finsync/internal/models"
	"github.com/kilupskalvis/finsync/internal/store"
	"github.com/stretchr/testify/require"
)

// mockClient implements remote.Client with tracking for sync tests.
type mockClient struct {
	mu sync.Mutex

	pushErr error
	pushed  [][]*models.ChangeRecord
	onPush  func() // runs after the batch is captured, before returning

	pullResp  []*models.ChangeRecord
	pullErr   error
	pullSince []string
}

func (m *mockClient) Push(_ context.Context, changes []*models.ChangeRecord) error {
	m.mu.Lock()
	m.pushed = append(m.pushed, changes)
	hook, err := m.onPush, m.pushErr
	m.mu.Unlock()

	if hook != nil {
		hook()
	}
	return err
}

func (m *mockClient) Pull(_ context.Context, since string) ([]*models.ChangeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pullSince = append(m.pullSince, since)
	if m.pullErr != nil {
		return nil, m.pullErr
	}
	// Hand out copies; Prepare rewrites timestamps in place.
	out := make([]*models.ChangeRecord, len(m.pullResp))
	for i, c := range m.pullResp {
		cp := *c
		out[i] = &cp
	}
	return out, nil
}

func (m *mockClient) pushCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pushed)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	syncer    *Syncer
	client    *mockClient
	open      store.Opener
	watermark *Watermark
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	open := store.NewOpener(filepath.Join(dir, "local.db"))
	wm := NewWatermark(filepath.Join(dir, "last_pull_ts"))
	client := &mockClient{}

	s, err := New(Options{Open: open, Client: client, Watermark: wm, Logger: discardLogger()})
	require.NoError(t, err)
	require.NoError(t, s.EnsureSchema(context.Background()))

	return &testEnv{syncer: s, client: client, open: open, watermark: wm}
}

// withStore runs fn against a freshly opened local store.
func (e *testEnv) withStore(t *testing.T, fn func(st *store.Store)) {
	t.Helper()
	st, err := e.open(context.Background())
	require.NoError(t, err)
	defer st.Close()
	fn(st)
}

func (e *testEnv) addTransaction(t *testing.T, userID int64, amount string) *models.Transaction {
	t.Helper()
	txn := &models.Transaction{
		UserID:      userID,
		Description: "Groceries",
		Usage:       "Food",
		Amount:      decimalOf(t, amount),
	}
	e.withStore(t, func(st *store.Store) {
		require.NoError(t, st.CreateTransaction(context.Background(), txn))
	})
	return txn
}

func (e *testEnv) pending(t *testing.T) int {
	t.Helper()
	var n int
	e.withStore(t, func(st *store.Store) {
		var err error
		n, err = st.CountPendingChanges(context.Background())
		require.NoError(t, err)
	})
	return n
}

func (e *testEnv) getTransaction(t *testing.T, id int64) (*models.Transaction, error) {
	t.Helper()
	var (
		txn *models.Transaction
		err error
	)
	e.withStore(t, func(st *store.Store) {
		txn, err = st.GetTransaction(context.Background(), id)
	})
	return txn, err
}

var baseTime = time.Date(2025, 5, 4, 10, 0, 0, 0, time.UTC)

// ts returns a canonical timestamp sec seconds after baseTime.
func ts(sec int) string {
	return models.FormatTimestamp(baseTime.Add(time.Duration(sec) * time.Second))
}

func txPayload(amount string) map[string]any {
	return map[string]any{
		"user_id":     1,
		"date":        "2025-05-04",
		"description": "Remote",
		"usage":       "Sync",
		"amount":      amount,
	}
}

func change(table string, op models.OperationType, id int64, data map[string]any, at string) *models.ChangeRecord {
	return &models.ChangeRecord{Table: table, Operation: op, RowID: id, Data: data, Timestamp: at}
}
