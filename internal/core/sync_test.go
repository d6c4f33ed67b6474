package core

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/kilupskalvis/finsync/internal/models"
	"github.com/kilupskalvis/finsync/internal/remote"
	"github.com/kilupskalvis/finsync/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RequiresCollaborators(t *testing.T) {
	open := store.NewOpener(filepath.Join(t.TempDir(), "local.db"))
	wm := NewWatermark(filepath.Join(t.TempDir(), "wm"))

	_, err := New(Options{Client: &mockClient{}, Watermark: wm})
	assert.Error(t, err)
	_, err = New(Options{Open: open, Watermark: wm})
	assert.Error(t, err)
	_, err = New(Options{Open: open, Client: &mockClient{}})
	assert.Error(t, err)

	s, err := New(Options{Open: open, Client: &mockClient{}, Watermark: wm})
	require.NoError(t, err)
	assert.NotNil(t, s.logger)
}

func TestSync_CreatesSchemaOnFreshFile(t *testing.T) {
	dir := t.TempDir()
	open := store.NewOpener(filepath.Join(dir, "fresh.db"))
	s, err := New(Options{Open: open, Client: &mockClient{}, Watermark: NewWatermark(filepath.Join(dir, "wm")), Logger: discardLogger()})
	require.NoError(t, err)

	res := s.Sync(context.Background(), Scope{})

	require.NoError(t, res.Err())
	assert.Equal(t, StatusNoop, res.Push.Status)
	assert.Equal(t, StatusNoop, res.Pull.Status)

	st, err := open(context.Background())
	require.NoError(t, err)
	defer st.Close()
	n, err := st.CountPendingChanges(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSync_PushFailureDoesNotBlockPull(t *testing.T) {
	env := newTestEnv(t)
	env.addTransaction(t, 1, "10")
	env.client.pushErr = &remote.RemoteError{Status: 503, Code: "unavailable"}
	env.client.pullResp = []*models.ChangeRecord{
		change("transactions", models.OperationInsert, 50, txPayload("5"), ts(1)),
	}

	res := env.syncer.Sync(context.Background(), Scope{})

	assert.Equal(t, StatusFailed, res.Push.Status)
	assert.Equal(t, StatusOK, res.Pull.Status)
	assert.False(t, res.OK())

	var re *remote.RemoteError
	assert.True(t, errors.As(res.Err(), &re))
	assert.Contains(t, res.Err().Error(), "push:")

	_, err := env.getTransaction(t, 50)
	assert.NoError(t, err)
	assert.Equal(t, 1, env.pending(t))
}

func TestSync_SecondRunIsNoop(t *testing.T) {
	env := newTestEnv(t)
	env.addTransaction(t, 1, "10")
	env.client.pullResp = []*models.ChangeRecord{
		change("transactions", models.OperationInsert, 50, txPayload("5"), ts(1)),
	}

	first := env.syncer.Sync(context.Background(), Scope{})
	require.NoError(t, first.Err())
	wm, _ := env.watermark.Load()

	// Server now has nothing newer than the watermark.
	env.client.pullResp = nil
	second := env.syncer.Sync(context.Background(), Scope{})

	require.NoError(t, second.Err())
	assert.Equal(t, StatusNoop, second.Push.Status)
	assert.Equal(t, StatusNoop, second.Pull.Status)
	assert.Equal(t, 1, env.client.pushCalls())
	assert.Equal(t, []string{"", wm}, env.client.pullSince)

	again, _ := env.watermark.Load()
	assert.Equal(t, wm, again)
}

func TestSync_SchemaFailureStopsStages(t *testing.T) {
	failing := func(ctx context.Context) (*store.Store, error) {
		return nil, errors.New("disk full")
	}
	s, err := New(Options{Open: failing, Client: &mockClient{}, Watermark: NewWatermark(filepath.Join(t.TempDir(), "wm")), Logger: discardLogger()})
	require.NoError(t, err)

	res := s.Sync(context.Background(), Scope{})

	require.Error(t, res.Err())
	assert.Contains(t, res.Err().Error(), "disk full")
	assert.Nil(t, res.Push)
	assert.Nil(t, res.Pull)
}

func TestResult_Err(t *testing.T) {
	assert.NoError(t, (&Result{}).Err())
	assert.NoError(t, (&Result{Push: &PushResult{Status: StatusOK}, Pull: &PullResult{Status: StatusNoop}}).Err())

	pushErr, pullErr := errors.New("a"), errors.New("b")
	err := (&Result{Push: &PushResult{Err: pushErr}, Pull: &PullResult{Err: pullErr}}).Err()
	assert.ErrorIs(t, err, pushErr)
	assert.ErrorIs(t, err, pullErr)
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "noop", StatusNoop.String())
	assert.Equal(t, "ok", StatusOK.String())
	assert.Equal(t, "failed", StatusFailed.String())
}
