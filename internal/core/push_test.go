package core

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/kilupskalvis/finsync/internal/models"
	"github.com/kilupskalvis/finsync/internal/remote"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decimalOf(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func TestPush_EmptyChangelogIsNoop(t *testing.T) {
	env := newTestEnv(t)

	res := env.syncer.Push(context.Background(), Scope{})

	assert.Equal(t, StatusNoop, res.Status)
	assert.NoError(t, res.Err)
	assert.Zero(t, env.client.pushCalls(), "no network call for an empty changelog")
}

func TestPush_ClearsDeliveredRows(t *testing.T) {
	env := newTestEnv(t)
	first := env.addTransaction(t, 1, "10")
	second := env.addTransaction(t, 1, "20")

	res := env.syncer.Push(context.Background(), Scope{})

	require.NoError(t, res.Err)
	assert.Equal(t, StatusOK, res.Status)
	assert.Equal(t, 2, res.Pushed)
	assert.Equal(t, int64(2), res.Cleared)

	require.Len(t, env.client.pushed, 1)
	batch := env.client.pushed[0]
	require.Len(t, batch, 2)
	assert.Equal(t, first.ID, batch[0].RowID)
	assert.Equal(t, second.ID, batch[1].RowID)
	assert.Equal(t, "transactions", batch[0].Table)
	assert.Equal(t, models.OperationInsert, batch[0].Operation)
	assert.NotEmpty(t, batch[0].UID)

	assert.Zero(t, env.pending(t))
}

func TestPush_FailureKeepsChangelog(t *testing.T) {
	env := newTestEnv(t)
	env.addTransaction(t, 1, "10")
	env.addTransaction(t, 1, "20")
	env.client.pushErr = &remote.RemoteError{Status: 500, Code: "internal_error"}

	res := env.syncer.Push(context.Background(), Scope{})

	assert.Equal(t, StatusFailed, res.Status)
	assert.Error(t, res.Err)
	assert.Zero(t, res.Pushed)
	assert.Equal(t, 2, env.pending(t))
}

func TestPush_RowsRecordedDuringPushSurvive(t *testing.T) {
	env := newTestEnv(t)
	env.addTransaction(t, 1, "10")

	env.client.onPush = func() {
		env.addTransaction(t, 1, "30")
	}

	res := env.syncer.Push(context.Background(), Scope{})
	require.NoError(t, res.Err)
	assert.Equal(t, 1, res.Pushed)
	assert.Equal(t, 1, env.pending(t), "change recorded mid-push waits for the next push")

	env.client.onPush = nil
	res = env.syncer.Push(context.Background(), Scope{})
	require.NoError(t, res.Err)
	assert.Equal(t, 1, res.Pushed)
	assert.Zero(t, env.pending(t))
}

func TestPush_ScopedToUser(t *testing.T) {
	env := newTestEnv(t)
	env.addTransaction(t, 1, "10")
	env.addTransaction(t, 2, "20")
	env.addTransaction(t, 1, "30")

	res := env.syncer.Push(context.Background(), models.UserScope(1))

	require.NoError(t, res.Err)
	assert.Equal(t, 2, res.Pushed)
	for _, c := range env.client.pushed[0] {
		assert.Equal(t, int64(1), c.OwnerID)
	}
	assert.Equal(t, 1, env.pending(t), "other user's change stays queued")
}

func TestPush_Repeated(t *testing.T) {
	env := newTestEnv(t)
	env.addTransaction(t, 1, "10")

	require.Equal(t, StatusOK, env.syncer.Push(context.Background(), Scope{}).Status)
	res := env.syncer.Push(context.Background(), Scope{})

	assert.Equal(t, StatusNoop, res.Status)
	assert.Equal(t, 1, env.client.pushCalls())
}

func TestPush_SplitsLargeBacklog(t *testing.T) {
	env := newTestEnv(t)
	env.syncer.maxBytes = 1 // every record goes alone
	for _, amount := range []string{"1", "2", "3"} {
		env.addTransaction(t, 1, amount)
	}

	res := env.syncer.Push(context.Background(), Scope{})

	require.NoError(t, res.Err)
	assert.Equal(t, StatusOK, res.Status)
	assert.Equal(t, 3, res.Pushed)
	assert.Equal(t, int64(3), res.Cleared)

	require.Len(t, env.client.pushed, 3)
	for _, batch := range env.client.pushed {
		assert.Len(t, batch, 1)
	}
	assert.Less(t, env.client.pushed[0][0].Seq, env.client.pushed[1][0].Seq, "requests go out oldest first")
	assert.Less(t, env.client.pushed[1][0].Seq, env.client.pushed[2][0].Seq)
	assert.Zero(t, env.pending(t))
}

func TestPush_FailedRequestKeepsOnlyUndelivered(t *testing.T) {
	env := newTestEnv(t)
	env.syncer.maxBytes = 1
	for _, amount := range []string{"1", "2", "3"} {
		env.addTransaction(t, 1, amount)
	}

	env.client.onPush = func() {
		env.client.mu.Lock()
		env.client.pushErr = &remote.RemoteError{Status: 500, Code: "internal_error"}
		env.client.mu.Unlock()
	}

	res := env.syncer.Push(context.Background(), Scope{})

	assert.Equal(t, StatusFailed, res.Status)
	assert.Error(t, res.Err)
	assert.Equal(t, 1, res.Pushed)
	assert.Equal(t, 2, env.client.pushCalls())
	assert.Equal(t, 2, env.pending(t))
}

func TestSplitBatches(t *testing.T) {
	changes := make([]*models.ChangeRecord, 5)
	for i := range changes {
		changes[i] = change("transactions", models.OperationUpdate, int64(i+1), map[string]any{"paid": true}, ts(i))
	}
	one, err := json.Marshal(changes[0])
	require.NoError(t, err)

	batches, err := splitBatches(changes, DefaultMaxPushBytes)
	require.NoError(t, err)
	require.Len(t, batches, 1, "a changelog under the limit is one request")
	assert.Len(t, batches[0], 5)

	// Room for two records per request.
	batches, err = splitBatches(changes, int64(2*len(one)+4))
	require.NoError(t, err)
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 2)
	assert.Len(t, batches[1], 2)
	assert.Len(t, batches[2], 1)
	assert.Equal(t, int64(5), batches[2][0].RowID)
}

func TestNew_DefaultPushBytes(t *testing.T) {
	env := newTestEnv(t)
	assert.Equal(t, int64(DefaultMaxPushBytes), env.syncer.maxBytes)
}
