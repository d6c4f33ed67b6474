package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kilupskalvis/finsync/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClient_Push(t *testing.T) {
	var got []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, PushPath, r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL+"/", "secret", time.Second)
	rec := &models.ChangeRecord{
		UID:       "u-1",
		Table:     "transactions",
		Operation: models.OperationInsert,
		RowID:     7,
		Data:      map[string]any{"amount": "99.99"},
		Timestamp: "2025-05-04T10:00:00.000000Z",
	}
	require.NoError(t, c.Push(context.Background(), []*models.ChangeRecord{rec}))

	require.Len(t, got, 1)
	assert.Equal(t, "transactions", got[0]["table"])
	assert.Equal(t, "insert", got[0]["op"])
	assert.Equal(t, float64(7), got[0]["id"])
	assert.Equal(t, "2025-05-04T10:00:00.000000Z", got[0]["ts"])
	assert.Equal(t, "u-1", got[0]["uid"])
	assert.NotContains(t, got[0], "owner_id")
}

func TestHTTPClient_PushEmptyBatchIsArray(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", 0)
	require.NoError(t, c.Push(context.Background(), nil))
	assert.Equal(t, "[]", body)
}

func TestHTTPClient_PushServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"internal_error","message":"database unavailable"}`))
	}))
	defer srv.Close()

	err := NewHTTPClient(srv.URL, "", time.Second).Push(context.Background(), []*models.ChangeRecord{})
	var re *RemoteError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, 500, re.Status)
	assert.Equal(t, "internal_error", re.Code)
	assert.Equal(t, "database unavailable", re.Message)
}

func TestHTTPClient_NonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewHTTPClient(srv.URL, "", time.Second).Pull(context.Background(), "")
	var re *RemoteError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, http.StatusBadGateway, re.Status)
	assert.Equal(t, "unknown", re.Code)
}

func TestHTTPClient_Pull(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, PullPath, r.URL.Path)
		assert.Equal(t, "2025-05-04T10:00:00.000000Z", r.URL.Query().Get("since"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"table":"transactions","op":"update","id":9007199254740993,"data":{"amount":12.345678901234567},"ts":"2025-05-04T11:00:00.000000Z"}]`))
	}))
	defer srv.Close()

	changes, err := NewHTTPClient(srv.URL, "", time.Second).Pull(context.Background(), "2025-05-04T10:00:00.000000Z")
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, int64(9007199254740993), changes[0].RowID)
	assert.Equal(t, models.OperationUpdate, changes[0].Operation)
	assert.Equal(t, json.Number("12.345678901234567"), changes[0].Data["amount"])
	assert.Empty(t, changes[0].UID)
}

func TestHTTPClient_PullWithoutSince(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.RawQuery)
		w.Write([]byte(`null`))
	}))
	defer srv.Close()

	changes, err := NewHTTPClient(srv.URL, "", time.Second).Pull(context.Background(), "")
	require.NoError(t, err)
	assert.NotNil(t, changes)
	assert.Empty(t, changes)
}

func TestHTTPClient_PullKeepsRecordsAfterBadElement(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"table":"transactions","op":"insert","id":5,"data":"oops","ts":"2025-05-04T10:00:01Z"},
			{"table":"transactions","op":"insert","id":1.5,"data":{},"ts":"2025-05-04T10:00:01Z"},
			{"table":"transactions","op":"insert","id":9,"data":{"amount":"1.00"},"ts":"2025-05-04T10:00:02Z"}
		]`))
	}))
	defer srv.Close()

	changes, err := NewHTTPClient(srv.URL, "", time.Second).Pull(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, changes, 3)
	assert.Nil(t, changes[0])
	assert.Nil(t, changes[1])
	require.NotNil(t, changes[2])
	assert.Equal(t, int64(9), changes[2].RowID)
}

func TestHTTPClient_PullRejectsNonArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"table":"transactions"}`))
	}))
	defer srv.Close()

	_, err := NewHTTPClient(srv.URL, "", time.Second).Pull(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode pull response")
}

func TestDecodeChanges(t *testing.T) {
	changes, err := DecodeChanges(strings.NewReader(`[{"table":7},{"table":"users","op":"delete","id":3,"ts":"2025-05-04T10:00:00Z"}]`))
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Nil(t, changes[0])
	assert.Equal(t, "users", changes[1].Table)
	assert.Equal(t, models.OperationDelete, changes[1].Operation)
}

func TestHTTPClient_Timeout(t *testing.T) {
	done := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()
	defer close(done)

	_, err := NewHTTPClient(srv.URL, "", 50*time.Millisecond).Pull(context.Background(), "")
	require.Error(t, err)
}

func TestHTTPClient_RetryAfterHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"rate_limited","message":"rate limit exceeded"}`))
	}))
	defer srv.Close()

	_, err := NewHTTPClient(srv.URL, "", time.Second).Pull(context.Background(), "")
	var re *RemoteError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "rate_limited", re.Code)
	assert.Equal(t, 30*time.Second, re.RetryAfter)
}
