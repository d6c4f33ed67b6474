package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kilupskalvis/finsync/internal/logging"
	"github.com/stretchr/testify/assert"
)

func TestBearerToken(t *testing.T) {
	cases := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer abc", "abc", true},
		{"Basic abc", "", false},
		{"Bearer ", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.header != "" {
			r.Header.Set("Authorization", tc.header)
		}
		token, ok := bearerToken(r)
		assert.Equal(t, tc.ok, ok, tc.header)
		assert.Equal(t, tc.token, token, tc.header)
	}
}

func TestRateLimiter_FixedWindow(t *testing.T) {
	rl := newRateLimiter(2)
	defer rl.Stop()

	now := time.Now()
	ok, _ := rl.allow("10.0.0.1", now)
	assert.True(t, ok)
	ok, _ = rl.allow("10.0.0.1", now.Add(time.Second))
	assert.True(t, ok)

	ok, reset := rl.allow("10.0.0.1", now.Add(2*time.Second))
	assert.False(t, ok)
	assert.Equal(t, 58*time.Second, reset)

	ok, _ = rl.allow("10.0.0.2", now.Add(2*time.Second))
	assert.True(t, ok, "limits are per client")

	ok, _ = rl.allow("10.0.0.1", now.Add(61*time.Second))
	assert.True(t, ok, "a new window starts after the reset")
}

func TestRateLimiter_Evict(t *testing.T) {
	rl := newRateLimiter(10)
	defer rl.Stop()

	now := time.Now()
	rl.allow("10.0.0.1", now)
	rl.allow("10.0.0.2", now.Add(30*time.Second))

	rl.evict(now.Add(70 * time.Second))

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.NotContains(t, rl.clients, "10.0.0.1")
	assert.Contains(t, rl.clients, "10.0.0.2")
}

func TestRequestID_KeepsClientUUID(t *testing.T) {
	var seen string
	h := requestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestID(r)
	}))

	const id = "2f1d8a6e-5a2b-4bd5-9a7c-0d3f1b6e9c11"
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Request-ID", id)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	assert.Equal(t, id, seen)
	assert.Equal(t, id, rec.Header().Get("X-Request-ID"))
}

func TestRequestID_ReplacesInvalid(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Request-ID", "not-a-uuid")
	rec := httptest.NewRecorder()
	requestIDMiddleware(http.NotFoundHandler()).ServeHTTP(rec, r)

	assert.NotEqual(t, "not-a-uuid", rec.Header().Get("X-Request-ID"))
	assert.Len(t, rec.Header().Get("X-Request-ID"), 36)
}

func TestRecovery_Returns500(t *testing.T) {
	h := recoveryMiddleware(logging.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal_error")
}
