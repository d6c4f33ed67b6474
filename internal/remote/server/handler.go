package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/kilupskalvis/finsync/internal/core"
	"github.com/kilupskalvis/finsync/internal/models"
	"github.com/kilupskalvis/finsync/internal/remote"
	"github.com/kilupskalvis/finsync/internal/store"
)

// ServerConfig holds configurable limits for the server.
type ServerConfig struct {
	MaxRequestBody    int64  // bytes, for push batches
	RequestsPerMinute int    // per-client rate limit, 0 disables
	Token             string // bearer token clients must send, empty disables auth
	Webhooks          *WebhookNotifier
}

// DefaultServerConfig returns reasonable defaults.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		MaxRequestBody:    32 * 1024 * 1024, // 32MB
		RequestsPerMinute: 300,
	}
}

// Handler creates the HTTP handler with all routes and middleware.
// The returned cleanup function stops background goroutines and should be
// called on server shutdown.
func Handler(st *store.Store, cfg *ServerConfig, logger *slog.Logger) (http.Handler, func()) {
	if cfg == nil {
		cfg = DefaultServerConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxRequestBody <= 0 {
		cfg.MaxRequestBody = DefaultServerConfig().MaxRequestBody
	}

	rl := newRateLimiter(cfg.RequestsPerMinute)

	// applyMiddleware reverses the list, so the first item runs outermost.
	// Execution order: auth -> rl -> handler
	withAuth := func(h http.HandlerFunc) http.Handler {
		return applyMiddleware(h, authMiddleware(cfg.Token), rl.middleware)
	}

	mux := http.NewServeMux()

	// Health endpoints (no auth)
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := st.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("not ready: database unavailable"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Sync
	mux.Handle("POST "+remote.PushPath, withAuth(handlePush(st, cfg, logger)))
	mux.Handle("GET "+remote.PullPath, withAuth(handlePull(st, logger)))

	// Apply global middleware
	handler := applyMiddleware(mux,
		recoveryMiddleware(logger),
		loggingMiddleware(logger),
		requestIDMiddleware,
	)

	cleanup := func() {
		rl.Stop()
		cfg.Webhooks.Wait()
	}

	return handler, cleanup
}

// applyMiddleware applies middleware in reverse order so the first in the list runs first.
func applyMiddleware(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// --- Sync Handlers ---

// pushSummary describes what one accepted push did.
type pushSummary struct {
	received   int
	dropped    int
	duplicates int
	logged     int
	stats      core.ApplyStats
	latest     string
}

// handlePush applies a batch and appends it to the remote changelog in one
// transaction. Changes whose uid is already logged are skipped, so a client
// that resends a delivered batch does not apply it twice.
func handlePush(st *store.Store, cfg *ServerConfig, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		batch, err := readChanges(r, cfg.MaxRequestBody)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}

		sum := pushSummary{received: len(batch)}
		if len(batch) == 0 {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		reqLogger := logger.With("request_id", requestID(r))
		changes, dropped := core.Prepare(batch, reqLogger)
		sum.dropped = dropped

		if err := acceptChanges(r, st, changes, reqLogger, &sum); err != nil {
			reqLogger.Error("push rejected", "error", err, "changes", len(changes))
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to store changes")
			return
		}

		reqLogger.Info("push accepted",
			"received", sum.received,
			"logged", sum.logged,
			"applied", sum.stats.Applied,
			"duplicates", sum.duplicates,
			"malformed", sum.stats.Malformed+sum.dropped,
		)
		if sum.logged > 0 {
			cfg.Webhooks.NotifyPush(sum.logged, sum.latest)
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func acceptChanges(r *http.Request, st *store.Store, changes []*models.ChangeRecord, logger *slog.Logger, sum *pushSummary) error {
	ctx := r.Context()
	tx, err := st.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, c := range changes {
		dup, err := tx.HasRemoteChange(ctx, c.UID)
		if err != nil {
			return err
		}
		if dup {
			sum.duplicates++
			continue
		}

		outcome, err := core.ApplyChange(ctx, tx, c, logger)
		if err != nil {
			return err
		}
		sum.stats.Add(outcome)
		if outcome == core.OutcomeMalformed {
			continue
		}

		// Unknown tables are logged for peers that understand them.
		if err := tx.AppendRemoteChange(ctx, c); err != nil {
			return err
		}
		sum.logged++
		if c.Timestamp > sum.latest {
			sum.latest = c.Timestamp
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit push: %w", err)
	}
	return nil
}

// handlePull returns logged changes newer than the since query parameter.
func handlePull(st *store.Store, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		since := r.URL.Query().Get("since")
		if since != "" {
			norm, err := models.NormalizeTimestamp(since)
			if err != nil {
				writeError(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("invalid since: %q", since))
				return
			}
			since = norm
		}

		changes, err := st.RemoteChangesSince(r.Context(), since)
		if err != nil {
			logger.Error("pull query failed", "error", err, "request_id", requestID(r))
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to read changes")
			return
		}

		writeJSON(w, http.StatusOK, remote.PullResponse(changes))
	}
}

// --- Health Handlers ---

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// readChanges decodes a size-limited push body. Elements that are not valid
// change records come back as nil entries and are dropped by core.Prepare.
func readChanges(r *http.Request, maxSize int64) (remote.PushRequest, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > maxSize {
		return nil, fmt.Errorf("request body exceeds %d bytes", maxSize)
	}

	changes, err := remote.DecodeChanges(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return changes, nil
}
