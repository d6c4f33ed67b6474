package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/kilupskalvis/finsync/internal/models"
)

// RetryConfig configures how a sync request is repeated after a transient
// failure. Attempts are spaced by a fixed interval; there is no backoff.
type RetryConfig struct {
	MaxRetries     int
	Interval       time.Duration
	JitterFraction float64       // 0.0 to 1.0
	MaxRetryAfter  time.Duration // cap on a server-requested wait, 0 ignores Retry-After
	Logger         *slog.Logger
}

// DefaultRetryConfig performs a single attempt.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		Interval:       2 * time.Second,
		JitterFraction: 0.1,
		MaxRetryAfter:  time.Minute,
	}
}

// RetryClient repeats failed pushes and pulls within one sync cycle.
// A repeated push is harmless because the server skips uids it already holds.
type RetryClient struct {
	inner  Client
	config RetryConfig
	logger *slog.Logger
}

// NewRetryClient wraps inner. A nil cfg means DefaultRetryConfig.
func NewRetryClient(inner Client, cfg *RetryConfig) *RetryClient {
	if cfg == nil {
		cfg = DefaultRetryConfig()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &RetryClient{inner: inner, config: *cfg, logger: logger}
}

// isTransient reports whether a later attempt could succeed: server errors,
// rate limiting and network failures. Cancellation never is.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Status >= 500 || re.Status == http.StatusTooManyRequests
	}
	return true
}

// wait returns the fixed interval with jitter applied
func (rc *RetryClient) wait() time.Duration {
	base := float64(rc.config.Interval)
	d := time.Duration(base + base*rc.config.JitterFraction*(rand.Float64()*2-1))
	return max(d, 0)
}

// waitAfter honours a server Retry-After when it is longer than the interval
func (rc *RetryClient) waitAfter(err error) time.Duration {
	d := rc.wait()
	var re *RemoteError
	if rc.config.MaxRetryAfter > 0 && errors.As(err, &re) && re.RetryAfter > d {
		d = min(re.RetryAfter, rc.config.MaxRetryAfter)
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// retry runs fn until it succeeds, fails permanently or the retries run out
func (rc *RetryClient) retry(ctx context.Context, operation string, fn func() error) error {
	err := fn()
	for attempt := 1; err != nil && isTransient(err); attempt++ {
		if attempt > rc.config.MaxRetries {
			if rc.config.MaxRetries == 0 {
				return err
			}
			return fmt.Errorf("%s: %w (after %d retries)", operation, err, rc.config.MaxRetries)
		}

		d := rc.waitAfter(err)
		rc.logger.Debug("retrying sync request", "operation", operation, "attempt", attempt, "wait", d.String(), "error", err)
		if serr := sleep(ctx, d); serr != nil {
			return fmt.Errorf("%s: %w (retry cancelled)", operation, err)
		}
		err = fn()
	}
	return err
}

// Push delivers a batch, retrying transient failures
func (rc *RetryClient) Push(ctx context.Context, changes []*models.ChangeRecord) error {
	return rc.retry(ctx, "push", func() error {
		return rc.inner.Push(ctx, changes)
	})
}

// Pull fetches changes since the watermark, retrying transient failures
func (rc *RetryClient) Pull(ctx context.Context, since string) ([]*models.ChangeRecord, error) {
	var changes []*models.ChangeRecord
	err := rc.retry(ctx, "pull", func() error {
		var err error
		changes, err = rc.inner.Pull(ctx, since)
		return err
	})
	return changes, err
}
