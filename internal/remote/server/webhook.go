package server

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// SignatureHeader carries the HMAC-SHA256 of the body when a secret is set.
const SignatureHeader = "X-Finsync-Signature"

// WebhookEvent is the payload posted after a push is committed.
type WebhookEvent struct {
	Event     string `json:"event"`
	Changes   int    `json:"changes"`
	LatestTS  string `json:"latest_ts"`
	Timestamp string `json:"timestamp"`
}

// WebhookConfig lists the receivers. Secret is optional.
type WebhookConfig struct {
	URLs   []string
	Secret string
}

// ParseWebhookURLs splits a comma-separated URL list, dropping blanks.
func ParseWebhookURLs(list string) []string {
	var urls []string
	for _, u := range strings.Split(list, ",") {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

// WebhookNotifier tells other devices that new changes are waiting so they
// can pull before their next interval. Delivery is best effort.
type WebhookNotifier struct {
	urls       []string
	secret     []byte
	client     *http.Client
	logger     *slog.Logger
	retryDelay time.Duration
	maxRetries int
	inflight   sync.WaitGroup
}

// NewWebhookNotifier returns nil when no URLs are configured; a nil notifier
// is safe to use.
func NewWebhookNotifier(cfg *WebhookConfig, logger *slog.Logger) *WebhookNotifier {
	if cfg == nil || len(cfg.URLs) == 0 {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookNotifier{
		urls:       cfg.URLs,
		secret:     []byte(cfg.Secret),
		client:     &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
		retryDelay: time.Second,
		maxRetries: 2,
	}
}

// NotifyPush announces newly logged changes without blocking the caller.
func (wn *WebhookNotifier) NotifyPush(changes int, latestTS string) {
	if wn == nil {
		return
	}

	event := &WebhookEvent{
		Event:     "push",
		Changes:   changes,
		LatestTS:  latestTS,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	wn.inflight.Add(1)
	go func() {
		defer wn.inflight.Done()
		wn.send(event)
	}()
}

// Wait blocks until every queued notification has been attempted.
func (wn *WebhookNotifier) Wait() {
	if wn == nil {
		return
	}
	wn.inflight.Wait()
}

func (wn *WebhookNotifier) send(event *WebhookEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		wn.logger.Error("webhook: marshal event", "error", err)
		return
	}

	for _, url := range wn.urls {
		if err := wn.post(url, data); err != nil {
			wn.logger.Warn("webhook: delivery failed", "url", url, "error", err)
			continue
		}
		wn.logger.Debug("webhook: delivered", "url", url, "changes", event.Changes)
	}
}

// sign returns the hex HMAC of body, or "" without a secret.
func (wn *WebhookNotifier) sign(body []byte) string {
	if len(wn.secret) == 0 {
		return ""
	}
	mac := hmac.New(sha256.New, wn.secret)
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// post delivers one payload. Network errors and 5xx are retried with a
// linearly growing pause; 4xx is final.
func (wn *WebhookNotifier) post(url string, data []byte) error {
	signature := wn.sign(data)

	var lastErr error
	for attempt := 0; attempt <= wn.maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * wn.retryDelay)
		}

		status, err := wn.deliver(url, data, signature)
		switch {
		case err != nil:
			lastErr = err
		case status >= 200 && status < 300:
			return nil
		case status < 500:
			return fmt.Errorf("HTTP %d", status)
		default:
			lastErr = fmt.Errorf("HTTP %d", status)
		}
	}
	return lastErr
}

func (wn *WebhookNotifier) deliver(url string, data []byte, signature string) (int, error) {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "finsync-server/1.0")
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}

	resp, err := wn.client.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}
