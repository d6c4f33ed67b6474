package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kilupskalvis/finsync/internal/models"
)

// DefaultTimeout bounds every request when no timeout is configured.
const DefaultTimeout = 10 * time.Second

// Client defines the contract for exchanging changes with a sync server.
type Client interface {
	// Push delivers a batch. A nil error means the server accepted all of it.
	Push(ctx context.Context, changes []*models.ChangeRecord) error
	// Pull fetches changes newer than since. An empty since fetches everything.
	// Records that could not be decoded are returned as nil entries.
	Pull(ctx context.Context, since string) ([]*models.ChangeRecord, error)
}

// HTTPClient implements Client over HTTP+JSON.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPClient creates an HTTP-based remote client. A zero timeout selects
// DefaultTimeout; the token is optional.
func NewHTTPClient(baseURL, token string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the server address the client talks to.
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

func (c *HTTPClient) do(ctx context.Context, method, url string, body io.Reader, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}

	return resp, nil
}

func success(status int) bool {
	return status >= 200 && status < 300
}

// Push posts the whole batch as one JSON array.
func (c *HTTPClient) Push(ctx context.Context, changes []*models.ChangeRecord) error {
	if changes == nil {
		changes = []*models.ChangeRecord{}
	}
	data, err := json.Marshal(PushRequest(changes))
	if err != nil {
		return fmt.Errorf("marshal push: %w", err)
	}

	headers := map[string]string{"Content-Type": "application/json"}
	resp, err := c.do(ctx, http.MethodPost, c.baseURL+PushPath, bytes.NewReader(data), headers)
	if err != nil {
		return fmt.Errorf("push: %w", err)
	}
	defer resp.Body.Close()

	if !success(resp.StatusCode) {
		return decodeError(resp)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

// Pull fetches the server's changes newer than since.
func (c *HTTPClient) Pull(ctx context.Context, since string) ([]*models.ChangeRecord, error) {
	u := c.baseURL + PullPath
	if since != "" {
		u += "?" + url.Values{"since": {since}}.Encode()
	}

	headers := map[string]string{"Accept": "application/json"}
	resp, err := c.do(ctx, http.MethodGet, u, nil, headers)
	if err != nil {
		return nil, fmt.Errorf("pull: %w", err)
	}
	defer resp.Body.Close()

	if !success(resp.StatusCode) {
		return nil, decodeError(resp)
	}

	// Numbers stay json.Number so ids and amounts are not rounded through float64.
	changes, err := DecodeChanges(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decode pull response: %w", err)
	}
	return changes, nil
}

// RemoteError represents a non-2xx response from the server.
type RemoteError struct {
	Code       string
	Message    string
	Status     int
	RetryAfter time.Duration // from the Retry-After header, zero if absent
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error (%d): %s: %s", e.Status, e.Code, e.Message)
}

func decodeError(resp *http.Response) error {
	re := &RemoteError{
		Code:       "unknown",
		Message:    fmt.Sprintf("HTTP %d", resp.StatusCode),
		Status:     resp.StatusCode,
		RetryAfter: retryAfter(resp.Header.Get("Retry-After")),
	}

	var errResp ErrorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&errResp); err == nil && errResp.Error != "" {
		re.Code, re.Message = errResp.Error, errResp.Message
	}
	return re
}

// retryAfter parses a Retry-After value given in seconds
func retryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
