package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/okian/gestor/internal/domain/change"
	"github.com/okian/gestor/internal/domain/classify"
	"github.com/okian/gestor/internal/domain/model"
)

const maxErrorBody = 4 << 10

// Review mirrors the server's review document.
type Review struct {
	ID                 string               `json:"id"`
	CreatedAt          time.Time            `json:"created_at"`
	BaselineCapturedAt *time.Time           `json:"baseline_captured_at"`
	Events             []change.Wire        `json:"events"`
	Rejected           []classify.Rejection `json:"rejected"`
}

// Result is the per-event line of an apply outcome.
type Result struct {
	Index      int    `json:"index"`
	Kind       string `json:"kind"`
	Key        string `json:"key"`
	Status     string `json:"status"`
	StorageKey string `json:"storage_key,omitempty"`
	Stage      string `json:"stage,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Outcome mirrors the server's apply outcome.
type Outcome struct {
	Applied  int                  `json:"applied"`
	Failed   int                  `json:"failed"`
	Results  []Result             `json:"results"`
	Rejected []classify.Rejection `json:"rejected"`
}

// Report is the reply to applying a review.
type Report struct {
	ReviewID          string  `json:"review_id"`
	SnapshotRefreshed bool    `json:"snapshot_refreshed"`
	Outcome           Outcome `json:"outcome"`
}

// Snapshot mirrors the server's snapshot document.
type Snapshot struct {
	Records    []model.ClientRecord `json:"records"`
	CapturedAt *time.Time           `json:"captured_at"`
}

// Client talks to a gestor server.
type Client struct {
	base string
	http *http.Client
}

// NewClient returns a client for the server at base.
func NewClient(base string, timeout time.Duration) *Client {
	return &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

// Diff submits incoming for review.
func (c *Client) Diff(ctx context.Context, incoming []model.ClientRecord) (Review, error) {
	var out Review
	err := c.do(ctx, http.MethodPost, "/changes", map[string]any{"records": incoming}, &out)
	return out, err
}

// Review fetches a pending review.
func (c *Client) Review(ctx context.Context, id string) (Review, error) {
	var out Review
	err := c.do(ctx, http.MethodGet, "/changes/"+url.PathEscape(id), nil, &out)
	return out, err
}

// Apply confirms a review. A nil accept list applies every event.
func (c *Client) Apply(ctx context.Context, id string, accept []int) (Report, error) {
	var body any
	if accept != nil {
		body = map[string]any{"accept": accept}
	}
	var out Report
	err := c.do(ctx, http.MethodPost, "/changes/"+url.PathEscape(id)+"/apply", body, &out)
	return out, err
}

// Snapshot fetches the current baseline.
func (c *Client) Snapshot(ctx context.Context) (Snapshot, error) {
	var out Snapshot
	err := c.do(ctx, http.MethodGet, "/snapshot", nil, &out)
	return out, err
}

// Capture replaces the baseline with records.
func (c *Client) Capture(ctx context.Context, records []model.ClientRecord) (Snapshot, error) {
	var out Snapshot
	err := c.do(ctx, http.MethodPost, "/snapshot", map[string]any{"records": records}, &out)
	return out, err
}

// Refresh asks the server to capture the baseline from its record store,
// optionally for a single owner.
func (c *Client) Refresh(ctx context.Context, owner string) (Snapshot, error) {
	path := "/snapshot/refresh"
	if owner != "" {
		path += "?owner=" + url.QueryEscape(owner)
	}
	var out Snapshot
	err := c.do(ctx, http.MethodPost, path, nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader = http.NoBody
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrServer, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var e struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(raw, &e) == nil && e.Message != "" {
			apiErr.Code, apiErr.Message = e.Code, e.Message
		} else {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding %s reply: %w", ErrServer, path, err)
	}
	return nil
}
