// Package recordstore talks to the remote database and action API that owns
// the client records.
package recordstore

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

	"github.com/okian/gestor/internal/domain/model"
	"github.com/okian/gestor/pkg/logger"
	"github.com/okian/gestor/pkg/metrics"
	"golang.org/x/time/rate"
)

const (
	defaultCollection = "cliente_jogador"
	defaultTimeout    = 15 * time.Second

	// maxErrorBody bounds how much of a failed response is kept as message.
	maxErrorBody = 512
)

// Client is safe for concurrent use. Create, Update and Notify satisfy the
// applier's RecordStore.
type Client struct {
	databaseURL   string
	actionURL     string
	collection    string
	authorization string
	http          *http.Client
	limiter       *rate.Limiter
	logger        logger.Logger
}

// New creates a client for the database API at databaseURL and the action
// API at actionURL.
func New(databaseURL, actionURL string, opts ...Option) *Client {
	c := &Client{
		databaseURL: strings.TrimRight(databaseURL, "/"),
		actionURL:   strings.TrimRight(actionURL, "/"),
		collection:  defaultCollection,
		http:        &http.Client{Timeout: defaultTimeout},
		limiter:     rate.NewLimiter(rate.Inf, 0),
		logger:      logger.Get().Named("recordstore"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// List fetches every record in the collection.
func (c *Client) List(ctx context.Context) ([]model.ClientRecord, error) {
	return c.list(ctx, nil)
}

// ListByOwner fetches the records of one owner.
func (c *Client) ListByOwner(ctx context.Context, ownerID string) ([]model.ClientRecord, error) {
	return c.list(ctx, url.Values{"playerId": {ownerID}})
}

func (c *Client) list(ctx context.Context, q url.Values) ([]model.ClientRecord, error) {
	start := time.Now()
	u := c.collectionURL()
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var records []model.ClientRecord
	err := c.do(ctx, "list", http.MethodGet, u, nil, &records)
	metrics.RecordStoreCall("list", err == nil, float64(time.Since(start).Milliseconds()))
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []model.ClientRecord{}
	}
	c.logger.Debug(ctx, "records listed", logger.Int("records", len(records)))
	return records, nil
}

// Create stores rec as a new document and returns its storage key.
func (c *Client) Create(ctx context.Context, rec model.ClientRecord) (string, error) {
	rec.StorageKey = ""
	var created struct {
		ID string `json:"_id"`
	}
	if err := c.do(ctx, "create", http.MethodPost, c.collectionURL(), rec, &created); err != nil {
		return "", err
	}
	if created.ID == "" {
		c.logger.Warn(ctx, "create response carried no _id", logger.String("key", rec.Key().String()))
	}
	return created.ID, nil
}

// Update overwrites the stored document addressed by rec.StorageKey.
func (c *Client) Update(ctx context.Context, rec model.ClientRecord) error {
	if rec.StorageKey == "" {
		return fmt.Errorf("update %s: %w", rec.Key(), ErrMissingStorageKey)
	}
	return c.do(ctx, "update", http.MethodPut, c.collectionURL()+"/"+url.PathEscape(rec.StorageKey), rec, nil)
}

// Notify triggers the action identified by signalID.
func (c *Client) Notify(ctx context.Context, signalID string, payload map[string]any) error {
	if payload == nil {
		payload = map[string]any{}
	}
	return c.do(ctx, "notify", http.MethodPost, c.actionURL+"/action/"+url.PathEscape(signalID), payload, nil)
}

func (c *Client) collectionURL() string {
	return c.databaseURL + "/database/" + url.PathEscape(c.collection)
}

func (c *Client) do(ctx context.Context, op, method, target string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %s: rate limit: %w", ErrStore, op, err)
	}

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: marshal request: %w", op, err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, rdr)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.authorization != "" {
		req.Header.Set("Authorization", c.authorization)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrStore, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Op: op, StatusCode: resp.StatusCode, Message: errorMessage(raw)}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return fmt.Errorf("%w: %s: decode response: %w", ErrStore, op, err)
	}
	return nil
}

// errorMessage prefers the API's {"message": ...} field over the raw body.
func errorMessage(raw []byte) string {
	var body struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Message != "" {
		return body.Message
	}
	return strings.TrimSpace(string(raw))
}
