// Package client consumes the collector's REST and WebSocket surfaces.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"sysaura/internal/logger"
	"sysaura/internal/models"
)

// State describes where a Result value came from.
type State string

const (
	StateFresh       State = "fresh"
	StateStale       State = "stale"
	StateUnavailable State = "unavailable"
)

// Result is a fetched value plus its provenance. A failed fetch falls back to
// the last cached value (stale) and otherwise reports unavailable with a zero value.
type Result[T any] struct {
	Value     T
	State     State
	Err       error
	FetchedAt time.Time
}

// OK reports whether Value holds data.
func (r Result[T]) OK() bool {
	return r.State != StateUnavailable
}

// APIError is a non-2xx response from the collector.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Client talks to one collector.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	cache   *Cache
	log     logger.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithCache shares a cache between clients.
func WithCache(cache *Cache) Option {
	return func(c *Client) { c.cache = cache }
}

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(c *Client) { c.log = log }
}

// New creates a client for the collector at baseURL authenticating with token.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
		log:     logger.Noop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cache == nil {
		c.cache = NewCache(DefaultTTL)
	}
	return c
}

// Cache exposes the response cache.
func (c *Client) Cache() *Cache {
	return c.cache
}

// Current fetches the latest snapshot of the local target.
func (c *Client) Current(ctx context.Context, opts Options) Result[*models.Snapshot] {
	return cached[*models.Snapshot](ctx, c, "metrics:current", "/api/metrics/current", opts)
}

// CPU fetches the CPU detail block.
func (c *Client) CPU(ctx context.Context, opts Options) Result[*models.CPUInfo] {
	return cached[*models.CPUInfo](ctx, c, "metrics:cpu", "/api/metrics/cpu", opts)
}

// Memory fetches the memory detail block.
func (c *Client) Memory(ctx context.Context, opts Options) Result[*models.MemoryInfo] {
	return cached[*models.MemoryInfo](ctx, c, "metrics:memory", "/api/metrics/memory", opts)
}

// Disk fetches the disk detail block.
func (c *Client) Disk(ctx context.Context, opts Options) Result[*models.DiskInfo] {
	return cached[*models.DiskInfo](ctx, c, "metrics:disk", "/api/metrics/disk", opts)
}

// Network fetches the network detail block.
func (c *Client) Network(ctx context.Context, opts Options) Result[*models.NetworkInfo] {
	return cached[*models.NetworkInfo](ctx, c, "metrics:network", "/api/metrics/network", opts)
}

// History fetches persisted rows of a target, newest first.
func (c *Client) History(ctx context.Context, systemID string, limit, offset int, opts Options) Result[[]models.MetricsRow] {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	path := "/api/metrics/history/" + url.PathEscape(systemID) + "?" + q.Encode()
	return cached[[]models.MetricsRow](ctx, c, "history:"+systemID+":"+q.Encode(), path, opts)
}

// AlertQuery filters Alerts. Empty fields use server defaults.
type AlertQuery struct {
	Status   string
	SystemID string
	Limit    int
	Offset   int
}

func (q AlertQuery) encode() string {
	v := url.Values{}
	if q.Status != "" {
		v.Set("status", q.Status)
	}
	if q.SystemID != "" {
		v.Set("systemId", q.SystemID)
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		v.Set("offset", strconv.Itoa(q.Offset))
	}
	return v.Encode()
}

// Alerts lists alerts visible to the caller.
func (c *Client) Alerts(ctx context.Context, q AlertQuery, opts Options) Result[[]models.Alert] {
	query := q.encode()
	path := "/api/alerts"
	if query != "" {
		path += "?" + query
	}
	return cached[[]models.Alert](ctx, c, "alerts:"+query, path, opts)
}

// Refresh asks the collector to sample a target now and returns the snapshot.
func (c *Client) Refresh(ctx context.Context, systemID string) (*models.Snapshot, error) {
	var snap models.Snapshot
	if err := c.do(ctx, http.MethodPost, "/api/metrics/refresh/"+url.PathEscape(systemID), nil, &snap); err != nil {
		return nil, err
	}
	if systemID == models.LocalTargetID {
		c.cache.Clear("metrics:current")
	}
	c.cache.ClearPrefix("history:" + systemID + ":")
	return &snap, nil
}

// UpdateAlertStatus acknowledges or resolves an alert.
func (c *Client) UpdateAlertStatus(ctx context.Context, id string, status models.AlertStatus) (models.Alert, error) {
	var alert models.Alert
	body := map[string]string{"status": string(status)}
	if err := c.do(ctx, http.MethodPatch, "/api/alerts/"+url.PathEscape(id), body, &alert); err != nil {
		return models.Alert{}, err
	}
	c.cache.ClearPrefix("alerts:")
	return alert, nil
}

// DismissAlert deletes an active alert.
func (c *Client) DismissAlert(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, "/api/alerts/"+url.PathEscape(id), nil, nil); err != nil {
		return err
	}
	c.cache.ClearPrefix("alerts:")
	return nil
}

// ReportMetrics posts externally collected metrics for a target.
func (c *Client) ReportMetrics(ctx context.Context, systemID string, in models.MetricsInput) (models.MetricsRow, error) {
	var row models.MetricsRow
	if err := c.do(ctx, http.MethodPost, "/api/metrics/"+url.PathEscape(systemID), in, &row); err != nil {
		return models.MetricsRow{}, err
	}
	c.cache.ClearPrefix("history:" + systemID + ":")
	return row, nil
}

func cached[T any](ctx context.Context, c *Client, key, path string, opts Options) Result[T] {
	value, err := Fetch(ctx, c.cache, key, func(ctx context.Context) (T, error) {
		var out T
		err := c.do(ctx, http.MethodGet, path, nil, &out)
		return out, err
	}, opts)
	if err == nil {
		entry, _ := c.cache.Peek(key)
		return Result[T]{Value: value, State: StateFresh, FetchedAt: entry.FetchedAt}
	}

	if entry, ok := c.cache.Peek(key); ok {
		if stale, ok := entry.Value.(T); ok {
			c.log.Warn("serving stale %s: %v", key, err)
			return Result[T]{Value: stale, State: StateStale, Err: err, FetchedAt: entry.FetchedAt}
		}
	}
	c.log.Warn("%s unavailable: %v", key, err)
	var zero T
	return Result[T]{Value: zero, State: StateUnavailable, Err: err}
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var payload struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(data, &payload) != nil || payload.Error == "" {
			payload.Error = strings.TrimSpace(string(data))
		}
		return &APIError{Status: resp.StatusCode, Message: payload.Error}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
