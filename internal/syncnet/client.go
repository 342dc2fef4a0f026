// Package syncnet talks to the remote bookmark service. Every call
// returns a Result instead of an error: transport failures, bad status
// codes and undecodable bodies all degrade to Result.OK == false so the
// widget keeps working offline.
package syncnet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pagefaves/pagefaves/internal/domain"
	"github.com/pagefaves/pagefaves/internal/logger"
)

// DefaultTimeout bounds each request when the caller supplies none.
const DefaultTimeout = 10 * time.Second

// Endpoints are the path segments appended to the base URL.
type Endpoints struct {
	Bookmarks string
	Events    string
}

// DefaultEndpoints matches the reference server's routes.
var DefaultEndpoints = Endpoints{
	Bookmarks: "api/bookmarks",
	Events:    "api/events",
}

// Result is the uniform outcome of a sync call. Data is non-nil only
// when the body decoded as a service payload.
type Result struct {
	OK     bool
	Status int
	Data   *domain.ServerPayload
	Err    string
}

// Config configures a Client. Zero values get sensible defaults except
// BaseURL, which must be set for the client to do anything.
type Config struct {
	BaseURL    string
	Endpoints  Endpoints
	Timeout    time.Duration
	Headers    map[string]string
	HTTPClient *http.Client
	Logger     logger.Logger
}

// Client posts bookmark lists and usage events to the remote service.
type Client struct {
	baseURL   string
	endpoints Endpoints
	headers   map[string]string
	http      *http.Client
	log       logger.Logger
}

// New builds a Client. An empty base URL yields a client whose calls
// all fail fast with OK == false.
func New(cfg Config) *Client {
	if cfg.Endpoints.Bookmarks == "" {
		cfg.Endpoints.Bookmarks = DefaultEndpoints.Bookmarks
	}
	if cfg.Endpoints.Events == "" {
		cfg.Endpoints.Events = DefaultEndpoints.Events
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		endpoints: cfg.Endpoints,
		headers:   cfg.Headers,
		http:      httpClient,
		log:       log,
	}
}

// Enabled reports whether a base URL was configured.
func (c *Client) Enabled() bool {
	return c.baseURL != ""
}

type bookmarksRequest struct {
	Code      string            `json:"code"`
	Bookmarks []domain.Bookmark `json:"bookmarks"`
}

type eventRequest struct {
	Code    string          `json:"code"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	At      int64           `json:"at"`
}

// PostBookmarks uploads the full list under code and returns the
// service's merged view. The slice is sent as [] when empty, never null.
func (c *Client) PostBookmarks(ctx context.Context, code string, bookmarks []domain.Bookmark) Result {
	if bookmarks == nil {
		bookmarks = []domain.Bookmark{}
	}
	return c.post(ctx, c.endpoints.Bookmarks, bookmarksRequest{Code: code, Bookmarks: bookmarks})
}

// PostEvent reports a usage event ("added", "removed", "reordered", ...)
// under code. payload may be nil; at is milliseconds since the epoch.
func (c *Client) PostEvent(ctx context.Context, code, typ string, payload json.RawMessage, at int64) Result {
	return c.post(ctx, c.endpoints.Events, eventRequest{Code: code, Type: typ, Payload: payload, At: at})
}

func (c *Client) post(ctx context.Context, endpoint string, body any) Result {
	if c.baseURL == "" {
		return Result{Err: "no base URL configured"}
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return Result{Err: fmt.Sprintf("encode request: %v", err)}
	}

	url := c.baseURL + "/" + endpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return Result{Err: fmt.Sprintf("build request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug("sync request failed", logger.String("url", url), logger.Error(err))
		return Result{Err: err.Error()}
	}
	defer resp.Body.Close()

	var payload domain.ServerPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.log.Debug("sync response undecodable",
			logger.String("url", url),
			logger.Int("status", resp.StatusCode),
			logger.Error(err),
		)
		return Result{Status: resp.StatusCode, Err: fmt.Sprintf("decode response: %v", err)}
	}

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300 && payload.Status == domain.StatusSuccess
	res := Result{OK: ok, Status: resp.StatusCode, Data: &payload}
	if !ok {
		res.Err = fmt.Sprintf("service returned status %q (http %d)", payload.Status, resp.StatusCode)
	}
	return res
}
