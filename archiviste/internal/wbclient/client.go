// CLAUDE:SUMMARY HTTP client for the three Wayback endpoint families: availability, CDX index, snapshot content.
// Package wbclient talks to the Wayback Machine's REST endpoints.
//
// Three fixed endpoint families are supported: the availability API, the CDX
// capture index, and raw snapshot content. Every call is rate-limited per
// endpoint category and retried with status-aware backoff. The HTTP status
// taxonomy is decided here, once, as a tagged *StatusError; callers never
// inspect response objects.
package wbclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hazyhaar/archiviste/archiviste/internal/ratelimit"
)

// Endpoint identifiers, matched by substring against the limiter categories.
const (
	EndpointAvailability = "availability"
	EndpointCDX          = "cdx"
	EndpointContent      = "content"
)

// ErrNotArchived is returned when the archive has no capture for a request
// (HTTP 404 from any endpoint). Terminal: never retried.
var ErrNotArchived = errors.New("wbclient: not archived")

// ErrParse is returned when an upstream payload does not match the expected
// JSON/tabular shape.
var ErrParse = errors.New("wbclient: malformed upstream response")

// StatusError tags a non-2xx upstream response with its status code.
type StatusError struct {
	Code     int
	Endpoint string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("wbclient: %s returned http %d", e.Endpoint, e.Code)
}

// Config configures a Client.
type Config struct {
	Timeout   time.Duration // HTTP timeout. Default: 30s.
	MaxBytes  int64         // Max response body size. Default: 10MB.
	UserAgent string
	// MaxRetries bounds the attempt loop. Default: 3.
	MaxRetries int

	// Endpoint bases, overridable for tests.
	AvailabilityURL string
	CDXURL          string
	WebURL          string

	// Sleep blocks between retry attempts. Default honors ctx cancellation.
	// Tests inject a counter.
	Sleep func(ctx context.Context, d time.Duration) error
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 10 * 1024 * 1024 // 10MB
	}
	if c.UserAgent == "" {
		c.UserAgent = "archiviste/1.0"
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.AvailabilityURL == "" {
		c.AvailabilityURL = "https://archive.org/wayback/available"
	}
	if c.CDXURL == "" {
		c.CDXURL = "https://web.archive.org/cdx/search/cdx"
	}
	if c.WebURL == "" {
		c.WebURL = "https://web.archive.org/web"
	}
	if c.Sleep == nil {
		c.Sleep = func(ctx context.Context, d time.Duration) error {
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.C:
				return nil
			}
		}
	}
}

// Limiter admits requests per endpoint identifier.
type Limiter interface {
	Acquire(ctx context.Context, endpoint string) error
}

// Client is the Wayback upstream client.
type Client struct {
	http    *http.Client
	limiter Limiter
	config  Config
	logger  *slog.Logger
}

// New creates a Client. A nil limiter gets the default category limits.
func New(cfg Config, limiter Limiter, logger *slog.Logger) *Client {
	cfg.defaults()
	if limiter == nil {
		limiter = ratelimit.New(ratelimit.Config{})
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: limiter,
		config:  cfg,
		logger:  logger,
	}
}

// --- availability ---

// ClosestSnapshot is the availability API's nested capture record.
type ClosestSnapshot struct {
	URL       string `json:"url"`
	Timestamp string `json:"timestamp"`
	Status    string `json:"status"`
	Available bool   `json:"available"`
}

// AvailabilityResponse is the availability API payload.
type AvailabilityResponse struct {
	URL               string `json:"url"`
	ArchivedSnapshots struct {
		Closest *ClosestSnapshot `json:"closest"`
	} `json:"archived_snapshots"`
}

// Availability asks the primary source for the capture closest to timestamp
// (optional, 14-digit form).
func (c *Client) Availability(ctx context.Context, target, timestamp string) (*AvailabilityResponse, error) {
	q := url.Values{}
	q.Set("url", target)
	if timestamp != "" {
		q.Set("timestamp", timestamp)
	}
	reqURL := c.config.AvailabilityURL + "?" + q.Encode()

	var out *AvailabilityResponse
	err := c.withRetry(ctx, EndpointAvailability, func(ctx context.Context) error {
		body, err := c.get(ctx, reqURL, EndpointAvailability)
		if err != nil {
			return err
		}
		// Fresh struct per attempt: a partially-decoded earlier body must not
		// leak fields into a later successful decode.
		var resp AvailabilityResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return fmt.Errorf("%w: availability: %v", ErrParse, err)
		}
		out = &resp
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// --- CDX index ---

// defaultFields is the CDX fl list; row positions follow this order.
var defaultFields = []string{"timestamp", "original", "mimetype", "statuscode", "digest", "length"}

// CDXQuery describes one CDX index request.
type CDXQuery struct {
	URL           string
	MatchType     string   // exact | prefix | host | domain ("" = exact)
	From, To      string   // 14-digit bounds, optional
	Closest       string   // 14-digit target; switches the sort to closeness
	Filters       []string // e.g. "statuscode:200"
	Collapse      string   // e.g. "timestamp:8", "digest"
	Limit         int
	ShowResumeKey bool
	Fields        []string // defaults to defaultFields
}

// CDXResult holds parsed data rows (header removed) plus pagination state.
type CDXResult struct {
	Rows      [][]string
	Fields    []string
	ResumeKey string
	Truncated bool
}

// CDX runs a capture-index query and parses the tabular JSON response.
func (c *Client) CDX(ctx context.Context, query CDXQuery) (*CDXResult, error) {
	fields := query.Fields
	if len(fields) == 0 {
		fields = defaultFields
	}

	q := url.Values{}
	q.Set("url", query.URL)
	q.Set("output", "json")
	q.Set("fl", strings.Join(fields, ","))
	if query.MatchType != "" {
		q.Set("matchType", query.MatchType)
	}
	if query.From != "" {
		q.Set("from", query.From)
	}
	if query.To != "" {
		q.Set("to", query.To)
	}
	if query.Closest != "" {
		q.Set("closest", query.Closest)
		q.Set("sort", "closest")
	}
	for _, f := range query.Filters {
		q.Add("filter", f)
	}
	if query.Collapse != "" {
		q.Set("collapse", query.Collapse)
	}
	if query.Limit > 0 {
		q.Set("limit", strconv.Itoa(query.Limit))
	}
	if query.ShowResumeKey {
		q.Set("showResumeKey", "true")
	}
	reqURL := c.config.CDXURL + "?" + q.Encode()

	var result *CDXResult
	err := c.withRetry(ctx, EndpointCDX, func(ctx context.Context) error {
		body, err := c.get(ctx, reqURL, EndpointCDX)
		if err != nil {
			return err
		}
		parsed, err := parseCDX(body, fields)
		if err != nil {
			return err
		}
		result = parsed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// parseCDX turns the raw JSON row array into data rows. The first row is a
// header and is discarded. A trailing two-element row whose first element is
// empty is a resumption key, not data.
func parseCDX(body []byte, fields []string) (*CDXResult, error) {
	var rows [][]string
	if len(strings.TrimSpace(string(body))) == 0 {
		return &CDXResult{Fields: fields}, nil
	}
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("%w: cdx: %v", ErrParse, err)
	}
	if len(rows) == 0 {
		return &CDXResult{Fields: fields}, nil
	}

	data := rows[1:] // header row

	result := &CDXResult{Fields: fields}
	// A truncated response ends with an empty spacer row followed by the
	// ["", key] resume marker. Strip empty rows on both sides of the marker so
	// neither ordering leaves a zero-field row in the data.
	data = trimEmptyRows(data)
	if n := len(data); n > 0 && len(data[n-1]) == 2 && data[n-1][0] == "" {
		result.ResumeKey = data[n-1][1]
		result.Truncated = true
		data = trimEmptyRows(data[:n-1])
	}
	result.Rows = data
	return result, nil
}

func trimEmptyRows(rows [][]string) [][]string {
	for len(rows) > 0 && len(rows[len(rows)-1]) == 0 {
		rows = rows[:len(rows)-1]
	}
	return rows
}

// --- snapshot content ---

var resolvedTimestampRe = regexp.MustCompile(`/web/(\d{14})`)

// SnapshotContent is one fetched capture body.
type SnapshotContent struct {
	Body               []byte
	StatusCode         int
	ContentType        string
	FinalURL           string
	ResolvedTimestamp  string // 14-digit stamp from the final redirect target
	RequestedTimestamp string
}

// Redirected reports whether the archive served a different capture than the
// one requested (closest-available semantics on the content endpoint).
func (s *SnapshotContent) Redirected() bool {
	return s.ResolvedTimestamp != "" && s.ResolvedTimestamp != s.RequestedTimestamp
}

// Snapshot fetches one archived capture. With raw=true the id_ suffix is sent
// so the body comes back without the archive's banner injection.
func (c *Client) Snapshot(ctx context.Context, target, timestamp string, raw bool) (*SnapshotContent, error) {
	suffix := ""
	if raw {
		suffix = "id_"
	}
	reqURL := fmt.Sprintf("%s/%s%s/%s", c.config.WebURL, timestamp, suffix, target)

	var snap *SnapshotContent
	err := c.withRetry(ctx, EndpointContent, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return fmt.Errorf("wbclient: new request: %w", err)
		}
		req.Header.Set("User-Agent", c.config.UserAgent)

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("wbclient: content fetch: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &StatusError{Code: resp.StatusCode, Endpoint: EndpointContent}
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, c.config.MaxBytes))
		if err != nil {
			return fmt.Errorf("wbclient: read body: %w", err)
		}

		finalURL := reqURL
		if resp.Request != nil && resp.Request.URL != nil {
			finalURL = resp.Request.URL.String()
		}
		resolved := timestamp
		if m := resolvedTimestampRe.FindStringSubmatch(finalURL); m != nil {
			resolved = m[1]
		}

		snap = &SnapshotContent{
			Body:               body,
			StatusCode:         resp.StatusCode,
			ContentType:        resp.Header.Get("Content-Type"),
			FinalURL:           finalURL,
			ResolvedTimestamp:  resolved,
			RequestedTimestamp: timestamp,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// get performs one GET, mapping non-2xx statuses to *StatusError.
func (c *Client) get(ctx context.Context, reqURL, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("wbclient: new request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("wbclient: %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode, Endpoint: endpoint}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.config.MaxBytes))
	if err != nil {
		return nil, fmt.Errorf("wbclient: read body: %w", err)
	}
	return body, nil
}
