// Package alphavantage is a thin client for the Alpha Vantage query API. Every
// series (quotes, fundamentals, indicators, FX, commodities, macro data) is
// one GET on the same endpoint, selected by the "function" parameter.
package alphavantage

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// DefaultBaseURL is the Alpha Vantage query endpoint.
const DefaultBaseURL = "https://www.alphavantage.co/query"

// Client fetches series from Alpha Vantage.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the query endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithHTTPClient replaces the HTTP client. The client is used as given, without
// tracing instrumentation. A nil client keeps the default.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the timeout of the current HTTP client. Non-positive
// durations are ignored.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a client authenticated with apiKey.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: zap.NewNop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Request fetches one series. The symbol parameter is sent only when symbol is
// non-empty; params are appended as-is. A non-200 response yields an
// *UpstreamError. Provider-level notes and error messages inside a 200 body
// are returned unchanged.
//
// JSON bodies decode to a map. CSV bodies (listing status, earnings and IPO
// calendars) decode to {"data": [{column: value}, ...]}.
func (c *Client) Request(ctx context.Context, function, symbol string, params url.Values) (map[string]any, error) {
	q := url.Values{}
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}

	q.Set("function", function)
	if symbol != "" {
		q.Set("symbol", symbol)
	}
	q.Set("apikey", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("alphavantage: create request: %w", err)
	}

	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("alphavantage: %s: %w", function, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("alphavantage: %s: read body: %w", function, err)
	}

	c.logger.Debug("alpha vantage request",
		zap.String("function", function),
		zap.String("symbol", symbol),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode != http.StatusOK {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return decode(body)
}

func decode(body []byte) (map[string]any, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		var v any
		if err := json.Unmarshal(trimmed, &v); err != nil {
			return nil, fmt.Errorf("alphavantage: decode json: %w", err)
		}

		if m, ok := v.(map[string]any); ok {
			return m, nil
		}

		return map[string]any{"data": v}, nil
	}

	rows, err := decodeCSV(trimmed)
	if err != nil {
		return nil, fmt.Errorf("alphavantage: decode csv: %w", err)
	}

	return map[string]any{"data": rows}, nil
}

func decodeCSV(body []byte) ([]any, error) {
	r := csv.NewReader(bytes.NewReader(body))
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	rows := make([]any, 0, len(records))
	if len(records) == 0 {
		return rows, nil
	}

	header := records[0]
	for _, rec := range records[1:] {
		row := make(map[string]any, len(header))
		for i, col := range header {
			if i < len(rec) {
				row[col] = rec[i]
			}
		}
		rows = append(rows, row)
	}

	return rows, nil
}
