// Package supabase reads the odds feed through Supabase's PostgREST API as an
// alternative to a direct database connection.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alanyoungcy/oddsdesk/internal/domain"
)

// Client is the PostgREST client for the market_feed table and the
// get_steamers RPC. It implements domain.FeedStore and domain.MoverStore.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

var (
	_ domain.FeedStore  = (*Client)(nil)
	_ domain.MoverStore = (*Client)(nil)
)

// NewClient creates a PostgREST client.
//
// baseURL is the project URL, e.g. "https://abcd.supabase.co". apiKey is sent
// both as the apikey header and as a bearer token.
func NewClient(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With(slog.String("component", "supabase")),
	}
}

// ListSelections fetches market_feed rows matching q. Rows that fail to decode
// are logged and skipped.
func (c *Client) ListSelections(ctx context.Context, q domain.SnapshotQuery) ([]domain.SelectionRow, error) {
	params := url.Values{}
	params.Set("select", "*")
	if q.Sport != "" {
		params.Set("sport", "eq."+q.Sport)
	}
	if !q.StartAfter.IsZero() {
		params.Set("start_time", "gt."+q.StartAfter.UTC().Format(time.RFC3339))
	}
	if q.OpenOnly {
		params.Set("market_status", "eq.OPEN")
	}
	if q.PreMatchOnly {
		params.Set("in_play", "eq.false")
	}
	params.Set("order", "start_time.asc,market_id.asc,id.asc")

	body, err := c.do(ctx, http.MethodGet, "/rest/v1/market_feed?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("supabase: list selections: %w", err)
	}

	rows, dropped, err := DecodeSelections(body)
	if err != nil {
		return nil, err
	}
	for _, e := range dropped {
		c.logger.WarnContext(ctx, "dropping malformed feed row", slog.String("error", e.Error()))
	}
	return rows, nil
}

// ListMovers calls the get_steamers RPC.
func (c *Client) ListMovers(ctx context.Context, windowMinutes int) ([]domain.Mover, error) {
	payload, err := json.Marshal(map[string]int{"time_window_minutes": windowMinutes})
	if err != nil {
		return nil, fmt.Errorf("supabase: encode rpc args: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, "/rest/v1/rpc/get_steamers", payload)
	if err != nil {
		return nil, fmt.Errorf("supabase: get_steamers: %w", err)
	}

	var api []APIMover
	if err := json.Unmarshal(body, &api); err != nil {
		return nil, fmt.Errorf("supabase: decode get_steamers: %w", err)
	}
	movers := make([]domain.Mover, 0, len(api))
	for i := range api {
		movers = append(movers, api[i].ToDomain())
	}
	return movers, nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// do sends an authenticated request and returns the response body.
func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var rdr io.Reader
	if payload != nil {
		rdr = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}
	return body, nil
}

func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := string(body)
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, bodyStr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}
