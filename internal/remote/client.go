// Package remote implements the HTTP client for the hosted table store.
// The store exposes per-table select/insert/update/delete in the PostgREST
// style; its wire format is treated as opaque JSON.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrUnavailable wraps network failures and 5xx responses. Callers fall
// back to the local cache when they see it.
var ErrUnavailable = errors.New("remote store unavailable")

// StatusError is returned for non-successful responses that are not
// availability problems (4xx).
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("remote store returned %d: %s", e.Code, e.Body)
}

// Client calls the hosted table store.
type Client struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
}

// New constructs a client. Every call is bounded by timeout; the store
// layer never blocks the caller indefinitely.
func New(baseURL, accessToken string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		accessToken: accessToken,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

// SelectParams narrows and orders a table read.
type SelectParams struct {
	OrderBy   string // column name; empty means store order
	Ascending bool
	Filter    map[string]string // column -> exact-match value
}

// Select reads all rows of a table into out (a pointer to a slice).
func (c *Client) Select(ctx context.Context, table string, params SelectParams, out interface{}) error {
	endpoint := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, url.PathEscape(table))

	q := url.Values{}
	q.Set("select", "*")
	if params.OrderBy != "" {
		dir := "desc"
		if params.Ascending {
			dir = "asc"
		}
		q.Set("order", params.OrderBy+"."+dir)
	}
	for col, val := range params.Filter {
		q.Set(col, "eq."+val)
	}

	return c.do(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil, out)
}

// Insert writes one record to a table. The stored representation is
// decoded into out when out is non-nil.
func (c *Client) Insert(ctx context.Context, table string, record interface{}, out interface{}) error {
	endpoint := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, url.PathEscape(table))
	return c.do(ctx, http.MethodPost, endpoint, record, out)
}

// Update patches fields on the record matched by id.
func (c *Client) Update(ctx context.Context, table, id string, fields interface{}) error {
	endpoint := fmt.Sprintf("%s/rest/v1/%s?id=eq.%s", c.baseURL, url.PathEscape(table), url.QueryEscape(id))
	return c.do(ctx, http.MethodPatch, endpoint, fields, nil)
}

// Delete removes the record matched by id.
func (c *Client) Delete(ctx context.Context, table, id string) error {
	endpoint := fmt.Sprintf("%s/rest/v1/%s?id=eq.%s", c.baseURL, url.PathEscape(table), url.QueryEscape(id))
	return c.do(ctx, http.MethodDelete, endpoint, nil, nil)
}

// Ping checks reachability of the store; used by the readiness probe.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, c.baseURL+"/rest/v1/", nil, nil)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("apikey", c.accessToken)
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	if out != nil && method != http.MethodGet {
		req.Header.Set("Prefer", "return=representation")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: http %d", ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= 300 {
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(resp.Body)
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(buf.String())}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
