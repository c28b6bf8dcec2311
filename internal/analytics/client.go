// Package analytics proxies read-only reporting requests to the external
// analytics service. The service shares no code or schema with the task
// store; everything crosses this HTTP boundary.
package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrUnavailable stands in for every upstream failure mode: connection
// errors, timeouts, non-2xx statuses, and unparseable bodies. Callers must
// not learn which one occurred.
var ErrUnavailable = errors.New("analytics service unavailable")

// Response is a successful upstream reply, relayed verbatim.
type Response struct {
	Status int
	Body   []byte
}

type Client interface {
	UserStats(ctx context.Context, userID string) (Response, error)
	Productivity(ctx context.Context, userID, start, end string) (Response, error)
}

// HTTPClient calls the analytics service over HTTP with a bounded timeout.
type HTTPClient struct {
	baseURL string
	hc      *http.Client
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) UserStats(ctx context.Context, userID string) (Response, error) {
	return c.get(ctx, fmt.Sprintf("%s/analytics/user-stats/%s", c.baseURL, url.PathEscape(userID)))
}

func (c *HTTPClient) Productivity(ctx context.Context, userID, start, end string) (Response, error) {
	q := url.Values{}
	if start != "" {
		q.Set("start", start)
	}
	if end != "" {
		q.Set("end", end)
	}
	u := fmt.Sprintf("%s/analytics/productivity/%s", c.baseURL, url.PathEscape(userID))
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return c.get(ctx, u)
}

func (c *HTTPClient) get(ctx context.Context, u string) (Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Response{}, ErrUnavailable
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return Response{}, ErrUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Response{}, ErrUnavailable
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil || !json.Valid(body) {
		return Response{}, ErrUnavailable
	}
	return Response{Status: resp.StatusCode, Body: body}, nil
}
