// Package metricsapi reads official performance data from the reporting
// service over HTTP.
package metricsapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/bryanwahyu/advisor-guard/internal/domain/entity"
	"github.com/bryanwahyu/advisor-guard/internal/domain/metrics"
)

const maxBody = 1 << 20

// Client implements metrics.Provider against
// GET {base}/v1/metrics/{kind}/{id}?month=&year= and the matching /v1/goals path.
type Client struct {
	base   string
	token  string
	client *http.Client
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		base:   strings.TrimRight(baseURL, "/"),
		token:  token,
		client: &http.Client{Timeout: timeout},
	}
}

type payload struct {
	Kind   string         `json:"kind"`
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

func (c *Client) Endpoint(req metrics.Request) string {
	return c.url("metrics", req)
}

func (c *Client) Fetch(ctx context.Context, req metrics.Request) (*metrics.Record, error) {
	return c.get(ctx, c.url("metrics", req))
}

func (c *Client) Goals(ctx context.Context, req metrics.Request) (*metrics.Record, error) {
	return c.get(ctx, c.url("goals", req))
}

func (c *Client) url(resource string, req metrics.Request) string {
	u := fmt.Sprintf("%s/v1/%s/%s/%s", c.base, resource, url.PathEscape(string(req.Kind)), url.PathEscape(req.ID))
	q := url.Values{}
	if req.Period.Month != 0 {
		q.Set("month", strconv.Itoa(req.Period.Month))
	}
	if req.Period.Year != 0 {
		q.Set("year", strconv.Itoa(req.Period.Year))
	}
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

// get returns nil, nil on 404.
func (c *Client) get(ctx context.Context, u string) (*metrics.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, eris.Wrap(err, "metricsapi: build request")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "metricsapi: GET %s", u)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, eris.Errorf("metricsapi: GET %s: status %d: %s", u, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	dec := json.NewDecoder(io.LimitReader(resp.Body, maxBody))
	dec.UseNumber()
	var p payload
	if err := dec.Decode(&p); err != nil {
		return nil, eris.Wrapf(err, "metricsapi: decode %s", u)
	}
	zap.L().Debug("metricsapi: fetched", zap.String("url", u), zap.Int("fields", len(p.Fields)))

	return &metrics.Record{Kind: entity.Kind(p.Kind), ID: p.ID, Fields: p.Fields}, nil
}
