// Package airtable is a read-only client for the Airtable REST API.
package airtable

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mchmarny/benchbase/pkg/config"
	"github.com/mchmarny/benchbase/pkg/net"
	"golang.org/x/time/rate"
)

const (
	// PageSizeMax is the largest page the API returns.
	PageSizeMax = 100

	errorBodyLimit = 64 << 10
)

// Record is one raw table row.
type Record struct {
	ID          string         `json:"id"`
	CreatedTime time.Time      `json:"createdTime"`
	Fields      map[string]any `json:"fields"`
}

// ListOptions narrows a table listing.
type ListOptions struct {
	View       string
	Formula    string
	Fields     []string
	PageSize   int
	MaxRecords int
}

type listResponse struct {
	Records []*Record `json:"records"`
	Offset  string    `json:"offset"`
}

// Client lists rows of tables in a single base.
type Client struct {
	cfg     *config.Config
	http    *http.Client
	limiter *rate.Limiter
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient replaces the bearer-token HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// NewClient creates a client for the base in cfg. Credentials are checked on
// the first remote call.
func NewClient(cfg *config.Config, opts ...Option) *Client {
	if cfg == nil {
		cfg = &config.Config{}
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	c := &Client{
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = net.GetOAuthClient(context.Background(), cfg.APIKey, cfg.Timeout)
	}
	return c
}

// Records lists every row of table.
func (c *Client) Records(ctx context.Context, table string) iter.Seq2[*Record, error] {
	return c.List(ctx, table, nil)
}

// List lazily pages through the rows of table. Iteration stops at the first
// error, which is yielded with a nil record.
func (c *Client) List(ctx context.Context, table string, opts *ListOptions) iter.Seq2[*Record, error] {
	return func(yield func(*Record, error) bool) {
		if err := c.cfg.Validate(); err != nil {
			yield(nil, err)
			return
		}
		if table == "" {
			yield(nil, errors.New("table name is required"))
			return
		}

		var (
			offset string
			count  int
		)
		for page := 1; ; page++ {
			resp, err := c.getPage(ctx, table, opts, offset)
			if err != nil {
				yield(nil, err)
				return
			}

			slog.Debug("got page", "table", table, "page", page, "records", len(resp.Records))

			for _, r := range resp.Records {
				if opts != nil && opts.MaxRecords > 0 && count >= opts.MaxRecords {
					return
				}
				if r.Fields == nil {
					r.Fields = map[string]any{}
				}
				count++
				if !yield(r, nil) {
					return
				}
			}

			if resp.Offset == "" {
				return
			}
			offset = resp.Offset
		}
	}
}

// First returns the first row matching formula or nil when none does.
func (c *Client) First(ctx context.Context, table, formula string) (*Record, error) {
	for r, err := range c.List(ctx, table, &ListOptions{Formula: formula, MaxRecords: 1, PageSize: 1}) {
		if err != nil {
			return nil, err
		}
		return r, nil
	}
	return nil, nil
}

func (c *Client) pageURL(table string, opts *ListOptions, offset string) string {
	q := url.Values{}
	pageSize := PageSizeMax
	if opts != nil {
		if opts.PageSize > 0 && opts.PageSize < PageSizeMax {
			pageSize = opts.PageSize
		}
		if opts.View != "" {
			q.Set("view", opts.View)
		}
		if opts.Formula != "" {
			q.Set("filterByFormula", opts.Formula)
		}
		if opts.MaxRecords > 0 {
			q.Set("maxRecords", strconv.Itoa(opts.MaxRecords))
		}
		for _, f := range opts.Fields {
			q.Add("fields[]", f)
		}
	}
	q.Set("pageSize", strconv.Itoa(pageSize))
	if offset != "" {
		q.Set("offset", offset)
	}

	return fmt.Sprintf("%s/%s/%s?%s", c.cfg.APIURL, url.PathEscape(c.cfg.BaseID), url.PathEscape(table), q.Encode())
}

func (c *Client) getPage(ctx context.Context, table string, opts *ListOptions, offset string) (*listResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &TransportError{Table: table, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.pageURL(table, opts, offset), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request for %s: %w", table, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Table: table, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		net.PrintHTTPResponse(resp)
		return nil, decodeError(table, resp)
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return nil, &TransportError{Table: table, StatusCode: resp.StatusCode, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return &lr, nil
}

// decodeError reads both error body shapes the API produces:
// {"error":{"type":"...","message":"..."}} and {"error":"CODE"}.
func decodeError(table string, resp *http.Response) error {
	te := &TransportError{Table: table, StatusCode: resp.StatusCode}

	b, err := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
	if err != nil {
		te.Err = err
		return te
	}

	var body struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(b, &body); err != nil || len(body.Error) == 0 {
		te.Message = string(b)
		return te
	}

	var detail struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body.Error, &detail); err == nil {
		te.Type = detail.Type
		te.Message = detail.Message
		return te
	}

	var code string
	if err := json.Unmarshal(body.Error, &code); err == nil {
		te.Type = code
	}
	return te
}
