// Package client talks to the catalog HTTP API.
package client

import (
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

	"github.com/louisbranch/meteorfall/internal/platform/timeouts"
	"github.com/louisbranch/meteorfall/internal/services/catalog/api/wire"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// maxErrorBody bounds how much of a failed response is read.
const maxErrorBody = 64 << 10

// StatusError is a non-2xx response from the catalog.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("catalog returned %d", e.StatusCode)
	}
	return fmt.Sprintf("catalog returned %d: %s", e.StatusCode, e.Message)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == code
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the transport client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.http = httpClient
		}
	}
}

// WithTimeout bounds each request.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// Client reads records and summaries from a catalog server.
type Client struct {
	base    *url.URL
	http    *http.Client
	timeout time.Duration
}

// New returns a client for the API mounted at baseURL, for example
// http://localhost:8090/api/v1/meteor.
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("base URL is required")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("base URL %q must be http or https", baseURL)
	}
	parsed.Path = strings.TrimSuffix(parsed.Path, "/")
	c := &Client{
		base:    parsed,
		http:    http.DefaultClient,
		timeout: timeouts.ClientRequest,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Page returns up to one page of records starting at offset.
func (c *Client) Page(ctx context.Context, offset int) ([]wire.Record, error) {
	query := url.Values{"offset": []string{strconv.Itoa(offset)}}
	var records []wire.Record
	if err := c.get(ctx, "/records", query, &records); err != nil {
		return nil, fmt.Errorf("page at %d: %w", offset, err)
	}
	return nonNil(records), nil
}

// ByPartition returns every record of the year key.
func (c *Client) ByPartition(ctx context.Context, key int) ([]wire.Record, error) {
	var records []wire.Record
	if err := c.get(ctx, "/records/"+strconv.Itoa(key), nil, &records); err != nil {
		return nil, fmt.Errorf("partition %d: %w", key, err)
	}
	return nonNil(records), nil
}

// Summaries returns one summary per year, ascending.
func (c *Client) Summaries(ctx context.Context) ([]wire.PartitionSummary, error) {
	var summaries []wire.PartitionSummary
	if err := c.get(ctx, "/partitions", nil, &summaries); err != nil {
		return nil, fmt.Errorf("partitions: %w", err)
	}
	if summaries == nil {
		summaries = []wire.PartitionSummary{}
	}
	return summaries, nil
}

// Health checks that the catalog can reach its store.
func (c *Client) Health(ctx context.Context) error {
	var health wire.Health
	if err := c.get(ctx, "/healthz", nil, &health); err != nil {
		return fmt.Errorf("health: %w", err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	target := *c.base
	target.Path = c.base.Path + path
	target.RawQuery = query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeStatusError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeStatusError(resp *http.Response) error {
	statusErr := &StatusError{StatusCode: resp.StatusCode}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return statusErr
	}
	var body wire.ErrorBody
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		statusErr.Message = body.Error
	} else {
		statusErr.Message = strings.TrimSpace(string(data))
	}
	return statusErr
}

func nonNil(records []wire.Record) []wire.Record {
	if records == nil {
		return []wire.Record{}
	}
	return records
}
