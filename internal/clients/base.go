package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"

	"github.com/andreasstove999/ecommerce-system/checkout-client-go/internal/middleware"
)

const HeaderIdempotencyKey = "Idempotency-Key"

// Client talks to one upstream HTTP API. Transport failures feed an optional
// circuit breaker; HTTP error statuses do not.
type Client struct {
	Name    string
	BaseURL *url.URL
	HTTP    *http.Client

	breaker *gobreaker.CircuitBreaker[*http.Response]
}

type Option func(*Client)

// WithBreaker opens the circuit after maxFailures consecutive transport
// failures and probes again after cooldown.
func WithBreaker(maxFailures uint32, cooldown time.Duration) Option {
	return func(c *Client) {
		if maxFailures == 0 {
			return
		}
		c.breaker = gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
			Name:        c.Name,
			MaxRequests: 1,
			Timeout:     cooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= maxFailures
			},
			IsSuccessful: isUpstreamHealthy,
		})
	}
}

// BreakerState is "closed", "half-open" or "open", or empty without a breaker.
func (c *Client) BreakerState() string {
	if c.breaker == nil {
		return ""
	}
	return c.breaker.State().String()
}

func NewClient(name string, baseURL string, httpClient *http.Client, opts ...Option) *Client {
	u, err := url.Parse(baseURL)
	if err != nil {
		// Fail fast: config error
		panic(fmt.Sprintf("invalid %s base url %q: %v", name, baseURL, err))
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	c := &Client{Name: name, BaseURL: u, HTTP: httpClient}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Do(ctx context.Context, method, path, rawQuery string, body io.Reader, inHeaders http.Header) (*http.Response, error) {
	rel := &url.URL{Path: strings.TrimPrefix(path, "/"), RawQuery: rawQuery}
	u := c.BaseURL.ResolveReference(rel)

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}

	for k, vv := range inHeaders {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}

	cid := middleware.GetCorrelationID(ctx)
	if cid == "" {
		cid = uuid.NewString()
	}
	req.Header.Set(middleware.HeaderCorrelationID, cid)

	// A request whose caller already gave up says nothing about the upstream.
	if c.breaker == nil || ctx.Err() != nil {
		return c.HTTP.Do(req)
	}
	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		return c.HTTP.Do(req)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.Name, err)
	}
	return resp, nil
}

// isUpstreamHealthy keeps caller cancellations out of the breaker counts:
// a closed tab or a cancelled poller is not an outage.
func isUpstreamHealthy(err error) bool {
	return err == nil || errors.Is(err, context.Canceled)
}

// doJSON sends in (when non-nil) as a JSON body and decodes a 2xx response
// into out. Non-2xx responses come back as *APIError; undecodable bodies as
// ErrContract.
func (c *Client) doJSON(ctx context.Context, method, path, rawQuery string, in, out any) error {
	headers := http.Header{}
	headers.Set("Accept", "application/json")

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
		headers.Set("Content-Type", "application/json")
		headers.Set(HeaderIdempotencyKey, uuid.NewString())
	}

	resp, err := c.Do(ctx, method, path, rawQuery, body, headers)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s %s response: %v", ErrContract, method, path, err)
	}
	return nil
}
