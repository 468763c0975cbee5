package clients

import (
	"context"
	"errors"
	"time"
)

const healthTimeout = 2 * time.Second

// HealthProbe checks the store API through its cheapest real endpoint: a
// one-product catalog page.
type HealthProbe struct {
	Name   string
	Client *Client
}

type HealthResult struct {
	Name       string `json:"name"`
	OK         bool   `json:"ok"`
	StatusCode int    `json:"statusCode,omitempty"`
	LatencyMS  int64  `json:"latencyMs"`
	Breaker    string `json:"breaker,omitempty"`
	Error      string `json:"error,omitempty"`
}

// CheckHealth is OK only when the catalog answers with a page that decodes.
// A 2xx with an unexpected body is reported as down.
func CheckHealth(ctx context.Context, probe HealthProbe) HealthResult {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	res := HealthResult{Name: probe.Name, Breaker: probe.Client.BreakerState()}
	start := time.Now()
	_, err := NewCatalogClient(probe.Client).ListProducts(ctx, 1, 1)
	res.LatencyMS = time.Since(start).Milliseconds()

	var apiErr *APIError
	switch {
	case err == nil:
		res.OK = true
	case errors.As(err, &apiErr):
		res.StatusCode = apiErr.StatusCode
		res.Error = apiErr.Error()
	default:
		res.Error = err.Error()
	}
	return res
}
