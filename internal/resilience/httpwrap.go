package resilience

import (
	"context"
	"errors"
	"net/http"
)

// HTTPClient wraps an http.Client with a circuit breaker. It deliberately
// performs a single attempt: retrying provider invoice calls is the caller's
// policy, not this layer's. The total-call timeout (including body read)
// comes from the wrapped http.Client.
type HTTPClient struct {
	Client  *http.Client
	Breaker *Breaker
}

// Do executes the request. When the breaker is open ErrOpenCircuit is
// returned without touching the network. A response with status >= 500 counts
// as a failure for breaker accounting but is returned to the caller as-is.
func (cl HTTPClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if cl.Client == nil {
		return nil, errors.New("resilience: http client not configured")
	}
	if cl.Breaker != nil && !cl.Breaker.Allow() {
		return nil, ErrOpenCircuit
	}

	resp, err := cl.Client.Do(req.WithContext(ctx))
	if cl.Breaker != nil {
		cl.Breaker.Report(err == nil && resp.StatusCode < http.StatusInternalServerError)
	}
	return resp, err
}
