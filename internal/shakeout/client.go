package shakeout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/smartlearn/shakeout-gateway/internal/obs"
)

const (
	connectTimeout = 10 * time.Second
	requestTimeout = 30 * time.Second
)

// Doer executes a prepared HTTP request. resilience.HTTPClient satisfies it.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Client issues authenticated calls to the Shake-Out vendor API. All calls
// are stateless; credentials and base URL are fixed at construction.
type Client struct {
	APIKey  string
	BaseURL string
	HTTP    Doer
}

// NewHTTPClient builds the underlying http.Client with the provider timeout
// policy: 10s to connect, 30s total including body read.
func NewHTTPClient() *http.Client {
	dialer := &net.Dialer{Timeout: connectTimeout}
	return &http.Client{
		Timeout: requestTimeout,
		Transport: otelhttp.NewTransport(&http.Transport{
			DialContext:         dialer.DialContext,
			TLSHandshakeTimeout: connectTimeout,
		}),
	}
}

// CreateInvoice opens an invoice with the provider and returns its identity
// and checkout URL.
func (c *Client) CreateInvoice(ctx context.Context, req InvoiceRequest) (InvoiceResponse, error) {
	var out InvoiceResponse
	body, err := c.do(ctx, http.MethodPost, c.endpoint("/invoice"), req, "create_invoice")
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return InvoiceResponse{}, &InvalidResponseError{Err: err}
	}
	return out, nil
}

// GetInvoiceStatus fetches the provider-side state of an invoice.
func (c *Client) GetInvoiceStatus(ctx context.Context, invoiceID string) (InvoiceStatusResponse, error) {
	var out InvoiceStatusResponse
	body, err := c.do(ctx, http.MethodGet, c.endpoint("/invoices/"+url.PathEscape(invoiceID)), nil, "get_invoice_status")
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return InvoiceStatusResponse{}, &InvalidResponseError{Err: err}
	}
	return out, nil
}

// TestConnectivity checks whether the configured gateway endpoint is alive.
// DNS resolution failure fails fast; any HTTP response below 500 proves the
// endpoint is live (401/404 still mean somebody answered).
func (c *Client) TestConnectivity(ctx context.Context) (ConnectivityResult, error) {
	target := c.endpoint("/status")
	parsed, err := url.Parse(target)
	if err != nil {
		return ConnectivityResult{}, fmt.Errorf("shakeout: invalid base url %q: %w", c.BaseURL, err)
	}
	addrs, err := net.DefaultResolver.LookupHost(ctx, parsed.Hostname())
	if err != nil {
		return ConnectivityResult{}, fmt.Errorf("shakeout: DNS resolution failed for %s: %w", parsed.Hostname(), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return ConnectivityResult{}, err
	}
	c.authorize(req)
	resp, err := c.HTTP.Do(ctx, req)
	if err != nil {
		return ConnectivityResult{
			Reachable:     false,
			ResolvedAddrs: addrs,
			Detail:        err.Error(),
		}, nil
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	result := ConnectivityResult{
		StatusCode:    resp.StatusCode,
		ResolvedAddrs: addrs,
		Reachable:     resp.StatusCode >= 200 && resp.StatusCode < 500,
	}
	if !result.Reachable {
		result.Detail = fmt.Sprintf("gateway responded with HTTP %d", resp.StatusCode)
	}
	return result, nil
}

func (c *Client) do(ctx context.Context, method, target string, payload any, operation string) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("shakeout: encode request: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)

	start := time.Now()
	resp, err := c.HTTP.Do(ctx, req)
	if err != nil {
		c.observe(operation, "network_error", start)
		return nil, &NetworkError{URL: target, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.observe(operation, "network_error", start)
		return nil, &NetworkError{URL: target, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.observe(operation, "provider_error", start)
		return nil, &ProviderError{
			StatusCode: resp.StatusCode,
			Message:    extractProviderMessage(body, resp.StatusCode),
		}
	}
	c.observe(operation, "success", start)
	return body, nil
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("Authorization", "apikey "+strings.TrimSpace(c.APIKey))
}

func (c *Client) endpoint(path string) string {
	return strings.TrimRight(c.BaseURL, "/") + path
}

func (c *Client) observe(operation, result string, start time.Time) {
	if obs.ProviderRequestDuration == nil {
		return
	}
	obs.ProviderRequestDuration.WithLabelValues(operation, result).Observe(obs.DurationMillis(time.Since(start)))
}

// extractProviderMessage pulls a human message out of an error body, falling
// back to a generic HTTP error string when the body has no "message" field.
func extractProviderMessage(body []byte, statusCode int) string {
	var parsed struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && strings.TrimSpace(parsed.Message) != "" {
		return parsed.Message
	}
	return fmt.Sprintf("HTTP Error %d", statusCode)
}
