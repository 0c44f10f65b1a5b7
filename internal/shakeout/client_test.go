package shakeout_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/smartlearn/shakeout-gateway/internal/shakeout"
)

type plainDoer struct{ c *http.Client }

func (d plainDoer) Do(_ context.Context, req *http.Request) (*http.Response, error) {
	return d.c.Do(req)
}

func newClient(baseURL string) *shakeout.Client {
	return &shakeout.Client{
		APIKey:  "test-key",
		BaseURL: baseURL,
		HTTP:    plainDoer{c: http.DefaultClient},
	}
}

func TestCreateInvoiceSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/invoice" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "apikey test-key" {
			t.Errorf("unexpected authorization header %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","data":{"invoice_id":"INV-1","invoice_ref":"REF-1","url":"https://pay.example/INV-1"}}`))
	}))
	defer srv.Close()

	resp, err := newClient(srv.URL).CreateInvoice(context.Background(), shakeout.InvoiceRequest{
		Amount:   "100.00",
		Currency: "EGP",
	})
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	if !resp.Succeeded() {
		t.Fatalf("expected success, got status %q", resp.Status)
	}
	if resp.Data.InvoiceID != "INV-1" || resp.Data.URL != "https://pay.example/INV-1" {
		t.Fatalf("unexpected data: %+v", resp.Data)
	}
}

func TestCreateInvoiceProviderErrorMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"amount below minimum"}`))
	}))
	defer srv.Close()

	_, err := newClient(srv.URL).CreateInvoice(context.Background(), shakeout.InvoiceRequest{})
	var provErr *shakeout.ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if provErr.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("unexpected status code %d", provErr.StatusCode)
	}
	if provErr.Message != "amount below minimum" {
		t.Fatalf("unexpected message %q", provErr.Message)
	}
}

func TestCreateInvoiceProviderErrorFallbackMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream exploded"))
	}))
	defer srv.Close()

	_, err := newClient(srv.URL).CreateInvoice(context.Background(), shakeout.InvoiceRequest{})
	var provErr *shakeout.ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if provErr.Message != "HTTP Error 502" {
		t.Fatalf("unexpected message %q", provErr.Message)
	}
}

func TestCreateInvoiceInvalidResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>definitely not json</html>"))
	}))
	defer srv.Close()

	_, err := newClient(srv.URL).CreateInvoice(context.Background(), shakeout.InvoiceRequest{})
	var invErr *shakeout.InvalidResponseError
	if !errors.As(err, &invErr) {
		t.Fatalf("expected InvalidResponseError, got %v", err)
	}
}

func TestCreateInvoiceNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // refuse connections

	_, err := newClient(srv.URL).CreateInvoice(context.Background(), shakeout.InvoiceRequest{})
	var netErr *shakeout.NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
}

func TestGetInvoiceStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/invoices/INV-7" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"status":"success","data":{"invoice_id":"INV-7","invoice_status":"paid"}}`))
	}))
	defer srv.Close()

	resp, err := newClient(srv.URL).GetInvoiceStatus(context.Background(), "INV-7")
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	if resp.Data.InvoiceStatus != "paid" {
		t.Fatalf("unexpected status %q", resp.Data.InvoiceStatus)
	}
}

func TestConnectivityReachableOnAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	result, err := newClient(srv.URL).TestConnectivity(context.Background())
	if err != nil {
		t.Fatalf("connectivity: %v", err)
	}
	if !result.Reachable {
		t.Fatalf("401 should count as reachable: %+v", result)
	}
	if len(result.ResolvedAddrs) == 0 {
		t.Fatal("expected resolved addresses")
	}
}

func TestConnectivityUnreachableOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	result, err := newClient(srv.URL).TestConnectivity(context.Background())
	if err != nil {
		t.Fatalf("connectivity: %v", err)
	}
	if result.Reachable {
		t.Fatal("500 should not count as reachable")
	}
	if result.Detail == "" {
		t.Fatal("expected a detail message")
	}
}

func TestConnectivityDNSFailure(t *testing.T) {
	c := newClient("https://no-such-host.invalid")
	_, err := c.TestConnectivity(context.Background())
	if err == nil {
		t.Fatal("expected DNS resolution error")
	}
}
