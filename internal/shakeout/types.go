package shakeout

import (
	"fmt"
	"strings"
	"time"
)

// Customer identifies the paying user on the provider invoice. Fields the
// host does not know are sent as empty strings rather than omitted.
type Customer struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
}

// RedirectionURLs tells the provider where to send the payer's browser after
// checkout completes.
type RedirectionURLs struct {
	SuccessURL string `json:"success_url"`
	FailURL    string `json:"fail_url"`
	PendingURL string `json:"pending_url"`
}

// InvoiceItem is a single line item on the provider invoice.
type InvoiceItem struct {
	Name     string `json:"name"`
	Price    string `json:"price"`
	Quantity int    `json:"quantity"`
}

// InvoiceRequest is the create-invoice API body. Amounts are fixed-point
// decimal strings ("100.00").
type InvoiceRequest struct {
	Amount          string          `json:"amount"`
	Currency        string          `json:"currency"`
	DueDate         string          `json:"due_date"`
	Customer        Customer        `json:"customer"`
	RedirectionURLs RedirectionURLs `json:"redirection_urls"`
	InvoiceItems    []InvoiceItem   `json:"invoice_items"`
	WebhookURL      string          `json:"webhook_url,omitempty"`
}

// InvoiceData is the invoice identity block returned by the provider.
type InvoiceData struct {
	InvoiceID     string `json:"invoice_id"`
	InvoiceRef    string `json:"invoice_ref"`
	URL           string `json:"url"`
	InvoiceStatus string `json:"invoice_status"`
}

// InvoiceResponse is the create-invoice API response.
type InvoiceResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Errors  []any       `json:"errors"`
	Data    InvoiceData `json:"data"`
}

// Succeeded reports whether the provider accepted the invoice.
func (r InvoiceResponse) Succeeded() bool {
	return strings.EqualFold(strings.TrimSpace(r.Status), "success")
}

// ErrorText joins the provider's error messages for surfacing to callers.
// The errors array may contain plain strings or nested string arrays.
func (r InvoiceResponse) ErrorText() string {
	var parts []string
	for _, e := range r.Errors {
		switch v := e.(type) {
		case string:
			parts = append(parts, v)
		case []any:
			if len(v) > 0 {
				parts = append(parts, fmt.Sprint(v[0]))
			}
		default:
			parts = append(parts, fmt.Sprint(v))
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, "; ")
	}
	if strings.TrimSpace(r.Message) != "" {
		return r.Message
	}
	return "unknown provider error"
}

// InvoiceStatusResponse is the get-invoice-status API response.
type InvoiceStatusResponse struct {
	Status string      `json:"status"`
	Data   InvoiceData `json:"data"`
}

// ConnectivityResult describes the outcome of a gateway reachability probe.
type ConnectivityResult struct {
	Reachable     bool
	StatusCode    int
	ResolvedAddrs []string
	Detail        string
}

// DueDateFrom returns the invoice due date for an initiation at t: the next
// calendar day, provider date format.
func DueDateFrom(t time.Time) string {
	return t.AddDate(0, 0, 1).Format("2006-01-02")
}
