package store

import (
	"time"

	"github.com/google/uuid"
)

// PaymentRecord is the host payment ledger entry written when an invoice is
// opened with the provider. The success flag flips exactly once, on the first
// paid webhook.
type PaymentRecord struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Component   string
	PaymentArea string
	ItemID      int64
	AmountCents int64
	Currency    string
	Gateway     string
	Success     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// GatewayInvoiceRecord maps a local payment to its provider invoice. The
// provider invoice id is the webhook correlation key and is unique.
type GatewayInvoiceRecord struct {
	ID         uuid.UUID
	PaymentID  uuid.UUID
	InvoiceID  string
	InvoiceRef string
	InvoiceURL string
	Status     InvoiceStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
