package payment

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/smartlearn/shakeout-gateway/internal/store"
)

// PurchaseContext identifies what is being paid for in the host application.
type PurchaseContext struct {
	Component   string
	PaymentArea string
	ItemID      int64
}

// Payable is the host's description of a payable item.
type Payable struct {
	Amount      decimal.Decimal
	Currency    string
	Description string
}

// PayableResolver resolves a purchase context to a payable item. It is owned
// by the host application.
type PayableResolver interface {
	Payable(ctx context.Context, pc PurchaseContext) (Payable, error)
}

// UserProfile carries the customer identity fields forwarded to the provider
// invoice. Unknown fields stay empty strings.
type UserProfile struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Address   string
}

// ProfileDirectory looks up the paying user's profile.
type ProfileDirectory interface {
	Profile(ctx context.Context, userID uuid.UUID) (UserProfile, error)
}

// DeliveryOrder tells the host what to hand over after a payment settles.
type DeliveryOrder struct {
	Context   PurchaseContext
	PaymentID uuid.UUID
	UserID    uuid.UUID
}

// OrderDeliverer triggers order fulfilment in the host application.
type OrderDeliverer interface {
	Deliver(ctx context.Context, order DeliveryOrder) error
}

// TxRunner scopes a group of ledger writes to one transaction: fn's writes
// commit together or not at all. Wirings without a real transaction source
// must fail loudly rather than degrade to independent writes.
type TxRunner interface {
	InTx(ctx context.Context, fn func(Querier) error) error
}

// Querier is the subset of ledger operations the payment core depends on.
type Querier interface {
	CreatePayment(ctx context.Context, arg store.CreatePaymentParams) (store.PaymentRecord, error)
	GetPaymentByID(ctx context.Context, id uuid.UUID) (store.PaymentRecord, error)
	MarkPaymentSucceeded(ctx context.Context, id uuid.UUID) error
	CreateGatewayInvoice(ctx context.Context, arg store.CreateGatewayInvoiceParams) (store.GatewayInvoiceRecord, error)
	GetGatewayInvoiceByInvoiceID(ctx context.Context, invoiceID string) (store.GatewayInvoiceRecord, error)
	FindPendingInvoice(ctx context.Context, component, paymentArea string, itemID int64, userID uuid.UUID) (store.GatewayInvoiceRecord, error)
	UpdateInvoiceStatusIfCurrent(ctx context.Context, invoiceID string, current, next store.InvoiceStatus) (bool, error)
}
