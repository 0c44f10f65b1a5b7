package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX abstracts a pgx pool, connection or transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries wraps the SQL operations owned by the payment gateway core.
type Queries struct {
	db DBTX
}

// New constructs Queries over a pool, connection or transaction.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns Queries bound to the provided transaction.
func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

// IsUniqueViolation reports whether the error is a Postgres unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// CreatePaymentParams collects the fields required to open a payment record.
type CreatePaymentParams struct {
	UserID      uuid.UUID
	Component   string
	PaymentArea string
	ItemID      int64
	AmountCents int64
	Currency    string
	Gateway     string
}

const createPayment = `
INSERT INTO payments (id, user_id, component, payment_area, item_id, amount_cents, currency, gateway)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id, user_id, component, payment_area, item_id, amount_cents, currency, gateway, success, created_at, updated_at
`

// CreatePayment inserts a payment ledger row with success=false.
func (q *Queries) CreatePayment(ctx context.Context, arg CreatePaymentParams) (PaymentRecord, error) {
	row := q.db.QueryRow(ctx, createPayment,
		uuid.New(), arg.UserID, arg.Component, arg.PaymentArea, arg.ItemID, arg.AmountCents, arg.Currency, arg.Gateway,
	)
	return scanPayment(row)
}

const getPaymentByID = `
SELECT id, user_id, component, payment_area, item_id, amount_cents, currency, gateway, success, created_at, updated_at
FROM payments WHERE id = $1
`

// GetPaymentByID fetches a payment record by primary key.
func (q *Queries) GetPaymentByID(ctx context.Context, id uuid.UUID) (PaymentRecord, error) {
	return scanPayment(q.db.QueryRow(ctx, getPaymentByID, id))
}

const markPaymentSucceeded = `
UPDATE payments SET success = TRUE, updated_at = now() WHERE id = $1 AND success = FALSE
`

// MarkPaymentSucceeded flips the success flag. The success=FALSE guard keeps
// the flip single-shot under webhook races.
func (q *Queries) MarkPaymentSucceeded(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, markPaymentSucceeded, id)
	return err
}

// CreateGatewayInvoiceParams collects the fields persisted after a successful
// provider invoice creation.
type CreateGatewayInvoiceParams struct {
	PaymentID  uuid.UUID
	InvoiceID  string
	InvoiceRef string
	InvoiceURL string
}

const createGatewayInvoice = `
INSERT INTO gateway_invoices (id, payment_id, invoice_id, invoice_ref, invoice_url, status)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, payment_id, invoice_id, invoice_ref, invoice_url, status, created_at, updated_at
`

// CreateGatewayInvoice inserts a gateway invoice row with status pending.
func (q *Queries) CreateGatewayInvoice(ctx context.Context, arg CreateGatewayInvoiceParams) (GatewayInvoiceRecord, error) {
	row := q.db.QueryRow(ctx, createGatewayInvoice,
		uuid.New(), arg.PaymentID, arg.InvoiceID, arg.InvoiceRef, arg.InvoiceURL, StatusPending,
	)
	return scanInvoice(row)
}

const getGatewayInvoiceByInvoiceID = `
SELECT id, payment_id, invoice_id, invoice_ref, invoice_url, status, created_at, updated_at
FROM gateway_invoices WHERE invoice_id = $1
`

// GetGatewayInvoiceByInvoiceID resolves a webhook correlation key to its record.
func (q *Queries) GetGatewayInvoiceByInvoiceID(ctx context.Context, invoiceID string) (GatewayInvoiceRecord, error) {
	return scanInvoice(q.db.QueryRow(ctx, getGatewayInvoiceByInvoiceID, invoiceID))
}

const findPendingInvoice = `
SELECT gi.id, gi.payment_id, gi.invoice_id, gi.invoice_ref, gi.invoice_url, gi.status, gi.created_at, gi.updated_at
FROM gateway_invoices gi
JOIN payments p ON p.id = gi.payment_id
WHERE p.component = $1 AND p.payment_area = $2 AND p.item_id = $3 AND p.user_id = $4
  AND gi.status IN ('pending', 'processing')
ORDER BY gi.created_at DESC
LIMIT 1
`

// FindPendingInvoice returns the newest non-terminal invoice for a purchase
// context, for callers that want to avoid opening a duplicate invoice.
func (q *Queries) FindPendingInvoice(ctx context.Context, component, paymentArea string, itemID int64, userID uuid.UUID) (GatewayInvoiceRecord, error) {
	return scanInvoice(q.db.QueryRow(ctx, findPendingInvoice, component, paymentArea, itemID, userID))
}

const updateInvoiceStatusIfCurrent = `
UPDATE gateway_invoices SET status = $3, updated_at = now()
WHERE invoice_id = $1 AND status = $2
`

// UpdateInvoiceStatusIfCurrent applies a compare-and-set status transition.
// It returns false when the row was concurrently moved off the expected
// status; the caller should re-read and re-evaluate.
func (q *Queries) UpdateInvoiceStatusIfCurrent(ctx context.Context, invoiceID string, current, next InvoiceStatus) (bool, error) {
	tag, err := q.db.Exec(ctx, updateInvoiceStatusIfCurrent, invoiceID, current, next)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func scanPayment(row pgx.Row) (PaymentRecord, error) {
	var p PaymentRecord
	err := row.Scan(&p.ID, &p.UserID, &p.Component, &p.PaymentArea, &p.ItemID,
		&p.AmountCents, &p.Currency, &p.Gateway, &p.Success, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func scanInvoice(row pgx.Row) (GatewayInvoiceRecord, error) {
	var r GatewayInvoiceRecord
	err := row.Scan(&r.ID, &r.PaymentID, &r.InvoiceID, &r.InvoiceRef, &r.InvoiceURL,
		&r.Status, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}
