package store

// InvoiceStatus is the locally persisted gateway invoice state.
type InvoiceStatus string

const (
	StatusPending    InvoiceStatus = "pending"
	StatusProcessing InvoiceStatus = "processing"
	StatusPaid       InvoiceStatus = "paid"
	StatusFailed     InvoiceStatus = "failed"
	StatusCancelled  InvoiceStatus = "cancelled"
	StatusExpired    InvoiceStatus = "expired"

	// StatusUnknown is never written to the ledger; it marks provider
	// vocabulary we do not recognise.
	StatusUnknown InvoiceStatus = "unknown"
)

// Terminal reports whether no further transitions are accepted from s.
func (s InvoiceStatus) Terminal() bool {
	switch s {
	case StatusPaid, StatusFailed, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// Storable reports whether s may be persisted.
func (s InvoiceStatus) Storable() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusPaid, StatusFailed, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// CanTransition implements the invoice state machine: pending may move
// anywhere, processing may only settle, terminal states accept nothing.
func CanTransition(from, to InvoiceStatus) bool {
	if !to.Storable() || from == to {
		return false
	}
	switch from {
	case StatusPending:
		return true
	case StatusProcessing:
		return to != StatusPending
	default:
		return false
	}
}
