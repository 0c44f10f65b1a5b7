package payment

import (
	"strings"

	"github.com/smartlearn/shakeout-gateway/internal/store"
)

// MapProviderStatus converts the provider's status vocabulary into ledger
// statuses. Vocabulary the gateway does not recognise maps to StatusUnknown,
// which is logged but never persisted.
func MapProviderStatus(external string) store.InvoiceStatus {
	switch strings.ToLower(strings.TrimSpace(external)) {
	case "paid", "completed", "success":
		return store.StatusPaid
	case "failed":
		return store.StatusFailed
	case "cancelled", "canceled":
		return store.StatusCancelled
	case "expired":
		return store.StatusExpired
	case "processing":
		return store.StatusProcessing
	case "pending":
		return store.StatusPending
	}
	return store.StatusUnknown
}
