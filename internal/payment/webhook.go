package payment

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/smartlearn/shakeout-gateway/internal/common"
	"github.com/smartlearn/shakeout-gateway/internal/config"
	"github.com/smartlearn/shakeout-gateway/internal/obs"
	"github.com/smartlearn/shakeout-gateway/internal/shakeout"
	"github.com/smartlearn/shakeout-gateway/internal/store"
)

// Webhook reconciles provider settlement notifications against the local
// ledger. Responses are plaintext; the provider only inspects the status
// code, the body is for operators reading delivery logs.
type Webhook struct {
	Q         Querier
	Tx        TxRunner
	Gateway   config.Gateway
	Deliverer OrderDeliverer
	Replay    *redis.Client
	ReplayTTL time.Duration
	Logger    zerolog.Logger
}

const maxWebhookBody = 1 << 20

// Handle is the HTTP entrypoint for provider webhooks.
func (h *Webhook) Handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		common.Text(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	status, msg := h.reconcile(r.Context(), body)
	common.Text(w, status, msg)
}

// reconcile runs the full verification and state-transition ladder for one
// webhook body and returns the HTTP status and plaintext message to answer
// with. Every early exit is deliberate: the provider retries anything
// non-2xx, so only genuinely retryable failures return 5xx.
func (h *Webhook) reconcile(ctx context.Context, body []byte) (int, string) {
	ctx, span := otel.Tracer("payment.Webhook").Start(ctx, "Webhook.reconcile")
	defer span.End()

	statusLabel := "unknown"
	result := "error"
	defer func() {
		if obs.PaymentWebhookTotal != nil {
			obs.PaymentWebhookTotal.WithLabelValues(statusLabel, result).Inc()
		}
	}()

	payload, err := shakeout.DecodePayload(body)
	if err != nil {
		result = "invalid_json"
		return http.StatusBadRequest, "Invalid JSON"
	}
	data, _ := payload["data"].(map[string]any)
	invoiceID := stringField(data, "invoice_id")
	if invoiceID == "" {
		result = "missing_invoice_id"
		return http.StatusBadRequest, "Missing invoice_id"
	}
	span.SetAttributes(attribute.String("payment.invoice_id", invoiceID))

	invoice, err := h.Q.GetGatewayInvoiceByInvoiceID(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			result = "unknown_invoice"
			return http.StatusNotFound, "Payment not found"
		}
		h.Logger.Error().Err(err).Str("invoice_id", invoiceID).Msg("invoice lookup failed")
		return http.StatusInternalServerError, "Server error"
	}
	paymentRec, err := h.Q.GetPaymentByID(ctx, invoice.PaymentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			result = "orphan_invoice"
			return http.StatusNotFound, "Payment record not found"
		}
		h.Logger.Error().Err(err).Str("invoice_id", invoiceID).Msg("payment lookup failed")
		return http.StatusInternalServerError, "Server error"
	}

	if ok, reason := h.verify(payload); !ok {
		h.Logger.Warn().
			Str("event", "webhook_rejected").
			Str("invoice_id", invoiceID).
			Str("reason", reason).
			Msg("webhook signature rejected")
		result = "invalid_signature"
		return http.StatusUnauthorized, "Invalid signature"
	}

	if h.Replay != nil {
		key := "wh:shakeout:" + common.Sha256Hex(string(body))
		fresh, err := h.Replay.SetNX(ctx, key, "1", h.replayTTL()).Result()
		if err != nil {
			h.Logger.Warn().Err(err).Str("invoice_id", invoiceID).Msg("replay guard unavailable, continuing")
		} else if !fresh {
			result = "replay"
			return http.StatusOK, "OK"
		}
	}

	providerStatus := stringField(data, "invoice_status")
	if providerStatus == "" {
		providerStatus = stringField(data, "status")
	}
	// The metric label carries the mapped vocabulary only; arbitrary
	// provider strings must not mint new time series.
	next := MapProviderStatus(providerStatus)
	if next == store.StatusUnknown {
		h.Logger.Warn().
			Str("event", "unknown_status").
			Str("invoice_id", invoiceID).
			Str("provider_status", providerStatus).
			Msg("unrecognised provider status, ignoring")
		result = "unknown_status"
		return http.StatusOK, "OK"
	}
	statusLabel = string(next)

	status, msg, err := h.apply(ctx, invoice, paymentRec, next)
	if err != nil {
		span.RecordError(err)
		h.Logger.Error().Err(err).
			Str("invoice_id", invoiceID).
			Str("new_status", string(next)).
			Msg("webhook reconciliation failed")
		return http.StatusInternalServerError, "Server error"
	}
	result = "applied"
	return status, msg
}

// verify decides whether the payload is trusted. A configured secret always
// wins; running without one is only allowed behind the explicit opt-in.
func (h *Webhook) verify(payload map[string]any) (bool, string) {
	if h.Gateway.SecretKey == "" {
		if h.Gateway.AllowUnsignedWebhooks {
			return true, ""
		}
		return false, "no secret configured and unsigned webhooks disallowed"
	}
	ok, err := shakeout.VerifySignature(payload, h.Gateway.SecretKey)
	if err != nil {
		if errors.Is(err, shakeout.ErrMissingSignature) {
			return false, "signature field missing"
		}
		return false, err.Error()
	}
	if !ok {
		return false, "signature mismatch"
	}
	return true, ""
}

// apply moves the invoice to next via a compare-and-swap on the current
// status. A losing racer re-reads once and re-evaluates against the fresh
// row; two racers notifying the same transition both end up answering 200.
func (h *Webhook) apply(ctx context.Context, invoice store.GatewayInvoiceRecord, paymentRec store.PaymentRecord, next store.InvoiceStatus) (int, string, error) {
	for attempt := 0; attempt < 2; attempt++ {
		current := invoice.Status
		if current == next {
			return http.StatusOK, "OK", nil
		}
		if current.Terminal() {
			h.Logger.Warn().
				Str("event", "status_anomaly").
				Str("invoice_id", invoice.InvoiceID).
				Str("old_status", string(current)).
				Str("new_status", string(next)).
				Msg("notification contradicts terminal status, not applied")
			return http.StatusOK, "OK", nil
		}
		if !store.CanTransition(current, next) {
			h.Logger.Warn().
				Str("event", "status_anomaly").
				Str("invoice_id", invoice.InvoiceID).
				Str("old_status", string(current)).
				Str("new_status", string(next)).
				Msg("disallowed status transition, not applied")
			return http.StatusOK, "OK", nil
		}

		won, err := h.transition(ctx, invoice, paymentRec, current, next)
		if err != nil {
			return 0, "", err
		}
		if won {
			h.Logger.Info().
				Str("event", "status_transition").
				Str("invoice_id", invoice.InvoiceID).
				Str("old_status", string(current)).
				Str("new_status", string(next)).
				Msg("invoice status updated")
			if next == store.StatusPaid {
				h.deliver(ctx, paymentRec)
			}
			return http.StatusOK, "OK", nil
		}

		// Lost the race: another notification moved the row first.
		invoice, err = h.Q.GetGatewayInvoiceByInvoiceID(ctx, invoice.InvoiceID)
		if err != nil {
			return 0, "", err
		}
	}
	return http.StatusOK, "OK", nil
}

// transition performs the CAS write. Moving to paid also flips the payment
// success flag, and the pair shares one transaction so a half-settled row
// cannot exist.
func (h *Webhook) transition(ctx context.Context, invoice store.GatewayInvoiceRecord, paymentRec store.PaymentRecord, current, next store.InvoiceStatus) (bool, error) {
	if next != store.StatusPaid {
		return h.Q.UpdateInvoiceStatusIfCurrent(ctx, invoice.InvoiceID, current, next)
	}
	if h.Tx == nil {
		return false, errors.New("payment: transaction runner not configured")
	}
	var won bool
	err := h.Tx.InTx(ctx, func(q Querier) error {
		var err error
		won, err = q.UpdateInvoiceStatusIfCurrent(ctx, invoice.InvoiceID, current, next)
		if err != nil || !won {
			return err
		}
		return q.MarkPaymentSucceeded(ctx, paymentRec.ID)
	})
	if err != nil {
		return false, err
	}
	return won, nil
}

// deliver hands the settled order to the fulfilment collaborator. Delivery
// failures are logged and retried out of band; the webhook still answers 200
// because the settlement itself is already durable.
func (h *Webhook) deliver(ctx context.Context, paymentRec store.PaymentRecord) {
	if h.Deliverer == nil {
		return
	}
	order := DeliveryOrder{
		Context: PurchaseContext{
			Component:   paymentRec.Component,
			PaymentArea: paymentRec.PaymentArea,
			ItemID:      paymentRec.ItemID,
		},
		PaymentID: paymentRec.ID,
		UserID:    paymentRec.UserID,
	}
	if err := h.Deliverer.Deliver(ctx, order); err != nil {
		h.Logger.Error().Err(err).
			Str("event", "delivery_enqueue_failed").
			Str("payment_id", paymentRec.ID.String()).
			Msg("order delivery could not be enqueued")
	}
}

func (h *Webhook) replayTTL() time.Duration {
	if h.ReplayTTL > 0 {
		return h.ReplayTTL
	}
	return 24 * time.Hour
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}
