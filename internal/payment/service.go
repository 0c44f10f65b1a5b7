package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/smartlearn/shakeout-gateway/internal/config"
	"github.com/smartlearn/shakeout-gateway/internal/obs"
	"github.com/smartlearn/shakeout-gateway/internal/shakeout"
	"github.com/smartlearn/shakeout-gateway/internal/store"
)

// GatewayName labels payment rows written by this service.
const GatewayName = "shakeout"

var (
	// ErrGatewayNotConfigured is returned when api or secret key is empty.
	ErrGatewayNotConfigured = errors.New("payment: gateway credentials not configured")
	// ErrUnsupportedCurrency is returned when the payable currency is outside the gateway allow-list.
	ErrUnsupportedCurrency = errors.New("payment: currency not supported by gateway")
	// ErrInvalidAmount is returned when the computed cost is not strictly positive.
	ErrInvalidAmount = errors.New("payment: computed cost must be positive")
)

// InitiationError wraps any provider or persistence failure during payment
// initiation into a single caller-facing error carrying the cause verbatim.
type InitiationError struct {
	Reason string
	Err    error
}

func (e *InitiationError) Error() string {
	if e.Reason != "" {
		return "payment: initiation failed: " + e.Reason
	}
	return "payment: initiation failed"
}

func (e *InitiationError) Unwrap() error { return e.Err }

// InvoiceAPI is the provider surface the initiator depends on.
type InvoiceAPI interface {
	CreateInvoice(ctx context.Context, req shakeout.InvoiceRequest) (shakeout.InvoiceResponse, error)
	GetInvoiceStatus(ctx context.Context, invoiceID string) (shakeout.InvoiceStatusResponse, error)
}

// Service orchestrates payment initiation and status reads.
type Service struct {
	Q          Querier
	Tx         TxRunner
	Gateway    config.Gateway
	Invoices   InvoiceAPI
	Payables   PayableResolver
	Profiles   ProfileDirectory
	SiteRoot   string
	WebhookURL string
	Logger     zerolog.Logger
}

// Initiate opens a provider invoice for the purchase context and records the
// payment locally. It returns the provider checkout URL the caller should
// redirect the payer's browser to. All validation happens before any network
// call, and either both ledger rows are written or none is.
func (s *Service) Initiate(ctx context.Context, pc PurchaseContext, userID uuid.UUID, description string) (string, error) {
	if s == nil || s.Q == nil || s.Tx == nil || s.Invoices == nil || s.Payables == nil {
		return "", errors.New("payment: service not configured")
	}
	ctx, span := otel.Tracer("payment.Service").Start(ctx, "PaymentService.Initiate")
	defer span.End()
	span.SetAttributes(
		attribute.String("payment.component", pc.Component),
		attribute.String("payment.area", pc.PaymentArea),
		attribute.Int64("payment.item_id", pc.ItemID),
	)

	result := "error"
	currencyLabel := "unknown"
	defer func() {
		if obs.PaymentInitiateTotal != nil {
			obs.PaymentInitiateTotal.WithLabelValues(currencyLabel, result).Inc()
		}
	}()

	if !s.Gateway.Configured() {
		result = "not_configured"
		return "", ErrGatewayNotConfigured
	}
	payable, err := s.Payables.Payable(ctx, pc)
	if err != nil {
		result = "payable_error"
		return "", &InitiationError{Reason: "payable lookup failed", Err: err}
	}
	currencyLabel = payable.Currency
	if !s.Gateway.SupportsCurrency(payable.Currency) {
		result = "unsupported_currency"
		return "", fmt.Errorf("%w: %s", ErrUnsupportedCurrency, payable.Currency)
	}
	cost := roundedCost(payable.Amount, s.Gateway.SurchargePercent)
	if !cost.IsPositive() {
		result = "invalid_amount"
		return "", ErrInvalidAmount
	}

	req := s.buildInvoiceRequest(ctx, cost, payable.Currency, userID, description)
	resp, err := s.Invoices.CreateInvoice(ctx, req)
	if err != nil {
		span.RecordError(err)
		result = "provider_error"
		return "", &InitiationError{Reason: err.Error(), Err: err}
	}
	if !resp.Succeeded() {
		result = "provider_rejected"
		return "", &InitiationError{Reason: resp.ErrorText()}
	}

	if err := s.persistInitiation(ctx, pc, userID, cost, payable.Currency, resp.Data); err != nil {
		span.RecordError(err)
		result = "persist_error"
		reason := "recording payment failed"
		if store.IsUniqueViolation(err) {
			reason = "invoice " + resp.Data.InvoiceID + " already recorded"
		}
		return "", &InitiationError{Reason: reason, Err: err}
	}

	s.Logger.Info().
		Str("event", "payment_initiated").
		Str("invoice_id", resp.Data.InvoiceID).
		Str("component", pc.Component).
		Str("currency", payable.Currency).
		Str("amount", cost.StringFixed(2)).
		Msg("provider invoice created")
	result = "success"
	return resp.Data.URL, nil
}

func (s *Service) buildInvoiceRequest(ctx context.Context, cost decimal.Decimal, currency string, userID uuid.UUID, description string) shakeout.InvoiceRequest {
	var profile UserProfile
	if s.Profiles != nil {
		p, err := s.Profiles.Profile(ctx, userID)
		if err != nil {
			s.Logger.Warn().Err(err).Str("user_id", userID.String()).Msg("profile lookup failed, sending empty customer")
		} else {
			profile = p
		}
	}
	amount := cost.StringFixed(2)
	return shakeout.InvoiceRequest{
		Amount:   amount,
		Currency: currency,
		DueDate:  shakeout.DueDateFrom(time.Now()),
		Customer: shakeout.Customer{
			FirstName: profile.FirstName,
			LastName:  profile.LastName,
			Email:     profile.Email,
			Phone:     profile.Phone,
			Address:   profile.Address,
		},
		RedirectionURLs: shakeout.RedirectionURLs{
			SuccessURL: urlOrDefault(s.Gateway.SuccessURL, s.SiteRoot),
			FailURL:    urlOrDefault(s.Gateway.FailURL, s.SiteRoot),
			PendingURL: urlOrDefault(s.Gateway.PendingURL, s.SiteRoot),
		},
		InvoiceItems: []shakeout.InvoiceItem{{Name: description, Price: amount, Quantity: 1}},
		WebhookURL:   s.WebhookURL,
	}
}

// persistInitiation writes the payment row and the gateway invoice row. Both
// inserts run inside one transaction so a failure leaves no partial state.
func (s *Service) persistInitiation(ctx context.Context, pc PurchaseContext, userID uuid.UUID, cost decimal.Decimal, currency string, data shakeout.InvoiceData) error {
	return s.Tx.InTx(ctx, func(q Querier) error {
		paymentRec, err := q.CreatePayment(ctx, store.CreatePaymentParams{
			UserID:      userID,
			Component:   pc.Component,
			PaymentArea: pc.PaymentArea,
			ItemID:      pc.ItemID,
			AmountCents: cost.Mul(decimal.NewFromInt(100)).IntPart(),
			Currency:    currency,
			Gateway:     GatewayName,
		})
		if err != nil {
			return err
		}
		_, err = q.CreateGatewayInvoice(ctx, store.CreateGatewayInvoiceParams{
			PaymentID:  paymentRec.ID,
			InvoiceID:  data.InvoiceID,
			InvoiceRef: data.InvoiceRef,
			InvoiceURL: data.URL,
		})
		return err
	})
}

// StatusReport is the consolidated view returned to status pollers.
type StatusReport struct {
	InvoiceID      string              `json:"invoiceId"`
	Status         store.InvoiceStatus `json:"status"`
	ProviderStatus string              `json:"providerStatus,omitempty"`
}

// Status reports the ledger status for an invoice. For non-terminal records
// it also asks the provider for its current view, without mutating the
// ledger: settlement only ever flows through the webhook reconciler.
func (s *Service) Status(ctx context.Context, invoiceID string) (StatusReport, error) {
	rec, err := s.Q.GetGatewayInvoiceByInvoiceID(ctx, invoiceID)
	if err != nil {
		return StatusReport{}, err
	}
	report := StatusReport{InvoiceID: rec.InvoiceID, Status: rec.Status}
	if rec.Status.Terminal() || s.Invoices == nil {
		return report, nil
	}
	remote, err := s.Invoices.GetInvoiceStatus(ctx, invoiceID)
	if err != nil {
		s.Logger.Warn().Err(err).Str("invoice_id", invoiceID).Msg("provider status poll failed")
		return report, nil
	}
	report.ProviderStatus = remote.Data.InvoiceStatus
	return report, nil
}

func urlOrDefault(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

// roundedCost applies the configured surcharge percentage and rounds to two
// decimal places, the exponent shared by every supported currency.
func roundedCost(amount, surchargePct decimal.Decimal) decimal.Decimal {
	hundred := decimal.NewFromInt(100)
	return amount.Mul(hundred.Add(surchargePct)).Div(hundred).Round(2)
}
