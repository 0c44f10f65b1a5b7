package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/smartlearn/shakeout-gateway/internal/common"
	"github.com/smartlearn/shakeout-gateway/internal/shakeout"
)

// Handler exposes HTTP endpoints for payment initiation, status polling and
// the gateway connectivity probe.
type Handler struct {
	Svc      *Service
	Probe    ConnectivityProber
	Validate *validator.Validate
}

// ConnectivityProber is the provider reachability check behind the ping
// endpoint.
type ConnectivityProber interface {
	TestConnectivity(ctx context.Context) (shakeout.ConnectivityResult, error)
}

type initiateReq struct {
	Component   string `json:"component" validate:"required"`
	PaymentArea string `json:"paymentArea" validate:"required"`
	ItemID      int64  `json:"itemId" validate:"required,gt=0"`
	UserID      string `json:"userId" validate:"required,uuid4"`
	Description string `json:"description" validate:"required,max=255"`
}

type initiateResp struct {
	RedirectURL string `json:"redirectUrl"`
}

// Initiate opens a provider invoice and returns the checkout redirect URL.
func (h *Handler) Initiate(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "PAYMENT_NOT_CONFIGURED", "payment handler unavailable", nil)
		return
	}
	var req initiateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid body", nil)
		return
	}
	req.Component = strings.TrimSpace(req.Component)
	req.PaymentArea = strings.TrimSpace(req.PaymentArea)
	if h.Validate != nil {
		if err := h.Validate.Struct(req); err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
			return
		}
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid userId", nil)
		return
	}

	pc := PurchaseContext{Component: req.Component, PaymentArea: req.PaymentArea, ItemID: req.ItemID}
	redirectURL, err := h.Svc.Initiate(r.Context(), pc, userID, req.Description)
	if err != nil {
		h.writeInitiateError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, initiateResp{RedirectURL: redirectURL})
}

func (h *Handler) writeInitiateError(w http.ResponseWriter, err error) {
	common.RenderError(w, h.initiateError(err))
}

// initiateError maps service failures onto the shared error shape.
func (h *Handler) initiateError(err error) *common.AppError {
	switch {
	case errors.Is(err, ErrGatewayNotConfigured):
		return common.NewAppError("GATEWAY_NOT_CONFIGURED", "payment gateway is not configured", http.StatusServiceUnavailable, err)
	case errors.Is(err, ErrUnsupportedCurrency):
		return common.NewAppError("UNSUPPORTED_CURRENCY", err.Error(), http.StatusBadRequest, err)
	case errors.Is(err, ErrInvalidAmount):
		return common.NewAppError("INVALID_AMOUNT", "computed cost must be positive", http.StatusBadRequest, err)
	}
	var initErr *InitiationError
	if errors.As(err, &initErr) {
		return common.NewAppError("PROVIDER_ERROR", initErr.Reason, http.StatusBadGateway, err)
	}
	return common.NewAppError("INTERNAL", "payment initiation failed", http.StatusInternalServerError, err)
}

// Status returns the consolidated local + provider view for one invoice.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "PAYMENT_NOT_CONFIGURED", "payment handler unavailable", nil)
		return
	}
	invoiceID := strings.TrimSpace(chi.URLParam(r, "invoiceID"))
	if invoiceID == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invoiceID is required", nil)
		return
	}
	report, err := h.Svc.Status(r.Context(), invoiceID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.RenderError(w, common.NewAppError("NOT_FOUND", "invoice not found", http.StatusNotFound, err))
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "status lookup failed", nil)
		return
	}
	common.JSON(w, http.StatusOK, report)
}

// Ping runs the gateway connectivity self-test.
func (h *Handler) Ping(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Probe == nil {
		common.JSONError(w, http.StatusServiceUnavailable, "GATEWAY_NOT_CONFIGURED", "connectivity probe unavailable", nil)
		return
	}
	result, err := h.Probe.TestConnectivity(r.Context())
	if err != nil {
		common.JSONError(w, http.StatusBadGateway, "PROVIDER_UNREACHABLE", err.Error(), nil)
		return
	}
	common.JSON(w, http.StatusOK, result)
}
