package vouchers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/marketplace/internal/domain"
	"github.com/joao-fontenele/marketplace/internal/pricing"
)

type Handler struct {
	repo   *VoucherRepository
	logger *slog.Logger
}

func NewHandler(repo *VoucherRepository, logger *slog.Logger) *Handler {
	return &Handler{
		repo:   repo,
		logger: logger,
	}
}

type createVoucherRequest struct {
	Code              string          `json:"code"`
	DiscountAmount    decimal.Decimal `json:"discount_amount"`
	PaymentMethodID   *string         `json:"payment_method_id"`
	MinimumOrderValue decimal.Decimal `json:"minimum_order_value"`
	ExpiryDate        time.Time       `json:"expiry_date"`
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createVoucherRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Code == "" {
		h.writeError(w, http.StatusBadRequest, "code is required")
		return
	}
	if req.DiscountAmount.IsNegative() || req.MinimumOrderValue.IsNegative() {
		h.writeError(w, http.StatusBadRequest, "discount_amount and minimum_order_value must not be negative")
		return
	}
	if req.ExpiryDate.IsZero() {
		h.writeError(w, http.StatusBadRequest, "expiry_date is required")
		return
	}

	voucher := &domain.Voucher{
		Code:              req.Code,
		DiscountAmount:    req.DiscountAmount,
		PaymentMethodID:   req.PaymentMethodID,
		MinimumOrderValue: req.MinimumOrderValue,
		ExpiryDate:        req.ExpiryDate,
	}

	if err := h.repo.Create(r.Context(), voucher); err != nil {
		if errors.Is(err, ErrDuplicateCode) {
			h.writeError(w, http.StatusConflict, "voucher code already exists")
			return
		}
		h.logger.Error("failed to create voucher", "error", err, "code", req.Code)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("voucher created", "voucher_id", voucher.ID, "code", voucher.Code)
	h.writeJSON(w, http.StatusCreated, voucher)
}

func (h *Handler) HandleGetByCode(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")

	voucher, err := h.repo.GetByCode(r.Context(), code)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "voucher not found")
			return
		}
		h.logger.Error("failed to get voucher", "error", err, "code", code)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, voucher)
}

type validateRequest struct {
	OrderTotal decimal.Decimal `json:"order_total"`
}

type validateResponse struct {
	Valid             bool            `json:"valid"`
	DiscountAmount    decimal.Decimal `json:"discount_amount"`
	MinimumOrderValue decimal.Decimal `json:"minimum_order_value"`
	ExpiryDate        time.Time       `json:"expiry_date"`
}

// HandleValidate previews whether the voucher would apply to an order of
// the given total. It does not record a usage.
func (h *Handler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")

	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	voucher, err := h.repo.GetByCode(r.Context(), code)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "voucher not found")
			return
		}
		h.logger.Error("failed to get voucher", "error", err, "code", code)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, validateResponse{
		Valid:             pricing.VoucherValid(*voucher, req.OrderTotal, time.Now().UTC()),
		DiscountAmount:    voucher.DiscountAmount,
		MinimumOrderValue: voucher.MinimumOrderValue,
		ExpiryDate:        voucher.ExpiryDate,
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
