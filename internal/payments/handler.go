package payments

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/joao-fontenele/marketplace/internal/auth"
	"github.com/joao-fontenele/marketplace/internal/domain"
	"github.com/joao-fontenele/marketplace/internal/pricing"
	"github.com/joao-fontenele/marketplace/internal/telemetry"
)

// VoucherSource resolves voucher codes submitted against a payment.
type VoucherSource interface {
	GetByCode(ctx context.Context, code string) (*domain.Voucher, error)
}

// OrderSource loads the order a payment settles.
type OrderSource interface {
	GetByID(ctx context.Context, id string) (*domain.Order, error)
}

type UserSource interface {
	UserByID(ctx context.Context, id string) (*domain.User, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, key string, event any) error
}

type Handler struct {
	repo      *PaymentRepository
	orders    OrderSource
	vouchers  VoucherSource
	users     UserSource
	publisher EventPublisher
	metrics   *telemetry.Metrics
	logger    *slog.Logger
}

func NewHandler(repo *PaymentRepository, orders OrderSource, vouchers VoucherSource,
	users UserSource, publisher EventPublisher, metrics *telemetry.Metrics,
	logger *slog.Logger) *Handler {
	return &Handler{
		repo:      repo,
		orders:    orders,
		vouchers:  vouchers,
		users:     users,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
	}
}

type createPaymentRequest struct {
	PaymentMethodID string `json:"payment_method_id"`
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("id")

	var req createPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.PaymentMethodID == "" {
		h.writeError(w, http.StatusBadRequest, "payment_method_id is required")
		return
	}

	payment := &domain.Payment{
		OrderID:         orderID,
		PaymentMethodID: req.PaymentMethodID,
	}

	if err := h.repo.Create(r.Context(), payment); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "order not found")
			return
		}
		if errors.Is(err, errOrderTotalMissing) {
			h.writeError(w, http.StatusConflict, "order total has not been computed")
			return
		}
		h.logger.Error("failed to create payment", "error", err, "order_id", orderID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("payment created", "payment_id", payment.ID, "order_id", orderID,
		"amount", payment.Amount.Decimal.String())
	h.writeJSON(w, http.StatusCreated, payment)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	payment, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "payment not found")
			return
		}
		h.logger.Error("failed to get payment", "error", err, "payment_id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, payment)
}

type applyVoucherRequest struct {
	Code string `json:"code"`
}

// HandleApplyVoucher attaches a voucher to a pending payment. The voucher
// must be unexpired, the order total must meet its minimum, and when the
// voucher is bound to a payment method it must match the payment's.
func (h *Handler) HandleApplyVoucher(w http.ResponseWriter, r *http.Request) {
	paymentID := r.PathValue("id")

	var req applyVoucherRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Code == "" {
		h.writeError(w, http.StatusBadRequest, "code is required")
		return
	}

	payment, err := h.repo.GetByID(r.Context(), paymentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "payment not found")
			return
		}
		h.logger.Error("failed to get payment", "error", err, "payment_id", paymentID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if payment.Status != domain.PaymentStatusPending {
		h.writeError(w, http.StatusConflict, "payment is not pending")
		return
	}

	voucher, err := h.vouchers.GetByCode(r.Context(), req.Code)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.rejectVoucher(w, r, req.Code, "unknown_code", "voucher not found")
			return
		}
		h.logger.Error("failed to get voucher", "error", err, "code", req.Code)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	order, err := h.orders.GetByID(r.Context(), payment.OrderID)
	if err != nil {
		h.logger.Error("failed to load order", "error", err, "order_id", payment.OrderID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if !order.TotalPrice.Valid {
		h.writeError(w, http.StatusConflict, "order total has not been computed")
		return
	}

	if voucher.PaymentMethodID != nil && *voucher.PaymentMethodID != payment.PaymentMethodID {
		h.rejectVoucher(w, r, req.Code, "payment_method", "voucher is restricted to a different payment method")
		return
	}

	if !pricing.VoucherValid(*voucher, order.TotalPrice.Decimal, time.Now().UTC()) {
		h.rejectVoucher(w, r, req.Code, "invalid", "voucher is expired or the order total is below its minimum")
		return
	}

	updated, err := h.repo.ApplyVoucher(r.Context(), paymentID, voucher.ID, voucher.DiscountAmount)
	if err != nil {
		if errors.Is(err, domain.ErrNegativeAppliedAmount) {
			h.writeError(w, http.StatusBadRequest, "applied amount cannot be negative")
			return
		}
		h.logger.Error("failed to apply voucher", "error", err,
			"payment_id", paymentID, "voucher_id", voucher.ID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("voucher applied", "payment_id", paymentID, "voucher_id", voucher.ID,
		"amount", updated.Amount.Decimal.String())
	h.writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) rejectVoucher(w http.ResponseWriter, r *http.Request, code, reason, message string) {
	h.metrics.VoucherRejections.Add(r.Context(), 1,
		metric.WithAttributes(attribute.String("reason", reason)))
	h.logger.Info("voucher rejected", "code", code, "reason", reason)
	h.writeError(w, http.StatusBadRequest, message)
}

func (h *Handler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	actor, _ := auth.ActorFrom(r.Context())

	payment, err := h.repo.Complete(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			h.writeError(w, http.StatusNotFound, "payment not found")
		case errors.Is(err, ErrAlreadyCompleted):
			h.writeError(w, http.StatusConflict, "payment already completed")
		default:
			h.logger.Error("failed to complete payment", "error", err, "payment_id", id)
			h.writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	h.metrics.PaymentsCompleted.Add(r.Context(), 1)
	h.metrics.PaymentAmount.Record(r.Context(), payment.Amount.Decimal.InexactFloat64())
	h.publishPaymentCompleted(r.Context(), payment, actor)

	h.logger.Info("payment completed", "payment_id", id,
		"amount", payment.Amount.Decimal.String())
	h.writeJSON(w, http.StatusOK, payment)
}

// publishPaymentCompleted emits the payment.completed event. Publish
// failures are logged and do not fail the request; the payment is already
// settled.
func (h *Handler) publishPaymentCompleted(ctx context.Context, payment *domain.Payment, actor *domain.User) {
	userID := ""
	email := ""
	if order, err := h.orders.GetByID(ctx, payment.OrderID); err == nil {
		userID = order.UserID
	}
	if actor != nil && actor.ID == userID {
		email = actor.Email
	} else if user, err := h.users.UserByID(ctx, userID); err == nil {
		email = user.Email
	}

	event := domain.PaymentCompletedEvent{
		PaymentID: payment.ID,
		OrderID:   payment.OrderID,
		UserID:    userID,
		UserEmail: email,
		Amount:    payment.Amount.Decimal,
		Timestamp: time.Now().UTC(),
	}

	if err := h.publisher.Publish(ctx, payment.ID, event); err != nil {
		h.logger.Error("failed to publish payment.completed", "error", err, "payment_id", payment.ID)
	}
}

func (h *Handler) HandleRecompute(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	payment, err := h.repo.RecomputeAmount(r.Context(), id)
	if err != nil {
		var recomputeErr *domain.RecomputeError
		if errors.As(err, &recomputeErr) && errors.Is(recomputeErr.Err, domain.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "payment not found")
			return
		}
		h.logger.Error("failed to recompute payment amount", "error", err, "payment_id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("payment amount recomputed", "payment_id", id,
		"amount", payment.Amount.Decimal.String())
	h.writeJSON(w, http.StatusOK, payment)
}

func (h *Handler) HandleListMethods(w http.ResponseWriter, r *http.Request) {
	methods, err := h.repo.ListMethods(r.Context())
	if err != nil {
		h.logger.Error("failed to list payment methods", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, methods)
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
