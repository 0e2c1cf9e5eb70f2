package orders

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/marketplace/internal/auth"
	"github.com/joao-fontenele/marketplace/internal/domain"
	"github.com/joao-fontenele/marketplace/internal/pricing"
	"github.com/joao-fontenele/marketplace/internal/telemetry"
)

// CartSource loads the cart a checkout consumes.
type CartSource interface {
	GetByID(ctx context.Context, id string) (*domain.Cart, error)
}

// PriceSource resolves the catalog prices snapshotted onto order items.
type PriceSource interface {
	ProductPrice(ctx context.Context, productID string) (decimal.Decimal, error)
	VariantModifier(ctx context.Context, variantID string) (string, decimal.Decimal, error)
}

type UserSource interface {
	UserByID(ctx context.Context, id string) (*domain.User, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, key string, event any) error
}

type Handler struct {
	repo      *OrderRepository
	carts     CartSource
	prices    PriceSource
	users     UserSource
	publisher EventPublisher
	metrics   *telemetry.Metrics
	logger    *slog.Logger
}

func NewHandler(repo *OrderRepository, carts CartSource, prices PriceSource,
	users UserSource, publisher EventPublisher, metrics *telemetry.Metrics,
	logger *slog.Logger) *Handler {
	return &Handler{
		repo:      repo,
		carts:     carts,
		prices:    prices,
		users:     users,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
	}
}

// HandleCheckout turns the cart into an order. Item prices are snapshotted
// from the catalog at this moment: base price plus the variant modifier
// when the item carries a variant.
func (h *Handler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	cartID := r.PathValue("id")
	actor, _ := auth.ActorFrom(r.Context())

	cart, err := h.carts.GetByID(r.Context(), cartID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "cart not found")
			return
		}
		h.logger.Error("failed to load cart", "error", err, "cart_id", cartID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if len(cart.Items) == 0 {
		h.writeError(w, http.StatusUnprocessableEntity, "cart is empty")
		return
	}

	items := make([]domain.OrderItem, 0, len(cart.Items))
	for _, cartItem := range cart.Items {
		price, err := h.priceItem(r.Context(), cartItem)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				h.writeError(w, http.StatusUnprocessableEntity, "cart references a missing product or variant")
				return
			}
			h.logger.Error("failed to price cart item", "error", err,
				"cart_id", cartID, "product_id", cartItem.ProductID)
			h.writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		items = append(items, domain.OrderItem{
			ProductID: cartItem.ProductID,
			VariantID: cartItem.VariantID,
			Quantity:  cartItem.Quantity,
			Price:     price,
		})
	}

	order := &domain.Order{
		UserID:   cart.UserID,
		VendorID: cart.VendorID,
		Items:    items,
	}

	if err := h.repo.Create(r.Context(), order, cart.ID); err != nil {
		if errors.Is(err, domain.ErrInsufficientStock) {
			h.writeError(w, http.StatusConflict, "insufficient stock")
			return
		}
		h.logger.Error("failed to create order", "error", err, "cart_id", cartID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.metrics.OrdersPlaced.Add(r.Context(), 1)
	h.publishOrderPlaced(r.Context(), order, actor)

	h.logger.Info("order placed", "order_id", order.ID, "user_id", order.UserID,
		"total", order.TotalPrice.Decimal.String())
	h.writeJSON(w, http.StatusCreated, order)
}

func (h *Handler) priceItem(ctx context.Context, item domain.CartItem) (decimal.Decimal, error) {
	base, err := h.prices.ProductPrice(ctx, item.ProductID)
	if err != nil {
		return decimal.Zero, err
	}

	if item.VariantID == nil {
		return pricing.ItemPrice(base, nil), nil
	}

	productID, modifier, err := h.prices.VariantModifier(ctx, *item.VariantID)
	if err != nil {
		return decimal.Zero, err
	}
	if productID != item.ProductID {
		return decimal.Zero, domain.ErrNotFound
	}

	return pricing.ItemPrice(base, &modifier), nil
}

// publishOrderPlaced emits the order.placed event. Publish failures are
// logged and do not fail the checkout; the order is already committed.
func (h *Handler) publishOrderPlaced(ctx context.Context, order *domain.Order, actor *domain.User) {
	email := ""
	if actor != nil {
		email = actor.Email
	} else if user, err := h.users.UserByID(ctx, order.UserID); err == nil {
		email = user.Email
	}

	event := domain.OrderPlacedEvent{
		OrderID:   order.ID,
		UserID:    order.UserID,
		UserEmail: email,
		VendorID:  order.VendorID,
		Total:     order.TotalPrice.Decimal,
		Items:     order.Items,
		Timestamp: time.Now().UTC(),
	}

	if err := h.publisher.Publish(ctx, order.ID, event); err != nil {
		h.logger.Error("failed to publish order.placed", "error", err, "order_id", order.ID)
	}
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	order, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "order not found")
			return
		}
		h.logger.Error("failed to get order", "error", err, "order_id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFrom(r.Context())

	orders, err := h.repo.ListByUser(r.Context(), actor.ID)
	if err != nil {
		h.logger.Error("failed to list orders", "error", err, "user_id", actor.ID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, orders)
}

type updateStatusRequest struct {
	Status domain.OrderStatus `json:"status"`
}

func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !req.Status.Valid() {
		h.writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	order, err := h.repo.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "order not found")
			return
		}
		h.logger.Error("failed to update order status", "error", err, "order_id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("order status updated", "order_id", id, "status", req.Status)
	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleRecompute(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	order, err := h.repo.RecomputeTotal(r.Context(), id)
	if err != nil {
		var recomputeErr *domain.RecomputeError
		if errors.As(err, &recomputeErr) && errors.Is(recomputeErr.Err, domain.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "order not found")
			return
		}
		h.logger.Error("failed to recompute order total", "error", err, "order_id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("order total recomputed", "order_id", id,
		"total", order.TotalPrice.Decimal.String())
	h.writeJSON(w, http.StatusOK, order)
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
