package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/marketplace/internal/domain"
)

// TokenFunc mints a service token for calls back into the marketplace API.
type TokenFunc func() (string, error)

type NotificationHandler struct {
	emailServiceURL string
	marketplaceURL  string
	token           TokenFunc
	httpClient      *http.Client
	logger          *slog.Logger
}

func NewNotificationHandler(emailServiceURL, marketplaceURL string, token TokenFunc, client *http.Client, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		emailServiceURL: emailServiceURL,
		marketplaceURL:  marketplaceURL,
		token:           token,
		httpClient:      client,
		logger:          logger,
	}
}

// HandleOrderPlaced sends the order confirmation email and moves the order
// into PROCESSING.
func (h *NotificationHandler) HandleOrderPlaced(ctx context.Context, payload []byte) error {
	var event domain.OrderPlacedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal order placed event: %w", err)
	}

	h.logger.Info("processing order placed event", "order_id", event.OrderID, "user_id", event.UserID)

	if err := h.sendOrderConfirmation(ctx, event); err != nil {
		h.logger.Error("failed to send confirmation email", "error", err, "order_id", event.OrderID)
		return fmt.Errorf("send confirmation email: %w", err)
	}

	if err := h.updateOrderStatus(ctx, event.OrderID, domain.OrderStatusProcessing); err != nil {
		h.logger.Error("failed to update order status", "error", err, "order_id", event.OrderID)
		return fmt.Errorf("update order status: %w", err)
	}

	h.logger.Info("order placed processing complete", "order_id", event.OrderID)
	return nil
}

// HandlePaymentCompleted sends the payment receipt email.
func (h *NotificationHandler) HandlePaymentCompleted(ctx context.Context, payload []byte) error {
	var event domain.PaymentCompletedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal payment completed event: %w", err)
	}

	h.logger.Info("processing payment completed event", "payment_id", event.PaymentID, "order_id", event.OrderID)

	if err := h.sendPaymentReceipt(ctx, event); err != nil {
		h.logger.Error("failed to send receipt email", "error", err, "payment_id", event.PaymentID)
		return fmt.Errorf("send receipt email: %w", err)
	}

	h.logger.Info("payment completed processing complete", "payment_id", event.PaymentID)
	return nil
}

func (h *NotificationHandler) sendOrderConfirmation(ctx context.Context, event domain.OrderPlacedEvent) error {
	body := map[string]string{
		"from":    "orders@marketplace.local",
		"to":      event.UserEmail,
		"subject": "Order Confirmation: " + event.OrderID,
		"body": fmt.Sprintf("Your order %s with %d items has been placed. Total: %s.",
			event.OrderID, len(event.Items), event.Total.StringFixed(2)),
	}

	return h.sendEmail(ctx, body)
}

func (h *NotificationHandler) sendPaymentReceipt(ctx context.Context, event domain.PaymentCompletedEvent) error {
	body := map[string]string{
		"from":    "payments@marketplace.local",
		"to":      event.UserEmail,
		"subject": "Payment Receipt: " + event.PaymentID,
		"body": fmt.Sprintf("We received your payment of %s for order %s. Thank you.",
			event.Amount.StringFixed(2), event.OrderID),
	}

	return h.sendEmail(ctx, body)
}

func (h *NotificationHandler) sendEmail(ctx context.Context, body map[string]string) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.emailServiceURL+"/send", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("email service returned status %d", resp.StatusCode)
	}

	return nil
}

func (h *NotificationHandler) updateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) error {
	body := map[string]string{
		"status": string(status),
	}

	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/orders/%s/status", h.marketplaceURL, orderID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	token, err := h.token()
	if err != nil {
		return fmt.Errorf("mint service token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("marketplace returned status %d", resp.StatusCode)
	}

	return nil
}
