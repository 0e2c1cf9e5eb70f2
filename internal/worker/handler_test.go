package worker

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/marketplace/internal/domain"
)

func staticToken(token string) TokenFunc {
	return func() (string, error) { return token, nil }
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotificationHandler_HandleOrderPlaced(t *testing.T) {
	event := domain.OrderPlacedEvent{
		OrderID:   "order-1",
		UserID:    "user-1",
		UserEmail: "buyer@example.com",
		VendorID:  "vendor-1",
		Total:     decimal.RequireFromString("255.00"),
		Items: []domain.OrderItem{
			{ProductID: "product-1", Quantity: 3, Price: decimal.RequireFromString("85.00")},
		},
		Timestamp: time.Now().UTC(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}

	t.Run("sends confirmation and moves order to processing", func(t *testing.T) {
		var emailSent bool
		emailServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/send" {
				t.Errorf("expected /send, got %s", r.URL.Path)
			}
			var body map[string]string
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Fatalf("decode email body: %v", err)
			}
			if body["to"] != "buyer@example.com" {
				t.Errorf("expected to buyer@example.com, got %s", body["to"])
			}
			emailSent = true
			w.WriteHeader(http.StatusOK)
		}))
		defer emailServer.Close()

		var statusUpdated bool
		marketplaceServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/orders/order-1/status" {
				t.Errorf("expected /orders/order-1/status, got %s", r.URL.Path)
			}
			if r.Method != http.MethodPatch {
				t.Errorf("expected PATCH, got %s", r.Method)
			}
			if r.Header.Get("Authorization") != "Bearer service-token" {
				t.Errorf("expected service token, got %q", r.Header.Get("Authorization"))
			}
			var body map[string]string
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Fatalf("decode status body: %v", err)
			}
			if body["status"] != string(domain.OrderStatusProcessing) {
				t.Errorf("expected PROCESSING, got %s", body["status"])
			}
			statusUpdated = true
			w.WriteHeader(http.StatusOK)
		}))
		defer marketplaceServer.Close()

		handler := NewNotificationHandler(emailServer.URL, marketplaceServer.URL,
			staticToken("service-token"), http.DefaultClient, discardLogger())

		if err := handler.HandleOrderPlaced(context.Background(), payload); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !emailSent {
			t.Error("expected confirmation email to be sent")
		}
		if !statusUpdated {
			t.Error("expected order status to be updated")
		}
	})

	t.Run("fails when email service errors", func(t *testing.T) {
		emailServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer emailServer.Close()

		handler := NewNotificationHandler(emailServer.URL, "http://unused",
			staticToken("service-token"), http.DefaultClient, discardLogger())

		if err := handler.HandleOrderPlaced(context.Background(), payload); err == nil {
			t.Error("expected error when email service fails")
		}
	})

	t.Run("fails on malformed payload", func(t *testing.T) {
		handler := NewNotificationHandler("http://unused", "http://unused",
			staticToken("service-token"), http.DefaultClient, discardLogger())

		if err := handler.HandleOrderPlaced(context.Background(), []byte("not json")); err == nil {
			t.Error("expected error for malformed payload")
		}
	})
}

func TestNotificationHandler_HandlePaymentCompleted(t *testing.T) {
	event := domain.PaymentCompletedEvent{
		PaymentID: "payment-1",
		OrderID:   "order-1",
		UserID:    "user-1",
		UserEmail: "buyer@example.com",
		Amount:    decimal.RequireFromString("170.00"),
		Timestamp: time.Now().UTC(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}

	t.Run("sends receipt email", func(t *testing.T) {
		var emailSent bool
		emailServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var body map[string]string
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Fatalf("decode email body: %v", err)
			}
			if body["subject"] != "Payment Receipt: payment-1" {
				t.Errorf("unexpected subject: %s", body["subject"])
			}
			emailSent = true
			w.WriteHeader(http.StatusOK)
		}))
		defer emailServer.Close()

		handler := NewNotificationHandler(emailServer.URL, "http://unused",
			staticToken("service-token"), http.DefaultClient, discardLogger())

		if err := handler.HandlePaymentCompleted(context.Background(), payload); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !emailSent {
			t.Error("expected receipt email to be sent")
		}
	})

	t.Run("fails when email service errors", func(t *testing.T) {
		emailServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer emailServer.Close()

		handler := NewNotificationHandler(emailServer.URL, "http://unused",
			staticToken("service-token"), http.DefaultClient, discardLogger())

		if err := handler.HandlePaymentCompleted(context.Background(), payload); err == nil {
			t.Error("expected error when email service fails")
		}
	})
}
