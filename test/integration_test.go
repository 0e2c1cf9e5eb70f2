//go:build integration

package test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/marketplace/internal/accounts"
	"github.com/joao-fontenele/marketplace/internal/auth"
	"github.com/joao-fontenele/marketplace/internal/carts"
	"github.com/joao-fontenele/marketplace/internal/catalog"
	"github.com/joao-fontenele/marketplace/internal/domain"
	"github.com/joao-fontenele/marketplace/internal/messaging"
	"github.com/joao-fontenele/marketplace/internal/orders"
	"github.com/joao-fontenele/marketplace/internal/payments"
	"github.com/joao-fontenele/marketplace/internal/telemetry"
	"github.com/joao-fontenele/marketplace/internal/vouchers"
)

type nopPublisher struct{}

func (nopPublisher) Publish(ctx context.Context, key string, event any) error { return nil }

func newMarketplaceServer(t *testing.T, db *sql.DB) *httptest.Server {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	metrics, err := telemetry.NewMetrics()
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}

	issuer := auth.NewTokenIssuer([]byte("integration-secret"), time.Hour)
	guard := auth.NewGuard("/login", auth.NewSQLOwnershipResolver(db), logger)

	userRepo := accounts.NewUserRepository(db)
	catalogRepo := catalog.NewCatalogRepository(db)
	vendorRepo := catalog.NewVendorRepository(db)
	cartRepo := carts.NewCartRepository(db)
	orderRepo := orders.NewOrderRepository(db)
	paymentRepo := payments.NewPaymentRepository(db)
	voucherRepo := vouchers.NewVoucherRepository(db)

	accountsHandler := accounts.NewHandler(userRepo, issuer, nil, logger)
	catalogHandler := catalog.NewHandler(catalogRepo, vendorRepo, logger)
	vendorHandler := catalog.NewVendorHandler(vendorRepo, logger)
	cartHandler := carts.NewHandler(cartRepo, logger)
	orderHandler := orders.NewHandler(orderRepo, cartRepo, catalogRepo, userRepo, nopPublisher{}, metrics, logger)
	paymentHandler := payments.NewHandler(paymentRepo, orderRepo, voucherRepo, userRepo, nopPublisher{}, metrics, logger)
	voucherHandler := vouchers.NewHandler(voucherRepo, logger)

	authed := guard.RequireAuth()
	seller := guard.RequireCapability(auth.CapabilitySeller)
	staff := guard.RequireCapability(auth.CapabilityStaff)
	admin := guard.RequireCapability(auth.CapabilityAdmin)
	cartOwner := guard.RequireOwner("id", auth.ResourceCart)
	orderOwner := guard.RequireOwner("id", auth.ResourceOrder)
	paymentOwner := guard.RequireOwner("id", auth.ResourcePayment)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /register", accountsHandler.HandleRegister)
	mux.HandleFunc("POST /login", accountsHandler.HandleLogin)
	mux.HandleFunc("GET /profile", guard.Protect(accountsHandler.HandleProfile, authed))

	mux.HandleFunc("POST /vendors", guard.Protect(vendorHandler.HandleCreate, authed))
	mux.HandleFunc("POST /vendors/{id}/approve", guard.Protect(vendorHandler.HandleApprove, authed, staff))

	mux.HandleFunc("GET /products", catalogHandler.HandleListProducts)
	mux.HandleFunc("POST /products", guard.Protect(catalogHandler.HandleCreateProduct, authed, seller))
	mux.HandleFunc("POST /products/{id}/variants", guard.Protect(catalogHandler.HandleCreateVariant,
		authed, seller, guard.RequireOwner("id", auth.ResourceProduct)))
	mux.HandleFunc("GET /products/{id}/images", catalogHandler.HandleListImages)
	mux.HandleFunc("POST /products/{id}/images", guard.Protect(catalogHandler.HandleAddImage,
		authed, seller, guard.RequireOwner("id", auth.ResourceProduct)))
	mux.HandleFunc("POST /attributes", guard.Protect(catalogHandler.HandleCreateAttribute, authed, staff))
	mux.HandleFunc("POST /attributes/{id}/values", guard.Protect(catalogHandler.HandleCreateAttributeValue, authed, staff))

	mux.HandleFunc("POST /carts", guard.Protect(cartHandler.HandleCreate, authed))
	mux.HandleFunc("GET /carts/{id}", guard.Protect(cartHandler.HandleGet, authed, cartOwner))
	mux.HandleFunc("POST /carts/{id}/items", guard.Protect(cartHandler.HandleAddItem, authed, cartOwner))
	mux.HandleFunc("POST /carts/{id}/checkout", guard.Protect(orderHandler.HandleCheckout, authed, cartOwner))

	mux.HandleFunc("GET /orders/{id}", guard.Protect(orderHandler.HandleGet, authed, orderOwner))
	mux.HandleFunc("PATCH /orders/{id}/status", guard.Protect(orderHandler.HandleUpdateStatus, authed, staff))
	mux.HandleFunc("POST /orders/{id}/recompute", guard.Protect(orderHandler.HandleRecompute, authed, staff))

	mux.HandleFunc("POST /orders/{id}/payments", guard.Protect(paymentHandler.HandleCreate, authed, orderOwner))
	mux.HandleFunc("GET /payments/{id}", guard.Protect(paymentHandler.HandleGet, authed, paymentOwner))
	mux.HandleFunc("POST /payments/{id}/vouchers", guard.Protect(paymentHandler.HandleApplyVoucher, authed, paymentOwner))
	mux.HandleFunc("POST /payments/{id}/complete", guard.Protect(paymentHandler.HandleComplete, authed, paymentOwner))
	mux.HandleFunc("POST /payments/{id}/recompute", guard.Protect(paymentHandler.HandleRecompute, authed, staff))

	mux.HandleFunc("POST /vouchers", guard.Protect(voucherHandler.HandleCreate, authed, admin))

	server := httptest.NewServer(auth.Middleware(issuer, userRepo, logger)(mux))
	server.Client().CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return server
}

func doJSON(t *testing.T, client *http.Client, method, url, token string, body any) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return resp.StatusCode, data
}

func registerAndLogin(t *testing.T, client *http.Client, baseURL, username string) (string, domain.User) {
	t.Helper()

	status, body := doJSON(t, client, http.MethodPost, baseURL+"/register", "", map[string]string{
		"username": username,
		"password": "s3cret-" + username,
		"email":    username + "@example.com",
	})
	if status != http.StatusCreated {
		t.Fatalf("register %s: expected 201, got %d: %s", username, status, body)
	}

	status, body = doJSON(t, client, http.MethodPost, baseURL+"/login", "", map[string]string{
		"username": username,
		"password": "s3cret-" + username,
	})
	if status != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d: %s", username, status, body)
	}

	var resp struct {
		Token string      `json:"token"`
		User  domain.User `json:"user"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("failed to decode login response: %v", err)
	}
	return resp.Token, resp.User
}

func grantFlag(t *testing.T, db *sql.DB, userID, column string) {
	t.Helper()
	if _, err := db.Exec(fmt.Sprintf("UPDATE users SET %s = true WHERE id = $1", column), userID); err != nil {
		t.Fatalf("failed to grant %s: %v", column, err)
	}
}

func TestCheckoutAndPaymentFlow(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	connStr := SetupPostgres(ctx, t)

	db, err := MarketplaceDB(connStr)
	if err != nil {
		t.Fatalf("failed to open marketplace DB: %v", err)
	}
	defer func() { _ = db.Close() }()

	server := newMarketplaceServer(t, db)
	defer server.Close()
	client := server.Client()

	sellerToken, sellerUser := registerAndLogin(t, client, server.URL, "seller1")
	buyerToken, _ := registerAndLogin(t, client, server.URL, "buyer1")
	staffToken, staffUser := registerAndLogin(t, client, server.URL, "staff1")
	grantFlag(t, db, staffUser.ID, "is_staff")
	grantFlag(t, db, staffUser.ID, "is_superuser")

	// Seller opens a store. The is_vendor flag flips in the same transaction,
	// so a fresh login is not needed for the seller capability.
	status, body := doJSON(t, client, http.MethodPost, server.URL+"/vendors", sellerToken, map[string]string{
		"store_name": "First Store",
	})
	if status != http.StatusCreated {
		t.Fatalf("create vendor: expected 201, got %d: %s", status, body)
	}
	var vendor domain.Vendor
	if err := json.Unmarshal(body, &vendor); err != nil {
		t.Fatalf("failed to decode vendor: %v", err)
	}
	if vendor.UserID != sellerUser.ID {
		t.Fatalf("expected vendor owned by %s, got %s", sellerUser.ID, vendor.UserID)
	}

	status, body = doJSON(t, client, http.MethodPost, server.URL+"/vendors/"+vendor.ID+"/approve", staffToken, nil)
	if status != http.StatusOK {
		t.Fatalf("approve vendor: expected 200, got %d: %s", status, body)
	}

	// Staff defines a size attribute for variants.
	status, body = doJSON(t, client, http.MethodPost, server.URL+"/attributes", staffToken, map[string]string{"name": "size"})
	if status != http.StatusCreated {
		t.Fatalf("create attribute: expected 201, got %d: %s", status, body)
	}
	var attribute domain.Attribute
	if err := json.Unmarshal(body, &attribute); err != nil {
		t.Fatalf("failed to decode attribute: %v", err)
	}

	status, body = doJSON(t, client, http.MethodPost, server.URL+"/attributes/"+attribute.ID+"/values", staffToken, map[string]string{"value": "small"})
	if status != http.StatusCreated {
		t.Fatalf("create attribute value: expected 201, got %d: %s", status, body)
	}
	var attrValue domain.AttributeValue
	if err := json.Unmarshal(body, &attrValue); err != nil {
		t.Fatalf("failed to decode attribute value: %v", err)
	}

	status, body = doJSON(t, client, http.MethodPost, server.URL+"/products", sellerToken, map[string]any{
		"name":  "Hoodie",
		"price": "100.00",
		"stock": 10,
	})
	if status != http.StatusCreated {
		t.Fatalf("create product: expected 201, got %d: %s", status, body)
	}
	var product domain.Product
	if err := json.Unmarshal(body, &product); err != nil {
		t.Fatalf("failed to decode product: %v", err)
	}

	status, body = doJSON(t, client, http.MethodPost, server.URL+"/products/"+product.ID+"/variants", sellerToken, map[string]any{
		"attribute_value_id": attrValue.ID,
		"price_modifier":     "-15.00",
	})
	if status != http.StatusCreated {
		t.Fatalf("create variant: expected 201, got %d: %s", status, body)
	}
	var variant domain.ProductVariant
	if err := json.Unmarshal(body, &variant); err != nil {
		t.Fatalf("failed to decode variant: %v", err)
	}

	// The first image a seller adds becomes the default; a later one marked
	// default takes the flag over.
	status, body = doJSON(t, client, http.MethodPost, server.URL+"/products/"+product.ID+"/images", sellerToken, map[string]any{
		"url":      "https://cdn.marketplace.local/hoodie-front.jpg",
		"alt_text": "Hoodie, front",
	})
	if status != http.StatusCreated {
		t.Fatalf("add image: expected 201, got %d: %s", status, body)
	}
	var front domain.ProductImage
	if err := json.Unmarshal(body, &front); err != nil {
		t.Fatalf("failed to decode image: %v", err)
	}
	if !front.IsDefault {
		t.Fatal("expected first image to become the default")
	}

	status, body = doJSON(t, client, http.MethodPost, server.URL+"/products/"+product.ID+"/images", sellerToken, map[string]any{
		"url":        "https://cdn.marketplace.local/hoodie-back.jpg",
		"is_default": true,
	})
	if status != http.StatusCreated {
		t.Fatalf("add second image: expected 201, got %d: %s", status, body)
	}
	var back domain.ProductImage
	if err := json.Unmarshal(body, &back); err != nil {
		t.Fatalf("failed to decode image: %v", err)
	}

	status, body = doJSON(t, client, http.MethodGet, server.URL+"/products/"+product.ID+"/images", "", nil)
	if status != http.StatusOK {
		t.Fatalf("list images: expected 200, got %d: %s", status, body)
	}
	var images []domain.ProductImage
	if err := json.Unmarshal(body, &images); err != nil {
		t.Fatalf("failed to decode images: %v", err)
	}
	if len(images) != 2 {
		t.Fatalf("expected 2 images, got %d", len(images))
	}
	defaults := 0
	for _, image := range images {
		if image.IsDefault {
			defaults++
			if image.ID != back.ID {
				t.Fatalf("expected %s as default image, got %s", back.ID, image.ID)
			}
		}
	}
	if defaults != 1 {
		t.Fatalf("expected exactly one default image, got %d", defaults)
	}

	// Buyer builds a cart scoped to the seller's store.
	status, body = doJSON(t, client, http.MethodPost, server.URL+"/carts", buyerToken, map[string]string{
		"vendor_id": vendor.ID,
	})
	if status != http.StatusCreated {
		t.Fatalf("create cart: expected 201, got %d: %s", status, body)
	}
	var cart domain.Cart
	if err := json.Unmarshal(body, &cart); err != nil {
		t.Fatalf("failed to decode cart: %v", err)
	}

	status, body = doJSON(t, client, http.MethodPost, server.URL+"/carts/"+cart.ID+"/items", buyerToken, map[string]any{
		"product_id": product.ID,
		"variant_id": variant.ID,
		"quantity":   3,
	})
	if status != http.StatusCreated {
		t.Fatalf("add cart item: expected 201, got %d: %s", status, body)
	}

	status, body = doJSON(t, client, http.MethodPost, server.URL+"/carts/"+cart.ID+"/checkout", buyerToken, nil)
	if status != http.StatusCreated {
		t.Fatalf("checkout: expected 201, got %d: %s", status, body)
	}
	var order domain.Order
	if err := json.Unmarshal(body, &order); err != nil {
		t.Fatalf("failed to decode order: %v", err)
	}

	// 3 x (100.00 - 15.00) = 255.00
	if !order.TotalPrice.Valid || !order.TotalPrice.Decimal.Equal(decimal.RequireFromString("255.00")) {
		t.Fatalf("expected order total 255.00, got %v", order.TotalPrice)
	}
	if order.Status != domain.OrderStatusPending {
		t.Fatalf("expected status PENDING, got %s", order.Status)
	}

	var stock int
	if err := db.QueryRow("SELECT stock FROM products WHERE id = $1", product.ID).Scan(&stock); err != nil {
		t.Fatalf("failed to read stock: %v", err)
	}
	if stock != 7 {
		t.Fatalf("expected stock 7 after checkout, got %d", stock)
	}

	var methodID string
	if err := db.QueryRow("SELECT id FROM payment_methods WHERE name = 'credit_card'").Scan(&methodID); err != nil {
		t.Fatalf("failed to load payment method: %v", err)
	}

	// A payment cannot open against an order whose total is missing.
	if _, err := db.Exec("UPDATE orders SET total_price = NULL WHERE id = $1", order.ID); err != nil {
		t.Fatalf("failed to clear order total: %v", err)
	}
	status, body = doJSON(t, client, http.MethodPost, server.URL+"/orders/"+order.ID+"/payments", buyerToken, map[string]string{
		"payment_method_id": methodID,
	})
	if status != http.StatusConflict {
		t.Fatalf("payment without total: expected 409, got %d: %s", status, body)
	}

	// An explicit recompute repairs the drifted total.
	status, body = doJSON(t, client, http.MethodPost, server.URL+"/orders/"+order.ID+"/recompute", staffToken, nil)
	if status != http.StatusOK {
		t.Fatalf("recompute order: expected 200, got %d: %s", status, body)
	}
	var recomputed domain.Order
	if err := json.Unmarshal(body, &recomputed); err != nil {
		t.Fatalf("failed to decode order: %v", err)
	}
	if !recomputed.TotalPrice.Valid || !recomputed.TotalPrice.Decimal.Equal(decimal.RequireFromString("255.00")) {
		t.Fatalf("expected recomputed total 255.00, got %v", recomputed.TotalPrice)
	}

	// Recomputing entities that do not exist is a visible failure, not a
	// silent no-op.
	status, body = doJSON(t, client, http.MethodPost, server.URL+"/orders/"+uuid.NewString()+"/recompute", staffToken, nil)
	if status != http.StatusNotFound {
		t.Fatalf("recompute unknown order: expected 404, got %d: %s", status, body)
	}
	status, body = doJSON(t, client, http.MethodPost, server.URL+"/payments/"+uuid.NewString()+"/recompute", staffToken, nil)
	if status != http.StatusNotFound {
		t.Fatalf("recompute unknown payment: expected 404, got %d: %s", status, body)
	}

	status, body = doJSON(t, client, http.MethodPost, server.URL+"/orders/"+order.ID+"/payments", buyerToken, map[string]string{
		"payment_method_id": methodID,
	})
	if status != http.StatusCreated {
		t.Fatalf("create payment: expected 201, got %d: %s", status, body)
	}
	var payment domain.Payment
	if err := json.Unmarshal(body, &payment); err != nil {
		t.Fatalf("failed to decode payment: %v", err)
	}
	if !payment.Amount.Valid || !payment.Amount.Decimal.Equal(decimal.RequireFromString("255.00")) {
		t.Fatalf("expected payment amount 255.00, got %v", payment.Amount)
	}

	status, body = doJSON(t, client, http.MethodPost, server.URL+"/vouchers", staffToken, map[string]any{
		"code":                "SAVE30",
		"discount_amount":     "30.00",
		"minimum_order_value": "150.00",
		"expiry_date":         time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339),
	})
	if status != http.StatusCreated {
		t.Fatalf("create voucher: expected 201, got %d: %s", status, body)
	}

	status, body = doJSON(t, client, http.MethodPost, server.URL+"/payments/"+payment.ID+"/vouchers", buyerToken, map[string]string{
		"code": "SAVE30",
	})
	if status != http.StatusOK {
		t.Fatalf("apply voucher: expected 200, got %d: %s", status, body)
	}
	if err := json.Unmarshal(body, &payment); err != nil {
		t.Fatalf("failed to decode payment: %v", err)
	}
	if !payment.Amount.Decimal.Equal(decimal.RequireFromString("225.00")) {
		t.Fatalf("expected payment amount 225.00 after voucher, got %v", payment.Amount)
	}
	if len(payment.Usages) != 1 {
		t.Fatalf("expected 1 voucher usage, got %d", len(payment.Usages))
	}

	status, body = doJSON(t, client, http.MethodPost, server.URL+"/payments/"+payment.ID+"/complete", buyerToken, nil)
	if status != http.StatusOK {
		t.Fatalf("complete payment: expected 200, got %d: %s", status, body)
	}
	if err := json.Unmarshal(body, &payment); err != nil {
		t.Fatalf("failed to decode payment: %v", err)
	}
	if payment.Status != domain.PaymentStatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", payment.Status)
	}

	var isPaid bool
	if err := db.QueryRow("SELECT is_paid FROM orders WHERE id = $1", order.ID).Scan(&isPaid); err != nil {
		t.Fatalf("failed to read order: %v", err)
	}
	if !isPaid {
		t.Fatal("expected order to be marked paid")
	}

	status, body = doJSON(t, client, http.MethodPost, server.URL+"/payments/"+payment.ID+"/complete", buyerToken, nil)
	if status != http.StatusConflict {
		t.Fatalf("second complete: expected 409, got %d: %s", status, body)
	}
}

func TestCartRejectsOtherVendorsProducts(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	connStr := SetupPostgres(ctx, t)

	db, err := MarketplaceDB(connStr)
	if err != nil {
		t.Fatalf("failed to open marketplace DB: %v", err)
	}
	defer func() { _ = db.Close() }()

	server := newMarketplaceServer(t, db)
	defer server.Close()
	client := server.Client()

	sellerAToken, _ := registerAndLogin(t, client, server.URL, "sellerA")
	sellerBToken, _ := registerAndLogin(t, client, server.URL, "sellerB")
	buyerToken, _ := registerAndLogin(t, client, server.URL, "buyer2")

	var vendorA, vendorB domain.Vendor
	status, body := doJSON(t, client, http.MethodPost, server.URL+"/vendors", sellerAToken, map[string]string{"store_name": "Store A"})
	if status != http.StatusCreated {
		t.Fatalf("create vendor A: expected 201, got %d: %s", status, body)
	}
	if err := json.Unmarshal(body, &vendorA); err != nil {
		t.Fatalf("failed to decode vendor A: %v", err)
	}

	status, body = doJSON(t, client, http.MethodPost, server.URL+"/vendors", sellerBToken, map[string]string{"store_name": "Store B"})
	if status != http.StatusCreated {
		t.Fatalf("create vendor B: expected 201, got %d: %s", status, body)
	}
	if err := json.Unmarshal(body, &vendorB); err != nil {
		t.Fatalf("failed to decode vendor B: %v", err)
	}

	var productB domain.Product
	status, body = doJSON(t, client, http.MethodPost, server.URL+"/products", sellerBToken, map[string]any{
		"name":  "Mug",
		"price": "12.50",
		"stock": 5,
	})
	if status != http.StatusCreated {
		t.Fatalf("create product B: expected 201, got %d: %s", status, body)
	}
	if err := json.Unmarshal(body, &productB); err != nil {
		t.Fatalf("failed to decode product B: %v", err)
	}

	var cart domain.Cart
	status, body = doJSON(t, client, http.MethodPost, server.URL+"/carts", buyerToken, map[string]string{"vendor_id": vendorA.ID})
	if status != http.StatusCreated {
		t.Fatalf("create cart: expected 201, got %d: %s", status, body)
	}
	if err := json.Unmarshal(body, &cart); err != nil {
		t.Fatalf("failed to decode cart: %v", err)
	}

	status, body = doJSON(t, client, http.MethodPost, server.URL+"/carts/"+cart.ID+"/items", buyerToken, map[string]any{
		"product_id": productB.ID,
		"quantity":   1,
	})
	if status != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for cross-vendor item, got %d: %s", status, body)
	}
}

func TestOwnershipGuard(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	connStr := SetupPostgres(ctx, t)

	db, err := MarketplaceDB(connStr)
	if err != nil {
		t.Fatalf("failed to open marketplace DB: %v", err)
	}
	defer func() { _ = db.Close() }()

	server := newMarketplaceServer(t, db)
	defer server.Close()
	client := server.Client()

	ownerToken, _ := registerAndLogin(t, client, server.URL, "owner")
	otherToken, _ := registerAndLogin(t, client, server.URL, "other")

	var cart domain.Cart
	status, body := doJSON(t, client, http.MethodPost, server.URL+"/carts", ownerToken, map[string]string{"vendor_id": newVendorID(t, client, server.URL, ownerToken)})
	if status != http.StatusCreated {
		t.Fatalf("create cart: expected 201, got %d: %s", status, body)
	}
	if err := json.Unmarshal(body, &cart); err != nil {
		t.Fatalf("failed to decode cart: %v", err)
	}

	// Anonymous callers are redirected to the login page.
	req, err := http.NewRequest(http.MethodGet, server.URL+"/carts/"+cart.ID, nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("expected 303 for anonymous access, got %d", resp.StatusCode)
	}
	if location := resp.Header.Get("Location"); location != "/login" {
		t.Fatalf("expected redirect to /login, got %s", location)
	}

	// A logged-in stranger is forbidden.
	status, body = doJSON(t, client, http.MethodGet, server.URL+"/carts/"+cart.ID, otherToken, nil)
	if status != http.StatusForbidden {
		t.Fatalf("expected 403 for non-owner, got %d: %s", status, body)
	}

	// The owner gets through.
	status, body = doJSON(t, client, http.MethodGet, server.URL+"/carts/"+cart.ID, ownerToken, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200 for owner, got %d: %s", status, body)
	}
}

func newVendorID(t *testing.T, client *http.Client, baseURL, token string) string {
	t.Helper()

	status, body := doJSON(t, client, http.MethodPost, baseURL+"/vendors", token, map[string]string{"store_name": "Guard Store"})
	if status != http.StatusCreated {
		t.Fatalf("create vendor: expected 201, got %d: %s", status, body)
	}
	var vendor domain.Vendor
	if err := json.Unmarshal(body, &vendor); err != nil {
		t.Fatalf("failed to decode vendor: %v", err)
	}
	return vendor.ID
}

func TestEventRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	brokers := SetupKafka(ctx, t)

	producer := messaging.NewProducer(brokers, domain.TopicOrderPlaced)
	defer func() { _ = producer.Close() }()

	consumer := messaging.NewConsumer(brokers, domain.TopicOrderPlaced, "integration-test",
		messaging.WithStartOffset(-2))
	defer func() { _ = consumer.Close() }()

	sent := domain.OrderPlacedEvent{
		OrderID:   "order-rt",
		UserID:    "user-rt",
		UserEmail: "rt@example.com",
		VendorID:  "vendor-rt",
		Total:     decimal.RequireFromString("99.90"),
		Timestamp: time.Now().UTC(),
	}

	if err := producer.Publish(ctx, sent.OrderID, sent); err != nil {
		t.Fatalf("failed to publish event: %v", err)
	}

	received := make(chan domain.OrderPlacedEvent, 1)
	consumeCtx, stopConsume := context.WithCancel(ctx)
	defer stopConsume()

	go func() {
		_ = consumer.Consume(consumeCtx, func(ctx context.Context, payload []byte) error {
			var event domain.OrderPlacedEvent
			if err := json.Unmarshal(payload, &event); err != nil {
				return err
			}
			received <- event
			return nil
		})
	}()

	select {
	case event := <-received:
		if event.OrderID != sent.OrderID {
			t.Fatalf("expected order %s, got %s", sent.OrderID, event.OrderID)
		}
		if !event.Total.Equal(sent.Total) {
			t.Fatalf("expected total %s, got %s", sent.Total, event.Total)
		}
	case <-time.After(60 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}
