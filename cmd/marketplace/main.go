package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/contrib/instrumentation/runtime"

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

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "marketplace", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider("marketplace", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	if err := runtime.Start(); err != nil {
		logger.Error("failed to start runtime instrumentation", "error", err)
		os.Exit(1)
	}

	metrics, err := telemetry.NewMetrics()
	if err != nil {
		logger.Error("failed to create metrics", "error", err)
		os.Exit(1)
	}

	postgresURL := os.Getenv("POSTGRES_URL")
	if postgresURL == "" {
		logger.Error("POSTGRES_URL environment variable is required")
		os.Exit(1)
	}

	tokenSecret := os.Getenv("TOKEN_SECRET")
	if tokenSecret == "" {
		logger.Error("TOKEN_SECRET environment variable is required")
		os.Exit(1)
	}

	kafkaBrokers := os.Getenv("KAFKA_BROKERS")
	if kafkaBrokers == "" {
		logger.Error("KAFKA_BROKERS environment variable is required")
		os.Exit(1)
	}

	db, err := telemetry.OpenDB("postgres", withSearchPath(postgresURL, "marketplace"))
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	brokers := strings.Split(kafkaBrokers, ",")
	orderProducer := messaging.NewProducer(brokers, domain.TopicOrderPlaced)
	defer func() { _ = orderProducer.Close() }()
	paymentProducer := messaging.NewProducer(brokers, domain.TopicPaymentCompleted)
	defer func() { _ = paymentProducer.Close() }()

	httpClient := &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	var mailer *accounts.Mailer
	if emailServiceURL := os.Getenv("EMAIL_SERVICE_URL"); emailServiceURL != "" {
		mailer = accounts.NewMailer(emailServiceURL, "accounts@marketplace.local", httpClient)
	}

	loginURL := os.Getenv("LOGIN_URL")
	if loginURL == "" {
		loginURL = "/login"
	}

	issuer := auth.NewTokenIssuer([]byte(tokenSecret), 24*time.Hour)
	guard := auth.NewGuard(loginURL, auth.NewSQLOwnershipResolver(db), logger)

	userRepo := accounts.NewUserRepository(db)
	catalogRepo := catalog.NewCatalogRepository(db)
	vendorRepo := catalog.NewVendorRepository(db)
	cartRepo := carts.NewCartRepository(db)
	orderRepo := orders.NewOrderRepository(db)
	paymentRepo := payments.NewPaymentRepository(db)
	voucherRepo := vouchers.NewVoucherRepository(db)

	accountsHandler := accounts.NewHandler(userRepo, issuer, mailer, logger)
	catalogHandler := catalog.NewHandler(catalogRepo, vendorRepo, logger)
	vendorHandler := catalog.NewVendorHandler(vendorRepo, logger)
	cartHandler := carts.NewHandler(cartRepo, logger)
	orderHandler := orders.NewHandler(orderRepo, cartRepo, catalogRepo, userRepo, orderProducer, metrics, logger)
	paymentHandler := payments.NewHandler(paymentRepo, orderRepo, voucherRepo, userRepo, paymentProducer, metrics, logger)
	voucherHandler := vouchers.NewHandler(voucherRepo, logger)

	authed := guard.RequireAuth()
	seller := guard.RequireCapability(auth.CapabilitySeller)
	staff := guard.RequireCapability(auth.CapabilityStaff)
	admin := guard.RequireCapability(auth.CapabilityAdmin)

	mux := http.NewServeMux()
	route := func(pattern string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, telemetry.WithHTTPRoute(h))
	}

	route("POST /register", accountsHandler.HandleRegister)
	route("POST /login", accountsHandler.HandleLogin)
	route("GET /profile", guard.Protect(accountsHandler.HandleProfile, authed))
	route("PATCH /profile", guard.Protect(accountsHandler.HandleUpdateProfile, authed))
	route("POST /profile/password", guard.Protect(accountsHandler.HandleChangePassword, authed))
	route("POST /password-reset/request", accountsHandler.HandlePasswordResetRequest)
	route("POST /password-reset/confirm", accountsHandler.HandlePasswordResetConfirm)

	route("POST /vendors", guard.Protect(vendorHandler.HandleCreate, authed))
	route("GET /vendors/{id}", vendorHandler.HandleGet)
	route("POST /vendors/{id}/approve", guard.Protect(vendorHandler.HandleApprove, authed, staff))

	route("GET /products", catalogHandler.HandleListProducts)
	route("GET /products/{id}", catalogHandler.HandleGetProduct)
	route("POST /products", guard.Protect(catalogHandler.HandleCreateProduct, authed, seller))
	route("PUT /products/{id}", guard.Protect(catalogHandler.HandleUpdateProduct,
		authed, seller, guard.RequireOwner("id", auth.ResourceProduct)))
	route("GET /products/{id}/variants", catalogHandler.HandleListVariants)
	route("POST /products/{id}/variants", guard.Protect(catalogHandler.HandleCreateVariant,
		authed, seller, guard.RequireOwner("id", auth.ResourceProduct)))

	productOwner := guard.RequireOwner("id", auth.ResourceProduct)
	route("GET /products/{id}/images", catalogHandler.HandleListImages)
	route("POST /products/{id}/images", guard.Protect(catalogHandler.HandleAddImage,
		authed, seller, productOwner))
	route("POST /products/{id}/images/{imageID}/default", guard.Protect(catalogHandler.HandleSetDefaultImage,
		authed, seller, productOwner))
	route("DELETE /products/{id}/images/{imageID}", guard.Protect(catalogHandler.HandleDeleteImage,
		authed, seller, productOwner))

	route("GET /categories", catalogHandler.HandleListCategories)
	route("POST /categories", guard.Protect(catalogHandler.HandleCreateCategory, authed, staff))

	route("GET /attributes", catalogHandler.HandleListAttributes)
	route("POST /attributes", guard.Protect(catalogHandler.HandleCreateAttribute, authed, staff))
	route("GET /attributes/{id}/values", catalogHandler.HandleListAttributeValues)
	route("POST /attributes/{id}/values", guard.Protect(catalogHandler.HandleCreateAttributeValue, authed, staff))

	cartOwner := guard.RequireOwner("id", auth.ResourceCart)
	route("POST /carts", guard.Protect(cartHandler.HandleCreate, authed))
	route("GET /carts/{id}", guard.Protect(cartHandler.HandleGet, authed, cartOwner))
	route("POST /carts/{id}/items", guard.Protect(cartHandler.HandleAddItem, authed, cartOwner))
	route("PATCH /carts/{id}/items/{itemID}", guard.Protect(cartHandler.HandleUpdateItem, authed, cartOwner))
	route("DELETE /carts/{id}/items/{itemID}", guard.Protect(cartHandler.HandleRemoveItem, authed, cartOwner))
	route("POST /carts/{id}/checkout", guard.Protect(orderHandler.HandleCheckout, authed, cartOwner))

	orderOwner := guard.RequireOwner("id", auth.ResourceOrder)
	route("GET /orders", guard.Protect(orderHandler.HandleList, authed))
	route("GET /orders/{id}", guard.Protect(orderHandler.HandleGet, authed, orderOwner))
	route("PATCH /orders/{id}/status", guard.Protect(orderHandler.HandleUpdateStatus, authed, staff))
	route("POST /orders/{id}/recompute", guard.Protect(orderHandler.HandleRecompute, authed, staff))

	paymentOwner := guard.RequireOwner("id", auth.ResourcePayment)
	route("GET /payment-methods", paymentHandler.HandleListMethods)
	route("POST /orders/{id}/payments", guard.Protect(paymentHandler.HandleCreate, authed, orderOwner))
	route("GET /payments/{id}", guard.Protect(paymentHandler.HandleGet, authed, paymentOwner))
	route("POST /payments/{id}/vouchers", guard.Protect(paymentHandler.HandleApplyVoucher, authed, paymentOwner))
	route("POST /payments/{id}/complete", guard.Protect(paymentHandler.HandleComplete, authed, paymentOwner))
	route("POST /payments/{id}/recompute", guard.Protect(paymentHandler.HandleRecompute, authed, staff))

	route("POST /vouchers", guard.Protect(voucherHandler.HandleCreate, authed, admin))
	route("GET /vouchers/{code}", guard.Protect(voucherHandler.HandleGetByCode, authed))
	route("POST /vouchers/{code}/validate", guard.Protect(voucherHandler.HandleValidate, authed))

	mux.Handle("GET /metrics", metricsHandler)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8081"
	}

	handler := auth.Middleware(issuer, userRepo, logger)(mux)

	server := &http.Server{
		Addr: ":" + port,
		Handler: otelhttp.NewHandler(handler, "marketplace",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				if r.Pattern != "" {
					return r.Pattern
				}
				return r.Method + " " + r.URL.Path
			}),
		),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting marketplace service", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}

// withSearchPath pins the schema through the DSN so every pooled connection
// gets it. A SET search_path statement only configures the one connection
// that happened to run it.
func withSearchPath(dsn, schema string) string {
	if strings.Contains(dsn, "?") {
		return dsn + "&search_path=" + schema
	}
	return dsn + "?search_path=" + schema
}
