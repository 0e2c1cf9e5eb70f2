package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/joao-fontenele/marketplace/internal/auth"
	"github.com/joao-fontenele/marketplace/internal/domain"
	"github.com/joao-fontenele/marketplace/internal/messaging"
	"github.com/joao-fontenele/marketplace/internal/telemetry"
	"github.com/joao-fontenele/marketplace/internal/worker"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "worker", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	kafkaBrokers := os.Getenv("KAFKA_BROKERS")
	if kafkaBrokers == "" {
		logger.Error("KAFKA_BROKERS environment variable is required")
		os.Exit(1)
	}

	emailServiceURL := os.Getenv("EMAIL_SERVICE_URL")
	if emailServiceURL == "" {
		logger.Error("EMAIL_SERVICE_URL environment variable is required")
		os.Exit(1)
	}

	marketplaceURL := os.Getenv("MARKETPLACE_URL")
	if marketplaceURL == "" {
		logger.Error("MARKETPLACE_URL environment variable is required")
		os.Exit(1)
	}

	tokenSecret := os.Getenv("TOKEN_SECRET")
	if tokenSecret == "" {
		logger.Error("TOKEN_SECRET environment variable is required")
		os.Exit(1)
	}

	serviceUserID := os.Getenv("SERVICE_USER_ID")
	if serviceUserID == "" {
		logger.Error("SERVICE_USER_ID environment variable is required")
		os.Exit(1)
	}

	issuer := auth.NewTokenIssuer([]byte(tokenSecret), 15*time.Minute)
	tokenFn := func() (string, error) {
		return issuer.Issue(serviceUserID)
	}

	brokers := strings.Split(kafkaBrokers, ",")
	orderConsumer := messaging.NewConsumer(brokers, domain.TopicOrderPlaced, "notification-worker")
	defer func() { _ = orderConsumer.Close() }()
	paymentConsumer := messaging.NewConsumer(brokers, domain.TopicPaymentCompleted, "notification-worker")
	defer func() { _ = paymentConsumer.Close() }()

	httpClient := &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	handler := worker.NewNotificationHandler(emailServiceURL, marketplaceURL, tokenFn, httpClient, logger)

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop
		logger.Info("shutting down")
		cancel()
	}()

	logger.Info("starting notification worker", "brokers", brokers)

	var wg sync.WaitGroup
	consume := func(consumer *messaging.Consumer, topic string, handle func(context.Context, []byte) error) {
		defer wg.Done()
		if err := consumer.Consume(ctx, handle); err != nil {
			if ctx.Err() == context.Canceled {
				logger.Info("consumer stopped", "topic", topic)
				return
			}
			logger.Error("consumer error", "error", err, "topic", topic)
			cancel()
		}
	}

	wg.Add(2)
	go consume(orderConsumer, domain.TopicOrderPlaced, handler.HandleOrderPlaced)
	go consume(paymentConsumer, domain.TopicPaymentCompleted, handler.HandlePaymentCompleted)
	wg.Wait()
}
