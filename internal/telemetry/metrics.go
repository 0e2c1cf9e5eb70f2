package telemetry

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// InitMeterProvider initializes the Prometheus exporter and MeterProvider.
// It returns an http.Handler for the /metrics endpoint and a shutdown function.
func InitMeterProvider(serviceName, serviceVersion string) (http.Handler, func(context.Context) error, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, err
	}

	res, err := newResource(serviceName, serviceVersion)
	if err != nil {
		return nil, nil, err
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	return promhttp.Handler(), mp.Shutdown, nil
}

// Metrics carries the marketplace's domain instruments. Construct it after
// the global MeterProvider is set; under tests the no-op global provider
// applies and recording is free.
type Metrics struct {
	OrdersPlaced      metric.Int64Counter
	PaymentsCompleted metric.Int64Counter
	PaymentAmount     metric.Float64Histogram
	VoucherRejections metric.Int64Counter
}

func NewMetrics() (*Metrics, error) {
	meter := otel.Meter("marketplace")

	ordersPlaced, err := meter.Int64Counter("marketplace.orders.placed",
		metric.WithDescription("Orders placed through checkout"))
	if err != nil {
		return nil, err
	}

	paymentsCompleted, err := meter.Int64Counter("marketplace.payments.completed",
		metric.WithDescription("Payments settled"))
	if err != nil {
		return nil, err
	}

	paymentAmount, err := meter.Float64Histogram("marketplace.payments.amount",
		metric.WithDescription("Final payment amounts after voucher discounts"))
	if err != nil {
		return nil, err
	}

	voucherRejections, err := meter.Int64Counter("marketplace.vouchers.rejected",
		metric.WithDescription("Voucher applications rejected as invalid"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		OrdersPlaced:      ordersPlaced,
		PaymentsCompleted: paymentsCompleted,
		PaymentAmount:     paymentAmount,
		VoucherRejections: voucherRejections,
	}, nil
}
