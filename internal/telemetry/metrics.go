package telemetry

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// InitMeterProvider installs a Prometheus-backed global MeterProvider.
// It returns the /metrics handler and a shutdown function.
func InitMeterProvider(svc Service) (http.Handler, func(context.Context) error, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, err
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(svc.resource()),
	)

	otel.SetMeterProvider(mp)

	return promhttp.Handler(), mp.Shutdown, nil
}

// OrderMetrics holds the counters recorded by the order flow.
type OrderMetrics struct {
	placed      metric.Int64Counter
	transitions metric.Int64Counter
	published   metric.Int64Counter
}

// NewOrderMetrics creates counters on the global MeterProvider. With no
// provider installed the counters are no-ops.
func NewOrderMetrics() (*OrderMetrics, error) {
	meter := otel.Meter("marketplace/orders")

	placed, err := meter.Int64Counter("marketplace.orders.placed",
		metric.WithDescription("Buyer orders placed"))
	if err != nil {
		return nil, err
	}

	transitions, err := meter.Int64Counter("marketplace.orders.transitions",
		metric.WithDescription("Seller order status transitions"))
	if err != nil {
		return nil, err
	}

	published, err := meter.Int64Counter("marketplace.outbox.published",
		metric.WithDescription("Outbox events relayed to the broker"))
	if err != nil {
		return nil, err
	}

	return &OrderMetrics{placed: placed, transitions: transitions, published: published}, nil
}

// OrderPlaced records a checkout fanned out to the given number of sellers.
func (m *OrderMetrics) OrderPlaced(ctx context.Context, sellers int) {
	if m == nil {
		return
	}
	m.placed.Add(ctx, 1, metric.WithAttributes(attribute.Int("order.sellers", sellers)))
}

// Transition records a status change.
func (m *OrderMetrics) Transition(ctx context.Context, status string) {
	if m == nil {
		return
	}
	m.transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("order.status", status)))
}

// Published records relayed outbox events.
func (m *OrderMetrics) Published(ctx context.Context, n int) {
	if m == nil || n == 0 {
		return
	}
	m.published.Add(ctx, int64(n))
}
