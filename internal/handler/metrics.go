package handler

import (
	"context"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/xenking/greencart/internal/domain/order"
	"github.com/xenking/greencart/internal/domain/payment"
)

type metrics struct {
	ordersPlaced  metric.Int64Counter
	webhookEvents metric.Int64Counter
}

func newMetrics(meter metric.Meter) (*metrics, error) {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter("greencart")
	}
	ordersPlaced, err := meter.Int64Counter("greencart.orders.placed",
		metric.WithDescription("Orders placed, by payment type"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "orders placed counter")
	}
	webhookEvents, err := meter.Int64Counter("greencart.webhook.events",
		metric.WithDescription("Payment gateway webhook deliveries, by type and outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "webhook events counter")
	}
	return &metrics{ordersPlaced: ordersPlaced, webhookEvents: webhookEvents}, nil
}

func (m *metrics) orderPlaced(ctx context.Context, pt order.PaymentType) {
	m.ordersPlaced.Add(ctx, 1, metric.WithAttributes(
		attribute.String("payment_type", string(pt)),
	))
}

func (m *metrics) webhookEvent(ctx context.Context, typ payment.EventType, outcome string) {
	m.webhookEvents.Add(ctx, 1, metric.WithAttributes(
		attribute.String("type", string(typ)),
		attribute.String("outcome", outcome),
	))
}
