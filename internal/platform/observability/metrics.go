package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// CheckoutMetrics records checkout funnel counters. The zero value and nil receiver are no-ops.
type CheckoutMetrics struct {
	prepared      metric.Int64Counter
	confirmed     metric.Int64Counter
	duplicates    metric.Int64Counter
	failures      metric.Int64Counter
	notifications metric.Int64Counter
}

// NewCheckoutMetrics registers instruments on the global meter provider unless meter is supplied.
func NewCheckoutMetrics(meter metric.Meter, logger *zap.Logger) *CheckoutMetrics {
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(instrumentation)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	counter := func(name, description string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(description))
		if err != nil {
			logger.Warn("observability: unable to register metric", zap.String("metric", name), zap.Error(err))
			return nil
		}
		return c
	}
	return &CheckoutMetrics{
		prepared:      counter("checkout.orders.prepared", "Orders staged by the preparation endpoint"),
		confirmed:     counter("checkout.orders.confirmed", "Orders persisted after payment verification"),
		duplicates:    counter("checkout.orders.duplicate", "Confirmation calls answered from an existing order"),
		failures:      counter("checkout.confirmation.failed", "Confirmation attempts that ended in an error"),
		notifications: counter("checkout.notifications.failed", "Notification channels that failed after confirmation"),
	}
}

func (m *CheckoutMetrics) add(ctx context.Context, c metric.Int64Counter, attrs ...attribute.KeyValue) {
	if m == nil || c == nil {
		return
	}
	c.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// OrderPrepared counts a staged order.
func (m *CheckoutMetrics) OrderPrepared(ctx context.Context, method string) {
	if m == nil {
		return
	}
	m.add(ctx, m.prepared, attribute.String("payment_method", method))
}

// OrderConfirmed counts a newly persisted order.
func (m *CheckoutMetrics) OrderConfirmed(ctx context.Context, provider string) {
	if m == nil {
		return
	}
	m.add(ctx, m.confirmed, attribute.String("provider", provider))
}

// DuplicateConfirmation counts an idempotent replay.
func (m *CheckoutMetrics) DuplicateConfirmation(ctx context.Context, provider string) {
	if m == nil {
		return
	}
	m.add(ctx, m.duplicates, attribute.String("provider", provider))
}

// ConfirmationFailed counts a confirmation error by kind.
func (m *CheckoutMetrics) ConfirmationFailed(ctx context.Context, provider, kind string) {
	if m == nil {
		return
	}
	m.add(ctx, m.failures, attribute.String("provider", provider), attribute.String("kind", kind))
}

// NotificationFailed counts a failed notification channel.
func (m *CheckoutMetrics) NotificationFailed(ctx context.Context, channel string) {
	if m == nil {
		return
	}
	m.add(ctx, m.notifications, attribute.String("channel", channel))
}
