package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/domain"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/payments"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/platform/observability"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/repositories"
)

const defaultAfterConfirmTimeout = 2 * time.Minute

// ConfirmationServiceDeps bundles collaborators for order confirmation.
type ConfirmationServiceDeps struct {
	Orders       repositories.OrderRepository
	Staged       repositories.StagedOrderRepository
	Gateway      PaymentGateway
	OrderNumbers OrderNumberGenerator
	// Publisher and Notifications are optional; nil disables the channel.
	Publisher     OrderEventPublisher
	Notifications NotificationService
	Currency      string
	// AfterConfirmTimeout bounds event publishing and notification fan-out.
	AfterConfirmTimeout time.Duration
	Metrics             *observability.CheckoutMetrics
	Clock               func() time.Time
	IDGenerator         func() string
	// Go runs post-confirmation work. Defaults to a new goroutine.
	Go     func(func())
	Logger func(ctx context.Context, event string, fields map[string]any)
}

type confirmationService struct {
	orders        repositories.OrderRepository
	staged        repositories.StagedOrderRepository
	gateway       PaymentGateway
	numbers       OrderNumberGenerator
	publisher     OrderEventPublisher
	notifications NotificationService
	currency      string
	afterTimeout  time.Duration
	metrics       *observability.CheckoutMetrics
	clock         func() time.Time
	newID         func() string
	spawn         func(func())
	logger        func(context.Context, string, map[string]any)
}

// NewConfirmationService wires dependencies into an OrderConfirmationService.
func NewConfirmationService(deps ConfirmationServiceDeps) (OrderConfirmationService, error) {
	if deps.Orders == nil {
		return nil, errors.New("confirmation service: order repository is required")
	}
	if deps.Staged == nil {
		return nil, errors.New("confirmation service: staged order repository is required")
	}
	if deps.Gateway == nil {
		return nil, errors.New("confirmation service: payment gateway is required")
	}
	if deps.OrderNumbers == nil {
		return nil, errors.New("confirmation service: order number generator is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}
	spawn := deps.Go
	if spawn == nil {
		spawn = func(fn func()) { go fn() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	currency := strings.ToUpper(strings.TrimSpace(deps.Currency))
	if currency == "" {
		currency = DefaultCurrency
	}
	timeout := deps.AfterConfirmTimeout
	if timeout <= 0 {
		timeout = defaultAfterConfirmTimeout
	}

	return &confirmationService{
		orders:        deps.Orders,
		staged:        deps.Staged,
		gateway:       deps.Gateway,
		numbers:       deps.OrderNumbers,
		publisher:     deps.Publisher,
		notifications: deps.Notifications,
		currency:      currency,
		afterTimeout:  timeout,
		metrics:       deps.Metrics,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		spawn:  spawn,
		logger: logger,
	}, nil
}

func (s *confirmationService) Confirm(ctx context.Context, cmd ConfirmOrderCommand) (ConfirmationResult, error) {
	provider := strings.ToLower(strings.TrimSpace(cmd.Provider))
	reference := strings.TrimSpace(cmd.Reference)
	tempNumber := strings.TrimSpace(cmd.OrderData.TempOrderNumber)

	var fields []string
	if provider == "" || !s.gateway.Has(provider) {
		fields = append(fields, "provider")
	}
	if reference == "" {
		fields = append(fields, "reference")
	}
	if tempNumber == "" {
		fields = append(fields, "orderData.tempOrderNumber")
	}
	if len(fields) > 0 {
		return ConfirmationResult{}, newValidationError("confirmation request is incomplete", fields...)
	}

	existing, err := s.orders.FindByPayment(ctx, provider, reference)
	switch {
	case err == nil:
		s.metrics.DuplicateConfirmation(ctx, provider)
		s.logger(ctx, "checkout.confirmation.duplicate", map[string]any{
			"orderId":   existing.ID,
			"provider":  provider,
			"reference": reference,
		})
		return ConfirmationResult{OrderID: existing.ID, OrderNumber: existing.OrderNumber, Duplicate: true}, nil
	case !isRepoNotFound(err):
		return ConfirmationResult{}, translateRepoError(err)
	}

	now := s.clock()
	staged, err := loadStagedOrder(ctx, s.staged, tempNumber, now)
	if err != nil {
		s.metrics.ConfirmationFailed(ctx, provider, "staged_order")
		return ConfirmationResult{}, err
	}
	if claimed := cmd.OrderData.Total; claimed != nil && *claimed != staged.Pricing.Total {
		s.metrics.ConfirmationFailed(ctx, provider, "total_mismatch")
		return ConfirmationResult{}, newValidationError("order total does not match the prepared order", "orderData.total")
	}

	details, err := s.verify(ctx, provider, reference, staged)
	if err != nil {
		kind := "provider_error"
		if errors.Is(err, ErrProviderRejected) {
			kind = "provider_rejected"
		}
		s.metrics.ConfirmationFailed(ctx, provider, kind)
		s.logger(ctx, "checkout.confirmation.verify_failed", map[string]any{
			"provider":        provider,
			"reference":       reference,
			"tempOrderNumber": tempNumber,
			"error":           err,
		})
		return ConfirmationResult{}, err
	}

	order, created, err := s.persist(ctx, provider, reference, staged, details, now)
	if errors.Is(err, repositories.ErrPreparedOrderPaid) {
		s.metrics.ConfirmationFailed(ctx, provider, "already_paid")
		s.logger(ctx, "checkout.confirmation.paid_duplicate", map[string]any{
			"provider":        provider,
			"reference":       reference,
			"tempOrderNumber": tempNumber,
			"amount":          staged.Pricing.Total.String(),
			"reconcile":       true,
			"error":           err,
		})
		return ConfirmationResult{}, &ConfirmationError{Provider: provider, Reference: reference, Err: err}
	}
	if err != nil {
		s.metrics.ConfirmationFailed(ctx, provider, "persistence")
		s.logger(ctx, "checkout.confirmation.failed", map[string]any{
			"provider":        provider,
			"reference":       reference,
			"tempOrderNumber": tempNumber,
			"amount":          staged.Pricing.Total.String(),
			"reconcile":       true,
			"error":           err,
		})
		return ConfirmationResult{}, &ConfirmationError{Provider: provider, Reference: reference, Err: err}
	}
	if !created {
		s.metrics.DuplicateConfirmation(ctx, provider)
		return ConfirmationResult{OrderID: order.ID, OrderNumber: order.OrderNumber, Duplicate: true}, nil
	}

	s.metrics.OrderConfirmed(ctx, provider)
	s.logger(ctx, "checkout.order.confirmed", map[string]any{
		"orderId":         order.ID,
		"orderNumber":     order.OrderNumber,
		"provider":        provider,
		"reference":       reference,
		"tempOrderNumber": tempNumber,
		"total":           order.Pricing.Total.String(),
	})
	s.afterConfirm(ctx, order)
	return ConfirmationResult{OrderID: order.ID, OrderNumber: order.OrderNumber}, nil
}

func (s *confirmationService) verify(ctx context.Context, provider, reference string, staged PreparedOrder) (payments.PaymentDetails, error) {
	details, err := s.gateway.Verify(ctx, provider, payments.VerifyRequest{Reference: reference})
	if err != nil {
		return payments.PaymentDetails{}, translatePaymentError(err)
	}
	if details.Status != payments.StatusSucceeded {
		return payments.PaymentDetails{}, fmt.Errorf("%w: payment status is %s", ErrProviderRejected, details.Status)
	}
	if details.Amount != int64(staged.Pricing.Total) {
		return payments.PaymentDetails{}, fmt.Errorf("%w: paid amount %s does not match order total %s",
			ErrProviderRejected, domain.Money(details.Amount), staged.Pricing.Total)
	}
	expected := staged.Currency
	if expected == "" {
		expected = s.currency
	}
	if !strings.EqualFold(details.Currency, expected) {
		return payments.PaymentDetails{}, fmt.Errorf("%w: paid currency %s does not match %s", ErrProviderRejected, details.Currency, expected)
	}
	if meta := strings.TrimSpace(details.Metadata[payments.MetadataTempOrderNumber]); meta != "" && meta != staged.TempOrderNumber {
		return payments.PaymentDetails{}, fmt.Errorf("%w: payment belongs to order %s", ErrProviderRejected, meta)
	}
	return details, nil
}

func (s *confirmationService) persist(ctx context.Context, provider, reference string, staged PreparedOrder, details payments.PaymentDetails, now time.Time) (Order, bool, error) {
	number, err := s.numbers.NextOrderNumber(ctx, now)
	if err != nil {
		return Order{}, false, err
	}
	paidAt := now
	if details.PaidAt != nil && !details.PaidAt.IsZero() {
		paidAt = details.PaidAt.UTC()
	}
	currency := staged.Currency
	if currency == "" {
		currency = s.currency
	}
	order := Order{
		ID:               s.newID(),
		OrderNumber:      number,
		Status:           domain.OrderStatusConfirmed,
		CustomerName:     staged.CustomerName,
		Delivery:         staged.Delivery,
		Items:            staged.Items,
		Pricing:          staged.Pricing,
		Currency:         currency,
		PaymentMethod:    staged.PaymentMethod,
		PaymentProvider:  provider,
		PaymentReference: reference,
		TempOrderNumber:  staged.TempOrderNumber,
		CreatedAt:        now,
		UpdatedAt:        now,
		PaidAt:           &paidAt,
	}
	return s.orders.CreateIfAbsent(ctx, order)
}

// afterConfirm runs the best-effort follow-ups for a newly created order. None of them can
// change the confirmation result.
func (s *confirmationService) afterConfirm(ctx context.Context, order Order) {
	if err := s.staged.Delete(ctx, order.TempOrderNumber); err != nil && !isRepoNotFound(err) {
		s.logger(ctx, "checkout.staged_order.delete_failed", map[string]any{
			"tempOrderNumber": order.TempOrderNumber,
			"error":           err,
		})
	}

	if s.publisher == nil && s.notifications == nil {
		return
	}
	detached := context.WithoutCancel(ctx)
	s.spawn(func() {
		bgCtx, cancel := context.WithTimeout(detached, s.afterTimeout)
		defer cancel()

		if s.publisher != nil {
			event := OrderConfirmedEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				Provider:    order.PaymentProvider,
				Reference:   order.PaymentReference,
				Total:       order.Pricing.Total,
				Currency:    order.Currency,
				ConfirmedAt: order.CreatedAt,
			}
			if _, err := s.publisher.PublishOrderConfirmed(bgCtx, event); err != nil {
				s.logger(bgCtx, "checkout.order_event.failed", map[string]any{
					"orderId": order.ID,
					"error":   err,
				})
			}
		}
		if s.notifications != nil {
			s.notifications.NotifyOrderConfirmed(bgCtx, order)
		}
	})
}

// HandleWebhook confirms orders from provider success events so customers who never return from
// the provider page are still recorded. Permanent failures are acknowledged so the provider stops
// retrying; transient ones are returned.
func (s *confirmationService) HandleWebhook(ctx context.Context, cmd PaymentWebhookCommand) (WebhookOutcome, error) {
	provider := strings.ToLower(strings.TrimSpace(cmd.Provider))
	event, err := s.gateway.ParseWebhook(provider, cmd.Payload, cmd.Header)
	if err != nil {
		if errors.Is(err, payments.ErrUnsupportedProvider) {
			return WebhookOutcome{}, newValidationError("unknown payment provider", "provider")
		}
		return WebhookOutcome{}, newValidationError("webhook could not be verified", "signature")
	}

	outcome := WebhookOutcome{EventID: event.ID, EventType: event.Type}
	tempNumber := event.TempOrderNumber()
	if event.Status != payments.StatusSucceeded || tempNumber == "" || strings.TrimSpace(event.Reference) == "" {
		outcome.Ignored = true
		s.logger(ctx, "checkout.webhook.ignored", map[string]any{
			"provider":  provider,
			"eventId":   event.ID,
			"eventType": event.Type,
			"status":    string(event.Status),
		})
		return outcome, nil
	}

	result, err := s.Confirm(ctx, ConfirmOrderCommand{
		Provider:  provider,
		Reference: event.Reference,
		OrderData: ConfirmOrderData{TempOrderNumber: tempNumber},
	})
	if err != nil {
		// A second payment for an already paid order is logged for reconciliation; redelivery cannot fix it.
		if errors.Is(err, ErrValidationFailed) || errors.Is(err, ErrProviderRejected) || errors.Is(err, repositories.ErrPreparedOrderPaid) {
			outcome.Ignored = true
			s.logger(ctx, "checkout.webhook.rejected", map[string]any{
				"provider":  provider,
				"eventId":   event.ID,
				"reference": event.Reference,
				"error":     err,
			})
			return outcome, nil
		}
		return outcome, err
	}
	outcome.Confirmation = &result
	return outcome, nil
}
