package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/domain"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/payments"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/repositories"
)

// PaymentServiceDeps bundles collaborators for payment initiation.
type PaymentServiceDeps struct {
	Staged  repositories.StagedOrderRepository
	Gateway PaymentGateway
	Policy  payments.Policy
	Clock   func() time.Time
	Logger  func(ctx context.Context, event string, fields map[string]any)
}

type paymentService struct {
	staged  repositories.StagedOrderRepository
	gateway PaymentGateway
	policy  payments.Policy
	clock   func() time.Time
	logger  func(context.Context, string, map[string]any)
}

// NewPaymentService constructs the payment initiation service.
func NewPaymentService(deps PaymentServiceDeps) (PaymentInitiationService, error) {
	if deps.Staged == nil {
		return nil, errors.New("payment service: staged order repository is required")
	}
	if deps.Gateway == nil {
		return nil, errors.New("payment service: payment gateway is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	policy := deps.Policy
	if policy.Minimum == 0 {
		policy.Minimum = payments.DefaultCardMinimum
	}
	return &paymentService{
		staged:  deps.Staged,
		gateway: deps.Gateway,
		policy:  policy,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// Initiate records the chosen method on the staged order and asks the provider to start
// collecting. A card request below the gateway minimum is rejected with an aggregator fallback.
func (s *paymentService) Initiate(ctx context.Context, cmd InitiatePaymentCommand) (PaymentInitiation, error) {
	tempNumber := strings.TrimSpace(cmd.TempOrderNumber)
	if tempNumber == "" {
		return PaymentInitiation{}, newValidationError("temp order number is required", "tempOrderNumber")
	}

	staged, err := loadStagedOrder(ctx, s.staged, tempNumber, s.clock())
	if err != nil {
		return PaymentInitiation{}, err
	}

	method := staged.PaymentMethod
	if raw := strings.TrimSpace(cmd.PaymentMethod); raw != "" {
		method = domain.NormalizePaymentMethod(raw)
		if !method.Valid() {
			return PaymentInitiation{}, newValidationError("unknown payment method", "paymentMethod")
		}
	}
	if !s.policy.Eligible(method, staged.Pricing.Total) {
		s.logger(ctx, "checkout.payment.rejected", map[string]any{
			"tempOrderNumber": tempNumber,
			"paymentMethod":   string(method),
			"total":           staged.Pricing.Total.String(),
			"minimum":         s.policy.Minimum.String(),
		})
		return PaymentInitiation{}, &RejectionError{
			Reason:   "order total is below the card payment minimum of " + s.policy.Minimum.Format(staged.Currency),
			Fallback: string(domain.PaymentAggregator),
		}
	}

	if method != staged.PaymentMethod {
		staged.PaymentMethod = method
		if err := s.staged.Save(ctx, staged); err != nil {
			return PaymentInitiation{}, translateRepoError(err)
		}
	}

	initiation, err := s.gateway.Initiate(ctx, method, payments.InitiateRequest{
		TempOrderNumber: staged.TempOrderNumber,
		Amount:          int64(staged.Pricing.Total),
		Currency:        staged.Currency,
		Email:           staged.Delivery.Email,
		IdempotencyKey:  strings.TrimSpace(cmd.IdempotencyKey),
		Metadata: map[string]string{
			"customer_name":   staged.CustomerName,
			"delivery_method": string(staged.Delivery.DeliveryMethod),
		},
	})
	if err != nil {
		s.logger(ctx, "checkout.payment.initiate_failed", map[string]any{
			"tempOrderNumber": tempNumber,
			"paymentMethod":   string(method),
			"error":           err,
		})
		return PaymentInitiation{}, translatePaymentError(err)
	}

	s.logger(ctx, "checkout.payment.initiated", map[string]any{
		"tempOrderNumber": tempNumber,
		"provider":        initiation.Provider,
		"reference":       initiation.Reference,
	})
	return PaymentInitiation{
		Provider:         initiation.Provider,
		PaymentMethod:    method,
		Reference:        initiation.Reference,
		ClientSecret:     initiation.ClientSecret,
		AuthorizationURL: initiation.AuthorizationURL,
		AccessCode:       initiation.AccessCode,
	}, nil
}

// loadStagedOrder treats unknown and expired staged orders the same way: the client must prepare again.
func loadStagedOrder(ctx context.Context, repo repositories.StagedOrderRepository, tempNumber string, now time.Time) (PreparedOrder, error) {
	staged, err := repo.Get(ctx, tempNumber)
	if err != nil {
		if isRepoNotFound(err) {
			return PreparedOrder{}, newValidationError("prepared order is expired or unknown", "tempOrderNumber")
		}
		return PreparedOrder{}, translateRepoError(err)
	}
	if staged.Expired(now) {
		return PreparedOrder{}, newValidationError("prepared order is expired or unknown", "tempOrderNumber")
	}
	return staged, nil
}
