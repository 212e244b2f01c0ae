package handlers

import (
	"context"
	"errors"
	"net/http"

	firebaseauth "firebase.google.com/go/v4/auth"

	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/domain"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/platform/auth"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/platform/storage"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/services"
)

type stubPreparationService struct {
	prepareFn func(context.Context, services.PrepareOrderCommand) (services.PreparedOrder, error)
}

func (s *stubPreparationService) Prepare(ctx context.Context, cmd services.PrepareOrderCommand) (services.PreparedOrder, error) {
	if s.prepareFn != nil {
		return s.prepareFn(ctx, cmd)
	}
	return services.PreparedOrder{}, errors.New("not implemented")
}

type stubPaymentService struct {
	initiateFn func(context.Context, services.InitiatePaymentCommand) (services.PaymentInitiation, error)
}

func (s *stubPaymentService) Initiate(ctx context.Context, cmd services.InitiatePaymentCommand) (services.PaymentInitiation, error) {
	if s.initiateFn != nil {
		return s.initiateFn(ctx, cmd)
	}
	return services.PaymentInitiation{}, errors.New("not implemented")
}

type stubConfirmationService struct {
	confirmFn func(context.Context, services.ConfirmOrderCommand) (services.ConfirmationResult, error)
	webhookFn func(context.Context, services.PaymentWebhookCommand) (services.WebhookOutcome, error)
	confirms  int
}

func (s *stubConfirmationService) Confirm(ctx context.Context, cmd services.ConfirmOrderCommand) (services.ConfirmationResult, error) {
	s.confirms++
	if s.confirmFn != nil {
		return s.confirmFn(ctx, cmd)
	}
	return services.ConfirmationResult{}, errors.New("not implemented")
}

func (s *stubConfirmationService) HandleWebhook(ctx context.Context, cmd services.PaymentWebhookCommand) (services.WebhookOutcome, error) {
	if s.webhookFn != nil {
		return s.webhookFn(ctx, cmd)
	}
	return services.WebhookOutcome{}, errors.New("not implemented")
}

type stubOrderService struct {
	getFn        func(context.Context, string) (services.Order, error)
	transitionFn func(context.Context, services.OrderStatusTransitionCommand) (services.Order, error)
}

func (s *stubOrderService) GetOrder(ctx context.Context, orderID string) (services.Order, error) {
	if s.getFn != nil {
		return s.getFn(ctx, orderID)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) TransitionStatus(ctx context.Context, cmd services.OrderStatusTransitionCommand) (services.Order, error) {
	if s.transitionFn != nil {
		return s.transitionFn(ctx, cmd)
	}
	return services.Order{}, errors.New("not implemented")
}

type stubSettingsService struct {
	fees      services.DeliveryFeeTable
	vat       services.VATConfig
	err       error
	updatedBy string
}

func (s *stubSettingsService) DeliveryFees(context.Context) (services.DeliveryFeeTable, error) {
	return s.fees, s.err
}

func (s *stubSettingsService) UpdateDeliveryFees(_ context.Context, cmd services.UpdateDeliveryFeesCommand) (services.DeliveryFeeTable, error) {
	if s.err != nil {
		return services.DeliveryFeeTable{}, s.err
	}
	s.fees = cmd.Fees
	s.updatedBy = cmd.ActorID
	return s.fees, nil
}

func (s *stubSettingsService) VAT(context.Context) (services.VATConfig, error) {
	return s.vat, s.err
}

func (s *stubSettingsService) UpdateVAT(_ context.Context, cmd services.UpdateVATCommand) (services.VATConfig, error) {
	if s.err != nil {
		return services.VATConfig{}, s.err
	}
	s.vat = cmd.VAT
	s.updatedBy = cmd.ActorID
	return s.vat, nil
}

type stubMaintenanceService struct {
	purgeFn func(context.Context, services.PurgeStagedOrdersCommand) (services.PurgeStagedOrdersResult, error)
}

func (s *stubMaintenanceService) PurgeStagedOrders(ctx context.Context, cmd services.PurgeStagedOrdersCommand) (services.PurgeStagedOrdersResult, error) {
	if s.purgeFn != nil {
		return s.purgeFn(ctx, cmd)
	}
	return services.PurgeStagedOrdersResult{}, nil
}

type stubInvoiceLinker struct {
	url      string
	err      error
	received string
}

func (s *stubInvoiceLinker) InvoiceURL(_ context.Context, orderNumber string, identity *auth.Identity) (storage.SignedURL, error) {
	s.received = orderNumber
	if s.err != nil {
		return storage.SignedURL{}, s.err
	}
	if identity == nil {
		return storage.SignedURL{}, storage.ErrPermissionDenied
	}
	return storage.SignedURL{URL: s.url, Method: http.MethodGet}, nil
}

type stubTokenVerifier struct {
	tokens map[string]*firebaseauth.Token
}

func (s *stubTokenVerifier) VerifyIDToken(_ context.Context, idToken string) (*firebaseauth.Token, error) {
	if token, ok := s.tokens[idToken]; ok {
		return token, nil
	}
	return nil, auth.ErrTokenInvalid
}

func newTestAuthenticator() *auth.Authenticator {
	return auth.NewAuthenticator(&stubTokenVerifier{tokens: map[string]*firebaseauth.Token{
		"staff-token": {UID: "staff-1", Claims: map[string]interface{}{"role": "staff"}},
		"admin-token": {UID: "admin-1", Claims: map[string]interface{}{"role": "admin"}},
		"user-token":  {UID: "user-1", Claims: map[string]interface{}{}},
	}})
}

func sampleOrder() services.Order {
	return services.Order{
		ID:               "01HZX3K2Q4J8ZP9F6W4V3T2S1R",
		OrderNumber:      "SP-2025-000001",
		Status:           domain.OrderStatusConfirmed,
		CustomerName:     "Ada Obi",
		Currency:         "NGN",
		PaymentMethod:    domain.PaymentCardGateway,
		PaymentProvider:  "stripe",
		PaymentReference: "pi_123",
		Pricing: domain.PricingSnapshot{
			Subtotal:    domain.MustParseMoney("30.00"),
			DeliveryFee: domain.MustParseMoney("3.00"),
			Total:       domain.MustParseMoney("33.00"),
		},
	}
}
