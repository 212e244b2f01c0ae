package services

import (
	"context"
	"net/http"
	"time"

	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/domain"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/payments"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Order            = domain.Order
	OrderStatus      = domain.OrderStatus
	PreparedOrder    = domain.PreparedOrder
	CartLine         = domain.CartLine
	DeliveryInfo     = domain.DeliveryInfo
	PricingSnapshot  = domain.PricingSnapshot
	DeliveryFeeTable = domain.DeliveryFeeTable
	VATConfig        = domain.VATConfig
	Money            = domain.Money
)

// OrderPreparationService validates checkout payloads and stages them for payment.
type OrderPreparationService interface {
	Prepare(ctx context.Context, cmd PrepareOrderCommand) (PreparedOrder, error)
}

// PaymentInitiationService starts a provider payment for a staged order.
type PaymentInitiationService interface {
	Initiate(ctx context.Context, cmd InitiatePaymentCommand) (PaymentInitiation, error)
}

// OrderConfirmationService turns a verified payment into a persisted order exactly once.
type OrderConfirmationService interface {
	Confirm(ctx context.Context, cmd ConfirmOrderCommand) (ConfirmationResult, error)
	HandleWebhook(ctx context.Context, cmd PaymentWebhookCommand) (WebhookOutcome, error)
}

// NotificationService fans an order out to every configured channel.
type NotificationService interface {
	NotifyOrderConfirmed(ctx context.Context, order Order) NotificationReport
}

// SettingsService exposes delivery-fee and VAT settings.
type SettingsService interface {
	DeliveryFees(ctx context.Context) (DeliveryFeeTable, error)
	UpdateDeliveryFees(ctx context.Context, cmd UpdateDeliveryFeesCommand) (DeliveryFeeTable, error)
	VAT(ctx context.Context) (VATConfig, error)
	UpdateVAT(ctx context.Context, cmd UpdateVATCommand) (VATConfig, error)
}

// OrderService reads orders and moves them through the fulfilment lifecycle.
type OrderService interface {
	GetOrder(ctx context.Context, orderID string) (Order, error)
	TransitionStatus(ctx context.Context, cmd OrderStatusTransitionCommand) (Order, error)
}

// MaintenanceService runs housekeeping tasks triggered by schedulers or operators.
type MaintenanceService interface {
	PurgeStagedOrders(ctx context.Context, cmd PurgeStagedOrdersCommand) (PurgeStagedOrdersResult, error)
}

// OrderNumberGenerator issues human-facing order numbers.
type OrderNumberGenerator interface {
	NextOrderNumber(ctx context.Context, at time.Time) (string, error)
}

// PaymentGateway is the subset of payments.Manager used by the checkout services.
type PaymentGateway interface {
	Has(provider string) bool
	Initiate(ctx context.Context, method domain.PaymentMethod, req payments.InitiateRequest) (payments.Initiation, error)
	Verify(ctx context.Context, provider string, req payments.VerifyRequest) (payments.PaymentDetails, error)
	ParseWebhook(provider string, payload []byte, header http.Header) (payments.WebhookEvent, error)
}

// OrderEventPublisher emits order lifecycle events to downstream consumers.
type OrderEventPublisher interface {
	PublishOrderConfirmed(ctx context.Context, event OrderConfirmedEvent) (string, error)
}

// InvoiceStore keeps rendered invoices and returns a download URL.
type InvoiceStore interface {
	UploadInvoice(ctx context.Context, orderNumber string, pdf []byte) (string, error)
}

// OrderConfirmedEvent is the payload published after a new order is recorded.
type OrderConfirmedEvent struct {
	OrderID     string    `json:"orderId"`
	OrderNumber string    `json:"orderNumber"`
	Provider    string    `json:"provider"`
	Reference   string    `json:"reference"`
	Total       Money     `json:"total"`
	Currency    string    `json:"currency"`
	ConfirmedAt time.Time `json:"confirmedAt"`
}

// PrepareOrderCommand is the body of POST /api/orders/prepare.
type PrepareOrderCommand struct {
	CustomerName  string
	Delivery      DeliveryInfo
	Items         []CartLine
	Pricing       *PricingSnapshot
	PaymentMethod string
}

// InitiatePaymentCommand selects the payment method for a staged order and starts the payment.
type InitiatePaymentCommand struct {
	TempOrderNumber string
	PaymentMethod   string
	IdempotencyKey  string
}

// PaymentInitiation is returned to the storefront to hand over to the provider UI.
type PaymentInitiation struct {
	Provider         string               `json:"provider"`
	PaymentMethod    domain.PaymentMethod `json:"paymentMethod"`
	Reference        string               `json:"reference"`
	ClientSecret     string               `json:"clientSecret,omitempty"`
	AuthorizationURL string               `json:"authorizationUrl,omitempty"`
	AccessCode       string               `json:"accessCode,omitempty"`
}

// ConfirmOrderData is the subset of client order data checked during confirmation.
type ConfirmOrderData struct {
	TempOrderNumber string
	Total           *Money
}

// ConfirmOrderCommand is the body of POST /api/orders/confirm.
type ConfirmOrderCommand struct {
	Provider  string
	Reference string
	OrderData ConfirmOrderData
}

// ConfirmationResult identifies the persisted order.
type ConfirmationResult struct {
	OrderID     string
	OrderNumber string
	Duplicate   bool
}

// PaymentWebhookCommand carries a raw provider webhook.
type PaymentWebhookCommand struct {
	Provider string
	Payload  []byte
	Header   http.Header
}

// WebhookOutcome reports what a webhook delivery caused.
type WebhookOutcome struct {
	EventID      string
	EventType    string
	Ignored      bool
	Confirmation *ConfirmationResult
}

// UpdateDeliveryFeesCommand replaces the delivery fee table.
type UpdateDeliveryFeesCommand struct {
	Fees    DeliveryFeeTable
	ActorID string
}

// UpdateVATCommand replaces the VAT configuration.
type UpdateVATCommand struct {
	VAT     VATConfig
	ActorID string
}

// OrderStatusTransitionCommand moves an order to the next lifecycle status.
type OrderStatusTransitionCommand struct {
	OrderID        string
	TargetStatus   string
	ExpectedStatus string
	ActorID        string
}

// PurgeStagedOrdersCommand bounds a purge run.
type PurgeStagedOrdersCommand struct {
	Limit int
}

// PurgeStagedOrdersResult reports how many staged orders were removed.
type PurgeStagedOrdersResult struct {
	Removed int       `json:"removed"`
	RanAt   time.Time `json:"ranAt"`
}

// NotificationChannel names a fan-out channel.
type NotificationChannel string

const (
	ChannelCustomerEmail NotificationChannel = "customer_email"
	ChannelAdminEmail    NotificationChannel = "admin_email"
	ChannelAdminSMS      NotificationChannel = "admin_sms"
	ChannelInvoice       NotificationChannel = "invoice"
)

// NotificationOutcome is the result of one channel.
type NotificationOutcome string

const (
	NotificationSent    NotificationOutcome = "sent"
	NotificationSkipped NotificationOutcome = "skipped"
	NotificationFailed  NotificationOutcome = "failed"
)

// NotificationReport records the outcome per channel.
type NotificationReport map[NotificationChannel]NotificationOutcome
