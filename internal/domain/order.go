package domain

import (
	"slices"
	"strings"
	"time"
)

// OrderStatus enumerates the lifecycle states of a persisted order.
type OrderStatus string

const (
	// OrderStatusPending indicates the order was recorded but not yet accepted by the kitchen.
	OrderStatusPending OrderStatus = "PENDING"
	// OrderStatusConfirmed indicates payment was verified and the order accepted.
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	// OrderStatusPreparing indicates the kitchen is preparing the order.
	OrderStatusPreparing OrderStatus = "PREPARING"
	// OrderStatusReady indicates the order is packed and waiting for a rider.
	OrderStatusReady OrderStatus = "READY"
	// OrderStatusOutForDelivery indicates a rider has collected the order.
	OrderStatusOutForDelivery OrderStatus = "OUT_FOR_DELIVERY"
	// OrderStatusDelivered indicates the customer received the order.
	OrderStatusDelivered OrderStatus = "DELIVERED"
	// OrderStatusCancelled indicates the order was cancelled before confirmation.
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

var orderStatusTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:        {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:      {OrderStatusPreparing},
	OrderStatusPreparing:      {OrderStatusReady},
	OrderStatusReady:          {OrderStatusOutForDelivery},
	OrderStatusOutForDelivery: {OrderStatusDelivered},
}

// ParseOrderStatus normalises user input into a known status.
func ParseOrderStatus(value string) (OrderStatus, bool) {
	status := OrderStatus(strings.ToUpper(strings.TrimSpace(value)))
	switch status {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusPreparing, OrderStatusReady,
		OrderStatusOutForDelivery, OrderStatusDelivered, OrderStatusCancelled:
		return status, true
	default:
		return "", false
	}
}

// CanTransitionTo reports whether next directly follows s in the order lifecycle.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	return slices.Contains(orderStatusTransitions[s], next)
}

// Terminal reports whether no further transitions are possible.
func (s OrderStatus) Terminal() bool {
	return len(orderStatusTransitions[s]) == 0
}

// Order is the persisted, paid order.
type Order struct {
	ID               string          `json:"id"`
	OrderNumber      string          `json:"orderNumber"`
	Status           OrderStatus     `json:"status"`
	CustomerName     string          `json:"customerName"`
	Delivery         DeliveryInfo    `json:"delivery"`
	Items            []CartLine      `json:"items"`
	Pricing          PricingSnapshot `json:"pricing"`
	Currency         string          `json:"currency"`
	PaymentMethod    PaymentMethod   `json:"paymentMethod"`
	PaymentProvider  string          `json:"paymentProvider"`
	PaymentReference string          `json:"paymentReference"`
	TempOrderNumber  string          `json:"tempOrderNumber,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
	PaidAt           *time.Time      `json:"paidAt,omitempty"`
}
