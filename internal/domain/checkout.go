package domain

import (
	"strings"
	"time"
)

// DeliveryMethod selects the delivery fee tier.
type DeliveryMethod string

const (
	DeliveryStandard DeliveryMethod = "standard"
	DeliveryExpress  DeliveryMethod = "express"
)

// Valid reports whether the method is one of the supported tiers.
func (m DeliveryMethod) Valid() bool {
	return m == DeliveryStandard || m == DeliveryExpress
}

// PaymentMethod selects the payment provider family used for a prepared order.
type PaymentMethod string

const (
	PaymentCardGateway PaymentMethod = "cardGateway"
	PaymentAggregator  PaymentMethod = "aggregator"
)

// Valid reports whether the method is known.
func (m PaymentMethod) Valid() bool {
	return m == PaymentCardGateway || m == PaymentAggregator
}

// NormalizePaymentMethod accepts the spellings used by older storefront builds.
func NormalizePaymentMethod(value string) PaymentMethod {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "cardgateway", "card_gateway", "card", "stripe":
		return PaymentCardGateway
	case "aggregator", "paystack", "bank", "transfer":
		return PaymentAggregator
	default:
		return PaymentMethod(strings.TrimSpace(value))
	}
}

// CartExtra is an optional add-on chosen for a cart line.
type CartExtra struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Price     Money  `json:"price"`
	GroupName string `json:"groupName,omitempty"`
}

// CartLine is a single menu item selection.
type CartLine struct {
	ItemID       string      `json:"itemId"`
	Name         string      `json:"name"`
	UnitPrice    Money       `json:"unitPrice"`
	VariantName  string      `json:"variantName,omitempty"`
	VariantPrice *Money      `json:"variantPrice,omitempty"`
	Quantity     int         `json:"quantity"`
	Extras       []CartExtra `json:"extras,omitempty"`
	Measurement  string      `json:"measurement,omitempty"`
}

// DeliveryInfo captures where and how the order is delivered.
type DeliveryInfo struct {
	FirstName           string         `json:"firstName"`
	LastName            string         `json:"lastName"`
	Email               string         `json:"email"`
	Phone               string         `json:"phone"`
	Address             string         `json:"address"`
	City                string         `json:"city"`
	SpecialInstructions string         `json:"specialInstructions,omitempty"`
	DeliveryMethod      DeliveryMethod `json:"deliveryMethod"`
}

// FullName joins first and last names.
func (d DeliveryInfo) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(d.FirstName) + " " + strings.TrimSpace(d.LastName))
}

// PricingSnapshot is the computed breakdown of an order total.
type PricingSnapshot struct {
	Subtotal    Money `json:"subtotal"`
	DeliveryFee Money `json:"deliveryFee"`
	VATRate     Rate  `json:"vatRate"`
	VATAmount   Money `json:"vatAmount"`
	Total       Money `json:"total"`
}

// Balanced reports whether total = subtotal + deliveryFee + vatAmount.
func (p PricingSnapshot) Balanced() bool {
	return p.Total == p.Subtotal+p.DeliveryFee+p.VATAmount
}

// DeliveryFeeTable maps delivery methods to their fee.
type DeliveryFeeTable struct {
	Standard Money `json:"standard"`
	Express  Money `json:"express"`
}

// Fee returns the fee for the method.
func (t DeliveryFeeTable) Fee(method DeliveryMethod) (Money, bool) {
	switch method {
	case DeliveryStandard:
		return t.Standard, true
	case DeliveryExpress:
		return t.Express, true
	default:
		return 0, false
	}
}

// VATConfig controls whether VAT is charged and at which percentage.
type VATConfig struct {
	Enabled bool `json:"enabled"`
	Rate    Rate `json:"rate"`
}

// PreparedOrder is a validated but unpaid order held in the staging store.
type PreparedOrder struct {
	TempOrderNumber string          `json:"tempOrderNumber"`
	CustomerName    string          `json:"customerName"`
	Delivery        DeliveryInfo    `json:"delivery"`
	Items           []CartLine      `json:"items"`
	Pricing         PricingSnapshot `json:"pricing"`
	Currency        string          `json:"currency"`
	PaymentMethod   PaymentMethod   `json:"paymentMethod"`
	CreatedAt       time.Time       `json:"createdAt"`
	ExpiresAt       time.Time       `json:"expiresAt"`
}

// Expired reports whether the staged order can no longer be confirmed.
func (p PreparedOrder) Expired(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && !now.Before(p.ExpiresAt)
}

// PaymentAttempt is the transient outcome reported by a payment adapter.
type PaymentAttempt struct {
	Provider  string `json:"provider"`
	Reference string `json:"reference"`
	Status    string `json:"status"`
}
