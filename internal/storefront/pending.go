package storefront

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/domain"
)

const pendingCheckoutKey = "pending-checkout"

// OrderData is the prepare payload. The same shape is kept in the pending checkout record.
type OrderData struct {
	CustomerName        string            `json:"customerName"`
	FirstName           string            `json:"firstName"`
	LastName            string            `json:"lastName"`
	CustomerEmail       string            `json:"customerEmail"`
	CustomerPhone       string            `json:"customerPhone"`
	DeliveryAddress     string            `json:"deliveryAddress"`
	DeliveryCity        string            `json:"deliveryCity"`
	SpecialInstructions string            `json:"specialInstructions,omitempty"`
	DeliveryMethod      string            `json:"deliveryMethod"`
	PaymentMethod       string            `json:"paymentMethod"`
	Items               []domain.CartLine `json:"items"`
	Subtotal            domain.Money      `json:"subtotal"`
	DeliveryFee         domain.Money      `json:"deliveryFee"`
	VATRate             domain.Rate       `json:"vatRate"`
	VATAmount           domain.Money      `json:"vatAmount"`
	Total               domain.Money      `json:"total"`
}

// NewOrderData flattens the session inputs into the wire payload.
func NewOrderData(account Account, delivery domain.DeliveryInfo, items []domain.CartLine, snapshot domain.PricingSnapshot, method domain.PaymentMethod) OrderData {
	name := account.Name
	if name == "" {
		name = delivery.FullName()
	}
	return OrderData{
		CustomerName:        name,
		FirstName:           delivery.FirstName,
		LastName:            delivery.LastName,
		CustomerEmail:       delivery.Email,
		CustomerPhone:       delivery.Phone,
		DeliveryAddress:     delivery.Address,
		DeliveryCity:        delivery.City,
		SpecialInstructions: delivery.SpecialInstructions,
		DeliveryMethod:      string(delivery.DeliveryMethod),
		PaymentMethod:       string(method),
		Items:               items,
		Subtotal:            snapshot.Subtotal,
		DeliveryFee:         snapshot.DeliveryFee,
		VATRate:             snapshot.VATRate,
		VATAmount:           snapshot.VATAmount,
		Total:               snapshot.Total,
	}
}

// Delivery rebuilds the delivery details.
func (d OrderData) Delivery() domain.DeliveryInfo {
	return domain.DeliveryInfo{
		FirstName:           d.FirstName,
		LastName:            d.LastName,
		Email:               d.CustomerEmail,
		Phone:               d.CustomerPhone,
		Address:             d.DeliveryAddress,
		City:                d.DeliveryCity,
		SpecialInstructions: d.SpecialInstructions,
		DeliveryMethod:      domain.DeliveryMethod(d.DeliveryMethod),
	}
}

// Pricing rebuilds the pricing snapshot.
func (d OrderData) Pricing() domain.PricingSnapshot {
	return domain.PricingSnapshot{
		Subtotal:    d.Subtotal,
		DeliveryFee: d.DeliveryFee,
		VATRate:     d.VATRate,
		VATAmount:   d.VATAmount,
		Total:       d.Total,
	}
}

// PendingCheckout is saved after preparation and before any payment adapter runs.
type PendingCheckout struct {
	OrderData       OrderData `json:"orderData"`
	TempOrderNumber string    `json:"tempOrderNumber"`
	SavedAt         time.Time `json:"savedAt"`
}

// Method is the payment method currently selected for the record.
func (p PendingCheckout) Method() domain.PaymentMethod {
	return domain.NormalizePaymentMethod(p.OrderData.PaymentMethod)
}

// PendingStore persists the single pending checkout record.
type PendingStore struct {
	storage Storage
	now     func() time.Time
}

// NewPendingStore wraps storage. clock may be nil.
func NewPendingStore(storage Storage, clock func() time.Time) *PendingStore {
	if clock == nil {
		clock = time.Now
	}
	return &PendingStore{storage: storage, now: clock}
}

// Save stamps savedAt and writes the record.
func (s *PendingStore) Save(record PendingCheckout) (PendingCheckout, error) {
	record.SavedAt = s.now().UTC()
	data, err := json.Marshal(record)
	if err != nil {
		return PendingCheckout{}, fmt.Errorf("storefront: encode pending checkout: %w", err)
	}
	if err := s.storage.Save(pendingCheckoutKey, data); err != nil {
		return PendingCheckout{}, err
	}
	return record, nil
}

// Load returns the saved record, if any.
func (s *PendingStore) Load() (PendingCheckout, bool, error) {
	data, ok, err := s.storage.Load(pendingCheckoutKey)
	if err != nil || !ok {
		return PendingCheckout{}, false, err
	}
	var record PendingCheckout
	if err := json.Unmarshal(data, &record); err != nil {
		return PendingCheckout{}, false, fmt.Errorf("storefront: decode pending checkout: %w", err)
	}
	if record.TempOrderNumber == "" {
		return PendingCheckout{}, false, nil
	}
	return record, true, nil
}

// Clear removes the record.
func (s *PendingStore) Clear() error {
	return s.storage.Delete(pendingCheckoutKey)
}
