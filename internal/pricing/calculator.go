// Package pricing derives order totals from cart lines and the storefront fee/VAT settings.
package pricing

import (
	"errors"
	"fmt"

	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/domain"
)

var (
	// ErrInvalidLine signals a cart line that cannot be priced (quantity below one, negative price).
	ErrInvalidLine = errors.New("pricing: invalid cart line")
	// ErrUnknownDeliveryMethod signals a delivery method missing from the fee table.
	ErrUnknownDeliveryMethod = errors.New("pricing: unknown delivery method")
)

// LineAmount returns (variant price or unit price, plus extras) × quantity.
func LineAmount(line domain.CartLine) (domain.Money, error) {
	if line.Quantity < 1 {
		return 0, fmt.Errorf("%w: %s quantity must be at least 1", ErrInvalidLine, line.ItemID)
	}
	unit := line.UnitPrice
	if line.VariantPrice != nil {
		unit = *line.VariantPrice
	}
	if unit.IsNegative() {
		return 0, fmt.Errorf("%w: %s has a negative price", ErrInvalidLine, line.ItemID)
	}
	for _, extra := range line.Extras {
		if extra.Price.IsNegative() {
			return 0, fmt.Errorf("%w: extra %s on %s has a negative price", ErrInvalidLine, extra.ID, line.ItemID)
		}
		unit += extra.Price
	}
	return unit * domain.Money(line.Quantity), nil
}

// Subtotal sums LineAmount over the cart.
func Subtotal(lines []domain.CartLine) (domain.Money, error) {
	var subtotal domain.Money
	for _, line := range lines {
		amount, err := LineAmount(line)
		if err != nil {
			return 0, err
		}
		subtotal += amount
	}
	return subtotal, nil
}

// ComputeTotals prices the cart for the delivery method. It never caches: callers recompute
// on every cart or delivery-method change. An empty cart prices to a zero subtotal.
func ComputeTotals(lines []domain.CartLine, method domain.DeliveryMethod, fees domain.DeliveryFeeTable, vat domain.VATConfig) (domain.PricingSnapshot, error) {
	subtotal, err := Subtotal(lines)
	if err != nil {
		return domain.PricingSnapshot{}, err
	}

	fee, ok := fees.Fee(method)
	if !ok {
		return domain.PricingSnapshot{}, fmt.Errorf("%w: %q", ErrUnknownDeliveryMethod, method)
	}
	if fee.IsNegative() {
		return domain.PricingSnapshot{}, fmt.Errorf("pricing: delivery fee for %s is negative", method)
	}

	snapshot := domain.PricingSnapshot{
		Subtotal:    subtotal,
		DeliveryFee: fee,
	}
	if vat.Enabled {
		snapshot.VATRate = vat.Rate
		snapshot.VATAmount = vat.Rate.Apply(subtotal)
	}
	snapshot.Total = snapshot.Subtotal + snapshot.DeliveryFee + snapshot.VATAmount
	return snapshot, nil
}

// Mismatches lists the snapshot fields on which claimed differs from computed.
func Mismatches(claimed, computed domain.PricingSnapshot) []string {
	var fields []string
	if claimed.Subtotal != computed.Subtotal {
		fields = append(fields, "subtotal")
	}
	if claimed.DeliveryFee != computed.DeliveryFee {
		fields = append(fields, "deliveryFee")
	}
	if !claimed.VATRate.Equal(computed.VATRate) {
		fields = append(fields, "vatRate")
	}
	if claimed.VATAmount != computed.VATAmount {
		fields = append(fields, "vatAmount")
	}
	if claimed.Total != computed.Total {
		fields = append(fields, "total")
	}
	return fields
}
