package payments

import "github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/domain"

// DefaultCardMinimum applies when no minimum is configured.
var DefaultCardMinimum = domain.MustParseMoney("1000.00")

// Policy decides which payment methods a total may use.
type Policy struct {
	Minimum domain.Money
}

// Eligible reports whether method may collect total. The card gateway accepts totals at or above
// the minimum; the aggregator accepts any total.
func (p Policy) Eligible(method domain.PaymentMethod, total domain.Money) bool {
	switch method {
	case domain.PaymentCardGateway:
		return total >= p.Minimum
	case domain.PaymentAggregator:
		return true
	default:
		return false
	}
}

// Select returns the method to use for total, starting from preferred. An empty or unknown
// preference defaults to the card gateway; a card total below the minimum moves to the aggregator.
func (p Policy) Select(preferred domain.PaymentMethod, total domain.Money) domain.PaymentMethod {
	if !preferred.Valid() {
		preferred = domain.PaymentCardGateway
	}
	if !p.Eligible(preferred, total) {
		return domain.PaymentAggregator
	}
	return preferred
}
