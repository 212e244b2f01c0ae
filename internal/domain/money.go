package domain

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// MinorUnitScale is the number of fractional digits carried by Money.
const MinorUnitScale = 2

var (
	// ErrInvalidAmount indicates a monetary value could not be parsed or carries sub-minor precision.
	ErrInvalidAmount = errors.New("domain: invalid amount")
	// ErrInvalidRate indicates a percentage rate outside 0..100 or otherwise malformed.
	ErrInvalidRate = errors.New("domain: invalid rate")

	hundred = decimal.NewFromInt(100)
)

// Money stores an amount in currency minor units (kobo, pence, cents).
type Money int64

// MoneyFromDecimal converts a major-unit decimal into Money. Values carrying more than two
// fractional digits are rejected rather than rounded.
func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	scaled := d.Shift(MinorUnitScale)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, fmt.Errorf("%w: %s has more than %d fractional digits", ErrInvalidAmount, d.String(), MinorUnitScale)
	}
	return Money(scaled.IntPart()), nil
}

// ParseMoney parses a major-unit string such as "15.00" or "15".
func ParseMoney(value string) (Money, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("%w: empty value", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	return MoneyFromDecimal(d)
}

// MustParseMoney is ParseMoney for constants and tests.
func MustParseMoney(value string) Money {
	m, err := ParseMoney(value)
	if err != nil {
		panic(err)
	}
	return m
}

// Decimal returns the major-unit decimal representation.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -MinorUnitScale)
}

// String renders the amount with exactly two fractional digits.
func (m Money) String() string {
	return m.Decimal().StringFixed(MinorUnitScale)
}

// IsNegative reports whether the amount is below zero.
func (m Money) IsNegative() bool { return m < 0 }

// Format renders the amount for humans using the currency symbol, e.g. "₦ 33.00".
func (m Money) Format(code string) string {
	unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return strings.TrimSpace(code + " " + m.String())
	}
	printer := message.NewPrinter(language.English)
	return printer.Sprint(currency.Symbol(unit.Amount(m.Decimal().InexactFloat64())))
}

// MarshalJSON renders Money as a JSON number in major units.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts either a JSON number or a quoted decimal string.
func (m *Money) UnmarshalJSON(data []byte) error {
	raw := bytes.TrimSpace(data)
	if bytes.Equal(raw, []byte("null")) {
		*m = 0
		return nil
	}
	raw = bytes.Trim(raw, `"`)
	parsed, err := ParseMoney(string(raw))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Rate is a percentage such as 7.5 (meaning 7.5%).
type Rate struct {
	value decimal.Decimal
}

// NewRate validates and wraps a percentage.
func NewRate(d decimal.Decimal) (Rate, error) {
	if d.IsNegative() || d.GreaterThan(hundred) {
		return Rate{}, fmt.Errorf("%w: %s must be between 0 and 100", ErrInvalidRate, d.String())
	}
	return Rate{value: d}, nil
}

// ParseRate parses a percentage string.
func ParseRate(value string) (Rate, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return Rate{}, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return Rate{}, fmt.Errorf("%w: %v", ErrInvalidRate, err)
	}
	return NewRate(d)
}

// MustParseRate is ParseRate for constants and tests.
func MustParseRate(value string) Rate {
	r, err := ParseRate(value)
	if err != nil {
		panic(err)
	}
	return r
}

// Decimal exposes the percentage value.
func (r Rate) Decimal() decimal.Decimal { return r.value }

// IsZero reports whether the rate is 0%.
func (r Rate) IsZero() bool { return r.value.IsZero() }

// Equal compares two rates numerically.
func (r Rate) Equal(other Rate) bool { return r.value.Equal(other.value) }

func (r Rate) String() string { return r.value.String() }

// Apply returns amount × rate / 100 rounded half away from zero to the nearest minor unit.
func (r Rate) Apply(amount Money) Money {
	if r.value.IsZero() || amount == 0 {
		return 0
	}
	minor := decimal.NewFromInt(int64(amount)).Mul(r.value).Div(hundred).Round(0)
	return Money(minor.IntPart())
}

// MarshalJSON renders the rate as a JSON number.
func (r Rate) MarshalJSON() ([]byte, error) {
	return []byte(r.value.String()), nil
}

// UnmarshalJSON accepts either a JSON number or a quoted decimal string.
func (r *Rate) UnmarshalJSON(data []byte) error {
	raw := bytes.TrimSpace(data)
	if bytes.Equal(raw, []byte("null")) {
		*r = Rate{}
		return nil
	}
	parsed, err := ParseRate(string(bytes.Trim(raw, `"`)))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
