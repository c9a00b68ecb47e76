// Package money provides the validated monetary amount type used across the
// wallet ledger. Amounts are arbitrary-precision decimals; floating point is
// never involved.
package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// MaxScale is the number of decimal places an amount may carry.
const MaxScale = 2

// ErrInvalidAmount indicates a non-positive or malformed amount
var ErrInvalidAmount = errors.New("amount must be a positive decimal with at most two decimal places")

// Amount is a validated positive decimal value. The zero Amount is invalid;
// construct amounts through New or Parse.
type Amount struct {
	value decimal.Decimal
}

// New validates v and wraps it into an Amount. It fails with ErrInvalidAmount
// when v is zero or negative, or when it carries more than MaxScale decimal
// places.
func New(v decimal.Decimal) (Amount, error) {
	if v.LessThanOrEqual(decimal.Zero) {
		return Amount{}, fmt.Errorf("%w: got %s", ErrInvalidAmount, v.String())
	}
	if v.Exponent() < -MaxScale {
		return Amount{}, fmt.Errorf("%w: got %s", ErrInvalidAmount, v.String())
	}
	return Amount{value: v}, nil
}

// Parse builds an Amount from its decimal string representation
func Parse(s string) (Amount, error) {
	v, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q is not a decimal", ErrInvalidAmount, s)
	}
	return New(v)
}

// Decimal returns the underlying decimal value
func (a Amount) Decimal() decimal.Decimal {
	return a.value
}

// String returns the canonical decimal representation
func (a Amount) String() string {
	return a.value.String()
}

// Equal reports value-based decimal equality (1.5 equals 1.50)
func (a Amount) Equal(b Amount) bool {
	return a.value.Equal(b.value)
}

// GreaterThan reports whether a exceeds b
func (a Amount) GreaterThan(b Amount) bool {
	return a.value.GreaterThan(b.value)
}

// IsZero reports whether the amount holds its invalid zero value. Validated
// amounts are never zero; this exists to detect uninitialized fields.
func (a Amount) IsZero() bool {
	return a.value.IsZero()
}

// MarshalJSON encodes the amount as a JSON string to preserve precision
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.value.String() + `"`), nil
}

// UnmarshalJSON decodes and validates an amount from a JSON string or number
func (a *Amount) UnmarshalJSON(data []byte) error {
	var v decimal.Decimal
	if err := v.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, string(data))
	}
	parsed, err := New(v)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
