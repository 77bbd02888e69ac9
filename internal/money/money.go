// Package money centralises monetary arithmetic on decimal values so that
// every amount in the application shares one representation.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Zero is the zero amount.
var Zero = decimal.Zero

// Sum adds all values.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// Round2 rounds to two decimal places, the precision used for all
// user-facing figures.
func Round2(v decimal.Decimal) decimal.Decimal {
	return v.Round(2)
}

// NonNegative floors v at zero.
func NonNegative(v decimal.Decimal) decimal.Decimal {
	if v.IsNegative() {
		return decimal.Zero
	}
	return v
}

// Remaining computes amount minus paid, floored at zero.
func Remaining(amount, paid decimal.Decimal) decimal.Decimal {
	return NonNegative(amount.Sub(paid))
}

// Min returns the smaller of a and b.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// ParseAmount parses a user-supplied amount and rejects negatives and
// precision beyond two decimal places.
func ParseAmount(s string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("money: parse %q: %w", s, err)
	}
	if v.IsNegative() {
		return decimal.Zero, fmt.Errorf("money: amount %q is negative", s)
	}
	if v.Exponent() < -2 {
		return decimal.Zero, fmt.Errorf("money: amount %q has more than two decimal places", s)
	}
	return v, nil
}
