package domain

import "github.com/shopspring/decimal"

// RelativeChange returns |new - old| / |old|. ok is false when old is zero.
func RelativeChange(old, new decimal.Decimal) (change decimal.Decimal, ok bool) {
	if old.IsZero() {
		return decimal.Zero, false
	}
	return new.Sub(old).Abs().Div(old.Abs()), true
}

// IsMaterial reports whether moving from old to new is a change of at least threshold (a fraction,
// 0.01 = 1%). From a zero old value any positive new value is material.
func IsMaterial(old, new, threshold decimal.Decimal) bool {
	change, ok := RelativeChange(old, new)
	if !ok {
		return new.IsPositive()
	}
	return change.GreaterThanOrEqual(threshold)
}
