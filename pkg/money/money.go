// Package money converts gateway minor-unit integers into major-unit decimals.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

const defaultDivisor int64 = 100

// minorUnits maps ISO currency codes to the number of minor units per major unit.
var minorUnits = map[string]int64{
	"NGN": 100,
	"GHS": 100,
	"ZAR": 100,
	"KES": 100,
	"USD": 100,
}

// Divisor returns the minor-unit divisor for currency. Unknown currencies use 100.
func Divisor(currency string) int64 {
	if d, ok := minorUnits[strings.ToUpper(strings.TrimSpace(currency))]; ok {
		return d
	}
	return defaultDivisor
}

// ToMajor converts an amount in minor units (kobo, pesewas, cents) to major units.
func ToMajor(minor int64, currency string) decimal.Decimal {
	return decimal.NewFromInt(minor).Div(decimal.NewFromInt(Divisor(currency)))
}

// ToMinor converts a major-unit amount back to minor units, rounding half away from zero.
func ToMinor(major decimal.Decimal, currency string) int64 {
	return major.Mul(decimal.NewFromInt(Divisor(currency))).Round(0).IntPart()
}

// Format renders a major-unit amount with two decimal places, e.g. "1500.00".
func Format(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}
