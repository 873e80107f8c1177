package enums

import (
	"fmt"
	"strings"
)

// Currency represents the settlement currencies Paystack supports.
type Currency string

const (
	CurrencyNGN Currency = "NGN"
	CurrencyGHS Currency = "GHS"
	CurrencyZAR Currency = "ZAR"
	CurrencyKES Currency = "KES"
	CurrencyUSD Currency = "USD"
)

var validCurrencies = []Currency{
	CurrencyNGN,
	CurrencyGHS,
	CurrencyZAR,
	CurrencyKES,
	CurrencyUSD,
}

// String implements fmt.Stringer.
func (c Currency) String() string {
	return string(c)
}

// IsValid reports whether the currency is recognized.
func (c Currency) IsValid() bool {
	for _, candidate := range validCurrencies {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCurrency converts a raw string into a Currency. Matching ignores case.
func ParseCurrency(value string) (Currency, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	for _, candidate := range validCurrencies {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid currency %q", value)
}
