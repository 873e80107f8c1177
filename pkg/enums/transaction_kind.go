package enums

import "fmt"

// TransactionKind distinguishes ledger rows written for the same gateway id.
type TransactionKind string

const (
	TransactionKindChargeSuccess TransactionKind = "charge_success"
	TransactionKindChargeFailed  TransactionKind = "charge_failed"
	TransactionKindRefund        TransactionKind = "refund"
)

var validTransactionKinds = []TransactionKind{
	TransactionKindChargeSuccess,
	TransactionKindChargeFailed,
	TransactionKindRefund,
}

// String implements fmt.Stringer.
func (k TransactionKind) String() string {
	return string(k)
}

// IsValid reports whether the value is a known TransactionKind.
func (k TransactionKind) IsValid() bool {
	for _, candidate := range validTransactionKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseTransactionKind converts raw input into a TransactionKind.
func ParseTransactionKind(value string) (TransactionKind, error) {
	for _, candidate := range validTransactionKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction kind %q", value)
}
