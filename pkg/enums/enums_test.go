package enums

import "testing"

func TestParseOrderStatus(t *testing.T) {
	got, err := ParseOrderStatus("confirmed")
	if err != nil || got != OrderStatusConfirmed {
		t.Fatalf("expected confirmed, got %q (%v)", got, err)
	}
	if _, err := ParseOrderStatus("paid"); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestTransactionStatusIsValid(t *testing.T) {
	if !TransactionStatusPartiallyRefunded.IsValid() {
		t.Fatal("partially_refunded should be valid")
	}
	if TransactionStatus("reversed").IsValid() {
		t.Fatal("reversed should not be valid")
	}
}

func TestParseCurrencyIgnoresCase(t *testing.T) {
	got, err := ParseCurrency(" ngn ")
	if err != nil || got != CurrencyNGN {
		t.Fatalf("expected NGN, got %q (%v)", got, err)
	}
	if _, err := ParseCurrency("BTC"); err == nil {
		t.Fatal("expected error for unsupported currency")
	}
}

func TestPaymentChannelUnknownIsFlagged(t *testing.T) {
	if !PaymentChannelMobileMoney.IsValid() {
		t.Fatal("mobile_money should be valid")
	}
	if PaymentChannel("crypto").IsValid() {
		t.Fatal("crypto should not be valid")
	}
}

func TestOutboxEventTypes(t *testing.T) {
	for _, value := range []string{"order_paid", "order_payment_failed", "order_refunded"} {
		if _, err := ParseOutboxEventType(value); err != nil {
			t.Fatalf("expected %q to parse: %v", value, err)
		}
	}
	if _, err := ParseOutboxAggregateType("vendor_order"); err == nil {
		t.Fatal("expected error for unknown aggregate")
	}
}
