package enums

import "fmt"

// PaymentChannel is the instrument family Paystack reports for a charge.
// Unknown channels are stored verbatim; IsValid only flags them.
type PaymentChannel string

const (
	PaymentChannelCard         PaymentChannel = "card"
	PaymentChannelBank         PaymentChannel = "bank"
	PaymentChannelUSSD         PaymentChannel = "ussd"
	PaymentChannelQR           PaymentChannel = "qr"
	PaymentChannelMobileMoney  PaymentChannel = "mobile_money"
	PaymentChannelBankTransfer PaymentChannel = "bank_transfer"
	PaymentChannelApplePay     PaymentChannel = "apple_pay"
	PaymentChannelEFT          PaymentChannel = "eft"
)

var validPaymentChannels = []PaymentChannel{
	PaymentChannelCard,
	PaymentChannelBank,
	PaymentChannelUSSD,
	PaymentChannelQR,
	PaymentChannelMobileMoney,
	PaymentChannelBankTransfer,
	PaymentChannelApplePay,
	PaymentChannelEFT,
}

// String implements fmt.Stringer.
func (c PaymentChannel) String() string {
	return string(c)
}

// IsValid reports whether the value is a known PaymentChannel.
func (c PaymentChannel) IsValid() bool {
	for _, candidate := range validPaymentChannels {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParsePaymentChannel converts raw input into a PaymentChannel.
func ParsePaymentChannel(value string) (PaymentChannel, error) {
	for _, candidate := range validPaymentChannels {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment channel %q", value)
}
