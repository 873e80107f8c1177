package payloads

import (
	"time"

	"github.com/angelmondragon/aurelia-backend/pkg/enums"
	"github.com/google/uuid"
)

// OrderPaidEvent is emitted when a successful charge confirms a pending order.
type OrderPaidEvent struct {
	OrderID              uuid.UUID         `json:"order_id"`
	OrderNumber          string            `json:"order_number"`
	PaymentReference     string            `json:"payment_reference"`
	GatewayTransactionID int64             `json:"gateway_transaction_id"`
	Amount               string            `json:"amount"`
	AmountMinor          int64             `json:"amount_minor"`
	Currency             string            `json:"currency"`
	Channel              string            `json:"channel,omitempty"`
	CustomerEmail        string            `json:"customer_email"`
	Status               enums.OrderStatus `json:"status"`
	PaidAt               time.Time         `json:"paid_at"`
}

// OrderPaymentFailedEvent is emitted when a failed charge cancels a pending order.
type OrderPaymentFailedEvent struct {
	OrderID              uuid.UUID         `json:"order_id"`
	OrderNumber          string            `json:"order_number"`
	PaymentReference     string            `json:"payment_reference"`
	GatewayTransactionID int64             `json:"gateway_transaction_id"`
	GatewayResponse      string            `json:"gateway_response,omitempty"`
	CustomerEmail        string            `json:"customer_email"`
	Status               enums.OrderStatus `json:"status"`
	FailedAt             time.Time         `json:"failed_at"`
}

// OrderRefundedEvent is emitted for every newly recorded refund, full or partial.
type OrderRefundedEvent struct {
	OrderID               uuid.UUID               `json:"order_id"`
	PaymentReference      string                  `json:"payment_reference"`
	RefundID              int64                   `json:"refund_id"`
	OriginalTransactionID int64                   `json:"original_transaction_id"`
	Amount                string                  `json:"amount"`
	AmountMinor           int64                   `json:"amount_minor"`
	Currency              string                  `json:"currency"`
	Full                  bool                    `json:"full"`
	ChargeStatus          enums.TransactionStatus `json:"charge_status"`
	RefundedAt            time.Time               `json:"refunded_at"`
}
