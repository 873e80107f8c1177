package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/angelmondragon/aurelia-backend/pkg/enums"
)

// Transaction is an append-only ledger row recording one gateway outcome.
// (GatewayTransactionID, Kind) is unique.
type Transaction struct {
	ID                   uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID              uuid.UUID               `gorm:"column:order_id;type:uuid;not null;index"`
	GatewayTransactionID int64                   `gorm:"column:gateway_transaction_id;not null;uniqueIndex:ux_transactions_gateway_kind"`
	Kind                 enums.TransactionKind   `gorm:"column:kind;type:transaction_kind;not null;uniqueIndex:ux_transactions_gateway_kind"`
	PaymentReference     string                  `gorm:"column:payment_reference;not null;index"`
	Amount               decimal.Decimal         `gorm:"column:amount;type:numeric(14,2);not null"`
	AmountInKobo         int64                   `gorm:"column:amount_in_kobo;not null"`
	Currency             enums.Currency          `gorm:"column:currency;not null"`
	Status               enums.TransactionStatus `gorm:"column:status;type:transaction_status;not null"`
	Channel              enums.PaymentChannel    `gorm:"column:channel"`
	CardType             *string                 `gorm:"column:card_type"`
	Bank                 *string                 `gorm:"column:bank"`
	Last4                *string                 `gorm:"column:last4"`
	Fees                 decimal.Decimal         `gorm:"column:fees;type:numeric(14,2);not null;default:0"`
	FeesBreakdown        datatypes.JSON          `gorm:"column:fees_breakdown;type:jsonb"`
	CustomerEmail        *string                 `gorm:"column:customer_email"`
	CustomerPhone        *string                 `gorm:"column:customer_phone"`
	CustomerName         *string                 `gorm:"column:customer_name"`
	Metadata             datatypes.JSON          `gorm:"column:metadata;type:jsonb"`
	GatewayResponse      *string                 `gorm:"column:gateway_response"`
	IPAddress            *string                 `gorm:"column:ip_address"`
	PaidAt               *time.Time              `gorm:"column:paid_at"`
	FailedAt             *time.Time              `gorm:"column:failed_at"`
	RefundedAt           *time.Time              `gorm:"column:refunded_at"`
	CreatedAt            time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
