package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/aurelia-backend/pkg/enums"
)

// Order is the storefront order created at checkout and settled by payment webhooks.
type Order struct {
	ID               uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber      string            `gorm:"column:order_number;not null;unique"`
	Status           enums.OrderStatus `gorm:"column:status;type:order_status;not null;default:'pending'"`
	Subtotal         decimal.Decimal   `gorm:"column:subtotal;type:numeric(12,2);not null"`
	DeliveryFee      decimal.Decimal   `gorm:"column:delivery_fee;type:numeric(12,2);not null"`
	Total            decimal.Decimal   `gorm:"column:total;type:numeric(12,2);not null"`
	Currency         enums.Currency    `gorm:"column:currency;not null;default:'NGN'"`
	PaymentReference string            `gorm:"column:payment_reference;not null;unique"`
	CustomerEmail    string            `gorm:"column:customer_email;not null"`
	CreatedAt        time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time         `gorm:"column:updated_at;autoUpdateTime"`
	ShippedAt        *time.Time        `gorm:"column:shipped_at"`
	DeliveredAt      *time.Time        `gorm:"column:delivered_at"`
}
