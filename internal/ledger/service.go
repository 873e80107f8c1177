package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/aurelia-backend/pkg/db/models"
	"github.com/angelmondragon/aurelia-backend/pkg/enums"
	"github.com/angelmondragon/aurelia-backend/pkg/money"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Service records gateway outcomes as immutable ledger rows.
type Service interface {
	WithTx(tx *gorm.DB) Service
	Record(ctx context.Context, input RecordTransactionInput) (*RecordResult, error)
	FindCharge(ctx context.Context, gatewayID int64) (*models.Transaction, error)
	SettleRefund(ctx context.Context, original *models.Transaction, refundMinor int64) (enums.TransactionStatus, error)
}

type service struct {
	repo Repository
	now  func() time.Time
}

// Customer is the payer snapshot copied onto each ledger row.
type Customer struct {
	Email *string
	Phone *string
	Name  *string
}

// Instrument describes how the payer paid.
type Instrument struct {
	Channel  string
	CardType *string
	Bank     *string
	Last4    *string
}

// RecordTransactionInput captures the immutable data a ledger row requires.
// Amounts are in the currency's minor unit.
type RecordTransactionInput struct {
	OrderID              uuid.UUID
	GatewayTransactionID int64
	Kind                 enums.TransactionKind
	Status               enums.TransactionStatus
	PaymentReference     string
	AmountMinor          int64
	FeesMinor            int64
	Currency             string
	Instrument           Instrument
	Customer             Customer
	FeesBreakdown        json.RawMessage
	Metadata             json.RawMessage
	GatewayResponse      *string
	IPAddress            *string
	OccurredAt           *time.Time
}

// RecordResult reports the stored row and whether this call inserted it.
type RecordResult struct {
	Transaction *models.Transaction
	Inserted    bool
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

func (s *service) WithTx(tx *gorm.DB) Service {
	return &service{repo: s.repo.WithTx(tx), now: s.now}
}

func (s *service) Record(ctx context.Context, input RecordTransactionInput) (*RecordResult, error) {
	if input.OrderID == uuid.Nil {
		return nil, fmt.Errorf("order id is required")
	}
	if input.GatewayTransactionID <= 0 {
		return nil, fmt.Errorf("gateway transaction id is required")
	}
	if !input.Kind.IsValid() {
		return nil, fmt.Errorf("invalid transaction kind %q", input.Kind)
	}
	if !input.Status.IsValid() {
		return nil, fmt.Errorf("invalid transaction status %q", input.Status)
	}
	if strings.TrimSpace(input.PaymentReference) == "" {
		return nil, fmt.Errorf("payment reference is required")
	}
	if input.AmountMinor < 0 {
		return nil, fmt.Errorf("amount must be non-negative")
	}

	currency := enums.Currency(strings.ToUpper(strings.TrimSpace(input.Currency)))
	txn := &models.Transaction{
		OrderID:              input.OrderID,
		GatewayTransactionID: input.GatewayTransactionID,
		Kind:                 input.Kind,
		PaymentReference:     input.PaymentReference,
		Amount:               money.ToMajor(input.AmountMinor, string(currency)),
		AmountInKobo:         input.AmountMinor,
		Currency:             currency,
		Status:               input.Status,
		Channel:              enums.PaymentChannel(input.Instrument.Channel),
		CardType:             input.Instrument.CardType,
		Bank:                 input.Instrument.Bank,
		Last4:                input.Instrument.Last4,
		Fees:                 money.ToMajor(input.FeesMinor, string(currency)),
		FeesBreakdown:        jsonOrNil(input.FeesBreakdown),
		CustomerEmail:        input.Customer.Email,
		CustomerPhone:        input.Customer.Phone,
		CustomerName:         input.Customer.Name,
		Metadata:             jsonOrNil(input.Metadata),
		GatewayResponse:      input.GatewayResponse,
		IPAddress:            input.IPAddress,
	}

	at := s.now().UTC()
	if input.OccurredAt != nil {
		at = input.OccurredAt.UTC()
	}
	switch input.Status {
	case enums.TransactionStatusSuccess:
		txn.PaidAt = &at
	case enums.TransactionStatusFailed:
		txn.FailedAt = &at
	}
	if input.Kind == enums.TransactionKindRefund {
		txn.RefundedAt = &at
	}

	inserted, err := s.repo.Insert(ctx, txn)
	if err != nil {
		return nil, err
	}
	return &RecordResult{Transaction: txn, Inserted: inserted}, nil
}

func (s *service) FindCharge(ctx context.Context, gatewayID int64) (*models.Transaction, error) {
	return s.repo.FindByGatewayID(ctx, gatewayID, enums.TransactionKindChargeSuccess)
}

// SettleRefund marks the original charge as refunded when refundMinor equals
// the charged minor amount exactly, otherwise as partially refunded. A charge
// already marked refunded is left untouched.
func (s *service) SettleRefund(ctx context.Context, original *models.Transaction, refundMinor int64) (enums.TransactionStatus, error) {
	if original == nil {
		return "", fmt.Errorf("original transaction is required")
	}
	if original.Status == enums.TransactionStatusRefunded {
		return original.Status, nil
	}
	status := RefundStatusFor(original.AmountInKobo, refundMinor)
	if err := s.repo.UpdateStatus(ctx, original.ID, status); err != nil {
		return "", err
	}
	original.Status = status
	return status, nil
}

// RefundStatusFor compares minor-unit integers; no float arithmetic is involved.
func RefundStatusFor(chargedMinor, refundMinor int64) enums.TransactionStatus {
	if refundMinor == chargedMinor {
		return enums.TransactionStatusRefunded
	}
	return enums.TransactionStatusPartiallyRefunded
}

func jsonOrNil(raw json.RawMessage) datatypes.JSON {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil
	}
	return datatypes.JSON(raw)
}
