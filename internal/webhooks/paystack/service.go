package paystack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/angelmondragon/aurelia-backend/internal/ledger"
	"github.com/angelmondragon/aurelia-backend/internal/orders"
	"github.com/angelmondragon/aurelia-backend/pkg/db/models"
	"github.com/angelmondragon/aurelia-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/aurelia-backend/pkg/errors"
	"github.com/angelmondragon/aurelia-backend/pkg/logger"
	"github.com/angelmondragon/aurelia-backend/pkg/metrics"
	"github.com/angelmondragon/aurelia-backend/pkg/money"
	"github.com/angelmondragon/aurelia-backend/pkg/outbox"
	"github.com/angelmondragon/aurelia-backend/pkg/outbox/payloads"
	"gorm.io/gorm"
)

const eventSource = "paystack-webhook"

// Skip reasons reported on Outcome.Skipped.
const (
	SkipIgnored        = "ignored"
	SkipOrderNotFound  = "order_not_found"
	SkipChargeNotFound = "charge_not_found"
	SkipInvalidPayload = "invalid_payload"
)

const (
	outcomeProcessed = "processed"
	outcomeDuplicate = "duplicate"
	outcomeFailed    = "error"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type recordResolver interface {
	ResolveOrder(ctx context.Context, reference string) (*models.Order, error)
	ResolveChargeTransaction(ctx context.Context, gatewayID int64) (*models.Transaction, error)
}

type ServiceParams struct {
	Orders            orders.Repository
	Ledger            ledger.Service
	Outbox            outboxEmitter
	TransactionRunner txRunner
	Resolver          recordResolver
	Logger            *logger.Logger
	Metrics           *metrics.WebhookMetrics
}

// Service applies classified Paystack events to orders and the ledger.
type Service struct {
	orders   orders.Repository
	ledger   ledger.Service
	outbox   outboxEmitter
	txRunner txRunner
	resolver recordResolver
	logg     *logger.Logger
	metrics  *metrics.WebhookMetrics
}

// Outcome reports which branch HandleEvent took.
type Outcome struct {
	Kind         string
	Recorded     bool
	Duplicate    bool
	Transitioned bool
	Skipped      string
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order repo required")
	}
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger service required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox service required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Resolver == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "resolver required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{
		orders:   params.Orders,
		ledger:   params.Ledger,
		outbox:   params.Outbox,
		txRunner: params.TransactionRunner,
		resolver: params.Resolver,
		logg:     logg,
		metrics:  params.Metrics,
	}, nil
}

// HandleEvent dispatches event to its handler. A returned error means the
// delivery must be retried by the gateway; consistency violations are logged
// and reported through Outcome.Skipped instead.
func (s *Service) HandleEvent(ctx context.Context, event Event) (Outcome, error) {
	if event == nil {
		return Outcome{}, pkgerrors.New(pkgerrors.CodeValidation, "paystack event required")
	}
	started := time.Now()
	ctx = s.logg.WithEventKind(ctx, event.Name())

	var (
		outcome Outcome
		err     error
	)
	switch e := event.(type) {
	case ChargeSuccess:
		outcome, err = s.handleChargeSuccess(ctx, e.Data)
	case ChargeFailed:
		outcome, err = s.handleChargeFailed(ctx, e.Data)
	case RefundProcessed:
		outcome, err = s.handleRefund(ctx, e.Data)
	case TransferSuccess, TransferFailed:
		s.logg.Info(ctx, "transfer event received; no reconciliation required")
		outcome = Outcome{Skipped: SkipIgnored}
	case Unrecognized:
		if e.Reason != "" {
			ctx = s.logg.WithField(ctx, "reason", e.Reason)
			s.logg.Warn(ctx, "paystack event payload rejected")
			outcome = Outcome{Skipped: SkipInvalidPayload}
		} else {
			s.logg.Info(ctx, "unhandled paystack event")
			outcome = Outcome{Skipped: SkipIgnored}
		}
	}
	outcome.Kind = event.Name()
	s.metrics.ObserveEvent(event.Name(), metricOutcome(outcome, err), time.Since(started))
	return outcome, err
}

func metricOutcome(outcome Outcome, err error) string {
	switch {
	case err != nil:
		return outcomeFailed
	case outcome.Skipped != "":
		return outcome.Skipped
	case outcome.Duplicate:
		return outcomeDuplicate
	default:
		return outcomeProcessed
	}
}

func (s *Service) handleChargeSuccess(ctx context.Context, data ChargeData) (Outcome, error) {
	ctx = s.logg.WithReference(ctx, data.Reference)
	ctx = s.logg.WithCustomer(ctx, firstNonEmpty(data.Customer.Email))
	order, outcome, err := s.resolveOrder(ctx, data)
	if order == nil {
		return outcome, err
	}

	input := chargeInput(order, data, enums.TransactionKindChargeSuccess, enums.TransactionStatusSuccess)
	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		outcome = Outcome{}
		result, err := s.ledger.WithTx(tx).Record(ctx, input)
		if err != nil {
			return err
		}
		outcome.Recorded = result.Inserted
		outcome.Duplicate = !result.Inserted

		moved, err := s.orders.WithTx(tx).TransitionStatus(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusConfirmed)
		if err != nil {
			return err
		}
		outcome.Transitioned = moved
		if !moved {
			s.logg.Info(ctx, "order already confirmed")
			return nil
		}

		paidAt := time.Now().UTC()
		if result.Transaction.PaidAt != nil {
			paidAt = *result.Transaction.PaidAt
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Source:        eventSource,
			OccurredAt:    paidAt,
			Data: payloads.OrderPaidEvent{
				OrderID:              order.ID,
				OrderNumber:          order.OrderNumber,
				PaymentReference:     order.PaymentReference,
				GatewayTransactionID: data.ID,
				Amount:               money.Format(result.Transaction.Amount),
				AmountMinor:          int64(data.Amount),
				Currency:             string(result.Transaction.Currency),
				Channel:              data.Channel,
				CustomerEmail:        order.CustomerEmail,
				Status:               enums.OrderStatusConfirmed,
				PaidAt:               paidAt,
			},
		})
	})
	if err != nil {
		return Outcome{}, processingError(err, EventChargeSuccess, data.Reference, data.ID)
	}
	s.logg.Info(ctx, fmt.Sprintf("charge %d reconciled (recorded=%t transitioned=%t)", data.ID, outcome.Recorded, outcome.Transitioned))
	return outcome, nil
}

func (s *Service) handleChargeFailed(ctx context.Context, data ChargeData) (Outcome, error) {
	ctx = s.logg.WithReference(ctx, data.Reference)
	order, outcome, err := s.resolveOrder(ctx, data)
	if order == nil {
		return outcome, err
	}

	input := chargeInput(order, data, enums.TransactionKindChargeFailed, enums.TransactionStatusFailed)
	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		outcome = Outcome{}
		result, err := s.ledger.WithTx(tx).Record(ctx, input)
		if err != nil {
			return err
		}
		outcome.Recorded = result.Inserted
		outcome.Duplicate = !result.Inserted

		moved, err := s.orders.WithTx(tx).TransitionStatus(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusCancelled)
		if err != nil {
			return err
		}
		outcome.Transitioned = moved
		if !moved {
			s.logg.Info(ctx, "order not pending; failed charge leaves status unchanged")
			return nil
		}

		failedAt := time.Now().UTC()
		if result.Transaction.FailedAt != nil {
			failedAt = *result.Transaction.FailedAt
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPaymentFailed,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Source:        eventSource,
			OccurredAt:    failedAt,
			Data: payloads.OrderPaymentFailedEvent{
				OrderID:              order.ID,
				OrderNumber:          order.OrderNumber,
				PaymentReference:     order.PaymentReference,
				GatewayTransactionID: data.ID,
				GatewayResponse:      firstNonEmpty(data.GatewayResponse, data.Message),
				CustomerEmail:        order.CustomerEmail,
				Status:               enums.OrderStatusCancelled,
				FailedAt:             failedAt,
			},
		})
	})
	if err != nil {
		return Outcome{}, processingError(err, EventChargeFailed, data.Reference, data.ID)
	}
	s.logg.Info(ctx, fmt.Sprintf("failed charge %d reconciled (recorded=%t transitioned=%t)", data.ID, outcome.Recorded, outcome.Transitioned))
	return outcome, nil
}

func (s *Service) handleRefund(ctx context.Context, data RefundData) (Outcome, error) {
	ctx = s.logg.WithFields(ctx, map[string]any{
		"refund_id":               data.ID,
		"original_transaction_id": data.Transaction.ID,
	})
	if data.Transaction.Reference != "" {
		ctx = s.logg.WithReference(ctx, data.Transaction.Reference)
	}

	original, err := s.resolver.ResolveChargeTransaction(ctx, data.Transaction.ID)
	if err != nil {
		if errors.Is(err, ErrTransactionNotFound) {
			return s.consistencyViolation(ctx, SkipChargeNotFound, "refund references an unknown charge", err), nil
		}
		return Outcome{}, processingError(err, EventRefundProcessed, data.Transaction.Reference, data.ID)
	}

	input := refundInput(original, data)
	var outcome Outcome
	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		outcome = Outcome{}
		ledgerTx := s.ledger.WithTx(tx)
		result, err := ledgerTx.Record(ctx, input)
		if err != nil {
			return err
		}
		outcome.Recorded = result.Inserted
		outcome.Duplicate = !result.Inserted

		// A redelivered refund must not move the charge row again.
		chargeStatus := original.Status
		if result.Inserted {
			chargeStatus, err = ledgerTx.SettleRefund(ctx, original, int64(data.Amount))
			if err != nil {
				return err
			}
		}
		full := chargeStatus == enums.TransactionStatusRefunded
		if full {
			moved, err := s.orders.WithTx(tx).TransitionStatus(ctx, original.OrderID, enums.OrderStatusConfirmed, enums.OrderStatusRefunded)
			if err != nil {
				return err
			}
			outcome.Transitioned = moved
		}
		if !result.Inserted {
			return nil
		}

		refundedAt := time.Now().UTC()
		if result.Transaction.RefundedAt != nil {
			refundedAt = *result.Transaction.RefundedAt
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderRefunded,
			AggregateType: enums.AggregateOrder,
			AggregateID:   original.OrderID,
			Source:        eventSource,
			OccurredAt:    refundedAt,
			Data: payloads.OrderRefundedEvent{
				OrderID:               original.OrderID,
				PaymentReference:      original.PaymentReference,
				RefundID:              data.ID,
				OriginalTransactionID: original.GatewayTransactionID,
				Amount:                money.Format(result.Transaction.Amount),
				AmountMinor:           int64(data.Amount),
				Currency:              string(result.Transaction.Currency),
				Full:                  full,
				ChargeStatus:          chargeStatus,
				RefundedAt:            refundedAt,
			},
		})
	})
	if err != nil {
		return Outcome{}, processingError(err, EventRefundProcessed, original.PaymentReference, data.ID)
	}
	s.logg.Info(ctx, fmt.Sprintf("refund %d reconciled (recorded=%t transitioned=%t)", data.ID, outcome.Recorded, outcome.Transitioned))
	return outcome, nil
}

// resolveOrder returns a nil order when the caller should stop; outcome and
// err then carry the result.
func (s *Service) resolveOrder(ctx context.Context, data ChargeData) (*models.Order, Outcome, error) {
	order, err := s.resolver.ResolveOrder(ctx, data.Reference)
	if err == nil {
		return order, Outcome{}, nil
	}
	if errors.Is(err, ErrOrderNotFound) {
		return nil, s.consistencyViolation(ctx, SkipOrderNotFound, "no order matches payment reference", err), nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return nil, Outcome{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "order resolution interrupted")
	}
	return nil, Outcome{}, processingError(err, "resolve order", data.Reference, data.ID)
}

func (s *Service) consistencyViolation(ctx context.Context, reason, msg string, err error) Outcome {
	s.logg.Critical(s.logg.WithField(ctx, "violation", reason), msg, err)
	s.metrics.IncConsistencyViolation(reason)
	return Outcome{Skipped: reason}
}

func processingError(err error, kind, reference string, gatewayID int64) error {
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err,
		fmt.Sprintf("%s failed for reference %q (gateway id %d)", kind, reference, gatewayID))
}

func chargeInput(order *models.Order, data ChargeData, kind enums.TransactionKind, status enums.TransactionStatus) ledger.RecordTransactionInput {
	occurredAt := data.PaidAt
	if status == enums.TransactionStatusFailed {
		occurredAt = data.CreatedAt
	}
	return ledger.RecordTransactionInput{
		OrderID:              order.ID,
		GatewayTransactionID: data.ID,
		Kind:                 kind,
		Status:               status,
		PaymentReference:     data.Reference,
		AmountMinor:          int64(data.Amount),
		FeesMinor:            int64(data.Fees),
		Currency:             data.Currency,
		Instrument: ledger.Instrument{
			Channel:  data.Channel,
			CardType: data.Authorization.CardType,
			Bank:     data.Authorization.Bank,
			Last4:    data.Authorization.Last4,
		},
		Customer: ledger.Customer{
			Email: data.Customer.Email,
			Phone: data.Customer.Phone,
			Name:  data.Customer.FullName(),
		},
		FeesBreakdown:   data.FeesBreakdown,
		Metadata:        data.Metadata,
		GatewayResponse: firstNonNil(data.GatewayResponse, data.Message),
		IPAddress:       data.IPAddress,
		OccurredAt:      occurredAt,
	}
}

// refundInput builds the refund ledger row. The instrument and customer are
// copied from the original charge, not from the refund payload.
func refundInput(original *models.Transaction, data RefundData) ledger.RecordTransactionInput {
	currency := data.Currency
	if currency == "" {
		currency = string(original.Currency)
	}
	metadata, _ := json.Marshal(map[string]any{
		"original_transaction_id": original.GatewayTransactionID,
		"original_reference":      original.PaymentReference,
		"refund_status":           data.Status,
	})
	return ledger.RecordTransactionInput{
		OrderID:              original.OrderID,
		GatewayTransactionID: data.ID,
		Kind:                 enums.TransactionKindRefund,
		Status:               enums.TransactionStatusRefunded,
		PaymentReference:     "refund_" + strconv.FormatInt(data.ID, 10),
		AmountMinor:          int64(data.Amount),
		Currency:             currency,
		Instrument: ledger.Instrument{
			Channel:  string(original.Channel),
			CardType: original.CardType,
			Bank:     original.Bank,
			Last4:    original.Last4,
		},
		Customer: ledger.Customer{
			Email: original.CustomerEmail,
			Phone: original.CustomerPhone,
			Name:  original.CustomerName,
		},
		Metadata:   metadata,
		OccurredAt: data.RefundedAt,
	}
}

func firstNonNil(values ...*string) *string {
	for _, v := range values {
		if v != nil && *v != "" {
			return v
		}
	}
	return nil
}

func firstNonEmpty(values ...*string) string {
	if v := firstNonNil(values...); v != nil {
		return *v
	}
	return ""
}
