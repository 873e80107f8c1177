package paystack

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/aurelia-backend/pkg/errors"
	"github.com/go-playground/validator/v10"
)

// Gateway event names this service reacts to.
const (
	EventChargeSuccess   = "charge.success"
	EventChargeFailed    = "charge.failed"
	EventRefundProcessed = "refund.processed"
	EventTransferSuccess = "transfer.success"
	EventTransferFailed  = "transfer.failed"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	return v
}

// Event is the closed set of classified webhook deliveries. The unexported
// marker keeps other packages from adding variants.
type Event interface {
	// Name is the raw gateway event name, e.g. "charge.success".
	Name() string
	isEvent()
}

type ChargeSuccess struct{ Data ChargeData }
type ChargeFailed struct{ Data ChargeData }
type RefundProcessed struct{ Data RefundData }
type TransferSuccess struct{ Data TransferData }
type TransferFailed struct{ Data TransferData }

// Unrecognized covers every event this service does not act on, plus known
// events whose payload failed shape validation (Reason is then set).
type Unrecognized struct {
	Event  string
	Reason string
}

func (ChargeSuccess) Name() string   { return EventChargeSuccess }
func (ChargeFailed) Name() string    { return EventChargeFailed }
func (RefundProcessed) Name() string { return EventRefundProcessed }
func (TransferSuccess) Name() string { return EventTransferSuccess }
func (TransferFailed) Name() string  { return EventTransferFailed }
func (u Unrecognized) Name() string  { return u.Event }

func (ChargeSuccess) isEvent()   {}
func (ChargeFailed) isEvent()    {}
func (RefundProcessed) isEvent() {}
func (TransferSuccess) isEvent() {}
func (TransferFailed) isEvent()  {}
func (Unrecognized) isEvent()    {}

// MinorAmount is an integer amount in the currency's minor unit. Paystack
// sends it as a JSON number, and occasionally as a numeric string.
type MinorAmount int64

func (m *MinorAmount) UnmarshalJSON(b []byte) error {
	raw := bytes.TrimSpace(b)
	if bytes.Equal(raw, []byte("null")) {
		*m = 0
		return nil
	}
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		raw = []byte(strings.TrimSpace(s))
		if len(raw) == 0 {
			*m = 0
			return nil
		}
	}
	v, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return fmt.Errorf("amount %s is not an integer: %w", string(b), err)
	}
	*m = MinorAmount(v)
	return nil
}

type Customer struct {
	Email     *string `json:"email"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Phone     *string `json:"phone"`
}

// FullName joins the first and last names, or returns nil when both are empty.
func (c Customer) FullName() *string {
	parts := make([]string, 0, 2)
	for _, p := range []*string{c.FirstName, c.LastName} {
		if p != nil && strings.TrimSpace(*p) != "" {
			parts = append(parts, strings.TrimSpace(*p))
		}
	}
	if len(parts) == 0 {
		return nil
	}
	name := strings.Join(parts, " ")
	return &name
}

type Authorization struct {
	CardType *string `json:"card_type"`
	Bank     *string `json:"bank"`
	Last4    *string `json:"last4"`
}

// ChargeData is the data object of charge.success and charge.failed.
type ChargeData struct {
	ID              int64           `json:"id" validate:"gt=0"`
	Reference       string          `json:"reference" validate:"required"`
	Amount          MinorAmount     `json:"amount" validate:"gte=0"`
	Currency        string          `json:"currency" validate:"required"`
	Status          string          `json:"status"`
	Channel         string          `json:"channel"`
	GatewayResponse *string         `json:"gateway_response"`
	Message         *string         `json:"message"`
	IPAddress       *string         `json:"ip_address"`
	Fees            MinorAmount     `json:"fees" validate:"gte=0"`
	FeesBreakdown   json.RawMessage `json:"fees_breakdown"`
	Metadata        json.RawMessage `json:"metadata"`
	PaidAt          *time.Time      `json:"paid_at"`
	CreatedAt       *time.Time      `json:"created_at"`
	Customer        Customer        `json:"customer"`
	Authorization   Authorization   `json:"authorization"`
}

// RefundTransaction points at the original charge being refunded.
type RefundTransaction struct {
	ID        int64  `json:"id" validate:"gt=0"`
	Reference string `json:"reference"`
}

// RefundData is the data object of refund.processed.
type RefundData struct {
	ID          int64             `json:"id" validate:"gt=0"`
	Amount      MinorAmount       `json:"amount" validate:"gt=0"`
	Currency    string            `json:"currency" validate:"required"`
	Status      string            `json:"status"`
	Transaction RefundTransaction `json:"transaction"`
	RefundedAt  *time.Time        `json:"refunded_at"`
	Customer    Customer          `json:"customer"`
}

// TransferData is kept minimal: transfers are logged, not reconciled.
type TransferData struct {
	ID        int64       `json:"id"`
	Reference string      `json:"reference"`
	Amount    MinorAmount `json:"amount"`
	Currency  string      `json:"currency"`
	Status    string      `json:"status"`
}

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Classify decodes a verified webhook body into exactly one Event variant.
// Only a body that is not a JSON object is an error; payload shape problems
// degrade to Unrecognized.
func Classify(raw []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "Invalid payload")
	}

	switch env.Event {
	case EventChargeSuccess:
		data, reason := decodeData[ChargeData](env.Data)
		if reason != "" {
			return Unrecognized{Event: env.Event, Reason: reason}, nil
		}
		return ChargeSuccess{Data: data}, nil
	case EventChargeFailed:
		data, reason := decodeData[ChargeData](env.Data)
		if reason != "" {
			return Unrecognized{Event: env.Event, Reason: reason}, nil
		}
		return ChargeFailed{Data: data}, nil
	case EventRefundProcessed:
		data, reason := decodeData[RefundData](env.Data)
		if reason != "" {
			return Unrecognized{Event: env.Event, Reason: reason}, nil
		}
		return RefundProcessed{Data: data}, nil
	case EventTransferSuccess:
		var data TransferData
		_ = json.Unmarshal(env.Data, &data)
		return TransferSuccess{Data: data}, nil
	case EventTransferFailed:
		var data TransferData
		_ = json.Unmarshal(env.Data, &data)
		return TransferFailed{Data: data}, nil
	default:
		return Unrecognized{Event: env.Event}, nil
	}
}

func decodeData[T any](raw json.RawMessage) (T, string) {
	var data T
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return data, "data payload missing"
	}
	if err := json.Unmarshal(trimmed, &data); err != nil {
		return data, fmt.Sprintf("decode data: %v", err)
	}
	if err := validate.Struct(data); err != nil {
		return data, validationReason(err)
	}
	return data, ""
}

func validationReason(err error) string {
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	fields := make([]string, 0, len(errs))
	for _, fe := range errs {
		fields = append(fields, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return "invalid data: " + strings.Join(fields, ", ")
}

// DeliveryID identifies a delivery for the idempotency guard. Events without
// a gateway id (Unrecognized, transfers without id) are not guarded.
func DeliveryID(event Event) (string, bool) {
	var id int64
	switch e := event.(type) {
	case ChargeSuccess:
		id = e.Data.ID
	case ChargeFailed:
		id = e.Data.ID
	case RefundProcessed:
		id = e.Data.ID
	case TransferSuccess:
		id = e.Data.ID
	case TransferFailed:
		id = e.Data.ID
	}
	if id <= 0 {
		return "", false
	}
	return fmt.Sprintf("%s:%d", event.Name(), id), true
}
