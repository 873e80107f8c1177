package ledger

import (
	"context"
	"testing"

	"github.com/angelmondragon/aurelia-backend/pkg/db/dbtest"
	"github.com/angelmondragon/aurelia-backend/pkg/db/models"
	"github.com/angelmondragon/aurelia-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCharge(orderID uuid.UUID, gatewayID int64) *models.Transaction {
	return &models.Transaction{
		OrderID:              orderID,
		GatewayTransactionID: gatewayID,
		Kind:                 enums.TransactionKindChargeSuccess,
		PaymentReference:     "ref_ABC",
		Amount:               decimal.RequireFromString("1500.00"),
		AmountInKobo:         150000,
		Currency:             enums.CurrencyNGN,
		Status:               enums.TransactionStatusSuccess,
		Channel:              enums.PaymentChannelCard,
	}
}

func TestRepositoryInsert_dedupesOnGatewayIDAndKind(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()
	orderID := uuid.New()

	inserted, err := repo.Insert(ctx, newCharge(orderID, 9001))
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = repo.Insert(ctx, newCharge(orderID, 9001))
	require.NoError(t, err)
	assert.False(t, inserted, "redelivered charge must not create a second row")

	refund := newCharge(orderID, 9001)
	refund.Kind = enums.TransactionKindRefund
	refund.PaymentReference = "refund_9001"
	inserted, err = repo.Insert(ctx, refund)
	require.NoError(t, err)
	assert.True(t, inserted, "a different kind for the same gateway id is a new row")

	rows, err := repo.ListByOrderID(ctx, orderID)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestRepositoryFindByGatewayID(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()

	_, err := repo.Insert(ctx, newCharge(uuid.New(), 42))
	require.NoError(t, err)

	found, err := repo.FindByGatewayID(ctx, 42, enums.TransactionKindChargeSuccess)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, int64(150000), found.AmountInKobo)
	assert.Equal(t, "1500.00", found.Amount.StringFixed(2))

	missing, err := repo.FindByGatewayID(ctx, 42, enums.TransactionKindRefund)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRepositoryUpdateStatus_setsRefundedAt(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()

	charge := newCharge(uuid.New(), 7)
	_, err := repo.Insert(ctx, charge)
	require.NoError(t, err)

	require.NoError(t, repo.UpdateStatus(ctx, charge.ID, enums.TransactionStatusPartiallyRefunded))

	found, err := repo.FindByGatewayID(ctx, 7, enums.TransactionKindChargeSuccess)
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionStatusPartiallyRefunded, found.Status)
	assert.NotNil(t, found.RefundedAt)
}
