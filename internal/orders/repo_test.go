package orders

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

func newOrder(reference string) *models.Order {
	return &models.Order{
		OrderNumber:      "AUR-" + uuid.NewString()[:8],
		Subtotal:         decimal.RequireFromString("1450.00"),
		DeliveryFee:      decimal.RequireFromString("50.00"),
		Total:            decimal.RequireFromString("1500.00"),
		Currency:         enums.CurrencyNGN,
		PaymentReference: reference,
		CustomerEmail:    "ada@example.com",
	}
}

func TestRepositoryCreateAndFindByPaymentReference(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	ctx := context.Background()

	created, err := repo.Create(ctx, newOrder("ref_ABC"))
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, enums.OrderStatusPending, created.Status)

	found, err := repo.FindByPaymentReference(ctx, "ref_ABC")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, "1500.00", found.Total.StringFixed(2))

	byID, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "ref_ABC", byID.PaymentReference)
}

func TestRepositoryFindByPaymentReference_missReturnsNil(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))

	found, err := repo.FindByPaymentReference(context.Background(), "ref_missing")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestRepositoryCreate_rejectsDuplicateReference(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()

	_, err := repo.Create(ctx, newOrder("ref_DUP"))
	require.NoError(t, err)
	_, err = repo.Create(ctx, newOrder("ref_DUP"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateOrder)
}

func TestRepositoryTransitionStatus_guarded(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order, err := repo.Create(ctx, newOrder("ref_GUARD"))
	require.NoError(t, err)

	changed, err := repo.TransitionStatus(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusConfirmed)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.TransitionStatus(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusCancelled)
	require.NoError(t, err)
	assert.False(t, changed, "cancel must not apply to a confirmed order")

	current, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusConfirmed, current.Status)
}

func TestRepositoryWithTx_rollsBack(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	ctx := context.Background()

	tx := db.Begin()
	_, err := repo.WithTx(tx).Create(ctx, newOrder("ref_TX"))
	require.NoError(t, err)
	require.NoError(t, tx.Rollback().Error)

	found, err := repo.FindByPaymentReference(ctx, "ref_TX")
	require.NoError(t, err)
	assert.Nil(t, found)
}
