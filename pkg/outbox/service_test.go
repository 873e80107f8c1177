package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/angelmondragon/aurelia-backend/pkg/db/dbtest"
	"github.com/angelmondragon/aurelia-backend/pkg/db/models"
	"github.com/angelmondragon/aurelia-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestServiceEmitWritesEnvelopeInTransaction(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	svc := NewService(repo, nil)
	orderID := uuid.New()

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Source:        "paystack",
			Data:          map[string]any{"payment_reference": "ref_ABC"},
		})
	})
	require.NoError(t, err)

	var rows []models.OutboxEvent
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, orderID, rows[0].AggregateID)
	assert.Nil(t, rows[0].PublishedAt)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &envelope))
	assert.Equal(t, 1, envelope.Version)
	assert.Equal(t, "paystack", envelope.Source)
	assert.NotEmpty(t, envelope.EventID)
	assert.JSONEq(t, `{"payment_reference":"ref_ABC"}`, string(envelope.Data))
}

func TestServiceEmitRollsBackWithTransaction(t *testing.T) {
	db := dbtest.Open(t)
	svc := NewService(NewRepository(db), nil)

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventOrderPaymentFailed,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Data:          map[string]any{},
		}); err != nil {
			return err
		}
		return errors.New("abort")
	})
	require.Error(t, err)

	var count int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestServiceEmitValidation(t *testing.T) {
	svc := NewService(NewRepository(nil), nil)
	err := svc.Emit(context.Background(), nil, DomainEvent{EventType: enums.EventOrderPaid})
	assert.Error(t, err, "transaction is required")

	db := dbtest.Open(t)
	err = svc.Emit(context.Background(), db, DomainEvent{EventType: "order_shipped"})
	assert.Error(t, err, "unknown event types are rejected")
}

func TestRepositoryPublishLifecycle(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	svc := NewService(repo, nil)

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Emit(context.Background(), db, DomainEvent{
			EventType:     enums.EventOrderRefunded,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Data:          map[string]any{"i": i},
		}))
	}

	rows, err := repo.FetchUnpublishedForPublish(db, 10, 3)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	require.NoError(t, repo.MarkPublishedTx(db, rows[0].ID))
	require.NoError(t, repo.MarkFailedTx(db, rows[1].ID, errors.New("deadline exceeded")))
	require.NoError(t, repo.MarkTerminalTx(db, rows[2].ID, errors.New("bad payload"), 3))

	pending, err := repo.FetchUnpublishedForPublish(db, 10, 3)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, rows[1].ID, pending[0].ID)
	assert.Equal(t, 1, pending[0].AttemptCount)
	require.NotNil(t, pending[0].LastError)
	assert.Equal(t, "deadline exceeded", *pending[0].LastError)

	count, err := repo.CountPending(3)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
