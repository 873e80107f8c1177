package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/aurelia-backend/pkg/db/models"
	"github.com/angelmondragon/aurelia-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository manages persistence for the transaction ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	// Insert appends a ledger row. It reports false without error when a row
	// with the same gateway transaction id and kind already exists.
	Insert(ctx context.Context, txn *models.Transaction) (bool, error)
	// FindByGatewayID returns (nil, nil) when no row matches.
	FindByGatewayID(ctx context.Context, gatewayID int64, kind enums.TransactionKind) (*models.Transaction, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.TransactionStatus) error
	ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.Transaction, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Insert(ctx context.Context, txn *models.Transaction) (bool, error) {
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "gateway_transaction_id"}, {Name: "kind"}},
			DoNothing: true,
		}).
		Create(txn)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) FindByGatewayID(ctx context.Context, gatewayID int64, kind enums.TransactionKind) (*models.Transaction, error) {
	var txn models.Transaction
	err := r.db.WithContext(ctx).
		Where("gateway_transaction_id = ? AND kind = ?", gatewayID, kind).
		Take(&txn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.TransactionStatus) error {
	now := time.Now().UTC()
	updates := map[string]any{
		"status":     status,
		"updated_at": now,
	}
	if status == enums.TransactionStatusRefunded || status == enums.TransactionStatusPartiallyRefunded {
		updates["refunded_at"] = now
	}
	return r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.Transaction, error) {
	var txns []models.Transaction
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}
