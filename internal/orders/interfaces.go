package orders

import (
	"context"

	"github.com/angelmondragon/aurelia-backend/pkg/db/models"
	"github.com/angelmondragon/aurelia-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository defines persistence operations for storefront orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	// FindByPaymentReference returns (nil, nil) when no order owns the reference.
	FindByPaymentReference(ctx context.Context, reference string) (*models.Order, error)
	// TransitionStatus moves the order from -> to only if it is currently in
	// from, reporting whether a row changed.
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus) (bool, error)
}
