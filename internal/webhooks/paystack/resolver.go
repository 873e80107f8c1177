package paystack

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/aurelia-backend/internal/ledger"
	"github.com/angelmondragon/aurelia-backend/internal/orders"
	"github.com/angelmondragon/aurelia-backend/pkg/db/models"
	"github.com/sethvargo/go-retry"
)

var (
	// ErrOrderNotFound means no order carries the payment reference after every attempt.
	ErrOrderNotFound = errors.New("order not found for payment reference")
	// ErrTransactionNotFound means a refund points at a charge the ledger never recorded.
	ErrTransactionNotFound = errors.New("original charge transaction not found")
)

// BackoffFactory builds a fresh backoff for each resolution.
type BackoffFactory func() retry.Backoff

// ConstantBackoff waits delay between attempts and stops after attempts total tries.
func ConstantBackoff(attempts int, delay time.Duration) BackoffFactory {
	if attempts < 1 {
		attempts = 1
	}
	return func() retry.Backoff {
		return retry.WithMaxRetries(uint64(attempts-1), retry.NewConstant(delay))
	}
}

// Resolver finds the local records a webhook refers to. Checkout may not have
// committed the order yet when the gateway calls back, so order lookups retry.
type Resolver struct {
	orders  orders.Repository
	charges ledger.Service
	backoff BackoffFactory
}

func NewResolver(orderRepo orders.Repository, charges ledger.Service, backoff BackoffFactory) (*Resolver, error) {
	if orderRepo == nil {
		return nil, errors.New("order repository required")
	}
	if charges == nil {
		return nil, errors.New("ledger service required")
	}
	if backoff == nil {
		backoff = ConstantBackoff(2, 2*time.Second)
	}
	return &Resolver{orders: orderRepo, charges: charges, backoff: backoff}, nil
}

// ResolveOrder looks the order up by exact payment reference, retrying misses.
// Store errors stop the retry loop and are returned as-is.
func (r *Resolver) ResolveOrder(ctx context.Context, reference string) (*models.Order, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, ErrOrderNotFound
	}
	var found *models.Order
	err := retry.Do(ctx, r.backoff(), func(ctx context.Context) error {
		order, err := r.orders.FindByPaymentReference(ctx, reference)
		if err != nil {
			return fmt.Errorf("find order by reference %s: %w", reference, err)
		}
		if order == nil {
			return retry.RetryableError(ErrOrderNotFound)
		}
		found = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// ResolveChargeTransaction loads the original charge_success row for a refund.
// The charge webhook always precedes a refund, so a miss is not retried.
func (r *Resolver) ResolveChargeTransaction(ctx context.Context, gatewayID int64) (*models.Transaction, error) {
	if gatewayID <= 0 {
		return nil, ErrTransactionNotFound
	}
	txn, err := r.charges.FindCharge(ctx, gatewayID)
	if err != nil {
		return nil, fmt.Errorf("find charge transaction %d: %w", gatewayID, err)
	}
	if txn == nil {
		return nil, ErrTransactionNotFound
	}
	return txn, nil
}
