// Package ledger applies the two running customer balances: jugs still held
// by the customer and money owed. Every call must run on the executor of the
// transaction that records the causing event.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/aqualedger/aqualedger/internal/platform/httpx"
)

var (
	// ErrCustomerNotFound is returned when no customer row matched the business scope.
	ErrCustomerNotFound = fmt.Errorf("ledger: customer %w", httpx.ErrNotFound)
	// ErrNegativeAmount rejects payments and charges below zero.
	ErrNegativeAmount = fmt.Errorf("ledger: amount must not be negative: %w", httpx.ErrValidation)
)

// Store mutates cached balances atomically at the row level.
type Store interface {
	AddPendingJugs(ctx context.Context, businessID, customerID int64, delta int) error
	// ReduceOutstanding subtracts amount, clamping at zero, and returns the new balance.
	ReduceOutstanding(ctx context.Context, businessID, customerID int64, amount decimal.Decimal) (decimal.Decimal, error)
	IncreaseOutstanding(ctx context.Context, businessID, customerID int64, amount decimal.Decimal) (decimal.Decimal, error)
}

// AdjustPendingJugs adds a signed delta to the customer's pending jugs.
// A zero delta touches nothing.
func AdjustPendingJugs(ctx context.Context, store Store, businessID, customerID int64, delta int) error {
	if delta == 0 {
		return nil
	}
	if err := store.AddPendingJugs(ctx, businessID, customerID, delta); err != nil {
		return fmt.Errorf("adjust pending jugs: %w", err)
	}
	return nil
}

// ApplyPayment reduces the outstanding balance, never below zero. Overpayment
// beyond the balance is not carried as credit.
func ApplyPayment(ctx context.Context, store Store, businessID, customerID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.IsNegative() {
		return decimal.Zero, ErrNegativeAmount
	}
	outstanding, err := store.ReduceOutstanding(ctx, businessID, customerID, amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("apply payment: %w", err)
	}
	return outstanding, nil
}

// AddCharge increases the outstanding balance.
func AddCharge(ctx context.Context, store Store, businessID, customerID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.IsNegative() {
		return decimal.Zero, ErrNegativeAmount
	}
	outstanding, err := store.IncreaseOutstanding(ctx, businessID, customerID, amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("add charge: %w", err)
	}
	return outstanding, nil
}

// IsNotFound reports whether err came from a missing customer.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCustomerNotFound)
}
