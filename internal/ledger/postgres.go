package ledger

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/aqualedger/aqualedger/internal/platform/db"
)

// PGStore is the customers-table implementation of Store.
type PGStore struct {
	exec db.Executor
}

// NewPGStore binds the store to an executor, normally a pgx.Tx.
func NewPGStore(exec db.Executor) *PGStore {
	return &PGStore{exec: exec}
}

// AddPendingJugs implements Store.
func (s *PGStore) AddPendingJugs(ctx context.Context, businessID, customerID int64, delta int) error {
	tag, err := s.exec.Exec(ctx,
		`UPDATE customers SET pending_jugs = pending_jugs + $1, updated_at = NOW() WHERE id = $2 AND business_id = $3`,
		delta, customerID, businessID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCustomerNotFound
	}
	return nil
}

// ReduceOutstanding implements Store.
func (s *PGStore) ReduceOutstanding(ctx context.Context, businessID, customerID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	return s.updateOutstanding(ctx,
		`UPDATE customers SET outstanding = GREATEST(outstanding - $1::numeric, 0), updated_at = NOW()
		 WHERE id = $2 AND business_id = $3 RETURNING outstanding`,
		businessID, customerID, amount)
}

// IncreaseOutstanding implements Store.
func (s *PGStore) IncreaseOutstanding(ctx context.Context, businessID, customerID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	return s.updateOutstanding(ctx,
		`UPDATE customers SET outstanding = outstanding + $1::numeric, updated_at = NOW()
		 WHERE id = $2 AND business_id = $3 RETURNING outstanding`,
		businessID, customerID, amount)
}

func (s *PGStore) updateOutstanding(ctx context.Context, query string, businessID, customerID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	var outstanding decimal.Decimal
	err := s.exec.QueryRow(ctx, query, amount, customerID, businessID).Scan(&outstanding)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, ErrCustomerNotFound
		}
		return decimal.Zero, err
	}
	return outstanding, nil
}
