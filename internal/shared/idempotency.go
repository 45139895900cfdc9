package shared

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aqualedger/aqualedger/internal/platform/db"
	"github.com/aqualedger/aqualedger/internal/platform/httpx"
)

// IdempotencyStore persists processed keys.
type IdempotencyStore struct {
	exec db.Executor
	now  func() time.Time
}

// NewIdempotencyStore constructs the store.
func NewIdempotencyStore(exec db.Executor) *IdempotencyStore {
	return &IdempotencyStore{exec: exec, now: time.Now}
}

// ErrIdempotencyConflict indicates a duplicate key.
var ErrIdempotencyConflict = fmt.Errorf("idempotent request already processed: %w", httpx.ErrDuplicate)

// CheckAndInsert ensures key uniqueness per module and business.
func (s *IdempotencyStore) CheckAndInsert(ctx context.Context, businessID int64, key, module string) error {
	if s == nil {
		return errors.New("idempotency store not initialised")
	}
	if key == "" {
		return errors.New("idempotency key required")
	}
	if module == "" {
		return errors.New("idempotency module required")
	}
	_, err := s.exec.Exec(ctx, `INSERT INTO idempotency_keys (business_id, key, module, created_at) VALUES ($1, $2, $3, $4)`, businessID, key, module, s.now())
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrIdempotencyConflict
		}
		return err
	}
	return nil
}

// Cleanup removes entries older than retention.
func (s *IdempotencyStore) Cleanup(ctx context.Context, olderThan time.Duration) error {
	if s == nil {
		return nil
	}
	cutoff := s.now().Add(-olderThan)
	_, err := s.exec.Exec(ctx, `DELETE FROM idempotency_keys WHERE created_at < $1`, cutoff)
	return err
}

// Delete removes a key, typically used to roll back failed processing.
func (s *IdempotencyStore) Delete(ctx context.Context, businessID int64, key, module string) error {
	if s == nil {
		return nil
	}
	if key == "" {
		return errors.New("idempotency key required")
	}
	_, err := s.exec.Exec(ctx, `DELETE FROM idempotency_keys WHERE business_id = $1 AND key = $2 AND module = $3`, businessID, key, module)
	return err
}
