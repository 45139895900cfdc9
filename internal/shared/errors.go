package shared

import (
	"fmt"

	"github.com/aqualedger/aqualedger/internal/platform/httpx"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = fmt.Errorf("not found: %w", httpx.ErrNotFound)
	// ErrIdempotencyKeyTooLong rejects oversized Idempotency-Key headers.
	ErrIdempotencyKeyTooLong = fmt.Errorf("idempotency key longer than 128 characters: %w", httpx.ErrValidation)
)
