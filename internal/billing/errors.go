package billing

import (
	"fmt"

	"github.com/aqualedger/aqualedger/internal/platform/httpx"
)

// Domain errors for billing.
var (
	ErrCycleNotFound    = fmt.Errorf("billing cycle %w", httpx.ErrNotFound)
	ErrInvoiceNotFound  = fmt.Errorf("invoice %w", httpx.ErrNotFound)
	ErrCustomerNotFound = fmt.Errorf("customer %w", httpx.ErrNotFound)

	ErrInvalidPeriod    = fmt.Errorf("month must be 1-12 and year 2000-2100: %w", httpx.ErrValidation)
	ErrInvalidDate      = fmt.Errorf("dates must be YYYY-MM-DD: %w", httpx.ErrValidation)
	ErrInvalidRange     = fmt.Errorf("holiday end date is before start date: %w", httpx.ErrValidation)
	ErrNegativeAdjust   = fmt.Errorf("discount and additional charges must not be negative: %w", httpx.ErrValidation)
	ErrEmptyAdjustment  = fmt.Errorf("nothing to adjust: %w", httpx.ErrValidation)
	ErrDuplicateHoliday = fmt.Errorf("client holiday already recorded: %w", httpx.ErrDuplicate)
)
