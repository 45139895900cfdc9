package delivery

import (
	"fmt"

	"github.com/aqualedger/aqualedger/internal/platform/httpx"
)

// Domain errors for deliveries.
var (
	ErrNotFound         = fmt.Errorf("delivery %w", httpx.ErrNotFound)
	ErrCustomerNotFound = fmt.Errorf("customer %w", httpx.ErrNotFound)

	// Validation errors.
	ErrNegativeQuantity     = fmt.Errorf("jug counts must not be negative: %w", httpx.ErrValidation)
	ErrSpotNeedsJugs        = fmt.Errorf("spot supply needs at least one jug out: %w", httpx.ErrValidation)
	ErrInvalidPaymentStatus = fmt.Errorf("unknown payment status: %w", httpx.ErrValidation)
	ErrNegativeRate         = fmt.Errorf("rate must not be negative: %w", httpx.ErrValidation)
	ErrUnknownDeliveryBoy   = fmt.Errorf("delivery boy is not an active member of this business: %w", httpx.ErrValidation)
)
