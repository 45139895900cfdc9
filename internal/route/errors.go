package route

import (
	"fmt"

	"github.com/aqualedger/aqualedger/internal/platform/httpx"
)

// Domain errors for routes.
var (
	// ErrNotFound indicates the requested route was not found.
	ErrNotFound = fmt.Errorf("route %w", httpx.ErrNotFound)
	// ErrStopNotFound indicates the stop does not belong to the route.
	ErrStopNotFound = fmt.Errorf("route stop %w", httpx.ErrNotFound)
	// ErrNotYourRoute covers both another agent's route and a route for a
	// different day.
	ErrNotYourRoute = fmt.Errorf("route is not assigned to you for today: %w", httpx.ErrForbidden)

	// Status transition errors.
	ErrCannotEdit        = fmt.Errorf("cannot edit route in current status: %w", httpx.ErrConflict)
	ErrCannotDelete      = fmt.Errorf("cannot delete route in current status: %w", httpx.ErrConflict)
	ErrCannotActivate    = fmt.Errorf("cannot activate route in current status: %w", httpx.ErrConflict)
	ErrCannotCancel      = fmt.Errorf("cannot cancel route in current status: %w", httpx.ErrConflict)
	ErrNotConfirmable    = fmt.Errorf("route is not open for stop confirmation: %w", httpx.ErrConflict)
	ErrNoStopsToActivate = fmt.Errorf("route needs at least one stop before activation: %w", httpx.ErrConflict)

	// Validation errors.
	ErrInvalidName        = fmt.Errorf("route name is required: %w", httpx.ErrValidation)
	ErrInvalidDate        = fmt.Errorf("route date must be YYYY-MM-DD: %w", httpx.ErrValidation)
	ErrInvalidStatus      = fmt.Errorf("target status must be active or cancelled: %w", httpx.ErrValidation)
	ErrNegativeQuantity   = fmt.Errorf("quantities must not be negative: %w", httpx.ErrValidation)
	ErrDuplicateCustomer  = fmt.Errorf("customer appears more than once on the route: %w", httpx.ErrValidation)
	ErrUnknownCustomer    = fmt.Errorf("stop customer does not belong to this business: %w", httpx.ErrValidation)
	ErrUnknownDeliveryBoy = fmt.Errorf("delivery boy does not belong to this business: %w", httpx.ErrValidation)
)
