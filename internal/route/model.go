// Package route plans a delivery boy's day as an ordered list of customer
// stops and records each stop's confirmation against the ledger.
package route

import (
	"time"

	"github.com/aqualedger/aqualedger/internal/delivery"
)

// Status represents the lifecycle of a route.
type Status string

const (
	StatusDraft      Status = "draft"       // Being planned, can be edited
	StatusActive     Status = "active"      // Released to the delivery boy
	StatusInProgress Status = "in_progress" // At least one stop confirmed
	StatusCompleted  Status = "completed"   // Every stop confirmed
	StatusCancelled  Status = "cancelled"   // Abandoned before release
)

// IsValid checks if the status is valid.
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusActive, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// CanEdit checks if the route and its stops can be changed or deleted.
func (s Status) CanEdit() bool {
	return s == StatusDraft
}

// CanActivate checks if the route can be released.
func (s Status) CanActivate() bool {
	return s == StatusDraft
}

// CanCancel checks if the route can be cancelled.
func (s Status) CanCancel() bool {
	return s == StatusDraft
}

// CanConfirmStops checks if stops may be confirmed. Completed routes still
// accept corrections.
func (s Status) CanConfirmStops() bool {
	return s == StatusActive || s == StatusInProgress || s == StatusCompleted
}

// Route is one delivery boy's plan for one date.
type Route struct {
	ID            int64      `json:"id"`
	BusinessID    int64      `json:"business_id"`
	Name          string     `json:"name"`
	RouteDate     time.Time  `json:"route_date"`
	DeliveryBoyID int64      `json:"delivery_boy_id"`
	Status        Status     `json:"status"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	CreatedBy     int64      `json:"created_by"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	Stops         []Stop     `json:"stops,omitempty"`
}

// Stop is a planned visit to one customer.
type Stop struct {
	ID                  int64                  `json:"id"`
	RouteID             int64                  `json:"route_id"`
	CustomerID          int64                  `json:"customer_id"`
	CustomerName        string                 `json:"customer_name,omitempty"`
	SequenceOrder       int                    `json:"sequence_order"`
	ExpectedDeliveryQty int                    `json:"expected_delivery_qty"`
	ExpectedEmptyQty    int                    `json:"expected_empty_qty"`
	ActualDeliveryQty   *int                   `json:"actual_delivery_qty,omitempty"`
	ActualEmptyQty      *int                   `json:"actual_empty_qty,omitempty"`
	DeliveryVariance    *int                   `json:"delivery_variance,omitempty"`
	EmptyVariance       *int                   `json:"empty_variance,omitempty"`
	ConfirmedAt         *time.Time             `json:"confirmed_at,omitempty"`
	PaymentStatus       delivery.PaymentStatus `json:"payment_status"`
	Notes               *string                `json:"notes,omitempty"`
	DeliveryID          *int64                 `json:"delivery_id,omitempty"`
}

// Confirmed reports whether the stop has been confirmed at least once.
func (s Stop) Confirmed() bool {
	return s.ConfirmedAt != nil
}

// Summary is a list row with stop counts.
type Summary struct {
	Route
	TotalStops     int `json:"total_stops"`
	ConfirmedStops int `json:"confirmed_stops"`
}

// Transition is the route state change caused by a stop confirmation.
type Transition struct {
	Status      Status
	StartedAt   *time.Time
	CompletedAt *time.Time
	Changed     bool
}

// AfterConfirmation computes the route state once a stop confirmation has
// been persisted and unconfirmed stops remain.
func AfterConfirmation(r Route, unconfirmed int, now time.Time) Transition {
	t := Transition{Status: r.Status, StartedAt: r.StartedAt, CompletedAt: r.CompletedAt}
	if t.Status == StatusActive {
		t.Status = StatusInProgress
		t.Changed = true
	}
	if t.StartedAt == nil && t.Status == StatusInProgress {
		started := now
		t.StartedAt = &started
		t.Changed = true
	}
	if unconfirmed == 0 && t.Status == StatusInProgress {
		completed := now
		t.Status = StatusCompleted
		t.CompletedAt = &completed
		t.Changed = true
	}
	return t
}
