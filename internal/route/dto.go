package route

import (
	"time"

	"github.com/aqualedger/aqualedger/internal/delivery"
)

// CreateRequest plans a new draft route.
type CreateRequest struct {
	Name          string      `json:"name" validate:"required,max=120"`
	RouteDate     string      `json:"route_date" validate:"required"`
	DeliveryBoyID int64       `json:"delivery_boy_id" validate:"gt=0"`
	Stops         []StopInput `json:"stops" validate:"dive"`
}

// StopInput is one planned stop. Order in the request is visit order.
type StopInput struct {
	CustomerID          int64   `json:"customer_id" validate:"gt=0"`
	ExpectedDeliveryQty int     `json:"expected_delivery_qty" validate:"gte=0"`
	ExpectedEmptyQty    int     `json:"expected_empty_qty" validate:"gte=0"`
	Notes               *string `json:"notes" validate:"omitempty,max=500"`
}

// UpdateRequest edits a draft route. Stops, when present, replace all stops.
type UpdateRequest struct {
	Name          *string      `json:"name" validate:"omitempty,max=120"`
	RouteDate     *string      `json:"route_date"`
	DeliveryBoyID *int64       `json:"delivery_boy_id" validate:"omitempty,gt=0"`
	Stops         *[]StopInput `json:"stops"`
}

// StatusRequest moves a draft route to active or cancelled.
type StatusRequest struct {
	Status Status `json:"status" validate:"required"`
}

// ConfirmStopRequest carries what the agent actually delivered.
type ConfirmStopRequest struct {
	ActualDeliveryQty int                    `json:"actual_delivery_qty" validate:"gte=0"`
	ActualEmptyQty    int                    `json:"actual_empty_qty" validate:"gte=0"`
	PaymentStatus     delivery.PaymentStatus `json:"payment_status"`
	Notes             *string                `json:"notes" validate:"omitempty,max=500"`
}

// ConfirmStopResult reports the stop's final numbers.
type ConfirmStopResult struct {
	RouteID           int64         `json:"route_id"`
	StopID            int64         `json:"stop_id"`
	RouteStatus       Status        `json:"route_status"`
	ActualDeliveryQty int           `json:"actual_delivery_qty"`
	ActualEmptyQty    int           `json:"actual_empty_qty"`
	DeliveryVariance  int           `json:"delivery_variance"`
	EmptyVariance     int           `json:"empty_variance"`
	JugDelta          int           `json:"jug_delta"`
	Corrected         bool          `json:"corrected"`
	Delivery          delivery.View `json:"delivery"`
}

// ListRequest filters route listings. A nil BusinessID is unscoped.
type ListRequest struct {
	BusinessID    *int64
	Date          *time.Time
	Status        *Status
	DeliveryBoyID *int64
	Limit         int
	Offset        int
}
