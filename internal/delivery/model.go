// Package delivery records single jug drop-offs, ad hoc or route bound, and
// settles their ledger effects.
package delivery

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus records whether and how money changed hands at the door.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "Pending"
	PaymentCash     PaymentStatus = "Cash"
	PaymentUPI      PaymentStatus = "UPI"
	PaymentReceived PaymentStatus = "Received"
)

// IsValid checks if the status is valid.
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentPending, PaymentCash, PaymentUPI, PaymentReceived:
		return true
	default:
		return false
	}
}

// Collected reports whether money was taken.
func (s PaymentStatus) Collected() bool {
	return s.IsValid() && s != PaymentPending
}

// Delivery is one drop-off event. Corrections update the same row.
type Delivery struct {
	ID            int64               `json:"id"`
	BusinessID    int64               `json:"business_id"`
	CustomerID    *int64              `json:"customer_id,omitempty"`
	DeliveryBoyID int64               `json:"delivery_boy_id"`
	DeliveryDate  time.Time           `json:"delivery_date"`
	JugsOut       int                 `json:"jugs_out"`
	EmptyIn       int                 `json:"empty_in"`
	PaymentStatus PaymentStatus       `json:"payment_status"`
	Notes         *string             `json:"notes,omitempty"`
	BuyerName     *string             `json:"buyer_name,omitempty"`
	SpotRate      decimal.NullDecimal `json:"spot_rate"`
	RouteID       *int64              `json:"route_id,omitempty"`
	RouteStopID   *int64              `json:"route_stop_id,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// Net is jugs left with the customer by this event.
func (d Delivery) Net() int {
	return d.JugsOut - d.EmptyIn
}

// IsSpot reports whether this was a walk-up sale with no customer account.
func (d Delivery) IsSpot() bool {
	return d.CustomerID == nil
}

// Payment is money received, optionally tied to one delivery.
type Payment struct {
	ID         int64           `json:"id"`
	BusinessID int64           `json:"business_id"`
	CustomerID *int64          `json:"customer_id,omitempty"`
	DeliveryID *int64          `json:"delivery_id,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	Method     PaymentStatus   `json:"method"`
	Reference  string          `json:"reference"`
	ReceivedAt time.Time       `json:"received_at"`
	Notes      *string         `json:"notes,omitempty"`
}

// Customer is the slice of a customer row delivery logic needs.
type Customer struct {
	ID         int64
	BusinessID int64
	Name       string
	RatePerJug decimal.Decimal
	IsActive   bool
}

// WithCustomer joins the customer name for listings.
type WithCustomer struct {
	Delivery
	CustomerName *string `json:"customer_name,omitempty"`
}
