package delivery

import (
	"time"

	"github.com/shopspring/decimal"
)

// ConfirmRequest is an ad hoc delivery to a known customer.
type ConfirmRequest struct {
	CustomerID    *int64        `json:"customer_id" validate:"omitempty,gt=0"`
	DeliveryBoyID *int64        `json:"delivery_boy_id" validate:"omitempty,gt=0"`
	DeliveryDate  *time.Time    `json:"delivery_date"`
	JugsOut       int           `json:"jugs_out" validate:"gte=0"`
	EmptyIn       int           `json:"empty_in" validate:"gte=0"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	Notes         *string       `json:"notes" validate:"omitempty,max=500"`
}

// SpotRequest is a walk-up sale with no customer account.
type SpotRequest struct {
	BuyerName     *string          `json:"buyer_name" validate:"omitempty,max=120"`
	JugsOut       int              `json:"jugs_out" validate:"gt=0"`
	Rate          *decimal.Decimal `json:"rate"`
	PaymentStatus PaymentStatus    `json:"payment_status"`
	Notes         *string          `json:"notes" validate:"omitempty,max=500"`
}

// ListRequest filters delivery listings. A nil BusinessID lists across
// businesses and is only built for super admins.
type ListRequest struct {
	BusinessID    *int64
	CustomerID    *int64
	DeliveryBoyID *int64
	RouteID       *int64
	From          *time.Time
	To            *time.Time
	Limit         int
	Offset        int
}

// View is a delivery with display labels.
type View struct {
	Delivery
	CustomerName     *string          `json:"customer_name,omitempty"`
	NetJugs          int              `json:"net_jugs"`
	NetLabel         string           `json:"net_label"`
	DateLabel        string           `json:"date_label"`
	RecordedLabel    string           `json:"recorded_label"`
	PaymentLabel     string           `json:"payment_label"`
	AmountCollected  *decimal.Decimal `json:"amount_collected,omitempty"`
	OutstandingAfter *decimal.Decimal `json:"outstanding_after,omitempty"`
}
