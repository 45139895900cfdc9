package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// GenerateRequest asks for a month to be (re)generated.
type GenerateRequest struct {
	Month int `json:"month" validate:"min=1,max=12"`
	Year  int `json:"year" validate:"min=2000,max=2100"`
}

// GenerateResult summarises a generation run.
type GenerateResult struct {
	Cycle       Cycle           `json:"cycle"`
	Created     bool            `json:"created"`
	Replaced    int64           `json:"replaced"`
	Invoices    int             `json:"invoices"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// AdjustRequest edits the mutable parts of an invoice.
type AdjustRequest struct {
	Discount          *decimal.Decimal `json:"discount"`
	AdditionalCharges *decimal.Decimal `json:"additional_charges"`
	Remarks           *string          `json:"remarks" validate:"omitempty,max=500"`
}

// SupplierHolidayRequest closes the business for an inclusive date range.
type SupplierHolidayRequest struct {
	StartDate string  `json:"start_date" validate:"required"`
	EndDate   string  `json:"end_date" validate:"required"`
	Reason    *string `json:"reason" validate:"omitempty,max=200"`
}

// ClientHolidayRequest records one skipped day for a customer.
type ClientHolidayRequest struct {
	CustomerID  int64   `json:"customer_id" validate:"gt=0"`
	HolidayDate string  `json:"holiday_date" validate:"required"`
	Reason      *string `json:"reason" validate:"omitempty,max=200"`
}

// HolidayFilter narrows holiday listings. A nil BusinessID is unscoped.
type HolidayFilter struct {
	BusinessID *int64
	CustomerID *int64
	From       *time.Time
	To         *time.Time
}

// InvoiceFilter narrows invoice listings. A nil BusinessID is unscoped.
type InvoiceFilter struct {
	BusinessID *int64
	CycleID    int64
	CustomerID *int64
}
