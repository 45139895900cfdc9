// Package billing turns a month of deliveries-by-subscription into one
// invoice per active customer, net of supplier and client holidays.
package billing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Period is a billing month.
type Period struct {
	Month int `json:"month"`
	Year  int `json:"year"`
}

// Start returns the first day of the period in UTC.
func (p Period) Start() time.Time {
	return time.Date(p.Year, time.Month(p.Month), 1, 0, 0, 0, 0, time.UTC)
}

// End returns the last day of the period in UTC.
func (p Period) End() time.Time {
	return p.Start().AddDate(0, 1, -1)
}

// Days returns the number of calendar days in the period.
func (p Period) Days() int {
	return p.End().Day()
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

// PreviousPeriod returns the month before now in loc.
func PreviousPeriod(now time.Time, loc *time.Location) Period {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	prev := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc).AddDate(0, -1, 0)
	return Period{Month: int(prev.Month()), Year: prev.Year()}
}

// Cycle is the invoice batch for one business month.
type Cycle struct {
	ID          int64      `json:"id"`
	BusinessID  int64      `json:"business_id"`
	Month       int        `json:"cycle_month"`
	Year        int        `json:"cycle_year"`
	GeneratedAt *time.Time `json:"generated_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Period returns the cycle's month.
func (c Cycle) Period() Period {
	return Period{Month: c.Month, Year: c.Year}
}

// Invoice is one customer's bill for a cycle. Only Discount,
// AdditionalCharges and Remarks change after generation.
type Invoice struct {
	ID                int64           `json:"id"`
	BillingCycleID    int64           `json:"billing_cycle_id"`
	BusinessID        int64           `json:"business_id"`
	CustomerID        int64           `json:"customer_id"`
	CustomerName      string          `json:"customer_name,omitempty"`
	TotalDays         int             `json:"total_days"`
	SupplierHolDays   int             `json:"supplier_hol_days"`
	ClientHolDays     int             `json:"client_hol_days"`
	ChargeableDays    int             `json:"chargeable_days"`
	RatePerJug        decimal.Decimal `json:"rate_per_jug"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	Discount          decimal.Decimal `json:"discount"`
	AdditionalCharges decimal.Decimal `json:"additional_charges"`
	FinalAmount       decimal.Decimal `json:"final_amount"`
	Remarks           *string         `json:"remarks,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// BillableCustomer is the slice of a customer row the generator reads.
type BillableCustomer struct {
	ID                       int64
	Name                     string
	RatePerJug               decimal.Decimal
	HolidayBillingChargeable bool
}

// SupplierHoliday closes the business for an inclusive date range.
type SupplierHoliday struct {
	ID         int64     `json:"id"`
	BusinessID int64     `json:"business_id"`
	StartDate  time.Time `json:"start_date"`
	EndDate    time.Time `json:"end_date"`
	Reason     *string   `json:"reason,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ClientHoliday is a single day a customer asked to skip.
type ClientHoliday struct {
	ID          int64     `json:"id"`
	BusinessID  int64     `json:"business_id"`
	CustomerID  int64     `json:"customer_id"`
	HolidayDate time.Time `json:"holiday_date"`
	Reason      *string   `json:"reason,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
