package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// SupplierHolidayDays counts distinct days inside p covered by any of the
// ranges. Overlapping ranges count each day once.
func SupplierHolidayDays(p Period, holidays []SupplierHoliday) int {
	start, end := p.Start(), p.End()
	days := make(map[int]struct{})
	for _, h := range holidays {
		from, to := dayOf(h.StartDate), dayOf(h.EndDate)
		if from.Before(start) {
			from = start
		}
		if to.After(end) {
			to = end
		}
		for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
			days[d.Day()] = struct{}{}
		}
	}
	return len(days)
}

// ClientHolidayDays counts distinct dates inside p.
func ClientHolidayDays(p Period, dates []time.Time) int {
	start, end := p.Start(), p.End()
	days := make(map[int]struct{})
	for _, raw := range dates {
		d := dayOf(raw)
		if d.Before(start) || d.After(end) {
			continue
		}
		days[d.Day()] = struct{}{}
	}
	return len(days)
}

// ChargeableDays is days in month minus supplier holidays, minus client
// holidays unless the customer pays through them. Never negative.
func ChargeableDays(totalDays, supplierDays, clientDays int, chargeOnClientHolidays bool) int {
	n := totalDays - supplierDays
	if !chargeOnClientHolidays {
		n -= clientDays
	}
	if n < 0 {
		return 0
	}
	return n
}

// FinalAmount applies a post-generation adjustment.
func FinalAmount(total, discount, additional decimal.Decimal) decimal.Decimal {
	return total.Sub(discount).Add(additional)
}

// BuildInvoice computes a fresh invoice for c. It is a pure function of its
// inputs so regeneration is repeatable.
func BuildInvoice(cycle Cycle, p Period, c BillableCustomer, supplierDays, clientDays int) Invoice {
	total := p.Days()
	chargeable := ChargeableDays(total, supplierDays, clientDays, c.HolidayBillingChargeable)
	amount := c.RatePerJug.Mul(decimal.NewFromInt(int64(chargeable)))
	return Invoice{
		BillingCycleID:    cycle.ID,
		BusinessID:        cycle.BusinessID,
		CustomerID:        c.ID,
		CustomerName:      c.Name,
		TotalDays:         total,
		SupplierHolDays:   supplierDays,
		ClientHolDays:     clientDays,
		ChargeableDays:    chargeable,
		RatePerJug:        c.RatePerJug,
		TotalAmount:       amount,
		Discount:          decimal.Zero,
		AdditionalCharges: decimal.Zero,
		FinalAmount:       amount,
	}
}

func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
