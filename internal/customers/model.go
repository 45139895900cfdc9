// Package customers exposes a customer's running balances and the manual
// payments and charges that move them.
package customers

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/aqualedger/aqualedger/internal/delivery"
)

// DefaultOverdueAfterDays is the number of days without a payment after
// which a balance counts as overdue.
const DefaultOverdueAfterDays = 30

// PaymentState summarises whether a customer owes money and for how long.
type PaymentState string

const (
	StateClear   PaymentState = "Clear"
	StateDue     PaymentState = "Due"
	StateOverdue PaymentState = "Overdue"
)

// Customer is a subscriber with cached balances.
type Customer struct {
	ID                       int64           `json:"id"`
	BusinessID               int64           `json:"business_id"`
	Name                     string          `json:"name"`
	Phone                    *string         `json:"phone,omitempty"`
	RatePerJug               decimal.Decimal `json:"rate_per_jug"`
	PendingJugs              int             `json:"pending_jugs"`
	Outstanding              decimal.Decimal `json:"outstanding"`
	HolidayBillingChargeable bool            `json:"holiday_billing_chargeable"`
	IsActive                 bool            `json:"is_active"`
	CreatedAt                time.Time       `json:"created_at"`
}

// Balance is the customer with payment status and display labels.
type Balance struct {
	Customer
	LastPaymentAt    *time.Time   `json:"last_payment_at,omitempty"`
	PaymentStatus    PaymentState `json:"payment_status"`
	DaysPending      int          `json:"days_pending"`
	OutstandingLabel string       `json:"outstanding_label"`
	PendingJugsLabel string       `json:"pending_jugs_label"`
	JoinedLabel      string       `json:"joined_label"`
}

// Charge is a manual debit such as an opening balance or a jug deposit.
type Charge struct {
	ID         int64           `json:"id"`
	BusinessID int64           `json:"business_id"`
	CustomerID int64           `json:"customer_id"`
	Amount     decimal.Decimal `json:"amount"`
	Reason     string          `json:"reason"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Receipt reports a balance change.
type Receipt struct {
	CustomerID  int64                  `json:"customer_id"`
	Amount      decimal.Decimal        `json:"amount"`
	Method      delivery.PaymentStatus `json:"method,omitempty"`
	Reference   string                 `json:"reference,omitempty"`
	Outstanding decimal.Decimal        `json:"outstanding"`
	Label       string                 `json:"label"`
}

// PaymentStatusFor classifies a balance. Days are counted from the last
// payment, or from joining when the customer never paid.
func PaymentStatusFor(outstanding decimal.Decimal, lastPayment *time.Time, joined, now time.Time, overdueAfter int) (PaymentState, int) {
	if !outstanding.IsPositive() {
		return StateClear, 0
	}
	since := joined
	if lastPayment != nil {
		since = *lastPayment
	}
	days := int(now.Sub(since).Hours() / 24)
	if days < 0 {
		days = 0
	}
	if days > overdueAfter {
		return StateOverdue, days
	}
	return StateDue, days
}
