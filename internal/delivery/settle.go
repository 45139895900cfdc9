package delivery

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/aqualedger/aqualedger/internal/ledger"
)

// Settlement is the money side of a confirmed delivery.
type Settlement struct {
	Amount      *decimal.Decimal
	Outstanding *decimal.Decimal
}

// Settle applies a delivery's ledger effects inside the caller's transaction:
// jugDelta on pending jugs for customer deliveries, then reconciles the single
// payment of rate × jugs_out against whatever an earlier confirmation of the
// same delivery recorded. Only the difference touches the outstanding balance.
func Settle(ctx context.Context, tx TxRepository, d Delivery, jugDelta int, rate decimal.Decimal) (Settlement, error) {
	var out Settlement
	if d.CustomerID != nil {
		if err := ledger.AdjustPendingJugs(ctx, tx.Ledger(), d.BusinessID, *d.CustomerID, jugDelta); err != nil {
			return out, err
		}
	}

	want := decimal.Zero
	if d.PaymentStatus.Collected() && rate.IsPositive() && d.JugsOut > 0 {
		want = rate.Mul(decimal.NewFromInt(int64(d.JugsOut)))
	}
	prev, err := tx.PaymentForDelivery(ctx, d.BusinessID, d.ID)
	if err != nil {
		return out, fmt.Errorf("load payment: %w", err)
	}

	had := decimal.Zero
	switch {
	case prev == nil && want.IsZero():
		return out, nil
	case prev == nil:
		deliveryID := d.ID
		if _, err := tx.InsertPayment(ctx, Payment{
			BusinessID: d.BusinessID,
			CustomerID: d.CustomerID,
			DeliveryID: &deliveryID,
			Amount:     want,
			Method:     d.PaymentStatus,
			Reference:  uuid.NewString(),
		}); err != nil {
			return out, fmt.Errorf("insert payment: %w", err)
		}
	case want.IsZero():
		had = prev.Amount
		if err := tx.DeletePayment(ctx, d.BusinessID, prev.ID); err != nil {
			return out, fmt.Errorf("delete payment: %w", err)
		}
	default:
		had = prev.Amount
		if !prev.Amount.Equal(want) || prev.Method != d.PaymentStatus {
			prev.Amount, prev.Method = want, d.PaymentStatus
			if err := tx.UpdatePayment(ctx, *prev); err != nil {
				return out, fmt.Errorf("update payment: %w", err)
			}
		}
	}
	if !want.IsZero() {
		amount := want
		out.Amount = &amount
	}
	if d.CustomerID == nil {
		return out, nil
	}

	var outstanding decimal.Decimal
	switch diff := want.Sub(had); {
	case diff.IsPositive():
		outstanding, err = ledger.ApplyPayment(ctx, tx.Ledger(), d.BusinessID, *d.CustomerID, diff)
	case diff.IsNegative():
		outstanding, err = ledger.AddCharge(ctx, tx.Ledger(), d.BusinessID, *d.CustomerID, diff.Neg())
	default:
		return out, nil
	}
	if err != nil {
		return out, err
	}
	out.Outstanding = &outstanding
	return out, nil
}
