package customers

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/aqualedger/aqualedger/internal/delivery"
	"github.com/aqualedger/aqualedger/internal/platform/httpx"
)

// Domain errors.
var (
	ErrNotFound          = fmt.Errorf("customer %w", httpx.ErrNotFound)
	ErrNonPositiveAmount = fmt.Errorf("amount must be greater than zero: %w", httpx.ErrValidation)
	ErrInvalidMethod     = fmt.Errorf("payment method must be Cash, UPI or Received: %w", httpx.ErrValidation)
)

// PaymentRequest records money received against the balance.
type PaymentRequest struct {
	Amount decimal.Decimal        `json:"amount"`
	Method delivery.PaymentStatus `json:"method" validate:"required"`
	Notes  *string                `json:"notes" validate:"omitempty,max=500"`
}

// ChargeRequest adds a manual debit to the balance.
type ChargeRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason" validate:"required,max=200"`
}

// ValidatePaymentRequest validates a balance payment.
func ValidatePaymentRequest(req PaymentRequest) error {
	if !req.Amount.IsPositive() {
		return ErrNonPositiveAmount
	}
	if !req.Method.Collected() {
		return ErrInvalidMethod
	}
	return httpx.Validate(req)
}

// ValidateChargeRequest validates a manual charge.
func ValidateChargeRequest(req ChargeRequest) error {
	if !req.Amount.IsPositive() {
		return ErrNonPositiveAmount
	}
	return httpx.Validate(req)
}
