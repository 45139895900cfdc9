package delivery

import "github.com/aqualedger/aqualedger/internal/platform/httpx"

// ValidateConfirmRequest validates an ad hoc delivery.
func ValidateConfirmRequest(req *ConfirmRequest) error {
	if req.PaymentStatus == "" {
		req.PaymentStatus = PaymentPending
	}
	if err := httpx.Validate(req); err != nil {
		return err
	}
	if req.JugsOut < 0 || req.EmptyIn < 0 {
		return ErrNegativeQuantity
	}
	if !req.PaymentStatus.IsValid() {
		return ErrInvalidPaymentStatus
	}
	return nil
}

// ValidateSpotRequest validates a spot supply.
func ValidateSpotRequest(req *SpotRequest) error {
	if req.PaymentStatus == "" {
		req.PaymentStatus = PaymentPending
	}
	if req.JugsOut <= 0 {
		return ErrSpotNeedsJugs
	}
	if err := httpx.Validate(req); err != nil {
		return err
	}
	if !req.PaymentStatus.IsValid() {
		return ErrInvalidPaymentStatus
	}
	if req.Rate != nil && req.Rate.IsNegative() {
		return ErrNegativeRate
	}
	return nil
}
