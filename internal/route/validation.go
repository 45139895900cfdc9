package route

import (
	"strings"
	"time"

	"github.com/aqualedger/aqualedger/internal/delivery"
	"github.com/aqualedger/aqualedger/internal/platform/httpx"
)

// ValidateCreateRequest validates create request and returns the parsed date.
func ValidateCreateRequest(req CreateRequest) (time.Time, error) {
	if strings.TrimSpace(req.Name) == "" {
		return time.Time{}, ErrInvalidName
	}
	if err := httpx.Validate(req); err != nil {
		return time.Time{}, err
	}
	date, err := parseDate(req.RouteDate)
	if err != nil {
		return time.Time{}, err
	}
	if err := validateStops(req.Stops); err != nil {
		return time.Time{}, err
	}
	return date, nil
}

// ValidateUpdateRequest validates update request.
func ValidateUpdateRequest(req UpdateRequest) error {
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return ErrInvalidName
	}
	if err := httpx.Validate(req); err != nil {
		return err
	}
	if req.RouteDate != nil {
		if _, err := parseDate(*req.RouteDate); err != nil {
			return err
		}
	}
	if req.Stops != nil {
		for _, s := range *req.Stops {
			if err := httpx.Validate(s); err != nil {
				return err
			}
		}
		return validateStops(*req.Stops)
	}
	return nil
}

// ValidateStatusRequest validates status change request.
func ValidateStatusRequest(req StatusRequest) error {
	if req.Status != StatusActive && req.Status != StatusCancelled {
		return ErrInvalidStatus
	}
	return nil
}

// ValidateConfirmStopRequest validates stop confirmation request.
func ValidateConfirmStopRequest(req *ConfirmStopRequest) error {
	if req.PaymentStatus == "" {
		req.PaymentStatus = delivery.PaymentPending
	}
	if req.ActualDeliveryQty < 0 || req.ActualEmptyQty < 0 {
		return ErrNegativeQuantity
	}
	if err := httpx.Validate(req); err != nil {
		return err
	}
	if !req.PaymentStatus.IsValid() {
		return delivery.ErrInvalidPaymentStatus
	}
	return nil
}

func validateStops(stops []StopInput) error {
	seen := make(map[int64]struct{}, len(stops))
	for _, s := range stops {
		if s.ExpectedDeliveryQty < 0 || s.ExpectedEmptyQty < 0 {
			return ErrNegativeQuantity
		}
		if _, dup := seen[s.CustomerID]; dup {
			return ErrDuplicateCustomer
		}
		seen[s.CustomerID] = struct{}{}
	}
	return nil
}

func parseDate(raw string) (time.Time, error) {
	d, err := time.Parse(httpx.DateLayout, raw)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return d, nil
}

func customerIDs(stops []StopInput) []int64 {
	ids := make([]int64, 0, len(stops))
	for _, s := range stops {
		ids = append(ids, s.CustomerID)
	}
	return ids
}
