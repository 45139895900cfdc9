package billing

import (
	"errors"
	"time"

	"github.com/aqualedger/aqualedger/internal/platform/httpx"
)

// ValidateGenerateRequest validates the requested month.
func ValidateGenerateRequest(req GenerateRequest) (Period, error) {
	if err := httpx.Validate(req); err != nil {
		var fields httpx.FieldErrors
		if errors.As(err, &fields) {
			return Period{}, ErrInvalidPeriod
		}
		return Period{}, err
	}
	return Period{Month: req.Month, Year: req.Year}, nil
}

// ValidateAdjustRequest validates an invoice adjustment.
func ValidateAdjustRequest(req AdjustRequest) error {
	if req.Discount == nil && req.AdditionalCharges == nil && req.Remarks == nil {
		return ErrEmptyAdjustment
	}
	if req.Discount != nil && req.Discount.IsNegative() {
		return ErrNegativeAdjust
	}
	if req.AdditionalCharges != nil && req.AdditionalCharges.IsNegative() {
		return ErrNegativeAdjust
	}
	return httpx.Validate(req)
}

// ValidateSupplierHolidayRequest returns the parsed inclusive range.
func ValidateSupplierHolidayRequest(req SupplierHolidayRequest) (time.Time, time.Time, error) {
	if err := httpx.Validate(req); err != nil {
		return time.Time{}, time.Time{}, err
	}
	start, err := parseDate(req.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := parseDate(req.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, ErrInvalidRange
	}
	return start, end, nil
}

// ValidateClientHolidayRequest returns the parsed date.
func ValidateClientHolidayRequest(req ClientHolidayRequest) (time.Time, error) {
	if err := httpx.Validate(req); err != nil {
		return time.Time{}, err
	}
	return parseDate(req.HolidayDate)
}

func parseDate(raw string) (time.Time, error) {
	d, err := time.Parse(httpx.DateLayout, raw)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return d, nil
}
