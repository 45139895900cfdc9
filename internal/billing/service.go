package billing

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aqualedger/aqualedger/internal/shared"
)

// Auditor records non-critical audit entries.
type Auditor interface {
	Note(ctx context.Context, log shared.AuditLog)
}

// Service provides business logic for billing.
type Service struct {
	repo   Repository
	audit  Auditor
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a new service. audit may be nil.
func NewService(repo Repository, audit Auditor, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger, now: time.Now}
}

// WithClock overrides the generated_at timestamp source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Generate validates the request and regenerates the month.
func (s *Service) Generate(ctx context.Context, businessID int64, req GenerateRequest) (GenerateResult, error) {
	p, err := ValidateGenerateRequest(req)
	if err != nil {
		return GenerateResult{}, err
	}
	return s.GeneratePeriod(ctx, businessID, p)
}

// GeneratePeriod replaces every invoice of the business month with a fresh
// one per active customer. The whole run is one transaction under an
// advisory lock, so concurrent calls for the same month serialise.
func (s *Service) GeneratePeriod(ctx context.Context, businessID int64, p Period) (GenerateResult, error) {
	var result GenerateResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockPeriod(ctx, businessID, p); err != nil {
			return fmt.Errorf("lock billing period: %w", err)
		}
		cycle, created, err := tx.FindOrCreateCycle(ctx, businessID, p)
		if err != nil {
			return fmt.Errorf("find or create cycle: %w", err)
		}
		replaced, err := tx.DeleteInvoices(ctx, cycle.ID)
		if err != nil {
			return fmt.Errorf("delete invoices: %w", err)
		}

		customers, err := tx.ActiveCustomers(ctx, businessID)
		if err != nil {
			return fmt.Errorf("load customers: %w", err)
		}
		holidays, err := tx.SupplierHolidaysIn(ctx, businessID, p)
		if err != nil {
			return fmt.Errorf("load supplier holidays: %w", err)
		}
		clientDates, err := tx.ClientHolidayDates(ctx, businessID, p)
		if err != nil {
			return fmt.Errorf("load client holidays: %w", err)
		}

		supplierDays := SupplierHolidayDays(p, holidays)
		invoices := make([]Invoice, 0, len(customers))
		total := decimal.Zero
		for _, c := range customers {
			inv := BuildInvoice(cycle, p, c, supplierDays, ClientHolidayDays(p, clientDates[c.ID]))
			total = total.Add(inv.FinalAmount)
			invoices = append(invoices, inv)
		}
		if err := tx.InsertInvoices(ctx, invoices); err != nil {
			return fmt.Errorf("insert invoices: %w", err)
		}

		at := s.now()
		if err := tx.MarkGenerated(ctx, cycle.ID, at); err != nil {
			return fmt.Errorf("mark cycle generated: %w", err)
		}
		cycle.GeneratedAt = &at

		result = GenerateResult{
			Cycle:       cycle,
			Created:     created,
			Replaced:    replaced,
			Invoices:    len(invoices),
			TotalAmount: total,
		}
		return nil
	})
	if err != nil {
		return GenerateResult{}, err
	}

	s.logger.Info("billing cycle generated",
		slog.Int64("business_id", businessID),
		slog.String("period", p.String()),
		slog.Int("invoices", result.Invoices),
		slog.Int64("replaced", result.Replaced))
	s.note(ctx, businessID, "billing.generate", "billing_cycle", result.Cycle.ID, map[string]any{
		"period":   p.String(),
		"invoices": result.Invoices,
		"replaced": result.Replaced,
	})
	return result, nil
}

// AdjustInvoice applies discount, additional charges and remarks, then
// recomputes the final amount from the generated total.
func (s *Service) AdjustInvoice(ctx context.Context, businessID, id int64, req AdjustRequest) (Invoice, error) {
	if err := ValidateAdjustRequest(req); err != nil {
		return Invoice{}, err
	}

	var out Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, err := tx.GetInvoiceForUpdate(ctx, businessID, id)
		if err != nil {
			return err
		}
		if req.Discount != nil {
			inv.Discount = *req.Discount
		}
		if req.AdditionalCharges != nil {
			inv.AdditionalCharges = *req.AdditionalCharges
		}
		if req.Remarks != nil {
			inv.Remarks = req.Remarks
		}
		inv.FinalAmount = FinalAmount(inv.TotalAmount, inv.Discount, inv.AdditionalCharges)
		out, err = tx.UpdateInvoiceAdjustment(ctx, inv)
		return err
	})
	if err != nil {
		return Invoice{}, err
	}

	s.note(ctx, businessID, "billing.adjust", "invoice", id, map[string]any{
		"discount":           out.Discount.String(),
		"additional_charges": out.AdditionalCharges.String(),
		"final_amount":       out.FinalAmount.String(),
	})
	return out, nil
}

// ListCycles returns billing cycles, newest first.
func (s *Service) ListCycles(ctx context.Context, businessID *int64, page, perPage int) ([]Cycle, shared.Pagination, error) {
	cycles, total, err := s.repo.ListCycles(ctx, businessID, perPage, shared.Offset(page, perPage))
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return cycles, shared.NewPagination(page, perPage, total), nil
}

// ListInvoices returns a cycle and its invoices.
func (s *Service) ListInvoices(ctx context.Context, businessID *int64, cycleID int64) (Cycle, []Invoice, error) {
	cycle, err := s.repo.GetCycle(ctx, businessID, cycleID)
	if err != nil {
		return Cycle{}, nil, err
	}
	invoices, err := s.repo.ListInvoices(ctx, InvoiceFilter{BusinessID: businessID, CycleID: cycleID})
	if err != nil {
		return Cycle{}, nil, err
	}
	return cycle, invoices, nil
}

// CreateSupplierHoliday records a business-wide closure.
func (s *Service) CreateSupplierHoliday(ctx context.Context, businessID int64, req SupplierHolidayRequest) (SupplierHoliday, error) {
	start, end, err := ValidateSupplierHolidayRequest(req)
	if err != nil {
		return SupplierHoliday{}, err
	}
	var out SupplierHoliday
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		out, err = tx.InsertSupplierHoliday(ctx, SupplierHoliday{BusinessID: businessID, StartDate: start, EndDate: end, Reason: req.Reason})
		return err
	})
	if err != nil {
		return SupplierHoliday{}, err
	}
	s.note(ctx, businessID, "billing.supplier_holiday", "supplier_holiday", out.ID, map[string]any{
		"start_date": req.StartDate,
		"end_date":   req.EndDate,
	})
	return out, nil
}

// CreateClientHoliday records one skipped day for a customer of the business.
func (s *Service) CreateClientHoliday(ctx context.Context, businessID int64, req ClientHolidayRequest) (ClientHoliday, error) {
	date, err := ValidateClientHolidayRequest(req)
	if err != nil {
		return ClientHoliday{}, err
	}
	var out ClientHoliday
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ok, err := tx.CustomerExists(ctx, businessID, req.CustomerID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrCustomerNotFound
		}
		out, err = tx.InsertClientHoliday(ctx, ClientHoliday{BusinessID: businessID, CustomerID: req.CustomerID, HolidayDate: date, Reason: req.Reason})
		return err
	})
	if err != nil {
		return ClientHoliday{}, err
	}
	s.note(ctx, businessID, "billing.client_holiday", "client_holiday", out.ID, map[string]any{
		"customer_id":  req.CustomerID,
		"holiday_date": req.HolidayDate,
	})
	return out, nil
}

// ListSupplierHolidays returns closures overlapping the filter range.
func (s *Service) ListSupplierHolidays(ctx context.Context, filter HolidayFilter) ([]SupplierHoliday, error) {
	return s.repo.ListSupplierHolidays(ctx, filter)
}

// ListClientHolidays returns client holidays within the filter range.
func (s *Service) ListClientHolidays(ctx context.Context, filter HolidayFilter) ([]ClientHoliday, error) {
	return s.repo.ListClientHolidays(ctx, filter)
}

func (s *Service) note(ctx context.Context, businessID int64, action, entity string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	s.audit.Note(ctx, shared.AuditLog{
		BusinessID: businessID,
		Action:     action,
		Entity:     entity,
		EntityID:   strconv.FormatInt(id, 10),
		Meta:       meta,
	})
}
