package customers

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/aqualedger/aqualedger/internal/delivery"
	"github.com/aqualedger/aqualedger/internal/format"
	"github.com/aqualedger/aqualedger/internal/ledger"
	"github.com/aqualedger/aqualedger/internal/shared"
)

// Service provides balance views and manual balance changes.
type Service struct {
	repo         Repository
	audit        delivery.Auditor
	formatter    *format.Formatter
	logger       *slog.Logger
	overdueAfter int
	now          func() time.Time
}

// NewService creates a new service. overdueAfter <= 0 uses
// DefaultOverdueAfterDays.
func NewService(repo Repository, audit delivery.Auditor, formatter *format.Formatter, logger *slog.Logger, overdueAfter int) *Service {
	if formatter == nil {
		formatter = format.New(nil, "")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if overdueAfter <= 0 {
		overdueAfter = DefaultOverdueAfterDays
	}
	return &Service{repo: repo, audit: audit, formatter: formatter, logger: logger, overdueAfter: overdueAfter, now: time.Now}
}

// WithClock overrides the reference time for days pending.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Get returns the customer's balance view.
func (s *Service) Get(ctx context.Context, businessID *int64, id int64) (Balance, error) {
	c, lastPayment, err := s.repo.Get(ctx, businessID, id)
	if err != nil {
		return Balance{}, err
	}
	state, days := PaymentStatusFor(c.Outstanding, lastPayment, c.CreatedAt, s.now(), s.overdueAfter)
	return Balance{
		Customer:         c,
		LastPaymentAt:    lastPayment,
		PaymentStatus:    state,
		DaysPending:      days,
		OutstandingLabel: s.formatter.Amount(c.Outstanding),
		PendingJugsLabel: format.Jugs(c.PendingJugs),
		JoinedLabel:      s.formatter.Date(c.CreatedAt),
	}, nil
}

// RecordPayment stores a payment not tied to a delivery and reduces the
// outstanding balance, floored at zero.
func (s *Service) RecordPayment(ctx context.Context, businessID, customerID int64, req PaymentRequest) (Receipt, error) {
	if err := ValidatePaymentRequest(req); err != nil {
		return Receipt{}, err
	}
	receipt := Receipt{CustomerID: customerID, Amount: req.Amount, Method: req.Method, Reference: uuid.NewString()}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := s.mustExist(ctx, tx, businessID, customerID); err != nil {
			return err
		}
		id := customerID
		if _, err := tx.InsertPayment(ctx, delivery.Payment{
			BusinessID: businessID,
			CustomerID: &id,
			Amount:     req.Amount,
			Method:     req.Method,
			Reference:  receipt.Reference,
			Notes:      req.Notes,
		}); err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}
		outstanding, err := ledger.ApplyPayment(ctx, tx.Ledger(), businessID, customerID, req.Amount)
		if err != nil {
			return err
		}
		receipt.Outstanding = outstanding
		return nil
	})
	if err != nil {
		return Receipt{}, err
	}

	receipt.Label = "Received " + s.formatter.Amount(req.Amount) + " via " + string(req.Method)
	s.note(ctx, businessID, "customer.payment", customerID, map[string]any{
		"amount":    req.Amount.String(),
		"method":    req.Method,
		"reference": receipt.Reference,
	})
	return receipt, nil
}

// AddCharge records a manual debit and increases the outstanding balance.
func (s *Service) AddCharge(ctx context.Context, businessID, customerID int64, req ChargeRequest) (Receipt, error) {
	if err := ValidateChargeRequest(req); err != nil {
		return Receipt{}, err
	}
	receipt := Receipt{CustomerID: customerID, Amount: req.Amount}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := s.mustExist(ctx, tx, businessID, customerID); err != nil {
			return err
		}
		if _, err := tx.InsertCharge(ctx, Charge{BusinessID: businessID, CustomerID: customerID, Amount: req.Amount, Reason: req.Reason}); err != nil {
			return fmt.Errorf("insert charge: %w", err)
		}
		outstanding, err := ledger.AddCharge(ctx, tx.Ledger(), businessID, customerID, req.Amount)
		if err != nil {
			return err
		}
		receipt.Outstanding = outstanding
		return nil
	})
	if err != nil {
		return Receipt{}, err
	}

	receipt.Label = "Charged " + s.formatter.Amount(req.Amount) + " for " + req.Reason
	s.note(ctx, businessID, "customer.charge", customerID, map[string]any{
		"amount": req.Amount.String(),
		"reason": req.Reason,
	})
	return receipt, nil
}

func (s *Service) mustExist(ctx context.Context, tx TxRepository, businessID, customerID int64) error {
	ok, err := tx.Exists(ctx, businessID, customerID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (s *Service) note(ctx context.Context, businessID int64, action string, customerID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	s.audit.Note(ctx, shared.AuditLog{
		BusinessID: businessID,
		Action:     action,
		Entity:     "customer",
		EntityID:   strconv.FormatInt(customerID, 10),
		Meta:       meta,
	})
}
