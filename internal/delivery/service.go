package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/aqualedger/aqualedger/internal/format"
	"github.com/aqualedger/aqualedger/internal/shared"
)

const idempotencyModule = "delivery.confirm"

// Idempotency guards client retries of the same request.
type Idempotency interface {
	CheckAndInsert(ctx context.Context, businessID int64, key, module string) error
	Delete(ctx context.Context, businessID int64, key, module string) error
}

// Auditor records non-critical audit entries.
type Auditor interface {
	Note(ctx context.Context, log shared.AuditLog)
}

// Service provides business logic for deliveries.
type Service struct {
	repo      Repository
	idem      Idempotency
	audit     Auditor
	formatter *format.Formatter
	logger    *slog.Logger
}

// NewService creates a new service. idem and audit may be nil.
func NewService(repo Repository, idem Idempotency, audit Auditor, formatter *format.Formatter, logger *slog.Logger) *Service {
	if formatter == nil {
		formatter = format.New(nil, "")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, idem: idem, audit: audit, formatter: formatter, logger: logger}
}

// Confirm records an ad hoc delivery and its ledger effects in one
// transaction. A non-empty idempotencyKey makes client retries safe.
func (s *Service) Confirm(ctx context.Context, businessID, agentID int64, req ConfirmRequest, idempotencyKey string) (View, error) {
	if err := ValidateConfirmRequest(&req); err != nil {
		return View{}, err
	}
	release, err := s.claim(ctx, businessID, idempotencyKey)
	if err != nil {
		return View{}, err
	}

	var (
		saved        Delivery
		customerName *string
		settlement   Settlement
	)
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if req.DeliveryBoyID != nil {
			ok, err := tx.DeliveryBoyExists(ctx, businessID, agentID)
			if err != nil {
				return fmt.Errorf("check delivery boy: %w", err)
			}
			if !ok {
				return ErrUnknownDeliveryBoy
			}
		}
		rate := decimal.Zero
		if req.CustomerID != nil {
			customer, err := tx.GetCustomer(ctx, businessID, *req.CustomerID)
			if err != nil {
				return err
			}
			rate = customer.RatePerJug
			customerName = &customer.Name
		}
		d := Delivery{
			BusinessID:    businessID,
			CustomerID:    req.CustomerID,
			DeliveryBoyID: agentID,
			JugsOut:       req.JugsOut,
			EmptyIn:       req.EmptyIn,
			PaymentStatus: req.PaymentStatus,
			Notes:         req.Notes,
		}
		if req.DeliveryDate != nil {
			d.DeliveryDate = *req.DeliveryDate
		}
		inserted, err := tx.InsertDelivery(ctx, d)
		if err != nil {
			return fmt.Errorf("insert delivery: %w", err)
		}
		saved = inserted
		settlement, err = Settle(ctx, tx, saved, saved.Net(), rate)
		return err
	})
	if err != nil {
		release()
		return View{}, err
	}

	s.note(ctx, "delivery.confirm", saved)
	return s.view(saved, customerName, settlement), nil
}

// Spot records a walk-up sale. No customer ledger is touched.
func (s *Service) Spot(ctx context.Context, businessID, agentID int64, req SpotRequest) (View, error) {
	if err := ValidateSpotRequest(&req); err != nil {
		return View{}, err
	}
	rate := decimal.Zero
	var spotRate decimal.NullDecimal
	if req.Rate != nil {
		rate = *req.Rate
		spotRate = decimal.NewNullDecimal(rate)
	}

	var (
		saved      Delivery
		settlement Settlement
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inserted, err := tx.InsertDelivery(ctx, Delivery{
			BusinessID:    businessID,
			DeliveryBoyID: agentID,
			JugsOut:       req.JugsOut,
			PaymentStatus: req.PaymentStatus,
			Notes:         req.Notes,
			BuyerName:     req.BuyerName,
			SpotRate:      spotRate,
		})
		if err != nil {
			return fmt.Errorf("insert spot delivery: %w", err)
		}
		saved = inserted
		settlement, err = Settle(ctx, tx, saved, 0, rate)
		return err
	})
	if err != nil {
		return View{}, err
	}

	s.note(ctx, "delivery.spot", saved)
	return s.view(saved, req.BuyerName, settlement), nil
}

// List returns labelled deliveries with pagination metadata.
func (s *Service) List(ctx context.Context, req ListRequest, page, perPage int) ([]View, shared.Pagination, error) {
	req.Limit = perPage
	req.Offset = shared.Offset(page, perPage)
	rows, total, err := s.repo.List(ctx, req)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	views := make([]View, 0, len(rows))
	for _, row := range rows {
		name := row.CustomerName
		if name == nil {
			name = row.BuyerName
		}
		views = append(views, s.view(row.Delivery, name, Settlement{}))
	}
	return views, shared.NewPagination(page, perPage, total), nil
}

// Label renders a delivery with display labels. Exposed for the route engine.
func (s *Service) Label(d Delivery, customerName *string, settlement Settlement) View {
	return s.view(d, customerName, settlement)
}

func (s *Service) view(d Delivery, customerName *string, settlement Settlement) View {
	v := View{
		Delivery:         d,
		CustomerName:     customerName,
		NetJugs:          d.Net(),
		NetLabel:         format.Jugs(d.Net()),
		DateLabel:        s.formatter.Date(d.DeliveryDate),
		RecordedLabel:    s.formatter.Relative(d.CreatedAt),
		AmountCollected:  settlement.Amount,
		OutstandingAfter: settlement.Outstanding,
	}
	switch {
	case settlement.Amount != nil:
		v.PaymentLabel = "Paid " + s.formatter.Amount(*settlement.Amount) + " via " + string(d.PaymentStatus)
	case d.PaymentStatus.Collected():
		v.PaymentLabel = "Paid via " + string(d.PaymentStatus)
	default:
		v.PaymentLabel = string(PaymentPending)
	}
	return v
}

// claim reserves the idempotency key and returns a func that frees it when
// the request fails.
func (s *Service) claim(ctx context.Context, businessID int64, key string) (func(), error) {
	if key == "" || s.idem == nil {
		return func() {}, nil
	}
	if len(key) > 128 {
		return nil, shared.ErrIdempotencyKeyTooLong
	}
	if err := s.idem.CheckAndInsert(ctx, businessID, key, idempotencyModule); err != nil {
		if errors.Is(err, shared.ErrIdempotencyConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("claim idempotency key: %w", err)
	}
	return func() {
		if err := s.idem.Delete(context.WithoutCancel(ctx), businessID, key, idempotencyModule); err != nil {
			s.logger.Warn("release idempotency key", slog.String("key", key), slog.Any("error", err))
		}
	}, nil
}

func (s *Service) note(ctx context.Context, action string, d Delivery) {
	if s.audit == nil {
		return
	}
	meta := map[string]any{"jugs_out": d.JugsOut, "empty_in": d.EmptyIn, "payment_status": d.PaymentStatus}
	if d.CustomerID != nil {
		meta["customer_id"] = *d.CustomerID
	}
	s.audit.Note(ctx, shared.AuditLog{
		BusinessID: d.BusinessID,
		ActorID:    d.DeliveryBoyID,
		Action:     action,
		Entity:     "delivery",
		EntityID:   strconv.FormatInt(d.ID, 10),
		Meta:       meta,
	})
}
