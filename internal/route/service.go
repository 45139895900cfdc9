package route

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/aqualedger/aqualedger/internal/delivery"
	"github.com/aqualedger/aqualedger/internal/shared"
)

// Labeler renders a delivery for API responses.
type Labeler interface {
	Label(d delivery.Delivery, customerName *string, settlement delivery.Settlement) delivery.View
}

// Service provides business logic for routes.
type Service struct {
	repo    Repository
	labeler Labeler
	audit   delivery.Auditor
	logger  *slog.Logger
	now     func() time.Time
}

// NewService creates a new service. audit may be nil.
func NewService(repo Repository, labeler Labeler, audit delivery.Auditor, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, labeler: labeler, audit: audit, logger: logger, now: time.Now}
}

// WithClock overrides the timestamp source for started_at, completed_at and
// confirmed_at. Which route is "today" is always decided by the database.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Create plans a new draft route with stops in request order.
func (s *Service) Create(ctx context.Context, businessID, actorID int64, req CreateRequest) (*Route, error) {
	date, err := ValidateCreateRequest(req)
	if err != nil {
		return nil, err
	}

	var routeID int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := checkReferences(ctx, tx, businessID, &req.DeliveryBoyID, req.Stops); err != nil {
			return err
		}
		id, err := tx.CreateRoute(ctx, Route{
			BusinessID:    businessID,
			Name:          req.Name,
			RouteDate:     date,
			DeliveryBoyID: req.DeliveryBoyID,
			Status:        StatusDraft,
			CreatedBy:     actorID,
		})
		if err != nil {
			return fmt.Errorf("create route: %w", err)
		}
		routeID = id
		return insertStops(ctx, tx, id, req.Stops)
	})
	if err != nil {
		return nil, err
	}

	s.note(ctx, businessID, "route.create", routeID, map[string]any{"stops": len(req.Stops)})
	return s.repo.GetByID(ctx, &businessID, routeID)
}

// Update edits a draft route. A stop list in the request replaces all stops.
func (s *Service) Update(ctx context.Context, businessID, id int64, req UpdateRequest) (*Route, error) {
	if err := ValidateUpdateRequest(req); err != nil {
		return nil, err
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		rt, err := tx.GetForUpdate(ctx, businessID, id)
		if err != nil {
			return err
		}
		if !rt.Status.CanEdit() {
			return fmt.Errorf("%w: %s", ErrCannotEdit, rt.Status)
		}

		var stops []StopInput
		if req.Stops != nil {
			stops = *req.Stops
		}
		if err := checkReferences(ctx, tx, businessID, req.DeliveryBoyID, stops); err != nil {
			return err
		}

		updates := make(map[string]any)
		if req.Name != nil {
			updates["name"] = *req.Name
		}
		if req.RouteDate != nil {
			date, err := parseDate(*req.RouteDate)
			if err != nil {
				return err
			}
			updates["route_date"] = date
		}
		if req.DeliveryBoyID != nil {
			updates["delivery_boy_id"] = *req.DeliveryBoyID
		}
		if err := tx.UpdateRoute(ctx, id, updates); err != nil {
			return err
		}

		if req.Stops != nil {
			if err := tx.DeleteStops(ctx, id); err != nil {
				return fmt.Errorf("delete stops: %w", err)
			}
			return insertStops(ctx, tx, id, stops)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.note(ctx, businessID, "route.update", id, nil)
	return s.repo.GetByID(ctx, &businessID, id)
}

// Delete removes a draft route and its stops.
func (s *Service) Delete(ctx context.Context, businessID, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		rt, err := tx.GetForUpdate(ctx, businessID, id)
		if err != nil {
			return err
		}
		if !rt.Status.CanEdit() {
			return fmt.Errorf("%w: %s", ErrCannotDelete, rt.Status)
		}
		if err := tx.DeleteStops(ctx, id); err != nil {
			return fmt.Errorf("delete stops: %w", err)
		}
		return tx.DeleteRoute(ctx, id)
	})
	if err != nil {
		return err
	}
	s.note(ctx, businessID, "route.delete", id, nil)
	return nil
}

// ChangeStatus releases (active) or abandons (cancelled) a draft route.
func (s *Service) ChangeStatus(ctx context.Context, businessID, id int64, req StatusRequest) (*Route, error) {
	if err := ValidateStatusRequest(req); err != nil {
		return nil, err
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		rt, err := tx.GetForUpdate(ctx, businessID, id)
		if err != nil {
			return err
		}
		switch req.Status {
		case StatusActive:
			if !rt.Status.CanActivate() {
				return fmt.Errorf("%w: %s", ErrCannotActivate, rt.Status)
			}
			n, err := tx.CountStops(ctx, id)
			if err != nil {
				return err
			}
			if n == 0 {
				return ErrNoStopsToActivate
			}
		case StatusCancelled:
			if !rt.Status.CanCancel() {
				return fmt.Errorf("%w: %s", ErrCannotCancel, rt.Status)
			}
		}
		return tx.SetPlanStatus(ctx, id, req.Status)
	})
	if err != nil {
		return nil, err
	}

	s.note(ctx, businessID, "route.status", id, map[string]any{"status": req.Status})
	return s.repo.GetByID(ctx, &businessID, id)
}

// Get returns a route with stops. A nil businessID is unscoped.
func (s *Service) Get(ctx context.Context, businessID *int64, id int64) (*Route, error) {
	return s.repo.GetByID(ctx, businessID, id)
}

// List returns route summaries with pagination metadata.
func (s *Service) List(ctx context.Context, req ListRequest, page, perPage int) ([]Summary, shared.Pagination, error) {
	req.Limit = perPage
	req.Offset = shared.Offset(page, perPage)
	rows, total, err := s.repo.List(ctx, req)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	if rows == nil {
		rows = []Summary{}
	}
	return rows, shared.NewPagination(page, perPage, total), nil
}

// Today returns the agent's released routes for the database's current date.
func (s *Service) Today(ctx context.Context, businessID, agentID int64) ([]Route, error) {
	routes, err := s.repo.ListForAgentToday(ctx, businessID, agentID)
	if err != nil {
		return nil, err
	}
	if routes == nil {
		routes = []Route{}
	}
	return routes, nil
}

// ConfirmStop records what the agent delivered at a stop. The route lock,
// the delivery write, the ledger delta, the stop update and the unconfirmed
// count all happen in one transaction, so a repeat confirmation replaces the
// previous numbers instead of adding to them.
func (s *Service) ConfirmStop(ctx context.Context, businessID, agentID, routeID, stopID int64, req ConfirmStopRequest) (ConfirmStopResult, error) {
	if err := ValidateConfirmStopRequest(&req); err != nil {
		return ConfirmStopResult{}, err
	}

	var (
		result     ConfirmStopResult
		saved      delivery.Delivery
		settlement delivery.Settlement
		name       string
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		rt, err := tx.LockAgentRouteToday(ctx, businessID, routeID, agentID)
		if err != nil {
			return err
		}
		if !rt.Status.CanConfirmStops() {
			return fmt.Errorf("%w: %s", ErrNotConfirmable, rt.Status)
		}
		// The unconfirmed count below reads this transaction's snapshot.
		// Writing the route row makes a confirmation that queued behind
		// this one fail its lock with 40001 and rerun on fresh data.
		if err := tx.TouchRoute(ctx, routeID); err != nil {
			return fmt.Errorf("touch route: %w", err)
		}
		stop, err := tx.LockStop(ctx, routeID, stopID)
		if err != nil {
			return err
		}
		customer, err := tx.GetCustomer(ctx, businessID, stop.CustomerID)
		if err != nil {
			return err
		}
		name = customer.Name
		now := s.now()

		var delta int
		if stop.DeliveryID != nil {
			prev, err := tx.GetDeliveryForUpdate(ctx, businessID, *stop.DeliveryID)
			if err != nil {
				return fmt.Errorf("load previous delivery: %w", err)
			}
			next := prev
			next.JugsOut = req.ActualDeliveryQty
			next.EmptyIn = req.ActualEmptyQty
			next.PaymentStatus = req.PaymentStatus
			next.Notes = req.Notes
			if saved, err = tx.UpdateDelivery(ctx, next); err != nil {
				return fmt.Errorf("update delivery: %w", err)
			}
			delta = saved.Net() - prev.Net()
			result.Corrected = true
		} else {
			customerID, rID, sID := stop.CustomerID, rt.ID, stop.ID
			if saved, err = tx.InsertDelivery(ctx, delivery.Delivery{
				BusinessID:    businessID,
				CustomerID:    &customerID,
				DeliveryBoyID: agentID,
				DeliveryDate:  rt.RouteDate,
				JugsOut:       req.ActualDeliveryQty,
				EmptyIn:       req.ActualEmptyQty,
				PaymentStatus: req.PaymentStatus,
				Notes:         req.Notes,
				RouteID:       &rID,
				RouteStopID:   &sID,
			}); err != nil {
				return fmt.Errorf("insert delivery: %w", err)
			}
			delta = saved.Net()
		}

		if settlement, err = delivery.Settle(ctx, tx, saved, delta, customer.RatePerJug); err != nil {
			return err
		}

		deliveryVariance := req.ActualDeliveryQty - stop.ExpectedDeliveryQty
		emptyVariance := req.ActualEmptyQty - stop.ExpectedEmptyQty
		actualDelivery, actualEmpty := req.ActualDeliveryQty, req.ActualEmptyQty
		deliveryID := saved.ID
		stop.ActualDeliveryQty = &actualDelivery
		stop.ActualEmptyQty = &actualEmpty
		stop.DeliveryVariance = &deliveryVariance
		stop.EmptyVariance = &emptyVariance
		stop.ConfirmedAt = &now
		stop.PaymentStatus = req.PaymentStatus
		stop.Notes = req.Notes
		stop.DeliveryID = &deliveryID
		if err := tx.SaveStopConfirmation(ctx, stop); err != nil {
			return fmt.Errorf("save stop: %w", err)
		}

		unconfirmed, err := tx.CountUnconfirmed(ctx, routeID)
		if err != nil {
			return fmt.Errorf("count unconfirmed stops: %w", err)
		}
		transition := AfterConfirmation(rt, unconfirmed, now)
		if transition.Changed {
			if err := tx.SetStatus(ctx, routeID, transition); err != nil {
				return fmt.Errorf("advance route: %w", err)
			}
		}

		result = ConfirmStopResult{
			RouteID:           routeID,
			StopID:            stopID,
			RouteStatus:       transition.Status,
			ActualDeliveryQty: actualDelivery,
			ActualEmptyQty:    actualEmpty,
			DeliveryVariance:  deliveryVariance,
			EmptyVariance:     emptyVariance,
			JugDelta:          delta,
			Corrected:         result.Corrected,
		}
		return nil
	})
	if err != nil {
		return ConfirmStopResult{}, err
	}

	if s.labeler != nil {
		result.Delivery = s.labeler.Label(saved, &name, settlement)
	}
	s.note(ctx, businessID, "route.stop.confirm", routeID, map[string]any{
		"stop_id":   stopID,
		"jug_delta": result.JugDelta,
		"corrected": result.Corrected,
	})
	return result, nil
}

// checkReferences rejects stops and agents from outside the business.
func checkReferences(ctx context.Context, tx TxRepository, businessID int64, deliveryBoyID *int64, stops []StopInput) error {
	if deliveryBoyID != nil {
		ok, err := tx.DeliveryBoyExists(ctx, businessID, *deliveryBoyID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrUnknownDeliveryBoy
		}
	}
	if len(stops) == 0 {
		return nil
	}
	n, err := tx.CountBusinessCustomers(ctx, businessID, customerIDs(stops))
	if err != nil {
		return err
	}
	if n != len(stops) {
		return ErrUnknownCustomer
	}
	return nil
}

func insertStops(ctx context.Context, tx TxRepository, routeID int64, stops []StopInput) error {
	for i, in := range stops {
		if _, err := tx.InsertStop(ctx, Stop{
			RouteID:             routeID,
			CustomerID:          in.CustomerID,
			SequenceOrder:       i + 1,
			ExpectedDeliveryQty: in.ExpectedDeliveryQty,
			ExpectedEmptyQty:    in.ExpectedEmptyQty,
			PaymentStatus:       delivery.PaymentPending,
			Notes:               in.Notes,
		}); err != nil {
			return fmt.Errorf("insert stop %d: %w", i+1, err)
		}
	}
	return nil
}

func (s *Service) note(ctx context.Context, businessID int64, action string, routeID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	s.audit.Note(ctx, shared.AuditLog{
		BusinessID: businessID,
		Action:     action,
		Entity:     "route",
		EntityID:   strconv.FormatInt(routeID, 10),
		Meta:       meta,
	})
}
