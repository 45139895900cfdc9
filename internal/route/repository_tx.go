package route

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/aqualedger/aqualedger/internal/delivery"
)

// txRepository implements TxRepository.
type txRepository struct {
	delivery.TxRepository
	tx pgx.Tx
}

func newTxRepository(tx pgx.Tx) *txRepository {
	return &txRepository{TxRepository: delivery.NewTxRepository(tx), tx: tx}
}

// CreateRoute inserts a route header.
func (t *txRepository) CreateRoute(ctx context.Context, r Route) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO routes (business_id, name, route_date, delivery_boy_id, status, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, r.BusinessID, r.Name, r.RouteDate, r.DeliveryBoyID, r.Status, r.CreatedBy).Scan(&id)
	return id, err
}

// InsertStop inserts a planned stop.
func (t *txRepository) InsertStop(ctx context.Context, s Stop) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO route_stops (route_id, customer_id, sequence_order, expected_delivery_qty, expected_empty_qty, payment_status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, s.RouteID, s.CustomerID, s.SequenceOrder, s.ExpectedDeliveryQty, s.ExpectedEmptyQty, s.PaymentStatus, s.Notes).Scan(&id)
	return id, err
}

// GetForUpdate row-locks a route within the business.
func (t *txRepository) GetForUpdate(ctx context.Context, businessID, id int64) (Route, error) {
	return scanRoute(t.tx.QueryRow(ctx, `SELECT `+routeColumns+` FROM routes r WHERE r.id = $1 AND r.business_id = $2 FOR UPDATE`, id, businessID))
}

// UpdateRoute updates route header fields.
func (t *txRepository) UpdateRoute(ctx context.Context, id int64, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}

	var setClauses []string
	var args []any
	argPos := 1

	for _, field := range []string{"name", "route_date", "delivery_boy_id"} {
		value, ok := updates[field]
		if !ok {
			continue
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", field, argPos))
		args = append(args, value)
		argPos++
	}
	if len(setClauses) == 0 {
		return nil
	}
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE routes SET %s, updated_at = NOW() WHERE id = $%d`, strings.Join(setClauses, ", "), argPos)
	tag, err := t.tx.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteStops removes all stops for a route.
func (t *txRepository) DeleteStops(ctx context.Context, routeID int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM route_stops WHERE route_id = $1`, routeID)
	return err
}

// DeleteRoute removes the route header.
func (t *txRepository) DeleteRoute(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM routes WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepository) CountStops(ctx context.Context, routeID int64) (int, error) {
	var n int
	err := t.tx.QueryRow(ctx, `SELECT COUNT(*) FROM route_stops WHERE route_id = $1`, routeID).Scan(&n)
	return n, err
}

// LockAgentRouteToday implements TxRepository. No row means either the
// route is someone else's or it is not today's.
func (t *txRepository) LockAgentRouteToday(ctx context.Context, businessID, routeID, agentID int64) (Route, error) {
	rt, err := scanRoute(t.tx.QueryRow(ctx, `
		SELECT `+routeColumns+`
		FROM routes r
		WHERE r.id = $1 AND r.business_id = $2 AND r.delivery_boy_id = $3 AND r.route_date = CURRENT_DATE
		FOR UPDATE
	`, routeID, businessID, agentID))
	if err == ErrNotFound {
		return Route{}, ErrNotYourRoute
	}
	return rt, err
}

// LockStop row-locks a stop of the route.
func (t *txRepository) LockStop(ctx context.Context, routeID, stopID int64) (Stop, error) {
	return scanStop(t.tx.QueryRow(ctx, `
		SELECT `+stopColumns+`
		FROM route_stops s
		INNER JOIN customers c ON c.id = s.customer_id
		WHERE s.id = $1 AND s.route_id = $2
		FOR UPDATE OF s
	`, stopID, routeID))
}

// SaveStopConfirmation persists actuals, variances and the delivery link.
func (t *txRepository) SaveStopConfirmation(ctx context.Context, s Stop) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE route_stops
		SET actual_delivery_qty = $1, actual_empty_qty = $2,
		    delivery_variance = $3, empty_variance = $4,
		    confirmed_at = $5, payment_status = $6, notes = $7, delivery_id = $8
		WHERE id = $9
	`, s.ActualDeliveryQty, s.ActualEmptyQty, s.DeliveryVariance, s.EmptyVariance,
		s.ConfirmedAt, s.PaymentStatus, s.Notes, s.DeliveryID, s.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStopNotFound
	}
	return nil
}

// CountUnconfirmed counts stops still awaiting confirmation, inside the tx.
func (t *txRepository) CountUnconfirmed(ctx context.Context, routeID int64) (int, error) {
	var n int
	err := t.tx.QueryRow(ctx, `SELECT COUNT(*) FROM route_stops WHERE route_id = $1 AND confirmed_at IS NULL`, routeID).Scan(&n)
	return n, err
}

// TouchRoute implements TxRepository.
func (t *txRepository) TouchRoute(ctx context.Context, routeID int64) error {
	_, err := t.tx.Exec(ctx, `UPDATE routes SET updated_at = NOW() WHERE id = $1`, routeID)
	return err
}

// SetStatus applies a confirmation transition. started_at is never overwritten.
func (t *txRepository) SetStatus(ctx context.Context, routeID int64, tr Transition) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE routes
		SET status = $1, started_at = COALESCE(started_at, $2), completed_at = $3, updated_at = NOW()
		WHERE id = $4
	`, tr.Status, tr.StartedAt, tr.CompletedAt, routeID)
	return err
}

// SetPlanStatus is used by activate and cancel.
func (t *txRepository) SetPlanStatus(ctx context.Context, routeID int64, status Status) error {
	_, err := t.tx.Exec(ctx, `UPDATE routes SET status = $1, updated_at = NOW() WHERE id = $2`, status, routeID)
	return err
}

func (t *txRepository) CountBusinessCustomers(ctx context.Context, businessID int64, ids []int64) (int, error) {
	var n int
	err := t.tx.QueryRow(ctx, `SELECT COUNT(DISTINCT id) FROM customers WHERE business_id = $1 AND id = ANY($2)`, businessID, ids).Scan(&n)
	return n, err
}
