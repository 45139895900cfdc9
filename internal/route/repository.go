package route

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aqualedger/aqualedger/internal/delivery"
	"github.com/aqualedger/aqualedger/internal/platform/db"
)

// Repository defines the interface for route persistence.
type Repository interface {
	// Read operations
	GetByID(ctx context.Context, businessID *int64, id int64) (*Route, error)
	List(ctx context.Context, req ListRequest) ([]Summary, int, error)
	ListForAgentToday(ctx context.Context, businessID, agentID int64) ([]Route, error)

	// Write operations (transactional)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes transactional write operations. It embeds the
// delivery writes so a stop confirmation shares one transaction with its
// delivery row, payment and ledger changes.
type TxRepository interface {
	delivery.TxRepository

	CreateRoute(ctx context.Context, r Route) (int64, error)
	InsertStop(ctx context.Context, s Stop) (int64, error)
	GetForUpdate(ctx context.Context, businessID, id int64) (Route, error)
	UpdateRoute(ctx context.Context, id int64, updates map[string]any) error
	DeleteStops(ctx context.Context, routeID int64) error
	DeleteRoute(ctx context.Context, id int64) error
	CountStops(ctx context.Context, routeID int64) (int, error)

	// LockAgentRouteToday row-locks the route only if it belongs to agentID
	// and its date is the database's current date.
	LockAgentRouteToday(ctx context.Context, businessID, routeID, agentID int64) (Route, error)
	LockStop(ctx context.Context, routeID, stopID int64) (Stop, error)
	SaveStopConfirmation(ctx context.Context, s Stop) error
	CountUnconfirmed(ctx context.Context, routeID int64) (int, error)
	SetStatus(ctx context.Context, routeID int64, t Transition) error
	SetPlanStatus(ctx context.Context, routeID int64, status Status) error

	// TouchRoute writes the route row so a concurrent confirmation waiting
	// on the route lock aborts with a serialization failure and retries.
	TouchRoute(ctx context.Context, routeID int64) error

	CountBusinessCustomers(ctx context.Context, businessID int64, ids []int64) (int, error)
}

// repository implements Repository using pgxpool.
type repository struct {
	pool       *pgxpool.Pool
	maxRetries int
}

// NewRepository creates a new repository.
func NewRepository(pool *pgxpool.Pool, maxRetries int) Repository {
	return &repository{pool: pool, maxRetries: maxRetries}
}

// WithTx wraps callback in a repeatable-read transaction, retrying
// serialization failures.
func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithRetryTx(ctx, r.pool, r.maxRetries, func(tx pgx.Tx) error {
		return fn(ctx, newTxRepository(tx))
	})
}

const routeColumns = `r.id, r.business_id, r.name, r.route_date, r.delivery_boy_id, r.status,
	r.started_at, r.completed_at, r.created_by, r.created_at, r.updated_at`

func scanRoute(row pgx.Row, extra ...any) (Route, error) {
	var rt Route
	dest := []any{&rt.ID, &rt.BusinessID, &rt.Name, &rt.RouteDate, &rt.DeliveryBoyID, &rt.Status,
		&rt.StartedAt, &rt.CompletedAt, &rt.CreatedBy, &rt.CreatedAt, &rt.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Route{}, ErrNotFound
		}
		return Route{}, err
	}
	return rt, nil
}

// GetByID retrieves a route with its stops. A nil businessID skips the
// tenant predicate.
func (r *repository) GetByID(ctx context.Context, businessID *int64, id int64) (*Route, error) {
	f := db.NewFilter().Where("r.id =", id)
	db.WhereOptional(f, "r.business_id =", businessID)
	rt, err := scanRoute(r.pool.QueryRow(ctx, `SELECT `+routeColumns+` FROM routes r`+f.Clause(), f.Args()...))
	if err != nil {
		return nil, err
	}
	stops, err := r.getStops(ctx, []int64{rt.ID})
	if err != nil {
		return nil, err
	}
	rt.Stops = stops[rt.ID]
	return &rt, nil
}

const stopColumns = `s.id, s.route_id, s.customer_id, c.name, s.sequence_order,
	s.expected_delivery_qty, s.expected_empty_qty, s.actual_delivery_qty, s.actual_empty_qty,
	s.delivery_variance, s.empty_variance, s.confirmed_at, s.payment_status, s.notes, s.delivery_id`

func scanStop(row pgx.Row) (Stop, error) {
	var s Stop
	err := row.Scan(&s.ID, &s.RouteID, &s.CustomerID, &s.CustomerName, &s.SequenceOrder,
		&s.ExpectedDeliveryQty, &s.ExpectedEmptyQty, &s.ActualDeliveryQty, &s.ActualEmptyQty,
		&s.DeliveryVariance, &s.EmptyVariance, &s.ConfirmedAt, &s.PaymentStatus, &s.Notes, &s.DeliveryID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Stop{}, ErrStopNotFound
		}
		return Stop{}, err
	}
	return s, nil
}

func (r *repository) getStops(ctx context.Context, routeIDs []int64) (map[int64][]Stop, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+stopColumns+`
		FROM route_stops s
		INNER JOIN customers c ON c.id = s.customer_id
		WHERE s.route_id = ANY($1)
		ORDER BY s.route_id, s.sequence_order
	`, routeIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64][]Stop, len(routeIDs))
	for rows.Next() {
		s, err := scanStop(rows)
		if err != nil {
			return nil, err
		}
		out[s.RouteID] = append(out[s.RouteID], s)
	}
	return out, rows.Err()
}

// List returns route summaries with stop counts.
func (r *repository) List(ctx context.Context, req ListRequest) ([]Summary, int, error) {
	f := db.NewFilter()
	db.WhereOptional(f, "r.business_id =", req.BusinessID)
	db.WhereOptional(f, "r.route_date =", req.Date)
	db.WhereOptional(f, "r.status =", req.Status)
	db.WhereOptional(f, "r.delivery_boy_id =", req.DeliveryBoyID)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM routes r`+f.Clause(), f.Args()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count routes: %w", err)
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT ` + routeColumns + `,
		       (SELECT COUNT(*) FROM route_stops s WHERE s.route_id = r.id) AS total_stops,
		       (SELECT COUNT(*) FROM route_stops s WHERE s.route_id = r.id AND s.confirmed_at IS NOT NULL) AS confirmed_stops
		FROM routes r` + f.Clause() + `
		ORDER BY r.route_date DESC, r.id DESC
		LIMIT ` + f.Next(limit) + ` OFFSET ` + f.Next(req.Offset)

	rows, err := r.pool.Query(ctx, query, f.Args()...)
	if err != nil {
		return nil, 0, fmt.Errorf("list routes: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var s Summary
		rt, err := scanRoute(rows, &s.TotalStops, &s.ConfirmedStops)
		if err != nil {
			return nil, 0, err
		}
		s.Route = rt
		out = append(out, s)
	}
	return out, total, rows.Err()
}

// ListForAgentToday returns the agent's released routes dated today,
// by the database clock.
func (r *repository) ListForAgentToday(ctx context.Context, businessID, agentID int64) ([]Route, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+routeColumns+`
		FROM routes r
		WHERE r.business_id = $1 AND r.delivery_boy_id = $2 AND r.route_date = CURRENT_DATE
		  AND r.status IN ('active', 'in_progress', 'completed')
		ORDER BY r.id
	`, businessID, agentID)
	if err != nil {
		return nil, err
	}
	var routes []Route
	for rows.Next() {
		rt, err := scanRoute(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		routes = append(routes, rt)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(routes) == 0 {
		return routes, nil
	}

	ids := make([]int64, len(routes))
	for i, rt := range routes {
		ids[i] = rt.ID
	}
	stops, err := r.getStops(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range routes {
		routes[i].Stops = stops[routes[i].ID]
	}
	return routes, nil
}
