package delivery

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aqualedger/aqualedger/internal/ledger"
	"github.com/aqualedger/aqualedger/internal/platform/db"
)

// Repository defines the interface for delivery persistence.
type Repository interface {
	List(ctx context.Context, req ListRequest) ([]WithCustomer, int, error)

	// Write operations (transactional)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes the writes a confirmation performs inside one
// transaction. The route engine embeds it.
type TxRepository interface {
	GetCustomer(ctx context.Context, businessID, customerID int64) (Customer, error)
	InsertDelivery(ctx context.Context, d Delivery) (Delivery, error)
	GetDeliveryForUpdate(ctx context.Context, businessID, id int64) (Delivery, error)
	UpdateDelivery(ctx context.Context, d Delivery) (Delivery, error)
	// InsertPayment stores p unless a payment already exists for its
	// delivery, reporting whether a row was written.
	InsertPayment(ctx context.Context, p Payment) (bool, error)
	// PaymentForDelivery row-locks the payment recorded for a delivery, or
	// returns nil when there is none.
	PaymentForDelivery(ctx context.Context, businessID, deliveryID int64) (*Payment, error)
	UpdatePayment(ctx context.Context, p Payment) error
	DeletePayment(ctx context.Context, businessID, id int64) error
	DeliveryBoyExists(ctx context.Context, businessID, userID int64) (bool, error)
	Ledger() ledger.Store
}

type repository struct {
	pool       *pgxpool.Pool
	maxRetries int
}

// NewRepository creates a new repository. maxRetries bounds serialization
// failure retries per transaction.
func NewRepository(pool *pgxpool.Pool, maxRetries int) Repository {
	return &repository{pool: pool, maxRetries: maxRetries}
}

// WithTx wraps callback in a repeatable-read transaction.
func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithRetryTx(ctx, r.pool, r.maxRetries, func(tx pgx.Tx) error {
		return fn(ctx, NewTxRepository(tx))
	})
}

// List returns deliveries matching req with the total count.
func (r *repository) List(ctx context.Context, req ListRequest) ([]WithCustomer, int, error) {
	f := db.NewFilter()
	db.WhereOptional(f, "d.business_id =", req.BusinessID)
	db.WhereOptional(f, "d.customer_id =", req.CustomerID)
	db.WhereOptional(f, "d.delivery_boy_id =", req.DeliveryBoyID)
	db.WhereOptional(f, "d.route_id =", req.RouteID)
	db.WhereOptional(f, "d.delivery_date >=", req.From)
	db.WhereOptional(f, "d.delivery_date <=", req.To)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM deliveries d`+f.Clause(), f.Args()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count deliveries: %w", err)
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT d.id, d.business_id, d.customer_id, d.delivery_boy_id, d.delivery_date,
		       d.jugs_out, d.empty_in, d.payment_status, d.notes, d.buyer_name, d.spot_rate,
		       d.route_id, d.route_stop_id, d.created_at, d.updated_at, c.name
		FROM deliveries d
		LEFT JOIN customers c ON c.id = d.customer_id` + f.Clause() +
		` ORDER BY d.delivery_date DESC, d.id DESC LIMIT ` + f.Next(limit) + ` OFFSET ` + f.Next(req.Offset)

	rows, err := r.pool.Query(ctx, query, f.Args()...)
	if err != nil {
		return nil, 0, fmt.Errorf("list deliveries: %w", err)
	}
	defer rows.Close()

	var out []WithCustomer
	for rows.Next() {
		var w WithCustomer
		d := &w.Delivery
		if err := rows.Scan(&d.ID, &d.BusinessID, &d.CustomerID, &d.DeliveryBoyID, &d.DeliveryDate,
			&d.JugsOut, &d.EmptyIn, &d.PaymentStatus, &d.Notes, &d.BuyerName, &d.SpotRate,
			&d.RouteID, &d.RouteStopID, &d.CreatedAt, &d.UpdatedAt, &w.CustomerName); err != nil {
			return nil, 0, err
		}
		out = append(out, w)
	}
	return out, total, rows.Err()
}

type txRepository struct {
	tx     pgx.Tx
	ledger *ledger.PGStore
}

// NewTxRepository binds delivery writes to an open transaction.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx, ledger: ledger.NewPGStore(tx)}
}

func (t *txRepository) Ledger() ledger.Store {
	return t.ledger
}

// GetCustomer locks nothing; balances are changed with atomic increments.
func (t *txRepository) GetCustomer(ctx context.Context, businessID, customerID int64) (Customer, error) {
	var c Customer
	err := t.tx.QueryRow(ctx, `
		SELECT id, business_id, name, rate_per_jug, is_active
		FROM customers
		WHERE id = $1 AND business_id = $2
	`, customerID, businessID).Scan(&c.ID, &c.BusinessID, &c.Name, &c.RatePerJug, &c.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Customer{}, ErrCustomerNotFound
		}
		return Customer{}, err
	}
	return c, nil
}

const deliveryColumns = `id, business_id, customer_id, delivery_boy_id, delivery_date, jugs_out, empty_in,
	payment_status, notes, buyer_name, spot_rate, route_id, route_stop_id, created_at, updated_at`

func scanDelivery(row pgx.Row) (Delivery, error) {
	var d Delivery
	err := row.Scan(&d.ID, &d.BusinessID, &d.CustomerID, &d.DeliveryBoyID, &d.DeliveryDate,
		&d.JugsOut, &d.EmptyIn, &d.PaymentStatus, &d.Notes, &d.BuyerName, &d.SpotRate,
		&d.RouteID, &d.RouteStopID, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Delivery{}, ErrNotFound
		}
		return Delivery{}, err
	}
	return d, nil
}

// InsertDelivery writes d. A zero DeliveryDate takes the database's current date.
func (t *txRepository) InsertDelivery(ctx context.Context, d Delivery) (Delivery, error) {
	var date any
	if !d.DeliveryDate.IsZero() {
		date = d.DeliveryDate
	}
	row := t.tx.QueryRow(ctx, `
		INSERT INTO deliveries (
			business_id, customer_id, delivery_boy_id, delivery_date, jugs_out, empty_in,
			payment_status, notes, buyer_name, spot_rate, route_id, route_stop_id
		) VALUES ($1, $2, $3, COALESCE($4::date, CURRENT_DATE), $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING `+deliveryColumns,
		d.BusinessID, d.CustomerID, d.DeliveryBoyID, date, d.JugsOut, d.EmptyIn,
		d.PaymentStatus, d.Notes, d.BuyerName, d.SpotRate, d.RouteID, d.RouteStopID,
	)
	return scanDelivery(row)
}

// GetDeliveryForUpdate row-locks the delivery for a correction.
func (t *txRepository) GetDeliveryForUpdate(ctx context.Context, businessID, id int64) (Delivery, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+deliveryColumns+` FROM deliveries WHERE id = $1 AND business_id = $2 FOR UPDATE`, id, businessID)
	return scanDelivery(row)
}

// UpdateDelivery overwrites the mutable counts of an existing delivery.
func (t *txRepository) UpdateDelivery(ctx context.Context, d Delivery) (Delivery, error) {
	row := t.tx.QueryRow(ctx, `
		UPDATE deliveries
		SET jugs_out = $1, empty_in = $2, payment_status = $3, notes = $4, updated_at = NOW()
		WHERE id = $5 AND business_id = $6
		RETURNING `+deliveryColumns,
		d.JugsOut, d.EmptyIn, d.PaymentStatus, d.Notes, d.ID, d.BusinessID,
	)
	return scanDelivery(row)
}

func (t *txRepository) InsertPayment(ctx context.Context, p Payment) (bool, error) {
	tag, err := t.tx.Exec(ctx, `
		INSERT INTO payments (business_id, customer_id, delivery_id, amount, method, reference, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (delivery_id) WHERE delivery_id IS NOT NULL DO NOTHING
	`, p.BusinessID, p.CustomerID, p.DeliveryID, p.Amount, p.Method, p.Reference, p.Notes)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (t *txRepository) PaymentForDelivery(ctx context.Context, businessID, deliveryID int64) (*Payment, error) {
	var p Payment
	err := t.tx.QueryRow(ctx, `
		SELECT id, business_id, customer_id, delivery_id, amount, method, COALESCE(reference, ''), received_at, notes
		FROM payments
		WHERE delivery_id = $1 AND business_id = $2
		FOR UPDATE
	`, deliveryID, businessID).Scan(&p.ID, &p.BusinessID, &p.CustomerID, &p.DeliveryID, &p.Amount, &p.Method, &p.Reference, &p.ReceivedAt, &p.Notes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (t *txRepository) UpdatePayment(ctx context.Context, p Payment) error {
	_, err := t.tx.Exec(ctx, `UPDATE payments SET amount = $1, method = $2 WHERE id = $3 AND business_id = $4`,
		p.Amount, p.Method, p.ID, p.BusinessID)
	return err
}

func (t *txRepository) DeletePayment(ctx context.Context, businessID, id int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM payments WHERE id = $1 AND business_id = $2`, id, businessID)
	return err
}

// DeliveryBoyExists reports whether userID is an active delivery boy of the business.
func (t *txRepository) DeliveryBoyExists(ctx context.Context, businessID, userID int64) (bool, error) {
	var ok bool
	err := t.tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM users
			WHERE id = $1 AND business_id = $2 AND role = 'delivery_boy' AND is_active
		)
	`, userID, businessID).Scan(&ok)
	return ok, err
}
