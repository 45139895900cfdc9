package customers

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aqualedger/aqualedger/internal/delivery"
	"github.com/aqualedger/aqualedger/internal/ledger"
	"github.com/aqualedger/aqualedger/internal/platform/db"
)

// Repository defines the interface for customer persistence.
type Repository interface {
	// Get returns the customer and the time of its latest payment, if any.
	Get(ctx context.Context, businessID *int64, id int64) (Customer, *time.Time, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes balance-moving writes.
type TxRepository interface {
	Exists(ctx context.Context, businessID, id int64) (bool, error)
	InsertPayment(ctx context.Context, p delivery.Payment) (bool, error)
	InsertCharge(ctx context.Context, c Charge) (Charge, error)
	Ledger() ledger.Store
}

type repository struct {
	pool       *pgxpool.Pool
	maxRetries int
}

// NewRepository creates a new repository.
func NewRepository(pool *pgxpool.Pool, maxRetries int) Repository {
	return &repository{pool: pool, maxRetries: maxRetries}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithRetryTx(ctx, r.pool, r.maxRetries, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{TxRepository: delivery.NewTxRepository(tx), tx: tx})
	})
}

func (r *repository) Get(ctx context.Context, businessID *int64, id int64) (Customer, *time.Time, error) {
	f := db.NewFilter().Where("c.id =", id)
	db.WhereOptional(f, "c.business_id =", businessID)

	var (
		c           Customer
		lastPayment *time.Time
	)
	err := r.pool.QueryRow(ctx, `
		SELECT c.id, c.business_id, c.name, c.phone, c.rate_per_jug, c.pending_jugs, c.outstanding,
		       c.holiday_billing_chargeable, c.is_active, c.created_at,
		       (SELECT MAX(p.received_at) FROM payments p WHERE p.customer_id = c.id)
		FROM customers c`+f.Clause(), f.Args()...).Scan(
		&c.ID, &c.BusinessID, &c.Name, &c.Phone, &c.RatePerJug, &c.PendingJugs, &c.Outstanding,
		&c.HolidayBillingChargeable, &c.IsActive, &c.CreatedAt, &lastPayment)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Customer{}, nil, ErrNotFound
		}
		return Customer{}, nil, err
	}
	return c, lastPayment, nil
}

// txRepository reuses the delivery writes for payments and the ledger.
type txRepository struct {
	delivery.TxRepository
	tx pgx.Tx
}

func (t *txRepository) Exists(ctx context.Context, businessID, id int64) (bool, error) {
	var ok bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM customers WHERE id = $1 AND business_id = $2)`, id, businessID).Scan(&ok)
	return ok, err
}

func (t *txRepository) InsertCharge(ctx context.Context, c Charge) (Charge, error) {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO charges (business_id, customer_id, amount, reason)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`, c.BusinessID, c.CustomerID, c.Amount, c.Reason).Scan(&c.ID, &c.CreatedAt)
	return c, err
}
