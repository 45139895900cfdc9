package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aqualedger/aqualedger/internal/platform/db"
	"github.com/aqualedger/aqualedger/internal/shared"
)

// Repository defines the interface for billing persistence.
type Repository interface {
	ListCycles(ctx context.Context, businessID *int64, limit, offset int) ([]Cycle, int, error)
	GetCycle(ctx context.Context, businessID *int64, id int64) (Cycle, error)
	ListInvoices(ctx context.Context, filter InvoiceFilter) ([]Invoice, error)
	ListSupplierHolidays(ctx context.Context, filter HolidayFilter) ([]SupplierHoliday, error)
	ListClientHolidays(ctx context.Context, filter HolidayFilter) ([]ClientHoliday, error)

	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes transactional billing writes.
type TxRepository interface {
	// LockPeriod takes a transaction-scoped advisory lock so two generations
	// of the same business month never interleave.
	LockPeriod(ctx context.Context, businessID int64, p Period) error
	FindOrCreateCycle(ctx context.Context, businessID int64, p Period) (Cycle, bool, error)
	DeleteInvoices(ctx context.Context, cycleID int64) (int64, error)
	ActiveCustomers(ctx context.Context, businessID int64) ([]BillableCustomer, error)
	SupplierHolidaysIn(ctx context.Context, businessID int64, p Period) ([]SupplierHoliday, error)
	ClientHolidayDates(ctx context.Context, businessID int64, p Period) (map[int64][]time.Time, error)
	InsertInvoices(ctx context.Context, invoices []Invoice) error
	MarkGenerated(ctx context.Context, cycleID int64, at time.Time) error

	GetInvoiceForUpdate(ctx context.Context, businessID, id int64) (Invoice, error)
	UpdateInvoiceAdjustment(ctx context.Context, inv Invoice) (Invoice, error)

	CustomerExists(ctx context.Context, businessID, customerID int64) (bool, error)
	InsertSupplierHoliday(ctx context.Context, h SupplierHoliday) (SupplierHoliday, error)
	InsertClientHoliday(ctx context.Context, h ClientHoliday) (ClientHoliday, error)
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
		return fn(ctx, &txRepository{tx: tx})
	})
}

const cycleColumns = `id, business_id, cycle_month, cycle_year, generated_at, created_at`

func scanCycle(row pgx.Row) (Cycle, error) {
	var c Cycle
	if err := row.Scan(&c.ID, &c.BusinessID, &c.Month, &c.Year, &c.GeneratedAt, &c.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Cycle{}, ErrCycleNotFound
		}
		return Cycle{}, err
	}
	return c, nil
}

func (r *repository) ListCycles(ctx context.Context, businessID *int64, limit, offset int) ([]Cycle, int, error) {
	f := db.NewFilter()
	db.WhereOptional(f, "business_id =", businessID)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM billing_cycles`+f.Clause(), f.Args()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count cycles: %w", err)
	}
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT ` + cycleColumns + ` FROM billing_cycles` + f.Clause() +
		` ORDER BY cycle_year DESC, cycle_month DESC, business_id LIMIT ` + f.Next(limit) + ` OFFSET ` + f.Next(offset)
	rows, err := r.pool.Query(ctx, query, f.Args()...)
	if err != nil {
		return nil, 0, fmt.Errorf("list cycles: %w", err)
	}
	defer rows.Close()

	cycles := []Cycle{}
	for rows.Next() {
		c, err := scanCycle(rows)
		if err != nil {
			return nil, 0, err
		}
		cycles = append(cycles, c)
	}
	return cycles, total, rows.Err()
}

func (r *repository) GetCycle(ctx context.Context, businessID *int64, id int64) (Cycle, error) {
	f := db.NewFilter().Where("id =", id)
	db.WhereOptional(f, "business_id =", businessID)
	return scanCycle(r.pool.QueryRow(ctx, `SELECT `+cycleColumns+` FROM billing_cycles`+f.Clause(), f.Args()...))
}

const invoiceColumns = `i.id, i.billing_cycle_id, i.business_id, i.customer_id, c.name,
	i.total_days, i.supplier_hol_days, i.client_hol_days, i.chargeable_days,
	i.rate_per_jug, i.total_amount, i.discount, i.additional_charges, i.final_amount,
	i.remarks, i.created_at, i.updated_at`

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.BillingCycleID, &inv.BusinessID, &inv.CustomerID, &inv.CustomerName,
		&inv.TotalDays, &inv.SupplierHolDays, &inv.ClientHolDays, &inv.ChargeableDays,
		&inv.RatePerJug, &inv.TotalAmount, &inv.Discount, &inv.AdditionalCharges, &inv.FinalAmount,
		&inv.Remarks, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, ErrInvoiceNotFound
		}
		return Invoice{}, err
	}
	return inv, nil
}

func (r *repository) ListInvoices(ctx context.Context, filter InvoiceFilter) ([]Invoice, error) {
	f := db.NewFilter().Where("i.billing_cycle_id =", filter.CycleID)
	db.WhereOptional(f, "i.business_id =", filter.BusinessID)
	db.WhereOptional(f, "i.customer_id =", filter.CustomerID)

	rows, err := r.pool.Query(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices i
		INNER JOIN customers c ON c.id = i.customer_id`+f.Clause()+`
		ORDER BY c.name, i.id`, f.Args()...)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	invoices := []Invoice{}
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

func (r *repository) ListSupplierHolidays(ctx context.Context, filter HolidayFilter) ([]SupplierHoliday, error) {
	f := db.NewFilter()
	db.WhereOptional(f, "business_id =", filter.BusinessID)
	db.WhereOptional(f, "end_date >=", filter.From)
	db.WhereOptional(f, "start_date <=", filter.To)
	return querySupplierHolidays(ctx, r.pool, f)
}

func querySupplierHolidays(ctx context.Context, exec db.Executor, f *db.Filter) ([]SupplierHoliday, error) {
	rows, err := exec.Query(ctx, `
		SELECT id, business_id, start_date, end_date, reason, created_at
		FROM supplier_holidays`+f.Clause()+`
		ORDER BY start_date, id`, f.Args()...)
	if err != nil {
		return nil, fmt.Errorf("list supplier holidays: %w", err)
	}
	defer rows.Close()

	out := []SupplierHoliday{}
	for rows.Next() {
		var h SupplierHoliday
		if err := rows.Scan(&h.ID, &h.BusinessID, &h.StartDate, &h.EndDate, &h.Reason, &h.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (r *repository) ListClientHolidays(ctx context.Context, filter HolidayFilter) ([]ClientHoliday, error) {
	f := db.NewFilter()
	db.WhereOptional(f, "business_id =", filter.BusinessID)
	db.WhereOptional(f, "customer_id =", filter.CustomerID)
	db.WhereOptional(f, "holiday_date >=", filter.From)
	db.WhereOptional(f, "holiday_date <=", filter.To)

	rows, err := r.pool.Query(ctx, `
		SELECT id, business_id, customer_id, holiday_date, reason, created_at
		FROM client_holidays`+f.Clause()+`
		ORDER BY holiday_date, customer_id`, f.Args()...)
	if err != nil {
		return nil, fmt.Errorf("list client holidays: %w", err)
	}
	defer rows.Close()

	out := []ClientHoliday{}
	for rows.Next() {
		var h ClientHoliday
		if err := rows.Scan(&h.ID, &h.BusinessID, &h.CustomerID, &h.HolidayDate, &h.Reason, &h.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

func (t *txRepository) LockPeriod(ctx context.Context, businessID int64, p Period) error {
	_, err := t.tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, shared.BillingLockKey(businessID, p.Month, p.Year))
	return err
}

// FindOrCreateCycle reports whether the cycle was newly created.
func (t *txRepository) FindOrCreateCycle(ctx context.Context, businessID int64, p Period) (Cycle, bool, error) {
	c, err := scanCycle(t.tx.QueryRow(ctx, `
		INSERT INTO billing_cycles (business_id, cycle_month, cycle_year)
		VALUES ($1, $2, $3)
		ON CONFLICT (business_id, cycle_month, cycle_year) DO NOTHING
		RETURNING `+cycleColumns, businessID, p.Month, p.Year))
	if err == nil {
		return c, true, nil
	}
	if !errors.Is(err, ErrCycleNotFound) {
		return Cycle{}, false, err
	}
	c, err = scanCycle(t.tx.QueryRow(ctx, `
		SELECT `+cycleColumns+`
		FROM billing_cycles
		WHERE business_id = $1 AND cycle_month = $2 AND cycle_year = $3`, businessID, p.Month, p.Year))
	return c, false, err
}

func (t *txRepository) DeleteInvoices(ctx context.Context, cycleID int64) (int64, error) {
	tag, err := t.tx.Exec(ctx, `DELETE FROM invoices WHERE billing_cycle_id = $1`, cycleID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (t *txRepository) ActiveCustomers(ctx context.Context, businessID int64) ([]BillableCustomer, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, name, rate_per_jug, holiday_billing_chargeable
		FROM customers
		WHERE business_id = $1 AND is_active
		ORDER BY id`, businessID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (BillableCustomer, error) {
		var c BillableCustomer
		err := row.Scan(&c.ID, &c.Name, &c.RatePerJug, &c.HolidayBillingChargeable)
		return c, err
	})
}

func (t *txRepository) SupplierHolidaysIn(ctx context.Context, businessID int64, p Period) ([]SupplierHoliday, error) {
	f := db.NewFilter().
		Where("business_id =", businessID).
		Where("end_date >=", p.Start()).
		Where("start_date <=", p.End())
	return querySupplierHolidays(ctx, t.tx, f)
}

// ClientHolidayDates groups the period's client holidays by customer.
func (t *txRepository) ClientHolidayDates(ctx context.Context, businessID int64, p Period) (map[int64][]time.Time, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT customer_id, holiday_date
		FROM client_holidays
		WHERE business_id = $1 AND holiday_date BETWEEN $2 AND $3`, businessID, p.Start(), p.End())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64][]time.Time)
	for rows.Next() {
		var (
			customerID int64
			date       time.Time
		)
		if err := rows.Scan(&customerID, &date); err != nil {
			return nil, err
		}
		out[customerID] = append(out[customerID], date)
	}
	return out, rows.Err()
}

// InsertInvoices queues one insert per invoice in a single round trip.
func (t *txRepository) InsertInvoices(ctx context.Context, invoices []Invoice) error {
	if len(invoices) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	const query = `
INSERT INTO invoices (
	billing_cycle_id, business_id, customer_id, total_days, supplier_hol_days, client_hol_days,
	chargeable_days, rate_per_jug, total_amount, discount, additional_charges, final_amount
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	for _, inv := range invoices {
		batch.Queue(query, inv.BillingCycleID, inv.BusinessID, inv.CustomerID, inv.TotalDays,
			inv.SupplierHolDays, inv.ClientHolDays, inv.ChargeableDays, inv.RatePerJug,
			inv.TotalAmount, inv.Discount, inv.AdditionalCharges, inv.FinalAmount)
	}
	results := t.tx.SendBatch(ctx, batch)
	for range invoices {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return err
		}
	}
	return results.Close()
}

func (t *txRepository) MarkGenerated(ctx context.Context, cycleID int64, at time.Time) error {
	_, err := t.tx.Exec(ctx, `UPDATE billing_cycles SET generated_at = $1 WHERE id = $2`, at, cycleID)
	return err
}

func (t *txRepository) GetInvoiceForUpdate(ctx context.Context, businessID, id int64) (Invoice, error) {
	return scanInvoice(t.tx.QueryRow(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices i
		INNER JOIN customers c ON c.id = i.customer_id
		WHERE i.id = $1 AND i.business_id = $2
		FOR UPDATE OF i`, id, businessID))
}

func (t *txRepository) UpdateInvoiceAdjustment(ctx context.Context, inv Invoice) (Invoice, error) {
	var updatedAt time.Time
	err := t.tx.QueryRow(ctx, `
		UPDATE invoices
		SET discount = $1, additional_charges = $2, final_amount = $3, remarks = $4, updated_at = NOW()
		WHERE id = $5
		RETURNING updated_at`,
		inv.Discount, inv.AdditionalCharges, inv.FinalAmount, inv.Remarks, inv.ID).Scan(&updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, ErrInvoiceNotFound
		}
		return Invoice{}, err
	}
	inv.UpdatedAt = updatedAt
	return inv, nil
}

func (t *txRepository) CustomerExists(ctx context.Context, businessID, customerID int64) (bool, error) {
	var ok bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM customers WHERE id = $1 AND business_id = $2)`, customerID, businessID).Scan(&ok)
	return ok, err
}

func (t *txRepository) InsertSupplierHoliday(ctx context.Context, h SupplierHoliday) (SupplierHoliday, error) {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO supplier_holidays (business_id, start_date, end_date, reason)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`, h.BusinessID, h.StartDate, h.EndDate, h.Reason).Scan(&h.ID, &h.CreatedAt)
	return h, err
}

func (t *txRepository) InsertClientHoliday(ctx context.Context, h ClientHoliday) (ClientHoliday, error) {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO client_holidays (business_id, customer_id, holiday_date, reason)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`, h.BusinessID, h.CustomerID, h.HolidayDate, h.Reason).Scan(&h.ID, &h.CreatedAt)
	if err != nil {
		switch {
		case db.IsUniqueViolation(err):
			return ClientHoliday{}, ErrDuplicateHoliday
		case db.IsForeignKeyViolation(err):
			return ClientHoliday{}, ErrCustomerNotFound
		}
		return ClientHoliday{}, err
	}
	return h, nil
}
