package tenant

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/aqualedger/aqualedger/internal/platform/db"
)

type repository struct {
	exec db.Executor
}

// NewRepository creates a Postgres-backed tenant repository.
func NewRepository(exec db.Executor) Repository {
	return &repository{exec: exec}
}

func (r *repository) GetBusiness(ctx context.Context, id int64) (Business, error) {
	var b Business
	err := r.exec.QueryRow(ctx, `
		SELECT id, name, status, plan_id, subscription_expiry
		FROM businesses
		WHERE id = $1
	`, id).Scan(&b.ID, &b.Name, &b.Status, &b.PlanID, &b.SubscriptionExpiry)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Business{}, ErrBusinessNotFound
		}
		return Business{}, err
	}
	return b, nil
}

func (r *repository) GetPlan(ctx context.Context, id int64) (Plan, error) {
	var p Plan
	err := r.exec.QueryRow(ctx, `
		SELECT id, name, features, max_customers, max_delivery_boys
		FROM plans
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Features, &p.MaxCustomers, &p.MaxDeliveryBoys)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Plan{}, ErrPlanNotFound
		}
		return Plan{}, err
	}
	return p, nil
}

func (r *repository) ListActiveBusinessIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.exec.Query(ctx, `
		SELECT id FROM businesses
		WHERE status <> 'suspended'
		  AND (subscription_expiry IS NULL OR subscription_expiry >= CURRENT_DATE)
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}
