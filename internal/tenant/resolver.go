package tenant

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/aqualedger/aqualedger/internal/platform/cache"
)

// Repository loads businesses and plans.
type Repository interface {
	GetBusiness(ctx context.Context, id int64) (Business, error)
	GetPlan(ctx context.Context, id int64) (Plan, error)
	ListActiveBusinessIDs(ctx context.Context) ([]int64, error)
}

// PlanCache holds plans by id for a bounded time.
type PlanCache interface {
	Get(ctx context.Context, planID int64) (Plan, bool, error)
	Set(ctx context.Context, planID int64, plan Plan) error
	Invalidate(ctx context.Context, planID int64) error
}

// Resolver turns a principal into a Tenant.
type Resolver struct {
	repo   Repository
	plans  PlanCache
	logger *slog.Logger
	group  singleflight.Group
	now    func() time.Time
}

// NewResolver constructs a Resolver. plans may be nil to disable caching.
func NewResolver(repo Repository, plans PlanCache, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{repo: repo, plans: plans, logger: logger, now: time.Now}
}

// Resolve loads the business and plan for p. Unscoped super admins resolve
// to an active tenant with no business.
func (r *Resolver) Resolve(ctx context.Context, p Principal) (Tenant, error) {
	t := Tenant{Principal: p, Active: true}
	if p.BusinessID == nil {
		if p.Role != RoleSuperAdmin {
			return Tenant{}, ErrScopeRequired
		}
		return t, nil
	}
	business, err := r.repo.GetBusiness(ctx, *p.BusinessID)
	if err != nil {
		return Tenant{}, fmt.Errorf("resolve business %d: %w", *p.BusinessID, err)
	}
	plan, err := r.Plan(ctx, business.PlanID)
	if err != nil {
		return Tenant{}, fmt.Errorf("resolve plan %d: %w", business.PlanID, err)
	}
	t.Business = &business
	t.Plan = &plan
	t.Active = business.IsActive(r.now())
	return t, nil
}

// Plan returns a plan through the cache. Concurrent misses for the same
// plan share one repository load.
func (r *Resolver) Plan(ctx context.Context, planID int64) (Plan, error) {
	if r.plans != nil {
		plan, ok, err := r.plans.Get(ctx, planID)
		if err != nil {
			r.logger.Warn("plan cache get", slog.Int64("plan_id", planID), slog.Any("error", err))
		} else if ok {
			return plan, nil
		}
	}
	v, err, _ := r.group.Do(strconv.FormatInt(planID, 10), func() (any, error) {
		plan, err := r.repo.GetPlan(ctx, planID)
		if err != nil {
			return Plan{}, err
		}
		if r.plans != nil {
			if err := r.plans.Set(ctx, planID, plan); err != nil {
				r.logger.Warn("plan cache set", slog.Int64("plan_id", planID), slog.Any("error", err))
			}
		}
		return plan, nil
	})
	if err != nil {
		return Plan{}, err
	}
	return v.(Plan), nil
}

// InvalidatePlan drops a cached plan after it changes.
func (r *Resolver) InvalidatePlan(ctx context.Context, planID int64) error {
	if r.plans == nil {
		return nil
	}
	return r.plans.Invalidate(ctx, planID)
}

// MemoryPlanCache keeps plans in process memory.
type MemoryPlanCache struct {
	ttl *cache.TTL[int64, Plan]
}

// NewMemoryPlanCache builds an in-process plan cache.
func NewMemoryPlanCache(ttl time.Duration, now func() time.Time) *MemoryPlanCache {
	return &MemoryPlanCache{ttl: cache.NewTTL[int64, Plan](ttl, now)}
}

func (c *MemoryPlanCache) Get(_ context.Context, planID int64) (Plan, bool, error) {
	p, ok := c.ttl.Get(planID)
	return p, ok, nil
}

func (c *MemoryPlanCache) Set(_ context.Context, planID int64, plan Plan) error {
	c.ttl.Set(planID, plan)
	return nil
}

func (c *MemoryPlanCache) Invalidate(_ context.Context, planID int64) error {
	c.ttl.Delete(planID)
	return nil
}

// RedisPlanCache shares plans across processes through Redis.
type RedisPlanCache struct {
	store *cache.RedisJSON[Plan]
}

// NewRedisPlanCache wraps a Redis JSON cache.
func NewRedisPlanCache(store *cache.RedisJSON[Plan]) *RedisPlanCache {
	return &RedisPlanCache{store: store}
}

func (c *RedisPlanCache) Get(ctx context.Context, planID int64) (Plan, bool, error) {
	return c.store.Get(ctx, strconv.FormatInt(planID, 10))
}

func (c *RedisPlanCache) Set(ctx context.Context, planID int64, plan Plan) error {
	return c.store.Set(ctx, strconv.FormatInt(planID, 10), plan)
}

func (c *RedisPlanCache) Invalidate(ctx context.Context, planID int64) error {
	return c.store.Delete(ctx, strconv.FormatInt(planID, 10))
}
