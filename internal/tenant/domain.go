// Package tenant resolves which business a request acts for and which plan
// features and limits apply to it.
package tenant

import (
	"fmt"
	"slices"
	"time"

	"github.com/aqualedger/aqualedger/internal/platform/httpx"
)

// Role is the caller's role within a business.
type Role string

const (
	RoleSuperAdmin  Role = "super_admin"
	RoleOwner       Role = "owner"
	RoleManager     Role = "manager"
	RoleDeliveryBoy Role = "delivery_boy"
)

// IsValid checks if the role is known.
func (r Role) IsValid() bool {
	switch r {
	case RoleSuperAdmin, RoleOwner, RoleManager, RoleDeliveryBoy:
		return true
	default:
		return false
	}
}

// Status is the subscription state of a business.
type Status string

const (
	StatusTrial     Status = "trial"
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
)

// Plan features gated by middleware.
const (
	FeatureRoutes  = "routes"
	FeatureBilling = "billing"
)

// Domain errors.
var (
	ErrBusinessNotFound = fmt.Errorf("tenant: business %w", httpx.ErrNotFound)
	ErrPlanNotFound     = fmt.Errorf("tenant: plan %w", httpx.ErrNotFound)
	ErrInactive         = fmt.Errorf("tenant: subscription suspended or expired: %w", httpx.ErrForbidden)
	ErrFeatureDisabled  = fmt.Errorf("tenant: feature not in plan: %w", httpx.ErrForbidden)
	ErrRoleDenied       = fmt.Errorf("tenant: role not permitted: %w", httpx.ErrForbidden)
	ErrScopeRequired    = fmt.Errorf("tenant: business scope required: %w", httpx.ErrValidation)
	ErrMissingToken     = fmt.Errorf("tenant: missing bearer token: %w", httpx.ErrUnauthorized)
	ErrInvalidToken     = fmt.Errorf("tenant: invalid token: %w", httpx.ErrUnauthorized)
)

// Business is a subscribing water supplier.
type Business struct {
	ID                 int64      `json:"id"`
	Name               string     `json:"name"`
	Status             Status     `json:"status"`
	PlanID             int64      `json:"plan_id"`
	SubscriptionExpiry *time.Time `json:"subscription_expiry,omitempty"`
}

// IsActive reports whether the business may perform writes at now.
func (b Business) IsActive(now time.Time) bool {
	if b.Status == StatusSuspended {
		return false
	}
	if b.SubscriptionExpiry != nil && now.After(*b.SubscriptionExpiry) {
		return false
	}
	return true
}

// Plan is a subscription tier.
type Plan struct {
	ID              int64    `json:"id"`
	Name            string   `json:"name"`
	Features        []string `json:"features"`
	MaxCustomers    int      `json:"max_customers"`
	MaxDeliveryBoys int      `json:"max_delivery_boys"`
}

// HasFeature reports whether the plan enables feature.
func (p Plan) HasFeature(feature string) bool {
	return slices.Contains(p.Features, feature)
}

// Principal is the authenticated caller.
type Principal struct {
	UserID     int64
	Role       Role
	BusinessID *int64
}

// Scope narrows queries to one business. A nil BusinessID means unscoped,
// which only super admins get.
type Scope struct {
	BusinessID *int64
}

// Tenant is the resolved request context.
type Tenant struct {
	Principal Principal
	Business  *Business
	Plan      *Plan
	Active    bool
}

// Scope returns the query scope for this tenant.
func (t Tenant) Scope() Scope {
	if t.Business == nil {
		return Scope{}
	}
	id := t.Business.ID
	return Scope{BusinessID: &id}
}

// BusinessID returns the scoped business or ErrScopeRequired.
func (t Tenant) BusinessID() (int64, error) {
	if t.Business == nil {
		return 0, ErrScopeRequired
	}
	return t.Business.ID, nil
}

// HasFeature reports whether the tenant's plan enables feature. Unscoped
// super admins are not gated.
func (t Tenant) HasFeature(feature string) bool {
	if t.Principal.Role == RoleSuperAdmin && t.Business == nil {
		return true
	}
	return t.Plan != nil && t.Plan.HasFeature(feature)
}
