package tenant

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/aqualedger/aqualedger/internal/platform/httpx"
	"github.com/aqualedger/aqualedger/internal/shared"
)

type tenantContextKey struct{}

// WithTenant stores t in ctx.
func WithTenant(ctx context.Context, t Tenant) context.Context {
	return context.WithValue(ctx, tenantContextKey{}, t)
}

// FromContext returns the resolved tenant, if any.
func FromContext(ctx context.Context) (Tenant, bool) {
	t, ok := ctx.Value(tenantContextKey{}).(Tenant)
	return t, ok
}

// Middleware authenticates requests and gates them by tenant state.
type Middleware struct {
	Tokens   *TokenManager
	Resolver *Resolver
	Logger   *slog.Logger
}

// Authenticate parses the bearer token, resolves the tenant and rejects
// writes for suspended or expired businesses. Reads stay open so owners can
// still see their data.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			httpx.RespondError(w, ErrMissingToken)
			return
		}
		principal, err := m.Tokens.Parse(raw)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		t, err := m.Resolver.Resolve(r.Context(), principal)
		if err != nil {
			m.logger().Warn("resolve tenant", slog.Int64("user_id", principal.UserID), slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		if !t.Active && !isReadOnly(r.Method) {
			httpx.RespondError(w, ErrInactive)
			return
		}
		ctx := WithTenant(r.Context(), t)
		ctx = shared.ContextWithActor(ctx, shared.Actor{UserID: principal.UserID, Role: string(principal.Role)})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole admits only the listed roles.
func RequireRole(roles ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t, ok := FromContext(r.Context())
			if !ok {
				httpx.RespondError(w, ErrMissingToken)
				return
			}
			if !slices.Contains(roles, t.Principal.Role) {
				httpx.RespondError(w, ErrRoleDenied)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireFeature admits only tenants whose plan enables feature.
func RequireFeature(feature string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t, ok := FromContext(r.Context())
			if !ok {
				httpx.RespondError(w, ErrMissingToken)
				return
			}
			if !t.HasFeature(feature) {
				httpx.RespondError(w, ErrFeatureDisabled)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

func isReadOnly(method string) bool {
	return method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions
}
