package customers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/aqualedger/aqualedger/internal/tenant"
)

func asRole(role tenant.Role, business *tenant.Business) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t := tenant.Tenant{Principal: tenant.Principal{UserID: 5, Role: role}, Business: business, Active: true}
			if business != nil {
				t.Principal.BusinessID = &business.ID
			}
			next.ServeHTTP(w, r.WithContext(tenant.WithTenant(r.Context(), t)))
		})
	}
}

func newHandlerRouter(repo *memoryRepo, role tenant.Role, business *tenant.Business) http.Handler {
	r := chi.NewRouter()
	r.Use(asRole(role, business))
	r.Route("/customers", NewHandler(nil, newTestService(repo)).MountRoutes)
	return r
}

func send(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandlerBalanceAndPayments(t *testing.T) {
	repo := newMemoryRepo()
	business := &tenant.Business{ID: 1, Status: tenant.StatusActive}
	manager := newHandlerRouter(repo, tenant.RoleManager, business)

	rec := send(manager, http.MethodGet, "/customers/10", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Contains(t, rec.Body.String(), `"payment_status":"Overdue"`)

	rec = send(manager, http.MethodPost, "/customers/10/payments", `{"amount":100,"method":"UPI"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Contains(t, rec.Body.String(), "Received ₹100.00 via UPI")
	require.Len(t, repo.payments, 1)

	rec = send(manager, http.MethodPost, "/customers/10/charges", `{"amount":20,"reason":"broken jug"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Len(t, repo.charges, 1)

	rec = send(manager, http.MethodPost, "/customers/10/payments", `{"amount":`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = send(manager, http.MethodPost, "/customers/10/payments", `{"amount":10,"method":"Pending"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = send(manager, http.MethodGet, "/customers/20", "")
	require.Equal(t, http.StatusNotFound, rec.Code, "other business")

	rec = send(manager, http.MethodGet, "/customers/abc", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerRoles(t *testing.T) {
	repo := newMemoryRepo()
	business := &tenant.Business{ID: 1, Status: tenant.StatusActive}

	boy := newHandlerRouter(repo, tenant.RoleDeliveryBoy, business)
	rec := send(boy, http.MethodPost, "/customers/10/payments", `{"amount":10,"method":"Cash"}`)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Empty(t, repo.payments)

	admin := newHandlerRouter(repo, tenant.RoleSuperAdmin, nil)
	rec = send(admin, http.MethodGet, "/customers/20", "")
	require.Equal(t, http.StatusOK, rec.Code, "unscoped reads see every business")
}
