package customers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aqualedger/aqualedger/internal/platform/httpx"
	"github.com/aqualedger/aqualedger/internal/tenant"
)

// Handler manages customer balance endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler creates a new handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers routes on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{id}", h.get)
	r.Group(func(r chi.Router) {
		r.Use(tenant.RequireRole(tenant.RoleOwner, tenant.RoleManager))
		r.Post("/{id}/payments", h.recordPayment)
		r.Post("/{id}/charges", h.addCharge)
	})
}

// get handles GET /customers/{id}
func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	t, _ := tenant.FromContext(r.Context())
	balance, err := h.service.Get(r.Context(), t.Scope().BusinessID, id)
	if err != nil {
		h.fail(w, r, "get customer", err)
		return
	}
	httpx.JSON(w, http.StatusOK, balance)
}

// recordPayment handles POST /customers/{id}/payments
func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	businessID, id, ok := scoped(w, r)
	if !ok {
		return
	}
	var req PaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed body")
		return
	}
	receipt, err := h.service.RecordPayment(r.Context(), businessID, id, req)
	if err != nil {
		h.fail(w, r, "record payment", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, receipt)
}

// addCharge handles POST /customers/{id}/charges
func (h *Handler) addCharge(w http.ResponseWriter, r *http.Request) {
	businessID, id, ok := scoped(w, r)
	if !ok {
		return
	}
	var req ChargeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed body")
		return
	}
	receipt, err := h.service.AddCharge(r.Context(), businessID, id, req)
	if err != nil {
		h.fail(w, r, "add charge", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, receipt)
}

func scoped(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteError(w, err)
		return 0, 0, false
	}
	t, _ := tenant.FromContext(r.Context())
	businessID, err := t.BusinessID()
	if err != nil {
		httpx.WriteError(w, err)
		return 0, 0, false
	}
	return businessID, id, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error(msg, slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.WriteError(w, err)
}
