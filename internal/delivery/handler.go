package delivery

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aqualedger/aqualedger/internal/platform/httpx"
	"github.com/aqualedger/aqualedger/internal/shared"
	"github.com/aqualedger/aqualedger/internal/tenant"
)

// Handler manages delivery HTTP endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler creates a new handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers routes on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Group(func(r chi.Router) {
		r.Use(tenant.RequireRole(tenant.RoleOwner, tenant.RoleManager, tenant.RoleDeliveryBoy))
		r.Post("/", h.confirm)
		r.Post("/spot", h.spot)
	})
}

// confirm handles POST /deliveries
func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	t, _ := tenant.FromContext(r.Context())
	businessID, err := t.BusinessID()
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	var req ConfirmRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed body")
		return
	}
	view, err := h.service.Confirm(r.Context(), businessID, agentFor(t, req.DeliveryBoyID), req, r.Header.Get("Idempotency-Key"))
	if err != nil {
		h.fail(w, r, "confirm delivery", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, view)
}

// spot handles POST /deliveries/spot
func (h *Handler) spot(w http.ResponseWriter, r *http.Request) {
	t, _ := tenant.FromContext(r.Context())
	businessID, err := t.BusinessID()
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	var req SpotRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed body")
		return
	}
	view, err := h.service.Spot(r.Context(), businessID, t.Principal.UserID, req)
	if err != nil {
		h.fail(w, r, "spot delivery", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, view)
}

// list handles GET /deliveries
func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	t, _ := tenant.FromContext(r.Context())
	req := ListRequest{BusinessID: t.Scope().BusinessID}
	var err error
	if req.CustomerID, err = httpx.QueryInt64(r, "customer_id"); err != nil {
		httpx.WriteError(w, err)
		return
	}
	if req.DeliveryBoyID, err = httpx.QueryInt64(r, "delivery_boy_id"); err != nil {
		httpx.WriteError(w, err)
		return
	}
	if req.RouteID, err = httpx.QueryInt64(r, "route_id"); err != nil {
		httpx.WriteError(w, err)
		return
	}
	if req.From, err = httpx.QueryDate(r, "from"); err != nil {
		httpx.WriteError(w, err)
		return
	}
	if req.To, err = httpx.QueryDate(r, "to"); err != nil {
		httpx.WriteError(w, err)
		return
	}
	if t.Principal.Role == tenant.RoleDeliveryBoy {
		self := t.Principal.UserID
		req.DeliveryBoyID = &self
	}

	page, perPage := shared.PageFromQuery(r.URL.Query())
	views, pagination, err := h.service.List(r.Context(), req, page, perPage)
	if err != nil {
		h.fail(w, r, "list deliveries", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": views, "pagination": pagination})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error(msg, slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.WriteError(w, err)
}

// agentFor lets owners and managers record on behalf of a delivery boy.
func agentFor(t tenant.Tenant, requested *int64) int64 {
	if requested != nil && (t.Principal.Role == tenant.RoleOwner || t.Principal.Role == tenant.RoleManager) {
		return *requested
	}
	return t.Principal.UserID
}
