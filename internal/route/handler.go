package route

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aqualedger/aqualedger/internal/platform/httpx"
	"github.com/aqualedger/aqualedger/internal/shared"
	"github.com/aqualedger/aqualedger/internal/tenant"
)

// Handler manages route HTTP endpoints.
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

// MountRoutes registers the planning endpoints under /routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(tenant.RequireRole(tenant.RoleSuperAdmin, tenant.RoleOwner, tenant.RoleManager))
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Group(func(r chi.Router) {
		r.Use(tenant.RequireRole(tenant.RoleOwner, tenant.RoleManager))
		r.Post("/", h.create)
		r.Put("/{id}", h.update)
		r.Patch("/{id}/status", h.changeStatus)
		r.Delete("/{id}", h.delete)
	})
}

// MountAgentRoutes registers the delivery boy endpoints under /agent/routes.
func (h *Handler) MountAgentRoutes(r chi.Router) {
	r.Use(tenant.RequireRole(tenant.RoleDeliveryBoy))
	r.Get("/today", h.today)
	r.Post("/{id}/stops/{stopID}/confirm", h.confirmStop)
}

// list handles GET /routes
func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	t, _ := tenant.FromContext(r.Context())
	req := ListRequest{BusinessID: t.Scope().BusinessID}
	var err error
	if req.Date, err = httpx.QueryDate(r, "date"); err != nil {
		httpx.WriteError(w, err)
		return
	}
	if req.DeliveryBoyID, err = httpx.QueryInt64(r, "delivery_boy_id"); err != nil {
		httpx.WriteError(w, err)
		return
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := Status(raw)
		if !status.IsValid() {
			httpx.WriteError(w, ErrInvalidStatus)
			return
		}
		req.Status = &status
	}

	page, perPage := shared.PageFromQuery(r.URL.Query())
	rows, pagination, err := h.service.List(r.Context(), req, page, perPage)
	if err != nil {
		h.fail(w, r, "list routes", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": rows, "pagination": pagination})
}

// get handles GET /routes/{id}
func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	t, _ := tenant.FromContext(r.Context())
	rt, err := h.service.Get(r.Context(), t.Scope().BusinessID, id)
	if err != nil {
		h.fail(w, r, "get route", err)
		return
	}
	httpx.JSON(w, http.StatusOK, rt)
}

// create handles POST /routes
func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	t, _ := tenant.FromContext(r.Context())
	businessID, err := t.BusinessID()
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	var req CreateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed body")
		return
	}
	rt, err := h.service.Create(r.Context(), businessID, t.Principal.UserID, req)
	if err != nil {
		h.fail(w, r, "create route", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, rt)
}

// update handles PUT /routes/{id}
func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	businessID, id, ok := h.scoped(w, r)
	if !ok {
		return
	}
	var req UpdateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed body")
		return
	}
	rt, err := h.service.Update(r.Context(), businessID, id, req)
	if err != nil {
		h.fail(w, r, "update route", err)
		return
	}
	httpx.JSON(w, http.StatusOK, rt)
}

// changeStatus handles PATCH /routes/{id}/status
func (h *Handler) changeStatus(w http.ResponseWriter, r *http.Request) {
	businessID, id, ok := h.scoped(w, r)
	if !ok {
		return
	}
	var req StatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed body")
		return
	}
	rt, err := h.service.ChangeStatus(r.Context(), businessID, id, req)
	if err != nil {
		h.fail(w, r, "change route status", err)
		return
	}
	httpx.JSON(w, http.StatusOK, rt)
}

// delete handles DELETE /routes/{id}
func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	businessID, id, ok := h.scoped(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), businessID, id); err != nil {
		h.fail(w, r, "delete route", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// today handles GET /agent/routes/today
func (h *Handler) today(w http.ResponseWriter, r *http.Request) {
	t, _ := tenant.FromContext(r.Context())
	businessID, err := t.BusinessID()
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	routes, err := h.service.Today(r.Context(), businessID, t.Principal.UserID)
	if err != nil {
		h.fail(w, r, "today's routes", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": routes})
}

// confirmStop handles POST /agent/routes/{id}/stops/{stopID}/confirm
func (h *Handler) confirmStop(w http.ResponseWriter, r *http.Request) {
	businessID, routeID, ok := h.scoped(w, r)
	if !ok {
		return
	}
	stopID, err := httpx.PathID(r, "stopID")
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	var req ConfirmStopRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed body")
		return
	}
	t, _ := tenant.FromContext(r.Context())
	result, err := h.service.ConfirmStop(r.Context(), businessID, t.Principal.UserID, routeID, stopID, req)
	if err != nil {
		h.fail(w, r, "confirm stop", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

// scoped resolves the caller's business and the {id} path parameter.
func (h *Handler) scoped(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
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
