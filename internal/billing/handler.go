package billing

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aqualedger/aqualedger/internal/platform/httpx"
	"github.com/aqualedger/aqualedger/internal/shared"
	"github.com/aqualedger/aqualedger/internal/tenant"
)

// Handler manages billing HTTP endpoints.
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
	r.Use(tenant.RequireRole(tenant.RoleSuperAdmin, tenant.RoleOwner, tenant.RoleManager))
	r.Get("/cycles", h.listCycles)
	r.Get("/cycles/{id}/invoices", h.listInvoices)
	r.Get("/holidays/supplier", h.listSupplierHolidays)
	r.Get("/holidays/client", h.listClientHolidays)

	r.Group(func(r chi.Router) {
		r.Use(tenant.RequireRole(tenant.RoleOwner, tenant.RoleManager))
		r.Post("/cycles", h.generate)
		r.Patch("/invoices/{id}", h.adjust)
		r.Post("/holidays/supplier", h.createSupplierHoliday)
		r.Post("/holidays/client", h.createClientHoliday)
	})
}

// generate handles POST /billing/cycles
func (h *Handler) generate(w http.ResponseWriter, r *http.Request) {
	businessID, ok := h.business(w, r)
	if !ok {
		return
	}
	var req GenerateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed body")
		return
	}
	result, err := h.service.Generate(r.Context(), businessID, req)
	if err != nil {
		h.fail(w, r, "generate billing cycle", err)
		return
	}
	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	httpx.JSON(w, status, result)
}

// listCycles handles GET /billing/cycles
func (h *Handler) listCycles(w http.ResponseWriter, r *http.Request) {
	t, _ := tenant.FromContext(r.Context())
	page, perPage := shared.PageFromQuery(r.URL.Query())
	cycles, pagination, err := h.service.ListCycles(r.Context(), t.Scope().BusinessID, page, perPage)
	if err != nil {
		h.fail(w, r, "list billing cycles", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": cycles, "pagination": pagination})
}

// listInvoices handles GET /billing/cycles/{id}/invoices
func (h *Handler) listInvoices(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	t, _ := tenant.FromContext(r.Context())
	cycle, invoices, err := h.service.ListInvoices(r.Context(), t.Scope().BusinessID, id)
	if err != nil {
		h.fail(w, r, "list invoices", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"cycle": cycle, "data": invoices})
}

// adjust handles PATCH /billing/invoices/{id}
func (h *Handler) adjust(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	businessID, ok := h.business(w, r)
	if !ok {
		return
	}
	var req AdjustRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed body")
		return
	}
	inv, err := h.service.AdjustInvoice(r.Context(), businessID, id, req)
	if err != nil {
		h.fail(w, r, "adjust invoice", err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

// createSupplierHoliday handles POST /billing/holidays/supplier
func (h *Handler) createSupplierHoliday(w http.ResponseWriter, r *http.Request) {
	businessID, ok := h.business(w, r)
	if !ok {
		return
	}
	var req SupplierHolidayRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed body")
		return
	}
	holiday, err := h.service.CreateSupplierHoliday(r.Context(), businessID, req)
	if err != nil {
		h.fail(w, r, "create supplier holiday", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, holiday)
}

// listSupplierHolidays handles GET /billing/holidays/supplier
func (h *Handler) listSupplierHolidays(w http.ResponseWriter, r *http.Request) {
	filter, ok := h.holidayFilter(w, r)
	if !ok {
		return
	}
	holidays, err := h.service.ListSupplierHolidays(r.Context(), filter)
	if err != nil {
		h.fail(w, r, "list supplier holidays", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": holidays})
}

// createClientHoliday handles POST /billing/holidays/client
func (h *Handler) createClientHoliday(w http.ResponseWriter, r *http.Request) {
	businessID, ok := h.business(w, r)
	if !ok {
		return
	}
	var req ClientHolidayRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed body")
		return
	}
	holiday, err := h.service.CreateClientHoliday(r.Context(), businessID, req)
	if err != nil {
		h.fail(w, r, "create client holiday", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, holiday)
}

// listClientHolidays handles GET /billing/holidays/client
func (h *Handler) listClientHolidays(w http.ResponseWriter, r *http.Request) {
	filter, ok := h.holidayFilter(w, r)
	if !ok {
		return
	}
	var err error
	if filter.CustomerID, err = httpx.QueryInt64(r, "customer_id"); err != nil {
		httpx.WriteError(w, err)
		return
	}
	holidays, err := h.service.ListClientHolidays(r.Context(), filter)
	if err != nil {
		h.fail(w, r, "list client holidays", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": holidays})
}

func (h *Handler) holidayFilter(w http.ResponseWriter, r *http.Request) (HolidayFilter, bool) {
	t, _ := tenant.FromContext(r.Context())
	filter := HolidayFilter{BusinessID: t.Scope().BusinessID}
	var err error
	if filter.From, err = httpx.QueryDate(r, "from"); err != nil {
		httpx.WriteError(w, err)
		return filter, false
	}
	if filter.To, err = httpx.QueryDate(r, "to"); err != nil {
		httpx.WriteError(w, err)
		return filter, false
	}
	return filter, true
}

func (h *Handler) business(w http.ResponseWriter, r *http.Request) (int64, bool) {
	t, _ := tenant.FromContext(r.Context())
	businessID, err := t.BusinessID()
	if err != nil {
		httpx.WriteError(w, err)
		return 0, false
	}
	return businessID, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error(msg, slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.WriteError(w, err)
}
