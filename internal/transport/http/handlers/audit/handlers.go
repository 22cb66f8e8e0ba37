package audithandler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Migiro-Johans/HRS/internal/domain/audit"
	"github.com/Migiro-Johans/HRS/internal/transport/http/api"
	"github.com/Migiro-Johans/HRS/internal/transport/http/middleware"
	"github.com/Migiro-Johans/HRS/internal/transport/http/shared"
)

type Handler struct {
	Service *audit.Service
}

func NewHandler(service *audit.Service) *Handler {
	return &Handler{Service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/audit", func(r chi.Router) {
		r.Get("/events", h.handleListEvents)
	})
}

func (h *Handler) handleListEvents(w http.ResponseWriter, r *http.Request) {
	page := shared.ParsePagination(r, 100, 500)
	filter := audit.Filter{
		Action:     r.URL.Query().Get("action"),
		EntityType: r.URL.Query().Get("entityType"),
		Actor:      r.URL.Query().Get("actor"),
	}

	total, err := h.Service.Count(r.Context(), filter)
	if err != nil {
		slog.Warn("audit count failed", "err", err)
	}

	events, err := h.Service.List(r.Context(), filter, page.Limit, page.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "audit_list_failed", "failed to list audit events", middleware.GetRequestID(r.Context()))
		return
	}

	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	api.Success(w, events, middleware.GetRequestID(r.Context()))
}
