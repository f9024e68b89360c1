package notifications

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-crm/meridian-crm/internal/shared"
)

// Handler exposes the caller's notification feed.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers notification routes. The feed is personal, so session
// identity is the only guard.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/notifications", h.listMine)
	r.Post("/notifications/{id}/read", h.markRead)
}

func (h *Handler) listMine(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || sess.User() == "" {
		shared.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))

	items, pagination, err := h.service.ListMine(r.Context(), sess.Tenant(), sess.User(), page, perPage)
	if err != nil {
		h.logger.Error("list notifications", slog.Any("error", err))
		shared.RespondError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, map[string]any{
		"items":      items,
		"pagination": pagination,
	})
}

func (h *Handler) markRead(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || sess.User() == "" {
		shared.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	if err := h.service.MarkRead(r.Context(), sess.Tenant(), sess.User(), chi.URLParam(r, "id")); err != nil {
		shared.RespondError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
