package modules

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-crm/meridian-crm/internal/shared"
)

// Handler exposes the modules enabled for the caller's tenant.
type Handler struct {
	logger *slog.Logger
	gate   *Gate
}

// NewHandler constructs the modules handler.
func NewHandler(logger *slog.Logger, gate *Gate) *Handler {
	return &Handler{logger: logger, gate: gate}
}

// MountRoutes attaches module routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.ListEnabled)
}

// ListEnabled returns the active modules enabled for the session tenant.
func (h *Handler) ListEnabled(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || sess.User() == "" {
		shared.RespondError(w, shared.ErrUnauthenticated)
		return
	}

	enabled, err := h.gate.EnabledModules(r.Context(), sess.Tenant())
	if err != nil {
		h.logger.Error("list enabled modules", slog.Any("error", err))
		shared.RespondError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, map[string]any{"modules": enabled})
}
