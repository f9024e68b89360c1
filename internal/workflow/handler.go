package workflow

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-crm/meridian-crm/internal/shared"
)

// Handler exposes the validator to UI drag/drop checks. The same package is
// imported directly by server-side write paths; this surface only exists so
// clients can pre-validate moves without a round trip through a mutation.
type Handler struct {
	logger *slog.Logger
}

// NewHandler constructs the workflow handler.
func NewHandler(logger *slog.Logger) *Handler {
	return &Handler{logger: logger}
}

// MountRoutes attaches workflow routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/validate", h.Validate)
	r.Get("/{entity}/states/{state}/next", h.NextStates)
}

// Validate answers whether from→to is legal for the entity type.
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	entity, err := ParseEntityType(r.URL.Query().Get("entity"))
	if err != nil {
		shared.RespondError(w, shared.NewValidationError("entity", "unknown entity type"))
		return
	}
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if from == "" || to == "" {
		shared.RespondError(w, shared.NewValidationError("from/to", "both states are required"))
		return
	}

	result, err := ValidateTransition(entity, from, to)
	if err != nil {
		h.logger.Error("validate transition", slog.Any("error", err))
		shared.RespondError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, result)
}

// NextStates returns the declared edge set for a state.
func (h *Handler) NextStates(w http.ResponseWriter, r *http.Request) {
	entity, err := ParseEntityType(chi.URLParam(r, "entity"))
	if err != nil {
		shared.RespondError(w, shared.NewValidationError("entity", "unknown entity type"))
		return
	}
	state := chi.URLParam(r, "state")

	next, err := SuggestedNextStates(entity, state)
	if err != nil {
		h.logger.Error("suggested next states", slog.Any("error", err))
		shared.RespondError(w, err)
		return
	}
	terminal, _ := IsTerminal(entity, state)
	shared.RespondJSON(w, http.StatusOK, map[string]any{
		"entity":      entity,
		"state":       state,
		"terminal":    terminal,
		"next_states": next,
	})
}
