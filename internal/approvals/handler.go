package approvals

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-crm/meridian-crm/internal/authz"
	"github.com/meridian-crm/meridian-crm/internal/shared"
)

// Handler wires HTTP endpoints for approval requests.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	authz     authz.Middleware
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, authz authz.Middleware) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		authz:     authz,
		validator: validator.New(),
	}
}

// MountRoutes registers the approval routes. Listing is guarded by the read
// capability; the decision endpoints authorize inside the service so the
// approver-list check and the capability check share one code path.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.Require("approvals", authz.ActionRead))
		r.Get("/approvals", h.listPending)
		r.Get("/approvals/{id}", h.show)
	})
	r.Post("/approvals/{id}/approve", h.approve)
	r.Post("/approvals/{id}/reject", h.reject)
}

type rejectRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

func (h *Handler) listPending(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || sess.User() == "" {
		shared.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))

	requests, pagination, err := h.service.ListPending(r.Context(), sess.Tenant(), page, perPage)
	if err != nil {
		h.logger.Error("list pending approvals", slog.Any("error", err))
		shared.RespondError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, map[string]any{
		"items":      requests,
		"pagination": pagination,
	})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || sess.User() == "" {
		shared.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	request, err := h.service.GetForDecider(r.Context(), sess.User(), chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, request)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, DecisionApprove, nil)
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	var req rejectRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondError(w, shared.NewValidationError("reason", "a reason is required to reject a request"))
		return
	}
	h.decide(w, r, DecisionReject, &req.Reason)
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, decision Decision, reason *string) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || sess.User() == "" {
		shared.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	request, err := h.service.Decide(r.Context(), chi.URLParam(r, "id"), sess.User(), decision, reason)
	if err != nil {
		h.logger.Info("approval decision rejected",
			slog.String("request_id", chi.URLParam(r, "id")),
			slog.String("decision", string(decision)),
			slog.Any("error", err))
		shared.RespondError(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, request)
}
