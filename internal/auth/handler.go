package auth

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-crm/meridian-crm/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, sessions *shared.SessionManager, csrf *shared.CSRFManager) *Handler {
	return &Handler{
		logger:         logger,
		service:        service,
		sessionManager: sessions,
		csrfManager:    csrf,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/auth/login", h.login)
	r.Post("/auth/logout", h.logout)
	r.Get("/auth/me", h.me)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type identityResponse struct {
	UserID    string `json:"user_id"`
	TenantID  string `json:"tenant_id"`
	Email     string `json:"email,omitempty"`
	FullName  string `json:"full_name,omitempty"`
	CSRFToken string `json:"csrf_token,omitempty"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondError(w, shared.NewValidationError("", "email and password are required"))
		return
	}

	user, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		h.logger.Info("login rejected", slog.String("email", req.Email))
		shared.RespondJSON(w, http.StatusUnauthorized, shared.ErrorBody{
			Error:   "Unauthorized",
			Message: "Invalid email or password.",
		})
		return
	}

	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		shared.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	sess.SetIdentity(user.ID, user.TenantID)

	expiresAt := time.Now().Add(h.sessionManager.TTL())
	if err := h.service.RegisterSession(r.Context(), sess.ID, user.ID, expiresAt, r.RemoteAddr, r.UserAgent()); err != nil {
		h.logger.Error("register session", slog.Any("error", err))
	}

	csrfToken, err := h.csrfManager.EnsureToken(r.Context(), sess)
	if err != nil {
		h.logger.Error("issue csrf token", slog.Any("error", err))
	}

	shared.RespondJSON(w, http.StatusOK, identityResponse{
		UserID:    user.ID,
		TenantID:  user.TenantID,
		Email:     user.Email,
		FullName:  user.FullName,
		CSRFToken: csrfToken,
	})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || sess.User() == "" {
		shared.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	if err := h.service.RemoveSession(r.Context(), sess.ID); err != nil {
		h.logger.Error("remove session", slog.Any("error", err))
	}
	h.sessionManager.Destroy(sess)
	shared.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || sess.User() == "" {
		shared.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	shared.RespondJSON(w, http.StatusOK, identityResponse{
		UserID:   sess.User(),
		TenantID: sess.Tenant(),
	})
}
