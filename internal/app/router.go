package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/meridian-crm/meridian-crm/internal/approvals"
	"github.com/meridian-crm/meridian-crm/internal/auth"
	"github.com/meridian-crm/meridian-crm/internal/crm"
	"github.com/meridian-crm/meridian-crm/internal/modules"
	"github.com/meridian-crm/meridian-crm/internal/notifications"
	"github.com/meridian-crm/meridian-crm/internal/observability"
	"github.com/meridian-crm/meridian-crm/internal/shared"
	"github.com/meridian-crm/meridian-crm/internal/users"
	"github.com/meridian-crm/meridian-crm/internal/workflow"
	"github.com/meridian-crm/meridian-crm/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager

	AuthHandler          *auth.Handler
	ModulesHandler       *modules.Handler
	WorkflowHandler      *workflow.Handler
	CRMHandler           *crm.Handler
	ApprovalsHandler     *approvals.Handler
	NotificationsHandler *notifications.Handler
	UsersHandler         *users.Handler
	JobHandler           *jobs.Handler

	Metrics *observability.Metrics
}

// NewRouter constructs the chi.Router with Meridian defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Get("/metrics", params.Metrics.Handler().ServeHTTP)
	}

	if params.AuthHandler != nil {
		params.AuthHandler.MountRoutes(r)
	}

	r.Route("/api/v1", func(api chi.Router) {
		if params.ModulesHandler != nil {
			api.Route("/modules", func(mr chi.Router) {
				params.ModulesHandler.MountRoutes(mr)
			})
		}
		if params.WorkflowHandler != nil {
			api.Route("/workflow", func(wf chi.Router) {
				params.WorkflowHandler.MountRoutes(wf)
			})
		}
		if params.CRMHandler != nil {
			params.CRMHandler.MountRoutes(api)
		}
		if params.ApprovalsHandler != nil {
			params.ApprovalsHandler.MountRoutes(api)
		}
		if params.NotificationsHandler != nil {
			params.NotificationsHandler.MountRoutes(api)
		}
		if params.UsersHandler != nil {
			params.UsersHandler.MountRoutes(api)
		}
	})

	if params.JobHandler != nil {
		r.Route("/jobs", func(jr chi.Router) {
			params.JobHandler.MountRoutes(jr)
		})
	}

	return r
}
