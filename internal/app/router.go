package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/civitas-platform/civitas/internal/amendments"
	"github.com/civitas-platform/civitas/internal/audit"
	"github.com/civitas-platform/civitas/internal/auth"
	"github.com/civitas-platform/civitas/internal/authz"
	"github.com/civitas-platform/civitas/internal/blogs"
	"github.com/civitas-platform/civitas/internal/events"
	"github.com/civitas-platform/civitas/internal/groups"
	"github.com/civitas-platform/civitas/internal/messages"
	"github.com/civitas-platform/civitas/internal/notifications"
	"github.com/civitas-platform/civitas/internal/observability"
	"github.com/civitas-platform/civitas/internal/roles"
	"github.com/civitas-platform/civitas/internal/shared"
	"github.com/civitas-platform/civitas/internal/todos"
	"github.com/civitas-platform/civitas/internal/users"
	"github.com/civitas-platform/civitas/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	Grants         authz.GrantLoader

	AuthHandler          *auth.Handler
	UsersHandler         *users.Handler
	RolesHandler         *roles.Handler
	GroupsHandler        *groups.Handler
	EventsHandler        *events.Handler
	AmendmentsHandler    *amendments.Handler
	BlogsHandler         *blogs.Handler
	TodosHandler         *todos.Handler
	MessagesHandler      *messages.Handler
	NotificationsHandler *notifications.Handler
	AuditHandler         *audit.Handler
	JobHandler           *jobs.Handler
	Metrics              *observability.Metrics
}

// NewRouter constructs the chi.Router with Civitas defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Grants:         params.Grants,
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

	r.Route("/auth", params.AuthHandler.MountRoutes)
	if params.UsersHandler != nil {
		r.Route("/users", params.UsersHandler.MountRoutes)
	}
	if params.RolesHandler != nil {
		r.Route("/roles", params.RolesHandler.MountRoutes)
	}
	if params.GroupsHandler != nil {
		r.Route("/groups", params.GroupsHandler.MountRoutes)
	}
	if params.EventsHandler != nil {
		r.Route("/events", params.EventsHandler.MountRoutes)
	}
	if params.AmendmentsHandler != nil {
		r.Route("/amendments", params.AmendmentsHandler.MountRoutes)
	}
	if params.BlogsHandler != nil {
		r.Route("/blogs", params.BlogsHandler.MountRoutes)
	}
	if params.TodosHandler != nil {
		r.Route("/todos", params.TodosHandler.MountRoutes)
	}
	if params.MessagesHandler != nil {
		r.Route("/messages", params.MessagesHandler.MountRoutes)
	}
	if params.NotificationsHandler != nil {
		r.Route("/notifications", params.NotificationsHandler.MountRoutes)
	}
	if params.AuditHandler != nil {
		r.Route("/audit", params.AuditHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
