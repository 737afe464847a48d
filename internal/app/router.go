package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/maintrack/maintrack/internal/auth"
	"github.com/maintrack/maintrack/internal/observability"
	"github.com/maintrack/maintrack/internal/platform/httpx"
	"github.com/maintrack/maintrack/internal/rbac"
	"github.com/maintrack/maintrack/internal/users"
	"github.com/maintrack/maintrack/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger       *slog.Logger
	Config       *Config
	AuthService  *auth.Service
	AuthHandler  *auth.Handler
	RBACHandler  *rbac.Handler
	UsersHandler *users.Handler
	JobHandler   *jobs.Handler
	Metrics      *observability.Metrics
	AccessLog    bool
}

// NewRouter constructs the chi.Router with maintrack defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	mw := MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}
	if params.AuthService != nil {
		mw.Authenticate = auth.Authenticate(params.AuthService, params.Logger)
	}
	for _, m := range MiddlewareStack(mw) {
		r.Use(m)
	}
	if params.AccessLog {
		r.Use(chimw.Logger)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	if params.AuthHandler != nil {
		params.AuthHandler.MountRoutes(r)
	}
	if params.RBACHandler != nil {
		params.RBACHandler.MountRoutes(r)
	}
	if params.UsersHandler != nil {
		params.UsersHandler.MountRoutes(r)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Message(w, http.StatusNotFound, http.StatusText(http.StatusNotFound))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Message(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
	})
	return r
}
