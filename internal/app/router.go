package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/gatehouse-app/gatehouse/internal/auth"
	"github.com/gatehouse-app/gatehouse/internal/dashboard"
	"github.com/gatehouse-app/gatehouse/internal/observability"
	"github.com/gatehouse-app/gatehouse/internal/permissions"
	"github.com/gatehouse-app/gatehouse/internal/profile"
	"github.com/gatehouse-app/gatehouse/internal/rbac"
	"github.com/gatehouse-app/gatehouse/internal/roles"
	"github.com/gatehouse-app/gatehouse/internal/shared"
	"github.com/gatehouse-app/gatehouse/internal/users"
	"github.com/gatehouse-app/gatehouse/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	SessionManager     *shared.SessionManager
	CSRFManager        *shared.CSRFManager
	AuthHandler        *auth.Handler
	DashboardHandler   *dashboard.Handler
	ProfileHandler     *profile.Handler
	UsersHandler       *users.Handler
	RolesHandler       *roles.Handler
	PermissionsHandler *permissions.Handler
	RBACMiddleware     rbac.Middleware
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with Gatehouse defaults.
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
	r.Use(params.RBACMiddleware.ResolveActor)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)

	r.Group(func(r chi.Router) {
		r.Use(params.RBACMiddleware.RequireAuthenticated)

		params.DashboardHandler.MountRoutes(r)
		r.Route("/profile", params.ProfileHandler.MountRoutes)
		r.Route("/users", func(r chi.Router) {
			r.Use(params.RBACMiddleware.RequireAny(
				shared.PermViewUsers, shared.PermCreateUsers, shared.PermEditUsers, shared.PermDeleteUsers))
			params.UsersHandler.MountRoutes(r)
		})
		r.Route("/roles", func(r chi.Router) {
			r.Use(params.RBACMiddleware.RequireAny(
				shared.PermViewRoles, shared.PermCreateRoles, shared.PermEditRoles, shared.PermDeleteRoles))
			params.RolesHandler.MountRoutes(r)
		})
		r.Route("/permissions", func(r chi.Router) {
			r.Use(params.RBACMiddleware.RequireAny(
				shared.PermViewPermissions, shared.PermCreatePermissions, shared.PermEditPermissions, shared.PermDeletePermissions))
			params.PermissionsHandler.MountRoutes(r)
		})
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		// Static assets need no session or CSRF handling; cache for an hour.
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	return r
}

func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
