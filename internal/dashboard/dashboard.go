// Package dashboard serves the landing page shown after login: entity
// counts plus the actor's effective permission set.
package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatehouse-app/gatehouse/internal/rbac"
	"github.com/gatehouse-app/gatehouse/internal/shared"
	"github.com/gatehouse-app/gatehouse/internal/view"
)

// Stats are the headline counts on the dashboard.
type Stats struct {
	Users       int64
	Roles       int64
	Permissions int64
}

// Repository defines persistence operations for the dashboard.
type Repository interface {
	Stats(ctx context.Context) (Stats, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Stats counts users, roles and permissions in one round trip.
func (r *PGRepository) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := r.pool.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM users),
			(SELECT count(*) FROM roles),
			(SELECT count(*) FROM permissions)`).
		Scan(&s.Users, &s.Roles, &s.Permissions)
	return s, err
}

var _ Repository = (*PGRepository)(nil)

// Service gates the dashboard behind the view permission.
type Service struct {
	guard rbac.Guard
	repo  Repository
}

// NewService builds Service instance.
func NewService(guard rbac.Guard, repo Repository) *Service {
	return &Service{guard: guard, repo: repo}
}

// Overview returns the stats and the actor's permission names.
func (s *Service) Overview(ctx context.Context, actor shared.Actor) (Stats, []string, error) {
	ok, err := s.guard.Has(ctx, actor, shared.PermViewDashboard)
	if err != nil {
		return Stats{}, nil, err
	}
	if !ok {
		return Stats{}, nil, shared.ErrForbidden
	}
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return Stats{}, nil, err
	}
	granted, err := s.guard.EffectivePermissions(ctx, actor)
	if err != nil {
		return Stats{}, nil, err
	}
	return stats, granted, nil
}

// Handler renders the dashboard page.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	return &Handler{logger: logger, service: service, templates: templates, csrf: csrf}
}

// MountRoutes registers the dashboard route.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.show)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	stats, granted, err := h.service.Overview(r.Context(), actor)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	h.render(w, r, "pages/dashboard.html", map[string]any{
		"Stats":       stats,
		"Permissions": granted,
	}, http.StatusOK)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template string, data map[string]any, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{Title: "Dashboard", CSRFToken: csrfToken, Flash: flash, CurrentPath: r.URL.Path, Data: data}
	w.WriteHeader(status)
	if err := h.templates.Render(w, template, viewData); err != nil {
		h.logger.Error("render template", slog.Any("error", err))
	}
}

func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, shared.ErrForbidden):
		h.render(w, r, "pages/403.html", nil, http.StatusForbidden)
	case errors.Is(err, shared.ErrNotFound):
		h.render(w, r, "pages/404.html", nil, http.StatusNotFound)
	default:
		h.logger.Error("dashboard handler", slog.Any("error", err))
		h.render(w, r, "pages/500.html", nil, http.StatusInternalServerError)
	}
}
