package permissions

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/gatehouse-app/gatehouse/internal/shared"
	"github.com/gatehouse-app/gatehouse/internal/view"
)

// Handler manages permission management endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
	audit     *shared.AuditLogger
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager, audit *shared.AuditLogger) *Handler {
	return &Handler{logger: logger, service: service, templates: templates, csrf: csrf, audit: audit}
}

// MountRoutes registers permission routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/new", h.createForm)
	r.Post("/", h.create)
	r.Get("/{id}", h.show)
	r.Get("/{id}/edit", h.editForm)
	r.Post("/{id}", h.update)
	r.Post("/{id}/delete", h.delete)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	q := shared.ListQuery{
		Search: r.URL.Query().Get("search"),
		Page:   pageParam(r),
	}
	perms, pagination, err := h.service.List(r.Context(), actor, q)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	h.render(w, r, "pages/permissions/list.html", map[string]any{
		"Permissions": perms,
		"Pagination":  pagination,
		"Search":      q.Search,
	}, http.StatusOK)
}

func (h *Handler) createForm(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	ok, err := h.service.guard.Has(r.Context(), actor, shared.PermCreatePermissions)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	if !ok {
		h.renderError(w, r, shared.ErrForbidden)
		return
	}
	h.render(w, r, "pages/permissions/form.html", map[string]any{
		"Form":   CreateInput{},
		"Errors": map[string]string{},
	}, http.StatusOK)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	actor := shared.ActorFromContext(r.Context())
	input := CreateInput{Name: r.PostFormValue("name")}
	perm, err := h.service.Create(r.Context(), actor, input)
	if err != nil {
		if ve, ok := shared.AsValidationError(err); ok {
			h.render(w, r, "pages/permissions/form.html", map[string]any{
				"Form":   input,
				"Errors": ve.Fields,
			}, http.StatusUnprocessableEntity)
			return
		}
		h.renderError(w, r, err)
		return
	}
	h.recordAudit(r, actor, "permission.create", perm.ID)
	h.redirectWithFlash(w, r, "/permissions", "success", "Permission created successfully.")
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	id, ok := idParam(r)
	if !ok {
		h.renderError(w, r, shared.ErrNotFound)
		return
	}
	perm, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	h.render(w, r, "pages/permissions/show.html", map[string]any{"Permission": perm}, http.StatusOK)
}

func (h *Handler) editForm(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	id, ok := idParam(r)
	if !ok {
		h.renderError(w, r, shared.ErrNotFound)
		return
	}
	ok, err := h.service.guard.Has(r.Context(), actor, shared.PermEditPermissions)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	if !ok {
		h.renderError(w, r, shared.ErrForbidden)
		return
	}
	perm, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	h.render(w, r, "pages/permissions/form.html", map[string]any{
		"Permission": perm,
		"Form":       UpdateInput{Name: perm.Name},
		"Errors":     map[string]string{},
	}, http.StatusOK)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	actor := shared.ActorFromContext(r.Context())
	id, ok := idParam(r)
	if !ok {
		h.renderError(w, r, shared.ErrNotFound)
		return
	}
	input := UpdateInput{Name: r.PostFormValue("name")}
	perm, err := h.service.Update(r.Context(), actor, id, input)
	if err != nil {
		if ve, ok := shared.AsValidationError(err); ok {
			h.render(w, r, "pages/permissions/form.html", map[string]any{
				"Permission": Permission{ID: id},
				"Form":       input,
				"Errors":     ve.Fields,
			}, http.StatusUnprocessableEntity)
			return
		}
		h.renderError(w, r, err)
		return
	}
	h.recordAudit(r, actor, "permission.update", perm.ID)
	h.redirectWithFlash(w, r, "/permissions", "success", "Permission updated successfully.")
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	id, ok := idParam(r)
	if !ok {
		h.renderError(w, r, shared.ErrNotFound)
		return
	}
	if err := h.service.Delete(r.Context(), actor, id); err != nil {
		h.renderError(w, r, err)
		return
	}
	h.recordAudit(r, actor, "permission.delete", id)
	h.redirectWithFlash(w, r, "/permissions", "success", "Permission deleted successfully.")
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template string, data map[string]any, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{Title: "Permissions", CSRFToken: csrfToken, Flash: flash, CurrentPath: r.URL.Path, Data: data}
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
		h.logger.Error("permissions handler", slog.Any("error", err))
		h.render(w, r, "pages/500.html", nil, http.StatusInternalServerError)
	}
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}

func (h *Handler) recordAudit(r *http.Request, actor shared.Actor, action string, id int64) {
	if h.audit == nil {
		return
	}
	log := shared.AuditLog{ActorID: actor.UserID, Action: action, Entity: "permission", EntityID: strconv.FormatInt(id, 10)}
	if err := h.audit.Record(r.Context(), log); err != nil {
		h.logger.Warn("audit record", slog.Any("error", err))
	}
}

func idParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func pageParam(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}
