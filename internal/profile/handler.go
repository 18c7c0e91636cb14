package profile

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gatehouse-app/gatehouse/internal/shared"
	"github.com/gatehouse-app/gatehouse/internal/view"
)

// Handler serves the signed-in user's profile pages.
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

// MountRoutes registers profile routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.show)
	r.Get("/edit", h.editForm)
	r.Post("/", h.update)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	prof, err := h.service.Get(r.Context(), actor)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	h.render(w, r, "pages/profile/show.html", map[string]any{"Profile": prof}, http.StatusOK)
}

func (h *Handler) editForm(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	prof, err := h.service.Get(r.Context(), actor)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	h.render(w, r, "pages/profile/form.html", map[string]any{
		"Form":   UpdateInput{Name: prof.Name, Email: prof.Email},
		"Errors": map[string]string{},
	}, http.StatusOK)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	actor := shared.ActorFromContext(r.Context())
	input := UpdateInput{
		Name:            r.PostFormValue("name"),
		Email:           r.PostFormValue("email"),
		Password:        r.PostFormValue("password"),
		PasswordConfirm: r.PostFormValue("password_confirmation"),
	}
	if _, err := h.service.Update(r.Context(), actor, input); err != nil {
		if ve, ok := shared.AsValidationError(err); ok {
			h.render(w, r, "pages/profile/form.html", map[string]any{
				"Form":   input,
				"Errors": ve.Fields,
			}, http.StatusUnprocessableEntity)
			return
		}
		h.renderError(w, r, err)
		return
	}
	h.redirectWithFlash(w, r, "/profile", "success", "Profile updated successfully.")
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template string, data map[string]any, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{Title: "Profile", CSRFToken: csrfToken, Flash: flash, CurrentPath: r.URL.Path, Data: data}
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
		h.logger.Error("profile handler", slog.Any("error", err))
		h.render(w, r, "pages/500.html", nil, http.StatusInternalServerError)
	}
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}
