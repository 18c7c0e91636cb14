package rbac

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gatehouse-app/gatehouse/internal/shared"
)

// DeniedRecorder counts permission denials, typically a metrics registry.
type DeniedRecorder interface {
	RecordDenied(permission string)
}

// Middleware wires authorization helpers for HTTP handlers.
type Middleware struct {
	Service Guard
	Logger  *slog.Logger
	Denied  DeniedRecorder
}

// ResolveActor reads the session user and stores the resolved actor in the
// request context. It never rejects; anonymous requests carry the zero
// actor. CRUD services receive the actor explicitly from there.
func (m Middleware) ResolveActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, _ := m.currentActor(r)
		ctx := shared.ContextWithActor(r.Context(), actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAny ensures the current actor holds at least one of the given
// permissions. Used for page routes whose gate lives outside a CRUD
// service (dashboard, profile).
func (m Middleware) RequireAny(perms ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(perms) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			actor := shared.ActorFromContext(r.Context())
			if actor.Anonymous() {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			for _, perm := range perms {
				ok, err := m.Service.Has(r.Context(), actor, perm)
				if err != nil {
					if m.Logger != nil {
						m.Logger.Error("rbac require any", slog.Any("error", err))
					}
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
					return
				}
				if ok {
					next.ServeHTTP(w, r)
					return
				}
			}
			if m.Denied != nil {
				m.Denied.RecordDenied(perms[0])
			}
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		})
	}
}

// RequireAuthenticated redirects anonymous requests to the login page.
func (m Middleware) RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := shared.ActorFromContext(r.Context())
		if actor.Anonymous() {
			http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m Middleware) currentActor(r *http.Request) (shared.Actor, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return shared.Actor{}, false
	}
	raw := strings.TrimSpace(sess.User())
	if raw == "" {
		return shared.Actor{}, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Error("rbac parse user id", slog.String("value", raw))
		}
		return shared.Actor{}, false
	}
	return shared.Actor{UserID: id}, true
}
