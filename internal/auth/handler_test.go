package auth_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/gatehouse-app/gatehouse/internal/auth"
	"github.com/gatehouse-app/gatehouse/internal/shared"
	"github.com/gatehouse-app/gatehouse/internal/view"
	_ "github.com/gatehouse-app/gatehouse/testing"
)

type stubRepo struct {
	user     *auth.User
	sessions map[string]int64
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	if s.user == nil || s.user.Email != email {
		return nil, shared.ErrNotFound
	}
	return s.user, nil
}

func (s *stubRepo) CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	if s.sessions == nil {
		s.sessions = make(map[string]int64)
	}
	s.sessions[id] = userID
	return nil
}

func (s *stubRepo) DeleteSession(ctx context.Context, id string) error {
	delete(s.sessions, id)
	return nil
}

func slogDiscard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newAuthHandler(t *testing.T, repo auth.Repository) (*auth.Handler, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessionManager := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	csrfManager := shared.NewCSRFManager("csrfsecret")
	templates, err := view.NewEngine()
	if err != nil {
		t.Fatalf("templates: %v", err)
	}
	logger := slogDiscard()
	handler := auth.NewHandler(logger, auth.NewService(repo), templates, sessionManager, csrfManager)
	return handler, sessionManager
}

func primeSession(t *testing.T, handler *auth.Handler, sessionManager *shared.SessionManager) *shared.Session {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/auth/login", nil)
	sess, err := sessionManager.Load(context.Background(), req)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	ctx := shared.ContextWithSession(req.Context(), sess)
	req = req.WithContext(ctx)
	res := httptest.NewRecorder()
	handler.ShowLoginForTest(res, req)
	if err := sessionManager.Commit(ctx, res, req, sess); err != nil {
		t.Fatalf("commit session: %v", err)
	}
	if res.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", res.Code)
	}
	return sess
}

func postLogin(t *testing.T, handler *auth.Handler, sessionManager *shared.SessionManager, sess *shared.Session, form url.Values) (*httptest.ResponseRecorder, *shared.Session) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: sessionManager.CookieName(), Value: sess.ID})

	loaded, err := sessionManager.Load(context.Background(), req)
	if err != nil {
		t.Fatalf("load session for post: %v", err)
	}
	ctx := shared.ContextWithSession(req.Context(), loaded)
	req = req.WithContext(ctx)

	res := httptest.NewRecorder()
	handler.HandleLoginForTest(res, req)
	if err := sessionManager.Commit(ctx, res, req, loaded); err != nil {
		t.Fatalf("commit session post: %v", err)
	}
	return res, loaded
}

func TestLoginPage(t *testing.T) {
	handler, sessionManager := newAuthHandler(t, &stubRepo{})

	sess := primeSession(t, handler, sessionManager)
	if sess.Get(shared.CSRFSessionKey) == "" {
		t.Fatalf("csrf token not set")
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("correct-pass"), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	repo := &stubRepo{user: &auth.User{ID: 1, Email: "admin@example.com", PasswordHash: string(hashed)}}
	handler, sessionManager := newAuthHandler(t, repo)

	sess := primeSession(t, handler, sessionManager)

	form := url.Values{}
	form.Set("email", "admin@example.com")
	form.Set("password", "wrong-pass")
	form.Set("csrf_token", sess.Get(shared.CSRFSessionKey))

	res, loaded := postLogin(t, handler, sessionManager, sess, form)

	if res.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "These credentials do not match our records.") {
		t.Fatalf("expected credential error in response")
	}
	if loaded.User() != "" {
		t.Fatalf("expected no authenticated user, got %q", loaded.User())
	}
	if len(repo.sessions) != 0 {
		t.Fatalf("expected no persisted sessions, got %d", len(repo.sessions))
	}
}

func TestLoginValidationErrors(t *testing.T) {
	handler, sessionManager := newAuthHandler(t, &stubRepo{})

	sess := primeSession(t, handler, sessionManager)

	form := url.Values{}
	form.Set("email", "not-an-email")
	form.Set("password", "")
	form.Set("csrf_token", sess.Get(shared.CSRFSessionKey))

	res, _ := postLogin(t, handler, sessionManager, sess, form)

	if res.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", res.Code)
	}
	body := res.Body.String()
	if !strings.Contains(body, "The email must be a valid email address.") {
		t.Fatalf("expected email error in response")
	}
	if !strings.Contains(body, "The password is required.") {
		t.Fatalf("expected password error in response")
	}
}

func TestLoginSuccessRedirects(t *testing.T) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("correct-pass"), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	repo := &stubRepo{user: &auth.User{ID: 42, Email: "admin@example.com", PasswordHash: string(hashed)}}
	handler, sessionManager := newAuthHandler(t, repo)

	sess := primeSession(t, handler, sessionManager)

	form := url.Values{}
	form.Set("email", "admin@example.com")
	form.Set("password", "correct-pass")
	form.Set("csrf_token", sess.Get(shared.CSRFSessionKey))

	res, loaded := postLogin(t, handler, sessionManager, sess, form)

	if res.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", res.Code)
	}
	if loc := res.Header().Get("Location"); loc != "/" {
		t.Fatalf("expected redirect to /, got %q", loc)
	}
	if loaded.User() != "42" {
		t.Fatalf("expected session user 42, got %q", loaded.User())
	}
	if repo.sessions[loaded.ID] != 42 {
		t.Fatalf("expected session record for user 42")
	}
}
