package web

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mkondo/todoapp/internal/middleware"
	"github.com/mkondo/todoapp/internal/model"
	"github.com/mkondo/todoapp/internal/token"
)

func newTestIssuer(t *testing.T, lifetime time.Duration) *token.Issuer {
	t.Helper()
	issuer, err := token.NewIssuer("web-test-secret", lifetime)
	if err != nil {
		t.Fatalf("failed to create issuer: %v", err)
	}
	return issuer
}

func sessionCookieFrom(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == sessionCookieName {
			return c
		}
	}
	return nil
}

func TestSetSessionCookie_Attributes(t *testing.T) {
	w := httptest.NewRecorder()

	SetSessionCookie(w, "the-token", 7200, true)

	cookie := sessionCookieFrom(t, w)
	if cookie == nil {
		t.Fatal("session cookie not set")
	}
	if cookie.Value != "the-token" {
		t.Errorf("value = %q, want the-token", cookie.Value)
	}
	if !cookie.HttpOnly {
		t.Error("cookie should be HttpOnly")
	}
	if cookie.SameSite != http.SameSiteStrictMode {
		t.Error("cookie should be SameSite=Strict")
	}
	if !cookie.Secure {
		t.Error("cookie should be Secure")
	}
	if cookie.MaxAge != 7200 {
		t.Errorf("MaxAge = %d, want 7200", cookie.MaxAge)
	}
}

func TestClearSessionCookie_Expires(t *testing.T) {
	w := httptest.NewRecorder()

	ClearSessionCookie(w, false)

	cookie := sessionCookieFrom(t, w)
	if cookie == nil {
		t.Fatal("session cookie not set")
	}
	if cookie.MaxAge >= 0 {
		t.Errorf("MaxAge = %d, want negative (delete)", cookie.MaxAge)
	}
	if cookie.Value != "" {
		t.Errorf("value = %q, want empty", cookie.Value)
	}
}

func TestSessionAuthMiddleware_ValidToken(t *testing.T) {
	issuer := newTestIssuer(t, time.Hour)
	tok, err := issuer.Issue(&model.User{
		ID: "user-1", Email: "taro@example.com", FirstName: "Taro", LastName: "Yamada",
	}, []string{model.RoleUser})
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	var principal *model.Principal
	handler := NewSessionAuthMiddleware(issuer, true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, _ = middleware.PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: tok})
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if principal == nil || principal.UserID != "user-1" {
		t.Errorf("principal = %+v, want user-1", principal)
	}
}

func TestSessionAuthMiddleware_MissingCookie_Redirects(t *testing.T) {
	issuer := newTestIssuer(t, time.Hour)

	handler := NewSessionAuthMiddleware(issuer, true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called without session")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want 303", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/login" {
		t.Errorf("Location = %q, want /login", loc)
	}
}

func TestSessionAuthMiddleware_ExpiredToken_Redirects(t *testing.T) {
	// 寿命0のトークンは発行直後から期限切れとして扱われる
	issuer := newTestIssuer(t, 0)
	tok, err := issuer.Issue(&model.User{ID: "user-1"}, nil)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	handler := NewSessionAuthMiddleware(issuer, true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called with expired session")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: tok})
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want 303", w.Code)
	}
}

func TestSessionAuthMiddleware_APIMode_Returns401(t *testing.T) {
	issuer := newTestIssuer(t, time.Hour)

	handler := NewSessionAuthMiddleware(issuer, false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called without session")
	}))

	req := httptest.NewRequest(http.MethodGet, "/webapi/todos", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
}

func TestSessionAuthMiddleware_TamperedToken_Rejected(t *testing.T) {
	issuer := newTestIssuer(t, time.Hour)
	tok, err := issuer.Issue(&model.User{ID: "user-1"}, nil)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	handler := NewSessionAuthMiddleware(issuer, true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called with tampered session")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: tok + "x"})
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want 303", w.Code)
	}
}
