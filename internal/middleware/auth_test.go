package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mkondo/todoapp/internal/model"
	"github.com/mkondo/todoapp/internal/token"
)

// newTestIssuer はテスト用のトークン発行器を生成する。
func newTestIssuer(t *testing.T, lifetime time.Duration) *token.Issuer {
	t.Helper()
	iss, err := token.NewIssuer("test-secret", lifetime)
	if err != nil {
		t.Fatalf("NewIssuer error: %v", err)
	}
	return iss
}

func issueTestToken(t *testing.T, iss *token.Issuer, roles []string) string {
	t.Helper()
	tok, err := iss.Issue(&model.User{
		ID:        "user-123",
		Email:     "taro@example.com",
		FirstName: "Taro",
		LastName:  "Yamada",
	}, roles)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	return tok
}

func TestBearerAuthMiddleware_ValidToken(t *testing.T) {
	iss := newTestIssuer(t, 2*time.Hour)
	tok := issueTestToken(t, iss, []string{"User"})

	var gotPrincipal *model.Principal
	handler := NewBearerAuthMiddleware(iss, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := PrincipalFromContext(r.Context())
		if err != nil {
			t.Errorf("PrincipalFromContext error: %v", err)
		}
		gotPrincipal = p
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/todos", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if gotPrincipal == nil || gotPrincipal.UserID != "user-123" {
		t.Errorf("principal = %+v, want UserID user-123", gotPrincipal)
	}
	if gotPrincipal != nil && !gotPrincipal.HasRole("User") {
		t.Error("principal should carry the User role")
	}
}

func TestBearerAuthMiddleware_MissingHeader(t *testing.T) {
	iss := newTestIssuer(t, 2*time.Hour)

	handlerCalled := false
	handler := NewBearerAuthMiddleware(iss, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/todos", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
	if handlerCalled {
		t.Error("handler must not run for unauthenticated request")
	}
}

func TestBearerAuthMiddleware_MalformedHeader(t *testing.T) {
	iss := newTestIssuer(t, 2*time.Hour)

	handler := NewBearerAuthMiddleware(iss, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, header := range []string{"Basic abc", "Bearer", "token-without-scheme"} {
		req := httptest.NewRequest(http.MethodGet, "/api/todos", nil)
		req.Header.Set("Authorization", header)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("header %q: status = %d, want 401", header, w.Code)
		}
	}
}

func TestBearerAuthMiddleware_ExpiredToken(t *testing.T) {
	expired := newTestIssuer(t, -1*time.Second)
	tok := issueTestToken(t, expired, []string{"User"})

	verifier := newTestIssuer(t, 2*time.Hour)
	handler := NewBearerAuthMiddleware(verifier, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/todos", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestBearerAuthMiddleware_WrongSecret(t *testing.T) {
	other, err := token.NewIssuer("other-secret", 2*time.Hour)
	if err != nil {
		t.Fatalf("NewIssuer error: %v", err)
	}
	tok := issueTestToken(t, other, []string{"Admin"})

	verifier := newTestIssuer(t, 2*time.Hour)
	handler := NewBearerAuthMiddleware(verifier, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/todos", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

// mockAuthRecorder は認証失敗の記録を検証するモック。
type mockAuthRecorder struct {
	failures int
}

func (m *mockAuthRecorder) RecordAuthFailure() { m.failures++ }

func TestBearerAuthMiddleware_RecordsFailures(t *testing.T) {
	iss := newTestIssuer(t, 2*time.Hour)
	rec := &mockAuthRecorder{}

	handler := NewBearerAuthMiddleware(iss, rec)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/todos", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if rec.failures != 1 {
		t.Errorf("recorded failures = %d, want 1", rec.failures)
	}
}
