package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mkondo/todoapp/internal/metrics"
	"github.com/mkondo/todoapp/internal/middleware"
	"github.com/mkondo/todoapp/internal/model"
	"github.com/mkondo/todoapp/internal/token"
	"github.com/mkondo/todoapp/internal/user"
)

// newTestRouter はテスト用に全ミドルウェアを構成したルーターと発行者を返す。
func newTestRouter(t *testing.T, admissionConfig middleware.AdmissionConfig) (http.Handler, *token.Issuer, *middleware.MemoryWindowStore) {
	t.Helper()

	issuer, err := token.NewIssuer("test-secret", 2*time.Hour)
	if err != nil {
		t.Fatalf("failed to create issuer: %v", err)
	}

	store := middleware.NewMemoryWindowStore(time.Hour)
	t.Cleanup(store.Stop)

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	router := NewRouter(&RouterDeps{
		Logger:            slog.New(slog.NewTextHandler(io.Discard, nil)),
		Verifier:          issuer,
		Admission:         middleware.NewAdmissionFilter(admissionConfig, store, collector),
		Collector:         collector,
		MetricsHandler:    metrics.Handler(reg),
		CORSAllowedOrigin: "http://localhost:3000",
		AuthService:       &mockAuthService{token: "t", user: testUser()},
		TodoService:       &mockTodoService{},
		UserService: &mockUserService{
			single: &user.UserWithRoles{User: testUser(), Roles: []string{model.RoleUser}},
		},
	})
	return router, issuer, store
}

func issueToken(t *testing.T, issuer *token.Issuer, roles []string) string {
	t.Helper()
	tok, err := issuer.Issue(&model.User{
		ID:        "user-1",
		Email:     "taro@example.com",
		FirstName: "Taro",
		LastName:  "Yamada",
	}, roles)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	return tok
}

func doRequest(router http.Handler, method, target, bearer, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	req.RemoteAddr = "203.0.113.10:44321"
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRouter_ProtectedRoutesRequireToken(t *testing.T) {
	router, _, _ := newTestRouter(t, middleware.DefaultAdmissionConfig())

	protected := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/todos"},
		{http.MethodPost, "/api/todos"},
		{http.MethodGet, "/api/todos/todo-1"},
		{http.MethodPut, "/api/todos/todo-1"},
		{http.MethodDelete, "/api/todos/todo-1"},
		{http.MethodGet, "/api/users"},
		{http.MethodGet, "/api/users/user-2"},
		{http.MethodGet, "/api/users/roles"},
	}

	for _, tt := range protected {
		w := doRequest(router, tt.method, tt.path, "", "")
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: status = %d, want 401", tt.method, tt.path, w.Code)
		}
	}
}

func TestRouter_InvalidBearerToken(t *testing.T) {
	router, _, _ := newTestRouter(t, middleware.DefaultAdmissionConfig())

	w := doRequest(router, http.MethodGet, "/api/todos", "not-a-valid-token", "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestRouter_AuthenticatedTodoAccess(t *testing.T) {
	router, issuer, _ := newTestRouter(t, middleware.DefaultAdmissionConfig())
	tok := issueToken(t, issuer, []string{model.RoleUser})

	w := doRequest(router, http.MethodGet, "/api/todos", tok, "")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestRouter_AdminGateForbidsNonAdmin(t *testing.T) {
	router, issuer, _ := newTestRouter(t, middleware.DefaultAdmissionConfig())
	tok := issueToken(t, issuer, []string{model.RoleUser})

	adminOnly := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/users"},
		{http.MethodPut, "/api/users/user-2"},
		{http.MethodDelete, "/api/users/user-2"},
		{http.MethodPost, "/api/users/user-2/password"},
		{http.MethodGet, "/api/users/roles"},
	}

	for _, tt := range adminOnly {
		w := doRequest(router, tt.method, tt.path, tok, "{}")
		if w.Code != http.StatusForbidden {
			t.Errorf("%s %s: status = %d, want 403", tt.method, tt.path, w.Code)
		}
	}
}

// 単一ユーザーの取得はAdminロールなしでも認証のみで許可される
func TestRouter_UserFetchAllowsAuthenticated(t *testing.T) {
	router, issuer, _ := newTestRouter(t, middleware.DefaultAdmissionConfig())
	tok := issueToken(t, issuer, []string{model.RoleUser})

	w := doRequest(router, http.MethodGet, "/api/users/user-2", tok, "")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestRouter_AdminGateAllowsAdmin(t *testing.T) {
	router, issuer, _ := newTestRouter(t, middleware.DefaultAdmissionConfig())
	tok := issueToken(t, issuer, []string{model.RoleAdmin, model.RoleUser})

	w := doRequest(router, http.MethodGet, "/api/users", tok, "")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestRouter_AuthRoutesReachableWithoutToken(t *testing.T) {
	router, _, _ := newTestRouter(t, middleware.DefaultAdmissionConfig())

	w := doRequest(router, http.MethodPost, "/api/auth/login", "", `{"email":"a@b.com","password":"p"}`)
	if w.Code != http.StatusOK {
		t.Errorf("login status = %d, want 200", w.Code)
	}

	w = doRequest(router, http.MethodPost, "/api/auth/register", "",
		`{"first_name":"Taro","last_name":"Yamada","email":"a@b.com","password":"Password1!","confirm_password":"Password1!"}`)
	if w.Code != http.StatusCreated {
		t.Errorf("register status = %d, want 201", w.Code)
	}
}

func TestRouter_AdmissionLimitsAuthRoutes(t *testing.T) {
	config := middleware.DefaultAdmissionConfig()
	config.MaxRequests = 3
	router, _, _ := newTestRouter(t, config)

	for i := 0; i < 3; i++ {
		w := doRequest(router, http.MethodPost, "/api/auth/login", "", `{"email":"a@b.com","password":"p"}`)
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, w.Code)
		}
	}

	w := doRequest(router, http.MethodPost, "/api/auth/login", "", `{"email":"a@b.com","password":"p"}`)
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type = %q, want text/plain", ct)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header should be set")
	}
}

func TestRouter_Healthz(t *testing.T) {
	router, _, _ := newTestRouter(t, middleware.DefaultAdmissionConfig())

	w := doRequest(router, http.MethodGet, "/healthz", "", "")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestRouter_HealthzReportsDBFailure(t *testing.T) {
	issuer, _ := token.NewIssuer("test-secret", time.Hour)
	store := middleware.NewMemoryWindowStore(time.Hour)
	defer store.Stop()

	router := NewRouter(&RouterDeps{
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		Verifier:    issuer,
		Admission:   middleware.NewAdmissionFilter(middleware.DefaultAdmissionConfig(), store, nil),
		AuthService: &mockAuthService{},
		TodoService: &mockTodoService{},
		UserService: &mockUserService{},
		DB:          failingPinger{},
	})

	w := doRequest(router, http.MethodGet, "/healthz", "", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

type failingPinger struct{}

func (failingPinger) PingContext(ctx context.Context) error {
	return context.DeadlineExceeded
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	router, _, _ := newTestRouter(t, middleware.DefaultAdmissionConfig())

	// リクエストを1件処理してからスクレイプする
	doRequest(router, http.MethodGet, "/healthz", "", "")

	w := doRequest(router, http.MethodGet, "/metrics", "", "")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "todoapp_http_status_total") {
		t.Error("metrics output should contain todoapp_http_status_total")
	}
}

func TestRouter_SecurityHeaders(t *testing.T) {
	router, _, _ := newTestRouter(t, middleware.DefaultAdmissionConfig())

	w := doRequest(router, http.MethodGet, "/healthz", "", "")
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("X-Content-Type-Options header should be set")
	}
}

func TestRouter_ErrorResponseFormat(t *testing.T) {
	router, _, _ := newTestRouter(t, middleware.DefaultAdmissionConfig())

	w := doRequest(router, http.MethodGet, "/api/todos", "", "")

	var errResp struct {
		Code     string `json:"code"`
		Message  string `json:"message"`
		Category string `json:"category"`
		Action   string `json:"action"`
	}
	if err := json.NewDecoder(w.Body).Decode(&errResp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if errResp.Code != model.ErrCodeUnauthorized {
		t.Errorf("code = %q, want UNAUTHORIZED", errResp.Code)
	}
	if errResp.Category != "auth" {
		t.Errorf("category = %q, want auth", errResp.Category)
	}
}
