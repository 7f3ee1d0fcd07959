package web

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mkondo/todoapp/internal/metrics"
	"github.com/mkondo/todoapp/internal/middleware"
	"github.com/mkondo/todoapp/internal/security"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存。AdmissionはWeb層専用のインスタンスを渡す
	// （API層とはプロセス内状態を共有しない）。
	Verifier  middleware.TokenVerifier
	Admission *middleware.AdmissionFilter
	Collector metrics.MetricsCollector
	CSRF      middleware.CSRFConfig

	// ページ依存
	Client          *APIClient
	Sanitizer       security.ContentSanitizerService
	CookieSecure    bool
	SessionLifetime time.Duration
}

// NewRouter はWeb層の全ルーティングとミドルウェアチェーンを構成したハンドラーを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → Logging → Metrics → Admission → CSRF → (Session)
//
// ページルートはセッション検証失敗時に/loginへリダイレクトし、
// /webapi配下は401 JSONを返す。
func NewRouter(deps *RouterDeps) (http.Handler, error) {
	renderer, err := NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize renderer: %w", err)
	}

	static, err := StaticFS()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize static assets: %w", err)
	}

	pages := NewPageHandler(deps.Client, renderer, deps.Sanitizer, deps.CookieSecure, deps.SessionLifetime)
	proxy := NewTodoProxy(deps.Client)

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	if deps.Collector != nil {
		r.Use(metrics.Middleware(deps.Collector))
	}

	// 静的アセットとヘルスチェック（アドミッション・CSRFの対象外）
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Group(func(r chi.Router) {
		r.Use(deps.Admission.Middleware())
		r.Use(middleware.NewCSRFMiddleware(deps.CSRF))

		// 認証不要のページ
		r.Get("/login", pages.ShowLogin)
		r.Post("/login", pages.HandleLogin)
		r.Get("/register", pages.ShowRegister)
		r.Post("/register", pages.HandleRegister)
		r.Post("/logout", pages.HandleLogout)

		// セッション必須のページ（失敗時は/loginへリダイレクト）
		r.Group(func(r chi.Router) {
			r.Use(NewSessionAuthMiddleware(deps.Verifier, true))

			r.Get("/", pages.ShowTodos)
			r.Get("/users", pages.ShowUsers)
		})

		// ダッシュボード用JSONプロキシ（失敗時は401 JSON）
		r.Group(func(r chi.Router) {
			r.Use(NewSessionAuthMiddleware(deps.Verifier, false))

			r.Method(http.MethodGet, "/webapi/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRF))
			r.Handle("/webapi/todos", proxy)
			r.Handle("/webapi/todos/*", proxy)
		})
	})

	return r, nil
}
