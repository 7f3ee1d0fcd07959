package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mkondo/todoapp/internal/metrics"
	"github.com/mkondo/todoapp/internal/middleware"
)

// Pinger はデータベースの疎通確認に必要なインターフェース。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	Verifier          middleware.TokenVerifier
	Admission         *middleware.AdmissionFilter
	Collector         metrics.MetricsCollector
	MetricsHandler    http.Handler
	CORSAllowedOrigin string

	// サービス
	AuthService AuthServiceInterface
	TodoService TodoServiceInterface
	UserService UserServiceInterface

	// ヘルスチェック
	DB Pinger
}

// DefaultPolicyRules はAPIエンドポイントの認可ポリシーテーブルを返す。
// ユーザーの一覧・変更・削除・パスワード再設定とロール参照はAdminロールを要求する。
// 単一ユーザーの取得は認証のみで許可し、テーブルにないエンドポイントも
// 認証のみを要求する。
// ルールは先勝ちのため、/api/users/roles は {id} ルールより先に宣言する。
func DefaultPolicyRules() []middleware.PolicyRule {
	return []middleware.PolicyRule{
		{Method: http.MethodGet, Pattern: "/api/users/roles", Capability: middleware.CapAdmin},
		{Method: http.MethodGet, Pattern: "/api/users", Capability: middleware.CapAdmin},
		{Method: http.MethodGet, Pattern: "/api/users/{id}", Capability: middleware.CapAuthenticated},
		{Method: http.MethodPut, Pattern: "/api/users/{id}", Capability: middleware.CapAdmin},
		{Method: http.MethodDelete, Pattern: "/api/users/{id}", Capability: middleware.CapAdmin},
		{Method: http.MethodPost, Pattern: "/api/users/{id}/password", Capability: middleware.CapAdmin},
	}
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → Logging → Metrics → CORS → Admission → BearerAuth → Policy
//
// アドミッションフィルタは認証より前に全APIルートへ適用され、
// 認証ルート（/api/auth/*）は認証・認可の外、アドミッションの内側に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	if deps.Collector != nil {
		r.Use(metrics.Middleware(deps.Collector))
	}
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService)
	todoHandler := NewTodoHandler(deps.TodoService)
	userHandler := NewUserHandler(deps.UserService)
	policy := middleware.NewPolicy(DefaultPolicyRules())

	// --- 運用エンドポイント（アドミッション・認証の対象外） ---

	r.Get("/healthz", NewHealthHandler(deps.DB))

	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// --- APIルート（アドミッションフィルタを通過） ---

	r.Group(func(r chi.Router) {
		r.Use(deps.Admission.Middleware())

		// 認証ルート（トークン不要）
		r.Route("/api/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
		})

		// 認証が必要なルート
		r.Group(func(r chi.Router) {
			var recorder middleware.AuthRecorder
			if deps.Collector != nil {
				recorder = deps.Collector
			}
			r.Use(middleware.NewBearerAuthMiddleware(deps.Verifier, recorder))
			r.Use(policy.Middleware())

			// ToDo管理
			r.Route("/api/todos", func(r chi.Router) {
				r.Get("/", todoHandler.ListTodos)
				r.Post("/", todoHandler.CreateTodo)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", todoHandler.GetTodo)
					r.Put("/", todoHandler.UpdateTodo)
					r.Delete("/", todoHandler.DeleteTodo)
				})
			})

			// ユーザー管理（単一取得以外はAdminロールをポリシーで要求）
			r.Route("/api/users", func(r chi.Router) {
				r.Get("/", userHandler.ListUsers)
				r.Get("/roles", userHandler.ListRoles)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", userHandler.GetUser)
					r.Put("/", userHandler.UpdateUser)
					r.Delete("/", userHandler.DeleteUser)
					r.Post("/password", userHandler.ResetPassword)
				})
			})
		})
	})

	return r
}

// NewHealthHandler はヘルスチェックエンドポイントのハンドラーを返す。
// DBの疎通が取れない場合は503を返す。pingerはnilを許容する。
func NewHealthHandler(pinger Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if pinger != nil {
			if err := pinger.PingContext(r.Context()); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte("unhealthy"))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}
}
