// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mkondo/todoapp/internal/model"
	"github.com/mkondo/todoapp/internal/token"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// principalContextKey はリクエストコンテキストに認証主体を格納するためのキー。
var principalContextKey = contextKey("principal")

// TokenVerifier はベアラートークンの検証に必要なインターフェース。
// token.Issuerの部分集合として定義する。
type TokenVerifier interface {
	Verify(tokenString string) (*token.Claims, error)
}

// AuthRecorder は認証失敗をメトリクスに記録する。
type AuthRecorder interface {
	RecordAuthFailure()
}

// NewBearerAuthMiddleware はAuthorization: Bearerヘッダーからトークンを読み取り、
// 署名と有効期限を検証するミドルウェアを返す。
// 認証主体をリクエストコンテキストに注入する。
// 検証に失敗したリクエストはハンドラーに到達する前に401で拒否される。
// recorderはnilを許容する。
func NewBearerAuthMiddleware(verifier TokenVerifier, recorder AuthRecorder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. Authorizationヘッダーからトークンを取得
			header := r.Header.Get("Authorization")
			if header == "" || !strings.HasPrefix(header, "Bearer ") {
				rejectUnauthenticated(w, recorder)
				return
			}
			tokenString := strings.TrimPrefix(header, "Bearer ")

			// 2. 署名と有効期限を検証
			claims, err := verifier.Verify(tokenString)
			if err != nil {
				slog.Warn("token verification failed",
					slog.String("error", err.Error()),
					slog.String("path", r.URL.Path),
				)
				rejectUnauthenticated(w, recorder)
				return
			}

			// 3. 認証主体をコンテキストに注入
			ctx := context.WithValue(r.Context(), principalContextKey, claims.Principal())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// rejectUnauthenticated は401レスポンスを統一フォーマットで書き込む。
func rejectUnauthenticated(w http.ResponseWriter, recorder AuthRecorder) {
	if recorder != nil {
		recorder.RecordAuthFailure()
	}
	WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
}

// PrincipalFromContext はリクエストコンテキストから認証主体を取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func PrincipalFromContext(ctx context.Context) (*model.Principal, error) {
	p, ok := ctx.Value(principalContextKey).(*model.Principal)
	if !ok || p == nil {
		return nil, fmt.Errorf("principal not found in context")
	}
	return p, nil
}

// ContextWithPrincipal はコンテキストに認証主体を注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithPrincipal(ctx context.Context, p *model.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}
