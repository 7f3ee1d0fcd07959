package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/mkondo/todoapp/internal/model"
)

// Capability はエンドポイントが要求する権限を表す。
type Capability int

const (
	// CapAuthenticated は有効な認証があれば十分であることを示す。
	CapAuthenticated Capability = iota
	// CapAdmin はAdminロールを要求することを示す。
	CapAdmin
)

// PolicyRule はエンドポイントと要求権限の対応を表す。
// Patternはchiと同じ形式で、{param}は任意の1セグメントにマッチする。
type PolicyRule struct {
	Method     string
	Pattern    string
	Capability Capability
}

// Policy はエンドポイントごとの認可ポリシーテーブル。
// ハンドラー内に分散しがちなロールチェックを、リクエスト入口で
// 一度だけ評価する宣言的なテーブルに集約する。
type Policy struct {
	rules []PolicyRule
}

// NewPolicy はPolicyを生成する。
func NewPolicy(rules []PolicyRule) *Policy {
	return &Policy{rules: rules}
}

// Required はメソッドとパスに対応する要求権限を返す。
// 最初にマッチしたルールが適用される。
// どのルールにもマッチしない場合はCapAuthenticatedを返す
// （認証ミドルウェア通過済みであることが前提）。
func (p *Policy) Required(method, path string) Capability {
	for _, rule := range p.rules {
		if rule.Method == method && matchPattern(rule.Pattern, path) {
			return rule.Capability
		}
	}
	return CapAuthenticated
}

// Middleware はポリシーテーブルを評価する認可ミドルウェアを返す。
// 認証ミドルウェアの後ろに配置すること。
// 要求権限を満たさないリクエストは403で拒否される。
func (p *Policy) Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := PrincipalFromContext(r.Context())
			if err != nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			if p.Required(r.Method, r.URL.Path) == CapAdmin && !principal.HasRole(model.RoleAdmin) {
				slog.Warn("admin capability required",
					slog.String("user_id", principal.UserID),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)
				WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// matchPattern はパスがパターンにマッチするかを判定する。
// パターンの{param}セグメントは任意の1セグメントにマッチする。
func matchPattern(pattern, path string) bool {
	patSegs := strings.Split(strings.Trim(pattern, "/"), "/")
	pathSegs := strings.Split(strings.Trim(path, "/"), "/")

	if len(patSegs) != len(pathSegs) {
		return false
	}

	for i, seg := range patSegs {
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			if pathSegs[i] == "" {
				return false
			}
			continue
		}
		if seg != pathSegs[i] {
			return false
		}
	}
	return true
}
