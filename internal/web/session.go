package web

import (
	"net/http"

	"github.com/mkondo/todoapp/internal/middleware"
)

// sessionCookieName はAPI発行トークンを保持するセッションCookieの名前。
// 値はAPIが発行したトークンそのもので、Web層では再署名しない。
const sessionCookieName = "todo_session"

// SetSessionCookie はセッションCookieを設定する。
// HttpOnlyかつSameSite=Strictで、JavaScriptからの読み取りと
// クロスサイト送信を防ぐ。
func SetSessionCookie(w http.ResponseWriter, token string, maxAge int, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// ClearSessionCookie はセッションCookieを破棄する。
func ClearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// SessionToken はリクエストからセッショントークンを取り出す。未設定なら空文字。
func SessionToken(r *http.Request) string {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// NewSessionAuthMiddleware はセッションCookieのトークンを検証するミドルウェアを返す。
// 検証はAPIと同一の共有シークレット・同一の規則で行う。
// 検証に成功した場合は認証主体をコンテキストに注入し、
// 失敗した場合はredirectOnFailがtrueなら/loginへリダイレクト、
// falseなら401を返す（/webapi用）。
func NewSessionAuthMiddleware(verifier middleware.TokenVerifier, redirectOnFail bool) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := SessionToken(r)
			if tokenString == "" {
				rejectSession(w, r, redirectOnFail)
				return
			}

			claims, err := verifier.Verify(tokenString)
			if err != nil {
				rejectSession(w, r, redirectOnFail)
				return
			}

			ctx := middleware.ContextWithPrincipal(r.Context(), claims.Principal())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func rejectSession(w http.ResponseWriter, r *http.Request, redirect bool) {
	if redirect {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"code":"UNAUTHORIZED","message":"認証が必要です。","category":"auth","action":"ログインしてください。"}`))
}
