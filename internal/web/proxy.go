package web

import (
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// TodoProxy はダッシュボードのJavaScriptが呼び出す/webapi/todos配下の
// リクエストをAPIの/api/todos配下へ転送するハンドラー。
// セッションCookieのトークンをBearerヘッダーとしてそのまま渡し、
// APIのステータスコードとボディを加工せずに返す。
type TodoProxy struct {
	client *APIClient
}

// NewTodoProxy はTodoProxyを生成する。
func NewTodoProxy(client *APIClient) *TodoProxy {
	return &TodoProxy{client: client}
}

// ServeHTTP はプロキシ転送を実行する。
func (p *TodoProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	apiPath := "/api/todos" + strings.TrimPrefix(r.URL.Path, "/webapi/todos")

	var body []byte
	if r.Body != nil {
		var err error
		body, err = io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if len(body) == 0 {
			body = nil
		}
	}

	resp, err := p.client.Do(r.Context(), r.Method, apiPath, SessionToken(r), body)
	if err != nil {
		slog.Error("todo proxy request failed",
			slog.String("method", r.Method),
			slog.String("path", apiPath),
			slog.String("error", err.Error()),
		)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"code":"API_UNAVAILABLE","message":"APIに接続できませんでした。","category":"system","action":"しばらく待ってから再度お試しください。"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	w.Write(resp.Body)
}
