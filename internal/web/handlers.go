package web

import (
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/mkondo/todoapp/internal/middleware"
	"github.com/mkondo/todoapp/internal/model"
	"github.com/mkondo/todoapp/internal/security"
)

// PageHandler はサーバーレンダリングされるページのHTTPハンドラー。
type PageHandler struct {
	client        *APIClient
	renderer      *Renderer
	sanitizer     security.ContentSanitizerService
	cookieSecure  bool
	sessionMaxAge int
}

// NewPageHandler はPageHandlerを生成する。
// sessionLifetimeはセッションCookieの寿命で、トークンの有効期限に合わせる。
func NewPageHandler(client *APIClient, renderer *Renderer, sanitizer security.ContentSanitizerService, cookieSecure bool, sessionLifetime time.Duration) *PageHandler {
	return &PageHandler{
		client:        client,
		renderer:      renderer,
		sanitizer:     sanitizer,
		cookieSecure:  cookieSecure,
		sessionMaxAge: int(sessionLifetime.Seconds()),
	}
}

// pageData は全ページ共通のテンプレートデータ。
type pageData struct {
	Title     string
	Principal *model.Principal
	IsAdmin   bool
	CSRFToken string
	Flash     string

	// ログイン・登録フォームの再表示用
	Email     string
	FirstName string
	LastName  string

	// 一覧ページ用
	Todos []todoView
	Users []APIUser
}

// todoView は画面表示用のToDo。説明はサニタイズ済みHTML。
type todoView struct {
	ID              string
	Title           string
	Description     string
	SafeDescription template.HTML
	IsCompleted     bool
	DueDate         *time.Time
}

// newPageData はリクエストから共通データを組み立てる。
func newPageData(r *http.Request, title string) pageData {
	data := pageData{
		Title:     title,
		CSRFToken: middleware.CSRFTokenFromContext(r.Context()),
	}
	if principal, err := middleware.PrincipalFromContext(r.Context()); err == nil {
		data.Principal = principal
		data.IsAdmin = principal.HasRole(model.RoleAdmin)
	}
	return data
}

func (h *PageHandler) render(w http.ResponseWriter, page string, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.renderer.Render(w, page, data); err != nil {
		slog.Error("template rendering failed",
			slog.String("page", page),
			slog.String("error", err.Error()),
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

// ShowLogin はログインフォームを表示する。
// GET /login
func (h *PageHandler) ShowLogin(w http.ResponseWriter, r *http.Request) {
	h.render(w, "login", newPageData(r, "ログイン"))
}

// HandleLogin はログインフォームの送信を処理する。
// POST /login
func (h *PageHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	email := r.PostFormValue("email")
	password := r.PostFormValue("password")

	result, apiErr, err := h.client.Login(r.Context(), email, password)
	if err != nil {
		slog.Error("login request to api failed", slog.String("error", err.Error()))
		data := newPageData(r, "ログイン")
		data.Email = email
		data.Flash = "サーバーに接続できませんでした。しばらく待ってから再度お試しください。"
		h.render(w, "login", data)
		return
	}
	if apiErr != nil {
		data := newPageData(r, "ログイン")
		data.Email = email
		data.Flash = apiErr.Message
		h.render(w, "login", data)
		return
	}

	// APIが発行したトークンをそのままセッションCookieに保存する
	SetSessionCookie(w, result.Token, h.sessionMaxAge, h.cookieSecure)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// ShowRegister は登録フォームを表示する。
// GET /register
func (h *PageHandler) ShowRegister(w http.ResponseWriter, r *http.Request) {
	h.render(w, "register", newPageData(r, "ユーザー登録"))
}

// HandleRegister は登録フォームの送信を処理する。
// POST /register
func (h *PageHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	firstName := r.PostFormValue("first_name")
	lastName := r.PostFormValue("last_name")
	email := r.PostFormValue("email")

	result, apiErr, err := h.client.Register(r.Context(),
		firstName, lastName, email,
		r.PostFormValue("password"), r.PostFormValue("confirm_password"))
	if err != nil {
		slog.Error("register request to api failed", slog.String("error", err.Error()))
		data := newPageData(r, "ユーザー登録")
		data.FirstName, data.LastName, data.Email = firstName, lastName, email
		data.Flash = "サーバーに接続できませんでした。しばらく待ってから再度お試しください。"
		h.render(w, "register", data)
		return
	}
	if apiErr != nil {
		data := newPageData(r, "ユーザー登録")
		data.FirstName, data.LastName, data.Email = firstName, lastName, email
		data.Flash = apiErr.Message
		h.render(w, "register", data)
		return
	}

	SetSessionCookie(w, result.Token, h.sessionMaxAge, h.cookieSecure)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleLogout はセッションCookieを破棄してログイン画面へ誘導する。
// POST /logout
func (h *PageHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ClearSessionCookie(w, h.cookieSecure)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// ShowTodos はToDoダッシュボードを表示する。
// GET /
func (h *PageHandler) ShowTodos(w http.ResponseWriter, r *http.Request) {
	token := SessionToken(r)

	todos, apiErr, err := h.client.ListTodos(r.Context(), token)
	if err != nil {
		slog.Error("todo list request to api failed", slog.String("error", err.Error()))
		data := newPageData(r, "ToDo一覧")
		data.Flash = "ToDoの取得に失敗しました。"
		h.render(w, "todos", data)
		return
	}
	if apiErr != nil {
		// トークンがAPI側で拒否された場合はセッションを破棄してやり直す
		if apiErr.Code == "UNAUTHORIZED" {
			ClearSessionCookie(w, h.cookieSecure)
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		data := newPageData(r, "ToDo一覧")
		data.Flash = apiErr.Message
		h.render(w, "todos", data)
		return
	}

	views := make([]todoView, 0, len(todos))
	for _, td := range todos {
		views = append(views, todoView{
			ID:              td.ID,
			Title:           h.sanitizer.Strip(td.Title),
			Description:     td.Description,
			SafeDescription: template.HTML(h.sanitizer.Sanitize(td.Description)),
			IsCompleted:     td.IsCompleted,
			DueDate:         td.DueDate,
		})
	}

	data := newPageData(r, "ToDo一覧")
	data.Todos = views
	h.render(w, "todos", data)
}

// ShowUsers はユーザー管理ページを表示する。Adminロールが必要。
// GET /users
func (h *PageHandler) ShowUsers(w http.ResponseWriter, r *http.Request) {
	principal, err := middleware.PrincipalFromContext(r.Context())
	if err != nil || !principal.HasRole(model.RoleAdmin) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	users, apiErr, err := h.client.ListUsers(r.Context(), SessionToken(r))
	if err != nil {
		slog.Error("user list request to api failed", slog.String("error", err.Error()))
		data := newPageData(r, "ユーザー管理")
		data.Flash = "ユーザー一覧の取得に失敗しました。"
		h.render(w, "users", data)
		return
	}
	if apiErr != nil {
		data := newPageData(r, "ユーザー管理")
		data.Flash = apiErr.Message
		h.render(w, "users", data)
		return
	}

	data := newPageData(r, "ユーザー管理")
	data.Users = users
	h.render(w, "users", data)
}
