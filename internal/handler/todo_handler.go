package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mkondo/todoapp/internal/middleware"
	"github.com/mkondo/todoapp/internal/model"
	"github.com/mkondo/todoapp/internal/todo"
)

// TodoServiceInterface はToDoハンドラーが必要とするサービスインターフェース。
type TodoServiceInterface interface {
	List(ctx context.Context, userID string) ([]*model.Todo, error)
	Get(ctx context.Context, id, userID string) (*model.Todo, error)
	Create(ctx context.Context, userID string, input todo.Input) (*model.Todo, error)
	Update(ctx context.Context, id, userID string, input todo.Input) (*model.Todo, error)
	Delete(ctx context.Context, id, userID string) error
}

// TodoHandler はToDoのHTTPハンドラー。
// 全操作は認証済みの呼び出し元が所有する項目のみを対象とする。
type TodoHandler struct {
	service TodoServiceInterface
}

// NewTodoHandler はTodoHandlerを生成する。
func NewTodoHandler(service TodoServiceInterface) *TodoHandler {
	return &TodoHandler{service: service}
}

// todoRequest はToDoの作成・更新リクエストのボディ。
type todoRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	IsCompleted bool       `json:"is_completed"`
	DueDate     *time.Time `json:"due_date"`
}

// todoResponse はToDo情報のAPIレスポンス。
type todoResponse struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	IsCompleted bool       `json:"is_completed"`
	CreatedAt   time.Time  `json:"created_at"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}

// ListTodos はToDo一覧を取得する。
// GET /api/todos
func (h *TodoHandler) ListTodos(w http.ResponseWriter, r *http.Request) {
	principal, err := middleware.PrincipalFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	todos, err := h.service.List(r.Context(), principal.UserID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	responses := make([]todoResponse, 0, len(todos))
	for _, td := range todos {
		responses = append(responses, toTodoResponse(td))
	}
	writeJSON(w, http.StatusOK, responses)
}

// GetTodo はToDo詳細を取得する。
// GET /api/todos/{id}
func (h *TodoHandler) GetTodo(w http.ResponseWriter, r *http.Request) {
	principal, err := middleware.PrincipalFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	td, err := h.service.Get(r.Context(), chi.URLParam(r, "id"), principal.UserID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toTodoResponse(td))
}

// CreateTodo はToDoを作成する。
// POST /api/todos
func (h *TodoHandler) CreateTodo(w http.ResponseWriter, r *http.Request) {
	principal, err := middleware.PrincipalFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req todoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	created, err := h.service.Create(r.Context(), principal.UserID, todo.Input{
		Title:       req.Title,
		Description: req.Description,
		IsCompleted: req.IsCompleted,
		DueDate:     req.DueDate,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toTodoResponse(created))
}

// UpdateTodo はToDoを更新する。
// PUT /api/todos/{id}
func (h *TodoHandler) UpdateTodo(w http.ResponseWriter, r *http.Request) {
	principal, err := middleware.PrincipalFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req todoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	updated, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), principal.UserID, todo.Input{
		Title:       req.Title,
		Description: req.Description,
		IsCompleted: req.IsCompleted,
		DueDate:     req.DueDate,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toTodoResponse(updated))
}

// DeleteTodo はToDoを削除する。
// DELETE /api/todos/{id}
func (h *TodoHandler) DeleteTodo(w http.ResponseWriter, r *http.Request) {
	principal, err := middleware.PrincipalFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id"), principal.UserID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// toTodoResponse はmodel.TodoからAPIレスポンスに変換する。
func toTodoResponse(td *model.Todo) todoResponse {
	return todoResponse{
		ID:          td.ID,
		Title:       td.Title,
		Description: td.Description,
		IsCompleted: td.IsCompleted,
		CreatedAt:   td.CreatedAt,
		DueDate:     td.DueDate,
	}
}
