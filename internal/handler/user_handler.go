package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mkondo/todoapp/internal/middleware"
	"github.com/mkondo/todoapp/internal/model"
	"github.com/mkondo/todoapp/internal/user"
)

// UserServiceInterface はユーザー管理ハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	List(ctx context.Context) ([]*user.UserWithRoles, error)
	Get(ctx context.Context, id string) (*user.UserWithRoles, error)
	Update(ctx context.Context, id string, input user.UpdateInput) (*user.UserWithRoles, error)
	Delete(ctx context.Context, id, callerID string) error
	ResetPassword(ctx context.Context, id, newPassword string) error
	ListRoles(ctx context.Context) ([]string, error)
}

// UserHandler はユーザー管理のHTTPハンドラー。
// 単一ユーザーの取得を除き、各エンドポイントはAdminロールを要求する
// （認可ポリシーで制御）。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{service: service}
}

// updateUserRequest はユーザー更新リクエストのボディ。
type updateUserRequest struct {
	FirstName string   `json:"first_name"`
	LastName  string   `json:"last_name"`
	Email     string   `json:"email"`
	IsActive  bool     `json:"is_active"`
	Roles     []string `json:"roles"`
}

// resetPasswordRequest はパスワード再設定リクエストのボディ。
type resetPasswordRequest struct {
	NewPassword string `json:"new_password"`
}

// ListUsers は全ユーザーの一覧を取得する。
// GET /api/users
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	responses := make([]userResponse, 0, len(users))
	for _, u := range users {
		responses = append(responses, toUserResponse(u.User, u.Roles))
	}
	writeJSON(w, http.StatusOK, responses)
}

// GetUser はユーザー詳細を取得する。
// GET /api/users/{id}
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(u.User, u.Roles))
}

// UpdateUser はユーザーの属性とロールを更新する。
// PUT /api/users/{id}
func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	u, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), user.UpdateInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		IsActive:  req.IsActive,
		Roles:     req.Roles,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(u.User, u.Roles))
}

// DeleteUser はユーザーを削除する。自分自身は削除できない。
// DELETE /api/users/{id}
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
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

// ResetPassword はユーザーのパスワードを再設定する。
// POST /api/users/{id}/password
func (h *UserHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	if err := h.service.ResetPassword(r.Context(), chi.URLParam(r, "id"), req.NewPassword); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListRoles は定義済みロール名の一覧を取得する。
// GET /api/users/roles
func (h *UserHandler) ListRoles(w http.ResponseWriter, r *http.Request) {
	names, err := h.service.ListRoles(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string][]string{"roles": names})
}
