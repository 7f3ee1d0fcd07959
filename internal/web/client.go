// Package web はサーバーレンダリングされるフロントエンド層を提供する。
//
// この層は独自の認証状態を持たず、APIが発行したトークンをセッションCookieに
// 保持してAPIへそのまま転送する。トークンの再署名・改変は行わない。
package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// APIErrorBody はAPIの統一エラーフォーマットのボディ。
type APIErrorBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// AuthResult はAPIの認証エンドポイントのレスポンス。
type AuthResult struct {
	Token string  `json:"token"`
	User  APIUser `json:"user"`
}

// APIUser はAPIが返すユーザー情報。
type APIUser struct {
	ID        string   `json:"id"`
	Email     string   `json:"email"`
	FirstName string   `json:"first_name"`
	LastName  string   `json:"last_name"`
	IsActive  bool     `json:"is_active"`
	Roles     []string `json:"roles,omitempty"`
}

// APITodo はAPIが返すToDo情報。
type APITodo struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	IsCompleted bool       `json:"is_completed"`
	CreatedAt   time.Time  `json:"created_at"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}

// APIClient はWeb層からAPI層を呼び出すHTTPクライアント。
// セッションCookieに保持されたトークンをAuthorization: Bearerヘッダーとして
// 一字一句そのまま転送する。
type APIClient struct {
	baseURL string
	client  *http.Client
}

// NewAPIClient はAPIClientを生成する。
func NewAPIClient(baseURL string) *APIClient {
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// APIResponse はAPI呼び出しの生の結果を表す。
type APIResponse struct {
	StatusCode int
	Body       []byte
}

// Do はAPIへリクエストを転送し、ステータスコードとボディをそのまま返す。
// tokenが空でない場合はAuthorization: Bearerヘッダーに設定する。
func (c *APIClient) Do(ctx context.Context, method, path, token string, body []byte) (*APIResponse, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build api request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read api response: %w", err)
	}

	return &APIResponse{
		StatusCode: resp.StatusCode,
		Body:       respBody,
	}, nil
}

// decodeError はAPIエラーレスポンスのボディを解析する。
// 解析できない場合は汎用メッセージを返す。
func decodeError(resp *APIResponse) *APIErrorBody {
	var errBody APIErrorBody
	if err := json.Unmarshal(resp.Body, &errBody); err != nil || errBody.Message == "" {
		return &APIErrorBody{
			Code:     "API_ERROR",
			Message:  fmt.Sprintf("APIがエラーを返しました（ステータス %d）。", resp.StatusCode),
			Category: "system",
		}
	}
	return &errBody
}

// Login はAPIのログインエンドポイントを呼び出す。
// 認証失敗の場合はAPIのエラーボディを返す（errはトランスポート障害のみ）。
func (c *APIClient) Login(ctx context.Context, email, password string) (*AuthResult, *APIErrorBody, error) {
	payload, _ := json.Marshal(map[string]string{
		"email":    email,
		"password": password,
	})

	resp, err := c.Do(ctx, http.MethodPost, "/api/auth/login", "", payload)
	if err != nil {
		return nil, nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp), nil
	}

	var result AuthResult
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return nil, nil, fmt.Errorf("failed to decode auth response: %w", err)
	}
	return &result, nil, nil
}

// Register はAPIのユーザー登録エンドポイントを呼び出す。
func (c *APIClient) Register(ctx context.Context, firstName, lastName, email, password, confirmPassword string) (*AuthResult, *APIErrorBody, error) {
	payload, _ := json.Marshal(map[string]string{
		"first_name":       firstName,
		"last_name":        lastName,
		"email":            email,
		"password":         password,
		"confirm_password": confirmPassword,
	})

	resp, err := c.Do(ctx, http.MethodPost, "/api/auth/register", "", payload)
	if err != nil {
		return nil, nil, err
	}
	if resp.StatusCode != http.StatusCreated {
		return nil, decodeError(resp), nil
	}

	var result AuthResult
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return nil, nil, fmt.Errorf("failed to decode auth response: %w", err)
	}
	return &result, nil, nil
}

// ListTodos はAPIからToDo一覧を取得する。
func (c *APIClient) ListTodos(ctx context.Context, token string) ([]APITodo, *APIErrorBody, error) {
	resp, err := c.Do(ctx, http.MethodGet, "/api/todos", token, nil)
	if err != nil {
		return nil, nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp), nil
	}

	var todos []APITodo
	if err := json.Unmarshal(resp.Body, &todos); err != nil {
		return nil, nil, fmt.Errorf("failed to decode todos: %w", err)
	}
	return todos, nil, nil
}

// ListUsers はAPIからユーザー一覧を取得する。Adminロールが必要。
func (c *APIClient) ListUsers(ctx context.Context, token string) ([]APIUser, *APIErrorBody, error) {
	resp, err := c.Do(ctx, http.MethodGet, "/api/users", token, nil)
	if err != nil {
		return nil, nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp), nil
	}

	var users []APIUser
	if err := json.Unmarshal(resp.Body, &users); err != nil {
		return nil, nil, fmt.Errorf("failed to decode users: %w", err)
	}
	return users, nil, nil
}
