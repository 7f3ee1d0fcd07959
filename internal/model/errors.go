// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, todo, user, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeForbidden         = "FORBIDDEN"
	ErrCodeInvalidCredential = "INVALID_CREDENTIAL"
	ErrCodeRateLimited       = "RATE_LIMITED"
	ErrCodeValidation        = "VALIDATION_FAILED"
	ErrCodeEmailTaken        = "EMAIL_TAKEN"
	ErrCodeTodoNotFound      = "TODO_NOT_FOUND"
	ErrCodeUserNotFound      = "USER_NOT_FOUND"
	ErrCodeSelfDelete        = "SELF_DELETE_FORBIDDEN"
)

// NewUnauthorizedError は認証失敗エラーを生成する。
// トークン欠落・署名不正・期限切れのいずれも同一のエラーにまとめ、
// 失敗理由の詳細はログのみに記録する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewForbiddenError はロール不足エラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "この操作を行う権限がありません。",
		Category: "auth",
		Action:   "管理者に権限の付与を依頼してください。",
	}
}

// NewInvalidCredentialError はログイン失敗エラーを生成する。
// メールアドレス未登録とパスワード不一致を区別しない。
func NewInvalidCredentialError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredential,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewValidationError は入力検証エラーを生成する。
func NewValidationError(detail string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  detail,
		Category: "validation",
		Action:   "入力内容を修正してください。",
	}
}

// NewEmailTakenError はメールアドレス重複エラーを生成する。
func NewEmailTakenError(email string) *APIError {
	return &APIError{
		Code:     ErrCodeEmailTaken,
		Message:  fmt.Sprintf("このメールアドレスは既に登録されています: %s", email),
		Category: "validation",
		Action:   "別のメールアドレスを使用するか、ログインしてください。",
	}
}

// NewTodoNotFoundError はToDo未検出エラーを生成する。
// 他ユーザー所有の項目へのアクセスもこのエラーになる（存在を漏らさない）。
func NewTodoNotFoundError(todoID string) *APIError {
	return &APIError{
		Code:     ErrCodeTodoNotFound,
		Message:  fmt.Sprintf("指定されたToDoが見つかりません: %s", todoID),
		Category: "todo",
		Action:   "ToDoのIDを確認してください。",
	}
}

// NewUserNotFoundError はユーザー未検出エラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "指定されたユーザーが見つかりません。",
		Category: "user",
		Action:   "ユーザーIDを確認してください。",
	}
}

// NewSelfDeleteError は自アカウント削除の禁止エラーを生成する。
// 管理者であっても自分自身のアカウントはこの経路では削除できない。
func NewSelfDeleteError() *APIError {
	return &APIError{
		Code:     ErrCodeSelfDelete,
		Message:  "自分自身のアカウントは削除できません。",
		Category: "user",
		Action:   "別の管理者に削除を依頼してください。",
	}
}
