// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/mkondo/todoapp/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレス（大文字小文字を区別しない）でユーザーを検索する。
	// 見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// List は全ユーザーを作成日時の昇順で返す。
	List(ctx context.Context) ([]*model.User, error)

	// Create はユーザーを作成し、指定されたロールを同一トランザクションで付与する。
	Create(ctx context.Context, user *model.User, roles []string) error

	// Update はユーザーの属性を更新する。
	Update(ctx context.Context, user *model.User) error

	// UpdatePasswordHash はパスワードハッシュのみを更新する。
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 所有するtodosとuser_rolesはCASCADE削除される。
	// 対象が存在しない場合はfalseを返す。
	DeleteByID(ctx context.Context, id string) (bool, error)
}

// RoleRepository はロールデータの永続化インターフェース。
// トークン発行時には必ずここから最新のロールを取得する（キャッシュ不可）。
type RoleRepository interface {
	// ListNames は定義済みロール名を返す。
	ListNames(ctx context.Context) ([]string, error)

	// NamesByUserID は指定ユーザーに付与されたロール名を返す。
	NamesByUserID(ctx context.Context, userID string) ([]string, error)

	// ReplaceForUser はユーザーのロールを指定された集合に置き換える。
	// 未定義のロール名はエラーになる。
	ReplaceForUser(ctx context.Context, userID string, roles []string) error
}

// TodoRepository はToDoデータの永続化インターフェース。
// 単一項目を対象とする全操作は (id AND userID) で絞り込み、
// 所有者以外からは項目が存在しないように見えることを保証する。
type TodoRepository interface {
	// ListByUserID は指定ユーザーのToDo一覧を作成日時の降順で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Todo, error)

	// FindByIDAndUserID は (id, userID) に一致するToDoを取得する。
	// 見つからない場合（他ユーザー所有を含む）はnilを返す。
	FindByIDAndUserID(ctx context.Context, id, userID string) (*model.Todo, error)

	// Create はToDoを作成する。
	Create(ctx context.Context, todo *model.Todo) error

	// Update は (ID, UserID) に一致するToDoを更新する。
	// 対象が存在しない場合はfalseを返す。
	Update(ctx context.Context, todo *model.Todo) (bool, error)

	// Delete は (id, userID) に一致するToDoを削除する。
	// 対象が存在しない場合はfalseを返す。
	Delete(ctx context.Context, id, userID string) (bool, error)
}
