// Package model はドメインモデルを定義する。
package model

import "time"

// ロール名の定数。rolesテーブルにはこの2つがシードされる。
const (
	RoleAdmin = "Admin"
	RoleUser  = "User"
)

// User はサービス利用ユーザーを表す。
// PasswordHash はbcryptハッシュであり、APIレスポンスには含めない。
type User struct {
	ID           string
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Principal は認証済みリクエストの主体を表す。
// 検証済みトークンのクレームから復元され、リクエストコンテキストに注入される。
type Principal struct {
	UserID string
	Name   string
	Email  string
	Roles  []string
}

// HasRole は指定されたロールを保持しているかを返す。
func (p *Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}
