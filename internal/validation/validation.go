// Package validation はユーザー入力の検証ルールを提供する。
// 登録と管理者によるユーザー更新の両方で同じルールを適用する。
package validation

import (
	"regexp"
	"unicode"

	"github.com/mkondo/todoapp/internal/model"
)

const (
	maxNameLength     = 50
	maxEmailLength    = 100
	minPasswordLength = 8
)

var (
	nameRegexp  = regexp.MustCompile(`^[a-zA-Z\s]+$`)
	emailRegexp = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// Name は表示名を検証する。labelはエラーメッセージに使う項目名。
func Name(name, label string) error {
	if name == "" {
		return model.NewValidationError(label + "は必須です。")
	}
	if len(name) > maxNameLength {
		return model.NewValidationError(label + "は50文字以内で入力してください。")
	}
	if !nameRegexp.MatchString(name) {
		return model.NewValidationError(label + "に使用できるのは英字とスペースのみです。")
	}
	return nil
}

// Email はメールアドレスの形式と長さを検証する。
func Email(email string) error {
	if email == "" {
		return model.NewValidationError("メールアドレスは必須です。")
	}
	if len(email) > maxEmailLength {
		return model.NewValidationError("メールアドレスは100文字以内で入力してください。")
	}
	if !emailRegexp.MatchString(email) {
		return model.NewValidationError("メールアドレスの形式が正しくありません。")
	}
	return nil
}

// Password はパスワードの強度を検証する。
// 大文字・小文字・数字・記号を各1文字以上含む必要がある。
func Password(password string) error {
	if len(password) < minPasswordLength {
		return model.NewValidationError("パスワードは8文字以上で入力してください。")
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSpecial = true
		}
	}
	if !hasUpper || !hasLower || !hasDigit || !hasSpecial {
		return model.NewValidationError("パスワードには大文字・小文字・数字・記号を各1文字以上含めてください。")
	}
	return nil
}
