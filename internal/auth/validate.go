package auth

import (
	"strings"

	"github.com/mkondo/todoapp/internal/model"
	"github.com/mkondo/todoapp/internal/validation"
)

// validateRegisterInput は登録入力を検証する。
// 最初に見つかった違反をValidationErrorとして返す。
func validateRegisterInput(input RegisterInput) error {
	if err := validation.Name(strings.TrimSpace(input.FirstName), "名"); err != nil {
		return err
	}
	if err := validation.Name(strings.TrimSpace(input.LastName), "姓"); err != nil {
		return err
	}
	if err := validation.Email(strings.TrimSpace(input.Email)); err != nil {
		return err
	}
	if err := validation.Password(input.Password); err != nil {
		return err
	}
	if input.Password != input.ConfirmPassword {
		return model.NewValidationError("パスワードと確認用パスワードが一致しません。")
	}
	return nil
}
