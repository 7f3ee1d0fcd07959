// Package user は管理者向けのユーザー管理ロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mkondo/todoapp/internal/model"
	"github.com/mkondo/todoapp/internal/repository"
	"github.com/mkondo/todoapp/internal/validation"
	"golang.org/x/crypto/bcrypt"
)

// UserWithRoles はロール一覧付きのユーザー情報。
type UserWithRoles struct {
	User  *model.User
	Roles []string
}

// Service はユーザー管理の操作を提供する。
// 呼び出し元がAdminロールを持つことはミドルウェア層で保証される。
type Service struct {
	userRepo repository.UserRepository
	roleRepo repository.RoleRepository
}

// NewService はServiceを生成する。
func NewService(userRepo repository.UserRepository, roleRepo repository.RoleRepository) *Service {
	return &Service{userRepo: userRepo, roleRepo: roleRepo}
}

// List は全ユーザーをロール付きで返す。
func (s *Service) List(ctx context.Context) ([]*UserWithRoles, error) {
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	result := make([]*UserWithRoles, 0, len(users))
	for _, u := range users {
		roles, err := s.roleRepo.NamesByUserID(ctx, u.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch roles for user %s: %w", u.ID, err)
		}
		result = append(result, &UserWithRoles{User: u, Roles: roles})
	}
	return result, nil
}

// Get は指定IDのユーザーをロール付きで返す。
func (s *Service) Get(ctx context.Context, id string) (*UserWithRoles, error) {
	u, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if u == nil {
		return nil, model.NewUserNotFoundError()
	}

	roles, err := s.roleRepo.NamesByUserID(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch roles: %w", err)
	}
	return &UserWithRoles{User: u, Roles: roles}, nil
}

// UpdateInput はユーザー更新の入力を表す。
type UpdateInput struct {
	FirstName string
	LastName  string
	Email     string
	IsActive  bool
	Roles     []string
}

// Update はユーザーの属性とロールを更新する。
// ロールの変更は既存トークンには反映されず、次回発行時から有効になる。
func (s *Service) Update(ctx context.Context, id string, input UpdateInput) (*UserWithRoles, error) {
	u, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if u == nil {
		return nil, model.NewUserNotFoundError()
	}

	firstName := strings.TrimSpace(input.FirstName)
	lastName := strings.TrimSpace(input.LastName)
	email := strings.ToLower(strings.TrimSpace(input.Email))

	// 登録時と同じルールで検証する
	if err := validation.Name(firstName, "名"); err != nil {
		return nil, err
	}
	if err := validation.Name(lastName, "姓"); err != nil {
		return nil, err
	}
	if err := validation.Email(email); err != nil {
		return nil, err
	}

	if email != u.Email {
		existing, err := s.userRepo.FindByEmail(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("failed to check email: %w", err)
		}
		if existing != nil {
			return nil, model.NewEmailTakenError(email)
		}
	}

	u.FirstName = firstName
	u.LastName = lastName
	u.Email = email
	u.IsActive = input.IsActive
	u.UpdatedAt = time.Now()

	if err := s.userRepo.Update(ctx, u); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	if input.Roles != nil {
		if err := s.roleRepo.ReplaceForUser(ctx, id, input.Roles); err != nil {
			return nil, fmt.Errorf("failed to replace roles: %w", err)
		}
	}

	roles, err := s.roleRepo.NamesByUserID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch roles: %w", err)
	}

	slog.Info("user updated",
		slog.String("user_id", id),
	)
	return &UserWithRoles{User: u, Roles: roles}, nil
}

// Delete は指定IDのユーザーを削除する。
// 呼び出し元自身のアカウントは削除できない。
func (s *Service) Delete(ctx context.Context, id, callerID string) error {
	if id == callerID {
		return model.NewSelfDeleteError()
	}

	deleted, err := s.userRepo.DeleteByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if !deleted {
		return model.NewUserNotFoundError()
	}

	slog.Info("user deleted",
		slog.String("user_id", id),
		slog.String("deleted_by", callerID),
	)
	return nil
}

// ResetPassword はユーザーのパスワードを管理者権限で再設定する。
// 新しいパスワードには登録時と同じ強度ルールを適用する。
func (s *Service) ResetPassword(ctx context.Context, id, newPassword string) error {
	if err := validation.Password(newPassword); err != nil {
		return err
	}

	u, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if u == nil {
		return model.NewUserNotFoundError()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.userRepo.UpdatePasswordHash(ctx, id, string(hash)); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	slog.Info("password reset",
		slog.String("user_id", id),
	)
	return nil
}

// ListRoles は定義済みロール名の一覧を返す。
func (s *Service) ListRoles(ctx context.Context) ([]string, error) {
	names, err := s.roleRepo.ListNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	return names, nil
}
