// Package todo はToDo項目のビジネスロジックを提供する。
package todo

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mkondo/todoapp/internal/model"
	"github.com/mkondo/todoapp/internal/repository"
)

const (
	maxTitleLength       = 100
	maxDescriptionLength = 500
)

var titleRegexp = regexp.MustCompile(`^[a-zA-Z0-9\s.\-_',!?]*$`)

// Service はToDoのCRUD操作を提供する。
// 全操作は呼び出し元ユーザーが所有する項目のみを対象とし、
// 他ユーザー所有の項目は存在しないものとして扱う。
type Service struct {
	todoRepo repository.TodoRepository
}

// NewService はServiceを生成する。
func NewService(todoRepo repository.TodoRepository) *Service {
	return &Service{todoRepo: todoRepo}
}

// Input はToDoの作成・更新の入力を表す。
type Input struct {
	Title       string
	Description string
	IsCompleted bool
	DueDate     *time.Time
}

// List は指定ユーザーのToDo一覧を作成日時の降順で返す。
func (s *Service) List(ctx context.Context, userID string) ([]*model.Todo, error) {
	todos, err := s.todoRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list todos: %w", err)
	}
	return todos, nil
}

// Get は指定ユーザーが所有するToDoを取得する。
func (s *Service) Get(ctx context.Context, id, userID string) (*model.Todo, error) {
	todo, err := s.todoRepo.FindByIDAndUserID(ctx, id, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find todo: %w", err)
	}
	if todo == nil {
		return nil, model.NewTodoNotFoundError(id)
	}
	return todo, nil
}

// Create は指定ユーザーのToDoを作成する。
func (s *Service) Create(ctx context.Context, userID string, input Input) (*model.Todo, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	now := time.Now()
	todo := &model.Todo{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		IsCompleted: input.IsCompleted,
		CreatedAt:   now,
		DueDate:     input.DueDate,
		UserID:      userID,
	}

	if err := s.todoRepo.Create(ctx, todo); err != nil {
		return nil, fmt.Errorf("failed to create todo: %w", err)
	}

	slog.Info("todo created",
		slog.String("todo_id", todo.ID),
		slog.String("user_id", userID),
	)
	return todo, nil
}

// Update は指定ユーザーが所有するToDoを更新する。
// 作成日時と所有者は変更されない。
func (s *Service) Update(ctx context.Context, id, userID string, input Input) (*model.Todo, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	existing, err := s.todoRepo.FindByIDAndUserID(ctx, id, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find todo: %w", err)
	}
	if existing == nil {
		return nil, model.NewTodoNotFoundError(id)
	}

	existing.Title = strings.TrimSpace(input.Title)
	existing.Description = strings.TrimSpace(input.Description)
	existing.IsCompleted = input.IsCompleted
	existing.DueDate = input.DueDate

	updated, err := s.todoRepo.Update(ctx, existing)
	if err != nil {
		return nil, fmt.Errorf("failed to update todo: %w", err)
	}
	if !updated {
		// 取得と更新の間に削除された場合
		return nil, model.NewTodoNotFoundError(id)
	}
	return existing, nil
}

// Delete は指定ユーザーが所有するToDoを削除する。
func (s *Service) Delete(ctx context.Context, id, userID string) error {
	deleted, err := s.todoRepo.Delete(ctx, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete todo: %w", err)
	}
	if !deleted {
		return model.NewTodoNotFoundError(id)
	}

	slog.Info("todo deleted",
		slog.String("todo_id", id),
		slog.String("user_id", userID),
	)
	return nil
}

// validateInput はToDo入力を検証する。
func validateInput(input Input) error {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return model.NewValidationError("タイトルは必須です。")
	}
	if len(title) > maxTitleLength {
		return model.NewValidationError("タイトルは100文字以内で入力してください。")
	}
	if !titleRegexp.MatchString(title) {
		return model.NewValidationError("タイトルに使用できない文字が含まれています。")
	}
	if len(strings.TrimSpace(input.Description)) > maxDescriptionLength {
		return model.NewValidationError("説明は500文字以内で入力してください。")
	}
	return nil
}
