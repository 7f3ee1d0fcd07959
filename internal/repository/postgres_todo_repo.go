package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mkondo/todoapp/internal/model"
)

// PostgresTodoRepo はPostgreSQLを使用したToDoリポジトリ。
// 単一項目を対象とするクエリは必ず (id AND user_id) で絞り込む。
type PostgresTodoRepo struct {
	db *sql.DB
}

// NewPostgresTodoRepo はPostgresTodoRepoを生成する。
func NewPostgresTodoRepo(db *sql.DB) *PostgresTodoRepo {
	return &PostgresTodoRepo{db: db}
}

const todoColumns = `id, title, description, is_completed, created_at, due_date, user_id`

// scanTodo は1行をmodel.Todoに読み込む。
func scanTodo(row interface{ Scan(...any) error }) (*model.Todo, error) {
	todo := &model.Todo{}
	var dueDate sql.NullTime
	err := row.Scan(
		&todo.ID, &todo.Title, &todo.Description, &todo.IsCompleted,
		&todo.CreatedAt, &dueDate, &todo.UserID,
	)
	if err != nil {
		return nil, err
	}
	if dueDate.Valid {
		todo.DueDate = &dueDate.Time
	}
	return todo, nil
}

// ListByUserID は指定ユーザーのToDo一覧を作成日時の降順で返す。
func (r *PostgresTodoRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Todo, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+todoColumns+` FROM todos WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list todos: %w", err)
	}
	defer rows.Close()

	var todos []*model.Todo
	for rows.Next() {
		todo, err := scanTodo(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan todo: %w", err)
		}
		todos = append(todos, todo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate todos: %w", err)
	}
	return todos, nil
}

// FindByIDAndUserID は (id, userID) に一致するToDoを取得する。
// 他ユーザー所有の項目は見つからない扱いでnilを返す。
func (r *PostgresTodoRepo) FindByIDAndUserID(ctx context.Context, id, userID string) (*model.Todo, error) {
	todo, err := scanTodo(r.db.QueryRowContext(ctx,
		`SELECT `+todoColumns+` FROM todos WHERE id = $1 AND user_id = $2`,
		id, userID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find todo: %w", err)
	}
	return todo, nil
}

// Create はToDoを作成する。
func (r *PostgresTodoRepo) Create(ctx context.Context, todo *model.Todo) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO todos (id, title, description, is_completed, created_at, due_date, user_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		todo.ID, todo.Title, todo.Description, todo.IsCompleted,
		todo.CreatedAt, todo.DueDate, todo.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert todo: %w", err)
	}
	return nil
}

// Update は (ID, UserID) に一致するToDoを更新する。
// 対象が存在しない場合はfalseを返す。
func (r *PostgresTodoRepo) Update(ctx context.Context, todo *model.Todo) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE todos
		 SET title = $3, description = $4, is_completed = $5, due_date = $6
		 WHERE id = $1 AND user_id = $2`,
		todo.ID, todo.UserID, todo.Title, todo.Description, todo.IsCompleted, todo.DueDate,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update todo: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// Delete は (id, userID) に一致するToDoを削除する。
// 対象が存在しない場合はfalseを返す。
func (r *PostgresTodoRepo) Delete(ctx context.Context, id, userID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM todos WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete todo: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// compile-time interface check
var _ TodoRepository = (*PostgresTodoRepo)(nil)
