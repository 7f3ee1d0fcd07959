package model

import "time"

// Todo はユーザーが所有するToDo項目を表す。
// 読み取り・更新・削除は常に (ID AND UserID) で絞り込み、
// 他ユーザーの項目は存在しないものとして扱う。
type Todo struct {
	ID          string
	Title       string
	Description string
	IsCompleted bool
	CreatedAt   time.Time
	DueDate     *time.Time
	UserID      string
}
