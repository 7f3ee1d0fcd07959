package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresRoleRepo はPostgreSQLを使用したロールリポジトリ。
type PostgresRoleRepo struct {
	db *sql.DB
}

// NewPostgresRoleRepo はPostgresRoleRepoを生成する。
func NewPostgresRoleRepo(db *sql.DB) *PostgresRoleRepo {
	return &PostgresRoleRepo{db: db}
}

// ListNames は定義済みロール名を返す。
func (r *PostgresRoleRepo) ListNames(ctx context.Context) ([]string, error) {
	return r.queryNames(ctx, `SELECT name FROM roles ORDER BY name`)
}

// NamesByUserID は指定ユーザーに付与されたロール名を返す。
// トークン発行時に呼ばれるため、常にDBから最新の値を読む。
func (r *PostgresRoleRepo) NamesByUserID(ctx context.Context, userID string) ([]string, error) {
	return r.queryNames(ctx,
		`SELECT r.name FROM roles r
		 JOIN user_roles ur ON ur.role_id = r.id
		 WHERE ur.user_id = $1
		 ORDER BY r.name`,
		userID,
	)
}

// ReplaceForUser はユーザーのロールを指定された集合に置き換える。
// 削除と付与を同一トランザクションで行う。
func (r *PostgresRoleRepo) ReplaceForUser(ctx context.Context, userID string, roles []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM user_roles WHERE user_id = $1`,
		userID,
	); err != nil {
		return fmt.Errorf("failed to clear roles: %w", err)
	}

	if err := grantRolesTx(ctx, tx, userID, roles); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// queryNames は単一のname列を返すクエリを実行する。
func (r *PostgresRoleRepo) queryNames(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query role names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan role name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate role names: %w", err)
	}
	return names, nil
}

// compile-time interface check
var _ RoleRepository = (*PostgresRoleRepo)(nil)
