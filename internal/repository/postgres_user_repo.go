package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/hireflow/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザープロフィールリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByUserID は指定ユーザーのプロフィールを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByUserID(ctx context.Context, userID string) (*model.UserProfile, error) {
	p := &model.UserProfile{}
	var role string
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, email, role, created_at FROM users WHERE user_id = $1`,
		userID,
	).Scan(&p.UserID, &p.Email, &role, &p.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		if isNotFound(wrapPQError("failed to find user", err)) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	p.Role = model.Role(role)

	return p, nil
}

// Create はプロフィールを作成する。
func (r *PostgresUserRepo) Create(ctx context.Context, profile *model.UserProfile) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (user_id, email, role, created_at)
		 VALUES ($1, $2, $3, $4)`,
		profile.UserID, profile.Email, string(profile.Role), profile.CreatedAt,
	)
	if err != nil {
		return wrapPQError("failed to insert user", err)
	}
	return nil
}

// List はスコープ内のプロフィールをcreated_at降順で返す。
// 管理者以外は自分自身のみが見える。
func (r *PostgresUserRepo) List(ctx context.Context, scope model.Scope) ([]model.UserProfile, error) {
	query := `SELECT user_id, email, role, created_at FROM users`
	var args []any
	if !scope.Admin {
		query += ` WHERE user_id = $1`
		args = append(args, scope.UserID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ユーザー一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var users []model.UserProfile
	for rows.Next() {
		var p model.UserProfile
		var role string
		if err := rows.Scan(&p.UserID, &p.Email, &role, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("ユーザー行の読み取りに失敗しました: %w", err)
		}
		p.Role = model.Role(role)
		users = append(users, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ユーザー一覧の走査に失敗しました: %w", err)
	}
	return users, nil
}

// UpdateRole はロールを更新する。
func (r *PostgresUserRepo) UpdateRole(ctx context.Context, userID string, role model.Role) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET role = $1 WHERE user_id = $2`,
		string(role), userID,
	)
	if err != nil {
		return wrapPQError("failed to update role", err)
	}
	return requireAffected(result, "user not found: "+userID)
}

// DeleteByUserID はプロフィールを削除する。
// 外部キーのCASCADEに加えて、候補者→求人→プロフィールの順に明示的に削除する。
func (r *PostgresUserRepo) DeleteByUserID(ctx context.Context, userID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM candidates WHERE job_id IN (SELECT job_id FROM jobs WHERE user_id = $1)`,
		userID,
	); err != nil {
		return wrapPQError("failed to delete candidates of user", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM jobs WHERE user_id = $1`,
		userID,
	); err != nil {
		return wrapPQError("failed to delete jobs of user", err)
	}

	result, err := tx.ExecContext(ctx,
		`DELETE FROM users WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return wrapPQError("failed to delete user", err)
	}
	if err := requireAffected(result, "user not found: "+userID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
