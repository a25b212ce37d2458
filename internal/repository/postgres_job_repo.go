package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/hireflow/internal/model"
)

// PostgresJobRepo はPostgreSQLを使用した求人リポジトリ。
type PostgresJobRepo struct {
	db *sql.DB
}

// NewPostgresJobRepo はPostgresJobRepoを生成する。
func NewPostgresJobRepo(db *sql.DB) *PostgresJobRepo {
	return &PostgresJobRepo{db: db}
}

// List はスコープ内の求人を所有者メールアドレス付きでcreated_at降順で返す。
func (r *PostgresJobRepo) List(ctx context.Context, scope model.Scope) ([]model.JobWithOwner, error) {
	cond, args := ownerClause(scope, "j.user_id", nil)
	rows, err := r.db.QueryContext(ctx,
		`SELECT j.job_id, j.user_id, j.title, j.description, j.created_at, COALESCE(u.email, '')
		 FROM jobs j
		 LEFT JOIN users u ON u.user_id = j.user_id
		 WHERE true`+cond+`
		 ORDER BY j.created_at DESC`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("求人一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var jobs []model.JobWithOwner
	for rows.Next() {
		var j model.JobWithOwner
		var desc sql.NullString
		if err := rows.Scan(&j.ID, &j.UserID, &j.Title, &desc, &j.CreatedAt, &j.OwnerEmail); err != nil {
			return nil, fmt.Errorf("求人行の読み取りに失敗しました: %w", err)
		}
		j.Description = stringPtr(desc)
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("求人一覧の走査に失敗しました: %w", err)
	}
	return jobs, nil
}

// FindByID は指定IDの求人を取得する。見つからない場合はnilを返す。
func (r *PostgresJobRepo) FindByID(ctx context.Context, scope model.Scope, id string) (*model.Job, error) {
	cond, args := ownerClause(scope, "user_id", []any{id})
	job := &model.Job{}
	var desc sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT job_id, user_id, title, description, created_at
		 FROM jobs
		 WHERE job_id = $1`+cond,
		args...,
	).Scan(&job.ID, &job.UserID, &job.Title, &desc, &job.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		if isNotFound(wrapPQError("failed to find job", err)) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find job: %w", err)
	}
	job.Description = stringPtr(desc)
	return job, nil
}

// Create は求人を作成する。
// 管理者以外が他ユーザーを所有者に指定した場合はErrNotFoundを返す。
func (r *PostgresJobRepo) Create(ctx context.Context, scope model.Scope, job *model.Job) error {
	if !scope.Admin && job.UserID != scope.UserID {
		return fmt.Errorf("job owner is outside scope: %w", ErrNotFound)
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO jobs (job_id, user_id, title, description, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		job.ID, job.UserID, job.Title, nullString(job.Description), job.CreatedAt,
	)
	if err != nil {
		return wrapPQError("failed to insert job", err)
	}
	return nil
}

// CreateBatch は複数の求人を同一トランザクションで作成する。
func (r *PostgresJobRepo) CreateBatch(ctx context.Context, scope model.Scope, jobs []*model.Job) error {
	for _, job := range jobs {
		if !scope.Admin && job.UserID != scope.UserID {
			return fmt.Errorf("job owner is outside scope: %w", ErrNotFound)
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO jobs (job_id, user_id, title, description, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
	)
	if err != nil {
		return fmt.Errorf("failed to prepare job insert: %w", err)
	}
	defer stmt.Close()

	for _, job := range jobs {
		if _, err := stmt.ExecContext(ctx,
			job.ID, job.UserID, job.Title, nullString(job.Description), job.CreatedAt,
		); err != nil {
			return wrapPQError("failed to insert job", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Update はタイトルと説明を更新する。
func (r *PostgresJobRepo) Update(ctx context.Context, scope model.Scope, job *model.Job) error {
	cond, args := ownerClause(scope, "user_id", []any{job.Title, nullString(job.Description), job.ID})
	result, err := r.db.ExecContext(ctx,
		`UPDATE jobs SET title = $1, description = $2
		 WHERE job_id = $3`+cond,
		args...,
	)
	if err != nil {
		return wrapPQError("failed to update job", err)
	}
	return requireAffected(result, "job not found: "+job.ID)
}

// Delete は求人を削除する。
// 外部キーのCASCADEに加えて、候補者を先に同一トランザクションで削除する。
func (r *PostgresJobRepo) Delete(ctx context.Context, scope model.Scope, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	cond, args := ownerClause(scope, "user_id", []any{id})
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM candidates
		 WHERE job_id IN (SELECT job_id FROM jobs WHERE job_id = $1`+cond+`)`,
		args...,
	); err != nil {
		return wrapPQError("failed to delete candidates of job", err)
	}

	result, err := tx.ExecContext(ctx,
		`DELETE FROM jobs WHERE job_id = $1`+cond,
		args...,
	)
	if err != nil {
		return wrapPQError("failed to delete job", err)
	}
	if err := requireAffected(result, "job not found: "+id); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// compile-time interface check
var _ JobRepository = (*PostgresJobRepo)(nil)
