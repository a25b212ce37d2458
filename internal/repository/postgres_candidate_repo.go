package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hitoshi/hireflow/internal/model"
)

// PostgresCandidateRepo はPostgreSQLを使用した候補者リポジトリ。
// 候補者の所有者は所属する求人の所有者とする。
type PostgresCandidateRepo struct {
	db *sql.DB
}

// NewPostgresCandidateRepo はPostgresCandidateRepoを生成する。
func NewPostgresCandidateRepo(db *sql.DB) *PostgresCandidateRepo {
	return &PostgresCandidateRepo{db: db}
}

const candidateSelect = `SELECT c.candidate_id, c.job_id, c.name, c.linkedin, c.status, c.created_at,
			COALESCE(j.title, ''), COALESCE(u.email, '')
		 FROM candidates c
		 JOIN jobs j ON j.job_id = c.job_id
		 LEFT JOIN users u ON u.user_id = j.user_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCandidate(s rowScanner) (model.CandidateWithJob, error) {
	var c model.CandidateWithJob
	var linkedin sql.NullString
	var status string
	err := s.Scan(&c.ID, &c.JobID, &c.Name, &linkedin, &status, &c.CreatedAt, &c.JobTitle, &c.OwnerEmail)
	c.LinkedIn = stringPtr(linkedin)
	c.Status = model.CandidateStatus(status)
	return c, err
}

// List はスコープ内の候補者を求人タイトル付きでcreated_at降順で返す。
// filter.JobIDで求人を、filter.Nameで名前の部分一致（大文字小文字を区別しない）を絞り込む。
func (r *PostgresCandidateRepo) List(ctx context.Context, scope model.Scope, filter model.CandidateFilter) ([]model.CandidateWithJob, error) {
	var where []string
	var args []any
	if !scope.Admin {
		args = append(args, scope.UserID)
		where = append(where, fmt.Sprintf("j.user_id = $%d", len(args)))
	}
	if filter.JobID != "" {
		args = append(args, filter.JobID)
		where = append(where, fmt.Sprintf("c.job_id = $%d", len(args)))
	}
	if name := strings.TrimSpace(filter.Name); name != "" {
		args = append(args, likePattern(name))
		where = append(where, fmt.Sprintf("c.name ILIKE $%d", len(args)))
	}

	query := candidateSelect
	if len(where) > 0 {
		query += "\n\t\t WHERE " + strings.Join(where, " AND ")
	}
	query += "\n\t\t ORDER BY c.created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		if isNotFound(wrapPQError("failed to list candidates", err)) {
			return nil, nil
		}
		return nil, fmt.Errorf("候補者一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var candidates []model.CandidateWithJob
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, fmt.Errorf("候補者行の読み取りに失敗しました: %w", err)
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("候補者一覧の走査に失敗しました: %w", err)
	}
	return candidates, nil
}

// FindByID は指定IDの候補者を取得する。見つからない場合はnilを返す。
func (r *PostgresCandidateRepo) FindByID(ctx context.Context, scope model.Scope, id string) (*model.CandidateWithJob, error) {
	cond, args := ownerClause(scope, "j.user_id", []any{id})
	c, err := scanCandidate(r.db.QueryRowContext(ctx,
		candidateSelect+`
		 WHERE c.candidate_id = $1`+cond,
		args...,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		if isNotFound(wrapPQError("failed to find candidate", err)) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find candidate: %w", err)
	}
	return &c, nil
}

// Create は候補者を作成する。
// 求人がスコープ内に存在する場合のみ挿入し、それ以外はErrNotFoundを返す。
func (r *PostgresCandidateRepo) Create(ctx context.Context, scope model.Scope, candidate *model.Candidate) error {
	cond, args := ownerClause(scope, "user_id", []any{
		candidate.ID, candidate.JobID, candidate.Name, nullString(candidate.LinkedIn),
		string(candidate.Status), candidate.CreatedAt,
	})
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO candidates (candidate_id, job_id, name, linkedin, status, created_at)
		 SELECT $1::uuid, $2::uuid, $3::text, $4::text, $5::text, $6::timestamptz
		 WHERE EXISTS (SELECT 1 FROM jobs WHERE job_id = $2::uuid`+cond+`)`,
		args...,
	)
	if err != nil {
		return wrapPQError("failed to insert candidate", err)
	}
	return requireAffected(result, "job not found: "+candidate.JobID)
}

// UpdateStatus は選考ステータスを更新する。
func (r *PostgresCandidateRepo) UpdateStatus(ctx context.Context, scope model.Scope, id string, status model.CandidateStatus) error {
	query := `UPDATE candidates SET status = $1 WHERE candidate_id = $2`
	args := []any{string(status), id}
	if !scope.Admin {
		args = append(args, scope.UserID)
		query += ` AND job_id IN (SELECT job_id FROM jobs WHERE user_id = $3)`
	}
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return wrapPQError("failed to update candidate status", err)
	}
	return requireAffected(result, "candidate not found: "+id)
}

// Delete は候補者を削除する。
func (r *PostgresCandidateRepo) Delete(ctx context.Context, scope model.Scope, id string) error {
	query := `DELETE FROM candidates WHERE candidate_id = $1`
	args := []any{id}
	if !scope.Admin {
		args = append(args, scope.UserID)
		query += ` AND job_id IN (SELECT job_id FROM jobs WHERE user_id = $2)`
	}
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return wrapPQError("failed to delete candidate", err)
	}
	return requireAffected(result, "candidate not found: "+id)
}

// compile-time interface check
var _ CandidateRepository = (*PostgresCandidateRepo)(nil)
