// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/hireflow/internal/model"
)

var (
	// ErrNotFound は更新・削除対象の行が存在しないか、スコープ外であることを表す。
	// 両者は区別しない。
	ErrNotFound = errors.New("row not found or not visible")

	// ErrDuplicate は一意制約違反を表す。
	ErrDuplicate = errors.New("duplicate row")
)

// IdentityRepository は認証主体（identities）の永続化インターフェース。
// 認証プロバイダ（authパッケージ）からのみ利用する。
type IdentityRepository interface {
	// Create はidentityを作成する。メールアドレスが重複する場合はErrDuplicateを返す。
	Create(ctx context.Context, identity *model.Identity) error

	// CreateWithProfile はidentityとプロフィールを同一トランザクションで作成する。
	CreateWithProfile(ctx context.Context, identity *model.Identity, profile *model.UserProfile) error

	// FindByID は指定IDのidentityを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Identity, error)

	// FindByEmail はメールアドレス（大文字小文字を区別しない）でidentityを取得する。
	// 見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.Identity, error)

	// DeleteByID は指定IDのidentityを削除する。
	// sessionsとusersはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// UserRepository はユーザープロフィール（users）の永続化インターフェース。
type UserRepository interface {
	// FindByUserID は指定ユーザーのプロフィールを取得する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.UserProfile, error)

	// Create はプロフィールを作成する。
	Create(ctx context.Context, profile *model.UserProfile) error

	// List はスコープ内のプロフィールをcreated_at降順で返す。
	List(ctx context.Context, scope model.Scope) ([]model.UserProfile, error)

	// UpdateRole はロールを更新する。対象が存在しない場合はErrNotFoundを返す。
	UpdateRole(ctx context.Context, userID string, role model.Role) error

	// DeleteByUserID はプロフィールを削除する。
	// 所有する求人とその候補者も同一トランザクションで削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// JobRepository は求人データの永続化インターフェース。
// すべての操作はスコープで参照範囲を制限する。
type JobRepository interface {
	// List はスコープ内の求人を所有者メールアドレス付きでcreated_at降順で返す。
	List(ctx context.Context, scope model.Scope) ([]model.JobWithOwner, error)

	// FindByID は指定IDの求人を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, scope model.Scope, id string) (*model.Job, error)

	// Create は求人を作成する。
	Create(ctx context.Context, scope model.Scope, job *model.Job) error

	// CreateBatch は複数の求人を同一トランザクションで作成する。
	CreateBatch(ctx context.Context, scope model.Scope, jobs []*model.Job) error

	// Update はタイトルと説明を更新する。
	Update(ctx context.Context, scope model.Scope, job *model.Job) error

	// Delete は求人を削除する。候補者も同一トランザクションで削除する。
	Delete(ctx context.Context, scope model.Scope, id string) error
}

// CandidateRepository は候補者データの永続化インターフェース。
// 候補者の可視性は所属する求人の可視性に従う。
type CandidateRepository interface {
	// List はスコープ内の候補者を求人タイトル付きでcreated_at降順で返す。
	List(ctx context.Context, scope model.Scope, filter model.CandidateFilter) ([]model.CandidateWithJob, error)

	// FindByID は指定IDの候補者を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, scope model.Scope, id string) (*model.CandidateWithJob, error)

	// Create は候補者を作成する。求人がスコープ外の場合はErrNotFoundを返す。
	Create(ctx context.Context, scope model.Scope, candidate *model.Candidate) error

	// UpdateStatus は選考ステータスを更新する。
	UpdateStatus(ctx context.Context, scope model.Scope, id string, status model.CandidateStatus) error

	// Delete は候補者を削除する。
	Delete(ctx context.Context, scope model.Scope, id string) error
}
