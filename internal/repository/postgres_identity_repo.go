package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/hireflow/internal/model"
)

// PostgresIdentityRepo はPostgreSQLを使用したidentityリポジトリ。
type PostgresIdentityRepo struct {
	db *sql.DB
}

// NewPostgresIdentityRepo はPostgresIdentityRepoを生成する。
func NewPostgresIdentityRepo(db *sql.DB) *PostgresIdentityRepo {
	return &PostgresIdentityRepo{db: db}
}

const identityColumns = `id, email, password_hash, confirmed_at, created_at, updated_at`

// Create はidentityを作成する。
func (r *PostgresIdentityRepo) Create(ctx context.Context, identity *model.Identity) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO identities (id, email, password_hash, confirmed_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		identity.ID, identity.Email, identity.PasswordHash, identity.ConfirmedAt, identity.CreatedAt, identity.UpdatedAt,
	)
	if err != nil {
		return wrapPQError("failed to insert identity", err)
	}
	return nil
}

// CreateWithProfile はidentityとプロフィールを同一トランザクションで作成する。
func (r *PostgresIdentityRepo) CreateWithProfile(ctx context.Context, identity *model.Identity, profile *model.UserProfile) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO identities (id, email, password_hash, confirmed_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		identity.ID, identity.Email, identity.PasswordHash, identity.ConfirmedAt, identity.CreatedAt, identity.UpdatedAt,
	)
	if err != nil {
		return wrapPQError("failed to insert identity", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO users (user_id, email, role, created_at)
		 VALUES ($1, $2, $3, $4)`,
		profile.UserID, profile.Email, string(profile.Role), profile.CreatedAt,
	)
	if err != nil {
		return wrapPQError("failed to insert user profile", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// FindByID は指定IDのidentityを取得する。見つからない場合はnilを返す。
func (r *PostgresIdentityRepo) FindByID(ctx context.Context, id string) (*model.Identity, error) {
	return r.findOne(ctx, `SELECT `+identityColumns+` FROM identities WHERE id = $1`, id)
}

// FindByEmail はメールアドレスでidentityを取得する。見つからない場合はnilを返す。
func (r *PostgresIdentityRepo) FindByEmail(ctx context.Context, email string) (*model.Identity, error) {
	return r.findOne(ctx, `SELECT `+identityColumns+` FROM identities WHERE lower(email) = lower($1)`, email)
}

func (r *PostgresIdentityRepo) findOne(ctx context.Context, query string, arg string) (*model.Identity, error) {
	identity := &model.Identity{}
	var confirmedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&identity.ID, &identity.Email, &identity.PasswordHash, &confirmedAt, &identity.CreatedAt, &identity.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		if wrapped := wrapPQError("failed to find identity", err); isNotFound(wrapped) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find identity: %w", err)
	}
	if confirmedAt.Valid {
		t := confirmedAt.Time
		identity.ConfirmedAt = &t
	}
	return identity, nil
}

// DeleteByID は指定IDのidentityを削除する。
// sessionsとusers（およびその先の求人・候補者）はCASCADE削除される。
func (r *PostgresIdentityRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM identities WHERE id = $1`,
		id,
	)
	if err != nil {
		return wrapPQError("failed to delete identity", err)
	}
	return requireAffected(result, "identity not found: "+id)
}

// compile-time interface check
var _ IdentityRepository = (*PostgresIdentityRepo)(nil)
