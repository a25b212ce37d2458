// Package access はユーザーのロールを解決し、権限チェックと
// データ参照範囲（Scope）の生成を行う。
// 判定はリクエストごとにデータストアから読み直し、キャッシュしない。
package access

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/hireflow/internal/model"
)

// ErrProfileNotFound はプロフィール行が存在しないことを表す。
var ErrProfileNotFound = errors.New("user profile not found")

// ProfileFinder はプロフィール取得のインターフェース。
type ProfileFinder interface {
	FindByUserID(ctx context.Context, userID string) (*model.UserProfile, error)
}

// Resolver はロール解決と権限チェックを提供する。
type Resolver struct {
	profiles ProfileFinder
}

// NewResolver はResolverを生成する。
func NewResolver(profiles ProfileFinder) *Resolver {
	return &Resolver{profiles: profiles}
}

// Role は指定ユーザーのロールを返す。
// プロフィールが存在しない場合はErrProfileNotFoundを返す。
func (r *Resolver) Role(ctx context.Context, userID string) (model.Role, error) {
	if userID == "" {
		return "", ErrProfileNotFound
	}
	profile, err := r.profiles.FindByUserID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to read role: %w", err)
	}
	if profile == nil {
		return "", ErrProfileNotFound
	}
	return profile.Role, nil
}

// IsAdmin は指定ユーザーが管理者かどうかを返す。
// ロールを読めない場合は管理者ではないとみなす。
func (r *Resolver) IsAdmin(ctx context.Context, userID string) bool {
	role, err := r.Role(ctx, userID)
	if err != nil {
		if !errors.Is(err, ErrProfileNotFound) {
			slog.Warn("ロールの取得に失敗したため非管理者として扱います",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
		return false
	}
	return role == model.RoleAdmin
}

// RequireAdmin は呼び出し元が管理者であることを確認する。
// 未ログインはUnauthorized、それ以外の非管理者はForbiddenを返す。
func (r *Resolver) RequireAdmin(ctx context.Context, userID string) error {
	if userID == "" {
		return model.NewUnauthorizedError()
	}
	if !r.IsAdmin(ctx, userID) {
		return model.NewForbiddenError()
	}
	return nil
}

// Scope は指定ユーザーのデータ参照範囲を返す。
func (r *Resolver) Scope(ctx context.Context, userID string) model.Scope {
	return model.Scope{UserID: userID, Admin: r.IsAdmin(ctx, userID)}
}
