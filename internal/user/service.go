// Package user はアカウントの作成・削除・ロール変更を行う管理者向けの
// ドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/hireflow/internal/metrics"
	"github.com/hitoshi/hireflow/internal/model"
	"github.com/hitoshi/hireflow/internal/repository"
	"github.com/hitoshi/hireflow/internal/validation"
)

// IdentityAdmin は認証プロバイダの管理者APIのインターフェース。
type IdentityAdmin interface {
	CreateIdentity(ctx context.Context, email, password string) (*model.Identity, error)
	DeleteIdentity(ctx context.Context, userID string) error
}

// AdminChecker は呼び出し元が管理者かどうかを確認するインターフェース。
type AdminChecker interface {
	RequireAdmin(ctx context.Context, userID string) error
}

// CreateAccountInput はアカウント作成の入力。
type CreateAccountInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role" validate:"required,role"`
}

// CreateAccountResult はアカウント作成の結果。
type CreateAccountResult struct {
	Identity *model.Identity
	Profile  *model.UserProfile
	Message  string
}

// Service はアカウント管理のサービス層。
// 管理者権限のデータストア接続で動作し、すべての操作の前に呼び出し元のロールを再確認する。
type Service struct {
	identities IdentityAdmin
	users      repository.UserRepository
	admins     AdminChecker
	metrics    metrics.MetricsCollector
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	identities IdentityAdmin,
	users repository.UserRepository,
	admins AdminChecker,
	collector metrics.MetricsCollector,
) *Service {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Service{
		identities: identities,
		users:      users,
		admins:     admins,
		metrics:    collector,
	}
}

// CreateAccount はidentityとプロフィールを作成する。
// プロフィールの作成に失敗した場合はidentityを削除して元に戻す。
// 削除にも失敗した場合は孤立したidentityのIDを含むPartialFailureを返す。
func (s *Service) CreateAccount(ctx context.Context, callerID string, in CreateAccountInput) (*CreateAccountResult, error) {
	if err := s.admins.RequireAdmin(ctx, callerID); err != nil {
		s.metrics.RecordAccountEvent("create", metrics.OutcomeRejected)
		return nil, err
	}
	if err := validation.Struct(in); err != nil {
		s.metrics.RecordAccountEvent("create", metrics.OutcomeRejected)
		return nil, err
	}

	identity, err := s.identities.CreateIdentity(ctx, in.Email, in.Password)
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			s.metrics.RecordAccountEvent("create", metrics.OutcomeRejected)
			return nil, err
		}
		slog.Error("認証ユーザーの作成に失敗しました",
			slog.String("email", in.Email),
			slog.String("error", err.Error()),
		)
		s.metrics.RecordAccountEvent("create", metrics.OutcomeError)
		return nil, model.NewStoreError("認証ユーザーの作成に失敗しました。")
	}

	profile := &model.UserProfile{
		UserID:    identity.ID,
		Email:     identity.Email,
		Role:      model.Role(in.Role),
		CreatedAt: time.Now(),
	}
	if err := s.users.Create(ctx, profile); err != nil {
		slog.Error("プロフィールの作成に失敗したため認証ユーザーを削除します",
			slog.String("user_id", identity.ID),
			slog.String("error", err.Error()),
		)

		if rbErr := s.identities.DeleteIdentity(ctx, identity.ID); rbErr != nil {
			slog.Error("認証ユーザーのロールバックに失敗しました",
				slog.String("user_id", identity.ID),
				slog.String("error", rbErr.Error()),
			)
			s.metrics.RecordAccountEvent("create", metrics.OutcomePartialFailure)
			return nil, model.NewPartialFailureError(
				fmt.Sprintf("プロフィールの作成に失敗し、認証ユーザー %s の削除にも失敗しました。", identity.ID),
				fmt.Sprintf("認証ユーザー %s を手動で削除するか、usersテーブルにプロフィールを追加してください。", identity.ID),
			)
		}

		s.metrics.RecordAccountEvent("create", metrics.OutcomeRolledBack)
		return nil, model.NewStoreError("プロフィールの作成に失敗しました。認証ユーザーは削除済みです。")
	}

	slog.Info("アカウントを作成しました",
		slog.String("caller_id", callerID),
		slog.String("user_id", identity.ID),
		slog.String("role", in.Role),
	)
	s.metrics.RecordAccountEvent("create", metrics.OutcomeSuccess)

	return &CreateAccountResult{
		Identity: identity,
		Profile:  profile,
		Message:  fmt.Sprintf("User %s created with role %s", identity.Email, in.Role),
	}, nil
}

// DeleteAccount はプロフィール（所有する求人・候補者を含む）と認証ユーザーを削除する。
// 自分自身は削除できない。プロフィール削除後に認証ユーザーの削除に失敗した場合は
// 自動復旧せずPartialFailureを返す。
func (s *Service) DeleteAccount(ctx context.Context, callerID, targetUserID string) error {
	if err := s.admins.RequireAdmin(ctx, callerID); err != nil {
		s.metrics.RecordAccountEvent("delete", metrics.OutcomeRejected)
		return err
	}
	targetUserID, err := canonicalUserID(targetUserID)
	if err != nil {
		s.metrics.RecordAccountEvent("delete", metrics.OutcomeRejected)
		return err
	}
	if sameUser(targetUserID, callerID) {
		s.metrics.RecordAccountEvent("delete", metrics.OutcomeRejected)
		return model.NewSelfDeletionError()
	}

	profileGone := false
	if err := s.users.DeleteByUserID(ctx, targetUserID); err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			slog.Error("プロフィールの削除に失敗しました",
				slog.String("user_id", targetUserID),
				slog.String("error", err.Error()),
			)
			s.metrics.RecordAccountEvent("delete", metrics.OutcomeError)
			return model.NewStoreError("ユーザーの削除に失敗しました。")
		}
		// プロフィールのない認証ユーザーも削除対象とする
		profileGone = true
	}

	if err := s.identities.DeleteIdentity(ctx, targetUserID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			if profileGone {
				s.metrics.RecordAccountEvent("delete", metrics.OutcomeRejected)
				return model.NewNotFoundOrDeniedError("ユーザー", targetUserID)
			}
		} else {
			slog.Error("プロフィール削除後に認証ユーザーの削除に失敗しました",
				slog.String("user_id", targetUserID),
				slog.String("error", err.Error()),
			)
			s.metrics.RecordAccountEvent("delete", metrics.OutcomePartialFailure)
			return model.NewPartialFailureError(
				fmt.Sprintf("プロフィールは削除されましたが、認証ユーザー %s の削除に失敗しました。", targetUserID),
				fmt.Sprintf("認証ユーザー %s を手動で削除してください。", targetUserID),
			)
		}
	}

	slog.Info("アカウントを削除しました",
		slog.String("caller_id", callerID),
		slog.String("user_id", targetUserID),
	)
	s.metrics.RecordAccountEvent("delete", metrics.OutcomeSuccess)
	return nil
}

// ChangeRole は対象ユーザーのロールを変更する。
// 自分自身の降格も許可するが、警告ログを出力する。
func (s *Service) ChangeRole(ctx context.Context, callerID, targetUserID string, role model.Role) error {
	if err := s.admins.RequireAdmin(ctx, callerID); err != nil {
		s.metrics.RecordAccountEvent("change_role", metrics.OutcomeRejected)
		return err
	}
	targetUserID, err := canonicalUserID(targetUserID)
	if err != nil {
		s.metrics.RecordAccountEvent("change_role", metrics.OutcomeRejected)
		return err
	}
	if err := validation.Var("role", string(role), "required,role"); err != nil {
		s.metrics.RecordAccountEvent("change_role", metrics.OutcomeRejected)
		return err
	}

	if err := s.users.UpdateRole(ctx, targetUserID, role); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.metrics.RecordAccountEvent("change_role", metrics.OutcomeRejected)
			return model.NewNotFoundOrDeniedError("ユーザー", targetUserID)
		}
		slog.Error("ロールの変更に失敗しました",
			slog.String("user_id", targetUserID),
			slog.String("error", err.Error()),
		)
		s.metrics.RecordAccountEvent("change_role", metrics.OutcomeError)
		return model.NewStoreError("ロールの変更に失敗しました。")
	}

	if sameUser(targetUserID, callerID) && role != model.RoleAdmin {
		slog.Warn("管理者が自分自身を降格しました",
			slog.String("user_id", callerID),
			slog.String("role", string(role)),
		)
	}
	slog.Info("ロールを変更しました",
		slog.String("caller_id", callerID),
		slog.String("user_id", targetUserID),
		slog.String("role", string(role)),
	)
	s.metrics.RecordAccountEvent("change_role", metrics.OutcomeSuccess)
	return nil
}

// ListUsers はスコープ内のプロフィール一覧を返す。
// 管理者は全ユーザー、それ以外は自分のみが見える。
func (s *Service) ListUsers(ctx context.Context, scope model.Scope) ([]model.UserProfile, error) {
	users, err := s.users.List(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("ユーザー一覧の取得に失敗しました: %w", err)
	}
	return users, nil
}

// canonicalUserID は対象ユーザーIDを検証し、UUIDの正規形（小文字・ハイフン区切り）に変換する。
// 大文字やハイフンなしの表記も同じIDとして扱うため、比較と削除は必ず正規形で行う。
func canonicalUserID(id string) (string, error) {
	if strings.TrimSpace(id) == "" {
		return "", model.NewMissingFieldsError("userId")
	}
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return "", model.NewValidationError("userId はUUID形式で指定してください。")
	}
	return parsed.String(), nil
}

// sameUser は2つのユーザーIDが同一ユーザーを指すかを返す。
func sameUser(a, b string) bool {
	ua, errA := uuid.Parse(a)
	ub, errB := uuid.Parse(b)
	if errA != nil || errB != nil {
		return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
	}
	return ua == ub
}
