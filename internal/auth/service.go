// Package auth はパスワード認証、アクセストークンとリフレッシュトークンによる
// セッション管理、管理者向けのアカウント作成・削除を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/hireflow/internal/model"
	"github.com/hitoshi/hireflow/internal/repository"
	"github.com/hitoshi/hireflow/internal/validation"
)

// ErrNoSession は有効なセッションが存在しないことを表す。
// 呼び出し側は理由を区別せず未ログインとして扱う。
var ErrNoSession = errors.New("no active session")

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	Secret         string        // アクセストークン署名鍵
	Issuer         string        // アクセストークン発行者（BASE_URL）
	AccessTokenTTL time.Duration // アクセストークン有効期間
	SessionMaxAge  int           // リフレッシュトークン有効期間（秒）
}

// Principal は認証済みのログイン主体を表す。
type Principal struct {
	UserID string
	Email  string
}

// AuthResult はAuthenticateの結果。
// Refreshedが非nilの場合、トークンが更新されたのでCookieを書き戻す必要がある。
type AuthResult struct {
	Principal
	Refreshed *model.TokenPair
}

// Credentials はサインアップ・ログインの入力。
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,pwd"`
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	identRepo   repository.IdentityRepository
	sessionRepo repository.SessionRepository
	tokens      *TokenIssuer
	config      ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	identRepo repository.IdentityRepository,
	sessionRepo repository.SessionRepository,
	config ServiceConfig,
) *Service {
	return &Service{
		identRepo:   identRepo,
		sessionRepo: sessionRepo,
		tokens:      NewTokenIssuer(config.Secret, config.Issuer, config.AccessTokenTTL),
		config:      config,
	}
}

// SignUp はアカウントを自己登録する。
// identityとcustomerロールのプロフィールを同一トランザクションで作成し、
// 確認済みとしてそのままログイン状態のトークンを返す。
func (s *Service) SignUp(ctx context.Context, email, password string) (*model.Identity, *model.TokenPair, error) {
	identity, err := s.newIdentity(email, password)
	if err != nil {
		return nil, nil, err
	}

	profile := &model.UserProfile{
		UserID:    identity.ID,
		Email:     identity.Email,
		Role:      model.RoleCustomer,
		CreatedAt: identity.CreatedAt,
	}
	if err := s.identRepo.CreateWithProfile(ctx, identity, profile); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, nil, model.NewEmailTakenError(identity.Email)
		}
		return nil, nil, fmt.Errorf("failed to create identity and profile: %w", err)
	}

	slog.Info("新規ユーザーが登録されました",
		slog.String("user_id", identity.ID),
		slog.String("email", identity.Email),
	)

	pair, err := s.issue(ctx, identity)
	if err != nil {
		return nil, nil, err
	}
	return identity, pair, nil
}

// SignIn はメールアドレスとパスワードで認証し、トークンを発行する。
// 未登録と不一致は区別しない。
func (s *Service) SignIn(ctx context.Context, email, password string) (*model.Identity, *model.TokenPair, error) {
	email = normalizeEmail(email)
	if err := validation.Struct(Credentials{Email: email, Password: password}); err != nil {
		return nil, nil, err
	}

	identity, err := s.identRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find identity: %w", err)
	}
	if identity == nil {
		burnCompare(password)
		return nil, nil, model.NewInvalidCredentialsError()
	}
	if err := VerifyPassword(identity.PasswordHash, password); err != nil {
		slog.Info("ログインに失敗しました", slog.String("user_id", identity.ID))
		return nil, nil, model.NewInvalidCredentialsError()
	}
	if identity.ConfirmedAt == nil {
		slog.Warn("未確認のアカウントでログインが試行されました", slog.String("user_id", identity.ID))
		return nil, nil, model.NewInvalidCredentialsError()
	}

	pair, err := s.issue(ctx, identity)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("ユーザーがログインしました", slog.String("user_id", identity.ID))
	return identity, pair, nil
}

// SignOut はリフレッシュトークンに対応するセッションを破棄する。
// 既に破棄済みのセッションはエラーにしない。
func (s *Service) SignOut(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	if err := s.sessionRepo.DeleteByID(ctx, refreshToken); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Authenticate はCookieのトークンからログイン主体を解決する。
// アクセストークンが有効でidentityが存在すればそのまま認証する。
// アクセストークンが無効・期限切れの場合はリフレッシュトークンを検証し、
// セッションをローテーションして新しいトークンの組をRefreshedに返す。
// いずれにも該当しない場合はErrNoSessionを返す。
func (s *Service) Authenticate(ctx context.Context, accessToken, refreshToken string) (*AuthResult, error) {
	if accessToken != "" {
		if claims, err := s.tokens.Parse(accessToken); err == nil {
			identity, err := s.identRepo.FindByID(ctx, claims.Subject)
			if err != nil {
				return nil, fmt.Errorf("failed to find identity: %w", err)
			}
			if identity == nil {
				return nil, ErrNoSession
			}
			return &AuthResult{Principal: Principal{UserID: identity.ID, Email: identity.Email}}, nil
		}
	}

	if refreshToken == "" {
		return nil, ErrNoSession
	}

	session, err := s.sessionRepo.FindByID(ctx, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, ErrNoSession
	}

	// 同じリフレッシュトークンの並行使用は先に削除できた側だけを通す
	if err := s.sessionRepo.DeleteByID(ctx, session.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("failed to rotate session: %w", err)
	}

	identity, err := s.identRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find identity: %w", err)
	}
	if identity == nil {
		return nil, ErrNoSession
	}

	pair, err := s.issue(ctx, identity)
	if err != nil {
		return nil, err
	}
	slog.Debug("セッションを更新しました", slog.String("user_id", identity.ID))

	return &AuthResult{
		Principal: Principal{UserID: identity.ID, Email: identity.Email},
		Refreshed: pair,
	}, nil
}

// CreateIdentity は管理者権限でidentityを作成する。
// 確認メールは送らず確認済みとして作成し、プロフィールは作成しない。
func (s *Service) CreateIdentity(ctx context.Context, email, password string) (*model.Identity, error) {
	identity, err := s.newIdentity(email, password)
	if err != nil {
		return nil, err
	}
	if err := s.identRepo.Create(ctx, identity); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewEmailTakenError(identity.Email)
		}
		return nil, fmt.Errorf("failed to create identity: %w", err)
	}
	return identity, nil
}

// DeleteIdentity は管理者権限でidentityとそのセッションを削除する。
func (s *Service) DeleteIdentity(ctx context.Context, userID string) error {
	if err := s.sessionRepo.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete sessions: %w", err)
	}
	if err := s.identRepo.DeleteByID(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete identity: %w", err)
	}
	return nil
}

// newIdentity は入力を検証し、確認済みのidentityを組み立てる。
func (s *Service) newIdentity(email, password string) (*model.Identity, error) {
	email = normalizeEmail(email)
	if err := validation.Struct(Credentials{Email: email, Password: password}); err != nil {
		return nil, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	return &model.Identity{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		ConfirmedAt:  &now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// issue はセッション（リフレッシュトークン）を作成し、アクセストークンと組にして返す。
func (s *Service) issue(ctx context.Context, identity *model.Identity) (*model.TokenPair, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := time.Now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    identity.ID,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	access, accessExp, err := s.tokens.Issue(identity.ID, identity.Email)
	if err != nil {
		return nil, err
	}

	return &model.TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     session.ID,
		RefreshExpiresAt: session.ExpiresAt,
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
