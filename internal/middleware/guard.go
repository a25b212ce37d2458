package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/hireflow/internal/auth"
)

// Authenticator はCookieのトークンからログイン主体を解決するインターフェース。
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken, refreshToken string) (*auth.AuthResult, error)
}

// GuardConfig はSessionGuardの設定。
type GuardConfig struct {
	Cookie    CookieConfig
	Protected []string // セッション必須のパス（セグメント単位で前方一致）
	LoginPath string
	HomePath  string // ログイン済みで LoginPath を開いた場合の遷移先
}

// DefaultGuardConfig はページルートの標準設定を返す。
func DefaultGuardConfig(cookie CookieConfig) GuardConfig {
	return GuardConfig{
		Cookie:    cookie,
		Protected: []string{"/dashboard", "/jobs", "/candidates", "/admin"},
		LoginPath: "/login",
		HomePath:  "/dashboard",
	}
}

// NewSessionGuard は全リクエストの最初にセッションを解決するミドルウェアを返す。
// セッションの読み取りに失敗した場合は未ログインとして扱う。
// 保護パスへの未ログインアクセスはログインページへ、
// ログイン済みでのログインページアクセスはダッシュボードへリダイレクトする。
func NewSessionGuard(authenticator Authenticator, config GuardConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := resolveSession(w, r, authenticator, config.Cookie)

			switch {
			case principal == nil && config.isProtected(r.URL.Path):
				http.Redirect(w, r, config.LoginPath, redirectStatus(r))
				return
			case principal != nil && r.URL.Path == config.LoginPath:
				http.Redirect(w, r, config.HomePath, redirectStatus(r))
				return
			}

			if principal != nil {
				r = r.WithContext(ContextWithIdentity(r.Context(), principal.UserID, principal.Email))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// resolveSession はCookieからログイン主体を解決する。
// トークンが更新された場合は新しいCookieをレスポンスに書き戻し、
// 無効なトークンが残っている場合はCookieを削除する。
func resolveSession(w http.ResponseWriter, r *http.Request, authenticator Authenticator, cookie CookieConfig) *auth.Principal {
	access, refresh := SessionTokens(r)
	if access == "" && refresh == "" {
		return nil
	}

	result, err := authenticator.Authenticate(r.Context(), access, refresh)
	if err != nil {
		if !errors.Is(err, auth.ErrNoSession) {
			slog.Warn("セッションの確認に失敗しました",
				slog.String("path", r.URL.Path),
				slog.String("error", err.Error()),
			)
			return nil
		}
		slog.Debug("有効なセッションがありません", slog.String("path", r.URL.Path))
		ClearSessionCookies(w, cookie)
		return nil
	}

	if result.Refreshed != nil {
		SetSessionCookies(w, result.Refreshed, cookie)
	}
	return &result.Principal
}

// redirectStatus はリダイレクトのステータスを返す。
// フォーム送信（POST）のリダイレクト先はGETで開き直させるため303とする。
func redirectStatus(r *http.Request) int {
	if isSafeMethod(r.Method) {
		return http.StatusTemporaryRedirect
	}
	return http.StatusSeeOther
}

// isProtected はパスが保護パスのいずれかと一致するか、その配下かを判定する。
// "/jobsearch" のようにセグメント境界をまたぐ一致は保護対象としない。
func (c GuardConfig) isProtected(path string) bool {
	for _, prefix := range c.Protected {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}
