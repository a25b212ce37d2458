package middleware

import (
	"net/http"
	"time"

	"github.com/hitoshi/hireflow/internal/model"
)

const (
	// AccessTokenCookie はアクセストークンを保持するCookieの名前。
	AccessTokenCookie = "access_token"
	// RefreshTokenCookie はリフレッシュトークンを保持するCookieの名前。
	RefreshTokenCookie = "refresh_token"
)

// CookieConfig はセッションCookieの属性。
type CookieConfig struct {
	Secure bool
	Domain string
}

// SetSessionCookies はトークンの組をHttpOnly Cookieとして書き込む。
func SetSessionCookies(w http.ResponseWriter, pair *model.TokenPair, config CookieConfig) {
	setTokenCookie(w, AccessTokenCookie, pair.AccessToken, pair.AccessExpiresAt, config)
	setTokenCookie(w, RefreshTokenCookie, pair.RefreshToken, pair.RefreshExpiresAt, config)
}

// ClearSessionCookies はセッションCookieを削除する。
func ClearSessionCookies(w http.ResponseWriter, config CookieConfig) {
	for _, name := range []string{AccessTokenCookie, RefreshTokenCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			Domain:   config.Domain,
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   config.Secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

// SessionTokens はリクエストのCookieからアクセストークンとリフレッシュトークンを読み取る。
func SessionTokens(r *http.Request) (access, refresh string) {
	if c, err := r.Cookie(AccessTokenCookie); err == nil {
		access = c.Value
	}
	if c, err := r.Cookie(RefreshTokenCookie); err == nil {
		refresh = c.Value
	}
	return access, refresh
}

func setTokenCookie(w http.ResponseWriter, name, value string, expires time.Time, config CookieConfig) {
	maxAge := int(time.Until(expires).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   config.Domain,
		Expires:  expires,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
