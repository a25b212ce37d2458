package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/hitoshi/hireflow/internal/auth"
	"github.com/hitoshi/hireflow/internal/middleware"
	"github.com/hitoshi/hireflow/internal/model"
)

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	Cookie    middleware.CookieConfig
	LoginPath string
	HomePath  string
}

// AuthHandler はサインアップ・ログイン・ログアウトのHTTPハンドラー。
// HTMLフォームからの送信はページへリダイレクトし、JSONはJSONで応答する。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	if config.LoginPath == "" {
		config.LoginPath = "/login"
	}
	if config.HomePath == "" {
		config.HomePath = "/dashboard"
	}
	return &AuthHandler{service: service, config: config}
}

// identityResponse はログイン結果のAPIレスポンス。
type identityResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Login はメールアドレスとパスワードでログインする。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	h.authenticate(w, r, http.StatusOK, h.service.SignIn)
}

// SignUp はアカウントを自己登録してそのままログインする。
// POST /auth/signup
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	h.authenticate(w, r, http.StatusCreated, h.service.SignUp)
}

// credentialFunc はSignIn・SignUpの共通シグネチャ。
type credentialFunc func(ctx context.Context, email, password string) (*model.Identity, *model.TokenPair, error)

func (h *AuthHandler) authenticate(
	w http.ResponseWriter,
	r *http.Request,
	successStatus int,
	fn credentialFunc,
) {
	form := isFormRequest(r)

	var creds auth.Credentials
	if form {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := r.ParseForm(); err != nil {
			h.redirectLoginError(w, r, errInvalidBody)
			return
		}
		creds.Email = r.PostFormValue("email")
		creds.Password = r.PostFormValue("password")
	} else if err := decodeJSON(w, r, &creds); err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	identity, pair, err := fn(r.Context(), creds.Email, creds.Password)
	if err != nil {
		if form {
			h.redirectLoginError(w, r, err)
			return
		}
		middleware.WriteError(w, r, err)
		return
	}

	middleware.SetSessionCookies(w, pair, h.config.Cookie)
	if form {
		http.Redirect(w, r, h.config.HomePath, http.StatusSeeOther)
		return
	}
	middleware.WriteJSON(w, successStatus, identityResponse{ID: identity.ID, Email: identity.Email})
}

// Logout はセッションを破棄し、Cookieを削除する。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	_, refresh := middleware.SessionTokens(r)
	if refresh != "" {
		if err := h.service.SignOut(r.Context(), refresh); err != nil {
			// ログアウト失敗してもCookieはクリアする
			slog.Error("failed to sign out", slog.String("error", err.Error()))
		}
	}
	middleware.ClearSessionCookies(w, h.config.Cookie)

	if isFormRequest(r) {
		http.Redirect(w, r, h.config.LoginPath, http.StatusSeeOther)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// redirectLoginError はフォーム送信の失敗をログインページのメッセージとして返す。
func (h *AuthHandler) redirectLoginError(w http.ResponseWriter, r *http.Request, err error) {
	message := middleware.AsAPIError(r, err).Message
	http.Redirect(w, r, h.config.LoginPath+"?error="+url.QueryEscape(message), http.StatusSeeOther)
}
