// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hitoshi/hireflow/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	// identityContextKey はリクエストコンテキストにログイン主体を格納するためのキー。
	identityContextKey = contextKey("identity")
	// requestInfoContextKey はログ出力用のリクエスト情報を格納するためのキー。
	requestInfoContextKey = contextKey("request_info")
)

// Identity はセッションから解決したログイン主体。
type Identity struct {
	UserID string
	Email  string
}

// requestInfo は外側のミドルウェア（ログ出力）へ内側で解決した値を渡すための入れ物。
type requestInfo struct {
	userID string
}

// ContextWithIdentity はコンテキストにログイン主体を注入する。
func ContextWithIdentity(ctx context.Context, userID, email string) context.Context {
	if info, ok := ctx.Value(requestInfoContextKey).(*requestInfo); ok {
		info.userID = userID
	}
	return context.WithValue(ctx, identityContextKey, Identity{UserID: userID, Email: email})
}

// ContextWithUserID はコンテキストにユーザーIDのみを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return ContextWithIdentity(ctx, userID, "")
}

// IdentityFromContext はリクエストコンテキストからログイン主体を取得する。
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey).(Identity)
	if !ok || id.UserID == "" {
		return Identity{}, false
	}
	return id, true
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// SessionGuardでセッションが確認されたリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	id, ok := IdentityFromContext(ctx)
	if !ok {
		return "", fmt.Errorf("user ID not found in context")
	}
	return id.UserID, nil
}

// NewRequireSessionMiddleware はセッションのないリクエストに
// JSONの401 Unauthorizedを返すミドルウェアを返す。/api 配下に適用する。
func NewRequireSessionMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := IdentityFromContext(r.Context()); !ok {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
