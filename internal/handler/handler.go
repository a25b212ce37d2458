// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/hitoshi/hireflow/internal/candidate"
	"github.com/hitoshi/hireflow/internal/job"
	"github.com/hitoshi/hireflow/internal/middleware"
	"github.com/hitoshi/hireflow/internal/model"
	"github.com/hitoshi/hireflow/internal/user"
)

// maxBodyBytes はJSON・フォームのリクエストボディの上限。
const maxBodyBytes = 1 << 20

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	SignUp(ctx context.Context, email, password string) (*model.Identity, *model.TokenPair, error)
	SignIn(ctx context.Context, email, password string) (*model.Identity, *model.TokenPair, error)
	SignOut(ctx context.Context, refreshToken string) error
}

// RoleResolver はリクエストごとにロールとデータ参照範囲を解決するインターフェース。
type RoleResolver interface {
	Role(ctx context.Context, userID string) (model.Role, error)
	IsAdmin(ctx context.Context, userID string) bool
	RequireAdmin(ctx context.Context, userID string) error
	Scope(ctx context.Context, userID string) model.Scope
}

// JobServiceInterface は求人ハンドラーが必要とするサービスインターフェース。
type JobServiceInterface interface {
	List(ctx context.Context, scope model.Scope) ([]model.JobWithOwner, error)
	Create(ctx context.Context, scope model.Scope, in job.CreateInput) (*model.Job, error)
	Update(ctx context.Context, scope model.Scope, id string, in job.UpdateInput) (*model.Job, error)
	Delete(ctx context.Context, scope model.Scope, id string) error
	Import(ctx context.Context, scope model.Scope, feedURL string) ([]*model.Job, error)
}

// CandidateServiceInterface は候補者ハンドラーが必要とするサービスインターフェース。
type CandidateServiceInterface interface {
	List(ctx context.Context, scope model.Scope, filter model.CandidateFilter) ([]model.CandidateWithJob, error)
	Board(ctx context.Context, scope model.Scope, filter model.CandidateFilter) (*candidate.Board, error)
	Get(ctx context.Context, scope model.Scope, id string) (*model.CandidateWithJob, error)
	Create(ctx context.Context, scope model.Scope, in candidate.CreateInput) (*model.Candidate, error)
	UpdateStatus(ctx context.Context, scope model.Scope, id string, status model.CandidateStatus) error
	Delete(ctx context.Context, scope model.Scope, id string) error
}

// AccountServiceInterface はアカウント管理ハンドラーが必要とするサービスインターフェース。
type AccountServiceInterface interface {
	CreateAccount(ctx context.Context, callerID string, in user.CreateAccountInput) (*user.CreateAccountResult, error)
	DeleteAccount(ctx context.Context, callerID, targetUserID string) error
	ChangeRole(ctx context.Context, callerID, targetUserID string, role model.Role) error
	ListUsers(ctx context.Context, scope model.Scope) ([]model.UserProfile, error)
}

// errInvalidBody はリクエストボディを解析できない場合のエラー。
var errInvalidBody = model.NewValidationError("Invalid request body")

// decodeJSON はJSONボディを読み取る。未知のフィールドは無視する。
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return errInvalidBody
	}
	return nil
}

// isFormRequest はHTMLフォームからの送信かどうかを判定する。
func isFormRequest(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	return mediaType == "application/x-www-form-urlencoded" || mediaType == "multipart/form-data"
}

// callerID はセッションで確認済みのユーザーIDを返す。未ログインの場合は空文字。
func callerID(r *http.Request) string {
	id, _ := middleware.IdentityFromContext(r.Context())
	return id.UserID
}
