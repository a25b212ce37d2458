package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/hireflow/internal/access"
	"github.com/hitoshi/hireflow/internal/middleware"
	"github.com/hitoshi/hireflow/internal/model"
	"github.com/hitoshi/hireflow/internal/user"
)

// UserHandler はユーザー情報とアカウント管理のHTTPハンドラー。
type UserHandler struct {
	service AccountServiceInterface
	roles   RoleResolver
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service AccountServiceInterface, roles RoleResolver) *UserHandler {
	return &UserHandler{service: service, roles: roles}
}

// meResponse はログイン中のユーザー情報のAPIレスポンス。
type meResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// deleteUserRequest はユーザー削除リクエストのボディ。
type deleteUserRequest struct {
	UserID string `json:"userId"`
}

// changeRoleRequest はロール変更リクエストのボディ。
type changeRoleRequest struct {
	Role string `json:"role"`
}

// Me はログイン中のユーザー情報とロールを返す。
// プロフィールがない場合のroleは空文字。
// GET /api/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())

	role, err := h.roles.Role(r.Context(), id.UserID)
	if err != nil && !errors.Is(err, access.ErrProfileNotFound) {
		middleware.WriteError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, meResponse{ID: id.UserID, Email: id.Email, Role: string(role)})
}

// ListUsers は参照可能なユーザーを返す。管理者は全ユーザー、それ以外は自分のみ。
// GET /api/users
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	scope := h.roles.Scope(r.Context(), callerID(r))
	users, err := h.service.ListUsers(r.Context(), scope)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	resp := make([]userResponse, len(users))
	for i, u := range users {
		resp[i] = toUserResponse(u)
	}
	middleware.WriteJSON(w, http.StatusOK, resp)
}

// ChangeRole は対象ユーザーのロールを変更する。
// PUT /api/users/{id}/role
func (h *UserHandler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	var req changeRoleRequest
	if err := h.decodeAdminRequest(w, r, &req); err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	target := chi.URLParam(r, "id")
	if err := h.service.ChangeRole(r.Context(), callerID(r), target, model.Role(req.Role)); err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Role updated to " + req.Role,
	})
}

// CreateUser は管理者としてアカウントを作成する。
// POST /api/admin/create-user
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var in user.CreateAccountInput
	if err := h.decodeAdminRequest(w, r, &in); err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	result, err := h.service.CreateAccount(r.Context(), callerID(r), in)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"user":    toUserResponse(*result.Profile),
		"message": result.Message,
	})
}

// DeleteUser は管理者としてアカウントを削除する。
// DELETE /api/admin/delete-user
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	var req deleteUserRequest
	if err := h.decodeAdminRequest(w, r, &req); err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	if err := h.service.DeleteAccount(r.Context(), callerID(r), req.UserID); err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "User deleted successfully",
	})
}

// decodeAdminRequest は管理者向けリクエストのボディを読み取る。
// ボディが不正な場合でも権限エラーを入力エラーより先に返す。
func (h *UserHandler) decodeAdminRequest(w http.ResponseWriter, r *http.Request, v any) error {
	if err := decodeJSON(w, r, v); err != nil {
		if adminErr := h.roles.RequireAdmin(r.Context(), callerID(r)); adminErr != nil {
			return adminErr
		}
		return err
	}
	return nil
}
