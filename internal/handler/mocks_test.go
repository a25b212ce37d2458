package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/hireflow/internal/access"
	"github.com/hitoshi/hireflow/internal/candidate"
	"github.com/hitoshi/hireflow/internal/job"
	"github.com/hitoshi/hireflow/internal/middleware"
	"github.com/hitoshi/hireflow/internal/model"
	"github.com/hitoshi/hireflow/internal/user"
)

// --- モック定義 ---

// mockAuthService はAuthServiceInterfaceのモック実装。
type mockAuthService struct {
	signUpFn  func(ctx context.Context, email, password string) (*model.Identity, *model.TokenPair, error)
	signInFn  func(ctx context.Context, email, password string) (*model.Identity, *model.TokenPair, error)
	signOutFn func(ctx context.Context, refreshToken string) error
}

func (m *mockAuthService) SignUp(ctx context.Context, email, password string) (*model.Identity, *model.TokenPair, error) {
	if m.signUpFn != nil {
		return m.signUpFn(ctx, email, password)
	}
	return nil, nil, nil
}

func (m *mockAuthService) SignIn(ctx context.Context, email, password string) (*model.Identity, *model.TokenPair, error) {
	if m.signInFn != nil {
		return m.signInFn(ctx, email, password)
	}
	return nil, nil, nil
}

func (m *mockAuthService) SignOut(ctx context.Context, refreshToken string) error {
	if m.signOutFn != nil {
		return m.signOutFn(ctx, refreshToken)
	}
	return nil
}

// mockRoles はRoleResolverのモック実装。adminsに含まれるユーザーを管理者とみなす。
type mockRoles struct {
	admins  map[string]bool
	missing map[string]bool
	roleErr error
}

func newMockRoles(adminIDs ...string) *mockRoles {
	m := &mockRoles{admins: map[string]bool{}, missing: map[string]bool{}}
	for _, id := range adminIDs {
		m.admins[id] = true
	}
	return m
}

func (m *mockRoles) Role(_ context.Context, userID string) (model.Role, error) {
	if m.roleErr != nil {
		return "", m.roleErr
	}
	if m.missing[userID] {
		return "", access.ErrProfileNotFound
	}
	if m.admins[userID] {
		return model.RoleAdmin, nil
	}
	return model.RoleCustomer, nil
}

func (m *mockRoles) IsAdmin(ctx context.Context, userID string) bool {
	role, err := m.Role(ctx, userID)
	return err == nil && role == model.RoleAdmin
}

func (m *mockRoles) RequireAdmin(ctx context.Context, userID string) error {
	if !m.IsAdmin(ctx, userID) {
		return model.NewForbiddenError()
	}
	return nil
}

func (m *mockRoles) Scope(ctx context.Context, userID string) model.Scope {
	return model.Scope{UserID: userID, Admin: m.IsAdmin(ctx, userID)}
}

// mockJobService はJobServiceInterfaceのモック実装。
type mockJobService struct {
	listFn   func(ctx context.Context, scope model.Scope) ([]model.JobWithOwner, error)
	createFn func(ctx context.Context, scope model.Scope, in job.CreateInput) (*model.Job, error)
	updateFn func(ctx context.Context, scope model.Scope, id string, in job.UpdateInput) (*model.Job, error)
	deleteFn func(ctx context.Context, scope model.Scope, id string) error
	importFn func(ctx context.Context, scope model.Scope, feedURL string) ([]*model.Job, error)
}

func (m *mockJobService) List(ctx context.Context, scope model.Scope) ([]model.JobWithOwner, error) {
	if m.listFn != nil {
		return m.listFn(ctx, scope)
	}
	return nil, nil
}

func (m *mockJobService) Create(ctx context.Context, scope model.Scope, in job.CreateInput) (*model.Job, error) {
	if m.createFn != nil {
		return m.createFn(ctx, scope, in)
	}
	return &model.Job{ID: "job-1", UserID: scope.UserID, Title: in.Title}, nil
}

func (m *mockJobService) Update(ctx context.Context, scope model.Scope, id string, in job.UpdateInput) (*model.Job, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, scope, id, in)
	}
	return &model.Job{ID: id, UserID: scope.UserID, Title: in.Title}, nil
}

func (m *mockJobService) Delete(ctx context.Context, scope model.Scope, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, scope, id)
	}
	return nil
}

func (m *mockJobService) Import(ctx context.Context, scope model.Scope, feedURL string) ([]*model.Job, error) {
	if m.importFn != nil {
		return m.importFn(ctx, scope, feedURL)
	}
	return nil, nil
}

// mockCandidateService はCandidateServiceInterfaceのモック実装。
type mockCandidateService struct {
	listFn         func(ctx context.Context, scope model.Scope, filter model.CandidateFilter) ([]model.CandidateWithJob, error)
	boardFn        func(ctx context.Context, scope model.Scope, filter model.CandidateFilter) (*candidate.Board, error)
	getFn          func(ctx context.Context, scope model.Scope, id string) (*model.CandidateWithJob, error)
	createFn       func(ctx context.Context, scope model.Scope, in candidate.CreateInput) (*model.Candidate, error)
	updateStatusFn func(ctx context.Context, scope model.Scope, id string, status model.CandidateStatus) error
	deleteFn       func(ctx context.Context, scope model.Scope, id string) error
}

func (m *mockCandidateService) List(ctx context.Context, scope model.Scope, filter model.CandidateFilter) ([]model.CandidateWithJob, error) {
	if m.listFn != nil {
		return m.listFn(ctx, scope, filter)
	}
	return nil, nil
}

func (m *mockCandidateService) Board(ctx context.Context, scope model.Scope, filter model.CandidateFilter) (*candidate.Board, error) {
	if m.boardFn != nil {
		return m.boardFn(ctx, scope, filter)
	}
	return emptyBoard(), nil
}

func (m *mockCandidateService) Get(ctx context.Context, scope model.Scope, id string) (*model.CandidateWithJob, error) {
	if m.getFn != nil {
		return m.getFn(ctx, scope, id)
	}
	return nil, model.NewNotFoundOrDeniedError("candidate", id)
}

func (m *mockCandidateService) Create(ctx context.Context, scope model.Scope, in candidate.CreateInput) (*model.Candidate, error) {
	if m.createFn != nil {
		return m.createFn(ctx, scope, in)
	}
	return &model.Candidate{ID: "cand-1", JobID: in.JobID, Name: in.Name, Status: model.StatusApplied}, nil
}

func (m *mockCandidateService) UpdateStatus(ctx context.Context, scope model.Scope, id string, status model.CandidateStatus) error {
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, scope, id, status)
	}
	return nil
}

func (m *mockCandidateService) Delete(ctx context.Context, scope model.Scope, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, scope, id)
	}
	return nil
}

// mockAccountService はAccountServiceInterfaceのモック実装。
type mockAccountService struct {
	createAccountFn func(ctx context.Context, callerID string, in user.CreateAccountInput) (*user.CreateAccountResult, error)
	deleteAccountFn func(ctx context.Context, callerID, targetUserID string) error
	changeRoleFn    func(ctx context.Context, callerID, targetUserID string, role model.Role) error
	listUsersFn     func(ctx context.Context, scope model.Scope) ([]model.UserProfile, error)
}

func (m *mockAccountService) CreateAccount(ctx context.Context, callerID string, in user.CreateAccountInput) (*user.CreateAccountResult, error) {
	if m.createAccountFn != nil {
		return m.createAccountFn(ctx, callerID, in)
	}
	return nil, nil
}

func (m *mockAccountService) DeleteAccount(ctx context.Context, callerID, targetUserID string) error {
	if m.deleteAccountFn != nil {
		return m.deleteAccountFn(ctx, callerID, targetUserID)
	}
	return nil
}

func (m *mockAccountService) ChangeRole(ctx context.Context, callerID, targetUserID string, role model.Role) error {
	if m.changeRoleFn != nil {
		return m.changeRoleFn(ctx, callerID, targetUserID, role)
	}
	return nil
}

func (m *mockAccountService) ListUsers(ctx context.Context, scope model.Scope) ([]model.UserProfile, error) {
	if m.listUsersFn != nil {
		return m.listUsersFn(ctx, scope)
	}
	return nil, nil
}

// --- テストヘルパー ---

func emptyBoard() *candidate.Board {
	cols := make([]candidate.Column, len(model.CandidateStatuses))
	for i, s := range model.CandidateStatuses {
		cols[i] = candidate.Column{Status: s}
	}
	return &candidate.Board{Columns: cols}
}

// withUserID はテスト用にリクエストコンテキストにユーザーIDを注入するヘルパー。
func withUserID(r *http.Request, userID string) *http.Request {
	return r.WithContext(middleware.ContextWithIdentity(r.Context(), userID, userID+"@example.com"))
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

// parseAPIErrorResponse はレスポンスボディからAPIErrorレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorResponseBody {
	t.Helper()
	var result middleware.ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return result
}

// decodeBody はレスポンスボディをJSONとしてデコードするヘルパー。
func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}
