package handler

import (
	"bytes"
	"embed"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/hireflow/internal/candidate"
	"github.com/hitoshi/hireflow/internal/job"
	"github.com/hitoshi/hireflow/internal/middleware"
	"github.com/hitoshi/hireflow/internal/model"
	"github.com/hitoshi/hireflow/internal/user"
)

//go:embed templates/*.html
var templateFS embed.FS

var statusLabels = map[model.CandidateStatus]string{
	model.StatusApplied:   "応募",
	model.StatusInterview: "面接",
	model.StatusHired:     "採用",
}

var templateFuncs = template.FuncMap{
	"deref": func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	},
	"date": func(t time.Time) string {
		return t.Local().Format("2006-01-02 15:04")
	},
	"statusLabel": func(s model.CandidateStatus) string {
		if label, ok := statusLabels[s]; ok {
			return label
		}
		return string(s)
	},
}

// pages はページ名からテンプレートへの対応。各ページはlayoutと組み合わせて解析する。
var pages = mustParsePages("index", "login", "dashboard", "jobs", "candidates", "admin")

func mustParsePages(names ...string) map[string]*template.Template {
	parsed := make(map[string]*template.Template, len(names))
	for _, name := range names {
		parsed[name] = template.Must(template.New(name).Funcs(templateFuncs).ParseFS(
			templateFS, "templates/layout.html", "templates/"+name+".html",
		))
	}
	return parsed
}

// formPages はフォーム送信後に戻ってよいページ。
var formPages = map[string]bool{"/dashboard": true, "/jobs": true, "/candidates": true, "/admin": true}

// pageData はテンプレートに渡す値。ページごとに必要なフィールドだけを埋める。
type pageData struct {
	Title     string
	CSRFToken string
	Identity  *middleware.Identity
	Role      model.Role
	IsAdmin   bool
	Message   string
	Error     string

	Statuses   []model.CandidateStatus
	Roles      []model.Role
	Users      []model.UserProfile
	Jobs       []model.JobWithOwner
	Candidates []model.CandidateWithJob
	Board      *candidate.Board
	Filter     model.CandidateFilter
}

// scope はページ表示用のデータ参照範囲を返す。
func (d pageData) scope() model.Scope {
	if d.Identity == nil {
		return model.Scope{}
	}
	return model.Scope{UserID: d.Identity.UserID, Admin: d.IsAdmin}
}

// PageHandler はサーバー描画ページとフォーム送信のHTTPハンドラー。
// 変更操作はすべて元のページへリダイレクトし、一覧を取り直させる。
type PageHandler struct {
	jobs       JobServiceInterface
	candidates CandidateServiceInterface
	accounts   AccountServiceInterface
	roles      RoleResolver
}

// NewPageHandler はPageHandlerを生成する。
func NewPageHandler(
	jobs JobServiceInterface,
	candidates CandidateServiceInterface,
	accounts AccountServiceInterface,
	roles RoleResolver,
) *PageHandler {
	return &PageHandler{jobs: jobs, candidates: candidates, accounts: accounts, roles: roles}
}

// --- ページ ---

// Index はトップページを表示する。
// GET /
func (h *PageHandler) Index(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "index", h.newPageData(r, "ようこそ"))
}

// Login はログイン・サインアップページを表示する。
// GET /login
func (h *PageHandler) Login(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "login", h.newPageData(r, "ログイン"))
}

// Dashboard はログイン中のユーザー情報を表示する。
// GET /dashboard
func (h *PageHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	data := h.newPageData(r, "ダッシュボード")
	if data.Role == "" && data.Error == "" {
		data.Error = "プロフィールが見つかりません。管理者に連絡してください。"
	}
	h.render(w, r, "dashboard", data)
}

// Jobs は求人一覧と作成フォームを表示する。
// GET /jobs
func (h *PageHandler) Jobs(w http.ResponseWriter, r *http.Request) {
	data := h.newPageData(r, "求人")
	scope := data.scope()

	jobs, err := h.jobs.List(r.Context(), scope)
	h.setLoadError(r, &data, err)
	data.Jobs = jobs

	if data.IsAdmin {
		users, err := h.accounts.ListUsers(r.Context(), scope)
		h.setLoadError(r, &data, err)
		data.Users = users
	}
	h.render(w, r, "jobs", data)
}

// Candidates は候補者のステータス別ボードと登録フォームを表示する。
// GET /candidates?job_id=&q=
func (h *PageHandler) Candidates(w http.ResponseWriter, r *http.Request) {
	data := h.newPageData(r, "候補者")
	scope := data.scope()
	data.Filter = candidateFilter(r)

	jobs, err := h.jobs.List(r.Context(), scope)
	h.setLoadError(r, &data, err)
	data.Jobs = jobs

	board, err := h.candidates.Board(r.Context(), scope, data.Filter)
	h.setLoadError(r, &data, err)
	data.Board = board

	h.render(w, r, "candidates", data)
}

// Admin は管理画面を表示する。
// ここでの管理者判定は表示用であり、各操作はサービス層で再確認する。
// GET /admin
func (h *PageHandler) Admin(w http.ResponseWriter, r *http.Request) {
	data := h.newPageData(r, "管理")
	if !data.IsAdmin {
		redirectWithFlash(w, r, "/dashboard", "error", model.NewForbiddenError().Message)
		return
	}
	scope := data.scope()

	users, err := h.accounts.ListUsers(r.Context(), scope)
	h.setLoadError(r, &data, err)
	data.Users = users

	jobs, err := h.jobs.List(r.Context(), scope)
	h.setLoadError(r, &data, err)
	data.Jobs = jobs

	cands, err := h.candidates.List(r.Context(), scope, model.CandidateFilter{})
	h.setLoadError(r, &data, err)
	data.Candidates = cands

	h.render(w, r, "admin", data)
}

// --- フォーム送信 ---

// CreateJob は求人作成フォームを処理する。
// POST /jobs
func (h *PageHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	back := backPath(r, "/jobs")
	in := job.CreateInput{
		UserID:      r.PostFormValue("user_id"),
		Title:       r.PostFormValue("title"),
		Description: r.PostFormValue("description"),
	}
	created, err := h.jobs.Create(r.Context(), h.scope(r), in)
	h.finish(w, r, back, err, func() string { return "求人「" + created.Title + "」を作成しました。" })
}

// ImportJobs は求人取り込みフォームを処理する。
// POST /jobs/import
func (h *PageHandler) ImportJobs(w http.ResponseWriter, r *http.Request) {
	imported, err := h.jobs.Import(r.Context(), h.scope(r), r.PostFormValue("feed_url"))
	h.finish(w, r, "/jobs", err, func() string {
		return strconv.Itoa(len(imported)) + "件の求人を取り込みました。"
	})
}

// DeleteJob は求人削除フォームを処理する。
// POST /jobs/{id}/delete
func (h *PageHandler) DeleteJob(w http.ResponseWriter, r *http.Request) {
	err := h.jobs.Delete(r.Context(), h.scope(r), chi.URLParam(r, "id"))
	h.finish(w, r, backPath(r, "/jobs"), err, func() string { return "求人を削除しました。" })
}

// CreateCandidate は候補者登録フォームを処理する。
// POST /candidates
func (h *PageHandler) CreateCandidate(w http.ResponseWriter, r *http.Request) {
	in := candidate.CreateInput{
		JobID:    r.PostFormValue("job_id"),
		Name:     r.PostFormValue("name"),
		LinkedIn: r.PostFormValue("linkedin"),
	}
	created, err := h.candidates.Create(r.Context(), h.scope(r), in)
	h.finish(w, r, backPath(r, "/candidates"), err, func() string { return created.Name + "さんを登録しました。" })
}

// UpdateCandidateStatus は選考ステータス変更フォームを処理する。
// POST /candidates/{id}/status
func (h *PageHandler) UpdateCandidateStatus(w http.ResponseWriter, r *http.Request) {
	status := model.CandidateStatus(r.PostFormValue("status"))
	err := h.candidates.UpdateStatus(r.Context(), h.scope(r), chi.URLParam(r, "id"), status)
	h.finish(w, r, backPath(r, "/candidates"), err, func() string {
		return "ステータスを「" + statusLabels[status] + "」に変更しました。"
	})
}

// DeleteCandidate は候補者削除フォームを処理する。
// POST /candidates/{id}/delete
func (h *PageHandler) DeleteCandidate(w http.ResponseWriter, r *http.Request) {
	err := h.candidates.Delete(r.Context(), h.scope(r), chi.URLParam(r, "id"))
	h.finish(w, r, backPath(r, "/candidates"), err, func() string { return "候補者を削除しました。" })
}

// CreateUser はアカウント作成フォームを処理する。
// POST /admin/users
func (h *PageHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	in := user.CreateAccountInput{
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
		Role:     r.PostFormValue("role"),
	}
	result, err := h.accounts.CreateAccount(r.Context(), callerID(r), in)
	h.finish(w, r, "/admin", err, func() string { return result.Message })
}

// DeleteUser はアカウント削除フォームを処理する。
// POST /admin/users/{id}/delete
func (h *PageHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	err := h.accounts.DeleteAccount(r.Context(), callerID(r), chi.URLParam(r, "id"))
	h.finish(w, r, "/admin", err, func() string { return "User deleted successfully" })
}

// ChangeRole はロール変更フォームを処理する。
// POST /admin/users/{id}/role
func (h *PageHandler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	role := model.Role(r.PostFormValue("role"))
	err := h.accounts.ChangeRole(r.Context(), callerID(r), chi.URLParam(r, "id"), role)
	h.finish(w, r, "/admin", err, func() string { return "ロールを " + string(role) + " に変更しました。" })
}

// --- 共通処理 ---

// newPageData はセッションとロールからページ共通の値を組み立てる。
func (h *PageHandler) newPageData(r *http.Request, title string) pageData {
	q := r.URL.Query()
	data := pageData{
		Title:     title,
		CSRFToken: middleware.CSRFToken(r.Context()),
		Message:   q.Get("msg"),
		Error:     q.Get("error"),
		Statuses:  model.CandidateStatuses,
		Roles:     []model.Role{model.RoleCustomer, model.RoleAdmin},
	}
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		return data
	}
	data.Identity = &id

	role, err := h.roles.Role(r.Context(), id.UserID)
	if err != nil {
		slog.Debug("ロールを取得できませんでした",
			slog.String("user_id", id.UserID),
			slog.String("error", err.Error()),
		)
		return data
	}
	data.Role = role
	data.IsAdmin = role == model.RoleAdmin
	return data
}

// scope はフォーム送信ごとにサーバー側でロールを解決し直したデータ参照範囲を返す。
func (h *PageHandler) scope(r *http.Request) model.Scope {
	return h.roles.Scope(r.Context(), callerID(r))
}

// setLoadError は一覧の取得失敗をページ上のメッセージとして表示する。
// 最初のエラーのみを表示する。
func (h *PageHandler) setLoadError(r *http.Request, data *pageData, err error) {
	if err == nil || data.Error != "" {
		return
	}
	data.Error = middleware.AsAPIError(r, err).Message
}

// finish はフォーム処理の結果をメッセージ付きで元のページへリダイレクトする。
// successは成功時のみ呼び出す。
func (h *PageHandler) finish(w http.ResponseWriter, r *http.Request, back string, err error, success func() string) {
	if err != nil {
		apiErr := middleware.AsAPIError(r, err)
		message := apiErr.Message
		if apiErr.Code == model.ErrCodePartialFailure {
			message += " " + apiErr.Action
		}
		redirectWithFlash(w, r, back, "error", message)
		return
	}
	redirectWithFlash(w, r, back, "msg", success())
}

func (h *PageHandler) render(w http.ResponseWriter, r *http.Request, name string, data pageData) {
	tmpl, ok := pages[name]
	if !ok {
		slog.Error("template not found", slog.String("name", name))
		middleware.WriteInternalServerError(w)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		slog.Error("failed to render page",
			slog.String("name", name),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}

// backPath はフォームのbackフィールドが既知のページであればそれを返す。
// オープンリダイレクトを避けるため、それ以外は既定のページに戻す。
func backPath(r *http.Request, fallback string) string {
	if back := r.PostFormValue("back"); formPages[back] {
		return back
	}
	return fallback
}

func redirectWithFlash(w http.ResponseWriter, r *http.Request, path, key, message string) {
	http.Redirect(w, r, path+"?"+url.Values{key: {message}}.Encode(), http.StatusSeeOther)
}
