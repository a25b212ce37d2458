package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/hireflow/internal/job"
	"github.com/hitoshi/hireflow/internal/middleware"
)

// JobHandler は求人APIのHTTPハンドラー。
type JobHandler struct {
	service JobServiceInterface
	roles   RoleResolver
}

// NewJobHandler はJobHandlerを生成する。
func NewJobHandler(service JobServiceInterface, roles RoleResolver) *JobHandler {
	return &JobHandler{service: service, roles: roles}
}

// importRequest は求人取り込みリクエストのボディ。
type importRequest struct {
	FeedURL string `json:"feed_url"`
}

// ListJobs は参照可能な求人を新しい順に返す。
// GET /api/jobs
func (h *JobHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	scope := h.roles.Scope(r.Context(), callerID(r))
	jobs, err := h.service.List(r.Context(), scope)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	resp := make([]jobResponse, len(jobs))
	for i, j := range jobs {
		resp[i] = toJobWithOwnerResponse(j)
	}
	middleware.WriteJSON(w, http.StatusOK, resp)
}

// CreateJob は求人を作成する。
// POST /api/jobs
func (h *JobHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var in job.CreateInput
	if err := decodeJSON(w, r, &in); err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	scope := h.roles.Scope(r.Context(), callerID(r))
	created, err := h.service.Create(r.Context(), scope, in)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, toJobResponse(*created))
}

// UpdateJob は求人のタイトルと説明を更新する。
// PATCH /api/jobs/{id}
func (h *JobHandler) UpdateJob(w http.ResponseWriter, r *http.Request) {
	var in job.UpdateInput
	if err := decodeJSON(w, r, &in); err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	scope := h.roles.Scope(r.Context(), callerID(r))
	updated, err := h.service.Update(r.Context(), scope, chi.URLParam(r, "id"), in)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, toJobResponse(*updated))
}

// DeleteJob は求人とその候補者を削除する。
// DELETE /api/jobs/{id}
func (h *JobHandler) DeleteJob(w http.ResponseWriter, r *http.Request) {
	scope := h.roles.Scope(r.Context(), callerID(r))
	if err := h.service.Delete(r.Context(), scope, chi.URLParam(r, "id")); err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ImportJobs はRSS/Atomフィードのエントリを求人として取り込む。
// POST /api/jobs/import
func (h *JobHandler) ImportJobs(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	scope := h.roles.Scope(r.Context(), callerID(r))
	jobs, err := h.service.Import(r.Context(), scope, req.FeedURL)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	resp := make([]jobResponse, len(jobs))
	for i, j := range jobs {
		resp[i] = toJobResponse(*j)
	}
	middleware.WriteJSON(w, http.StatusCreated, map[string]any{
		"imported": len(resp),
		"jobs":     resp,
	})
}
