package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/hireflow/internal/candidate"
	"github.com/hitoshi/hireflow/internal/middleware"
	"github.com/hitoshi/hireflow/internal/model"
)

// CandidateHandler は候補者APIのHTTPハンドラー。
type CandidateHandler struct {
	service CandidateServiceInterface
	roles   RoleResolver
}

// NewCandidateHandler はCandidateHandlerを生成する。
func NewCandidateHandler(service CandidateServiceInterface, roles RoleResolver) *CandidateHandler {
	return &CandidateHandler{service: service, roles: roles}
}

// updateStatusRequest は選考ステータス更新リクエストのボディ。
type updateStatusRequest struct {
	Status string `json:"status"`
}

// candidateFilter はクエリパラメータ job_id と q から絞り込み条件を作る。
func candidateFilter(r *http.Request) model.CandidateFilter {
	q := r.URL.Query()
	return model.CandidateFilter{JobID: q.Get("job_id"), Name: q.Get("q")}
}

// ListCandidates は参照可能な候補者を新しい順に返す。
// GET /api/candidates?job_id=&q=
func (h *CandidateHandler) ListCandidates(w http.ResponseWriter, r *http.Request) {
	scope := h.roles.Scope(r.Context(), callerID(r))
	cands, err := h.service.List(r.Context(), scope, candidateFilter(r))
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	resp := make([]candidateResponse, len(cands))
	for i, c := range cands {
		resp[i] = toCandidateWithJobResponse(c)
	}
	middleware.WriteJSON(w, http.StatusOK, resp)
}

// Board は候補者をステータス別の列にまとめて返す。
// GET /api/candidates/board?job_id=&q=
func (h *CandidateHandler) Board(w http.ResponseWriter, r *http.Request) {
	scope := h.roles.Scope(r.Context(), callerID(r))
	board, err := h.service.Board(r.Context(), scope, candidateFilter(r))
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, toBoardResponse(board))
}

// GetCandidate は候補者の詳細を返す。
// GET /api/candidates/{id}
func (h *CandidateHandler) GetCandidate(w http.ResponseWriter, r *http.Request) {
	scope := h.roles.Scope(r.Context(), callerID(r))
	c, err := h.service.Get(r.Context(), scope, chi.URLParam(r, "id"))
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, toCandidateWithJobResponse(*c))
}

// CreateCandidate は候補者を登録する。
// POST /api/candidates
func (h *CandidateHandler) CreateCandidate(w http.ResponseWriter, r *http.Request) {
	var in candidate.CreateInput
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
	middleware.WriteJSON(w, http.StatusCreated, toCandidateResponse(*created))
}

// UpdateStatus は選考ステータスを変更し、変更後の候補者を返す。
// PUT /api/candidates/{id}/status
func (h *CandidateHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	id := chi.URLParam(r, "id")
	scope := h.roles.Scope(r.Context(), callerID(r))
	if err := h.service.UpdateStatus(r.Context(), scope, id, model.CandidateStatus(req.Status)); err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	c, err := h.service.Get(r.Context(), scope, id)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, toCandidateWithJobResponse(*c))
}

// DeleteCandidate は候補者を削除する。
// DELETE /api/candidates/{id}
func (h *CandidateHandler) DeleteCandidate(w http.ResponseWriter, r *http.Request) {
	scope := h.roles.Scope(r.Context(), callerID(r))
	if err := h.service.Delete(r.Context(), scope, chi.URLParam(r, "id")); err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
