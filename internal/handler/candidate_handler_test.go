package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/hireflow/internal/candidate"
	"github.com/hitoshi/hireflow/internal/model"
)

func TestCandidateHandler_ListCandidates_PassesFilter(t *testing.T) {
	svc := &mockCandidateService{
		listFn: func(_ context.Context, _ model.Scope, filter model.CandidateFilter) ([]model.CandidateWithJob, error) {
			if filter.JobID != "job-1" || filter.Name != "tan" {
				t.Errorf("filter = %+v", filter)
			}
			return []model.CandidateWithJob{{
				Candidate: model.Candidate{ID: "cand-1", JobID: "job-1", Name: "Tanaka", Status: model.StatusApplied},
				JobTitle:  "Go Engineer",
			}}, nil
		},
	}
	h := NewCandidateHandler(svc, newMockRoles())

	req := withUserID(httptest.NewRequest(http.MethodGet, "/api/candidates?job_id=job-1&q=tan", nil), "user-1")
	w := httptest.NewRecorder()

	h.ListCandidates(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var body []candidateResponse
	decodeBody(t, w, &body)
	if len(body) != 1 || body[0].JobTitle != "Go Engineer" || body[0].Status != "applied" {
		t.Errorf("body = %+v", body)
	}
}

func TestCandidateHandler_Board_ReturnsColumnsInOrder(t *testing.T) {
	svc := &mockCandidateService{
		boardFn: func(context.Context, model.Scope, model.CandidateFilter) (*candidate.Board, error) {
			b := emptyBoard()
			b.Columns[1].Candidates = []model.CandidateWithJob{{
				Candidate: model.Candidate{ID: "cand-2", Name: "Suzuki", Status: model.StatusInterview},
			}}
			b.Total = 1
			return b, nil
		},
	}
	h := NewCandidateHandler(svc, newMockRoles())

	req := withUserID(httptest.NewRequest(http.MethodGet, "/api/candidates/board", nil), "user-1")
	w := httptest.NewRecorder()

	h.Board(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var body boardResponse
	decodeBody(t, w, &body)
	if len(body.Columns) != 3 || body.Total != 1 {
		t.Fatalf("body = %+v", body)
	}
	want := []string{"applied", "interview", "hired"}
	for i, col := range body.Columns {
		if col.Status != want[i] {
			t.Errorf("column[%d] = %q, want %q", i, col.Status, want[i])
		}
	}
	if len(body.Columns[1].Candidates) != 1 || body.Columns[1].Candidates[0].Name != "Suzuki" {
		t.Errorf("interview column = %+v", body.Columns[1])
	}
}

func TestCandidateHandler_GetCandidate_HiddenReturns404(t *testing.T) {
	h := NewCandidateHandler(&mockCandidateService{}, newMockRoles())

	req := httptest.NewRequest(http.MethodGet, "/api/candidates/cand-x", nil)
	req = withChiURLParam(withUserID(req, "user-1"), "id", "cand-x")
	w := httptest.NewRecorder()

	h.GetCandidate(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
	if body := parseAPIErrorResponse(t, w); body.Code != model.ErrCodeNotFoundOrDenied {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeNotFoundOrDenied)
	}
}

func TestCandidateHandler_CreateCandidate_Returns201(t *testing.T) {
	svc := &mockCandidateService{
		createFn: func(_ context.Context, _ model.Scope, in candidate.CreateInput) (*model.Candidate, error) {
			if in.JobID != "job-1" || in.Name != "Sato" || in.LinkedIn != "https://www.linkedin.com/in/sato" {
				t.Errorf("input = %+v", in)
			}
			return &model.Candidate{ID: "cand-3", JobID: in.JobID, Name: in.Name, LinkedIn: strPtr(in.LinkedIn), Status: model.StatusApplied}, nil
		},
	}
	h := NewCandidateHandler(svc, newMockRoles())

	req := httptest.NewRequest(http.MethodPost, "/api/candidates",
		bytes.NewBufferString(`{"job_id":"job-1","name":"Sato","linkedin":"https://www.linkedin.com/in/sato"}`))
	req = withUserID(req, "user-1")
	w := httptest.NewRecorder()

	h.CreateCandidate(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusCreated)
	}
	var body candidateResponse
	decodeBody(t, w, &body)
	if body.Status != "applied" || body.LinkedIn == nil {
		t.Errorf("body = %+v", body)
	}
}

func TestCandidateHandler_UpdateStatus_ReturnsUpdatedCandidate(t *testing.T) {
	var got model.CandidateStatus
	svc := &mockCandidateService{
		updateStatusFn: func(_ context.Context, _ model.Scope, id string, status model.CandidateStatus) error {
			if id != "cand-1" {
				t.Errorf("id = %q, want cand-1", id)
			}
			got = status
			return nil
		},
		getFn: func(_ context.Context, _ model.Scope, id string) (*model.CandidateWithJob, error) {
			return &model.CandidateWithJob{Candidate: model.Candidate{ID: id, Status: got}}, nil
		},
	}
	h := NewCandidateHandler(svc, newMockRoles())

	req := httptest.NewRequest(http.MethodPut, "/api/candidates/cand-1/status", bytes.NewBufferString(`{"status":"interview"}`))
	req = withChiURLParam(withUserID(req, "user-1"), "id", "cand-1")
	w := httptest.NewRecorder()

	h.UpdateStatus(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var body candidateResponse
	decodeBody(t, w, &body)
	if body.Status != "interview" {
		t.Errorf("status = %q, want interview", body.Status)
	}
}

func TestCandidateHandler_UpdateStatus_InvalidStatusReturns400(t *testing.T) {
	svc := &mockCandidateService{
		updateStatusFn: func(context.Context, model.Scope, string, model.CandidateStatus) error {
			return model.NewValidationError("invalid status")
		},
	}
	h := NewCandidateHandler(svc, newMockRoles())

	req := httptest.NewRequest(http.MethodPut, "/api/candidates/cand-1/status", bytes.NewBufferString(`{"status":"rejected"}`))
	req = withChiURLParam(withUserID(req, "user-1"), "id", "cand-1")
	w := httptest.NewRecorder()

	h.UpdateStatus(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestCandidateHandler_DeleteCandidate(t *testing.T) {
	var deleted string
	svc := &mockCandidateService{
		deleteFn: func(_ context.Context, _ model.Scope, id string) error {
			deleted = id
			return nil
		},
	}
	h := NewCandidateHandler(svc, newMockRoles())

	req := httptest.NewRequest(http.MethodDelete, "/api/candidates/cand-1", nil)
	req = withChiURLParam(withUserID(req, "user-1"), "id", "cand-1")
	w := httptest.NewRecorder()

	h.DeleteCandidate(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if deleted != "cand-1" {
		t.Errorf("deleted = %q, want cand-1", deleted)
	}
}
