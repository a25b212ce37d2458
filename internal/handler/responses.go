package handler

import (
	"time"

	"github.com/hitoshi/hireflow/internal/candidate"
	"github.com/hitoshi/hireflow/internal/model"
)

// userResponse はユーザープロフィールのAPIレスポンス。
type userResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// jobResponse は求人のAPIレスポンス。
type jobResponse struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	OwnerEmail  string    `json:"owner_email,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// candidateResponse は候補者のAPIレスポンス。
type candidateResponse struct {
	ID         string    `json:"id"`
	JobID      string    `json:"job_id"`
	Name       string    `json:"name"`
	LinkedIn   *string   `json:"linkedin"`
	Status     string    `json:"status"`
	JobTitle   string    `json:"job_title,omitempty"`
	OwnerEmail string    `json:"owner_email,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// boardColumnResponse はボードの1列のAPIレスポンス。
type boardColumnResponse struct {
	Status     string              `json:"status"`
	Candidates []candidateResponse `json:"candidates"`
}

// boardResponse はステータス別ボードのAPIレスポンス。
type boardResponse struct {
	Columns []boardColumnResponse `json:"columns"`
	Total   int                   `json:"total"`
}

func toUserResponse(p model.UserProfile) userResponse {
	return userResponse{ID: p.UserID, Email: p.Email, Role: string(p.Role), CreatedAt: p.CreatedAt}
}

func toJobResponse(j model.Job) jobResponse {
	return jobResponse{
		ID:          j.ID,
		UserID:      j.UserID,
		Title:       j.Title,
		Description: j.Description,
		CreatedAt:   j.CreatedAt,
	}
}

func toJobWithOwnerResponse(j model.JobWithOwner) jobResponse {
	resp := toJobResponse(j.Job)
	resp.OwnerEmail = j.OwnerEmail
	return resp
}

func toCandidateResponse(c model.Candidate) candidateResponse {
	return candidateResponse{
		ID:        c.ID,
		JobID:     c.JobID,
		Name:      c.Name,
		LinkedIn:  c.LinkedIn,
		Status:    string(c.Status),
		CreatedAt: c.CreatedAt,
	}
}

func toCandidateWithJobResponse(c model.CandidateWithJob) candidateResponse {
	resp := toCandidateResponse(c.Candidate)
	resp.JobTitle = c.JobTitle
	resp.OwnerEmail = c.OwnerEmail
	return resp
}

func toBoardResponse(b *candidate.Board) boardResponse {
	resp := boardResponse{Columns: make([]boardColumnResponse, len(b.Columns)), Total: b.Total}
	for i, col := range b.Columns {
		cands := make([]candidateResponse, len(col.Candidates))
		for j, c := range col.Candidates {
			cands[j] = toCandidateWithJobResponse(c)
		}
		resp.Columns[i] = boardColumnResponse{Status: string(col.Status), Candidates: cands}
	}
	return resp
}
