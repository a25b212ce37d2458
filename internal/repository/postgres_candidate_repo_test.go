package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/hitoshi/hireflow/internal/model"
)

func TestPostgresCandidateRepo_ImplementsInterface(t *testing.T) {
	var _ CandidateRepository = (*PostgresCandidateRepo)(nil)
}

var candidateColumns = []string{"candidate_id", "job_id", "name", "linkedin", "status", "created_at", "title", "email"}

func TestPostgresCandidateRepo_List_AppliesScopeAndFilters(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`FROM candidates c JOIN jobs j ON j.job_id = c.job_id LEFT JOIN users u ON u.user_id = j.user_id WHERE j.user_id = \$1 AND c.job_id = \$2 AND c.name ILIKE \$3 ORDER BY c.created_at DESC`).
		WithArgs("u-1", "j-1", `%an\_na%`).
		WillReturnRows(sqlmock.NewRows(candidateColumns).
			AddRow("c-1", "j-1", "Anna", nil, "interview", time.Now(), "Backend Engineer", "me@example.com"))

	got, err := NewPostgresCandidateRepo(db).List(context.Background(), model.Scope{UserID: "u-1"},
		model.CandidateFilter{JobID: "j-1", Name: " an_na "})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].Status != model.StatusInterview || got[0].JobTitle != "Backend Engineer" || got[0].LinkedIn != nil {
		t.Errorf("unexpected candidate: %+v", got[0])
	}
}

func TestPostgresCandidateRepo_List_AdminUnfiltered(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`LEFT JOIN users u ON u.user_id = j.user_id ORDER BY c.created_at DESC`).
		WithArgs().
		WillReturnRows(sqlmock.NewRows(candidateColumns).
			AddRow("c-2", "j-2", "Bo", "https://www.linkedin.com/in/bo", "applied", time.Now(), "Designer", "other@example.com"))

	got, err := NewPostgresCandidateRepo(db).List(context.Background(), model.Scope{UserID: "admin", Admin: true}, model.CandidateFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].LinkedIn == nil || *got[0].LinkedIn != "https://www.linkedin.com/in/bo" {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestPostgresCandidateRepo_Create_NullLinkedIn(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec(`INSERT INTO candidates \(candidate_id, job_id, name, linkedin, status, created_at\) SELECT .* WHERE EXISTS \(SELECT 1 FROM jobs WHERE job_id = \$2::uuid AND user_id = \$7\)`).
		WithArgs("c-1", "j-1", "Anna", nil, "applied", sqlmock.AnyArg(), "u-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := NewPostgresCandidateRepo(db).Create(context.Background(), model.Scope{UserID: "u-1"}, &model.Candidate{
		ID: "c-1", JobID: "j-1", Name: "Anna", Status: model.StatusApplied, CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
}

func TestPostgresCandidateRepo_Create_ForeignJob_IsNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec(`INSERT INTO candidates`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := NewPostgresCandidateRepo(db).Create(context.Background(), model.Scope{UserID: "u-1"}, &model.Candidate{
		ID: "c-1", JobID: "j-other", Name: "Anna", Status: model.StatusApplied,
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPostgresCandidateRepo_UpdateStatus_NonAdmin(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec(`UPDATE candidates SET status = \$1 WHERE candidate_id = \$2 AND job_id IN \(SELECT job_id FROM jobs WHERE user_id = \$3\)`).
		WithArgs("hired", "c-1", "u-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := NewPostgresCandidateRepo(db).UpdateStatus(context.Background(), model.Scope{UserID: "u-1"}, "c-1", model.StatusHired); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
}

// hired から applied への逆戻りも許可される。
func TestPostgresCandidateRepo_UpdateStatus_Backwards(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec(`UPDATE candidates SET status = \$1 WHERE candidate_id = \$2$`).
		WithArgs("applied", "c-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := NewPostgresCandidateRepo(db).UpdateStatus(context.Background(), model.Scope{UserID: "admin", Admin: true}, "c-1", model.StatusApplied); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
}

func TestPostgresCandidateRepo_Delete_NotVisible(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec(`DELETE FROM candidates WHERE candidate_id = \$1 AND job_id IN`).
		WithArgs("c-9", "u-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := NewPostgresCandidateRepo(db).Delete(context.Background(), model.Scope{UserID: "u-1"}, "c-9")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLikePattern_EscapesWildcards(t *testing.T) {
	tests := map[string]string{
		"anna":   "%anna%",
		"50%":    `%50\%%`,
		"a_b":    `%a\_b%`,
		`back\`: `%back\\%`,
	}
	for in, want := range tests {
		if got := likePattern(in); got != want {
			t.Errorf("likePattern(%q) = %q, want %q", in, got, want)
		}
	}
}
