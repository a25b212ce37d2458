package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/hitoshi/hireflow/internal/model"
)

func TestPostgresJobRepo_ImplementsInterface(t *testing.T) {
	var _ JobRepository = (*PostgresJobRepo)(nil)
}

var jobListColumns = []string{"job_id", "user_id", "title", "description", "created_at", "email"}

func TestPostgresJobRepo_List_NonAdminFiltersByOwner(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`FROM jobs j LEFT JOIN users u ON u.user_id = j.user_id WHERE true AND j.user_id = \$1 ORDER BY j.created_at DESC`).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows(jobListColumns).
			AddRow("j-1", "u-1", "Backend Engineer", nil, time.Now(), "me@example.com"))

	jobs, err := NewPostgresJobRepo(db).List(context.Background(), model.Scope{UserID: "u-1"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("len(jobs) = %d, want 1", len(jobs))
	}
	if jobs[0].Description != nil {
		t.Errorf("Description = %v, want nil", *jobs[0].Description)
	}
	if jobs[0].OwnerEmail != "me@example.com" {
		t.Errorf("OwnerEmail = %q", jobs[0].OwnerEmail)
	}
}

func TestPostgresJobRepo_List_AdminHasNoOwnerFilter(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now()
	mock.ExpectQuery(`FROM jobs j LEFT JOIN users u ON u.user_id = j.user_id WHERE true ORDER BY j.created_at DESC`).
		WithArgs().
		WillReturnRows(sqlmock.NewRows(jobListColumns).
			AddRow("j-2", "u-2", "Designer", "UI", now, "other@example.com").
			AddRow("j-1", "u-1", "Backend Engineer", nil, now.Add(-time.Minute), "me@example.com"))

	jobs, err := NewPostgresJobRepo(db).List(context.Background(), model.Scope{UserID: "u-1", Admin: true})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("len(jobs) = %d, want 2", len(jobs))
	}
	if jobs[0].Description == nil || *jobs[0].Description != "UI" {
		t.Errorf("Description = %v, want UI", jobs[0].Description)
	}
}

func TestPostgresJobRepo_Create_StoresBlankDescriptionAsNull(t *testing.T) {
	db, mock := newMockDB(t)
	blank := ""
	mock.ExpectExec(`INSERT INTO jobs \(job_id, user_id, title, description, created_at\)`).
		WithArgs("j-1", "u-1", "QA", nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := NewPostgresJobRepo(db).Create(context.Background(), model.Scope{UserID: "u-1"},
		&model.Job{ID: "j-1", UserID: "u-1", Title: "QA", Description: &blank, CreatedAt: time.Now()})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
}

func TestPostgresJobRepo_Create_NonAdminForeignOwner_Denied(t *testing.T) {
	db, _ := newMockDB(t)

	err := NewPostgresJobRepo(db).Create(context.Background(), model.Scope{UserID: "u-1"},
		&model.Job{ID: "j-1", UserID: "u-2", Title: "QA"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPostgresJobRepo_Create_UnknownOwner_IsNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec(`INSERT INTO jobs`).
		WillReturnError(&pq.Error{Code: "23503"})

	err := NewPostgresJobRepo(db).Create(context.Background(), model.Scope{UserID: "admin", Admin: true},
		&model.Job{ID: "j-1", UserID: "ghost", Title: "QA"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPostgresJobRepo_CreateBatch(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	prep := mock.ExpectPrepare(`INSERT INTO jobs`)
	prep.ExpectExec().WithArgs("j-1", "u-1", "A", nil, sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WithArgs("j-2", "u-1", "B", "desc", sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	desc := "desc"
	err := NewPostgresJobRepo(db).CreateBatch(context.Background(), model.Scope{UserID: "u-1"}, []*model.Job{
		{ID: "j-1", UserID: "u-1", Title: "A"},
		{ID: "j-2", UserID: "u-1", Title: "B", Description: &desc},
	})
	if err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}
}

func TestPostgresJobRepo_Update_ScopedToOwner(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec(`UPDATE jobs SET title = \$1, description = \$2 WHERE job_id = \$3 AND user_id = \$4`).
		WithArgs("New title", nil, "j-1", "u-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := NewPostgresJobRepo(db).Update(context.Background(), model.Scope{UserID: "u-1"},
		&model.Job{ID: "j-1", Title: "New title"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// 求人削除は候補者を先に削除してから求人を削除する。
func TestPostgresJobRepo_Delete_RemovesCandidatesFirst(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM candidates WHERE job_id IN \(SELECT job_id FROM jobs WHERE job_id = \$1 AND user_id = \$2\)`).
		WithArgs("j-1", "u-1").
		WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectExec(`DELETE FROM jobs WHERE job_id = \$1 AND user_id = \$2`).
		WithArgs("j-1", "u-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := NewPostgresJobRepo(db).Delete(context.Background(), model.Scope{UserID: "u-1"}, "j-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}

func TestPostgresJobRepo_Delete_NotVisible_RollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM candidates`).WithArgs("j-9", "u-1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM jobs`).WithArgs("j-9", "u-1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := NewPostgresJobRepo(db).Delete(context.Background(), model.Scope{UserID: "u-1"}, "j-9")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPostgresJobRepo_Delete_AdminAnyJob(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM candidates WHERE job_id IN \(SELECT job_id FROM jobs WHERE job_id = \$1\)`).
		WithArgs("j-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM jobs WHERE job_id = \$1`).
		WithArgs("j-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := NewPostgresJobRepo(db).Delete(context.Background(), model.Scope{UserID: "admin", Admin: true}, "j-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}
