// Package candidate は候補者の一覧・ボード表示・登録・選考ステータス更新・削除を提供する。
package candidate

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/hireflow/internal/model"
	"github.com/hitoshi/hireflow/internal/repository"
	"github.com/hitoshi/hireflow/internal/validation"
)

// UnknownJob は求人タイトルを解決できない場合の表示名。
const UnknownJob = "不明な求人"

// Sanitizer は入力テキストからマークアップを除去するインターフェース。
type Sanitizer interface {
	Line(raw string) string
}

// URLValidator は外部URLを静的に検証するインターフェース。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// CreateInput は候補者登録の入力。LinkedInは任意。
type CreateInput struct {
	JobID    string `json:"job_id" validate:"required"`
	Name     string `json:"name" validate:"required,max=200"`
	LinkedIn string `json:"linkedin" validate:"max=2048"`
}

// Board は候補者をステータス別の列にまとめたもの。
// 列はmodel.CandidateStatusesの順に並ぶ。
type Board struct {
	Columns []Column
	Total   int
}

// Column はボードの1列。
type Column struct {
	Status     model.CandidateStatus
	Candidates []model.CandidateWithJob
}

// Service は候補者のサービス層。
// 候補者の可視性は所属する求人の可視性に従う。
type Service struct {
	repo      repository.CandidateRepository
	sanitizer Sanitizer
	urls      URLValidator
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.CandidateRepository, sanitizer Sanitizer, urls URLValidator) *Service {
	return &Service{repo: repo, sanitizer: sanitizer, urls: urls}
}

// List はスコープ内の候補者を新しい順に返す。
func (s *Service) List(ctx context.Context, scope model.Scope, filter model.CandidateFilter) ([]model.CandidateWithJob, error) {
	filter.JobID = strings.TrimSpace(filter.JobID)
	filter.Name = strings.TrimSpace(filter.Name)
	if err := validation.Var("job_id", filter.JobID, "omitempty,uuid"); err != nil {
		return nil, err
	}

	candidates, err := s.repo.List(ctx, scope, filter)
	if err != nil {
		return nil, err
	}
	for i := range candidates {
		fillPlaceholders(&candidates[i])
	}
	return candidates, nil
}

// Board は候補者一覧をステータス別に振り分けて返す。
// 各列の中は新しい順を保つ。
func (s *Service) Board(ctx context.Context, scope model.Scope, filter model.CandidateFilter) (*Board, error) {
	candidates, err := s.List(ctx, scope, filter)
	if err != nil {
		return nil, err
	}

	index := make(map[model.CandidateStatus]int, len(model.CandidateStatuses))
	board := &Board{Columns: make([]Column, len(model.CandidateStatuses)), Total: len(candidates)}
	for i, st := range model.CandidateStatuses {
		board.Columns[i] = Column{Status: st, Candidates: []model.CandidateWithJob{}}
		index[st] = i
	}
	for _, c := range candidates {
		i, ok := index[c.Status]
		if !ok {
			slog.Warn("未知のステータスの候補者をスキップしました",
				slog.String("candidate_id", c.ID),
				slog.String("status", string(c.Status)),
			)
			continue
		}
		board.Columns[i].Candidates = append(board.Columns[i].Candidates, c)
	}
	return board, nil
}

// Get は指定IDの候補者を返す。
func (s *Service) Get(ctx context.Context, scope model.Scope, id string) (*model.CandidateWithJob, error) {
	c, err := s.repo.FindByID(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, model.NewNotFoundOrDeniedError("候補者", id)
	}
	fillPlaceholders(c)
	return c, nil
}

// Create は候補者を選考ステータス applied で登録する。
// LinkedInが空白の場合はNULLとして保存する。
func (s *Service) Create(ctx context.Context, scope model.Scope, in CreateInput) (*model.Candidate, error) {
	in.JobID = strings.TrimSpace(in.JobID)
	in.Name = s.sanitizer.Line(in.Name)
	in.LinkedIn = strings.TrimSpace(in.LinkedIn)

	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	var linkedin *string
	if in.LinkedIn != "" {
		if err := s.urls.ValidateURL(in.LinkedIn); err != nil {
			return nil, model.NewValidationError("linkedin must be a public http(s) URL")
		}
		linkedin = &in.LinkedIn
	}

	c := &model.Candidate{
		ID:        uuid.New().String(),
		JobID:     in.JobID,
		Name:      in.Name,
		LinkedIn:  linkedin,
		Status:    model.StatusApplied,
		CreatedAt: time.Now(),
	}
	if err := s.repo.Create(ctx, scope, c); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewNotFoundOrDeniedError("求人", in.JobID)
		}
		return nil, err
	}

	slog.Info("候補者を登録しました",
		slog.String("candidate_id", c.ID),
		slog.String("job_id", c.JobID),
		slog.String("caller_id", scope.UserID),
	)
	return c, nil
}

// UpdateStatus は選考ステータスを変更する。遷移の順序は問わない。
func (s *Service) UpdateStatus(ctx context.Context, scope model.Scope, id string, status model.CandidateStatus) error {
	if err := validation.Var("status", string(status), "required,status"); err != nil {
		return err
	}
	if err := s.repo.UpdateStatus(ctx, scope, id, status); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewNotFoundOrDeniedError("候補者", id)
		}
		return err
	}
	slog.Info("選考ステータスを変更しました",
		slog.String("candidate_id", id),
		slog.String("status", string(status)),
		slog.String("caller_id", scope.UserID),
	)
	return nil
}

// Delete は候補者を削除する。
func (s *Service) Delete(ctx context.Context, scope model.Scope, id string) error {
	if err := s.repo.Delete(ctx, scope, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewNotFoundOrDeniedError("候補者", id)
		}
		return err
	}
	return nil
}

func fillPlaceholders(c *model.CandidateWithJob) {
	if c.JobTitle == "" {
		c.JobTitle = UnknownJob
	}
}
