// Package job は求人の一覧・作成・更新・削除とフィードからの取り込みを提供する。
package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/hireflow/internal/metrics"
	"github.com/hitoshi/hireflow/internal/model"
	"github.com/hitoshi/hireflow/internal/repository"
	"github.com/hitoshi/hireflow/internal/validation"
)

// UnknownOwner は所有者のメールアドレスを解決できない場合の表示名。
const UnknownOwner = "不明"

// Sanitizer は入力テキストからマークアップを除去するインターフェース。
type Sanitizer interface {
	Line(raw string) string
	Text(raw string) string
}

// FeedImporter はフィードから求人データを取得するインターフェース。
type FeedImporter interface {
	Fetch(ctx context.Context, rawURL string) ([]model.ImportedJob, error)
}

// CreateInput は求人作成の入力。
// UserIDは管理者のみ指定でき、管理者以外は呼び出し元が所有者になる。
type CreateInput struct {
	UserID      string `json:"user_id"`
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=10000"`
}

// UpdateInput は求人更新の入力。
type UpdateInput struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=10000"`
}

// Service は求人のサービス層。
// 参照範囲はすべて呼び出し元のScopeで制限する。
type Service struct {
	repo      repository.JobRepository
	sanitizer Sanitizer
	importer  FeedImporter
	metrics   metrics.MetricsCollector
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	repo repository.JobRepository,
	sanitizer Sanitizer,
	importer FeedImporter,
	collector metrics.MetricsCollector,
) *Service {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Service{
		repo:      repo,
		sanitizer: sanitizer,
		importer:  importer,
		metrics:   collector,
	}
}

// List はスコープ内の求人を新しい順に返す。
func (s *Service) List(ctx context.Context, scope model.Scope) ([]model.JobWithOwner, error) {
	jobs, err := s.repo.List(ctx, scope)
	if err != nil {
		return nil, err
	}
	for i := range jobs {
		if jobs[i].OwnerEmail == "" {
			jobs[i].OwnerEmail = UnknownOwner
		}
	}
	return jobs, nil
}

// Get は指定IDの求人を返す。
func (s *Service) Get(ctx context.Context, scope model.Scope, id string) (*model.Job, error) {
	job, err := s.repo.FindByID(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, model.NewNotFoundOrDeniedError("求人", id)
	}
	return job, nil
}

// Create は求人を作成する。説明が空の場合はNULLとして保存する。
func (s *Service) Create(ctx context.Context, scope model.Scope, in CreateInput) (*model.Job, error) {
	in.Title = s.sanitizer.Line(in.Title)
	in.Description = s.sanitizer.Text(in.Description)
	in.UserID = strings.TrimSpace(in.UserID)

	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	owner := in.UserID
	if owner == "" {
		if scope.Admin {
			return nil, model.NewMissingFieldsError("user_id")
		}
		owner = scope.UserID
	}

	job := &model.Job{
		ID:          uuid.New().String(),
		UserID:      owner,
		Title:       in.Title,
		Description: optional(in.Description),
		CreatedAt:   time.Now(),
	}
	if err := s.repo.Create(ctx, scope, job); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewNotFoundOrDeniedError("ユーザー", owner)
		}
		return nil, err
	}

	slog.Info("求人を作成しました",
		slog.String("job_id", job.ID),
		slog.String("user_id", owner),
		slog.String("caller_id", scope.UserID),
	)
	return job, nil
}

// Update は求人のタイトルと説明を更新する。
func (s *Service) Update(ctx context.Context, scope model.Scope, id string, in UpdateInput) (*model.Job, error) {
	in.Title = s.sanitizer.Line(in.Title)
	in.Description = s.sanitizer.Text(in.Description)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	job := &model.Job{ID: id, Title: in.Title, Description: optional(in.Description)}
	if err := s.repo.Update(ctx, scope, job); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewNotFoundOrDeniedError("求人", id)
		}
		return nil, err
	}
	return s.Get(ctx, scope, id)
}

// Delete は求人とその候補者を削除する。
func (s *Service) Delete(ctx context.Context, scope model.Scope, id string) error {
	if err := s.repo.Delete(ctx, scope, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewNotFoundOrDeniedError("求人", id)
		}
		return err
	}
	slog.Info("求人を削除しました",
		slog.String("job_id", id),
		slog.String("caller_id", scope.UserID),
	)
	return nil
}

// Import はフィードのエントリを呼び出し元所有の求人として一括作成する。
func (s *Service) Import(ctx context.Context, scope model.Scope, feedURL string) ([]*model.Job, error) {
	if err := validation.Var("feed_url", strings.TrimSpace(feedURL), "required"); err != nil {
		return nil, err
	}
	if s.importer == nil {
		return nil, model.NewStoreError("求人の取り込みは無効です。")
	}

	imported, err := s.importer.Fetch(ctx, strings.TrimSpace(feedURL))
	if err != nil {
		return nil, err
	}
	if len(imported) == 0 {
		return []*model.Job{}, nil
	}

	now := time.Now()
	jobs := make([]*model.Job, 0, len(imported))
	for i, item := range imported {
		desc := item.Description
		if item.Link != "" {
			desc = strings.TrimSpace(desc + "\n\n" + item.Link)
		}
		jobs = append(jobs, &model.Job{
			ID:          uuid.New().String(),
			UserID:      scope.UserID,
			Title:       item.Title,
			Description: optional(desc),
			// 同一時刻だとフィードの順序が失われるため1msずつずらす
			CreatedAt: now.Add(-time.Duration(i) * time.Millisecond),
		})
	}

	if err := s.repo.CreateBatch(ctx, scope, jobs); err != nil {
		return nil, fmt.Errorf("取り込んだ求人の保存に失敗しました: %w", err)
	}

	s.metrics.RecordJobsImported(len(jobs))
	slog.Info("フィードから求人を取り込みました",
		slog.String("user_id", scope.UserID),
		slog.String("feed_url", feedURL),
		slog.Int("count", len(jobs)),
	)
	return jobs, nil
}

func optional(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
