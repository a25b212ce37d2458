package model

import "time"

// 求人の入力上限（文字数）。job.CreateInput と job.UpdateInput の validate タグと一致させること。
const (
	JobTitleMaxLen       = 200
	JobDescriptionMaxLen = 10000
)

// Job は求人を表す。所有者（UserID）のユーザー削除でカスケード削除される。
type Job struct {
	ID          string
	UserID      string
	Title       string
	Description *string
	CreatedAt   time.Time
}

// JobWithOwner は求人と所有者のメールアドレスを結合した一覧表示用の構造体。
type JobWithOwner struct {
	Job
	OwnerEmail string
}

// ImportedJob はフィードから取り込んだ1件分の求人データを表す。
type ImportedJob struct {
	Title       string
	Description string
	Link        string
}
