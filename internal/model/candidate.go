package model

import "time"

// CandidateStatus は候補者の選考段階を表す。段階間の遷移順序に制約はない。
type CandidateStatus string

const (
	StatusApplied   CandidateStatus = "applied"
	StatusInterview CandidateStatus = "interview"
	StatusHired     CandidateStatus = "hired"
)

// CandidateStatuses はボード表示の列順を表す。
var CandidateStatuses = []CandidateStatus{StatusApplied, StatusInterview, StatusHired}

// Valid はステータスが定義済みの値かどうかを返す。
func (s CandidateStatus) Valid() bool {
	switch s {
	case StatusApplied, StatusInterview, StatusHired:
		return true
	}
	return false
}

// Candidate は求人への応募者を表す。求人の削除でカスケード削除される。
type Candidate struct {
	ID        string
	JobID     string
	Name      string
	LinkedIn  *string
	Status    CandidateStatus
	CreatedAt time.Time
}

// CandidateWithJob は候補者と求人タイトル、求人所有者のメールアドレスを結合した構造体。
type CandidateWithJob struct {
	Candidate
	JobTitle   string
	OwnerEmail string
}

// CandidateFilter は候補者一覧の絞り込み条件を表す。
// JobIDが空の場合は全求人、Nameが空の場合は名前で絞り込まない。
type CandidateFilter struct {
	JobID string
	Name  string
}
