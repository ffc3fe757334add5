package model

import (
	"time"

	"github.com/google/uuid"
)

// ResultFilter narrows the admin result listing.
type ResultFilter struct {
	// CandidateCodes matches case-insensitively. Empty means no filter.
	CandidateCodes []string
	Limit          int
	Offset         int
}

// ResultItem is one row of the admin result listing.
type ResultItem struct {
	SessionID          uuid.UUID    `json:"session_id"`
	ExamID             int64        `json:"exam_id"`
	StartedAt          time.Time    `json:"started_at"`
	EndsAt             time.Time    `json:"ends_at"`
	FinishedAt         *time.Time   `json:"finished_at,omitempty"`
	CandidateFirstName string       `json:"candidate_first_name,omitempty"`
	CandidateLastName  string       `json:"candidate_last_name,omitempty"`
	CandidateCode      string       `json:"candidate_code,omitempty"`
	PersonalID         string       `json:"personal_id,omitempty"`
	ScorePercent       float64      `json:"score_percent"`
	Status             ResultStatus `json:"status"`
}

// AnswerOptionDetail is an option in the admin answer breakdown.
type AnswerOptionDetail struct {
	ID        int64  `json:"id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
	Selected  bool   `json:"selected"`
}

// AnswerDetail is one selected question with the candidate's response.
type AnswerDetail struct {
	BlockID      int64                `json:"block_id"`
	QuestionID   int64                `json:"question_id"`
	QuestionCode string               `json:"question_code"`
	QuestionText string               `json:"question_text"`
	Answered     bool                 `json:"answered"`
	IsCorrect    bool                 `json:"is_correct"`
	AnsweredAt   *time.Time           `json:"answered_at,omitempty"`
	Options      []AnswerOptionDetail `json:"options"`
}

// ResultDetail is the admin view of a single session.
type ResultDetail struct {
	ResultItem
	ExamTitle  string         `json:"exam_title"`
	BlockStats []BlockStat    `json:"block_stats"`
	Answers    []AnswerDetail `json:"answers"`
	Events     []SessionEvent `json:"events,omitempty"`
}
