package model

import (
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// SelectedMap maps a block id (decimal string) to the ordered question ids
// drawn for that block. It is persisted as JSON.
type SelectedMap map[string][]int64

func blockKey(blockID int64) string {
	return strconv.FormatInt(blockID, 10)
}

// Get returns the frozen selection for a block.
func (m SelectedMap) Get(blockID int64) ([]int64, bool) {
	ids, ok := m[blockKey(blockID)]
	return ids, ok
}

// Contains reports whether questionID was drawn in any block.
func (m SelectedMap) Contains(questionID int64) bool {
	for _, ids := range m {
		for _, id := range ids {
			if id == questionID {
				return true
			}
		}
	}
	return false
}

// Total returns the number of drawn questions across all blocks.
func (m SelectedMap) Total() int {
	n := 0
	for _, ids := range m {
		n += len(ids)
	}
	return n
}

// BlockIDs returns the selected block ids in ascending numeric order.
// Keys that are not numeric are skipped.
func (m SelectedMap) BlockIDs() []int64 {
	out := make([]int64, 0, len(m))
	for k := range m {
		id, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// QuestionIDs returns every drawn question id, block by block.
func (m SelectedMap) QuestionIDs() []int64 {
	out := make([]int64, 0, m.Total())
	for _, b := range m.BlockIDs() {
		ids, _ := m.Get(b)
		out = append(out, ids...)
	}
	return out
}

// Clone returns a deep copy.
func (m SelectedMap) Clone() SelectedMap {
	out := make(SelectedMap, len(m))
	for k, ids := range m {
		out[k] = append([]int64(nil), ids...)
	}
	return out
}

// BlockStat is the frozen per-block score of a finished session.
type BlockStat struct {
	BlockID int64   `json:"block_id"`
	Total   int     `json:"total"`
	Correct int     `json:"correct"`
	Percent float64 `json:"percent"`
}

// SessionState is the lifecycle state of a session at a point in time.
type SessionState string

const (
	SessionStateCreated    SessionState = "created"
	SessionStateInProgress SessionState = "in_progress"
	SessionStateExpired    SessionState = "expired"
	SessionStateFinished   SessionState = "finished"
)

// ResultStatus is the coarse status shown in admin result listings.
type ResultStatus string

const (
	ResultStatusCompleted  ResultStatus = "completed"
	ResultStatusInProgress ResultStatus = "in_progress"
	ResultStatusAborted    ResultStatus = "aborted"
)

// Session is one exam attempt.
type Session struct {
	ID                 uuid.UUID   `json:"id"`
	ExamID             int64       `json:"exam_id"`
	CodeID             *int64      `json:"code_id,omitempty"`
	Token              string      `json:"-"`
	StartedAt          time.Time   `json:"started_at"`
	EndsAt             time.Time   `json:"ends_at"`
	FinishedAt         *time.Time  `json:"finished_at,omitempty"`
	Active             bool        `json:"active"`
	SelectedMap        SelectedMap `json:"-"`
	ScorePercent       *float64    `json:"score_percent,omitempty"`
	BlockStats         []BlockStat `json:"block_stats,omitempty"`
	CandidateFirstName string      `json:"candidate_first_name,omitempty"`
	CandidateLastName  string      `json:"candidate_last_name,omitempty"`
	CandidateCode      string      `json:"candidate_code,omitempty"`
}

// IsLive reports whether the session may draw questions or accept answers.
func (s *Session) IsLive(now time.Time) bool {
	return s.Active && s.FinishedAt == nil && now.Before(s.EndsAt)
}

// State derives the lifecycle state. Expiry is never stored.
func (s *Session) State(now time.Time) SessionState {
	switch {
	case s.FinishedAt != nil:
		return SessionStateFinished
	case !s.IsLive(now):
		return SessionStateExpired
	case len(s.SelectedMap) == 0:
		return SessionStateCreated
	default:
		return SessionStateInProgress
	}
}

// ResultStatus classifies the session for result listings.
func (s *Session) ResultStatus() ResultStatus {
	if s.FinishedAt != nil {
		return ResultStatusCompleted
	}
	if s.Active {
		return ResultStatusInProgress
	}
	return ResultStatusAborted
}

// Remaining returns the time left before ends_at, never negative.
func (s *Session) Remaining(now time.Time) time.Duration {
	if d := s.EndsAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Answer is a write-once response to one question in a session.
type Answer struct {
	ID         int64     `json:"id"`
	SessionID  uuid.UUID `json:"session_id"`
	QuestionID int64     `json:"question_id"`
	OptionID   int64     `json:"option_id"`
	IsCorrect  bool      `json:"is_correct"`
	AnsweredAt time.Time `json:"answered_at"`
}

// ScoreSummary is the result of finishing a session.
type ScoreSummary struct {
	TotalQuestions int         `json:"total_questions"`
	Answered       int         `json:"answered"`
	Correct        int         `json:"correct"`
	ScorePercent   float64     `json:"score_percent"`
	BlockStats     []BlockStat `json:"block_stats"`
}

// Percent returns part/total*100 rounded to two decimals, or 0 when total is 0.
func Percent(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(part)/float64(total)*100*100) / 100
}

// ScoreFunc computes a session's score from its frozen selection and answers.
// Stores call it while holding the session lock.
type ScoreFunc func(sess *Session, answers []Answer) ScoreSummary

// SessionGrant is returned to the client when a session is opened.
type SessionGrant struct {
	SessionID       uuid.UUID `json:"session_id"`
	Token           string    `json:"token"`
	ExamID          int64     `json:"exam_id"`
	DurationMinutes int       `json:"duration_minutes"`
	EndsAt          time.Time `json:"ends_at"`
}
