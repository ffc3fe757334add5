package model

import (
	"time"
)

// Exam is the configuration root of a certification exam.
type Exam struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title"`
	DurationMinutes int       `json:"duration_minutes"`
	GatePassword    string    `json:"-"`
	CreatedAt       time.Time `json:"created_at"`
}

// Duration returns the exam time limit.
func (e *Exam) Duration() time.Duration {
	return time.Duration(e.DurationMinutes) * time.Minute
}

// Block is an ordered group of questions with a fixed draw quantity.
type Block struct {
	ID         int64  `json:"id"`
	ExamID     int64  `json:"exam_id"`
	Title      string `json:"title"`
	Qty        int    `json:"qty"`
	OrderIndex int    `json:"order_index"`
	Enabled    bool   `json:"enabled"`
}

// Question belongs to exactly one block.
type Question struct {
	ID         int64    `json:"id"`
	BlockID    int64    `json:"block_id"`
	Code       string   `json:"code"`
	Text       string   `json:"text"`
	OrderIndex int      `json:"order_index"`
	Enabled    bool     `json:"enabled"`
	Options    []Option `json:"options,omitempty"`
}

// Option belongs to exactly one question.
type Option struct {
	ID         int64  `json:"id"`
	QuestionID int64  `json:"question_id"`
	Text       string `json:"text"`
	IsCorrect  bool   `json:"is_correct"`
}

// ExamCode is a one-time access credential. Only the bcrypt hash is stored.
type ExamCode struct {
	ID        int64      `json:"id"`
	ExamID    int64      `json:"exam_id"`
	CodeHash  string     `json:"-"`
	Used      bool       `json:"used"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	Disabled  bool       `json:"disabled"`
	CreatedAt time.Time  `json:"created_at"`
}

// Redeemable reports whether the code may still open a session.
func (c *ExamCode) Redeemable() bool {
	return !c.Used && !c.Disabled
}

// ─── Candidate-facing views ─────────────────────────────────────────

// CandidateOption is an option with its correctness flag stripped.
type CandidateOption struct {
	ID   int64  `json:"id"`
	Text string `json:"text"`
}

// CandidateQuestion is a question as presented inside a session.
type CandidateQuestion struct {
	ID         int64             `json:"id"`
	Code       string            `json:"code"`
	Text       string            `json:"text"`
	OrderIndex int               `json:"order_index"`
	Options    []CandidateOption `json:"options"`
}

// NewCandidateQuestion copies q without any correctness information.
func NewCandidateQuestion(q Question) CandidateQuestion {
	opts := make([]CandidateOption, len(q.Options))
	for i, o := range q.Options {
		opts[i] = CandidateOption{ID: o.ID, Text: o.Text}
	}
	return CandidateQuestion{
		ID:         q.ID,
		Code:       q.Code,
		Text:       q.Text,
		OrderIndex: q.OrderIndex,
		Options:    opts,
	}
}

// BlockQuestions is the frozen selection of one block for a session.
type BlockQuestions struct {
	BlockID    int64               `json:"block_id"`
	BlockTitle string              `json:"block_title"`
	Qty        int                 `json:"qty"`
	Questions  []CandidateQuestion `json:"questions"`
}

// ExamConfig is the public exam header with its enabled blocks.
type ExamConfig struct {
	ExamID          int64         `json:"exam_id"`
	Title           string        `json:"title"`
	DurationMinutes int           `json:"duration_minutes"`
	Blocks          []BlockHeader `json:"blocks"`
}

// BlockHeader is a block without its questions.
type BlockHeader struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	Qty        int    `json:"qty"`
	OrderIndex int    `json:"order_index"`
}

// ExamSettings is the admin view of an exam's editable fields.
type ExamSettings struct {
	ExamID          int64  `json:"exam_id"`
	Title           string `json:"title"`
	DurationMinutes int    `json:"duration_minutes"`
	GatePassword    string `json:"gate_password"`
}

// ExamSettingsPatch carries optional updates. Nil fields are left untouched.
type ExamSettingsPatch struct {
	Title           *string
	DurationMinutes *int
	GatePassword    *string
}

// BankImport is a whole exam with its blocks, questions and options.
type BankImport struct {
	Exam   Exam
	Blocks []BlockImport
}

// BlockImport is one block of a BankImport.
type BlockImport struct {
	Block     Block
	Questions []Question
}
