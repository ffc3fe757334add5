package service

import (
	"context"
	"time"

	"github.com/certexam/certexam-backend/internal/model"
	"github.com/google/uuid"
)

// QuestionBank is the read-only view of exam structure used by the selector
// and the public exam config. Missing rows are reported with the model
// not-found errors.
type QuestionBank interface {
	GetExam(ctx context.Context, examID int64) (*model.Exam, error)
	ListEnabledBlocks(ctx context.Context, examID int64) ([]model.Block, error)
	GetBlock(ctx context.Context, blockID int64) (*model.Block, error)
	// ListBlockQuestions returns enabled questions ordered by order_index,
	// each with all of its options.
	ListBlockQuestions(ctx context.Context, blockID int64) ([]model.Question, error)
}

// ExamStore is the uncached exam store.
type ExamStore interface {
	QuestionBank
	ListExamIDs(ctx context.Context) ([]int64, error)
	GetOption(ctx context.Context, optionID int64) (*model.Option, error)
	// ListQuestionsByIDs returns the questions regardless of their enabled flag.
	ListQuestionsByIDs(ctx context.Context, ids []int64) ([]model.Question, error)
	UpdateExamSettings(ctx context.Context, examID int64, patch model.ExamSettingsPatch) (*model.Exam, error)
}

// CodeStore holds hashed one-time access codes.
type CodeStore interface {
	// ListRedeemableCodes returns unused, enabled codes in storage order.
	ListRedeemableCodes(ctx context.Context, examID int64) ([]model.ExamCode, error)
	InsertCodes(ctx context.Context, examID int64, hashes []string) (int, error)
}

// SessionStore is the single source of truth for session state.
type SessionStore interface {
	// CreateWithCode consumes sess.CodeID and inserts sess in one unit of work.
	// It fails with ErrCodeAlreadyUsed when the code was consumed concurrently
	// and with ErrActiveSessionExists when a live session holds the code.
	CreateWithCode(ctx context.Context, sess *model.Session) error
	Create(ctx context.Context, sess *model.Session) error
	Get(ctx context.Context, id uuid.UUID) (*model.Session, error)
	// FreezeSelection returns the frozen list for blockID, calling draw and
	// persisting its result only when the block has no selection yet. A draw
	// error is returned as is and nothing is stored.
	FreezeSelection(ctx context.Context, id uuid.UUID, blockID int64, now time.Time, draw func() ([]int64, error)) ([]int64, error)
	// Finish closes the session and stores the score computed by score.
	Finish(ctx context.Context, id uuid.UUID, finishedAt time.Time, score model.ScoreFunc) (*model.Session, *model.ScoreSummary, error)
	ListResults(ctx context.Context, filter model.ResultFilter) ([]model.Session, int, error)
}

// AnswerStore holds write-once answers.
type AnswerStore interface {
	HasAnswer(ctx context.Context, sessionID uuid.UUID, questionID int64) (bool, error)
	// Record inserts a, re-checking session liveness at a.AnsweredAt. A
	// duplicate (session, question) pair fails with ErrAlreadyAnswered.
	Record(ctx context.Context, a *model.Answer) error
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.Answer, error)
}

// UserStore is the account collaborator consulted for exam permission.
type UserStore interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByCode(ctx context.Context, code string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	ListByPersonalID(ctx context.Context, personalID string) ([]model.User, error)
	ListByCodes(ctx context.Context, codes []string) ([]model.User, error)
	SetExamPermission(ctx context.Context, userID int64, allowed bool) error
	Create(ctx context.Context, u *model.User) error
}

// EventSink receives session audit events. Publishing is best-effort.
type EventSink interface {
	Publish(ctx context.Context, ev model.SessionEvent) error
}

// EventLog reads back persisted session events.
type EventLog interface {
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.SessionEvent, error)
}

// CacheInvalidator drops cached question bank entries for an exam.
type CacheInvalidator interface {
	InvalidateExam(ctx context.Context, examID int64) error
}

type discardEvents struct{}

func (discardEvents) Publish(context.Context, model.SessionEvent) error { return nil }
