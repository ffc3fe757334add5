package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/certexam/certexam-backend/internal/database"
	"github.com/certexam/certexam-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const answerUniqueConstraint = "uq_answers_session_question"

// AnswerRepository handles write-once answers.
type AnswerRepository struct {
	pool *pgxpool.Pool
}

// NewAnswerRepository creates a new AnswerRepository.
func NewAnswerRepository(pool *pgxpool.Pool) *AnswerRepository {
	return &AnswerRepository{pool: pool}
}

// HasAnswer reports whether the session already answered the question.
func (r *AnswerRepository) HasAnswer(ctx context.Context, sessionID uuid.UUID, questionID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM answers WHERE session_id = $1 AND question_id = $2)`,
		sessionID, questionID,
	).Scan(&exists)
	return exists, err
}

// Record inserts an answer while holding a shared lock on the session, so a
// concurrent finish cannot slip in between the liveness check and the insert.
func (r *AnswerRepository) Record(ctx context.Context, a *model.Answer) error {
	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var (
			active     bool
			finishedAt *time.Time
			endsAt     time.Time
		)
		err := tx.QueryRow(ctx,
			`SELECT active, finished_at, ends_at FROM exam_sessions WHERE id = $1 FOR SHARE`,
			a.SessionID,
		).Scan(&active, &finishedAt, &endsAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return model.ErrSessionNotFound
			}
			return fmt.Errorf("lock session: %w", err)
		}
		if !active || finishedAt != nil || !a.AnsweredAt.Before(endsAt) {
			return model.ErrSessionNotLive
		}

		return tx.QueryRow(ctx,
			`INSERT INTO answers (session_id, question_id, option_id, is_correct, answered_at)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING id`,
			a.SessionID, a.QuestionID, a.OptionID, a.IsCorrect, a.AnsweredAt,
		).Scan(&a.ID)
	})
	if database.IsUniqueViolation(err, answerUniqueConstraint) {
		return model.ErrAlreadyAnswered
	}
	return err
}

// ListBySession retrieves a session's answers in submission order.
func (r *AnswerRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.Answer, error) {
	return listAnswers(ctx, r.pool, sessionID)
}

func listAnswers(ctx context.Context, db database.DBTX, sessionID uuid.UUID) ([]model.Answer, error) {
	rows, err := db.Query(ctx,
		`SELECT id, session_id, question_id, option_id, is_correct, answered_at
		 FROM answers
		 WHERE session_id = $1
		 ORDER BY answered_at, id`, sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	answers := []model.Answer{}
	for rows.Next() {
		var a model.Answer
		if err := rows.Scan(&a.ID, &a.SessionID, &a.QuestionID, &a.OptionID, &a.IsCorrect, &a.AnsweredAt); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}
