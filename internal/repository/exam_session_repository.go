package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/certexam/certexam-backend/internal/database"
	"github.com/certexam/certexam-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SessionRepository handles exam sessions. Every state transition runs in a
// transaction holding a row lock on the session or its code.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

const sessionColumns = `id, exam_id, code_id, token, started_at, ends_at, finished_at, active,
	selected_map, score_percent, block_stats,
	COALESCE(candidate_first_name, ''), COALESCE(candidate_last_name, ''), COALESCE(candidate_code, '')`

func scanSession(row pgx.Row) (*model.Session, error) {
	s := &model.Session{}
	var selected, stats []byte
	err := row.Scan(
		&s.ID, &s.ExamID, &s.CodeID, &s.Token, &s.StartedAt, &s.EndsAt, &s.FinishedAt, &s.Active,
		&selected, &s.ScorePercent, &stats,
		&s.CandidateFirstName, &s.CandidateLastName, &s.CandidateCode,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrSessionNotFound
		}
		return nil, err
	}

	s.SelectedMap = model.SelectedMap{}
	if len(selected) > 0 {
		if err := json.Unmarshal(selected, &s.SelectedMap); err != nil {
			return nil, fmt.Errorf("decode selected_map: %w", err)
		}
	}
	if len(stats) > 0 {
		if err := json.Unmarshal(stats, &s.BlockStats); err != nil {
			return nil, fmt.Errorf("decode block_stats: %w", err)
		}
	}
	return s, nil
}

func insertSession(ctx context.Context, db database.DBTX, s *model.Session) error {
	selected, err := json.Marshal(s.SelectedMap)
	if err != nil {
		return err
	}
	if s.SelectedMap == nil {
		selected = []byte("{}")
	}
	_, err = db.Exec(ctx,
		`INSERT INTO exam_sessions
		   (id, exam_id, code_id, token, started_at, ends_at, active, selected_map,
		    candidate_first_name, candidate_last_name, candidate_code)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, NULLIF($9, ''), NULLIF($10, ''), NULLIF($11, ''))`,
		s.ID, s.ExamID, s.CodeID, s.Token, s.StartedAt, s.EndsAt, s.Active, string(selected),
		s.CandidateFirstName, s.CandidateLastName, s.CandidateCode,
	)
	return err
}

// CreateWithCode consumes the session's code and inserts the session. The
// code row stays locked until commit, so concurrent redemptions serialize.
func (r *SessionRepository) CreateWithCode(ctx context.Context, s *model.Session) error {
	if s.CodeID == nil {
		return fmt.Errorf("%w: session has no code", model.ErrBadRequest)
	}
	codeID := *s.CodeID

	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var used, disabled bool
		err := tx.QueryRow(ctx,
			`SELECT used, disabled FROM exam_codes WHERE id = $1 FOR UPDATE`, codeID,
		).Scan(&used, &disabled)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return model.ErrInvalidCode
			}
			return fmt.Errorf("lock code: %w", err)
		}
		if used || disabled {
			return model.ErrCodeAlreadyUsed
		}

		var live bool
		err = tx.QueryRow(ctx,
			`SELECT EXISTS (
			   SELECT 1 FROM exam_sessions
			   WHERE code_id = $1 AND active = TRUE AND finished_at IS NULL AND ends_at > $2
			 )`, codeID, s.StartedAt,
		).Scan(&live)
		if err != nil {
			return fmt.Errorf("check live session: %w", err)
		}
		if live {
			return model.ErrActiveSessionExists
		}

		if err := insertSession(ctx, tx, s); err != nil {
			return fmt.Errorf("insert session: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`UPDATE exam_codes SET used = TRUE, used_at = $2 WHERE id = $1`, codeID, s.StartedAt,
		); err != nil {
			return fmt.Errorf("consume code: %w", err)
		}
		return nil
	})
}

// Create inserts a code-less session.
func (r *SessionRepository) Create(ctx context.Context, s *model.Session) error {
	return insertSession(ctx, r.pool, s)
}

// Get retrieves a session by id.
func (r *SessionRepository) Get(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM exam_sessions WHERE id = $1`, id))
}

// FreezeSelection returns the stored selection for blockID or persists the
// result of draw. The session row is locked for the check-and-set, so a
// concurrent caller waits and then reads the winner's list.
func (r *SessionRepository) FreezeSelection(ctx context.Context, id uuid.UUID, blockID int64, now time.Time, draw func() ([]int64, error)) ([]int64, error) {
	var ids []int64
	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		s, err := scanSession(tx.QueryRow(ctx,
			`SELECT `+sessionColumns+` FROM exam_sessions WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}

		if frozen, ok := s.SelectedMap.Get(blockID); ok {
			ids = frozen
			return nil
		}
		if !s.IsLive(now) {
			return model.ErrSessionNotLive
		}

		ids, err = draw()
		if err != nil {
			return err
		}
		s.SelectedMap[strconv.FormatInt(blockID, 10)] = ids
		raw, err := json.Marshal(s.SelectedMap)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`UPDATE exam_sessions SET selected_map = $2::jsonb WHERE id = $1`, id, string(raw),
		); err != nil {
			return fmt.Errorf("store selection: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Finish deactivates the session and stores the score computed from its
// selection and answers. Every call stamps finished_at, and the score is
// recomputed from the same answers.
func (r *SessionRepository) Finish(ctx context.Context, id uuid.UUID, finishedAt time.Time, score model.ScoreFunc) (*model.Session, *model.ScoreSummary, error) {
	var (
		sess    *model.Session
		summary model.ScoreSummary
	)
	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		s, err := scanSession(tx.QueryRow(ctx,
			`SELECT `+sessionColumns+` FROM exam_sessions WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}

		answers, err := listAnswers(ctx, tx, id)
		if err != nil {
			return fmt.Errorf("list answers: %w", err)
		}

		summary = score(s, answers)
		stats, err := json.Marshal(summary.BlockStats)
		if err != nil {
			return err
		}

		err = tx.QueryRow(ctx,
			`UPDATE exam_sessions
			 SET active = FALSE,
			     finished_at = $2,
			     score_percent = $3,
			     block_stats = $4::jsonb
			 WHERE id = $1
			 RETURNING finished_at`,
			id, finishedAt, summary.ScorePercent, string(stats),
		).Scan(&s.FinishedAt)
		if err != nil {
			return fmt.Errorf("store score: %w", err)
		}

		pct := summary.ScorePercent
		s.Active = false
		s.ScorePercent = &pct
		s.BlockStats = summary.BlockStats
		sess = s
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return sess, &summary, nil
}

// ListResults retrieves sessions newest first with the total match count.
func (r *SessionRepository) ListResults(ctx context.Context, filter model.ResultFilter) ([]model.Session, int, error) {
	where := ""
	args := []any{}

	if len(filter.CandidateCodes) > 0 {
		lowered := make([]string, len(filter.CandidateCodes))
		for i, c := range filter.CandidateCodes {
			lowered[i] = strings.ToLower(c)
		}
		args = append(args, lowered)
		where = fmt.Sprintf(" WHERE LOWER(candidate_code) = ANY($%d::text[])", len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM exam_sessions"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, filter.Limit, filter.Offset)
	query := `SELECT ` + sessionColumns + ` FROM exam_sessions` + where +
		fmt.Sprintf(" ORDER BY started_at DESC, id LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	sessions := []model.Session{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, 0, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, total, rows.Err()
}
