package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/certexam/certexam-backend/internal/database"
	"github.com/certexam/certexam-backend/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ExamRepository handles exams, blocks, questions and options.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

const examColumns = `id, title, duration_minutes, gate_password, created_at`

func scanExam(row pgx.Row) (*model.Exam, error) {
	e := &model.Exam{}
	if err := row.Scan(&e.ID, &e.Title, &e.DurationMinutes, &e.GatePassword, &e.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrExamNotFound
		}
		return nil, err
	}
	return e, nil
}

// GetExam retrieves an exam by id, including its gate password.
func (r *ExamRepository) GetExam(ctx context.Context, examID int64) (*model.Exam, error) {
	return scanExam(r.pool.QueryRow(ctx,
		`SELECT `+examColumns+` FROM exams WHERE id = $1`, examID))
}

// ListExamIDs returns every exam id in ascending order.
func (r *ExamRepository) ListExamIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM exams ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

// ListEnabledBlocks retrieves the enabled blocks of an exam ordered by
// order_index, then id.
func (r *ExamRepository) ListEnabledBlocks(ctx context.Context, examID int64) ([]model.Block, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, exam_id, title, qty, order_index, enabled
		 FROM blocks
		 WHERE exam_id = $1 AND enabled = TRUE
		 ORDER BY order_index, id`, examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	blocks := []model.Block{}
	for rows.Next() {
		var b model.Block
		if err := rows.Scan(&b.ID, &b.ExamID, &b.Title, &b.Qty, &b.OrderIndex, &b.Enabled); err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
	return blocks, rows.Err()
}

// GetBlock retrieves a block regardless of its enabled flag.
func (r *ExamRepository) GetBlock(ctx context.Context, blockID int64) (*model.Block, error) {
	b := &model.Block{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, exam_id, title, qty, order_index, enabled FROM blocks WHERE id = $1`, blockID,
	).Scan(&b.ID, &b.ExamID, &b.Title, &b.Qty, &b.OrderIndex, &b.Enabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrBlockNotFound
		}
		return nil, err
	}
	return b, nil
}

// ListBlockQuestions retrieves the enabled questions of a block with their
// options.
func (r *ExamRepository) ListBlockQuestions(ctx context.Context, blockID int64) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, block_id, code, text, order_index, enabled
		 FROM questions
		 WHERE block_id = $1 AND enabled = TRUE
		 ORDER BY order_index, id`, blockID,
	)
	if err != nil {
		return nil, err
	}
	questions, err := collectQuestions(rows)
	if err != nil {
		return nil, err
	}
	return questions, r.attachOptions(ctx, questions)
}

// ListQuestionsByIDs retrieves questions in the order of ids, whether or not
// they are enabled. Unknown ids are skipped.
func (r *ExamRepository) ListQuestionsByIDs(ctx context.Context, ids []int64) ([]model.Question, error) {
	if len(ids) == 0 {
		return []model.Question{}, nil
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, block_id, code, text, order_index, enabled
		 FROM questions
		 WHERE id = ANY($1::bigint[])`, ids,
	)
	if err != nil {
		return nil, err
	}
	found, err := collectQuestions(rows)
	if err != nil {
		return nil, err
	}
	if err := r.attachOptions(ctx, found); err != nil {
		return nil, err
	}

	byID := make(map[int64]model.Question, len(found))
	for _, q := range found {
		byID[q.ID] = q
	}
	out := make([]model.Question, 0, len(ids))
	for _, id := range ids {
		if q, ok := byID[id]; ok {
			out = append(out, q)
		}
	}
	return out, nil
}

func collectQuestions(rows pgx.Rows) ([]model.Question, error) {
	defer rows.Close()
	questions := []model.Question{}
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.BlockID, &q.Code, &q.Text, &q.OrderIndex, &q.Enabled); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

func (r *ExamRepository) attachOptions(ctx context.Context, questions []model.Question) error {
	if len(questions) == 0 {
		return nil
	}
	ids := make([]int64, len(questions))
	index := make(map[int64]int, len(questions))
	for i, q := range questions {
		ids[i] = q.ID
		index[q.ID] = i
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, question_id, text, is_correct
		 FROM options
		 WHERE question_id = ANY($1::bigint[])
		 ORDER BY id`, ids,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var o model.Option
		if err := rows.Scan(&o.ID, &o.QuestionID, &o.Text, &o.IsCorrect); err != nil {
			return err
		}
		i := index[o.QuestionID]
		questions[i].Options = append(questions[i].Options, o)
	}
	return rows.Err()
}

// GetOption retrieves a single option with its correctness flag.
func (r *ExamRepository) GetOption(ctx context.Context, optionID int64) (*model.Option, error) {
	o := &model.Option{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, question_id, text, is_correct FROM options WHERE id = $1`, optionID,
	).Scan(&o.ID, &o.QuestionID, &o.Text, &o.IsCorrect)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrOptionNotFound
		}
		return nil, err
	}
	return o, nil
}

// UpdateExamSettings applies the non-nil fields of patch.
func (r *ExamRepository) UpdateExamSettings(ctx context.Context, examID int64, patch model.ExamSettingsPatch) (*model.Exam, error) {
	return scanExam(r.pool.QueryRow(ctx,
		`UPDATE exams
		 SET title            = COALESCE($2, title),
		     duration_minutes = COALESCE($3, duration_minutes),
		     gate_password    = COALESCE($4, gate_password)
		 WHERE id = $1
		 RETURNING `+examColumns,
		examID, patch.Title, patch.DurationMinutes, patch.GatePassword,
	))
}

// ImportBank inserts an exam with all of its blocks, questions and options in
// one transaction and returns the new exam id.
func (r *ExamRepository) ImportBank(ctx context.Context, bank *model.BankImport) (int64, error) {
	var examID int64
	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO exams (title, duration_minutes, gate_password)
			 VALUES ($1, $2, $3)
			 RETURNING id`,
			bank.Exam.Title, bank.Exam.DurationMinutes, bank.Exam.GatePassword,
		).Scan(&examID)
		if err != nil {
			return fmt.Errorf("insert exam: %w", err)
		}

		for _, b := range bank.Blocks {
			var blockID int64
			err := tx.QueryRow(ctx,
				`INSERT INTO blocks (exam_id, title, qty, order_index, enabled)
				 VALUES ($1, $2, $3, $4, $5)
				 RETURNING id`,
				examID, b.Block.Title, b.Block.Qty, b.Block.OrderIndex, b.Block.Enabled,
			).Scan(&blockID)
			if err != nil {
				return fmt.Errorf("insert block %q: %w", b.Block.Title, err)
			}

			for _, q := range b.Questions {
				if err := insertQuestion(ctx, tx, blockID, q); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		if database.IsUniqueViolation(err, "questions_code_key") {
			return 0, fmt.Errorf("%w: duplicate question code", model.ErrConflict)
		}
		return 0, err
	}
	return examID, nil
}

func insertQuestion(ctx context.Context, db database.DBTX, blockID int64, q model.Question) error {
	var questionID int64
	err := db.QueryRow(ctx,
		`INSERT INTO questions (block_id, code, text, order_index, enabled)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		blockID, q.Code, q.Text, q.OrderIndex, q.Enabled,
	).Scan(&questionID)
	if err != nil {
		return fmt.Errorf("insert question %q: %w", q.Code, err)
	}

	for _, o := range q.Options {
		if _, err := db.Exec(ctx,
			`INSERT INTO options (question_id, text, is_correct) VALUES ($1, $2, $3)`,
			questionID, o.Text, o.IsCorrect,
		); err != nil {
			return fmt.Errorf("insert option for %q: %w", q.Code, err)
		}
	}
	return nil
}
