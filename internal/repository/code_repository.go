package repository

import (
	"context"

	"github.com/certexam/certexam-backend/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CodeRepository handles hashed one-time access codes.
type CodeRepository struct {
	pool *pgxpool.Pool
}

// NewCodeRepository creates a new CodeRepository.
func NewCodeRepository(pool *pgxpool.Pool) *CodeRepository {
	return &CodeRepository{pool: pool}
}

// ListRedeemableCodes retrieves unused, enabled codes of an exam in insertion
// order.
func (r *CodeRepository) ListRedeemableCodes(ctx context.Context, examID int64) ([]model.ExamCode, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, exam_id, code_hash, used, used_at, disabled, created_at
		 FROM exam_codes
		 WHERE exam_id = $1 AND used = FALSE AND disabled = FALSE
		 ORDER BY id`, examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var codes []model.ExamCode
	for rows.Next() {
		var c model.ExamCode
		if err := rows.Scan(&c.ID, &c.ExamID, &c.CodeHash, &c.Used, &c.UsedAt, &c.Disabled, &c.CreatedAt); err != nil {
			return nil, err
		}
		codes = append(codes, c)
	}
	return codes, rows.Err()
}

// InsertCodes bulk-inserts code hashes for an exam.
func (r *CodeRepository) InsertCodes(ctx context.Context, examID int64, hashes []string) (int, error) {
	if len(hashes) == 0 {
		return 0, nil
	}
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO exam_codes (exam_id, code_hash)
		 SELECT $1, h FROM UNNEST($2::text[]) AS h`,
		examID, hashes,
	)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
