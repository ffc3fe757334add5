package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/certexam/certexam-backend/internal/database"
	"github.com/certexam/certexam-backend/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrEmailTaken is returned when creating a user with a registered email.
var ErrEmailTaken = fmt.Errorf("%w: email already registered", model.ErrConflict)

// UserRepository handles accounts and their exam permission flag.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

const userColumns = `id, COALESCE(personal_id, ''), first_name, last_name, email, password_hash,
	COALESCE(code, ''), role, exam_permission, created_at`

func scanUser(row pgx.Row) (*model.User, error) {
	u := &model.User{}
	err := row.Scan(&u.ID, &u.PersonalID, &u.FirstName, &u.LastName, &u.Email, &u.PasswordHash,
		&u.Code, &u.Role, &u.ExamPermission, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

func collectUsers(rows pgx.Rows, err error) ([]model.User, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// GetByID retrieves a user by id.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetByCode retrieves a user by candidate code, case-insensitively.
func (r *UserRepository) GetByCode(ctx context.Context, code string) (*model.User, error) {
	return scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE LOWER(code) = LOWER($1) ORDER BY id LIMIT 1`, code))
}

// GetByEmail retrieves a user by email, case-insensitively.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email))
}

// ListByPersonalID retrieves users with the given personal id.
func (r *UserRepository) ListByPersonalID(ctx context.Context, personalID string) ([]model.User, error) {
	return collectUsers(r.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE LOWER(personal_id) = LOWER($1) ORDER BY id`, personalID))
}

// ListByCodes retrieves users whose candidate code matches any of codes.
func (r *UserRepository) ListByCodes(ctx context.Context, codes []string) ([]model.User, error) {
	if len(codes) == 0 {
		return []model.User{}, nil
	}
	lowered := make([]string, len(codes))
	for i, c := range codes {
		lowered[i] = strings.ToLower(c)
	}
	return collectUsers(r.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE LOWER(code) = ANY($1::text[]) ORDER BY id`, lowered))
}

// SetExamPermission updates the user's exam permission flag.
func (r *UserRepository) SetExamPermission(ctx context.Context, userID int64, allowed bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET exam_permission = $2 WHERE id = $1`, userID, allowed)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

// Create inserts a new user.
func (r *UserRepository) Create(ctx context.Context, u *model.User) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (personal_id, first_name, last_name, email, password_hash, code, role, exam_permission)
		 VALUES (NULLIF($1, ''), $2, $3, LOWER($4), $5, NULLIF($6, ''), $7, $8)
		 RETURNING id, created_at`,
		u.PersonalID, u.FirstName, u.LastName, u.Email, u.PasswordHash, u.Code, u.Role, u.ExamPermission,
	).Scan(&u.ID, &u.CreatedAt)
	if database.IsUniqueViolation(err, "users_email_key") {
		return ErrEmailTaken
	}
	if database.IsUniqueViolation(err, "") {
		return fmt.Errorf("%w: %v", model.ErrConflict, err)
	}
	return err
}

// UpdateRole changes a user's role.
func (r *UserRepository) UpdateRole(ctx context.Context, userID int64, role model.Role) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET role = $2 WHERE id = $1`, userID, role)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrUserNotFound
	}
	return nil
}
