package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sessionkit/identity-service/internal/domain/entity"
	"github.com/sessionkit/identity-service/internal/domain/repository"
)

// Postgres error codes translated into the repository's outcome set.
const (
	codeUniqueViolation = "23505" // unique_violation
	codeForeignKey      = "23503" // foreign_key_violation
	codeInvalidTextRepr = "22P02" // invalid_text_representation (e.g. bad uuid literal)
)

const userColumns = `id, name, email, password_hash, avatar, role, method,
	is_verified, is_two_factor_enabled, created_at, updated_at`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// translateError maps pgx/pgconn errors onto the repository sentinels.
// Unrecognized errors pass through wrapped; they must never be swallowed.
func translateError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return repository.ErrUniqueConflict
		case codeForeignKey, codeInvalidTextRepr:
			return repository.ErrMalformedReference
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func scanUser(row pgx.Row, u *entity.User) error {
	return row.Scan(&u.ID, &u.Name, &u.Email, &u.Password, &u.Avatar, &u.Role,
		&u.Method, &u.IsVerified, &u.IsTwoFactorEnabled, &u.CreatedAt, &u.UpdatedAt)
}

func (r *UserRepository) Create(ctx context.Context, u *entity.User) error {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (name, email, password_hash, avatar, role, method, is_verified, is_two_factor_enabled)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`, u.Name, u.Email, u.Password, u.Avatar, u.Role, u.Method, u.IsVerified, u.IsTwoFactorEnabled)

	if err := row.Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return translateError("insert user", err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	u := &entity.User{}
	row := r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1
	`, id)

	if err := scanUser(row, u); err != nil {
		return nil, translateError("select user by id", err)
	}
	return u, nil
}

func (r *UserRepository) GetAll(ctx context.Context) ([]entity.User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		ORDER BY created_at
	`)
	if err != nil {
		return nil, translateError("select users", err)
	}
	defer rows.Close()

	users := make([]entity.User, 0)
	for rows.Next() {
		var u entity.User
		if err := scanUser(rows, &u); err != nil {
			return nil, translateError("scan user", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError("iterate users", err)
	}
	return users, nil
}

func (r *UserRepository) Update(ctx context.Context, u *entity.User) error {
	u.UpdatedAt = time.Now().UTC()

	res, err := r.pool.Exec(ctx, `
		UPDATE users
		SET name = $1, email = $2, password_hash = $3, avatar = $4, updated_at = $5
		WHERE id = $6
	`, u.Name, u.Email, u.Password, u.Avatar, u.UpdatedAt, u.ID)
	if err != nil {
		return translateError("update user", err)
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	res, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return translateError("delete user", err)
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

var _ repository.UserRepository = (*UserRepository)(nil)
