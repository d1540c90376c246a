package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/car-maintenance-booking/internal/db"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const userColumns = `id, username, password_hash, email, phone, role, real_name, active, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.PasswordHash,
		&u.Email,
		&u.Phone,
		&u.Role,
		&u.RealName,
		&u.Active,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *PgRepository) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE username = $1
	`, username)
	return scanUser(row)
}

func (r *PgRepository) GetUserByID(ctx context.Context, id int64) (*User, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1
	`, id)
	return scanUser(row)
}

func (r *PgRepository) CreateUser(ctx context.Context, u User) (*User, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO users (username, password_hash, email, phone, role, real_name, active)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE)
		RETURNING `+userColumns,
		u.Username, u.PasswordHash, u.Email, u.Phone, u.Role, u.RealName)

	created, err := scanUser(row)
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return created, nil
}

func (r *PgRepository) UpdateProfile(ctx context.Context, u User) (*User, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE users
		SET email = $2, phone = $3, real_name = $4, updated_at = now()
		WHERE id = $1
		RETURNING `+userColumns,
		u.ID, u.Email, u.Phone, u.RealName)
	return scanUser(row)
}

func (r *PgRepository) ListUsers(ctx context.Context, f UserFilter, page db.Page) ([]User, int, error) {
	q := db.Conn(ctx, r.pool)

	var keyword *string
	if f.Keyword != "" {
		like := "%" + f.Keyword + "%"
		keyword = &like
	}

	var total int
	err := q.QueryRow(ctx, `
		SELECT count(*)
		FROM users
		WHERE ($1::text IS NULL OR role = $1)
		  AND ($2::boolean IS NULL OR active = $2)
		  AND ($3::text IS NULL OR username ILIKE $3 OR real_name ILIKE $3 OR email ILIKE $3 OR phone ILIKE $3)
	`, f.Role, f.Active, keyword).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	rows, err := q.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE ($1::text IS NULL OR role = $1)
		  AND ($2::boolean IS NULL OR active = $2)
		  AND ($3::text IS NULL OR username ILIKE $3 OR real_name ILIKE $3 OR email ILIKE $3 OR phone ILIKE $3)
		ORDER BY id
		LIMIT $4 OFFSET $5
	`, f.Role, f.Active, keyword, page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var result []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

func (r *PgRepository) SetUserActive(ctx context.Context, id int64, active bool) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE users SET active = $2, updated_at = now() WHERE id = $1
	`, id, active)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
