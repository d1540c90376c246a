package member

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

const (
	memberColumns = `id, user_id, level_id, total_experience, available_experience, created_at, updated_at`
	recordColumns = `id, user_id, order_id, experience_change, experience_type, reason, created_at`
	levelColumns  = `id, name, min_experience, discount_rate, benefits, created_at, updated_at`
)

func scanMember(row pgx.Row) (*Member, error) {
	var m Member
	err := row.Scan(
		&m.ID,
		&m.UserID,
		&m.LevelID,
		&m.TotalExperience,
		&m.AvailableExperience,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}
	return &m, nil
}

func scanRecord(row pgx.Row) (*Record, error) {
	var r Record
	err := row.Scan(
		&r.ID,
		&r.UserID,
		&r.OrderID,
		&r.Change,
		&r.Type,
		&r.Reason,
		&r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func scanLevel(row pgx.Row) (*Level, error) {
	var l Level
	err := row.Scan(
		&l.ID,
		&l.Name,
		&l.MinExperience,
		&l.DiscountRate,
		&l.Benefits,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLevelNotFound
		}
		return nil, err
	}
	return &l, nil
}

func (r *PgRepository) GetMember(ctx context.Context, userID int64) (*Member, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+memberColumns+`
		FROM user_members
		WHERE user_id = $1
	`, userID)
	return scanMember(row)
}

func (r *PgRepository) LockMember(ctx context.Context, userID int64) (*Member, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+memberColumns+`
		FROM user_members
		WHERE user_id = $1
		FOR UPDATE
	`, userID)
	return scanMember(row)
}

func (r *PgRepository) CreateMember(ctx context.Context, m Member) (*Member, error) {
	q := db.Conn(ctx, r.pool)

	_, err := q.Exec(ctx, `
		INSERT INTO user_members (user_id, level_id, total_experience, available_experience)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO NOTHING
	`, m.UserID, m.LevelID, m.TotalExperience, m.AvailableExperience)
	if err != nil {
		return nil, fmt.Errorf("insert member: %w", err)
	}
	return r.GetMember(ctx, m.UserID)
}

func (r *PgRepository) UpdateMember(ctx context.Context, m Member) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE user_members
		SET level_id = $2,
		    total_experience = $3,
		    available_experience = $4,
		    updated_at = now()
		WHERE user_id = $1
	`, m.UserID, m.LevelID, m.TotalExperience, m.AvailableExperience)
	if err != nil {
		return fmt.Errorf("update member: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrMemberNotFound
	}
	return nil
}

func (r *PgRepository) InsertRecord(ctx context.Context, rec Record) (*Record, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO experience_records (user_id, order_id, experience_change, experience_type, reason)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+recordColumns,
		rec.UserID, rec.OrderID, rec.Change, rec.Type, rec.Reason)

	saved, err := scanRecord(row)
	if err != nil {
		if db.IsUniqueViolation(err, "experience_records_order_consume_idx") {
			return nil, ErrOrderAlreadyAwarded
		}
		return nil, fmt.Errorf("insert experience record: %w", err)
	}
	return saved, nil
}

func (r *PgRepository) ListRecords(ctx context.Context, userID int64, page db.Page) ([]Record, int, error) {
	q := db.Conn(ctx, r.pool)

	var total int
	if err := q.QueryRow(ctx, `SELECT count(*) FROM experience_records WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count experience records: %w", err)
	}

	rows, err := q.Query(ctx, `
		SELECT `+recordColumns+`
		FROM experience_records
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, userID, page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list experience records: %w", err)
	}
	defer rows.Close()

	var result []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

func (r *PgRepository) SumRecords(ctx context.Context, userID int64) (int, error) {
	var sum int
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT COALESCE(SUM(experience_change), 0)::int
		FROM experience_records
		WHERE user_id = $1
	`, userID).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum experience records: %w", err)
	}
	return sum, nil
}

func (r *PgRepository) ListLevels(ctx context.Context) ([]Level, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT `+levelColumns+`
		FROM member_levels
		ORDER BY min_experience
	`)
	if err != nil {
		return nil, fmt.Errorf("list levels: %w", err)
	}
	defer rows.Close()

	var result []Level
	for rows.Next() {
		l, err := scanLevel(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *l)
	}
	return result, rows.Err()
}

func (r *PgRepository) GetLevelByID(ctx context.Context, id int64) (*Level, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+levelColumns+`
		FROM member_levels
		WHERE id = $1
	`, id)
	return scanLevel(row)
}

func (r *PgRepository) SaveLevel(ctx context.Context, l Level) (*Level, error) {
	q := db.Conn(ctx, r.pool)

	var row pgx.Row
	if l.ID == 0 {
		row = q.QueryRow(ctx, `
			INSERT INTO member_levels (name, min_experience, discount_rate, benefits)
			VALUES ($1, $2, $3, $4)
			RETURNING `+levelColumns,
			l.Name, l.MinExperience, l.DiscountRate, l.Benefits)
	} else {
		row = q.QueryRow(ctx, `
			UPDATE member_levels
			SET name = $2,
			    min_experience = $3,
			    discount_rate = $4,
			    benefits = $5,
			    updated_at = now()
			WHERE id = $1
			RETURNING `+levelColumns,
			l.ID, l.Name, l.MinExperience, l.DiscountRate, l.Benefits)
	}

	saved, err := scanLevel(row)
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, ErrLevelExists
		}
		return nil, err
	}
	return saved, nil
}

func (r *PgRepository) DeleteLevel(ctx context.Context, id int64) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM member_levels WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete level: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrLevelNotFound
	}
	return nil
}

func (r *PgRepository) CountMembersByLevel(ctx context.Context) (map[int64]int, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT COALESCE(level_id, 0), count(*)
		FROM user_members
		GROUP BY level_id
	`)
	if err != nil {
		return nil, fmt.Errorf("count members: %w", err)
	}
	defer rows.Close()

	counts := make(map[int64]int)
	for rows.Next() {
		var levelID int64
		var n int
		if err := rows.Scan(&levelID, &n); err != nil {
			return nil, err
		}
		counts[levelID] = n
	}
	return counts, rows.Err()
}
