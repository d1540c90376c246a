package shop

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

const shopColumns = `id, owner_id, name, description, address, city, phone, business_hours,
	bays, status, rating, created_at, updated_at`

func scanShop(row pgx.Row) (*Shop, error) {
	var s Shop
	err := row.Scan(
		&s.ID,
		&s.OwnerID,
		&s.Name,
		&s.Description,
		&s.Address,
		&s.City,
		&s.Phone,
		&s.BusinessHours,
		&s.Bays,
		&s.Status,
		&s.Rating,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrShopNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *PgRepository) GetShopByID(ctx context.Context, id int64) (*Shop, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+shopColumns+`
		FROM shops
		WHERE id = $1
	`, id)
	return scanShop(row)
}

func (r *PgRepository) GetShopByOwner(ctx context.Context, ownerID int64) (*Shop, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+shopColumns+`
		FROM shops
		WHERE owner_id = $1
	`, ownerID)
	return scanShop(row)
}

func (r *PgRepository) ListShops(ctx context.Context, f ListFilter, page db.Page) ([]Shop, int, error) {
	q := db.Conn(ctx, r.pool)

	var total int
	err := q.QueryRow(ctx, `
		SELECT count(*)
		FROM shops
		WHERE ($1::text IS NULL OR status = $1)
		  AND ($2::text IS NULL OR city = $2)
	`, f.Status, f.City).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count shops: %w", err)
	}

	rows, err := q.Query(ctx, `
		SELECT `+shopColumns+`
		FROM shops
		WHERE ($1::text IS NULL OR status = $1)
		  AND ($2::text IS NULL OR city = $2)
		ORDER BY rating DESC, id
		LIMIT $3 OFFSET $4
	`, f.Status, f.City, page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list shops: %w", err)
	}
	defer rows.Close()

	var result []Shop
	for rows.Next() {
		s, err := scanShop(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

func (r *PgRepository) CreateShop(ctx context.Context, s Shop) (*Shop, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO shops (owner_id, name, description, address, city, phone, business_hours, bays, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+shopColumns,
		s.OwnerID, s.Name, s.Description, s.Address, s.City, s.Phone, s.BusinessHours, s.Bays, s.Status)

	created, err := scanShop(row)
	if err != nil {
		if db.IsUniqueViolation(err, "shops_owner_id_key") {
			return nil, ErrShopAlreadyRegistered
		}
		return nil, fmt.Errorf("insert shop: %w", err)
	}
	return created, nil
}

func (r *PgRepository) UpdateShop(ctx context.Context, s Shop) (*Shop, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE shops
		SET name = $2,
		    description = $3,
		    address = $4,
		    city = $5,
		    phone = $6,
		    business_hours = $7,
		    bays = $8,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+shopColumns,
		s.ID, s.Name, s.Description, s.Address, s.City, s.Phone, s.BusinessHours, s.Bays)
	return scanShop(row)
}

func (r *PgRepository) SetShopStatus(ctx context.Context, id int64, status Status) (*Shop, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE shops
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+shopColumns,
		id, status)
	return scanShop(row)
}
