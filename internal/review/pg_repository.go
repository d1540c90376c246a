package review

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/hackgods/car-maintenance-booking/internal/db"
)

const liveReviewIndex = "reviews_order_live_idx"

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const reviewColumns = `id, order_id, user_id, shop_id, technician_rating, service_rating, price_rating,
	environment_rating, overall_rating, comment, reply, visible, deleted, created_at, updated_at`

func scanReview(row pgx.Row) (*Review, error) {
	var r Review
	err := row.Scan(
		&r.ID,
		&r.OrderID,
		&r.UserID,
		&r.ShopID,
		&r.Ratings.Technician,
		&r.Ratings.Service,
		&r.Ratings.Price,
		&r.Ratings.Environment,
		&r.Overall,
		&r.Comment,
		&r.Reply,
		&r.Visible,
		&r.Deleted,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReviewNotFound
		}
		return nil, err
	}
	return &r, nil
}

func (r *PgRepository) GetReview(ctx context.Context, id int64) (*Review, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+reviewColumns+`
		FROM reviews
		WHERE id = $1 AND NOT deleted
	`, id)
	return scanReview(row)
}

func (r *PgRepository) LiveReviewExists(ctx context.Context, orderID int64) (bool, error) {
	var exists bool
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM reviews WHERE order_id = $1 AND NOT deleted)
	`, orderID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check review: %w", err)
	}
	return exists, nil
}

func (r *PgRepository) ListReviews(ctx context.Context, f Filter, page db.Page) ([]Review, int, error) {
	q := db.Conn(ctx, r.pool)

	var total int
	err := q.QueryRow(ctx, `
		SELECT count(*)
		FROM reviews
		WHERE NOT deleted
		  AND ($1::bigint IS NULL OR shop_id = $1)
		  AND ($2::bigint IS NULL OR user_id = $2)
		  AND (NOT $3 OR visible)
	`, f.ShopID, f.UserID, f.VisibleOnly).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count reviews: %w", err)
	}

	rows, err := q.Query(ctx, `
		SELECT `+reviewColumns+`
		FROM reviews
		WHERE NOT deleted
		  AND ($1::bigint IS NULL OR shop_id = $1)
		  AND ($2::bigint IS NULL OR user_id = $2)
		  AND (NOT $3 OR visible)
		ORDER BY created_at DESC, id DESC
		LIMIT $4 OFFSET $5
	`, f.ShopID, f.UserID, f.VisibleOnly, page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	var result []Review
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *rv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

func (r *PgRepository) CreateReview(ctx context.Context, rv Review) (*Review, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO reviews (order_id, user_id, shop_id, technician_rating, service_rating, price_rating,
			environment_rating, overall_rating, comment, visible)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+reviewColumns,
		rv.OrderID, rv.UserID, rv.ShopID, rv.Ratings.Technician, rv.Ratings.Service, rv.Ratings.Price,
		rv.Ratings.Environment, rv.Overall, rv.Comment, rv.Visible)

	created, err := scanReview(row)
	if err != nil {
		if db.IsUniqueViolation(err, liveReviewIndex) {
			return nil, ErrAlreadyReviewed
		}
		return nil, fmt.Errorf("insert review: %w", err)
	}
	return created, nil
}

func (r *PgRepository) UpdateReview(ctx context.Context, rv Review) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE reviews
		SET technician_rating = $2,
		    service_rating = $3,
		    price_rating = $4,
		    environment_rating = $5,
		    overall_rating = $6,
		    comment = $7,
		    reply = $8,
		    visible = $9,
		    deleted = $10,
		    updated_at = now()
		WHERE id = $1
	`, rv.ID, rv.Ratings.Technician, rv.Ratings.Service, rv.Ratings.Price, rv.Ratings.Environment,
		rv.Overall, rv.Comment, rv.Reply, rv.Visible, rv.Deleted)
	if err != nil {
		return fmt.Errorf("update review: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrReviewNotFound
	}
	return nil
}

func (r *PgRepository) RecomputeShopRating(ctx context.Context, shopID int64) (decimal.Decimal, error) {
	var rating decimal.Decimal
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE shops
		SET rating = coalesce((
		        SELECT round(avg(overall_rating), 2)
		        FROM reviews
		        WHERE shop_id = $1 AND visible AND NOT deleted
		    ), $2),
		    updated_at = now()
		WHERE id = $1
		RETURNING rating
	`, shopID, DefaultShopRating).Scan(&rating)
	if err != nil {
		return decimal.Zero, fmt.Errorf("recompute shop rating: %w", err)
	}
	return rating, nil
}

func (r *PgRepository) VisibleOveralls(ctx context.Context, shopID int64) ([]decimal.Decimal, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT overall_rating
		FROM reviews
		WHERE shop_id = $1 AND visible AND NOT deleted
	`, shopID)
	if err != nil {
		return nil, fmt.Errorf("shop ratings: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[decimal.Decimal])
}
