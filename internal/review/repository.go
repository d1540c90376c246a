package review

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/hackgods/car-maintenance-booking/internal/apperr"
	"github.com/hackgods/car-maintenance-booking/internal/db"
)

var (
	ErrReviewNotFound    = apperr.NotFound("review not found")
	ErrOrderNotFound     = apperr.NotFound("order not found")
	ErrNotReviewOwner    = apperr.Forbidden("review belongs to another customer")
	ErrNotOrderOwner     = apperr.Forbidden("only the ordering customer may review this order")
	ErrNotShopReview     = apperr.Forbidden("review belongs to another shop")
	ErrOrderNotCompleted = apperr.InvalidState("only completed orders can be reviewed")
	ErrAlreadyReviewed   = apperr.Conflict("order already reviewed")
)

func errRatingRange(v int) error {
	return apperr.Validation("ratings must be between 1 and 5, got %d", v)
}

type Filter struct {
	ShopID      *int64
	UserID      *int64
	VisibleOnly bool
}

type Repository interface {
	// GetReview ignores soft-deleted rows.
	GetReview(ctx context.Context, id int64) (*Review, error)
	LiveReviewExists(ctx context.Context, orderID int64) (bool, error)
	ListReviews(ctx context.Context, f Filter, page db.Page) ([]Review, int, error)
	CreateReview(ctx context.Context, r Review) (*Review, error)
	UpdateReview(ctx context.Context, r Review) error

	// RecomputeShopRating rewrites shops.rating from the visible live reviews.
	RecomputeShopRating(ctx context.Context, shopID int64) (decimal.Decimal, error)
	// VisibleOveralls returns the overall rating of every visible live review of a shop.
	VisibleOveralls(ctx context.Context, shopID int64) ([]decimal.Decimal, error)
}
