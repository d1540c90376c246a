package review

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hackgods/car-maintenance-booking/internal/apperr"
	"github.com/hackgods/car-maintenance-booking/internal/auth"
	"github.com/hackgods/car-maintenance-booking/internal/booking"
	"github.com/hackgods/car-maintenance-booking/internal/db"
)

// OrderLookup is the slice of the booking service the review gate needs.
type OrderLookup interface {
	GetOrder(ctx context.Context, id int64) (*booking.Order, error)
}

type Service struct {
	repo   Repository
	tx     db.Transactor
	orders OrderLookup
	log    *zap.Logger
}

func NewService(repo Repository, tx db.Transactor, orders OrderLookup, log *zap.Logger) *Service {
	return &Service{repo: repo, tx: tx, orders: orders, log: log}
}

type Input struct {
	OrderID int64
	Ratings Ratings
	Comment string
}

func optString(s string) *string {
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	return &s
}

// CreateReview lets a customer rate their own completed order once.
func (s *Service) CreateReview(ctx context.Context, userID int64, in Input) (*Review, error) {
	if err := in.Ratings.validate(); err != nil {
		return nil, err
	}

	order, err := s.orders.GetOrder(ctx, in.OrderID)
	if err != nil {
		if errors.Is(err, booking.ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if order.UserID != userID {
		return nil, ErrNotOrderOwner
	}
	if order.Status != booking.OrderCompleted {
		return nil, ErrOrderNotCompleted
	}

	var created *Review
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		exists, err := s.repo.LiveReviewExists(ctx, order.ID)
		if err != nil {
			return err
		}
		if exists {
			return ErrAlreadyReviewed
		}

		created, err = s.repo.CreateReview(ctx, Review{
			OrderID: order.ID,
			UserID:  userID,
			ShopID:  order.ShopID,
			Ratings: in.Ratings,
			Overall: in.Ratings.Overall(),
			Comment: optString(in.Comment),
			Visible: true,
		})
		if err != nil {
			return err
		}
		_, err = s.repo.RecomputeShopRating(ctx, order.ShopID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("review created",
		zap.Int64("review_id", created.ID),
		zap.Int64("order_id", created.OrderID),
		zap.String("overall", created.Overall.StringFixed(2)),
	)
	return created, nil
}

func (s *Service) ownReview(ctx context.Context, id, userID int64) (*Review, error) {
	rv, err := s.repo.GetReview(ctx, id)
	if err != nil {
		return nil, err
	}
	if rv.UserID != userID {
		return nil, ErrNotReviewOwner
	}
	return rv, nil
}

// UpdateReview replaces the ratings and comment of the caller's review.
func (s *Service) UpdateReview(ctx context.Context, userID, id int64, in Input) (*Review, error) {
	if err := in.Ratings.validate(); err != nil {
		return nil, err
	}

	var rv *Review
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		rv, err = s.ownReview(ctx, id, userID)
		if err != nil {
			return err
		}
		rv.Ratings = in.Ratings
		rv.Overall = in.Ratings.Overall()
		rv.Comment = optString(in.Comment)
		if err := s.repo.UpdateReview(ctx, *rv); err != nil {
			return err
		}
		_, err = s.repo.RecomputeShopRating(ctx, rv.ShopID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rv, nil
}

// DeleteReview soft-deletes a review. Authors and admins may delete.
func (s *Service) DeleteReview(ctx context.Context, p auth.Principal, id int64) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		rv, err := s.repo.GetReview(ctx, id)
		if err != nil {
			return err
		}
		if rv.UserID != p.UserID && !p.IsAdmin() {
			return ErrNotReviewOwner
		}
		rv.Deleted = true
		if err := s.repo.UpdateReview(ctx, *rv); err != nil {
			return err
		}
		_, err = s.repo.RecomputeShopRating(ctx, rv.ShopID)
		return err
	})
}

// SetVisibility hides or shows a review. Hidden reviews leave the shop rating.
func (s *Service) SetVisibility(ctx context.Context, id int64, visible bool) (*Review, error) {
	var rv *Review
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		rv, err = s.repo.GetReview(ctx, id)
		if err != nil {
			return err
		}
		rv.Visible = visible
		if err := s.repo.UpdateReview(ctx, *rv); err != nil {
			return err
		}
		_, err = s.repo.RecomputeShopRating(ctx, rv.ShopID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("review visibility changed", zap.Int64("review_id", id), zap.Bool("visible", visible))
	return rv, nil
}

// ReplyReview stores the shop's public answer to a review of that shop.
func (s *Service) ReplyReview(ctx context.Context, p auth.Principal, id int64, reply string) (*Review, error) {
	text := optString(reply)
	if text == nil {
		return nil, apperr.Validation("reply must not be empty")
	}

	rv, err := s.repo.GetReview(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.OwnsShop(rv.ShopID) && !p.IsAdmin() {
		return nil, ErrNotShopReview
	}
	rv.Reply = text
	if err := s.repo.UpdateReview(ctx, *rv); err != nil {
		return nil, err
	}
	return rv, nil
}

// GetReview is visible to its author, the reviewed shop and admins.
func (s *Service) GetReview(ctx context.Context, p auth.Principal, id int64) (*Review, error) {
	rv, err := s.repo.GetReview(ctx, id)
	if err != nil {
		return nil, err
	}
	if rv.UserID != p.UserID && !p.OwnsShop(rv.ShopID) && !p.IsAdmin() {
		return nil, ErrNotReviewOwner
	}
	return rv, nil
}

func (s *Service) ShopReviews(ctx context.Context, shopID int64, page db.Page) ([]Review, int, error) {
	return s.repo.ListReviews(ctx, Filter{ShopID: &shopID, VisibleOnly: true}, page.Normalize())
}

func (s *Service) UserReviews(ctx context.Context, userID int64, page db.Page) ([]Review, int, error) {
	return s.repo.ListReviews(ctx, Filter{UserID: &userID}, page.Normalize())
}

func (s *Service) ShopReviewStats(ctx context.Context, shopID int64) (*Stats, error) {
	overalls, err := s.repo.VisibleOveralls(ctx, shopID)
	if err != nil {
		return nil, err
	}

	stats := &Stats{Count: len(overalls), Average: decimal.Zero, Distribution: make(map[int]int, 5)}
	for i := 1; i <= 5; i++ {
		stats.Distribution[i] = 0
	}
	if len(overalls) == 0 {
		return stats, nil
	}

	sum := decimal.Zero
	for _, o := range overalls {
		sum = sum.Add(o)
		if o.IsPositive() {
			stats.Distribution[star(o)]++
		}
	}
	stats.Average = sum.DivRound(decimal.NewFromInt(int64(len(overalls))), 2)
	return stats, nil
}
