package review

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hackgods/car-maintenance-booking/internal/apperr"
	"github.com/hackgods/car-maintenance-booking/internal/auth"
	"github.com/hackgods/car-maintenance-booking/internal/booking"
	"github.com/hackgods/car-maintenance-booking/internal/db"
)

type memRepo struct {
	nextID  int64
	reviews map[int64]*Review
	ratings map[int64]decimal.Decimal // shop id -> cached rating
}

func newMemRepo() *memRepo {
	return &memRepo{reviews: map[int64]*Review{}, ratings: map[int64]decimal.Decimal{}}
}

func (m *memRepo) GetReview(_ context.Context, id int64) (*Review, error) {
	rv, ok := m.reviews[id]
	if !ok || rv.Deleted {
		return nil, ErrReviewNotFound
	}
	cp := *rv
	return &cp, nil
}

func (m *memRepo) LiveReviewExists(_ context.Context, orderID int64) (bool, error) {
	for _, rv := range m.reviews {
		if rv.OrderID == orderID && !rv.Deleted {
			return true, nil
		}
	}
	return false, nil
}

func (m *memRepo) ListReviews(_ context.Context, f Filter, page db.Page) ([]Review, int, error) {
	var all []Review
	for _, rv := range m.reviews {
		if rv.Deleted ||
			f.ShopID != nil && rv.ShopID != *f.ShopID ||
			f.UserID != nil && rv.UserID != *f.UserID ||
			f.VisibleOnly && !rv.Visible {
			continue
		}
		all = append(all, *rv)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	from := min(page.Offset(), len(all))
	to := min(from+page.Limit(), len(all))
	return all[from:to], len(all), nil
}

func (m *memRepo) CreateReview(ctx context.Context, rv Review) (*Review, error) {
	if exists, _ := m.LiveReviewExists(ctx, rv.OrderID); exists {
		return nil, ErrAlreadyReviewed
	}
	m.nextID++
	rv.ID = m.nextID
	rv.CreatedAt = time.Now()
	m.reviews[rv.ID] = &rv
	cp := rv
	return &cp, nil
}

func (m *memRepo) UpdateReview(_ context.Context, rv Review) error {
	if _, ok := m.reviews[rv.ID]; !ok {
		return ErrReviewNotFound
	}
	m.reviews[rv.ID] = &rv
	return nil
}

func (m *memRepo) VisibleOveralls(_ context.Context, shopID int64) ([]decimal.Decimal, error) {
	var out []decimal.Decimal
	for _, rv := range m.reviews {
		if rv.ShopID == shopID && rv.Visible && !rv.Deleted {
			out = append(out, rv.Overall)
		}
	}
	return out, nil
}

func (m *memRepo) RecomputeShopRating(ctx context.Context, shopID int64) (decimal.Decimal, error) {
	overalls, _ := m.VisibleOveralls(ctx, shopID)
	rating := DefaultShopRating
	if len(overalls) > 0 {
		rating = decimal.Avg(overalls[0], overalls[1:]...).Round(2)
	}
	m.ratings[shopID] = rating
	return rating, nil
}

type fakeOrders map[int64]*booking.Order

func (f fakeOrders) GetOrder(_ context.Context, id int64) (*booking.Order, error) {
	o, ok := f[id]
	if !ok {
		return nil, booking.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

const (
	customerID int64 = 1
	strangerID int64 = 2
	shopID     int64 = 7
)

func intp(v int) *int { return &v }

func newTestService() (*Service, *memRepo) {
	repo := newMemRepo()
	orders := fakeOrders{
		100: {ID: 100, UserID: customerID, ShopID: shopID, Status: booking.OrderCompleted},
		101: {ID: 101, UserID: customerID, ShopID: shopID, Status: booking.OrderCompleted},
		102: {ID: 102, UserID: customerID, ShopID: shopID, Status: booking.OrderInProgress},
	}
	return NewService(repo, db.NopTransactor{}, orders, zap.NewNop()), repo
}

func TestOverallRating(t *testing.T) {
	tests := []struct {
		name    string
		ratings Ratings
		want    string
	}{
		{"four given", Ratings{intp(5), intp(4), intp(3), intp(4)}, "4.00"},
		{"thirds round half up", Ratings{Technician: intp(5), Service: intp(4), Price: intp(4)}, "4.33"},
		{"two thirds", Ratings{Technician: intp(5), Service: intp(5), Price: intp(4)}, "4.67"},
		{"single", Ratings{Environment: intp(2)}, "2.00"},
		{"none", Ratings{}, "0.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.ratings.Overall().StringFixed(2))
		})
	}
}

func TestCreateReview(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	rv, err := svc.CreateReview(ctx, customerID, Input{
		OrderID: 100,
		Ratings: Ratings{intp(5), intp(4), intp(3), intp(4)},
		Comment: "  quick and friendly  ",
	})
	require.NoError(t, err)
	assert.Equal(t, "4.00", rv.Overall.StringFixed(2))
	assert.Equal(t, shopID, rv.ShopID)
	assert.True(t, rv.Visible)
	require.NotNil(t, rv.Comment)
	assert.Equal(t, "quick and friendly", *rv.Comment)
	assert.Equal(t, "4.00", repo.ratings[shopID].StringFixed(2))

	_, err = svc.CreateReview(ctx, customerID, Input{OrderID: 100, Ratings: Ratings{Service: intp(1)}})
	assert.ErrorIs(t, err, ErrAlreadyReviewed)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestCreateReviewGate(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.CreateReview(ctx, customerID, Input{OrderID: 404})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = svc.CreateReview(ctx, strangerID, Input{OrderID: 100})
	assert.ErrorIs(t, err, ErrNotOrderOwner)

	_, err = svc.CreateReview(ctx, customerID, Input{OrderID: 102})
	assert.ErrorIs(t, err, ErrOrderNotCompleted)
	assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))

	_, err = svc.CreateReview(ctx, customerID, Input{OrderID: 100, Ratings: Ratings{Price: intp(6)}})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	_, err = svc.CreateReview(ctx, customerID, Input{OrderID: 100, Ratings: Ratings{Price: intp(0)}})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestShopRatingFollowsVisibleReviews(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	first, err := svc.CreateReview(ctx, customerID, Input{OrderID: 100, Ratings: Ratings{Service: intp(5)}})
	require.NoError(t, err)
	second, err := svc.CreateReview(ctx, customerID, Input{OrderID: 101, Ratings: Ratings{Service: intp(2)}})
	require.NoError(t, err)
	assert.Equal(t, "3.50", repo.ratings[shopID].StringFixed(2))

	_, err = svc.SetVisibility(ctx, second.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "5.00", repo.ratings[shopID].StringFixed(2))

	list, total, err := svc.ShopReviews(ctx, shopID, db.Page{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, first.ID, list[0].ID)

	_, err = svc.UpdateReview(ctx, customerID, first.ID, Input{Ratings: Ratings{Service: intp(4), Price: intp(3)}})
	require.NoError(t, err)
	assert.Equal(t, "3.50", repo.ratings[shopID].StringFixed(2))

	require.NoError(t, svc.DeleteReview(ctx, auth.Principal{UserID: customerID, Role: auth.RoleCustomer}, first.ID))
	assert.True(t, repo.ratings[shopID].Equal(DefaultShopRating), "no visible reviews left")

	// the order can be reviewed again once its review is deleted
	_, err = svc.CreateReview(ctx, customerID, Input{OrderID: 100, Ratings: Ratings{Service: intp(3)}})
	require.NoError(t, err)
}

func TestReviewOwnership(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	rv, err := svc.CreateReview(ctx, customerID, Input{OrderID: 100, Ratings: Ratings{Service: intp(4)}})
	require.NoError(t, err)

	stranger := auth.Principal{UserID: strangerID, Role: auth.RoleCustomer}
	owningShop := auth.Principal{UserID: 70, Role: auth.RoleShop, ShopID: shopID}
	otherShop := auth.Principal{UserID: 80, Role: auth.RoleShop, ShopID: 8}

	_, err = svc.UpdateReview(ctx, strangerID, rv.ID, Input{})
	assert.ErrorIs(t, err, ErrNotReviewOwner)
	assert.ErrorIs(t, svc.DeleteReview(ctx, stranger, rv.ID), ErrNotReviewOwner)
	_, err = svc.GetReview(ctx, stranger, rv.ID)
	assert.ErrorIs(t, err, ErrNotReviewOwner)

	_, err = svc.ReplyReview(ctx, otherShop, rv.ID, "thanks")
	assert.ErrorIs(t, err, ErrNotShopReview)
	_, err = svc.ReplyReview(ctx, owningShop, rv.ID, "   ")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	replied, err := svc.ReplyReview(ctx, owningShop, rv.ID, "Thanks for visiting!")
	require.NoError(t, err)
	assert.Equal(t, "Thanks for visiting!", *replied.Reply)

	got, err := svc.GetReview(ctx, owningShop, rv.ID)
	require.NoError(t, err)
	assert.Equal(t, rv.ID, got.ID)

	require.NoError(t, svc.DeleteReview(ctx, auth.Principal{UserID: 99, Role: auth.RoleAdmin}, rv.ID))
	_, err = svc.GetReview(ctx, owningShop, rv.ID)
	assert.ErrorIs(t, err, ErrReviewNotFound)
}

func TestShopReviewStats(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	stats, err := svc.ShopReviewStats(ctx, shopID)
	require.NoError(t, err)
	assert.Zero(t, stats.Count)
	assert.True(t, stats.Average.IsZero())
	assert.Len(t, stats.Distribution, 5)

	_, err = svc.CreateReview(ctx, customerID, Input{OrderID: 100, Ratings: Ratings{Service: intp(5), Price: intp(4)}})
	require.NoError(t, err)
	_, err = svc.CreateReview(ctx, customerID, Input{OrderID: 101, Ratings: Ratings{Service: intp(3)}})
	require.NoError(t, err)

	stats, err = svc.ShopReviewStats(ctx, shopID)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Count)
	assert.Equal(t, "3.75", stats.Average.StringFixed(2))
	assert.Equal(t, 1, stats.Distribution[5], "4.50 rounds up to five stars")
	assert.Equal(t, 1, stats.Distribution[3])
	assert.Equal(t, 0, stats.Distribution[1])

	mine, total, err := svc.UserReviews(ctx, customerID, db.Page{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, mine, 2)
}
