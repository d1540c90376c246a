package review

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultShopRating is the rating of a shop with no visible reviews.
var DefaultShopRating = decimal.RequireFromString("5.00")

type Ratings struct {
	Technician  *int
	Service     *int
	Price       *int
	Environment *int
}

func (r Ratings) given() []int {
	var out []int
	for _, v := range []*int{r.Technician, r.Service, r.Price, r.Environment} {
		if v != nil {
			out = append(out, *v)
		}
	}
	return out
}

func (r Ratings) validate() error {
	for _, v := range r.given() {
		if v < 1 || v > 5 {
			return errRatingRange(v)
		}
	}
	return nil
}

// Overall is the mean of the supplied ratings rounded half up to two
// decimals, or zero when none were given.
func (r Ratings) Overall() decimal.Decimal {
	vals := r.given()
	if len(vals) == 0 {
		return decimal.Zero
	}
	sum := 0
	for _, v := range vals {
		sum += v
	}
	return decimal.NewFromInt(int64(sum)).DivRound(decimal.NewFromInt(int64(len(vals))), 2)
}

type Review struct {
	ID        int64
	OrderID   int64
	UserID    int64
	ShopID    int64
	Ratings   Ratings
	Overall   decimal.Decimal
	Comment   *string
	Reply     *string
	Visible   bool
	Deleted   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Stats struct {
	Count   int
	Average decimal.Decimal
	// Distribution counts visible reviews by overall rating rounded to a whole star.
	Distribution map[int]int
}

// star buckets an overall rating into 1..5.
func star(overall decimal.Decimal) int {
	n := int(overall.Round(0).IntPart())
	return min(max(n, 1), 5)
}
