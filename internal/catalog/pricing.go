package catalog

import "github.com/shopspring/decimal"

// DeviationThreshold is the share outside the guide band at which a price is flagged.
var DeviationThreshold = decimal.RequireFromString("0.30")

var hundred = decimal.NewFromInt(100)

// Evaluate classifies price against the guide band [MinPrice, MaxPrice].
// Prices inside the band, or outside it by no more than the threshold, are normal.
func Evaluate(g GuidePrice, price decimal.Decimal) PriceStatus {
	switch {
	case price.LessThan(g.MinPrice) && g.MinPrice.IsPositive():
		dev := g.MinPrice.Sub(price).DivRound(g.MinPrice, 4)
		if dev.GreaterThan(DeviationThreshold) {
			return PriceTooLow
		}
	case price.GreaterThan(g.MaxPrice) && g.MaxPrice.IsPositive():
		dev := price.Sub(g.MaxPrice).DivRound(g.MaxPrice, 4)
		if dev.GreaterThan(DeviationThreshold) {
			return PriceTooHigh
		}
	}
	return PriceNormal
}

// newMonitorRecord fills diff = price - guide and diff rate = diff / guide * 100.
func newMonitorRecord(shopID int64, name string, price decimal.Decimal, g GuidePrice, status PriceStatus) MonitorRecord {
	rec := MonitorRecord{
		ShopID:      shopID,
		ServiceName: name,
		ShopPrice:   price,
		GuidePrice:  g.GuidePrice,
		PriceDiff:   decimal.Zero,
		DiffRate:    decimal.Zero,
		Status:      status,
	}
	if g.GuidePrice.IsPositive() {
		rec.PriceDiff = price.Sub(g.GuidePrice)
		rec.DiffRate = rec.PriceDiff.DivRound(g.GuidePrice, 4).Mul(hundred)
	}
	return rec
}
