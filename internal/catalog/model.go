package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

type Item struct {
	ID              int64
	ShopID          int64
	Name            string
	Category        *string
	Description     *string
	Price           decimal.Decimal
	DurationMinutes int
	Active          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type PackageItem struct {
	ItemID   int64
	Name     string
	Quantity int
}

type Package struct {
	ID          int64
	ShopID      int64
	Name        string
	Description *string
	Price       decimal.Decimal
	Active      bool
	Items       []PackageItem
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type GuidePrice struct {
	ID          int64
	ServiceName string
	Category    *string
	MinPrice    decimal.Decimal
	GuidePrice  decimal.Decimal
	MaxPrice    decimal.Decimal
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type PriceStatus string

const (
	PriceNormal  PriceStatus = "normal"
	PriceTooHigh PriceStatus = "too_high"
	PriceTooLow  PriceStatus = "too_low"
)

func (s PriceStatus) Valid() bool {
	switch s {
	case PriceNormal, PriceTooHigh, PriceTooLow:
		return true
	}
	return false
}

type MonitorRecord struct {
	ID          int64
	ShopID      int64
	ServiceName string
	ShopPrice   decimal.Decimal
	GuidePrice  decimal.Decimal
	PriceDiff   decimal.Decimal
	DiffRate    decimal.Decimal
	Status      PriceStatus
	CreatedAt   time.Time
}

type PriceStats struct {
	TooHigh        int
	TooLow         int
	RecentAbnormal []MonitorRecord
}

func (s PriceStats) TotalAbnormal() int {
	return s.TooHigh + s.TooLow
}
