package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hackgods/car-maintenance-booking/internal/apperr"
	"github.com/hackgods/car-maintenance-booking/internal/db"
)

type Service struct {
	repo Repository
	tx   db.Transactor
	log  *zap.Logger
}

func NewService(repo Repository, tx db.Transactor, log *zap.Logger) *Service {
	return &Service{repo: repo, tx: tx, log: log}
}

type ItemInput struct {
	Name            string
	Category        *string
	Description     *string
	Price           decimal.Decimal
	DurationMinutes int
}

func (in *ItemInput) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return apperr.Validation("item name is required")
	}
	if in.Price.IsNegative() {
		return apperr.Validation("price must not be negative")
	}
	if in.DurationMinutes < 0 {
		return apperr.Validation("duration must not be negative")
	}
	if in.DurationMinutes == 0 {
		in.DurationMinutes = 30
	}
	in.Price = in.Price.Round(2)
	return nil
}

// ItemResult is a stored item plus the verdict of the price monitor.
type ItemResult struct {
	Item        *Item
	PriceStatus PriceStatus
}

func (s *Service) CreateItem(ctx context.Context, shopID int64, in ItemInput) (*ItemResult, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}

	var res ItemResult
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		it, err := s.repo.CreateItem(ctx, Item{
			ShopID:          shopID,
			Name:            in.Name,
			Category:        in.Category,
			Description:     in.Description,
			Price:           in.Price,
			DurationMinutes: in.DurationMinutes,
		})
		if err != nil {
			return fmt.Errorf("create item: %w", err)
		}
		status, err := s.CheckServicePrice(ctx, shopID, it.Name, it.Price)
		if err != nil {
			return err
		}
		res = ItemResult{Item: it, PriceStatus: status}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *Service) UpdateItem(ctx context.Context, shopID, itemID int64, in ItemInput) (*ItemResult, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}

	var res ItemResult
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.shopItem(ctx, shopID, itemID)
		if err != nil {
			return err
		}
		current.Name = in.Name
		current.Category = in.Category
		current.Description = in.Description
		current.Price = in.Price
		current.DurationMinutes = in.DurationMinutes

		it, err := s.repo.UpdateItem(ctx, *current)
		if err != nil {
			return err
		}
		status, err := s.CheckServicePrice(ctx, shopID, it.Name, it.Price)
		if err != nil {
			return err
		}
		res = ItemResult{Item: it, PriceStatus: status}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// DeleteItem takes an item off sale. Booked line items keep their copy.
func (s *Service) DeleteItem(ctx context.Context, shopID, itemID int64) error {
	if _, err := s.shopItem(ctx, shopID, itemID); err != nil {
		return err
	}
	return s.repo.DeactivateItem(ctx, itemID)
}

func (s *Service) ListShopItems(ctx context.Context, shopID int64, category string) ([]Item, error) {
	var cat *string
	if c := strings.TrimSpace(category); c != "" {
		cat = &c
	}
	return s.repo.ListItemsByShop(ctx, shopID, cat)
}

func (s *Service) shopItem(ctx context.Context, shopID, itemID int64) (*Item, error) {
	it, err := s.repo.GetItemByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if it.ShopID != shopID {
		return nil, ErrNotShopItem
	}
	return it, nil
}

// ItemSnapshot returns an on-sale item of shopID for copying into a booking.
func (s *Service) ItemSnapshot(ctx context.Context, shopID, itemID int64) (*Item, error) {
	it, err := s.repo.GetItemByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if it.ShopID != shopID || !it.Active {
		return nil, apperr.Validation("service item %d is not offered by this shop", itemID)
	}
	return it, nil
}

// PackageSnapshot is ItemSnapshot for packages.
func (s *Service) PackageSnapshot(ctx context.Context, shopID, packageID int64) (*Package, error) {
	p, err := s.repo.GetPackageByID(ctx, packageID)
	if err != nil {
		return nil, err
	}
	if p.ShopID != shopID || !p.Active {
		return nil, apperr.Validation("service package %d is not offered by this shop", packageID)
	}
	return p, nil
}

type PackageItemInput struct {
	ItemID   int64
	Quantity int
}

type PackageInput struct {
	Name        string
	Description *string
	Price       decimal.Decimal
	Items       []PackageItemInput
}

// packageItems validates in and resolves its items, which must all belong to shopID.
func (s *Service) packageItems(ctx context.Context, shopID int64, in PackageInput) (string, []PackageItem, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return "", nil, apperr.Validation("package name is required")
	}
	if in.Price.IsNegative() {
		return "", nil, apperr.Validation("price must not be negative")
	}
	if len(in.Items) == 0 {
		return "", nil, apperr.Validation("a package needs at least one item")
	}

	seen := make(map[int64]bool, len(in.Items))
	items := make([]PackageItem, 0, len(in.Items))
	for _, pi := range in.Items {
		if seen[pi.ItemID] {
			return "", nil, apperr.Validation("item %d listed twice", pi.ItemID)
		}
		seen[pi.ItemID] = true

		qty := pi.Quantity
		if qty == 0 {
			qty = 1
		}
		if qty < 0 {
			return "", nil, apperr.Validation("quantity must be positive")
		}

		it, err := s.repo.GetItemByID(ctx, pi.ItemID)
		if err != nil {
			if errors.Is(err, ErrItemNotFound) {
				return "", nil, apperr.Validation("item %d does not exist", pi.ItemID)
			}
			return "", nil, err
		}
		if it.ShopID != shopID {
			return "", nil, ErrNotShopItem
		}
		items = append(items, PackageItem{ItemID: it.ID, Name: it.Name, Quantity: qty})
	}
	return name, items, nil
}

// CreatePackage bundles items of the same shop under one price.
func (s *Service) CreatePackage(ctx context.Context, shopID int64, in PackageInput) (*Package, error) {
	var created *Package
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		name, items, err := s.packageItems(ctx, shopID, in)
		if err != nil {
			return err
		}
		created, err = s.repo.CreatePackage(ctx, Package{
			ShopID:      shopID,
			Name:        name,
			Description: in.Description,
			Price:       in.Price.Round(2),
			Items:       items,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("package created", zap.Int64("shop_id", shopID), zap.Int64("package_id", created.ID))
	return created, nil
}

// UpdatePackage rewrites a live package and replaces its item list. Bookings
// already made keep the snapshot they were priced with.
func (s *Service) UpdatePackage(ctx context.Context, shopID, packageID int64, in PackageInput) (*Package, error) {
	var updated *Package
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetPackageByID(ctx, packageID)
		if err != nil {
			return err
		}
		if p.ShopID != shopID {
			return ErrNotShopItem
		}
		if !p.Active {
			return ErrPackageNotFound
		}

		name, items, err := s.packageItems(ctx, shopID, in)
		if err != nil {
			return err
		}
		p.Name = name
		p.Description = in.Description
		p.Price = in.Price.Round(2)
		p.Items = items
		updated, err = s.repo.UpdatePackage(ctx, *p)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("package updated", zap.Int64("shop_id", shopID), zap.Int64("package_id", packageID))
	return updated, nil
}

func (s *Service) ListShopPackages(ctx context.Context, shopID int64) ([]Package, error) {
	return s.repo.ListPackagesByShop(ctx, shopID)
}

func (s *Service) DeletePackage(ctx context.Context, shopID, packageID int64) error {
	p, err := s.repo.GetPackageByID(ctx, packageID)
	if err != nil {
		return err
	}
	if p.ShopID != shopID {
		return ErrNotShopItem
	}
	return s.repo.DeactivatePackage(ctx, packageID)
}

// Guide prices and monitoring

func (s *Service) SaveGuidePrice(ctx context.Context, g GuidePrice) (*GuidePrice, error) {
	g.ServiceName = strings.TrimSpace(g.ServiceName)
	if g.ServiceName == "" {
		return nil, apperr.Validation("service name is required")
	}
	if !g.MinPrice.IsPositive() {
		return nil, apperr.Validation("min price must be positive")
	}
	if g.GuidePrice.LessThan(g.MinPrice) || g.MaxPrice.LessThan(g.GuidePrice) {
		return nil, apperr.Validation("prices must satisfy min <= guide <= max")
	}
	if g.ID != 0 {
		if _, err := s.repo.GetGuidePriceByID(ctx, g.ID); err != nil {
			return nil, err
		}
	}
	return s.repo.SaveGuidePrice(ctx, g)
}

func (s *Service) DeactivateGuidePrice(ctx context.Context, id int64) error {
	return s.repo.DeactivateGuidePrice(ctx, id)
}

func (s *Service) ListGuidePrices(ctx context.Context, category string) ([]GuidePrice, error) {
	var cat *string
	if c := strings.TrimSpace(category); c != "" {
		cat = &c
	}
	return s.repo.ListActiveGuidePrices(ctx, cat)
}

// CheckServicePrice compares a shop price with the platform guide price of the
// same service and records a monitor entry when it is out of band.
// Services without a guide price are always normal.
func (s *Service) CheckServicePrice(ctx context.Context, shopID int64, name string, price decimal.Decimal) (PriceStatus, error) {
	g, err := s.repo.GetActiveGuidePriceByName(ctx, name)
	if err != nil {
		if errors.Is(err, ErrGuidePriceNotFound) {
			return PriceNormal, nil
		}
		return "", fmt.Errorf("load guide price: %w", err)
	}

	status := Evaluate(*g, price)
	if status == PriceNormal {
		return status, nil
	}

	if _, err := s.repo.InsertMonitorRecord(ctx, newMonitorRecord(shopID, name, price, *g, status)); err != nil {
		return "", err
	}
	s.log.Warn("abnormal service price",
		zap.Int64("shop_id", shopID),
		zap.String("service", name),
		zap.String("price", price.StringFixed(2)),
		zap.String("status", string(status)),
	)
	return status, nil
}

func (s *Service) MonitorRecords(ctx context.Context, f MonitorFilter, page db.Page) ([]MonitorRecord, int, error) {
	if f.Status != nil && !f.Status.Valid() {
		return nil, 0, apperr.Validation("unknown price status %q", *f.Status)
	}
	return s.repo.ListMonitorRecords(ctx, f, page.Normalize())
}

func (s *Service) PriceStats(ctx context.Context) (*PriceStats, error) {
	high, err := s.repo.CountMonitorRecords(ctx, PriceTooHigh)
	if err != nil {
		return nil, err
	}
	low, err := s.repo.CountMonitorRecords(ctx, PriceTooLow)
	if err != nil {
		return nil, err
	}

	var recent []MonitorRecord
	for _, st := range []PriceStatus{PriceTooHigh, PriceTooLow} {
		recs, _, err := s.repo.ListMonitorRecords(ctx, MonitorFilter{Status: &st}, db.Page{Number: 1, Size: 10})
		if err != nil {
			return nil, err
		}
		recent = append(recent, recs...)
	}
	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].CreatedAt.After(recent[j].CreatedAt)
	})
	if len(recent) > 10 {
		recent = recent[:10]
	}

	return &PriceStats{TooHigh: high, TooLow: low, RecentAbnormal: recent}, nil
}
