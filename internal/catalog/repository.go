package catalog

import (
	"context"

	"github.com/hackgods/car-maintenance-booking/internal/apperr"
	"github.com/hackgods/car-maintenance-booking/internal/db"
)

var (
	ErrItemNotFound       = apperr.NotFound("service item not found")
	ErrPackageNotFound    = apperr.NotFound("service package not found")
	ErrGuidePriceNotFound = apperr.NotFound("guide price not found")
	ErrNotShopItem        = apperr.Forbidden("item belongs to another shop")
	ErrGuidePriceExists   = apperr.Conflict("an active guide price already exists for this service")
)

type MonitorFilter struct {
	ShopID *int64
	Status *PriceStatus
}

type Repository interface {
	GetItemByID(ctx context.Context, id int64) (*Item, error)
	ListItemsByShop(ctx context.Context, shopID int64, category *string) ([]Item, error)
	CreateItem(ctx context.Context, it Item) (*Item, error)
	UpdateItem(ctx context.Context, it Item) (*Item, error)
	DeactivateItem(ctx context.Context, id int64) error

	GetPackageByID(ctx context.Context, id int64) (*Package, error)
	ListPackagesByShop(ctx context.Context, shopID int64) ([]Package, error)
	// CreatePackage stores the package and its item links.
	CreatePackage(ctx context.Context, p Package) (*Package, error)
	// UpdatePackage rewrites the package row and replaces its item links.
	UpdatePackage(ctx context.Context, p Package) (*Package, error)
	DeactivatePackage(ctx context.Context, id int64) error

	GetActiveGuidePriceByName(ctx context.Context, serviceName string) (*GuidePrice, error)
	GetGuidePriceByID(ctx context.Context, id int64) (*GuidePrice, error)
	ListActiveGuidePrices(ctx context.Context, category *string) ([]GuidePrice, error)
	SaveGuidePrice(ctx context.Context, g GuidePrice) (*GuidePrice, error)
	DeactivateGuidePrice(ctx context.Context, id int64) error

	InsertMonitorRecord(ctx context.Context, rec MonitorRecord) (*MonitorRecord, error)
	ListMonitorRecords(ctx context.Context, f MonitorFilter, page db.Page) ([]MonitorRecord, int, error)
	CountMonitorRecords(ctx context.Context, status PriceStatus) (int, error)
}
