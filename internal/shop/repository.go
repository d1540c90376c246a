package shop

import (
	"context"

	"github.com/hackgods/car-maintenance-booking/internal/apperr"
	"github.com/hackgods/car-maintenance-booking/internal/db"
)

var (
	ErrShopNotFound          = apperr.NotFound("shop not found")
	ErrShopAlreadyRegistered = apperr.Conflict("this account already has a shop")
	ErrNotShopOwner          = apperr.Forbidden("not the owner of this shop")
)

type ListFilter struct {
	Status *Status
	City   *string
}

type Repository interface {
	GetShopByID(ctx context.Context, id int64) (*Shop, error)
	GetShopByOwner(ctx context.Context, ownerID int64) (*Shop, error)
	ListShops(ctx context.Context, f ListFilter, page db.Page) ([]Shop, int, error)

	CreateShop(ctx context.Context, s Shop) (*Shop, error)
	UpdateShop(ctx context.Context, s Shop) (*Shop, error)
	SetShopStatus(ctx context.Context, id int64, status Status) (*Shop, error)
}
