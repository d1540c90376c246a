package shop

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/hackgods/car-maintenance-booking/internal/apperr"
	"github.com/hackgods/car-maintenance-booking/internal/auth"
	"github.com/hackgods/car-maintenance-booking/internal/db"
)

type Service struct {
	repo Repository
	log  *zap.Logger
}

func NewService(repo Repository, log *zap.Logger) *Service {
	return &Service{repo: repo, log: log}
}

type Input struct {
	Name          string
	Description   *string
	Address       *string
	City          *string
	Phone         *string
	BusinessHours *string
	Bays          int
}

func (in Input) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return apperr.Validation("shop name is required")
	}
	if in.Bays < 0 || in.Bays > 100 {
		return apperr.Validation("bays must be between 0 and 100")
	}
	return nil
}

func (s *Service) GetShop(ctx context.Context, id int64) (*Shop, error) {
	return s.repo.GetShopByID(ctx, id)
}

func (s *Service) ShopByOwner(ctx context.Context, ownerID int64) (*Shop, error) {
	return s.repo.GetShopByOwner(ctx, ownerID)
}

// ListActiveShops returns the shops customers may book, optionally in one city.
func (s *Service) ListActiveShops(ctx context.Context, city string, page db.Page) ([]Shop, int, error) {
	active := StatusActive
	f := ListFilter{Status: &active}
	if c := strings.TrimSpace(city); c != "" {
		f.City = &c
	}
	return s.repo.ListShops(ctx, f, page.Normalize())
}

func (s *Service) ListShops(ctx context.Context, f ListFilter, page db.Page) ([]Shop, int, error) {
	return s.repo.ListShops(ctx, f, page.Normalize())
}

// RegisterShop creates the shop of a shop account. New shops wait for admin review.
func (s *Service) RegisterShop(ctx context.Context, ownerID int64, in Input) (*Shop, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	created, err := s.repo.CreateShop(ctx, Shop{
		OwnerID:       ownerID,
		Name:          strings.TrimSpace(in.Name),
		Description:   in.Description,
		Address:       in.Address,
		City:          in.City,
		Phone:         in.Phone,
		BusinessHours: in.BusinessHours,
		Bays:          in.Bays,
		Status:        StatusPendingReview,
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("shop registered", zap.Int64("shop_id", created.ID), zap.Int64("owner_id", ownerID))
	return created, nil
}

func (s *Service) UpdateShop(ctx context.Context, p auth.Principal, id int64, in Input) (*Shop, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	current, err := s.repo.GetShopByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsAdmin() && current.OwnerID != p.UserID {
		return nil, ErrNotShopOwner
	}

	current.Name = strings.TrimSpace(in.Name)
	current.Description = in.Description
	current.Address = in.Address
	current.City = in.City
	current.Phone = in.Phone
	current.BusinessHours = in.BusinessHours
	current.Bays = in.Bays

	return s.repo.UpdateShop(ctx, *current)
}

// SetStatus approves, disables or re-opens a shop.
func (s *Service) SetStatus(ctx context.Context, id int64, status Status) (*Shop, error) {
	if !status.Valid() {
		return nil, apperr.Validation("unknown shop status %q", status)
	}
	updated, err := s.repo.SetShopStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}
	s.log.Info("shop status changed", zap.Int64("shop_id", id), zap.String("status", string(status)))
	return updated, nil
}
