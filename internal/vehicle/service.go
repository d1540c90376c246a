package vehicle

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/hackgods/car-maintenance-booking/internal/apperr"
)

type Service struct {
	repo Repository
	log  *zap.Logger
}

func NewService(repo Repository, log *zap.Logger) *Service {
	return &Service{repo: repo, log: log}
}

type Input struct {
	Brand        string
	Model        string
	LicensePlate string
	Color        *string
	Year         *int
}

// apply validates in and copies it onto v with the plate upper-cased.
func (in Input) apply(v *Vehicle) error {
	v.Brand = strings.TrimSpace(in.Brand)
	v.Model = strings.TrimSpace(in.Model)
	v.LicensePlate = strings.ToUpper(strings.TrimSpace(in.LicensePlate))
	v.Color = in.Color
	v.Year = in.Year
	if v.Brand == "" || v.Model == "" || v.LicensePlate == "" {
		return apperr.Validation("brand, model and license plate are required")
	}
	if v.Year != nil && (*v.Year < 1900 || *v.Year > 2100) {
		return apperr.Validation("year %d is out of range", *v.Year)
	}
	return nil
}

func (s *Service) AddVehicle(ctx context.Context, ownerID int64, in Input) (*Vehicle, error) {
	v := Vehicle{OwnerID: ownerID}
	if err := in.apply(&v); err != nil {
		return nil, err
	}
	return s.repo.CreateVehicle(ctx, v)
}

// UpdateVehicle replaces the editable fields of an owned vehicle.
func (s *Service) UpdateVehicle(ctx context.Context, id, ownerID int64, in Input) (*Vehicle, error) {
	v, err := s.OwnedVehicle(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}
	if err := in.apply(v); err != nil {
		return nil, err
	}
	updated, err := s.repo.UpdateVehicle(ctx, *v)
	if err != nil {
		return nil, err
	}
	s.log.Debug("vehicle updated", zap.Int64("vehicle_id", id))
	return updated, nil
}

func (s *Service) ListVehicles(ctx context.Context, ownerID int64) ([]Vehicle, error) {
	return s.repo.ListVehiclesByOwner(ctx, ownerID)
}

func (s *Service) GetVehicle(ctx context.Context, id int64) (*Vehicle, error) {
	return s.repo.GetVehicleByID(ctx, id)
}

// OwnedVehicle returns the vehicle only when ownerID owns it.
func (s *Service) OwnedVehicle(ctx context.Context, id, ownerID int64) (*Vehicle, error) {
	v, err := s.repo.GetVehicleByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if v.OwnerID != ownerID {
		return nil, ErrNotOwner
	}
	return v, nil
}

func (s *Service) DeleteVehicle(ctx context.Context, id, ownerID int64) error {
	if _, err := s.OwnedVehicle(ctx, id, ownerID); err != nil {
		return err
	}
	if err := s.repo.SoftDeleteVehicle(ctx, id); err != nil {
		return err
	}
	s.log.Debug("vehicle deleted", zap.Int64("vehicle_id", id))
	return nil
}
