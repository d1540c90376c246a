package vehicle

import (
	"context"

	"github.com/hackgods/car-maintenance-booking/internal/apperr"
)

var (
	ErrVehicleNotFound = apperr.NotFound("vehicle not found")
	ErrNotOwner        = apperr.Forbidden("vehicle belongs to another user")
)

type Repository interface {
	// GetVehicleByID ignores deleted vehicles.
	GetVehicleByID(ctx context.Context, id int64) (*Vehicle, error)
	ListVehiclesByOwner(ctx context.Context, ownerID int64) ([]Vehicle, error)
	CreateVehicle(ctx context.Context, v Vehicle) (*Vehicle, error)
	UpdateVehicle(ctx context.Context, v Vehicle) (*Vehicle, error)
	SoftDeleteVehicle(ctx context.Context, id int64) error
}
