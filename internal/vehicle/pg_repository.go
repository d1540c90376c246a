package vehicle

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/car-maintenance-booking/internal/db"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const vehicleColumns = `id, owner_id, brand, model, license_plate, color, year, created_at, updated_at`

func scanVehicle(row pgx.Row) (*Vehicle, error) {
	var v Vehicle
	err := row.Scan(
		&v.ID,
		&v.OwnerID,
		&v.Brand,
		&v.Model,
		&v.LicensePlate,
		&v.Color,
		&v.Year,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVehicleNotFound
		}
		return nil, err
	}
	return &v, nil
}

func (r *PgRepository) GetVehicleByID(ctx context.Context, id int64) (*Vehicle, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+vehicleColumns+`
		FROM vehicles
		WHERE id = $1 AND NOT deleted
	`, id)
	return scanVehicle(row)
}

func (r *PgRepository) ListVehiclesByOwner(ctx context.Context, ownerID int64) ([]Vehicle, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT `+vehicleColumns+`
		FROM vehicles
		WHERE owner_id = $1 AND NOT deleted
		ORDER BY created_at DESC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}
	defer rows.Close()

	var result []Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *v)
	}
	return result, rows.Err()
}

func (r *PgRepository) CreateVehicle(ctx context.Context, v Vehicle) (*Vehicle, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO vehicles (owner_id, brand, model, license_plate, color, year)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+vehicleColumns,
		v.OwnerID, v.Brand, v.Model, v.LicensePlate, v.Color, v.Year)
	return scanVehicle(row)
}

func (r *PgRepository) UpdateVehicle(ctx context.Context, v Vehicle) (*Vehicle, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE vehicles
		SET brand = $2, model = $3, license_plate = $4, color = $5, year = $6, updated_at = now()
		WHERE id = $1 AND NOT deleted
		RETURNING `+vehicleColumns,
		v.ID, v.Brand, v.Model, v.LicensePlate, v.Color, v.Year)
	return scanVehicle(row)
}

func (r *PgRepository) SoftDeleteVehicle(ctx context.Context, id int64) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE vehicles SET deleted = TRUE, updated_at = now()
		WHERE id = $1 AND NOT deleted
	`, id)
	if err != nil {
		return fmt.Errorf("delete vehicle: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrVehicleNotFound
	}
	return nil
}
