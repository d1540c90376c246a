package vehicle

import "time"

type Vehicle struct {
	ID           int64
	OwnerID      int64
	Brand        string
	Model        string
	LicensePlate string
	Color        *string
	Year         *int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
