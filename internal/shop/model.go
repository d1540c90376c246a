package shop

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPendingReview Status = "pending_review"
	StatusActive        Status = "active"
	StatusDisabled      Status = "disabled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPendingReview, StatusActive, StatusDisabled:
		return true
	}
	return false
}

type Shop struct {
	ID            int64
	OwnerID       int64
	Name          string
	Description   *string
	Address       *string
	City          *string
	Phone         *string
	BusinessHours *string
	Bays          int
	Status        Status
	Rating        decimal.Decimal
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Capacity is the number of bays usable per slot. Shops that never set a
// bay count get def.
func (s *Shop) Capacity(def int) int {
	if s.Bays > 0 {
		return s.Bays
	}
	return def
}

func (s *Shop) Open() bool {
	return s.Status == StatusActive
}
