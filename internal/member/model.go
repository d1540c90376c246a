package member

import (
	"time"

	"github.com/shopspring/decimal"
)

type Level struct {
	ID            int64
	Name          string
	MinExperience int
	DiscountRate  decimal.Decimal
	Benefits      *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Member caches a user's experience totals. The records are the source of truth.
type Member struct {
	ID                  int64
	UserID              int64
	LevelID             *int64
	TotalExperience     int
	AvailableExperience int
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

type RecordType string

const (
	RecordConsume   RecordType = "consume"
	RecordComplaint RecordType = "complaint"
	RecordManual    RecordType = "manual"
)

// Code is the legacy numeric code of the record type.
func (t RecordType) Code() int {
	switch t {
	case RecordConsume:
		return 1
	case RecordComplaint:
		return 2
	case RecordManual:
		return 3
	}
	return 0
}

func (t RecordType) Valid() bool {
	return t.Code() != 0
}

type Record struct {
	ID        int64
	UserID    int64
	OrderID   *int64
	Change    int
	Type      RecordType
	Reason    *string
	CreatedAt time.Time
}
