package member

import (
	"context"

	"github.com/hackgods/car-maintenance-booking/internal/apperr"
	"github.com/hackgods/car-maintenance-booking/internal/db"
)

var (
	ErrMemberNotFound         = apperr.NotFound("member record not found")
	ErrLevelNotFound          = apperr.NotFound("member level not found")
	ErrNoLevels               = apperr.NotFound("no member levels configured")
	ErrInsufficientExperience = apperr.InvalidState("insufficient available experience")
	ErrNegativeExperience     = apperr.InvalidState("adjustment would make experience negative")
	ErrLevelInUse             = apperr.InvalidState("level still has members")
	ErrOrderAlreadyAwarded    = apperr.Conflict("experience for this order was already awarded")
	ErrLevelExists            = apperr.Conflict("a level with this name or threshold already exists")
)

type Repository interface {
	GetMember(ctx context.Context, userID int64) (*Member, error)
	// LockMember reads the member row FOR UPDATE.
	LockMember(ctx context.Context, userID int64) (*Member, error)
	// CreateMember is idempotent per user.
	CreateMember(ctx context.Context, m Member) (*Member, error)
	UpdateMember(ctx context.Context, m Member) error

	InsertRecord(ctx context.Context, r Record) (*Record, error)
	ListRecords(ctx context.Context, userID int64, page db.Page) ([]Record, int, error)
	SumRecords(ctx context.Context, userID int64) (int, error)

	// ListLevels returns levels ordered by MinExperience.
	ListLevels(ctx context.Context) ([]Level, error)
	GetLevelByID(ctx context.Context, id int64) (*Level, error)
	SaveLevel(ctx context.Context, l Level) (*Level, error)
	DeleteLevel(ctx context.Context, id int64) error
	CountMembersByLevel(ctx context.Context) (map[int64]int, error)
}
