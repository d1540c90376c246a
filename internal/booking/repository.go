package booking

import (
	"context"
	"time"

	"github.com/hackgods/car-maintenance-booking/internal/apperr"
	"github.com/hackgods/car-maintenance-booking/internal/db"
)

var (
	ErrAppointmentNotFound = apperr.NotFound("appointment not found")
	ErrOrderNotFound       = apperr.NotFound("order not found")

	ErrNotAppointmentOwner = apperr.Forbidden("appointment belongs to another customer")
	ErrNotOrderOwner       = apperr.Forbidden("order belongs to another customer")
	ErrNotShopAppointment  = apperr.Forbidden("appointment belongs to another shop")
	ErrNotShopOrder        = apperr.Forbidden("order belongs to another shop")

	ErrAppointmentNotPending = apperr.InvalidState("appointment is not pending")
	ErrAppointmentFinal      = apperr.InvalidState("appointment is already completed or cancelled")
	ErrAppointmentInactive   = apperr.InvalidState("appointment is no longer active")
	ErrOrderInFlight         = apperr.InvalidState("appointment has a paid or started order, cancel the order instead")
	ErrOrderNotPending       = apperr.InvalidState("order is not pending")
	ErrOrderNotInProgress    = apperr.InvalidState("order is not in progress")
	ErrOrderClosed           = apperr.InvalidState("order is already completed or cancelled")

	ErrSlotFull        = apperr.Conflict("time slot is fully booked")
	ErrSlotBeingBooked = apperr.Conflict("slot is currently being booked, please retry")
	ErrBayTaken        = apperr.Conflict("bay is already taken for this slot")
	ErrOrderExists     = apperr.Conflict("appointment already has an order")
	ErrOrderPaid       = apperr.Conflict("order already paid")
	ErrNumberCollision = apperr.Conflict("could not allocate a booking number, please retry")

	ErrShopClosed      = apperr.Validation("shop not found or closed")
	ErrVehicleNotOwned = apperr.Validation("vehicle not found or not yours")
)

type AppointmentFilter struct {
	UserID *int64
	ShopID *int64
	Status *AppointmentStatus
	Date   *time.Time
}

// OrderFilter narrows order listings. CreatedFrom is inclusive, CreatedBefore exclusive.
type OrderFilter struct {
	UserID        *int64
	ShopID        *int64
	Status        *OrderStatus
	CreatedFrom   *time.Time
	CreatedBefore *time.Time
}

// Repository contains all DB interactions needed by the booking service.
type Repository interface {
	// GetAppointment loads the appointment with its line items.
	GetAppointment(ctx context.Context, id int64) (*Appointment, error)
	// LockAppointment loads the row FOR UPDATE, without line items.
	LockAppointment(ctx context.Context, id int64) (*Appointment, error)
	ListAppointments(ctx context.Context, f AppointmentFilter, page db.Page) ([]Appointment, int, error)
	CreateAppointment(ctx context.Context, a Appointment) (*Appointment, error)
	UpdateAppointment(ctx context.Context, a Appointment) error
	ReplaceItems(ctx context.Context, appointmentID int64, items []LineItem) ([]LineItem, error)

	// Capacity checks
	TakenBays(ctx context.Context, shopID int64, date time.Time, slot string) ([]int, error)
	ActiveCountsBySlot(ctx context.Context, shopID int64, date time.Time) (map[string]int, error)

	AppointmentStatusCounts(ctx context.Context, shopID int64, today time.Time) (map[AppointmentStatus]int, int, error)

	// Breach sweep
	FindStalePending(ctx context.Context, before time.Time) ([]Appointment, error)

	GetOrder(ctx context.Context, id int64) (*Order, error)
	LockOrder(ctx context.Context, id int64) (*Order, error)
	GetOrderByAppointment(ctx context.Context, appointmentID int64) (*Order, error)
	ListOrders(ctx context.Context, f OrderFilter, page db.Page) ([]Order, int, error)
	CreateOrder(ctx context.Context, o Order) (*Order, error)
	UpdateOrder(ctx context.Context, o Order) error
	OrderStats(ctx context.Context, shopID int64, today time.Time) (*OrderStats, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
