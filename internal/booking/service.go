package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hackgods/car-maintenance-booking/internal/apperr"
	"github.com/hackgods/car-maintenance-booking/internal/auth"
	"github.com/hackgods/car-maintenance-booking/internal/catalog"
	"github.com/hackgods/car-maintenance-booking/internal/config"
	"github.com/hackgods/car-maintenance-booking/internal/db"
	"github.com/hackgods/car-maintenance-booking/internal/metrics"
	redisclient "github.com/hackgods/car-maintenance-booking/internal/redis"
	"github.com/hackgods/car-maintenance-booking/internal/shop"
	"github.com/hackgods/car-maintenance-booking/internal/vehicle"
)

const (
	EventAppointmentCreated   = "APPOINTMENT_CREATED"
	EventAppointmentUpdated   = "APPOINTMENT_UPDATED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventAppointmentStatus    = "APPOINTMENT_STATUS_CHANGED"
	EventAppointmentBreached  = "APPOINTMENT_BREACHED"
	EventBayAssigned          = "BAY_ASSIGNED"
	EventOrderCreated         = "ORDER_CREATED"
	EventOrderPaid            = "ORDER_PAID"
	EventServiceStarted       = "SERVICE_STARTED"
	EventServiceCompleted     = "SERVICE_COMPLETED"
	EventOrderCancelled       = "ORDER_CANCELLED"
	EventOrderStatus          = "ORDER_STATUS_CHANGED"
	EventTechnicianAssigned   = "TECHNICIAN_ASSIGNED"
)

type ShopDirectory interface {
	GetShop(ctx context.Context, id int64) (*shop.Shop, error)
}

type VehicleLookup interface {
	GetVehicle(ctx context.Context, id int64) (*vehicle.Vehicle, error)
}

type CatalogSnapshots interface {
	ItemSnapshot(ctx context.Context, shopID, itemID int64) (*catalog.Item, error)
	PackageSnapshot(ctx context.Context, shopID, packageID int64) (*catalog.Package, error)
}

type ExperienceLedger interface {
	AddExperienceForOrder(ctx context.Context, userID int64, finalAmount decimal.Decimal, orderID int64) (int, error)
}

// Collaborators are the other domains a booking reads from or writes to.
type Collaborators struct {
	Shops    ShopDirectory
	Vehicles VehicleLookup
	Catalog  CatalogSnapshots
	Ledger   ExperienceLedger
}

type Service struct {
	repo   Repository
	tx     db.Transactor
	locker redisclient.Locker
	collab Collaborators
	cfg    config.Config
	log    *zap.Logger
	now    func() time.Time
}

func NewService(repo Repository, tx db.Transactor, locker redisclient.Locker, collab Collaborators, cfg config.Config, log *zap.Logger) *Service {
	if cfg.DefaultBays <= 0 {
		cfg.DefaultBays = 10
	}
	if cfg.BookingWindowDays <= 0 {
		cfg.BookingWindowDays = 7
	}
	return &Service{
		repo:   repo,
		tx:     tx,
		locker: locker,
		collab: collab,
		cfg:    cfg,
		log:    log,
		now:    time.Now,
	}
}

func (s *Service) today() time.Time {
	return Day(s.now().In(s.cfg.Loc()))
}

// newNumber builds APT/ORD numbers: prefix, local timestamp, three random digits.
func (s *Service) newNumber(prefix string) string {
	return fmt.Sprintf("%s%s%03d", prefix, s.now().In(s.cfg.Loc()).Format("20060102150405"), rand.IntN(1000))
}

type LineItemInput struct {
	ItemID    *int64
	PackageID *int64
	Name      string
	Price     decimal.Decimal
	Quantity  int
}

type AppointmentInput struct {
	ShopID    int64
	VehicleID int64
	Date      time.Time
	TimeSlot  string
	BayNumber int // 0 lets the shop's lowest free bay be picked
	Items     []LineItemInput
}

type UpdateAppointmentInput struct {
	VehicleID *int64
	Date      *time.Time
	TimeSlot  *string
	Items     []LineItemInput // nil keeps the current items
}

func (s *Service) openShop(ctx context.Context, shopID int64) (*shop.Shop, error) {
	sh, err := s.collab.Shops.GetShop(ctx, shopID)
	if err != nil {
		if errors.Is(err, shop.ErrShopNotFound) {
			return nil, ErrShopClosed
		}
		return nil, fmt.Errorf("load shop: %w", err)
	}
	if !sh.Open() {
		return nil, ErrShopClosed
	}
	return sh, nil
}

func (s *Service) ownVehicle(ctx context.Context, vehicleID, customerID int64) error {
	v, err := s.collab.Vehicles.GetVehicle(ctx, vehicleID)
	if err != nil {
		if errors.Is(err, vehicle.ErrVehicleNotFound) {
			return ErrVehicleNotOwned
		}
		return fmt.Errorf("load vehicle: %w", err)
	}
	if v.OwnerID != customerID {
		return ErrVehicleNotOwned
	}
	return nil
}

func (s *Service) checkDate(date time.Time) error {
	today := s.today()
	last := today.AddDate(0, 0, s.cfg.BookingWindowDays)
	if date.Before(today) || date.After(last) {
		return apperr.Validation("date must be between %s and %s", dayString(today), dayString(last))
	}
	return nil
}

// resolveItems copies catalog prices into line items and returns their total.
func (s *Service) resolveItems(ctx context.Context, shopID int64, in []LineItemInput) ([]LineItem, decimal.Decimal, error) {
	items := make([]LineItem, 0, len(in))
	total := decimal.Zero

	for i, li := range in {
		if li.Quantity < 1 {
			return nil, decimal.Zero, apperr.Validation("item %d: quantity must be >= 1, got %d", i+1, li.Quantity)
		}
		it := LineItem{ItemID: li.ItemID, PackageID: li.PackageID, Quantity: li.Quantity}

		switch {
		case li.ItemID != nil && li.PackageID != nil:
			return nil, decimal.Zero, apperr.Validation("item %d: set either item_id or package_id", i+1)
		case li.ItemID != nil:
			snap, err := s.collab.Catalog.ItemSnapshot(ctx, shopID, *li.ItemID)
			if err != nil {
				return nil, decimal.Zero, snapshotErr(err, i)
			}
			it.Name, it.Price = snap.Name, snap.Price
		case li.PackageID != nil:
			snap, err := s.collab.Catalog.PackageSnapshot(ctx, shopID, *li.PackageID)
			if err != nil {
				return nil, decimal.Zero, snapshotErr(err, i)
			}
			it.Name, it.Price = snap.Name, snap.Price
		default:
			it.Name = strings.TrimSpace(li.Name)
			it.Price = li.Price
			if it.Name == "" {
				return nil, decimal.Zero, apperr.Validation("item %d: name is required", i+1)
			}
		}

		if it.Price.IsNegative() {
			return nil, decimal.Zero, apperr.Validation("item %d: price must be >= 0", i+1)
		}
		it.Price = it.Price.Round(2)
		it.Subtotal = it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))).Round(2)
		total = total.Add(it.Subtotal)
		items = append(items, it)
	}
	return items, total, nil
}

func snapshotErr(err error, i int) error {
	if apperr.KindOf(err) == apperr.KindNotFound {
		return apperr.Validation("item %d: %s", i+1, apperr.Message(err))
	}
	return err
}

// allocateBay must run under the slot lock.
func (s *Service) allocateBay(ctx context.Context, sh *shop.Shop, date time.Time, slot string, requested int) (int, error) {
	bays := sh.Capacity(s.cfg.DefaultBays)
	if requested < 0 || requested > bays {
		return 0, apperr.Validation("bay must be between 1 and %d", bays)
	}
	taken, err := s.repo.TakenBays(ctx, sh.ID, date, slot)
	if err != nil {
		return 0, err
	}
	if len(taken) >= bays {
		return 0, ErrSlotFull
	}
	bay := nextFreeBay(taken, bays, requested)
	if bay == 0 {
		return 0, ErrBayTaken
	}
	return bay, nil
}

func (s *Service) withSlotLock(ctx context.Context, shopID int64, date time.Time, slot string, fn func(ctx context.Context) error) error {
	err := s.locker.WithSlotLock(ctx, slotKey(shopID, date, slot), fn)
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		return ErrSlotBeingBooked
	}
	return err
}

// CreateAppointment books a bay for a customer and derives the appointment's order.
// The slot lock and the partial unique bay index keep concurrent bookings
// from overfilling a slot.
func (s *Service) CreateAppointment(ctx context.Context, customerID int64, in AppointmentInput) (*AppointmentDetail, error) {
	detail, err := s.createAppointment(ctx, customerID, in)
	switch {
	case err == nil:
		metrics.BookingAttempt("booked")
	case apperr.KindOf(err) == apperr.KindConflict:
		metrics.BookingAttempt("conflict")
	case apperr.KindOf(err) == apperr.KindValidation:
		metrics.BookingAttempt("rejected")
	default:
		metrics.BookingAttempt("error")
	}
	return detail, err
}

func (s *Service) createAppointment(ctx context.Context, customerID int64, in AppointmentInput) (*AppointmentDetail, error) {
	sh, err := s.openShop(ctx, in.ShopID)
	if err != nil {
		return nil, err
	}
	if err := s.ownVehicle(ctx, in.VehicleID, customerID); err != nil {
		return nil, err
	}
	date := Day(in.Date)
	if err := s.checkDate(date); err != nil {
		return nil, err
	}
	if err := ValidSlot(in.TimeSlot); err != nil {
		return nil, err
	}
	items, total, err := s.resolveItems(ctx, sh.ID, in.Items)
	if err != nil {
		return nil, err
	}

	var detail *AppointmentDetail

	err = s.withSlotLock(ctx, sh.ID, date, in.TimeSlot, func(lockCtx context.Context) error {
		return s.tx.WithinTx(lockCtx, func(ctx context.Context) error {
			bay, err := s.allocateBay(ctx, sh, date, in.TimeSlot, in.BayNumber)
			if err != nil {
				return err
			}

			appt, err := s.repo.CreateAppointment(ctx, Appointment{
				AppointmentNo: s.newNumber("APT"),
				UserID:        customerID,
				ShopID:        sh.ID,
				VehicleID:     in.VehicleID,
				Date:          date,
				TimeSlot:      in.TimeSlot,
				BayNumber:     bay,
				TotalAmount:   total,
				Status:        AppointmentPending,
				Items:         items,
			})
			if err != nil {
				return err
			}

			order, err := s.repo.CreateOrder(ctx, Order{
				OrderNo:        s.newNumber("ORD"),
				AppointmentID:  appt.ID,
				UserID:         customerID,
				ShopID:         sh.ID,
				VehicleID:      in.VehicleID,
				TotalAmount:    total,
				DiscountAmount: decimal.Zero,
				FinalAmount:    total,
				PaymentMethod:  MethodCash,
				PaymentStatus:  PaymentUnpaid,
				Status:         OrderPending,
			})
			if err != nil {
				return err
			}

			if err := s.logEvent(ctx, EventAppointmentCreated, &appt.ID, &order.ID, map[string]any{
				"shop_id":   sh.ID,
				"date":      dayString(date),
				"time_slot": in.TimeSlot,
				"bay":       bay,
				"total":     total.StringFixed(2),
			}); err != nil {
				return err
			}

			detail = &AppointmentDetail{Appointment: *appt, Order: order}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("appointment created",
		zap.Int64("appointment_id", detail.ID),
		zap.Int64("shop_id", detail.ShopID),
		zap.String("date", dayString(detail.Date)),
		zap.String("time_slot", detail.TimeSlot),
		zap.Int("bay", detail.BayNumber),
	)
	return detail, nil
}

// CancelAppointment lets the customer withdraw a pending booking. Its order is
// cancelled with it while still unpaid.
func (s *Service) CancelAppointment(ctx context.Context, id, customerID int64, reason string) (*Appointment, error) {
	var appt *Appointment
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		appt, err = s.repo.LockAppointment(ctx, id)
		if err != nil {
			return err
		}
		if appt.UserID != customerID {
			return ErrNotAppointmentOwner
		}
		if appt.Status != AppointmentPending {
			return ErrAppointmentNotPending
		}

		s.cancelAppointment(appt, reason)
		if err := s.repo.UpdateAppointment(ctx, *appt); err != nil {
			return err
		}

		orderID, err := s.cancelDefaultOrder(ctx, appt.ID)
		if err != nil {
			return err
		}
		return s.logEvent(ctx, EventAppointmentCancelled, &appt.ID, orderID, map[string]any{
			"reason": reason,
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("appointment cancelled", zap.Int64("appointment_id", appt.ID))
	return appt, nil
}

func (s *Service) cancelAppointment(a *Appointment, reason string) {
	now := s.now()
	a.Status = AppointmentCancelled
	a.CancelTime = &now
	if reason = strings.TrimSpace(reason); reason != "" {
		a.CancelReason = &reason
	}
}

// cancelDefaultOrder cancels the appointment's order if it is still pending and unpaid.
func (s *Service) cancelDefaultOrder(ctx context.Context, appointmentID int64) (*int64, error) {
	o, err := s.repo.GetOrderByAppointment(ctx, appointmentID)
	if errors.Is(err, ErrOrderNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !o.isDefault() {
		return &o.ID, nil
	}
	o.Status = OrderCancelled
	if err := s.repo.UpdateOrder(ctx, *o); err != nil {
		return nil, err
	}
	metrics.OrderTransition(string(OrderCancelled))
	return &o.ID, nil
}

// checkOrderSettled fails when the appointment's order was paid or started
// and is still open. Such an order has to be cancelled or completed first.
func (s *Service) checkOrderSettled(ctx context.Context, appointmentID int64) error {
	o, err := s.repo.GetOrderByAppointment(ctx, appointmentID)
	if errors.Is(err, ErrOrderNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if o.isDefault() || o.Status == OrderCompleted || o.Status == OrderCancelled {
		return nil
	}
	return ErrOrderInFlight
}

// UpdateAppointment reschedules or re-scopes a pending booking.
func (s *Service) UpdateAppointment(ctx context.Context, id, customerID int64, in UpdateAppointmentInput) (*AppointmentDetail, error) {
	current, err := s.repo.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.UserID != customerID {
		return nil, ErrNotAppointmentOwner
	}
	if current.Status != AppointmentPending {
		return nil, ErrAppointmentNotPending
	}

	sh, err := s.openShop(ctx, current.ShopID)
	if err != nil {
		return nil, err
	}

	next := *current
	if in.VehicleID != nil {
		if err := s.ownVehicle(ctx, *in.VehicleID, customerID); err != nil {
			return nil, err
		}
		next.VehicleID = *in.VehicleID
	}
	if in.Date != nil {
		next.Date = Day(*in.Date)
	}
	if in.TimeSlot != nil {
		next.TimeSlot = *in.TimeSlot
	}
	moved := !next.Date.Equal(current.Date) || next.TimeSlot != current.TimeSlot
	if moved {
		if err := s.checkDate(next.Date); err != nil {
			return nil, err
		}
		if err := ValidSlot(next.TimeSlot); err != nil {
			return nil, err
		}
	}

	var items []LineItem
	if in.Items != nil {
		var total decimal.Decimal
		items, total, err = s.resolveItems(ctx, sh.ID, in.Items)
		if err != nil {
			return nil, err
		}
		next.TotalAmount = total
	}

	var detail *AppointmentDetail
	update := func(ctx context.Context) error {
		return s.tx.WithinTx(ctx, func(ctx context.Context) error {
			locked, err := s.repo.LockAppointment(ctx, id)
			if err != nil {
				return err
			}
			if locked.Status != AppointmentPending {
				return ErrAppointmentNotPending
			}

			if moved {
				bay, err := s.allocateBay(ctx, sh, next.Date, next.TimeSlot, 0)
				if err != nil {
					return err
				}
				next.BayNumber = bay
			}
			if err := s.repo.UpdateAppointment(ctx, next); err != nil {
				return err
			}
			if items != nil {
				if next.Items, err = s.repo.ReplaceItems(ctx, id, items); err != nil {
					return err
				}
			}

			order, err := s.resyncOrder(ctx, next)
			if err != nil {
				return err
			}
			if err := s.logEvent(ctx, EventAppointmentUpdated, &next.ID, nil, map[string]any{
				"date":      dayString(next.Date),
				"time_slot": next.TimeSlot,
				"bay":       next.BayNumber,
				"total":     next.TotalAmount.StringFixed(2),
			}); err != nil {
				return err
			}
			detail = &AppointmentDetail{Appointment: next, Order: order}
			return nil
		})
	}

	if moved {
		err = s.withSlotLock(ctx, sh.ID, next.Date, next.TimeSlot, update)
	} else {
		err = update(ctx)
	}
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// resyncOrder carries the appointment's vehicle and total into its pending order.
func (s *Service) resyncOrder(ctx context.Context, a Appointment) (*Order, error) {
	o, err := s.repo.GetOrderByAppointment(ctx, a.ID)
	if errors.Is(err, ErrOrderNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !o.isDefault() {
		return o, nil
	}
	if o.DiscountAmount.GreaterThan(a.TotalAmount) {
		return nil, apperr.Validation("new total %s is below the order discount %s",
			a.TotalAmount.StringFixed(2), o.DiscountAmount.StringFixed(2))
	}
	o.VehicleID = a.VehicleID
	o.TotalAmount = a.TotalAmount
	o.FinalAmount = a.TotalAmount.Sub(o.DiscountAmount)
	if err := s.repo.UpdateOrder(ctx, *o); err != nil {
		return nil, err
	}
	return o, nil
}

// authorizeShop lets admins through and shop principals only for their own shop.
func authorizeShop(p auth.Principal, shopID int64, denied error) error {
	if p.IsAdmin() || p.OwnsShop(shopID) {
		return nil
	}
	return denied
}

// UpdateStatus is the shop's manual override of an appointment's status.
func (s *Service) UpdateStatus(ctx context.Context, p auth.Principal, id int64, status AppointmentStatus) (*Appointment, error) {
	if !status.Valid() {
		return nil, apperr.Validation("unknown appointment status %q", status)
	}

	var appt *Appointment
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		appt, err = s.repo.LockAppointment(ctx, id)
		if err != nil {
			return err
		}
		if err := authorizeShop(p, appt.ShopID, ErrNotShopAppointment); err != nil {
			return err
		}
		if appt.Status.Final() {
			return ErrAppointmentFinal
		}

		closing := status == AppointmentCancelled || status == AppointmentBreached
		if closing {
			if err := s.checkOrderSettled(ctx, appt.ID); err != nil {
				return err
			}
		}

		from := appt.Status
		appt.Status = status
		if status == AppointmentCancelled {
			s.cancelAppointment(appt, "cancelled by shop")
		}
		if err := s.repo.UpdateAppointment(ctx, *appt); err != nil {
			return err
		}
		var orderID *int64
		if closing {
			if orderID, err = s.cancelDefaultOrder(ctx, appt.ID); err != nil {
				return err
			}
		}
		return s.logEvent(ctx, EventAppointmentStatus, &appt.ID, orderID, map[string]any{
			"from": from,
			"to":   status,
		})
	})
	if err != nil {
		return nil, err
	}
	return appt, nil
}

// AssignBay moves an appointment to another bay of its slot.
func (s *Service) AssignBay(ctx context.Context, p auth.Principal, id int64, bay int) (*Appointment, error) {
	var appt *Appointment
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		appt, err = s.repo.LockAppointment(ctx, id)
		if err != nil {
			return err
		}
		if err := authorizeShop(p, appt.ShopID, ErrNotShopAppointment); err != nil {
			return err
		}
		if appt.Status.Final() {
			return ErrAppointmentFinal
		}

		bays, err := s.capacity(ctx, appt.ShopID)
		if err != nil {
			return err
		}
		if bay < 1 || bay > bays {
			return apperr.Validation("bay must be between 1 and %d", bays)
		}
		if bay == appt.BayNumber {
			return nil
		}
		if appt.Status.Active() {
			taken, err := s.repo.TakenBays(ctx, appt.ShopID, appt.Date, appt.TimeSlot)
			if err != nil {
				return err
			}
			for _, b := range taken {
				if b == bay {
					return ErrBayTaken
				}
			}
		}

		appt.BayNumber = bay
		if err := s.repo.UpdateAppointment(ctx, *appt); err != nil {
			return err
		}
		return s.logEvent(ctx, EventBayAssigned, &appt.ID, nil, map[string]any{"bay": bay})
	})
	if err != nil {
		return nil, err
	}
	return appt, nil
}

// GetAppointmentDetail is visible to the booking customer, the shop and admins.
func (s *Service) GetAppointmentDetail(ctx context.Context, p auth.Principal, id int64) (*AppointmentDetail, error) {
	appt, err := s.repo.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.UserID != p.UserID && !p.OwnsShop(appt.ShopID) && !p.IsAdmin() {
		return nil, ErrNotAppointmentOwner
	}

	order, err := s.repo.GetOrderByAppointment(ctx, id)
	if err != nil && !errors.Is(err, ErrOrderNotFound) {
		return nil, err
	}
	return &AppointmentDetail{Appointment: *appt, Order: order}, nil
}

func (s *Service) ListCustomerAppointments(ctx context.Context, customerID int64, status *AppointmentStatus, page db.Page) ([]Appointment, int, error) {
	if status != nil && !status.Valid() {
		return nil, 0, apperr.Validation("unknown appointment status %q", *status)
	}
	return s.repo.ListAppointments(ctx, AppointmentFilter{UserID: &customerID, Status: status}, page.Normalize())
}

func (s *Service) ListShopAppointments(ctx context.Context, shopID int64, status *AppointmentStatus, date *time.Time, page db.Page) ([]Appointment, int, error) {
	if status != nil && !status.Valid() {
		return nil, 0, apperr.Validation("unknown appointment status %q", *status)
	}
	return s.repo.ListAppointments(ctx, AppointmentFilter{ShopID: &shopID, Status: status, Date: date}, page.Normalize())
}

func (s *Service) ShopAppointmentStats(ctx context.Context, shopID int64) (*AppointmentStats, error) {
	counts, today, err := s.repo.AppointmentStatusCounts(ctx, shopID, s.today())
	if err != nil {
		return nil, err
	}
	stats := &AppointmentStats{Today: today, ByStatus: make(map[AppointmentStatus]int, len(AppointmentStatuses))}
	for _, st := range AppointmentStatuses {
		stats.ByStatus[st] = counts[st]
		stats.Total += counts[st]
	}
	return stats, nil
}

// logEvent writes to the booking event log inside the caller's transaction.
func (s *Service) logEvent(ctx context.Context, eventType string, appointmentID, orderID *int64, payload map[string]any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Warn("failed to marshal event payload", zap.String("event", eventType), zap.Error(err))
		data = nil
	}

	return s.repo.InsertEvent(ctx, EventLog{
		EventType:     eventType,
		AppointmentID: appointmentID,
		OrderID:       orderID,
		Payload:       data,
		CreatedAt:     s.now(),
	})
}
