package booking

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hackgods/car-maintenance-booking/internal/apperr"
	"github.com/hackgods/car-maintenance-booking/internal/auth"
	"github.com/hackgods/car-maintenance-booking/internal/db"
	"github.com/hackgods/car-maintenance-booking/internal/metrics"
)

type OrderInput struct {
	AppointmentID int64
	Discount      decimal.Decimal
	Method        PaymentMethod // empty means cash
	TechnicianID  *int64
}

// Completion is the result of finishing a service.
type Completion struct {
	Order      Order
	Experience int
}

// CreateOrder confirms the order of a pending appointment with its discount and
// payment method, and moves the appointment into service.
func (s *Service) CreateOrder(ctx context.Context, customerID int64, in OrderInput) (*Order, error) {
	method := in.Method
	if method == "" {
		method = MethodCash
	}
	if !method.Valid() {
		return nil, apperr.Validation("unknown payment method %q", method)
	}

	var order *Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		appt, err := s.repo.LockAppointment(ctx, in.AppointmentID)
		if err != nil {
			return err
		}
		if appt.UserID != customerID {
			return ErrNotAppointmentOwner
		}
		if appt.Status != AppointmentPending {
			return ErrAppointmentNotPending
		}

		discount := in.Discount.Round(2)
		if discount.IsNegative() || discount.GreaterThan(appt.TotalAmount) {
			return apperr.Validation("discount must be between 0 and %s", appt.TotalAmount.StringFixed(2))
		}
		final := appt.TotalAmount.Sub(discount)

		existing, err := s.repo.GetOrderByAppointment(ctx, appt.ID)
		switch {
		case err == nil:
			if !existing.isDefault() {
				return ErrOrderExists
			}
			existing.TotalAmount = appt.TotalAmount
			existing.DiscountAmount = discount
			existing.FinalAmount = final
			existing.PaymentMethod = method
			existing.TechnicianID = in.TechnicianID
			if err := s.repo.UpdateOrder(ctx, *existing); err != nil {
				return err
			}
			order = existing
		case errors.Is(err, ErrOrderNotFound):
			order, err = s.repo.CreateOrder(ctx, Order{
				OrderNo:        s.newNumber("ORD"),
				AppointmentID:  appt.ID,
				UserID:         appt.UserID,
				ShopID:         appt.ShopID,
				VehicleID:      appt.VehicleID,
				TotalAmount:    appt.TotalAmount,
				DiscountAmount: discount,
				FinalAmount:    final,
				PaymentMethod:  method,
				PaymentStatus:  PaymentUnpaid,
				TechnicianID:   in.TechnicianID,
				Status:         OrderPending,
			})
			if err != nil {
				return err
			}
		default:
			return err
		}

		appt.Status = AppointmentInProgress
		if err := s.repo.UpdateAppointment(ctx, *appt); err != nil {
			return err
		}
		return s.logEvent(ctx, EventOrderCreated, &appt.ID, &order.ID, map[string]any{
			"discount": discount.StringFixed(2),
			"final":    final.StringFixed(2),
			"method":   method,
		})
	})
	if err != nil {
		return nil, err
	}

	metrics.OrderTransition(string(OrderPending))
	s.log.Info("order created",
		zap.Int64("order_id", order.ID),
		zap.Int64("appointment_id", order.AppointmentID),
		zap.String("final", order.FinalAmount.StringFixed(2)),
	)
	return order, nil
}

// advanceAppointment moves a still-pending appointment into service.
func (s *Service) advanceAppointment(ctx context.Context, appointmentID int64) error {
	appt, err := s.repo.LockAppointment(ctx, appointmentID)
	if err != nil {
		return err
	}
	if appt.Status != AppointmentPending {
		return nil
	}
	appt.Status = AppointmentInProgress
	return s.repo.UpdateAppointment(ctx, *appt)
}

// PayOrder records the customer's payment. An order is paid at most once.
func (s *Service) PayOrder(ctx context.Context, orderID, customerID int64, method PaymentMethod) (*Order, error) {
	if !method.Valid() {
		return nil, apperr.Validation("unknown payment method %q", method)
	}

	var order *Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.repo.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if order.UserID != customerID {
			return ErrNotOrderOwner
		}
		if order.PaymentStatus == PaymentPaid {
			return ErrOrderPaid
		}
		if order.Status == OrderCompleted || order.Status == OrderCancelled {
			return ErrOrderClosed
		}

		order.PaymentMethod = method
		order.PaymentStatus = PaymentPaid
		order.Status = OrderInProgress
		if err := s.repo.UpdateOrder(ctx, *order); err != nil {
			return err
		}
		if err := s.advanceAppointment(ctx, order.AppointmentID); err != nil {
			return err
		}
		return s.logEvent(ctx, EventOrderPaid, &order.AppointmentID, &order.ID, map[string]any{
			"method": method,
			"amount": order.FinalAmount.StringFixed(2),
		})
	})
	if err != nil {
		return nil, err
	}

	metrics.OrderTransition("paid")
	s.log.Info("order paid", zap.Int64("order_id", order.ID), zap.String("method", string(method)))
	return order, nil
}

// StartService puts a pending order on a bay with its technician.
func (s *Service) StartService(ctx context.Context, p auth.Principal, orderID int64, technicianID *int64) (*Order, error) {
	var order *Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.repo.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if err := authorizeShop(p, order.ShopID, ErrNotShopOrder); err != nil {
			return err
		}
		if order.Status != OrderPending {
			return ErrOrderNotPending
		}

		now := s.now()
		order.Status = OrderInProgress
		order.StartTime = &now
		if technicianID != nil {
			order.TechnicianID = technicianID
		}
		if err := s.repo.UpdateOrder(ctx, *order); err != nil {
			return err
		}
		if err := s.advanceAppointment(ctx, order.AppointmentID); err != nil {
			return err
		}
		return s.logEvent(ctx, EventServiceStarted, &order.AppointmentID, &order.ID, map[string]any{
			"technician_id": order.TechnicianID,
		})
	})
	if err != nil {
		return nil, err
	}

	metrics.OrderTransition(string(OrderInProgress))
	return order, nil
}

// CompleteService finishes the order and its appointment and credits the
// customer's experience, all in one transaction.
func (s *Service) CompleteService(ctx context.Context, p auth.Principal, orderID int64) (*Completion, error) {
	var done Completion
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		order, err := s.repo.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if err := authorizeShop(p, order.ShopID, ErrNotShopOrder); err != nil {
			return err
		}
		if order.Status != OrderInProgress {
			return ErrOrderNotInProgress
		}
		appt, err := s.repo.LockAppointment(ctx, order.AppointmentID)
		if err != nil {
			return err
		}
		if appt.Status.Final() {
			return ErrAppointmentFinal
		}
		if !appt.Status.Active() {
			return ErrAppointmentInactive
		}

		now := s.now()
		order.Status = OrderCompleted
		order.EndTime = &now
		if err := s.repo.UpdateOrder(ctx, *order); err != nil {
			return err
		}

		appt.Status = AppointmentCompleted
		if err := s.repo.UpdateAppointment(ctx, *appt); err != nil {
			return err
		}

		points, err := s.collab.Ledger.AddExperienceForOrder(ctx, order.UserID, order.FinalAmount, order.ID)
		if err != nil {
			return err
		}

		done = Completion{Order: *order, Experience: points}
		return s.logEvent(ctx, EventServiceCompleted, &appt.ID, &order.ID, map[string]any{
			"final":      order.FinalAmount.StringFixed(2),
			"experience": points,
		})
	})
	if err != nil {
		return nil, err
	}

	metrics.OrderTransition(string(OrderCompleted))
	s.log.Info("service completed",
		zap.Int64("order_id", done.Order.ID),
		zap.Int64("user_id", done.Order.UserID),
		zap.Int("experience", done.Experience),
	)
	return &done, nil
}

// CancelOrder is the customer's cancellation of an open order and its appointment.
func (s *Service) CancelOrder(ctx context.Context, orderID, customerID int64, reason string) (*Order, error) {
	var order *Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.repo.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if order.UserID != customerID {
			return ErrNotOrderOwner
		}
		if order.Status == OrderCompleted || order.Status == OrderCancelled {
			return ErrOrderClosed
		}

		order.Status = OrderCancelled
		if err := s.repo.UpdateOrder(ctx, *order); err != nil {
			return err
		}

		appt, err := s.repo.LockAppointment(ctx, order.AppointmentID)
		if err != nil {
			return err
		}
		if !appt.Status.Final() {
			s.cancelAppointment(appt, reason)
			if err := s.repo.UpdateAppointment(ctx, *appt); err != nil {
				return err
			}
		}
		return s.logEvent(ctx, EventOrderCancelled, &appt.ID, &order.ID, map[string]any{
			"reason": reason,
			"paid":   order.PaymentStatus == PaymentPaid,
		})
	})
	if err != nil {
		return nil, err
	}

	metrics.OrderTransition(string(OrderCancelled))
	s.log.Info("order cancelled", zap.Int64("order_id", order.ID))
	return order, nil
}

func (s *Service) AssignTechnician(ctx context.Context, p auth.Principal, orderID, technicianID int64) (*Order, error) {
	var order *Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.repo.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if err := authorizeShop(p, order.ShopID, ErrNotShopOrder); err != nil {
			return err
		}
		if order.Status == OrderCompleted || order.Status == OrderCancelled {
			return ErrOrderClosed
		}

		order.TechnicianID = &technicianID
		if err := s.repo.UpdateOrder(ctx, *order); err != nil {
			return err
		}
		return s.logEvent(ctx, EventTechnicianAssigned, &order.AppointmentID, &order.ID, map[string]any{
			"technician_id": technicianID,
		})
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// UpdateOrderStatus overrides an open order's status. Completion goes through
// CompleteService so experience is always credited.
func (s *Service) UpdateOrderStatus(ctx context.Context, p auth.Principal, orderID int64, status OrderStatus) (*Order, error) {
	if !status.Valid() {
		return nil, apperr.Validation("unknown order status %q", status)
	}
	if status == OrderCompleted {
		return nil, apperr.Validation("orders are completed through the complete endpoint")
	}

	var order *Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.repo.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if err := authorizeShop(p, order.ShopID, ErrNotShopOrder); err != nil {
			return err
		}
		if order.Status == OrderCompleted || order.Status == OrderCancelled {
			return ErrOrderClosed
		}

		from := order.Status
		order.Status = status
		if status == OrderInProgress && order.StartTime == nil {
			now := s.now()
			order.StartTime = &now
		}
		if err := s.repo.UpdateOrder(ctx, *order); err != nil {
			return err
		}
		return s.logEvent(ctx, EventOrderStatus, &order.AppointmentID, &order.ID, map[string]any{
			"from": from,
			"to":   status,
		})
	})
	if err != nil {
		return nil, err
	}

	metrics.OrderTransition(string(status))
	return order, nil
}

func (s *Service) ShopOrderStats(ctx context.Context, shopID int64) (*OrderStats, error) {
	stats, err := s.repo.OrderStats(ctx, shopID, s.today())
	if err != nil {
		return nil, err
	}
	for _, st := range OrderStatuses {
		if _, ok := stats.ByStatus[st]; !ok {
			stats.ByStatus[st] = 0
		}
	}
	return stats, nil
}

// GetOrderDetail is visible to the ordering customer, the shop and admins.
func (s *Service) GetOrderDetail(ctx context.Context, p auth.Principal, id int64) (*OrderDetail, error) {
	order, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.UserID != p.UserID && !p.OwnsShop(order.ShopID) && !p.IsAdmin() {
		return nil, ErrNotOrderOwner
	}

	appt, err := s.repo.GetAppointment(ctx, order.AppointmentID)
	if err != nil {
		return nil, err
	}
	return &OrderDetail{Order: *order, Appointment: appt}, nil
}

// GetOrder loads an order without access checks. Used by other domains.
func (s *Service) GetOrder(ctx context.Context, orderID int64) (*Order, error) {
	return s.repo.GetOrder(ctx, orderID)
}

func (s *Service) ListCustomerOrders(ctx context.Context, customerID int64, status *OrderStatus, page db.Page) ([]Order, int, error) {
	if status != nil && !status.Valid() {
		return nil, 0, apperr.Validation("unknown order status %q", *status)
	}
	return s.repo.ListOrders(ctx, OrderFilter{UserID: &customerID, Status: status}, page.Normalize())
}

// OrderQuery is the admin order search. From and To are calendar days, both inclusive.
type OrderQuery struct {
	UserID *int64
	ShopID *int64
	Status *OrderStatus
	From   *time.Time
	To     *time.Time
}

// ListOrders searches orders across every shop.
func (s *Service) ListOrders(ctx context.Context, q OrderQuery, page db.Page) ([]Order, int, error) {
	if q.Status != nil && !q.Status.Valid() {
		return nil, 0, apperr.Validation("unknown order status %q", *q.Status)
	}
	f := OrderFilter{UserID: q.UserID, ShopID: q.ShopID, Status: q.Status}
	loc := s.cfg.Loc()
	if q.From != nil {
		from := time.Date(q.From.Year(), q.From.Month(), q.From.Day(), 0, 0, 0, 0, loc)
		f.CreatedFrom = &from
	}
	if q.To != nil {
		before := time.Date(q.To.Year(), q.To.Month(), q.To.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1)
		f.CreatedBefore = &before
	}
	if f.CreatedFrom != nil && f.CreatedBefore != nil && !f.CreatedFrom.Before(*f.CreatedBefore) {
		return nil, 0, apperr.Validation("start date must not be after end date")
	}
	return s.repo.ListOrders(ctx, f, page.Normalize())
}

func (s *Service) ListShopOrders(ctx context.Context, shopID int64, status *OrderStatus, page db.Page) ([]Order, int, error) {
	if status != nil && !status.Valid() {
		return nil, 0, apperr.Validation("unknown order status %q", *status)
	}
	return s.repo.ListOrders(ctx, OrderFilter{ShopID: &shopID, Status: status}, page.Normalize())
}
