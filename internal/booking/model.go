package booking

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type AppointmentStatus string

const (
	AppointmentPending    AppointmentStatus = "pending"
	AppointmentInProgress AppointmentStatus = "in_progress"
	AppointmentCompleted  AppointmentStatus = "completed"
	AppointmentCancelled  AppointmentStatus = "cancelled"
	AppointmentBreached   AppointmentStatus = "breached"
)

var AppointmentStatuses = []AppointmentStatus{
	AppointmentPending,
	AppointmentInProgress,
	AppointmentCompleted,
	AppointmentCancelled,
	AppointmentBreached,
}

func (s AppointmentStatus) Valid() bool {
	for _, v := range AppointmentStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Active appointments hold a bay.
func (s AppointmentStatus) Active() bool {
	return s == AppointmentPending || s == AppointmentInProgress
}

// Final appointments can no longer change.
func (s AppointmentStatus) Final() bool {
	return s == AppointmentCompleted || s == AppointmentCancelled
}

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderInProgress OrderStatus = "in_progress"
	OrderCompleted  OrderStatus = "completed"
	OrderCancelled  OrderStatus = "cancelled"
)

var OrderStatuses = []OrderStatus{OrderPending, OrderInProgress, OrderCompleted, OrderCancelled}

func (s OrderStatus) Valid() bool {
	for _, v := range OrderStatuses {
		if s == v {
			return true
		}
	}
	return false
}

type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentPaid   PaymentStatus = "paid"
)

type PaymentMethod string

const (
	MethodCash     PaymentMethod = "cash"
	MethodWeChat   PaymentMethod = "wechat"
	MethodAlipay   PaymentMethod = "alipay"
	MethodBankCard PaymentMethod = "bank_card"
)

var paymentCodes = map[PaymentMethod]int{
	MethodCash:     1,
	MethodWeChat:   2,
	MethodAlipay:   3,
	MethodBankCard: 4,
}

func (m PaymentMethod) Code() int {
	return paymentCodes[m]
}

func (m PaymentMethod) Valid() bool {
	_, ok := paymentCodes[m]
	return ok
}

// ParsePaymentMethod accepts a method name or its numeric code ("2" is wechat).
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		for m, code := range paymentCodes {
			if code == n {
				return m, nil
			}
		}
		return "", fmt.Errorf("unknown payment method code %d", n)
	}
	m := PaymentMethod(s)
	if !m.Valid() {
		return "", fmt.Errorf("unknown payment method %q", s)
	}
	return m, nil
}

// LineItem is a copy of a catalog item or package taken at booking time.
type LineItem struct {
	ID        int64
	ItemID    *int64
	PackageID *int64
	Name      string
	Price     decimal.Decimal
	Quantity  int
	Subtotal  decimal.Decimal
}

type Appointment struct {
	ID            int64
	AppointmentNo string
	UserID        int64
	ShopID        int64
	VehicleID     int64
	Date          time.Time // calendar day, UTC midnight
	TimeSlot      string
	BayNumber     int
	TotalAmount   decimal.Decimal
	Status        AppointmentStatus
	CancelReason  *string
	CancelTime    *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Items         []LineItem
}

type Order struct {
	ID             int64
	OrderNo        string
	AppointmentID  int64
	UserID         int64
	ShopID         int64
	VehicleID      int64
	TotalAmount    decimal.Decimal
	DiscountAmount decimal.Decimal
	FinalAmount    decimal.Decimal
	PaymentMethod  PaymentMethod
	PaymentStatus  PaymentStatus
	TechnicianID   *int64
	StartTime      *time.Time
	EndTime        *time.Time
	Status         OrderStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// isDefault reports whether o is still the untouched order derived at booking.
func (o *Order) isDefault() bool {
	return o.Status == OrderPending && o.PaymentStatus == PaymentUnpaid
}

type AppointmentDetail struct {
	Appointment
	Order *Order
}

type OrderDetail struct {
	Order
	Appointment *Appointment
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *int64
	OrderID       *int64
	Payload       []byte
	CreatedAt     time.Time
}

type AppointmentStats struct {
	Total    int
	Today    int
	ByStatus map[AppointmentStatus]int
}

type OrderStats struct {
	Total        int
	Today        int
	ByStatus     map[OrderStatus]int
	Revenue      decimal.Decimal
	TodayRevenue decimal.Decimal
}

// Day truncates t to its calendar day in t's location, as UTC midnight.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ParseDay(s string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("date must be YYYY-MM-DD: %w", err)
	}
	return t, nil
}

func dayString(t time.Time) string {
	return t.Format(time.DateOnly)
}
