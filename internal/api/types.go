package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/hackgods/car-maintenance-booking/internal/auth"
	"github.com/hackgods/car-maintenance-booking/internal/booking"
	"github.com/hackgods/car-maintenance-booking/internal/catalog"
	"github.com/hackgods/car-maintenance-booking/internal/member"
	"github.com/hackgods/car-maintenance-booking/internal/review"
	"github.com/hackgods/car-maintenance-booking/internal/shop"
	"github.com/hackgods/car-maintenance-booking/internal/vehicle"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type PageResponse[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Size  int `json:"size"`
}

// auth

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    int64     `json:"user_id"`
	Role      string    `json:"role"`
}

type RegisterRequest struct {
	Username string  `json:"username"`
	Password string  `json:"password"`
	Email    *string `json:"email,omitempty"`
	Phone    *string `json:"phone,omitempty"`
	RealName *string `json:"real_name,omitempty"`
	Role     string  `json:"role"`
}

type UserResponse struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     *string   `json:"email,omitempty"`
	Phone     *string   `json:"phone,omitempty"`
	RealName  *string   `json:"real_name,omitempty"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserResponse(u *auth.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Phone:     u.Phone,
		RealName:  u.RealName,
		Role:      string(u.Role),
		Active:    u.Active,
		CreatedAt: u.CreatedAt,
	}
}

// ProfileRequest edits contact details; omitted fields are left alone.
type ProfileRequest struct {
	Email    *string `json:"email"`
	Phone    *string `json:"phone"`
	RealName *string `json:"real_name"`
}

type UserStatusRequest struct {
	Active bool `json:"active"`
}

// shops

type ShopRequest struct {
	Name          string  `json:"name"`
	Description   *string `json:"description,omitempty"`
	Address       *string `json:"address,omitempty"`
	City          *string `json:"city,omitempty"`
	Phone         *string `json:"phone,omitempty"`
	BusinessHours *string `json:"business_hours,omitempty"`
	Bays          int     `json:"bays"`
}

func (r ShopRequest) input() shop.Input {
	return shop.Input{
		Name:          r.Name,
		Description:   r.Description,
		Address:       r.Address,
		City:          r.City,
		Phone:         r.Phone,
		BusinessHours: r.BusinessHours,
		Bays:          r.Bays,
	}
}

type ShopResponse struct {
	ID            int64           `json:"id"`
	OwnerID       int64           `json:"owner_id"`
	Name          string          `json:"name"`
	Description   *string         `json:"description,omitempty"`
	Address       *string         `json:"address,omitempty"`
	City          *string         `json:"city,omitempty"`
	Phone         *string         `json:"phone,omitempty"`
	BusinessHours *string         `json:"business_hours,omitempty"`
	Bays          int             `json:"bays"`
	Status        string          `json:"status"`
	Rating        decimal.Decimal `json:"rating"`
	CreatedAt     time.Time       `json:"created_at"`
}

func toShopResponse(s shop.Shop) ShopResponse {
	return ShopResponse{
		ID:            s.ID,
		OwnerID:       s.OwnerID,
		Name:          s.Name,
		Description:   s.Description,
		Address:       s.Address,
		City:          s.City,
		Phone:         s.Phone,
		BusinessHours: s.BusinessHours,
		Bays:          s.Bays,
		Status:        string(s.Status),
		Rating:        s.Rating,
		CreatedAt:     s.CreatedAt,
	}
}

type ShopStatusRequest struct {
	Status string `json:"status"`
}

type SlotsResponse struct {
	ShopID int64    `json:"shop_id"`
	Date   string   `json:"date"`
	Slots  []string `json:"slots"`
}

type SlotCheckResponse struct {
	ShopID    int64  `json:"shop_id"`
	Date      string `json:"date"`
	TimeSlot  string `json:"time_slot"`
	Available bool   `json:"available"`
}

// vehicles

type VehicleRequest struct {
	Brand        string  `json:"brand"`
	Model        string  `json:"model"`
	LicensePlate string  `json:"license_plate"`
	Color        *string `json:"color,omitempty"`
	Year         *int    `json:"year,omitempty"`
}

func (req VehicleRequest) input() vehicle.Input {
	return vehicle.Input{
		Brand:        req.Brand,
		Model:        req.Model,
		LicensePlate: req.LicensePlate,
		Color:        req.Color,
		Year:         req.Year,
	}
}

type VehicleResponse struct {
	ID           int64     `json:"id"`
	Brand        string    `json:"brand"`
	Model        string    `json:"model"`
	LicensePlate string    `json:"license_plate"`
	Color        *string   `json:"color,omitempty"`
	Year         *int      `json:"year,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func toVehicleResponse(v vehicle.Vehicle) VehicleResponse {
	return VehicleResponse{
		ID:           v.ID,
		Brand:        v.Brand,
		Model:        v.Model,
		LicensePlate: v.LicensePlate,
		Color:        v.Color,
		Year:         v.Year,
		CreatedAt:    v.CreatedAt,
	}
}

// catalog

type ItemRequest struct {
	Name            string          `json:"name"`
	Category        *string         `json:"category,omitempty"`
	Description     *string         `json:"description,omitempty"`
	Price           decimal.Decimal `json:"price"`
	DurationMinutes int             `json:"duration_minutes"`
}

func (r ItemRequest) input() catalog.ItemInput {
	return catalog.ItemInput{
		Name:            r.Name,
		Category:        r.Category,
		Description:     r.Description,
		Price:           r.Price,
		DurationMinutes: r.DurationMinutes,
	}
}

type ItemResponse struct {
	ID              int64           `json:"id"`
	ShopID          int64           `json:"shop_id"`
	Name            string          `json:"name"`
	Category        *string         `json:"category,omitempty"`
	Description     *string         `json:"description,omitempty"`
	Price           decimal.Decimal `json:"price"`
	DurationMinutes int             `json:"duration_minutes"`
	// PriceStatus is only set on create/update, after the guide price check.
	PriceStatus string `json:"price_status,omitempty"`
}

func toItemResponse(i catalog.Item) ItemResponse {
	return ItemResponse{
		ID:              i.ID,
		ShopID:          i.ShopID,
		Name:            i.Name,
		Category:        i.Category,
		Description:     i.Description,
		Price:           i.Price,
		DurationMinutes: i.DurationMinutes,
	}
}

type PackageRequest struct {
	Name        string          `json:"name"`
	Description *string         `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Items       []struct {
		ItemID   int64 `json:"item_id"`
		Quantity int   `json:"quantity"`
	} `json:"items"`
}

func (r PackageRequest) input() catalog.PackageInput {
	in := catalog.PackageInput{Name: r.Name, Description: r.Description, Price: r.Price}
	for _, it := range r.Items {
		in.Items = append(in.Items, catalog.PackageItemInput{ItemID: it.ItemID, Quantity: it.Quantity})
	}
	return in
}

type PackageItemResponse struct {
	ItemID   int64  `json:"item_id"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

type PackageResponse struct {
	ID          int64                 `json:"id"`
	ShopID      int64                 `json:"shop_id"`
	Name        string                `json:"name"`
	Description *string               `json:"description,omitempty"`
	Price       decimal.Decimal       `json:"price"`
	Items       []PackageItemResponse `json:"items"`
}

func toPackageResponse(p catalog.Package) PackageResponse {
	return PackageResponse{
		ID:          p.ID,
		ShopID:      p.ShopID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Items: mapSlice(p.Items, func(it catalog.PackageItem) PackageItemResponse {
			return PackageItemResponse{ItemID: it.ItemID, Name: it.Name, Quantity: it.Quantity}
		}),
	}
}

type GuidePriceRequest struct {
	ID          int64           `json:"id,omitempty"`
	ServiceName string          `json:"service_name"`
	Category    *string         `json:"category,omitempty"`
	MinPrice    decimal.Decimal `json:"min_price"`
	GuidePrice  decimal.Decimal `json:"guide_price"`
	MaxPrice    decimal.Decimal `json:"max_price"`
}

type GuidePriceResponse struct {
	ID          int64           `json:"id"`
	ServiceName string          `json:"service_name"`
	Category    *string         `json:"category,omitempty"`
	MinPrice    decimal.Decimal `json:"min_price"`
	GuidePrice  decimal.Decimal `json:"guide_price"`
	MaxPrice    decimal.Decimal `json:"max_price"`
	Active      bool            `json:"active"`
}

func toGuidePriceResponse(g catalog.GuidePrice) GuidePriceResponse {
	return GuidePriceResponse{
		ID:          g.ID,
		ServiceName: g.ServiceName,
		Category:    g.Category,
		MinPrice:    g.MinPrice,
		GuidePrice:  g.GuidePrice,
		MaxPrice:    g.MaxPrice,
		Active:      g.Active,
	}
}

type MonitorRecordResponse struct {
	ID          int64           `json:"id"`
	ShopID      int64           `json:"shop_id"`
	ServiceName string          `json:"service_name"`
	ShopPrice   decimal.Decimal `json:"shop_price"`
	GuidePrice  decimal.Decimal `json:"guide_price"`
	PriceDiff   decimal.Decimal `json:"price_diff"`
	DiffRate    decimal.Decimal `json:"diff_rate"`
	Status      string          `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
}

func toMonitorRecordResponse(m catalog.MonitorRecord) MonitorRecordResponse {
	return MonitorRecordResponse{
		ID:          m.ID,
		ShopID:      m.ShopID,
		ServiceName: m.ServiceName,
		ShopPrice:   m.ShopPrice,
		GuidePrice:  m.GuidePrice,
		PriceDiff:   m.PriceDiff,
		DiffRate:    m.DiffRate,
		Status:      string(m.Status),
		CreatedAt:   m.CreatedAt,
	}
}

type PriceStatsResponse struct {
	TooHigh        int                     `json:"too_high"`
	TooLow         int                     `json:"too_low"`
	TotalAbnormal  int                     `json:"total_abnormal"`
	RecentAbnormal []MonitorRecordResponse `json:"recent_abnormal"`
}

// appointments

type LineItemRequest struct {
	ItemID    *int64          `json:"item_id,omitempty"`
	PackageID *int64          `json:"package_id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

func lineItemInputs(in []LineItemRequest) []booking.LineItemInput {
	if in == nil {
		return nil
	}
	return mapSlice(in, func(li LineItemRequest) booking.LineItemInput {
		return booking.LineItemInput{
			ItemID:    li.ItemID,
			PackageID: li.PackageID,
			Name:      li.Name,
			Price:     li.Price,
			Quantity:  li.Quantity,
		}
	})
}

type CreateAppointmentRequest struct {
	ShopID    int64             `json:"shop_id"`
	VehicleID int64             `json:"vehicle_id"`
	Date      string            `json:"date"`
	TimeSlot  string            `json:"time_slot"`
	BayNumber int               `json:"bay_number,omitempty"`
	Items     []LineItemRequest `json:"items"`
}

type UpdateAppointmentRequest struct {
	VehicleID *int64            `json:"vehicle_id,omitempty"`
	Date      *string           `json:"date,omitempty"`
	TimeSlot  *string           `json:"time_slot,omitempty"`
	Items     []LineItemRequest `json:"items,omitempty"`
}

type CancelRequest struct {
	Reason string `json:"reason"`
}

type AppointmentStatusRequest struct {
	Status string `json:"status"`
}

type BayRequest struct {
	BayNumber int `json:"bay_number"`
}

type LineItemResponse struct {
	ID        int64           `json:"id"`
	ItemID    *int64          `json:"item_id,omitempty"`
	PackageID *int64          `json:"package_id,omitempty"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type AppointmentResponse struct {
	ID            int64              `json:"id"`
	AppointmentNo string             `json:"appointment_no"`
	UserID        int64              `json:"user_id"`
	ShopID        int64              `json:"shop_id"`
	VehicleID     int64              `json:"vehicle_id"`
	Date          string             `json:"date"`
	TimeSlot      string             `json:"time_slot"`
	BayNumber     int                `json:"bay_number"`
	TotalAmount   decimal.Decimal    `json:"total_amount"`
	Status        string             `json:"status"`
	CancelReason  *string            `json:"cancel_reason,omitempty"`
	CancelTime    *time.Time         `json:"cancel_time,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	Items         []LineItemResponse `json:"items,omitempty"`
	Order         *OrderResponse     `json:"order,omitempty"`
}

func toAppointmentResponse(a booking.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:            a.ID,
		AppointmentNo: a.AppointmentNo,
		UserID:        a.UserID,
		ShopID:        a.ShopID,
		VehicleID:     a.VehicleID,
		Date:          a.Date.Format(time.DateOnly),
		TimeSlot:      a.TimeSlot,
		BayNumber:     a.BayNumber,
		TotalAmount:   a.TotalAmount,
		Status:        string(a.Status),
		CancelReason:  a.CancelReason,
		CancelTime:    a.CancelTime,
		CreatedAt:     a.CreatedAt,
		Items: mapSlice(a.Items, func(li booking.LineItem) LineItemResponse {
			return LineItemResponse{
				ID:        li.ID,
				ItemID:    li.ItemID,
				PackageID: li.PackageID,
				Name:      li.Name,
				Price:     li.Price,
				Quantity:  li.Quantity,
				Subtotal:  li.Subtotal,
			}
		}),
	}
}

func toAppointmentDetailResponse(d *booking.AppointmentDetail) AppointmentResponse {
	resp := toAppointmentResponse(d.Appointment)
	if d.Order != nil {
		o := toOrderResponse(*d.Order)
		resp.Order = &o
	}
	return resp
}

type AppointmentStatsResponse struct {
	Total    int            `json:"total"`
	Today    int            `json:"today"`
	ByStatus map[string]int `json:"by_status"`
}

// orders

type CreateOrderRequest struct {
	AppointmentID  int64           `json:"appointment_id"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	PaymentMethod  PaymentMethod   `json:"payment_method"`
	TechnicianID   *int64          `json:"technician_id,omitempty"`
}

type PayOrderRequest struct {
	PaymentMethod PaymentMethod `json:"payment_method"`
}

type StartServiceRequest struct {
	TechnicianID *int64 `json:"technician_id,omitempty"`
}

type TechnicianRequest struct {
	TechnicianID int64 `json:"technician_id"`
}

type OrderStatusRequest struct {
	Status string `json:"status"`
}

type OrderResponse struct {
	ID             int64                `json:"id"`
	OrderNo        string               `json:"order_no"`
	AppointmentID  int64                `json:"appointment_id"`
	UserID         int64                `json:"user_id"`
	ShopID         int64                `json:"shop_id"`
	VehicleID      int64                `json:"vehicle_id"`
	TotalAmount    decimal.Decimal      `json:"total_amount"`
	DiscountAmount decimal.Decimal      `json:"discount_amount"`
	FinalAmount    decimal.Decimal      `json:"final_amount"`
	PaymentMethod  string               `json:"payment_method"`
	PaymentCode    int                  `json:"payment_code"`
	PaymentStatus  string               `json:"payment_status"`
	TechnicianID   *int64               `json:"technician_id,omitempty"`
	StartTime      *time.Time           `json:"start_time,omitempty"`
	EndTime        *time.Time           `json:"end_time,omitempty"`
	Status         string               `json:"status"`
	CreatedAt      time.Time            `json:"created_at"`
	Appointment    *AppointmentResponse `json:"appointment,omitempty"`
}

func toOrderResponse(o booking.Order) OrderResponse {
	return OrderResponse{
		ID:             o.ID,
		OrderNo:        o.OrderNo,
		AppointmentID:  o.AppointmentID,
		UserID:         o.UserID,
		ShopID:         o.ShopID,
		VehicleID:      o.VehicleID,
		TotalAmount:    o.TotalAmount,
		DiscountAmount: o.DiscountAmount,
		FinalAmount:    o.FinalAmount,
		PaymentMethod:  string(o.PaymentMethod),
		PaymentCode:    o.PaymentMethod.Code(),
		PaymentStatus:  string(o.PaymentStatus),
		TechnicianID:   o.TechnicianID,
		StartTime:      o.StartTime,
		EndTime:        o.EndTime,
		Status:         string(o.Status),
		CreatedAt:      o.CreatedAt,
	}
}

type CompletionResponse struct {
	Order      OrderResponse `json:"order"`
	Experience int           `json:"experience_awarded"`
}

type OrderStatsResponse struct {
	Total        int             `json:"total"`
	Today        int             `json:"today"`
	ByStatus     map[string]int  `json:"by_status"`
	Revenue      decimal.Decimal `json:"revenue"`
	TodayRevenue decimal.Decimal `json:"today_revenue"`
}

// reviews

type ReviewRequest struct {
	OrderID           int64   `json:"order_id"`
	TechnicianRating  *int    `json:"technician_rating,omitempty"`
	ServiceRating     *int    `json:"service_rating,omitempty"`
	PriceRating       *int    `json:"price_rating,omitempty"`
	EnvironmentRating *int    `json:"environment_rating,omitempty"`
	Comment           string  `json:"comment,omitempty"`
}

func (r ReviewRequest) input() review.Input {
	return review.Input{
		OrderID: r.OrderID,
		Ratings: review.Ratings{
			Technician:  r.TechnicianRating,
			Service:     r.ServiceRating,
			Price:       r.PriceRating,
			Environment: r.EnvironmentRating,
		},
		Comment: r.Comment,
	}
}

type ReplyRequest struct {
	Reply string `json:"reply"`
}

type VisibilityRequest struct {
	Visible bool `json:"visible"`
}

type ReviewResponse struct {
	ID                int64           `json:"id"`
	OrderID           int64           `json:"order_id"`
	UserID            int64           `json:"user_id"`
	ShopID            int64           `json:"shop_id"`
	TechnicianRating  *int            `json:"technician_rating,omitempty"`
	ServiceRating     *int            `json:"service_rating,omitempty"`
	PriceRating       *int            `json:"price_rating,omitempty"`
	EnvironmentRating *int            `json:"environment_rating,omitempty"`
	OverallRating     decimal.Decimal `json:"overall_rating"`
	Comment           *string         `json:"comment,omitempty"`
	Reply             *string         `json:"reply,omitempty"`
	Visible           bool            `json:"visible"`
	CreatedAt         time.Time       `json:"created_at"`
}

func toReviewResponse(r review.Review) ReviewResponse {
	return ReviewResponse{
		ID:                r.ID,
		OrderID:           r.OrderID,
		UserID:            r.UserID,
		ShopID:            r.ShopID,
		TechnicianRating:  r.Ratings.Technician,
		ServiceRating:     r.Ratings.Service,
		PriceRating:       r.Ratings.Price,
		EnvironmentRating: r.Ratings.Environment,
		OverallRating:     r.Overall,
		Comment:           r.Comment,
		Reply:             r.Reply,
		Visible:           r.Visible,
		CreatedAt:         r.CreatedAt,
	}
}

type ReviewStatsResponse struct {
	Count        int             `json:"count"`
	Average      decimal.Decimal `json:"average"`
	Distribution map[int]int     `json:"distribution"`
}

// members

type LevelRequest struct {
	ID            int64           `json:"id,omitempty"`
	Name          string          `json:"name"`
	MinExperience int             `json:"min_experience"`
	DiscountRate  decimal.Decimal `json:"discount_rate"`
	Benefits      *string         `json:"benefits,omitempty"`
}

type LevelResponse struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	MinExperience int             `json:"min_experience"`
	DiscountRate  decimal.Decimal `json:"discount_rate"`
	Benefits      *string         `json:"benefits,omitempty"`
}

func toLevelResponse(l member.Level) LevelResponse {
	return LevelResponse{
		ID:            l.ID,
		Name:          l.Name,
		MinExperience: l.MinExperience,
		DiscountRate:  l.DiscountRate,
		Benefits:      l.Benefits,
	}
}

func levelPtr(l *member.Level) *LevelResponse {
	if l == nil {
		return nil
	}
	resp := toLevelResponse(*l)
	return &resp
}

type MemberResponse struct {
	UserID              int64          `json:"user_id"`
	TotalExperience     int            `json:"total_experience"`
	AvailableExperience int            `json:"available_experience"`
	Level               *LevelResponse `json:"level,omitempty"`
	NextLevel           *LevelResponse `json:"next_level,omitempty"`
	NeededForNext       int            `json:"needed_for_next"`
	ProgressPercent     float64        `json:"progress_percent"`
	HighestLevel        bool           `json:"highest_level"`
}

func toMemberResponse(info *member.Info) MemberResponse {
	return MemberResponse{
		UserID:              info.Member.UserID,
		TotalExperience:     info.Member.TotalExperience,
		AvailableExperience: info.Member.AvailableExperience,
		Level:               levelPtr(info.Level),
		NextLevel:           levelPtr(info.Progress.Next),
		NeededForNext:       info.Progress.Needed,
		ProgressPercent:     info.Progress.Percent,
		HighestLevel:        info.Progress.Highest,
	}
}

type MemberTotalsResponse struct {
	UserID              int64  `json:"user_id"`
	LevelID             *int64 `json:"level_id,omitempty"`
	TotalExperience     int    `json:"total_experience"`
	AvailableExperience int    `json:"available_experience"`
}

func toMemberTotals(m *member.Member) MemberTotalsResponse {
	return MemberTotalsResponse{
		UserID:              m.UserID,
		LevelID:             m.LevelID,
		TotalExperience:     m.TotalExperience,
		AvailableExperience: m.AvailableExperience,
	}
}

type ExperienceRecordResponse struct {
	ID        int64     `json:"id"`
	OrderID   *int64    `json:"order_id,omitempty"`
	Change    int       `json:"change"`
	Type      string    `json:"type"`
	Reason    *string   `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toExperienceRecordResponse(r member.Record) ExperienceRecordResponse {
	return ExperienceRecordResponse{
		ID:        r.ID,
		OrderID:   r.OrderID,
		Change:    r.Change,
		Type:      string(r.Type),
		Reason:    r.Reason,
		CreatedAt: r.CreatedAt,
	}
}

type ExperienceChangeRequest struct {
	Points int    `json:"points"`
	Reason string `json:"reason"`
}

type DiscountResponse struct {
	Amount     decimal.Decimal `json:"amount"`
	Discounted decimal.Decimal `json:"discounted"`
}

type ReconcileResponse struct {
	Member  MemberTotalsResponse `json:"member"`
	Before  int                  `json:"before"`
	Drifted bool                 `json:"drifted"`
}

type MemberStatsResponse struct {
	TotalMembers int            `json:"total_members"`
	PerLevel     map[string]int `json:"per_level"`
}
