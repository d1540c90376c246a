package api

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hackgods/car-maintenance-booking/internal/auth"
	"github.com/hackgods/car-maintenance-booking/internal/booking"
	"github.com/hackgods/car-maintenance-booking/internal/catalog"
	"github.com/hackgods/car-maintenance-booking/internal/db"
	"github.com/hackgods/car-maintenance-booking/internal/member"
	"github.com/hackgods/car-maintenance-booking/internal/review"
	"github.com/hackgods/car-maintenance-booking/internal/shop"
	"github.com/hackgods/car-maintenance-booking/internal/vehicle"
)

// The interfaces below are the slices of each service the HTTP layer calls.

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (auth.Principal, error)
}

type AuthService interface {
	Authenticator
	Login(ctx context.Context, username, password string) (*auth.Session, error)
	Register(ctx context.Context, in auth.RegisterInput) (*auth.User, error)
	SetUserActive(ctx context.Context, userID int64, active bool) error
	Profile(ctx context.Context, userID int64) (*auth.User, error)
	UpdateProfile(ctx context.Context, userID int64, in auth.ProfileInput) (*auth.User, error)
	ListUsers(ctx context.Context, f auth.UserFilter, page db.Page) ([]auth.User, int, error)
}

type ShopDirectory interface {
	ShopByOwner(ctx context.Context, ownerID int64) (*shop.Shop, error)
}

type ShopService interface {
	ShopDirectory
	GetShop(ctx context.Context, id int64) (*shop.Shop, error)
	ListActiveShops(ctx context.Context, city string, page db.Page) ([]shop.Shop, int, error)
	ListShops(ctx context.Context, f shop.ListFilter, page db.Page) ([]shop.Shop, int, error)
	RegisterShop(ctx context.Context, ownerID int64, in shop.Input) (*shop.Shop, error)
	UpdateShop(ctx context.Context, p auth.Principal, id int64, in shop.Input) (*shop.Shop, error)
	SetStatus(ctx context.Context, id int64, status shop.Status) (*shop.Shop, error)
}

type VehicleService interface {
	AddVehicle(ctx context.Context, ownerID int64, in vehicle.Input) (*vehicle.Vehicle, error)
	ListVehicles(ctx context.Context, ownerID int64) ([]vehicle.Vehicle, error)
	OwnedVehicle(ctx context.Context, id, ownerID int64) (*vehicle.Vehicle, error)
	UpdateVehicle(ctx context.Context, id, ownerID int64, in vehicle.Input) (*vehicle.Vehicle, error)
	DeleteVehicle(ctx context.Context, id, ownerID int64) error
}

type CatalogService interface {
	CreateItem(ctx context.Context, shopID int64, in catalog.ItemInput) (*catalog.ItemResult, error)
	UpdateItem(ctx context.Context, shopID, itemID int64, in catalog.ItemInput) (*catalog.ItemResult, error)
	DeleteItem(ctx context.Context, shopID, itemID int64) error
	ListShopItems(ctx context.Context, shopID int64, category string) ([]catalog.Item, error)
	CreatePackage(ctx context.Context, shopID int64, in catalog.PackageInput) (*catalog.Package, error)
	UpdatePackage(ctx context.Context, shopID, packageID int64, in catalog.PackageInput) (*catalog.Package, error)
	ListShopPackages(ctx context.Context, shopID int64) ([]catalog.Package, error)
	DeletePackage(ctx context.Context, shopID, packageID int64) error
	SaveGuidePrice(ctx context.Context, g catalog.GuidePrice) (*catalog.GuidePrice, error)
	DeactivateGuidePrice(ctx context.Context, id int64) error
	ListGuidePrices(ctx context.Context, category string) ([]catalog.GuidePrice, error)
	MonitorRecords(ctx context.Context, f catalog.MonitorFilter, page db.Page) ([]catalog.MonitorRecord, int, error)
	PriceStats(ctx context.Context) (*catalog.PriceStats, error)
}

type BookingService interface {
	AvailableSlots(ctx context.Context, shopID int64, date time.Time) ([]string, error)
	CheckSlotAvailable(ctx context.Context, shopID int64, date time.Time, slot string) (bool, error)

	CreateAppointment(ctx context.Context, customerID int64, in booking.AppointmentInput) (*booking.AppointmentDetail, error)
	CancelAppointment(ctx context.Context, id, customerID int64, reason string) (*booking.Appointment, error)
	UpdateAppointment(ctx context.Context, id, customerID int64, in booking.UpdateAppointmentInput) (*booking.AppointmentDetail, error)
	UpdateStatus(ctx context.Context, p auth.Principal, id int64, status booking.AppointmentStatus) (*booking.Appointment, error)
	AssignBay(ctx context.Context, p auth.Principal, id int64, bay int) (*booking.Appointment, error)
	GetAppointmentDetail(ctx context.Context, p auth.Principal, id int64) (*booking.AppointmentDetail, error)
	ListCustomerAppointments(ctx context.Context, customerID int64, status *booking.AppointmentStatus, page db.Page) ([]booking.Appointment, int, error)
	ListShopAppointments(ctx context.Context, shopID int64, status *booking.AppointmentStatus, date *time.Time, page db.Page) ([]booking.Appointment, int, error)
	ShopAppointmentStats(ctx context.Context, shopID int64) (*booking.AppointmentStats, error)

	CreateOrder(ctx context.Context, customerID int64, in booking.OrderInput) (*booking.Order, error)
	PayOrder(ctx context.Context, orderID, customerID int64, method booking.PaymentMethod) (*booking.Order, error)
	CancelOrder(ctx context.Context, orderID, customerID int64, reason string) (*booking.Order, error)
	StartService(ctx context.Context, p auth.Principal, orderID int64, technicianID *int64) (*booking.Order, error)
	CompleteService(ctx context.Context, p auth.Principal, orderID int64) (*booking.Completion, error)
	AssignTechnician(ctx context.Context, p auth.Principal, orderID, technicianID int64) (*booking.Order, error)
	UpdateOrderStatus(ctx context.Context, p auth.Principal, orderID int64, status booking.OrderStatus) (*booking.Order, error)
	GetOrderDetail(ctx context.Context, p auth.Principal, id int64) (*booking.OrderDetail, error)
	ListCustomerOrders(ctx context.Context, customerID int64, status *booking.OrderStatus, page db.Page) ([]booking.Order, int, error)
	ListShopOrders(ctx context.Context, shopID int64, status *booking.OrderStatus, page db.Page) ([]booking.Order, int, error)
	ListOrders(ctx context.Context, q booking.OrderQuery, page db.Page) ([]booking.Order, int, error)
	ShopOrderStats(ctx context.Context, shopID int64) (*booking.OrderStats, error)
}

type ReviewService interface {
	CreateReview(ctx context.Context, userID int64, in review.Input) (*review.Review, error)
	UpdateReview(ctx context.Context, userID, id int64, in review.Input) (*review.Review, error)
	DeleteReview(ctx context.Context, p auth.Principal, id int64) error
	SetVisibility(ctx context.Context, id int64, visible bool) (*review.Review, error)
	ReplyReview(ctx context.Context, p auth.Principal, id int64, reply string) (*review.Review, error)
	GetReview(ctx context.Context, p auth.Principal, id int64) (*review.Review, error)
	ShopReviews(ctx context.Context, shopID int64, page db.Page) ([]review.Review, int, error)
	UserReviews(ctx context.Context, userID int64, page db.Page) ([]review.Review, int, error)
	ShopReviewStats(ctx context.Context, shopID int64) (*review.Stats, error)
}

type MemberService interface {
	MemberInfo(ctx context.Context, userID int64) (*member.Info, error)
	ExperienceRecords(ctx context.Context, userID int64, page db.Page) ([]member.Record, int, error)
	CalculateDiscount(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error)
	AddExperience(ctx context.Context, userID int64, points int, typ member.RecordType, orderID *int64, reason string) (*member.Member, error)
	DeductExperience(ctx context.Context, userID int64, points int, reason string) (*member.Member, error)
	AdjustExperience(ctx context.Context, userID int64, delta int, reason string) (*member.Member, error)
	Reconcile(ctx context.Context, userID int64) (*member.ReconcileResult, error)
	ListLevels(ctx context.Context) ([]member.Level, error)
	SaveLevel(ctx context.Context, l member.Level) (*member.Level, error)
	DeleteLevel(ctx context.Context, id int64) error
	MemberStats(ctx context.Context) (*member.Stats, error)
}
