package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hackgods/car-maintenance-booking/internal/auth"
	"github.com/hackgods/car-maintenance-booking/internal/metrics"
)

type RouterConfig struct {
	Auth     AuthService
	Shops    ShopService
	Vehicles VehicleService
	Catalog  CatalogService
	Booking  BookingService
	Reviews  ReviewService
	Members  MemberService

	Postgres Pinger
	Redis    Pinger
	Logger   *zap.Logger

	RateLimitRPS   float64
	RateLimitBurst int

	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(log))
	r.Use(middleware.Recoverer)
	r.Use(metrics.InstrumentHandler)

	health := NewHealthHandler(cfg.Postgres, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(RateLimitMiddleware(cfg.RateLimitRPS, cfg.RateLimitBurst))
		r.Use(AuthMiddleware(cfg.Auth, cfg.Shops))

		// anonymous
		r.Post("/auth/login", loginHandler(cfg.Auth))
		r.Post("/auth/register", registerHandler(cfg.Auth))
		r.Get("/shops", listShopsHandler(cfg.Shops))
		r.Get("/shops/{id}", getShopHandler(cfg.Shops))
		r.Get("/shops/{id}/slots", availableSlotsHandler(cfg.Booking))
		r.Get("/shops/{id}/slots/check", checkSlotHandler(cfg.Booking))
		r.Get("/shops/{id}/items", shopItemsHandler(cfg.Catalog))
		r.Get("/shops/{id}/packages", shopPackagesHandler(cfg.Catalog))
		r.Get("/shops/{id}/reviews", shopReviewsHandler(cfg.Reviews))
		r.Get("/shops/{id}/reviews/stats", shopReviewStatsHandler(cfg.Reviews))
		r.Get("/member-levels", listLevelsHandler(cfg.Members))

		// any signed-in user; the services scope what each role sees
		r.Group(func(r chi.Router) {
			r.Use(RequireRole(auth.RoleCustomer, auth.RoleShop, auth.RoleAdmin))
			r.Get("/appointments/{id}", getAppointmentHandler(cfg.Booking))
			r.Get("/orders/{id}", getOrderHandler(cfg.Booking))
			r.Get("/reviews/{id}", getReviewHandler(cfg.Reviews))
			r.Get("/me/profile", profileHandler(cfg.Auth))
			r.Put("/me/profile", updateProfileHandler(cfg.Auth))
		})

		r.Group(func(r chi.Router) {
			r.Use(RequireRole(auth.RoleCustomer))

			r.Post("/vehicles", addVehicleHandler(cfg.Vehicles))
			r.Get("/vehicles", listVehiclesHandler(cfg.Vehicles))
			r.Get("/vehicles/{id}", getVehicleHandler(cfg.Vehicles))
			r.Put("/vehicles/{id}", updateVehicleHandler(cfg.Vehicles))
			r.Delete("/vehicles/{id}", deleteVehicleHandler(cfg.Vehicles))

			r.Post("/appointments", createAppointmentHandler(cfg.Booking))
			r.Get("/appointments", listMyAppointmentsHandler(cfg.Booking))
			r.Put("/appointments/{id}", updateAppointmentHandler(cfg.Booking))
			r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Booking))

			r.Post("/orders", createOrderHandler(cfg.Booking))
			r.Get("/orders", listMyOrdersHandler(cfg.Booking))
			r.Post("/orders/{id}/pay", payOrderHandler(cfg.Booking))
			r.Post("/orders/{id}/cancel", cancelOrderHandler(cfg.Booking))

			r.Post("/reviews", createReviewHandler(cfg.Reviews))
			r.Put("/reviews/{id}", updateReviewHandler(cfg.Reviews))
			r.Get("/me/reviews", myReviewsHandler(cfg.Reviews))

			r.Get("/me/member", myMemberHandler(cfg.Members))
			r.Get("/me/experience", myExperienceHandler(cfg.Members))
			r.Get("/me/discount", myDiscountHandler(cfg.Members))
		})

		// authors delete their own reviews, admins moderate
		r.With(RequireRole(auth.RoleCustomer, auth.RoleAdmin)).
			Delete("/reviews/{id}", deleteReviewHandler(cfg.Reviews))

		r.Route("/shop", func(r chi.Router) {
			r.With(RequireRole(auth.RoleShop)).Post("/register", registerShopHandler(cfg.Shops))

			r.Group(func(r chi.Router) {
				r.Use(RequireShop)

				r.Get("/", myShopHandler(cfg.Shops))
				r.Put("/", updateMyShopHandler(cfg.Shops))

				r.Get("/appointments", shopAppointmentsHandler(cfg.Booking))
				r.Get("/appointments/stats", shopAppointmentStatsHandler(cfg.Booking))
				r.Put("/appointments/{id}/status", appointmentStatusHandler(cfg.Booking))
				r.Put("/appointments/{id}/bay", assignBayHandler(cfg.Booking))

				r.Get("/orders", shopOrdersHandler(cfg.Booking))
				r.Get("/orders/stats", shopOrderStatsHandler(cfg.Booking))
				r.Post("/orders/{id}/start", startServiceHandler(cfg.Booking))
				r.Post("/orders/{id}/complete", completeServiceHandler(cfg.Booking))
				r.Put("/orders/{id}/technician", assignTechnicianHandler(cfg.Booking))

				r.Post("/items", createItemHandler(cfg.Catalog))
				r.Put("/items/{id}", updateItemHandler(cfg.Catalog))
				r.Delete("/items/{id}", deleteItemHandler(cfg.Catalog))
				r.Post("/packages", createPackageHandler(cfg.Catalog))
				r.Put("/packages/{id}", updatePackageHandler(cfg.Catalog))
				r.Delete("/packages/{id}", deletePackageHandler(cfg.Catalog))

				r.Post("/reviews/{id}/reply", replyReviewHandler(cfg.Reviews))
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(RequireRole(auth.RoleAdmin))

			r.Get("/users", listUsersHandler(cfg.Auth))
			r.Put("/users/{id}/status", userStatusHandler(cfg.Auth))

			r.Get("/shops", adminListShopsHandler(cfg.Shops))
			r.Put("/shops/{id}/status", shopStatusHandler(cfg.Shops))

			r.Post("/guide-prices", saveGuidePriceHandler(cfg.Catalog))
			r.Get("/guide-prices", listGuidePricesHandler(cfg.Catalog))
			r.Delete("/guide-prices/{id}", deactivateGuidePriceHandler(cfg.Catalog))
			r.Get("/price-monitor", priceMonitorHandler(cfg.Catalog))
			r.Get("/price-monitor/stats", priceStatsHandler(cfg.Catalog))

			r.Put("/reviews/{id}/visibility", reviewVisibilityHandler(cfg.Reviews))

			r.Post("/members/{userID}/add", addExperienceHandler(cfg.Members))
			r.Post("/members/{userID}/deduct", deductExperienceHandler(cfg.Members))
			r.Post("/members/{userID}/adjust", adjustExperienceHandler(cfg.Members))
			r.Post("/members/{userID}/reconcile", reconcileMemberHandler(cfg.Members))
			r.Post("/member-levels", saveLevelHandler(cfg.Members))
			r.Delete("/member-levels/{id}", deleteLevelHandler(cfg.Members))
			r.Get("/member-stats", memberStatsHandler(cfg.Members))

			r.Get("/orders", adminOrdersHandler(cfg.Booking))
			r.Put("/orders/{id}/status", orderStatusHandler(cfg.Booking))
			// admins may drive the shop-side lifecycle of any shop
			r.Put("/appointments/{id}/status", appointmentStatusHandler(cfg.Booking))
			r.Put("/appointments/{id}/bay", assignBayHandler(cfg.Booking))
			r.Post("/orders/{id}/start", startServiceHandler(cfg.Booking))
			r.Post("/orders/{id}/complete", completeServiceHandler(cfg.Booking))
		})
	})

	return r
}
