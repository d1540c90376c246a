package main

import (
	"context"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hackgods/car-maintenance-booking/internal/auth"
	"github.com/hackgods/car-maintenance-booking/internal/config"
	"github.com/hackgods/car-maintenance-booking/internal/db"
	"github.com/hackgods/car-maintenance-booking/internal/logging"
)

const (
	shopCount           = 20
	customerCount       = 500
	seedPassword        = "password123"
	itemsPerShop        = 6
	vehiclesPerCustomer = 2
)

// serviceCatalog is the menu every seeded shop draws its items from.
var serviceCatalog = []struct {
	name     string
	category string
	guide    float64
	minutes  int
}{
	{"Oil change", "maintenance", 80, 30},
	{"Tire rotation", "tires", 60, 30},
	{"Brake pad replacement", "brakes", 300, 90},
	{"Car wash", "cleaning", 40, 30},
	{"Interior detailing", "cleaning", 200, 120},
	{"Battery replacement", "electrical", 450, 30},
	{"Wheel alignment", "tires", 150, 60},
	{"Air filter replacement", "maintenance", 70, 30},
	{"AC recharge", "climate", 250, 60},
}

var cities = []string{"Shanghai", "Beijing", "Shenzhen", "Hangzhou", "Chengdu"}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("config load error: " + err.Error())
	}
	log, err := logging.New(cfg.Env)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, "seed", cfg.Loc())
	if err != nil {
		log.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	// one hash shared by every seeded account
	hash, err := auth.HashPassword(seedPassword)
	if err != nil {
		log.Fatal("hash password", zap.Error(err))
	}

	s := seeder{pool: pool, hash: hash, log: log}

	if err := s.seedGuidePrices(ctx); err != nil {
		log.Fatal("seed guide prices", zap.Error(err))
	}
	if _, err := s.createUser(ctx, "admin", auth.RoleAdmin); err != nil {
		log.Fatal("seed admin", zap.Error(err))
	}
	if err := s.seedShops(ctx, shopCount); err != nil {
		log.Fatal("seed shops", zap.Error(err))
	}
	if err := s.seedCustomers(ctx, customerCount); err != nil {
		log.Fatal("seed customers", zap.Error(err))
	}

	log.Info("seed complete",
		zap.String("admin", "admin"),
		zap.String("shop_owner_example", "shop01"),
		zap.String("customer_example", "customer0001"),
		zap.String("password", seedPassword),
	)
}

type seeder struct {
	pool *pgxpool.Pool
	hash string
	log  *zap.Logger
}

func (s seeder) createUser(ctx context.Context, username string, role auth.Role) (int64, error) {
	return insertUser(ctx, s.pool, username, s.hash, role)
}

type execQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertUser(ctx context.Context, q execQuerier, username, hash string, role auth.Role) (int64, error) {
	var id int64
	err := q.QueryRow(ctx, `
		INSERT INTO users (username, password_hash, email, phone, role, real_name)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (username) DO UPDATE SET updated_at = now()
		RETURNING id
	`, username, hash, gofakeit.Email(), gofakeit.Phone(), string(role), gofakeit.Name()).Scan(&id)
	return id, err
}

func (s seeder) seedGuidePrices(ctx context.Context) error {
	for _, svc := range serviceCatalog {
		guide := decimal.NewFromFloat(svc.guide)
		_, err := s.pool.Exec(ctx, `
			INSERT INTO platform_guide_prices (service_name, category, min_price, guide_price, max_price)
			SELECT $1, $2, $3, $4, $5
			WHERE NOT EXISTS (SELECT 1 FROM platform_guide_prices WHERE service_name = $1 AND active)
		`, svc.name, svc.category,
			guide.Mul(decimal.RequireFromString("0.7")).Round(2),
			guide,
			guide.Mul(decimal.RequireFromString("1.3")).Round(2),
		)
		if err != nil {
			return err
		}
	}
	s.log.Info("guide prices seeded", zap.Int("count", len(serviceCatalog)))
	return nil
}

func (s seeder) seedShops(ctx context.Context, count int) error {
	s.log.Info("seeding shops", zap.Int("count", count))

	for i := 1; i <= count; i++ {
		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return err
		}

		ownerID, err := insertUser(ctx, tx, fmt.Sprintf("shop%02d", i), s.hash, auth.RoleShop)
		if err != nil {
			_ = tx.Rollback(ctx)
			return err
		}

		var shopID int64
		err = tx.QueryRow(ctx, `
			INSERT INTO shops (owner_id, name, description, address, city, phone, business_hours, bays, status)
			VALUES ($1, $2, $3, $4, $5, $6, '08:00-18:00', $7, 'active')
			ON CONFLICT (owner_id) DO UPDATE SET updated_at = now()
			RETURNING id
		`, ownerID,
			gofakeit.Company()+" Auto Care",
			gofakeit.Phrase(),
			gofakeit.Street(),
			cities[gofakeit.Number(0, len(cities)-1)],
			gofakeit.Phone(),
			gofakeit.Number(2, 6),
		).Scan(&shopID)
		if err != nil {
			_ = tx.Rollback(ctx)
			return err
		}

		menu := make([]int, len(serviceCatalog))
		for j := range menu {
			menu[j] = j
		}
		gofakeit.ShuffleInts(menu)

		for _, idx := range menu[:itemsPerShop] {
			svc := serviceCatalog[idx]
			// shops price around the guide, a few land outside the band
			factor := gofakeit.Float64Range(0.6, 1.4)
			price := decimal.NewFromFloat(svc.guide * factor).Round(2)
			_, err := tx.Exec(ctx, `
				INSERT INTO service_items (shop_id, name, category, price, duration_minutes)
				VALUES ($1, $2, $3, $4, $5)
			`, shopID, svc.name, svc.category, price, svc.minutes)
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}
	}

	s.log.Info("shops seeded")
	return nil
}

func (s seeder) seedCustomers(ctx context.Context, count int) error {
	s.log.Info("seeding customers", zap.Int("count", count))

	const batchSize = 100

	for offset := 0; offset < count; offset += batchSize {
		end := min(offset+batchSize, count)

		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			userID, err := insertUser(ctx, tx, fmt.Sprintf("customer%04d", i+1), s.hash, auth.RoleCustomer)
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}

			for v := 0; v < vehiclesPerCustomer; v++ {
				car := gofakeit.Car()
				_, err := tx.Exec(ctx, `
					INSERT INTO vehicles (owner_id, brand, model, license_plate, color, year)
					VALUES ($1, $2, $3, $4, $5, $6)
				`, userID, car.Brand, car.Model,
					gofakeit.Regex(`[A-Z]{2}[0-9]{5}`),
					gofakeit.Color(),
					car.Year,
				)
				if err != nil {
					_ = tx.Rollback(ctx)
					return err
				}
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}
		s.log.Info("customers seeded", zap.Int("done", end), zap.Int("total", count))
	}

	return nil
}
