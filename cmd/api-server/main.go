package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/car-maintenance-booking/internal/api"
	"github.com/hackgods/car-maintenance-booking/internal/auth"
	"github.com/hackgods/car-maintenance-booking/internal/booking"
	"github.com/hackgods/car-maintenance-booking/internal/catalog"
	"github.com/hackgods/car-maintenance-booking/internal/config"
	"github.com/hackgods/car-maintenance-booking/internal/db"
	"github.com/hackgods/car-maintenance-booking/internal/logging"
	"github.com/hackgods/car-maintenance-booking/internal/member"
	redisclient "github.com/hackgods/car-maintenance-booking/internal/redis"
	"github.com/hackgods/car-maintenance-booking/internal/review"
	"github.com/hackgods/car-maintenance-booking/internal/shop"
	"github.com/hackgods/car-maintenance-booking/internal/vehicle"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

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

	log.Info("api-server starting up",
		zap.String("env", cfg.Env),
		zap.String("http_port", cfg.HTTPPort),
		zap.String("version", version),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.AutoMigrate {
		if err := db.MigrateUp(cfg.PostgresDSN); err != nil {
			log.Fatal("migrations failed", zap.Error(err))
		}
		log.Info("migrations applied")
	}

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, "api-server", cfg.Loc())
	cancelPg()
	if err != nil {
		log.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()
	log.Info("connected to Postgres")

	// Connect Redis
	redisCtx, cancelRedis := context.WithTimeout(rootCtx, 5*time.Second)
	rdb, err := redisclient.Connect(redisCtx, cfg)
	cancelRedis()
	if err != nil {
		log.Fatal("redis connection error", zap.Error(err))
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Warn("error closing redis", zap.Error(err))
		}
	}()
	log.Info("connected to Redis")

	tx := db.NewTransactor(pgPool)
	locker := redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL)

	authSvc := auth.NewService(auth.NewPgRepository(pgPool), auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL), log.Named("auth"))
	shopSvc := shop.NewService(shop.NewPgRepository(pgPool), log.Named("shop"))
	vehicleSvc := vehicle.NewService(vehicle.NewPgRepository(pgPool), log.Named("vehicle"))
	catalogSvc := catalog.NewService(catalog.NewPgRepository(pgPool), tx, log.Named("catalog"))
	memberSvc := member.NewService(member.NewPgRepository(pgPool), tx, log.Named("member"))
	bookingSvc := booking.NewService(booking.NewPgRepository(pgPool), tx, locker, booking.Collaborators{
		Shops:    shopSvc,
		Vehicles: vehicleSvc,
		Catalog:  catalogSvc,
		Ledger:   memberSvc,
	}, cfg, log.Named("booking"))
	reviewSvc := review.NewService(review.NewPgRepository(pgPool), tx, bookingSvc, log.Named("review"))

	router := api.NewRouter(api.RouterConfig{
		Auth:           authSvc,
		Shops:          shopSvc,
		Vehicles:       vehicleSvc,
		Catalog:        catalogSvc,
		Booking:        bookingSvc,
		Reviews:        reviewSvc,
		Members:        memberSvc,
		Postgres:       pgPool,
		Redis:          api.RedisPinger(rdb),
		Logger:         log,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		Env:            cfg.Env,
		Version:        version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-rootCtx.Done():
	case err := <-errCh:
		if err != nil {
			log.Error("http server failed", zap.Error(err))
		}
	}

	log.Info("shutting down api-server", zap.Duration("timeout", cfg.ShutdownTimeout))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}
