package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/hackgods/car-maintenance-booking/internal/booking"
	"github.com/hackgods/car-maintenance-booking/internal/config"
	"github.com/hackgods/car-maintenance-booking/internal/db"
	"github.com/hackgods/car-maintenance-booking/internal/logging"
	redisclient "github.com/hackgods/car-maintenance-booking/internal/redis"
)

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

	log.Info("breach-worker starting up",
		zap.String("env", cfg.Env),
		zap.String("schedule", cfg.BreachSweepSpec),
		zap.String("timezone", cfg.Loc().String()),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, "breach-worker", cfg.Loc())
	cancelPg()
	if err != nil {
		log.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()
	log.Info("connected to Postgres")

	// The sweep only reads and writes appointments and orders, so it needs
	// neither the slot lock nor the other domains.
	svc := booking.NewService(
		booking.NewPgRepository(pgPool),
		db.NewTransactor(pgPool),
		redisclient.NewLocalLocker(),
		booking.Collaborators{},
		cfg,
		log.Named("booking"),
	)

	cronLog := cronLogger{log.Named("cron").Sugar()}
	scheduler := cron.New(
		cron.WithLocation(cfg.Loc()),
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)

	if _, err := scheduler.AddFunc(cfg.BreachSweepSpec, func() { runOnce(rootCtx, svc, cfg, log) }); err != nil {
		log.Fatal("invalid BREACH_SWEEP_SPEC", zap.String("spec", cfg.BreachSweepSpec), zap.Error(err))
	}

	// Run once at startup
	runOnce(rootCtx, svc, cfg, log)

	scheduler.Start()
	<-rootCtx.Done()

	log.Info("shutdown signal received, stopping breach worker")
	<-scheduler.Stop().Done()
}

func runOnce(ctx context.Context, svc *booking.Service, cfg config.Config, log *zap.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	start := time.Now()
	marked, err := svc.MarkBreached(runCtx, time.Now().In(cfg.Loc()))
	if err != nil {
		log.Error("breach sweep failed", zap.Error(err))
		return
	}
	log.Info("breach sweep complete", zap.Int("breached", marked), zap.Duration("took", time.Since(start)))
}

// cronLogger routes robfig/cron's logging through zap.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
