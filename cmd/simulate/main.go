package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hackgods/car-maintenance-booking/internal/config"
	"github.com/hackgods/car-maintenance-booking/internal/db"
	"github.com/hackgods/car-maintenance-booking/internal/logging"
)

type SimConfig struct {
	APIBaseURL    string
	Duration      time.Duration
	Workers       int
	BookingRatio  float64
	PayRatio      float64
	CancelRatio   float64
	ReadRatio     float64
	CustomerLimit int
	Password      string
	PostgresDSN   string
}

type customer struct {
	Username  string
	VehicleID int64
	Token     string
}

type shopItem struct {
	ID    int64
	Price string
}

type DataPool struct {
	Customers []*customer
	Shops     []int64
	Items     map[int64][]shopItem // by shop

	mu       sync.Mutex
	bookings []placed // appointments created during the run
}

type placed struct {
	Customer      *customer
	AppointmentID int64
	OrderID       int64
}

func (dp *DataPool) AddBooking(b placed) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.bookings = append(dp.bookings, b)
}

// TakeBooking removes and returns a random booking so two workers never act on the same one.
func (dp *DataPool) TakeBooking(pick func(n int) int) (placed, bool) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	if len(dp.bookings) == 0 {
		return placed{}, false
	}
	i := pick(len(dp.bookings))
	b := dp.bookings[i]
	dp.bookings[i] = dp.bookings[len(dp.bookings)-1]
	dp.bookings = dp.bookings[:len(dp.bookings)-1]
	return b, true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, p50, p95, max time.Duration) {
	om.mu.Lock()
	latencies := append([]time.Duration(nil), om.Latencies...)
	om.mu.Unlock()

	if len(latencies) == 0 {
		return 0, 0, 0, 0
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	at := func(pct int) time.Duration {
		return latencies[min(len(latencies)*pct/100, len(latencies)-1)]
	}
	return sum / time.Duration(len(latencies)), at(50), at(95), latencies[len(latencies)-1]
}

type Metrics struct {
	Booking OperationMetrics
	Pay     OperationMetrics
	Cancel  OperationMetrics
	Slots   OperationMetrics
	List    OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	log     *zap.Logger
	metrics Metrics
}

func main() {
	baseCfg, err := config.Load()
	if err != nil {
		panic("config load error: " + err.Error())
	}
	log, err := logging.New(baseCfg.Env)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	cfg := loadConfig(baseCfg)
	if err := validateConfig(cfg); err != nil {
		log.Fatal("invalid config", zap.Error(err))
	}

	log.Info("simulator starting",
		zap.Duration("duration", cfg.Duration),
		zap.Int("workers", cfg.Workers),
		zap.Float64("booking", cfg.BookingRatio),
		zap.Float64("pay", cfg.PayRatio),
		zap.Float64("cancel", cfg.CancelRatio),
		zap.Float64("read", cfg.ReadRatio),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, "simulate", baseCfg.Loc())
	if err != nil {
		log.Fatal("connect postgres", zap.Error(err))
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		log.Fatal("load data pool", zap.Error(err))
	}

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}

	if err := sim.login(ctx); err != nil {
		log.Fatal("login customers", zap.Error(err))
	}
	log.Info("data loaded", zap.Int("customers", len(dataPool.Customers)), zap.Int("shops", len(dataPool.Shops)))

	sim.Run()
	sim.PrintReport()

	overbooked, err := countOverbooked(ctx, pgPool)
	if err != nil {
		log.Fatal("capacity check", zap.Error(err))
	}
	if overbooked > 0 {
		log.Error("capacity invariant violated", zap.Int("overbooked_slots", overbooked))
		os.Exit(1)
	}
	log.Info("capacity invariant holds: no slot has more active appointments than bays")
}

func loadConfig(base config.Config) SimConfig {
	cfg := SimConfig{
		APIBaseURL:    getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:      getDuration("SIM_DURATION", 30*time.Second),
		Workers:       getInt("SIM_WORKERS", 10),
		BookingRatio:  getFloat("SIM_BOOKING_RATIO", 0.5),
		PayRatio:      getFloat("SIM_PAY_RATIO", 0.15),
		CancelRatio:   getFloat("SIM_CANCEL_RATIO", 0.05),
		ReadRatio:     getFloat("SIM_READ_RATIO", 0.3),
		CustomerLimit: getInt("SIM_CUSTOMER_LIMIT", 200),
		Password:      getEnv("SIM_PASSWORD", "password123"),
		PostgresDSN:   base.PostgresDSN,
	}

	// Normalize ratios
	total := cfg.BookingRatio + cfg.PayRatio + cfg.CancelRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.PayRatio /= total
		cfg.CancelRatio /= total
		cfg.ReadRatio /= total
	}
	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.CustomerLimit <= 0 {
		return fmt.Errorf("SIM_CUSTOMER_LIMIT must be > 0")
	}
	return nil
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dataPool := &DataPool{Items: make(map[int64][]shopItem)}

	rows, err := pool.Query(ctx, `
		SELECT u.username, min(v.id)
		FROM users u JOIN vehicles v ON v.owner_id = u.id AND NOT v.deleted
		WHERE u.role = 'customer' AND u.active
		GROUP BY u.username
		ORDER BY u.username
		LIMIT $1
	`, cfg.CustomerLimit)
	if err != nil {
		return nil, fmt.Errorf("load customers: %w", err)
	}
	for rows.Next() {
		c := &customer{}
		if err := rows.Scan(&c.Username, &c.VehicleID); err != nil {
			rows.Close()
			return nil, err
		}
		dataPool.Customers = append(dataPool.Customers, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = pool.Query(ctx, `
		SELECT s.id, i.id, i.price::text
		FROM shops s JOIN service_items i ON i.shop_id = s.id AND i.active
		WHERE s.status = 'active'
	`)
	if err != nil {
		return nil, fmt.Errorf("load shops: %w", err)
	}
	for rows.Next() {
		var shopID int64
		var it shopItem
		if err := rows.Scan(&shopID, &it.ID, &it.Price); err != nil {
			rows.Close()
			return nil, err
		}
		if _, seen := dataPool.Items[shopID]; !seen {
			dataPool.Shops = append(dataPool.Shops, shopID)
		}
		dataPool.Items[shopID] = append(dataPool.Items[shopID], it)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(dataPool.Customers) == 0 {
		return nil, fmt.Errorf("no customers loaded, run cmd/seed first")
	}
	if len(dataPool.Shops) == 0 {
		return nil, fmt.Errorf("no active shops loaded, run cmd/seed first")
	}
	return dataPool, nil
}

// countOverbooked returns how many (shop, date, slot) groups hold more active
// appointments than the shop has bays. Shops without a bay count get 10.
func countOverbooked(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	var n int
	err := pool.QueryRow(ctx, `
		SELECT count(*) FROM (
			SELECT a.shop_id
			FROM appointments a JOIN shops s ON s.id = a.shop_id
			WHERE a.status IN ('pending', 'in_progress')
			GROUP BY a.shop_id, a.appointment_date, a.time_slot, s.bays
			HAVING count(*) > CASE WHEN s.bays > 0 THEN s.bays ELSE 10 END
		) over_capacity
	`).Scan(&n)
	return n, err
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Book appointment", &s.metrics.Booking)
	printOperationReport("Pay order", &s.metrics.Pay)
	printOperationReport("Cancel appointment", &s.metrics.Cancel)
	printOperationReport("Available slots", &s.metrics.Slots)
	printOperationReport("List my appointments", &s.metrics.List)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)
	avg, p50, p95, max := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s p50=%s p95=%s max=%s\n",
		avg.Round(time.Millisecond), p50.Round(time.Millisecond),
		p95.Round(time.Millisecond), max.Round(time.Millisecond))
	fmt.Println()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
