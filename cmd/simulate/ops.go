package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/car-maintenance-booking/internal/booking"
)

// login fetches a bearer token for every loaded customer.
func (s *Simulator) login(ctx context.Context) error {
	for _, c := range s.pool.Customers {
		var resp struct {
			Token string `json:"token"`
		}
		status, err := s.call(ctx, http.MethodPost, "/auth/login", "", map[string]string{
			"username": c.Username,
			"password": s.config.Password,
		}, &resp)
		if err != nil {
			return err
		}
		if status == http.StatusTooManyRequests {
			return fmt.Errorf("login %s: rate limited, start the api-server with RATE_LIMIT_RPS=0", c.Username)
		}
		if status != http.StatusOK {
			return fmt.Errorf("login %s: status %d", c.Username, status)
		}
		c.Token = resp.Token
	}
	return nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.log.Info("starting simulation", zap.Duration("duration", s.config.Duration), zap.Int("workers", s.config.Workers))

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.log.Info("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), uint64(workerID)))

	for ctx.Err() == nil {
		r := rng.Float64()
		switch {
		case r < s.config.BookingRatio:
			s.doBooking(ctx, rng)
		case r < s.config.BookingRatio+s.config.PayRatio:
			s.doPay(ctx, rng)
		case r < s.config.BookingRatio+s.config.PayRatio+s.config.CancelRatio:
			s.doCancel(ctx, rng)
		default:
			if rng.IntN(2) == 0 {
				s.doSlots(ctx, rng)
			} else {
				s.doList(ctx, rng)
			}
		}
	}
}

// call sends a JSON request and decodes a JSON response into out when out is non-nil.
func (s *Simulator) call(ctx context.Context, method, path, token string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	} else {
		_, _ = io.Copy(io.Discard, resp.Body)
	}
	return resp.StatusCode, nil
}

func (s *Simulator) randomDay(rng *rand.Rand) string {
	// tomorrow to a week out, so every booking stays inside the window
	return time.Now().AddDate(0, 0, 1+rng.IntN(7)).Format(time.DateOnly)
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	c := s.pool.Customers[rng.IntN(len(s.pool.Customers))]
	shopID := s.pool.Shops[rng.IntN(len(s.pool.Shops))]
	items := s.pool.Items[shopID]
	it := items[rng.IntN(len(items))]
	slots := booking.TimeSlots()

	// a narrow slot range keeps contention high
	body := map[string]any{
		"shop_id":    shopID,
		"vehicle_id": c.VehicleID,
		"date":       s.randomDay(rng),
		"time_slot":  slots[rng.IntN(4)],
		"items":      []map[string]any{{"item_id": it.ID, "price": it.Price, "quantity": 1}},
	}

	var resp struct {
		ID    int64 `json:"id"`
		Order *struct {
			ID int64 `json:"id"`
		} `json:"order"`
	}

	start := time.Now()
	status, err := s.call(ctx, http.MethodPost, "/appointments", c.Token, body, &resp)
	latency := time.Since(start)
	if ctx.Err() != nil {
		return
	}

	success := err == nil && status == http.StatusCreated
	if success && resp.Order != nil {
		s.pool.AddBooking(placed{Customer: c, AppointmentID: resp.ID, OrderID: resp.Order.ID})
	}
	s.metrics.Booking.Record(latency, success, status == http.StatusConflict)
}

func (s *Simulator) doPay(ctx context.Context, rng *rand.Rand) {
	b, ok := s.pool.TakeBooking(rng.IntN)
	if !ok {
		return
	}

	start := time.Now()
	status, err := s.call(ctx, http.MethodPost, fmt.Sprintf("/orders/%d/pay", b.OrderID), b.Customer.Token,
		map[string]any{"payment_method": 1 + rng.IntN(4)}, nil)
	latency := time.Since(start)
	if ctx.Err() != nil {
		return
	}

	s.metrics.Pay.Record(latency, err == nil && status == http.StatusOK, status == http.StatusConflict)
}

func (s *Simulator) doCancel(ctx context.Context, rng *rand.Rand) {
	b, ok := s.pool.TakeBooking(rng.IntN)
	if !ok {
		return
	}

	start := time.Now()
	status, err := s.call(ctx, http.MethodPost, fmt.Sprintf("/appointments/%d/cancel", b.AppointmentID), b.Customer.Token,
		map[string]string{"reason": "simulated change of plans"}, nil)
	latency := time.Since(start)
	if ctx.Err() != nil {
		return
	}

	s.metrics.Cancel.Record(latency, err == nil && status == http.StatusOK, status == http.StatusBadRequest)
}

func (s *Simulator) doSlots(ctx context.Context, rng *rand.Rand) {
	shopID := s.pool.Shops[rng.IntN(len(s.pool.Shops))]

	start := time.Now()
	status, err := s.call(ctx, http.MethodGet, fmt.Sprintf("/shops/%d/slots?date=%s", shopID, s.randomDay(rng)), "", nil, nil)
	latency := time.Since(start)
	if ctx.Err() != nil {
		return
	}

	s.metrics.Slots.Record(latency, err == nil && status == http.StatusOK, false)
}

func (s *Simulator) doList(ctx context.Context, rng *rand.Rand) {
	c := s.pool.Customers[rng.IntN(len(s.pool.Customers))]

	start := time.Now()
	status, err := s.call(ctx, http.MethodGet, "/appointments?size=20", c.Token, nil, nil)
	latency := time.Since(start)
	if ctx.Err() != nil {
		return
	}

	s.metrics.List.Record(latency, err == nil && status == http.StatusOK, false)
}
