package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/car-maintenance-booking/internal/apperr"
	"github.com/hackgods/car-maintenance-booking/internal/auth"
	"github.com/hackgods/car-maintenance-booking/internal/booking"
	"github.com/hackgods/car-maintenance-booking/internal/db"
	"github.com/hackgods/car-maintenance-booking/internal/shop"
)

// fakeAuth resolves tokens from a fixed table.
type fakeAuth struct {
	AuthService
	tokens map[string]auth.Principal

	profile    auth.ProfileInput
	userFilter auth.UserFilter
}

func (f *fakeAuth) Authenticate(_ context.Context, token string) (auth.Principal, error) {
	p, ok := f.tokens[token]
	if !ok {
		return auth.Principal{}, apperr.Unauthorized("invalid token")
	}
	return p, nil
}

func (f *fakeAuth) Profile(_ context.Context, userID int64) (*auth.User, error) {
	return &auth.User{ID: userID, Username: "alice", Role: auth.RoleCustomer, Active: true}, nil
}

func (f *fakeAuth) UpdateProfile(_ context.Context, userID int64, in auth.ProfileInput) (*auth.User, error) {
	f.profile = in
	return &auth.User{ID: userID, Username: "alice", Email: in.Email, Role: auth.RoleCustomer, Active: true}, nil
}

func (f *fakeAuth) ListUsers(_ context.Context, filter auth.UserFilter, _ db.Page) ([]auth.User, int, error) {
	f.userFilter = filter
	return []auth.User{{ID: 3, Username: "garage1", Role: auth.RoleShop}}, 1, nil
}

type fakeShops struct {
	ShopService
	byOwner map[int64]*shop.Shop
}

func (f *fakeShops) ShopByOwner(_ context.Context, ownerID int64) (*shop.Shop, error) {
	sh, ok := f.byOwner[ownerID]
	if !ok {
		return nil, shop.ErrShopNotFound
	}
	return sh, nil
}

// fakeBooking records the arguments it was called with.
type fakeBooking struct {
	BookingService

	created   booking.AppointmentInput
	createErr error

	paidMethod booking.PaymentMethod
	payErr     error

	listedShop int64
	slotsDate  time.Time
	fullSlot   string
	orderQuery booking.OrderQuery
}

func (f *fakeBooking) CreateAppointment(_ context.Context, customerID int64, in booking.AppointmentInput) (*booking.AppointmentDetail, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = in
	return &booking.AppointmentDetail{
		Appointment: booking.Appointment{
			ID:            1,
			AppointmentNo: "APT20261020090000123",
			UserID:        customerID,
			ShopID:        in.ShopID,
			VehicleID:     in.VehicleID,
			Date:          in.Date,
			TimeSlot:      in.TimeSlot,
			BayNumber:     1,
			TotalAmount:   decimal.RequireFromString("110"),
			Status:        booking.AppointmentPending,
		},
		Order: &booking.Order{
			ID:            2,
			OrderNo:       "ORD20261020090000456",
			AppointmentID: 1,
			TotalAmount:   decimal.RequireFromString("110"),
			FinalAmount:   decimal.RequireFromString("110"),
			PaymentMethod: booking.MethodCash,
			PaymentStatus: booking.PaymentUnpaid,
			Status:        booking.OrderPending,
		},
	}, nil
}

func (f *fakeBooking) PayOrder(_ context.Context, orderID, customerID int64, method booking.PaymentMethod) (*booking.Order, error) {
	if f.payErr != nil {
		return nil, f.payErr
	}
	f.paidMethod = method
	return &booking.Order{
		ID:            orderID,
		UserID:        customerID,
		PaymentMethod: method,
		PaymentStatus: booking.PaymentPaid,
		Status:        booking.OrderInProgress,
	}, nil
}

func (f *fakeBooking) ListShopAppointments(_ context.Context, shopID int64, _ *booking.AppointmentStatus, _ *time.Time, _ db.Page) ([]booking.Appointment, int, error) {
	f.listedShop = shopID
	return nil, 0, nil
}

func (f *fakeBooking) AvailableSlots(_ context.Context, _ int64, date time.Time) ([]string, error) {
	f.slotsDate = date
	return []string{"08:00-08:30", "08:30-09:00"}, nil
}

func (f *fakeBooking) CheckSlotAvailable(_ context.Context, _ int64, _ time.Time, slot string) (bool, error) {
	if err := booking.ValidSlot(slot); err != nil {
		return false, err
	}
	return slot != f.fullSlot, nil
}

func (f *fakeBooking) ListOrders(_ context.Context, q booking.OrderQuery, _ db.Page) ([]booking.Order, int, error) {
	f.orderQuery = q
	return []booking.Order{{ID: 2, ShopID: 7, Status: booking.OrderCompleted}}, 1, nil
}

type pingStub struct{ err error }

func (p pingStub) Ping(context.Context) error { return p.err }

type testServer struct {
	handler http.Handler
	booking *fakeBooking
}

func newTestServer(t *testing.T, mutate func(*RouterConfig)) *testServer {
	t.Helper()

	bk := &fakeBooking{}
	cfg := RouterConfig{
		Auth: &fakeAuth{tokens: map[string]auth.Principal{
			"customer": {UserID: 1, Role: auth.RoleCustomer},
			"shop":     {UserID: 70, Role: auth.RoleShop},
			"new-shop": {UserID: 71, Role: auth.RoleShop},
			"admin":    {UserID: 99, Role: auth.RoleAdmin},
		}},
		Shops:    &fakeShops{byOwner: map[int64]*shop.Shop{70: {ID: 7, OwnerID: 70}}},
		Booking:  bk,
		Postgres: pingStub{},
		Redis:    pingStub{},
		Env:      "test",
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return &testServer{handler: NewRouter(cfg), booking: bk}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "192.0.2.1:5555"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestWriteServiceErrorMapsKinds(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{booking.ErrAppointmentNotFound, http.StatusNotFound, "not_found"},
		{booking.ErrNotAppointmentOwner, http.StatusForbidden, "forbidden"},
		{booking.ErrAppointmentNotPending, http.StatusBadRequest, "invalid_state"},
		{booking.ErrSlotFull, http.StatusConflict, "conflict"},
		{apperr.Validation("bad date"), http.StatusBadRequest, "validation"},
		{apperr.Unauthorized("no token"), http.StatusUnauthorized, "unauthorized"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeServiceError(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)

			assert.Equal(t, tt.status, rec.Code)
			resp := decodeError(t, rec)
			assert.Equal(t, tt.code, resp.Error)
			assert.Equal(t, tt.err.Error(), resp.Details)
		})
	}
}

func TestWriteServiceErrorHidesInternalErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	writeServiceError(rec, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("pq: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "internal_error", resp.Error)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestRoleGates(t *testing.T) {
	srv := newTestServer(t, nil)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		status int
	}{
		{"anonymous booking", http.MethodPost, "/appointments", "", http.StatusUnauthorized},
		{"unknown token", http.MethodGet, "/appointments", "nope", http.StatusUnauthorized},
		{"customer on admin route", http.MethodGet, "/admin/member-stats", "customer", http.StatusForbidden},
		{"shop books appointment", http.MethodPost, "/appointments", "shop", http.StatusForbidden},
		{"shop without registered shop", http.MethodGet, "/shop/appointments", "new-shop", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := srv.do(t, tt.method, tt.path, tt.token, nil)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestMalformedAuthorizationHeader(t *testing.T) {
	srv := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/appointments", nil)
	req.Header.Set("Authorization", "Basic abc")
	rec := httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestShopPrincipalGetsShopID(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := srv.do(t, http.MethodGet, "/shop/appointments?status=pending&date=2026-10-20", "shop", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(7), srv.booking.listedShop)

	var page PageResponse[AppointmentResponse]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Empty(t, page.Items)
	assert.Equal(t, 1, page.Page)
}

func TestShopListingRejectsUnknownStatus(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := srv.do(t, http.MethodGet, "/shop/appointments?status=lost", "shop", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateAppointment(t *testing.T) {
	srv := newTestServer(t, nil)

	itemID := int64(30)
	rec := srv.do(t, http.MethodPost, "/appointments", "customer", map[string]any{
		"shop_id":    7,
		"vehicle_id": 20,
		"date":       "2026-10-20",
		"time_slot":  "09:00-09:30",
		"items": []map[string]any{
			{"name": "Wash", "price": "50", "quantity": 1},
			{"item_id": itemID, "price": 30, "quantity": 2},
		},
	})

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	in := srv.booking.created
	assert.Equal(t, int64(7), in.ShopID)
	assert.Equal(t, "2026-10-20", in.Date.Format(time.DateOnly))
	require.Len(t, in.Items, 2)
	assert.Equal(t, &itemID, in.Items[1].ItemID)
	assert.True(t, in.Items[1].Price.Equal(decimal.NewFromInt(30)))

	var resp AppointmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "2026-10-20", resp.Date)
	assert.Equal(t, "pending", resp.Status)
	require.NotNil(t, resp.Order)
	assert.Equal(t, "cash", resp.Order.PaymentMethod)
	assert.Equal(t, 1, resp.Order.PaymentCode)
	assert.Equal(t, "unpaid", resp.Order.PaymentStatus)
}

func TestCreateAppointmentRejectsBadInput(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := srv.do(t, http.MethodPost, "/appointments", "customer", map[string]any{
		"shop_id": 7, "vehicle_id": 20, "date": "20/10/2026", "time_slot": "09:00-09:30",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", decodeError(t, rec).Error)

	rec = srv.do(t, http.MethodPost, "/appointments", "customer", map[string]any{"shop": 7})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateAppointmentSlotFull(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.booking.createErr = booking.ErrSlotFull

	rec := srv.do(t, http.MethodPost, "/appointments", "customer", map[string]any{
		"shop_id": 7, "vehicle_id": 20, "date": "2026-10-20", "time_slot": "09:00-09:30",
	})

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "time slot is fully booked", decodeError(t, rec).Details)
}

func TestPayOrderAcceptsNameOrCode(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := srv.do(t, http.MethodPost, "/orders/5/pay", "customer", map[string]any{"payment_method": 2})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, booking.MethodWeChat, srv.booking.paidMethod)

	rec = srv.do(t, http.MethodPost, "/orders/5/pay", "customer", map[string]any{"payment_method": "alipay"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, booking.MethodAlipay, srv.booking.paidMethod)

	var resp OrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "paid", resp.PaymentStatus)
	assert.Equal(t, 3, resp.PaymentCode)

	rec = srv.do(t, http.MethodPost, "/orders/5/pay", "customer", map[string]any{"payment_method": 9})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(t, http.MethodPost, "/orders/5/pay", "customer", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPayOrderTwiceIsConflict(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.booking.payErr = booking.ErrOrderPaid

	rec := srv.do(t, http.MethodPost, "/orders/5/pay", "customer", map[string]any{"payment_method": "cash"})

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "order already paid", decodeError(t, rec).Details)
}

func TestInvalidPathID(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := srv.do(t, http.MethodPost, "/orders/abc/pay", "customer", map[string]any{"payment_method": "cash"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAvailableSlots(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := srv.do(t, http.MethodGet, "/shops/7/slots", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(t, http.MethodGet, "/shops/7/slots?date=2026-10-21", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SlotsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "2026-10-21", resp.Date)
	assert.Len(t, resp.Slots, 2)
	assert.Equal(t, "2026-10-21", srv.booking.slotsDate.Format(time.DateOnly))
}

func TestCheckSlot(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.booking.fullSlot = "09:00-09:30"

	rec := srv.do(t, http.MethodGet, "/shops/7/slots/check?date=2026-10-21", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = srv.do(t, http.MethodGet, "/shops/7/slots/check?date=2026-10-21&slot=19:00-19:30", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	tests := []struct {
		slot string
		want bool
	}{
		{"09:00-09:30", false},
		{"09:30-10:00", true},
	}
	for _, tt := range tests {
		rec := srv.do(t, http.MethodGet, "/shops/7/slots/check?date=2026-10-21&slot="+tt.slot, "", nil)
		require.Equal(t, http.StatusOK, rec.Code, tt.slot)

		var resp SlotCheckResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, tt.want, resp.Available, tt.slot)
		assert.Equal(t, tt.slot, resp.TimeSlot)
		assert.Equal(t, "2026-10-21", resp.Date)
	}
}

func TestRateLimit(t *testing.T) {
	srv := newTestServer(t, func(cfg *RouterConfig) {
		cfg.RateLimitRPS = 1
		cfg.RateLimitBurst = 1
	})

	first := srv.do(t, http.MethodGet, "/shops/7/slots?date=2026-10-21", "", nil)
	second := srv.do(t, http.MethodGet, "/shops/7/slots?date=2026-10-21", "", nil)

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)

	// health probes are never limited
	assert.Equal(t, http.StatusOK, srv.do(t, http.MethodGet, "/health/live", "", nil).Code)
}

func TestReadiness(t *testing.T) {
	tests := []struct {
		name     string
		postgres Pinger
		redis    Pinger
		status   int
		want     string
	}{
		{"all up", pingStub{}, pingStub{}, http.StatusOK, "ok"},
		{"redis down", pingStub{}, pingStub{err: errors.New("refused")}, http.StatusOK, "degraded"},
		{"redis disabled", pingStub{}, nil, http.StatusOK, "ok"},
		{"postgres down", pingStub{err: errors.New("refused")}, pingStub{}, http.StatusServiceUnavailable, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, func(cfg *RouterConfig) {
				cfg.Postgres = tt.postgres
				cfg.Redis = tt.redis
			})

			rec := srv.do(t, http.MethodGet, "/health/ready", "", nil)
			assert.Equal(t, tt.status, rec.Code)

			var resp ReadinessResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.want, resp.Status)
		})
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	srv := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, req)
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))

	rec = srv.do(t, http.MethodGet, "/health/live", "", nil)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
