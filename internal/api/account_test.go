package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/car-maintenance-booking/internal/auth"
	"github.com/hackgods/car-maintenance-booking/internal/booking"
	"github.com/hackgods/car-maintenance-booking/internal/catalog"
	"github.com/hackgods/car-maintenance-booking/internal/member"
	"github.com/hackgods/car-maintenance-booking/internal/vehicle"
)

type fakeVehicles struct {
	VehicleService
	owner   int64
	updated vehicle.Input
}

func (f *fakeVehicles) OwnedVehicle(_ context.Context, id, ownerID int64) (*vehicle.Vehicle, error) {
	if ownerID != f.owner {
		return nil, vehicle.ErrNotOwner
	}
	return &vehicle.Vehicle{ID: id, OwnerID: ownerID, Brand: "Toyota", Model: "Corolla", LicensePlate: "A12345"}, nil
}

func (f *fakeVehicles) UpdateVehicle(_ context.Context, id, ownerID int64, in vehicle.Input) (*vehicle.Vehicle, error) {
	if ownerID != f.owner {
		return nil, vehicle.ErrNotOwner
	}
	f.updated = in
	return &vehicle.Vehicle{ID: id, OwnerID: ownerID, Brand: in.Brand, Model: in.Model, LicensePlate: in.LicensePlate}, nil
}

type fakeCatalog struct {
	CatalogService
	shopID    int64
	packageID int64
	input     catalog.PackageInput
}

func (f *fakeCatalog) UpdatePackage(_ context.Context, shopID, packageID int64, in catalog.PackageInput) (*catalog.Package, error) {
	f.shopID, f.packageID, f.input = shopID, packageID, in
	return &catalog.Package{ID: packageID, ShopID: shopID, Name: in.Name, Price: in.Price, Active: true}, nil
}

type fakeMembers struct {
	MemberService
	userID int64
	points int
	typ    member.RecordType
}

func (f *fakeMembers) AddExperience(_ context.Context, userID int64, points int, typ member.RecordType, _ *int64, _ string) (*member.Member, error) {
	f.userID, f.points, f.typ = userID, points, typ
	return &member.Member{UserID: userID, TotalExperience: points, AvailableExperience: points}, nil
}

func TestProfileRoutes(t *testing.T) {
	var au *fakeAuth
	srv := newTestServer(t, func(cfg *RouterConfig) { au = cfg.Auth.(*fakeAuth) })

	assert.Equal(t, http.StatusUnauthorized, srv.do(t, http.MethodGet, "/me/profile", "", nil).Code)

	rec := srv.do(t, http.MethodGet, "/me/profile", "shop", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var u UserResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &u))
	assert.Equal(t, int64(70), u.ID)

	rec = srv.do(t, http.MethodPut, "/me/profile", "customer", map[string]any{"email": "a@example.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, au.profile.Email)
	assert.Equal(t, "a@example.com", *au.profile.Email)
	assert.Nil(t, au.profile.Phone, "omitted fields are not touched")

	rec = srv.do(t, http.MethodPut, "/me/profile", "customer", map[string]any{"role": "admin"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "unknown fields are rejected")
}

func TestAdminListUsers(t *testing.T) {
	var au *fakeAuth
	srv := newTestServer(t, func(cfg *RouterConfig) { au = cfg.Auth.(*fakeAuth) })

	assert.Equal(t, http.StatusForbidden, srv.do(t, http.MethodGet, "/admin/users", "customer", nil).Code)
	assert.Equal(t, http.StatusBadRequest, srv.do(t, http.MethodGet, "/admin/users?role=root", "admin", nil).Code)
	assert.Equal(t, http.StatusBadRequest, srv.do(t, http.MethodGet, "/admin/users?active=maybe", "admin", nil).Code)

	rec := srv.do(t, http.MethodGet, "/admin/users?role=shop&active=false&keyword=garage", "admin", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, au.userFilter.Role)
	assert.Equal(t, auth.RoleShop, *au.userFilter.Role)
	require.NotNil(t, au.userFilter.Active)
	assert.False(t, *au.userFilter.Active)
	assert.Equal(t, "garage", au.userFilter.Keyword)

	var page PageResponse[UserResponse]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, "garage1", page.Items[0].Username)
}

func TestAdminListOrders(t *testing.T) {
	srv := newTestServer(t, nil)

	assert.Equal(t, http.StatusForbidden, srv.do(t, http.MethodGet, "/admin/orders", "shop", nil).Code)
	assert.Equal(t, http.StatusBadRequest, srv.do(t, http.MethodGet, "/admin/orders?start_date=yesterday", "admin", nil).Code)
	assert.Equal(t, http.StatusBadRequest, srv.do(t, http.MethodGet, "/admin/orders?user_id=x", "admin", nil).Code)

	rec := srv.do(t, http.MethodGet, "/admin/orders?shop_id=7&status=completed&start_date=2026-10-01&end_date=2026-10-19", "admin", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	q := srv.booking.orderQuery
	require.NotNil(t, q.ShopID)
	assert.Equal(t, int64(7), *q.ShopID)
	assert.Nil(t, q.UserID)
	require.NotNil(t, q.Status)
	assert.Equal(t, booking.OrderCompleted, *q.Status)
	require.NotNil(t, q.From)
	require.NotNil(t, q.To)
	assert.Equal(t, time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), *q.From)
	assert.Equal(t, time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC), *q.To)
}

func TestAdminAddExperience(t *testing.T) {
	members := &fakeMembers{}
	srv := newTestServer(t, func(cfg *RouterConfig) { cfg.Members = members })

	body := map[string]any{"points": 120, "reason": "loyalty bonus"}
	assert.Equal(t, http.StatusForbidden, srv.do(t, http.MethodPost, "/admin/members/5/add", "customer", body).Code)

	rec := srv.do(t, http.MethodPost, "/admin/members/5/add", "admin", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(5), members.userID)
	assert.Equal(t, 120, members.points)
	assert.Equal(t, member.RecordManual, members.typ)

	var resp MemberTotalsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 120, resp.TotalExperience)
}

func TestUpdatePackageRoute(t *testing.T) {
	cat := &fakeCatalog{}
	srv := newTestServer(t, func(cfg *RouterConfig) { cfg.Catalog = cat })

	body := map[string]any{"name": "Shine", "price": "27.50", "items": []map[string]any{{"item_id": 3, "quantity": 2}}}
	assert.Equal(t, http.StatusForbidden, srv.do(t, http.MethodPut, "/shop/packages/4", "customer", body).Code)

	rec := srv.do(t, http.MethodPut, "/shop/packages/4", "shop", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(7), cat.shopID)
	assert.Equal(t, int64(4), cat.packageID)
	assert.True(t, cat.input.Price.Equal(decimal.RequireFromString("27.50")))
	require.Len(t, cat.input.Items, 1)
	assert.Equal(t, catalog.PackageItemInput{ItemID: 3, Quantity: 2}, cat.input.Items[0])
}

func TestVehicleReadAndUpdate(t *testing.T) {
	vehicles := &fakeVehicles{owner: 1}
	srv := newTestServer(t, func(cfg *RouterConfig) { cfg.Vehicles = vehicles })

	rec := srv.do(t, http.MethodGet, "/vehicles/20", "customer", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var v VehicleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	assert.Equal(t, int64(20), v.ID)
	assert.Equal(t, "A12345", v.LicensePlate)

	body := map[string]any{"brand": "Toyota", "model": "Camry", "license_plate": "A12345"}
	rec = srv.do(t, http.MethodPut, "/vehicles/20", "customer", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Camry", vehicles.updated.Model)

	vehicles.owner = 2
	assert.Equal(t, http.StatusForbidden, srv.do(t, http.MethodPut, "/vehicles/20", "customer", body).Code)
}
