package shop

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hackgods/car-maintenance-booking/internal/apperr"
	"github.com/hackgods/car-maintenance-booking/internal/auth"
	"github.com/hackgods/car-maintenance-booking/internal/db"
)

type memRepo struct {
	mu    sync.Mutex
	next  int64
	shops map[int64]*Shop
}

func newMemRepo() *memRepo {
	return &memRepo{shops: map[int64]*Shop{}}
}

func (m *memRepo) GetShopByID(_ context.Context, id int64) (*Shop, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.shops[id]
	if !ok {
		return nil, ErrShopNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memRepo) GetShopByOwner(_ context.Context, ownerID int64) (*Shop, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.shops {
		if s.OwnerID == ownerID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, ErrShopNotFound
}

func (m *memRepo) ListShops(_ context.Context, f ListFilter, page db.Page) ([]Shop, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []Shop
	for _, s := range m.shops {
		if f.Status != nil && s.Status != *f.Status {
			continue
		}
		if f.City != nil && (s.City == nil || *s.City != *f.City) {
			continue
		}
		all = append(all, *s)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	start := min(page.Offset(), len(all))
	end := min(start+page.Limit(), len(all))
	return all[start:end], len(all), nil
}

func (m *memRepo) CreateShop(_ context.Context, s Shop) (*Shop, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.shops {
		if existing.OwnerID == s.OwnerID {
			return nil, ErrShopAlreadyRegistered
		}
	}
	m.next++
	s.ID = m.next
	m.shops[s.ID] = &s
	cp := s
	return &cp, nil
}

func (m *memRepo) UpdateShop(_ context.Context, s Shop) (*Shop, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.shops[s.ID]; !ok {
		return nil, ErrShopNotFound
	}
	m.shops[s.ID] = &s
	cp := s
	return &cp, nil
}

func (m *memRepo) SetShopStatus(_ context.Context, id int64, status Status) (*Shop, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.shops[id]
	if !ok {
		return nil, ErrShopNotFound
	}
	s.Status = status
	cp := *s
	return &cp, nil
}

func strPtr(s string) *string { return &s }

func TestRegisterShopStartsPendingReview(t *testing.T) {
	svc := NewService(newMemRepo(), zap.NewNop())
	ctx := context.Background()

	s, err := svc.RegisterShop(ctx, 7, Input{Name: " Quick Lube ", City: strPtr("Austin"), Bays: 3})
	require.NoError(t, err)
	assert.Equal(t, "Quick Lube", s.Name)
	assert.Equal(t, StatusPendingReview, s.Status)
	assert.False(t, s.Open())

	_, err = svc.RegisterShop(ctx, 7, Input{Name: "Second"})
	assert.ErrorIs(t, err, ErrShopAlreadyRegistered)

	_, err = svc.RegisterShop(ctx, 8, Input{Name: ""})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestListActiveShopsFiltersStatusAndCity(t *testing.T) {
	svc := NewService(newMemRepo(), zap.NewNop())
	ctx := context.Background()

	a, _ := svc.RegisterShop(ctx, 1, Input{Name: "A", City: strPtr("Austin")})
	b, _ := svc.RegisterShop(ctx, 2, Input{Name: "B", City: strPtr("Dallas")})
	_, _ = svc.RegisterShop(ctx, 3, Input{Name: "C", City: strPtr("Austin")})

	_, err := svc.SetStatus(ctx, a.ID, StatusActive)
	require.NoError(t, err)
	_, err = svc.SetStatus(ctx, b.ID, StatusActive)
	require.NoError(t, err)

	all, total, err := svc.ListActiveShops(ctx, "", db.Page{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, all, 2)

	austin, total, err := svc.ListActiveShops(ctx, "Austin", db.Page{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, a.ID, austin[0].ID)
}

func TestUpdateShopOwnership(t *testing.T) {
	svc := NewService(newMemRepo(), zap.NewNop())
	ctx := context.Background()

	s, err := svc.RegisterShop(ctx, 1, Input{Name: "A"})
	require.NoError(t, err)

	_, err = svc.UpdateShop(ctx, auth.Principal{UserID: 2, Role: auth.RoleShop}, s.ID, Input{Name: "Hijack"})
	assert.ErrorIs(t, err, ErrNotShopOwner)

	updated, err := svc.UpdateShop(ctx, auth.Principal{UserID: 1, Role: auth.RoleShop}, s.ID, Input{Name: "A2", Bays: 4})
	require.NoError(t, err)
	assert.Equal(t, "A2", updated.Name)
	assert.Equal(t, 4, updated.Capacity(10))

	_, err = svc.UpdateShop(ctx, auth.Principal{UserID: 9, Role: auth.RoleAdmin}, s.ID, Input{Name: "A3", Bays: -1})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestSetStatusRejectsUnknown(t *testing.T) {
	svc := NewService(newMemRepo(), zap.NewNop())

	_, err := svc.SetStatus(context.Background(), 1, Status("closed"))
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = svc.SetStatus(context.Background(), 1, StatusActive)
	assert.ErrorIs(t, err, ErrShopNotFound)
}

func TestCapacityDefaults(t *testing.T) {
	assert.Equal(t, 10, (&Shop{}).Capacity(10))
	assert.Equal(t, 2, (&Shop{Bays: 2}).Capacity(10))
}
