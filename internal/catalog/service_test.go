package catalog

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hackgods/car-maintenance-booking/internal/apperr"
	"github.com/hackgods/car-maintenance-booking/internal/db"
)

type memRepo struct {
	next     int64
	items    map[int64]*Item
	packages map[int64]*Package
	guides   map[int64]*GuidePrice
	monitor  []MonitorRecord
}

func newMemRepo() *memRepo {
	return &memRepo{
		items:    map[int64]*Item{},
		packages: map[int64]*Package{},
		guides:   map[int64]*GuidePrice{},
	}
}

func (m *memRepo) id() int64 { m.next++; return m.next }

func (m *memRepo) GetItemByID(_ context.Context, id int64) (*Item, error) {
	it, ok := m.items[id]
	if !ok {
		return nil, ErrItemNotFound
	}
	cp := *it
	return &cp, nil
}

func (m *memRepo) ListItemsByShop(_ context.Context, shopID int64, category *string) ([]Item, error) {
	var out []Item
	for _, it := range m.items {
		if it.ShopID != shopID || !it.Active {
			continue
		}
		if category != nil && (it.Category == nil || *it.Category != *category) {
			continue
		}
		out = append(out, *it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Price.LessThan(out[j].Price) })
	return out, nil
}

func (m *memRepo) CreateItem(_ context.Context, it Item) (*Item, error) {
	it.ID = m.id()
	it.Active = true
	m.items[it.ID] = &it
	cp := it
	return &cp, nil
}

func (m *memRepo) UpdateItem(_ context.Context, it Item) (*Item, error) {
	if _, ok := m.items[it.ID]; !ok {
		return nil, ErrItemNotFound
	}
	m.items[it.ID] = &it
	cp := it
	return &cp, nil
}

func (m *memRepo) DeactivateItem(_ context.Context, id int64) error {
	it, ok := m.items[id]
	if !ok {
		return ErrItemNotFound
	}
	it.Active = false
	return nil
}

func (m *memRepo) GetPackageByID(_ context.Context, id int64) (*Package, error) {
	p, ok := m.packages[id]
	if !ok {
		return nil, ErrPackageNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memRepo) ListPackagesByShop(_ context.Context, shopID int64) ([]Package, error) {
	var out []Package
	for _, p := range m.packages {
		if p.ShopID == shopID && p.Active {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memRepo) CreatePackage(_ context.Context, p Package) (*Package, error) {
	p.ID = m.id()
	p.Active = true
	m.packages[p.ID] = &p
	cp := p
	return &cp, nil
}

func (m *memRepo) UpdatePackage(_ context.Context, p Package) (*Package, error) {
	cur, ok := m.packages[p.ID]
	if !ok || !cur.Active {
		return nil, ErrPackageNotFound
	}
	m.packages[p.ID] = &p
	cp := p
	return &cp, nil
}

func (m *memRepo) DeactivatePackage(_ context.Context, id int64) error {
	p, ok := m.packages[id]
	if !ok {
		return ErrPackageNotFound
	}
	p.Active = false
	return nil
}

func (m *memRepo) GetActiveGuidePriceByName(_ context.Context, name string) (*GuidePrice, error) {
	for _, g := range m.guides {
		if g.ServiceName == name && g.Active {
			cp := *g
			return &cp, nil
		}
	}
	return nil, ErrGuidePriceNotFound
}

func (m *memRepo) GetGuidePriceByID(_ context.Context, id int64) (*GuidePrice, error) {
	g, ok := m.guides[id]
	if !ok {
		return nil, ErrGuidePriceNotFound
	}
	cp := *g
	return &cp, nil
}

func (m *memRepo) ListActiveGuidePrices(_ context.Context, _ *string) ([]GuidePrice, error) {
	var out []GuidePrice
	for _, g := range m.guides {
		if g.Active {
			out = append(out, *g)
		}
	}
	return out, nil
}

func (m *memRepo) SaveGuidePrice(_ context.Context, g GuidePrice) (*GuidePrice, error) {
	if g.ID == 0 {
		g.ID = m.id()
	}
	g.Active = true
	m.guides[g.ID] = &g
	cp := g
	return &cp, nil
}

func (m *memRepo) DeactivateGuidePrice(_ context.Context, id int64) error {
	g, ok := m.guides[id]
	if !ok {
		return ErrGuidePriceNotFound
	}
	g.Active = false
	return nil
}

func (m *memRepo) InsertMonitorRecord(_ context.Context, rec MonitorRecord) (*MonitorRecord, error) {
	rec.ID = m.id()
	rec.CreatedAt = time.Now().Add(time.Duration(rec.ID) * time.Millisecond)
	m.monitor = append(m.monitor, rec)
	return &rec, nil
}

func (m *memRepo) ListMonitorRecords(_ context.Context, f MonitorFilter, page db.Page) ([]MonitorRecord, int, error) {
	var out []MonitorRecord
	for _, r := range m.monitor {
		if f.ShopID != nil && r.ShopID != *f.ShopID {
			continue
		}
		if f.Status != nil && r.Status != *f.Status {
			continue
		}
		out = append(out, r)
	}
	total := len(out)
	if len(out) > page.Limit() {
		out = out[:page.Limit()]
	}
	return out, total, nil
}

func (m *memRepo) CountMonitorRecords(_ context.Context, status PriceStatus) (int, error) {
	n := 0
	for _, r := range m.monitor {
		if r.Status == status {
			n++
		}
	}
	return n, nil
}

func newTestService() (*Service, *memRepo) {
	repo := newMemRepo()
	return NewService(repo, db.NopTransactor{}, zap.NewNop()), repo
}

func TestCreateItemRecordsAbnormalPrice(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	_, err := svc.SaveGuidePrice(ctx, oilChange())
	require.NoError(t, err)

	res, err := svc.CreateItem(ctx, 5, ItemInput{Name: "Oil change", Price: d("400")})
	require.NoError(t, err)
	assert.Equal(t, PriceTooHigh, res.PriceStatus)
	assert.Equal(t, 30, res.Item.DurationMinutes)
	require.Len(t, repo.monitor, 1)
	assert.Equal(t, int64(5), repo.monitor[0].ShopID)

	res, err = svc.CreateItem(ctx, 5, ItemInput{Name: "Tire rotation", Price: d("1")})
	require.NoError(t, err)
	assert.Equal(t, PriceNormal, res.PriceStatus)
	assert.Len(t, repo.monitor, 1)
}

func TestUpdateItemChecksOwnershipAndPrice(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	_, err := svc.SaveGuidePrice(ctx, oilChange())
	require.NoError(t, err)
	res, err := svc.CreateItem(ctx, 5, ItemInput{Name: "Oil change", Price: d("150")})
	require.NoError(t, err)

	_, err = svc.UpdateItem(ctx, 6, res.Item.ID, ItemInput{Name: "Oil change", Price: d("150")})
	assert.ErrorIs(t, err, ErrNotShopItem)

	upd, err := svc.UpdateItem(ctx, 5, res.Item.ID, ItemInput{Name: "Oil change", Price: d("20")})
	require.NoError(t, err)
	assert.Equal(t, PriceTooLow, upd.PriceStatus)
	assert.Len(t, repo.monitor, 1)
}

func TestItemValidationAndDelete(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.CreateItem(ctx, 5, ItemInput{Name: " ", Price: d("1")})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	_, err = svc.CreateItem(ctx, 5, ItemInput{Name: "Wash", Price: d("-1")})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	res, err := svc.CreateItem(ctx, 5, ItemInput{Name: "Wash", Price: d("10")})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.DeleteItem(ctx, 6, res.Item.ID), ErrNotShopItem)
	require.NoError(t, svc.DeleteItem(ctx, 5, res.Item.ID))

	items, err := svc.ListShopItems(ctx, 5, "")
	require.NoError(t, err)
	assert.Empty(t, items)

	_, err = svc.ItemSnapshot(ctx, 5, res.Item.ID)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestCreatePackageRequiresOwnItems(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	own, err := svc.CreateItem(ctx, 5, ItemInput{Name: "Wash", Price: d("10")})
	require.NoError(t, err)
	other, err := svc.CreateItem(ctx, 6, ItemInput{Name: "Wax", Price: d("20")})
	require.NoError(t, err)

	_, err = svc.CreatePackage(ctx, 5, PackageInput{Name: "Combo", Price: d("25"), Items: []PackageItemInput{{ItemID: own.Item.ID}, {ItemID: other.Item.ID}}})
	assert.ErrorIs(t, err, ErrNotShopItem)

	_, err = svc.CreatePackage(ctx, 5, PackageInput{Name: "Combo", Price: d("25"), Items: []PackageItemInput{{ItemID: 999}}})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = svc.CreatePackage(ctx, 5, PackageInput{Name: "Combo", Price: d("25")})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	p, err := svc.CreatePackage(ctx, 5, PackageInput{Name: "Combo", Price: d("25"), Items: []PackageItemInput{{ItemID: own.Item.ID, Quantity: 2}}})
	require.NoError(t, err)
	require.Len(t, p.Items, 1)
	assert.Equal(t, "Wash", p.Items[0].Name)
	assert.Equal(t, 2, p.Items[0].Quantity)

	snap, err := svc.PackageSnapshot(ctx, 5, p.ID)
	require.NoError(t, err)
	assert.True(t, snap.Price.Equal(d("25")))

	_, err = svc.PackageSnapshot(ctx, 6, p.ID)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestUpdatePackage(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	wash, err := svc.CreateItem(ctx, 5, ItemInput{Name: "Wash", Price: d("10")})
	require.NoError(t, err)
	wax, err := svc.CreateItem(ctx, 5, ItemInput{Name: "Wax", Price: d("20")})
	require.NoError(t, err)
	foreign, err := svc.CreateItem(ctx, 6, ItemInput{Name: "Polish", Price: d("30")})
	require.NoError(t, err)

	p, err := svc.CreatePackage(ctx, 5, PackageInput{Name: "Combo", Price: d("25"), Items: []PackageItemInput{{ItemID: wash.Item.ID}}})
	require.NoError(t, err)

	_, err = svc.UpdatePackage(ctx, 6, p.ID, PackageInput{Name: "Combo", Price: d("25"), Items: []PackageItemInput{{ItemID: foreign.Item.ID}}})
	assert.ErrorIs(t, err, ErrNotShopItem)
	_, err = svc.UpdatePackage(ctx, 5, p.ID, PackageInput{Name: "Combo", Price: d("25"), Items: []PackageItemInput{{ItemID: foreign.Item.ID}}})
	assert.ErrorIs(t, err, ErrNotShopItem)
	_, err = svc.UpdatePackage(ctx, 5, p.ID, PackageInput{Name: " ", Price: d("25"), Items: []PackageItemInput{{ItemID: wash.Item.ID}}})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	updated, err := svc.UpdatePackage(ctx, 5, p.ID, PackageInput{
		Name:  "Shine",
		Price: d("27.499"),
		Items: []PackageItemInput{{ItemID: wash.Item.ID}, {ItemID: wax.Item.ID, Quantity: 2}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Shine", updated.Name)
	assert.True(t, updated.Price.Equal(d("27.50")))
	require.Len(t, updated.Items, 2)
	assert.Equal(t, "Wax", updated.Items[1].Name)

	require.NoError(t, svc.DeletePackage(ctx, 5, p.ID))
	_, err = svc.UpdatePackage(ctx, 5, p.ID, PackageInput{Name: "Shine", Price: d("25"), Items: []PackageItemInput{{ItemID: wash.Item.ID}}})
	assert.ErrorIs(t, err, ErrPackageNotFound)
}

func TestSaveGuidePriceValidation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.SaveGuidePrice(ctx, GuidePrice{ServiceName: "X", MinPrice: d("0"), GuidePrice: d("1"), MaxPrice: d("2")})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = svc.SaveGuidePrice(ctx, GuidePrice{ServiceName: "X", MinPrice: d("5"), GuidePrice: d("4"), MaxPrice: d("6")})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = svc.SaveGuidePrice(ctx, GuidePrice{ID: 77, ServiceName: "X", MinPrice: d("1"), GuidePrice: d("2"), MaxPrice: d("3")})
	assert.ErrorIs(t, err, ErrGuidePriceNotFound)
}

func TestCheckServicePriceWithoutGuideIsNormal(t *testing.T) {
	svc, repo := newTestService()

	st, err := svc.CheckServicePrice(context.Background(), 1, "Unknown", decimal.NewFromInt(99999))
	require.NoError(t, err)
	assert.Equal(t, PriceNormal, st)
	assert.Empty(t, repo.monitor)
}

func TestPriceStats(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.SaveGuidePrice(ctx, oilChange())
	require.NoError(t, err)
	for _, p := range []string{"500", "10", "600"} {
		_, err := svc.CheckServicePrice(ctx, 1, "Oil change", d(p))
		require.NoError(t, err)
	}

	stats, err := svc.PriceStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TooHigh)
	assert.Equal(t, 1, stats.TooLow)
	assert.Equal(t, 3, stats.TotalAbnormal())
	require.Len(t, stats.RecentAbnormal, 3)
	assert.True(t, stats.RecentAbnormal[0].ShopPrice.Equal(d("600")))

	bad := PriceStatus("weird")
	_, _, err = svc.MonitorRecords(ctx, MonitorFilter{Status: &bad}, db.Page{})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}
