package booking

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hackgods/car-maintenance-booking/internal/apperr"
	"github.com/hackgods/car-maintenance-booking/internal/catalog"
	"github.com/hackgods/car-maintenance-booking/internal/db"
	"github.com/hackgods/car-maintenance-booking/internal/shop"
	"github.com/hackgods/car-maintenance-booking/internal/vehicle"
)

// memRepo mimics the Postgres constraints the service relies on: the active
// bay index and one order per appointment.
type memRepo struct {
	mu     sync.Mutex
	nextID int64
	appts  map[int64]*Appointment
	orders map[int64]*Order
	events []EventLog
}

func newMemRepo() *memRepo {
	return &memRepo{appts: map[int64]*Appointment{}, orders: map[int64]*Order{}}
}

// snapshot returns a func that restores the repo to its current state.
func (m *memRepo) snapshot() func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	appts := make(map[int64]*Appointment, len(m.appts))
	for id, a := range m.appts {
		cp := *a
		appts[id] = &cp
	}
	orders := make(map[int64]*Order, len(m.orders))
	for id, o := range m.orders {
		cp := *o
		orders[id] = &cp
	}
	events := append([]EventLog(nil), m.events...)
	nextID := m.nextID

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.appts, m.orders, m.events, m.nextID = appts, orders, events, nextID
	}
}

func (m *memRepo) bayClash(a Appointment) bool {
	if !a.Status.Active() {
		return false
	}
	for _, other := range m.appts {
		if other.ID != a.ID && other.Status.Active() && other.ShopID == a.ShopID &&
			other.Date.Equal(a.Date) && other.TimeSlot == a.TimeSlot && other.BayNumber == a.BayNumber {
			return true
		}
	}
	return false
}

func (m *memRepo) GetAppointment(_ context.Context, id int64) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memRepo) LockAppointment(ctx context.Context, id int64) (*Appointment, error) {
	return m.GetAppointment(ctx, id)
}

func (m *memRepo) ListAppointments(_ context.Context, f AppointmentFilter, page db.Page) ([]Appointment, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var all []Appointment
	for _, a := range m.appts {
		if f.UserID != nil && a.UserID != *f.UserID ||
			f.ShopID != nil && a.ShopID != *f.ShopID ||
			f.Status != nil && a.Status != *f.Status ||
			f.Date != nil && !a.Date.Equal(Day(*f.Date)) {
			continue
		}
		all = append(all, *a)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })

	from := min(page.Offset(), len(all))
	to := min(from+page.Limit(), len(all))
	return all[from:to], len(all), nil
}

func (m *memRepo) CreateAppointment(_ context.Context, a Appointment) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.bayClash(a) {
		return nil, ErrBayTaken
	}
	m.nextID++
	a.ID = m.nextID
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	items := make([]LineItem, len(a.Items))
	for i, it := range a.Items {
		m.nextID++
		it.ID = m.nextID
		items[i] = it
	}
	a.Items = items
	m.appts[a.ID] = &a
	cp := a
	return &cp, nil
}

func (m *memRepo) UpdateAppointment(_ context.Context, a Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.appts[a.ID]
	if !ok {
		return ErrAppointmentNotFound
	}
	if m.bayClash(a) {
		return ErrBayTaken
	}
	a.Items = cur.Items
	a.UpdatedAt = time.Now()
	m.appts[a.ID] = &a
	return nil
}

func (m *memRepo) ReplaceItems(_ context.Context, appointmentID int64, items []LineItem) ([]LineItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[appointmentID]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	out := make([]LineItem, len(items))
	for i, it := range items {
		m.nextID++
		it.ID = m.nextID
		out[i] = it
	}
	a.Items = out
	return out, nil
}

func (m *memRepo) TakenBays(_ context.Context, shopID int64, date time.Time, slot string) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var bays []int
	for _, a := range m.appts {
		if a.ShopID == shopID && a.Date.Equal(date) && a.TimeSlot == slot && a.Status.Active() {
			bays = append(bays, a.BayNumber)
		}
	}
	sort.Ints(bays)
	return bays, nil
}

func (m *memRepo) ActiveCountsBySlot(_ context.Context, shopID int64, date time.Time) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := map[string]int{}
	for _, a := range m.appts {
		if a.ShopID == shopID && a.Date.Equal(date) && a.Status.Active() {
			counts[a.TimeSlot]++
		}
	}
	return counts, nil
}

func (m *memRepo) AppointmentStatusCounts(_ context.Context, shopID int64, today time.Time) (map[AppointmentStatus]int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := map[AppointmentStatus]int{}
	todayCount := 0
	for _, a := range m.appts {
		if a.ShopID != shopID {
			continue
		}
		counts[a.Status]++
		if a.Date.Equal(today) {
			todayCount++
		}
	}
	return counts, todayCount, nil
}

func (m *memRepo) FindStalePending(_ context.Context, before time.Time) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Appointment
	for _, a := range m.appts {
		if a.Status == AppointmentPending && a.Date.Before(before) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *memRepo) GetOrder(_ context.Context, id int64) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memRepo) LockOrder(ctx context.Context, id int64) (*Order, error) {
	return m.GetOrder(ctx, id)
}

func (m *memRepo) GetOrderByAppointment(_ context.Context, appointmentID int64) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.AppointmentID == appointmentID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, ErrOrderNotFound
}

func (m *memRepo) ListOrders(_ context.Context, f OrderFilter, page db.Page) ([]Order, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []Order
	for _, o := range m.orders {
		if f.UserID != nil && o.UserID != *f.UserID ||
			f.ShopID != nil && o.ShopID != *f.ShopID ||
			f.Status != nil && o.Status != *f.Status ||
			f.CreatedFrom != nil && o.CreatedAt.Before(*f.CreatedFrom) ||
			f.CreatedBefore != nil && !o.CreatedAt.Before(*f.CreatedBefore) {
			continue
		}
		all = append(all, *o)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })

	from := min(page.Offset(), len(all))
	to := min(from+page.Limit(), len(all))
	return all[from:to], len(all), nil
}

func (m *memRepo) CreateOrder(_ context.Context, o Order) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.orders {
		if existing.AppointmentID == o.AppointmentID {
			return nil, ErrOrderExists
		}
	}
	m.nextID++
	o.ID = m.nextID
	o.CreatedAt = time.Now()
	o.UpdatedAt = o.CreatedAt
	m.orders[o.ID] = &o
	cp := o
	return &cp, nil
}

func (m *memRepo) UpdateOrder(_ context.Context, o Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[o.ID]; !ok {
		return ErrOrderNotFound
	}
	o.UpdatedAt = time.Now()
	m.orders[o.ID] = &o
	return nil
}

func (m *memRepo) OrderStats(_ context.Context, shopID int64, today time.Time) (*OrderStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &OrderStats{ByStatus: map[OrderStatus]int{}}
	for _, o := range m.orders {
		if o.ShopID != shopID {
			continue
		}
		stats.ByStatus[o.Status]++
		stats.Total++
		if o.Status == OrderCompleted {
			stats.Revenue = stats.Revenue.Add(o.FinalAmount)
			if o.EndTime != nil && Day(*o.EndTime).Equal(today) {
				stats.TodayRevenue = stats.TodayRevenue.Add(o.FinalAmount)
			}
		}
	}
	return stats, nil
}

func (m *memRepo) InsertEvent(_ context.Context, ev EventLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	ev.ID = m.nextID
	m.events = append(m.events, ev)
	return nil
}

func (m *memRepo) eventTypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.events))
	for i, ev := range m.events {
		out[i] = ev.EventType
	}
	return out
}

// memTx serializes transactions and rolls the repo back when fn fails.
type memTx struct {
	mu   sync.Mutex
	repo *memRepo
}

type inTxKey struct{}

func (t *memTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(inTxKey{}) != nil {
		return fn(ctx)
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	restore := t.repo.snapshot()
	if err := fn(context.WithValue(ctx, inTxKey{}, true)); err != nil {
		restore()
		return err
	}
	return nil
}

type fakeShops map[int64]*shop.Shop

func (f fakeShops) GetShop(_ context.Context, id int64) (*shop.Shop, error) {
	s, ok := f[id]
	if !ok {
		return nil, shop.ErrShopNotFound
	}
	cp := *s
	return &cp, nil
}

type fakeVehicles map[int64]*vehicle.Vehicle

func (f fakeVehicles) GetVehicle(_ context.Context, id int64) (*vehicle.Vehicle, error) {
	v, ok := f[id]
	if !ok {
		return nil, vehicle.ErrVehicleNotFound
	}
	cp := *v
	return &cp, nil
}

type fakeCatalog struct {
	items    map[int64]*catalog.Item
	packages map[int64]*catalog.Package
}

func (f fakeCatalog) ItemSnapshot(_ context.Context, shopID, itemID int64) (*catalog.Item, error) {
	it, ok := f.items[itemID]
	if !ok {
		return nil, catalog.ErrItemNotFound
	}
	if it.ShopID != shopID || !it.Active {
		return nil, apperr.Validation("service item %d is not offered by this shop", itemID)
	}
	cp := *it
	return &cp, nil
}

func (f fakeCatalog) PackageSnapshot(_ context.Context, shopID, packageID int64) (*catalog.Package, error) {
	p, ok := f.packages[packageID]
	if !ok {
		return nil, catalog.ErrPackageNotFound
	}
	if p.ShopID != shopID || !p.Active {
		return nil, apperr.Validation("service package %d is not offered by this shop", packageID)
	}
	cp := *p
	return &cp, nil
}

type fakeLedger struct {
	mu     sync.Mutex
	awards map[int64]int // order id -> points
	err    error
}

func (l *fakeLedger) AddExperienceForOrder(_ context.Context, _ int64, final decimal.Decimal, orderID int64) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return 0, l.err
	}
	points := int(final.Floor().IntPart())
	if l.awards == nil {
		l.awards = map[int64]int{}
	}
	l.awards[orderID] += points
	return points, nil
}
