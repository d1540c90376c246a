package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/hackgods/car-maintenance-booking/internal/db"
)

const (
	bayIndex            = "appointments_active_bay_idx"
	appointmentNoKey    = "appointments_appointment_no_key"
	orderAppointmentKey = "orders_appointment_id_key"
	orderNoKey          = "orders_order_no_key"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

const appointmentColumns = `id, appointment_no, user_id, shop_id, vehicle_id, appointment_date,
	time_slot, bay_number, total_amount, status, cancel_reason, cancel_time, created_at, updated_at`

const orderColumns = `id, order_no, appointment_id, user_id, shop_id, vehicle_id, total_amount,
	discount_amount, final_amount, payment_method, payment_status, technician_id, start_time,
	end_time, status, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID,
		&a.AppointmentNo,
		&a.UserID,
		&a.ShopID,
		&a.VehicleID,
		&a.Date,
		&a.TimeSlot,
		&a.BayNumber,
		&a.TotalAmount,
		&a.Status,
		&a.CancelReason,
		&a.CancelTime,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	return &a, nil
}

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(
		&o.ID,
		&o.OrderNo,
		&o.AppointmentID,
		&o.UserID,
		&o.ShopID,
		&o.VehicleID,
		&o.TotalAmount,
		&o.DiscountAmount,
		&o.FinalAmount,
		&o.PaymentMethod,
		&o.PaymentStatus,
		&o.TechnicianID,
		&o.StartTime,
		&o.EndTime,
		&o.Status,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &o, nil
}

func optDay(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := dayString(*t)
	return &s
}

// Appointments

func (r *PgRepository) GetAppointment(ctx context.Context, id int64) (*Appointment, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	a, err := scanAppointment(row)
	if err != nil {
		return nil, err
	}
	if a.Items, err = r.loadItems(ctx, a.ID); err != nil {
		return nil, err
	}
	return a, nil
}

func (r *PgRepository) LockAppointment(ctx context.Context, id int64) (*Appointment, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
		FOR UPDATE
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) loadItems(ctx context.Context, appointmentID int64) ([]LineItem, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT id, item_id, package_id, item_name, price, quantity, subtotal
		FROM appointment_items
		WHERE appointment_id = $1
		ORDER BY id
	`, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("load appointment items: %w", err)
	}
	defer rows.Close()

	var items []LineItem
	for rows.Next() {
		var it LineItem
		if err := rows.Scan(&it.ID, &it.ItemID, &it.PackageID, &it.Name, &it.Price, &it.Quantity, &it.Subtotal); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *PgRepository) ListAppointments(ctx context.Context, f AppointmentFilter, page db.Page) ([]Appointment, int, error) {
	q := db.Conn(ctx, r.pool)
	date := optDay(f.Date)

	var total int
	err := q.QueryRow(ctx, `
		SELECT count(*)
		FROM appointments
		WHERE ($1::bigint IS NULL OR user_id = $1)
		  AND ($2::bigint IS NULL OR shop_id = $2)
		  AND ($3::text IS NULL OR status = $3)
		  AND ($4::date IS NULL OR appointment_date = $4::date)
	`, f.UserID, f.ShopID, f.Status, date).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}

	rows, err := q.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE ($1::bigint IS NULL OR user_id = $1)
		  AND ($2::bigint IS NULL OR shop_id = $2)
		  AND ($3::text IS NULL OR status = $3)
		  AND ($4::date IS NULL OR appointment_date = $4::date)
		ORDER BY appointment_date DESC, time_slot, id DESC
		LIMIT $5 OFFSET $6
	`, f.UserID, f.ShopID, f.Status, date, page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

func (r *PgRepository) CreateAppointment(ctx context.Context, a Appointment) (*Appointment, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO appointments (appointment_no, user_id, shop_id, vehicle_id, appointment_date,
			time_slot, bay_number, total_amount, status)
		VALUES ($1, $2, $3, $4, $5::date, $6, $7, $8, $9)
		RETURNING `+appointmentColumns,
		a.AppointmentNo, a.UserID, a.ShopID, a.VehicleID, dayString(a.Date),
		a.TimeSlot, a.BayNumber, a.TotalAmount, a.Status)

	created, err := scanAppointment(row)
	if err != nil {
		switch {
		case db.IsUniqueViolation(err, bayIndex):
			return nil, ErrBayTaken
		case db.IsUniqueViolation(err, appointmentNoKey):
			return nil, ErrNumberCollision
		}
		return nil, fmt.Errorf("insert appointment: %w", err)
	}

	if created.Items, err = r.ReplaceItems(ctx, created.ID, a.Items); err != nil {
		return nil, err
	}
	return created, nil
}

func (r *PgRepository) UpdateAppointment(ctx context.Context, a Appointment) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE appointments
		SET vehicle_id = $2,
		    appointment_date = $3::date,
		    time_slot = $4,
		    bay_number = $5,
		    total_amount = $6,
		    status = $7,
		    cancel_reason = $8,
		    cancel_time = $9,
		    updated_at = now()
		WHERE id = $1
	`, a.ID, a.VehicleID, dayString(a.Date), a.TimeSlot, a.BayNumber, a.TotalAmount,
		a.Status, a.CancelReason, a.CancelTime)
	if err != nil {
		if db.IsUniqueViolation(err, bayIndex) {
			return ErrBayTaken
		}
		return fmt.Errorf("update appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *PgRepository) ReplaceItems(ctx context.Context, appointmentID int64, items []LineItem) ([]LineItem, error) {
	q := db.Conn(ctx, r.pool)

	if _, err := q.Exec(ctx, `DELETE FROM appointment_items WHERE appointment_id = $1`, appointmentID); err != nil {
		return nil, fmt.Errorf("clear appointment items: %w", err)
	}

	out := make([]LineItem, 0, len(items))
	for _, it := range items {
		err := q.QueryRow(ctx, `
			INSERT INTO appointment_items (appointment_id, item_id, package_id, item_name, price, quantity, subtotal)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id
		`, appointmentID, it.ItemID, it.PackageID, it.Name, it.Price, it.Quantity, it.Subtotal).Scan(&it.ID)
		if err != nil {
			return nil, fmt.Errorf("insert appointment item: %w", err)
		}
		out = append(out, it)
	}
	return out, nil
}

func (r *PgRepository) TakenBays(ctx context.Context, shopID int64, date time.Time, slot string) ([]int, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT bay_number
		FROM appointments
		WHERE shop_id = $1
		  AND appointment_date = $2::date
		  AND time_slot = $3
		  AND status IN ('pending', 'in_progress')
		ORDER BY bay_number
	`, shopID, dayString(date), slot)
	if err != nil {
		return nil, fmt.Errorf("taken bays: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[int])
}

func (r *PgRepository) ActiveCountsBySlot(ctx context.Context, shopID int64, date time.Time) (map[string]int, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT time_slot, count(*)
		FROM appointments
		WHERE shop_id = $1
		  AND appointment_date = $2::date
		  AND status IN ('pending', 'in_progress')
		GROUP BY time_slot
	`, shopID, dayString(date))
	if err != nil {
		return nil, fmt.Errorf("count slots: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var slot string
		var n int
		if err := rows.Scan(&slot, &n); err != nil {
			return nil, err
		}
		counts[slot] = n
	}
	return counts, rows.Err()
}

func (r *PgRepository) AppointmentStatusCounts(ctx context.Context, shopID int64, today time.Time) (map[AppointmentStatus]int, int, error) {
	q := db.Conn(ctx, r.pool)

	rows, err := q.Query(ctx, `
		SELECT status, count(*)
		FROM appointments
		WHERE shop_id = $1
		GROUP BY status
	`, shopID)
	if err != nil {
		return nil, 0, fmt.Errorf("appointment stats: %w", err)
	}
	defer rows.Close()

	counts := make(map[AppointmentStatus]int)
	for rows.Next() {
		var st AppointmentStatus
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, 0, err
		}
		counts[st] = n
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var todayCount int
	err = q.QueryRow(ctx, `
		SELECT count(*)
		FROM appointments
		WHERE shop_id = $1 AND appointment_date = $2::date
	`, shopID, dayString(today)).Scan(&todayCount)
	if err != nil {
		return nil, 0, fmt.Errorf("today appointments: %w", err)
	}
	return counts, todayCount, nil
}

func (r *PgRepository) FindStalePending(ctx context.Context, before time.Time) ([]Appointment, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = 'pending'
		  AND appointment_date < $1::date
		ORDER BY appointment_date, id
	`, dayString(before))
	if err != nil {
		return nil, fmt.Errorf("find stale appointments: %w", err)
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

// Orders

func (r *PgRepository) GetOrder(ctx context.Context, id int64) (*Order, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1
	`, id)
	return scanOrder(row)
}

func (r *PgRepository) LockOrder(ctx context.Context, id int64) (*Order, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1
		FOR UPDATE
	`, id)
	return scanOrder(row)
}

func (r *PgRepository) GetOrderByAppointment(ctx context.Context, appointmentID int64) (*Order, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE appointment_id = $1
	`, appointmentID)
	return scanOrder(row)
}

func (r *PgRepository) ListOrders(ctx context.Context, f OrderFilter, page db.Page) ([]Order, int, error) {
	q := db.Conn(ctx, r.pool)

	var total int
	err := q.QueryRow(ctx, `
		SELECT count(*)
		FROM orders
		WHERE ($1::bigint IS NULL OR user_id = $1)
		  AND ($2::bigint IS NULL OR shop_id = $2)
		  AND ($3::text IS NULL OR status = $3)
		  AND ($4::timestamptz IS NULL OR created_at >= $4)
		  AND ($5::timestamptz IS NULL OR created_at < $5)
	`, f.UserID, f.ShopID, f.Status, f.CreatedFrom, f.CreatedBefore).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	rows, err := q.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE ($1::bigint IS NULL OR user_id = $1)
		  AND ($2::bigint IS NULL OR shop_id = $2)
		  AND ($3::text IS NULL OR status = $3)
		  AND ($4::timestamptz IS NULL OR created_at >= $4)
		  AND ($5::timestamptz IS NULL OR created_at < $5)
		ORDER BY created_at DESC, id DESC
		LIMIT $6 OFFSET $7
	`, f.UserID, f.ShopID, f.Status, f.CreatedFrom, f.CreatedBefore, page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var result []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

func (r *PgRepository) CreateOrder(ctx context.Context, o Order) (*Order, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO orders (order_no, appointment_id, user_id, shop_id, vehicle_id, total_amount,
			discount_amount, final_amount, payment_method, payment_status, technician_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING `+orderColumns,
		o.OrderNo, o.AppointmentID, o.UserID, o.ShopID, o.VehicleID, o.TotalAmount,
		o.DiscountAmount, o.FinalAmount, o.PaymentMethod, o.PaymentStatus, o.TechnicianID, o.Status)

	created, err := scanOrder(row)
	if err != nil {
		switch {
		case db.IsUniqueViolation(err, orderAppointmentKey):
			return nil, ErrOrderExists
		case db.IsUniqueViolation(err, orderNoKey):
			return nil, ErrNumberCollision
		}
		return nil, fmt.Errorf("insert order: %w", err)
	}
	return created, nil
}

func (r *PgRepository) UpdateOrder(ctx context.Context, o Order) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE orders
		SET total_amount = $2,
		    discount_amount = $3,
		    final_amount = $4,
		    payment_method = $5,
		    payment_status = $6,
		    technician_id = $7,
		    start_time = $8,
		    end_time = $9,
		    status = $10,
		    updated_at = now()
		WHERE id = $1
	`, o.ID, o.TotalAmount, o.DiscountAmount, o.FinalAmount, o.PaymentMethod, o.PaymentStatus,
		o.TechnicianID, o.StartTime, o.EndTime, o.Status)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *PgRepository) OrderStats(ctx context.Context, shopID int64, today time.Time) (*OrderStats, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT status,
		       count(*),
		       count(*) FILTER (WHERE created_at::date = $2::date),
		       coalesce(sum(final_amount), 0),
		       coalesce(sum(final_amount) FILTER (WHERE end_time::date = $2::date), 0)
		FROM orders
		WHERE shop_id = $1
		GROUP BY status
	`, shopID, dayString(today))
	if err != nil {
		return nil, fmt.Errorf("order stats: %w", err)
	}
	defer rows.Close()

	stats := &OrderStats{ByStatus: make(map[OrderStatus]int)}
	for rows.Next() {
		var (
			st                OrderStatus
			n, todayN         int
			amount, todayAmnt decimal.Decimal
		)
		if err := rows.Scan(&st, &n, &todayN, &amount, &todayAmnt); err != nil {
			return nil, err
		}
		stats.ByStatus[st] = n
		stats.Total += n
		stats.Today += todayN
		if st == OrderCompleted {
			stats.Revenue = amount
			stats.TodayRevenue = todayAmnt
		}
	}
	return stats, rows.Err()
}

// Event logging

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO booking_events (event_type, appointment_id, order_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, ev.EventType, ev.AppointmentID, ev.OrderID, ev.Payload, ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert booking event: %w", err)
	}
	return nil
}
