package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/car-maintenance-booking/internal/db"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const (
	itemColumns    = `id, shop_id, name, category, description, price, duration_minutes, active, created_at, updated_at`
	packageColumns = `id, shop_id, name, description, price, active, created_at, updated_at`
	guideColumns   = `id, service_name, category, min_price, guide_price, max_price, active, created_at, updated_at`
	monitorColumns = `id, shop_id, service_name, shop_price, guide_price, price_diff, diff_rate, status, created_at`
)

func scanItem(row pgx.Row) (*Item, error) {
	var it Item
	err := row.Scan(
		&it.ID,
		&it.ShopID,
		&it.Name,
		&it.Category,
		&it.Description,
		&it.Price,
		&it.DurationMinutes,
		&it.Active,
		&it.CreatedAt,
		&it.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, err
	}
	return &it, nil
}

func scanPackage(row pgx.Row) (*Package, error) {
	var p Package
	err := row.Scan(
		&p.ID,
		&p.ShopID,
		&p.Name,
		&p.Description,
		&p.Price,
		&p.Active,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPackageNotFound
		}
		return nil, err
	}
	return &p, nil
}

func scanGuidePrice(row pgx.Row) (*GuidePrice, error) {
	var g GuidePrice
	err := row.Scan(
		&g.ID,
		&g.ServiceName,
		&g.Category,
		&g.MinPrice,
		&g.GuidePrice,
		&g.MaxPrice,
		&g.Active,
		&g.CreatedAt,
		&g.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrGuidePriceNotFound
		}
		return nil, err
	}
	return &g, nil
}

func scanMonitorRecord(row pgx.Row) (*MonitorRecord, error) {
	var m MonitorRecord
	err := row.Scan(
		&m.ID,
		&m.ShopID,
		&m.ServiceName,
		&m.ShopPrice,
		&m.GuidePrice,
		&m.PriceDiff,
		&m.DiffRate,
		&m.Status,
		&m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Items

func (r *PgRepository) GetItemByID(ctx context.Context, id int64) (*Item, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+itemColumns+`
		FROM service_items
		WHERE id = $1
	`, id)
	return scanItem(row)
}

func (r *PgRepository) ListItemsByShop(ctx context.Context, shopID int64, category *string) ([]Item, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT `+itemColumns+`
		FROM service_items
		WHERE shop_id = $1
		  AND active
		  AND ($2::text IS NULL OR category = $2)
		ORDER BY category NULLS LAST, price
	`, shopID, category)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var result []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *it)
	}
	return result, rows.Err()
}

func (r *PgRepository) CreateItem(ctx context.Context, it Item) (*Item, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO service_items (shop_id, name, category, description, price, duration_minutes, active)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE)
		RETURNING `+itemColumns,
		it.ShopID, it.Name, it.Category, it.Description, it.Price, it.DurationMinutes)
	return scanItem(row)
}

func (r *PgRepository) UpdateItem(ctx context.Context, it Item) (*Item, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE service_items
		SET name = $2,
		    category = $3,
		    description = $4,
		    price = $5,
		    duration_minutes = $6,
		    active = $7,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+itemColumns,
		it.ID, it.Name, it.Category, it.Description, it.Price, it.DurationMinutes, it.Active)
	return scanItem(row)
}

func (r *PgRepository) DeactivateItem(ctx context.Context, id int64) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE service_items SET active = FALSE, updated_at = now() WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("deactivate item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

// Packages

func (r *PgRepository) loadPackageItems(ctx context.Context, pkgs []*Package) error {
	if len(pkgs) == 0 {
		return nil
	}
	ids := make([]int64, len(pkgs))
	byID := make(map[int64]*Package, len(pkgs))
	for i, p := range pkgs {
		ids[i] = p.ID
		byID[p.ID] = p
	}

	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT pi.package_id, pi.item_id, si.name, pi.quantity
		FROM package_items pi
		JOIN service_items si ON si.id = pi.item_id
		WHERE pi.package_id = ANY($1)
		ORDER BY pi.package_id, pi.item_id
	`, ids)
	if err != nil {
		return fmt.Errorf("load package items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var pkgID int64
		var pi PackageItem
		if err := rows.Scan(&pkgID, &pi.ItemID, &pi.Name, &pi.Quantity); err != nil {
			return err
		}
		if p, ok := byID[pkgID]; ok {
			p.Items = append(p.Items, pi)
		}
	}
	return rows.Err()
}

func (r *PgRepository) GetPackageByID(ctx context.Context, id int64) (*Package, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+packageColumns+`
		FROM service_packages
		WHERE id = $1
	`, id)
	p, err := scanPackage(row)
	if err != nil {
		return nil, err
	}
	if err := r.loadPackageItems(ctx, []*Package{p}); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *PgRepository) ListPackagesByShop(ctx context.Context, shopID int64) ([]Package, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT `+packageColumns+`
		FROM service_packages
		WHERE shop_id = $1 AND active
		ORDER BY price
	`, shopID)
	if err != nil {
		return nil, fmt.Errorf("list packages: %w", err)
	}

	var ptrs []*Package
	for rows.Next() {
		p, err := scanPackage(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		ptrs = append(ptrs, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.loadPackageItems(ctx, ptrs); err != nil {
		return nil, err
	}

	result := make([]Package, len(ptrs))
	for i, p := range ptrs {
		result[i] = *p
	}
	return result, nil
}

func (r *PgRepository) CreatePackage(ctx context.Context, p Package) (*Package, error) {
	q := db.Conn(ctx, r.pool)

	row := q.QueryRow(ctx, `
		INSERT INTO service_packages (shop_id, name, description, price, active)
		VALUES ($1, $2, $3, $4, TRUE)
		RETURNING `+packageColumns,
		p.ShopID, p.Name, p.Description, p.Price)
	created, err := scanPackage(row)
	if err != nil {
		return nil, fmt.Errorf("insert package: %w", err)
	}

	for _, it := range p.Items {
		_, err := q.Exec(ctx, `
			INSERT INTO package_items (package_id, item_id, quantity)
			VALUES ($1, $2, $3)
		`, created.ID, it.ItemID, it.Quantity)
		if err != nil {
			return nil, fmt.Errorf("insert package item: %w", err)
		}
	}
	created.Items = p.Items
	return created, nil
}

func (r *PgRepository) UpdatePackage(ctx context.Context, p Package) (*Package, error) {
	q := db.Conn(ctx, r.pool)

	row := q.QueryRow(ctx, `
		UPDATE service_packages
		SET name = $2, description = $3, price = $4, updated_at = now()
		WHERE id = $1 AND active
		RETURNING `+packageColumns,
		p.ID, p.Name, p.Description, p.Price)
	updated, err := scanPackage(row)
	if err != nil {
		return nil, err
	}

	if _, err := q.Exec(ctx, `DELETE FROM package_items WHERE package_id = $1`, p.ID); err != nil {
		return nil, fmt.Errorf("clear package items: %w", err)
	}
	for _, it := range p.Items {
		_, err := q.Exec(ctx, `
			INSERT INTO package_items (package_id, item_id, quantity)
			VALUES ($1, $2, $3)
		`, p.ID, it.ItemID, it.Quantity)
		if err != nil {
			return nil, fmt.Errorf("insert package item: %w", err)
		}
	}
	updated.Items = p.Items
	return updated, nil
}

func (r *PgRepository) DeactivatePackage(ctx context.Context, id int64) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE service_packages SET active = FALSE, updated_at = now() WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("deactivate package: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPackageNotFound
	}
	return nil
}

// Guide prices

func (r *PgRepository) GetActiveGuidePriceByName(ctx context.Context, serviceName string) (*GuidePrice, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+guideColumns+`
		FROM platform_guide_prices
		WHERE service_name = $1 AND active
	`, serviceName)
	return scanGuidePrice(row)
}

func (r *PgRepository) GetGuidePriceByID(ctx context.Context, id int64) (*GuidePrice, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+guideColumns+`
		FROM platform_guide_prices
		WHERE id = $1
	`, id)
	return scanGuidePrice(row)
}

func (r *PgRepository) ListActiveGuidePrices(ctx context.Context, category *string) ([]GuidePrice, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT `+guideColumns+`
		FROM platform_guide_prices
		WHERE active AND ($1::text IS NULL OR category = $1)
		ORDER BY category NULLS LAST, service_name
	`, category)
	if err != nil {
		return nil, fmt.Errorf("list guide prices: %w", err)
	}
	defer rows.Close()

	var result []GuidePrice
	for rows.Next() {
		g, err := scanGuidePrice(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *g)
	}
	return result, rows.Err()
}

func (r *PgRepository) SaveGuidePrice(ctx context.Context, g GuidePrice) (*GuidePrice, error) {
	q := db.Conn(ctx, r.pool)

	var row pgx.Row
	if g.ID == 0 {
		row = q.QueryRow(ctx, `
			INSERT INTO platform_guide_prices (service_name, category, min_price, guide_price, max_price, active)
			VALUES ($1, $2, $3, $4, $5, TRUE)
			RETURNING `+guideColumns,
			g.ServiceName, g.Category, g.MinPrice, g.GuidePrice, g.MaxPrice)
	} else {
		row = q.QueryRow(ctx, `
			UPDATE platform_guide_prices
			SET service_name = $2,
			    category = $3,
			    min_price = $4,
			    guide_price = $5,
			    max_price = $6,
			    updated_at = now()
			WHERE id = $1
			RETURNING `+guideColumns,
			g.ID, g.ServiceName, g.Category, g.MinPrice, g.GuidePrice, g.MaxPrice)
	}

	saved, err := scanGuidePrice(row)
	if err != nil {
		if db.IsUniqueViolation(err, "platform_guide_prices_name_idx") {
			return nil, ErrGuidePriceExists
		}
		return nil, err
	}
	return saved, nil
}

func (r *PgRepository) DeactivateGuidePrice(ctx context.Context, id int64) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE platform_guide_prices SET active = FALSE, updated_at = now() WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("deactivate guide price: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrGuidePriceNotFound
	}
	return nil
}

// Monitor records

func (r *PgRepository) InsertMonitorRecord(ctx context.Context, rec MonitorRecord) (*MonitorRecord, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO price_monitor_records (shop_id, service_name, shop_price, guide_price, price_diff, diff_rate, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+monitorColumns,
		rec.ShopID, rec.ServiceName, rec.ShopPrice, rec.GuidePrice, rec.PriceDiff, rec.DiffRate, rec.Status)

	saved, err := scanMonitorRecord(row)
	if err != nil {
		return nil, fmt.Errorf("insert monitor record: %w", err)
	}
	return saved, nil
}

func (r *PgRepository) ListMonitorRecords(ctx context.Context, f MonitorFilter, page db.Page) ([]MonitorRecord, int, error) {
	q := db.Conn(ctx, r.pool)

	var total int
	err := q.QueryRow(ctx, `
		SELECT count(*)
		FROM price_monitor_records
		WHERE ($1::bigint IS NULL OR shop_id = $1)
		  AND ($2::text IS NULL OR status = $2)
	`, f.ShopID, f.Status).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count monitor records: %w", err)
	}

	rows, err := q.Query(ctx, `
		SELECT `+monitorColumns+`
		FROM price_monitor_records
		WHERE ($1::bigint IS NULL OR shop_id = $1)
		  AND ($2::text IS NULL OR status = $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4
	`, f.ShopID, f.Status, page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list monitor records: %w", err)
	}
	defer rows.Close()

	var result []MonitorRecord
	for rows.Next() {
		m, err := scanMonitorRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

func (r *PgRepository) CountMonitorRecords(ctx context.Context, status PriceStatus) (int, error) {
	var n int
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT count(*) FROM price_monitor_records WHERE status = $1
	`, status).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count monitor records: %w", err)
	}
	return n, nil
}
