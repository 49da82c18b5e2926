package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pkg/errors"

	"ralph-api/internal/models"
	"ralph-api/internal/store"
)

var catalogTables = map[models.Catalog]string{
	models.CatalogEnvironment:     "environments",
	models.CatalogManufacturer:    "manufacturers",
	models.CatalogBusinessSegment: "business_segments",
	models.CatalogTeam:            "teams",
}

func catalogTable(c models.Catalog) (string, error) {
	t, ok := catalogTables[c]
	if !ok {
		return "", errors.Errorf("unknown catalog %q", c)
	}
	return t, nil
}

var namedSort = map[string]string{
	"id":       "id",
	"name":     "name",
	"created":  "created_at",
	"modified": "updated_at",
}

func (s *Store) ListNamed(ctx context.Context, c models.Catalog, opts store.ListOptions) ([]models.NamedObject, int, error) {
	table, err := catalogTable(c)
	if err != nil {
		return nil, 0, err
	}
	w := &where{}
	w.nameOptions("name", opts)

	sqlStr := fmt.Sprintf(`
		SELECT id, name, created_at, updated_at, COUNT(*) OVER() AS total_count
		FROM %s%s`, table, w.sql())
	sqlStr += buildOrderBy(opts.Sort, namedSort) + limitOffset(opts)

	rows, err := s.dbFrom(ctx).QueryContext(ctx, sqlStr, w.args...)
	if err != nil {
		return nil, 0, translate(err, table)
	}
	defer rows.Close()

	out := []models.NamedObject{}
	var total int
	for rows.Next() {
		var o models.NamedObject
		if err := rows.Scan(&o.ID, &o.Name, &o.CreatedAt, &o.UpdatedAt, &total); err != nil {
			return nil, 0, translate(err, table)
		}
		out = append(out, o)
	}
	return out, total, translate(rows.Err(), table)
}

func (s *Store) GetNamed(ctx context.Context, c models.Catalog, id int64) (*models.NamedObject, error) {
	table, err := catalogTable(c)
	if err != nil {
		return nil, err
	}
	var o models.NamedObject
	err = s.dbFrom(ctx).QueryRowContext(ctx, fmt.Sprintf(`
		SELECT id, name, created_at, updated_at FROM %s WHERE id = $1`, table), id).
		Scan(&o.ID, &o.Name, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, translate(err, table)
	}
	return &o, nil
}

func (s *Store) CreateNamed(ctx context.Context, c models.Catalog, obj *models.NamedObject) error {
	table, err := catalogTable(c)
	if err != nil {
		return err
	}
	err = s.dbFrom(ctx).QueryRowContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (name) VALUES ($1)
		RETURNING id, created_at, updated_at`, table), obj.Name).
		Scan(&obj.ID, &obj.CreatedAt, &obj.UpdatedAt)
	return translate(err, table)
}

func (s *Store) UpdateNamed(ctx context.Context, c models.Catalog, obj *models.NamedObject) error {
	table, err := catalogTable(c)
	if err != nil {
		return err
	}
	err = s.dbFrom(ctx).QueryRowContext(ctx, fmt.Sprintf(`
		UPDATE %s SET name = $1, updated_at = now() WHERE id = $2
		RETURNING created_at, updated_at`, table), obj.Name, obj.ID).
		Scan(&obj.CreatedAt, &obj.UpdatedAt)
	return translate(err, table)
}

func (s *Store) DeleteNamed(ctx context.Context, c models.Catalog, id int64) error {
	table, err := catalogTable(c)
	if err != nil {
		return err
	}
	return s.deleteByID(ctx, table, id)
}

// deleteByID removes one row and reports ErrNotFound when nothing matched
func (s *Store) deleteByID(ctx context.Context, table string, id int64) error {
	res, err := s.dbFrom(ctx).ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, table), id)
	if err != nil {
		return translate(err, table)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListProfitCenters(ctx context.Context, opts store.ListOptions) ([]models.ProfitCenter, int, error) {
	w := &where{}
	w.nameOptions("name", opts)
	sqlStr := `
		SELECT id, name, description, business_segment_id, created_at, updated_at,
		       COUNT(*) OVER() AS total_count
		FROM profit_centers` + w.sql()
	sqlStr += buildOrderBy(opts.Sort, namedSort) + limitOffset(opts)

	rows, err := s.dbFrom(ctx).QueryContext(ctx, sqlStr, w.args...)
	if err != nil {
		return nil, 0, translate(err, "profit_centers")
	}
	defer rows.Close()

	out := []models.ProfitCenter{}
	var total int
	for rows.Next() {
		var pc models.ProfitCenter
		var seg sql.NullInt64
		if err := rows.Scan(&pc.ID, &pc.Name, &pc.Description, &seg, &pc.CreatedAt, &pc.UpdatedAt, &total); err != nil {
			return nil, 0, translate(err, "profit_centers")
		}
		pc.BusinessSegmentID = scanNullInt(seg)
		out = append(out, pc)
	}
	return out, total, translate(rows.Err(), "profit_centers")
}

func (s *Store) GetProfitCenter(ctx context.Context, id int64) (*models.ProfitCenter, error) {
	var pc models.ProfitCenter
	var seg sql.NullInt64
	err := s.dbFrom(ctx).QueryRowContext(ctx, `
		SELECT id, name, description, business_segment_id, created_at, updated_at
		FROM profit_centers WHERE id = $1`, id).
		Scan(&pc.ID, &pc.Name, &pc.Description, &seg, &pc.CreatedAt, &pc.UpdatedAt)
	if err != nil {
		return nil, translate(err, "profit_centers")
	}
	pc.BusinessSegmentID = scanNullInt(seg)
	return &pc, nil
}

func (s *Store) CreateProfitCenter(ctx context.Context, pc *models.ProfitCenter) error {
	err := s.dbFrom(ctx).QueryRowContext(ctx, `
		INSERT INTO profit_centers (name, description, business_segment_id)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`,
		pc.Name, pc.Description, nullInt(pc.BusinessSegmentID)).
		Scan(&pc.ID, &pc.CreatedAt, &pc.UpdatedAt)
	return translate(err, "profit_centers")
}

func (s *Store) UpdateProfitCenter(ctx context.Context, pc *models.ProfitCenter) error {
	err := s.dbFrom(ctx).QueryRowContext(ctx, `
		UPDATE profit_centers
		SET name = $1, description = $2, business_segment_id = $3, updated_at = now()
		WHERE id = $4
		RETURNING created_at, updated_at`,
		pc.Name, pc.Description, nullInt(pc.BusinessSegmentID), pc.ID).
		Scan(&pc.CreatedAt, &pc.UpdatedAt)
	return translate(err, "profit_centers")
}

func (s *Store) DeleteProfitCenter(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "profit_centers", id)
}

var categorySort = map[string]string{
	"id":       "id",
	"name":     "name",
	"code":     "code",
	"created":  "created_at",
	"modified": "updated_at",
}

const categoryColumns = `id, name, code, parent_id, imei_required, show_buyout_date,
		default_depreciation_rate::float8, created_at, updated_at`

func scanCategory(row interface{ Scan(...any) error }, c *models.Category, extra ...any) error {
	var parent sql.NullInt64
	dest := []any{&c.ID, &c.Name, &c.Code, &parent, &c.ImeiRequired, &c.ShowBuyoutDate,
		&c.DefaultDepreciationRate, &c.CreatedAt, &c.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return err
	}
	c.ParentID = scanNullInt(parent)
	return nil
}

func (s *Store) ListCategories(ctx context.Context, opts store.ListOptions) ([]models.Category, int, error) {
	w := &where{}
	w.nameOptions("name", opts)
	sqlStr := `SELECT ` + categoryColumns + `, COUNT(*) OVER() AS total_count FROM categories` + w.sql()
	sqlStr += buildOrderBy(opts.Sort, categorySort) + limitOffset(opts)

	rows, err := s.dbFrom(ctx).QueryContext(ctx, sqlStr, w.args...)
	if err != nil {
		return nil, 0, translate(err, "categories")
	}
	defer rows.Close()

	out := []models.Category{}
	var total int
	for rows.Next() {
		var c models.Category
		if err := scanCategory(rows, &c, &total); err != nil {
			return nil, 0, translate(err, "categories")
		}
		out = append(out, c)
	}
	return out, total, translate(rows.Err(), "categories")
}

func (s *Store) GetCategory(ctx context.Context, id int64) (*models.Category, error) {
	var c models.Category
	row := s.dbFrom(ctx).QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = $1`, id)
	if err := scanCategory(row, &c); err != nil {
		return nil, translate(err, "categories")
	}
	return &c, nil
}

func (s *Store) CreateCategory(ctx context.Context, c *models.Category) error {
	err := s.dbFrom(ctx).QueryRowContext(ctx, `
		INSERT INTO categories (name, code, parent_id, imei_required, show_buyout_date, default_depreciation_rate)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`,
		c.Name, c.Code, nullInt(c.ParentID), c.ImeiRequired, c.ShowBuyoutDate, c.DefaultDepreciationRate).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	return translate(err, "categories")
}

func (s *Store) UpdateCategory(ctx context.Context, c *models.Category) error {
	err := s.dbFrom(ctx).QueryRowContext(ctx, `
		UPDATE categories
		SET name = $1, code = $2, parent_id = $3, imei_required = $4, show_buyout_date = $5,
		    default_depreciation_rate = $6, updated_at = now()
		WHERE id = $7
		RETURNING created_at, updated_at`,
		c.Name, c.Code, nullInt(c.ParentID), c.ImeiRequired, c.ShowBuyoutDate, c.DefaultDepreciationRate, c.ID).
		Scan(&c.CreatedAt, &c.UpdatedAt)
	return translate(err, "categories")
}

func (s *Store) DeleteCategory(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "categories", id)
}

var assetModelSort = map[string]string{
	"id":       "id",
	"name":     "name",
	"type":     "type",
	"created":  "created_at",
	"modified": "updated_at",
}

const assetModelColumns = `id, name, type, manufacturer_id, category_id, height_of_device,
		cores_count, power_consumption, created_at, updated_at`

func scanAssetModel(row interface{ Scan(...any) error }, m *models.AssetModel, extra ...any) error {
	var manufacturer, category sql.NullInt64
	dest := []any{&m.ID, &m.Name, &m.Type, &manufacturer, &category, &m.HeightOfDevice,
		&m.CoresCount, &m.PowerConsumption, &m.CreatedAt, &m.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return err
	}
	m.ManufacturerID = scanNullInt(manufacturer)
	m.CategoryID = scanNullInt(category)
	return nil
}

func (s *Store) ListAssetModels(ctx context.Context, f store.AssetModelFilter, opts store.ListOptions) ([]models.AssetModel, int, error) {
	w := &where{}
	w.nameOptions("name", opts)
	if f.Type != 0 {
		w.add("type = $%d", int(f.Type))
	}
	if f.ManufacturerID != nil {
		w.add("manufacturer_id = $%d", *f.ManufacturerID)
	}
	if f.CategoryID != nil {
		w.add("category_id = $%d", *f.CategoryID)
	}
	sqlStr := `SELECT ` + assetModelColumns + `, COUNT(*) OVER() AS total_count FROM asset_models` + w.sql()
	sqlStr += buildOrderBy(opts.Sort, assetModelSort) + limitOffset(opts)

	rows, err := s.dbFrom(ctx).QueryContext(ctx, sqlStr, w.args...)
	if err != nil {
		return nil, 0, translate(err, "asset_models")
	}
	defer rows.Close()

	out := []models.AssetModel{}
	var total int
	for rows.Next() {
		var m models.AssetModel
		if err := scanAssetModel(rows, &m, &total); err != nil {
			return nil, 0, translate(err, "asset_models")
		}
		out = append(out, m)
	}
	return out, total, translate(rows.Err(), "asset_models")
}

func (s *Store) GetAssetModel(ctx context.Context, id int64) (*models.AssetModel, error) {
	var m models.AssetModel
	row := s.dbFrom(ctx).QueryRowContext(ctx, `SELECT `+assetModelColumns+` FROM asset_models WHERE id = $1`, id)
	if err := scanAssetModel(row, &m); err != nil {
		return nil, translate(err, "asset_models")
	}
	return &m, nil
}

func (s *Store) CreateAssetModel(ctx context.Context, m *models.AssetModel) error {
	err := s.dbFrom(ctx).QueryRowContext(ctx, `
		INSERT INTO asset_models (name, type, manufacturer_id, category_id, height_of_device, cores_count, power_consumption)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`,
		m.Name, int(m.Type), nullInt(m.ManufacturerID), nullInt(m.CategoryID), m.HeightOfDevice, m.CoresCount, m.PowerConsumption).
		Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	return translate(err, "asset_models")
}

func (s *Store) UpdateAssetModel(ctx context.Context, m *models.AssetModel) error {
	err := s.dbFrom(ctx).QueryRowContext(ctx, `
		UPDATE asset_models
		SET name = $1, type = $2, manufacturer_id = $3, category_id = $4, height_of_device = $5,
		    cores_count = $6, power_consumption = $7, updated_at = now()
		WHERE id = $8
		RETURNING created_at, updated_at`,
		m.Name, int(m.Type), nullInt(m.ManufacturerID), nullInt(m.CategoryID), m.HeightOfDevice, m.CoresCount, m.PowerConsumption, m.ID).
		Scan(&m.CreatedAt, &m.UpdatedAt)
	return translate(err, "asset_models")
}

func (s *Store) DeleteAssetModel(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "asset_models", id)
}
