package postgres

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"ralph-api/internal/models"
	"ralph-api/internal/store"
)

const moduleColumns = `id, name, parent_id, support_team_id, created_at, updated_at`

func scanModule(row interface{ Scan(...any) error }, m *models.ConfigurationModule, extra ...any) error {
	var parent, team sql.NullInt64
	dest := []any{&m.ID, &m.Name, &parent, &team, &m.CreatedAt, &m.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return err
	}
	m.ParentID = scanNullInt(parent)
	m.SupportTeamID = scanNullInt(team)
	return nil
}

func (s *Store) ListConfigurationModules(ctx context.Context, f store.ModuleFilter, opts store.ListOptions) ([]models.ConfigurationModule, int, error) {
	w := &where{}
	w.nameOptions("name", opts)
	if f.RootOnly {
		w.clauses = append(w.clauses, "parent_id IS NULL")
	}
	if f.ParentID != nil {
		w.add("parent_id = $%d", *f.ParentID)
	}
	sqlStr := `SELECT ` + moduleColumns + `, COUNT(*) OVER() AS total_count FROM configuration_modules` + w.sql()
	sqlStr += buildOrderBy(opts.Sort, namedSort) + limitOffset(opts)

	rows, err := s.dbFrom(ctx).QueryContext(ctx, sqlStr, w.args...)
	if err != nil {
		return nil, 0, translate(err, "configuration_modules")
	}
	defer rows.Close()

	out := []models.ConfigurationModule{}
	var total int
	for rows.Next() {
		var m models.ConfigurationModule
		if err := scanModule(rows, &m, &total); err != nil {
			return nil, 0, translate(err, "configuration_modules")
		}
		out = append(out, m)
	}
	return out, total, translate(rows.Err(), "configuration_modules")
}

func (s *Store) GetConfigurationModule(ctx context.Context, id int64) (*models.ConfigurationModule, error) {
	var m models.ConfigurationModule
	row := s.dbFrom(ctx).QueryRowContext(ctx, `SELECT `+moduleColumns+` FROM configuration_modules WHERE id = $1`, id)
	if err := scanModule(row, &m); err != nil {
		return nil, translate(err, "configuration_modules")
	}
	return &m, nil
}

func (s *Store) CreateConfigurationModule(ctx context.Context, m *models.ConfigurationModule) error {
	err := s.dbFrom(ctx).QueryRowContext(ctx, `
		INSERT INTO configuration_modules (name, parent_id, support_team_id)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`,
		m.Name, nullInt(m.ParentID), nullInt(m.SupportTeamID)).
		Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	return translate(err, "configuration_modules")
}

func (s *Store) UpdateConfigurationModule(ctx context.Context, m *models.ConfigurationModule) error {
	err := s.dbFrom(ctx).QueryRowContext(ctx, `
		UPDATE configuration_modules
		SET name = $1, parent_id = $2, support_team_id = $3, updated_at = now()
		WHERE id = $4
		RETURNING created_at, updated_at`,
		m.Name, nullInt(m.ParentID), nullInt(m.SupportTeamID), m.ID).
		Scan(&m.CreatedAt, &m.UpdatedAt)
	return translate(err, "configuration_modules")
}

func (s *Store) DeleteConfigurationModule(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "configuration_modules", id)
}

var classSort = map[string]string{
	"id":         "id",
	"class_name": "class_name",
	"path":       "path",
	"created":    "created_at",
	"modified":   "updated_at",
}

const classColumns = `id, class_name, module_id, path, created_at, updated_at`

func scanClass(row interface{ Scan(...any) error }, c *models.ConfigurationClass, extra ...any) error {
	dest := []any{&c.ID, &c.ClassName, &c.ModuleID, &c.Path, &c.CreatedAt, &c.UpdatedAt}
	return row.Scan(append(dest, extra...)...)
}

func (s *Store) ListConfigurationClasses(ctx context.Context, f store.ClassFilter, opts store.ListOptions) ([]models.ConfigurationClass, int, error) {
	w := &where{}
	w.nameOptions("class_name", opts)
	if len(f.ModuleIDs) > 0 {
		w.add("module_id = ANY($%d)", pq.Array(f.ModuleIDs))
	}
	if f.Path != "" {
		w.add("path = $%d", f.Path)
	}
	if f.PathPrefix != "" {
		w.add("starts_with(path, $%d)", f.PathPrefix)
	}
	sqlStr := `SELECT ` + classColumns + `, COUNT(*) OVER() AS total_count FROM configuration_classes` + w.sql()
	sqlStr += buildOrderBy(opts.Sort, classSort) + limitOffset(opts)

	rows, err := s.dbFrom(ctx).QueryContext(ctx, sqlStr, w.args...)
	if err != nil {
		return nil, 0, translate(err, "configuration_classes")
	}
	defer rows.Close()

	out := []models.ConfigurationClass{}
	var total int
	for rows.Next() {
		var c models.ConfigurationClass
		if err := scanClass(rows, &c, &total); err != nil {
			return nil, 0, translate(err, "configuration_classes")
		}
		out = append(out, c)
	}
	return out, total, translate(rows.Err(), "configuration_classes")
}

func (s *Store) GetConfigurationClass(ctx context.Context, id int64) (*models.ConfigurationClass, error) {
	var c models.ConfigurationClass
	row := s.dbFrom(ctx).QueryRowContext(ctx, `SELECT `+classColumns+` FROM configuration_classes WHERE id = $1`, id)
	if err := scanClass(row, &c); err != nil {
		return nil, translate(err, "configuration_classes")
	}
	return &c, nil
}

func (s *Store) CreateConfigurationClass(ctx context.Context, c *models.ConfigurationClass) error {
	err := s.dbFrom(ctx).QueryRowContext(ctx, `
		INSERT INTO configuration_classes (class_name, module_id, path)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`,
		c.ClassName, c.ModuleID, c.Path).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	return translate(err, "configuration_classes")
}

func (s *Store) UpdateConfigurationClass(ctx context.Context, c *models.ConfigurationClass) error {
	err := s.dbFrom(ctx).QueryRowContext(ctx, `
		UPDATE configuration_classes
		SET class_name = $1, module_id = $2, path = $3, updated_at = now()
		WHERE id = $4
		RETURNING created_at, updated_at`,
		c.ClassName, c.ModuleID, c.Path, c.ID).
		Scan(&c.CreatedAt, &c.UpdatedAt)
	return translate(err, "configuration_classes")
}

func (s *Store) DeleteConfigurationClass(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "configuration_classes", id)
}
