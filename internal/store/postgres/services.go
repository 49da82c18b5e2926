package postgres

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"ralph-api/internal/models"
	"ralph-api/internal/store"
)

var serviceSort = map[string]string{
	"id":       "id",
	"name":     "name",
	"uid":      "uid",
	"created":  "created_at",
	"modified": "updated_at",
}

const serviceColumns = `id, name, uid, active, profit_center_id, support_team_id, created_at, updated_at`

func scanService(row interface{ Scan(...any) error }, svc *models.Service, extra ...any) error {
	var pc, team sql.NullInt64
	dest := []any{&svc.ID, &svc.Name, &svc.UID, &svc.Active, &pc, &team, &svc.CreatedAt, &svc.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return err
	}
	svc.ProfitCenterID = scanNullInt(pc)
	svc.SupportTeamID = scanNullInt(team)
	return nil
}

func (s *Store) ListServices(ctx context.Context, f store.ServiceFilter, opts store.ListOptions) ([]models.Service, int, error) {
	w := &where{}
	w.nameOptions("name", opts)
	if f.UID != "" {
		w.add("uid = $%d", f.UID)
	}
	if f.Active != nil {
		w.add("active = $%d", *f.Active)
	}
	sqlStr := `SELECT ` + serviceColumns + `, COUNT(*) OVER() AS total_count FROM services` + w.sql()
	sqlStr += buildOrderBy(opts.Sort, serviceSort) + limitOffset(opts)

	rows, err := s.dbFrom(ctx).QueryContext(ctx, sqlStr, w.args...)
	if err != nil {
		return nil, 0, translate(err, "services")
	}
	defer rows.Close()

	out := []models.Service{}
	var total int
	for rows.Next() {
		var svc models.Service
		if err := scanService(rows, &svc, &total); err != nil {
			return nil, 0, translate(err, "services")
		}
		out = append(out, svc)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, translate(err, "services")
	}
	if err := s.loadOwners(ctx, out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// loadOwners fills the owner id lists of services in one query
func (s *Store) loadOwners(ctx context.Context, services []models.Service) error {
	if len(services) == 0 {
		return nil
	}
	ids := make([]int64, len(services))
	byID := make(map[int64]*models.Service, len(services))
	for i := range services {
		ids[i] = services[i].ID
		byID[services[i].ID] = &services[i]
		services[i].BusinessOwnerIDs = []int64{}
		services[i].TechnicalOwnerIDs = []int64{}
	}
	rows, err := s.dbFrom(ctx).QueryContext(ctx, `
		SELECT service_id, user_id, kind FROM service_owners
		WHERE service_id = ANY($1) ORDER BY user_id`, pq.Array(ids))
	if err != nil {
		return translate(err, "service_owners")
	}
	defer rows.Close()
	for rows.Next() {
		var serviceID, userID int64
		var kind string
		if err := rows.Scan(&serviceID, &userID, &kind); err != nil {
			return translate(err, "service_owners")
		}
		svc := byID[serviceID]
		if kind == "business" {
			svc.BusinessOwnerIDs = append(svc.BusinessOwnerIDs, userID)
		} else {
			svc.TechnicalOwnerIDs = append(svc.TechnicalOwnerIDs, userID)
		}
	}
	return translate(rows.Err(), "service_owners")
}

func (s *Store) GetService(ctx context.Context, id int64) (*models.Service, error) {
	var svc models.Service
	row := s.dbFrom(ctx).QueryRowContext(ctx, `SELECT `+serviceColumns+` FROM services WHERE id = $1`, id)
	if err := scanService(row, &svc); err != nil {
		return nil, translate(err, "services")
	}
	list := []models.Service{svc}
	if err := s.loadOwners(ctx, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

func (s *Store) CreateService(ctx context.Context, svc *models.Service) error {
	return s.inTx(ctx, func(q querier) error {
		err := q.QueryRowContext(ctx, `
			INSERT INTO services (name, uid, active, profit_center_id, support_team_id)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, created_at, updated_at`,
			svc.Name, svc.UID, svc.Active, nullInt(svc.ProfitCenterID), nullInt(svc.SupportTeamID)).
			Scan(&svc.ID, &svc.CreatedAt, &svc.UpdatedAt)
		if err != nil {
			return translate(err, "services")
		}
		return writeOwners(ctx, q, svc)
	})
}

func (s *Store) UpdateService(ctx context.Context, svc *models.Service) error {
	return s.inTx(ctx, func(q querier) error {
		err := q.QueryRowContext(ctx, `
			UPDATE services
			SET name = $1, uid = $2, active = $3, profit_center_id = $4, support_team_id = $5, updated_at = now()
			WHERE id = $6
			RETURNING created_at, updated_at`,
			svc.Name, svc.UID, svc.Active, nullInt(svc.ProfitCenterID), nullInt(svc.SupportTeamID), svc.ID).
			Scan(&svc.CreatedAt, &svc.UpdatedAt)
		if err != nil {
			return translate(err, "services")
		}
		if _, err := q.ExecContext(ctx, `DELETE FROM service_owners WHERE service_id = $1`, svc.ID); err != nil {
			return translate(err, "service_owners")
		}
		return writeOwners(ctx, q, svc)
	})
}

func writeOwners(ctx context.Context, q querier, svc *models.Service) error {
	if len(svc.BusinessOwnerIDs) > 0 {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO service_owners (service_id, user_id, kind)
			SELECT $1, unnest($2::bigint[]), 'business' ON CONFLICT DO NOTHING`,
			svc.ID, pq.Array(svc.BusinessOwnerIDs)); err != nil {
			return translate(err, "service_owners")
		}
	}
	if len(svc.TechnicalOwnerIDs) > 0 {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO service_owners (service_id, user_id, kind)
			SELECT $1, unnest($2::bigint[]), 'technical' ON CONFLICT DO NOTHING`,
			svc.ID, pq.Array(svc.TechnicalOwnerIDs)); err != nil {
			return translate(err, "service_owners")
		}
	}
	return nil
}

func (s *Store) DeleteService(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "services", id)
}

var userSort = map[string]string{
	"id":       "id",
	"username": "username",
	"email":    "email",
	"created":  "created_at",
}

const userColumns = `id, username, email, password_hash, first_name, last_name, roles,
		is_active, created_at, updated_at, last_login_at`

func scanUser(row interface{ Scan(...any) error }, u *models.User, extra ...any) error {
	var first, last sql.NullString
	var lastLogin sql.NullTime
	dest := []any{&u.ID, &u.Username, &u.Email, &u.PasswordHash, &first, &last, pq.Array(&u.Roles),
		&u.IsActive, &u.CreatedAt, &u.UpdatedAt, &lastLogin}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return err
	}
	if first.Valid {
		u.FirstName = &first.String
	}
	if last.Valid {
		u.LastName = &last.String
	}
	if lastLogin.Valid {
		u.LastLoginAt = &lastLogin.Time
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context, opts store.ListOptions) ([]models.User, int, error) {
	w := &where{}
	w.nameOptions("username", opts)
	sqlStr := `SELECT ` + userColumns + `, COUNT(*) OVER() AS total_count FROM users` + w.sql()
	sqlStr += buildOrderBy(opts.Sort, userSort) + limitOffset(opts)

	rows, err := s.dbFrom(ctx).QueryContext(ctx, sqlStr, w.args...)
	if err != nil {
		return nil, 0, translate(err, "users")
	}
	defer rows.Close()

	out := []models.User{}
	var total int
	for rows.Next() {
		var u models.User
		if err := scanUser(rows, &u, &total); err != nil {
			return nil, 0, translate(err, "users")
		}
		out = append(out, u)
	}
	return out, total, translate(rows.Err(), "users")
}

func (s *Store) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	row := s.dbFrom(ctx).QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if err := scanUser(row, &u); err != nil {
		return nil, translate(err, "users")
	}
	return &u, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	row := s.dbFrom(ctx).QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	if err := scanUser(row, &u); err != nil {
		return nil, translate(err, "users")
	}
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	err := s.dbFrom(ctx).QueryRowContext(ctx, `
		INSERT INTO users (username, email, password_hash, first_name, last_name, roles, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`,
		u.Username, u.Email, u.PasswordHash, u.FirstName, u.LastName, pq.Array(u.Roles), u.IsActive).
		Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	return translate(err, "users")
}

func (s *Store) UpdateUser(ctx context.Context, u *models.User) error {
	err := s.dbFrom(ctx).QueryRowContext(ctx, `
		UPDATE users
		SET username = $1, email = $2, password_hash = $3, first_name = $4, last_name = $5,
		    roles = $6, is_active = $7, last_login_at = $8, updated_at = now()
		WHERE id = $9
		RETURNING created_at, updated_at`,
		u.Username, u.Email, u.PasswordHash, u.FirstName, u.LastName, pq.Array(u.Roles), u.IsActive, u.LastLoginAt, u.ID).
		Scan(&u.CreatedAt, &u.UpdatedAt)
	return translate(err, "users")
}

func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "users", id)
}
