package postgres

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"ralph-api/internal/models"
	"ralph-api/internal/store"
)

var ethernetSort = map[string]string{
	"id":       "id",
	"label":    "label",
	"mac":      "mac",
	"created":  "created_at",
	"modified": "updated_at",
}

const ethernetColumns = `id, base_object_id, label, mac, speed, created_at, updated_at`

func scanEthernet(row interface{ Scan(...any) error }, e *models.Ethernet, extra ...any) error {
	var mac sql.NullString
	dest := []any{&e.ID, &e.BaseObjectID, &e.Label, &mac, &e.Speed, &e.CreatedAt, &e.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return err
	}
	e.MAC = mac.String
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (s *Store) ListEthernets(ctx context.Context, f store.EthernetFilter, opts store.ListOptions) ([]models.Ethernet, int, error) {
	w := &where{}
	w.nameOptions("label", opts)
	if len(f.BaseObjectIDs) > 0 {
		w.add("base_object_id = ANY($%d)", pq.Array(f.BaseObjectIDs))
	}
	if f.MAC != "" {
		w.add("mac = $%d", f.MAC)
	}
	sqlStr := `SELECT ` + ethernetColumns + `, COUNT(*) OVER() AS total_count FROM ethernets` + w.sql()
	sqlStr += buildOrderBy(opts.Sort, ethernetSort) + limitOffset(opts)

	rows, err := s.dbFrom(ctx).QueryContext(ctx, sqlStr, w.args...)
	if err != nil {
		return nil, 0, translate(err, "ethernets")
	}
	defer rows.Close()

	out := []models.Ethernet{}
	var total int
	for rows.Next() {
		var e models.Ethernet
		if err := scanEthernet(rows, &e, &total); err != nil {
			return nil, 0, translate(err, "ethernets")
		}
		out = append(out, e)
	}
	return out, total, translate(rows.Err(), "ethernets")
}

func (s *Store) GetEthernet(ctx context.Context, id int64) (*models.Ethernet, error) {
	var e models.Ethernet
	row := s.dbFrom(ctx).QueryRowContext(ctx, `SELECT `+ethernetColumns+` FROM ethernets WHERE id = $1`, id)
	if err := scanEthernet(row, &e); err != nil {
		return nil, translate(err, "ethernets")
	}
	return &e, nil
}

func (s *Store) CreateEthernet(ctx context.Context, e *models.Ethernet) error {
	err := s.dbFrom(ctx).QueryRowContext(ctx, `
		INSERT INTO ethernets (base_object_id, label, mac, speed)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`,
		e.BaseObjectID, e.Label, nullIfEmpty(e.MAC), e.Speed).
		Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	return translate(err, "ethernets")
}

func (s *Store) UpdateEthernet(ctx context.Context, e *models.Ethernet) error {
	err := s.dbFrom(ctx).QueryRowContext(ctx, `
		UPDATE ethernets
		SET base_object_id = $1, label = $2, mac = $3, speed = $4, updated_at = now()
		WHERE id = $5
		RETURNING created_at, updated_at`,
		e.BaseObjectID, e.Label, nullIfEmpty(e.MAC), e.Speed, e.ID).
		Scan(&e.CreatedAt, &e.UpdatedAt)
	return translate(err, "ethernets")
}

func (s *Store) DeleteEthernet(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "ethernets", id)
}

var ipSort = map[string]string{
	"id":       "id",
	"address":  "address",
	"hostname": "hostname",
	"created":  "created_at",
	"modified": "updated_at",
}

const ipColumns = `id, ethernet_id, address, hostname, dhcp_expose, is_management, created_at, updated_at`

func scanIP(row interface{ Scan(...any) error }, ip *models.IPAddress, extra ...any) error {
	var eth sql.NullInt64
	dest := []any{&ip.ID, &eth, &ip.Address, &ip.Hostname, &ip.DHCPExpose, &ip.IsManagement, &ip.CreatedAt, &ip.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return err
	}
	ip.EthernetID = scanNullInt(eth)
	return nil
}

func (s *Store) ListIPAddresses(ctx context.Context, f store.IPAddressFilter, opts store.ListOptions) ([]models.IPAddress, int, error) {
	w := &where{}
	w.nameOptions("hostname", opts)
	if len(f.EthernetIDs) > 0 {
		w.add("ethernet_id = ANY($%d)", pq.Array(f.EthernetIDs))
	}
	if f.Address != "" {
		w.add("address = $%d", f.Address)
	}
	if f.DHCPExpose != nil {
		w.add("dhcp_expose = $%d", *f.DHCPExpose)
	}
	sqlStr := `SELECT ` + ipColumns + `, COUNT(*) OVER() AS total_count FROM ip_addresses` + w.sql()
	sqlStr += buildOrderBy(opts.Sort, ipSort) + limitOffset(opts)

	rows, err := s.dbFrom(ctx).QueryContext(ctx, sqlStr, w.args...)
	if err != nil {
		return nil, 0, translate(err, "ip_addresses")
	}
	defer rows.Close()

	out := []models.IPAddress{}
	var total int
	for rows.Next() {
		var ip models.IPAddress
		if err := scanIP(rows, &ip, &total); err != nil {
			return nil, 0, translate(err, "ip_addresses")
		}
		out = append(out, ip)
	}
	return out, total, translate(rows.Err(), "ip_addresses")
}

func (s *Store) GetIPAddress(ctx context.Context, id int64) (*models.IPAddress, error) {
	var ip models.IPAddress
	row := s.dbFrom(ctx).QueryRowContext(ctx, `SELECT `+ipColumns+` FROM ip_addresses WHERE id = $1`, id)
	if err := scanIP(row, &ip); err != nil {
		return nil, translate(err, "ip_addresses")
	}
	return &ip, nil
}

func (s *Store) CreateIPAddress(ctx context.Context, ip *models.IPAddress) error {
	err := s.dbFrom(ctx).QueryRowContext(ctx, `
		INSERT INTO ip_addresses (ethernet_id, address, hostname, dhcp_expose, is_management)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`,
		nullInt(ip.EthernetID), ip.Address, ip.Hostname, ip.DHCPExpose, ip.IsManagement).
		Scan(&ip.ID, &ip.CreatedAt, &ip.UpdatedAt)
	return translate(err, "ip_addresses")
}

func (s *Store) UpdateIPAddress(ctx context.Context, ip *models.IPAddress) error {
	err := s.dbFrom(ctx).QueryRowContext(ctx, `
		UPDATE ip_addresses
		SET ethernet_id = $1, address = $2, hostname = $3, dhcp_expose = $4, is_management = $5, updated_at = now()
		WHERE id = $6
		RETURNING created_at, updated_at`,
		nullInt(ip.EthernetID), ip.Address, ip.Hostname, ip.DHCPExpose, ip.IsManagement, ip.ID).
		Scan(&ip.CreatedAt, &ip.UpdatedAt)
	return translate(err, "ip_addresses")
}

func (s *Store) DeleteIPAddress(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "ip_addresses", id)
}
