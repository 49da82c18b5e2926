package memory

import (
	"context"
	"time"

	"github.com/hashicorp/go-memdb"

	"ralph-api/internal/models"
	"ralph-api/internal/store"
)

var ethernetSortKeys = sortKeys[models.Ethernet]{
	"id":       func(o models.Ethernet) any { return o.ID },
	"label":    func(o models.Ethernet) any { return o.Label },
	"mac":      func(o models.Ethernet) any { return o.MAC },
	"created":  func(o models.Ethernet) any { return timeKey(o.CreatedAt) },
	"modified": func(o models.Ethernet) any { return timeKey(o.UpdatedAt) },
}

func (s *Store) ListEthernets(ctx context.Context, f store.EthernetFilter, opts store.ListOptions) ([]models.Ethernet, int, error) {
	txn, done := s.read(ctx)
	defer done()
	rows, err := all[models.Ethernet](txn, tableEthernet, "id")
	if err != nil {
		return nil, 0, err
	}
	out := rows[:0]
	for _, r := range rows {
		if !matchName(opts, r.Label) {
			continue
		}
		if len(f.BaseObjectIDs) > 0 && !containsID(f.BaseObjectIDs, r.BaseObjectID) {
			continue
		}
		if f.MAC != "" && r.MAC != f.MAC {
			continue
		}
		out = append(out, r)
	}
	items, total := page(out, opts, ethernetSortKeys)
	return items, total, nil
}

func (s *Store) GetEthernet(ctx context.Context, id int64) (*models.Ethernet, error) {
	txn, done := s.read(ctx)
	defer done()
	return first[models.Ethernet](txn, tableEthernet, "id", id)
}

func uniqueMAC(txn *memdb.Txn, e *models.Ethernet) error {
	if e.MAC == "" {
		return nil
	}
	it, err := txn.Get(tableEthernet, "mac", e.MAC)
	if err != nil {
		return err
	}
	for raw := it.Next(); raw != nil; raw = it.Next() {
		if idOf(raw) != e.ID {
			return store.Conflict("mac")
		}
	}
	return nil
}

func (s *Store) CreateEthernet(ctx context.Context, e *models.Ethernet) error {
	return s.write(ctx, func(txn *memdb.Txn) error {
		if _, err := first[models.BaseObject](txn, tableObject, "id", e.BaseObjectID); err != nil {
			if err == store.ErrNotFound {
				return errReferenced
			}
			return err
		}
		if err := uniqueMAC(txn, e); err != nil {
			return err
		}
		e.ID = s.nextID(tableEthernet)
		e.CreatedAt = s.now()
		e.UpdatedAt = e.CreatedAt
		return insert(txn, tableEthernet, *e)
	})
}

func (s *Store) UpdateEthernet(ctx context.Context, e *models.Ethernet) error {
	return s.write(ctx, func(txn *memdb.Txn) error {
		cur, err := first[models.Ethernet](txn, tableEthernet, "id", e.ID)
		if err != nil {
			return err
		}
		if err := uniqueMAC(txn, e); err != nil {
			return err
		}
		e.CreatedAt = cur.CreatedAt
		e.UpdatedAt = s.now()
		return insert(txn, tableEthernet, *e)
	})
}

func (s *Store) DeleteEthernet(ctx context.Context, id int64) error {
	return s.write(ctx, func(txn *memdb.Txn) error {
		return deleteEthernet(txn, id, s.now())
	})
}

// deleteEthernet removes an ethernet and detaches its ip addresses
func deleteEthernet(txn *memdb.Txn, id int64, now time.Time) error {
	if err := remove[models.Ethernet](txn, tableEthernet, id); err != nil {
		return err
	}
	ips, err := all[models.IPAddress](txn, tableIPAddress, "id")
	if err != nil {
		return err
	}
	for _, ip := range ips {
		if !refersTo(ip.EthernetID, id) {
			continue
		}
		ip.EthernetID = nil
		ip.UpdatedAt = now
		if err := insert(txn, tableIPAddress, ip); err != nil {
			return err
		}
	}
	return nil
}

var ipSortKeys = sortKeys[models.IPAddress]{
	"id":       func(o models.IPAddress) any { return o.ID },
	"address":  func(o models.IPAddress) any { return o.Address },
	"hostname": func(o models.IPAddress) any { return o.Hostname },
	"created":  func(o models.IPAddress) any { return timeKey(o.CreatedAt) },
	"modified": func(o models.IPAddress) any { return timeKey(o.UpdatedAt) },
}

func (s *Store) ListIPAddresses(ctx context.Context, f store.IPAddressFilter, opts store.ListOptions) ([]models.IPAddress, int, error) {
	txn, done := s.read(ctx)
	defer done()
	rows, err := all[models.IPAddress](txn, tableIPAddress, "id")
	if err != nil {
		return nil, 0, err
	}
	out := rows[:0]
	for _, r := range rows {
		if !matchName(opts, r.Hostname) {
			continue
		}
		if len(f.EthernetIDs) > 0 && (r.EthernetID == nil || !containsID(f.EthernetIDs, *r.EthernetID)) {
			continue
		}
		if f.Address != "" && r.Address != f.Address {
			continue
		}
		if f.DHCPExpose != nil && r.DHCPExpose != *f.DHCPExpose {
			continue
		}
		out = append(out, r)
	}
	items, total := page(out, opts, ipSortKeys)
	return items, total, nil
}

func (s *Store) GetIPAddress(ctx context.Context, id int64) (*models.IPAddress, error) {
	txn, done := s.read(ctx)
	defer done()
	return first[models.IPAddress](txn, tableIPAddress, "id", id)
}

func uniqueAddress(txn *memdb.Txn, ip *models.IPAddress) error {
	it, err := txn.Get(tableIPAddress, "address", ip.Address)
	if err != nil {
		return err
	}
	for raw := it.Next(); raw != nil; raw = it.Next() {
		if idOf(raw) != ip.ID {
			return store.Conflict("address")
		}
	}
	return nil
}

func (s *Store) CreateIPAddress(ctx context.Context, ip *models.IPAddress) error {
	return s.write(ctx, func(txn *memdb.Txn) error {
		if err := uniqueAddress(txn, ip); err != nil {
			return err
		}
		ip.ID = s.nextID(tableIPAddress)
		ip.CreatedAt = s.now()
		ip.UpdatedAt = ip.CreatedAt
		return insert(txn, tableIPAddress, *ip)
	})
}

func (s *Store) UpdateIPAddress(ctx context.Context, ip *models.IPAddress) error {
	return s.write(ctx, func(txn *memdb.Txn) error {
		cur, err := first[models.IPAddress](txn, tableIPAddress, "id", ip.ID)
		if err != nil {
			return err
		}
		if err := uniqueAddress(txn, ip); err != nil {
			return err
		}
		ip.CreatedAt = cur.CreatedAt
		ip.UpdatedAt = s.now()
		return insert(txn, tableIPAddress, *ip)
	})
}

func (s *Store) DeleteIPAddress(ctx context.Context, id int64) error {
	return s.write(ctx, func(txn *memdb.Txn) error {
		return remove[models.IPAddress](txn, tableIPAddress, id)
	})
}
