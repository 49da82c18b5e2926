package memory

import (
	"context"

	"github.com/hashicorp/go-memdb"

	"ralph-api/internal/models"
	"ralph-api/internal/store"
)

var serviceSortKeys = sortKeys[models.Service]{
	"id":       func(o models.Service) any { return o.ID },
	"name":     func(o models.Service) any { return o.Name },
	"uid":      func(o models.Service) any { return o.UID },
	"created":  func(o models.Service) any { return timeKey(o.CreatedAt) },
	"modified": func(o models.Service) any { return timeKey(o.UpdatedAt) },
}

func cloneService(svc models.Service) models.Service {
	svc.BusinessOwnerIDs = copyIDs(svc.BusinessOwnerIDs)
	svc.TechnicalOwnerIDs = copyIDs(svc.TechnicalOwnerIDs)
	return svc
}

func (s *Store) ListServices(ctx context.Context, f store.ServiceFilter, opts store.ListOptions) ([]models.Service, int, error) {
	txn, done := s.read(ctx)
	defer done()
	rows, err := all[models.Service](txn, tableService, "id")
	if err != nil {
		return nil, 0, err
	}
	out := make([]models.Service, 0, len(rows))
	for _, r := range rows {
		if !matchName(opts, r.Name) {
			continue
		}
		if f.UID != "" && r.UID != f.UID {
			continue
		}
		if f.Active != nil && r.Active != *f.Active {
			continue
		}
		out = append(out, cloneService(r))
	}
	items, total := page(out, opts, serviceSortKeys)
	return items, total, nil
}

func (s *Store) GetService(ctx context.Context, id int64) (*models.Service, error) {
	txn, done := s.read(ctx)
	defer done()
	svc, err := first[models.Service](txn, tableService, "id", id)
	if err != nil {
		return nil, err
	}
	c := cloneService(*svc)
	return &c, nil
}

func uniqueService(txn *memdb.Txn, svc *models.Service) error {
	if err := uniqueName(txn, tableService, svc.Name, svc.ID); err != nil {
		return err
	}
	it, err := txn.Get(tableService, "uid", svc.UID)
	if err != nil {
		return err
	}
	for raw := it.Next(); raw != nil; raw = it.Next() {
		if idOf(raw) != svc.ID {
			return store.Conflict("uid")
		}
	}
	return nil
}

func (s *Store) CreateService(ctx context.Context, svc *models.Service) error {
	return s.write(ctx, func(txn *memdb.Txn) error {
		if err := uniqueService(txn, svc); err != nil {
			return err
		}
		svc.ID = s.nextID(tableService)
		svc.CreatedAt = s.now()
		svc.UpdatedAt = svc.CreatedAt
		return insert(txn, tableService, cloneService(*svc))
	})
}

func (s *Store) UpdateService(ctx context.Context, svc *models.Service) error {
	return s.write(ctx, func(txn *memdb.Txn) error {
		cur, err := first[models.Service](txn, tableService, "id", svc.ID)
		if err != nil {
			return err
		}
		if err := uniqueService(txn, svc); err != nil {
			return err
		}
		svc.CreatedAt = cur.CreatedAt
		svc.UpdatedAt = s.now()
		return insert(txn, tableService, cloneService(*svc))
	})
}

func (s *Store) DeleteService(ctx context.Context, id int64) error {
	return s.write(ctx, func(txn *memdb.Txn) error {
		if _, err := first[models.Service](txn, tableService, "id", id); err != nil {
			return err
		}
		referenced, err := objectsReference(txn, "service", id)
		if err != nil {
			return err
		}
		if referenced {
			return errReferenced
		}
		return remove[models.Service](txn, tableService, id)
	})
}

var userSortKeys = sortKeys[models.User]{
	"id":       func(o models.User) any { return o.ID },
	"username": func(o models.User) any { return o.Username },
	"email":    func(o models.User) any { return o.Email },
	"created":  func(o models.User) any { return timeKey(o.CreatedAt) },
}

func cloneUser(u models.User) models.User {
	u.Roles = append([]string(nil), u.Roles...)
	return u
}

func (s *Store) ListUsers(ctx context.Context, opts store.ListOptions) ([]models.User, int, error) {
	txn, done := s.read(ctx)
	defer done()
	rows, err := all[models.User](txn, tableUser, "id")
	if err != nil {
		return nil, 0, err
	}
	out := make([]models.User, 0, len(rows))
	for _, r := range rows {
		if matchName(opts, r.Username) {
			out = append(out, cloneUser(r))
		}
	}
	items, total := page(out, opts, userSortKeys)
	return items, total, nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (*models.User, error) {
	txn, done := s.read(ctx)
	defer done()
	u, err := first[models.User](txn, tableUser, "id", id)
	if err != nil {
		return nil, err
	}
	c := cloneUser(*u)
	return &c, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	txn, done := s.read(ctx)
	defer done()
	u, err := first[models.User](txn, tableUser, "username", username)
	if err != nil {
		return nil, err
	}
	c := cloneUser(*u)
	return &c, nil
}

func uniqueUsername(txn *memdb.Txn, u *models.User) error {
	it, err := txn.Get(tableUser, "username", u.Username)
	if err != nil {
		return err
	}
	for raw := it.Next(); raw != nil; raw = it.Next() {
		if idOf(raw) != u.ID {
			return store.Conflict("username")
		}
	}
	return nil
}

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	return s.write(ctx, func(txn *memdb.Txn) error {
		if err := uniqueUsername(txn, u); err != nil {
			return err
		}
		u.ID = s.nextID(tableUser)
		u.CreatedAt = s.now()
		u.UpdatedAt = u.CreatedAt
		return insert(txn, tableUser, cloneUser(*u))
	})
}

func (s *Store) UpdateUser(ctx context.Context, u *models.User) error {
	return s.write(ctx, func(txn *memdb.Txn) error {
		cur, err := first[models.User](txn, tableUser, "id", u.ID)
		if err != nil {
			return err
		}
		if err := uniqueUsername(txn, u); err != nil {
			return err
		}
		u.CreatedAt = cur.CreatedAt
		u.UpdatedAt = s.now()
		return insert(txn, tableUser, cloneUser(*u))
	})
}

// DeleteUser removes the user and drops it from every service owner list
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	return s.write(ctx, func(txn *memdb.Txn) error {
		if err := remove[models.User](txn, tableUser, id); err != nil {
			return err
		}
		services, err := all[models.Service](txn, tableService, "id")
		if err != nil {
			return err
		}
		for _, svc := range services {
			if !containsID(svc.BusinessOwnerIDs, id) && !containsID(svc.TechnicalOwnerIDs, id) {
				continue
			}
			svc.BusinessOwnerIDs = withoutID(svc.BusinessOwnerIDs, id)
			svc.TechnicalOwnerIDs = withoutID(svc.TechnicalOwnerIDs, id)
			if err := insert(txn, tableService, svc); err != nil {
				return err
			}
		}
		return nil
	})
}

func withoutID(ids []int64, id int64) []int64 {
	out := make([]int64, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
