package memory

import (
	"context"
	"strings"

	"github.com/hashicorp/go-memdb"

	"ralph-api/internal/models"
	"ralph-api/internal/store"
)

var moduleSortKeys = sortKeys[models.ConfigurationModule]{
	"id":       func(o models.ConfigurationModule) any { return o.ID },
	"name":     func(o models.ConfigurationModule) any { return o.Name },
	"created":  func(o models.ConfigurationModule) any { return timeKey(o.CreatedAt) },
	"modified": func(o models.ConfigurationModule) any { return timeKey(o.UpdatedAt) },
}

func (s *Store) ListConfigurationModules(ctx context.Context, f store.ModuleFilter, opts store.ListOptions) ([]models.ConfigurationModule, int, error) {
	txn, done := s.read(ctx)
	defer done()
	rows, err := all[models.ConfigurationModule](txn, tableModule, "id")
	if err != nil {
		return nil, 0, err
	}
	out := rows[:0]
	for _, r := range rows {
		if !matchName(opts, r.Name) {
			continue
		}
		if f.RootOnly && r.ParentID != nil {
			continue
		}
		if f.ParentID != nil && !sameID(r.ParentID, f.ParentID) {
			continue
		}
		out = append(out, r)
	}
	items, total := page(out, opts, moduleSortKeys)
	return items, total, nil
}

func (s *Store) GetConfigurationModule(ctx context.Context, id int64) (*models.ConfigurationModule, error) {
	txn, done := s.read(ctx)
	defer done()
	return first[models.ConfigurationModule](txn, tableModule, "id", id)
}

// uniqueModule enforces (parent, name) uniqueness
func uniqueModule(txn *memdb.Txn, m *models.ConfigurationModule) error {
	rows, err := all[models.ConfigurationModule](txn, tableModule, "name", m.Name)
	if err != nil {
		return err
	}
	for _, r := range rows {
		if r.ID != m.ID && sameID(r.ParentID, m.ParentID) {
			return store.Conflict("parent, name")
		}
	}
	return nil
}

func (s *Store) CreateConfigurationModule(ctx context.Context, m *models.ConfigurationModule) error {
	return s.write(ctx, func(txn *memdb.Txn) error {
		if err := uniqueModule(txn, m); err != nil {
			return err
		}
		m.ID = s.nextID(tableModule)
		m.CreatedAt = s.now()
		m.UpdatedAt = m.CreatedAt
		return insert(txn, tableModule, *m)
	})
}

func (s *Store) UpdateConfigurationModule(ctx context.Context, m *models.ConfigurationModule) error {
	return s.write(ctx, func(txn *memdb.Txn) error {
		cur, err := first[models.ConfigurationModule](txn, tableModule, "id", m.ID)
		if err != nil {
			return err
		}
		if err := uniqueModule(txn, m); err != nil {
			return err
		}
		m.CreatedAt = cur.CreatedAt
		m.UpdatedAt = s.now()
		return insert(txn, tableModule, *m)
	})
}

func (s *Store) DeleteConfigurationModule(ctx context.Context, id int64) error {
	return s.write(ctx, func(txn *memdb.Txn) error {
		modules, err := all[models.ConfigurationModule](txn, tableModule, "id")
		if err != nil {
			return err
		}
		for _, m := range modules {
			if refersTo(m.ParentID, id) {
				return errReferenced
			}
		}
		if raw, err := txn.First(tableClass, "module", id); err != nil {
			return err
		} else if raw != nil {
			return errReferenced
		}
		return remove[models.ConfigurationModule](txn, tableModule, id)
	})
}

var classSortKeys = sortKeys[models.ConfigurationClass]{
	"id":         func(o models.ConfigurationClass) any { return o.ID },
	"class_name": func(o models.ConfigurationClass) any { return o.ClassName },
	"path":       func(o models.ConfigurationClass) any { return o.Path },
	"created":    func(o models.ConfigurationClass) any { return timeKey(o.CreatedAt) },
	"modified":   func(o models.ConfigurationClass) any { return timeKey(o.UpdatedAt) },
}

func (s *Store) ListConfigurationClasses(ctx context.Context, f store.ClassFilter, opts store.ListOptions) ([]models.ConfigurationClass, int, error) {
	txn, done := s.read(ctx)
	defer done()
	rows, err := all[models.ConfigurationClass](txn, tableClass, "id")
	if err != nil {
		return nil, 0, err
	}
	out := rows[:0]
	for _, r := range rows {
		if !matchName(opts, r.ClassName) {
			continue
		}
		if len(f.ModuleIDs) > 0 && !containsID(f.ModuleIDs, r.ModuleID) {
			continue
		}
		if f.Path != "" && r.Path != f.Path {
			continue
		}
		if f.PathPrefix != "" && !strings.HasPrefix(r.Path, f.PathPrefix) {
			continue
		}
		out = append(out, r)
	}
	items, total := page(out, opts, classSortKeys)
	return items, total, nil
}

func (s *Store) GetConfigurationClass(ctx context.Context, id int64) (*models.ConfigurationClass, error) {
	txn, done := s.read(ctx)
	defer done()
	return first[models.ConfigurationClass](txn, tableClass, "id", id)
}

// uniqueClass enforces (module, class_name) uniqueness
func uniqueClass(txn *memdb.Txn, c *models.ConfigurationClass) error {
	rows, err := all[models.ConfigurationClass](txn, tableClass, "module", c.ModuleID)
	if err != nil {
		return err
	}
	for _, r := range rows {
		if r.ID != c.ID && r.ClassName == c.ClassName {
			return store.Conflict("module, class_name")
		}
	}
	return nil
}

func (s *Store) CreateConfigurationClass(ctx context.Context, c *models.ConfigurationClass) error {
	return s.write(ctx, func(txn *memdb.Txn) error {
		if err := uniqueClass(txn, c); err != nil {
			return err
		}
		c.ID = s.nextID(tableClass)
		c.CreatedAt = s.now()
		c.UpdatedAt = c.CreatedAt
		return insert(txn, tableClass, *c)
	})
}

func (s *Store) UpdateConfigurationClass(ctx context.Context, c *models.ConfigurationClass) error {
	return s.write(ctx, func(txn *memdb.Txn) error {
		cur, err := first[models.ConfigurationClass](txn, tableClass, "id", c.ID)
		if err != nil {
			return err
		}
		if err := uniqueClass(txn, c); err != nil {
			return err
		}
		c.CreatedAt = cur.CreatedAt
		c.UpdatedAt = s.now()
		return insert(txn, tableClass, *c)
	})
}

func (s *Store) DeleteConfigurationClass(ctx context.Context, id int64) error {
	return s.write(ctx, func(txn *memdb.Txn) error {
		objects, err := all[models.BaseObject](txn, tableObject, "id")
		if err != nil {
			return err
		}
		for _, o := range objects {
			if refersTo(o.ConfigurationPathID, id) {
				return errReferenced
			}
		}
		return remove[models.ConfigurationClass](txn, tableClass, id)
	})
}
