package memory

import (
	"context"

	"github.com/hashicorp/go-memdb"

	"ralph-api/internal/models"
	"ralph-api/internal/store"
)

var namedSortKeys = sortKeys[models.NamedObject]{
	"id":       func(o models.NamedObject) any { return o.ID },
	"name":     func(o models.NamedObject) any { return o.Name },
	"created":  func(o models.NamedObject) any { return timeKey(o.CreatedAt) },
	"modified": func(o models.NamedObject) any { return timeKey(o.UpdatedAt) },
}

func (s *Store) ListNamed(ctx context.Context, c models.Catalog, opts store.ListOptions) ([]models.NamedObject, int, error) {
	txn, done := s.read(ctx)
	defer done()
	rows, err := all[models.NamedObject](txn, string(c), "id")
	if err != nil {
		return nil, 0, err
	}
	out := rows[:0]
	for _, r := range rows {
		if matchName(opts, r.Name) {
			out = append(out, r)
		}
	}
	items, total := page(out, opts, namedSortKeys)
	return items, total, nil
}

func (s *Store) GetNamed(ctx context.Context, c models.Catalog, id int64) (*models.NamedObject, error) {
	txn, done := s.read(ctx)
	defer done()
	return first[models.NamedObject](txn, string(c), "id", id)
}

func (s *Store) CreateNamed(ctx context.Context, c models.Catalog, obj *models.NamedObject) error {
	return s.write(ctx, func(txn *memdb.Txn) error {
		if err := uniqueName(txn, string(c), obj.Name, 0); err != nil {
			return err
		}
		obj.ID = s.nextID(string(c))
		obj.CreatedAt = s.now()
		obj.UpdatedAt = obj.CreatedAt
		return insert(txn, string(c), *obj)
	})
}

func (s *Store) UpdateNamed(ctx context.Context, c models.Catalog, obj *models.NamedObject) error {
	return s.write(ctx, func(txn *memdb.Txn) error {
		cur, err := first[models.NamedObject](txn, string(c), "id", obj.ID)
		if err != nil {
			return err
		}
		if err := uniqueName(txn, string(c), obj.Name, obj.ID); err != nil {
			return err
		}
		obj.CreatedAt = cur.CreatedAt
		obj.UpdatedAt = s.now()
		return insert(txn, string(c), *obj)
	})
}

func (s *Store) DeleteNamed(ctx context.Context, c models.Catalog, id int64) error {
	return s.write(ctx, func(txn *memdb.Txn) error {
		if _, err := first[models.NamedObject](txn, string(c), "id", id); err != nil {
			return err
		}
		referenced, err := s.namedReferenced(txn, c, id)
		if err != nil {
			return err
		}
		if referenced {
			return errReferenced
		}
		return remove[models.NamedObject](txn, string(c), id)
	})
}

func (s *Store) namedReferenced(txn *memdb.Txn, c models.Catalog, id int64) (bool, error) {
	switch c {
	case models.CatalogEnvironment:
		return objectsReference(txn, "environment", id)
	case models.CatalogManufacturer:
		rows, err := all[models.AssetModel](txn, tableAssetModel, "id")
		if err != nil {
			return false, err
		}
		for _, m := range rows {
			if refersTo(m.ManufacturerID, id) {
				return true, nil
			}
		}
	case models.CatalogBusinessSegment:
		rows, err := all[models.ProfitCenter](txn, tableProfitCenter, "id")
		if err != nil {
			return false, err
		}
		for _, pc := range rows {
			if refersTo(pc.BusinessSegmentID, id) {
				return true, nil
			}
		}
	case models.CatalogTeam:
		services, err := all[models.Service](txn, tableService, "id")
		if err != nil {
			return false, err
		}
		for _, svc := range services {
			if refersTo(svc.SupportTeamID, id) {
				return true, nil
			}
		}
		modules, err := all[models.ConfigurationModule](txn, tableModule, "id")
		if err != nil {
			return false, err
		}
		for _, m := range modules {
			if refersTo(m.SupportTeamID, id) {
				return true, nil
			}
		}
	}
	return false, nil
}

// uniqueName fails with a name conflict when another row of table uses name
func uniqueName(txn *memdb.Txn, table, name string, self int64) error {
	it, err := txn.Get(table, "name", name)
	if err != nil {
		return err
	}
	for raw := it.Next(); raw != nil; raw = it.Next() {
		if idOf(raw) != self {
			return store.Conflict("name")
		}
	}
	return nil
}

func idOf(raw any) int64 {
	switch v := raw.(type) {
	case *models.NamedObject:
		return v.ID
	case *models.ProfitCenter:
		return v.ID
	case *models.Category:
		return v.ID
	case *models.AssetModel:
		return v.ID
	case *models.Service:
		return v.ID
	case *models.User:
		return v.ID
	case *models.ConfigurationModule:
		return v.ID
	case *models.Ethernet:
		return v.ID
	case *models.IPAddress:
		return v.ID
	}
	return 0
}

var profitCenterSortKeys = sortKeys[models.ProfitCenter]{
	"id":       func(o models.ProfitCenter) any { return o.ID },
	"name":     func(o models.ProfitCenter) any { return o.Name },
	"created":  func(o models.ProfitCenter) any { return timeKey(o.CreatedAt) },
	"modified": func(o models.ProfitCenter) any { return timeKey(o.UpdatedAt) },
}

func (s *Store) ListProfitCenters(ctx context.Context, opts store.ListOptions) ([]models.ProfitCenter, int, error) {
	txn, done := s.read(ctx)
	defer done()
	rows, err := all[models.ProfitCenter](txn, tableProfitCenter, "id")
	if err != nil {
		return nil, 0, err
	}
	out := rows[:0]
	for _, r := range rows {
		if matchName(opts, r.Name) {
			out = append(out, r)
		}
	}
	items, total := page(out, opts, profitCenterSortKeys)
	return items, total, nil
}

func (s *Store) GetProfitCenter(ctx context.Context, id int64) (*models.ProfitCenter, error) {
	txn, done := s.read(ctx)
	defer done()
	return first[models.ProfitCenter](txn, tableProfitCenter, "id", id)
}

func (s *Store) CreateProfitCenter(ctx context.Context, pc *models.ProfitCenter) error {
	return s.write(ctx, func(txn *memdb.Txn) error {
		if err := uniqueName(txn, tableProfitCenter, pc.Name, 0); err != nil {
			return err
		}
		pc.ID = s.nextID(tableProfitCenter)
		pc.CreatedAt = s.now()
		pc.UpdatedAt = pc.CreatedAt
		return insert(txn, tableProfitCenter, *pc)
	})
}

func (s *Store) UpdateProfitCenter(ctx context.Context, pc *models.ProfitCenter) error {
	return s.write(ctx, func(txn *memdb.Txn) error {
		cur, err := first[models.ProfitCenter](txn, tableProfitCenter, "id", pc.ID)
		if err != nil {
			return err
		}
		if err := uniqueName(txn, tableProfitCenter, pc.Name, pc.ID); err != nil {
			return err
		}
		pc.CreatedAt = cur.CreatedAt
		pc.UpdatedAt = s.now()
		return insert(txn, tableProfitCenter, *pc)
	})
}

func (s *Store) DeleteProfitCenter(ctx context.Context, id int64) error {
	return s.write(ctx, func(txn *memdb.Txn) error {
		services, err := all[models.Service](txn, tableService, "id")
		if err != nil {
			return err
		}
		for _, svc := range services {
			if refersTo(svc.ProfitCenterID, id) {
				return errReferenced
			}
		}
		return remove[models.ProfitCenter](txn, tableProfitCenter, id)
	})
}

var categorySortKeys = sortKeys[models.Category]{
	"id":       func(o models.Category) any { return o.ID },
	"name":     func(o models.Category) any { return o.Name },
	"code":     func(o models.Category) any { return o.Code },
	"created":  func(o models.Category) any { return timeKey(o.CreatedAt) },
	"modified": func(o models.Category) any { return timeKey(o.UpdatedAt) },
}

func (s *Store) ListCategories(ctx context.Context, opts store.ListOptions) ([]models.Category, int, error) {
	txn, done := s.read(ctx)
	defer done()
	rows, err := all[models.Category](txn, tableCategory, "id")
	if err != nil {
		return nil, 0, err
	}
	out := rows[:0]
	for _, r := range rows {
		if matchName(opts, r.Name) {
			out = append(out, r)
		}
	}
	items, total := page(out, opts, categorySortKeys)
	return items, total, nil
}

func (s *Store) GetCategory(ctx context.Context, id int64) (*models.Category, error) {
	txn, done := s.read(ctx)
	defer done()
	return first[models.Category](txn, tableCategory, "id", id)
}

func (s *Store) CreateCategory(ctx context.Context, c *models.Category) error {
	return s.write(ctx, func(txn *memdb.Txn) error {
		if err := uniqueName(txn, tableCategory, c.Name, 0); err != nil {
			return err
		}
		c.ID = s.nextID(tableCategory)
		c.CreatedAt = s.now()
		c.UpdatedAt = c.CreatedAt
		return insert(txn, tableCategory, *c)
	})
}

func (s *Store) UpdateCategory(ctx context.Context, c *models.Category) error {
	return s.write(ctx, func(txn *memdb.Txn) error {
		cur, err := first[models.Category](txn, tableCategory, "id", c.ID)
		if err != nil {
			return err
		}
		if err := uniqueName(txn, tableCategory, c.Name, c.ID); err != nil {
			return err
		}
		c.CreatedAt = cur.CreatedAt
		c.UpdatedAt = s.now()
		return insert(txn, tableCategory, *c)
	})
}

func (s *Store) DeleteCategory(ctx context.Context, id int64) error {
	return s.write(ctx, func(txn *memdb.Txn) error {
		cats, err := all[models.Category](txn, tableCategory, "id")
		if err != nil {
			return err
		}
		for _, c := range cats {
			if refersTo(c.ParentID, id) {
				return errReferenced
			}
		}
		assetModels, err := all[models.AssetModel](txn, tableAssetModel, "id")
		if err != nil {
			return err
		}
		for _, m := range assetModels {
			if refersTo(m.CategoryID, id) {
				return errReferenced
			}
		}
		return remove[models.Category](txn, tableCategory, id)
	})
}

var assetModelSortKeys = sortKeys[models.AssetModel]{
	"id":       func(o models.AssetModel) any { return o.ID },
	"name":     func(o models.AssetModel) any { return o.Name },
	"type":     func(o models.AssetModel) any { return int64(o.Type) },
	"created":  func(o models.AssetModel) any { return timeKey(o.CreatedAt) },
	"modified": func(o models.AssetModel) any { return timeKey(o.UpdatedAt) },
}

func (s *Store) ListAssetModels(ctx context.Context, f store.AssetModelFilter, opts store.ListOptions) ([]models.AssetModel, int, error) {
	txn, done := s.read(ctx)
	defer done()
	rows, err := all[models.AssetModel](txn, tableAssetModel, "id")
	if err != nil {
		return nil, 0, err
	}
	out := rows[:0]
	for _, r := range rows {
		if !matchName(opts, r.Name) {
			continue
		}
		if f.Type != 0 && r.Type != f.Type {
			continue
		}
		if f.ManufacturerID != nil && !sameID(r.ManufacturerID, f.ManufacturerID) {
			continue
		}
		if f.CategoryID != nil && !sameID(r.CategoryID, f.CategoryID) {
			continue
		}
		out = append(out, r)
	}
	items, total := page(out, opts, assetModelSortKeys)
	return items, total, nil
}

func (s *Store) GetAssetModel(ctx context.Context, id int64) (*models.AssetModel, error) {
	txn, done := s.read(ctx)
	defer done()
	return first[models.AssetModel](txn, tableAssetModel, "id", id)
}

func (s *Store) CreateAssetModel(ctx context.Context, m *models.AssetModel) error {
	return s.write(ctx, func(txn *memdb.Txn) error {
		if err := uniqueName(txn, tableAssetModel, m.Name, 0); err != nil {
			return err
		}
		m.ID = s.nextID(tableAssetModel)
		m.CreatedAt = s.now()
		m.UpdatedAt = m.CreatedAt
		return insert(txn, tableAssetModel, *m)
	})
}

func (s *Store) UpdateAssetModel(ctx context.Context, m *models.AssetModel) error {
	return s.write(ctx, func(txn *memdb.Txn) error {
		cur, err := first[models.AssetModel](txn, tableAssetModel, "id", m.ID)
		if err != nil {
			return err
		}
		if err := uniqueName(txn, tableAssetModel, m.Name, m.ID); err != nil {
			return err
		}
		m.CreatedAt = cur.CreatedAt
		m.UpdatedAt = s.now()
		return insert(txn, tableAssetModel, *m)
	})
}

func (s *Store) DeleteAssetModel(ctx context.Context, id int64) error {
	return s.write(ctx, func(txn *memdb.Txn) error {
		if _, err := first[models.AssetModel](txn, tableAssetModel, "id", id); err != nil {
			return err
		}
		referenced, err := objectsReference(txn, "assetmodel", id)
		if err != nil {
			return err
		}
		if referenced {
			return errReferenced
		}
		return remove[models.AssetModel](txn, tableAssetModel, id)
	})
}
