package inventory

import (
	"context"
	"strings"

	"ralph-api/internal/models"
	"ralph-api/internal/store"
)

func (inv *Inventory) ListNamed(ctx context.Context, c models.Catalog, opts store.ListOptions) ([]models.NamedObject, int, error) {
	return inv.store.ListNamed(ctx, c, opts)
}

func (inv *Inventory) GetNamed(ctx context.Context, c models.Catalog, id int64) (*models.NamedObject, error) {
	return inv.store.GetNamed(ctx, c, id)
}

// CreateNamed adds a row to a named catalog
func (inv *Inventory) CreateNamed(ctx context.Context, c models.Catalog, req models.NamedObjectRequest) (*models.NamedObject, error) {
	verr := &store.ValidationError{}
	requireString("name", req.Name, verr)
	checkStruct(req, verr)
	if err := verr.Err(); err != nil {
		return nil, err
	}
	obj := &models.NamedObject{Name: strings.TrimSpace(*req.Name)}
	if err := inv.store.CreateNamed(ctx, c, obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// UpdateNamed applies a partial update to a named catalog row
func (inv *Inventory) UpdateNamed(ctx context.Context, c models.Catalog, id int64, req models.NamedObjectRequest) (*models.NamedObject, error) {
	obj, err := inv.store.GetNamed(ctx, c, id)
	if err != nil {
		return nil, err
	}
	verr := &store.ValidationError{}
	if req.Name != nil {
		requireString("name", req.Name, verr)
	}
	checkStruct(req, verr)
	if err := verr.Err(); err != nil {
		return nil, err
	}
	if req.Name != nil {
		obj.Name = strings.TrimSpace(*req.Name)
	}
	if err := inv.store.UpdateNamed(ctx, c, obj); err != nil {
		return nil, err
	}
	return obj, nil
}

func (inv *Inventory) DeleteNamed(ctx context.Context, c models.Catalog, id int64) error {
	return inv.store.DeleteNamed(ctx, c, id)
}

func (inv *Inventory) ListProfitCenters(ctx context.Context, opts store.ListOptions) ([]models.ProfitCenter, int, error) {
	return inv.store.ListProfitCenters(ctx, opts)
}

func (inv *Inventory) GetProfitCenter(ctx context.Context, id int64) (*models.ProfitCenter, error) {
	return inv.store.GetProfitCenter(ctx, id)
}

func (inv *Inventory) CreateProfitCenter(ctx context.Context, req models.ProfitCenterRequest) (*models.ProfitCenter, error) {
	verr := &store.ValidationError{}
	requireString("name", req.Name, verr)
	pc := &models.ProfitCenter{}
	if err := inv.applyProfitCenter(ctx, pc, req, verr); err != nil {
		return nil, err
	}
	if err := inv.store.CreateProfitCenter(ctx, pc); err != nil {
		return nil, err
	}
	return pc, nil
}

func (inv *Inventory) UpdateProfitCenter(ctx context.Context, id int64, req models.ProfitCenterRequest) (*models.ProfitCenter, error) {
	pc, err := inv.store.GetProfitCenter(ctx, id)
	if err != nil {
		return nil, err
	}
	verr := &store.ValidationError{}
	if req.Name != nil {
		requireString("name", req.Name, verr)
	}
	if err := inv.applyProfitCenter(ctx, pc, req, verr); err != nil {
		return nil, err
	}
	if err := inv.store.UpdateProfitCenter(ctx, pc); err != nil {
		return nil, err
	}
	return pc, nil
}

func (inv *Inventory) applyProfitCenter(ctx context.Context, pc *models.ProfitCenter, req models.ProfitCenterRequest, verr *store.ValidationError) error {
	checkStruct(req, verr)
	if err := inv.applyOptionalRef(ctx, string(models.CatalogBusinessSegment), "business_segment", req.BusinessSegment, &pc.BusinessSegmentID, verr); err != nil {
		return err
	}
	if err := verr.Err(); err != nil {
		return err
	}
	if req.Name != nil {
		pc.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		pc.Description = *req.Description
	}
	return nil
}

func (inv *Inventory) DeleteProfitCenter(ctx context.Context, id int64) error {
	return inv.store.DeleteProfitCenter(ctx, id)
}

func (inv *Inventory) ListCategories(ctx context.Context, opts store.ListOptions) ([]models.Category, int, error) {
	return inv.store.ListCategories(ctx, opts)
}

func (inv *Inventory) GetCategory(ctx context.Context, id int64) (*models.Category, error) {
	return inv.store.GetCategory(ctx, id)
}

func (inv *Inventory) CreateCategory(ctx context.Context, req models.CategoryRequest) (*models.Category, error) {
	verr := &store.ValidationError{}
	requireString("name", req.Name, verr)
	cat := &models.Category{DefaultDepreciationRate: models.DefaultDepreciationRate}
	if err := inv.applyCategory(ctx, cat, req, verr); err != nil {
		return nil, err
	}
	if err := inv.store.CreateCategory(ctx, cat); err != nil {
		return nil, err
	}
	return cat, nil
}

func (inv *Inventory) UpdateCategory(ctx context.Context, id int64, req models.CategoryRequest) (*models.Category, error) {
	cat, err := inv.store.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}
	verr := &store.ValidationError{}
	if req.Name != nil {
		requireString("name", req.Name, verr)
	}
	if err := inv.applyCategory(ctx, cat, req, verr); err != nil {
		return nil, err
	}
	if err := inv.store.UpdateCategory(ctx, cat); err != nil {
		return nil, err
	}
	return cat, nil
}

func (inv *Inventory) applyCategory(ctx context.Context, cat *models.Category, req models.CategoryRequest, verr *store.ValidationError) error {
	checkStruct(req, verr)
	parent := cat.ParentID
	if err := inv.applyOptionalRef(ctx, "category", "parent", req.Parent, &parent, verr); err != nil {
		return err
	}
	if parent != nil && cat.ID != 0 {
		cyclic, err := inv.categoryCycle(ctx, cat.ID, *parent)
		if err != nil {
			return err
		}
		if cyclic {
			verr.Add("parent", "Category cannot be its own ancestor.")
		}
	}
	if err := verr.Err(); err != nil {
		return err
	}
	cat.ParentID = parent
	if req.Name != nil {
		cat.Name = strings.TrimSpace(*req.Name)
	}
	if req.Code != nil {
		cat.Code = *req.Code
	}
	if req.ImeiRequired != nil {
		cat.ImeiRequired = *req.ImeiRequired
	}
	if req.ShowBuyoutDate != nil {
		cat.ShowBuyoutDate = *req.ShowBuyoutDate
	}
	if req.DefaultDepreciationRate != nil {
		cat.DefaultDepreciationRate = *req.DefaultDepreciationRate
	}
	return nil
}

// categoryCycle reports whether parent is id or one of its descendants
func (inv *Inventory) categoryCycle(ctx context.Context, id, parent int64) (bool, error) {
	seen := map[int64]bool{}
	for cur := &parent; cur != nil; {
		if *cur == id {
			return true, nil
		}
		if seen[*cur] {
			return true, nil
		}
		seen[*cur] = true
		c, err := inv.store.GetCategory(ctx, *cur)
		if err != nil {
			return false, err
		}
		cur = c.ParentID
	}
	return false, nil
}

func (inv *Inventory) DeleteCategory(ctx context.Context, id int64) error {
	return inv.store.DeleteCategory(ctx, id)
}

func (inv *Inventory) ListAssetModels(ctx context.Context, f store.AssetModelFilter, opts store.ListOptions) ([]models.AssetModel, int, error) {
	return inv.store.ListAssetModels(ctx, f, opts)
}

func (inv *Inventory) GetAssetModel(ctx context.Context, id int64) (*models.AssetModel, error) {
	return inv.store.GetAssetModel(ctx, id)
}

func (inv *Inventory) CreateAssetModel(ctx context.Context, req models.AssetModelRequest) (*models.AssetModel, error) {
	verr := &store.ValidationError{}
	requireString("name", req.Name, verr)
	if req.Type == nil {
		verr.Add("type", msgRequired)
	}
	m := &models.AssetModel{HeightOfDevice: 1}
	if err := inv.applyAssetModel(ctx, m, req, verr); err != nil {
		return nil, err
	}
	if err := inv.store.CreateAssetModel(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (inv *Inventory) UpdateAssetModel(ctx context.Context, id int64, req models.AssetModelRequest) (*models.AssetModel, error) {
	m, err := inv.store.GetAssetModel(ctx, id)
	if err != nil {
		return nil, err
	}
	verr := &store.ValidationError{}
	if req.Name != nil {
		requireString("name", req.Name, verr)
	}
	if err := inv.applyAssetModel(ctx, m, req, verr); err != nil {
		return nil, err
	}
	if err := inv.store.UpdateAssetModel(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (inv *Inventory) applyAssetModel(ctx context.Context, m *models.AssetModel, req models.AssetModelRequest, verr *store.ValidationError) error {
	checkStruct(req, verr)
	if req.Type != nil && !req.Type.Valid() {
		verr.Add("type", msgInvalidChoice)
	}
	if err := inv.applyOptionalRef(ctx, string(models.CatalogManufacturer), "manufacturer", req.Manufacturer, &m.ManufacturerID, verr); err != nil {
		return err
	}
	if err := inv.applyOptionalRef(ctx, "category", "category", req.Category, &m.CategoryID, verr); err != nil {
		return err
	}
	if err := verr.Err(); err != nil {
		return err
	}
	if req.Name != nil {
		m.Name = strings.TrimSpace(*req.Name)
	}
	if req.Type != nil {
		m.Type = *req.Type
	}
	if req.HeightOfDevice != nil {
		m.HeightOfDevice = *req.HeightOfDevice
	}
	if req.CoresCount != nil {
		m.CoresCount = *req.CoresCount
	}
	if req.PowerConsumption != nil {
		m.PowerConsumption = *req.PowerConsumption
	}
	return nil
}

func (inv *Inventory) DeleteAssetModel(ctx context.Context, id int64) error {
	return inv.store.DeleteAssetModel(ctx, id)
}
