package inventory

import (
	"context"
	"strings"

	"ralph-api/internal/models"
	"ralph-api/internal/store"
)

func (inv *Inventory) ListConfigurationModules(ctx context.Context, f store.ModuleFilter, opts store.ListOptions) ([]models.ConfigurationModule, int, error) {
	return inv.store.ListConfigurationModules(ctx, f, opts)
}

func (inv *Inventory) GetConfigurationModule(ctx context.Context, id int64) (*models.ConfigurationModule, error) {
	return inv.store.GetConfigurationModule(ctx, id)
}

// ChildModules returns the direct children of a module
func (inv *Inventory) ChildModules(ctx context.Context, id int64) ([]models.ConfigurationModule, error) {
	return store.All(func(opts store.ListOptions) ([]models.ConfigurationModule, int, error) {
		return inv.store.ListConfigurationModules(ctx, store.ModuleFilter{ParentID: &id}, opts)
	})
}

func (inv *Inventory) CreateConfigurationModule(ctx context.Context, req models.ConfigurationModuleRequest) (*models.ConfigurationModule, error) {
	m := &models.ConfigurationModule{}
	err := inv.store.WithTx(ctx, func(ctx context.Context) error {
		verr := &store.ValidationError{}
		requireString("name", req.Name, verr)
		if err := inv.applyModule(ctx, m, req, verr); err != nil {
			return err
		}
		return inv.store.CreateConfigurationModule(ctx, m)
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// UpdateConfigurationModule applies a partial update. A rename or a new
// parent recomputes the path of every class below the module.
func (inv *Inventory) UpdateConfigurationModule(ctx context.Context, id int64, req models.ConfigurationModuleRequest) (*models.ConfigurationModule, error) {
	var m *models.ConfigurationModule
	err := inv.store.WithTx(ctx, func(ctx context.Context) error {
		var err error
		if m, err = inv.store.GetConfigurationModule(ctx, id); err != nil {
			return err
		}
		oldName, oldParent := m.Name, m.ParentID
		verr := &store.ValidationError{}
		if req.Name != nil {
			requireString("name", req.Name, verr)
		}
		if err := inv.applyModule(ctx, m, req, verr); err != nil {
			return err
		}
		if err := inv.store.UpdateConfigurationModule(ctx, m); err != nil {
			return err
		}
		if m.Name != oldName || !sameRef(m.ParentID, oldParent) {
			return inv.recomputePaths(ctx, m.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (inv *Inventory) applyModule(ctx context.Context, m *models.ConfigurationModule, req models.ConfigurationModuleRequest, verr *store.ValidationError) error {
	checkStruct(req, verr)
	if req.Name != nil && strings.TrimSpace(*req.Name) != "" && !models.ConfigurationNamePattern.MatchString(strings.TrimSpace(*req.Name)) {
		verr.Add("name", msgInvalidName)
	}
	parent := m.ParentID
	if err := inv.applyOptionalRef(ctx, "configurationmodule", "parent", req.Parent, &parent, verr); err != nil {
		return err
	}
	if parent != nil && m.ID != 0 {
		cyclic, err := inv.moduleCycle(ctx, m.ID, *parent)
		if err != nil {
			return err
		}
		if cyclic {
			verr.Add("parent", "Module cannot be its own ancestor.")
		}
	}
	if err := inv.applyOptionalRef(ctx, string(models.CatalogTeam), "support_team", req.SupportTeam, &m.SupportTeamID, verr); err != nil {
		return err
	}
	if err := verr.Err(); err != nil {
		return err
	}
	m.ParentID = parent
	if req.Name != nil {
		m.Name = strings.TrimSpace(*req.Name)
	}
	return nil
}

// moduleCycle reports whether parent is id or one of its descendants
func (inv *Inventory) moduleCycle(ctx context.Context, id, parent int64) (bool, error) {
	seen := map[int64]bool{}
	for cur := &parent; cur != nil; {
		if *cur == id || seen[*cur] {
			return true, nil
		}
		seen[*cur] = true
		m, err := inv.store.GetConfigurationModule(ctx, *cur)
		if err != nil {
			return false, err
		}
		cur = m.ParentID
	}
	return false, nil
}

// modulePath returns the names from the root module down to id
func (inv *Inventory) modulePath(ctx context.Context, id int64) ([]string, error) {
	var names []string
	seen := map[int64]bool{}
	for cur := &id; cur != nil; {
		if seen[*cur] {
			break
		}
		seen[*cur] = true
		m, err := inv.store.GetConfigurationModule(ctx, *cur)
		if err != nil {
			return nil, err
		}
		names = append([]string{m.Name}, names...)
		cur = m.ParentID
	}
	return names, nil
}

// ClassPath joins the module ancestry and the class name
func (inv *Inventory) ClassPath(ctx context.Context, moduleID int64, className string) (string, error) {
	names, err := inv.modulePath(ctx, moduleID)
	if err != nil {
		return "", err
	}
	return strings.Join(append(names, className), inv.separator), nil
}

// subtree returns id and the ids of every module below it
func (inv *Inventory) subtree(ctx context.Context, id int64) ([]int64, error) {
	out := []int64{id}
	for i := 0; i < len(out); i++ {
		children, err := inv.ChildModules(ctx, out[i])
		if err != nil {
			return nil, err
		}
		for _, c := range children {
			out = append(out, c.ID)
		}
	}
	return out, nil
}

func (inv *Inventory) recomputePaths(ctx context.Context, moduleID int64) error {
	ids, err := inv.subtree(ctx, moduleID)
	if err != nil {
		return err
	}
	classes, err := store.All(func(opts store.ListOptions) ([]models.ConfigurationClass, int, error) {
		return inv.store.ListConfigurationClasses(ctx, store.ClassFilter{ModuleIDs: ids}, opts)
	})
	if err != nil {
		return err
	}
	for i := range classes {
		c := &classes[i]
		path, err := inv.ClassPath(ctx, c.ModuleID, c.ClassName)
		if err != nil {
			return err
		}
		if path == c.Path {
			continue
		}
		c.Path = path
		if err := inv.store.UpdateConfigurationClass(ctx, c); err != nil {
			return err
		}
	}
	inv.log.WithField("module_id", moduleID).WithField("classes", len(classes)).Debug("configuration paths recomputed")
	return nil
}

func (inv *Inventory) DeleteConfigurationModule(ctx context.Context, id int64) error {
	return inv.store.DeleteConfigurationModule(ctx, id)
}

func (inv *Inventory) ListConfigurationClasses(ctx context.Context, f store.ClassFilter, opts store.ListOptions) ([]models.ConfigurationClass, int, error) {
	return inv.store.ListConfigurationClasses(ctx, f, opts)
}

func (inv *Inventory) GetConfigurationClass(ctx context.Context, id int64) (*models.ConfigurationClass, error) {
	return inv.store.GetConfigurationClass(ctx, id)
}

func (inv *Inventory) CreateConfigurationClass(ctx context.Context, req models.ConfigurationClassRequest) (*models.ConfigurationClass, error) {
	c := &models.ConfigurationClass{}
	err := inv.store.WithTx(ctx, func(ctx context.Context) error {
		verr := &store.ValidationError{}
		requireString("class_name", req.ClassName, verr)
		if req.Module == nil {
			verr.Add("module", msgRequired)
		}
		if err := inv.applyClass(ctx, c, req, verr); err != nil {
			return err
		}
		return inv.store.CreateConfigurationClass(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (inv *Inventory) UpdateConfigurationClass(ctx context.Context, id int64, req models.ConfigurationClassRequest) (*models.ConfigurationClass, error) {
	var c *models.ConfigurationClass
	err := inv.store.WithTx(ctx, func(ctx context.Context) error {
		var err error
		if c, err = inv.store.GetConfigurationClass(ctx, id); err != nil {
			return err
		}
		verr := &store.ValidationError{}
		if req.ClassName != nil {
			requireString("class_name", req.ClassName, verr)
		}
		if err := inv.applyClass(ctx, c, req, verr); err != nil {
			return err
		}
		return inv.store.UpdateConfigurationClass(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (inv *Inventory) applyClass(ctx context.Context, c *models.ConfigurationClass, req models.ConfigurationClassRequest, verr *store.ValidationError) error {
	checkStruct(req, verr)
	if req.ClassName != nil && strings.TrimSpace(*req.ClassName) != "" && !models.ConfigurationNamePattern.MatchString(strings.TrimSpace(*req.ClassName)) {
		verr.Add("class_name", msgInvalidName)
	}
	if req.Module != nil {
		id, ok, err := inv.resolveField(ctx, "configurationmodule", "module", *req.Module, verr)
		if err != nil {
			return err
		}
		if ok {
			c.ModuleID = id
		}
	}
	if err := verr.Err(); err != nil {
		return err
	}
	if req.ClassName != nil {
		c.ClassName = strings.TrimSpace(*req.ClassName)
	}
	path, err := inv.ClassPath(ctx, c.ModuleID, c.ClassName)
	if err != nil {
		return err
	}
	c.Path = path
	return nil
}

func (inv *Inventory) DeleteConfigurationClass(ctx context.Context, id int64) error {
	return inv.store.DeleteConfigurationClass(ctx, id)
}

func sameRef(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
