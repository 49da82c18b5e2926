package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"ralph-api/internal/kinds"
	"ralph-api/internal/models"
	"ralph-api/internal/store"
)

// ErrReadOnly is returned for writes to a kind derived by the inventory
var ErrReadOnly = errors.New("read-only kind")

// ListObjects runs q and decorates the page for rendering
func (inv *Inventory) ListObjects(ctx context.Context, q store.ObjectQuery) ([]models.BaseObject, int, error) {
	items, total, err := inv.store.ListObjects(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	if err := inv.decorate(ctx, items); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// GetObject returns a decorated object. A non-empty kind must match.
func (inv *Inventory) GetObject(ctx context.Context, kind string, id int64) (*models.BaseObject, error) {
	o, err := inv.store.GetObject(ctx, id)
	if err != nil {
		return nil, err
	}
	if kind != "" && o.Kind != kind {
		return nil, store.ErrNotFound
	}
	objs := []models.BaseObject{*o}
	if err := inv.decorate(ctx, objs); err != nil {
		return nil, err
	}
	return &objs[0], nil
}

// CreateObject validates req against the kind and stores a new object
func (inv *Inventory) CreateObject(ctx context.Context, k *kinds.Kind, req models.BaseObjectRequest) (*models.BaseObject, error) {
	if k.ReadOnly {
		return nil, ErrReadOnly
	}
	o := &models.BaseObject{Kind: k.Name, Attrs: map[string]any{}}
	err := inv.store.WithTx(ctx, func(ctx context.Context) error {
		verr := &store.ValidationError{}
		if err := inv.applyCommon(ctx, o, req, verr); err != nil {
			return err
		}
		if err := inv.applyAttrs(ctx, k, o, req.Attrs, true, verr); err != nil {
			return err
		}
		if err := verr.Err(); err != nil {
			return err
		}
		return inv.store.CreateObject(ctx, o)
	})
	if err != nil {
		return nil, err
	}
	return inv.GetObject(ctx, k.Name, o.ID)
}

// UpdateObject applies a partial update to an object of kind k
func (inv *Inventory) UpdateObject(ctx context.Context, k *kinds.Kind, id int64, req models.BaseObjectRequest) (*models.BaseObject, error) {
	if k.ReadOnly {
		return nil, ErrReadOnly
	}
	err := inv.store.WithTx(ctx, func(ctx context.Context) error {
		o, err := inv.store.GetObject(ctx, id)
		if err != nil {
			return err
		}
		if o.Kind != k.Name {
			return store.ErrNotFound
		}
		if o.Attrs == nil {
			o.Attrs = map[string]any{}
		}
		verr := &store.ValidationError{}
		if err := inv.applyCommon(ctx, o, req, verr); err != nil {
			return err
		}
		if err := inv.applyAttrs(ctx, k, o, req.Attrs, false, verr); err != nil {
			return err
		}
		if err := verr.Err(); err != nil {
			return err
		}
		return inv.store.UpdateObject(ctx, o)
	})
	if err != nil {
		return nil, err
	}
	return inv.GetObject(ctx, k.Name, id)
}

// DeleteObject removes an object of kind k. Objects owning an ethernet
// exposed in DHCP are protected.
func (inv *Inventory) DeleteObject(ctx context.Context, k *kinds.Kind, id int64) error {
	if k.ReadOnly {
		return ErrReadOnly
	}
	return inv.store.WithTx(ctx, func(ctx context.Context) error {
		o, err := inv.store.GetObject(ctx, id)
		if err != nil {
			return err
		}
		if o.Kind != k.Name {
			return store.ErrNotFound
		}
		eths, err := store.All(func(opts store.ListOptions) ([]models.Ethernet, int, error) {
			return inv.store.ListEthernets(ctx, store.EthernetFilter{BaseObjectIDs: []int64{id}}, opts)
		})
		if err != nil {
			return err
		}
		for _, e := range eths {
			exposed, err := inv.ethernetExposed(ctx, e.ID)
			if err != nil {
				return err
			}
			if exposed {
				return store.Protected(msgObjectExposed)
			}
		}
		return inv.store.DeleteObject(ctx, id)
	})
}

func (inv *Inventory) applyCommon(ctx context.Context, o *models.BaseObject, req models.BaseObjectRequest, verr *store.ValidationError) error {
	parent := o.ParentID
	if err := inv.applyOptionalRef(ctx, "baseobject", "parent", req.Parent, &parent, verr); err != nil {
		return err
	}
	if parent != nil && req.Parent.Set {
		cyclic, err := inv.objectCycle(ctx, o.ID, *parent)
		if err != nil {
			return err
		}
		if cyclic {
			verr.Add("parent", "Object cannot be its own parent.")
		}
	}
	o.ParentID = parent
	if err := inv.applyOptionalRef(ctx, kinds.ServiceEnvironment, "service_env", req.ServiceEnv, &o.ServiceEnvID, verr); err != nil {
		return err
	}
	if err := inv.applyOptionalRef(ctx, "configurationclass", "configuration_path", req.ConfigurationPath, &o.ConfigurationPathID, verr); err != nil {
		return err
	}
	if req.Remarks != nil {
		o.Remarks = *req.Remarks
	}
	if req.Tags != nil {
		o.Tags = normalizeTags(*req.Tags)
	}
	if req.CustomFields != nil {
		cf := models.CustomFields{}
		for key, v := range *req.CustomFields {
			key = strings.TrimSpace(key)
			if key == "" {
				verr.Add("custom_fields", "Custom field name may not be blank.")
				continue
			}
			cf[key] = v
		}
		o.CustomFields = cf
	}
	return nil
}

// objectCycle reports whether parent is id or one of its descendants
func (inv *Inventory) objectCycle(ctx context.Context, id, parent int64) (bool, error) {
	if id == 0 {
		return false, nil
	}
	seen := map[int64]bool{}
	for cur := &parent; cur != nil; {
		if *cur == id || seen[*cur] {
			return true, nil
		}
		seen[*cur] = true
		o, err := inv.store.GetObject(ctx, *cur)
		if err != nil {
			return false, err
		}
		cur = o.ParentID
	}
	return false, nil
}

func normalizeTags(tags []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// applyAttrs decodes and validates the subtype attributes of a request.
// On create, absent fields take their default and required fields must be
// present.
func (inv *Inventory) applyAttrs(ctx context.Context, k *kinds.Kind, o *models.BaseObject, raw map[string]json.RawMessage, create bool, verr *store.ValidationError) error {
	for i := range k.Fields {
		f := &k.Fields[i]
		member, present := raw[f.Name]
		if !present {
			if create {
				if f.Default != nil {
					o.Attrs[f.Name] = f.Default
				} else if f.Required {
					verr.Add(f.Name, msgRequired)
				}
			}
			continue
		}
		v, err := f.Decode(member)
		if err != nil {
			verr.Add(f.Name, err.Error())
			continue
		}
		if v == nil {
			if f.Required {
				verr.Add(f.Name, "This field may not be null.")
				continue
			}
			delete(o.Attrs, f.Name)
			continue
		}
		switch f.Type {
		case kinds.Reference:
			ref := v.(models.Ref)
			id, ok, err := inv.resolveField(ctx, f.Target, f.Name, ref, verr)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			if f.Target == "assetmodel" && k.ModelType.Valid() {
				m, err := inv.store.GetAssetModel(ctx, id)
				if err != nil {
					return err
				}
				if m.Type != k.ModelType {
					verr.Add(f.Name, fmt.Sprintf("Model must be of '%s' type.", k.ModelType))
					continue
				}
			}
			v = id
		case kinds.Text:
			s := strings.TrimSpace(v.(string))
			if s == "" && f.Required {
				verr.Add(f.Name, "This field may not be blank.")
				continue
			}
			if s != "" && !f.HasChoice(s) {
				verr.Add(f.Name, fmt.Sprintf("\"%s\" is not a valid choice.", s))
				continue
			}
			if s != "" {
				validateVar(f.Name, s, f.Validate, verr)
			}
			v = s
		case kinds.Int, kinds.Decimal:
			validateVar(f.Name, v, f.Validate, verr)
		}
		o.Attrs[f.Name] = v
	}
	return nil
}

// decorate fills the render summaries and the derived attributes of
// service environments
func (inv *Inventory) decorate(ctx context.Context, objs []models.BaseObject) error {
	c := &decorCache{
		inv:          inv,
		services:     map[int64]*models.Service{},
		environments: map[int64]*models.NamedObject{},
		envObjects:   map[int64]*models.BaseObject{},
		classes:      map[int64]*models.ConfigurationClass{},
	}
	for i := range objs {
		o := &objs[i]
		if o.Kind == kinds.ServiceEnvironment {
			if err := c.fillServiceEnv(ctx, o); err != nil {
				return err
			}
		}
		if o.ServiceEnvID != nil {
			sum, err := c.serviceEnvSummary(ctx, *o.ServiceEnvID)
			if err != nil {
				return err
			}
			o.ServiceEnv = sum
		}
		if o.ConfigurationPathID != nil {
			cls, err := c.class(ctx, *o.ConfigurationPathID)
			if err != nil {
				return err
			}
			if cls != nil {
				o.ConfigurationPath = &models.ConfigurationPathSummary{ID: cls.ID, Path: cls.Path}
			}
		}
	}
	return nil
}

type decorCache struct {
	inv          *Inventory
	services     map[int64]*models.Service
	environments map[int64]*models.NamedObject
	envObjects   map[int64]*models.BaseObject
	classes      map[int64]*models.ConfigurationClass
}

func (c *decorCache) service(ctx context.Context, id int64) (*models.Service, error) {
	if s, ok := c.services[id]; ok {
		return s, nil
	}
	s, err := c.inv.store.GetService(ctx, id)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	c.services[id] = s
	return s, nil
}

func (c *decorCache) environment(ctx context.Context, id int64) (*models.NamedObject, error) {
	if e, ok := c.environments[id]; ok {
		return e, nil
	}
	e, err := c.inv.store.GetNamed(ctx, models.CatalogEnvironment, id)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	c.environments[id] = e
	return e, nil
}

func (c *decorCache) class(ctx context.Context, id int64) (*models.ConfigurationClass, error) {
	if cls, ok := c.classes[id]; ok {
		return cls, nil
	}
	cls, err := c.inv.store.GetConfigurationClass(ctx, id)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	c.classes[id] = cls
	return cls, nil
}

func (c *decorCache) fillServiceEnv(ctx context.Context, o *models.BaseObject) error {
	if o.Attrs == nil {
		o.Attrs = map[string]any{}
	}
	se := serviceEnvOf(o)
	svc, err := c.service(ctx, se.ServiceID)
	if err != nil {
		return err
	}
	env, err := c.environment(ctx, se.EnvironmentID)
	if err != nil {
		return err
	}
	if svc != nil {
		o.Attrs[kinds.AttrServiceName] = svc.Name
		o.Attrs[kinds.AttrServiceUID] = svc.UID
	}
	if env != nil {
		o.Attrs[kinds.AttrEnvironmentName] = env.Name
	}
	return nil
}

func (c *decorCache) serviceEnvSummary(ctx context.Context, id int64) (*models.ServiceEnvSummary, error) {
	o, ok := c.envObjects[id]
	if !ok {
		var err error
		o, err = c.inv.store.GetObject(ctx, id)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		c.envObjects[id] = o
	}
	if o == nil {
		return nil, nil
	}
	se := serviceEnvOf(o)
	sum := &models.ServiceEnvSummary{ID: se.ID, ServiceID: se.ServiceID, EnvironmentID: se.EnvironmentID}
	svc, err := c.service(ctx, se.ServiceID)
	if err != nil {
		return nil, err
	}
	if svc != nil {
		sum.Service = svc.Name
		sum.ServiceUID = svc.UID
	}
	env, err := c.environment(ctx, se.EnvironmentID)
	if err != nil {
		return nil, err
	}
	if env != nil {
		sum.Environment = env.Name
	}
	return sum, nil
}
