package memory

import (
	"context"
	"strings"

	"github.com/hashicorp/go-memdb"
	"github.com/pkg/errors"

	"ralph-api/internal/filter"
	"ralph-api/internal/kinds"
	"ralph-api/internal/models"
	"ralph-api/internal/store"
)

var objectSortKeys = sortKeys[models.BaseObject]{
	"id":          func(o models.BaseObject) any { return o.ID },
	"object_type": func(o models.BaseObject) any { return o.Kind },
	"created":     func(o models.BaseObject) any { return timeKey(o.CreatedAt) },
	"modified":    func(o models.BaseObject) any { return timeKey(o.UpdatedAt) },
}

// objectValue returns the value a lookup on name compares against, and
// whether the object's kind has such a field at all
func objectValue(o *models.BaseObject, k *kinds.Kind, name string) (*kinds.Field, any, bool) {
	if f, ok := kinds.CommonField(name); ok {
		switch name {
		case "id":
			return f, o.ID, true
		case "parent":
			return f, ptrValue(o.ParentID), true
		case "remarks":
			return f, o.Remarks, true
		case "service_env":
			return f, ptrValue(o.ServiceEnvID), true
		case "configuration_path":
			return f, ptrValue(o.ConfigurationPathID), true
		}
	}
	f, ok := k.Field(name)
	if !ok {
		return nil, nil, false
	}
	return f, o.Attr(f.Name), true
}

func ptrValue(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func (s *Store) ListObjects(ctx context.Context, q store.ObjectQuery) ([]models.BaseObject, int, error) {
	txn, done := s.read(ctx)
	defer done()

	rows, err := all[models.BaseObject](txn, tableObject, "id")
	if err != nil {
		return nil, 0, err
	}

	var ipOwners map[int64]bool
	if q.IP != "" {
		if ipOwners, err = ipOwnerIDs(txn, q.IP); err != nil {
			return nil, 0, err
		}
	}
	var serviceEnvs, envEnvs map[int64]bool
	if q.Service != "" {
		if serviceEnvs, err = serviceEnvsOfService(txn, rows, q.Service); err != nil {
			return nil, 0, err
		}
	}
	if q.Environment != "" {
		if envEnvs, err = serviceEnvsOfEnvironment(txn, rows, q.Environment); err != nil {
			return nil, 0, err
		}
	}

	wantKind := map[string]bool{}
	for _, k := range q.Kinds {
		wantKind[k] = true
	}

	out := make([]models.BaseObject, 0, len(rows))
	for i := range rows {
		o := &rows[i]
		k, ok := kinds.Get(o.Kind)
		if !ok {
			continue
		}
		if len(wantKind) > 0 && !wantKind[o.Kind] {
			continue
		}
		if len(q.IDs) > 0 && !containsID(q.IDs, o.ID) {
			continue
		}
		if !matchLookups(o, k, q.Lookups) {
			continue
		}
		if !hasTags(o, q.Tags) {
			continue
		}
		if !hasCustomFields(o, q.CustomFields) {
			continue
		}
		if ipOwners != nil && !ipOwners[o.ID] {
			continue
		}
		if serviceEnvs != nil && (o.ServiceEnvID == nil || !serviceEnvs[*o.ServiceEnvID]) {
			continue
		}
		if envEnvs != nil && (o.ServiceEnvID == nil || !envEnvs[*o.ServiceEnvID]) {
			continue
		}
		if !matchObjectName(o, k, q.ListOptions) {
			continue
		}
		out = append(out, *o.Clone())
	}

	items, total := page(out, q.ListOptions, objectSortKeys)
	return items, total, nil
}

func matchLookups(o *models.BaseObject, k *kinds.Kind, lookups []store.Lookup) bool {
	for _, l := range lookups {
		f, have, ok := objectValue(o, k, l.Field)
		if !ok {
			return false
		}
		if !filter.Match(f, l.Op, have, l.Value) {
			return false
		}
	}
	return true
}

func hasTags(o *models.BaseObject, tags []string) bool {
	for _, want := range tags {
		found := false
		for _, t := range o.Tags {
			if t == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func hasCustomFields(o *models.BaseObject, want map[string]string) bool {
	for k, v := range want {
		if o.CustomFields[k] != v {
			return false
		}
	}
	return true
}

func matchObjectName(o *models.BaseObject, k *kinds.Kind, opts store.ListOptions) bool {
	if opts.Name != "" {
		f, have, ok := objectValue(o, k, "name")
		if !ok || !filter.Match(f, store.OpExact, have, opts.Name) {
			return false
		}
	}
	if opts.Query != "" {
		f, have, ok := objectValue(o, k, "name")
		if !ok || !filter.Match(f, store.OpIContains, have, opts.Query) {
			return false
		}
	}
	return true
}

// ipOwnerIDs returns the ids of objects owning an ethernet bound to address
func ipOwnerIDs(txn *memdb.Txn, address string) (map[int64]bool, error) {
	owners := map[int64]bool{}
	ips, err := all[models.IPAddress](txn, tableIPAddress, "address", address)
	if err != nil {
		return nil, err
	}
	for _, ip := range ips {
		if ip.EthernetID == nil {
			continue
		}
		eth, err := first[models.Ethernet](txn, tableEthernet, "id", *ip.EthernetID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		owners[eth.BaseObjectID] = true
	}
	return owners, nil
}

func serviceEnvsOfService(txn *memdb.Txn, objects []models.BaseObject, key string) (map[int64]bool, error) {
	services, err := all[models.Service](txn, tableService, "id")
	if err != nil {
		return nil, err
	}
	ids := map[int64]bool{}
	for _, svc := range services {
		if svc.UID == key || svc.Name == key {
			ids[svc.ID] = true
		}
	}
	return serviceEnvsWhere(objects, "service", ids), nil
}

func serviceEnvsOfEnvironment(txn *memdb.Txn, objects []models.BaseObject, name string) (map[int64]bool, error) {
	envs, err := all[models.NamedObject](txn, string(models.CatalogEnvironment), "name", name)
	if err != nil {
		return nil, err
	}
	ids := map[int64]bool{}
	for _, e := range envs {
		ids[e.ID] = true
	}
	return serviceEnvsWhere(objects, "environment", ids), nil
}

func serviceEnvsWhere(objects []models.BaseObject, attr string, ids map[int64]bool) map[int64]bool {
	out := map[int64]bool{}
	for i := range objects {
		o := &objects[i]
		if o.Kind != kinds.ServiceEnvironment {
			continue
		}
		if v, ok := o.IntAttr(attr); ok && ids[v] {
			out[o.ID] = true
		}
	}
	return out
}

// objectsReference reports whether any object attribute references the
// given row of target
func objectsReference(txn *memdb.Txn, target string, id int64) (bool, error) {
	objects, err := all[models.BaseObject](txn, tableObject, "id")
	if err != nil {
		return false, err
	}
	for i := range objects {
		o := &objects[i]
		k, ok := kinds.Get(o.Kind)
		if !ok {
			continue
		}
		for _, f := range k.Fields {
			if f.Type != kinds.Reference || f.Target != target {
				continue
			}
			if v, ok := o.IntAttr(f.Name); ok && v == id {
				return true, nil
			}
		}
	}
	return false, nil
}

func (s *Store) GetObject(ctx context.Context, id int64) (*models.BaseObject, error) {
	txn, done := s.read(ctx)
	defer done()
	o, err := first[models.BaseObject](txn, tableObject, "id", id)
	if err != nil {
		return nil, err
	}
	return o.Clone(), nil
}

// storable keeps only the attributes declared by the kind
func storable(o *models.BaseObject, k *kinds.Kind) models.BaseObject {
	c := o.Clone()
	attrs := make(map[string]any, len(k.Fields))
	for _, f := range k.Fields {
		if v, ok := o.Attrs[f.Name]; ok && v != nil {
			attrs[f.Name] = v
		}
	}
	c.Attrs = attrs
	return *c
}

// uniqueObject enforces per kind unique fields and unique-together sets
func uniqueObject(txn *memdb.Txn, o *models.BaseObject, k *kinds.Kind) error {
	siblings, err := all[models.BaseObject](txn, tableObject, "kind", o.Kind)
	if err != nil {
		return err
	}
	for _, f := range k.Fields {
		if !f.Unique {
			continue
		}
		v := o.Attr(f.Name)
		if v == nil || v == "" {
			continue
		}
		for i := range siblings {
			if siblings[i].ID != o.ID && siblings[i].Attr(f.Name) == v {
				return store.Conflict(f.Name)
			}
		}
	}
	for _, set := range k.UniqueTogether {
		for i := range siblings {
			if siblings[i].ID == o.ID {
				continue
			}
			same := true
			for _, name := range set {
				v := o.Attr(name)
				if v == nil || siblings[i].Attr(name) != v {
					same = false
					break
				}
			}
			if same {
				return store.Conflict(strings.Join(set, ", "))
			}
		}
	}
	return nil
}

func (s *Store) CreateObject(ctx context.Context, o *models.BaseObject) error {
	k, ok := kinds.Get(o.Kind)
	if !ok {
		return errors.Errorf("unknown kind %q", o.Kind)
	}
	return s.write(ctx, func(txn *memdb.Txn) error {
		if err := uniqueObject(txn, o, k); err != nil {
			return err
		}
		o.ID = s.nextID(tableObject)
		o.CreatedAt = s.now()
		o.UpdatedAt = o.CreatedAt
		return insert(txn, tableObject, storable(o, k))
	})
}

func (s *Store) UpdateObject(ctx context.Context, o *models.BaseObject) error {
	return s.write(ctx, func(txn *memdb.Txn) error {
		cur, err := first[models.BaseObject](txn, tableObject, "id", o.ID)
		if err != nil {
			return err
		}
		o.Kind = cur.Kind
		k, ok := kinds.Get(o.Kind)
		if !ok {
			return errors.Errorf("unknown kind %q", o.Kind)
		}
		if err := uniqueObject(txn, o, k); err != nil {
			return err
		}
		o.CreatedAt = cur.CreatedAt
		o.UpdatedAt = s.now()
		return insert(txn, tableObject, storable(o, k))
	})
}

// DeleteObject removes the object with its ethernets. It fails while other
// objects have it as parent or as service environment.
func (s *Store) DeleteObject(ctx context.Context, id int64) error {
	return s.write(ctx, func(txn *memdb.Txn) error {
		if _, err := first[models.BaseObject](txn, tableObject, "id", id); err != nil {
			return err
		}
		objects, err := all[models.BaseObject](txn, tableObject, "id")
		if err != nil {
			return err
		}
		for i := range objects {
			if refersTo(objects[i].ParentID, id) || refersTo(objects[i].ServiceEnvID, id) {
				return errReferenced
			}
		}
		eths, err := all[models.Ethernet](txn, tableEthernet, "base_object", id)
		if err != nil {
			return err
		}
		for _, e := range eths {
			if err := deleteEthernet(txn, e.ID, s.now()); err != nil {
				return err
			}
		}
		return remove[models.BaseObject](txn, tableObject, id)
	})
}
