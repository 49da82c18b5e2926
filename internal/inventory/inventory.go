// Package inventory holds the business rules of the asset inventory on top
// of a store.Store: validation, reference resolution, derived records and
// delete guards.
package inventory

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"ralph-api/internal/models"
	"ralph-api/internal/store"
)

// DefaultPathSeparator joins configuration path segments
const DefaultPathSeparator = "."

// Inventory implements the operations exposed by the HTTP API
type Inventory struct {
	store     store.Store
	separator string
	log       logrus.FieldLogger
	newUID    func() string
}

// Option configures an Inventory
type Option func(*Inventory)

// WithPathSeparator sets the configuration path separator
func WithPathSeparator(sep string) Option {
	return func(inv *Inventory) {
		if sep != "" {
			inv.separator = sep
		}
	}
}

// WithLogger sets the logger
func WithLogger(log logrus.FieldLogger) Option {
	return func(inv *Inventory) {
		if log != nil {
			inv.log = log
		}
	}
}

// WithUIDGenerator replaces the service uid generator
func WithUIDGenerator(fn func() string) Option {
	return func(inv *Inventory) {
		if fn != nil {
			inv.newUID = fn
		}
	}
}

// New returns an Inventory backed by st
func New(st store.Store, opts ...Option) *Inventory {
	inv := &Inventory{
		store:     st,
		separator: DefaultPathSeparator,
		log:       logrus.StandardLogger(),
		newUID:    generateUID,
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// Store returns the underlying store
func (inv *Inventory) Store() store.Store {
	return inv.store
}

// PathSeparator returns the configuration path separator
func (inv *Inventory) PathSeparator() string {
	return inv.separator
}

// generateUID returns "sc-" followed by the first block of a random uuid
func generateUID() string {
	return "sc-" + strings.SplitN(uuid.NewString(), "-", 2)[0]
}

// errUnresolved marks a reference that names no existing row
var errUnresolved = errors.New("unresolved reference")

// resolve turns a reference into the id of a row of target
func (inv *Inventory) resolve(ctx context.Context, target string, ref models.Ref) (int64, error) {
	id, err := inv.lookup(ctx, target, ref)
	if errors.Is(err, store.ErrNotFound) {
		return 0, errUnresolved
	}
	return id, err
}

func (inv *Inventory) lookup(ctx context.Context, target string, ref models.Ref) (int64, error) {
	if ref.IsZero() {
		return 0, store.ErrNotFound
	}
	byName := store.ListOptions{Name: ref.Name, Limit: 2}
	c := models.Catalog(target)
	switch {
	case c.Valid():
		if ref.ID > 0 {
			o, err := inv.store.GetNamed(ctx, c, ref.ID)
			if err != nil {
				return 0, err
			}
			return o.ID, nil
		}
		items, _, err := inv.store.ListNamed(ctx, c, byName)
		return single(items, err, func(o models.NamedObject) int64 { return o.ID })
	case target == "profitcenter":
		if ref.ID > 0 {
			pc, err := inv.store.GetProfitCenter(ctx, ref.ID)
			if err != nil {
				return 0, err
			}
			return pc.ID, nil
		}
		items, _, err := inv.store.ListProfitCenters(ctx, byName)
		return single(items, err, func(o models.ProfitCenter) int64 { return o.ID })
	case target == "category":
		if ref.ID > 0 {
			cat, err := inv.store.GetCategory(ctx, ref.ID)
			if err != nil {
				return 0, err
			}
			return cat.ID, nil
		}
		items, _, err := inv.store.ListCategories(ctx, byName)
		return single(items, err, func(o models.Category) int64 { return o.ID })
	case target == "assetmodel":
		if ref.ID > 0 {
			m, err := inv.store.GetAssetModel(ctx, ref.ID)
			if err != nil {
				return 0, err
			}
			return m.ID, nil
		}
		items, _, err := inv.store.ListAssetModels(ctx, store.AssetModelFilter{}, byName)
		return single(items, err, func(o models.AssetModel) int64 { return o.ID })
	case target == "service":
		if ref.ID > 0 {
			svc, err := inv.store.GetService(ctx, ref.ID)
			if err != nil {
				return 0, err
			}
			return svc.ID, nil
		}
		items, _, err := inv.store.ListServices(ctx, store.ServiceFilter{}, byName)
		if err == nil && len(items) == 0 {
			items, _, err = inv.store.ListServices(ctx, store.ServiceFilter{UID: ref.Name}, store.ListOptions{Limit: 2})
		}
		return single(items, err, func(o models.Service) int64 { return o.ID })
	case target == "user":
		if ref.ID > 0 {
			u, err := inv.store.GetUser(ctx, ref.ID)
			if err != nil {
				return 0, err
			}
			return u.ID, nil
		}
		u, err := inv.store.GetUserByUsername(ctx, ref.Name)
		if err != nil {
			return 0, err
		}
		return u.ID, nil
	case target == "configurationmodule":
		if ref.ID > 0 {
			m, err := inv.store.GetConfigurationModule(ctx, ref.ID)
			if err != nil {
				return 0, err
			}
			return m.ID, nil
		}
		items, _, err := inv.store.ListConfigurationModules(ctx, store.ModuleFilter{}, byName)
		return single(items, err, func(o models.ConfigurationModule) int64 { return o.ID })
	case target == "configurationclass":
		if ref.ID > 0 {
			c, err := inv.store.GetConfigurationClass(ctx, ref.ID)
			if err != nil {
				return 0, err
			}
			return c.ID, nil
		}
		items, _, err := inv.store.ListConfigurationClasses(ctx, store.ClassFilter{Path: ref.Name}, store.ListOptions{Limit: 2})
		return single(items, err, func(o models.ConfigurationClass) int64 { return o.ID })
	case target == "ethernet":
		if ref.ID > 0 {
			e, err := inv.store.GetEthernet(ctx, ref.ID)
			if err != nil {
				return 0, err
			}
			return e.ID, nil
		}
		items, _, err := inv.store.ListEthernets(ctx, store.EthernetFilter{MAC: strings.ToLower(ref.Name)}, store.ListOptions{Limit: 2})
		return single(items, err, func(o models.Ethernet) int64 { return o.ID })
	case target == "baseobject" || target == "serviceenvironment":
		if ref.ID == 0 {
			return 0, store.ErrNotFound
		}
		o, err := inv.store.GetObject(ctx, ref.ID)
		if err != nil {
			return 0, err
		}
		if target == "serviceenvironment" && o.Kind != target {
			return 0, store.ErrNotFound
		}
		return o.ID, nil
	}
	return 0, errors.Errorf("unknown reference target %q", target)
}

// single returns the id of the only item, ErrNotFound otherwise
func single[T any](items []T, err error, id func(T) int64) (int64, error) {
	if err != nil {
		return 0, err
	}
	if len(items) != 1 {
		return 0, store.ErrNotFound
	}
	return id(items[0]), nil
}

// resolveField resolves ref and records a field message when it names
// nothing. ok is false in that case.
func (inv *Inventory) resolveField(ctx context.Context, target, field string, ref models.Ref, verr *store.ValidationError) (int64, bool, error) {
	id, err := inv.resolve(ctx, target, ref)
	if errors.Is(err, errUnresolved) {
		verr.Add(field, fmt.Sprintf("Invalid pk \"%s\" - object does not exist.", ref.String()))
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// applyOptionalRef writes a nullable reference update into dst
func (inv *Inventory) applyOptionalRef(ctx context.Context, target, field string, o models.OptionalRef, dst **int64, verr *store.ValidationError) error {
	if !o.Set {
		return nil
	}
	if o.Ref == nil {
		*dst = nil
		return nil
	}
	id, ok, err := inv.resolveField(ctx, target, field, *o.Ref, verr)
	if err != nil || !ok {
		return err
	}
	*dst = &id
	return nil
}

// resolveList resolves every reference of a list field
func (inv *Inventory) resolveList(ctx context.Context, target, field string, refs []models.Ref, verr *store.ValidationError) ([]int64, error) {
	ids := make([]int64, 0, len(refs))
	seen := map[int64]bool{}
	for _, ref := range refs {
		id, ok, err := inv.resolveField(ctx, target, field, ref, verr)
		if err != nil {
			return nil, err
		}
		if ok && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids, nil
}
