// Package memory implements store.Store on top of hashicorp/go-memdb. It
// backs the test-suite and single process deployments without a database.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-memdb"
	"github.com/pkg/errors"

	"ralph-api/internal/filter"
	"ralph-api/internal/models"
	"ralph-api/internal/store"
)

const (
	tableProfitCenter = "profitcenter"
	tableCategory     = "category"
	tableAssetModel   = "assetmodel"
	tableService      = "service"
	tableUser         = "user"
	tableModule       = "configurationmodule"
	tableClass        = "configurationclass"
	tableObject       = "baseobject"
	tableEthernet     = "ethernet"
	tableIPAddress    = "ipaddress"
)

func idIndex() *memdb.IndexSchema {
	return &memdb.IndexSchema{
		Name:    "id",
		Unique:  true,
		Indexer: &memdb.IntFieldIndex{Field: "ID"},
	}
}

func stringIndex(name, field string) *memdb.IndexSchema {
	return &memdb.IndexSchema{
		Name:         name,
		AllowMissing: true,
		Indexer:      &memdb.StringFieldIndex{Field: field},
	}
}

func intIndex(name, field string) *memdb.IndexSchema {
	return &memdb.IndexSchema{
		Name:    name,
		Indexer: &memdb.IntFieldIndex{Field: field},
	}
}

func schema() *memdb.DBSchema {
	tables := map[string]*memdb.TableSchema{}
	add := func(name string, extra ...*memdb.IndexSchema) {
		indexes := map[string]*memdb.IndexSchema{"id": idIndex()}
		for _, idx := range extra {
			indexes[idx.Name] = idx
		}
		tables[name] = &memdb.TableSchema{Name: name, Indexes: indexes}
	}
	for _, c := range models.Catalogs {
		add(string(c), stringIndex("name", "Name"))
	}
	add(tableProfitCenter, stringIndex("name", "Name"))
	add(tableCategory, stringIndex("name", "Name"))
	add(tableAssetModel, stringIndex("name", "Name"))
	add(tableService, stringIndex("name", "Name"), stringIndex("uid", "UID"))
	add(tableUser, stringIndex("username", "Username"))
	add(tableModule, stringIndex("name", "Name"))
	add(tableClass, intIndex("module", "ModuleID"))
	add(tableObject, stringIndex("kind", "Kind"))
	add(tableEthernet, intIndex("base_object", "BaseObjectID"), stringIndex("mac", "MAC"))
	add(tableIPAddress, stringIndex("address", "Address"))
	return &memdb.DBSchema{Tables: tables}
}

// Store is an in-memory store.Store
type Store struct {
	db *memdb.MemDB

	mu  sync.Mutex
	seq map[string]int64
	now func() time.Time
}

var _ store.Store = (*Store)(nil)

// New creates an empty in-memory store
func New() (*Store, error) {
	db, err := memdb.NewMemDB(schema())
	if err != nil {
		return nil, errors.Wrap(err, "memdb schema")
	}
	return &Store{
		db:  db,
		seq: map[string]int64{},
		now: func() time.Time { return time.Now().UTC() },
	}, nil
}

type txKey struct{}

// WithTx runs fn inside a write transaction. Nested calls join the
// outer transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*memdb.Txn); ok {
		return fn(ctx)
	}
	txn := s.db.Txn(true)
	defer txn.Abort()
	if err := fn(context.WithValue(ctx, txKey{}, txn)); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

// Ping always succeeds
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close is a no-op
func (s *Store) Close() error {
	return nil
}

// read returns the context transaction or a fresh read transaction
func (s *Store) read(ctx context.Context) (*memdb.Txn, func()) {
	if txn, ok := ctx.Value(txKey{}).(*memdb.Txn); ok {
		return txn, func() {}
	}
	txn := s.db.Txn(false)
	return txn, txn.Abort
}

// write runs fn in the context transaction, or in its own committed one
func (s *Store) write(ctx context.Context, fn func(txn *memdb.Txn) error) error {
	if txn, ok := ctx.Value(txKey{}).(*memdb.Txn); ok {
		return fn(txn)
	}
	txn := s.db.Txn(true)
	defer txn.Abort()
	if err := fn(txn); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

// nextID hands out ids per table. Ids are never reused, even when the
// transaction that took them aborts.
func (s *Store) nextID(table string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq[table]++
	return s.seq[table]
}

func first[T any](txn *memdb.Txn, table, index string, args ...any) (*T, error) {
	raw, err := txn.First(table, index, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "memdb lookup %s", table)
	}
	if raw == nil {
		return nil, store.ErrNotFound
	}
	v := *raw.(*T)
	return &v, nil
}

func all[T any](txn *memdb.Txn, table, index string, args ...any) ([]T, error) {
	it, err := txn.Get(table, index, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "memdb scan %s", table)
	}
	var out []T
	for raw := it.Next(); raw != nil; raw = it.Next() {
		out = append(out, *raw.(*T))
	}
	return out, nil
}

func insert[T any](txn *memdb.Txn, table string, v T) error {
	if err := txn.Insert(table, &v); err != nil {
		return errors.Wrapf(err, "memdb insert %s", table)
	}
	return nil
}

func remove[T any](txn *memdb.Txn, table string, id int64) error {
	raw, err := txn.First(table, "id", id)
	if err != nil {
		return errors.Wrapf(err, "memdb lookup %s", table)
	}
	if raw == nil {
		return store.ErrNotFound
	}
	if err := txn.Delete(table, raw); err != nil {
		return errors.Wrapf(err, "memdb delete %s", table)
	}
	return nil
}

// sortKeys maps sort parameter names to value accessors
type sortKeys[T any] map[string]func(T) any

func timeKey(t time.Time) any { return t.UnixNano() }

// page orders items by opts.Sort (id by default) and applies offset/limit.
// It returns the page and the total before paging.
func page[T any](items []T, opts store.ListOptions, keys sortKeys[T]) ([]T, int) {
	type order struct {
		key  func(T) any
		desc bool
	}
	var orders []order
	for _, raw := range strings.Split(opts.Sort, ",") {
		k := strings.TrimSpace(raw)
		desc := strings.HasPrefix(k, "-")
		k = strings.TrimPrefix(k, "-")
		if fn, ok := keys[k]; ok {
			orders = append(orders, order{key: fn, desc: desc})
		}
	}
	orders = append(orders, order{key: keys["id"]})

	sort.SliceStable(items, func(i, j int) bool {
		for _, o := range orders {
			c, ok := filter.Compare(o.key(items[i]), o.key(items[j]))
			if !ok || c == 0 {
				continue
			}
			if o.desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})

	total := len(items)
	if opts.Offset > 0 {
		if opts.Offset >= len(items) {
			return []T{}, total
		}
		items = items[opts.Offset:]
	}
	if opts.Limit > 0 && len(items) > opts.Limit {
		items = items[:opts.Limit]
	}
	return items, total
}

// matchName applies the q and name options to a row name
func matchName(opts store.ListOptions, name string) bool {
	if opts.Name != "" && name != opts.Name {
		return false
	}
	if opts.Query != "" && !strings.Contains(strings.ToLower(name), strings.ToLower(opts.Query)) {
		return false
	}
	return true
}

func sameID(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func refersTo(ptr *int64, id int64) bool {
	return ptr != nil && *ptr == id
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func copyIDs(ids []int64) []int64 {
	if ids == nil {
		return nil
	}
	return append([]int64(nil), ids...)
}

var errReferenced = store.Protected(store.ReferencedMessage)
