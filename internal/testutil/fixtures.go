package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"testing"

	"ralph-api/internal/inventory"
	"ralph-api/internal/kinds"
	"ralph-api/internal/logging"
	"ralph-api/internal/models"
	"ralph-api/internal/store"
	"ralph-api/internal/store/memory"
)

// Fixtures builds inventory rows for tests. Names come from a shared
// sequence so repeated calls never collide.
type Fixtures struct {
	t   testing.TB
	Inv *inventory.Inventory
	seq atomic.Int64
}

// NewMemoryInventory returns an inventory over a fresh memory store with
// deterministic service uids sc-1, sc-2...
func NewMemoryInventory(t testing.TB) *inventory.Inventory {
	t.Helper()
	st, err := memory.New()
	if err != nil {
		t.Fatalf("memory store: %v", err)
	}
	var uid atomic.Int64
	return inventory.New(st,
		inventory.WithLogger(logging.Discard()),
		inventory.WithUIDGenerator(func() string {
			return fmt.Sprintf("sc-%d", uid.Add(1))
		}),
	)
}

func NewFixtures(t testing.TB, inv *inventory.Inventory) *Fixtures {
	return &Fixtures{t: t, Inv: inv}
}

func (f *Fixtures) next() int64 {
	return f.seq.Add(1)
}

// Name returns prefix followed by the next sequence number
func (f *Fixtures) Name(prefix string) string {
	return fmt.Sprintf("%s #%d", prefix, f.next())
}

// MAC returns the next address of the 00:16:3e range
func (f *Fixtures) MAC() string {
	n := f.next()
	return fmt.Sprintf("00:16:3e:%02x:%02x:%02x", (n>>16)&0xff, (n>>8)&0xff, n&0xff)
}

func (f *Fixtures) check(err error) {
	f.t.Helper()
	if err != nil {
		f.t.Fatalf("fixture: %v", err)
	}
}

func ptr[T any](v T) *T { return &v }

func (f *Fixtures) Named(c models.Catalog, name string) *models.NamedObject {
	f.t.Helper()
	if name == "" {
		name = f.Name(string(c))
	}
	o, err := f.Inv.CreateNamed(context.Background(), c, models.NamedObjectRequest{Name: ptr(name)})
	f.check(err)
	return o
}

func (f *Fixtures) Environment() *models.NamedObject {
	return f.Named(models.CatalogEnvironment, "")
}

func (f *Fixtures) AssetModel(t models.ObjectModelType) *models.AssetModel {
	f.t.Helper()
	m, err := f.Inv.CreateAssetModel(context.Background(), models.AssetModelRequest{
		Name: ptr(f.Name("model")),
		Type: &t,
	})
	f.check(err)
	return m
}

// Service creates an active service paired with envs
func (f *Fixtures) Service(envs ...*models.NamedObject) *models.Service {
	f.t.Helper()
	req := models.CreateServiceRequest{Name: f.Name("service")}
	for _, e := range envs {
		req.Environments = append(req.Environments, models.Ref{ID: e.ID})
	}
	svc, err := f.Inv.CreateService(context.Background(), req)
	f.check(err)
	return svc
}

// ServiceEnv returns the service environment pairing svc with env
func (f *Fixtures) ServiceEnv(svc *models.Service, env *models.NamedObject) int64 {
	f.t.Helper()
	envs, err := f.Inv.ServiceEnvironments(context.Background(), svc.ID)
	f.check(err)
	for _, se := range envs {
		if se.EnvironmentID == env.ID {
			return se.ID
		}
	}
	f.t.Fatalf("fixture: service %d has no environment %d", svc.ID, env.ID)
	return 0
}

// Object creates an object of kind from a JSON-like body
func (f *Fixtures) Object(kind string, body map[string]any) *models.BaseObject {
	f.t.Helper()
	k, ok := kinds.Get(kind)
	if !ok {
		f.t.Fatalf("fixture: unknown kind %q", kind)
	}
	raw, err := json.Marshal(body)
	f.check(err)
	var req models.BaseObjectRequest
	f.check(json.Unmarshal(raw, &req))
	o, err := f.Inv.CreateObject(context.Background(), k, req)
	f.check(err)
	return o
}

// DataCenterAsset creates an asset with a fresh data center model and
// serial number
func (f *Fixtures) DataCenterAsset(extra map[string]any) *models.BaseObject {
	f.t.Helper()
	body := map[string]any{
		"model": f.AssetModel(models.ModelTypeDataCenter).ID,
		"sn":    fmt.Sprintf("sn-%d", f.next()),
	}
	for k, v := range extra {
		body[k] = v
	}
	return f.Object("datacenterasset", body)
}

func (f *Fixtures) Ethernet(baseObject int64, mac string) *models.Ethernet {
	f.t.Helper()
	if mac == "" {
		mac = f.MAC()
	}
	e, err := f.Inv.CreateEthernet(context.Background(), models.EthernetRequest{
		BaseObject: &baseObject,
		MAC:        &mac,
	})
	f.check(err)
	return e
}

func (f *Fixtures) IPAddress(ethernet int64, address string, expose bool) *models.IPAddress {
	f.t.Helper()
	req := models.IPAddressRequest{Address: &address, DHCPExpose: &expose}
	if ethernet > 0 {
		req.Ethernet = models.SetRef(models.Ref{ID: ethernet})
	}
	ip, err := f.Inv.CreateIPAddress(context.Background(), req)
	f.check(err)
	return ip
}

func (f *Fixtures) User(username string, roles ...string) *models.User {
	f.t.Helper()
	if len(roles) == 0 {
		roles = []string{models.RoleViewer}
	}
	u, err := f.Inv.CreateUser(context.Background(), models.CreateUserRequest{
		Username: username,
		Password: "password123",
		Roles:    roles,
	})
	f.check(err)
	return u
}

// Count returns the number of objects of kind
func (f *Fixtures) Count(kind string) int {
	f.t.Helper()
	_, total, err := f.Inv.ListObjects(context.Background(), store.ObjectQuery{
		Kinds:       []string{kind},
		ListOptions: store.ListOptions{Limit: 1},
	})
	f.check(err)
	return total
}
