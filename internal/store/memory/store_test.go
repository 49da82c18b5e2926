package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ralph-api/internal/models"
	"ralph-api/internal/store"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New()
	require.NoError(t, err)
	return s
}

func id(v int64) *int64 { return &v }

func dcAsset(t *testing.T, s *Store, attrs map[string]any) *models.BaseObject {
	t.Helper()
	o := &models.BaseObject{Kind: "datacenterasset", Attrs: attrs}
	require.NoError(t, s.CreateObject(context.Background(), o))
	return o
}

func TestCreateAssignsIDsAndTimestamps(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	a := &models.NamedObject{Name: "prod"}
	b := &models.NamedObject{Name: "dev"}
	require.NoError(t, s.CreateNamed(ctx, models.CatalogEnvironment, a))
	require.NoError(t, s.CreateNamed(ctx, models.CatalogEnvironment, b))
	assert.Equal(t, int64(1), a.ID)
	assert.Equal(t, int64(2), b.ID)
	assert.False(t, a.CreatedAt.IsZero())
	assert.Equal(t, a.CreatedAt, a.UpdatedAt)

	m := &models.NamedObject{Name: "Dell"}
	require.NoError(t, s.CreateNamed(ctx, models.CatalogManufacturer, m))
	assert.Equal(t, int64(1), m.ID, "ids are per table")

	got, err := s.GetNamed(ctx, models.CatalogEnvironment, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "dev", got.Name)

	_, err = s.GetNamed(ctx, models.CatalogEnvironment, 99)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUniqueName(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.CreateNamed(ctx, models.CatalogTeam, &models.NamedObject{Name: "ops"}))

	err := s.CreateNamed(ctx, models.CatalogTeam, &models.NamedObject{Name: "ops"})
	assert.ErrorIs(t, err, store.ErrConflict)
	var conflict *store.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "name", conflict.Field)
}

func TestWithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(ctx context.Context) error {
		require.NoError(t, s.CreateNamed(ctx, models.CatalogEnvironment, &models.NamedObject{Name: "prod"}))
		inner := s.WithTx(ctx, func(ctx context.Context) error {
			return s.CreateNamed(ctx, models.CatalogEnvironment, &models.NamedObject{Name: "dev"})
		})
		require.NoError(t, inner)

		items, total, err := s.ListNamed(ctx, models.CatalogEnvironment, store.ListOptions{})
		require.NoError(t, err)
		assert.Equal(t, 2, total, "writes are visible inside the transaction")
		assert.Len(t, items, 2)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, total, err := s.ListNamed(ctx, models.CatalogEnvironment, store.ListOptions{})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestListPagingAndSort(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	for _, name := range []string{"charlie", "alpha", "bravo", "alpine"} {
		require.NoError(t, s.CreateNamed(ctx, models.CatalogManufacturer, &models.NamedObject{Name: name}))
	}

	items, total, err := s.ListNamed(ctx, models.CatalogManufacturer, store.ListOptions{Sort: "-name", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	require.Len(t, items, 2)
	assert.Equal(t, "charlie", items[0].Name)
	assert.Equal(t, "bravo", items[1].Name)

	items, total, err = s.ListNamed(ctx, models.CatalogManufacturer, store.ListOptions{Offset: 3})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	require.Len(t, items, 1)
	assert.Equal(t, "alpine", items[0].Name, "default order is by id")

	items, total, err = s.ListNamed(ctx, models.CatalogManufacturer, store.ListOptions{Offset: 10})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Empty(t, items)

	items, total, err = s.ListNamed(ctx, models.CatalogManufacturer, store.ListOptions{Query: "ALP"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, items, 2)
}

func TestListObjectsFilters(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	a := dcAsset(t, s, map[string]any{"hostname": "web-1", "price": 100.0, "rack": "A"})
	a.Tags = []string{"web"}
	a.CustomFields = models.CustomFields{"owner": "ops"}
	require.NoError(t, s.UpdateObject(ctx, a))
	dcAsset(t, s, map[string]any{"hostname": "db-1", "price": 900.0})
	other := &models.BaseObject{Kind: "domain", Attrs: map[string]any{"name": "example.com"}}
	require.NoError(t, s.CreateObject(ctx, other))

	tests := []struct {
		name string
		q    store.ObjectQuery
		want []int64
	}{
		{"all kinds", store.ObjectQuery{}, []int64{1, 2, 3}},
		{"kind", store.ObjectQuery{Kinds: []string{"domain"}}, []int64{3}},
		{"lookup", store.ObjectQuery{Lookups: []store.Lookup{{Field: "price", Op: store.OpGT, Value: "500"}}}, []int64{2}},
		{"field missing on kind", store.ObjectQuery{Lookups: []store.Lookup{{Field: "rack", Op: store.OpIsNull, Value: "true"}}}, []int64{2}},
		{"tags", store.ObjectQuery{Tags: []string{"web"}}, []int64{1}},
		{"custom fields", store.ObjectQuery{CustomFields: map[string]string{"owner": "ops"}}, []int64{1}},
		{"name alias", store.ObjectQuery{ListOptions: store.ListOptions{Query: "DB"}}, []int64{2}},
		{"exact name", store.ObjectQuery{ListOptions: store.ListOptions{Name: "example.com"}}, []int64{3}},
		{"ids", store.ObjectQuery{IDs: []int64{1, 3}}, []int64{1, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, total, err := s.ListObjects(ctx, tt.q)
			require.NoError(t, err)
			assert.Equal(t, len(tt.want), total)
			var got []int64
			for _, o := range items {
				got = append(got, o.ID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestListObjectsByIPAndService(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	env := &models.NamedObject{Name: "prod"}
	require.NoError(t, s.CreateNamed(ctx, models.CatalogEnvironment, env))
	svc := &models.Service{Name: "billing", UID: "sc-1", Active: true}
	require.NoError(t, s.CreateService(ctx, svc))
	se := &models.BaseObject{Kind: "serviceenvironment", Attrs: map[string]any{"service": svc.ID, "environment": env.ID}}
	require.NoError(t, s.CreateObject(ctx, se))

	host := dcAsset(t, s, map[string]any{"hostname": "web-1"})
	host.ServiceEnvID = id(se.ID)
	require.NoError(t, s.UpdateObject(ctx, host))
	dcAsset(t, s, map[string]any{"hostname": "web-2"})

	eth := &models.Ethernet{BaseObjectID: host.ID, MAC: "00:16:3e:00:00:01"}
	require.NoError(t, s.CreateEthernet(ctx, eth))
	require.NoError(t, s.CreateIPAddress(ctx, &models.IPAddress{Address: "10.0.0.1", EthernetID: id(eth.ID)}))

	for name, q := range map[string]store.ObjectQuery{
		"ip":           {IP: "10.0.0.1"},
		"service uid":  {Service: "sc-1", Kinds: []string{"datacenterasset"}},
		"service name": {Service: "billing", Kinds: []string{"datacenterasset"}},
		"environment":  {Environment: "prod", Kinds: []string{"datacenterasset"}},
	} {
		t.Run(name, func(t *testing.T) {
			items, _, err := s.ListObjects(ctx, q)
			require.NoError(t, err)
			require.Len(t, items, 1)
			assert.Equal(t, host.ID, items[0].ID)
		})
	}

	items, _, err := s.ListObjects(ctx, store.ObjectQuery{IP: "10.9.9.9"})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestUniqueObjectFields(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	dcAsset(t, s, map[string]any{"sn": "SN-1"})

	err := s.CreateObject(ctx, &models.BaseObject{Kind: "datacenterasset", Attrs: map[string]any{"sn": "SN-1"}})
	var conflict *store.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "sn", conflict.Field)

	vip := func() *models.BaseObject {
		return &models.BaseObject{Kind: "vip", Attrs: map[string]any{
			"name": "web", "ip": "10.0.0.1", "port": int64(80), "protocol": "TCP",
		}}
	}
	require.NoError(t, s.CreateObject(ctx, vip()))
	err = s.CreateObject(ctx, vip())
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "ip, port, protocol", conflict.Field)
}

func TestStorableDropsUndeclaredAttrs(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	o := dcAsset(t, s, map[string]any{"hostname": "h", "bogus": "x", "rack": nil})

	got, err := s.GetObject(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"hostname": "h"}, got.Attrs)

	got.Attrs["hostname"] = "changed"
	again, err := s.GetObject(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "h", again.Attrs["hostname"], "returned objects are copies")
}

func TestDeleteObjectCascades(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	parent := dcAsset(t, s, nil)
	child := &models.BaseObject{Kind: "datacenterasset", ParentID: id(parent.ID), Attrs: map[string]any{}}
	require.NoError(t, s.CreateObject(ctx, child))

	err := s.DeleteObject(ctx, parent.ID)
	assert.ErrorIs(t, err, store.ErrProtected)
	assert.Equal(t, store.ReferencedMessage, store.ProtectedMessage(err))

	eth := &models.Ethernet{BaseObjectID: child.ID, MAC: "00:16:3e:00:00:02"}
	require.NoError(t, s.CreateEthernet(ctx, eth))
	ip := &models.IPAddress{Address: "10.0.0.2", EthernetID: id(eth.ID)}
	require.NoError(t, s.CreateIPAddress(ctx, ip))

	require.NoError(t, s.DeleteObject(ctx, child.ID))
	_, err = s.GetEthernet(ctx, eth.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	kept, err := s.GetIPAddress(ctx, ip.ID)
	require.NoError(t, err)
	assert.Nil(t, kept.EthernetID, "ip addresses are detached, not removed")

	require.NoError(t, s.DeleteObject(ctx, parent.ID))
	assert.ErrorIs(t, s.DeleteObject(ctx, parent.ID), store.ErrNotFound)
}

func TestEthernetConstraints(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	err := s.CreateEthernet(ctx, &models.Ethernet{BaseObjectID: 42, MAC: "00:16:3e:00:00:03"})
	assert.ErrorIs(t, err, store.ErrProtected)

	host := dcAsset(t, s, nil)
	require.NoError(t, s.CreateEthernet(ctx, &models.Ethernet{BaseObjectID: host.ID, MAC: "00:16:3e:00:00:03"}))
	err = s.CreateEthernet(ctx, &models.Ethernet{BaseObjectID: host.ID, MAC: "00:16:3e:00:00:03"})
	assert.ErrorIs(t, err, store.ErrConflict)

	require.NoError(t, s.CreateEthernet(ctx, &models.Ethernet{BaseObjectID: host.ID}))
	require.NoError(t, s.CreateEthernet(ctx, &models.Ethernet{BaseObjectID: host.ID}), "empty macs never conflict")

	items, total, err := s.ListEthernets(ctx, store.EthernetFilter{MAC: "00:16:3e:00:00:03"}, store.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, items, 1)
}

func TestDeleteUserDropsOwnership(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	u := &models.User{Username: "alice", Roles: []string{models.RoleAdmin}, IsActive: true}
	require.NoError(t, s.CreateUser(ctx, u))
	svc := &models.Service{Name: "billing", UID: "sc-1", BusinessOwnerIDs: []int64{u.ID}, TechnicalOwnerIDs: []int64{u.ID}}
	require.NoError(t, s.CreateService(ctx, svc))

	require.NoError(t, s.DeleteUser(ctx, u.ID))
	got, err := s.GetService(ctx, svc.ID)
	require.NoError(t, err)
	assert.Empty(t, got.BusinessOwnerIDs)
	assert.Empty(t, got.TechnicalOwnerIDs)
}

func TestDeleteProtectedByReferences(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	env := &models.NamedObject{Name: "prod"}
	require.NoError(t, s.CreateNamed(ctx, models.CatalogEnvironment, env))
	svc := &models.Service{Name: "billing", UID: "sc-1"}
	require.NoError(t, s.CreateService(ctx, svc))
	se := &models.BaseObject{Kind: "serviceenvironment", Attrs: map[string]any{"service": svc.ID, "environment": env.ID}}
	require.NoError(t, s.CreateObject(ctx, se))

	assert.ErrorIs(t, s.DeleteService(ctx, svc.ID), store.ErrProtected)
	assert.ErrorIs(t, s.DeleteNamed(ctx, models.CatalogEnvironment, env.ID), store.ErrProtected)

	require.NoError(t, s.DeleteObject(ctx, se.ID))
	require.NoError(t, s.DeleteService(ctx, svc.ID))
	require.NoError(t, s.DeleteNamed(ctx, models.CatalogEnvironment, env.ID))
}
