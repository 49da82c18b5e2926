package inventory_test

import (
	"context"
	"encoding/json"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ralph-api/internal/inventory"
	"ralph-api/internal/kinds"
	"ralph-api/internal/models"
	"ralph-api/internal/store"
	"ralph-api/internal/testutil"
)

func setup(t *testing.T) (*inventory.Inventory, *testutil.Fixtures) {
	t.Helper()
	inv := testutil.NewMemoryInventory(t)
	return inv, testutil.NewFixtures(t, inv)
}

func kindOf(t *testing.T, name string) *kinds.Kind {
	t.Helper()
	k, ok := kinds.Get(name)
	require.True(t, ok)
	return k
}

func request(t *testing.T, body string) models.BaseObjectRequest {
	t.Helper()
	var req models.BaseObjectRequest
	require.NoError(t, json.Unmarshal([]byte(body), &req))
	return req
}

func fieldErrors(t *testing.T, err error) map[string][]string {
	t.Helper()
	var verr *store.ValidationError
	require.ErrorAs(t, err, &verr)
	return verr.Fields
}

func envIDs(t *testing.T, inv *inventory.Inventory, svc *models.Service) map[int64]int64 {
	t.Helper()
	envs, err := inv.ServiceEnvironments(context.Background(), svc.ID)
	require.NoError(t, err)
	out := map[int64]int64{}
	for _, se := range envs {
		assert.Equal(t, svc.ID, se.ServiceID)
		out[se.EnvironmentID] = se.ID
	}
	return out
}

func TestCreateServiceCreatesEnvironments(t *testing.T) {
	inv, f := setup(t)
	prod, dev := f.Environment(), f.Environment()

	svc := f.Service(prod, dev)
	assert.Equal(t, "sc-1", svc.UID)
	assert.True(t, svc.Active)

	envs := envIDs(t, inv, svc)
	assert.Len(t, envs, 2)
	assert.Contains(t, envs, prod.ID)
	assert.Contains(t, envs, dev.ID)

	o, err := inv.GetObject(context.Background(), kinds.ServiceEnvironment, envs[prod.ID])
	require.NoError(t, err)
	assert.Equal(t, svc.Name, o.Attrs[kinds.AttrServiceName])
	assert.Equal(t, "sc-1", o.Attrs[kinds.AttrServiceUID])
	assert.Equal(t, prod.Name, o.Attrs[kinds.AttrEnvironmentName])
}

func TestCreateServiceValidation(t *testing.T) {
	inv, f := setup(t)
	ctx := context.Background()

	_, err := inv.CreateService(ctx, models.CreateServiceRequest{
		Name:         "  ",
		Environments: []models.Ref{{ID: 404}},
	})
	fields := fieldErrors(t, err)
	assert.Contains(t, fields, "name")
	assert.Equal(t, []string{`Invalid pk "404" - object does not exist.`}, fields["environments"])

	f.Service()
	uid := "sc-1"
	_, err = inv.CreateService(ctx, models.CreateServiceRequest{Name: "dup", UID: &uid})
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestCreateServiceResolvesNaturalKeys(t *testing.T) {
	inv, f := setup(t)
	owner := f.User("alice", models.RoleEditor)
	env := f.Named(models.CatalogEnvironment, "prod")
	team := f.Named(models.CatalogTeam, "ops")

	svc, err := inv.CreateService(context.Background(), models.CreateServiceRequest{
		Name:           "billing",
		SupportTeam:    models.SetRef(models.Ref{Name: "ops"}),
		BusinessOwners: []models.Ref{{Name: "alice"}, {ID: owner.ID}},
		Environments:   []models.Ref{{Name: "prod"}},
	})
	require.NoError(t, err)
	require.NotNil(t, svc.SupportTeamID)
	assert.Equal(t, team.ID, *svc.SupportTeamID)
	assert.Equal(t, []int64{owner.ID}, svc.BusinessOwnerIDs, "duplicates collapse")
	assert.Contains(t, envIDs(t, inv, svc), env.ID)
}

func TestUpdateServiceReconcilesEnvironments(t *testing.T) {
	inv, f := setup(t)
	ctx := context.Background()
	prod, dev, test := f.Environment(), f.Environment(), f.Environment()
	svc := f.Service(prod, dev)
	before := envIDs(t, inv, svc)

	envs := []models.Ref{{ID: prod.ID}, {ID: test.ID}}
	_, err := inv.UpdateService(ctx, svc.ID, models.UpdateServiceRequest{Environments: &envs})
	require.NoError(t, err)

	after := envIDs(t, inv, svc)
	assert.Len(t, after, 2)
	assert.Equal(t, before[prod.ID], after[prod.ID], "kept pairs keep their id")
	assert.NotContains(t, after, dev.ID)
	assert.Contains(t, after, test.ID)

	name := "renamed"
	updated, err := inv.UpdateService(ctx, svc.ID, models.UpdateServiceRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Name)
	assert.Len(t, envIDs(t, inv, svc), 2, "omitted environments are untouched")
}

func TestUpdateServiceProtectsUsedEnvironment(t *testing.T) {
	inv, f := setup(t)
	ctx := context.Background()
	prod, dev := f.Environment(), f.Environment()
	svc := f.Service(prod, dev)
	f.DataCenterAsset(map[string]any{"service_env": f.ServiceEnv(svc, prod)})

	envs := []models.Ref{{ID: dev.ID}}
	_, err := inv.UpdateService(ctx, svc.ID, models.UpdateServiceRequest{Environments: &envs})
	require.ErrorIs(t, err, store.ErrProtected)
	assert.Equal(t,
		"Cannot remove environment from service because objects are assigned to this service environment.",
		store.ProtectedMessage(err))
	assert.Len(t, envIDs(t, inv, svc), 2, "the failed update is rolled back")
}

func TestDeleteService(t *testing.T) {
	inv, f := setup(t)
	ctx := context.Background()
	env := f.Environment()
	svc := f.Service(env)

	require.NoError(t, inv.DeleteService(ctx, svc.ID))
	assert.Zero(t, f.Count(kinds.ServiceEnvironment))
	assert.ErrorIs(t, inv.DeleteService(ctx, svc.ID), store.ErrNotFound)

	used := f.Service(env)
	f.DataCenterAsset(map[string]any{"service_env": f.ServiceEnv(used, env)})
	assert.ErrorIs(t, inv.DeleteService(ctx, used.ID), store.ErrProtected)
}

func TestCreateObjectDefaultsAndSummaries(t *testing.T) {
	inv, f := setup(t)
	env := f.Named(models.CatalogEnvironment, "prod")
	svc := f.Service(env)
	se := f.ServiceEnv(svc, env)

	o := f.DataCenterAsset(map[string]any{
		"hostname":    "s1.dc",
		"service_env": se,
		"tags":        []string{"b", "a", " a ", ""},
	})
	assert.Equal(t, "new", o.Attrs["status"])
	assert.Equal(t, "front", o.Attrs["orientation"])
	assert.Equal(t, []string{"a", "b"}, o.Tags)
	require.NotNil(t, o.ServiceEnv)
	assert.Equal(t, svc.Name, o.ServiceEnv.Service)
	assert.Equal(t, "sc-1", o.ServiceEnv.ServiceUID)
	assert.Equal(t, "prod", o.ServiceEnv.Environment)

	_, err := inv.CreateObject(context.Background(), kindOf(t, kinds.ServiceEnvironment), models.BaseObjectRequest{})
	assert.ErrorIs(t, err, inventory.ErrReadOnly)
}

func TestCreateObjectValidation(t *testing.T) {
	inv, f := setup(t)
	ctx := context.Background()
	dc := kindOf(t, "datacenterasset")
	bo := f.AssetModel(models.ModelTypeBackOffice)

	_, err := inv.CreateObject(ctx, dc, request(t, `{"hostname": "x"}`))
	assert.Equal(t, []string{"This field is required."}, fieldErrors(t, err)["model"])

	_, err = inv.CreateObject(ctx, dc, request(t, `{"model": `+itoa(bo.ID)+`}`))
	assert.Equal(t, []string{"Model must be of 'data center' type."}, fieldErrors(t, err)["model"])

	_, err = inv.CreateObject(ctx, dc, request(t, `{"model": 999, "status": "lost", "position": "top", "parent": 77}`))
	fields := fieldErrors(t, err)
	assert.Equal(t, []string{`Invalid pk "999" - object does not exist.`}, fields["model"])
	assert.Equal(t, []string{`"lost" is not a valid choice.`}, fields["status"])
	assert.Contains(t, fields, "position")
	assert.Contains(t, fields, "parent")

	_, err = inv.CreateObject(ctx, kindOf(t, "domain"), request(t, `{"name": "example.com", "custom_fields": {" ": "x"}}`))
	assert.Contains(t, fieldErrors(t, err), "custom_fields")
}

func TestUpdateObject(t *testing.T) {
	inv, f := setup(t)
	ctx := context.Background()
	dc := kindOf(t, "datacenterasset")
	parent := f.DataCenterAsset(nil)
	child := f.DataCenterAsset(map[string]any{"parent": parent.ID, "rack": "A"})

	updated, err := inv.UpdateObject(ctx, dc, child.ID, request(t, `{"rack": null, "remarks": "moved"}`))
	require.NoError(t, err)
	assert.NotContains(t, updated.Attrs, "rack")
	assert.Equal(t, "moved", updated.Remarks)
	assert.Equal(t, child.Attrs["model"], updated.Attrs["model"], "partial updates keep other attributes")

	_, err = inv.UpdateObject(ctx, dc, parent.ID, request(t, `{"parent": `+itoa(child.ID)+`}`))
	assert.Equal(t, []string{"Object cannot be its own parent."}, fieldErrors(t, err)["parent"])

	_, err = inv.UpdateObject(ctx, kindOf(t, "backofficeasset"), child.ID, request(t, `{}`))
	assert.ErrorIs(t, err, store.ErrNotFound, "kind must match")

	_, err = inv.GetObject(ctx, "domain", child.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	got, err := inv.GetObject(ctx, "", child.ID)
	require.NoError(t, err)
	assert.Equal(t, "datacenterasset", got.Kind)
}

func TestConfigurationPaths(t *testing.T) {
	inv, _ := setup(t)
	ctx := context.Background()
	name := func(s string) *string { return &s }

	root, err := inv.CreateConfigurationModule(ctx, models.ConfigurationModuleRequest{Name: name("ralph")})
	require.NoError(t, err)
	child, err := inv.CreateConfigurationModule(ctx, models.ConfigurationModuleRequest{
		Name:   name("web"),
		Parent: models.SetRef(models.Ref{ID: root.ID}),
	})
	require.NoError(t, err)
	cls, err := inv.CreateConfigurationClass(ctx, models.ConfigurationClassRequest{
		ClassName: name("frontend"),
		Module:    &models.Ref{ID: child.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, "ralph.web.frontend", cls.Path)

	_, err = inv.UpdateConfigurationModule(ctx, root.ID, models.ConfigurationModuleRequest{Name: name("core")})
	require.NoError(t, err)
	cls, err = inv.GetConfigurationClass(ctx, cls.ID)
	require.NoError(t, err)
	assert.Equal(t, "core.web.frontend", cls.Path)

	_, err = inv.UpdateConfigurationModule(ctx, root.ID, models.ConfigurationModuleRequest{
		Parent: models.SetRef(models.Ref{ID: child.ID}),
	})
	assert.Contains(t, fieldErrors(t, err), "parent")

	_, err = inv.CreateConfigurationModule(ctx, models.ConfigurationModuleRequest{Name: name("bad name")})
	assert.Contains(t, fieldErrors(t, err), "name")

	_, err = inv.CreateConfigurationClass(ctx, models.ConfigurationClassRequest{ClassName: name("x")})
	assert.Equal(t, []string{"This field is required."}, fieldErrors(t, err)["module"])

	byPath, err := inv.CreateConfigurationClass(ctx, models.ConfigurationClassRequest{
		ClassName: name("backend"),
		Module:    &models.Ref{Name: "web"},
	})
	require.NoError(t, err)
	assert.Equal(t, "core.web.backend", byPath.Path)
}

func TestConfigurationPathSeparator(t *testing.T) {
	st := testutil.NewMemoryInventory(t).Store()
	inv := inventory.New(st, inventory.WithPathSeparator("/"))
	ctx := context.Background()
	name := func(s string) *string { return &s }

	m, err := inv.CreateConfigurationModule(ctx, models.ConfigurationModuleRequest{Name: name("a")})
	require.NoError(t, err)
	c, err := inv.CreateConfigurationClass(ctx, models.ConfigurationClassRequest{ClassName: name("b"), Module: &models.Ref{ID: m.ID}})
	require.NoError(t, err)
	assert.Equal(t, "a/b", c.Path)
}

func TestDHCPGuards(t *testing.T) {
	inv, f := setup(t)
	ctx := context.Background()
	host := f.DataCenterAsset(nil)
	eth := f.Ethernet(host.ID, "")
	bare := f.Ethernet(host.ID, "")
	empty := ""
	_, err := inv.UpdateEthernet(ctx, bare.ID, models.EthernetRequest{MAC: &empty})
	require.NoError(t, err)

	_, err = inv.CreateIPAddress(ctx, models.IPAddressRequest{
		Address:    strPtr("10.0.0.9"),
		Ethernet:   models.SetRef(models.Ref{ID: bare.ID}),
		DHCPExpose: boolPtr(true),
	})
	assert.Equal(t, []string{"Cannot expose in DHCP without MAC address"}, fieldErrors(t, err)["dhcp_expose"])

	ip := f.IPAddress(eth.ID, "10.0.0.1", true)

	err = inv.DeleteIPAddress(ctx, ip.ID)
	require.ErrorIs(t, err, store.ErrProtected)
	assert.Equal(t, "Could not delete IPAddress when it is exposed in DHCP", store.ProtectedMessage(err))

	err = inv.DeleteEthernet(ctx, eth.ID)
	require.ErrorIs(t, err, store.ErrProtected)
	assert.Equal(t, "Could not delete Ethernet when it is exposed in DHCP", store.ProtectedMessage(err))

	err = inv.DeleteObject(ctx, kindOf(t, "datacenterasset"), host.ID)
	require.ErrorIs(t, err, store.ErrProtected)
	assert.Equal(t, "Could not delete object when one of its ethernets is exposed in DHCP", store.ProtectedMessage(err))

	_, err = inv.UpdateEthernet(ctx, eth.ID, models.EthernetRequest{MAC: strPtr("00:16:3e:ff:ff:ff")})
	assert.Equal(t, []string{"Cannot change MAC when exposing in DHCP"}, fieldErrors(t, err)["mac"])

	_, err = inv.UpdateIPAddress(ctx, ip.ID, models.IPAddressRequest{Address: strPtr("10.0.0.2")})
	assert.Equal(t, []string{"Cannot change address when exposing in DHCP"}, fieldErrors(t, err)["address"])

	_, err = inv.UpdateIPAddress(ctx, ip.ID, models.IPAddressRequest{DHCPExpose: boolPtr(false)})
	require.NoError(t, err)
	require.NoError(t, inv.DeleteEthernet(ctx, eth.ID))

	detached, err := inv.GetIPAddress(ctx, ip.ID)
	require.NoError(t, err)
	assert.Nil(t, detached.EthernetID)
	require.NoError(t, inv.DeleteIPAddress(ctx, ip.ID))
}

func TestNetworkNormalization(t *testing.T) {
	inv, f := setup(t)
	ctx := context.Background()
	host := f.DataCenterAsset(nil)

	eth, err := inv.CreateEthernet(ctx, models.EthernetRequest{BaseObject: &host.ID, MAC: strPtr("00-16-3E-AA-BB-CC")})
	require.NoError(t, err)
	assert.Equal(t, "00:16:3e:aa:bb:cc", eth.MAC)
	assert.Equal(t, models.DefaultEthernetSpeed, eth.Speed)

	_, err = inv.CreateEthernet(ctx, models.EthernetRequest{BaseObject: &host.ID, MAC: strPtr("00:16:3e:aa:bb:cc")})
	assert.ErrorIs(t, err, store.ErrConflict)

	_, err = inv.CreateEthernet(ctx, models.EthernetRequest{BaseObject: &host.ID, MAC: strPtr("nope"), Speed: strPtr("fast")})
	fields := fieldErrors(t, err)
	assert.Contains(t, fields, "mac")
	assert.Contains(t, fields, "speed")

	ip, err := inv.CreateIPAddress(ctx, models.IPAddressRequest{
		Address:  strPtr("::ffff:10.1.1.1"),
		Ethernet: models.SetRef(models.Ref{Name: "00:16:3E:AA:BB:CC"}),
	})
	require.NoError(t, err)
	assert.Equal(t, "10.1.1.1", ip.Address)
	require.NotNil(t, ip.EthernetID)
	assert.Equal(t, eth.ID, *ip.EthernetID)

	_, err = inv.CreateIPAddress(ctx, models.IPAddressRequest{Address: strPtr("10.1.1.1")})
	assert.ErrorIs(t, err, store.ErrConflict)
	_, err = inv.CreateIPAddress(ctx, models.IPAddressRequest{Address: strPtr("10.1.1.300")})
	assert.Contains(t, fieldErrors(t, err), "address")

	items, _, err := inv.ListObjects(ctx, store.ObjectQuery{IP: "10.1.1.1"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, host.ID, items[0].ID)
}

func TestUsers(t *testing.T) {
	inv, f := setup(t)
	ctx := context.Background()
	u := f.User("alice", models.RoleAdmin)
	assert.True(t, u.IsActive)
	assert.NotEqual(t, "password123", u.PasswordHash)

	got, err := inv.Authenticate(ctx, " alice ", "password123")
	require.NoError(t, err)
	assert.NotNil(t, got.LastLoginAt)

	_, err = inv.Authenticate(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, inventory.ErrInvalidCredentials)
	_, err = inv.Authenticate(ctx, "bob", "password123")
	assert.ErrorIs(t, err, inventory.ErrInvalidCredentials)

	_, err = inv.CreateUser(ctx, models.CreateUserRequest{Username: "bob", Password: "password123", Roles: []string{"root"}})
	assert.Contains(t, fieldErrors(t, err), "roles")
	_, err = inv.CreateUser(ctx, models.CreateUserRequest{Username: "alice", Password: "password123", Roles: []string{models.RoleViewer}})
	assert.ErrorIs(t, err, store.ErrConflict)

	err = inv.ChangePassword(ctx, u.ID, models.ChangePasswordRequest{CurrentPassword: "nope-nope", NewPassword: "newpassword1"})
	assert.Contains(t, fieldErrors(t, err), "current_password")
	require.NoError(t, inv.ChangePassword(ctx, u.ID, models.ChangePasswordRequest{CurrentPassword: "password123", NewPassword: "newpassword1"}))
	_, err = inv.Authenticate(ctx, "alice", "newpassword1")
	require.NoError(t, err)

	_, err = inv.UpdateUser(ctx, u.ID, models.UpdateUserRequest{IsActive: boolPtr(false)})
	require.NoError(t, err)
	_, err = inv.Authenticate(ctx, "alice", "newpassword1")
	assert.ErrorIs(t, err, inventory.ErrInactiveUser)
}

func TestNormalizeHelpers(t *testing.T) {
	mac, ok := inventory.NormalizeMAC("AA:BB:CC:DD:EE:FF")
	assert.True(t, ok)
	assert.Equal(t, "aa:bb:cc:dd:ee:ff", mac)
	_, ok = inventory.NormalizeMAC("00:00:00:00:fe:80:00:00:00:00:00:00:02:00:5e:10:00:00:00:01")
	assert.False(t, ok, "only 48-bit addresses")

	ip, ok := inventory.NormalizeIP(" 2001:DB8::1 ")
	assert.True(t, ok)
	assert.Equal(t, "2001:db8::1", ip)
	_, ok = inventory.NormalizeIP("fe80::1%eth0")
	assert.False(t, ok)
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool { return &b }

func itoa(id int64) string { return strconv.FormatInt(id, 10) }
