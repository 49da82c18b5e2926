package kinds

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ralph-api/internal/models"
)

func TestRegistry(t *testing.T) {
	names := Names()
	assert.Contains(t, names, "datacenterasset")
	assert.Contains(t, names, ServiceEnvironment)
	assert.IsIncreasing(t, names)

	k, ok := Get("DataCenterAsset")
	require.True(t, ok, "lookup is case-insensitive")
	assert.Equal(t, "data_center_assets", k.Table)

	_, ok = Get("rack")
	assert.False(t, ok)

	for _, k := range Writable() {
		assert.NotEqual(t, ServiceEnvironment, k.Name, "service environments are read-only")
	}
	assert.Len(t, Writable(), len(All())-1)
}

func TestRegisterDuplicatePanics(t *testing.T) {
	assert.Panics(t, func() { Register(&Kind{Name: "cluster"}) })
}

func TestKindField(t *testing.T) {
	k, _ := Get("backofficeasset")

	f, ok := k.Field("name")
	require.True(t, ok)
	assert.Equal(t, "hostname", f.Name, "name aliases the hostname")

	f, ok = k.Field("model")
	require.True(t, ok)
	assert.Equal(t, "model_id", f.ColumnName())
	assert.Equal(t, "assetmodel", f.Target)

	_, ok = k.Field("rack")
	assert.False(t, ok)
}

func TestKindString(t *testing.T) {
	dc, _ := Get("datacenterasset")
	o := &models.BaseObject{ID: 7, Attrs: map[string]any{}}
	assert.Equal(t, "data center asset: 7", dc.String(o))

	o.Attrs["sn"] = "SN-1"
	assert.Equal(t, "data center asset: SN-1", dc.String(o))

	o.Attrs["hostname"] = "s1.dc"
	assert.Equal(t, "data center asset: s1.dc", dc.String(o))

	vip, _ := Get("vip")
	o = &models.BaseObject{ID: 1, Attrs: map[string]any{
		"name": "web", "ip": "10.0.0.1", "port": int64(443), "protocol": "TCP",
	}}
	assert.Equal(t, "VIP: web (10.0.0.1:443/TCP)", vip.String(o))

	se, _ := Get(ServiceEnvironment)
	o = &models.BaseObject{ID: 3, Attrs: map[string]any{
		AttrServiceName: "billing", AttrEnvironmentName: "prod",
	}}
	assert.Equal(t, "service environment: billing - prod", se.String(o))
}

func TestCommonField(t *testing.T) {
	f, ok := CommonField("service_env")
	require.True(t, ok)
	assert.Equal(t, Reference, f.Type)
	assert.Equal(t, "service_env_id", f.ColumnName())

	_, ok = CommonField("hostname")
	assert.False(t, ok)
}

func TestFieldDecode(t *testing.T) {
	tests := []struct {
		name    string
		field   Field
		raw     string
		want    any
		wantErr string
	}{
		{"null", Field{Type: Text}, "null", nil, ""},
		{"text", Field{Type: Text}, `"abc"`, "abc", ""},
		{"text wrong type", Field{Type: Text}, `12`, nil, "Not a valid string."},
		{"int", Field{Type: Int}, `42`, int64(42), ""},
		{"int from fraction", Field{Type: Int}, `4.2`, nil, "A valid integer is required."},
		{"int from string", Field{Type: Int}, `"x"`, nil, "A valid integer is required."},
		{"decimal", Field{Type: Decimal}, `12.5`, 12.5, ""},
		{"date", Field{Type: Date}, `"2024-02-29"`, "2024-02-29", ""},
		{"bad date", Field{Type: Date}, `"29/02/2024"`, nil, "Date has wrong format. Use YYYY-MM-DD."},
		{"bool", Field{Type: Bool}, `true`, true, ""},
		{"bool from string", Field{Type: Bool}, `"yes"`, nil, "Must be a valid boolean."},
		{"reference id", Field{Type: Reference}, `5`, models.Ref{ID: 5}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.field.Decode(json.RawMessage(tt.raw))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantErr, err.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFieldParse(t *testing.T) {
	ref := Field{Type: Reference}
	v, err := ref.Parse(" 12 ")
	require.NoError(t, err)
	assert.Equal(t, int64(12), v)

	b := Field{Type: Bool}
	for in, want := range map[string]bool{"1": true, "on": true, "off": false, "": false} {
		v, err := b.Parse(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, v, in)
	}
	_, err = b.Parse("maybe")
	assert.Error(t, err)
}

func TestFieldHasChoice(t *testing.T) {
	free := Field{Type: Text}
	assert.True(t, free.HasChoice("anything"))

	status := Field{Type: Text, Choices: []string{"new", "used"}}
	assert.True(t, status.HasChoice("used"))
	assert.False(t, status.HasChoice("USED"))
}
