package filter

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ralph-api/internal/kinds"
	"ralph-api/internal/store"
)

func kind(t *testing.T, name string) *kinds.Kind {
	t.Helper()
	k, ok := kinds.Get(name)
	require.True(t, ok, name)
	return k
}

func TestSplitLookup(t *testing.T) {
	tests := []struct {
		param string
		field string
		op    store.Op
	}{
		{"hostname", "hostname", store.OpExact},
		{"hostname__icontains", "hostname", store.OpIContains},
		{"price__gte", "price", store.OpGTE},
		{"parent__isnull", "parent", store.OpIsNull},
		{"invoice_no__bogus", "invoice_no__bogus", store.OpExact},
		{"__gt", "__gt", store.OpExact},
	}
	for _, tt := range tests {
		t.Run(tt.param, func(t *testing.T) {
			field, op := SplitLookup(tt.param)
			assert.Equal(t, tt.field, field)
			assert.Equal(t, tt.op, op)
		})
	}
}

func TestParseObjectQuery(t *testing.T) {
	scope := []*kinds.Kind{kind(t, "datacenterasset"), kind(t, "backofficeasset")}
	values := url.Values{
		"hostname__startswith": {"s1"},
		"price__lt":            {"100"},
		"rack":                 {"A"},
		"unknown_field":        {"x"},
		"limit":                {"10"},
		"ip":                   {"10.0.0.1"},
		"service":              {"sc-1"},
		"env":                  {"prod"},
		"tag":                  {"db", " ", "critical"},
		"customfield__owner":   {"ops"},
	}

	q, err := ParseObjectQuery(values, scope)
	require.NoError(t, err)

	assert.Equal(t, []string{"datacenterasset", "backofficeasset"}, q.Kinds)
	assert.Equal(t, "10.0.0.1", q.IP)
	assert.Equal(t, "sc-1", q.Service)
	assert.Equal(t, "prod", q.Environment)
	assert.Equal(t, []string{"db", "critical"}, q.Tags)
	assert.Equal(t, map[string]string{"owner": "ops"}, q.CustomFields)
	assert.ElementsMatch(t, []store.Lookup{
		{Field: "hostname", Op: store.OpStartsWith, Value: "s1"},
		{Field: "price", Op: store.OpLT, Value: "100"},
		{Field: "rack", Op: store.OpExact, Value: "A"},
	}, q.Lookups)
}

func TestParseObjectQueryCanonicalIP(t *testing.T) {
	scope := []*kinds.Kind{kind(t, "datacenterasset")}
	tests := []struct {
		raw  string
		want string
	}{
		{"10.0.0.1", "10.0.0.1"},
		{" 2001:DB8::1 ", "2001:db8::1"},
		{"2001:0db8:0000:0000:0000:0000:0000:0001", "2001:db8::1"},
		{"::ffff:10.0.0.1", "10.0.0.1"},
		{"10.0.0", "10.0.0"},
		{"fe80::1%eth0", "fe80::1%eth0"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			q, err := ParseObjectQuery(url.Values{"ip": {tt.raw}}, scope)
			require.NoError(t, err)
			assert.Equal(t, tt.want, q.IP)
		})
	}
}

func TestParseObjectQueryInvalidValues(t *testing.T) {
	scope := []*kinds.Kind{kind(t, "datacenterasset")}
	_, err := ParseObjectQuery(url.Values{
		"price__gt":      {"cheap"},
		"parent__isnull": {"perhaps"},
		"invoice_date":   {"yesterday"},
	}, scope)

	var verr *store.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "price__gt")
	assert.Contains(t, verr.Fields, "parent__isnull")
	assert.Contains(t, verr.Fields, "invoice_date")
}

func TestParseObjectQueryObjectType(t *testing.T) {
	scope := kinds.All()

	q, err := ParseObjectQuery(url.Values{"object_type": {"Cluster, domain"}}, scope)
	require.NoError(t, err)
	assert.Equal(t, []string{"cluster", "domain"}, q.Kinds)

	q, err = ParseObjectQuery(url.Values{"object_type": {"cluster"}}, []*kinds.Kind{kind(t, "domain")})
	require.NoError(t, err)
	assert.Equal(t, []string{""}, q.Kinds, "kinds outside the endpoint match nothing")
}

func TestParseBoolAndID(t *testing.T) {
	v, err := ParseBool("True")
	require.NoError(t, err)
	assert.True(t, v)
	_, err = ParseBool("2")
	assert.Error(t, err)

	id, err := ParseID(" 9 ")
	require.NoError(t, err)
	assert.Equal(t, int64(9), id)
	for _, bad := range []string{"0", "-1", "x"} {
		_, err := ParseID(bad)
		assert.Error(t, err, bad)
	}
}

func TestMatch(t *testing.T) {
	text := &kinds.Field{Type: kinds.Text}
	num := &kinds.Field{Type: kinds.Decimal}
	date := &kinds.Field{Type: kinds.Date}

	tests := []struct {
		name  string
		field *kinds.Field
		op    store.Op
		have  any
		raw   string
		want  bool
	}{
		{"exact", text, store.OpExact, "s1", "s1", true},
		{"exact is case sensitive", text, store.OpExact, "S1", "s1", false},
		{"iexact", text, store.OpIExact, "S1", "s1", true},
		{"icontains", text, store.OpIContains, "Web-Server", "server", true},
		{"contains", text, store.OpContains, "Web-Server", "server", false},
		{"istartswith", text, store.OpIStartsWith, "Web", "we", true},
		{"endswith", text, store.OpEndsWith, "db.local", ".local", true},
		{"unset never matches", text, store.OpExact, nil, "x", false},
		{"isnull true on unset", text, store.OpIsNull, nil, "true", true},
		{"isnull false on set", text, store.OpIsNull, "x", "false", true},
		{"lt", num, store.OpLT, 10.0, "20", true},
		{"gte equal", num, store.OpGTE, 20.0, "20", true},
		{"gt", num, store.OpGT, 10.0, "20", false},
		{"date lte", date, store.OpLTE, "2024-01-01", "2024-06-30", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Match(tt.field, tt.op, tt.have, tt.raw))
		})
	}
}

func TestCompare(t *testing.T) {
	c, ok := Compare(int64(1), 2)
	require.True(t, ok)
	assert.Equal(t, -1, c)

	c, ok = Compare(2.5, int64(2))
	require.True(t, ok)
	assert.Equal(t, 1, c)

	c, ok = Compare(false, true)
	require.True(t, ok)
	assert.Equal(t, -1, c)

	_, ok = Compare("a", int64(1))
	assert.False(t, ok)
}
