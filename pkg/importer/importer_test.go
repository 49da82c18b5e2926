package importer

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v3"

	"ralph-api/internal/inventory"
	"ralph-api/internal/logging"
	"ralph-api/internal/store"
	"ralph-api/internal/store/memory"
)

func workbook(t *testing.T, sheets map[string][][]string) *bytes.Buffer {
	t.Helper()
	f := xlsx.NewFile()
	for name, rows := range sheets {
		sh, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, cells := range rows {
			row := sh.AddRow()
			for _, v := range cells {
				row.AddCell().SetString(v)
			}
		}
	}
	buf := &bytes.Buffer{}
	require.NoError(t, f.Write(buf))
	return buf
}

func newImporter(t *testing.T) (*Importer, *inventory.Inventory) {
	t.Helper()
	st, err := memory.New()
	require.NoError(t, err)
	inv := inventory.New(st, inventory.WithLogger(logging.Discard()))
	return New(inv, logging.Discard()), inv
}

func countDomains(t *testing.T, inv *inventory.Inventory) int {
	t.Helper()
	_, total, err := inv.ListObjects(context.Background(), store.ObjectQuery{
		Kinds:       []string{"domain"},
		ListOptions: store.ListOptions{Limit: 10},
	})
	require.NoError(t, err)
	return total
}

func TestImportExcel_DefaultMapping(t *testing.T) {
	imp, inv := newImporter(t)
	wb := workbook(t, map[string][][]string{
		"domains": {
			{"Name", "Domain Holder", "Tags"},
			{"ralph.example.com", "ACME", "prod, dns"},
			{"", "", ""},
			{"docs.example.com", "", ""},
		},
	})

	sum, err := imp.ImportExcel(context.Background(), wb, Options{Kind: "domain"})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Inserted)
	assert.Equal(t, 1, sum.Skipped)
	assert.Equal(t, 0, sum.Errors)
	require.Len(t, sum.Sheets, 1)
	assert.Equal(t, "domain", sum.Sheets[0].Kind)

	objs, _, err := inv.ListObjects(context.Background(), store.ObjectQuery{
		Kinds:       []string{"domain"},
		Lookups:     []store.Lookup{{Field: "name", Op: store.OpExact, Value: "ralph.example.com"}},
		ListOptions: store.ListOptions{Limit: 10},
	})
	require.NoError(t, err)
	require.Len(t, objs, 1)
	assert.Equal(t, "ACME", objs[0].StringAttr("domain_holder"))
	assert.Equal(t, []string{"dns", "prod"}, objs[0].Tags)
}

func TestImportExcel_NaturalKeyUpdates(t *testing.T) {
	imp, inv := newImporter(t)
	mapping, err := LoadMapping(strings.NewReader(`
version: 1
sheets:
  Domains:
    kind: domain
    natural_key: [name]
    columns:
      Domain: name
    aliases:
      domain_holder: [Holder, Owner]
`))
	require.NoError(t, err)

	first := workbook(t, map[string][][]string{
		"Domains": {{"Domain", "Holder"}, {"ralph.example.com", "ACME"}},
	})
	sum, err := imp.ImportExcel(context.Background(), first, Options{Mapping: mapping})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Inserted)

	second := workbook(t, map[string][][]string{
		"Domains": {{"Domain", "Owner"}, {"ralph.example.com", "Initech"}},
		"Ignored": {{"Domain"}, {"other.example.com"}},
	})
	sum, err = imp.ImportExcel(context.Background(), second, Options{Mapping: mapping})
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Inserted)
	assert.Equal(t, 1, sum.Updated)
	assert.Len(t, sum.Sheets, 1)
	assert.Equal(t, 1, countDomains(t, inv))
}

func TestImportExcel_DryRunWritesNothing(t *testing.T) {
	imp, inv := newImporter(t)
	wb := workbook(t, map[string][][]string{
		"domains": {{"name"}, {"a.example.com"}, {"b.example.com"}},
	})

	sum, err := imp.ImportExcel(context.Background(), wb, Options{Kind: "domain", DryRun: true})
	require.NoError(t, err)
	assert.True(t, sum.DryRun)
	assert.Equal(t, 2, sum.Inserted)
	assert.Equal(t, 0, countDomains(t, inv))
}

func TestImportExcel_RowErrors(t *testing.T) {
	imp, _ := newImporter(t)
	wb := workbook(t, map[string][][]string{
		"domains": {
			{"name", "domain_status"},
			{"a.example.com", "bogus"},
			{"b.example.com", "active"},
		},
	})

	sum, err := imp.ImportExcel(context.Background(), wb, Options{Kind: "domain"})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Inserted)
	assert.Equal(t, 1, sum.Errors)
	require.Len(t, sum.Sheets[0].Samples, 1)
	assert.Equal(t, 2, sum.Sheets[0].Samples[0].Row)
	assert.Contains(t, sum.Sheets[0].Samples[0].Message, "domain_status")
}

func TestImportExcel_ErrorBudget(t *testing.T) {
	imp, _ := newImporter(t)
	rows := [][]string{{"name", "domain_status"}}
	for i := 0; i < 3; i++ {
		rows = append(rows, []string{"x.example.com", "bogus"})
	}
	wb := workbook(t, map[string][][]string{"domains": rows})

	sum, err := imp.ImportExcel(context.Background(), wb, Options{Kind: "domain", MaxErrors: 1})
	require.ErrorIs(t, err, ErrTooManyErrors)
	assert.Equal(t, 2, sum.Errors)
}

func TestImportExcel_UnknownKind(t *testing.T) {
	imp, _ := newImporter(t)
	_, err := imp.ImportExcel(context.Background(), &bytes.Buffer{}, Options{Kind: "spaceship"})
	assert.Error(t, err)
}

func TestLoadMapping(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
	}{
		{"valid", "sheets:\n  Hosts:\n    kind: cloudhost\n", false},
		{"no sheets", "version: 1\n", true},
		{"unknown kind", "sheets:\n  Hosts:\n    kind: spaceship\n", true},
		{"unknown key", "sheets:\n  Hosts:\n    kind: cloudhost\n    colums: {}\n", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadMapping(strings.NewReader(tt.yaml))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNormalizeHeader(t *testing.T) {
	assert.Equal(t, "domain_holder", normalizeHeader("  Domain   Holder "))
	assert.Equal(t, "sn", normalizeHeader("SN"))
}
