// Package importer loads base objects from Excel workbooks.
package importer

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/tealeg/xlsx/v3"
	"gopkg.in/yaml.v3"

	"ralph-api/internal/inventory"
	"ralph-api/internal/kinds"
	"ralph-api/internal/models"
	"ralph-api/internal/store"
)

const (
	// DefaultMaxErrors is the error budget of an import
	DefaultMaxErrors = 50
	maxSamples       = 10
	// AnySheet matches sheets without a mapping of their own
	AnySheet = "*"
)

// ErrTooManyErrors stops an import whose error budget is spent
var ErrTooManyErrors = errors.New("too many errors")

var errDryRun = errors.New("dry run")

// Options configures one import
type Options struct {
	// Mapping describes the sheets; nil maps every sheet onto Kind with
	// headers used as field names
	Mapping   *Mapping
	Kind      string
	DryRun    bool
	MaxErrors int
}

// RowError represents an error that occurred during row processing
type RowError struct {
	Sheet   string `json:"sheet"`
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// SheetSummary contains the import statistics for a single sheet
type SheetSummary struct {
	Name     string     `json:"name"`
	Kind     string     `json:"kind"`
	Inserted int        `json:"inserted"`
	Updated  int        `json:"updated"`
	Skipped  int        `json:"skipped"`
	Errors   int        `json:"errors"`
	Samples  []RowError `json:"error_samples,omitempty"`
}

// Summary contains the overall import statistics
type Summary struct {
	Inserted int            `json:"inserted"`
	Updated  int            `json:"updated"`
	Skipped  int            `json:"skipped"`
	Errors   int            `json:"errors"`
	Sheets   []SheetSummary `json:"sheets"`
	DryRun   bool           `json:"dry_run"`
}

// Mapping is the YAML description of a workbook
type Mapping struct {
	Version int                     `yaml:"version"`
	Sheets  map[string]SheetMapping `yaml:"sheets"`
}

// SheetMapping maps the columns of a sheet onto the fields of a kind
type SheetMapping struct {
	Kind string `yaml:"kind"`
	// NaturalKey lists the fields identifying an existing object
	NaturalKey []string `yaml:"natural_key"`
	// Columns maps a header to a field name
	Columns map[string]string `yaml:"columns"`
	// Aliases lists alternative headers per field
	Aliases  map[string][]string `yaml:"aliases"`
	Defaults map[string]string   `yaml:"defaults"`
}

// LoadMapping parses and checks a YAML mapping
func LoadMapping(r io.Reader) (*Mapping, error) {
	var m Mapping
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, errors.Wrap(err, "parse mapping")
	}
	if len(m.Sheets) == 0 {
		return nil, errors.New("mapping has no sheets")
	}
	for name, sm := range m.Sheets {
		if _, ok := kinds.Get(sm.Kind); !ok {
			return nil, errors.Errorf("sheet %q: unknown kind %q", name, sm.Kind)
		}
	}
	return &m, nil
}

// DefaultMapping imports every sheet as objects of kind
func DefaultMapping(kind string) *Mapping {
	return &Mapping{Version: 1, Sheets: map[string]SheetMapping{AnySheet: {Kind: kind}}}
}

// Importer writes workbook rows through the inventory, so imported objects
// get the same validation as API writes
type Importer struct {
	inv *inventory.Inventory
	log logrus.FieldLogger
}

func New(inv *inventory.Inventory, log logrus.FieldLogger) *Importer {
	return &Importer{inv: inv, log: log}
}

// ImportExcel imports the sheets of the workbook read from r. Each row is
// written in its own transaction; a dry run rolls every row back.
func (imp *Importer) ImportExcel(ctx context.Context, r io.Reader, opts Options) (Summary, error) {
	summary := Summary{DryRun: opts.DryRun, Sheets: []SheetSummary{}}
	if opts.MaxErrors <= 0 {
		opts.MaxErrors = DefaultMaxErrors
	}
	mapping := opts.Mapping
	if mapping == nil {
		if _, ok := kinds.Get(opts.Kind); !ok {
			return summary, errors.Errorf("unknown kind %q", opts.Kind)
		}
		mapping = DefaultMapping(opts.Kind)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return summary, errors.Wrap(err, "read workbook")
	}
	wb, err := xlsx.OpenBinary(data)
	if err != nil {
		return summary, errors.Wrap(err, "open workbook")
	}

	for _, sheet := range wb.Sheets {
		sm, ok := mapping.Sheets[sheet.Name]
		if !ok {
			if sm, ok = mapping.Sheets[AnySheet]; !ok {
				continue
			}
		}
		k, ok := kinds.Get(sm.Kind)
		if !ok || k.ReadOnly {
			return summary, errors.Errorf("sheet %q: kind %q cannot be imported", sheet.Name, sm.Kind)
		}

		ss, err := imp.importSheet(ctx, sheet, k, sm, opts)
		if err != nil {
			return summary, errors.Wrapf(err, "sheet %q", sheet.Name)
		}
		summary.Sheets = append(summary.Sheets, ss)
		summary.Inserted += ss.Inserted
		summary.Updated += ss.Updated
		summary.Skipped += ss.Skipped
		summary.Errors += ss.Errors

		if summary.Errors > opts.MaxErrors {
			return summary, errors.Wrapf(ErrTooManyErrors, "%d errors", summary.Errors)
		}
	}

	imp.log.WithFields(logrus.Fields{
		"inserted": summary.Inserted,
		"updated":  summary.Updated,
		"skipped":  summary.Skipped,
		"errors":   summary.Errors,
		"dry_run":  summary.DryRun,
	}).Info("excel import finished")
	return summary, nil
}

func (imp *Importer) importSheet(ctx context.Context, sheet *xlsx.Sheet, k *kinds.Kind, sm SheetMapping, opts Options) (SheetSummary, error) {
	ss := SheetSummary{Name: sheet.Name, Kind: k.Name}
	rows, err := readRows(sheet)
	if err != nil {
		return ss, err
	}
	if len(rows) == 0 {
		return ss, nil
	}
	columns := headerFields(rows[0], k, sm)

	for i, cells := range rows[1:] {
		rowNo := i + 2
		values := map[string]string{}
		for field, v := range sm.Defaults {
			values[field] = v
		}
		empty := true
		for col, v := range cells {
			field, ok := columns[col]
			if !ok || v == "" {
				continue
			}
			values[field] = v
			empty = false
		}
		if empty {
			ss.Skipped++
			continue
		}

		inserted, err := imp.importRow(ctx, k, sm, values, opts.DryRun)
		if err != nil {
			if !isRowError(err) {
				return ss, err
			}
			ss.Errors++
			if len(ss.Samples) < maxSamples {
				ss.Samples = append(ss.Samples, RowError{Sheet: sheet.Name, Row: rowNo, Message: rowMessage(err)})
			}
			if ss.Errors > opts.MaxErrors {
				return ss, nil
			}
			continue
		}
		if inserted {
			ss.Inserted++
		} else {
			ss.Updated++
		}
	}
	return ss, nil
}

// importRow creates or updates one object and reports whether it was new
func (imp *Importer) importRow(ctx context.Context, k *kinds.Kind, sm SheetMapping, values map[string]string, dryRun bool) (bool, error) {
	req, err := buildRequest(k, values)
	if err != nil {
		return false, err
	}
	inserted := false
	err = imp.inv.Store().WithTx(ctx, func(ctx context.Context) error {
		id, err := imp.findExisting(ctx, k, sm.NaturalKey, values)
		if err != nil {
			return err
		}
		if id == 0 {
			inserted = true
			_, err = imp.inv.CreateObject(ctx, k, req)
		} else {
			_, err = imp.inv.UpdateObject(ctx, k, id, req)
		}
		if err != nil {
			return err
		}
		if dryRun {
			return errDryRun
		}
		return nil
	})
	if errors.Is(err, errDryRun) {
		err = nil
	}
	return inserted, err
}

// findExisting returns the id of the object matching every natural key
// field, or 0. Rows missing a key field never match.
func (imp *Importer) findExisting(ctx context.Context, k *kinds.Kind, naturalKey []string, values map[string]string) (int64, error) {
	if len(naturalKey) == 0 {
		return 0, nil
	}
	q := store.ObjectQuery{Kinds: []string{k.Name}, ListOptions: store.ListOptions{Limit: 2}}
	for _, field := range naturalKey {
		v, ok := values[field]
		if !ok {
			return 0, nil
		}
		q.Lookups = append(q.Lookups, store.Lookup{Field: field, Op: store.OpExact, Value: v})
	}
	objs, total, err := imp.inv.ListObjects(ctx, q)
	if err != nil {
		return 0, err
	}
	switch {
	case total == 0:
		return 0, nil
	case total > 1:
		return 0, store.NewValidationError("non_field_errors", "Natural key matches several objects.")
	}
	return objs[0].ID, nil
}

// buildRequest turns cell values into the JSON body an API client would send
func buildRequest(k *kinds.Kind, values map[string]string) (models.BaseObjectRequest, error) {
	body := map[string]any{}
	for field, v := range values {
		switch field {
		case "tags":
			var tags []string
			for _, t := range strings.Split(v, ",") {
				if t = strings.TrimSpace(t); t != "" {
					tags = append(tags, t)
				}
			}
			body[field] = tags
			continue
		case "remarks":
			body[field] = v
			continue
		case "parent", "service_env", "configuration_path":
			body[field] = refValue(v)
			continue
		}
		f, ok := k.Field(field)
		if !ok {
			continue
		}
		body[f.Name] = cellValue(f, v)
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return models.BaseObjectRequest{}, errors.Wrap(err, "encode row")
	}
	var req models.BaseObjectRequest
	if err := json.NewDecoder(bytes.NewReader(raw)).Decode(&req); err != nil {
		return models.BaseObjectRequest{}, store.NewValidationError("non_field_errors", err.Error())
	}
	return req, nil
}

// cellValue converts a cell to the JSON type of f. Values that do not
// parse are passed as text so validation reports them.
func cellValue(f *kinds.Field, v string) any {
	switch f.Type {
	case kinds.Int:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	case kinds.Decimal:
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			return n
		}
	case kinds.Bool:
		switch strings.ToLower(v) {
		case "yes", "y", "true", "1":
			return true
		case "no", "n", "false", "0":
			return false
		}
	case kinds.Reference:
		return refValue(v)
	}
	return v
}

func refValue(v string) any {
	if id, err := strconv.ParseInt(v, 10, 64); err == nil && id > 0 {
		return id
	}
	return v
}

// headerFields maps column indexes to field names. Explicit columns and
// aliases win; otherwise a header naming a field of k maps onto it.
func headerFields(header map[int]string, k *kinds.Kind, sm SheetMapping) map[int]string {
	lookup := map[string]string{}
	for h, field := range sm.Columns {
		lookup[normalizeHeader(h)] = field
	}
	for field, aliases := range sm.Aliases {
		for _, a := range aliases {
			lookup[normalizeHeader(a)] = field
		}
	}

	out := map[int]string{}
	for col, h := range header {
		name := normalizeHeader(h)
		if field, ok := lookup[name]; ok {
			out[col] = field
			continue
		}
		if _, ok := k.Field(name); ok {
			out[col] = name
			continue
		}
		if _, ok := kinds.CommonField(name); ok || name == "tags" {
			out[col] = name
		}
	}
	return out
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.Join(strings.Fields(h), "_")
}

// readRows returns the trimmed cell values of every row by column index
func readRows(sheet *xlsx.Sheet) ([]map[int]string, error) {
	var rows []map[int]string
	err := sheet.ForEachRow(func(row *xlsx.Row) error {
		idx := row.GetCoordinate()
		for len(rows) <= idx {
			rows = append(rows, map[int]string{})
		}
		return row.ForEachCell(func(c *xlsx.Cell) error {
			col, _ := c.GetCoordinates()
			rows[idx][col] = strings.TrimSpace(c.String())
			return nil
		})
	})
	if err != nil {
		return nil, errors.Wrap(err, "read rows")
	}
	return rows, nil
}

func isRowError(err error) bool {
	var verr *store.ValidationError
	return errors.As(err, &verr) || errors.Is(err, store.ErrConflict) ||
		errors.Is(err, store.ErrProtected) || errors.Is(err, store.ErrNotFound)
}

// rowMessage flattens a row error into one line, fields in order
func rowMessage(err error) string {
	var verr *store.ValidationError
	if !errors.As(err, &verr) {
		return err.Error()
	}
	fields := make([]string, 0, len(verr.Fields))
	for f := range verr.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+strings.Join(verr.Fields[f], " "))
	}
	return strings.Join(parts, "; ")
}
