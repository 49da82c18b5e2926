package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"ralph-api/internal/filter"
	"ralph-api/internal/kinds"
	"ralph-api/internal/models"
	"ralph-api/internal/store"
)

var objectSort = map[string]string{
	"id":          "b.id",
	"object_type": "b.content_type",
	"created":     "b.created_at",
	"modified":    "b.updated_at",
}

const baseColumns = `b.id, b.content_type, b.parent_id, b.remarks, b.service_env_id,
		b.configuration_path_id, b.custom_fields, b.created_at, b.updated_at`

func scanBase(row interface{ Scan(...any) error }, o *models.BaseObject, extra ...any) error {
	var parent, serviceEnv, configPath sql.NullInt64
	dest := []any{&o.ID, &o.Kind, &parent, &o.Remarks, &serviceEnv, &configPath,
		&o.CustomFields, &o.CreatedAt, &o.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return err
	}
	o.ParentID = scanNullInt(parent)
	o.ServiceEnvID = scanNullInt(serviceEnv)
	o.ConfigurationPathID = scanNullInt(configPath)
	return nil
}

// selectExpr renders a subtype column in the Go representation of its type
func selectExpr(alias string, f *kinds.Field) string {
	col := alias + "." + f.ColumnName()
	switch f.Type {
	case kinds.Decimal:
		return col + "::float8"
	case kinds.Date:
		return "to_char(" + col + ", 'YYYY-MM-DD')"
	}
	return col
}

// likePattern escapes LIKE wildcards in v
func likePattern(prefix, v, suffix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return prefix + r.Replace(v) + suffix
}

// lookupSQL renders the predicate of one lookup on column col
func lookupSQL(w *where, col string, f *kinds.Field, l store.Lookup) (string, error) {
	switch l.Op {
	case store.OpIsNull:
		isNull, err := filter.ParseBool(l.Value)
		if err != nil {
			return "", err
		}
		if isNull {
			return col + " IS NULL", nil
		}
		return col + " IS NOT NULL", nil
	case store.OpIExact:
		return fmt.Sprintf("LOWER(%s::text) = LOWER($%d)", col, w.next(l.Value)), nil
	case store.OpContains:
		return fmt.Sprintf("%s::text LIKE $%d", col, w.next(likePattern("%", l.Value, "%"))), nil
	case store.OpIContains:
		return fmt.Sprintf("%s::text ILIKE $%d", col, w.next(likePattern("%", l.Value, "%"))), nil
	case store.OpStartsWith:
		return fmt.Sprintf("%s::text LIKE $%d", col, w.next(likePattern("", l.Value, "%"))), nil
	case store.OpIStartsWith:
		return fmt.Sprintf("%s::text ILIKE $%d", col, w.next(likePattern("", l.Value, "%"))), nil
	case store.OpEndsWith:
		return fmt.Sprintf("%s::text LIKE $%d", col, w.next(likePattern("%", l.Value, ""))), nil
	case store.OpIEndsWith:
		return fmt.Sprintf("%s::text ILIKE $%d", col, w.next(likePattern("%", l.Value, ""))), nil
	}

	v, err := f.Parse(l.Value)
	if err != nil {
		return "", err
	}
	ops := map[store.Op]string{
		store.OpExact: "=", store.OpLT: "<", store.OpLTE: "<=", store.OpGT: ">", store.OpGTE: ">=",
	}
	sqlOp, ok := ops[l.Op]
	if !ok {
		return "", errors.Errorf("unsupported lookup %s", l.Op)
	}
	if f.Type == kinds.Date {
		return fmt.Sprintf("%s %s $%d::date", col, sqlOp, w.next(v)), nil
	}
	return fmt.Sprintf("%s %s $%d", col, sqlOp, w.next(v)), nil
}

// kindPredicate restricts b to kinds having field and applies pred to the
// subtype row. It returns "" when no kind in scope has the field.
func kindPredicate(w *where, scope []*kinds.Kind, field string, build func(col string, f *kinds.Field) (string, error)) (string, error) {
	var alts []string
	for _, k := range scope {
		f, ok := k.Field(field)
		if !ok {
			continue
		}
		pred, err := build("t."+f.ColumnName(), f)
		if err != nil {
			return "", err
		}
		alts = append(alts, fmt.Sprintf(
			"(b.content_type = $%d AND EXISTS (SELECT 1 FROM %s t WHERE t.base_object_id = b.id AND %s))",
			w.next(k.Name), k.Table, pred))
	}
	if len(alts) == 0 {
		return "", nil
	}
	return "(" + strings.Join(alts, " OR ") + ")", nil
}

func queryScope(q store.ObjectQuery) []*kinds.Kind {
	if len(q.Kinds) == 0 {
		return kinds.All()
	}
	var out []*kinds.Kind
	for _, name := range q.Kinds {
		if k, ok := kinds.Get(name); ok {
			out = append(out, k)
		}
	}
	return out
}

func (s *Store) ListObjects(ctx context.Context, q store.ObjectQuery) ([]models.BaseObject, int, error) {
	scope := queryScope(q)
	if len(scope) == 0 {
		return []models.BaseObject{}, 0, nil
	}

	w := &where{}
	names := make([]string, len(scope))
	for i, k := range scope {
		names[i] = k.Name
	}
	w.add("b.content_type = ANY($%d)", pq.Array(names))

	if len(q.IDs) > 0 {
		w.add("b.id = ANY($%d)", pq.Array(q.IDs))
	}

	for _, l := range q.Lookups {
		l := l
		if f, ok := kinds.CommonField(l.Field); ok {
			pred, err := lookupSQL(w, "b."+f.Column, f, l)
			if err != nil {
				return nil, 0, store.NewValidationError(l.Field, err.Error())
			}
			w.clauses = append(w.clauses, pred)
			continue
		}
		pred, err := kindPredicate(w, scope, l.Field, func(col string, f *kinds.Field) (string, error) {
			return lookupSQL(w, col, f, l)
		})
		if err != nil {
			return nil, 0, store.NewValidationError(l.Field, err.Error())
		}
		if pred == "" {
			return []models.BaseObject{}, 0, nil
		}
		w.clauses = append(w.clauses, pred)
	}

	for _, tag := range q.Tags {
		w.add("EXISTS (SELECT 1 FROM base_object_tags bt WHERE bt.base_object_id = b.id AND bt.tag = $%d)", tag)
	}
	for key, val := range q.CustomFields {
		w.add("b.custom_fields ->> $%d = $%d", key, val)
	}
	if q.IP != "" {
		w.add(`b.id IN (SELECT e.base_object_id FROM ethernets e
			JOIN ip_addresses ip ON ip.ethernet_id = e.id WHERE ip.address = $%d)`, q.IP)
	}
	if q.Service != "" {
		w.add(`b.service_env_id IN (SELECT se.base_object_id FROM service_environments se
			JOIN services s ON s.id = se.service_id WHERE s.uid = $%d OR s.name = $%d)`, q.Service, q.Service)
	}
	if q.Environment != "" {
		w.add(`b.service_env_id IN (SELECT se.base_object_id FROM service_environments se
			JOIN environments env ON env.id = se.environment_id WHERE env.name = $%d)`, q.Environment)
	}
	for _, nameOpt := range []struct {
		op  store.Op
		val string
	}{{store.OpExact, q.Name}, {store.OpIContains, q.Query}} {
		if nameOpt.val == "" {
			continue
		}
		l := store.Lookup{Field: "name", Op: nameOpt.op, Value: nameOpt.val}
		pred, err := kindPredicate(w, scope, "name", func(col string, f *kinds.Field) (string, error) {
			return lookupSQL(w, col, f, l)
		})
		if err != nil {
			return nil, 0, err
		}
		if pred == "" {
			return []models.BaseObject{}, 0, nil
		}
		w.clauses = append(w.clauses, pred)
	}

	sqlStr := `SELECT ` + baseColumns + `, COUNT(*) OVER() AS total_count FROM base_objects b` + w.sql()
	sqlStr += buildOrderBy(q.Sort, objectSort) + limitOffset(q.ListOptions)

	rows, err := s.dbFrom(ctx).QueryContext(ctx, sqlStr, w.args...)
	if err != nil {
		return nil, 0, translate(err, "base_objects")
	}
	out := []models.BaseObject{}
	var total int
	for rows.Next() {
		var o models.BaseObject
		if err := scanBase(rows, &o, &total); err != nil {
			rows.Close()
			return nil, 0, translate(err, "base_objects")
		}
		out = append(out, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, translate(err, "base_objects")
	}
	if err := s.loadDetails(ctx, out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// loadDetails fills tags and subtype attributes of a page of objects
func (s *Store) loadDetails(ctx context.Context, objects []models.BaseObject) error {
	if len(objects) == 0 {
		return nil
	}
	byID := make(map[int64]*models.BaseObject, len(objects))
	byKind := map[string][]int64{}
	ids := make([]int64, len(objects))
	for i := range objects {
		o := &objects[i]
		ids[i] = o.ID
		byID[o.ID] = o
		byKind[o.Kind] = append(byKind[o.Kind], o.ID)
		o.Tags = []string{}
		o.Attrs = map[string]any{}
	}

	rows, err := s.dbFrom(ctx).QueryContext(ctx, `
		SELECT base_object_id, tag FROM base_object_tags
		WHERE base_object_id = ANY($1) ORDER BY tag`, pq.Array(ids))
	if err != nil {
		return translate(err, "base_object_tags")
	}
	for rows.Next() {
		var id int64
		var tag string
		if err := rows.Scan(&id, &tag); err != nil {
			rows.Close()
			return translate(err, "base_object_tags")
		}
		byID[id].Tags = append(byID[id].Tags, tag)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return translate(err, "base_object_tags")
	}

	for kindName, kindIDs := range byKind {
		k, ok := kinds.Get(kindName)
		if !ok {
			continue
		}
		if err := s.loadAttrs(ctx, k, kindIDs, byID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) loadAttrs(ctx context.Context, k *kinds.Kind, ids []int64, byID map[int64]*models.BaseObject) error {
	exprs := make([]string, len(k.Fields))
	for i := range k.Fields {
		exprs[i] = selectExpr("t", &k.Fields[i])
	}
	sqlStr := fmt.Sprintf(`SELECT t.base_object_id, %s FROM %s t WHERE t.base_object_id = ANY($1)`,
		strings.Join(exprs, ", "), k.Table)
	rows, err := s.dbFrom(ctx).QueryContext(ctx, sqlStr, pq.Array(ids))
	if err != nil {
		return translate(err, k.Table)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		holders := make([]any, len(k.Fields))
		for i := range k.Fields {
			holders[i] = holderFor(k.Fields[i].Type)
		}
		if err := rows.Scan(append([]any{&id}, holders...)...); err != nil {
			return translate(err, k.Table)
		}
		o := byID[id]
		for i := range k.Fields {
			if v := holderValue(holders[i]); v != nil {
				o.Attrs[k.Fields[i].Name] = v
			}
		}
	}
	return translate(rows.Err(), k.Table)
}

func holderFor(t kinds.FieldType) any {
	switch t {
	case kinds.Int, kinds.Reference:
		return &sql.NullInt64{}
	case kinds.Decimal:
		return &sql.NullFloat64{}
	case kinds.Bool:
		return &sql.NullBool{}
	default:
		return &sql.NullString{}
	}
}

func holderValue(h any) any {
	switch v := h.(type) {
	case *sql.NullInt64:
		if v.Valid {
			return v.Int64
		}
	case *sql.NullFloat64:
		if v.Valid {
			return v.Float64
		}
	case *sql.NullBool:
		if v.Valid {
			return v.Bool
		}
	case *sql.NullString:
		if v.Valid {
			return v.String
		}
	}
	return nil
}

func (s *Store) GetObject(ctx context.Context, id int64) (*models.BaseObject, error) {
	var o models.BaseObject
	row := s.dbFrom(ctx).QueryRowContext(ctx, `SELECT `+baseColumns+` FROM base_objects b WHERE b.id = $1`, id)
	if err := scanBase(row, &o); err != nil {
		return nil, translate(err, "base_objects")
	}
	list := []models.BaseObject{o}
	if err := s.loadDetails(ctx, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

// attrArgs returns the subtype column names and values of o
func attrArgs(k *kinds.Kind, o *models.BaseObject) ([]string, []any) {
	cols := make([]string, len(k.Fields))
	vals := make([]any, len(k.Fields))
	for i := range k.Fields {
		cols[i] = k.Fields[i].ColumnName()
		vals[i] = o.Attr(k.Fields[i].Name)
	}
	return cols, vals
}

func placeholders(from, n int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = fmt.Sprintf("$%d", from+i)
	}
	return strings.Join(ph, ", ")
}

func writeTags(ctx context.Context, q querier, o *models.BaseObject) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM base_object_tags WHERE base_object_id = $1`, o.ID); err != nil {
		return translate(err, "base_object_tags")
	}
	if len(o.Tags) == 0 {
		return nil
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO base_object_tags (base_object_id, tag)
		SELECT $1, unnest($2::text[]) ON CONFLICT DO NOTHING`, o.ID, pq.Array(o.Tags))
	return translate(err, "base_object_tags")
}

func (s *Store) CreateObject(ctx context.Context, o *models.BaseObject) error {
	k, ok := kinds.Get(o.Kind)
	if !ok {
		return errors.Errorf("unknown kind %q", o.Kind)
	}
	return s.inTx(ctx, func(q querier) error {
		err := q.QueryRowContext(ctx, `
			INSERT INTO base_objects (content_type, parent_id, remarks, service_env_id, configuration_path_id, custom_fields)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, created_at, updated_at`,
			o.Kind, nullInt(o.ParentID), o.Remarks, nullInt(o.ServiceEnvID), nullInt(o.ConfigurationPathID), o.CustomFields).
			Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
		if err != nil {
			return translate(err, "base_objects")
		}

		cols, vals := attrArgs(k, o)
		sqlStr := fmt.Sprintf(`INSERT INTO %s (base_object_id, %s) VALUES ($1, %s)`,
			k.Table, strings.Join(cols, ", "), placeholders(2, len(cols)))
		if _, err := q.ExecContext(ctx, sqlStr, append([]any{o.ID}, vals...)...); err != nil {
			return translate(err, k.Table)
		}
		return writeTags(ctx, q, o)
	})
}

func (s *Store) UpdateObject(ctx context.Context, o *models.BaseObject) error {
	return s.inTx(ctx, func(q querier) error {
		err := q.QueryRowContext(ctx, `
			UPDATE base_objects
			SET parent_id = $1, remarks = $2, service_env_id = $3, configuration_path_id = $4,
			    custom_fields = $5, updated_at = now()
			WHERE id = $6
			RETURNING content_type, created_at, updated_at`,
			nullInt(o.ParentID), o.Remarks, nullInt(o.ServiceEnvID), nullInt(o.ConfigurationPathID), o.CustomFields, o.ID).
			Scan(&o.Kind, &o.CreatedAt, &o.UpdatedAt)
		if err != nil {
			return translate(err, "base_objects")
		}
		k, ok := kinds.Get(o.Kind)
		if !ok {
			return errors.Errorf("unknown kind %q", o.Kind)
		}

		cols, vals := attrArgs(k, o)
		sets := make([]string, len(cols))
		for i, c := range cols {
			sets[i] = fmt.Sprintf("%s = $%d", c, i+1)
		}
		sqlStr := fmt.Sprintf(`UPDATE %s SET %s WHERE base_object_id = $%d`,
			k.Table, strings.Join(sets, ", "), len(cols)+1)
		if _, err := q.ExecContext(ctx, sqlStr, append(vals, o.ID)...); err != nil {
			return translate(err, k.Table)
		}
		return writeTags(ctx, q, o)
	})
}

// DeleteObject relies on the schema: subtype rows, tags and ethernets
// cascade, ip addresses are detached, children and service env users block.
func (s *Store) DeleteObject(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "base_objects", id)
}
