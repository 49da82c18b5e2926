// Package filter turns list query strings into store queries and evaluates
// field lookups for backends that filter in memory.
package filter

import (
	"errors"
	"net/url"
	"strconv"
	"strings"

	"ralph-api/internal/inventory"
	"ralph-api/internal/kinds"
	"ralph-api/internal/store"
)

const customFieldPrefix = "customfield__"

// reserved parameters are consumed by paging or by dedicated filters
var reserved = map[string]bool{
	"limit": true, "offset": true, "sort": true, "ordering": true, "q": true,
	"format": true, "ip": true, "service": true, "env": true, "tag": true,
	"object_type": true,
}

// SplitLookup splits "hostname__icontains" into field and operator.
// A missing or unknown suffix yields the exact operator on the whole name.
func SplitLookup(param string) (string, store.Op) {
	idx := strings.LastIndex(param, "__")
	if idx <= 0 {
		return param, store.OpExact
	}
	suffix := store.Op(param[idx+2:])
	for _, op := range store.Ops {
		if op == suffix {
			return param[:idx], op
		}
	}
	return param, store.OpExact
}

// ResolveField finds a field on a kind or among the common columns
func ResolveField(k *kinds.Kind, name string) (*kinds.Field, bool) {
	if f, ok := kinds.CommonField(name); ok {
		return f, true
	}
	if k == nil {
		return nil, false
	}
	return k.Field(name)
}

// ParseObjectQuery builds an ObjectQuery from query values. scope lists the
// kinds the endpoint serves. Parameters naming no field of any kind in scope
// are ignored; values that do not parse for a matching field fail with a
// *store.ValidationError.
func ParseObjectQuery(values url.Values, scope []*kinds.Kind) (store.ObjectQuery, error) {
	q := store.ObjectQuery{}
	verr := &store.ValidationError{}

	for _, k := range scope {
		q.Kinds = append(q.Kinds, k.Name)
	}
	if raw := strings.TrimSpace(values.Get("object_type")); raw != "" {
		q.Kinds = restrictKinds(q.Kinds, strings.Split(raw, ","))
	}

	q.IP = strings.TrimSpace(values.Get("ip"))
	if ip, ok := inventory.NormalizeIP(q.IP); ok {
		q.IP = ip
	}
	q.Service = strings.TrimSpace(values.Get("service"))
	q.Environment = strings.TrimSpace(values.Get("env"))
	for _, t := range values["tag"] {
		if t = strings.TrimSpace(t); t != "" {
			q.Tags = append(q.Tags, t)
		}
	}

	for param, vals := range values {
		if reserved[param] || len(vals) == 0 {
			continue
		}
		if strings.HasPrefix(param, customFieldPrefix) {
			attr := strings.TrimPrefix(param, customFieldPrefix)
			if attr == "" {
				continue
			}
			if q.CustomFields == nil {
				q.CustomFields = map[string]string{}
			}
			q.CustomFields[attr] = vals[0]
			continue
		}

		field, op := SplitLookup(param)
		fields := fieldsInScope(field, scope)
		if len(fields) == 0 {
			continue
		}
		for _, value := range vals {
			if err := checkValue(fields, op, value); err != nil {
				verr.Add(param, err.Error())
				continue
			}
			q.Lookups = append(q.Lookups, store.Lookup{Field: field, Op: op, Value: value})
		}
	}

	if err := verr.Err(); err != nil {
		return store.ObjectQuery{}, err
	}
	return q, nil
}

func restrictKinds(scope []string, requested []string) []string {
	allowed := map[string]bool{}
	for _, k := range scope {
		allowed[k] = true
	}
	var out []string
	for _, r := range requested {
		r = strings.ToLower(strings.TrimSpace(r))
		if r == "" {
			continue
		}
		if allowed[r] {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		// no requested kind is served here, match nothing
		return []string{""}
	}
	return out
}

func fieldsInScope(name string, scope []*kinds.Kind) []*kinds.Field {
	if f, ok := kinds.CommonField(name); ok {
		return []*kinds.Field{f}
	}
	var out []*kinds.Field
	for _, k := range scope {
		if f, ok := k.Field(name); ok {
			out = append(out, f)
		}
	}
	return out
}

func checkValue(fields []*kinds.Field, op store.Op, value string) error {
	if op == store.OpIsNull {
		if _, err := ParseBool(value); err != nil {
			return err
		}
		return nil
	}
	switch op {
	case store.OpContains, store.OpIContains, store.OpStartsWith, store.OpIStartsWith,
		store.OpEndsWith, store.OpIEndsWith, store.OpIExact:
		return nil
	}
	for _, f := range fields {
		if _, err := f.Parse(value); err != nil {
			return err
		}
	}
	return nil
}

// ParseBool parses the boolean spellings accepted in query strings
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	}
	return false, errors.New("Must be a valid boolean.")
}

// ParseID parses a positive id from a query value
func ParseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("A valid integer is required.")
	}
	return id, nil
}
