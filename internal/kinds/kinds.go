// Package kinds describes the concrete subtypes of a base object: their
// storage table, typed attributes and how they are displayed.
package kinds

import (
	"fmt"
	"sort"
	"strings"

	"ralph-api/internal/models"
)

// Kind describes one concrete base object subtype
type Kind struct {
	Name    string
	Verbose string
	Table   string
	Fields  []Field
	// NameField is the attribute matched by the `name` filter alias
	NameField      string
	UniqueTogether [][]string
	// ReadOnly kinds are derived and never written through their own endpoint
	ReadOnly bool
	// ModelType is the asset model type required by the `model` attribute
	ModelType models.ObjectModelType
	Display   func(o *models.BaseObject) string
}

// Field resolves an attribute by name, honouring the `name` alias
func (k *Kind) Field(name string) (*Field, bool) {
	if name == "name" && k.NameField != "" {
		name = k.NameField
	}
	for i := range k.Fields {
		if k.Fields[i].Name == name {
			return &k.Fields[i], true
		}
	}
	return nil, false
}

// String renders the object the way lists display it
func (k *Kind) String(o *models.BaseObject) string {
	display := ""
	if k.Display != nil {
		display = k.Display(o)
	}
	if display == "" {
		display = fmt.Sprintf("%d", o.ID)
	}
	return k.Verbose + ": " + display
}

// Common is a base object column shared by every kind
type Common struct {
	Name   string
	Type   FieldType
	Column string
}

// CommonFields lists the filterable columns of the base object table
var CommonFields = []Common{
	{Name: "id", Type: Int, Column: "id"},
	{Name: "parent", Type: Reference, Column: "parent_id"},
	{Name: "remarks", Type: Text, Column: "remarks"},
	{Name: "service_env", Type: Reference, Column: "service_env_id"},
	{Name: "configuration_path", Type: Reference, Column: "configuration_path_id"},
}

// CommonField looks up a base object column
func CommonField(name string) (*Field, bool) {
	for _, c := range CommonFields {
		if c.Name == name {
			return &Field{Name: c.Name, Type: c.Type, Column: c.Column}, true
		}
	}
	return nil, false
}

var registry = map[string]*Kind{}

// Register adds a kind to the registry. It panics on duplicates.
func Register(k *Kind) {
	if _, ok := registry[k.Name]; ok {
		panic("kinds: duplicate kind " + k.Name)
	}
	registry[k.Name] = k
}

// Get returns the kind registered under name
func Get(name string) (*Kind, bool) {
	k, ok := registry[strings.ToLower(name)]
	return k, ok
}

// All returns every registered kind ordered by name
func All() []*Kind {
	out := make([]*Kind, 0, len(registry))
	for _, k := range registry {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns the names of every registered kind ordered by name
func Names() []string {
	all := All()
	names := make([]string, len(all))
	for i, k := range all {
		names[i] = k.Name
	}
	return names
}

// Writable returns the kinds served through their own CRUD endpoint
func Writable() []*Kind {
	var out []*Kind
	for _, k := range All() {
		if !k.ReadOnly {
			out = append(out, k)
		}
	}
	return out
}

// ServiceEnvironment is the kind of service/environment pairings
const ServiceEnvironment = "serviceenvironment"

// Derived attribute keys set on service environments for display
const (
	AttrServiceName     = "_service_name"
	AttrServiceUID      = "_service_uid"
	AttrEnvironmentName = "_environment_name"
)
