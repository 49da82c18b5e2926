package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// BaseObject is the shared identity of every inventory record. Kind names
// the concrete subtype; Attrs holds the subtype attributes keyed by field name
// (string, int64, float64, bool, date string "2006-01-02", or int64 ids for
// references). Missing keys are nulls.
type BaseObject struct {
	ID                  int64
	Kind                string
	ParentID            *int64
	Remarks             string
	ServiceEnvID        *int64
	ConfigurationPathID *int64
	Tags                []string
	CustomFields        CustomFields
	Attrs               map[string]any
	CreatedAt           time.Time
	UpdatedAt           time.Time

	// Populated by the inventory layer for rendering
	ServiceEnv        *ServiceEnvSummary
	ConfigurationPath *ConfigurationPathSummary
}

// Attr returns a subtype attribute, nil when unset
func (o *BaseObject) Attr(name string) any {
	if o.Attrs == nil {
		return nil
	}
	return o.Attrs[name]
}

// StringAttr returns a text attribute or ""
func (o *BaseObject) StringAttr(name string) string {
	if v, ok := o.Attr(name).(string); ok {
		return v
	}
	return ""
}

// IntAttr returns an integer or reference attribute and whether it was set
func (o *BaseObject) IntAttr(name string) (int64, bool) {
	v, ok := o.Attr(name).(int64)
	return v, ok
}

// Clone returns a deep copy safe to mutate
func (o *BaseObject) Clone() *BaseObject {
	c := *o
	if o.ParentID != nil {
		v := *o.ParentID
		c.ParentID = &v
	}
	if o.ServiceEnvID != nil {
		v := *o.ServiceEnvID
		c.ServiceEnvID = &v
	}
	if o.ConfigurationPathID != nil {
		v := *o.ConfigurationPathID
		c.ConfigurationPathID = &v
	}
	c.Tags = append([]string(nil), o.Tags...)
	if o.CustomFields != nil {
		c.CustomFields = make(CustomFields, len(o.CustomFields))
		for k, v := range o.CustomFields {
			c.CustomFields[k] = v
		}
	}
	if o.Attrs != nil {
		c.Attrs = make(map[string]any, len(o.Attrs))
		for k, v := range o.Attrs {
			c.Attrs[k] = v
		}
	}
	c.ServiceEnv = nil
	c.ConfigurationPath = nil
	return &c
}

// ServiceEnvSummary is the rendered form of an object's service environment
type ServiceEnvSummary struct {
	ID            int64
	ServiceID     int64
	Service       string
	ServiceUID    string
	EnvironmentID int64
	Environment   string
}

// ConfigurationPathSummary is the rendered form of an object's configuration class
type ConfigurationPathSummary struct {
	ID   int64
	Path string
}

// BaseObjectRequest is the body accepted by per-kind create/update.
// Attrs collects every member that is not a common field.
type BaseObjectRequest struct {
	Parent            OptionalRef                `json:"parent"`
	Remarks           *string                    `json:"remarks"`
	ServiceEnv        OptionalRef                `json:"service_env"`
	ConfigurationPath OptionalRef                `json:"configuration_path"`
	Tags              *[]string                  `json:"tags"`
	CustomFields      *map[string]string         `json:"custom_fields"`
	Attrs             map[string]json.RawMessage `json:"-"`
}

var commonRequestFields = map[string]bool{
	"id": true, "url": true, "object_type": true, "__str__": true,
	"parent": true, "remarks": true, "service_env": true,
	"configuration_path": true, "tags": true, "custom_fields": true,
	"created": true, "modified": true,
}

// UnmarshalJSON splits common members from subtype attributes
func (r *BaseObjectRequest) UnmarshalJSON(b []byte) error {
	type plain BaseObjectRequest
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	p.Attrs = make(map[string]json.RawMessage)
	for k, v := range raw {
		if !commonRequestFields[k] {
			p.Attrs[k] = v
		}
	}
	*r = BaseObjectRequest(p)
	return nil
}

// CustomFields maps custom field attribute names to values
type CustomFields map[string]string

// Value implements the driver.Valuer interface for CustomFields
func (c CustomFields) Value() (driver.Value, error) {
	if c == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(c)
}

// Scan implements the sql.Scanner interface for CustomFields
func (c *CustomFields) Scan(value interface{}) error {
	if value == nil {
		*c = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("custom fields: unsupported type %T", value)
	}
	return json.Unmarshal(data, c)
}
