package kinds

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"ralph-api/internal/models"
)

// DateLayout is the wire and storage layout of date attributes
const DateLayout = "2006-01-02"

// FieldType is the storage type of an attribute
type FieldType int

const (
	Text FieldType = iota
	Int
	Decimal
	Date
	Bool
	Reference
)

func (t FieldType) String() string {
	switch t {
	case Text:
		return "text"
	case Int:
		return "int"
	case Decimal:
		return "decimal"
	case Date:
		return "date"
	case Bool:
		return "bool"
	case Reference:
		return "reference"
	}
	return "unknown"
}

// Field describes one attribute of a kind
type Field struct {
	Name string
	Type FieldType
	// Column defaults to Name, or Name+"_id" for references
	Column string
	// Target is the resource a Reference points at
	Target string
	// Validate is a go-playground/validator tag applied to set values
	Validate string
	Required bool
	Unique   bool
	Default  any
	Choices  []string
}

// ColumnName returns the storage column of the field
func (f *Field) ColumnName() string {
	if f.Column != "" {
		return f.Column
	}
	if f.Type == Reference {
		return f.Name + "_id"
	}
	return f.Name
}

// Decode converts a JSON member into the attribute's Go value. A JSON null
// decodes to nil. References decode to models.Ref and must be resolved by the
// caller.
func (f *Field) Decode(raw json.RawMessage) (any, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return nil, nil
	}
	switch f.Type {
	case Text:
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, errors.New("Not a valid string.")
		}
		return v, nil
	case Int:
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, errors.New("A valid integer is required.")
		}
		return f.Parse(n.String())
	case Decimal:
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, errors.New("A valid number is required.")
		}
		return f.Parse(n.String())
	case Date:
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, errors.New("Date has wrong format. Use YYYY-MM-DD.")
		}
		return f.Parse(v)
	case Bool:
		var v bool
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, errors.New("Must be a valid boolean.")
		}
		return v, nil
	case Reference:
		var ref models.Ref
		if err := json.Unmarshal(raw, &ref); err != nil {
			return nil, errors.New("Invalid pk - incorrect type.")
		}
		return ref, nil
	}
	return nil, fmt.Errorf("unsupported field type %s", f.Type)
}

// Parse converts a textual value (query string, spreadsheet cell) into the
// attribute's Go value. References parse to int64 ids.
func (f *Field) Parse(s string) (any, error) {
	s = strings.TrimSpace(s)
	switch f.Type {
	case Text:
		return s, nil
	case Int, Reference:
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, errors.New("A valid integer is required.")
		}
		return v, nil
	case Decimal:
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, errors.New("A valid number is required.")
		}
		return v, nil
	case Date:
		if _, err := time.Parse(DateLayout, s); err != nil {
			return nil, errors.New("Date has wrong format. Use YYYY-MM-DD.")
		}
		return s, nil
	case Bool:
		switch strings.ToLower(s) {
		case "1", "true", "yes", "on":
			return true, nil
		case "0", "false", "no", "off", "":
			return false, nil
		}
		return nil, errors.New("Must be a valid boolean.")
	}
	return nil, fmt.Errorf("unsupported field type %s", f.Type)
}

// HasChoice reports whether v is accepted by a choice-restricted field
func (f *Field) HasChoice(v string) bool {
	if len(f.Choices) == 0 {
		return true
	}
	for _, c := range f.Choices {
		if c == v {
			return true
		}
	}
	return false
}
