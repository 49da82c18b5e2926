package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Ref points at another record either by numeric id or by its natural key
// (name, username, uid). Clients may send `3`, `"3"` or `"prod"`.
type Ref struct {
	ID   int64
	Name string
}

// IsZero reports whether the reference carries neither id nor key
func (r Ref) IsZero() bool {
	return r.ID == 0 && r.Name == ""
}

func (r Ref) String() string {
	if r.ID > 0 {
		return strconv.FormatInt(r.ID, 10)
	}
	return r.Name
}

// UnmarshalJSON accepts a number, a numeric string, a key string or an
// object with an "id" member (the shape the API renders).
func (r *Ref) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return fmt.Errorf("empty reference")
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if id, err := strconv.ParseInt(s, 10, 64); err == nil && id > 0 {
			r.ID = id
			return nil
		}
		r.Name = s
		return nil
	case '{':
		var obj struct {
			ID int64 `json:"id"`
		}
		if err := json.Unmarshal(b, &obj); err != nil {
			return err
		}
		r.ID = obj.ID
		return nil
	default:
		id, err := strconv.ParseInt(string(b), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid reference %s", string(b))
		}
		r.ID = id
		return nil
	}
}

func (r Ref) MarshalJSON() ([]byte, error) {
	if r.ID > 0 {
		return []byte(strconv.FormatInt(r.ID, 10)), nil
	}
	return json.Marshal(r.Name)
}

// OptionalRef is a nullable reference in a partial update. Set is true when
// the member was present in the body; Ref is nil when it was null.
type OptionalRef struct {
	Set bool
	Ref *Ref
}

// UnmarshalJSON is invoked for every present member, null included
func (o *OptionalRef) UnmarshalJSON(b []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		o.Ref = nil
		return nil
	}
	var ref Ref
	if err := json.Unmarshal(b, &ref); err != nil {
		return err
	}
	o.Ref = &ref
	return nil
}

// SetRef builds a present, non-null OptionalRef
func SetRef(ref Ref) OptionalRef {
	return OptionalRef{Set: true, Ref: &ref}
}

// NullRef builds a present, null OptionalRef
func NullRef() OptionalRef {
	return OptionalRef{Set: true}
}
