package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONMap stores an arbitrary JSON object inside a JSONB column.
type JSONMap map[string]any

// Clone returns a shallow copy that is safe to extend.
func (m JSONMap) Clone() JSONMap {
	out := make(JSONMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Value encodes the map for map-based updates; nil is stored as {}.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(map[string]any(m))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan decodes a JSON object column.
func (m *JSONMap) Scan(src any) error {
	return scanJSON(src, m)
}

// Address is a sparse postal address; only whitelisted keys are ever stored.
type Address map[string]string

// IsEmpty reports whether no field survived sanitizing.
func (a Address) IsEmpty() bool {
	return len(a) == 0
}

// Value encodes the address; an empty address is stored as {}.
func (a Address) Value() (driver.Value, error) {
	if a == nil {
		return "{}", nil
	}
	b, err := json.Marshal(map[string]string(a))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan decodes an address column.
func (a *Address) Scan(src any) error {
	return scanJSON(src, a)
}

func scanJSON(src any, dest any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported json column type %T", src)
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, dest)
}
