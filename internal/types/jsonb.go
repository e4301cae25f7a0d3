package types

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Compile-time interface assertions.
// These ensure all JSONB types implement both sql.Scanner and driver.Valuer,
// catching any method signature drift at compile time rather than at runtime.
var (
	_ sql.Scanner   = (*TriggerConfig)(nil)
	_ driver.Valuer = TriggerConfig{}
	_ sql.Scanner   = (*ResponseConfig)(nil)
	_ driver.Valuer = ResponseConfig{}
	_ sql.Scanner   = (*AutomationPerformance)(nil)
	_ driver.Valuer = AutomationPerformance{}
	_ sql.Scanner   = (*DetailsMap)(nil)
	_ driver.Valuer = DetailsMap(nil)
)

// DetailsMap is the free-form outcome payload stored on ledger rows.
type DetailsMap map[string]any

// scanJSONB is a generic helper that scans a JSONB database value into a Go pointer.
// It handles nil values, []byte, and string representations from different drivers.
func scanJSONB(dest interface{}, value interface{}) error {
	if value == nil {
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("jsonb: unsupported scan type %T", value)
	}
	return json.Unmarshal(data, dest)
}

// Scan implements the sql.Scanner interface for reading JSONB from the database.
func (t *TriggerConfig) Scan(value interface{}) error {
	return scanJSONB(t, value)
}

// Value implements the driver.Valuer interface for writing JSONB to the database.
func (t TriggerConfig) Value() (driver.Value, error) {
	return json.Marshal(t)
}

// Scan implements the sql.Scanner interface for reading JSONB from the database.
func (r *ResponseConfig) Scan(value interface{}) error {
	return scanJSONB(r, value)
}

// Value implements the driver.Valuer interface for writing JSONB to the database.
func (r ResponseConfig) Value() (driver.Value, error) {
	return json.Marshal(r)
}

// Scan implements the sql.Scanner interface for reading JSONB from the database.
func (p *AutomationPerformance) Scan(value interface{}) error {
	return scanJSONB(p, value)
}

// Value implements the driver.Valuer interface for writing JSONB to the database.
func (p AutomationPerformance) Value() (driver.Value, error) {
	return json.Marshal(p)
}

// Scan implements the sql.Scanner interface for reading JSONB from the database.
func (d *DetailsMap) Scan(value interface{}) error {
	if value == nil {
		*d = nil
		return nil
	}
	return scanJSONB(d, value)
}

// Value implements the driver.Valuer interface for writing JSONB to the database.
func (d DetailsMap) Value() (driver.Value, error) {
	if d == nil {
		return nil, nil
	}
	return json.Marshal(d)
}
