package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Document stores a free-form JSON object, e.g. the geolocation payload of a probe.
type Document map[string]any

// Value implements driver.Valuer; an empty document is stored as NULL.
func (d Document) Value() (driver.Value, error) {
	if len(d) == 0 {
		return nil, nil
	}

	data, err := json.Marshal(map[string]any(d))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (d *Document) Scan(value any) error {
	if value == nil {
		*d = nil
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return d.unmarshal(v)
	case string:
		return d.unmarshal([]byte(v))
	default:
		return fmt.Errorf("domain.Document: unsupported type %T", value)
	}
}

func (d *Document) unmarshal(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*d = nil
		return nil
	}

	var parsed map[string]any
	if err := json.Unmarshal(data, &parsed); err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (Document) GormDataType() string {
	return "json"
}

func (Document) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "JSONB"
	}
	return "JSON"
}

// String returns the first present value among keys, formatted with %v.
func (d Document) String(keys ...string) string {
	for _, key := range keys {
		if v, ok := d[key]; ok && v != nil {
			if s := fmt.Sprint(v); s != "" {
				return s
			}
		}
	}
	return ""
}
