package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// StringArray is a list of strings kept in a text column as JSON.
type StringArray []string

func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(a))
	return string(b), err
}

func (a *StringArray) Scan(value any) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*a = StringArray{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("models.StringArray: cannot scan %T", value)
	}
	if len(raw) == 0 {
		*a = StringArray{}
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("models.StringArray: %w", err)
	}
	if out == nil {
		out = []string{}
	}
	*a = out
	return nil
}
