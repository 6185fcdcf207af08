package frontmatter

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// MarshalJSON renders the value as its natural JSON type. Undefined values
// become null.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindString:
		return json.Marshal(v.String)
	case KindNumber:
		return json.Marshal(v.Number)
	case KindBool:
		return json.Marshal(v.Bool)
	case KindList:
		if v.List == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.List)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts strings, numbers, booleans, string arrays and null.
// Array elements that are not strings are formatted with %v.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = Value{}
		return nil
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch x := raw.(type) {
	case string:
		*v = StringValue(x)
	case float64:
		*v = NumberValue(x)
	case bool:
		*v = BoolValue(x)
	case []any:
		items := make([]string, 0, len(x))
		for _, item := range x {
			if s, ok := item.(string); ok {
				items = append(items, s)
				continue
			}
			items = append(items, fmt.Sprintf("%v", item))
		}
		*v = ListValue(items)
	default:
		return fmt.Errorf("frontmatter: unsupported value %s", data)
	}
	return nil
}
