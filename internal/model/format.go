package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// listSeparator joins formatted list elements.
const listSeparator = ", "

// FormatValue renders a decoded JSON value as a spreadsheet cell.
//
// Rules:
//   - nil renders as the empty placeholder
//   - strings, numbers and booleans render as their text
//   - lists render each element with these rules, joined by ", "
//   - objects render their "name" field, else their "value" field,
//     else the whole object as compact JSON
//
// FormatValue accepts any value and never fails.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = FormatValue(item)
		}
		return strings.Join(parts, listSeparator)
	case *Record:
		if val == nil {
			return ""
		}
		if name, ok := val.Lookup("name"); ok {
			return FormatValue(name)
		}
		if value, ok := val.Lookup("value"); ok {
			return FormatValue(value)
		}
		return compactJSON(val, val)
	case map[string]any:
		if name, ok := val["name"]; ok {
			return FormatValue(name)
		}
		if value, ok := val["value"]; ok {
			return FormatValue(value)
		}
		return compactJSON(sortedRecord(val), val)
	default:
		return fmt.Sprint(val)
	}
}

// compactJSON encodes v as compact JSON. When v cannot be encoded the
// fallback value is printed with fmt instead.
func compactJSON(v, fallback any) string {
	data, err := marshalCompact(v)
	if err != nil {
		return fmt.Sprint(fallback)
	}
	return string(data)
}

// sortedRecord converts a plain map into a Record with sorted keys, which is
// the order encoding/json would use for the map.
func sortedRecord(m map[string]any) *Record {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rec := NewRecord()
	for _, k := range keys {
		rec.Set(k, m[k])
	}
	return rec
}
