package valueobject

import (
	"encoding/json"
	"math"
)

// JSONMap stores arbitrary decoded JSON object data.
//
// The Lookup helpers report whether the key holds a value of the requested
// JSON type. Numbers may come from json.Unmarshal (float64), a decoder with
// UseNumber (json.Number) or Go code (int kinds).
type JSONMap map[string]any

// Get returns the raw value or nil.
func (j JSONMap) Get(key string) any {
	return j[key]
}

// Has checks if a key exists.
func (j JSONMap) Has(key string) bool {
	_, ok := j[key]
	return ok
}

// LookupString returns the value when it is a string.
func (j JSONMap) LookupString(key string) (string, bool) {
	v, ok := j[key].(string)
	return v, ok
}

// LookupBool returns the value when it is a bool.
func (j JSONMap) LookupBool(key string) (bool, bool) {
	v, ok := j[key].(bool)
	return v, ok
}

// LookupInt returns the value when it is a number with an integral value.
func (j JSONMap) LookupInt(key string) (int, bool) {
	f, ok := j.LookupFloat(key)
	if !ok || f != math.Trunc(f) || f > math.MaxInt32 || f < math.MinInt32 {
		return 0, false
	}
	return int(f), true
}

// LookupFloat returns the value when it is any JSON number.
func (j JSONMap) LookupFloat(key string) (float64, bool) {
	switch v := j[key].(type) {
	case float64:
		return v, !math.IsNaN(v) && !math.IsInf(v, 0)
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// LookupArray returns the value when it is a JSON array.
func (j JSONMap) LookupArray(key string) ([]any, bool) {
	v, ok := j[key].([]any)
	return v, ok
}

// AsJSONMap converts a decoded JSON object into a JSONMap.
func AsJSONMap(v any) (JSONMap, bool) {
	switch m := v.(type) {
	case JSONMap:
		return m, true
	case map[string]any:
		return JSONMap(m), true
	default:
		return nil, false
	}
}
