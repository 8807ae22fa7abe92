package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"unicode/utf16"
)

// Value is a sealed interface representing the constrained opaque value types
// carried in action args, results, and provenance maps.
// Only VNull, VString, VInt, VBool, VArray, and VObject implement it.
// NO float variant - floats are forbidden (they break replay determinism).
type Value interface {
	chainValue() // Sealed - only these types implement it
}

// VNull represents a JSON null. An explicit type keeps the interface sealed
// while still allowing round-trips of stored data that contains null.
type VNull struct{}

func (VNull) chainValue() {}

// MarshalJSON implements json.Marshaler for VNull.
func (VNull) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// VString represents a string value.
type VString string

func (VString) chainValue() {}

// VInt represents an integer value. Always int64, never float64.
type VInt int64

func (VInt) chainValue() {}

// VBool represents a boolean value.
type VBool bool

func (VBool) chainValue() {}

// VArray represents an ordered sequence of values.
type VArray []Value

func (VArray) chainValue() {}

// VObject represents a map of string keys to values.
// Use SortedKeys for deterministic iteration.
type VObject map[string]Value

func (VObject) chainValue() {}

// Str creates a VString value.
func Str(s string) VString { return VString(s) }

// Int creates a VInt value.
func Int(n int64) VInt { return VInt(n) }

// Bool creates a VBool value.
func Bool(b bool) VBool { return VBool(b) }

// Arr creates a VArray from values.
func Arr(vals ...Value) VArray { return VArray(vals) }

// Obj creates a VObject from alternating key/value arguments.
// Panics on an odd argument count or a non-string key; intended for
// literal construction in code and tests.
func Obj(kv ...any) VObject {
	if len(kv)%2 != 0 {
		panic("ir.Obj: odd number of arguments")
	}
	obj := make(VObject, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			panic(fmt.Sprintf("ir.Obj: key %v is not a string", kv[i]))
		}
		val, ok := kv[i+1].(Value)
		if !ok {
			panic(fmt.Sprintf("ir.Obj: value for %q is not an ir.Value", key))
		}
		obj[key] = val
	}
	return obj
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// Go's sort.Strings uses UTF-8 byte order, which differs for some inputs.
func (obj VObject) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares strings by UTF-16 code units as required by
// RFC 8785. utf16.Encode handles surrogate pairs correctly.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	minLen := min(len(a16), len(b16))
	for i := 0; i < minLen; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}
	if len(a16) < len(b16) {
		return -1
	}
	if len(a16) > len(b16) {
		return 1
	}
	return 0
}

// UnmarshalJSON implements json.Unmarshaler for VObject.
func (obj *VObject) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*obj = make(VObject, len(raw))
	for k, v := range raw {
		val, err := unmarshalValue(v)
		if err != nil {
			return fmt.Errorf("VObject key %q: %w", k, err)
		}
		(*obj)[k] = val
	}
	return nil
}

// UnmarshalJSON implements json.Unmarshaler for VArray.
func (arr *VArray) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*arr = make(VArray, len(raw))
	for i, v := range raw {
		val, err := unmarshalValue(v)
		if err != nil {
			return fmt.Errorf("VArray index %d: %w", i, err)
		}
		(*arr)[i] = val
	}
	return nil
}

// unmarshalValue decodes a JSON value into the appropriate Value type.
// Floats are rejected. This internal variant allows null -> VNull for
// round-tripping stored rows; use UnmarshalValue for strict external input.
func unmarshalValue(data []byte) (Value, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty JSON value")
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, err
		}
		return VString(s), nil

	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, err
		}
		return VBool(b), nil

	case 'n':
		return VNull{}, nil

	case '[':
		var arr VArray
		if err := json.Unmarshal(data, &arr); err != nil {
			return nil, err
		}
		return arr, nil

	case '{':
		var obj VObject
		if err := json.Unmarshal(data, &obj); err != nil {
			return nil, err
		}
		return obj, nil

	default:
		// Must be a number - int64 only, to avoid float64 precision loss
		// for values above 2^53.
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return nil, err
		}
		i, err := n.Int64()
		if err != nil {
			return nil, fmt.Errorf("floats not allowed in chain values: %s", string(data))
		}
		return VInt(i), nil
	}
}

// MarshalJSON implements json.Marshaler for VObject with RFC 8785 key order.
// NOTE: this is NOT the canonical encoding - it may HTML-escape. Use
// MarshalCanonical for anything that feeds a hash.
func (obj VObject) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	keys := obj.SortedKeys()
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", k, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		valBytes, err := MarshalValue(obj[k])
		if err != nil {
			return nil, fmt.Errorf("marshal value for key %q: %w", k, err)
		}
		buf.Write(valBytes)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalValue marshals a Value to JSON bytes.
// NOTE: NOT canonical. Use MarshalCanonical for hashing.
func MarshalValue(v Value) ([]byte, error) {
	switch val := v.(type) {
	case VNull:
		return []byte("null"), nil
	case VString:
		return json.Marshal(string(val))
	case VInt:
		return json.Marshal(int64(val))
	case VBool:
		return json.Marshal(bool(val))
	case VArray:
		return marshalVArray(val)
	case VObject:
		return val.MarshalJSON()
	default:
		return nil, fmt.Errorf("unknown Value type: %T", v)
	}
}

func marshalVArray(arr VArray) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, elem := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		elemBytes, err := MarshalValue(elem)
		if err != nil {
			return nil, fmt.Errorf("array[%d]: %w", i, err)
		}
		buf.Write(elemBytes)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// UnmarshalValue deserializes JSON into a Value with strict validation:
// floats AND null are rejected. This is the API for external input (e.g.
// effect results handed to resume).
func UnmarshalValue(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return FromAny(raw)
}

// FromAny recursively converts a decoded Go value to a Value.
// Rejects null and floats.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("null is forbidden: only string, int, bool, array, object allowed")
	case Value:
		return val, nil
	case bool:
		return VBool(val), nil
	case string:
		return VString(val), nil
	case int:
		return VInt(int64(val)), nil
	case int64:
		return VInt(val), nil
	case json.Number:
		s := string(val)
		if strings.ContainsAny(s, ".eE") {
			return nil, fmt.Errorf("floats are forbidden in chain values: %s", val)
		}
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("number out of int64 range: %s", val)
		}
		return VInt(n), nil
	case float32, float64:
		return nil, fmt.Errorf("floats are forbidden in chain values: %v", val)
	case []any:
		arr := make(VArray, len(val))
		for i, elem := range val {
			cv, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = cv
		}
		return arr, nil
	case map[string]any:
		obj := make(VObject, len(val))
		for k, elem := range val {
			cv, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			obj[k] = cv
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}
