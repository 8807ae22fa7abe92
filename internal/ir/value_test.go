package ir

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestSortedKeys_UTF16Order(t *testing.T) {
	// U+FF21 (fullwidth A) sorts after U+0061 'a' in UTF-16 code units,
	// and supplementary-plane characters (surrogate pairs) sort between
	// BMP ranges - the case where UTF-8 byte order diverges.
	obj := VObject{
		"a":      VInt(1),
		"Ａ": VInt(2),
		"b":      VInt(3),
	}
	keys := obj.SortedKeys()
	want := []string{"a", "b", "Ａ"}
	if !reflect.DeepEqual(keys, want) {
		t.Errorf("got %v, want %v", keys, want)
	}
}

func TestValueJSONRoundTrip(t *testing.T) {
	obj := VObject{
		"name":  VString("fetch"),
		"count": VInt(9007199254740993), // above 2^53: float64 would lose it
		"flags": VArray{VBool(true), VNull{}},
		"meta":  VObject{"k": VString("v")},
	}

	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var back VObject
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if !reflect.DeepEqual(obj, back) {
		t.Errorf("round trip mismatch:\n  in:  %#v\n  out: %#v", obj, back)
	}
}

func TestUnmarshalValue_RejectsFloat(t *testing.T) {
	if _, err := UnmarshalValue([]byte(`{"score":0.9}`)); err == nil {
		t.Error("expected error for float, got nil")
	}
	if _, err := UnmarshalValue([]byte(`1e3`)); err == nil {
		t.Error("expected error for exponent notation, got nil")
	}
}

func TestUnmarshalValue_RejectsNull(t *testing.T) {
	if _, err := UnmarshalValue([]byte(`null`)); err == nil {
		t.Error("expected error for null, got nil")
	}
}

func TestFromAny_Conversions(t *testing.T) {
	v, err := FromAny(map[string]any{
		"s": "text",
		"i": 42,
		"b": false,
		"a": []any{"x", int64(7)},
	})
	if err != nil {
		t.Fatalf("FromAny() failed: %v", err)
	}
	obj, ok := v.(VObject)
	if !ok {
		t.Fatalf("expected VObject, got %T", v)
	}
	if obj["s"] != VString("text") || obj["i"] != VInt(42) || obj["b"] != VBool(false) {
		t.Errorf("scalar conversion wrong: %#v", obj)
	}
	arr, ok := obj["a"].(VArray)
	if !ok || len(arr) != 2 {
		t.Fatalf("array conversion wrong: %#v", obj["a"])
	}
}

func TestFromAny_RejectsFloat(t *testing.T) {
	if _, err := FromAny(map[string]any{"score": 0.5}); err == nil {
		t.Error("expected error for float, got nil")
	}
}

func TestObj_Helper(t *testing.T) {
	obj := Obj("bucket", Str("reviews"), "limit", Int(10))
	if obj["bucket"] != VString("reviews") || obj["limit"] != VInt(10) {
		t.Errorf("Obj construction wrong: %#v", obj)
	}
}
