package store

import (
	"encoding/json"
	"fmt"

	"github.com/arclabs/causalchain/internal/ir"
)

// marshalValues converts a value sequence to canonical JSON TEXT for
// storage, so that a reloaded row reproduces the append-time hash input.
func marshalValues(vals ir.VArray) (string, error) {
	if len(vals) == 0 {
		return "[]", nil
	}
	data, err := ir.MarshalCanonical(vals)
	if err != nil {
		return "", fmt.Errorf("marshal values: %w", err)
	}
	return string(data), nil
}

func unmarshalValues(data string) (ir.VArray, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}
	var arr ir.VArray
	if err := json.Unmarshal([]byte(data), &arr); err != nil {
		return nil, fmt.Errorf("unmarshal values: %w", err)
	}
	return arr, nil
}

func marshalProvenance(p ir.VObject) (string, error) {
	if len(p) == 0 {
		return "{}", nil
	}
	data, err := ir.MarshalCanonical(p)
	if err != nil {
		return "", fmt.Errorf("marshal provenance: %w", err)
	}
	return string(data), nil
}

func unmarshalProvenance(data string) (ir.VObject, error) {
	if data == "" || data == "{}" {
		return nil, nil
	}
	var obj ir.VObject
	if err := json.Unmarshal([]byte(data), &obj); err != nil {
		return nil, fmt.Errorf("unmarshal provenance: %w", err)
	}
	return obj, nil
}

// marshalStrings stores a string slice as a plain JSON array. Used for
// resources and checkpoint frontiers/pending sets, which never feed a hash
// through this encoding.
func marshalStrings(ss []string) (string, error) {
	if len(ss) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(ss)
	if err != nil {
		return "", fmt.Errorf("marshal strings: %w", err)
	}
	return string(data), nil
}

func unmarshalStrings(data string) ([]string, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}
	var ss []string
	if err := json.Unmarshal([]byte(data), &ss); err != nil {
		return nil, fmt.Errorf("unmarshal strings: %w", err)
	}
	return ss, nil
}
