package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for hashing. Version suffix enables future algorithm
// migration without colliding with old digests.
const (
	DomainAction   = "causalchain/action/v1"
	DomainValue    = "causalchain/value/v1"
	DomainResource = "causalchain/resource/v1"
	DomainEnv      = "causalchain/env/v1"
	DomainPayload  = "causalchain/payload/v1"
)

// GenesisSeed is the fixed constant used in place of a parent hash for
// lineage roots. Changing it invalidates every existing chain.
const GenesisSeed = "causalchain/genesis/v1"

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data). The null separator prevents
// domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ActionHash computes the chain-linking digest for a draft being appended at
// the given sequence, linked to its structural parent's hash (GenesisSeed
// for roots).
//
// The hash covers every logical field of the draft plus the sequence.
// Wall-clock timestamp is deliberately excluded: replay may legitimately
// produce different wall times and must still reproduce an identical chain.
// Recomputing this function over a stored action must always reproduce the
// stored hash; that recomputation is the sole tamper-detection mechanism.
func ActionHash(d Draft, seq int64, parentHash string) (string, error) {
	obj := VObject{
		"kind":       VString(string(d.Kind)),
		"plan_id":    VString(d.PlanID),
		"intent_id":  VString(d.IntentID),
		"success":    VBool(d.Success),
		"cost":       VInt(d.CostMicros),
		"duration":   VInt(d.DurationMS),
		"seq":        VInt(seq),
		"parent_sum": VString(parentHash),
	}
	// Optional fields are omitted rather than hashed as empty strings so
	// that adding a field later cannot collide with today's encoding.
	if d.ParentActionID != "" {
		obj["parent_action_id"] = VString(d.ParentActionID)
	}
	if d.StepID != "" {
		obj["step_id"] = VString(d.StepID)
	}
	if d.FunctionName != "" {
		obj["function_name"] = VString(d.FunctionName)
	}
	if len(d.Args) > 0 {
		obj["args"] = d.Args
	}
	if len(d.Result) > 0 {
		obj["result"] = d.Result
	}
	if d.Error != "" {
		obj["error"] = VString(d.Error)
	}
	if d.IdempotencyKey != "" {
		obj["idempotency_key"] = VString(d.IdempotencyKey)
	}
	if len(d.Resources) > 0 {
		arr := make(VArray, len(d.Resources))
		for i, r := range d.Resources {
			arr[i] = VString(r)
		}
		obj["resources"] = arr
	}
	if len(d.Provenance) > 0 {
		obj["provenance"] = d.Provenance
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("ActionHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainAction, canonical), nil
}

// ValueHash computes the content-addressed digest of a produced or consumed
// value. It keys the producer index that makes dependency detection
// sub-linear.
func ValueHash(v Value) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("ValueHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainValue, canonical), nil
}

// ResourceHash computes the digest keying resource-based dependencies.
// Domain separation keeps a resource named "x" distinct from a string value
// "x" in the shared producer index.
func ResourceHash(name string) string {
	return hashWithDomain(DomainResource, []byte(name))
}

// EnvHash computes the digest of an opaque environment snapshot blob
// recorded in a checkpoint.
func EnvHash(snapshot []byte) string {
	return hashWithDomain(DomainEnv, snapshot)
}

// PayloadHash digests the effect-relevant fields of a draft. Two appends
// with the same idempotency key must agree on this digest; a mismatch is an
// idempotency violation.
func PayloadHash(d Draft) (string, error) {
	obj := VObject{
		"kind": VString(string(d.Kind)),
	}
	if d.FunctionName != "" {
		obj["function_name"] = VString(d.FunctionName)
	}
	if len(d.Args) > 0 {
		obj["args"] = d.Args
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("PayloadHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainPayload, canonical), nil
}

// MustValueHash is like ValueHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustValueHash(v Value) string {
	h, err := ValueHash(v)
	if err != nil {
		panic(err)
	}
	return h
}

// MustActionHash is like ActionHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustActionHash(d Draft, seq int64, parentHash string) string {
	h, err := ActionHash(d, seq, parentHash)
	if err != nil {
		panic(err)
	}
	return h
}
