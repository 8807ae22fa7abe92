// Package harness provides a conformance testing framework for the causal
// chain.
//
// Scenarios are YAML documents that embed a CUE plan script, optional
// suspend/resume or cancel directives, and assertions over the recorded
// trace. Each scenario runs against a fresh in-memory store with
// sequential action ids and a frozen wall clock, so two runs of the same
// scenario produce byte-identical traces. Golden files lock that trace
// down; assertions express the invariants a reader should be able to
// check without diffing JSON.
package harness
