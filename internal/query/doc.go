// Package query compiles ledger filters to parameterized SQL.
//
// All compiled queries are parameterized (values never interpolated) and
// carry an explicit ORDER BY seq for deterministic results. Filters can be
// bounded by an upper sequence, which turns any read into a snapshot read:
// the same bound always yields the same rows regardless of later appends.
package query
