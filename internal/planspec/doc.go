// Package planspec compiles declarative plan scripts written in CUE into
// executable plan specifications.
//
// A plan script names the plan and intent, then lists steps in declaration
// order. Each step either evaluates a pure function or performs an effect;
// effects carry an idempotency key so that re-running the script converges
// instead of duplicating work. Scripts carry scripted results, which keeps
// a run fully deterministic and makes golden-trace comparison possible.
//
// Compilation uses the CUE SDK's Go API directly (not a CLI subprocess)
// and reports source positions on errors.
package planspec
