// Package middleware exposes HTTP middleware adapters that enforce the
// authflow route decision table on top of Orchestrator state.
//
// # Guards
//
//   - [Gate] — applies the full redirect decision table, 303 on mismatch.
//   - [RequireAuthenticated] — 401 for API routes with no redirect target.
//
// Each guard reads the current challenge state, asks the orchestrator where
// the request must land, and injects the state snapshot into the request
// context.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Orchestrator calls. It does NOT
// implement gating logic itself — all decisions are delegated to
// [authflow.Orchestrator.Decide].
//
// # What this package must NOT do
//
//   - Inspect challenge internals beyond the public State snapshot.
//   - Access Redis (the orchestrator handles I/O).
//   - Make routing decisions beyond what Decide returns.
package middleware
