// Package authflow drives browser-style login flows against a remote
// identity provider that answers with challenges: forced password changes,
// second-factor code prompts, and mandatory MFA enrollment.
//
// The Orchestrator owns the challenge state machine and is its single
// writer. A Gateway translates the provider's raw results and error codes
// into a closed outcome union and a fixed error taxonomy, a Redis-backed
// store persists the minimum needed to resume an in-progress flow across a
// page reload, DecideRoute computes the single allowed route for any state,
// and an InactivityMonitor abandons stale first-login setup flows.
//
// Construction goes through the Builder:
//
//	orch, err := authflow.New().
//		WithRedis(rdb).
//		WithProvider(provider).
//		WithAuditSink(authflow.NewJSONWriterSink(os.Stdout)).
//		Build()
//
// followed by orch.Resume(ctx) to reconcile anything persisted by a
// previous run.
package authflow
