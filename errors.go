package authflow

import "errors"

var (
	// ErrAuthFailed covers bad credentials and unknown users. It always
	// returns the orchestrator to the anonymous state.
	ErrAuthFailed = errors.New("authentication failed")
	// ErrProviderConfig means the identity provider is misconfigured
	// (missing pool or client identifiers). Terminal; never retried.
	ErrProviderConfig = errors.New("identity provider misconfigured")
	// ErrMFACodeInvalid means the submitted second-factor code was rejected.
	// Retry is permitted within the same challenge state.
	ErrMFACodeInvalid = errors.New("invalid mfa code")
	// ErrMFACodeExpired means the second-factor code lapsed before
	// submission. Retry is permitted within the same challenge state.
	ErrMFACodeExpired = errors.New("mfa code expired")
	// ErrSessionExpired means a pending-attempt operation ran after the
	// provider session backing it lapsed. The orchestrator forces anonymous.
	ErrSessionExpired = errors.New("provider session expired")
	// ErrNetwork is a transient transport failure. State is unchanged and the
	// caller may retry.
	ErrNetwork = errors.New("network failure")
	// ErrProviderUnexpected wraps provider errors with no mapping in the
	// classification table.
	ErrProviderUnexpected = errors.New("unexpected error, please retry")
	// ErrNoPendingChallenge means a challenge-response operation was invoked
	// while no matching challenge variant was active.
	ErrNoPendingChallenge = errors.New("no pending challenge")
	// ErrNotAuthenticated means an authenticated-session operation was
	// invoked without a live session.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrStaleAttempt means a login outcome arrived after a newer attempt
	// superseded it; the outcome was discarded.
	ErrStaleAttempt = errors.New("stale login attempt")
	// ErrStoreUnavailable means the challenge session store backend failed.
	ErrStoreUnavailable = errors.New("challenge session store unavailable")
	// ErrOrchestratorNotReady is returned when a dependency was not wired.
	ErrOrchestratorNotReady = errors.New("orchestrator not initialized")
)
