package authflow

import (
	"context"
	"errors"
	"time"
)

// Login starts a fresh authentication attempt. Any in-progress flow is
// cleared first so two challenge flows can never overlap; if a second Login
// is issued while this one is in flight, whichever attempt carries the
// newest sequence number determines the final state and the other caller
// receives ErrStaleAttempt.
//
// The credential is held only for the duration of the provider call and is
// never persisted.
func (o *Orchestrator) Login(ctx context.Context, username, password string) (State, error) {
	if o == nil || o.gateway == nil {
		return State{}, ErrOrchestratorNotReady
	}

	seq := o.loginSeq.Add(1)
	if err := o.ClearAll(ctx); err != nil {
		// In-memory state is already anonymous; a storage failure here must
		// not strand the user, so the attempt proceeds.
		o.metricInc(MetricLoginFailure)
	}
	gen := o.clearGen.Load()
	o.setState(State{Kind: StateAuthenticating}, SetupProgress{})

	start := time.Now()
	outcome, err := o.gateway.Authenticate(ctx, username, password)
	o.observeProvider(start)

	if o.attemptStale(seq, gen) {
		o.metricInc(MetricStaleOutcomeDiscarded)
		o.emitAudit(ctx, auditEventStaleOutcome, false, username, "", nil, nil)
		return o.State(), ErrStaleAttempt
	}
	if err != nil {
		// From the authenticating state every gateway failure lands back on
		// anonymous; the error itself tells the caller whether retrying can
		// help.
		o.setState(State{Kind: StateAnonymous}, SetupProgress{})
		o.metricInc(MetricLoginFailure)
		o.emitAudit(ctx, auditEventLoginFailure, false, username, "", err, nil)
		return o.State(), err
	}

	return o.applyOutcome(ctx, username, outcome, gen)
}

// SubmitNewPassword answers an outstanding forced password change. On
// success the flow continues to whatever the provider demands next; a
// rejected password keeps the challenge state so the user can retry without
// re-entering credentials.
func (o *Orchestrator) SubmitNewPassword(ctx context.Context, newPassword string) (State, error) {
	if o == nil || o.gateway == nil {
		return State{}, ErrOrchestratorNotReady
	}

	current := o.State()
	if current.Kind != StateNewPasswordRequired || current.Pending == nil {
		return current, ErrNoPendingChallenge
	}
	pending := current.Pending
	seq, gen := o.loginSeq.Load(), o.clearGen.Load()

	start := time.Now()
	outcome, err := o.gateway.RespondNewPassword(ctx, pending, newPassword)
	o.observeProvider(start)

	if o.attemptStale(seq, gen) {
		o.metricInc(MetricStaleOutcomeDiscarded)
		o.emitAudit(ctx, auditEventStaleOutcome, false, pending.Username, pending.ID, nil, nil)
		return o.State(), ErrStaleAttempt
	}
	if err != nil {
		return o.challengeStepFailure(ctx, auditEventNewPasswordRejected, pending, err)
	}

	o.emitAudit(ctx, auditEventNewPasswordAccepted, true, pending.Username, pending.ID, nil, nil)
	return o.applyOutcome(ctx, pending.Username, outcome, gen)
}

// challengeStepFailure implements the shared failure policy for challenge
// responses: terminal kinds abandon the flow, retryable kinds leave the
// challenge state untouched.
func (o *Orchestrator) challengeStepFailure(ctx context.Context, eventType string, pending *PendingUser, err error) (State, error) {
	o.emitAudit(ctx, eventType, false, pending.Username, pending.ID, err, nil)

	if errors.Is(err, ErrSessionExpired) || errors.Is(err, ErrAuthFailed) {
		_ = o.ClearAll(ctx)
		return o.State(), err
	}
	// MFACodeInvalid, MFACodeExpired, network and unexpected provider errors
	// are retryable in place.
	return o.State(), err
}

// applyOutcome commits a gateway outcome: it replaces the active variant,
// persists resumable progress, and records metrics and audit events. Callers
// have already verified the outcome is not stale; the generation guards the
// persisted writes against a clear racing past that check.
func (o *Orchestrator) applyOutcome(ctx context.Context, username string, outcome *Outcome, gen uint64) (State, error) {
	if outcome == nil {
		return o.State(), ErrOrchestratorNotReady
	}

	setup := o.SetupProgress()

	switch outcome.Kind {
	case OutcomeAuthenticated:
		state := State{Kind: StateAuthenticated, Session: outcome.Session}
		if setup.FirstLogin {
			setup = advanceSetup(setup, StepComplete)
		}
		o.setState(state, setup)

		o.persistGuarded(gen, func() {
			if err := o.flows.ClearChallenge(ctx); err != nil {
				o.emitAudit(ctx, auditEventClearAll, false, username, "", err, nil)
			}
			if err := o.flows.SaveSession(ctx, outcome.Session); err != nil {
				o.emitAudit(ctx, auditEventLoginSuccess, false, username, "", err, nil)
			}
			if setup.Step != "" {
				_ = o.flows.SaveSetup(ctx, setup)
			}
		})

		o.metricInc(MetricLoginSuccess)
		o.emitAudit(ctx, auditEventLoginSuccess, true, username, "", nil, nil)
		o.hydrateAuthenticated(ctx, gen, outcome.Session)
		return o.State(), nil

	case OutcomeNewPasswordRequired:
		state := State{Kind: StateNewPasswordRequired, Pending: outcome.Pending}
		setup.FirstLogin = true
		setup = advanceSetup(setup, StepPassword)
		o.setState(state, setup)
		o.persistChallenge(ctx, gen, state, setup)

		o.metricInc(MetricChallengeNewPassword)
		o.emitChallengeIssued(ctx, outcome.Pending, "new_password")
		return state, nil

	case OutcomeMFARequired:
		state := State{
			Kind:           StateMFARequired,
			Pending:        outcome.Pending,
			MFAType:        outcome.MFAType,
			AvailableTypes: outcome.AvailableTypes,
		}
		o.setState(state, setup)
		o.persistChallenge(ctx, gen, state, setup)

		o.metricInc(MetricChallengeMFARequired)
		o.emitChallengeIssued(ctx, outcome.Pending, string(outcome.MFAType))
		return state, nil

	case OutcomeMFASetupRequired:
		state := State{Kind: StateMFASetupRequired, Pending: outcome.Pending}
		setup.FirstLogin = true
		setup = advanceSetup(setup, StepMFA)
		o.setState(state, setup)
		o.persistChallenge(ctx, gen, state, setup)

		o.metricInc(MetricChallengeMFASetup)
		o.emitChallengeIssued(ctx, outcome.Pending, "mfa_setup")
		return state, nil

	default:
		return o.State(), ErrProviderUnexpected
	}
}

func (o *Orchestrator) persistChallenge(ctx context.Context, gen uint64, state State, setup SetupProgress) {
	o.persistGuarded(gen, func() {
		if err := o.flows.SaveChallenge(ctx, state, o.config.Challenge.ContinuationTTL); err != nil {
			o.emitAudit(ctx, auditEventChallengeIssued, false, usernameOf(state.Pending), "", err, nil)
		}
		if err := o.flows.SaveSetup(ctx, setup); err != nil {
			o.emitAudit(ctx, auditEventChallengeIssued, false, usernameOf(state.Pending), "", err, nil)
		}
	})
}

func (o *Orchestrator) emitChallengeIssued(ctx context.Context, pending *PendingUser, kind string) {
	o.emitAudit(ctx, auditEventChallengeIssued, true, usernameOf(pending), idOf(pending), nil, func() map[string]string {
		return map[string]string{"challenge": kind}
	})
}

func usernameOf(p *PendingUser) string {
	if p == nil {
		return ""
	}
	return p.Username
}

func idOf(p *PendingUser) string {
	if p == nil {
		return ""
	}
	return p.ID
}
