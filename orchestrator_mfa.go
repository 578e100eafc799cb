package authflow

import (
	"context"
	"errors"
	"time"
)

// SubmitMFACode answers an outstanding second-factor challenge. A rejected
// or expired code keeps the challenge state unchanged so the user can retry
// without re-entering their password.
func (o *Orchestrator) SubmitMFACode(ctx context.Context, code string) (State, error) {
	if o == nil || o.gateway == nil {
		return State{}, ErrOrchestratorNotReady
	}

	current := o.State()
	if current.Kind != StateMFARequired || current.Pending == nil {
		return current, ErrNoPendingChallenge
	}
	if current.MFAType == MFATypeSelect {
		// The provider wants a factor choice first; a code is meaningless.
		return current, ErrNoPendingChallenge
	}
	pending := current.Pending
	seq, gen := o.loginSeq.Load(), o.clearGen.Load()

	start := time.Now()
	outcome, err := o.gateway.RespondMFACode(ctx, pending, code, current.MFAType)
	o.observeProvider(start)

	if o.attemptStale(seq, gen) {
		o.metricInc(MetricStaleOutcomeDiscarded)
		o.emitAudit(ctx, auditEventStaleOutcome, false, pending.Username, pending.ID, nil, nil)
		return o.State(), ErrStaleAttempt
	}
	if err != nil {
		o.metricInc(MetricMFAConfirmFailure)
		return o.challengeStepFailure(ctx, auditEventMFAFailure, pending, err)
	}

	o.metricInc(MetricMFAConfirmSuccess)
	o.emitAudit(ctx, auditEventMFASuccess, true, pending.Username, pending.ID, nil, func() map[string]string {
		return map[string]string{"mfa_type": string(current.MFAType)}
	})
	return o.applyOutcome(ctx, pending.Username, outcome, gen)
}

// SelectMFAType answers a select-mfa-type challenge, or switches the factor
// when the provider allows more than one. The result is either the concrete
// code challenge for the chosen factor or, rarely, a terminal session.
func (o *Orchestrator) SelectMFAType(ctx context.Context, mfaType MFAType) (State, error) {
	if o == nil || o.gateway == nil {
		return State{}, ErrOrchestratorNotReady
	}
	if mfaType != MFATypeSMS && mfaType != MFATypeTOTP {
		return o.State(), ErrMFACodeInvalid
	}

	current := o.State()
	if current.Kind != StateMFARequired || current.Pending == nil {
		return current, ErrNoPendingChallenge
	}
	if current.MFAType != MFATypeSelect && !containsMFAType(current.AvailableTypes, mfaType) {
		return current, ErrNoPendingChallenge
	}
	pending := current.Pending
	seq, gen := o.loginSeq.Load(), o.clearGen.Load()

	start := time.Now()
	outcome, err := o.gateway.SelectMFAType(ctx, pending, mfaType)
	o.observeProvider(start)

	if o.attemptStale(seq, gen) {
		o.metricInc(MetricStaleOutcomeDiscarded)
		return o.State(), ErrStaleAttempt
	}
	if err != nil {
		if errors.Is(err, ErrSessionExpired) || errors.Is(err, ErrAuthFailed) {
			_ = o.ClearAll(ctx)
			return o.State(), err
		}
		return o.State(), err
	}

	o.emitAudit(ctx, auditEventMFASelected, true, pending.Username, pending.ID, nil, func() map[string]string {
		return map[string]string{"mfa_type": string(mfaType)}
	})
	return o.applyOutcome(ctx, pending.Username, outcome, gen)
}

func containsMFAType(list []MFAType, t MFAType) bool {
	for _, v := range list {
		if v == t {
			return true
		}
	}
	return false
}
