package authflow

import (
	"context"
	"errors"
	"time"
)

// Resume reconciles persisted flow state against the provider on process
// start. Persisted flags that no live provider state can back are discarded
// before any UI decision is made; the orchestrator never trusts storage
// alone.
func (o *Orchestrator) Resume(ctx context.Context) (State, error) {
	if o == nil || o.gateway == nil {
		return State{}, ErrOrchestratorNotReady
	}

	gen := o.clearGen.Load()
	snapshot, err := o.flows.Snapshot(ctx)
	if err != nil {
		o.setState(State{Kind: StateAnonymous}, SetupProgress{})
		return o.State(), err
	}
	if snapshot.Empty() {
		o.setState(State{Kind: StateAnonymous}, SetupProgress{})
		return o.State(), nil
	}

	setup := SetupProgress{FirstLogin: snapshot.FirstLogin, Step: snapshot.Step}

	// A persisted session is only honored while the provider still backs it.
	if snapshot.IDToken != "" {
		session, cerr := o.gateway.CurrentSession(ctx, snapshot.Username)
		if cerr == nil && !session.Expired(time.Now()) {
			o.setState(State{Kind: StateAuthenticated, Session: session}, setup)
			o.metricInc(MetricResumeAuthenticated)
			o.emitAudit(ctx, auditEventResumed, true, snapshot.Username, "", nil, nil)
			o.hydrateAuthenticated(ctx, gen, session)
			return o.State(), nil
		}
		if errors.Is(cerr, ErrNetwork) {
			// Cannot distinguish stale from unreachable; fail closed.
			o.setState(State{Kind: StateAnonymous}, SetupProgress{})
			return o.State(), cerr
		}
		return o.discardStale(ctx, snapshot.Username)
	}

	// Challenge flags are resumable only while the continuation token is
	// still within its window.
	if snapshot.NewPasswordRequired || snapshot.MFARequired || snapshot.MFASetupRequired {
		if snapshot.ChallengeStale(time.Now()) {
			return o.discardStale(ctx, snapshot.Username)
		}

		pending := &PendingUser{
			ID:           "resumed",
			Username:     snapshot.Username,
			Continuation: snapshot.Continuation,
			IssuedAt:     time.Now(),
		}
		state := State{Pending: pending}
		switch {
		case snapshot.NewPasswordRequired:
			state.Kind = StateNewPasswordRequired
		case snapshot.MFARequired:
			state.Kind = StateMFARequired
			state.MFAType = snapshot.MFAType
			state.AvailableTypes = snapshot.MFAOptions
		default:
			state.Kind = StateMFASetupRequired
		}
		o.setState(state, setup)
		return o.State(), nil
	}

	// Only bookkeeping fields survived (setup/mfa/profile); nothing to
	// resume.
	o.setState(State{Kind: StateAnonymous}, setup)
	return o.State(), nil
}

func (o *Orchestrator) discardStale(ctx context.Context, username string) (State, error) {
	o.metricInc(MetricStaleStateDiscarded)
	o.emitAudit(ctx, auditEventStaleStateDiscarded, true, username, "", nil, nil)
	err := o.ClearAll(ctx)
	return o.State(), err
}

// RefreshSession exchanges the provider's device session for fresh tokens.
// A logout racing this call always wins: the refreshed session is discarded
// if anything cleared the flow while the call was in flight.
func (o *Orchestrator) RefreshSession(ctx context.Context) (*Session, error) {
	if o == nil || o.gateway == nil {
		return nil, ErrOrchestratorNotReady
	}

	current := o.State()
	if !current.Authenticated() {
		return nil, ErrNotAuthenticated
	}
	username := current.Session.Username
	seq, gen := o.loginSeq.Load(), o.clearGen.Load()

	start := time.Now()
	session, err := o.gateway.RefreshSession(ctx, username)
	o.observeProvider(start)

	if o.attemptStale(seq, gen) {
		o.metricInc(MetricStaleOutcomeDiscarded)
		return nil, ErrStaleAttempt
	}
	if err != nil {
		o.metricInc(MetricRefreshFailure)
		o.emitAudit(ctx, auditEventSessionRefreshFail, false, username, "", err, nil)
		if errors.Is(err, ErrSessionExpired) {
			_ = o.ClearAll(ctx)
		}
		return nil, err
	}

	o.mu.Lock()
	applied := o.state.Kind == StateAuthenticated && o.clearGen.Load() == gen
	if applied {
		o.state.Session = session
	}
	state, setup := o.state, o.setup
	o.mu.Unlock()

	if !applied {
		o.metricInc(MetricStaleOutcomeDiscarded)
		return nil, ErrStaleAttempt
	}
	o.notify(StateChange{State: state, Setup: setup})

	persisted := o.persistGuarded(gen, func() {
		if perr := o.flows.SaveSession(ctx, session); perr != nil {
			o.emitAudit(ctx, auditEventSessionRefreshFail, false, username, "", perr, nil)
		}
	})
	if !persisted {
		// A logout slipped in after the in-memory update; its clear is
		// authoritative and the refreshed session must stay unpersisted.
		o.metricInc(MetricStaleOutcomeDiscarded)
		return nil, ErrStaleAttempt
	}

	o.metricInc(MetricRefreshSuccess)
	o.emitAudit(ctx, auditEventSessionRefreshed, true, username, "", nil, nil)
	return session, nil
}

// Logout signs out of the provider and clears all local state. Provider
// sign-out is best-effort: local state is cleared even when the provider
// call fails, and storage is cleared unconditionally after intent is
// signaled so a concurrent refresh cannot resurrect the session.
func (o *Orchestrator) Logout(ctx context.Context) error {
	if o == nil || o.gateway == nil {
		return ErrOrchestratorNotReady
	}

	username := ""
	if s := o.State().Session; s != nil {
		username = s.Username
	}

	if err := o.gateway.SignOut(ctx); err != nil {
		o.emitAudit(ctx, auditEventSignOutFailed, false, username, "", err, nil)
	}

	err := o.ClearAll(ctx)
	o.metricInc(MetricLogout)
	o.emitAudit(ctx, auditEventLogout, err == nil, username, "", err, nil)
	return err
}

// Profile returns the lazily fetched account profile, fetching it on first
// read after authentication (and again after any earlier failed attempt).
func (o *Orchestrator) Profile(ctx context.Context) (*Profile, error) {
	if o == nil || o.gateway == nil {
		return nil, ErrOrchestratorNotReady
	}

	gen := o.clearGen.Load()
	current := o.State()
	if !current.Authenticated() {
		return nil, ErrNotAuthenticated
	}
	if current.Profile != nil {
		return current.Profile, nil
	}

	profile, err := o.gateway.FetchProfile(ctx, current.Session)
	if err != nil {
		return nil, err
	}
	o.cacheProfile(ctx, gen, current.Session, profile)
	return profile, nil
}

// hydrateAuthenticated performs the best-effort post-authentication reads:
// profile and MFA settings. Failures never revert the authenticated state;
// they are audited and retried on the next read. Writes are skipped once gen
// is superseded so a concurrent logout keeps storage clear.
func (o *Orchestrator) hydrateAuthenticated(ctx context.Context, gen uint64, session *Session) {
	profile, err := o.gateway.FetchProfile(ctx, session)
	if err != nil {
		o.emitAudit(ctx, auditEventProfileFetchFailed, false, session.Username, "", err, nil)
	} else {
		o.cacheProfile(ctx, gen, session, profile)
	}

	settings, err := o.gateway.FetchMFASettings(ctx, session)
	if err != nil {
		o.emitAudit(ctx, auditEventProfileFetchFailed, false, session.Username, "", err, nil)
		return
	}
	_ = o.persistGuarded(gen, func() {
		_ = o.flows.SaveMFAStatus(ctx, settings.Enabled, settings.Enabled)
	})
}

func (o *Orchestrator) cacheProfile(ctx context.Context, gen uint64, session *Session, profile *Profile) {
	o.mu.Lock()
	live := o.state.Kind == StateAuthenticated && o.state.Session == session
	if live {
		o.state.Profile = profile
	}
	o.mu.Unlock()

	if live && profile.Email != "" {
		_ = o.persistGuarded(gen, func() {
			_ = o.flows.SaveEmail(ctx, profile.Email)
		})
	}
}
