package authflow

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// BeginMFAEnrollment provisions a TOTP secret for the mandatory-enrollment
// challenge and returns it along with the otpauth QR payload. The secret
// lives only in the returned value; it is never written to the challenge
// session store.
func (o *Orchestrator) BeginMFAEnrollment(ctx context.Context) (*Enrollment, error) {
	if o == nil || o.gateway == nil {
		return nil, ErrOrchestratorNotReady
	}

	current := o.State()
	if current.Kind != StateMFASetupRequired || current.Pending == nil {
		return nil, ErrNoPendingChallenge
	}
	pending := current.Pending

	start := time.Now()
	enrollment, err := o.gateway.BeginTOTPEnrollment(ctx, pending)
	o.observeProvider(start)
	if err != nil {
		o.emitAudit(ctx, auditEventEnrollmentFailed, false, pending.Username, pending.ID, err, nil)
		return nil, err
	}

	o.metricInc(MetricEnrollmentStarted)
	o.emitAudit(ctx, auditEventEnrollmentStarted, true, pending.Username, pending.ID, nil, nil)
	return enrollment, nil
}

// ConfirmMFAEnrollment verifies the first authenticator code against the
// provisioned secret. On success the account's preferred factor becomes
// TOTP, the setup flow is marked complete, and the user is signed out to
// re-login with the new credential and factor — enrollment does not
// transition directly to authenticated.
func (o *Orchestrator) ConfirmMFAEnrollment(ctx context.Context, code, deviceName string) (State, error) {
	if o == nil || o.gateway == nil {
		return State{}, ErrOrchestratorNotReady
	}

	current := o.State()
	if current.Kind != StateMFASetupRequired || current.Pending == nil {
		return current, ErrNoPendingChallenge
	}
	pending := current.Pending
	seq, gen := o.loginSeq.Load(), o.clearGen.Load()

	if deviceName == "" {
		deviceName = o.config.Issuer + "-" + uuid.NewString()[:8]
	}

	start := time.Now()
	err := o.gateway.ConfirmTOTPEnrollment(ctx, pending, code, deviceName)
	o.observeProvider(start)

	if o.attemptStale(seq, gen) {
		o.metricInc(MetricStaleOutcomeDiscarded)
		return o.State(), ErrStaleAttempt
	}
	if err != nil {
		o.metricInc(MetricEnrollmentFailure)
		return o.challengeStepFailure(ctx, auditEventEnrollmentFailed, pending, err)
	}

	o.metricInc(MetricEnrollmentConfirmed)
	o.emitAudit(ctx, auditEventEnrollmentConfirmed, true, pending.Username, pending.ID, nil, func() map[string]string {
		return map[string]string{"device_name": deviceName}
	})

	// Record that the account now has a verified factor and that setup
	// finished, then drop the session and challenge material. The setup step
	// is allowed to outlive the sign-out; only ClearAll resets it.
	setup := SetupProgress{FirstLogin: false, Step: StepComplete}
	_ = o.flows.SaveMFAStatus(ctx, true, true)
	_ = o.flows.SaveSetup(ctx, setup)
	_ = o.flows.ClearChallenge(ctx)
	_ = o.flows.DeleteSession(ctx)

	if err := o.gateway.SignOut(ctx); err != nil {
		o.emitAudit(ctx, auditEventSignOutFailed, false, pending.Username, pending.ID, err, nil)
	}

	o.setState(State{Kind: StateAnonymous}, setup)
	return o.State(), nil
}

// EnrollSMSMFA registers a phone number as an SMS second factor for the
// current authenticated session.
func (o *Orchestrator) EnrollSMSMFA(ctx context.Context, phoneNumber string) error {
	if o == nil || o.gateway == nil {
		return ErrOrchestratorNotReady
	}
	current := o.State()
	if !current.Authenticated() {
		return ErrNotAuthenticated
	}

	start := time.Now()
	err := o.gateway.EnrollSMSMFA(ctx, current.Session, phoneNumber)
	o.observeProvider(start)
	if err != nil {
		o.emitAudit(ctx, auditEventEnrollmentFailed, false, current.Session.Username, "", err, nil)
		return err
	}

	_ = o.flows.SaveMFAStatus(ctx, true, true)
	o.metricInc(MetricEnrollmentConfirmed)
	o.emitAudit(ctx, auditEventEnrollmentConfirmed, true, current.Session.Username, "", nil, func() map[string]string {
		return map[string]string{"mfa_type": string(MFATypeSMS)}
	})
	return nil
}

// DisableMFA turns off all second factors for the current authenticated
// session.
func (o *Orchestrator) DisableMFA(ctx context.Context) error {
	if o == nil || o.gateway == nil {
		return ErrOrchestratorNotReady
	}
	current := o.State()
	if !current.Authenticated() {
		return ErrNotAuthenticated
	}

	start := time.Now()
	err := o.gateway.DisableMFA(ctx, current.Session)
	o.observeProvider(start)
	if err != nil {
		return err
	}

	_ = o.flows.SaveMFAStatus(ctx, false, false)
	return nil
}

// MFASettings reads the account's current MFA configuration.
func (o *Orchestrator) MFASettings(ctx context.Context) (*MFASettings, error) {
	if o == nil || o.gateway == nil {
		return nil, ErrOrchestratorNotReady
	}
	current := o.State()
	if !current.Authenticated() {
		return nil, ErrNotAuthenticated
	}

	start := time.Now()
	settings, err := o.gateway.FetchMFASettings(ctx, current.Session)
	o.observeProvider(start)
	if err != nil {
		return nil, err
	}

	_ = o.flows.SaveMFAStatus(ctx, settings.Enabled, settings.Enabled)
	return settings, nil
}
