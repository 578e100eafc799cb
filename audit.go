package authflow

import (
	"context"
	"time"

	internalaudit "github.com/MrEthical07/authflow/internal/audit"
)

const (
	auditEventLoginSuccess        = "login_success"
	auditEventLoginFailure        = "login_failure"
	auditEventChallengeIssued     = "challenge_issued"
	auditEventNewPasswordAccepted = "new_password_accepted"
	auditEventNewPasswordRejected = "new_password_rejected"
	auditEventMFASuccess          = "mfa_success"
	auditEventMFAFailure          = "mfa_failure"
	auditEventMFASelected         = "mfa_type_selected"
	auditEventEnrollmentStarted   = "mfa_enrollment_started"
	auditEventEnrollmentConfirmed = "mfa_enrollment_confirmed"
	auditEventEnrollmentFailed    = "mfa_enrollment_failed"
	auditEventSessionRefreshed    = "session_refreshed"
	auditEventSessionRefreshFail  = "session_refresh_failed"
	auditEventLogout              = "logout"
	auditEventSignOutFailed       = "provider_sign_out_failed"
	auditEventClearAll            = "flow_cleared"
	auditEventStaleOutcome        = "stale_outcome_discarded"
	auditEventStaleStateDiscarded = "stale_state_discarded"
	auditEventResumed             = "session_resumed"
	auditEventInactivityAbandon   = "inactivity_abandon"
	auditEventProfileFetchFailed  = "profile_fetch_failed"
)

type auditDispatcher = internalaudit.Dispatcher

func newAuditDispatcher(cfg AuditConfig, sink AuditSink) *auditDispatcher {
	return internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Enabled,
		BufferSize: cfg.BufferSize,
		DropIfFull: cfg.DropIfFull,
	}, sink)
}

func (o *Orchestrator) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	username string,
	attemptID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if o == nil || o.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now(),
		EventType: eventType,
		Username:  username,
		AttemptID: attemptID,
		State:     o.State().Kind.String(),
		Success:   success,
		Metadata:  metadata,
	}
	if err != nil {
		event.Error = err.Error()
	}

	o.audit.Emit(ctx, event)
}
