package authflow

import (
	"io"
	"time"

	internalaudit "github.com/MrEthical07/authflow/internal/audit"
)

// MFAType enumerates the second-factor flavors the identity provider can
// require or report. The values are the provider's wire names.
type MFAType string

const (
	// MFATypeSMS is an SMS-delivered one-time code.
	MFATypeSMS MFAType = "SMS_MFA"
	// MFATypeTOTP is a time-based one-time password from an authenticator app.
	MFATypeTOTP MFAType = "SOFTWARE_TOKEN_MFA"
	// MFATypeSelect means the provider is asking the client to choose a
	// factor before it will issue a code challenge.
	MFATypeSelect MFAType = "SELECT_MFA_TYPE"
	// MFATypeNone means no second factor is configured.
	MFATypeNone MFAType = "NOMFA"
)

// StateKind identifies the active ChallengeState variant.
type StateKind uint8

const (
	// StateAnonymous is the initial state: no login attempt in progress.
	StateAnonymous StateKind = iota
	// StateAuthenticating covers the window between submitting credentials
	// and receiving the provider's outcome.
	StateAuthenticating
	// StateNewPasswordRequired means the provider demands a password change
	// before it will issue tokens.
	StateNewPasswordRequired
	// StateMFARequired means the provider demands a second-factor code.
	StateMFARequired
	// StateMFASetupRequired means the provider demands MFA enrollment before
	// the account may log in.
	StateMFASetupRequired
	// StateAuthenticated is the terminal success state.
	StateAuthenticated
)

func (k StateKind) String() string {
	switch k {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticating:
		return "authenticating"
	case StateNewPasswordRequired:
		return "new_password_required"
	case StateMFARequired:
		return "mfa_required"
	case StateMFASetupRequired:
		return "mfa_setup_required"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// State is the tagged challenge-state variant owned by the Orchestrator.
// Exactly one variant is active at a time; the pointer fields are populated
// only for the kinds that carry them and must not be retained across a
// transition.
type State struct {
	Kind StateKind

	// Pending is set for the three challenge kinds. It is invalidated by any
	// transition away from the variant that produced it.
	Pending *PendingUser

	// MFAType and AvailableTypes are set for StateMFARequired.
	MFAType        MFAType
	AvailableTypes []MFAType

	// Session and Profile are set for StateAuthenticated. Profile is filled
	// lazily and may be nil immediately after the transition.
	Session *Session
	Profile *Profile
}

// Authenticated reports whether the state carries a live session.
func (s State) Authenticated() bool {
	return s.Kind == StateAuthenticated
}

// InChallenge reports whether a provider challenge is outstanding.
func (s State) InChallenge() bool {
	switch s.Kind {
	case StateNewPasswordRequired, StateMFARequired, StateMFASetupRequired:
		return true
	default:
		return false
	}
}

// PendingUser is an opaque handle to a provider-side login attempt that has
// not yet produced tokens. The continuation token is the only part the
// provider understands; ID exists so the orchestrator can tell two attempts
// for the same username apart.
type PendingUser struct {
	ID           string
	Username     string
	Continuation string
	IssuedAt     time.Time
}

// Session is the token bundle proving a completed authentication.
type Session struct {
	IDToken   string
	Username  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the session has lapsed at the given instant.
func (s *Session) Expired(now time.Time) bool {
	if s == nil {
		return true
	}
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// SetupStep is the position within the mandatory first-login setup flow.
type SetupStep string

const (
	// StepPassword is the forced password change step.
	StepPassword SetupStep = "password"
	// StepMFA is the mandatory MFA enrollment step.
	StepMFA SetupStep = "mfa"
	// StepComplete means the setup flow has finished.
	StepComplete SetupStep = "complete"
)

// SetupProgress tracks the first-login setup flow (forced password change,
// then mandatory MFA enrollment). Step only moves forward; only ClearAll
// resets it.
type SetupProgress struct {
	FirstLogin bool
	Step       SetupStep
}

// Profile is the lazily fetched account profile, available once
// authenticated.
type Profile struct {
	Email       string
	DisplayName string
	Attributes  map[string]string
}

// Enrollment is produced while provisioning a new second factor. Secret is
// sensitive and is never written to the challenge session store.
type Enrollment struct {
	Secret        string
	QRURI         string
	PreferredType MFAType
	Enabled       bool
}

// MFASettings is the account's current MFA configuration as reported by the
// provider.
type MFASettings struct {
	PreferredType MFAType
	Options       []MFAType
	Enabled       bool
}

// OutcomeKind identifies an Outcome variant.
type OutcomeKind uint8

const (
	// OutcomeAuthenticated means the provider issued tokens.
	OutcomeAuthenticated OutcomeKind = iota
	// OutcomeNewPasswordRequired means the provider demands a password change.
	OutcomeNewPasswordRequired
	// OutcomeMFARequired means the provider demands a second-factor code.
	OutcomeMFARequired
	// OutcomeMFASetupRequired means the provider demands MFA enrollment.
	OutcomeMFASetupRequired
)

// Outcome is the closed result union returned by the Gateway. Exactly one of
// Session or Pending is set, depending on Kind. The provider's callback shape
// never leaks above the gateway boundary.
type Outcome struct {
	Kind           OutcomeKind
	Session        *Session
	Pending        *PendingUser
	MFAType        MFAType
	AvailableTypes []MFAType
}

// StateChange is delivered to subscribers after every committed transition.
type StateChange struct {
	State State
	Setup SetupProgress
}

// AuditEvent is a structured audit record emitted by the orchestrator.
type AuditEvent = internalaudit.Event

// AuditSink receives AuditEvent values from the orchestrator's dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an AuditSink that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based AuditSink.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an AuditSink that writes JSON-encoded events to an
// io.Writer.
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a ChannelSink with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a JSONWriterSink that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}
