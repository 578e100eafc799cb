package authflow

import (
	"context"
	"fmt"
)

// Raw challenge names as the provider reports them. They exist only at the
// gateway boundary; everything above it sees Outcome variants.
const (
	ChallengeNewPasswordRequired = "NEW_PASSWORD_REQUIRED"
	ChallengeSMSMFA              = "SMS_MFA"
	ChallengeSoftwareTokenMFA    = "SOFTWARE_TOKEN_MFA"
	ChallengeSelectMFAType       = "SELECT_MFA_TYPE"
	ChallengeMFASetup            = "MFA_SETUP"
)

// Raw provider error codes recognized by the classification table.
const (
	CodeNotAuthorized            = "NotAuthorizedException"
	CodeUserNotFound             = "UserNotFoundException"
	CodePasswordResetRequired    = "PasswordResetRequiredException"
	CodeCodeMismatch             = "CodeMismatchException"
	CodeExpiredCode              = "ExpiredCodeException"
	CodeSessionExpired           = "SessionExpiredException"
	CodeResourceNotFound         = "ResourceNotFoundException"
	CodeInvalidClient            = "InvalidClientException"
	CodeInvalidUserPool          = "InvalidUserPoolConfigurationException"
	CodeNetwork                  = "NetworkError"
	CodeTooManyRequests          = "TooManyRequestsException"
	CodeLimitExceeded            = "LimitExceededException"
	CodeSoftwareTokenMFANotFound = "SoftwareTokenMFANotFoundException"
)

// ProviderError is a raw error surfaced by a Provider implementation. The
// gateway classifies it into the module's error taxonomy; orchestrator code
// never inspects Code.
type ProviderError struct {
	Code    string
	Message string
}

func (e *ProviderError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ProviderResult is the raw shape returned by Provider calls. When Challenge
// is empty the attempt is terminal and IDToken carries the issued token;
// otherwise Continuation must be echoed back on the next challenge response.
type ProviderResult struct {
	IDToken      string
	Challenge    string
	Continuation string
	MFAType      string
	MFAOptions   []string
}

// ProviderMFASettings is the raw MFA configuration report.
type ProviderMFASettings struct {
	Preferred string
	Options   []string
	Enabled   bool
}

// Provider is the transport to the remote identity provider. Implementations
// wrap whatever SDK or HTTP surface the provider exposes and hold no state
// beyond the provider's own device-session cache. All methods are
// non-retrying; retry policy belongs to callers.
type Provider interface {
	// InitiateAuth starts a login attempt with the given credentials.
	InitiateAuth(ctx context.Context, username, password string) (*ProviderResult, error)
	// RespondNewPassword answers a NEW_PASSWORD_REQUIRED challenge.
	RespondNewPassword(ctx context.Context, continuation, newPassword string) (*ProviderResult, error)
	// RespondMFACode answers an SMS or software-token code challenge.
	RespondMFACode(ctx context.Context, continuation, code, mfaType string) (*ProviderResult, error)
	// SelectMFAType answers a SELECT_MFA_TYPE challenge.
	SelectMFAType(ctx context.Context, continuation, mfaType string) (*ProviderResult, error)
	// BeginTOTPEnrollment asks the provider for a fresh TOTP secret bound to
	// the pending attempt.
	BeginTOTPEnrollment(ctx context.Context, continuation string) (string, error)
	// ConfirmTOTPEnrollment verifies the first code against the new secret
	// and marks software-token MFA preferred for the account.
	ConfirmTOTPEnrollment(ctx context.Context, continuation, code, deviceName string) error

	// EnrollSMSMFA, DisableMFA and FetchMFASettings operate on the current
	// authenticated session, not on a pending attempt.
	EnrollSMSMFA(ctx context.Context, idToken, phoneNumber string) error
	DisableMFA(ctx context.Context, idToken string) error
	FetchMFASettings(ctx context.Context, idToken string) (*ProviderMFASettings, error)

	// FetchProfile returns the account's attribute map.
	FetchProfile(ctx context.Context, idToken string) (map[string]string, error)

	// RefreshSession exchanges the current session for a fresh token bundle.
	RefreshSession(ctx context.Context) (*ProviderResult, error)
	// CurrentSession reports the provider's cached device session, if any.
	CurrentSession(ctx context.Context) (*ProviderResult, error)
	// SignOut invalidates the provider's device session.
	SignOut(ctx context.Context) error
}
