package authflow

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Gateway is the stateless boundary between the orchestrator and the remote
// identity provider. It owns exactly two translations: raw provider results
// into the closed Outcome union, and raw provider error codes into the fixed
// error taxonomy. It holds no durable state.
type Gateway struct {
	provider Provider
	issuer   string
}

// NewGateway wraps the given provider transport. Issuer is the application
// display name embedded in enrollment QR URIs.
func NewGateway(provider Provider, issuer string) (*Gateway, error) {
	if provider == nil {
		return nil, errors.New("provider required")
	}
	if issuer == "" {
		return nil, errors.New("issuer required")
	}
	return &Gateway{provider: provider, issuer: issuer}, nil
}

// codeKind is the fixed code→kind classification table. Every raw provider
// error resolves to exactly one taxonomy kind before it leaves the gateway.
var codeKind = map[string]error{
	CodeNotAuthorized:            ErrAuthFailed,
	CodeUserNotFound:             ErrAuthFailed,
	CodePasswordResetRequired:    ErrAuthFailed,
	CodeCodeMismatch:             ErrMFACodeInvalid,
	CodeExpiredCode:              ErrMFACodeExpired,
	CodeSessionExpired:           ErrSessionExpired,
	CodeSoftwareTokenMFANotFound: ErrSessionExpired,
	CodeResourceNotFound:         ErrProviderConfig,
	CodeInvalidClient:            ErrProviderConfig,
	CodeInvalidUserPool:          ErrProviderConfig,
	CodeNetwork:                  ErrNetwork,
	CodeTooManyRequests:          ErrNetwork,
	CodeLimitExceeded:            ErrNetwork,
}

func classifyProviderError(err error) error {
	if err == nil {
		return nil
	}
	var perr *ProviderError
	if !errors.As(err, &perr) {
		// Transport-level failures reach us as plain errors.
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	if kind, ok := codeKind[perr.Code]; ok {
		return fmt.Errorf("%w: %s", kind, perr.Code)
	}
	return fmt.Errorf("%w: %s", ErrProviderUnexpected, perr.Code)
}

// Authenticate starts a login attempt and maps the provider's response to an
// Outcome.
func (g *Gateway) Authenticate(ctx context.Context, username, password string) (*Outcome, error) {
	res, err := g.provider.InitiateAuth(ctx, username, password)
	if err != nil {
		return nil, classifyProviderError(err)
	}
	return g.outcomeFromResult(username, res)
}

// RespondNewPassword answers an outstanding new-password challenge. The
// resulting outcome can be anything except another new-password challenge;
// a provider that loops the challenge is treated as misconfigured.
func (g *Gateway) RespondNewPassword(ctx context.Context, pending *PendingUser, newPassword string) (*Outcome, error) {
	if pending == nil {
		return nil, ErrNoPendingChallenge
	}
	res, err := g.provider.RespondNewPassword(ctx, pending.Continuation, newPassword)
	if err != nil {
		return nil, classifyProviderError(err)
	}
	if res.Challenge == ChallengeNewPasswordRequired {
		return nil, fmt.Errorf("%w: provider re-issued new password challenge", ErrProviderConfig)
	}
	return g.outcomeFromResult(pending.Username, res)
}

// RespondMFACode answers an outstanding code challenge. Only a terminal
// authenticated outcome is valid here.
func (g *Gateway) RespondMFACode(ctx context.Context, pending *PendingUser, code string, mfaType MFAType) (*Outcome, error) {
	if pending == nil {
		return nil, ErrNoPendingChallenge
	}
	res, err := g.provider.RespondMFACode(ctx, pending.Continuation, code, string(mfaType))
	if err != nil {
		return nil, classifyProviderError(err)
	}
	if res.Challenge != "" {
		return nil, fmt.Errorf("%w: unexpected challenge %q after mfa code", ErrProviderUnexpected, res.Challenge)
	}
	return g.outcomeFromResult(pending.Username, res)
}

// SelectMFAType answers a select-mfa-type challenge and returns either the
// concrete code challenge or a terminal session.
func (g *Gateway) SelectMFAType(ctx context.Context, pending *PendingUser, mfaType MFAType) (*Outcome, error) {
	if pending == nil {
		return nil, ErrNoPendingChallenge
	}
	res, err := g.provider.SelectMFAType(ctx, pending.Continuation, string(mfaType))
	if err != nil {
		return nil, classifyProviderError(err)
	}
	return g.outcomeFromResult(pending.Username, res)
}

// BeginTOTPEnrollment provisions a fresh TOTP secret for the pending attempt
// and builds the otpauth:// QR payload for it.
func (g *Gateway) BeginTOTPEnrollment(ctx context.Context, pending *PendingUser) (*Enrollment, error) {
	if pending == nil {
		return nil, ErrNoPendingChallenge
	}
	secret, err := g.provider.BeginTOTPEnrollment(ctx, pending.Continuation)
	if err != nil {
		return nil, classifyProviderError(err)
	}
	return &Enrollment{
		Secret:        secret,
		QRURI:         enrollmentURI(g.issuer, pending.Username, secret),
		PreferredType: MFATypeTOTP,
	}, nil
}

// ConfirmTOTPEnrollment verifies the first code against the provisioned
// secret. On success the provider marks software-token MFA preferred.
func (g *Gateway) ConfirmTOTPEnrollment(ctx context.Context, pending *PendingUser, code, deviceName string) error {
	if pending == nil {
		return ErrNoPendingChallenge
	}
	if err := g.provider.ConfirmTOTPEnrollment(ctx, pending.Continuation, code, deviceName); err != nil {
		return classifyProviderError(err)
	}
	return nil
}

// EnrollSMSMFA registers a phone number for SMS MFA on the authenticated
// session.
func (g *Gateway) EnrollSMSMFA(ctx context.Context, session *Session, phoneNumber string) error {
	if session == nil {
		return ErrNotAuthenticated
	}
	if err := g.provider.EnrollSMSMFA(ctx, session.IDToken, phoneNumber); err != nil {
		return classifyProviderError(err)
	}
	return nil
}

// DisableMFA turns off all second factors on the authenticated session.
func (g *Gateway) DisableMFA(ctx context.Context, session *Session) error {
	if session == nil {
		return ErrNotAuthenticated
	}
	if err := g.provider.DisableMFA(ctx, session.IDToken); err != nil {
		return classifyProviderError(err)
	}
	return nil
}

// FetchMFASettings reads the account's MFA configuration.
func (g *Gateway) FetchMFASettings(ctx context.Context, session *Session) (*MFASettings, error) {
	if session == nil {
		return nil, ErrNotAuthenticated
	}
	raw, err := g.provider.FetchMFASettings(ctx, session.IDToken)
	if err != nil {
		return nil, classifyProviderError(err)
	}
	settings := &MFASettings{
		PreferredType: MFATypeNone,
		Enabled:       raw.Enabled,
	}
	if raw.Preferred != "" {
		settings.PreferredType = MFAType(raw.Preferred)
	}
	for _, opt := range raw.Options {
		settings.Options = append(settings.Options, MFAType(opt))
	}
	return settings, nil
}

// FetchProfile reads the account's attributes for the authenticated session.
func (g *Gateway) FetchProfile(ctx context.Context, session *Session) (*Profile, error) {
	if session == nil {
		return nil, ErrNotAuthenticated
	}
	attrs, err := g.provider.FetchProfile(ctx, session.IDToken)
	if err != nil {
		return nil, classifyProviderError(err)
	}
	profile := &Profile{Attributes: attrs}
	if attrs != nil {
		profile.Email = attrs["email"]
		profile.DisplayName = attrs["name"]
	}
	return profile, nil
}

// RefreshSession exchanges the provider's device session for fresh tokens.
func (g *Gateway) RefreshSession(ctx context.Context, username string) (*Session, error) {
	res, err := g.provider.RefreshSession(ctx)
	if err != nil {
		return nil, classifyProviderError(err)
	}
	if res.Challenge != "" || res.IDToken == "" {
		return nil, fmt.Errorf("%w: refresh did not yield a session", ErrSessionExpired)
	}
	return g.sessionFromToken(username, res.IDToken)
}

// CurrentSession reports the provider's cached device session. A missing or
// lapsed device session surfaces as ErrSessionExpired.
func (g *Gateway) CurrentSession(ctx context.Context, username string) (*Session, error) {
	res, err := g.provider.CurrentSession(ctx)
	if err != nil {
		return nil, classifyProviderError(err)
	}
	if res == nil || res.IDToken == "" {
		return nil, fmt.Errorf("%w: no device session", ErrSessionExpired)
	}
	return g.sessionFromToken(username, res.IDToken)
}

// SignOut invalidates the provider's device session.
func (g *Gateway) SignOut(ctx context.Context) error {
	if err := g.provider.SignOut(ctx); err != nil {
		return classifyProviderError(err)
	}
	return nil
}

func (g *Gateway) outcomeFromResult(username string, res *ProviderResult) (*Outcome, error) {
	if res == nil {
		return nil, fmt.Errorf("%w: empty provider result", ErrProviderUnexpected)
	}

	switch res.Challenge {
	case "":
		session, err := g.sessionFromToken(username, res.IDToken)
		if err != nil {
			return nil, err
		}
		return &Outcome{Kind: OutcomeAuthenticated, Session: session}, nil
	case ChallengeNewPasswordRequired:
		return &Outcome{
			Kind:    OutcomeNewPasswordRequired,
			Pending: newPendingUser(username, res.Continuation),
		}, nil
	case ChallengeSMSMFA, ChallengeSoftwareTokenMFA, ChallengeSelectMFAType:
		mfaType := MFAType(res.Challenge)
		if res.MFAType != "" {
			mfaType = MFAType(res.MFAType)
		}
		out := &Outcome{
			Kind:    OutcomeMFARequired,
			Pending: newPendingUser(username, res.Continuation),
			MFAType: mfaType,
		}
		for _, opt := range res.MFAOptions {
			out.AvailableTypes = append(out.AvailableTypes, MFAType(opt))
		}
		return out, nil
	case ChallengeMFASetup:
		return &Outcome{
			Kind:    OutcomeMFASetupRequired,
			Pending: newPendingUser(username, res.Continuation),
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown challenge %q", ErrProviderUnexpected, res.Challenge)
	}
}

// sessionFromToken derives the session window from the ID token's registered
// claims. The parse is unverified: signature checking is the provider edge's
// job, and only the timestamps are consumed here.
func (g *Gateway) sessionFromToken(username, idToken string) (*Session, error) {
	if idToken == "" {
		return nil, fmt.Errorf("%w: empty id token", ErrProviderUnexpected)
	}

	session := &Session{
		IDToken:  idToken,
		Username: username,
		IssuedAt: time.Now(),
	}

	claims := jwt.RegisteredClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(idToken, &claims); err == nil {
		if claims.IssuedAt != nil {
			session.IssuedAt = claims.IssuedAt.Time
		}
		if claims.ExpiresAt != nil {
			session.ExpiresAt = claims.ExpiresAt.Time
		}
		if username == "" && claims.Subject != "" {
			session.Username = claims.Subject
		}
	}
	return session, nil
}

func newPendingUser(username, continuation string) *PendingUser {
	return &PendingUser{
		ID:           uuid.NewString(),
		Username:     username,
		Continuation: continuation,
		IssuedAt:     time.Now(),
	}
}

// enrollmentURI builds the otpauth payload encoded into the enrollment QR
// code: otpauth://totp/{issuer}:{username}?secret={secret}&issuer={issuer}.
func enrollmentURI(issuer, username, secret string) string {
	label := url.PathEscape(issuer + ":" + username)
	return "otpauth://totp/" + label +
		"?secret=" + url.QueryEscape(secret) +
		"&issuer=" + url.QueryEscape(issuer)
}
