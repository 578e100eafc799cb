package authflow

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func newTestGateway(t *testing.T, provider Provider) *Gateway {
	t.Helper()

	g, err := NewGateway(provider, "authflow")
	if err != nil {
		t.Fatalf("NewGateway failed: %v", err)
	}
	return g
}

func TestClassifyProviderErrorTable(t *testing.T) {
	tests := []struct {
		code string
		want error
	}{
		{CodeNotAuthorized, ErrAuthFailed},
		{CodeUserNotFound, ErrAuthFailed},
		{CodePasswordResetRequired, ErrAuthFailed},
		{CodeCodeMismatch, ErrMFACodeInvalid},
		{CodeExpiredCode, ErrMFACodeExpired},
		{CodeSessionExpired, ErrSessionExpired},
		{CodeSoftwareTokenMFANotFound, ErrSessionExpired},
		{CodeResourceNotFound, ErrProviderConfig},
		{CodeInvalidClient, ErrProviderConfig},
		{CodeInvalidUserPool, ErrProviderConfig},
		{CodeNetwork, ErrNetwork},
		{CodeTooManyRequests, ErrNetwork},
		{CodeLimitExceeded, ErrNetwork},
		{"SomethingNobodyMapped", ErrProviderUnexpected},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			got := classifyProviderError(&ProviderError{Code: tt.code})
			if !errors.Is(got, tt.want) {
				t.Fatalf("classifyProviderError(%s) = %v, want %v", tt.code, got, tt.want)
			}
		})
	}
}

func TestClassifyProviderErrorTransport(t *testing.T) {
	got := classifyProviderError(fmt.Errorf("dial tcp: connection refused"))
	if !errors.Is(got, ErrNetwork) {
		t.Fatalf("expected transport errors to classify as network, got %v", got)
	}
	if classifyProviderError(nil) != nil {
		t.Fatal("expected nil passthrough")
	}
}

func TestAuthenticateMapsChallengesToOutcomes(t *testing.T) {
	tests := []struct {
		name     string
		result   *ProviderResult
		wantKind OutcomeKind
		wantMFA  MFAType
	}{
		{
			name:     "new password challenge",
			result:   &ProviderResult{Challenge: ChallengeNewPasswordRequired, Continuation: "c1"},
			wantKind: OutcomeNewPasswordRequired,
		},
		{
			name:     "software token challenge",
			result:   &ProviderResult{Challenge: ChallengeSoftwareTokenMFA, Continuation: "c2"},
			wantKind: OutcomeMFARequired,
			wantMFA:  MFATypeTOTP,
		},
		{
			name:     "sms challenge",
			result:   &ProviderResult{Challenge: ChallengeSMSMFA, Continuation: "c3"},
			wantKind: OutcomeMFARequired,
			wantMFA:  MFATypeSMS,
		},
		{
			name: "select challenge carries options",
			result: &ProviderResult{
				Challenge:    ChallengeSelectMFAType,
				Continuation: "c4",
				MFAOptions:   []string{string(MFATypeSMS), string(MFATypeTOTP)},
			},
			wantKind: OutcomeMFARequired,
			wantMFA:  MFATypeSelect,
		},
		{
			name:     "mfa setup challenge",
			result:   &ProviderResult{Challenge: ChallengeMFASetup, Continuation: "c5"},
			wantKind: OutcomeMFASetupRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGateway(t, &fakeProvider{
				initiateAuth: func(string, string) (*ProviderResult, error) {
					return tt.result, nil
				},
			})

			outcome, err := g.Authenticate(context.Background(), "alice", "pw")
			if err != nil {
				t.Fatalf("Authenticate failed: %v", err)
			}
			if outcome.Kind != tt.wantKind {
				t.Fatalf("outcome kind = %v, want %v", outcome.Kind, tt.wantKind)
			}
			if outcome.Pending == nil {
				t.Fatal("expected a pending handle for a challenge outcome")
			}
			if outcome.Pending.Continuation != tt.result.Continuation {
				t.Fatalf("continuation = %q, want %q", outcome.Pending.Continuation, tt.result.Continuation)
			}
			if outcome.Pending.Username != "alice" {
				t.Fatalf("pending username = %q, want alice", outcome.Pending.Username)
			}
			if outcome.MFAType != tt.wantMFA {
				t.Fatalf("mfa type = %q, want %q", outcome.MFAType, tt.wantMFA)
			}
			if len(tt.result.MFAOptions) != len(outcome.AvailableTypes) {
				t.Fatalf("available types = %v, want %d entries", outcome.AvailableTypes, len(tt.result.MFAOptions))
			}
		})
	}
}

func TestAuthenticateTerminalDerivesSessionFromToken(t *testing.T) {
	token := testIDToken(t, "alice", time.Hour)
	g := newTestGateway(t, &fakeProvider{
		initiateAuth: func(string, string) (*ProviderResult, error) {
			return &ProviderResult{IDToken: token}, nil
		},
	})

	outcome, err := g.Authenticate(context.Background(), "alice", "pw")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if outcome.Kind != OutcomeAuthenticated || outcome.Session == nil {
		t.Fatalf("expected authenticated outcome, got %+v", outcome)
	}
	if outcome.Session.IDToken != token {
		t.Fatal("expected session to carry the raw id token")
	}
	if outcome.Session.ExpiresAt.IsZero() {
		t.Fatal("expected expiry derived from token claims")
	}
	if outcome.Session.Expired(time.Now()) {
		t.Fatal("expected a live session")
	}
	if !outcome.Session.Expired(time.Now().Add(2 * time.Hour)) {
		t.Fatal("expected the session to lapse after the claim window")
	}
}

func TestAuthenticateUnknownChallengeRejected(t *testing.T) {
	g := newTestGateway(t, &fakeProvider{
		initiateAuth: func(string, string) (*ProviderResult, error) {
			return &ProviderResult{Challenge: "DEVICE_SRP_AUTH", Continuation: "c"}, nil
		},
	})

	if _, err := g.Authenticate(context.Background(), "alice", "pw"); !errors.Is(err, ErrProviderUnexpected) {
		t.Fatalf("expected ErrProviderUnexpected for unknown challenge, got %v", err)
	}
}

func TestRespondNewPasswordRejectsReissuedChallenge(t *testing.T) {
	g := newTestGateway(t, &fakeProvider{
		respondNewPassword: func(string, string) (*ProviderResult, error) {
			return &ProviderResult{Challenge: ChallengeNewPasswordRequired, Continuation: "again"}, nil
		},
	})

	pending := &PendingUser{ID: "p1", Username: "alice", Continuation: "c"}
	if _, err := g.RespondNewPassword(context.Background(), pending, "new-pw"); !errors.Is(err, ErrProviderConfig) {
		t.Fatalf("expected ErrProviderConfig for re-issued challenge, got %v", err)
	}
}

func TestRespondMFACodeRejectsNonTerminalResult(t *testing.T) {
	g := newTestGateway(t, &fakeProvider{
		respondMFACode: func(string, string, string) (*ProviderResult, error) {
			return &ProviderResult{Challenge: ChallengeSMSMFA, Continuation: "again"}, nil
		},
	})

	pending := &PendingUser{ID: "p1", Username: "alice", Continuation: "c"}
	if _, err := g.RespondMFACode(context.Background(), pending, "123456", MFATypeSMS); !errors.Is(err, ErrProviderUnexpected) {
		t.Fatalf("expected ErrProviderUnexpected for non-terminal mfa result, got %v", err)
	}
}

func TestBeginTOTPEnrollmentBuildsQRURI(t *testing.T) {
	g := newTestGateway(t, &fakeProvider{
		beginTOTPEnrollment: func(string) (string, error) {
			return "JBSWY3DPEHPK3PXP", nil
		},
	})

	pending := &PendingUser{ID: "p1", Username: "alice@example.com", Continuation: "c"}
	enrollment, err := g.BeginTOTPEnrollment(context.Background(), pending)
	if err != nil {
		t.Fatalf("BeginTOTPEnrollment failed: %v", err)
	}
	if enrollment.Secret != "JBSWY3DPEHPK3PXP" {
		t.Fatalf("secret = %q", enrollment.Secret)
	}
	want := "otpauth://totp/authflow:alice@example.com?secret=JBSWY3DPEHPK3PXP&issuer=authflow"
	if enrollment.QRURI != want {
		t.Fatalf("qr uri = %q, want %q", enrollment.QRURI, want)
	}
	if enrollment.PreferredType != MFATypeTOTP {
		t.Fatalf("preferred type = %q", enrollment.PreferredType)
	}
}

func TestEnrollmentURIEscapesLabel(t *testing.T) {
	uri := enrollmentURI("SOP Console", "bob smith", "SECRET")
	want := "otpauth://totp/SOP%20Console:bob%20smith?secret=SECRET&issuer=SOP+Console"
	if uri != want {
		t.Fatalf("uri = %q, want %q", uri, want)
	}
}

func TestCurrentSessionMissingDeviceSession(t *testing.T) {
	g := newTestGateway(t, &fakeProvider{
		currentSession: func() (*ProviderResult, error) {
			return &ProviderResult{}, nil
		},
	})

	if _, err := g.CurrentSession(context.Background(), "alice"); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired for empty device session, got %v", err)
	}
}

func TestFetchProfileMapsAttributes(t *testing.T) {
	g := newTestGateway(t, &fakeProvider{
		fetchProfile: func(string) (map[string]string, error) {
			return map[string]string{
				"email":        "alice@example.com",
				"name":         "Alice",
				"custom:group": "ops",
			}, nil
		},
	})

	profile, err := g.FetchProfile(context.Background(), &Session{IDToken: "t"})
	if err != nil {
		t.Fatalf("FetchProfile failed: %v", err)
	}
	if profile.Email != "alice@example.com" || profile.DisplayName != "Alice" {
		t.Fatalf("profile = %+v", profile)
	}
	if profile.Attributes["custom:group"] != "ops" {
		t.Fatal("expected raw attributes preserved")
	}
}

func TestFetchMFASettingsDefaultsPreferredToNone(t *testing.T) {
	g := newTestGateway(t, &fakeProvider{
		fetchMFASettings: func(string) (*ProviderMFASettings, error) {
			return &ProviderMFASettings{}, nil
		},
	})

	settings, err := g.FetchMFASettings(context.Background(), &Session{IDToken: "t"})
	if err != nil {
		t.Fatalf("FetchMFASettings failed: %v", err)
	}
	if settings.PreferredType != MFATypeNone || settings.Enabled {
		t.Fatalf("settings = %+v", settings)
	}
}
