package authflow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
)

const testFlowKey = "acs:state"

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

func newTestOrchestrator(t *testing.T, provider Provider) (*Orchestrator, *miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, rdb := newTestRedis(t)

	orch, err := New().
		WithRedis(rdb).
		WithProvider(provider).
		WithMetricsEnabled(true).
		WithLatencyHistograms(true).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	t.Cleanup(func() {
		orch.Close()
		_ = rdb.Close()
		mr.Close()
	})
	return orch, mr, rdb
}

func testIDToken(t *testing.T, username string, ttl time.Duration) string {
	t.Helper()

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("signing test token failed: %v", err)
	}
	return token
}

// fakeProvider is a scripted Provider. Unset hooks fall back to conservative
// defaults so each test only scripts the calls it cares about.
type fakeProvider struct {
	mu           sync.Mutex
	signOutCalls int

	initiateAuth          func(username, password string) (*ProviderResult, error)
	respondNewPassword    func(continuation, newPassword string) (*ProviderResult, error)
	respondMFACode        func(continuation, code, mfaType string) (*ProviderResult, error)
	selectMFAType         func(continuation, mfaType string) (*ProviderResult, error)
	beginTOTPEnrollment   func(continuation string) (string, error)
	confirmTOTPEnrollment func(continuation, code, deviceName string) error
	enrollSMSMFA          func(idToken, phoneNumber string) error
	disableMFA            func(idToken string) error
	fetchMFASettings      func(idToken string) (*ProviderMFASettings, error)
	fetchProfile          func(idToken string) (map[string]string, error)
	refreshSession        func() (*ProviderResult, error)
	currentSession        func() (*ProviderResult, error)
	signOut               func() error
}

func (p *fakeProvider) SignOutCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.signOutCalls
}

func (p *fakeProvider) InitiateAuth(_ context.Context, username, password string) (*ProviderResult, error) {
	if p.initiateAuth == nil {
		return nil, &ProviderError{Code: CodeNotAuthorized}
	}
	return p.initiateAuth(username, password)
}

func (p *fakeProvider) RespondNewPassword(_ context.Context, continuation, newPassword string) (*ProviderResult, error) {
	if p.respondNewPassword == nil {
		return nil, &ProviderError{Code: CodeSessionExpired}
	}
	return p.respondNewPassword(continuation, newPassword)
}

func (p *fakeProvider) RespondMFACode(_ context.Context, continuation, code, mfaType string) (*ProviderResult, error) {
	if p.respondMFACode == nil {
		return nil, &ProviderError{Code: CodeSessionExpired}
	}
	return p.respondMFACode(continuation, code, mfaType)
}

func (p *fakeProvider) SelectMFAType(_ context.Context, continuation, mfaType string) (*ProviderResult, error) {
	if p.selectMFAType == nil {
		return nil, &ProviderError{Code: CodeSessionExpired}
	}
	return p.selectMFAType(continuation, mfaType)
}

func (p *fakeProvider) BeginTOTPEnrollment(_ context.Context, continuation string) (string, error) {
	if p.beginTOTPEnrollment == nil {
		return "", &ProviderError{Code: CodeSessionExpired}
	}
	return p.beginTOTPEnrollment(continuation)
}

func (p *fakeProvider) ConfirmTOTPEnrollment(_ context.Context, continuation, code, deviceName string) error {
	if p.confirmTOTPEnrollment == nil {
		return &ProviderError{Code: CodeSessionExpired}
	}
	return p.confirmTOTPEnrollment(continuation, code, deviceName)
}

func (p *fakeProvider) EnrollSMSMFA(_ context.Context, idToken, phoneNumber string) error {
	if p.enrollSMSMFA == nil {
		return nil
	}
	return p.enrollSMSMFA(idToken, phoneNumber)
}

func (p *fakeProvider) DisableMFA(_ context.Context, idToken string) error {
	if p.disableMFA == nil {
		return nil
	}
	return p.disableMFA(idToken)
}

func (p *fakeProvider) FetchMFASettings(_ context.Context, idToken string) (*ProviderMFASettings, error) {
	if p.fetchMFASettings == nil {
		return &ProviderMFASettings{Preferred: string(MFATypeNone)}, nil
	}
	return p.fetchMFASettings(idToken)
}

func (p *fakeProvider) FetchProfile(_ context.Context, idToken string) (map[string]string, error) {
	if p.fetchProfile == nil {
		return map[string]string{"email": "alice@example.com", "name": "Alice"}, nil
	}
	return p.fetchProfile(idToken)
}

func (p *fakeProvider) RefreshSession(context.Context) (*ProviderResult, error) {
	if p.refreshSession == nil {
		return nil, &ProviderError{Code: CodeSessionExpired}
	}
	return p.refreshSession()
}

func (p *fakeProvider) CurrentSession(context.Context) (*ProviderResult, error) {
	if p.currentSession == nil {
		return nil, &ProviderError{Code: CodeSessionExpired}
	}
	return p.currentSession()
}

func (p *fakeProvider) SignOut(context.Context) error {
	p.mu.Lock()
	p.signOutCalls++
	p.mu.Unlock()
	if p.signOut == nil {
		return nil
	}
	return p.signOut()
}
