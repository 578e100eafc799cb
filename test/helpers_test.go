//go:build integration
// +build integration

package test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"

	authflow "github.com/MrEthical07/authflow"
)

const (
	ladderTempPassword = "temp-pw"
	ladderNewPassword  = "fresh-pw"
	ladderTOTPCode     = "123456"
	ladderTOTPSecret   = "JBSWY3DPEHPK3PXP"
)

// ladderProvider is a stateful identity provider stub covering the whole
// first-login ladder: temporary password, forced change, mandatory TOTP
// enrollment, then code-challenged logins.
type ladderProvider struct {
	mu           sync.Mutex
	password     string
	firstLogin   bool
	totpEnrolled bool
	continuation int
	pending      map[string]string
	session      string
}

func newLadderProvider() *ladderProvider {
	return &ladderProvider{
		password:   ladderTempPassword,
		firstLogin: true,
		pending:    make(map[string]string),
	}
}

func (p *ladderProvider) issueContinuation(username string) string {
	p.continuation++
	cont := fmt.Sprintf("cont-%d", p.continuation)
	p.pending[cont] = username
	return cont
}

func (p *ladderProvider) issueToken(username string) (string, error) {
	now := time.Now()
	return jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}).SignedString([]byte("ladder-test-secret"))
}

func (p *ladderProvider) InitiateAuth(_ context.Context, username, password string) (*authflow.ProviderResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if password != p.password {
		return nil, &authflow.ProviderError{Code: authflow.CodeNotAuthorized}
	}
	if p.firstLogin {
		return &authflow.ProviderResult{
			Challenge:    authflow.ChallengeNewPasswordRequired,
			Continuation: p.issueContinuation(username),
		}, nil
	}
	if p.totpEnrolled {
		return &authflow.ProviderResult{
			Challenge:    authflow.ChallengeSoftwareTokenMFA,
			Continuation: p.issueContinuation(username),
		}, nil
	}
	return p.terminal(username)
}

func (p *ladderProvider) terminal(username string) (*authflow.ProviderResult, error) {
	token, err := p.issueToken(username)
	if err != nil {
		return nil, &authflow.ProviderError{Code: authflow.CodeInvalidClient, Message: err.Error()}
	}
	p.session = token
	return &authflow.ProviderResult{IDToken: token}, nil
}

func (p *ladderProvider) RespondNewPassword(_ context.Context, continuation, newPassword string) (*authflow.ProviderResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	username, ok := p.pending[continuation]
	if !ok {
		return nil, &authflow.ProviderError{Code: authflow.CodeSessionExpired}
	}
	delete(p.pending, continuation)
	p.password = newPassword
	p.firstLogin = false

	// Enrollment is mandatory on first login.
	return &authflow.ProviderResult{
		Challenge:    authflow.ChallengeMFASetup,
		Continuation: p.issueContinuation(username),
	}, nil
}

func (p *ladderProvider) RespondMFACode(_ context.Context, continuation, code, _ string) (*authflow.ProviderResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	username, ok := p.pending[continuation]
	if !ok {
		return nil, &authflow.ProviderError{Code: authflow.CodeSessionExpired}
	}
	if code != ladderTOTPCode {
		return nil, &authflow.ProviderError{Code: authflow.CodeCodeMismatch}
	}
	delete(p.pending, continuation)
	return p.terminal(username)
}

func (p *ladderProvider) SelectMFAType(_ context.Context, continuation, _ string) (*authflow.ProviderResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.pending[continuation]; !ok {
		return nil, &authflow.ProviderError{Code: authflow.CodeSessionExpired}
	}
	return &authflow.ProviderResult{
		Challenge:    authflow.ChallengeSoftwareTokenMFA,
		Continuation: continuation,
	}, nil
}

func (p *ladderProvider) BeginTOTPEnrollment(_ context.Context, continuation string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.pending[continuation]; !ok {
		return "", &authflow.ProviderError{Code: authflow.CodeSessionExpired}
	}
	return ladderTOTPSecret, nil
}

func (p *ladderProvider) ConfirmTOTPEnrollment(_ context.Context, continuation, code, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.pending[continuation]; !ok {
		return &authflow.ProviderError{Code: authflow.CodeSessionExpired}
	}
	if code != ladderTOTPCode {
		return &authflow.ProviderError{Code: authflow.CodeCodeMismatch}
	}
	delete(p.pending, continuation)
	p.totpEnrolled = true
	return nil
}

func (p *ladderProvider) EnrollSMSMFA(context.Context, string, string) error { return nil }

func (p *ladderProvider) DisableMFA(context.Context, string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.totpEnrolled = false
	return nil
}

func (p *ladderProvider) FetchMFASettings(context.Context, string) (*authflow.ProviderMFASettings, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.totpEnrolled {
		return &authflow.ProviderMFASettings{
			Preferred: "SOFTWARE_TOKEN_MFA",
			Options:   []string{"SOFTWARE_TOKEN_MFA"},
			Enabled:   true,
		}, nil
	}
	return &authflow.ProviderMFASettings{}, nil
}

func (p *ladderProvider) FetchProfile(context.Context, string) (map[string]string, error) {
	return map[string]string{"email": "alice@example.com", "name": "Alice"}, nil
}

func (p *ladderProvider) RefreshSession(context.Context) (*authflow.ProviderResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session == "" {
		return nil, &authflow.ProviderError{Code: authflow.CodeSessionExpired}
	}
	return p.terminal("alice")
}

func (p *ladderProvider) CurrentSession(context.Context) (*authflow.ProviderResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session == "" {
		return nil, &authflow.ProviderError{Code: authflow.CodeSessionExpired}
	}
	return &authflow.ProviderResult{IDToken: p.session}, nil
}

func (p *ladderProvider) SignOut(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.session = ""
	return nil
}

func newLadderRedis(t *testing.T) *redis.Client {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func newLadderOrchestrator(t *testing.T, rdb *redis.Client, provider authflow.Provider) *authflow.Orchestrator {
	t.Helper()

	orch, err := authflow.New().
		WithRedis(rdb).
		WithProvider(provider).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(orch.Close)
	return orch
}
