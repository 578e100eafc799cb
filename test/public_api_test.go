package test

import (
	"context"
	"net/http"
	"testing"

	authflow "github.com/MrEthical07/authflow"
	"github.com/MrEthical07/authflow/middleware"
)

// This test intentionally guards public API compile-compat for consumers.
func TestPublicAPISurfaceCompile(t *testing.T) {
	_ = authflow.New

	var _ *authflow.Orchestrator
	var _ authflow.Config
	var _ authflow.State
	var _ authflow.StateKind
	var _ authflow.Session
	var _ authflow.PendingUser
	var _ authflow.SetupProgress
	var _ authflow.Outcome
	var _ authflow.Enrollment
	var _ authflow.MFASettings
	var _ authflow.Profile
	var _ authflow.Provider
	var _ authflow.AuditSink

	var _ error = authflow.ErrAuthFailed
	var _ error = authflow.ErrSessionExpired
	var _ error = authflow.ErrMFACodeInvalid
	var _ error = authflow.ErrMFACodeExpired
	var _ error = authflow.ErrNoPendingChallenge
	var _ error = authflow.ErrNotAuthenticated
	var _ error = authflow.ErrStaleAttempt
	var _ error = authflow.ErrNetwork
	var _ error = authflow.ErrProviderConfig
	var _ error = authflow.ErrProviderUnexpected
	var _ error = authflow.ErrStoreUnavailable

	var _ func(*authflow.Orchestrator) func(http.Handler) http.Handler = middleware.Gate
	var _ func(*authflow.Orchestrator) func(http.Handler) http.Handler = middleware.RequireAuthenticated

	var _ func(*authflow.Orchestrator, context.Context, string, string) (authflow.State, error) = (*authflow.Orchestrator).Login
	var _ func(*authflow.Orchestrator, context.Context, string) (authflow.State, error) = (*authflow.Orchestrator).SubmitNewPassword
	var _ func(*authflow.Orchestrator, context.Context, string) (authflow.State, error) = (*authflow.Orchestrator).SubmitMFACode
	var _ func(*authflow.Orchestrator, context.Context, authflow.MFAType) (authflow.State, error) = (*authflow.Orchestrator).SelectMFAType
	var _ func(*authflow.Orchestrator, context.Context) (*authflow.Enrollment, error) = (*authflow.Orchestrator).BeginMFAEnrollment
	var _ func(*authflow.Orchestrator, context.Context, string, string) (authflow.State, error) = (*authflow.Orchestrator).ConfirmMFAEnrollment
	var _ func(*authflow.Orchestrator, context.Context) (authflow.State, error) = (*authflow.Orchestrator).Resume
	var _ func(*authflow.Orchestrator, context.Context) (*authflow.Session, error) = (*authflow.Orchestrator).RefreshSession
	var _ func(*authflow.Orchestrator, context.Context) error = (*authflow.Orchestrator).Logout
	var _ func(*authflow.Orchestrator, authflow.Route) (authflow.Route, bool) = (*authflow.Orchestrator).Decide
}
