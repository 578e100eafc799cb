package internaldefs

import (
	authflow "github.com/MrEthical07/authflow"
)

// CounterDef binds a MetricID to its exposition name and help text.
type CounterDef struct {
	ID   authflow.MetricID
	Name string
	Help string
}

// HistogramDef binds a histogram MetricID to its exposition name.
type HistogramDef struct {
	ID   authflow.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in exposition order.
var CounterDefs = []CounterDef{
	{ID: authflow.MetricLoginSuccess, Name: "authflow_login_success_total", Help: "Logins that reached the authenticated state."},
	{ID: authflow.MetricLoginFailure, Name: "authflow_login_failure_total", Help: "Logins rejected by the identity provider."},
	{ID: authflow.MetricChallengeNewPassword, Name: "authflow_challenge_new_password_total", Help: "Issued forced-password-change challenges."},
	{ID: authflow.MetricChallengeMFARequired, Name: "authflow_challenge_mfa_required_total", Help: "Issued second-factor challenges."},
	{ID: authflow.MetricChallengeMFASetup, Name: "authflow_challenge_mfa_setup_total", Help: "Issued mandatory MFA enrollment challenges."},
	{ID: authflow.MetricMFAConfirmSuccess, Name: "authflow_mfa_confirm_success_total", Help: "Accepted second-factor codes."},
	{ID: authflow.MetricMFAConfirmFailure, Name: "authflow_mfa_confirm_failure_total", Help: "Rejected second-factor codes."},
	{ID: authflow.MetricEnrollmentStarted, Name: "authflow_enrollment_started_total", Help: "Begun TOTP enrollments."},
	{ID: authflow.MetricEnrollmentConfirmed, Name: "authflow_enrollment_confirmed_total", Help: "Completed MFA enrollments."},
	{ID: authflow.MetricEnrollmentFailure, Name: "authflow_enrollment_failure_total", Help: "Failed enrollment confirmations."},
	{ID: authflow.MetricRefreshSuccess, Name: "authflow_refresh_success_total", Help: "Successful session refreshes."},
	{ID: authflow.MetricRefreshFailure, Name: "authflow_refresh_failure_total", Help: "Failed session refreshes."},
	{ID: authflow.MetricLogout, Name: "authflow_logout_total", Help: "Logout operations."},
	{ID: authflow.MetricStaleOutcomeDiscarded, Name: "authflow_stale_outcome_discarded_total", Help: "Provider outcomes discarded as superseded."},
	{ID: authflow.MetricStaleStateDiscarded, Name: "authflow_stale_state_discarded_total", Help: "Persisted challenge flags discarded at start-up."},
	{ID: authflow.MetricResumeAuthenticated, Name: "authflow_resume_authenticated_total", Help: "Start-ups that restored a live session."},
	{ID: authflow.MetricInactivityAbandon, Name: "authflow_inactivity_abandon_total", Help: "Setup flows abandoned by the idle watchdog."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: authflow.MetricProviderLatency, Name: "authflow_provider_latency_seconds", Help: "Identity provider round-trip latency histogram."},
}

// HistogramBounds are the upper bounds per bucket, as exposition strings.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix mirrors HistogramBounds with instrument-name-safe
// spellings.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates a raw bucket slice to the fixed width.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into the cumulative form the
// exposition formats expect.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
