package authflow

import (
	"errors"
	"time"
)

// Config groups every tunable of the orchestrator. Obtain a baseline from
// DefaultConfig and override fields before passing it to the Builder.
type Config struct {
	Issuer     string
	Routes     RoutesConfig
	Store      StoreConfig
	Challenge  ChallengeConfig
	Inactivity InactivityConfig
	Audit      AuditConfig
	Metrics    MetricsConfig
}

// RoutesConfig names the route surface the gate decides over.
type RoutesConfig struct {
	Login          Route
	Signup         Route
	ForgotPassword Route
	ChangePassword Route
	MFASetup       Route
	Home           Route
}

// Public reports whether r is reachable without authentication.
func (c RoutesConfig) Public(r Route) bool {
	return r == c.Login || r == c.Signup || r == c.ForgotPassword
}

// StoreConfig controls the challenge session store key layout.
type StoreConfig struct {
	RedisPrefix string
}

// ChallengeConfig controls pending-challenge persistence.
type ChallengeConfig struct {
	// ContinuationTTL bounds how long a reload may resume an in-progress
	// challenge. Persisted flags older than this are treated as stale.
	ContinuationTTL time.Duration
}

// InactivityConfig controls the first-login idle watchdog.
type InactivityConfig struct {
	Enabled    bool
	IdleWindow time.Duration
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig toggles the in-process metrics counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the baseline configuration.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Issuer: "authflow",
		Routes: RoutesConfig{
			Login:          RouteLogin,
			Signup:         RouteSignup,
			ForgotPassword: RouteForgotPassword,
			ChangePassword: RouteChangePassword,
			MFASetup:       RouteMFASetup,
			Home:           RouteHome,
		},
		Store: StoreConfig{
			RedisPrefix: "acs",
		},
		Challenge: ChallengeConfig{
			ContinuationTTL: 10 * time.Minute,
		},
		Inactivity: InactivityConfig{
			Enabled:    true,
			IdleWindow: 10 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate rejects configurations the orchestrator cannot run with.
func (c Config) Validate() error {
	if c.Issuer == "" {
		return errors.New("issuer required")
	}
	if c.Store.RedisPrefix == "" {
		return errors.New("store redis prefix required")
	}
	if c.Challenge.ContinuationTTL <= 0 {
		return errors.New("challenge continuation ttl must be positive")
	}
	if c.Inactivity.Enabled && c.Inactivity.IdleWindow <= 0 {
		return errors.New("inactivity idle window must be positive")
	}
	routes := []Route{
		c.Routes.Login,
		c.Routes.Signup,
		c.Routes.ForgotPassword,
		c.Routes.ChangePassword,
		c.Routes.MFASetup,
		c.Routes.Home,
	}
	seen := make(map[Route]struct{}, len(routes))
	for _, r := range routes {
		if r == "" {
			return errors.New("all routes must be set")
		}
		if _, dup := seen[r]; dup {
			return errors.New("routes must be distinct")
		}
		seen[r] = struct{}{}
	}
	return nil
}

func cloneConfig(cfg Config) Config {
	// All fields are value types; a shallow copy is a deep copy.
	return cfg
}
