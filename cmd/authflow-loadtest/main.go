package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	authflow "github.com/MrEthical07/authflow"
	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
)

const stubMFACode = "123456"

func main() {
	var (
		concurrency = flag.Int("concurrency", 64, "number of concurrent device flows")
		ops         = flag.Int("ops", 20000, "operations per phase (login + refresh)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "acs-lt", "flow key prefix")
	)
	flag.Parse()

	if *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "concurrency and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  *redis.Client
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewClient(&redis.Options{Addr: addr})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewClient(&redis.Options{Addr: addr})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	fmt.Printf("building %d device flows...\n", *concurrency)
	orchs := make([]*authflow.Orchestrator, *concurrency)
	for i := range orchs {
		cfg := authflow.DefaultConfig()
		cfg.Store.RedisPrefix = fmt.Sprintf("%s:%d", *prefix, i)
		orch, err := authflow.New().
			WithConfig(cfg).
			WithRedis(client).
			WithProvider(newStubProvider(fmt.Sprintf("user-%d", i))).
			WithMetricsEnabled(true).
			WithLatencyHistograms(true).
			Build()
		if err != nil {
			fmt.Fprintf(os.Stderr, "build failed: %v\n", err)
			os.Exit(1)
		}
		orchs[i] = orch
	}
	defer func() {
		for _, orch := range orchs {
			orch.Close()
		}
	}()

	loginStats := runLoginPhase(ctx, orchs, *ops)
	refreshStats := runRefreshPhase(ctx, orchs, *ops)

	fmt.Println("---- results ----")
	printStats("login+mfa", loginStats)
	printStats("refresh", refreshStats)
}

// runLoginPhase drives full login -> MFA code -> logout cycles. Each sample
// covers one complete cycle, the unit a browser session actually pays for.
func runLoginPhase(ctx context.Context, orchs []*authflow.Orchestrator, ops int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := range orchs {
		wg.Add(1)
		go func(orch *authflow.Orchestrator, worker int) {
			defer wg.Done()
			username := fmt.Sprintf("user-%d", worker)
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}

				t0 := time.Now()
				err := runLoginCycle(ctx, orch, username)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}

				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(orchs[w], w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

func runLoginCycle(ctx context.Context, orch *authflow.Orchestrator, username string) error {
	state, err := orch.Login(ctx, username, "correct-password")
	if err != nil {
		return err
	}
	if state.Kind != authflow.StateMFARequired {
		return fmt.Errorf("expected MFA challenge, got %s", state.Kind)
	}
	state, err = orch.SubmitMFACode(ctx, stubMFACode)
	if err != nil {
		return err
	}
	if !state.Authenticated() {
		return fmt.Errorf("expected authenticated, got %s", state.Kind)
	}
	return orch.Logout(ctx)
}

// runRefreshPhase authenticates every device once, then hammers
// RefreshSession.
func runRefreshPhase(ctx context.Context, orchs []*authflow.Orchestrator, ops int) phaseStats {
	for w, orch := range orchs {
		username := fmt.Sprintf("user-%d", w)
		if _, err := orch.Login(ctx, username, "correct-password"); err != nil {
			fmt.Fprintf(os.Stderr, "refresh seed login failed: %v\n", err)
			os.Exit(1)
		}
		if _, err := orch.SubmitMFACode(ctx, stubMFACode); err != nil {
			fmt.Fprintf(os.Stderr, "refresh seed mfa failed: %v\n", err)
			os.Exit(1)
		}
	}

	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := range orchs {
		wg.Add(1)
		go func(orch *authflow.Orchestrator) {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}

				t0 := time.Now()
				_, err := orch.RefreshSession(ctx)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}

				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(orchs[w])
	}
	wg.Wait()
	total := time.Since(start)

	for _, orch := range orchs {
		_ = orch.Logout(ctx)
	}

	return computeStats(total, latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

// stubProvider answers every login with an MFA code challenge and accepts the
// fixed stub code. It never touches the network.
type stubProvider struct {
	username string

	mu      sync.Mutex
	session string
}

func newStubProvider(username string) *stubProvider {
	return &stubProvider{username: username}
}

func (p *stubProvider) issueToken() string {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   p.username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("loadtest"))
	if err != nil {
		panic(err)
	}
	return token
}

func (p *stubProvider) InitiateAuth(_ context.Context, username, password string) (*authflow.ProviderResult, error) {
	if username != p.username || password != "correct-password" {
		return nil, &authflow.ProviderError{Code: authflow.CodeNotAuthorized}
	}
	return &authflow.ProviderResult{
		Challenge:    authflow.ChallengeSoftwareTokenMFA,
		Continuation: "cont-" + username,
		MFAType:      string(authflow.MFATypeTOTP),
	}, nil
}

func (p *stubProvider) RespondNewPassword(context.Context, string, string) (*authflow.ProviderResult, error) {
	return nil, &authflow.ProviderError{Code: authflow.CodeNotAuthorized}
}

func (p *stubProvider) RespondMFACode(_ context.Context, _, code, _ string) (*authflow.ProviderResult, error) {
	if code != stubMFACode {
		return nil, &authflow.ProviderError{Code: authflow.CodeCodeMismatch}
	}
	token := p.issueToken()
	p.mu.Lock()
	p.session = token
	p.mu.Unlock()
	return &authflow.ProviderResult{IDToken: token}, nil
}

func (p *stubProvider) SelectMFAType(context.Context, string, string) (*authflow.ProviderResult, error) {
	return nil, &authflow.ProviderError{Code: authflow.CodeNotAuthorized}
}

func (p *stubProvider) BeginTOTPEnrollment(context.Context, string) (string, error) {
	return "", &authflow.ProviderError{Code: authflow.CodeSoftwareTokenMFANotFound}
}

func (p *stubProvider) ConfirmTOTPEnrollment(context.Context, string, string, string) error {
	return &authflow.ProviderError{Code: authflow.CodeSoftwareTokenMFANotFound}
}

func (p *stubProvider) EnrollSMSMFA(context.Context, string, string) error {
	return nil
}

func (p *stubProvider) DisableMFA(context.Context, string) error {
	return nil
}

func (p *stubProvider) FetchMFASettings(context.Context, string) (*authflow.ProviderMFASettings, error) {
	return &authflow.ProviderMFASettings{
		Preferred: string(authflow.MFATypeTOTP),
		Options:   []string{string(authflow.MFATypeTOTP)},
		Enabled:   true,
	}, nil
}

func (p *stubProvider) FetchProfile(context.Context, string) (map[string]string, error) {
	return map[string]string{"email": p.username + "@example.com"}, nil
}

func (p *stubProvider) RefreshSession(context.Context) (*authflow.ProviderResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session == "" {
		return nil, &authflow.ProviderError{Code: authflow.CodeSessionExpired}
	}
	p.session = p.issueToken()
	return &authflow.ProviderResult{IDToken: p.session}, nil
}

func (p *stubProvider) CurrentSession(context.Context) (*authflow.ProviderResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session == "" {
		return nil, &authflow.ProviderError{Code: authflow.CodeSessionExpired}
	}
	return &authflow.ProviderResult{IDToken: p.session}, nil
}

func (p *stubProvider) SignOut(context.Context) error {
	p.mu.Lock()
	p.session = ""
	p.mu.Unlock()
	return nil
}
