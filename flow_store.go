package authflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Persisted field names. The whole set lives in one hash so ClearAll is a
// single DEL and cross-tab readers always observe a consistent last write.
const (
	fieldSessionIDToken      = "session.idToken"
	fieldSessionUsername     = "session.username"
	fieldNewPasswordRequired = "challenge.newPasswordRequired"
	fieldMFARequired         = "challenge.mfaRequired"
	fieldMFAType             = "challenge.mfaType"
	fieldMFAOptions          = "challenge.mfaOptions"
	fieldContinuation        = "challenge.continuation"
	fieldChallengeExpiresAt  = "challenge.expiresAt"
	fieldFirstLogin          = "setup.isFirstLogin"
	fieldSetupStep           = "setup.currentStep"
	fieldMFASetupRequired    = "setup.mfaSetupRequired"
	fieldMFAEnabled          = "mfa.enabled"
	fieldMFAVerified         = "mfa.verified"
	fieldProfileEmail        = "profile.email"
)

var challengeFields = []string{
	fieldNewPasswordRequired,
	fieldMFARequired,
	fieldMFAType,
	fieldMFAOptions,
	fieldContinuation,
	fieldChallengeExpiresAt,
	fieldMFASetupRequired,
}

type flowStore struct {
	redis *redis.Client
	key   string
}

func newFlowStore(redisClient *redis.Client, prefix string) *flowStore {
	return &flowStore{redis: redisClient, key: prefix + ":state"}
}

// flowSnapshot is the parsed view of every persisted field, read in one
// round trip during start-up reconciliation.
type flowSnapshot struct {
	IDToken             string
	Username            string
	NewPasswordRequired bool
	MFARequired         bool
	MFAType             MFAType
	MFAOptions          []MFAType
	Continuation        string
	ChallengeExpiresAt  time.Time
	FirstLogin          bool
	Step                SetupStep
	MFASetupRequired    bool
	MFAEnabled          bool
	MFAVerified         bool
	Email               string
}

// Empty reports whether nothing was persisted.
func (s *flowSnapshot) Empty() bool {
	return s.IDToken == "" &&
		!s.NewPasswordRequired && !s.MFARequired && !s.MFASetupRequired &&
		!s.FirstLogin && s.Step == ""
}

// ChallengeStale reports whether persisted challenge flags can no longer be
// resumed: no continuation token survived, or it outlived its window.
func (s *flowSnapshot) ChallengeStale(now time.Time) bool {
	if s.Continuation == "" {
		return true
	}
	return !s.ChallengeExpiresAt.IsZero() && now.After(s.ChallengeExpiresAt)
}

func (f *flowStore) wrap(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

func (f *flowStore) SaveSession(ctx context.Context, session *Session) error {
	if session == nil {
		return nil
	}
	err := f.redis.HSet(ctx, f.key,
		fieldSessionIDToken, session.IDToken,
		fieldSessionUsername, session.Username,
	).Err()
	if err != nil {
		return f.wrap(err)
	}
	return nil
}

func (f *flowStore) DeleteSession(ctx context.Context) error {
	if err := f.redis.HDel(ctx, f.key, fieldSessionIDToken).Err(); err != nil {
		return f.wrap(err)
	}
	return nil
}

// SaveChallenge persists the minimum needed to resume the challenge after a
// reload: flags, flavor, and the opaque continuation with its expiry. The
// credential itself is never written.
func (f *flowStore) SaveChallenge(ctx context.Context, state State, ttl time.Duration) error {
	if state.Pending == nil {
		return nil
	}

	values := map[string]any{
		fieldSessionUsername:     state.Pending.Username,
		fieldNewPasswordRequired: strconv.FormatBool(state.Kind == StateNewPasswordRequired),
		fieldMFARequired:         strconv.FormatBool(state.Kind == StateMFARequired),
		fieldMFASetupRequired:    strconv.FormatBool(state.Kind == StateMFASetupRequired),
		fieldContinuation:        state.Pending.Continuation,
		fieldChallengeExpiresAt:  strconv.FormatInt(time.Now().Add(ttl).Unix(), 10),
	}
	if state.Kind == StateMFARequired {
		values[fieldMFAType] = string(state.MFAType)
		if len(state.AvailableTypes) > 0 {
			encoded, err := json.Marshal(state.AvailableTypes)
			if err != nil {
				return err
			}
			values[fieldMFAOptions] = string(encoded)
		}
	}

	if err := f.redis.HSet(ctx, f.key, values).Err(); err != nil {
		return f.wrap(err)
	}
	return nil
}

func (f *flowStore) ClearChallenge(ctx context.Context) error {
	if err := f.redis.HDel(ctx, f.key, challengeFields...).Err(); err != nil {
		return f.wrap(err)
	}
	return nil
}

func (f *flowStore) SaveSetup(ctx context.Context, setup SetupProgress) error {
	err := f.redis.HSet(ctx, f.key,
		fieldFirstLogin, strconv.FormatBool(setup.FirstLogin),
		fieldSetupStep, string(setup.Step),
	).Err()
	if err != nil {
		return f.wrap(err)
	}
	return nil
}

func (f *flowStore) SaveMFAStatus(ctx context.Context, enabled, verified bool) error {
	err := f.redis.HSet(ctx, f.key,
		fieldMFAEnabled, strconv.FormatBool(enabled),
		fieldMFAVerified, strconv.FormatBool(verified),
	).Err()
	if err != nil {
		return f.wrap(err)
	}
	return nil
}

func (f *flowStore) SaveEmail(ctx context.Context, email string) error {
	if err := f.redis.HSet(ctx, f.key, fieldProfileEmail, email).Err(); err != nil {
		return f.wrap(err)
	}
	return nil
}

func (f *flowStore) Snapshot(ctx context.Context) (*flowSnapshot, error) {
	values, err := f.redis.HGetAll(ctx, f.key).Result()
	if err != nil {
		return nil, f.wrap(err)
	}

	snap := &flowSnapshot{
		IDToken:             values[fieldSessionIDToken],
		Username:            values[fieldSessionUsername],
		NewPasswordRequired: parseBoolField(values[fieldNewPasswordRequired]),
		MFARequired:         parseBoolField(values[fieldMFARequired]),
		MFAType:             MFAType(values[fieldMFAType]),
		Continuation:        values[fieldContinuation],
		FirstLogin:          parseBoolField(values[fieldFirstLogin]),
		Step:                SetupStep(values[fieldSetupStep]),
		MFASetupRequired:    parseBoolField(values[fieldMFASetupRequired]),
		MFAEnabled:          parseBoolField(values[fieldMFAEnabled]),
		MFAVerified:         parseBoolField(values[fieldMFAVerified]),
		Email:               values[fieldProfileEmail],
	}
	if raw := values[fieldChallengeExpiresAt]; raw != "" {
		if unix, err := strconv.ParseInt(raw, 10, 64); err == nil {
			snap.ChallengeExpiresAt = time.Unix(unix, 0)
		}
	}
	if raw := values[fieldMFAOptions]; raw != "" {
		// A corrupt options list is not worth failing reconciliation over.
		_ = json.Unmarshal([]byte(raw), &snap.MFAOptions)
	}
	return snap, nil
}

// Clear removes every persisted field in one operation. Safe to call when
// nothing is persisted.
func (f *flowStore) Clear(ctx context.Context) error {
	if err := f.redis.Del(ctx, f.key).Err(); err != nil {
		return f.wrap(err)
	}
	return nil
}

func parseBoolField(raw string) bool {
	v, err := strconv.ParseBool(raw)
	return err == nil && v
}
