package repository

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"glowspa/api/internal/models"
)

var ErrSessionNotFound = errors.New("session not found")

// RotateResult reports the outcome of an atomic refresh-token rotation.
type RotateResult int

const (
	RotateMissing  RotateResult = iota // no refresh record for the session
	RotateMismatch                     // record exists but hash differs (stale token)
	RotateOK
)

const (
	sessionKeyPrefix      = "session:"
	refreshKeyPrefix      = "refresh:"
	lockoutKeyPrefix      = "lockout:"
	userSessionsKeyPrefix = "user_sessions:"
)

// Counter increments must be atomic across server instances, so both the
// lockout bump and the refresh rotation run as server-side scripts.
var (
	incrWithExpiry = redis.NewScript(`
local c = redis.call('INCR', KEYS[1])
if c == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return c
`)

	compareAndRotate = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if not cur then
  return -1
end
if cur ~= ARGV[1] then
  return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)
)

// SessionStore keeps sessions, refresh-token hashes, lockout counters and
// per-user session sets in Redis, each under its semantic TTL.
type SessionStore struct {
	client *redis.Client
}

func NewSessionStore(client *redis.Client) *SessionStore {
	return &SessionStore{client: client}
}

func sessionKey(id string) string      { return sessionKeyPrefix + id }
func refreshKey(id string) string      { return refreshKeyPrefix + id }
func lockoutKey(ident string) string   { return lockoutKeyPrefix + ident }
func userSessionsKey(id string) string { return userSessionsKeyPrefix + id }

func (s *SessionStore) PutSession(ctx context.Context, session models.Session, ttl time.Duration) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return s.client.Set(ctx, sessionKey(session.ID), data, ttl).Err()
}

func (s *SessionStore) GetSession(ctx context.Context, sessionID string) (models.Session, error) {
	val, err := s.client.Get(ctx, sessionKey(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return models.Session{}, ErrSessionNotFound
	}
	if err != nil {
		return models.Session{}, err
	}

	var session models.Session
	if err := json.Unmarshal([]byte(val), &session); err != nil {
		return models.Session{}, fmt.Errorf("unmarshal session: %w", err)
	}
	return session, nil
}

// TouchSession extends the sliding expiration window of a live session.
func (s *SessionStore) TouchSession(ctx context.Context, sessionID string, ttl time.Duration) error {
	ok, err := s.client.Expire(ctx, sessionKey(sessionID), ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrSessionNotFound
	}
	return nil
}

func (s *SessionStore) DeleteSession(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, sessionKey(sessionID)).Err()
}

func (s *SessionStore) PutRefreshHash(ctx context.Context, sessionID string, hash []byte, ttl time.Duration) error {
	return s.client.Set(ctx, refreshKey(sessionID), hex.EncodeToString(hash), ttl).Err()
}

// RotateRefreshHash swaps the stored refresh hash for a session only if the
// presented hash still matches. The compare and the swap run as one script,
// so concurrent refresh attempts serialize: exactly one rotates, the rest
// observe a mismatch.
func (s *SessionStore) RotateRefreshHash(ctx context.Context, sessionID string, oldHash, newHash []byte, ttl time.Duration) (RotateResult, error) {
	res, err := compareAndRotate.Run(ctx, s.client,
		[]string{refreshKey(sessionID)},
		hex.EncodeToString(oldHash),
		hex.EncodeToString(newHash),
		ttl.Milliseconds(),
	).Int64()
	if err != nil {
		return RotateMissing, err
	}
	switch res {
	case 1:
		return RotateOK, nil
	case 0:
		return RotateMismatch, nil
	default:
		return RotateMissing, nil
	}
}

func (s *SessionStore) DeleteRefreshHash(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, refreshKey(sessionID)).Err()
}

// IncrLockout bumps the failed-attempt counter for an identifier. The expiry
// window starts on the first failure and is not extended by later ones.
func (s *SessionStore) IncrLockout(ctx context.Context, identifier string, window time.Duration) (int64, error) {
	return incrWithExpiry.Run(ctx, s.client,
		[]string{lockoutKey(identifier)},
		window.Milliseconds(),
	).Int64()
}

func (s *SessionStore) GetLockout(ctx context.Context, identifier string) (int64, error) {
	val, err := s.client.Get(ctx, lockoutKey(identifier)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return val, err
}

func (s *SessionStore) ClearLockout(ctx context.Context, identifier string) error {
	return s.client.Del(ctx, lockoutKey(identifier)).Err()
}

func (s *SessionStore) AddUserSession(ctx context.Context, userID, sessionID string) error {
	return s.client.SAdd(ctx, userSessionsKey(userID), sessionID).Err()
}

func (s *SessionStore) RemoveUserSession(ctx context.Context, userID, sessionID string) error {
	return s.client.SRem(ctx, userSessionsKey(userID), sessionID).Err()
}

func (s *SessionStore) UserSessions(ctx context.Context, userID string) ([]string, error) {
	return s.client.SMembers(ctx, userSessionsKey(userID)).Result()
}

// PruneUserSessions drops set members whose session record already expired.
// Set members have no TTL of their own, so a periodic sweep keeps the
// per-user sets from accumulating dead ids.
func (s *SessionStore) PruneUserSessions(ctx context.Context, userID string) (int, error) {
	ids, err := s.UserSessions(ctx, userID)
	if err != nil {
		return 0, err
	}

	pruned := 0
	for _, id := range ids {
		exists, err := s.client.Exists(ctx, sessionKey(id)).Result()
		if err != nil {
			return pruned, err
		}
		if exists == 0 {
			if err := s.RemoveUserSession(ctx, userID, id); err != nil {
				return pruned, err
			}
			pruned++
		}
	}
	return pruned, nil
}

// ScanUserSessionSets iterates over all per-user session set keys, returning
// the bare user ids. Used by the maintenance sweep.
func (s *SessionStore) ScanUserSessionSets(ctx context.Context, fn func(userID string) error) error {
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, userSessionsKeyPrefix+"*", 256).Result()
		if err != nil {
			return err
		}
		for _, key := range keys {
			if err := fn(key[len(userSessionsKeyPrefix):]); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
