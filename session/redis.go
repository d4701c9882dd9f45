package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists the session as four string keys under a prefix.
//
// A zero ttl keeps keys until Clear. A positive ttl bounds how long an abandoned
// session lingers in Redis; it is refreshed on every Set.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisStore keeps the session under prefix in client. It performs no I/O;
// an empty prefix defaults to "authclient".
func NewRedisStore(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "authclient"
	}
	return &RedisStore{
		redis:  client,
		prefix: prefix,
		ttl:    ttl,
		now:    time.Now,
	}
}

func (s *RedisStore) key(name string) string {
	return s.prefix + ":" + name
}

// Get reads all keys with one MGET so token and user come from the same snapshot.
//
//	Performance: 1 Redis MGET.
func (s *RedisStore) Get(ctx context.Context) (*Session, error) {
	vals, err := s.redis.MGet(ctx,
		s.key(KeyToken),
		s.key(KeyUser),
		s.key(KeyTrackingID),
		s.key(KeyExpiresAt),
	).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	token, _ := vals[0].(string)
	userRaw, hasUser := vals[1].(string)
	trackingID, _ := vals[2].(string)
	expiresRaw, _ := vals[3].(string)

	if token == "" && !hasUser && trackingID == "" {
		return nil, nil
	}

	sess := &Session{Token: token, TrackingID: trackingID}
	if hasUser {
		if err := json.Unmarshal([]byte(userRaw), &sess.User); err != nil {
			return nil, fmt.Errorf("%w: user: %v", ErrCorruptSession, err)
		}
	}
	if expiresRaw != "" {
		unix, err := strconv.ParseInt(expiresRaw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: expires_at: %v", ErrCorruptSession, err)
		}
		sess.ExpiresAt = time.Unix(unix, 0)
	}

	return sess, nil
}

// Set writes token, user, and expiry inside one MULTI/EXEC.
//
//	Performance: 1 Redis transaction.
func (s *RedisStore) Set(ctx context.Context, token string, user User, expiresIn time.Duration) error {
	userRaw, err := json.Marshal(user)
	if err != nil {
		return err
	}
	exp := expiresAt(s.now(), expiresIn)

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(KeyToken), token, s.ttl)
		pipe.Set(ctx, s.key(KeyUser), userRaw, s.ttl)
		if exp.IsZero() {
			pipe.Del(ctx, s.key(KeyExpiresAt))
		} else {
			pipe.Set(ctx, s.key(KeyExpiresAt), exp.Unix(), s.ttl)
		}
		if s.ttl > 0 {
			pipe.Expire(ctx, s.key(KeyTrackingID), s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

// Clear deletes every key in one DEL. Deleting missing keys is not an error.
func (s *RedisStore) Clear(ctx context.Context) error {
	err := s.redis.Del(ctx,
		s.key(KeyToken),
		s.key(KeyUser),
		s.key(KeyTrackingID),
		s.key(KeyExpiresAt),
	).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

// GetOrCreateTrackingID uses SETNX so concurrent callers agree on one id.
//
//	Performance: 1–2 Redis commands.
func (s *RedisStore) GetOrCreateTrackingID(ctx context.Context) (string, error) {
	key := s.key(KeyTrackingID)

	id, err := s.redis.Get(ctx, key).Result()
	if err == nil && id != "" {
		return id, nil
	}
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	candidate := NewTrackingID()
	created, err := s.redis.SetNX(ctx, key, candidate, s.ttl).Result()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if created {
		return candidate, nil
	}

	id, err = s.redis.Get(ctx, key).Result()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return id, nil
}
