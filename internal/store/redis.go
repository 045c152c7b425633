package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"connect-hub/liveness-service/internal/models"
)

// expiryGrace keeps a challenge key alive in Redis past its logical
// ExpiresAt so Consume can still Get it and return ErrChallengeExpired
// itself, rather than Redis evicting the key early and Consume mistaking
// the miss for ErrChallengeNotFound.
const expiryGrace = 5 * time.Minute

// compareAndSetUsedScript atomically flips "used" from false to true only if
// the key exists and is not already used, returning 1 on success. Running
// this as a Lua script makes the read-modify-write atomic against Redis
// itself rather than relying on client-side locking.
const compareAndSetUsedScript = `
local raw = redis.call("GET", KEYS[1])
if not raw then
  return 0
end
local challenge = cjson.decode(raw)
if challenge.Used then
  return 0
end
challenge.Used = true
redis.call("SET", KEYS[1], cjson.encode(challenge), "KEEPTTL")
return 1
`

// RedisStore persists challenges and attempts in Redis, using a Lua script
// for the single-use compare-and-set transition.
type RedisStore struct {
	client *redis.Client
	casSHA string
}

func NewRedisStore(addr string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx := context.Background()
	sha, err := client.ScriptLoad(ctx, compareAndSetUsedScript).Result()
	if err != nil {
		return nil, fmt.Errorf("store: failed to load compare-and-set script: %w", err)
	}

	return &RedisStore{client: client, casSHA: sha}, nil
}

func challengeKey(id string) string { return "liveness:challenge:" + id }

func (s *RedisStore) Put(ctx context.Context, c *models.Challenge) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	ttl := c.ExpiresAt.Sub(c.CreatedAt) + expiryGrace
	return s.client.Set(ctx, challengeKey(c.ID), data, ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, id string) (*models.Challenge, error) {
	data, err := s.client.Get(ctx, challengeKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var c models.Challenge
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *RedisStore) CompareAndSetUsed(ctx context.Context, id string) (bool, error) {
	result, err := s.client.EvalSha(ctx, s.casSHA, []string{challengeKey(id)}).Int()
	if err != nil {
		return false, fmt.Errorf("store: compare-and-set script failed: %w", err)
	}
	return result == 1, nil
}

func (s *RedisStore) PutAttempt(ctx context.Context, a *models.VerificationAttempt) error {
	data, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, "liveness:attempt:"+a.ID, data, 0).Err()
}

func revocationKey(tokenHash string) string { return "liveness:revoked:" + tokenHash }

// IsRevoked and Revoke implement credential.RevocationStore.
func (s *RedisStore) IsRevoked(ctx context.Context, tokenHash string) (bool, error) {
	n, err := s.client.Exists(ctx, revocationKey(tokenHash)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisStore) Revoke(ctx context.Context, tokenHash string) error {
	return s.client.Set(ctx, revocationKey(tokenHash), "1", 0).Err()
}
