package challenge

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"connect-hub/liveness-service/internal/models"
)

// Lifecycle owns challenge generation and single-use consumption, backed by
// a Store. It holds no in-process cache of challenge state — the store is
// the single authority, per the concurrency model.
type Lifecycle struct {
	store         Store
	pool          []models.GestureKind
	length        int
	expirySeconds int
}

func NewLifecycle(store Store, pool []models.GestureKind, length, expirySeconds int) *Lifecycle {
	return &Lifecycle{store: store, pool: pool, length: length, expirySeconds: expirySeconds}
}

// Generate draws length gestures without replacement from the pool (or the
// whole pool if it is smaller) and persists a fresh challenge.
func (l *Lifecycle) Generate(ctx context.Context) (*models.Challenge, error) {
	k := l.length
	if k > len(l.pool) {
		k = len(l.pool)
	}

	steps, err := sampleWithoutReplacement(l.pool, k)
	if err != nil {
		return nil, fmt.Errorf("challenge: failed to draw gesture sequence: %w", err)
	}

	now := time.Now().UTC()
	c := &models.Challenge{
		ID:        uuid.New().String(),
		Steps:     steps,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Duration(l.expirySeconds) * time.Second),
		Used:      false,
	}

	if err := l.store.Put(ctx, c); err != nil {
		return nil, fmt.Errorf("challenge: failed to persist new challenge: %w", err)
	}
	return c, nil
}

// Consume loads a challenge by id and atomically marks it used. It returns
// the sentinel errors from the models package so callers can dispatch on
// them with errors.Is.
func (l *Lifecycle) Consume(ctx context.Context, id string) (*models.Challenge, error) {
	c, err := l.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("challenge: lookup failed: %w", err)
	}
	if c == nil {
		return nil, models.ErrChallengeNotFound
	}
	if c.Used {
		return nil, models.ErrChallengeReplay
	}
	if time.Now().UTC().After(c.ExpiresAt) {
		return nil, models.ErrChallengeExpired
	}

	ok, err := l.store.CompareAndSetUsed(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("challenge: compare-and-set failed: %w", err)
	}
	if !ok {
		return nil, models.ErrChallengeReplay
	}

	return c, nil
}

// sampleWithoutReplacement performs a Fisher-Yates partial shuffle using
// crypto/rand, since challenge steps gate an authentication decision and
// must not be predictable from a weak PRNG seed.
func sampleWithoutReplacement(pool []models.GestureKind, k int) ([]models.GestureKind, error) {
	shuffled := make([]models.GestureKind, len(pool))
	copy(shuffled, pool)

	for i := len(shuffled) - 1; i > 0; i-- {
		jBig, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return nil, err
		}
		j := int(jBig.Int64())
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}

	return shuffled[:k], nil
}
