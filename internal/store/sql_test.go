package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"connect-hub/liveness-service/internal/models"
)

func newTestSQLStore(t *testing.T) *SQLStore {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	store, err := NewSQLStore(dsn)
	require.NoError(t, err)
	return store
}

func TestSQLStorePutAndGet(t *testing.T) {
	store := newTestSQLStore(t)
	ctx := context.Background()

	c := &models.Challenge{
		ID:        "chal-1",
		Steps:     []models.GestureKind{models.GestureBlink, models.GestureSmile},
		CreatedAt: time.Now().UTC(),
		ExpiresAt: time.Now().UTC().Add(time.Minute),
	}
	require.NoError(t, store.Put(ctx, c))

	got, err := store.Get(ctx, "chal-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, c.Steps, got.Steps)
}

func TestSQLStoreGetMissingReturnsNil(t *testing.T) {
	store := newTestSQLStore(t)
	got, err := store.Get(context.Background(), "does-not-exist")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestSQLStoreCompareAndSetUsedIsSingleShot(t *testing.T) {
	store := newTestSQLStore(t)
	ctx := context.Background()

	c := &models.Challenge{
		ID:        "chal-2",
		Steps:     []models.GestureKind{models.GestureTurnLeft},
		CreatedAt: time.Now().UTC(),
		ExpiresAt: time.Now().UTC().Add(time.Minute),
	}
	require.NoError(t, store.Put(ctx, c))

	first, err := store.CompareAndSetUsed(ctx, "chal-2")
	require.NoError(t, err)
	require.True(t, first)

	second, err := store.CompareAndSetUsed(ctx, "chal-2")
	require.NoError(t, err)
	require.False(t, second)

	got, err := store.Get(ctx, "chal-2")
	require.NoError(t, err)
	require.True(t, got.Used)
}

func TestSQLStoreCompareAndSetUsedOnMissingRowFails(t *testing.T) {
	store := newTestSQLStore(t)
	ok, err := store.CompareAndSetUsed(context.Background(), "never-existed")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSQLStoreConcurrentCompareAndSetUsedSingleWinner(t *testing.T) {
	store := newTestSQLStore(t)
	ctx := context.Background()

	c := &models.Challenge{
		ID:        "chal-race",
		Steps:     []models.GestureKind{models.GestureBrowRaise},
		CreatedAt: time.Now().UTC(),
		ExpiresAt: time.Now().UTC().Add(time.Minute),
	}
	require.NoError(t, store.Put(ctx, c))

	results := make(chan bool, 2)
	for i := 0; i < 2; i++ {
		go func() {
			ok, err := store.CompareAndSetUsed(ctx, "chal-race")
			require.NoError(t, err)
			results <- ok
		}()
	}

	successes := 0
	for i := 0; i < 2; i++ {
		if <-results {
			successes++
		}
	}
	require.Equal(t, 1, successes)
}

func TestSQLStorePutAndRevocation(t *testing.T) {
	store := newTestSQLStore(t)
	ctx := context.Background()

	revoked, err := store.IsRevoked(ctx, "hash-1")
	require.NoError(t, err)
	require.False(t, revoked)

	require.NoError(t, store.Revoke(ctx, "hash-1"))

	revoked, err = store.IsRevoked(ctx, "hash-1")
	require.NoError(t, err)
	require.True(t, revoked)
}

func TestSQLStorePutAttemptPersistsCredentialHash(t *testing.T) {
	store := newTestSQLStore(t)
	attempt := &models.VerificationAttempt{
		ID:                  "attempt-1",
		ChallengeID:         "chal-1",
		LivenessScore:       95,
		Passed:              true,
		CredentialTokenHash: "deadbeef",
		StepResults:         []models.StepResult{{Step: models.GestureBlink, Detected: true, Confidence: 0.9, FrameIdx: 3}},
		CreatedAt:           time.Now().UTC(),
	}
	require.NoError(t, store.PutAttempt(context.Background(), attempt))

	var row attemptRow
	require.NoError(t, store.db.First(&row, "id = ?", "attempt-1").Error)
	require.Equal(t, "deadbeef", row.CredentialTokenHash)
}
