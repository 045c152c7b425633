package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"connect-hub/liveness-service/internal/models"
)

func TestMemoryStorePutAndGet(t *testing.T) {
	s := NewMemoryStore("", "")
	ctx := context.Background()

	c := &models.Challenge{
		ID:        "abc",
		Steps:     []models.GestureKind{models.GestureBlink},
		CreatedAt: time.Now().UTC(),
		ExpiresAt: time.Now().UTC().Add(time.Minute),
	}
	require.NoError(t, s.Put(ctx, c))

	got, err := s.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)
	assert.Equal(t, c.Steps, got.Steps)
}

func TestMemoryStoreGetMissingReturnsNil(t *testing.T) {
	s := NewMemoryStore("", "")
	got, err := s.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStoreCompareAndSetUsedIsSingleShot(t *testing.T) {
	s := NewMemoryStore("", "")
	ctx := context.Background()

	c := &models.Challenge{ID: "x", Steps: []models.GestureKind{models.GestureBlink}}
	require.NoError(t, s.Put(ctx, c))

	first, err := s.CompareAndSetUsed(ctx, "x")
	require.NoError(t, err)
	assert.True(t, first)

	second, err := s.CompareAndSetUsed(ctx, "x")
	require.NoError(t, err)
	assert.False(t, second)
}

func TestMemoryStoreRevocation(t *testing.T) {
	s := NewMemoryStore("", "")
	ctx := context.Background()

	revoked, err := s.IsRevoked(ctx, "hash-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, s.Revoke(ctx, "hash-1"))

	revoked, err = s.IsRevoked(ctx, "hash-1")
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestMemoryStoreEncryptedSnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()
	snapshotPath := filepath.Join(dir, "snapshot.enc")

	s1 := NewMemoryStore(snapshotPath, "test-encryption-key")
	ctx := context.Background()
	c := &models.Challenge{
		ID:        "persisted",
		Steps:     []models.GestureKind{models.GestureSmile, models.GestureBlink},
		CreatedAt: time.Now().UTC(),
		ExpiresAt: time.Now().UTC().Add(time.Minute),
	}
	require.NoError(t, s1.Put(ctx, c))

	s2 := NewMemoryStore(snapshotPath, "test-encryption-key")
	got, err := s2.Get(ctx, "persisted")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, c.Steps, got.Steps)
}

func TestMemoryStoreSnapshotRequiresMatchingKey(t *testing.T) {
	dir := t.TempDir()
	snapshotPath := filepath.Join(dir, "snapshot.enc")

	s1 := NewMemoryStore(snapshotPath, "correct-key")
	ctx := context.Background()
	require.NoError(t, s1.Put(ctx, &models.Challenge{ID: "c1", Steps: []models.GestureKind{models.GestureBlink}}))

	// A different key must not silently decrypt someone else's snapshot.
	s2 := NewMemoryStore(snapshotPath, "wrong-key")
	got, _ := s2.Get(ctx, "c1")
	assert.Nil(t, got)
}
