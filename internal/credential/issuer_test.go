package credential

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRevocationStore struct {
	mu      sync.Mutex
	revoked map[string]bool
}

func newMockRevocationStore() *mockRevocationStore {
	return &mockRevocationStore{revoked: make(map[string]bool)}
}

func (m *mockRevocationStore) IsRevoked(_ context.Context, tokenHash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.revoked[tokenHash], nil
}

func (m *mockRevocationStore) Revoke(_ context.Context, tokenHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[tokenHash] = true
	return nil
}

func TestMintAndVerifyRoundTrip(t *testing.T) {
	revocation := newMockRevocationStore()
	issuer := NewIssuer("test-secret", 5, revocation)

	cred, hash, err := issuer.Mint("verified-user-abc", map[string]any{"liveness_score": 87.5})
	require.NoError(t, err)
	assert.NotEmpty(t, cred.Token)
	assert.NotEmpty(t, hash)

	claims, err := issuer.Verify(context.Background(), cred.Token)
	require.NoError(t, err)
	assert.Equal(t, "verified-user-abc", claims["sub"])
	assert.InDelta(t, 87.5, claims["liveness_score"], 0.001)
}

func TestVerifyRejectsTamperedToken(t *testing.T) {
	revocation := newMockRevocationStore()
	issuer := NewIssuer("test-secret", 5, revocation)

	cred, _, err := issuer.Mint("verified-user-abc", nil)
	require.NoError(t, err)

	tampered := cred.Token + "x"
	_, err = issuer.Verify(context.Background(), tampered)
	assert.Error(t, err)
}

func TestVerifyRejectsRevokedToken(t *testing.T) {
	revocation := newMockRevocationStore()
	issuer := NewIssuer("test-secret", 5, revocation)

	cred, hash, err := issuer.Mint("verified-user-abc", nil)
	require.NoError(t, err)

	require.NoError(t, revocation.Revoke(context.Background(), hash))

	_, err = issuer.Verify(context.Background(), cred.Token)
	assert.Error(t, err)
}

func TestHashTokenIsDeterministic(t *testing.T) {
	assert.Equal(t, HashToken("abc"), HashToken("abc"))
	assert.NotEqual(t, HashToken("abc"), HashToken("abd"))
}
