// Package credential mints and verifies the short-lived bearer credential
// issued on a passing verification, and tracks revocation by token hash —
// the external auth collaborator contracted in the specification's §6.
package credential

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"connect-hub/liveness-service/internal/models"
)

// RevocationStore tracks which credential hashes have been revoked. Backed
// by the same external store family as the challenge package.
type RevocationStore interface {
	IsRevoked(ctx context.Context, tokenHash string) (bool, error)
	Revoke(ctx context.Context, tokenHash string) error
}

// Issuer mints HS256 JWT bearer credentials. subject and a liveness_score
// claim are embedded per the verify operation's contract.
type Issuer struct {
	secret        []byte
	expiry        time.Duration
	revocation    RevocationStore
}

func NewIssuer(secret string, expiryMinutes int, revocation RevocationStore) *Issuer {
	return &Issuer{
		secret:     []byte(secret),
		expiry:     time.Duration(expiryMinutes) * time.Minute,
		revocation: revocation,
	}
}

// Mint issues a credential for subject carrying the given claims, returning
// the signed token, its expiry instant, and the hash persisted for
// revocation lookups.
func (i *Issuer) Mint(subject string, claims map[string]any) (*models.Credential, string, error) {
	expiresAt := time.Now().UTC().Add(i.expiry)

	mapClaims := jwt.MapClaims{
		"sub": subject,
		"iat": time.Now().UTC().Unix(),
		"exp": expiresAt.Unix(),
	}
	for k, v := range claims {
		mapClaims[k] = v
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, mapClaims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return nil, "", fmt.Errorf("credential: failed to sign token: %w", err)
	}

	return &models.Credential{
		Token:     signed,
		Subject:   subject,
		ExpiresAt: expiresAt,
	}, HashToken(signed), nil
}

// Verify parses and validates a bearer token's signature and expiry, then
// consults the revocation store by hash.
func (i *Issuer) Verify(ctx context.Context, tokenString string) (jwt.MapClaims, error) {
	parsed, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("credential: unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("credential: invalid or expired token: %w", err)
	}

	revoked, err := i.revocation.IsRevoked(ctx, HashToken(tokenString))
	if err != nil {
		return nil, fmt.Errorf("credential: revocation check failed: %w", err)
	}
	if revoked {
		return nil, fmt.Errorf("credential: token has been revoked")
	}

	return parsed.Claims.(jwt.MapClaims), nil
}

// HashToken returns the SHA-256 hex digest used as the revocation key so the
// raw bearer token is never stored at rest.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
